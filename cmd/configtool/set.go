package main

import (
    "context"
    "fmt"
    "os"

    "github.com/cljohnso/terracotta-platform/changes"
    . "github.com/cljohnso/terracotta-platform/model"
)

func init() {
    registerCommand("set", setSettings, setUsage)
    registerCommand("unset", unsetSettings, unsetUsage)
}

var setUsage string =
`Usage: configtool set -s <node> <assignment> [...]

Applies one or more setting changes to the whole cluster as a single atomic
change. Assignments take the forms:

    <setting>[.<key>]=<value>
    stripe.<stripe>.<setting>[.<key>]=<value>
    stripe.<stripe>.node.<node>.<setting>[.<key>]=<value>

For example:

    configtool set -s localhost:9410 offheap-resources.main=512MB
    configtool set -s localhost:9410 stripe.stripe-1.node.node-2.backup-dir=/backup
`

var unsetUsage string =
`Usage: configtool unset -s <node> <setting expression> [...]

Restores one or more settings to their catalog defaults, or removes keyed
entries from map settings.
`

func setSettings() {
    runSettingChanges(changes.OpSet)
}

func unsetSettings() {
    runSettingChanges(changes.OpUnset)
}

func runSettingChanges(op string) {
    expressions := commandArgs()

    if len(expressions) == 0 {
        fmt.Fprintf(os.Stderr, "No setting expressions given\n")
        os.Exit(exitUserError)
    }

    addresses := serverAddresses()
    nodeContext := fetchUpcoming(addresses)
    cluster := nodeContext.Cluster

    settingChanges := make([]changes.SettingChange, 0, len(expressions))

    for _, expression := range expressions {
        configuration, err := ParseConfiguration(cluster, expression)

        if err != nil {
            fmt.Fprintf(os.Stderr, "%s\n", err.Error())
            os.Exit(exitUserError)
        }

        settingChanges = append(settingChanges, changes.SettingChange{ Op: op, Configuration: configuration })
    }

    var change changes.NomadChange

    if len(settingChanges) == 1 {
        change = settingChanges[0]
    } else {
        change = changes.MultiSettingChange{ Changes: settingChanges }
    }

    coordinator := newCoordinator(clusterEndpoints(cluster))
    result, err := coordinator.RunChange(context.Background(), change)

    reportResult(result, err)
}
