package main

import (
    "context"
    "encoding/json"
    "fmt"
    "io/ioutil"
    "os"

    "github.com/cljohnso/terracotta-platform/changes"
    . "github.com/cljohnso/terracotta-platform/model"
)

func init() {
    registerCommand("activate", activateCluster, activateUsage)
    registerCommand("import", importTopology, importUsage)
}

var activateUsage string =
`Usage: configtool activate -s <node> -topology <file.json> [-license <file>] [-name <cluster name>]

Activates the nodes described in the topology file as one cluster. Every
node must be running in diagnostic mode. The topology file uses the format
produced by configtool export.
`

var importUsage string =
`Usage: configtool import -s <node> -topology <file.json>

Imports a previously exported topology into nodes running in diagnostic
mode. Unlike activate, no license is installed.
`

func loadTopologyFile() *Cluster {
    if len(*optTopologyFile) == 0 {
        fmt.Fprintf(os.Stderr, "No topology file (-topology) specified\n")
        os.Exit(exitUserError)
    }

    encoded, err := ioutil.ReadFile(*optTopologyFile)

    if err != nil {
        fmt.Fprintf(os.Stderr, "Unable to read topology file %s: %s\n", *optTopologyFile, err.Error())
        os.Exit(exitIOError)
    }

    var cluster Cluster

    if err := json.Unmarshal(encoded, &cluster); err != nil {
        fmt.Fprintf(os.Stderr, "Unable to parse topology file %s: %s\n", *optTopologyFile, err.Error())
        os.Exit(exitUserError)
    }

    if len(*optClusterName) != 0 {
        cluster.Name = *optClusterName
    }

    if cluster.UID == "" {
        cluster.UID = NewUID()
    }

    return &cluster
}

func activateCluster() {
    cluster := loadTopologyFile()

    var licenseContent string

    if len(*optLicenseFile) != 0 {
        content, err := ioutil.ReadFile(*optLicenseFile)

        if err != nil {
            fmt.Fprintf(os.Stderr, "Unable to read license file %s: %s\n", *optLicenseFile, err.Error())
            os.Exit(exitIOError)
        }

        licenseContent = string(content)
    }

    runActivation(cluster, licenseContent)
}

func importTopology() {
    runActivation(loadTopologyFile(), "")
}

func runActivation(cluster *Cluster, licenseContent string) {
    addresses := clusterEndpoints(cluster)

    if len(addresses) == 0 {
        fmt.Fprintf(os.Stderr, "The topology file does not declare any nodes\n")
        os.Exit(exitUserError)
    }

    // every node validates its own membership and installs the license
    // before the two-phase activation runs
    apiClient := newAPIClient()

    for _, address := range addresses {
        ctx, cancel := context.WithTimeout(context.Background(), *optTimeout)
        err := apiClient.PrepareActivation(ctx, address, cluster, licenseContent)

        cancel()

        if err != nil {
            fmt.Fprintf(os.Stderr, "Node %s could not prepare activation: %s\n", address, err.Error())

            if !*optForce {
                os.Exit(exitIOError)
            }
        }
    }

    coordinator := newCoordinator(addresses)
    result, err := coordinator.RunChange(context.Background(), changes.ClusterActivationChange{
        Cluster: cluster,
        LicenseContent: licenseContent,
    })

    reportResult(result, err)
}
