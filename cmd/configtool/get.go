package main

import (
    "context"
    "encoding/json"
    "fmt"
    "io/ioutil"
    "os"
    "sort"
    "strings"

    "github.com/olekukonko/tablewriter"

    . "github.com/cljohnso/terracotta-platform/model"
)

func init() {
    registerCommand("get", getSettings, getUsage)
    registerCommand("export", exportTopology, exportUsage)
}

var getUsage string =
`Usage: configtool get -s <node> [-runtime] [setting ...]

Prints settings from the node's upcoming configuration, or from the runtime
configuration when -runtime is given. With no arguments every setting is
printed; otherwise output is limited to the named settings.
`

var exportUsage string =
`Usage: configtool export -s <node> [-o <file>]

Writes the node's upcoming cluster topology as JSON, suitable for
configtool import and configtool activate.
`

type settingRow struct {
    scope string
    name string
    value string
}

func getSettings() {
    addresses := serverAddresses()
    apiClient := newAPIClient()

    ctx, cancel := context.WithTimeout(context.Background(), *optTimeout)

    defer cancel()

    var nodeContext *NodeContext
    var err error

    if *optRuntime {
        nodeContext, err = apiClient.RuntimeTopology(ctx, addresses[0])
    } else {
        nodeContext, err = apiClient.UpcomingTopology(ctx, addresses[0])
    }

    if err != nil {
        fmt.Fprintf(os.Stderr, "Unable to fetch the topology from %s: %s\n", addresses[0], err.Error())
        os.Exit(exitIOError)
    }

    filters := commandArgs()
    rows := collectSettingRows(nodeContext.Cluster)

    table := tablewriter.NewWriter(os.Stdout)
    table.SetHeader([]string{ "SCOPE", "SETTING", "VALUE" })

    for _, row := range rows {
        if len(filters) > 0 && !matchesFilter(row.name, filters) {
            continue
        }

        table.Append([]string{ row.scope, row.name, row.value })
    }

    table.Render()
}

func matchesFilter(name string, filters []string) bool {
    for _, filter := range filters {
        if name == filter || strings.HasPrefix(name, filter + ".") {
            return true
        }
    }

    return false
}

func collectSettingRows(cluster *Cluster) []settingRow {
    rows := make([]settingRow, 0)

    rows = append(rows, settingRow{ "cluster", SettingClusterName, cluster.Name })
    rows = append(rows, settingRow{ "cluster", SettingFailoverPriority, formatFailoverPriority(cluster.FailoverPriority) })
    rows = append(rows, settingRow{ "cluster", SettingClientReconnectWindow, fmt.Sprintf("%d", cluster.ClientReconnectWindowSeconds) })
    rows = append(rows, settingRow{ "cluster", SettingClientLeaseDuration, fmt.Sprintf("%d", cluster.ClientLeaseDurationSeconds) })

    offheapNames := make([]string, 0, len(cluster.OffheapResources))

    for name := range cluster.OffheapResources {
        offheapNames = append(offheapNames, name)
    }

    sort.Strings(offheapNames)

    for _, name := range offheapNames {
        rows = append(rows, settingRow{ "cluster", SettingOffheapResources + "." + name, FormatSize(cluster.OffheapResources[name]) })
    }

    for _, stripe := range cluster.Stripes {
        for _, node := range stripe.Nodes {
            scope := fmt.Sprintf("stripe.%s.node.%s", stripe.Name, node.Name)

            appendIfSet := func(name string, value string) {
                if value != "" {
                    rows = append(rows, settingRow{ scope, name, value })
                }
            }

            appendIfSet(SettingLogDir, node.LogDir)
            appendIfSet(SettingBackupDir, node.BackupDir)
            appendIfSet(SettingMetadataDir, node.MetadataDir)
            appendIfSet(SettingAuditLogDir, node.AuditLogDir)
            appendIfSet(SettingSecurityDir, node.Security.SecurityDir)
            appendIfSet(SettingAuthc, node.Security.Authc)

            rows = append(rows, settingRow{ scope, SettingSSLTLS, fmt.Sprintf("%v", node.Security.SSLTLS) })
            rows = append(rows, settingRow{ scope, SettingWhitelist, fmt.Sprintf("%v", node.Security.Whitelist) })

            dataDirNames := make([]string, 0, len(node.DataDirs))

            for name := range node.DataDirs {
                dataDirNames = append(dataDirNames, name)
            }

            sort.Strings(dataDirNames)

            for _, name := range dataDirNames {
                rows = append(rows, settingRow{ scope, SettingDataDirs + "." + name, node.DataDirs[name] })
            }

            propertyNames := make([]string, 0, len(node.TCProperties))

            for name := range node.TCProperties {
                propertyNames = append(propertyNames, name)
            }

            sort.Strings(propertyNames)

            for _, name := range propertyNames {
                rows = append(rows, settingRow{ scope, SettingTCProperties + "." + name, node.TCProperties[name] })
            }

            loggerNames := make([]string, 0, len(node.Loggers))

            for name := range node.Loggers {
                loggerNames = append(loggerNames, name)
            }

            sort.Strings(loggerNames)

            for _, name := range loggerNames {
                rows = append(rows, settingRow{ scope, SettingLoggers + "." + name, node.Loggers[name] })
            }
        }
    }

    return rows
}

func formatFailoverPriority(priority FailoverPriority) string {
    if priority.Mode == FailoverConsistency && priority.Voters > 0 {
        return fmt.Sprintf("%s:%d", priority.Mode, priority.Voters)
    }

    return priority.Mode
}

func exportTopology() {
    addresses := serverAddresses()
    nodeContext := fetchUpcoming(addresses)

    encoded, err := json.MarshalIndent(nodeContext.Cluster, "", "  ")

    if err != nil {
        fmt.Fprintf(os.Stderr, "Unable to encode the topology: %s\n", err.Error())
        os.Exit(exitIOError)
    }

    if len(*optOutput) == 0 {
        fmt.Printf("%s\n", encoded)

        return
    }

    if err := ioutil.WriteFile(*optOutput, append(encoded, '\n'), 0644); err != nil {
        fmt.Fprintf(os.Stderr, "Unable to write %s: %s\n", *optOutput, err.Error())
        os.Exit(exitIOError)
    }
}
