package main

import (
    "context"
    "fmt"
    "os"
    "sort"

    "github.com/olekukonko/tablewriter"
)

func init() {
    registerCommand("diagnostic", printDiagnostic, diagnosticUsage)
    registerCommand("repair", repairCluster, repairUsage)
}

var diagnosticUsage string =
`Usage: configtool diagnostic -s <node>[,<node>...]

Prints the nomad state of every node: its mode, mutative message count,
versions and the identity of the last coordinator that mutated it.
`

var repairUsage string =
`Usage: configtool repair -s <node>[,<node>...]

Resolves an incomplete change left behind by a failed coordinator run. The
prepared change is committed when any node already committed it, or when
every node holds the same prepared change; otherwise it is rolled back.
`

func printDiagnostic() {
    addresses := serverAddresses()
    coordinator := newCoordinator(addresses)

    table := tablewriter.NewWriter(os.Stdout)
    table.SetHeader([]string{ "SERVER", "MODE", "MESSAGES", "VERSION", "HIGHEST", "LAST MUTATION BY", "LATEST CHANGE" })

    hadErrors := false

    rows := make(map[string][]string, len(addresses))

    for _, endpoint := range coordinator.Servers {
        ctx, cancel := context.WithTimeout(context.Background(), *optTimeout)
        response, err := endpoint.Connector.Discover(ctx)

        cancel()

        if err != nil {
            rows[endpoint.Name] = []string{ endpoint.Name, "UNREACHABLE", "-", "-", "-", "-", err.Error() }
            hadErrors = true

            continue
        }

        latestChange := "-"

        if response.LatestChange != nil {
            latestChange = fmt.Sprintf("v%d %s", response.LatestChange.Version, response.LatestChange.State)
        }

        rows[endpoint.Name] = []string{
            endpoint.Name,
            response.Mode,
            fmt.Sprintf("%d", response.MutativeMessageCount),
            fmt.Sprintf("%d", response.CurrentVersion),
            fmt.Sprintf("%d", response.HighestVersion),
            fmt.Sprintf("%s@%s", response.LastMutationUser, response.LastMutationHost),
            latestChange,
        }
    }

    servers := make([]string, 0, len(rows))

    for server := range rows {
        servers = append(servers, server)
    }

    sort.Strings(servers)

    for _, server := range servers {
        table.Append(rows[server])
    }

    table.Render()

    if hadErrors {
        os.Exit(exitIOError)
    }
}

func repairCluster() {
    addresses := serverAddresses()
    coordinator := newCoordinator(addresses)

    result, err := coordinator.Repair(context.Background())

    if err == nil && result.Version == 0 {
        fmt.Println("No incomplete change found. Nothing to repair")

        os.Exit(exitSuccess)
    }

    reportResult(result, err)
}
