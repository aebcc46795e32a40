package main

import (
    "context"
    "flag"
    "fmt"
    "os"
    "os/user"
    "sort"
    "strings"
    "time"

    "github.com/olekukonko/tablewriter"

    "github.com/cljohnso/terracotta-platform/client"
    . "github.com/cljohnso/terracotta-platform/error"
    . "github.com/cljohnso/terracotta-platform/logging"
    . "github.com/cljohnso/terracotta-platform/model"
    "github.com/cljohnso/terracotta-platform/nomad"
)

const (
    exitSuccess = 0
    exitUserError = 1
    exitConsistencyError = 2
    exitCommitFailure = 3
    exitIOError = 4
)

type command struct {
    run func()
    usage string
}

var commands map[string]command = make(map[string]command)

func registerCommand(name string, run func(), usage string) {
    commands[name] = command{ run: run, usage: usage }
}

var optServers *string = flag.String("s", "", "Comma-separated list of host:port addresses of cluster nodes")
var optTimeout *time.Duration = flag.Duration("t", time.Second * 10, "Per-try request timeout")
var optRetryInterval *time.Duration = flag.Duration("r", time.Second, "Interval between retries of a failing commit")
var optEnvelope *time.Duration = flag.Duration("e", time.Minute * 2, "Overall time envelope for one operation")
var optForce *bool = flag.Bool("f", false, "Proceed even when some nodes are unreachable")

var optTopologyFile *string = flag.String("topology", "", "Path to a cluster topology JSON file")
var optLicenseFile *string = flag.String("license", "", "Path to a license file")
var optClusterName *string = flag.String("name", "", "Cluster name")
var optStripe *string = flag.String("stripe", "", "Stripe name")
var optNode *string = flag.String("node", "", "host:port address of a node")
var optOutput *string = flag.String("o", "", "Output file. Defaults to stdout")
var optRuntime *bool = flag.Bool("runtime", false, "Read the runtime configuration instead of the upcoming one")

var mainUsage string =
`Usage: configtool <command> -s <server> [arguments]

Commands:
    activate      Activate a cluster from a topology file
    get           Print settings from a node's configuration
    set           Apply one or more setting changes to the cluster
    unset         Restore one or more settings to their defaults
    attach        Attach a node to a stripe
    detach        Detach a node from the cluster
    diagnostic    Print the nomad state of every node
    export        Export a node's topology as JSON
    import        Import a previously exported topology into diagnostic nodes
    repair        Resolve an incomplete change left by a failed run

Global flags:
    -s    comma-separated node addresses
    -t    per-try timeout (default 10s)
    -r    retry interval (default 1s)
    -e    overall envelope (default 2m)
    -f    force: tolerate unreachable nodes

Use configtool help <command> for more usage information about a command.
`

func main() {
    flag.Parse()
    SetLoggingLevel("error")

    if len(flag.Args()) == 0 {
        fmt.Fprintf(os.Stderr, "%s", mainUsage)
        os.Exit(exitUserError)
    }

    commandName := flag.Args()[0]

    if commandName == "help" {
        if len(flag.Args()) < 2 {
            fmt.Fprintf(os.Stderr, "%s", mainUsage)
            os.Exit(exitUserError)
        }

        c, ok := commands[flag.Args()[1]]

        if !ok {
            fmt.Fprintf(os.Stderr, "%s is not a valid command\n", flag.Args()[1])
            os.Exit(exitUserError)
        }

        fmt.Fprintf(os.Stderr, "%s", c.usage)

        return
    }

    c, ok := commands[commandName]

    if !ok {
        fmt.Fprintf(os.Stderr, "%s is not a valid command\n", commandName)
        os.Exit(exitUserError)
    }

    c.run()
}

func commandArgs() []string {
    return flag.Args()[1:]
}

func serverAddresses() []Address {
    if len(*optServers) == 0 {
        fmt.Fprintf(os.Stderr, "No servers specified. Use -s <host:port>[,<host:port>...]\n")
        os.Exit(exitUserError)
    }

    parts := strings.Split(*optServers, ",")
    addresses := make([]Address, 0, len(parts))

    for _, part := range parts {
        address, err := ParseAddress(strings.TrimSpace(part))

        if err != nil {
            fmt.Fprintf(os.Stderr, "%s\n", err.Error())
            os.Exit(exitUserError)
        }

        addresses = append(addresses, address)
    }

    return addresses
}

func newAPIClient() *client.Client {
    return client.NewClient(client.ClientConfig{ Timeout: *optTimeout })
}

func identity() (string, string) {
    hostname, err := os.Hostname()

    if err != nil {
        hostname = "unknown"
    }

    username := "unknown"

    if current, err := user.Current(); err == nil {
        username = current.Username
    }

    return hostname, username
}

// newCoordinator builds a nomad client over HTTP connectors for the given
// node addresses.
func newCoordinator(addresses []Address) *nomad.Client {
    apiClient := newAPIClient()
    endpoints := make([]nomad.Endpoint, 0, len(addresses))

    for _, address := range addresses {
        endpoints = append(endpoints, nomad.Endpoint{
            Name: address.String(),
            Connector: client.NewHTTPConnector(apiClient, address),
        })
    }

    hostname, username := identity()
    coordinator := nomad.NewClient(endpoints, hostname, username)
    coordinator.Timeout = *optTimeout
    coordinator.RetryInterval = *optRetryInterval
    coordinator.Envelope = *optEnvelope
    coordinator.Force = *optForce

    return coordinator
}

// fetchUpcoming reads the upcoming topology from the first reachable server.
func fetchUpcoming(addresses []Address) *NodeContext {
    apiClient := newAPIClient()

    for _, address := range addresses {
        ctx, cancel := context.WithTimeout(context.Background(), *optTimeout)
        nodeContext, err := apiClient.UpcomingTopology(ctx, address)

        cancel()

        if err == nil {
            return nodeContext
        }

        fmt.Fprintf(os.Stderr, "Unable to fetch the topology from %s: %s\n", address, err.Error())
    }

    os.Exit(exitIOError)

    return nil
}

// clusterEndpoints lists every node address in the cluster, so a change
// reaches all members and not just the servers named with -s.
func clusterEndpoints(cluster *Cluster) []Address {
    addresses := make([]Address, 0)

    for _, node := range cluster.AllNodes() {
        addresses = append(addresses, node.PublicAddress)
    }

    return addresses
}

func exitCodeFor(err error) int {
    if err == nil {
        return exitSuccess
    }

    if dbError, ok := err.(DBerror); ok {
        switch dbError {
        case EClusterInconsistent:
            return exitConsistencyError
        case ETwoPhaseCommitFailed:
            return exitCommitFailure
        case EUnreachable, EStorage:
            return exitIOError
        }
    }

    return exitUserError
}

// reportResult prints the per-server outcome of a coordinator run and exits
// with the matching code.
func reportResult(result *nomad.Result, err error) {
    if result != nil && len(result.Divergence) > 0 {
        fmt.Fprintf(os.Stderr, "The cluster configuration is inconsistent:\n")

        table := tablewriter.NewWriter(os.Stderr)
        table.SetHeader([]string{ "SERVER", "STATE" })

        servers := make([]string, 0, len(result.Divergence))

        for server := range result.Divergence {
            servers = append(servers, server)
        }

        sort.Strings(servers)

        for _, server := range servers {
            table.Append([]string{ server, result.Divergence[server] })
        }

        table.Render()
    }

    if result != nil && err != nil {
        for server, ack := range result.PerServerAck {
            if ack == nil {
                continue
            }

            if ack.Err != nil {
                fmt.Fprintf(os.Stderr, "%s: unreachable: %s\n", server, ack.Err.Error())
            } else if !ack.Accepted && ack.Reason != "" {
                fmt.Fprintf(os.Stderr, "%s: rejected (%s): %s\n", server, ack.Reason, ack.Message)
            }
        }
    }

    if err != nil {
        fmt.Fprintf(os.Stderr, "%s\n", err.Error())
        os.Exit(exitCodeFor(err))
    }

    if result != nil && result.Version > 0 {
        fmt.Printf("Change committed as version %d\n", result.Version)
    }

    os.Exit(exitSuccess)
}
