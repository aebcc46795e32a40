package main

import (
    "context"
    "fmt"
    "os"

    "github.com/cljohnso/terracotta-platform/changes"
    . "github.com/cljohnso/terracotta-platform/model"
)

func init() {
    registerCommand("attach", attachNode, attachUsage)
    registerCommand("detach", detachNode, detachUsage)
}

var attachUsage string =
`Usage: configtool attach -s <cluster node> -stripe <stripe name> -node <host:port>

Attaches the node running in diagnostic mode at -node to the named stripe
of the cluster reachable through -s. The new node inherits the stripe's
data directory names and security posture.
`

var detachUsage string =
`Usage: configtool detach -s <cluster node> -node <host:port>

Detaches the node with the given address from the cluster. The detached
node resets its configuration repository and returns to diagnostic mode.
`

func attachNode() {
    if len(*optStripe) == 0 {
        fmt.Fprintf(os.Stderr, "No stripe (-stripe) specified\n")
        os.Exit(exitUserError)
    }

    newNodeAddress := requireNodeAddress()
    addresses := serverAddresses()
    nodeContext := fetchUpcoming(addresses)
    cluster := nodeContext.Cluster

    stripe := cluster.StripeByName(*optStripe)

    if stripe == nil {
        fmt.Fprintf(os.Stderr, "No stripe named %s exists in the cluster\n", *optStripe)
        os.Exit(exitUserError)
    }

    // the joining node describes itself through its diagnostic topology
    apiClient := newAPIClient()
    ctx, cancel := context.WithTimeout(context.Background(), *optTimeout)
    joiningContext, err := apiClient.RuntimeTopology(ctx, newNodeAddress)

    cancel()

    if err != nil {
        fmt.Fprintf(os.Stderr, "Unable to reach the joining node at %s: %s\n", newNodeAddress, err.Error())
        os.Exit(exitIOError)
    }

    joiningNode := joiningContext.Node()

    if joiningNode == nil {
        fmt.Fprintf(os.Stderr, "The node at %s did not report its own configuration\n", newNodeAddress)
        os.Exit(exitIOError)
    }

    change := changes.NodeAdditionChange{ StripeUID: stripe.UID, Node: joiningNode }

    // the joining node takes part in the two-phase change so it persists
    // the activated topology too
    endpoints := append(clusterEndpoints(cluster), newNodeAddress)
    coordinator := newCoordinator(endpoints)
    result, err := coordinator.RunChange(context.Background(), change)

    reportResult(result, err)
}

func detachNode() {
    detachedAddress := requireNodeAddress()
    addresses := serverAddresses()
    nodeContext := fetchUpcoming(addresses)
    cluster := nodeContext.Cluster

    if _, node := cluster.NodeByAddress(detachedAddress); node == nil {
        fmt.Fprintf(os.Stderr, "No node with address %s exists in the cluster\n", detachedAddress)
        os.Exit(exitUserError)
    }

    change := changes.NodeRemovalChange{ Address: detachedAddress }

    coordinator := newCoordinator(clusterEndpoints(cluster))
    result, err := coordinator.RunChange(context.Background(), change)

    reportResult(result, err)
}

func requireNodeAddress() Address {
    if len(*optNode) == 0 {
        fmt.Fprintf(os.Stderr, "No node address (-node) specified\n")
        os.Exit(exitUserError)
    }

    address, err := ParseAddress(*optNode)

    if err != nil {
        fmt.Fprintf(os.Stderr, "%s\n", err.Error())
        os.Exit(exitUserError)
    }

    return address
}
