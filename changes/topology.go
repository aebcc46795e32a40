package changes

import (
    "errors"
    "fmt"

    . "github.com/cljohnso/terracotta-platform/model"
)

const (
    TypeNodeAddition = "node-addition"
    TypeNodeRemoval = "node-removal"
)

// NodeAdditionChange attaches a node to an existing stripe. The node
// inherits the stripe's cluster-wide posture from a reference node during
// attachment.
type NodeAdditionChange struct {
    StripeUID string
    Node *Node
}

func (change NodeAdditionChange) Type() string {
    return TypeNodeAddition
}

func (change NodeAdditionChange) CanApply(cluster *Cluster) error {
    _, err := change.Apply(cluster)

    return err
}

func (change NodeAdditionChange) Apply(cluster *Cluster) (*Cluster, error) {
    if cluster == nil {
        return nil, ENotActivated
    }

    if change.Node == nil {
        return nil, errors.New("A node addition change requires a node")
    }

    updated := cluster.Clone()
    stripe := updated.StripeByUID(change.StripeUID)

    if stripe == nil {
        return nil, errors.New(fmt.Sprintf("No stripe with UID %s exists in the cluster", change.StripeUID))
    }

    if updated.ContainsAddress(change.Node.PublicAddress) {
        return nil, errors.New(fmt.Sprintf("A node with address %s is already part of the cluster", change.Node.PublicAddress))
    }

    if err := stripe.AttachNode(change.Node); err != nil {
        return nil, err
    }

    return updated, nil
}

func (change NodeAdditionChange) Summary() string {
    return fmt.Sprintf("Attaching node %s to stripe %s", change.Node.PublicAddress, change.StripeUID)
}

func (change NodeAdditionChange) AppliesAtRuntime() bool {
    return true
}

// NodeRemovalChange detaches the node with the given public address. On the
// detached node itself, the commit resets the local repository and returns
// the node to diagnostic mode.
type NodeRemovalChange struct {
    Address Address
}

func (change NodeRemovalChange) Type() string {
    return TypeNodeRemoval
}

func (change NodeRemovalChange) CanApply(cluster *Cluster) error {
    _, err := change.Apply(cluster)

    return err
}

func (change NodeRemovalChange) Apply(cluster *Cluster) (*Cluster, error) {
    if cluster == nil {
        return nil, ENotActivated
    }

    updated := cluster.Clone()
    stripe, node := updated.NodeByAddress(change.Address)

    if node == nil {
        return nil, errors.New(fmt.Sprintf("No node with address %s exists in the cluster", change.Address))
    }

    if len(stripe.Nodes) == 1 && len(updated.Stripes) == 1 {
        return nil, errors.New("The last node of a cluster cannot be detached")
    }

    stripe.DetachNode(change.Address)

    return updated, nil
}

func (change NodeRemovalChange) Summary() string {
    return fmt.Sprintf("Detaching node %s", change.Address)
}

func (change NodeRemovalChange) AppliesAtRuntime() bool {
    return true
}
