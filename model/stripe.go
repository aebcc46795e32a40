package model

import (
    "errors"
    "fmt"
)

var ENodeExists = errors.New("A node with that address is already part of the stripe")
var EEmptyStripe = errors.New("Nodes can only be attached to a non-empty stripe")

type Stripe struct {
    Name string `json:"name"`
    UID string `json:"uid"`
    Nodes []*Node `json:"nodes"`
}

func NewStripe(name string, nodes ...*Node) *Stripe {
    stripe := &Stripe{
        Name: name,
        UID: NewUID(),
        Nodes: make([]*Node, 0, len(nodes)),
    }

    for _, node := range nodes {
        node.StripeUID = stripe.UID
        stripe.Nodes = append(stripe.Nodes, node)
    }

    return stripe
}

func (stripe *Stripe) Clone() *Stripe {
    clone := *stripe
    clone.Nodes = make([]*Node, 0, len(stripe.Nodes))

    for _, node := range stripe.Nodes {
        clone.Nodes = append(clone.Nodes, node.Clone())
    }

    return &clone
}

func (stripe *Stripe) NodeByUID(uid string) *Node {
    for _, node := range stripe.Nodes {
        if node.UID == uid {
            return node
        }
    }

    return nil
}

func (stripe *Stripe) NodeByName(name string) *Node {
    for _, node := range stripe.Nodes {
        if node.Name == name {
            return node
        }
    }

    return nil
}

func (stripe *Stripe) NodeByAddress(address Address) *Node {
    for _, node := range stripe.Nodes {
        if node.PublicAddress == address {
            return node
        }
    }

    return nil
}

// AttachNode adds a node to this stripe. The stripe must already contain at
// least one node, which serves as the reference whose cluster-wide posture
// the new node inherits.
func (stripe *Stripe) AttachNode(node *Node) error {
    if len(stripe.Nodes) == 0 {
        return EEmptyStripe
    }

    if stripe.NodeByAddress(node.PublicAddress) != nil {
        return errors.New(fmt.Sprintf("A node with address %s is already part of stripe %s", node.PublicAddress, stripe.Name))
    }

    attached := node.CloneForAttachment(stripe.Nodes[0])
    attached.StripeUID = stripe.UID
    stripe.Nodes = append(stripe.Nodes, attached)

    return nil
}

// DetachNode removes the node with the given public address. It is idempotent
// and reports whether a removal occurred.
func (stripe *Stripe) DetachNode(address Address) bool {
    for i, node := range stripe.Nodes {
        if node.PublicAddress == address {
            stripe.Nodes = append(stripe.Nodes[:i], stripe.Nodes[i + 1:]...)

            return true
        }
    }

    return false
}
