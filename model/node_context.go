package model

type NodeContext struct {
    Cluster *Cluster `json:"cluster"`
    StripeUID string `json:"stripeUID,omitempty"`
    NodeUID string `json:"nodeUID,omitempty"`
    StripeName string `json:"stripeName,omitempty"`
    NodeName string `json:"nodeName,omitempty"`
}

func NewNodeContext(cluster *Cluster, stripeUID string, nodeUID string) *NodeContext {
    nodeContext := &NodeContext{
        Cluster: cluster,
        StripeUID: stripeUID,
        NodeUID: nodeUID,
    }

    if stripe, node := nodeContext.resolve(); node != nil {
        nodeContext.StripeName = stripe.Name
        nodeContext.NodeName = node.Name
    }

    return nodeContext
}

func (nodeContext *NodeContext) Clone() *NodeContext {
    clone := *nodeContext
    clone.Cluster = nodeContext.Cluster.Clone()

    return &clone
}

func (nodeContext *NodeContext) resolve() (*Stripe, *Node) {
    if nodeContext.StripeUID != "" && nodeContext.NodeUID != "" {
        stripe := nodeContext.Cluster.StripeByUID(nodeContext.StripeUID)

        if stripe != nil {
            if node := stripe.NodeByUID(nodeContext.NodeUID); node != nil {
                return stripe, node
            }
        }
    }

    // name fallback for topologies persisted before UIDs existed
    stripe := nodeContext.Cluster.StripeByName(nodeContext.StripeName)

    if stripe == nil {
        return nil, nil
    }

    return stripe, stripe.NodeByName(nodeContext.NodeName)
}

func (nodeContext *NodeContext) Stripe() *Stripe {
    stripe, _ := nodeContext.resolve()

    return stripe
}

func (nodeContext *NodeContext) Node() *Node {
    _, node := nodeContext.resolve()

    return node
}

// WithCluster produces a context pointing at the same node within a new
// cluster snapshot. The node may no longer exist there, for example after a
// detach change removed it.
func (nodeContext *NodeContext) WithCluster(cluster *Cluster) *NodeContext {
    return &NodeContext{
        Cluster: cluster,
        StripeUID: nodeContext.StripeUID,
        NodeUID: nodeContext.NodeUID,
        StripeName: nodeContext.StripeName,
        NodeName: nodeContext.NodeName,
    }
}
