package model

const (
    FailoverAvailability = "availability"
    FailoverConsistency = "consistency"
)

type FailoverPriority struct {
    Mode string `json:"mode"`
    Voters int `json:"voters,omitempty"`
}

type Cluster struct {
    Name string `json:"name"`
    UID string `json:"uid"`
    FailoverPriority FailoverPriority `json:"failoverPriority"`
    ClientReconnectWindowSeconds uint64 `json:"clientReconnectWindow"`
    ClientLeaseDurationSeconds uint64 `json:"clientLeaseDuration"`
    OffheapResources map[string]uint64 `json:"offheapResources,omitempty"`
    Stripes []*Stripe `json:"stripes"`
}

func NewCluster(name string, stripes ...*Stripe) *Cluster {
    return &Cluster{
        Name: name,
        UID: NewUID(),
        FailoverPriority: FailoverPriority{ Mode: FailoverAvailability },
        ClientReconnectWindowSeconds: DefaultClientReconnectWindowSeconds,
        ClientLeaseDurationSeconds: DefaultClientLeaseDurationSeconds,
        OffheapResources: make(map[string]uint64),
        Stripes: stripes,
    }
}

func (cluster *Cluster) Clone() *Cluster {
    clone := *cluster
    clone.OffheapResources = make(map[string]uint64, len(cluster.OffheapResources))

    for name, size := range cluster.OffheapResources {
        clone.OffheapResources[name] = size
    }

    clone.Stripes = make([]*Stripe, 0, len(cluster.Stripes))

    for _, stripe := range cluster.Stripes {
        clone.Stripes = append(clone.Stripes, stripe.Clone())
    }

    return &clone
}

func (cluster *Cluster) StripeByUID(uid string) *Stripe {
    for _, stripe := range cluster.Stripes {
        if stripe.UID == uid {
            return stripe
        }
    }

    return nil
}

func (cluster *Cluster) StripeByName(name string) *Stripe {
    for _, stripe := range cluster.Stripes {
        if stripe.Name == name {
            return stripe
        }
    }

    return nil
}

func (cluster *Cluster) StripeByIndex(index int) *Stripe {
    if index < 0 || index >= len(cluster.Stripes) {
        return nil
    }

    return cluster.Stripes[index]
}

func (cluster *Cluster) NodeByUID(uid string) (*Stripe, *Node) {
    for _, stripe := range cluster.Stripes {
        if node := stripe.NodeByUID(uid); node != nil {
            return stripe, node
        }
    }

    return nil, nil
}

func (cluster *Cluster) NodeByAddress(address Address) (*Stripe, *Node) {
    for _, stripe := range cluster.Stripes {
        if node := stripe.NodeByAddress(address); node != nil {
            return stripe, node
        }
    }

    return nil, nil
}

func (cluster *Cluster) AllNodes() []*Node {
    nodes := make([]*Node, 0)

    for _, stripe := range cluster.Stripes {
        nodes = append(nodes, stripe.Nodes...)
    }

    return nodes
}

func (cluster *Cluster) NodeCount() int {
    count := 0

    for _, stripe := range cluster.Stripes {
        count += len(stripe.Nodes)
    }

    return count
}

func (cluster *Cluster) ContainsAddress(address Address) bool {
    _, node := cluster.NodeByAddress(address)

    return node != nil
}

// Containment is checked by address first, then by (stripe name, node name)
// for nodes configured before their public address is known.
func (cluster *Cluster) ContainsNode(stripeName string, nodeName string, address Address) bool {
    if !address.IsEmpty() && cluster.ContainsAddress(address) {
        return true
    }

    stripe := cluster.StripeByName(stripeName)

    if stripe == nil {
        return false
    }

    return stripe.NodeByName(nodeName) != nil
}
