package model

import (
    "errors"
    "fmt"
)

const (
    ScopeCluster = "cluster"
    ScopeStripe = "stripe"
    ScopeNode = "node"
)

// Applicability names the part of the cluster a configuration entry or
// change targets. Stripe and node scopes are addressed by UID; the V1
// persisted form used stripe index and node name instead and is upgraded on
// read by the change codec.
type Applicability struct {
    Scope string `json:"scope"`
    StripeUID string `json:"stripeUID,omitempty"`
    NodeUID string `json:"nodeUID,omitempty"`
}

func ClusterApplicability() Applicability {
    return Applicability{ Scope: ScopeCluster }
}

func StripeApplicability(stripeUID string) Applicability {
    return Applicability{ Scope: ScopeStripe, StripeUID: stripeUID }
}

func NodeApplicability(stripeUID string, nodeUID string) Applicability {
    return Applicability{ Scope: ScopeNode, StripeUID: stripeUID, NodeUID: nodeUID }
}

func (applicability Applicability) Validate(cluster *Cluster) error {
    switch applicability.Scope {
    case ScopeCluster:
        return nil
    case ScopeStripe:
        if cluster.StripeByUID(applicability.StripeUID) == nil {
            return errors.New(fmt.Sprintf("No stripe with UID %s exists in the cluster", applicability.StripeUID))
        }

        return nil
    case ScopeNode:
        if _, node := cluster.NodeByUID(applicability.NodeUID); node == nil {
            return errors.New(fmt.Sprintf("No node with UID %s exists in the cluster", applicability.NodeUID))
        }

        return nil
    default:
        return errors.New(fmt.Sprintf("%s is not a valid applicability scope", applicability.Scope))
    }
}
