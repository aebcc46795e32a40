package routes

import (
    "time"

    . "github.com/cljohnso/terracotta-platform/model"
    "github.com/cljohnso/terracotta-platform/nomad"
)

// ConfigFacade is what the HTTP endpoints need from the node. It hides the
// wiring between the nomad server and the dynamic config service.
type ConfigFacade interface {
    Discover() (*nomad.DiscoverResponse, error)
    Prepare(message nomad.PrepareMessage) *nomad.AcceptRejectResponse
    Commit(message nomad.CommitMessage) *nomad.AcceptRejectResponse
    Rollback(message nomad.RollbackMessage) *nomad.AcceptRejectResponse
    Takeover(message nomad.TakeoverMessage) *nomad.AcceptRejectResponse

    RuntimeNodeContext() *NodeContext
    UpcomingNodeContext() *NodeContext
    IsRestartRequired() bool
    IsActivated() bool
    PrepareActivation(cluster *Cluster, licenseContent string) error
    Restart(delay time.Duration) error
}
