package node

import (
    "time"

    . "github.com/cljohnso/terracotta-platform/model"
    "github.com/cljohnso/terracotta-platform/nomad"
)

// ConfigNodeFacade adapts a ConfigNode to the HTTP endpoints.
type ConfigNodeFacade struct {
    node *ConfigNode
}

func (configFacade *ConfigNodeFacade) Discover() (*nomad.DiscoverResponse, error) {
    return configFacade.node.nomadServer.Discover()
}

func (configFacade *ConfigNodeFacade) Prepare(message nomad.PrepareMessage) *nomad.AcceptRejectResponse {
    return configFacade.node.nomadServer.Prepare(message)
}

func (configFacade *ConfigNodeFacade) Commit(message nomad.CommitMessage) *nomad.AcceptRejectResponse {
    return configFacade.node.nomadServer.Commit(message)
}

func (configFacade *ConfigNodeFacade) Rollback(message nomad.RollbackMessage) *nomad.AcceptRejectResponse {
    return configFacade.node.nomadServer.Rollback(message)
}

func (configFacade *ConfigNodeFacade) Takeover(message nomad.TakeoverMessage) *nomad.AcceptRejectResponse {
    return configFacade.node.nomadServer.Takeover(message)
}

func (configFacade *ConfigNodeFacade) RuntimeNodeContext() *NodeContext {
    return configFacade.node.dynamicConfigService.RuntimeNodeContext()
}

func (configFacade *ConfigNodeFacade) UpcomingNodeContext() *NodeContext {
    return configFacade.node.dynamicConfigService.UpcomingNodeContext()
}

func (configFacade *ConfigNodeFacade) IsRestartRequired() bool {
    return configFacade.node.dynamicConfigService.IsRestartRequired()
}

func (configFacade *ConfigNodeFacade) IsActivated() bool {
    return configFacade.node.dynamicConfigService.IsActivated()
}

func (configFacade *ConfigNodeFacade) PrepareActivation(cluster *Cluster, licenseContent string) error {
    return configFacade.node.dynamicConfigService.PrepareActivation(cluster, licenseContent)
}

func (configFacade *ConfigNodeFacade) Restart(delay time.Duration) error {
    return configFacade.node.dynamicConfigService.Restart(delay)
}
