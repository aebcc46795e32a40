package nomad

import (
    "context"
)

// Connector is the transport seam between the coordinator and one nomad
// server. Implementations must honour the context deadline; a server that
// cannot answer in time is treated as unreachable for the current phase.
type Connector interface {
    Discover(ctx context.Context) (*DiscoverResponse, error)
    Prepare(ctx context.Context, message PrepareMessage) (*AcceptRejectResponse, error)
    Commit(ctx context.Context, message CommitMessage) (*AcceptRejectResponse, error)
    Rollback(ctx context.Context, message RollbackMessage) (*AcceptRejectResponse, error)
    Takeover(ctx context.Context, message TakeoverMessage) (*AcceptRejectResponse, error)
}

// LocalConnector drives an in-process server. The protocol and service
// tests use it.
type LocalConnector struct {
    Server *Server
}

func (connector *LocalConnector) Discover(ctx context.Context) (*DiscoverResponse, error) {
    if err := ctx.Err(); err != nil {
        return nil, err
    }

    return connector.Server.Discover()
}

func (connector *LocalConnector) Prepare(ctx context.Context, message PrepareMessage) (*AcceptRejectResponse, error) {
    if err := ctx.Err(); err != nil {
        return nil, err
    }

    return connector.Server.Prepare(message), nil
}

func (connector *LocalConnector) Commit(ctx context.Context, message CommitMessage) (*AcceptRejectResponse, error) {
    if err := ctx.Err(); err != nil {
        return nil, err
    }

    return connector.Server.Commit(message), nil
}

func (connector *LocalConnector) Rollback(ctx context.Context, message RollbackMessage) (*AcceptRejectResponse, error) {
    if err := ctx.Err(); err != nil {
        return nil, err
    }

    return connector.Server.Rollback(message), nil
}

func (connector *LocalConnector) Takeover(ctx context.Context, message TakeoverMessage) (*AcceptRejectResponse, error) {
    if err := ctx.Err(); err != nil {
        return nil, err
    }

    return connector.Server.Takeover(message), nil
}
