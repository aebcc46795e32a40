package nomad

import (
    "bytes"
    "context"
    "fmt"
    "sync"
    "time"

    "github.com/cljohnso/terracotta-platform/changes"
    . "github.com/cljohnso/terracotta-platform/error"
    . "github.com/cljohnso/terracotta-platform/logging"
)

const DefaultCommitRetries = 5

// Endpoint pairs a server's address with the transport used to reach it.
type Endpoint struct {
    Name string
    Connector Connector
}

// ServerAck is the per-server outcome of one protocol phase. Every error is
// retained so the operator sees the full divergence, never a generic
// failure.
type ServerAck struct {
    Server string
    Accepted bool
    Reason string
    Message string
    Err error
}

type Result struct {
    Success bool
    Version uint64
    PerServerAck map[string]*ServerAck
    Divergence map[string]string
}

// Client drives a set of nomad servers through the two-phase change
// protocol: discover, consistency check, takeover, prepare, then commit or
// rollback. One Client coordinates one change at a time.
type Client struct {
    Servers []Endpoint
    MutationHost string
    MutationUser string
    Timeout time.Duration
    RetryInterval time.Duration
    Envelope time.Duration
    Force bool
    CommitRetries int

    mu sync.Mutex
    nextOperationID uint64
    operationCancellers map[uint64]func()
}

func NewClient(servers []Endpoint, mutationHost string, mutationUser string) *Client {
    return &Client{
        Servers: servers,
        MutationHost: mutationHost,
        MutationUser: mutationUser,
        Timeout: time.Second * 10,
        RetryInterval: time.Second,
        Envelope: time.Minute * 2,
        CommitRetries: DefaultCommitRetries,
        operationCancellers: make(map[uint64]func(), 0),
    }
}

func (client *Client) newOperation(ctx context.Context) (uint64, context.Context) {
    client.mu.Lock()
    defer client.mu.Unlock()

    var id uint64 = client.nextOperationID
    client.nextOperationID++

    ctxDeadline, cancel := context.WithTimeout(ctx, client.Timeout)

    client.operationCancellers[id] = cancel

    return id, ctxDeadline
}

func (client *Client) cancelOperation(id uint64) {
    client.mu.Lock()
    defer client.mu.Unlock()

    if cancel, ok := client.operationCancellers[id]; ok {
        cancel()
        delete(client.operationCancellers, id)
    }
}

func (client *Client) CancelAll() {
    client.mu.Lock()
    defer client.mu.Unlock()

    for id, cancel := range client.operationCancellers {
        cancel()
        delete(client.operationCancellers, id)
    }
}

type discovery struct {
    responses map[string]*DiscoverResponse
    unreachable map[string]error
}

type discoverResult struct {
    server string
    response *DiscoverResponse
    err error
}

// discoverAll queries every server concurrently. Each request carries its
// own deadline, so one slow server cannot stall the sweep.
func (client *Client) discoverAll(ctx context.Context) *discovery {
    var results chan discoverResult = make(chan discoverResult, len(client.Servers))

    opID, ctxDeadline := client.newOperation(ctx)

    for _, endpoint := range client.Servers {
        go func(endpoint Endpoint) {
            response, err := endpoint.Connector.Discover(ctxDeadline)

            if err != nil {
                Log.Errorf("Unable to discover nomad state at %s: %v", endpoint.Name, err.Error())
            }

            results <- discoverResult{ server: endpoint.Name, response: response, err: err }
        }(endpoint)
    }

    result := &discovery{
        responses: make(map[string]*DiscoverResponse),
        unreachable: make(map[string]error),
    }

    for i := 0; i < len(client.Servers); i += 1 {
        r := <-results

        if r.err != nil {
            result.unreachable[r.server] = r.err
        } else {
            result.responses[r.server] = r.response
        }
    }

    client.cancelOperation(opID)

    return result
}

type phaseResult struct {
    server string
    response *AcceptRejectResponse
    err error
}

// runPhase sends one message concurrently to the given endpoints and
// collects every acknowledgement.
func (client *Client) runPhase(ctx context.Context, endpoints []Endpoint, send func(ctx context.Context, endpoint Endpoint) (*AcceptRejectResponse, error)) map[string]*ServerAck {
    var results chan phaseResult = make(chan phaseResult, len(endpoints))

    opID, ctxDeadline := client.newOperation(ctx)

    for _, endpoint := range endpoints {
        go func(endpoint Endpoint) {
            response, err := send(ctxDeadline, endpoint)

            results <- phaseResult{ server: endpoint.Name, response: response, err: err }
        }(endpoint)
    }

    acks := make(map[string]*ServerAck, len(endpoints))

    for i := 0; i < len(endpoints); i += 1 {
        r := <-results
        ack := &ServerAck{ Server: r.server, Err: r.err }

        if r.response != nil {
            ack.Accepted = r.response.Accepted
            ack.Reason = r.response.RejectionReason
            ack.Message = r.response.RejectionMessage
        }

        acks[r.server] = ack
    }

    client.cancelOperation(opID)

    return acks
}

func (client *Client) reachable(disc *discovery) []Endpoint {
    endpoints := make([]Endpoint, 0, len(client.Servers))

    for _, endpoint := range client.Servers {
        if _, ok := disc.responses[endpoint.Name]; ok {
            endpoints = append(endpoints, endpoint)
        }
    }

    return endpoints
}

// checkConsistency verifies that every reachable server reports the same
// committed version and the same latest committed change. Highest versions
// may legitimately differ after a rollback and are not compared. Timestamps
// are server-local and excluded from the comparison.
func checkConsistency(disc *discovery) map[string]string {
    divergence := make(map[string]string)
    var reference *DiscoverResponse
    var referenceServer string

    for server, response := range disc.responses {
        if reference == nil {
            reference = response
            referenceServer = server

            continue
        }

        if response.CurrentVersion != reference.CurrentVersion {
            divergence[server] = fmt.Sprintf("reports committed version %d but %s reports %d", response.CurrentVersion, referenceServer, reference.CurrentVersion)

            continue
        }

        if !sameChangeDetails(response.LatestCommittedChange, reference.LatestCommittedChange) {
            divergence[server] = fmt.Sprintf("reports a different latest committed change than %s", referenceServer)
        }
    }

    if len(divergence) == 0 {
        return nil
    }

    for server, response := range disc.responses {
        if _, ok := divergence[server]; !ok {
            divergence[server] = fmt.Sprintf("reports committed version %d", response.CurrentVersion)
        }
    }

    return divergence
}

// sameChangeDetails compares the change two servers hold for one version.
// The result hash is a per-node digest of that node's own topology snapshot
// and legitimately differs between servers, so the change bytes are compared
// instead.
func sameChangeDetails(a *ChangeDetails, b *ChangeDetails) bool {
    if a == nil || b == nil {
        return a == b
    }

    return a.Version == b.Version &&
        a.State == b.State &&
        a.CreationHost == b.CreationHost &&
        a.CreationUser == b.CreationUser &&
        bytes.Equal(a.Change, b.Change)
}

func anyPrepared(disc *discovery) bool {
    for _, response := range disc.responses {
        if response.Mode == ModePrepared {
            return true
        }
    }

    return false
}

// RunChange drives one change through prepare and commit on every server.
func (client *Client) RunChange(ctx context.Context, change changes.NomadChange) (*Result, error) {
    encodedChange, err := changes.EncodeChange(change)

    if err != nil {
        return nil, EInvalidInput
    }

    ctx, cancel := context.WithTimeout(ctx, client.Envelope)

    defer cancel()

    result := &Result{ PerServerAck: make(map[string]*ServerAck) }
    disc := client.discoverAll(ctx)

    for server, discoverErr := range disc.unreachable {
        result.PerServerAck[server] = &ServerAck{ Server: server, Err: discoverErr }
    }

    if len(disc.unreachable) > 0 && !client.Force {
        return result, EUnreachable
    }

    if len(disc.responses) == 0 {
        return result, EUnreachable
    }

    if divergence := checkConsistency(disc); divergence != nil {
        result.Divergence = divergence

        return result, EClusterInconsistent
    }

    if anyPrepared(disc) {
        return result, EWrongMode
    }

    endpoints := client.reachable(disc)

    // highest versions can differ after rollbacks; the new version must be
    // beyond every server's history
    var highestVersion uint64

    for _, response := range disc.responses {
        if response.HighestVersion > highestVersion {
            highestVersion = response.HighestVersion
        }
    }

    newVersion := highestVersion + 1

    // fence any previous coordinator before mutating
    counters, err := client.fence(ctx, endpoints, disc, result.PerServerAck)

    if err != nil {
        return result, err
    }

    Log.Infof("Preparing change version %d on %d servers: %s", newVersion, len(endpoints), change.Summary())

    prepareAcks := client.runPhase(ctx, endpoints, func(ctx context.Context, endpoint Endpoint) (*AcceptRejectResponse, error) {
        return endpoint.Connector.Prepare(ctx, PrepareMessage{
            ExpectedMutativeMessageCount: counters[endpoint.Name],
            NewVersion: newVersion,
            Change: encodedChange,
            MutationHost: client.MutationHost,
            MutationUser: client.MutationUser,
        })
    })

    prepared := make([]Endpoint, 0, len(endpoints))
    prepareFailed := false

    for _, endpoint := range endpoints {
        ack := prepareAcks[endpoint.Name]
        result.PerServerAck[endpoint.Name] = ack

        if ack.Err != nil || !ack.Accepted {
            prepareFailed = true
        } else {
            counters[endpoint.Name] += 1
            prepared = append(prepared, endpoint)
        }
    }

    if prepareFailed {
        Log.Errorf("Prepare of version %d was rejected. Rolling back %d prepared servers", newVersion, len(prepared))
        client.rollbackAll(ctx, prepared, newVersion, counters, result.PerServerAck)

        return result, EPrepareFailed
    }

    commitFailed := false

    commitAcks := client.runPhase(ctx, endpoints, func(ctx context.Context, endpoint Endpoint) (*AcceptRejectResponse, error) {
        return client.commitWithRetry(ctx, endpoint, newVersion, counters[endpoint.Name])
    })

    for _, endpoint := range endpoints {
        ack := commitAcks[endpoint.Name]
        result.PerServerAck[endpoint.Name] = ack

        if ack.Err != nil || !ack.Accepted {
            commitFailed = true
        }
    }

    if commitFailed {
        // prepare is durable everywhere, so the change stays recoverable:
        // a later run will find the PREPARED servers and finish the commit
        return result, ETwoPhaseCommitFailed
    }

    result.Success = true
    result.Version = newVersion

    return result, nil
}

// fence sends a takeover to every endpoint and returns the fresh counters.
func (client *Client) fence(ctx context.Context, endpoints []Endpoint, disc *discovery, resultAcks map[string]*ServerAck) (map[string]uint64, error) {
    counters := make(map[string]uint64, len(endpoints))
    takeoverAcks := client.runPhase(ctx, endpoints, func(ctx context.Context, endpoint Endpoint) (*AcceptRejectResponse, error) {
        return endpoint.Connector.Takeover(ctx, TakeoverMessage{
            ExpectedMutativeMessageCount: disc.responses[endpoint.Name].MutativeMessageCount,
            MutationHost: client.MutationHost,
            MutationUser: client.MutationUser,
        })
    })

    var failed error

    for _, endpoint := range endpoints {
        ack := takeoverAcks[endpoint.Name]
        resultAcks[endpoint.Name] = ack

        if ack.Err != nil {
            failed = EUnreachable

            continue
        }

        if !ack.Accepted {
            failed = ECounterMismatch

            continue
        }

        counters[endpoint.Name] = disc.responses[endpoint.Name].MutativeMessageCount + 1
    }

    if failed != nil {
        return nil, failed
    }

    return counters, nil
}

func (client *Client) rollbackAll(ctx context.Context, endpoints []Endpoint, version uint64, counters map[string]uint64, resultAcks map[string]*ServerAck) {
    rollbackAcks := client.runPhase(ctx, endpoints, func(ctx context.Context, endpoint Endpoint) (*AcceptRejectResponse, error) {
        return endpoint.Connector.Rollback(ctx, RollbackMessage{
            ExpectedMutativeMessageCount: counters[endpoint.Name],
            Version: version,
            MutationHost: client.MutationHost,
            MutationUser: client.MutationUser,
        })
    })

    for server, ack := range rollbackAcks {
        if ack.Err != nil || !ack.Accepted {
            Log.Errorf("Unable to roll back prepared change version %d at %s. The change must be repaired by a later run", version, server)
        }

        resultAcks[server] = ack
    }
}

// commitWithRetry retries a failing commit with exponential backoff. Before
// each retry the server is re-discovered so the expected counter tracks any
// accepted-but-unacknowledged attempt.
func (client *Client) commitWithRetry(ctx context.Context, endpoint Endpoint, version uint64, expectedCount uint64) (*AcceptRejectResponse, error) {
    backoff := client.RetryInterval
    var response *AcceptRejectResponse
    var err error

    for attempt := 0; attempt <= client.CommitRetries; attempt += 1 {
        if attempt > 0 {
            select {
            case <-ctx.Done():
                return response, ctx.Err()
            case <-time.After(backoff):
            }

            backoff *= 2

            discoverResponse, discoverErr := endpoint.Connector.Discover(ctx)

            if discoverErr != nil {
                err = discoverErr

                continue
            }

            if discoverResponse.Mode == ModeAccepting && discoverResponse.CurrentVersion == version {
                // a previous attempt was accepted but the reply was lost
                return accept(StateSummary{
                    MutativeMessageCount: discoverResponse.MutativeMessageCount,
                    CurrentVersion: discoverResponse.CurrentVersion,
                    HighestVersion: discoverResponse.HighestVersion,
                    Mode: discoverResponse.Mode,
                }), nil
            }

            expectedCount = discoverResponse.MutativeMessageCount
        }

        response, err = endpoint.Connector.Commit(ctx, CommitMessage{
            ExpectedMutativeMessageCount: expectedCount,
            Version: version,
            MutationHost: client.MutationHost,
            MutationUser: client.MutationUser,
        })

        if err == nil && response.Accepted {
            return response, nil
        }

        if err != nil {
            Log.Errorf("Commit of version %d at %s failed: %v. Retrying in %v", version, endpoint.Name, err.Error(), backoff)
        } else {
            Log.Errorf("Commit of version %d at %s was rejected (%s): %s. Retrying in %v", version, endpoint.Name, response.RejectionReason, response.RejectionMessage, backoff)
        }
    }

    return response, err
}

// Repair resolves an incomplete change left behind by a failed coordinator
// run. The prepared change is committed when any server already committed
// it, or when every server holds the same prepared change; otherwise it is
// rolled back.
func (client *Client) Repair(ctx context.Context) (*Result, error) {
    ctx, cancel := context.WithTimeout(ctx, client.Envelope)

    defer cancel()

    result := &Result{ PerServerAck: make(map[string]*ServerAck) }
    disc := client.discoverAll(ctx)

    for server, discoverErr := range disc.unreachable {
        result.PerServerAck[server] = &ServerAck{ Server: server, Err: discoverErr }
    }

    if len(disc.unreachable) > 0 && !client.Force {
        return result, EUnreachable
    }

    var preparedVersion uint64
    preparedServers := make(map[string]bool)

    for server, response := range disc.responses {
        if response.Mode == ModePrepared {
            preparedServers[server] = true

            if response.HighestVersion > preparedVersion {
                preparedVersion = response.HighestVersion
            }
        }
    }

    if len(preparedServers) == 0 {
        result.Success = true

        return result, nil
    }

    shouldCommit := client.repairShouldCommit(disc, preparedVersion)

    endpoints := make([]Endpoint, 0, len(preparedServers))

    for _, endpoint := range client.Servers {
        if preparedServers[endpoint.Name] {
            endpoints = append(endpoints, endpoint)
        }
    }

    counters, err := client.fence(ctx, endpoints, disc, result.PerServerAck)

    if err != nil {
        return result, err
    }

    var acks map[string]*ServerAck

    if shouldCommit {
        Log.Infof("Repair: committing prepared change version %d on %d servers", preparedVersion, len(endpoints))
        acks = client.runPhase(ctx, endpoints, func(ctx context.Context, endpoint Endpoint) (*AcceptRejectResponse, error) {
            return client.commitWithRetry(ctx, endpoint, preparedVersion, counters[endpoint.Name])
        })
    } else {
        Log.Infof("Repair: rolling back prepared change version %d on %d servers", preparedVersion, len(endpoints))
        acks = client.runPhase(ctx, endpoints, func(ctx context.Context, endpoint Endpoint) (*AcceptRejectResponse, error) {
            return endpoint.Connector.Rollback(ctx, RollbackMessage{
                ExpectedMutativeMessageCount: counters[endpoint.Name],
                Version: preparedVersion,
                MutationHost: client.MutationHost,
                MutationUser: client.MutationUser,
            })
        })
    }

    failed := false

    for server, ack := range acks {
        result.PerServerAck[server] = ack

        if ack.Err != nil || !ack.Accepted {
            failed = true
        }
    }

    if failed {
        return result, ETwoPhaseCommitFailed
    }

    result.Success = true
    result.Version = preparedVersion

    return result, nil
}

func (client *Client) repairShouldCommit(disc *discovery, preparedVersion uint64) bool {
    // any server that already committed the version decides the outcome
    for _, response := range disc.responses {
        if response.CurrentVersion == preparedVersion {
            return true
        }
    }

    // otherwise commit only a change every server prepared identically
    var referenceChange []byte

    for _, response := range disc.responses {
        if response.Mode != ModePrepared || response.HighestVersion != preparedVersion || response.LatestChange == nil {
            return false
        }

        if referenceChange == nil {
            referenceChange = response.LatestChange.Change
        } else if !bytes.Equal(referenceChange, response.LatestChange.Change) {
            return false
        }
    }

    return true
}
