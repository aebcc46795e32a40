package nomad

import (
    "crypto/sha256"
    "encoding/hex"
    "encoding/json"
    "fmt"
    "sync"
    "time"

    "github.com/cljohnso/terracotta-platform/changes"
    . "github.com/cljohnso/terracotta-platform/logging"
    . "github.com/cljohnso/terracotta-platform/model"
    "github.com/cljohnso/terracotta-platform/storage"
)

// Server is the per-node nomad state machine. All mutating messages are
// serialized behind a single mutex and journaled durably before the reply is
// produced, so a crash after the journal write is indistinguishable from a
// lost reply.
type Server struct {
    nodeName string
    journal *storage.SanskritJournal
    configStore *storage.FileConfigStorage
    validator *ClusterValidator
    clock func() time.Time

    lock sync.Mutex
    mode string
    currentVersion uint64
    highestVersion uint64
    mutativeMessageCount uint64
    lastMutationHost string
    lastMutationUser string

    topologyCommittedCBs []func(version uint64, nodeContext *NodeContext, change changes.NomadChange)
}

func NewServer(nodeName string, journal *storage.SanskritJournal, configStore *storage.FileConfigStorage, validator *ClusterValidator) (*Server, error) {
    server := &Server{
        nodeName: nodeName,
        journal: journal,
        configStore: configStore,
        validator: validator,
        clock: time.Now,
        mode: ModeAccepting,
    }

    if err := server.restore(); err != nil {
        return nil, err
    }

    return server, nil
}

// restore rebuilds the in-memory state from the journal. An outstanding
// PREPARED record puts the server back into PREPARED mode so a coordinator
// can finish or roll back the change.
func (server *Server) restore() error {
    state, err := server.journal.State()

    if err != nil {
        return err
    }

    server.mutativeMessageCount = state.MutativeMessageCount
    server.lastMutationHost = state.LastMutationHost
    server.lastMutationUser = state.LastMutationUser

    latest, err := server.journal.Latest()

    if err != nil {
        return err
    }

    if latest == nil {
        return nil
    }

    server.highestVersion = latest.Version

    if latest.State == storage.StatePrepared {
        server.mode = ModePrepared
    }

    records, err := server.journal.List(1, latest.Version)

    if err != nil {
        return err
    }

    for i := len(records) - 1; i >= 0; i -= 1 {
        if records[i].State == storage.StateCommitted {
            server.currentVersion = records[i].Version

            break
        }
    }

    Log.Infof("Nomad server for node %s restored: mode=%s currentVersion=%d highestVersion=%d mutativeMessageCount=%d", server.nodeName, server.mode, server.currentVersion, server.highestVersion, server.mutativeMessageCount)

    return nil
}

func (server *Server) OnTopologyCommitted(cb func(version uint64, nodeContext *NodeContext, change changes.NomadChange)) {
    server.lock.Lock()
    defer server.lock.Unlock()

    server.topologyCommittedCBs = append(server.topologyCommittedCBs, cb)
}

func (server *Server) stateSummary() StateSummary {
    return StateSummary{
        MutativeMessageCount: server.mutativeMessageCount,
        CurrentVersion: server.currentVersion,
        HighestVersion: server.highestVersion,
        Mode: server.mode,
    }
}

func (server *Server) serverState() *storage.ServerState {
    return &storage.ServerState{
        MutativeMessageCount: server.mutativeMessageCount,
        LastMutationHost: server.lastMutationHost,
        LastMutationUser: server.lastMutationUser,
    }
}

// CommittedCluster returns the cluster at the last committed version, or nil
// before activation.
func (server *Server) CommittedCluster() (*Cluster, error) {
    server.lock.Lock()
    defer server.lock.Unlock()

    return server.committedCluster()
}

func (server *Server) committedCluster() (*Cluster, error) {
    if server.currentVersion == 0 {
        return nil, nil
    }

    nodeContext, err := server.configStore.GetConfig(server.currentVersion)

    if err != nil {
        return nil, err
    }

    return nodeContext.Cluster, nil
}

func (server *Server) Discover() (*DiscoverResponse, error) {
    server.lock.Lock()
    defer server.lock.Unlock()

    recordNomadMessage("discover", "accepted")

    response := &DiscoverResponse{
        Mode: server.mode,
        MutativeMessageCount: server.mutativeMessageCount,
        LastMutationHost: server.lastMutationHost,
        LastMutationUser: server.lastMutationUser,
        CurrentVersion: server.currentVersion,
        HighestVersion: server.highestVersion,
    }

    if server.highestVersion > 0 {
        details, err := server.changeDetails(server.highestVersion)

        if err != nil {
            return nil, err
        }

        response.LatestChange = details
    }

    if server.currentVersion > 0 {
        details, err := server.changeDetails(server.currentVersion)

        if err != nil {
            return nil, err
        }

        response.LatestCommittedChange = details
    }

    return response, nil
}

func (server *Server) changeDetails(version uint64) (*ChangeDetails, error) {
    record, err := server.journal.FindByVersion(version)

    if err != nil {
        return nil, err
    }

    if record == nil {
        return nil, nil
    }

    return &ChangeDetails{
        Version: record.Version,
        State: record.State,
        Change: record.Change,
        ResultHash: record.ResultHash,
        CreationHost: record.CreationHost,
        CreationUser: record.CreationUser,
        CreationTimestamp: record.CreationTimestamp,
    }, nil
}

func (server *Server) Prepare(message PrepareMessage) *AcceptRejectResponse {
    server.lock.Lock()
    defer server.lock.Unlock()

    if server.mode != ModeAccepting {
        recordNomadMessage("prepare", "rejected")

        return reject(RejectionWrongMode, "The server has a prepared change outstanding", server.stateSummary())
    }

    if message.ExpectedMutativeMessageCount != server.mutativeMessageCount {
        recordNomadMessage("prepare", "rejected")

        return reject(RejectionStaleCounter, fmt.Sprintf("Expected mutative message count %d but the server is at %d", message.ExpectedMutativeMessageCount, server.mutativeMessageCount), server.stateSummary())
    }

    if message.NewVersion <= server.highestVersion {
        recordNomadMessage("prepare", "rejected")

        return reject(RejectionWrongVersion, fmt.Sprintf("The new version must exceed %d but got %d", server.highestVersion, message.NewVersion), server.stateSummary())
    }

    currentCluster, err := server.committedCluster()

    if err != nil {
        recordNomadMessage("prepare", "rejected")

        return reject(RejectionStorageFailure, err.Error(), server.stateSummary())
    }

    change, err := changes.DecodeChange(message.Change, currentCluster)

    if err != nil {
        recordNomadMessage("prepare", "rejected")

        return reject(RejectionChangeUnapplicable, err.Error(), server.stateSummary())
    }

    updatedCluster, err := change.Apply(currentCluster)

    if err != nil {
        recordNomadMessage("prepare", "rejected")

        return reject(RejectionChangeUnapplicable, err.Error(), server.stateSummary())
    }

    if err := server.validator.Validate(updatedCluster); err != nil {
        recordNomadMessage("prepare", "rejected")

        return reject(RejectionChangeUnapplicable, err.Error(), server.stateSummary())
    }

    nodeContext := server.nodeContextFor(updatedCluster)
    encodedContext, err := json.Marshal(nodeContext)

    if err != nil {
        recordNomadMessage("prepare", "rejected")

        return reject(RejectionStorageFailure, err.Error(), server.stateSummary())
    }

    if err := server.configStore.SaveConfig(message.NewVersion, nodeContext); err != nil {
        recordNomadMessage("prepare", "rejected")

        return reject(RejectionStorageFailure, err.Error(), server.stateSummary())
    }

    record := &storage.ChangeRecord{
        Version: message.NewVersion,
        PrevVersionHash: server.previousHash(),
        State: storage.StatePrepared,
        Change: message.Change,
        ResultHash: hashBytes(encodedContext),
        CreationHost: message.MutationHost,
        CreationUser: message.MutationUser,
        CreationTimestamp: server.clock().UTC(),
    }

    state := server.serverState()
    state.MutativeMessageCount += 1
    state.LastMutationHost = message.MutationHost
    state.LastMutationUser = message.MutationUser

    if err := server.journal.Append(record, state); err != nil {
        recordNomadMessage("prepare", "rejected")

        return reject(RejectionStorageFailure, err.Error(), server.stateSummary())
    }

    server.mode = ModePrepared
    server.highestVersion = message.NewVersion
    server.mutativeMessageCount = state.MutativeMessageCount
    server.lastMutationHost = message.MutationHost
    server.lastMutationUser = message.MutationUser

    recordNomadMessage("prepare", "accepted")
    Log.Infof("Prepared change version %d on node %s: %s", message.NewVersion, server.nodeName, change.Summary())

    return accept(server.stateSummary())
}

func (server *Server) Commit(message CommitMessage) *AcceptRejectResponse {
    server.lock.Lock()

    response, notify := server.commit(message)

    server.lock.Unlock()

    // listener callbacks run outside the lock so subscribers may call back
    // into the server
    if notify != nil {
        notify()
    }

    return response
}

func (server *Server) commit(message CommitMessage) (*AcceptRejectResponse, func()) {
    if server.mode != ModePrepared {
        recordNomadMessage("commit", "rejected")

        return reject(RejectionWrongMode, "The server has no prepared change to commit", server.stateSummary()), nil
    }

    if message.ExpectedMutativeMessageCount != server.mutativeMessageCount {
        recordNomadMessage("commit", "rejected")

        return reject(RejectionStaleCounter, fmt.Sprintf("Expected mutative message count %d but the server is at %d", message.ExpectedMutativeMessageCount, server.mutativeMessageCount), server.stateSummary()), nil
    }

    if message.Version != server.highestVersion {
        recordNomadMessage("commit", "rejected")

        return reject(RejectionWrongVersion, fmt.Sprintf("The prepared change is version %d, not %d", server.highestVersion, message.Version), server.stateSummary()), nil
    }

    record, err := server.journal.FindByVersion(message.Version)

    if err != nil || record == nil {
        recordNomadMessage("commit", "rejected")

        return reject(RejectionStorageFailure, "The prepared record could not be loaded", server.stateSummary()), nil
    }

    appliedAt := server.clock().UTC()
    record.State = storage.StateCommitted
    record.AppliedHost = message.MutationHost
    record.AppliedUser = message.MutationUser
    record.AppliedTimestamp = &appliedAt

    state := server.serverState()
    state.MutativeMessageCount += 1
    state.LastMutationHost = message.MutationHost
    state.LastMutationUser = message.MutationUser

    if err := server.journal.Update(record, state); err != nil {
        recordNomadMessage("commit", "rejected")

        return reject(RejectionStorageFailure, err.Error(), server.stateSummary()), nil
    }

    previousCluster, _ := server.committedCluster()

    server.currentVersion = message.Version
    server.mode = ModeAccepting
    server.mutativeMessageCount = state.MutativeMessageCount
    server.lastMutationHost = message.MutationHost
    server.lastMutationUser = message.MutationUser

    nodeContext, err := server.configStore.GetConfig(message.Version)

    if err != nil {
        // the commit is durable; the listener just cannot be fed
        Log.Criticalf("Committed version %d on node %s but could not reload its topology: %v", message.Version, server.nodeName, err.Error())
        recordNomadMessage("commit", "accepted")

        return accept(server.stateSummary()), nil
    }

    change, err := changes.DecodeChange(record.Change, previousCluster)

    if err != nil {
        Log.Errorf("Committed version %d on node %s but could not decode its change: %v", message.Version, server.nodeName, err.Error())
        recordNomadMessage("commit", "accepted")

        return accept(server.stateSummary()), nil
    }

    callbacks := make([]func(version uint64, nodeContext *NodeContext, change changes.NomadChange), len(server.topologyCommittedCBs))
    copy(callbacks, server.topologyCommittedCBs)

    version := message.Version

    notify := func() {
        for _, cb := range callbacks {
            cb(version, nodeContext.Clone(), change)
        }
    }

    recordNomadMessage("commit", "accepted")
    Log.Infof("Committed change version %d on node %s", message.Version, server.nodeName)

    return accept(server.stateSummary()), notify
}

func (server *Server) Rollback(message RollbackMessage) *AcceptRejectResponse {
    server.lock.Lock()
    defer server.lock.Unlock()

    if server.mode != ModePrepared {
        recordNomadMessage("rollback", "rejected")

        return reject(RejectionWrongMode, "The server has no prepared change to roll back", server.stateSummary())
    }

    if message.ExpectedMutativeMessageCount != server.mutativeMessageCount {
        recordNomadMessage("rollback", "rejected")

        return reject(RejectionStaleCounter, fmt.Sprintf("Expected mutative message count %d but the server is at %d", message.ExpectedMutativeMessageCount, server.mutativeMessageCount), server.stateSummary())
    }

    if message.Version != server.highestVersion {
        recordNomadMessage("rollback", "rejected")

        return reject(RejectionWrongVersion, fmt.Sprintf("The prepared change is version %d, not %d", server.highestVersion, message.Version), server.stateSummary())
    }

    record, err := server.journal.FindByVersion(message.Version)

    if err != nil || record == nil {
        recordNomadMessage("rollback", "rejected")

        return reject(RejectionStorageFailure, "The prepared record could not be loaded", server.stateSummary())
    }

    appliedAt := server.clock().UTC()
    record.State = storage.StateRolledBack
    record.AppliedHost = message.MutationHost
    record.AppliedUser = message.MutationUser
    record.AppliedTimestamp = &appliedAt

    state := server.serverState()
    state.MutativeMessageCount += 1
    state.LastMutationHost = message.MutationHost
    state.LastMutationUser = message.MutationUser

    if err := server.journal.Update(record, state); err != nil {
        recordNomadMessage("rollback", "rejected")

        return reject(RejectionStorageFailure, err.Error(), server.stateSummary())
    }

    if err := server.configStore.DeleteConfig(message.Version); err != nil {
        Log.Errorf("Rolled back version %d on node %s but could not remove its topology snapshot: %v", message.Version, server.nodeName, err.Error())
    }

    server.mode = ModeAccepting
    server.mutativeMessageCount = state.MutativeMessageCount
    server.lastMutationHost = message.MutationHost
    server.lastMutationUser = message.MutationUser

    recordNomadMessage("rollback", "accepted")
    Log.Infof("Rolled back change version %d on node %s", message.Version, server.nodeName)

    return accept(server.stateSummary())
}

// Takeover lets a new coordinator fence previous ones. It bumps the counter
// and records the new coordinator identity without touching versions or
// mode.
func (server *Server) Takeover(message TakeoverMessage) *AcceptRejectResponse {
    server.lock.Lock()
    defer server.lock.Unlock()

    if message.ExpectedMutativeMessageCount != server.mutativeMessageCount {
        recordNomadMessage("takeover", "rejected")

        return reject(RejectionStaleCounter, fmt.Sprintf("Expected mutative message count %d but the server is at %d", message.ExpectedMutativeMessageCount, server.mutativeMessageCount), server.stateSummary())
    }

    state := server.serverState()
    state.MutativeMessageCount += 1
    state.LastMutationHost = message.MutationHost
    state.LastMutationUser = message.MutationUser

    if err := server.journal.WriteState(state); err != nil {
        recordNomadMessage("takeover", "rejected")

        return reject(RejectionStorageFailure, err.Error(), server.stateSummary())
    }

    server.mutativeMessageCount = state.MutativeMessageCount
    server.lastMutationHost = message.MutationHost
    server.lastMutationUser = message.MutationUser

    recordNomadMessage("takeover", "accepted")

    return accept(server.stateSummary())
}

func (server *Server) previousHash() string {
    if server.highestVersion == 0 {
        return ""
    }

    record, err := server.journal.FindByVersion(server.highestVersion)

    if err != nil || record == nil {
        return ""
    }

    return record.ResultHash
}

// nodeContextFor locates this server's node in the updated cluster. A
// detach change may have removed the node, in which case the context keeps
// the names so the caller can detect the removal.
func (server *Server) nodeContextFor(cluster *Cluster) *NodeContext {
    for _, stripe := range cluster.Stripes {
        if node := stripe.NodeByName(server.nodeName); node != nil {
            return NewNodeContext(cluster, stripe.UID, node.UID)
        }
    }

    return &NodeContext{ Cluster: cluster, NodeName: server.nodeName }
}

func hashBytes(data []byte) string {
    sum := sha256.Sum256(data)

    return hex.EncodeToString(sum[:])
}
