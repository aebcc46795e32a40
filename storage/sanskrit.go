package storage

import (
    "encoding/binary"
    "encoding/json"
    "errors"
    "fmt"
    "os"
    "path/filepath"
    "time"

    . "github.com/cljohnso/terracotta-platform/error"
    . "github.com/cljohnso/terracotta-platform/logging"
)

const (
    StatePrepared = "PREPARED"
    StateCommitted = "COMMITTED"
    StateRolledBack = "ROLLED_BACK"
)

var recordKeyPrefix = []byte{ 'r' }
var stateKey = []byte{ 'm' }

// ChangeRecord is one entry in the sanskrit journal: a change at a specific
// version together with its lifecycle state and provenance.
type ChangeRecord struct {
    Version uint64 `json:"version"`
    PrevVersionHash string `json:"prevVersionHash,omitempty"`
    State string `json:"state"`
    Change json.RawMessage `json:"change"`
    ResultHash string `json:"resultHash"`
    CreationHost string `json:"creationHost"`
    CreationUser string `json:"creationUser"`
    CreationTimestamp time.Time `json:"creationTimestamp"`
    AppliedHost string `json:"appliedHost,omitempty"`
    AppliedUser string `json:"appliedUser,omitempty"`
    AppliedTimestamp *time.Time `json:"appliedTimestamp,omitempty"`
}

// ServerState is the durable part of the nomad server's bookkeeping. It is
// written in the same atomic batch as the record it belongs to, so a crash
// can never separate an accepted message from its counter bump.
type ServerState struct {
    MutativeMessageCount uint64 `json:"mutativeMessageCount"`
    LastMutationHost string `json:"lastMutationHost"`
    LastMutationUser string `json:"lastMutationUser"`
}

// SanskritJournal is the append-only log of change requests backed by a
// LevelDB database in the repository's sanskrit directory. Every write is a
// synchronous batch: Append and Update do not return before the data is
// durable.
type SanskritJournal struct {
    driver *LevelDBStorageDriver
    path string
    Now func() time.Time
}

func NewSanskritJournal(path string) *SanskritJournal {
    return &SanskritJournal{
        driver: NewLevelDBStorageDriver(path, nil),
        path: path,
        Now: time.Now,
    }
}

func (journal *SanskritJournal) Open() error {
    return journal.driver.Open()
}

func (journal *SanskritJournal) Recover() error {
    return journal.driver.Recover()
}

func (journal *SanskritJournal) Close() error {
    return journal.driver.Close()
}

func recordKey(version uint64) []byte {
    key := make([]byte, len(recordKeyPrefix) + 8)
    copy(key, recordKeyPrefix)
    binary.BigEndian.PutUint64(key[len(recordKeyPrefix):], version)

    return key
}

// Append adds the record for a version beyond every existing record. A
// server that missed a rolled-back version may skip numbers, so versions
// are strictly increasing rather than contiguous.
func (journal *SanskritJournal) Append(record *ChangeRecord, state *ServerState) error {
    latest, err := journal.Latest()

    if err != nil {
        return err
    }

    if record.Version == 0 || (latest != nil && record.Version <= latest.Version) {
        return errors.New(fmt.Sprintf("Journal versions must increase. Version %d is not beyond the latest record", record.Version))
    }

    return journal.write(record, state)
}

// Update rewrites an existing record, typically to move it from PREPARED to
// a terminal state.
func (journal *SanskritJournal) Update(record *ChangeRecord, state *ServerState) error {
    existing, err := journal.FindByVersion(record.Version)

    if err != nil {
        return err
    }

    if existing == nil {
        return errors.New(fmt.Sprintf("No journal record exists for version %d", record.Version))
    }

    return journal.write(record, state)
}

func (journal *SanskritJournal) write(record *ChangeRecord, state *ServerState) error {
    encodedRecord, err := json.Marshal(record)

    if err != nil {
        return err
    }

    encodedState, err := json.Marshal(state)

    if err != nil {
        return err
    }

    batch := NewBatch()
    batch.Put(recordKey(record.Version), encodedRecord)
    batch.Put(stateKey, encodedState)

    if err := journal.driver.Batch(batch, true); err != nil {
        Log.Criticalf("Unable to durably append to the sanskrit journal at %s: %v", journal.path, err.Error())

        return EStorage
    }

    return nil
}

// WriteState durably records the server bookkeeping alone, for messages
// such as a takeover that touch no journal record.
func (journal *SanskritJournal) WriteState(state *ServerState) error {
    encodedState, err := json.Marshal(state)

    if err != nil {
        return err
    }

    batch := NewBatch()
    batch.Put(stateKey, encodedState)

    if err := journal.driver.Batch(batch, true); err != nil {
        Log.Criticalf("Unable to durably write server state to the sanskrit journal at %s: %v", journal.path, err.Error())

        return EStorage
    }

    return nil
}

func (journal *SanskritJournal) FindByVersion(version uint64) (*ChangeRecord, error) {
    values, err := journal.driver.Get([][]byte{ recordKey(version) })

    if err != nil {
        return nil, EStorage
    }

    if values[0] == nil {
        return nil, nil
    }

    var record ChangeRecord

    if err := json.Unmarshal(values[0], &record); err != nil {
        return nil, ECorrupted
    }

    return &record, nil
}

// Latest returns the record with the highest version, or nil for an empty
// journal.
func (journal *SanskritJournal) Latest() (*ChangeRecord, error) {
    records, err := journal.List(1, ^uint64(0))

    if err != nil {
        return nil, err
    }

    if len(records) == 0 {
        return nil, nil
    }

    return records[len(records) - 1], nil
}

// List returns the records for versions in [from, to] in version order.
func (journal *SanskritJournal) List(from uint64, to uint64) ([]*ChangeRecord, error) {
    if to == ^uint64(0) {
        to -= 1
    }

    iter, err := journal.driver.GetRange(recordKey(from), recordKey(to + 1))

    if err != nil {
        return nil, EStorage
    }

    defer iter.Release()

    records := make([]*ChangeRecord, 0)

    for iter.Next() {
        var record ChangeRecord

        if err := json.Unmarshal(iter.Value(), &record); err != nil {
            return nil, ECorrupted
        }

        records = append(records, &record)
    }

    if iter.Error() != nil {
        return nil, EStorage
    }

    return records, nil
}

func (journal *SanskritJournal) State() (*ServerState, error) {
    values, err := journal.driver.Get([][]byte{ stateKey })

    if err != nil {
        return nil, EStorage
    }

    if values[0] == nil {
        return &ServerState{ }, nil
    }

    var state ServerState

    if err := json.Unmarshal(values[0], &state); err != nil {
        return nil, ECorrupted
    }

    return &state, nil
}

// Reset moves the journal database aside into a timestamped backup and
// starts a fresh, empty journal at the same path.
func (journal *SanskritJournal) Reset() error {
    if err := journal.driver.Close(); err != nil {
        return err
    }

    backup := filepath.Join(filepath.Dir(journal.path), BackupName(filepath.Base(journal.path), journal.Now()))
    Log.Infof("Backing up sanskrit journal %s to %s", journal.path, backup)

    if err := os.Rename(journal.path, backup); err != nil {
        RecordStorageError("reset()", journal.path)

        return EStorage
    }

    return journal.driver.Open()
}
