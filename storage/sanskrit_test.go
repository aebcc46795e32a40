package storage_test

import (
    "encoding/json"
    "io/ioutil"
    "os"
    "path/filepath"
    "strings"
    "time"

    . "github.com/cljohnso/terracotta-platform/storage"

    . "github.com/onsi/ginkgo"
    . "github.com/onsi/gomega"
)

func testRecord(version uint64) *ChangeRecord {
    return &ChangeRecord{
        Version: version,
        State: StatePrepared,
        Change: json.RawMessage(`{"version":"v2","type":"format-upgrade","body":{"from":1,"to":2}}`),
        ResultHash: "hash",
        CreationHost: "host1",
        CreationUser: "user1",
        CreationTimestamp: time.Now().UTC(),
    }
}

var _ = Describe("SanskritJournal", func() {
    var workspace string
    var journal *SanskritJournal

    BeforeEach(func() {
        var err error
        workspace, err = ioutil.TempDir("", "sanskrit-test-")

        Expect(err).Should(BeNil())

        journal = NewSanskritJournal(filepath.Join(workspace, "sanskrit"))

        Expect(journal.Open()).Should(BeNil())
    })

    AfterEach(func() {
        journal.Close()
        os.RemoveAll(workspace)
    })

    It("should start empty", func() {
        latest, err := journal.Latest()

        Expect(err).Should(BeNil())
        Expect(latest).Should(BeNil())

        state, err := journal.State()

        Expect(err).Should(BeNil())
        Expect(state.MutativeMessageCount).Should(Equal(uint64(0)))
    })

    Describe("#Append", func() {
        It("should persist the record and the server state together", func() {
            state := &ServerState{ MutativeMessageCount: 1, LastMutationHost: "host1", LastMutationUser: "user1" }

            Expect(journal.Append(testRecord(1), state)).Should(BeNil())

            latest, err := journal.Latest()

            Expect(err).Should(BeNil())
            Expect(latest.Version).Should(Equal(uint64(1)))
            Expect(latest.State).Should(Equal(StatePrepared))

            loadedState, err := journal.State()

            Expect(err).Should(BeNil())
            Expect(loadedState.MutativeMessageCount).Should(Equal(uint64(1)))
            Expect(loadedState.LastMutationHost).Should(Equal("host1"))
        })

        It("should refuse a version at or below the latest record", func() {
            state := &ServerState{ MutativeMessageCount: 1 }

            Expect(journal.Append(testRecord(1), state)).Should(BeNil())
            Expect(journal.Append(testRecord(1), state)).ShouldNot(BeNil())

            Expect(journal.Append(testRecord(3), state)).Should(BeNil())
        })
    })

    Describe("#Update", func() {
        It("should move a record to a terminal state", func() {
            state := &ServerState{ MutativeMessageCount: 1 }

            Expect(journal.Append(testRecord(1), state)).Should(BeNil())

            record, err := journal.FindByVersion(1)

            Expect(err).Should(BeNil())

            appliedAt := time.Now().UTC()
            record.State = StateCommitted
            record.AppliedHost = "host2"
            record.AppliedTimestamp = &appliedAt
            state.MutativeMessageCount = 2

            Expect(journal.Update(record, state)).Should(BeNil())

            updated, err := journal.FindByVersion(1)

            Expect(err).Should(BeNil())
            Expect(updated.State).Should(Equal(StateCommitted))
            Expect(updated.AppliedHost).Should(Equal("host2"))
        })

        It("should refuse to update a record that does not exist", func() {
            Expect(journal.Update(testRecord(9), &ServerState{ })).ShouldNot(BeNil())
        })
    })

    Describe("#List", func() {
        It("should return records in version order", func() {
            state := &ServerState{ }

            for version := uint64(1); version <= 5; version += 1 {
                Expect(journal.Append(testRecord(version), state)).Should(BeNil())
            }

            records, err := journal.List(2, 4)

            Expect(err).Should(BeNil())
            Expect(len(records)).Should(Equal(3))
            Expect(records[0].Version).Should(Equal(uint64(2)))
            Expect(records[2].Version).Should(Equal(uint64(4)))
        })
    })

    It("should restore its contents after a close and reopen", func() {
        state := &ServerState{ MutativeMessageCount: 3 }

        Expect(journal.Append(testRecord(1), state)).Should(BeNil())
        Expect(journal.Close()).Should(BeNil())

        reopened := NewSanskritJournal(filepath.Join(workspace, "sanskrit"))

        Expect(reopened.Open()).Should(BeNil())

        defer reopened.Close()

        latest, err := reopened.Latest()

        Expect(err).Should(BeNil())
        Expect(latest.Version).Should(Equal(uint64(1)))

        loadedState, err := reopened.State()

        Expect(err).Should(BeNil())
        Expect(loadedState.MutativeMessageCount).Should(Equal(uint64(3)))
    })

    Describe("#Reset", func() {
        It("should back up the journal and start empty", func() {
            Expect(journal.Append(testRecord(1), &ServerState{ })).Should(BeNil())
            Expect(journal.Reset()).Should(BeNil())

            latest, err := journal.Latest()

            Expect(err).Should(BeNil())
            Expect(latest).Should(BeNil())

            entries, err := ioutil.ReadDir(workspace)

            Expect(err).Should(BeNil())

            foundBackup := false

            for _, entry := range entries {
                if strings.HasPrefix(entry.Name(), "backup-sanskrit-") {
                    foundBackup = true
                }
            }

            Expect(foundBackup).Should(BeTrue())
        })
    })
})
