package nomad_test

import (
    "github.com/cljohnso/terracotta-platform/changes"
    . "github.com/cljohnso/terracotta-platform/model"
    . "github.com/cljohnso/terracotta-platform/nomad"
    "github.com/cljohnso/terracotta-platform/storage"

    . "github.com/onsi/ginkgo"
    . "github.com/onsi/gomega"
)

var _ = Describe("Server", func() {
    var env *serverEnv
    var cluster *Cluster

    BeforeEach(func() {
        env = newServerEnv("node-1")
        cluster = twoNodeCluster()
    })

    AfterEach(func() {
        env.cleanup()
    })

    Describe("#Discover", func() {
        It("should describe a fresh server", func() {
            response, err := env.server.Discover()

            Expect(err).Should(BeNil())
            Expect(response.Mode).Should(Equal(ModeAccepting))
            Expect(response.MutativeMessageCount).Should(Equal(uint64(0)))
            Expect(response.CurrentVersion).Should(Equal(uint64(0)))
            Expect(response.HighestVersion).Should(Equal(uint64(0)))
            Expect(response.LatestChange).Should(BeNil())
        })

        It("should not bump the mutative message count", func() {
            env.server.Discover()
            env.server.Discover()

            response, err := env.server.Discover()

            Expect(err).Should(BeNil())
            Expect(response.MutativeMessageCount).Should(Equal(uint64(0)))
        })
    })

    Describe("#Prepare", func() {
        It("should move the server into prepared mode and persist the snapshot", func() {
            response := env.server.Prepare(PrepareMessage{
                ExpectedMutativeMessageCount: 0,
                NewVersion: 1,
                Change: encodeChange(changes.ClusterActivationChange{ Cluster: cluster }),
                MutationHost: "coordinator-host",
                MutationUser: "operator",
            })

            Expect(response.Accepted).Should(BeTrue())
            Expect(response.CurrentState.Mode).Should(Equal(ModePrepared))
            Expect(response.CurrentState.MutativeMessageCount).Should(Equal(uint64(1)))
            Expect(response.CurrentState.HighestVersion).Should(Equal(uint64(1)))
            Expect(response.CurrentState.CurrentVersion).Should(Equal(uint64(0)))

            saved, err := env.configStore.GetConfig(1)

            Expect(err).Should(BeNil())
            Expect(saved.Cluster.Name).Should(Equal("test-cluster"))
            Expect(saved.NodeName).Should(Equal("node-1"))
        })

        It("should reject a stale counter without bumping it", func() {
            env.activate(cluster)

            response := env.server.Prepare(PrepareMessage{
                ExpectedMutativeMessageCount: 0,
                NewVersion: 2,
                Change: encodeChange(changes.FormatUpgradeChange{ FromVersion: 1, ToVersion: 2 }),
            })

            Expect(response.Accepted).Should(BeFalse())
            Expect(response.RejectionReason).Should(Equal(RejectionStaleCounter))
            Expect(response.CurrentState.MutativeMessageCount).Should(Equal(uint64(2)))
        })

        It("should reject a version that does not advance", func() {
            env.activate(cluster)

            response := env.server.Prepare(PrepareMessage{
                ExpectedMutativeMessageCount: 2,
                NewVersion: 1,
                Change: encodeChange(changes.FormatUpgradeChange{ FromVersion: 1, ToVersion: 2 }),
            })

            Expect(response.Accepted).Should(BeFalse())
            Expect(response.RejectionReason).Should(Equal(RejectionWrongVersion))
        })

        It("should reject a change that cannot apply", func() {
            env.activate(cluster)

            // a second activation is not applicable to an activated node
            response := env.server.Prepare(PrepareMessage{
                ExpectedMutativeMessageCount: 2,
                NewVersion: 2,
                Change: encodeChange(changes.ClusterActivationChange{ Cluster: cluster }),
            })

            Expect(response.Accepted).Should(BeFalse())
            Expect(response.RejectionReason).Should(Equal(RejectionChangeUnapplicable))
        })

        It("should reject a change whose result fails validation", func() {
            env.activate(cluster)

            // a lease above the reconnect window violates the validator
            response := env.server.Prepare(PrepareMessage{
                ExpectedMutativeMessageCount: 2,
                NewVersion: 2,
                Change: encodeChange(changes.SettingChange{
                    Op: changes.OpSet,
                    Configuration: Configuration{
                        SettingName: SettingClientLeaseDuration,
                        Applicability: ClusterApplicability(),
                        Value: "500",
                    },
                }),
            })

            Expect(response.Accepted).Should(BeFalse())
            Expect(response.RejectionReason).Should(Equal(RejectionChangeUnapplicable))
        })

        It("should reject a prepare while another change is prepared", func() {
            env.activate(cluster)

            first := env.server.Prepare(PrepareMessage{
                ExpectedMutativeMessageCount: 2,
                NewVersion: 2,
                Change: encodeChange(changes.FormatUpgradeChange{ FromVersion: 1, ToVersion: 2 }),
            })

            Expect(first.Accepted).Should(BeTrue())

            second := env.server.Prepare(PrepareMessage{
                ExpectedMutativeMessageCount: 3,
                NewVersion: 3,
                Change: encodeChange(changes.FormatUpgradeChange{ FromVersion: 1, ToVersion: 2 }),
            })

            Expect(second.Accepted).Should(BeFalse())
            Expect(second.RejectionReason).Should(Equal(RejectionWrongMode))
        })
    })

    Describe("#Commit", func() {
        It("should reject a commit without a prepared change", func() {
            response := env.server.Commit(CommitMessage{ ExpectedMutativeMessageCount: 0, Version: 1 })

            Expect(response.Accepted).Should(BeFalse())
            Expect(response.RejectionReason).Should(Equal(RejectionWrongMode))
        })

        It("should notify topology listeners outside the protocol path", func() {
            var committedVersion uint64
            var committedContext *NodeContext

            env.server.OnTopologyCommitted(func(version uint64, nodeContext *NodeContext, change changes.NomadChange) {
                committedVersion = version
                committedContext = nodeContext
            })

            env.activate(cluster)

            Expect(committedVersion).Should(Equal(uint64(1)))
            Expect(committedContext).ShouldNot(BeNil())
            Expect(committedContext.Cluster.Name).Should(Equal("test-cluster"))
        })

        It("should record the applier in the journal", func() {
            env.activate(cluster)

            record, err := env.journal.FindByVersion(1)

            Expect(err).Should(BeNil())
            Expect(record.State).Should(Equal(storage.StateCommitted))
            Expect(record.AppliedHost).Should(Equal("coordinator-host"))
            Expect(record.AppliedUser).Should(Equal("operator"))
            Expect(record.AppliedTimestamp).ShouldNot(BeNil())
        })
    })

    Describe("#Rollback", func() {
        It("should return the server to accepting mode and delete the snapshot", func() {
            env.activate(cluster)

            prepareResponse := env.server.Prepare(PrepareMessage{
                ExpectedMutativeMessageCount: 2,
                NewVersion: 2,
                Change: encodeChange(changes.FormatUpgradeChange{ FromVersion: 1, ToVersion: 2 }),
            })

            Expect(prepareResponse.Accepted).Should(BeTrue())

            rollbackResponse := env.server.Rollback(RollbackMessage{
                ExpectedMutativeMessageCount: 3,
                Version: 2,
            })

            Expect(rollbackResponse.Accepted).Should(BeTrue())
            Expect(rollbackResponse.CurrentState.Mode).Should(Equal(ModeAccepting))
            Expect(rollbackResponse.CurrentState.CurrentVersion).Should(Equal(uint64(1)))

            _, err := env.configStore.GetConfig(2)

            Expect(err).ShouldNot(BeNil())

            record, err := env.journal.FindByVersion(2)

            Expect(err).Should(BeNil())
            Expect(record.State).Should(Equal(storage.StateRolledBack))
        })

        It("should reject a rollback of a committed version", func() {
            env.activate(cluster)

            response := env.server.Rollback(RollbackMessage{
                ExpectedMutativeMessageCount: 2,
                Version: 1,
            })

            Expect(response.Accepted).Should(BeFalse())
            Expect(response.RejectionReason).Should(Equal(RejectionWrongMode))
        })
    })

    Describe("#Takeover", func() {
        It("should bump the counter and record the new coordinator", func() {
            env.activate(cluster)

            response := env.server.Takeover(TakeoverMessage{
                ExpectedMutativeMessageCount: 2,
                MutationHost: "new-coordinator",
                MutationUser: "new-operator",
            })

            Expect(response.Accepted).Should(BeTrue())
            Expect(response.CurrentState.MutativeMessageCount).Should(Equal(uint64(3)))

            discoverResponse, err := env.server.Discover()

            Expect(err).Should(BeNil())
            Expect(discoverResponse.LastMutationHost).Should(Equal("new-coordinator"))
            Expect(discoverResponse.LastMutationUser).Should(Equal("new-operator"))
            Expect(discoverResponse.CurrentVersion).Should(Equal(uint64(1)))
            Expect(discoverResponse.Mode).Should(Equal(ModeAccepting))
        })

        It("should fence a coordinator using a stale counter", func() {
            env.activate(cluster)

            takeoverResponse := env.server.Takeover(TakeoverMessage{ ExpectedMutativeMessageCount: 2 })

            Expect(takeoverResponse.Accepted).Should(BeTrue())

            // the old coordinator's prepare now carries a stale counter
            response := env.server.Prepare(PrepareMessage{
                ExpectedMutativeMessageCount: 2,
                NewVersion: 2,
                Change: encodeChange(changes.FormatUpgradeChange{ FromVersion: 1, ToVersion: 2 }),
            })

            Expect(response.Accepted).Should(BeFalse())
            Expect(response.RejectionReason).Should(Equal(RejectionStaleCounter))
        })
    })

    Describe("durability", func() {
        It("should reproduce the same discover response after a crash and recovery", func() {
            env.activate(cluster)

            before, err := env.server.Discover()

            Expect(err).Should(BeNil())

            env.restart()

            after, err := env.server.Discover()

            Expect(err).Should(BeNil())
            Expect(after.Mode).Should(Equal(before.Mode))
            Expect(after.MutativeMessageCount).Should(Equal(before.MutativeMessageCount))
            Expect(after.CurrentVersion).Should(Equal(before.CurrentVersion))
            Expect(after.HighestVersion).Should(Equal(before.HighestVersion))
            Expect(after.LastMutationHost).Should(Equal(before.LastMutationHost))
        })

        It("should restore prepared mode after a crash between prepare and commit", func() {
            env.activate(cluster)

            prepareResponse := env.server.Prepare(PrepareMessage{
                ExpectedMutativeMessageCount: 2,
                NewVersion: 2,
                Change: encodeChange(changes.FormatUpgradeChange{ FromVersion: 1, ToVersion: 2 }),
            })

            Expect(prepareResponse.Accepted).Should(BeTrue())

            env.restart()

            response, err := env.server.Discover()

            Expect(err).Should(BeNil())
            Expect(response.Mode).Should(Equal(ModePrepared))
            Expect(response.HighestVersion).Should(Equal(uint64(2)))
            Expect(response.CurrentVersion).Should(Equal(uint64(1)))

            // the outstanding change can still be committed
            commitResponse := env.server.Commit(CommitMessage{
                ExpectedMutativeMessageCount: 3,
                Version: 2,
            })

            Expect(commitResponse.Accepted).Should(BeTrue())
        })
    })
})
