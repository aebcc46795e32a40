package service_test

import (
    "context"
    "io/ioutil"
    "os"
    "time"

    "github.com/cljohnso/terracotta-platform/changes"
    dberr "github.com/cljohnso/terracotta-platform/error"
    . "github.com/cljohnso/terracotta-platform/model"
    "github.com/cljohnso/terracotta-platform/nomad"
    . "github.com/cljohnso/terracotta-platform/service"
    "github.com/cljohnso/terracotta-platform/storage"
    "github.com/cljohnso/terracotta-platform/util"

    . "github.com/onsi/ginkgo"
    . "github.com/onsi/gomega"
)

// fakeScheduler records scheduled tasks instead of running them.
type fakeScheduler struct {
    delays []time.Duration
    tasks []func()
}

func (scheduler *fakeScheduler) Schedule(delay time.Duration, task func()) {
    scheduler.delays = append(scheduler.delays, delay)
    scheduler.tasks = append(scheduler.tasks, task)
}

// nodeEnv assembles a full node in a scratch workspace: repository, journal,
// config store, nomad server and the service under test.
type nodeEnv struct {
    workspace string
    nodeName string
    repository *storage.Repository
    journal *storage.SanskritJournal
    configStore *storage.FileConfigStorage
    nomadServer *nomad.Server
    service *DynamicConfigService
    scheduler *fakeScheduler
    restarts int
}

func newNodeEnv(nodeName string, diagnosticContext *NodeContext) *nodeEnv {
    workspace, err := ioutil.TempDir("", "service-test-")

    Expect(err).Should(BeNil())

    env := &nodeEnv{ workspace: workspace, nodeName: nodeName, scheduler: &fakeScheduler{ } }

    substitutor := &util.ParameterSubstitutor{ NodeName: nodeName }
    env.repository = storage.NewRepository(workspace, substitutor)

    Expect(env.repository.CreateDirectories()).Should(BeNil())

    env.journal = storage.NewSanskritJournal(env.repository.SanskritPath())

    Expect(env.journal.Open()).Should(BeNil())

    env.configStore = storage.NewFileConfigStorage(env.repository.ConfigPath(), nodeName)

    nomadServer, err := nomad.NewServer(nodeName, env.journal, env.configStore, &ClusterValidator{ Substitutor: substitutor })

    Expect(err).Should(BeNil())

    env.nomadServer = nomadServer

    dynamicConfigService, err := NewDynamicConfigService(ServiceConfig{
        NodeContext: diagnosticContext,
        NomadServer: nomadServer,
        Journal: env.journal,
        ConfigStore: env.configStore,
        Repository: env.repository,
        Validator: &ClusterValidator{ Substitutor: substitutor },
        Collaborators: Collaborators{
            RestartHook: func() { env.restarts++ },
            Hostname: "host1",
            Username: "operator",
        },
        Scheduler: env.scheduler,
    })

    Expect(err).Should(BeNil())

    env.service = dynamicConfigService

    return env
}

func (env *nodeEnv) cleanup() {
    env.journal.Close()
    os.RemoveAll(env.workspace)
}

func buildCluster() (*Cluster, *NodeContext, *NodeContext) {
    node1 := NewNode("node-1", "host1", Address{ Host: "host1", Port: 9410 }, Address{ Host: "host1", Port: 9430 })
    node2 := NewNode("node-2", "host2", Address{ Host: "host2", Port: 9410 }, Address{ Host: "host2", Port: 9430 })
    stripe := NewStripe("stripe-1", node1, node2)
    cluster := NewCluster("test-cluster", stripe)
    cluster.OffheapResources["main"] = 512 * 1024 * 1024

    context1 := NewNodeContext(cluster, stripe.UID, node1.UID)
    context2 := NewNodeContext(cluster, stripe.UID, node2.UID)

    return cluster, context1, context2
}

func runChange(env *nodeEnv, change changes.NomadChange) {
    coordinator := nomad.NewClient([]nomad.Endpoint{
        { Name: env.nodeName, Connector: &nomad.LocalConnector{ Server: env.nomadServer } },
    }, "coordinator-host", "operator")

    result, err := coordinator.RunChange(context.Background(), change)

    Expect(err).Should(BeNil())
    Expect(result.Success).Should(BeTrue())
}

var _ = Describe("DynamicConfigService", func() {
    var env *nodeEnv
    var cluster *Cluster
    var nodeContext *NodeContext

    BeforeEach(func() {
        cluster, nodeContext, _ = buildCluster()
        env = newNodeEnv("node-1", nodeContext)
    })

    AfterEach(func() {
        env.cleanup()
    })

    Describe("#Activate", func() {
        It("should be single shot", func() {
            Expect(env.service.Activate()).Should(BeNil())
            Expect(env.service.Activate()).Should(Equal(dberr.EAlreadyActivated))
        })
    })

    Describe("#PrepareActivation", func() {
        It("should reject a cluster that does not contain this node", func() {
            stranger := NewNode("node-9", "host9", Address{ Host: "host9", Port: 9410 }, Address{ Host: "host9", Port: 9430 })
            foreignCluster := NewCluster("foreign", NewStripe("stripe-1", stranger))

            Expect(env.service.PrepareActivation(foreignCluster, "")).Should(Equal(ENotInCluster))
            Expect(env.service.IsActivated()).Should(BeFalse())
        })

        It("should activate when the node is a member", func() {
            Expect(env.service.PrepareActivation(cluster, "")).Should(BeNil())
            Expect(env.service.IsActivated()).Should(BeTrue())
        })

        It("should reject an invalid cluster", func() {
            cluster.ClientLeaseDurationSeconds = cluster.ClientReconnectWindowSeconds + 1

            Expect(env.service.PrepareActivation(cluster, "")).ShouldNot(BeNil())
        })
    })

    Describe("committed changes", func() {
        BeforeEach(func() {
            runChange(env, changes.ClusterActivationChange{ Cluster: cluster })
        })

        It("should replace both contexts for a runtime applicable change", func() {
            runChange(env, changes.SettingChange{
                Op: changes.OpSet,
                Configuration: Configuration{
                    SettingName: SettingBackupDir,
                    Applicability: NodeApplicability(cluster.Stripes[0].UID, cluster.Stripes[0].Nodes[0].UID),
                    Value: "/backup",
                },
            })

            Expect(env.service.UpcomingNodeContext().Node().BackupDir).Should(Equal("/backup"))
            Expect(env.service.RuntimeNodeContext().Node().BackupDir).Should(Equal("/backup"))
            Expect(env.service.IsRestartRequired()).Should(BeFalse())
        })

        It("should only replace the upcoming context for a restart required change", func() {
            runChange(env, changes.SettingChange{
                Op: changes.OpSet,
                Configuration: Configuration{
                    SettingName: SettingLogDir,
                    Applicability: NodeApplicability(cluster.Stripes[0].UID, cluster.Stripes[0].Nodes[0].UID),
                    Value: "/logs",
                },
            })

            Expect(env.service.UpcomingNodeContext().Node().LogDir).Should(Equal("/logs"))
            Expect(env.service.RuntimeNodeContext().Node().LogDir).Should(Equal(""))
            Expect(env.service.IsRestartRequired()).Should(BeTrue())
        })

        It("should notify runtime listeners in registration order", func() {
            order := make([]int, 0)

            env.service.OnNewRuntimeConfiguration(func(nodeContext *NodeContext, change changes.NomadChange) {
                order = append(order, 1)
            })
            env.service.OnNewRuntimeConfiguration(func(nodeContext *NodeContext, change changes.NomadChange) {
                order = append(order, 2)
            })

            runChange(env, changes.SettingChange{
                Op: changes.OpSet,
                Configuration: Configuration{
                    SettingName: SettingBackupDir,
                    Applicability: NodeApplicability(cluster.Stripes[0].UID, cluster.Stripes[0].Nodes[0].UID),
                    Value: "/backup",
                },
            })

            Expect(order).Should(Equal([]int{ 1, 2 }))
        })

        It("should stop notifying a listener once its registration is released", func() {
            notified := 0

            registration := env.service.OnNewTopologyCommitted(func(version uint64, nodeContext *NodeContext) {
                notified++
            })

            runChange(env, changes.FormatUpgradeChange{ FromVersion: 1, ToVersion: 2 })

            Expect(notified).Should(Equal(1))

            registration.Unregister()

            runChange(env, changes.FormatUpgradeChange{ FromVersion: 2, ToVersion: 3 })

            Expect(notified).Should(Equal(1))
        })

        It("should skip a listener that panics without aborting the loop", func() {
            secondNotified := false

            env.service.OnNewTopologyCommitted(func(version uint64, nodeContext *NodeContext) {
                panic("listener failure")
            })
            env.service.OnNewTopologyCommitted(func(version uint64, nodeContext *NodeContext) {
                secondNotified = true
            })

            runChange(env, changes.FormatUpgradeChange{ FromVersion: 1, ToVersion: 2 })

            Expect(secondNotified).Should(BeTrue())
        })
    })

    Describe("detach", func() {
        It("should reset the repository and return to diagnostic mode", func() {
            runChange(env, changes.ClusterActivationChange{ Cluster: cluster })

            Expect(env.service.IsActivated()).Should(BeTrue())

            runChange(env, changes.NodeRemovalChange{ Address: Address{ Host: "host1", Port: 9410 } })

            Expect(env.service.IsActivated()).Should(BeFalse())

            upcoming := env.service.UpcomingNodeContext()

            Expect(upcoming.Cluster.NodeCount()).Should(Equal(1))
            Expect(upcoming.Node().Name).Should(Equal("node-1"))

            latest, err := env.journal.Latest()

            Expect(err).Should(BeNil())
            Expect(latest).Should(BeNil())
        })
    })

    Describe("#Restart", func() {
        It("should reject delays below one second", func() {
            Expect(env.service.Restart(time.Millisecond * 500)).Should(Equal(ERestartDelayTooShort))
            Expect(len(env.scheduler.tasks)).Should(Equal(0))
        })

        It("should schedule a single task that invokes the restart hook", func() {
            Expect(env.service.Restart(time.Second * 2)).Should(BeNil())
            Expect(env.scheduler.delays).Should(Equal([]time.Duration{ time.Second * 2 }))
            Expect(env.restarts).Should(Equal(0))

            env.scheduler.tasks[0]()

            Expect(env.restarts).Should(Equal(1))
        })
    })
})
