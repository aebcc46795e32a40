package nomad_test

import (
    "io/ioutil"
    "os"
    "path/filepath"

    "github.com/cljohnso/terracotta-platform/changes"
    . "github.com/cljohnso/terracotta-platform/model"
    . "github.com/cljohnso/terracotta-platform/nomad"
    "github.com/cljohnso/terracotta-platform/storage"

    . "github.com/onsi/gomega"
)

// serverEnv holds one nomad server with its on-disk stores in a scratch
// workspace.
type serverEnv struct {
    workspace string
    nodeName string
    journal *storage.SanskritJournal
    configStore *storage.FileConfigStorage
    server *Server
}

func newServerEnv(nodeName string) *serverEnv {
    workspace, err := ioutil.TempDir("", "nomad-test-")

    Expect(err).Should(BeNil())

    env := &serverEnv{ workspace: workspace, nodeName: nodeName }
    env.open()

    return env
}

func (env *serverEnv) open() {
    configPath := filepath.Join(env.workspace, "config")

    Expect(os.MkdirAll(configPath, 0755)).Should(BeNil())

    env.journal = storage.NewSanskritJournal(filepath.Join(env.workspace, "sanskrit"))

    Expect(env.journal.Open()).Should(BeNil())

    env.configStore = storage.NewFileConfigStorage(configPath, env.nodeName)

    server, err := NewServer(env.nodeName, env.journal, env.configStore, &ClusterValidator{ })

    Expect(err).Should(BeNil())

    env.server = server
}

// restart simulates a crash and recovery: the journal is reopened and the
// server state rebuilt from it.
func (env *serverEnv) restart() {
    Expect(env.journal.Close()).Should(BeNil())

    env.open()
}

func (env *serverEnv) cleanup() {
    env.journal.Close()
    os.RemoveAll(env.workspace)
}

func twoNodeCluster() *Cluster {
    node1 := NewNode("node-1", "host1", Address{ Host: "host1", Port: 9410 }, Address{ Host: "host1", Port: 9430 })
    node2 := NewNode("node-2", "host2", Address{ Host: "host2", Port: 9410 }, Address{ Host: "host2", Port: 9430 })
    stripe := NewStripe("stripe-1", node1, node2)
    cluster := NewCluster("test-cluster", stripe)
    cluster.OffheapResources["main"] = 512 * 1024 * 1024

    return cluster
}

func encodeChange(change changes.NomadChange) []byte {
    encoded, err := changes.EncodeChange(change)

    Expect(err).Should(BeNil())

    return encoded
}

// activate drives one server through a prepared and committed activation.
func (env *serverEnv) activate(cluster *Cluster) {
    prepareResponse := env.server.Prepare(PrepareMessage{
        ExpectedMutativeMessageCount: 0,
        NewVersion: 1,
        Change: encodeChange(changes.ClusterActivationChange{ Cluster: cluster }),
        MutationHost: "coordinator-host",
        MutationUser: "operator",
    })

    Expect(prepareResponse.Accepted).Should(BeTrue())

    commitResponse := env.server.Commit(CommitMessage{
        ExpectedMutativeMessageCount: 1,
        Version: 1,
        MutationHost: "coordinator-host",
        MutationUser: "operator",
    })

    Expect(commitResponse.Accepted).Should(BeTrue())
}
