package node

import (
    "errors"
    "fmt"
    "os"
    "os/user"
    "sync"

    . "github.com/cljohnso/terracotta-platform/error"
    . "github.com/cljohnso/terracotta-platform/logging"
    . "github.com/cljohnso/terracotta-platform/model"
    "github.com/cljohnso/terracotta-platform/nomad"
    "github.com/cljohnso/terracotta-platform/server"
    "github.com/cljohnso/terracotta-platform/service"
    "github.com/cljohnso/terracotta-platform/storage"
    "github.com/cljohnso/terracotta-platform/util"
)

// ConfigNode assembles one node: the repository, the sanskrit journal, the
// nomad server, the dynamic config service and the HTTP surface.
type ConfigNode struct {
    options NodeInitializationOptions
    repository *storage.Repository
    journal *storage.SanskritJournal
    configStore *storage.FileConfigStorage
    nomadServer *nomad.Server
    dynamicConfigService *service.DynamicConfigService
    nodeServer *server.NodeServer
    restartHook func()
    isRunning bool
    shutdown chan int
    initializedCB func()
    lock sync.Mutex
}

func New(options NodeInitializationOptions) *ConfigNode {
    return &ConfigNode{
        options: options,
    }
}

// UseRestartHook installs the process-level hook invoked by a delayed
// restart. Without one the node just logs the request.
func (node *ConfigNode) UseRestartHook(restartHook func()) {
    node.restartHook = restartHook
}

func (node *ConfigNode) OnInitialized(cb func()) {
    node.initializedCB = cb
}

func (node *ConfigNode) Service() *service.DynamicConfigService {
    return node.dynamicConfigService
}

func (node *ConfigNode) NomadServer() *nomad.Server {
    return node.nomadServer
}

func (node *ConfigNode) Start() error {
    if err := node.options.Validate(); err != nil {
        return err
    }

    node.isRunning = true
    node.shutdown = make(chan int)

    substitutor := &util.ParameterSubstitutor{ NodeName: node.options.NodeName }
    node.repository = storage.NewRepository(node.options.RepositoryRoot, substitutor)

    if err := node.repository.CreateDirectories(); err != nil {
        Log.Criticalf("Unable to create the configuration repository at %s: %v", node.options.RepositoryRoot, err.Error())

        return err
    }

    storedNodeName, err := node.repository.NodeName()

    if err != nil {
        return err
    }

    if storedNodeName != "" && storedNodeName != node.options.NodeName {
        return errors.New(fmt.Sprintf("The repository at %s belongs to node %s, not %s", node.options.RepositoryRoot, storedNodeName, node.options.NodeName))
    }

    node.journal = storage.NewSanskritJournal(node.repository.SanskritPath())

    if err := node.openJournal(); err != nil {
        return err
    }

    defer node.Stop()

    node.configStore = storage.NewFileConfigStorage(node.repository.ConfigPath(), node.options.NodeName)
    validator := &ClusterValidator{ Substitutor: substitutor }

    nomadServer, err := nomad.NewServer(node.options.NodeName, node.journal, node.configStore, validator)

    if err != nil {
        Log.Criticalf("Unable to restore the nomad server from the journal: %v", err.Error())

        return err
    }

    node.nomadServer = nomadServer

    nodeContext, activated, err := node.initialNodeContext()

    if err != nil {
        return err
    }

    hostname, _ := os.Hostname()
    username := "unknown"

    if current, err := user.Current(); err == nil {
        username = current.Username
    }

    dynamicConfigService, err := service.NewDynamicConfigService(service.ServiceConfig{
        NodeContext: nodeContext,
        NomadServer: node.nomadServer,
        Journal: node.journal,
        ConfigStore: node.configStore,
        Repository: node.repository,
        Validator: validator,
        Collaborators: service.Collaborators{
            RestartHook: node.invokeRestartHook,
            Hostname: hostname,
            Username: username,
        },
        Activated: activated,
    })

    if err != nil {
        Log.Criticalf("Unable to start the dynamic config service: %v", err.Error())

        return err
    }

    node.dynamicConfigService = dynamicConfigService

    node.nodeServer = server.NewNodeServer(server.NodeServerConfig{
        Host: node.options.BindAddress,
        Port: node.options.Port,
        ConfigFacade: &ConfigNodeFacade{ node: node },
    })

    // committed changes are pushed to /events subscribers
    eventHub := node.nodeServer.EventHub()
    node.dynamicConfigService.OnNewTopologyCommitted(func(version uint64, nodeContext *NodeContext) {
        eventHub.Broadcast(server.ConfigEvent{
            Type: "topology-committed",
            Version: version,
            RestartRequired: node.dynamicConfigService.IsRestartRequired(),
        })
    })

    mode := "diagnostic"

    if activated {
        mode = "activated"
    }

    Log.Infof("Node %s starting in %s mode", node.options.NodeName, mode)

    serverStopResult := make(chan error)

    go func() {
        serverStopResult <- node.nodeServer.Start()
    }()

    node.notifyInitialized()

    select {
    case err := <-serverStopResult:
        if err != nil {
            Log.Errorf("Node %s stopped with error: %v", node.options.NodeName, err.Error())
        }

        return err
    case <-node.shutdown:
        return nil
    }
}

func (node *ConfigNode) notifyInitialized() {
    if node.initializedCB != nil {
        node.initializedCB()
    }
}

func (node *ConfigNode) openJournal() error {
    if err := node.journal.Open(); err != nil {
        if err != ECorrupted {
            Log.Criticalf("Error opening sanskrit journal: %v", err.Error())

            return EStorage
        }

        Log.Error("Sanskrit journal is corrupted. Attempting automatic recovery now...")

        if recoverError := node.journal.Recover(); recoverError != nil {
            Log.Criticalf("Unable to recover corrupted sanskrit journal. Reason: %v", recoverError.Error())

            return EStorage
        }
    }

    return nil
}

// initialNodeContext loads the last committed topology, or builds the
// single-node diagnostic topology for a node that has never been activated.
func (node *ConfigNode) initialNodeContext() (*NodeContext, bool, error) {
    cluster, err := node.nomadServer.CommittedCluster()

    if err != nil {
        return nil, false, err
    }

    if cluster != nil {
        for _, stripe := range cluster.Stripes {
            if n := stripe.NodeByName(node.options.NodeName); n != nil {
                return NewNodeContext(cluster, stripe.UID, n.UID), true, nil
            }
        }

        return nil, false, errors.New(fmt.Sprintf("The committed topology does not contain node %s", node.options.NodeName))
    }

    hostname := node.options.Hostname

    if hostname == "" {
        hostname, _ = os.Hostname()
    }

    diagnosticNode := NewNode(node.options.NodeName, hostname, Address{ Host: hostname, Port: node.options.Port }, Address{ Host: hostname, Port: node.options.GroupPort })
    diagnosticNode.BindAddress = node.options.BindAddress

    stripe := NewStripe("stripe-1", diagnosticNode)
    cluster = NewCluster("", stripe)

    return NewNodeContext(cluster, stripe.UID, diagnosticNode.UID), false, nil
}

func (node *ConfigNode) invokeRestartHook() {
    if node.restartHook != nil {
        node.restartHook()

        return
    }

    Log.Warning("A restart was requested but no restart hook is installed")
}

func (node *ConfigNode) Stop() {
    node.lock.Lock()
    defer node.lock.Unlock()

    node.stop()
}

func (node *ConfigNode) stop() {
    if node.journal != nil {
        node.journal.Close()
    }

    if node.nodeServer != nil {
        node.nodeServer.Stop()
    }

    if node.isRunning {
        node.isRunning = false
        close(node.shutdown)
    }
}

func (node *ConfigNode) Name() string {
    return node.options.NodeName
}
