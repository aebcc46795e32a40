package service

import (
    "bytes"
    "encoding/json"
    "errors"
    "fmt"
    "io/ioutil"
    "os"
    "path/filepath"
    "sync"
    "time"

    "github.com/cljohnso/terracotta-platform/changes"
    . "github.com/cljohnso/terracotta-platform/error"
    "github.com/cljohnso/terracotta-platform/license"
    . "github.com/cljohnso/terracotta-platform/logging"
    . "github.com/cljohnso/terracotta-platform/model"
    "github.com/cljohnso/terracotta-platform/nomad"
    "github.com/cljohnso/terracotta-platform/storage"
)

var ENotInCluster = errors.New("This node does not appear in the proposed cluster")
var ERestartDelayTooShort = errors.New("The restart delay must be at least one second")

// Collaborators captures the process-level hooks the service needs. They are
// passed in at construction instead of reached through globals so tests can
// substitute them.
type Collaborators struct {
    RestartHook func()
    Clock func() time.Time
    Hostname string
    Username string
}

// EventRegistration is the disposable handle returned by every listener
// registration.
type EventRegistration interface {
    Unregister()
}

type runtimeListener struct {
    cb func(nodeContext *NodeContext, change changes.NomadChange)
}

type topologyListener struct {
    cb func(version uint64, nodeContext *NodeContext)
}

type listenerRegistration struct {
    unregister func()
}

func (registration *listenerRegistration) Unregister() {
    registration.unregister()
}

// DynamicConfigService binds a nomad server to the running node. It keeps
// two views of the configuration: the runtime context reflects what the live
// process is using, the upcoming context reflects every committed change. A
// divergence between the two means a restart is required.
type DynamicConfigService struct {
    nomadServer *nomad.Server
    journal *storage.SanskritJournal
    configStore *storage.FileConfigStorage
    repository *storage.Repository
    validator *ClusterValidator
    collaborators Collaborators
    scheduler Scheduler

    lock sync.Mutex
    runtime *NodeContext
    upcoming *NodeContext
    license *license.License
    activated bool

    runtimeCBs []*runtimeListener
    upcomingCBs []*runtimeListener
    topologyCBs []*topologyListener
}

type ServiceConfig struct {
    NodeContext *NodeContext
    NomadServer *nomad.Server
    Journal *storage.SanskritJournal
    ConfigStore *storage.FileConfigStorage
    Repository *storage.Repository
    Validator *ClusterValidator
    Collaborators Collaborators
    Scheduler Scheduler

    // Activated is true when the repository already holds a committed
    // topology, meaning the node went through activation in a previous
    // incarnation.
    Activated bool
}

func NewDynamicConfigService(config ServiceConfig) (*DynamicConfigService, error) {
    if config.Collaborators.Clock == nil {
        config.Collaborators.Clock = time.Now
    }

    if config.Scheduler == nil {
        config.Scheduler = &TimerScheduler{ }
    }

    service := &DynamicConfigService{
        nomadServer: config.NomadServer,
        journal: config.Journal,
        configStore: config.ConfigStore,
        repository: config.Repository,
        validator: config.Validator,
        collaborators: config.Collaborators,
        scheduler: config.Scheduler,
        runtime: config.NodeContext,
        upcoming: config.NodeContext,
        activated: config.Activated,
    }

    if err := service.loadLicense(); err != nil {
        return nil, err
    }

    config.NomadServer.OnTopologyCommitted(service.newTopologyCommitted)

    return service, nil
}

func (service *DynamicConfigService) loadLicense() error {
    content, err := ioutil.ReadFile(filepath.Join(service.repository.LicensePath(), license.LicenseFileName))

    if os.IsNotExist(err) {
        return nil
    }

    if err != nil {
        return err
    }

    parsed, err := license.ParseLicense(content)

    if err != nil {
        return err
    }

    if err := parsed.Validate(service.upcoming.Cluster); err != nil {
        return err
    }

    service.license = parsed

    return nil
}

func (service *DynamicConfigService) License() *license.License {
    service.lock.Lock()
    defer service.lock.Unlock()

    return service.license
}

func (service *DynamicConfigService) IsActivated() bool {
    service.lock.Lock()
    defer service.lock.Unlock()

    return service.activated
}

func (service *DynamicConfigService) RuntimeNodeContext() *NodeContext {
    service.lock.Lock()
    defer service.lock.Unlock()

    return service.runtime.Clone()
}

func (service *DynamicConfigService) UpcomingNodeContext() *NodeContext {
    service.lock.Lock()
    defer service.lock.Unlock()

    return service.upcoming.Clone()
}

func (service *DynamicConfigService) IsRestartRequired() bool {
    service.lock.Lock()
    defer service.lock.Unlock()

    return !sameContext(service.runtime, service.upcoming)
}

func sameContext(a *NodeContext, b *NodeContext) bool {
    encodedA, errA := json.Marshal(a)
    encodedB, errB := json.Marshal(b)

    if errA != nil || errB != nil {
        return false
    }

    return bytes.Equal(encodedA, encodedB)
}

func (service *DynamicConfigService) OnNewRuntimeConfiguration(cb func(nodeContext *NodeContext, change changes.NomadChange)) EventRegistration {
    service.lock.Lock()
    defer service.lock.Unlock()

    listener := &runtimeListener{ cb: cb }
    service.runtimeCBs = append(service.runtimeCBs, listener)

    return &listenerRegistration{ unregister: func() {
        service.removeRuntimeListener(listener, true)
    } }
}

func (service *DynamicConfigService) OnNewUpcomingConfiguration(cb func(nodeContext *NodeContext, change changes.NomadChange)) EventRegistration {
    service.lock.Lock()
    defer service.lock.Unlock()

    listener := &runtimeListener{ cb: cb }
    service.upcomingCBs = append(service.upcomingCBs, listener)

    return &listenerRegistration{ unregister: func() {
        service.removeRuntimeListener(listener, false)
    } }
}

func (service *DynamicConfigService) OnNewTopologyCommitted(cb func(version uint64, nodeContext *NodeContext)) EventRegistration {
    service.lock.Lock()
    defer service.lock.Unlock()

    listener := &topologyListener{ cb: cb }
    service.topologyCBs = append(service.topologyCBs, listener)

    return &listenerRegistration{ unregister: func() {
        service.lock.Lock()
        defer service.lock.Unlock()

        for i, l := range service.topologyCBs {
            if l == listener {
                service.topologyCBs = append(append([]*topologyListener{ }, service.topologyCBs[:i]...), service.topologyCBs[i + 1:]...)

                break
            }
        }
    } }
}

func (service *DynamicConfigService) removeRuntimeListener(listener *runtimeListener, runtime bool) {
    service.lock.Lock()
    defer service.lock.Unlock()

    list := service.runtimeCBs

    if !runtime {
        list = service.upcomingCBs
    }

    for i, l := range list {
        if l == listener {
            // copy-on-write so an in-flight notification keeps a stable list
            updated := append(append([]*runtimeListener{ }, list[:i]...), list[i + 1:]...)

            if runtime {
                service.runtimeCBs = updated
            } else {
                service.upcomingCBs = updated
            }

            break
        }
    }
}

// newTopologyCommitted is invoked by the nomad server after a change has
// been durably committed. Events fire outside the service lock, in
// registration order.
func (service *DynamicConfigService) newTopologyCommitted(version uint64, nodeContext *NodeContext, change changes.NomadChange) {
    service.lock.Lock()

    if nodeContext.Node() == nil {
        // this node was detached from the cluster
        service.lock.Unlock()
        service.handleDetach(version)

        return
    }

    service.upcoming = nodeContext.Clone()
    runtimeApplied := change.AppliesAtRuntime()

    if runtimeApplied {
        service.runtime = nodeContext.Clone()
    }

    if _, ok := change.(changes.ClusterActivationChange); ok {
        service.activated = true
    }

    runtimeUpdate := service.runtime.Clone()
    upcomingUpdate := service.upcoming.Clone()
    topologyCBs := service.topologyCBs
    runtimeCBs := service.runtimeCBs
    upcomingCBs := service.upcomingCBs

    service.lock.Unlock()

    Log.Infof("New configuration version %d has been committed", version)

    for _, listener := range topologyCBs {
        service.fire(func() {
            listener.cb(version, upcomingUpdate.Clone())
        })
    }

    if runtimeApplied {
        Log.Infof("Change applied at runtime: %s", change.Summary())

        for _, listener := range runtimeCBs {
            service.fire(func() {
                listener.cb(runtimeUpdate.Clone(), change)
            })
        }
    } else {
        Log.Infof("Change will be applied after restart: %s", change.Summary())

        for _, listener := range upcomingCBs {
            service.fire(func() {
                listener.cb(upcomingUpdate.Clone(), change)
            })
        }
    }
}

// fire shields the notification loop from a listener that panics.
func (service *DynamicConfigService) fire(notify func()) {
    defer func() {
        if r := recover(); r != nil {
            Log.Errorf("A configuration listener panicked and was skipped: %v", r)
        }
    }()

    notify()
}

// handleDetach resets the node's stores and drops it back into diagnostic
// mode as a single-node cluster.
func (service *DynamicConfigService) handleDetach(version uint64) {
    service.lock.Lock()

    Log.Infof("This node was detached from the cluster at version %d. Resetting its configuration repository", version)

    if err := service.journal.Reset(); err != nil {
        Log.Criticalf("Unable to reset the sanskrit journal after detach: %v", err.Error())
    }

    if err := service.configStore.Reset(); err != nil {
        Log.Criticalf("Unable to reset the config store after detach: %v", err.Error())
    }

    node := service.runtime.Node()
    diagnosticCluster := NewCluster(service.runtime.Cluster.Name)

    if node != nil {
        stripe := NewStripe(service.runtime.Stripe().Name, node.Clone())
        diagnosticCluster.Stripes = []*Stripe{ stripe }
        service.upcoming = NewNodeContext(diagnosticCluster, stripe.UID, stripe.Nodes[0].UID)
    } else {
        service.upcoming = service.runtime.Clone()
    }

    service.activated = false

    service.lock.Unlock()
}

// Activate is single-shot: a node can only be activated once.
func (service *DynamicConfigService) Activate() error {
    service.lock.Lock()
    defer service.lock.Unlock()

    if service.activated {
        return EAlreadyActivated
    }

    Log.Infof("Activating node %s with topology of cluster %s", service.upcoming.NodeName, service.upcoming.Cluster.Name)

    service.activated = true

    return nil
}

// PrepareActivation validates that this node belongs to the proposed
// cluster, installs the license, then activates. License installation is
// transactional: a failed validation leaves the previous license in place.
func (service *DynamicConfigService) PrepareActivation(cluster *Cluster, licenseContent string) error {
    service.lock.Lock()

    if service.activated {
        service.lock.Unlock()

        return EAlreadyActivated
    }

    node := service.runtime.Node()

    if node == nil || !cluster.ContainsNode(service.runtime.StripeName, node.Name, node.PublicAddress) {
        service.lock.Unlock()

        return ENotInCluster
    }

    if err := service.validator.Validate(cluster); err != nil {
        service.lock.Unlock()

        return err
    }

    service.lock.Unlock()

    if licenseContent != "" {
        if err := service.installLicense(cluster, licenseContent); err != nil {
            return err
        }
    }

    return service.Activate()
}

// InstallLicense validates and installs a license against the upcoming
// topology.
func (service *DynamicConfigService) InstallLicense(licenseContent string) error {
    service.lock.Lock()
    cluster := service.upcoming.Cluster.Clone()
    service.lock.Unlock()

    return service.installLicense(cluster, licenseContent)
}

func (service *DynamicConfigService) installLicense(cluster *Cluster, licenseContent string) error {
    parsed, err := license.ParseLicense([]byte(licenseContent))

    if err != nil {
        return err
    }

    // validate before touching the installed license so a rejected license
    // leaves the previous one untouched
    if err := parsed.Validate(cluster); err != nil {
        return err
    }

    licenseFile := filepath.Join(service.repository.LicensePath(), license.LicenseFileName)
    temp, err := ioutil.TempFile(service.repository.LicensePath(), ".license-*")

    if err != nil {
        return EStorage
    }

    defer os.Remove(temp.Name())

    if _, err := temp.Write([]byte(licenseContent)); err != nil {
        temp.Close()

        return EStorage
    }

    if err := temp.Close(); err != nil {
        return EStorage
    }

    if err := os.Rename(temp.Name(), licenseFile); err != nil {
        return EStorage
    }

    service.lock.Lock()
    service.license = parsed
    service.lock.Unlock()

    Log.Infof("License installed for licensee %s", parsed.Licensee)

    return nil
}

// Restart schedules the external restart hook after the given delay. The
// delay gives the caller time to close its connection cleanly.
func (service *DynamicConfigService) Restart(delay time.Duration) error {
    if delay < time.Second {
        return ERestartDelayTooShort
    }

    Log.Infof("Node will restart in %v", delay)

    service.scheduler.Schedule(delay, func() {
        Log.Info("Invoking restart hook")

        if service.collaborators.RestartHook != nil {
            service.collaborators.RestartHook()
        }
    })

    return nil
}

// Describe summarizes the service state for diagnostics.
func (service *DynamicConfigService) Describe() string {
    service.lock.Lock()
    defer service.lock.Unlock()

    mode := "diagnostic"

    if service.activated {
        mode = "activated"
    }

    return fmt.Sprintf("node=%s cluster=%s mode=%s restartRequired=%v", service.upcoming.NodeName, service.upcoming.Cluster.Name, mode, !sameContext(service.runtime, service.upcoming))
}
