package changes

import (
    "errors"
    "fmt"
    "strings"

    . "github.com/cljohnso/terracotta-platform/model"
)

const (
    OpSet = "set"
    OpUnset = "unset"
)

const (
    TypeClusterActivation = "activation"
    TypeSetting = "setting"
    TypeMultiSetting = "multi-setting"
    TypeFormatUpgrade = "format-upgrade"
)

var EAlreadyActivated = errors.New("The cluster has already been activated")
var ENotActivated = errors.New("The cluster has not been activated yet")

// NomadChange is a typed mutation of the cluster topology. Apply is pure:
// it never mutates its input and two applications of the same change to the
// same cluster produce identical results, so prepare-time and commit-time
// applications agree.
type NomadChange interface {
    Type() string
    CanApply(cluster *Cluster) error
    Apply(cluster *Cluster) (*Cluster, error)
    Summary() string
    AppliesAtRuntime() bool
}

// ClusterActivationChange sets the initial topology on a fresh node. It is
// only applicable while no topology has been committed.
type ClusterActivationChange struct {
    Cluster *Cluster
    LicenseContent string
}

func (change ClusterActivationChange) Type() string {
    return TypeClusterActivation
}

func (change ClusterActivationChange) CanApply(cluster *Cluster) error {
    if cluster != nil {
        return EAlreadyActivated
    }

    if change.Cluster == nil {
        return errors.New("An activation change requires a cluster")
    }

    return nil
}

func (change ClusterActivationChange) Apply(cluster *Cluster) (*Cluster, error) {
    if err := change.CanApply(cluster); err != nil {
        return nil, err
    }

    return change.Cluster.Clone(), nil
}

func (change ClusterActivationChange) Summary() string {
    return fmt.Sprintf("Activating cluster %s", change.Cluster.Name)
}

func (change ClusterActivationChange) AppliesAtRuntime() bool {
    return true
}

// SettingChange sets or unsets a single configuration entry.
type SettingChange struct {
    Op string
    Configuration Configuration
}

func (change SettingChange) Type() string {
    return TypeSetting
}

func (change SettingChange) CanApply(cluster *Cluster) error {
    if cluster == nil {
        return ENotActivated
    }

    // run against a scratch clone so canApply has no side effects
    _, err := change.Apply(cluster)

    return err
}

func (change SettingChange) Apply(cluster *Cluster) (*Cluster, error) {
    if cluster == nil {
        return nil, ENotActivated
    }

    updated := cluster.Clone()

    switch change.Op {
    case OpSet:
        if err := change.Configuration.Set(updated); err != nil {
            return nil, err
        }
    case OpUnset:
        if err := change.Configuration.Unset(updated); err != nil {
            return nil, err
        }
    default:
        return nil, errors.New(fmt.Sprintf("%s is not a valid setting operation", change.Op))
    }

    return updated, nil
}

func (change SettingChange) Summary() string {
    if change.Op == OpUnset {
        return fmt.Sprintf("unset %s", change.Configuration)
    }

    return fmt.Sprintf("set %s", change.Configuration)
}

func (change SettingChange) AppliesAtRuntime() bool {
    setting, err := change.Configuration.Setting()

    if err != nil {
        return false
    }

    return setting.IsRuntime()
}

// MultiSettingChange applies its children in order as one atomic change.
type MultiSettingChange struct {
    Changes []SettingChange
}

func (change MultiSettingChange) Type() string {
    return TypeMultiSetting
}

func (change MultiSettingChange) CanApply(cluster *Cluster) error {
    if cluster == nil {
        return ENotActivated
    }

    // every child must hold against the progressively transformed cluster
    _, err := change.Apply(cluster)

    return err
}

func (change MultiSettingChange) Apply(cluster *Cluster) (*Cluster, error) {
    if cluster == nil {
        return nil, ENotActivated
    }

    if len(change.Changes) == 0 {
        return nil, errors.New("A multi-setting change requires at least one change")
    }

    updated := cluster

    for _, child := range change.Changes {
        next, err := child.Apply(updated)

        if err != nil {
            return nil, err
        }

        updated = next
    }

    return updated, nil
}

func (change MultiSettingChange) Summary() string {
    summaries := make([]string, 0, len(change.Changes))

    for _, child := range change.Changes {
        summaries = append(summaries, child.Summary())
    }

    return strings.Join(summaries, ", ")
}

func (change MultiSettingChange) AppliesAtRuntime() bool {
    for _, child := range change.Changes {
        if !child.AppliesAtRuntime() {
            return false
        }
    }

    return true
}

// FormatUpgradeChange records a rewrite of the persisted configuration shape.
// The in-memory model is unchanged.
type FormatUpgradeChange struct {
    FromVersion int
    ToVersion int
}

func (change FormatUpgradeChange) Type() string {
    return TypeFormatUpgrade
}

func (change FormatUpgradeChange) CanApply(cluster *Cluster) error {
    if cluster == nil {
        return ENotActivated
    }

    if change.FromVersion >= change.ToVersion {
        return errors.New(fmt.Sprintf("A format upgrade must move to a newer version. %d to %d is not an upgrade", change.FromVersion, change.ToVersion))
    }

    return nil
}

func (change FormatUpgradeChange) Apply(cluster *Cluster) (*Cluster, error) {
    if err := change.CanApply(cluster); err != nil {
        return nil, err
    }

    return cluster.Clone(), nil
}

func (change FormatUpgradeChange) Summary() string {
    return fmt.Sprintf("Upgrading configuration format from V%d to V%d", change.FromVersion, change.ToVersion)
}

func (change FormatUpgradeChange) AppliesAtRuntime() bool {
    return true
}
