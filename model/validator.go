package model

import (
    "errors"
    "fmt"
    "sort"
    "strings"

    "github.com/cljohnso/terracotta-platform/util"
)

// ClusterValidator checks every invariant a proposed cluster must satisfy
// before it may be prepared. Rules run in a fixed order and the first
// violation is returned.
type ClusterValidator struct {
    Substitutor *util.ParameterSubstitutor
}

func (validator *ClusterValidator) Validate(cluster *Cluster) error {
    rules := []func(*Cluster) error{
        validateClusterName,
        validateUniqueAddresses,
        validateUniqueNodeNames,
        validateDataDirNames,
        validateFailoverVoters,
        validateSecurityConsistency,
        validateOffheapResources,
        validateTimeouts,
        validator.validatePaths,
    }

    for _, rule := range rules {
        if err := rule(cluster); err != nil {
            return err
        }
    }

    return nil
}

func validateClusterName(cluster *Cluster) error {
    if strings.TrimSpace(cluster.Name) == "" {
        return errors.New("The cluster name cannot be empty")
    }

    return nil
}

func validateUniqueAddresses(cluster *Cluster) error {
    seen := make(map[string]string)

    for _, node := range cluster.AllNodes() {
        address := node.PublicAddress.String()

        if previous, ok := seen[address]; ok {
            return errors.New(fmt.Sprintf("Nodes %s and %s declare the same public address %s", previous, node.Name, address))
        }

        seen[address] = node.Name
    }

    return nil
}

func validateUniqueNodeNames(cluster *Cluster) error {
    for _, stripe := range cluster.Stripes {
        seen := make(map[string]bool)

        for _, node := range stripe.Nodes {
            if seen[node.Name] {
                return errors.New(fmt.Sprintf("Stripe %s contains more than one node named %s", stripe.Name, node.Name))
            }

            seen[node.Name] = true
        }
    }

    return nil
}

func dataDirNames(node *Node) string {
    names := make([]string, 0, len(node.DataDirs))

    for name := range node.DataDirs {
        names = append(names, name)
    }

    sort.Strings(names)

    return strings.Join(names, ",")
}

func validateDataDirNames(cluster *Cluster) error {
    for _, stripe := range cluster.Stripes {
        if len(stripe.Nodes) == 0 {
            continue
        }

        reference := dataDirNames(stripe.Nodes[0])

        for _, node := range stripe.Nodes[1:] {
            if dataDirNames(node) != reference {
                return errors.New(fmt.Sprintf("Node %s does not declare the same data directory names as the other nodes in stripe %s", node.Name, stripe.Name))
            }
        }
    }

    return nil
}

func validateFailoverVoters(cluster *Cluster) error {
    if cluster.FailoverPriority.Mode != FailoverConsistency {
        return nil
    }

    voters := cluster.FailoverPriority.Voters

    if voters < 0 {
        return errors.New("The failover voter count cannot be negative")
    }

    if (2 * voters + cluster.NodeCount()) % 2 == 0 {
        return errors.New(fmt.Sprintf("Consistency mode requires an odd sum of voters and nodes. %d voters and %d nodes do not satisfy this", voters, cluster.NodeCount()))
    }

    return nil
}

func validateSecurityConsistency(cluster *Cluster) error {
    nodes := cluster.AllNodes()

    if len(nodes) == 0 {
        return nil
    }

    reference := nodes[0].Security

    for _, node := range nodes[1:] {
        if node.Security.SSLTLS != reference.SSLTLS || node.Security.Authc != reference.Authc || node.Security.Whitelist != reference.Whitelist {
            return errors.New(fmt.Sprintf("Node %s does not declare the same security settings as the rest of the cluster", node.Name))
        }
    }

    for _, node := range nodes {
        if node.Security.AnyEnabled() && node.Security.SecurityDir == "" {
            return errors.New(fmt.Sprintf("Node %s must declare a security directory because security features are enabled", node.Name))
        }

        if !node.Security.AnyEnabled() && node.Security.SecurityDir != "" {
            return errors.New(fmt.Sprintf("Node %s declares a security directory but no security feature is enabled", node.Name))
        }
    }

    if reference.Authc == "certificate" && !reference.SSLTLS {
        return errors.New("Certificate authentication requires ssl-tls to be enabled")
    }

    return nil
}

func validateOffheapResources(cluster *Cluster) error {
    for name, size := range cluster.OffheapResources {
        if strings.TrimSpace(name) == "" {
            return errors.New("An offheap resource name cannot be empty")
        }

        if size == 0 {
            return errors.New(fmt.Sprintf("Offheap resource %s must have a size greater than zero", name))
        }
    }

    return nil
}

func validateTimeouts(cluster *Cluster) error {
    if cluster.ClientReconnectWindowSeconds == 0 {
        return errors.New("The client reconnect window must be positive")
    }

    if cluster.ClientLeaseDurationSeconds == 0 {
        return errors.New("The client lease duration must be positive")
    }

    if cluster.ClientLeaseDurationSeconds > cluster.ClientReconnectWindowSeconds {
        return errors.New(fmt.Sprintf("The client lease duration (%ds) cannot exceed the client reconnect window (%ds)", cluster.ClientLeaseDurationSeconds, cluster.ClientReconnectWindowSeconds))
    }

    return nil
}

func (validator *ClusterValidator) validatePaths(cluster *Cluster) error {
    substitutor := validator.Substitutor

    if substitutor == nil {
        substitutor = &util.ParameterSubstitutor{ }
    }

    for _, node := range cluster.AllNodes() {
        paths := map[string]string{
            SettingLogDir: node.LogDir,
            SettingBackupDir: node.BackupDir,
            SettingMetadataDir: node.MetadataDir,
            SettingAuditLogDir: node.AuditLogDir,
            SettingSecurityDir: node.Security.SecurityDir,
        }

        for name, path := range node.DataDirs {
            paths[SettingDataDirs + "." + name] = path
        }

        for settingName, path := range paths {
            if path == "" {
                continue
            }

            substituted := substitutor.Substitute(path)

            if err := validatePath("", substituted); err != nil {
                return errors.New(fmt.Sprintf("Node %s declares an invalid path for %s: %v", node.Name, settingName, err))
            }
        }
    }

    return nil
}
