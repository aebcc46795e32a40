package model

import (
    "errors"
    "fmt"
    "strconv"
    "strings"
)

// Configuration is a single typed configuration entry: a setting, the scope
// it applies to and, for map settings, the key within the map.
type Configuration struct {
    SettingName string `json:"setting"`
    Applicability Applicability `json:"applicability"`
    Key string `json:"key,omitempty"`
    Value string `json:"value,omitempty"`
}

func (configuration Configuration) Setting() (*Setting, error) {
    return SettingByName(configuration.SettingName)
}

func (configuration Configuration) String() string {
    name := configuration.SettingName

    if configuration.Key != "" {
        name = name + "." + configuration.Key
    }

    switch configuration.Applicability.Scope {
    case ScopeStripe:
        return fmt.Sprintf("%s=%s (stripe %s)", name, configuration.Value, configuration.Applicability.StripeUID)
    case ScopeNode:
        return fmt.Sprintf("%s=%s (node %s)", name, configuration.Value, configuration.Applicability.NodeUID)
    default:
        return fmt.Sprintf("%s=%s", name, configuration.Value)
    }
}

// Validate checks the entry against the setting catalog and the target
// cluster without applying it.
func (configuration Configuration) Validate(cluster *Cluster) error {
    setting, err := configuration.Setting()

    if err != nil {
        return err
    }

    if !setting.AllowsScope(configuration.Applicability.Scope) {
        return errors.New(fmt.Sprintf("Setting %s cannot be applied at the %s scope", setting.Name, configuration.Applicability.Scope))
    }

    if err := configuration.Applicability.Validate(cluster); err != nil {
        return err
    }

    if setting.IsMap && configuration.Key == "" && configuration.Value != "" {
        return errors.New(fmt.Sprintf("Setting %s is a map setting and requires a key", setting.Name))
    }

    if !setting.IsMap && configuration.Key != "" {
        return errors.New(fmt.Sprintf("Setting %s is not a map setting and does not accept a key", setting.Name))
    }

    if configuration.Value != "" && setting.Validate != nil {
        if err := setting.Validate(configuration.Key, configuration.Value); err != nil {
            return err
        }
    }

    return nil
}

func (configuration Configuration) targetNodes(cluster *Cluster) []*Node {
    switch configuration.Applicability.Scope {
    case ScopeStripe:
        stripe := cluster.StripeByUID(configuration.Applicability.StripeUID)

        if stripe == nil {
            return nil
        }

        return stripe.Nodes
    case ScopeNode:
        _, node := cluster.NodeByUID(configuration.Applicability.NodeUID)

        if node == nil {
            return nil
        }

        return []*Node{ node }
    default:
        return cluster.AllNodes()
    }
}

// Set applies the entry to the cluster in place. The caller passes a clone
// when it needs the original to survive.
func (configuration Configuration) Set(cluster *Cluster) error {
    if err := configuration.Validate(cluster); err != nil {
        return err
    }

    if configuration.Value == "" {
        return errors.New(fmt.Sprintf("Setting %s requires a value", configuration.SettingName))
    }

    return configuration.write(cluster, configuration.Value)
}

// Unset restores the catalog default, or removes the keyed entry for map
// settings.
func (configuration Configuration) Unset(cluster *Cluster) error {
    setting, err := configuration.Setting()

    if err != nil {
        return err
    }

    if err := configuration.Applicability.Validate(cluster); err != nil {
        return err
    }

    if setting.IsMap {
        return configuration.remove(cluster)
    }

    return configuration.write(cluster, setting.Default)
}

func (configuration Configuration) write(cluster *Cluster, value string) error {
    switch configuration.SettingName {
    case SettingClusterName:
        cluster.Name = value
    case SettingOffheapResources:
        size, err := ParseSize(value)

        if err != nil {
            return err
        }

        if cluster.OffheapResources == nil {
            cluster.OffheapResources = make(map[string]uint64)
        }

        cluster.OffheapResources[configuration.Key] = size
    case SettingFailoverPriority:
        cluster.FailoverPriority = parseFailoverPriority(value)
    case SettingClientReconnectWindow:
        seconds, err := strconv.ParseUint(value, 10, 64)

        if err != nil {
            return err
        }

        cluster.ClientReconnectWindowSeconds = seconds
    case SettingClientLeaseDuration:
        seconds, err := strconv.ParseUint(value, 10, 64)

        if err != nil {
            return err
        }

        cluster.ClientLeaseDurationSeconds = seconds
    case SettingSSLTLS:
        for _, node := range cluster.AllNodes() {
            node.Security.SSLTLS = value == "true"
        }
    case SettingAuthc:
        for _, node := range cluster.AllNodes() {
            node.Security.Authc = value
        }
    case SettingWhitelist:
        for _, node := range cluster.AllNodes() {
            node.Security.Whitelist = value == "true"
        }
    case SettingSecurityDir:
        for _, node := range configuration.targetNodes(cluster) {
            node.Security.SecurityDir = value
        }
    case SettingDataDirs:
        for _, node := range configuration.targetNodes(cluster) {
            if node.DataDirs == nil {
                node.DataDirs = make(map[string]string)
            }

            node.DataDirs[configuration.Key] = value
        }
    case SettingBackupDir:
        for _, node := range configuration.targetNodes(cluster) {
            node.BackupDir = value
        }
    case SettingLogDir:
        for _, node := range configuration.targetNodes(cluster) {
            node.LogDir = value
        }
    case SettingMetadataDir:
        for _, node := range configuration.targetNodes(cluster) {
            node.MetadataDir = value
        }
    case SettingAuditLogDir:
        for _, node := range configuration.targetNodes(cluster) {
            node.AuditLogDir = value
        }
    case SettingTCProperties:
        for _, node := range configuration.targetNodes(cluster) {
            if node.TCProperties == nil {
                node.TCProperties = make(map[string]string)
            }

            node.TCProperties[configuration.Key] = value
        }
    case SettingLoggers:
        for _, node := range configuration.targetNodes(cluster) {
            if node.Loggers == nil {
                node.Loggers = make(map[string]string)
            }

            node.Loggers[configuration.Key] = value
        }
    default:
        return errors.New(fmt.Sprintf("%s is not a recognized setting", configuration.SettingName))
    }

    return nil
}

func (configuration Configuration) remove(cluster *Cluster) error {
    switch configuration.SettingName {
    case SettingOffheapResources:
        delete(cluster.OffheapResources, configuration.Key)
    case SettingDataDirs:
        for _, node := range configuration.targetNodes(cluster) {
            delete(node.DataDirs, configuration.Key)
        }
    case SettingTCProperties:
        for _, node := range configuration.targetNodes(cluster) {
            delete(node.TCProperties, configuration.Key)
        }
    case SettingLoggers:
        for _, node := range configuration.targetNodes(cluster) {
            delete(node.Loggers, configuration.Key)
        }
    default:
        return errors.New(fmt.Sprintf("%s is not a map setting", configuration.SettingName))
    }

    return nil
}

func parseFailoverPriority(value string) FailoverPriority {
    if value == FailoverConsistency {
        return FailoverPriority{ Mode: FailoverConsistency }
    }

    if strings.HasPrefix(value, FailoverConsistency + ":") {
        voters, _ := strconv.Atoi(value[len(FailoverConsistency) + 1:])

        return FailoverPriority{ Mode: FailoverConsistency, Voters: voters }
    }

    return FailoverPriority{ Mode: FailoverAvailability }
}

// ParseConfiguration turns an operator-supplied expression into a typed
// entry. Supported forms:
//
//   <setting>[.<key>]=<value>                                  cluster scope
//   stripe.<stripe-name>.<setting>[.<key>]=<value>             stripe scope
//   stripe.<stripe-name>.node.<node-name>.<setting>[...]=<v>   node scope
//
// Stripe and node names are resolved to UIDs against the supplied cluster.
func ParseConfiguration(cluster *Cluster, expression string) (Configuration, error) {
    assignment := strings.SplitN(expression, "=", 2)
    var value string

    if len(assignment) == 2 {
        value = assignment[1]
    }

    target := assignment[0]
    applicability := ClusterApplicability()

    if strings.HasPrefix(target, "stripe.") {
        parts := strings.SplitN(target[len("stripe."):], ".", 2)

        if len(parts) != 2 {
            return Configuration{ }, errors.New(fmt.Sprintf("%s does not name a setting", expression))
        }

        stripe := cluster.StripeByName(parts[0])

        if stripe == nil {
            return Configuration{ }, errors.New(fmt.Sprintf("No stripe named %s exists in the cluster", parts[0]))
        }

        target = parts[1]
        applicability = StripeApplicability(stripe.UID)

        if strings.HasPrefix(target, "node.") {
            nodeParts := strings.SplitN(target[len("node."):], ".", 2)

            if len(nodeParts) != 2 {
                return Configuration{ }, errors.New(fmt.Sprintf("%s does not name a setting", expression))
            }

            node := stripe.NodeByName(nodeParts[0])

            if node == nil {
                return Configuration{ }, errors.New(fmt.Sprintf("No node named %s exists in stripe %s", nodeParts[0], stripe.Name))
            }

            target = nodeParts[1]
            applicability = NodeApplicability(stripe.UID, node.UID)
        }
    }

    settingName := target
    var key string

    if dot := strings.IndexByte(target, '.'); dot != -1 {
        if _, err := SettingByName(target[:dot]); err == nil {
            settingName = target[:dot]
            key = target[dot + 1:]
        }
    }

    if _, err := SettingByName(settingName); err != nil {
        return Configuration{ }, err
    }

    return Configuration{
        SettingName: settingName,
        Applicability: applicability,
        Key: key,
        Value: value,
    }, nil
}
