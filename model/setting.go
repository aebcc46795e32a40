package model

import (
    "errors"
    "fmt"
    "path/filepath"
    "strconv"
    "strings"
)

const (
    DefaultClientReconnectWindowSeconds uint64 = 120
    DefaultClientLeaseDurationSeconds uint64 = 20
)

// Mutability governs when a committed change to a setting takes effect.
const (
    AtRuntime = iota
    RequiresRestart = iota
    AtConfigurationOnly = iota
)

// Setting descriptors are data, not behavior. The behavior that applies a
// configuration entry to a cluster lives in Configuration.Set and
// Configuration.Unset.
type Setting struct {
    Name string
    AllowedScopes []string
    IsMap bool
    RequiredAtActivation bool
    Mutability int
    Default string
    Validate func(key string, value string) error
}

func (setting *Setting) AllowsScope(scope string) bool {
    for _, allowed := range setting.AllowedScopes {
        if allowed == scope {
            return true
        }
    }

    return false
}

func (setting *Setting) IsRuntime() bool {
    return setting.Mutability == AtRuntime
}

func validatePositiveSeconds(key string, value string) error {
    seconds, err := strconv.ParseUint(value, 10, 64)

    if err != nil || seconds == 0 {
        return errors.New(fmt.Sprintf("%s is not a positive number of seconds", value))
    }

    return nil
}

func validateSize(key string, value string) error {
    size, err := ParseSize(value)

    if err != nil {
        return err
    }

    if size == 0 {
        return errors.New("A resource size must be greater than zero")
    }

    return nil
}

func validatePath(key string, value string) error {
    if strings.TrimSpace(value) == "" {
        return errors.New("A path cannot be empty")
    }

    if strings.ContainsRune(value, 0) {
        return errors.New(fmt.Sprintf("%s is not a valid path", value))
    }

    // relative paths are allowed and later resolved against the node root
    cleaned := filepath.Clean(value)

    if cleaned == "" {
        return errors.New(fmt.Sprintf("%s is not a valid path", value))
    }

    return nil
}

func validateFailoverPriority(key string, value string) error {
    if value == FailoverAvailability {
        return nil
    }

    if value == FailoverConsistency {
        return nil
    }

    if strings.HasPrefix(value, FailoverConsistency + ":") {
        voters, err := strconv.Atoi(value[len(FailoverConsistency) + 1:])

        if err != nil || voters < 0 {
            return errors.New(fmt.Sprintf("%s is not a valid voter count", value))
        }

        return nil
    }

    return errors.New(fmt.Sprintf("%s is not a valid failover priority. Use availability, consistency or consistency:<voters>", value))
}

func validateAuthc(key string, value string) error {
    switch value {
    case "", "file", "ldap", "certificate":
        return nil
    default:
        return errors.New(fmt.Sprintf("%s is not a valid authentication scheme. Valid schemes are file, ldap and certificate", value))
    }
}

func validateBool(key string, value string) error {
    if value != "true" && value != "false" {
        return errors.New(fmt.Sprintf("%s is not a valid boolean. Use true or false", value))
    }

    return nil
}

func validateNonEmpty(key string, value string) error {
    if strings.TrimSpace(value) == "" {
        return errors.New("A value is required for this setting")
    }

    return nil
}

func validateLogLevel(key string, value string) error {
    switch strings.ToUpper(value) {
    case "TRACE", "DEBUG", "INFO", "WARN", "ERROR":
        return nil
    default:
        return errors.New(fmt.Sprintf("%s is not a valid log level", value))
    }
}

var settings = map[string]*Setting{
    SettingClusterName: {
        Name: SettingClusterName,
        AllowedScopes: []string{ ScopeCluster },
        RequiredAtActivation: true,
        Mutability: AtRuntime,
        Validate: validateNonEmpty,
    },
    SettingOffheapResources: {
        Name: SettingOffheapResources,
        AllowedScopes: []string{ ScopeCluster },
        IsMap: true,
        RequiredAtActivation: true,
        Mutability: AtRuntime,
        Validate: validateSize,
    },
    SettingFailoverPriority: {
        Name: SettingFailoverPriority,
        AllowedScopes: []string{ ScopeCluster },
        RequiredAtActivation: true,
        Mutability: RequiresRestart,
        Default: FailoverAvailability,
        Validate: validateFailoverPriority,
    },
    SettingClientReconnectWindow: {
        Name: SettingClientReconnectWindow,
        AllowedScopes: []string{ ScopeCluster },
        Mutability: AtRuntime,
        Default: "120",
        Validate: validatePositiveSeconds,
    },
    SettingClientLeaseDuration: {
        Name: SettingClientLeaseDuration,
        AllowedScopes: []string{ ScopeCluster },
        Mutability: AtRuntime,
        Default: "20",
        Validate: validatePositiveSeconds,
    },
    SettingSSLTLS: {
        Name: SettingSSLTLS,
        AllowedScopes: []string{ ScopeCluster },
        Mutability: RequiresRestart,
        Default: "false",
        Validate: validateBool,
    },
    SettingAuthc: {
        Name: SettingAuthc,
        AllowedScopes: []string{ ScopeCluster },
        Mutability: RequiresRestart,
        Validate: validateAuthc,
    },
    SettingWhitelist: {
        Name: SettingWhitelist,
        AllowedScopes: []string{ ScopeCluster },
        Mutability: RequiresRestart,
        Default: "false",
        Validate: validateBool,
    },
    SettingSecurityDir: {
        Name: SettingSecurityDir,
        AllowedScopes: []string{ ScopeNode },
        Mutability: RequiresRestart,
        Validate: validatePath,
    },
    SettingDataDirs: {
        Name: SettingDataDirs,
        AllowedScopes: []string{ ScopeCluster, ScopeStripe, ScopeNode },
        IsMap: true,
        RequiredAtActivation: true,
        Mutability: RequiresRestart,
        Validate: validatePath,
    },
    SettingBackupDir: {
        Name: SettingBackupDir,
        AllowedScopes: []string{ ScopeCluster, ScopeStripe, ScopeNode },
        Mutability: AtRuntime,
        Validate: validatePath,
    },
    SettingLogDir: {
        Name: SettingLogDir,
        AllowedScopes: []string{ ScopeNode },
        Mutability: RequiresRestart,
        Validate: validatePath,
    },
    SettingMetadataDir: {
        Name: SettingMetadataDir,
        AllowedScopes: []string{ ScopeNode },
        Mutability: AtConfigurationOnly,
        Validate: validatePath,
    },
    SettingAuditLogDir: {
        Name: SettingAuditLogDir,
        AllowedScopes: []string{ ScopeNode },
        Mutability: RequiresRestart,
        Validate: validatePath,
    },
    SettingTCProperties: {
        Name: SettingTCProperties,
        AllowedScopes: []string{ ScopeCluster, ScopeStripe, ScopeNode },
        IsMap: true,
        Mutability: AtRuntime,
        Validate: validateNonEmpty,
    },
    SettingLoggers: {
        Name: SettingLoggers,
        AllowedScopes: []string{ ScopeCluster, ScopeStripe, ScopeNode },
        IsMap: true,
        Mutability: AtRuntime,
        Validate: validateLogLevel,
    },
}

const (
    SettingClusterName = "cluster-name"
    SettingOffheapResources = "offheap-resources"
    SettingFailoverPriority = "failover-priority"
    SettingClientReconnectWindow = "client-reconnect-window"
    SettingClientLeaseDuration = "client-lease-duration"
    SettingSSLTLS = "security-ssl-tls"
    SettingAuthc = "security-authc"
    SettingWhitelist = "security-whitelist"
    SettingSecurityDir = "security-dir"
    SettingDataDirs = "data-dirs"
    SettingBackupDir = "backup-dir"
    SettingLogDir = "log-dir"
    SettingMetadataDir = "metadata-dir"
    SettingAuditLogDir = "audit-log-dir"
    SettingTCProperties = "tc-properties"
    SettingLoggers = "loggers"
)

func SettingByName(name string) (*Setting, error) {
    setting, ok := settings[name]

    if !ok {
        return nil, errors.New(fmt.Sprintf("%s is not a recognized setting", name))
    }

    return setting, nil
}

func AllSettings() []*Setting {
    all := make([]*Setting, 0, len(settings))

    for _, setting := range settings {
        all = append(all, setting)
    }

    return all
}
