package storage

import (
    "errors"
    "fmt"
    "strconv"
    "strings"
)

const configFileExtension = ".json"

// Versioned configuration files are named <node-name>.<version>.json. The
// node name itself may contain dots, so the version is taken from the last
// dot-separated field before the extension.
type ClusterConfigFilename struct {
    NodeName string
    Version uint64
}

func NewClusterConfigFilename(nodeName string, version uint64) ClusterConfigFilename {
    return ClusterConfigFilename{ NodeName: nodeName, Version: version }
}

func (filename ClusterConfigFilename) String() string {
    return fmt.Sprintf("%s.%d%s", filename.NodeName, filename.Version, configFileExtension)
}

func ParseClusterConfigFilename(name string) (ClusterConfigFilename, error) {
    if !strings.HasSuffix(name, configFileExtension) {
        return ClusterConfigFilename{ }, errors.New(fmt.Sprintf("%s is not a cluster config filename", name))
    }

    stem := name[:len(name) - len(configFileExtension)]
    lastDot := strings.LastIndexByte(stem, '.')

    if lastDot <= 0 {
        return ClusterConfigFilename{ }, errors.New(fmt.Sprintf("%s is not a cluster config filename", name))
    }

    version, err := strconv.ParseUint(stem[lastDot + 1:], 10, 64)

    if err != nil || version == 0 {
        return ClusterConfigFilename{ }, errors.New(fmt.Sprintf("%s does not encode a valid config version", name))
    }

    return ClusterConfigFilename{ NodeName: stem[:lastDot], Version: version }, nil
}
