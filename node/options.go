package node

import (
    "errors"
    "fmt"
    "strings"
)

// NodeInitializationOptions describes how a fresh node presents itself
// before it has ever been activated.
type NodeInitializationOptions struct {
    RepositoryRoot string
    NodeName string
    Hostname string
    BindAddress string
    Host string
    Port int
    GroupPort int
    LogLevel string
}

func (options NodeInitializationOptions) Validate() error {
    if strings.TrimSpace(options.RepositoryRoot) == "" {
        return errors.New("A repository root directory is required")
    }

    if strings.TrimSpace(options.NodeName) == "" {
        return errors.New("A node name is required")
    }

    if options.Port <= 0 || options.Port >= (1 << 16) {
        return errors.New(fmt.Sprintf("%d is an invalid port for the node server", options.Port))
    }

    if options.GroupPort < 0 || options.GroupPort >= (1 << 16) {
        return errors.New(fmt.Sprintf("%d is an invalid group port", options.GroupPort))
    }

    return nil
}
