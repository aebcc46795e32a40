package main

import (
    "fmt"
)

func init() {
    registerCommand("conf", generateConfig, confUsage)
}

var confUsage string =
`Usage: configd conf
`

var templateConfig string =
`# The repository field specifies the directory where this node keeps its
# configuration repository: versioned topology snapshots, the sanskrit
# change journal and the installed license. If it doesn't exist it will be
# created.
# **REQUIRED**
repository: /var/lib/configd

# The name this node is known by within its stripe. Once a repository has
# been created for a node the name cannot change.
# **REQUIRED**
nodeName: node-1

# The host name other cluster members and clients use to reach this node.
# Defaults to the machine host name.
hostname: localhost

# The address the node server binds to. Leave empty to bind all interfaces.
bindAddress: ""

# The port the node server listens on for configuration traffic
port: 9410

# The port used for intra-stripe communication
groupPort: 9430

# The logging level of the node. Valid settings are critical, error,
# warning, notice, info and debug
logLevel: info
`

func generateConfig() {
    fmt.Print(templateConfig)
}
