package main

import (
    "fmt"
    "os"

    "github.com/cljohnso/terracotta-platform/node"
    . "github.com/cljohnso/terracotta-platform/shared"
)

func init() {
    registerCommand("start", startNode, startUsage)
}

var startUsage string =
`Usage: configd start -conf=[config file]
`

func startNode() {
    var sc YAMLServerConfig

    err := sc.LoadFromFile(*optConfigFile)

    if err != nil {
        fmt.Printf("Unable to load config file: %s\n", err.Error())

        return
    }

    configNode := node.New(node.NodeInitializationOptions{
        RepositoryRoot: sc.RepositoryRoot,
        NodeName: sc.NodeName,
        Hostname: sc.Hostname,
        BindAddress: sc.BindAddress,
        Host: sc.Hostname,
        Port: sc.Port,
        GroupPort: sc.GroupPort,
        LogLevel: sc.LogLevel,
    })

    configNode.UseRestartHook(func() {
        // the process supervisor restarts the daemon when it exits cleanly
        configNode.Stop()
        os.Exit(0)
    })

    if err := configNode.Start(); err != nil {
        fmt.Printf("Node stopped with error: %s\n", err.Error())

        os.Exit(1)
    }
}
