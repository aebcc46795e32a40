package main

import (
    "flag"
    "fmt"
    "os"
)

type command struct {
    run func()
    usage string
}

var commands map[string]command = make(map[string]command)

func registerCommand(name string, run func(), usage string) {
    commands[name] = command{ run: run, usage: usage }
}

var optConfigFile *string = flag.String("conf", "", "Config file describing this node")

var mainUsage string =
`Usage: configd <command> <arguments> | -conf=[config file]

Commands:
    start      Start a configuration node
    conf       Print a template configuration file

Use configd help <command> for more usage information about a command.
`

func main() {
    flag.Parse()

    if len(flag.Args()) == 0 {
        if len(*optConfigFile) != 0 {
            startNode()

            return
        }

        fmt.Fprintf(os.Stderr, "%s", mainUsage)
        os.Exit(1)
    }

    commandName := flag.Args()[0]

    if commandName == "help" {
        if len(flag.Args()) < 2 {
            fmt.Fprintf(os.Stderr, "%s", mainUsage)
            os.Exit(1)
        }

        c, ok := commands[flag.Args()[1]]

        if !ok {
            fmt.Fprintf(os.Stderr, "%s is not a valid command\n", flag.Args()[1])
            os.Exit(1)
        }

        fmt.Fprintf(os.Stderr, "%s", c.usage)

        return
    }

    c, ok := commands[commandName]

    if !ok {
        fmt.Fprintf(os.Stderr, "%s is not a valid command\n", commandName)
        os.Exit(1)
    }

    c.run()
}
