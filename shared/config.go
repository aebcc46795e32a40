package shared

import (
    "errors"
    "fmt"
    "io/ioutil"

    "gopkg.in/yaml.v2"

    . "github.com/cljohnso/terracotta-platform/logging"
)

type YAMLServerConfig struct {
    RepositoryRoot string `yaml:"repository"`
    NodeName string `yaml:"nodeName"`
    Hostname string `yaml:"hostname"`
    BindAddress string `yaml:"bindAddress"`
    Port int `yaml:"port"`
    GroupPort int `yaml:"groupPort"`
    LogLevel string `yaml:"logLevel"`
}

func isValidPort(p int) bool {
    return p >= 0 && p < (1 << 16)
}

func (ysc *YAMLServerConfig) LoadFromFile(file string) error {
    rawConfig, err := ioutil.ReadFile(file)

    if err != nil {
        return err
    }

    err = yaml.Unmarshal(rawConfig, ysc)

    if err != nil {
        return err
    }

    if len(ysc.RepositoryRoot) == 0 {
        return errors.New("No repository directory was specified")
    }

    if len(ysc.NodeName) == 0 {
        return errors.New("No node name was specified")
    }

    if !isValidPort(ysc.Port) || ysc.Port == 0 {
        return errors.New(fmt.Sprintf("%d is an invalid port for the node server", ysc.Port))
    }

    if !isValidPort(ysc.GroupPort) {
        return errors.New(fmt.Sprintf("%d is an invalid group port", ysc.GroupPort))
    }

    if len(ysc.LogLevel) != 0 {
        SetLoggingLevel(ysc.LogLevel)
    }

    return nil
}
