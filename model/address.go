package model

import (
    "errors"
    "fmt"
    "net"
    "strconv"
)

type Address struct {
    Host string `json:"host"`
    Port int `json:"port"`
}

func (address Address) String() string {
    return fmt.Sprintf("%s:%d", address.Host, address.Port)
}

func (address Address) IsEmpty() bool {
    return address.Host == "" && address.Port == 0
}

func (address Address) ToHTTPURL(relativePath string) string {
    return "http://" + address.String() + relativePath
}

func ParseAddress(s string) (Address, error) {
    host, portString, err := net.SplitHostPort(s)

    if err != nil {
        return Address{ }, errors.New(fmt.Sprintf("%s is not a valid host:port address", s))
    }

    port, err := strconv.Atoi(portString)

    if err != nil || port <= 0 || port >= (1 << 16) {
        return Address{ }, errors.New(fmt.Sprintf("%s is not a valid port", portString))
    }

    return Address{ Host: host, Port: port }, nil
}
