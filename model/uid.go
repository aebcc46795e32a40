package model

import (
    "github.com/google/uuid"
)

// NewUID returns a time-ordered unique identifier. Version 1 UUIDs embed a
// timestamp so identifiers sort roughly by creation time, which keeps
// persisted topologies diffable.
func NewUID() string {
    id, err := uuid.NewUUID()

    if err != nil {
        return uuid.New().String()
    }

    return id.String()
}
