package server

import (
    "encoding/json"
    "sync"

    "github.com/gorilla/websocket"

    . "github.com/cljohnso/terracotta-platform/logging"
)

// ConfigEvent is pushed to every /events subscriber when a configuration
// change is committed.
type ConfigEvent struct {
    Type string `json:"type"`
    Version uint64 `json:"version,omitempty"`
    Summary string `json:"summary,omitempty"`
    RestartRequired bool `json:"restartRequired"`
}

// EventHub fans configuration events out to connected websocket clients. A
// client that cannot be written to is dropped.
type EventHub struct {
    mu sync.Mutex
    connections map[*websocket.Conn]bool
}

func NewEventHub() *EventHub {
    return &EventHub{
        connections: make(map[*websocket.Conn]bool),
    }
}

func (eventHub *EventHub) AcceptConnection(connection *websocket.Conn) {
    eventHub.mu.Lock()
    eventHub.connections[connection] = true
    eventHub.mu.Unlock()

    // drain (and discard) client frames so pings and closes are processed
    go func() {
        for {
            if _, _, err := connection.ReadMessage(); err != nil {
                eventHub.removeConnection(connection)

                return
            }
        }
    }()
}

func (eventHub *EventHub) removeConnection(connection *websocket.Conn) {
    eventHub.mu.Lock()
    defer eventHub.mu.Unlock()

    if eventHub.connections[connection] {
        delete(eventHub.connections, connection)
        connection.Close()
    }
}

func (eventHub *EventHub) Broadcast(event ConfigEvent) {
    encoded, err := json.Marshal(event)

    if err != nil {
        return
    }

    eventHub.mu.Lock()
    connections := make([]*websocket.Conn, 0, len(eventHub.connections))

    for connection := range eventHub.connections {
        connections = append(connections, connection)
    }

    eventHub.mu.Unlock()

    for _, connection := range connections {
        if err := connection.WriteMessage(websocket.TextMessage, encoded); err != nil {
            Log.Debugf("Dropping event subscriber: %v", err.Error())
            eventHub.removeConnection(connection)
        }
    }
}

func (eventHub *EventHub) Close() {
    eventHub.mu.Lock()
    defer eventHub.mu.Unlock()

    for connection := range eventHub.connections {
        connection.Close()
        delete(eventHub.connections, connection)
    }
}
