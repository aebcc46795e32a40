package server

import (
    "fmt"
    "net"
    "net/http"
    "net/http/pprof"
    "time"

    "github.com/gorilla/mux"
    "github.com/gorilla/websocket"
    "github.com/prometheus/client_golang/prometheus/promhttp"

    . "github.com/cljohnso/terracotta-platform/logging"
    "github.com/cljohnso/terracotta-platform/routes"
)

type NodeServerConfig struct {
    Host string
    Port int
    ConfigFacade routes.ConfigFacade
}

// NodeServer is the HTTP surface of one node: the nomad protocol endpoints,
// the topology endpoints, a live event stream and metrics.
type NodeServer struct {
    httpServer *http.Server
    listener net.Listener
    router *mux.Router
    host string
    port int
    upgrader websocket.Upgrader
    configFacade routes.ConfigFacade
    eventHub *EventHub
}

func NewNodeServer(serverConfig NodeServerConfig) *NodeServer {
    upgrader := websocket.Upgrader{
        ReadBufferSize: 1024,
        WriteBufferSize: 1024,
    }

    server := &NodeServer{
        host: serverConfig.Host,
        port: serverConfig.Port,
        upgrader: upgrader,
        configFacade: serverConfig.ConfigFacade,
        eventHub: NewEventHub(),
        router: mux.NewRouter(),
    }

    server.attachEndpoints()

    return server
}

func (server *NodeServer) attachEndpoints() {
    nomadEndpoint := &routes.NomadEndpoint{ ConfigFacade: server.configFacade }
    topologyEndpoint := &routes.TopologyEndpoint{ ConfigFacade: server.configFacade }

    nomadEndpoint.Attach(server.router)
    topologyEndpoint.Attach(server.router)

    server.router.HandleFunc("/events", func(w http.ResponseWriter, r *http.Request) {
        connection, err := server.upgrader.Upgrade(w, r, nil)

        if err != nil {
            return
        }

        server.eventHub.AcceptConnection(connection)
    }).Methods("GET")

    server.router.Handle("/metrics", promhttp.Handler()).Methods("GET")

    server.router.HandleFunc("/debug/pprof/", pprof.Index)
    server.router.HandleFunc("/debug/pprof/profile", pprof.Profile)
    server.router.HandleFunc("/debug/pprof/heap", pprof.Index)
}

func (server *NodeServer) Router() *mux.Router {
    return server.router
}

func (server *NodeServer) EventHub() *EventHub {
    return server.eventHub
}

func (server *NodeServer) Host() string {
    return server.host
}

func (server *NodeServer) Port() int {
    return server.port
}

func (server *NodeServer) Start() error {
    server.httpServer = &http.Server{
        Handler: server.router,
        WriteTimeout: 45 * time.Second,
        ReadTimeout: 45 * time.Second,
    }

    listener, err := net.Listen("tcp", fmt.Sprintf("%s:%d", server.host, server.port))

    if err != nil {
        Log.Errorf("Unable to listen on %s:%d: %v", server.host, server.port, err.Error())

        return err
    }

    server.listener = listener

    Log.Infof("Node listening on %s:%d", server.host, server.port)

    err = server.httpServer.Serve(server.listener)

    return err
}

func (server *NodeServer) Stop() error {
    server.eventHub.Close()

    if server.listener != nil {
        server.listener.Close()
    }

    return nil
}
