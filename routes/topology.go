package routes

import (
    "encoding/json"
    "io/ioutil"
    "net/http"
    "time"

    "github.com/gorilla/mux"

    . "github.com/cljohnso/terracotta-platform/logging"
    . "github.com/cljohnso/terracotta-platform/model"
)

type TopologyEndpoint struct {
    ConfigFacade ConfigFacade
}

func (topologyEndpoint *TopologyEndpoint) Attach(router *mux.Router) {
    // The configuration currently in effect
    router.HandleFunc("/topology/runtime", func(w http.ResponseWriter, r *http.Request) {
        writeJSON(w, topologyEndpoint.ConfigFacade.RuntimeNodeContext())
    }).Methods("GET")

    // The configuration after any pending restart
    router.HandleFunc("/topology/upcoming", func(w http.ResponseWriter, r *http.Request) {
        writeJSON(w, topologyEndpoint.ConfigFacade.UpcomingNodeContext())
    }).Methods("GET")

    router.HandleFunc("/topology/restart-required", func(w http.ResponseWriter, r *http.Request) {
        writeJSON(w, map[string]bool{ "restartRequired": topologyEndpoint.ConfigFacade.IsRestartRequired() })
    }).Methods("GET")

    // Activate a node in diagnostic mode
    router.HandleFunc("/topology/activate", func(w http.ResponseWriter, r *http.Request) {
        body, err := ioutil.ReadAll(r.Body)

        if err != nil {
            w.WriteHeader(http.StatusInternalServerError)
            w.Write([]byte("\"Unable to read the request body\"\n"))

            return
        }

        var request struct {
            Cluster *Cluster `json:"cluster"`
            License string `json:"license,omitempty"`
        }

        if err := json.Unmarshal(body, &request); err != nil || request.Cluster == nil {
            w.WriteHeader(http.StatusBadRequest)
            w.Write([]byte("\"Unable to parse the request body\"\n"))

            return
        }

        if err := topologyEndpoint.ConfigFacade.PrepareActivation(request.Cluster, request.License); err != nil {
            Log.Errorf("POST /topology/activate: %v", err.Error())

            w.WriteHeader(http.StatusBadRequest)
            w.Write([]byte("\"" + err.Error() + "\"\n"))

            return
        }

        w.WriteHeader(http.StatusOK)
    }).Methods("POST")

    // Schedule a delayed restart
    router.HandleFunc("/topology/restart", func(w http.ResponseWriter, r *http.Request) {
        body, err := ioutil.ReadAll(r.Body)

        if err != nil {
            w.WriteHeader(http.StatusInternalServerError)
            w.Write([]byte("\"Unable to read the request body\"\n"))

            return
        }

        var request struct {
            DelaySeconds uint64 `json:"delaySeconds"`
        }

        if err := json.Unmarshal(body, &request); err != nil {
            w.WriteHeader(http.StatusBadRequest)
            w.Write([]byte("\"Unable to parse the request body\"\n"))

            return
        }

        if err := topologyEndpoint.ConfigFacade.Restart(time.Duration(request.DelaySeconds) * time.Second); err != nil {
            w.WriteHeader(http.StatusBadRequest)
            w.Write([]byte("\"" + err.Error() + "\"\n"))

            return
        }

        w.WriteHeader(http.StatusOK)
    }).Methods("POST")
}

func writeJSON(w http.ResponseWriter, body interface{}) {
    encoded, _ := json.Marshal(body)

    w.Header().Set("Content-Type", "application/json; charset=utf8")
    w.Write(encoded)
    w.Write([]byte("\n"))
}
