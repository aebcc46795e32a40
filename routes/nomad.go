package routes

import (
    "encoding/json"
    "io/ioutil"
    "net/http"

    "github.com/gorilla/mux"

    . "github.com/cljohnso/terracotta-platform/logging"
    "github.com/cljohnso/terracotta-platform/nomad"
)

type NomadEndpoint struct {
    ConfigFacade ConfigFacade
}

func (nomadEndpoint *NomadEndpoint) Attach(router *mux.Router) {
    // Report this server's nomad state
    router.HandleFunc("/nomad/discover", func(w http.ResponseWriter, r *http.Request) {
        response, err := nomadEndpoint.ConfigFacade.Discover()

        if err != nil {
            Log.Errorf("POST /nomad/discover: %v", err.Error())

            w.Header().Set("Content-Type", "application/json; charset=utf8")
            w.WriteHeader(http.StatusInternalServerError)
            w.Write([]byte("\"Unable to read the nomad state\"\n"))

            return
        }

        encoded, _ := json.Marshal(response)

        w.Header().Set("Content-Type", "application/json; charset=utf8")
        w.Write(encoded)
        w.Write([]byte("\n"))
    }).Methods("POST")

    // Prepare a change
    router.HandleFunc("/nomad/prepare", func(w http.ResponseWriter, r *http.Request) {
        var message nomad.PrepareMessage

        if !decodeMessage(w, r, &message) {
            return
        }

        writeResponse(w, nomadEndpoint.ConfigFacade.Prepare(message))
    }).Methods("POST")

    // Commit a prepared change
    router.HandleFunc("/nomad/commit", func(w http.ResponseWriter, r *http.Request) {
        var message nomad.CommitMessage

        if !decodeMessage(w, r, &message) {
            return
        }

        writeResponse(w, nomadEndpoint.ConfigFacade.Commit(message))
    }).Methods("POST")

    // Roll back a prepared change
    router.HandleFunc("/nomad/rollback", func(w http.ResponseWriter, r *http.Request) {
        var message nomad.RollbackMessage

        if !decodeMessage(w, r, &message) {
            return
        }

        writeResponse(w, nomadEndpoint.ConfigFacade.Rollback(message))
    }).Methods("POST")

    // Fence previous coordinators
    router.HandleFunc("/nomad/takeover", func(w http.ResponseWriter, r *http.Request) {
        var message nomad.TakeoverMessage

        if !decodeMessage(w, r, &message) {
            return
        }

        writeResponse(w, nomadEndpoint.ConfigFacade.Takeover(message))
    }).Methods("POST")
}

func decodeMessage(w http.ResponseWriter, r *http.Request, message interface{}) bool {
    body, err := ioutil.ReadAll(r.Body)

    if err != nil {
        w.Header().Set("Content-Type", "application/json; charset=utf8")
        w.WriteHeader(http.StatusInternalServerError)
        w.Write([]byte("\"Unable to read the request body\"\n"))

        return false
    }

    if err := json.Unmarshal(body, message); err != nil {
        Log.Warningf("%s %s: unable to parse request body", r.Method, r.URL.Path)

        w.Header().Set("Content-Type", "application/json; charset=utf8")
        w.WriteHeader(http.StatusBadRequest)
        w.Write([]byte("\"Unable to parse the request body\"\n"))

        return false
    }

    return true
}

func writeResponse(w http.ResponseWriter, response *nomad.AcceptRejectResponse) {
    encoded, _ := json.Marshal(response)

    w.Header().Set("Content-Type", "application/json; charset=utf8")
    w.Write(encoded)
    w.Write([]byte("\n"))
}
