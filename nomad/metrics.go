package nomad

import (
    "github.com/prometheus/client_golang/prometheus"
)

var nomadMessages = prometheus.NewCounterVec(prometheus.CounterOpts{
    Namespace: "configd",
    Subsystem: "nomad",
    Name: "messages_total",
    Help: "Number of nomad protocol messages processed by type and outcome.",
}, []string{ "type", "outcome" })

func init() {
    prometheus.MustRegister(nomadMessages)
}

func recordNomadMessage(messageType string, outcome string) {
    nomadMessages.WithLabelValues(messageType, outcome).Inc()
}
