package storage

import (
    "github.com/prometheus/client_golang/prometheus"
)

var storageErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
    Namespace: "configd",
    Subsystem: "storage",
    Name: "errors_total",
    Help: "Number of storage layer errors by operation.",
}, []string{ "operation", "file" })

func init() {
    prometheus.MustRegister(storageErrors)
}

func RecordStorageError(operation string, file string) {
    storageErrors.WithLabelValues(operation, file).Inc()
}
