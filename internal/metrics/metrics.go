package metrics

import (
    "sync"

    "github.com/prometheus/client_golang/prometheus"
    "github.com/prometheus/client_golang/prometheus/collectors"
)

var (
    // Registry is the dedicated Prometheus registry for the API
    Registry = prometheus.NewRegistry()
    // HTTPRequests counts requests by method, path, and status
    HTTPRequests = prometheus.NewCounterVec(
        prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
        []string{"method", "path", "status"},
    )

    // DeliveryAttempts counts webhook delivery attempts by event type and outcome
    DeliveryAttempts = prometheus.NewCounterVec(
        prometheus.CounterOpts{Name: "webhook_delivery_attempts_total", Help: "Webhook delivery attempts by event type and outcome."},
        []string{"event_type", "outcome"},
    )
    // DeliveryLatency tracks delivery attempt latencies in milliseconds
    DeliveryLatency = prometheus.NewHistogramVec(
        prometheus.HistogramOpts{Name: "webhook_delivery_latency_ms", Help: "Webhook delivery latency in ms.", Buckets: []float64{10, 50, 100, 200, 500, 1000, 2000, 5000, 10000}},
        []string{"event_type", "outcome"},
    )
    // DeliveriesExhausted counts scheduling units that ran out of attempts
    DeliveriesExhausted = prometheus.NewCounterVec(
        prometheus.CounterOpts{Name: "webhook_deliveries_exhausted_total", Help: "Delivery jobs that failed all attempts."},
        []string{"event_type"},
    )
    // EventsFired counts dispatched domain events by type
    EventsFired = prometheus.NewCounterVec(
        prometheus.CounterOpts{Name: "webhook_events_fired_total", Help: "Domain events fired into the dispatcher."},
        []string{"event_type"},
    )
)

// RegisterDefault registers collectors to the default registry.
func RegisterDefault() {
    regOnce.Do(func() {
        Registry.MustRegister(HTTPRequests)
        Registry.MustRegister(DeliveryAttempts)
        Registry.MustRegister(DeliveryLatency)
        Registry.MustRegister(DeliveriesExhausted)
        Registry.MustRegister(EventsFired)
        // Go/process collectors on our registry
        Registry.MustRegister(collectors.NewGoCollector())
        Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
    })
}

var regOnce sync.Once
