package main

import (
    "bufio"
    "context"
    "log"
    "net"
    "net/http"
    "os"
    "os/signal"
    "strconv"
    "syscall"
    "time"

    "github.com/prometheus/client_golang/prometheus/promhttp"

    "sigscore/internal/api"
    "sigscore/internal/metrics"
)

func main() {
    srv, err := api.NewServer()
    if err != nil {
        log.Fatalf("failed to init server: %v", err)
    }
    metrics.RegisterDefault()

    mux := http.NewServeMux()

    // Subscriptions
    mux.HandleFunc("/v1/subscriptions", srv.SubscriptionsHandler)
    mux.HandleFunc("/v1/subscriptions/", srv.SubscriptionByIDHandler) // includes /test, /deliveries, /stats, /activate

    // Events (fire entry point)
    mux.HandleFunc("/v1/events", srv.EventsHandler)

    // Health
    mux.HandleFunc("/healthz", srv.HealthHandler)
    mux.HandleFunc("/readyz", srv.ReadyHandler)
    mux.HandleFunc("/debug/info", srv.DebugJSON)

    // Observability & docs
    mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
    mux.HandleFunc("/openapi.yaml", srv.OpenAPIHandler)
    mux.HandleFunc("/openapi.json", srv.OpenAPIJSONHandler)
    mux.HandleFunc("/docs", srv.DocsHandler)

    addr := ":8080"
    if v := os.Getenv("PORT"); v != "" {
        addr = ":" + v
    }

    httpSrv := &http.Server{
        Addr:              addr,
        Handler:           logMiddleware(mux),
        ReadHeaderTimeout: 5 * time.Second,
    }

    // Start the delivery worker pool
    ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
    defer stop()
    workers := 4
    if v := os.Getenv("WEBHOOK_WORKERS"); v != "" {
        if n, err := strconv.Atoi(v); err == nil && n > 0 { workers = n }
    }
    go srv.Worker.Run(ctx, workers)

    go func() {
        <-ctx.Done()
        shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
        defer cancel()
        _ = httpSrv.Shutdown(shutdownCtx)
    }()

    log.Printf("API listening on %s", addr)
    if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
        log.Fatalf("server error: %v", err)
    }
}

func logMiddleware(next http.Handler) http.Handler {
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        start := time.Now()
        sw := &statusWriter{ResponseWriter: w, status: 200}
        next.ServeHTTP(sw, r)
        dur := time.Since(start)
        metrics.HTTPRequests.WithLabelValues(r.Method, r.URL.Path, strconv.Itoa(sw.status)).Inc()
        log.Printf("%s %s %s %d %v", r.RemoteAddr, r.Method, r.URL.Path, sw.status, dur)
    })
}

type statusWriter struct {
    http.ResponseWriter
    status int
}

func (w *statusWriter) WriteHeader(code int) {
    w.status = code
    w.ResponseWriter.WriteHeader(code)
}

// Hijack keeps the WebSocket upgrade path working through the wrapper.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
    hj, ok := w.ResponseWriter.(http.Hijacker)
    if !ok {
        return nil, nil, http.ErrNotSupported
    }
    return hj.Hijack()
}
