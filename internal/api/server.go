package api

import (
    "context"
    "log"
    "os"
    "strconv"
    "strings"

    "golang.org/x/time/rate"

    "sigscore/internal/model"
    "sigscore/internal/queue"
    "sigscore/internal/store"
    "sigscore/internal/webhooks"
)

type Server struct {
    Store  store.Store
    Queue  queue.Queue
    Pub    *webhooks.Publisher
    Worker *webhooks.Worker
    Broker EventBroker
}

// NewServer creates a Server. If DATABASE_URL is unset, uses the in-memory
// store; if REDIS_URL is unset, uses the in-process delivery queue.
func NewServer() (*Server, error) {
    dsn := os.Getenv("DATABASE_URL")
    var s store.Store
    if strings.TrimSpace(dsn) == "" {
        s = store.NewMemory()
    } else {
        sp, err := store.NewPostgres(dsn)
        if err != nil {
            return nil, err
        }
        // Run migrations (dev helper)
        if os.Getenv("DB_MIGRATE") != "false" {
            if err := sp.Migrate(context.Background()); err != nil {
                log.Printf("server: migrate: %v", err)
            }
        }
        s = sp
    }

    var q queue.Queue
    var broker EventBroker
    if url := os.Getenv("REDIS_URL"); url != "" {
        rq, err := queue.NewRedis(url)
        if err != nil {
            return nil, err
        }
        q = rq
        if rb, err := NewRedisBroker(url); err == nil {
            broker = rb
        } else {
            broker = NewBroker()
        }
    } else {
        q = queue.NewMemory(0)
        broker = NewBroker()
    }

    w := webhooks.NewWorker(s, q, nil)
    if v := os.Getenv("WEBHOOK_RATE_LIMIT"); v != "" {
        if rps, err := strconv.ParseFloat(v, 64); err == nil && rps > 0 {
            w.RateLimit = rate.Limit(rps)
        }
    }
    srv := &Server{Store: s, Queue: q, Pub: webhooks.NewPublisher(s, q), Worker: w, Broker: broker}
    w.OnResult = func(rec model.DeliveryRecord) { srv.Broker.Publish(rec.SubscriptionID, rec) }
    return srv, nil
}
