package webhooks

import (
    "context"
    "log"
    "sync"
    "time"

    "golang.org/x/time/rate"

    "sigscore/internal/metrics"
    "sigscore/internal/model"
    "sigscore/internal/queue"
    "sigscore/internal/store"
)

// MaxAttempts is the ceiling for one scheduling unit.
const MaxAttempts = 5

// retryDelays[n-2] is the wait before attempt n. The schedule is deliberately
// fixed rather than jittered: per-subscription volume is low and a
// deterministic schedule is easier to reason about and to test.
var retryDelays = []time.Duration{
    30 * time.Second,
    60 * time.Second,
    120 * time.Second,
    240 * time.Second,
    480 * time.Second,
}

// RetryDelay returns the backoff before the given attempt (2-based).
func RetryDelay(attempt int) time.Duration {
    idx := attempt - 2
    if idx < 0 { idx = 0 }
    if idx >= len(retryDelays) { idx = len(retryDelays) - 1 }
    return retryDelays[idx]
}

// Worker consumes delivery tasks from the queue, performs attempts, records
// every outcome, and keeps subscription health up to date.
//
// Retries never re-check the subscription's active flag or existence: a
// subscription deleted with retries in flight has those retries run to
// exhaustion against the stale target.
type Worker struct {
    Store  store.Store
    Queue  queue.Queue
    Sender Sender

    // RateLimit caps attempts per subscription per second; 0 disables.
    RateLimit rate.Limit

    // Delays overrides the fixed retry schedule; nil uses retryDelays.
    Delays []time.Duration

    // OnResult, when set, observes every completed attempt (used for the
    // live delivery stream).
    OnResult func(rec model.DeliveryRecord)

    mu       sync.Mutex
    limiters map[string]*rate.Limiter
}

func NewWorker(s store.Store, q queue.Queue, sender Sender) *Worker {
    if sender == nil { sender = NewHTTPSender() }
    return &Worker{Store: s, Queue: q, Sender: sender, limiters: map[string]*rate.Limiter{}}
}

// Run consumes the queue until ctx is cancelled.
func (w *Worker) Run(ctx context.Context, workers int) {
    w.Queue.Run(ctx, workers, w.HandleTask)
}

// HandleTask executes one delivery attempt for a scheduling unit.
func (w *Worker) HandleTask(ctx context.Context, task store.DeliveryTask) {
    if lim := w.limiter(task.SubscriptionID); lim != nil {
        if err := lim.Wait(ctx); err != nil {
            return
        }
    }

    result := w.Sender.Send(ctx, DeliveryRequest{
        URL:       task.TargetURL,
        Secret:    task.Secret,
        EventType: task.EventType,
        Payload:   task.Payload,
    })
    success := result.Success()

    rec := model.DeliveryRecord{
        SubscriptionID: task.SubscriptionID,
        Event:          task.EventType,
        Payload:        task.Payload,
        StatusCode:     result.StatusCode,
        Response:       truncate(result.Body),
        Success:        success,
        Attempt:        task.Attempt,
        MaxAttempts:    MaxAttempts,
        JobID:          task.ID,
        CreatedAt:      time.Now().UTC(),
    }
    if _, err := w.Store.InsertDeliveryRecord(ctx, rec); err != nil {
        log.Printf("worker: record attempt job=%s: %v", task.ID, err)
    }

    outcome := "failure"
    if success { outcome = "success" }
    metrics.DeliveryAttempts.WithLabelValues(task.EventType, outcome).Inc()
    metrics.DeliveryLatency.WithLabelValues(task.EventType, outcome).Observe(float64(result.Duration.Milliseconds()))
    if w.OnResult != nil { w.OnResult(rec) }

    if success {
        if err := w.Store.SetSubscriptionStatus(ctx, task.SubscriptionID, model.StatusHealthy); err != nil {
            log.Printf("worker: mark healthy sub=%s: %v", task.SubscriptionID, err)
        }
        return
    }

    if task.Attempt < MaxAttempts {
        delay := w.delay(task.Attempt + 1)
        task.Attempt++
        if err := w.Queue.Enqueue(ctx, task, delay); err != nil {
            log.Printf("worker: reschedule job=%s attempt=%d: %v", task.ID, task.Attempt, err)
        }
        return
    }

    // Exhausted.
    metrics.DeliveriesExhausted.WithLabelValues(task.EventType).Inc()
    if err := w.Store.SetSubscriptionStatus(ctx, task.SubscriptionID, model.StatusFailing); err != nil {
        log.Printf("worker: mark failing sub=%s: %v", task.SubscriptionID, err)
    }
    log.Printf("worker: job=%s sub=%s exhausted after %d attempts status=%d", task.ID, task.SubscriptionID, MaxAttempts, rec.StatusCode)
}

func (w *Worker) delay(attempt int) time.Duration {
    if len(w.Delays) == 0 { return RetryDelay(attempt) }
    idx := attempt - 2
    if idx < 0 { idx = 0 }
    if idx >= len(w.Delays) { idx = len(w.Delays) - 1 }
    return w.Delays[idx]
}

func (w *Worker) limiter(subscriptionID string) *rate.Limiter {
    if w.RateLimit <= 0 { return nil }
    w.mu.Lock()
    defer w.mu.Unlock()
    lim := w.limiters[subscriptionID]
    if lim == nil {
        lim = rate.NewLimiter(w.RateLimit, 1)
        w.limiters[subscriptionID] = lim
    }
    return lim
}
