package queue

import (
    "context"
    "sync"
    "time"

    "sigscore/internal/store"
)

// Handler processes one due delivery task. Invoked at-least-once.
type Handler func(ctx context.Context, task store.DeliveryTask)

// Queue schedules delivery tasks for execution after an optional delay.
type Queue interface {
    Enqueue(ctx context.Context, task store.DeliveryTask, delay time.Duration) error
    // Run consumes due tasks with the given handler until ctx is cancelled.
    Run(ctx context.Context, workers int, h Handler)
}

// Memory is an in-process Queue used when no REDIS_URL is set. Delayed tasks
// wait on a timer; due tasks feed a channel consumed by the worker pool.
type Memory struct {
    ch     chan store.DeliveryTask
    mu     sync.Mutex
    timers []*time.Timer
}

func NewMemory(buffer int) *Memory {
    if buffer <= 0 { buffer = 256 }
    return &Memory{ch: make(chan store.DeliveryTask, buffer)}
}

func (q *Memory) Enqueue(ctx context.Context, task store.DeliveryTask, delay time.Duration) error {
    if delay <= 0 {
        select {
        case q.ch <- task:
            return nil
        case <-ctx.Done():
            return ctx.Err()
        }
    }
    q.mu.Lock()
    t := time.AfterFunc(delay, func() { q.ch <- task })
    q.timers = append(q.timers, t)
    q.mu.Unlock()
    return nil
}

func (q *Memory) Run(ctx context.Context, workers int, h Handler) {
    if workers <= 0 { workers = 4 }
    var wg sync.WaitGroup
    for i := 0; i < workers; i++ {
        wg.Add(1)
        go func() {
            defer wg.Done()
            for {
                select {
                case <-ctx.Done():
                    return
                case task := <-q.ch:
                    h(ctx, task)
                }
            }
        }()
    }
    wg.Wait()
    q.mu.Lock()
    for _, t := range q.timers { t.Stop() }
    q.mu.Unlock()
}
