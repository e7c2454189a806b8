package queue

import (
    "context"
    "encoding/json"
    "fmt"
    "log"
    "strconv"
    "sync"
    "time"

    redis "github.com/redis/go-redis/v9"

    "sigscore/internal/store"
)

const (
    dueKey       = "sigscore:deliveries:due"
    pollInterval = 500 * time.Millisecond
    pollBatch    = 50
)

// Redis is a Queue backed by a Redis sorted set: members are serialized tasks,
// scores are due times in unix milliseconds. A poll loop claims due members
// with ZREM before handing them to the worker pool, so each task fires on one
// consumer at a time.
type Redis struct {
    rdb *redis.Client
}

func NewRedis(url string) (*Redis, error) {
    opt, err := redis.ParseURL(url)
    if err != nil { return nil, err }
    rdb := redis.NewClient(opt)
    ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
    defer cancel()
    if err := rdb.Ping(ctx).Err(); err != nil { return nil, fmt.Errorf("redis ping: %w", err) }
    return &Redis{rdb: rdb}, nil
}

func (q *Redis) Enqueue(ctx context.Context, task store.DeliveryTask, delay time.Duration) error {
    data, err := json.Marshal(task)
    if err != nil { return err }
    due := float64(time.Now().Add(delay).UnixMilli())
    return q.rdb.ZAdd(ctx, dueKey, redis.Z{Score: due, Member: string(data)}).Err()
}

func (q *Redis) Run(ctx context.Context, workers int, h Handler) {
    if workers <= 0 { workers = 4 }
    ch := make(chan store.DeliveryTask)
    var wg sync.WaitGroup
    for i := 0; i < workers; i++ {
        wg.Add(1)
        go func() {
            defer wg.Done()
            for task := range ch {
                h(ctx, task)
            }
        }()
    }
    ticker := time.NewTicker(pollInterval)
    defer ticker.Stop()
    for {
        select {
        case <-ctx.Done():
            close(ch)
            wg.Wait()
            return
        case <-ticker.C:
            q.pollOnce(ctx, ch)
        }
    }
}

func (q *Redis) pollOnce(ctx context.Context, ch chan<- store.DeliveryTask) {
    now := strconv.FormatInt(time.Now().UnixMilli(), 10)
    members, err := q.rdb.ZRangeByScore(ctx, dueKey, &redis.ZRangeBy{Min: "-inf", Max: now, Count: pollBatch}).Result()
    if err != nil || len(members) == 0 {
        if err != nil && ctx.Err() == nil { log.Printf("queue: poll: %v", err) }
        return
    }
    for _, m := range members {
        // Claim before dispatch; a zero removal count means another consumer won.
        n, err := q.rdb.ZRem(ctx, dueKey, m).Result()
        if err != nil || n == 0 { continue }
        var task store.DeliveryTask
        if err := json.Unmarshal([]byte(m), &task); err != nil {
            log.Printf("queue: bad task payload dropped: %v", err)
            continue
        }
        select {
        case ch <- task:
        case <-ctx.Done():
            return
        }
    }
}
