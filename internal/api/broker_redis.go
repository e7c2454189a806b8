package api

import (
    "context"
    "encoding/json"
    "sync"
    "time"

    redis "github.com/redis/go-redis/v9"

    "sigscore/internal/model"
)

// RedisBroker implements EventBroker over Redis Pub/Sub so stream watchers on
// one instance see deliveries performed by another.
type RedisBroker struct {
    rdb *redis.Client

    mu   sync.Mutex
    subs map[chan model.DeliveryRecord]*redis.PubSub
}

func NewRedisBroker(url string) (*RedisBroker, error) {
    opt, err := redis.ParseURL(url)
    if err != nil {
        return nil, err
    }
    return &RedisBroker{
        rdb:  redis.NewClient(opt),
        subs: map[chan model.DeliveryRecord]*redis.PubSub{},
    }, nil
}

func (b *RedisBroker) Subscribe(subscriptionID string) chan model.DeliveryRecord {
    ch := make(chan model.DeliveryRecord, 16)
    ctx := context.Background()
    ps := b.rdb.Subscribe(ctx, b.chanName(subscriptionID))
    // initial consume to ensure subscription
    _, _ = ps.Receive(ctx)
    b.mu.Lock()
    b.subs[ch] = ps
    b.mu.Unlock()
    go func() {
        defer close(ch)
        for msg := range ps.Channel() {
            var rec model.DeliveryRecord
            if err := json.Unmarshal([]byte(msg.Payload), &rec); err == nil {
                select {
                case ch <- rec:
                default:
                }
            }
        }
    }()
    return ch
}

// Unsubscribe closes the underlying Pub/Sub; the reader goroutine then drains
// out and closes ch.
func (b *RedisBroker) Unsubscribe(subscriptionID string, ch chan model.DeliveryRecord) {
    b.mu.Lock()
    ps := b.subs[ch]
    delete(b.subs, ch)
    b.mu.Unlock()
    if ps != nil {
        _ = ps.Close()
    }
}

func (b *RedisBroker) Publish(subscriptionID string, rec model.DeliveryRecord) {
    ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
    defer cancel()
    data, _ := json.Marshal(rec)
    _ = b.rdb.Publish(ctx, b.chanName(subscriptionID), data).Err()
}

func (b *RedisBroker) chanName(subscriptionID string) string { return "deliveries:" + subscriptionID }
