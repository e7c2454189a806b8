package api

import (
    "sync"

    "sigscore/internal/model"
)

// EventBroker fans delivery outcomes out to live stream watchers, keyed by
// subscription id.
type EventBroker interface {
    Subscribe(subscriptionID string) chan model.DeliveryRecord
    Unsubscribe(subscriptionID string, ch chan model.DeliveryRecord)
    Publish(subscriptionID string, rec model.DeliveryRecord)
}

type Broker struct {
    mu   sync.Mutex
    subs map[string]map[chan model.DeliveryRecord]struct{} // subscriptionId -> set of channels
}

func NewBroker() *Broker {
    return &Broker{subs: map[string]map[chan model.DeliveryRecord]struct{}{}}
}

func (b *Broker) Subscribe(subscriptionID string) chan model.DeliveryRecord {
    ch := make(chan model.DeliveryRecord, 8)
    b.mu.Lock()
    if b.subs[subscriptionID] == nil {
        b.subs[subscriptionID] = map[chan model.DeliveryRecord]struct{}{}
    }
    b.subs[subscriptionID][ch] = struct{}{}
    b.mu.Unlock()
    return ch
}

func (b *Broker) Unsubscribe(subscriptionID string, ch chan model.DeliveryRecord) {
    b.mu.Lock()
    if m := b.subs[subscriptionID]; m != nil {
        delete(m, ch)
        if len(m) == 0 {
            delete(b.subs, subscriptionID)
        }
    }
    b.mu.Unlock()
    close(ch)
}

// Publish drops records for slow watchers rather than blocking deliveries.
func (b *Broker) Publish(subscriptionID string, rec model.DeliveryRecord) {
    b.mu.Lock()
    for ch := range b.subs[subscriptionID] {
        select {
        case ch <- rec:
        default:
        }
    }
    b.mu.Unlock()
}
