package webhooks

import (
    "context"
    "encoding/json"
    "log"

    "github.com/google/uuid"

    "sigscore/internal/metrics"
    "sigscore/internal/queue"
    "sigscore/internal/store"
)

// Publisher is the event dispatcher: domain code calls Fire whenever a
// qualifying business event occurs, and the publisher fans it out to the
// matching subscriptions' delivery queue.
type Publisher struct {
    Store store.Store
    Queue queue.Queue
}

func NewPublisher(s store.Store, q queue.Queue) *Publisher {
    return &Publisher{Store: s, Queue: q}
}

// Fire schedules one delivery task per active, matching, filter-passing
// subscription and returns the number scheduled. Delivery failures are never
// surfaced here; a scheduling failure for one subscription is logged and does
// not block its siblings.
func (p *Publisher) Fire(ctx context.Context, tenantID, eventType string, payload map[string]any) int {
    subs, err := p.Store.GetSubscriptionsForEvent(ctx, tenantID, eventType)
    if err != nil {
        log.Printf("publisher: load subscriptions tenant=%s event=%s: %v", tenantID, eventType, err)
        return 0
    }
    if len(subs) == 0 {
        return 0
    }
    metrics.EventsFired.WithLabelValues(eventType).Inc()

    scheduled := 0
    for _, sub := range subs {
        if !MatchFilters(sub.Filters, payload) {
            continue
        }
        body, err := buildPayload(sub.PayloadTemplate, eventType, tenantID, payload)
        if err != nil {
            log.Printf("publisher: build payload sub=%s: %v", sub.ID, err)
            continue
        }
        task := store.DeliveryTask{
            ID:             uuid.New().String(),
            TenantID:       tenantID,
            SubscriptionID: sub.ID,
            EventType:      eventType,
            TargetURL:      sub.TargetURL,
            Secret:         sub.Secret,
            Payload:        body,
            Attempt:        1,
        }
        if err := p.Queue.Enqueue(ctx, task, 0); err != nil {
            log.Printf("publisher: enqueue sub=%s event=%s: %v", sub.ID, eventType, err)
            continue
        }
        scheduled++
    }
    return scheduled
}

// buildPayload renders the subscription's template or falls back to the
// default envelope, and returns the exact bytes to deliver.
func buildPayload(tmpl map[string]any, eventType, tenantID string, payload map[string]any) ([]byte, error) {
    if len(tmpl) == 0 {
        return json.Marshal(Envelope(eventType, tenantID, payload))
    }
    rendered := RenderTemplate(map[string]any(tmpl), TemplateData(eventType, tenantID, payload))
    return json.Marshal(rendered)
}
