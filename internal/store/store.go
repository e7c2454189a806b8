package store

import (
    "context"
    "errors"

    "sigscore/internal/model"
)

// Store is the persistence interface used by the API server and the delivery
// worker. All subscription operations are scoped by tenant; a lookup with the
// wrong tenant reports ErrNotFound, never a permission error.
type Store interface {
    // Subscriptions
    CreateSubscription(ctx context.Context, tenantID string, req model.SubscriptionRequest, secret string) (model.Subscription, error)
    GetSubscription(ctx context.Context, tenantID, id string) (model.Subscription, error)
    ListSubscriptions(ctx context.Context, tenantID, cursor string, limit int) ([]model.Subscription, string, error)
    UpdateSubscription(ctx context.Context, tenantID, id string, upd model.SubscriptionUpdate) (model.Subscription, error)
    DeleteSubscription(ctx context.Context, tenantID, id string) error
    SetSubscriptionActive(ctx context.Context, tenantID, id string, active bool) (model.Subscription, error)
    GetSubscriptionsForEvent(ctx context.Context, tenantID, eventType string) ([]model.Subscription, error)

    // Health status updates come from concurrent delivery attempts;
    // last writer wins, per subscription, without tenant scoping.
    SetSubscriptionStatus(ctx context.Context, subscriptionID, status string) error

    // Delivery records (append-only, one per attempt)
    InsertDeliveryRecord(ctx context.Context, rec model.DeliveryRecord) (string, error)
    ListDeliveryRecords(ctx context.Context, tenantID, subscriptionID string, limit int) ([]model.DeliveryRecord, error)
    DeliveryStats(ctx context.Context, tenantID, subscriptionID string, windowDays int) (model.DeliveryStats, error)
}

var ErrNotFound = errors.New("not found")
