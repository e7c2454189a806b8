package store

import (
    "context"
    "sort"
    "sync"
    "time"

    "github.com/google/uuid"
    "sigscore/internal/model"
)

// Memory is a simple in-memory store used when no DATABASE_URL is set.
type Memory struct {
    mu      sync.Mutex
    subs    map[string]model.Subscription // id -> subscription
    subsTen map[string][]string           // tenant -> subscription ids
    recs    map[string][]model.DeliveryRecord // subscription id -> attempts, append order
}

func NewMemory() *Memory {
    return &Memory{
        subs:    map[string]model.Subscription{},
        subsTen: map[string][]string{},
        recs:    map[string][]model.DeliveryRecord{},
    }
}

func (m *Memory) CreateSubscription(ctx context.Context, tenantID string, req model.SubscriptionRequest, secret string) (model.Subscription, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    now := time.Now().UTC()
    s := model.Subscription{
        ID:              uuid.New().String(),
        TenantID:        tenantID,
        TargetURL:       req.TargetURL,
        EventType:       req.EventType,
        Secret:          secret,
        Filters:         req.Filters,
        PayloadTemplate: req.PayloadTemplate,
        Active:          true,
        Status:          model.StatusHealthy,
        CreatedAt:       now,
        UpdatedAt:       now,
    }
    m.subs[s.ID] = s
    m.subsTen[tenantID] = append(m.subsTen[tenantID], s.ID)
    return s, nil
}

func (m *Memory) GetSubscription(ctx context.Context, tenantID, id string) (model.Subscription, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    s, ok := m.subs[id]
    if !ok || s.TenantID != tenantID { return model.Subscription{}, ErrNotFound }
    return s, nil
}

func (m *Memory) ListSubscriptions(ctx context.Context, tenantID, cursor string, limit int) ([]model.Subscription, string, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    ids := m.subsTen[tenantID]
    start := 0
    if cursor != "" {
        for i, id := range ids {
            if id == cursor { start = i + 1; break }
        }
    }
    if limit <= 0 { limit = 100 }
    end := start + limit
    if end > len(ids) { end = len(ids) }
    items := make([]model.Subscription, 0, end-start)
    for _, id := range ids[start:end] {
        items = append(items, m.subs[id])
    }
    next := ""
    if end < len(ids) && len(items) > 0 { next = items[len(items)-1].ID }
    return items, next, nil
}

func (m *Memory) UpdateSubscription(ctx context.Context, tenantID, id string, upd model.SubscriptionUpdate) (model.Subscription, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    s, ok := m.subs[id]
    if !ok || s.TenantID != tenantID { return model.Subscription{}, ErrNotFound }
    if upd.TargetURL != nil { s.TargetURL = *upd.TargetURL }
    if upd.EventType != nil { s.EventType = *upd.EventType }
    if upd.Filters != nil { s.Filters = upd.Filters }
    if upd.PayloadTemplate != nil { s.PayloadTemplate = upd.PayloadTemplate }
    s.UpdatedAt = time.Now().UTC()
    m.subs[id] = s
    return s, nil
}

func (m *Memory) DeleteSubscription(ctx context.Context, tenantID, id string) error {
    m.mu.Lock()
    defer m.mu.Unlock()
    s, ok := m.subs[id]
    if !ok || s.TenantID != tenantID { return ErrNotFound }
    delete(m.subs, id)
    ids := m.subsTen[tenantID]
    out := make([]string, 0, len(ids))
    for _, v := range ids {
        if v != id { out = append(out, v) }
    }
    m.subsTen[tenantID] = out
    return nil
}

func (m *Memory) SetSubscriptionActive(ctx context.Context, tenantID, id string, active bool) (model.Subscription, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    s, ok := m.subs[id]
    if !ok || s.TenantID != tenantID { return model.Subscription{}, ErrNotFound }
    s.Active = active
    s.UpdatedAt = time.Now().UTC()
    m.subs[id] = s
    return s, nil
}

func (m *Memory) GetSubscriptionsForEvent(ctx context.Context, tenantID, eventType string) ([]model.Subscription, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    var out []model.Subscription
    for _, id := range m.subsTen[tenantID] {
        s := m.subs[id]
        if s.Active && s.EventType == eventType { out = append(out, s) }
    }
    return out, nil
}

func (m *Memory) SetSubscriptionStatus(ctx context.Context, subscriptionID, status string) error {
    m.mu.Lock()
    defer m.mu.Unlock()
    s, ok := m.subs[subscriptionID]
    if !ok { return nil } // subscription deleted while deliveries were in flight
    if s.Status != status {
        s.Status = status
        s.UpdatedAt = time.Now().UTC()
        m.subs[subscriptionID] = s
    }
    return nil
}

func (m *Memory) InsertDeliveryRecord(ctx context.Context, rec model.DeliveryRecord) (string, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    if rec.ID == "" { rec.ID = uuid.New().String() }
    if rec.CreatedAt.IsZero() { rec.CreatedAt = time.Now().UTC() }
    m.recs[rec.SubscriptionID] = append(m.recs[rec.SubscriptionID], rec)
    return rec.ID, nil
}

func (m *Memory) ListDeliveryRecords(ctx context.Context, tenantID, subscriptionID string, limit int) ([]model.DeliveryRecord, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    s, ok := m.subs[subscriptionID]
    if !ok || s.TenantID != tenantID { return nil, ErrNotFound }
    recs := m.recs[subscriptionID]
    out := append([]model.DeliveryRecord(nil), recs...)
    // newest first
    sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
    if limit <= 0 { limit = 50 }
    if len(out) > limit { out = out[:limit] }
    return out, nil
}

func (m *Memory) DeliveryStats(ctx context.Context, tenantID, subscriptionID string, windowDays int) (model.DeliveryStats, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    s, ok := m.subs[subscriptionID]
    if !ok || s.TenantID != tenantID { return model.DeliveryStats{}, ErrNotFound }
    if windowDays <= 0 { windowDays = 7 }
    cutoff := time.Now().UTC().AddDate(0, 0, -windowDays)
    st := model.DeliveryStats{WindowDays: windowDays}
    for _, r := range m.recs[subscriptionID] {
        if r.CreatedAt.Before(cutoff) { continue }
        st.Total++
        if r.Success { st.Succeeded++ } else { st.Failed++ }
    }
    if st.Total > 0 { st.SuccessRate = float64(st.Succeeded) / float64(st.Total) }
    return st, nil
}
