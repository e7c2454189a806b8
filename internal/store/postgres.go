package store

import (
    "context"
    "database/sql"
    "encoding/json"
    "errors"
    "time"

    _ "github.com/jackc/pgx/v5/stdlib"
    "github.com/google/uuid"

    "sigscore/internal/model"
)

type Postgres struct {
    db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
    db, err := sql.Open("pgx", dsn)
    if err != nil {
        return nil, err
    }
    if err := db.Ping(); err != nil {
        return nil, err
    }
    return &Postgres{db: db}, nil
}

// Ping is used by the readiness probe.
func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

// Migrate creates the schema if it does not exist (dev helper).
func (p *Postgres) Migrate(ctx context.Context) error {
    _, err := p.db.ExecContext(ctx, `
        CREATE TABLE IF NOT EXISTS subscriptions (
            id UUID PRIMARY KEY,
            tenant_id TEXT NOT NULL,
            target_url TEXT NOT NULL,
            event_type TEXT NOT NULL,
            secret TEXT NOT NULL,
            filters JSONB,
            payload_template JSONB,
            active BOOLEAN NOT NULL DEFAULT true,
            status TEXT NOT NULL DEFAULT 'healthy',
            created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
        );
        CREATE INDEX IF NOT EXISTS idx_subscriptions_tenant_event ON subscriptions (tenant_id, event_type) WHERE active;
        CREATE TABLE IF NOT EXISTS delivery_records (
            id UUID PRIMARY KEY,
            subscription_id UUID NOT NULL,
            event_type TEXT NOT NULL,
            payload BYTEA,
            status_code INT NOT NULL DEFAULT 0,
            response TEXT,
            success BOOLEAN NOT NULL,
            attempt INT NOT NULL,
            max_attempts INT NOT NULL,
            job_id TEXT,
            created_at TIMESTAMPTZ NOT NULL DEFAULT now()
        );
        CREATE INDEX IF NOT EXISTS idx_delivery_records_sub ON delivery_records (subscription_id, created_at DESC);
    `)
    return err
}

func (p *Postgres) CreateSubscription(ctx context.Context, tenantID string, req model.SubscriptionRequest, secret string) (model.Subscription, error) {
    id := uuid.New().String()
    now := time.Now().UTC()
    _, err := p.db.ExecContext(ctx, `INSERT INTO subscriptions (id, tenant_id, target_url, event_type, secret, filters, payload_template, active, status, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,true,$8,$9,$9)`,
        id, tenantID, req.TargetURL, req.EventType, secret, jsonOrNil(req.Filters), jsonOrNil(req.PayloadTemplate), model.StatusHealthy, now)
    if err != nil { return model.Subscription{}, err }
    return model.Subscription{
        ID: id, TenantID: tenantID, TargetURL: req.TargetURL, EventType: req.EventType,
        Secret: secret, Filters: req.Filters, PayloadTemplate: req.PayloadTemplate,
        Active: true, Status: model.StatusHealthy, CreatedAt: now, UpdatedAt: now,
    }, nil
}

const subCols = `id::text, tenant_id, target_url, event_type, secret, filters, payload_template, active, status, created_at, updated_at`

func (p *Postgres) scanSubscription(row interface{ Scan(...any) error }) (model.Subscription, error) {
    var s model.Subscription
    var filters, tmpl []byte
    if err := row.Scan(&s.ID, &s.TenantID, &s.TargetURL, &s.EventType, &s.Secret, &filters, &tmpl, &s.Active, &s.Status, &s.CreatedAt, &s.UpdatedAt); err != nil {
        return model.Subscription{}, err
    }
    if len(filters) > 0 {
        var f model.SubscriptionFilters
        if err := json.Unmarshal(filters, &f); err == nil { s.Filters = &f }
    }
    if len(tmpl) > 0 { _ = json.Unmarshal(tmpl, &s.PayloadTemplate) }
    return s, nil
}

func (p *Postgres) GetSubscription(ctx context.Context, tenantID, id string) (model.Subscription, error) {
    row := p.db.QueryRowContext(ctx, `SELECT `+subCols+` FROM subscriptions WHERE tenant_id=$1 AND id=$2`, tenantID, id)
    s, err := p.scanSubscription(row)
    if errors.Is(err, sql.ErrNoRows) { return model.Subscription{}, ErrNotFound }
    return s, err
}

func (p *Postgres) ListSubscriptions(ctx context.Context, tenantID, cursor string, limit int) ([]model.Subscription, string, error) {
    if limit <= 0 || limit > 500 { limit = 100 }
    var rows *sql.Rows
    var err error
    if cursor != "" {
        rows, err = p.db.QueryContext(ctx, `SELECT `+subCols+` FROM subscriptions WHERE tenant_id=$1 AND id::text > $2 ORDER BY id LIMIT $3`, tenantID, cursor, limit)
    } else {
        rows, err = p.db.QueryContext(ctx, `SELECT `+subCols+` FROM subscriptions WHERE tenant_id=$1 ORDER BY id LIMIT $2`, tenantID, limit)
    }
    if err != nil { return nil, "", err }
    defer rows.Close()
    var out []model.Subscription
    for rows.Next() {
        s, err := p.scanSubscription(rows)
        if err != nil { return nil, "", err }
        out = append(out, s)
    }
    next := ""
    if len(out) == limit { next = out[len(out)-1].ID }
    return out, next, nil
}

func (p *Postgres) UpdateSubscription(ctx context.Context, tenantID, id string, upd model.SubscriptionUpdate) (model.Subscription, error) {
    cur, err := p.GetSubscription(ctx, tenantID, id)
    if err != nil { return model.Subscription{}, err }
    if upd.TargetURL != nil { cur.TargetURL = *upd.TargetURL }
    if upd.EventType != nil { cur.EventType = *upd.EventType }
    if upd.Filters != nil { cur.Filters = upd.Filters }
    if upd.PayloadTemplate != nil { cur.PayloadTemplate = upd.PayloadTemplate }
    res, err := p.db.ExecContext(ctx, `UPDATE subscriptions SET target_url=$1, event_type=$2, filters=$3, payload_template=$4, updated_at=now() WHERE tenant_id=$5 AND id=$6`,
        cur.TargetURL, cur.EventType, jsonOrNil(cur.Filters), jsonOrNil(cur.PayloadTemplate), tenantID, id)
    if err != nil { return model.Subscription{}, err }
    if n, _ := res.RowsAffected(); n == 0 { return model.Subscription{}, ErrNotFound }
    return p.GetSubscription(ctx, tenantID, id)
}

func (p *Postgres) DeleteSubscription(ctx context.Context, tenantID, id string) error {
    res, err := p.db.ExecContext(ctx, `DELETE FROM subscriptions WHERE tenant_id=$1 AND id=$2`, tenantID, id)
    if err != nil { return err }
    if n, _ := res.RowsAffected(); n == 0 { return ErrNotFound }
    return nil
}

func (p *Postgres) SetSubscriptionActive(ctx context.Context, tenantID, id string, active bool) (model.Subscription, error) {
    res, err := p.db.ExecContext(ctx, `UPDATE subscriptions SET active=$1, updated_at=now() WHERE tenant_id=$2 AND id=$3`, active, tenantID, id)
    if err != nil { return model.Subscription{}, err }
    if n, _ := res.RowsAffected(); n == 0 { return model.Subscription{}, ErrNotFound }
    return p.GetSubscription(ctx, tenantID, id)
}

func (p *Postgres) GetSubscriptionsForEvent(ctx context.Context, tenantID, eventType string) ([]model.Subscription, error) {
    rows, err := p.db.QueryContext(ctx, `SELECT `+subCols+` FROM subscriptions WHERE tenant_id=$1 AND event_type=$2 AND active`, tenantID, eventType)
    if err != nil { return nil, err }
    defer rows.Close()
    out := []model.Subscription{}
    for rows.Next() {
        s, err := p.scanSubscription(rows)
        if err != nil { return nil, err }
        out = append(out, s)
    }
    return out, nil
}

func (p *Postgres) SetSubscriptionStatus(ctx context.Context, subscriptionID, status string) error {
    // No row is fine: the subscription may have been deleted with retries in flight.
    _, err := p.db.ExecContext(ctx, `UPDATE subscriptions SET status=$1, updated_at=now() WHERE id=$2 AND status <> $1`, status, subscriptionID)
    return err
}

func (p *Postgres) InsertDeliveryRecord(ctx context.Context, rec model.DeliveryRecord) (string, error) {
    if rec.ID == "" { rec.ID = uuid.New().String() }
    _, err := p.db.ExecContext(ctx, `INSERT INTO delivery_records (id, subscription_id, event_type, payload, status_code, response, success, attempt, max_attempts, job_id)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
        rec.ID, rec.SubscriptionID, rec.Event, rec.Payload, rec.StatusCode, nullIfEmpty(rec.Response), rec.Success, rec.Attempt, rec.MaxAttempts, nullIfEmpty(rec.JobID))
    if err != nil { return "", err }
    return rec.ID, nil
}

func (p *Postgres) ListDeliveryRecords(ctx context.Context, tenantID, subscriptionID string, limit int) ([]model.DeliveryRecord, error) {
    if limit <= 0 || limit > 500 { limit = 50 }
    // Scope through the owning subscription so cross-tenant ids read as missing.
    if _, err := p.GetSubscription(ctx, tenantID, subscriptionID); err != nil { return nil, err }
    rows, err := p.db.QueryContext(ctx, `SELECT id::text, subscription_id::text, event_type, payload, status_code, COALESCE(response,''), success, attempt, max_attempts, COALESCE(job_id,''), created_at
        FROM delivery_records WHERE subscription_id=$1 ORDER BY created_at DESC LIMIT $2`, subscriptionID, limit)
    if err != nil { return nil, err }
    defer rows.Close()
    out := []model.DeliveryRecord{}
    for rows.Next() {
        var r model.DeliveryRecord
        if err := rows.Scan(&r.ID, &r.SubscriptionID, &r.Event, &r.Payload, &r.StatusCode, &r.Response, &r.Success, &r.Attempt, &r.MaxAttempts, &r.JobID, &r.CreatedAt); err != nil {
            return nil, err
        }
        out = append(out, r)
    }
    return out, nil
}

func (p *Postgres) DeliveryStats(ctx context.Context, tenantID, subscriptionID string, windowDays int) (model.DeliveryStats, error) {
    if windowDays <= 0 { windowDays = 7 }
    if _, err := p.GetSubscription(ctx, tenantID, subscriptionID); err != nil { return model.DeliveryStats{}, err }
    st := model.DeliveryStats{WindowDays: windowDays}
    row := p.db.QueryRowContext(ctx, `SELECT COUNT(*), COUNT(*) FILTER (WHERE success), COUNT(*) FILTER (WHERE NOT success)
        FROM delivery_records WHERE subscription_id=$1 AND created_at > now() - make_interval(days => $2)`, subscriptionID, windowDays)
    if err := row.Scan(&st.Total, &st.Succeeded, &st.Failed); err != nil { return model.DeliveryStats{}, err }
    if st.Total > 0 { st.SuccessRate = float64(st.Succeeded) / float64(st.Total) }
    return st, nil
}

func nullIfEmpty(s string) any { if s == "" { return nil }; return s }

func jsonOrNil(v any) any {
    switch t := v.(type) {
    case *model.SubscriptionFilters:
        if t.Empty() { return nil }
    case map[string]any:
        if len(t) == 0 { return nil }
    case nil:
        return nil
    }
    b, err := json.Marshal(v)
    if err != nil { return nil }
    return b
}
