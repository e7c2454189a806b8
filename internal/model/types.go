package model

import "time"

// Supported webhook event types. Subscriptions referencing anything else are
// rejected at create/update time.
var SupportedEventTypes = []string{
	"signal.created",
	"contact.created",
	"contact.updated",
	"company.created",
	"deal.created",
	"deal.stage_changed",
	"score.changed",
	"tier.changed",
}

// IsSupportedEventType reports whether t is in SupportedEventTypes.
func IsSupportedEventType(t string) bool {
	for _, e := range SupportedEventTypes {
		if e == t {
			return true
		}
	}
	return false
}

// Subscription status values. Advisory only; a failing subscription still
// receives delivery attempts.
const (
	StatusHealthy = "healthy"
	StatusFailing = "failing"
)

// SubscriptionFilters narrows which events reach a subscription. All declared
// predicates must hold (logical AND); a nil Filters always matches.
type SubscriptionFilters struct {
	ScoreAbove  *float64 `json:"scoreAbove,omitempty"`
	ScoreBelow  *float64 `json:"scoreBelow,omitempty"`
	Tiers       []string `json:"tiers,omitempty"`
	SignalTypes []string `json:"signalTypes,omitempty"`
	AccountIDs  []string `json:"accountIds,omitempty"`
}

// Empty reports whether no predicate is declared.
func (f *SubscriptionFilters) Empty() bool {
	if f == nil {
		return true
	}
	return f.ScoreAbove == nil && f.ScoreBelow == nil &&
		len(f.Tiers) == 0 && len(f.SignalTypes) == 0 && len(f.AccountIDs) == 0
}

type SubscriptionRequest struct {
	TargetURL       string               `json:"targetUrl"`
	EventType       string               `json:"eventType"`
	Filters         *SubscriptionFilters `json:"filters,omitempty"`
	PayloadTemplate map[string]any       `json:"payloadTemplate,omitempty"`
}

// SubscriptionUpdate carries a partial update. Nil fields are left untouched.
// The secret is not updatable.
type SubscriptionUpdate struct {
	TargetURL       *string              `json:"targetUrl,omitempty"`
	EventType       *string              `json:"eventType,omitempty"`
	Filters         *SubscriptionFilters `json:"filters,omitempty"`
	PayloadTemplate map[string]any       `json:"payloadTemplate,omitempty"`
}

type Subscription struct {
	ID              string               `json:"id"`
	TenantID        string               `json:"tenantId"`
	TargetURL       string               `json:"targetUrl"`
	EventType       string               `json:"eventType"`
	Secret          string               `json:"secret,omitempty"` // returned once at creation, blank afterwards
	Filters         *SubscriptionFilters `json:"filters,omitempty"`
	PayloadTemplate map[string]any       `json:"payloadTemplate,omitempty"`
	Active          bool                 `json:"active"`
	Status          string               `json:"status"`
	CreatedAt       time.Time            `json:"createdAt"`
	UpdatedAt       time.Time            `json:"updatedAt"`
}

// DeliveryRecord is one webhook delivery attempt. Records are append-only;
// StatusCode 0 means the attempt never produced an HTTP response and is
// omitted from JSON.
type DeliveryRecord struct {
	ID             string    `json:"id"`
	SubscriptionID string    `json:"subscriptionId"`
	Event          string    `json:"event"`
	Payload        []byte    `json:"-"`
	StatusCode     int       `json:"statusCode,omitempty"`
	Response       string    `json:"response,omitempty"`
	Success        bool      `json:"success"`
	Attempt        int       `json:"attempt"`
	MaxAttempts    int       `json:"maxAttempts"`
	JobID          string    `json:"jobId"`
	CreatedAt      time.Time `json:"createdAt"`
}

// DeliveryStats aggregates attempt outcomes over a trailing window.
type DeliveryStats struct {
	Total       int     `json:"total"`
	Succeeded   int     `json:"succeeded"`
	Failed      int     `json:"failed"`
	SuccessRate float64 `json:"successRate"`
	WindowDays  int     `json:"windowDays"`
}

// TestDeliveryResult is the synchronous response of a test delivery.
type TestDeliveryResult struct {
	Success    bool              `json:"success"`
	StatusCode *int              `json:"statusCode"` // null on transport failure
	Response   string            `json:"response"`
	DurationMs int64             `json:"durationMs"`
	Payload    string            `json:"payload"`
	Headers    map[string]string `json:"headers"`
}
