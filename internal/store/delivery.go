package store

// DeliveryTask is the scheduling unit for one (event, subscription) pairing.
// The same task is re-enqueued with an incremented Attempt until it succeeds
// or exhausts its attempts.
type DeliveryTask struct {
    ID             string `json:"id"`
    TenantID       string `json:"tenantId"`
    SubscriptionID string `json:"subscriptionId"`
    EventType      string `json:"eventType"`
    TargetURL      string `json:"targetUrl"`
    Secret         string `json:"secret"`
    Payload        []byte `json:"payload"`
    Attempt        int    `json:"attempt"`
}
