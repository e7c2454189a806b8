package webhooks

import (
    "context"
    "encoding/json"
    "log"
    "time"

    "github.com/google/uuid"

    "sigscore/internal/model"
    "sigscore/internal/store"
)

// SendTest performs one synchronous delivery of a sample payload for the
// subscription's event type, for onboarding and debugging. Exactly one
// DeliveryRecord is written (attempt 1 of 1) regardless of outcome, the
// subscription's health status is never touched, and there is no retry.
func SendTest(ctx context.Context, st store.Store, sender Sender, sub model.Subscription) (model.TestDeliveryResult, error) {
    envelope := Envelope(sub.EventType, sub.TenantID, SamplePayload(sub.EventType))
    envelope["_test"] = true
    body, err := json.Marshal(envelope)
    if err != nil {
        return model.TestDeliveryResult{}, err
    }

    if sender == nil { sender = NewHTTPSender() }
    result := sender.Send(ctx, DeliveryRequest{
        URL:       sub.TargetURL,
        Secret:    sub.Secret,
        EventType: sub.EventType,
        Payload:   body,
    })

    rec := model.DeliveryRecord{
        SubscriptionID: sub.ID,
        Event:          sub.EventType,
        Payload:        body,
        StatusCode:     result.StatusCode,
        Response:       truncate(result.Body),
        Success:        result.Success(),
        Attempt:        1,
        MaxAttempts:    1,
        JobID:          "test_" + uuid.New().String(),
        CreatedAt:      time.Now().UTC(),
    }
    if _, err := st.InsertDeliveryRecord(ctx, rec); err != nil {
        log.Printf("testdelivery: record sub=%s: %v", sub.ID, err)
    }

    out := model.TestDeliveryResult{
        Success:    result.Success(),
        Response:   truncate(result.Body),
        DurationMs: result.Duration.Milliseconds(),
        Payload:    string(body),
        Headers:    Headers(sub.Secret, sub.EventType, body),
    }
    if result.StatusCode != 0 {
        code := result.StatusCode
        out.StatusCode = &code
    }
    return out, nil
}
