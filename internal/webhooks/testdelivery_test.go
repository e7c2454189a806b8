package webhooks

import (
    "context"
    "encoding/json"
    "io"
    "net/http"
    "net/http/httptest"
    "strings"
    "testing"

    "sigscore/internal/model"
    "sigscore/internal/store"
)

func TestSendTestSuccess(t *testing.T) {
    ctx := context.Background()
    var gotBody []byte
    srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        gotBody, _ = io.ReadAll(r.Body)
        w.Write([]byte("received"))
    }))
    defer srv.Close()

    st := store.NewMemory()
    sub, err := st.CreateSubscription(ctx, "t_demo", model.SubscriptionRequest{
        TargetURL: srv.URL, EventType: "score.changed",
    }, "whsec_test")
    if err != nil { t.Fatal(err) }

    res, err := SendTest(ctx, st, nil, sub)
    if err != nil { t.Fatal(err) }
    if !res.Success {
        t.Fatalf("test delivery failed: %+v", res)
    }
    if res.StatusCode == nil || *res.StatusCode != 200 {
        t.Fatalf("statusCode = %v", res.StatusCode)
    }
    if res.Response != "received" {
        t.Fatalf("response = %q", res.Response)
    }
    if res.Headers[HeaderEvent] != "score.changed" || res.Headers[HeaderSignature] == "" {
        t.Fatalf("headers = %#v", res.Headers)
    }

    // The delivered payload is the sample envelope, marked as a test.
    var envelope map[string]any
    if err := json.Unmarshal(gotBody, &envelope); err != nil { t.Fatal(err) }
    if envelope["_test"] != true {
        t.Fatalf("payload missing _test marker: %s", gotBody)
    }
    if envelope["event"] != "score.changed" || envelope["organizationId"] != "t_demo" {
        t.Fatalf("envelope = %#v", envelope)
    }
    if res.Payload != string(gotBody) {
        t.Fatal("result payload does not match delivered bytes")
    }

    recs, err := st.ListDeliveryRecords(ctx, "t_demo", sub.ID, 10)
    if err != nil { t.Fatal(err) }
    if len(recs) != 1 {
        t.Fatalf("records = %d, want 1", len(recs))
    }
    rec := recs[0]
    if rec.Attempt != 1 || rec.MaxAttempts != 1 || !rec.Success {
        t.Fatalf("record = %+v", rec)
    }
    if !strings.HasPrefix(rec.JobID, "test_") {
        t.Fatalf("jobId = %q", rec.JobID)
    }
}

func TestSendTestTransportFailure(t *testing.T) {
    ctx := context.Background()
    srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
    url := srv.URL
    srv.Close()

    st := store.NewMemory()
    sub, err := st.CreateSubscription(ctx, "t_demo", model.SubscriptionRequest{
        TargetURL: url, EventType: "deal.created",
    }, "whsec_test")
    if err != nil { t.Fatal(err) }
    if err := st.SetSubscriptionStatus(ctx, sub.ID, model.StatusHealthy); err != nil { t.Fatal(err) }

    res, err := SendTest(ctx, st, nil, sub)
    if err != nil { t.Fatal(err) }
    if res.Success {
        t.Fatal("unreachable target should fail")
    }
    if res.StatusCode != nil {
        t.Fatalf("statusCode = %v, want nil for transport failure", *res.StatusCode)
    }
    if res.Response == "" {
        t.Fatal("expected error detail in response")
    }

    // No retry, no health change: one record, status untouched.
    recs, err := st.ListDeliveryRecords(ctx, "t_demo", sub.ID, 10)
    if err != nil { t.Fatal(err) }
    if len(recs) != 1 {
        t.Fatalf("records = %d, want 1", len(recs))
    }
    got, err := st.GetSubscription(ctx, "t_demo", sub.ID)
    if err != nil { t.Fatal(err) }
    if got.Status != model.StatusHealthy {
        t.Fatalf("status = %s, test deliveries must not touch health", got.Status)
    }
}

func TestSamplePayloadCoversAllEventTypes(t *testing.T) {
    for _, et := range model.SupportedEventTypes {
        p := SamplePayload(et)
        if len(p) == 0 {
            t.Fatalf("no sample payload for %s", et)
        }
    }
}
