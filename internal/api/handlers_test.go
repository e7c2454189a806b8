package api

import (
    "bytes"
    "context"
    "encoding/json"
    "fmt"
    "io"
    "net/http"
    "net/http/httptest"
    "strings"
    "testing"
    "time"

    "sigscore/internal/model"
    "sigscore/internal/webhooks"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
    t.Helper()
    t.Setenv("DATABASE_URL", "")
    t.Setenv("REDIS_URL", "")
    srv, err := NewServer()
    if err != nil { t.Fatal(err) }

    mux := http.NewServeMux()
    mux.HandleFunc("/v1/subscriptions", srv.SubscriptionsHandler)
    mux.HandleFunc("/v1/subscriptions/", srv.SubscriptionByIDHandler)
    mux.HandleFunc("/v1/events", srv.EventsHandler)
    mux.HandleFunc("/healthz", srv.HealthHandler)
    mux.HandleFunc("/readyz", srv.ReadyHandler)
    ts := httptest.NewServer(mux)
    t.Cleanup(ts.Close)
    return srv, ts
}

func doJSON(t *testing.T, method, url, tenant string, body any) (*http.Response, []byte) {
    t.Helper()
    var rd io.Reader
    if body != nil {
        b, err := json.Marshal(body)
        if err != nil { t.Fatal(err) }
        rd = bytes.NewReader(b)
    }
    req, err := http.NewRequest(method, url, rd)
    if err != nil { t.Fatal(err) }
    req.Header.Set("Content-Type", "application/json")
    if tenant != "" { req.Header.Set("X-Tenant-Id", tenant) }
    resp, err := http.DefaultClient.Do(req)
    if err != nil { t.Fatal(err) }
    defer resp.Body.Close()
    raw, err := io.ReadAll(resp.Body)
    if err != nil { t.Fatal(err) }
    return resp, raw
}

func createSub(t *testing.T, ts *httptest.Server, tenant string, req model.SubscriptionRequest) model.Subscription {
    t.Helper()
    resp, raw := doJSON(t, "POST", ts.URL+"/v1/subscriptions", tenant, req)
    if resp.StatusCode != http.StatusCreated {
        t.Fatalf("create: %d %s", resp.StatusCode, raw)
    }
    var sub model.Subscription
    if err := json.Unmarshal(raw, &sub); err != nil { t.Fatal(err) }
    return sub
}

func TestCreateReturnsSecretOnceThenRedacts(t *testing.T) {
    _, ts := newTestServer(t)
    sub := createSub(t, ts, "t1", model.SubscriptionRequest{
        TargetURL: "https://example.com/hook",
        EventType: "score.changed",
    })
    if !strings.HasPrefix(sub.Secret, "whsec_") {
        t.Fatalf("creation response secret = %q", sub.Secret)
    }
    if !sub.Active || sub.Status != model.StatusHealthy {
        t.Fatalf("created = %+v", sub)
    }

    resp, raw := doJSON(t, "GET", ts.URL+"/v1/subscriptions/"+sub.ID, "t1", nil)
    if resp.StatusCode != 200 { t.Fatalf("get: %d %s", resp.StatusCode, raw) }
    var got model.Subscription
    json.Unmarshal(raw, &got)
    if got.Secret != "" {
        t.Fatalf("read exposed secret %q", got.Secret)
    }
    if strings.Contains(string(raw), "whsec_") {
        t.Fatalf("raw body leaks secret: %s", raw)
    }

    resp, raw = doJSON(t, "GET", ts.URL+"/v1/subscriptions", "t1", nil)
    if resp.StatusCode != 200 { t.Fatalf("list: %d", resp.StatusCode) }
    if strings.Contains(string(raw), "whsec_") {
        t.Fatalf("list leaks secret: %s", raw)
    }
}

func TestCreateValidation(t *testing.T) {
    _, ts := newTestServer(t)

    resp, raw := doJSON(t, "POST", ts.URL+"/v1/subscriptions", "t1", model.SubscriptionRequest{
        TargetURL: "https://example.com/hook",
        EventType: "order.shipped",
    })
    if resp.StatusCode != http.StatusUnprocessableEntity {
        t.Fatalf("unknown event: %d %s", resp.StatusCode, raw)
    }
    // The error names the supported set.
    if !strings.Contains(string(raw), "score.changed") {
        t.Fatalf("detail does not list supported types: %s", raw)
    }

    resp, _ = doJSON(t, "POST", ts.URL+"/v1/subscriptions", "t1", model.SubscriptionRequest{
        TargetURL: "not-a-url",
        EventType: "score.changed",
    })
    if resp.StatusCode != http.StatusUnprocessableEntity {
        t.Fatalf("bad url: %d", resp.StatusCode)
    }

    lo, hi := 90.0, 80.0
    resp, _ = doJSON(t, "POST", ts.URL+"/v1/subscriptions", "t1", model.SubscriptionRequest{
        TargetURL: "https://example.com/hook",
        EventType: "score.changed",
        Filters:   &model.SubscriptionFilters{ScoreAbove: &lo, ScoreBelow: &hi},
    })
    if resp.StatusCode != http.StatusUnprocessableEntity {
        t.Fatalf("inverted score band: %d", resp.StatusCode)
    }

    req, _ := http.NewRequest("POST", ts.URL+"/v1/subscriptions", strings.NewReader("{not json"))
    resp2, err := http.DefaultClient.Do(req)
    if err != nil { t.Fatal(err) }
    resp2.Body.Close()
    if resp2.StatusCode != http.StatusBadRequest {
        t.Fatalf("malformed json: %d", resp2.StatusCode)
    }
}

func TestUpdateAndToggleAndDelete(t *testing.T) {
    _, ts := newTestServer(t)
    sub := createSub(t, ts, "t1", model.SubscriptionRequest{
        TargetURL: "https://example.com/hook",
        EventType: "deal.created",
    })

    resp, raw := doJSON(t, "PATCH", ts.URL+"/v1/subscriptions/"+sub.ID, "t1",
        map[string]any{"targetUrl": "https://example.com/hook2"})
    if resp.StatusCode != 200 { t.Fatalf("patch: %d %s", resp.StatusCode, raw) }
    var got model.Subscription
    json.Unmarshal(raw, &got)
    if got.TargetURL != "https://example.com/hook2" || got.EventType != "deal.created" {
        t.Fatalf("patched = %+v", got)
    }

    resp, _ = doJSON(t, "PATCH", ts.URL+"/v1/subscriptions/"+sub.ID, "t1",
        map[string]any{"eventType": "bogus.event"})
    if resp.StatusCode != http.StatusUnprocessableEntity {
        t.Fatalf("patch bad event: %d", resp.StatusCode)
    }

    resp, raw = doJSON(t, "POST", ts.URL+"/v1/subscriptions/"+sub.ID+"/deactivate", "t1", nil)
    if resp.StatusCode != 200 { t.Fatalf("deactivate: %d %s", resp.StatusCode, raw) }
    json.Unmarshal(raw, &got)
    if got.Active { t.Fatal("still active") }

    resp, raw = doJSON(t, "POST", ts.URL+"/v1/subscriptions/"+sub.ID+"/activate", "t1", nil)
    if resp.StatusCode != 200 { t.Fatalf("activate: %d %s", resp.StatusCode, raw) }
    json.Unmarshal(raw, &got)
    if !got.Active { t.Fatal("still inactive") }

    resp, _ = doJSON(t, "DELETE", ts.URL+"/v1/subscriptions/"+sub.ID, "t1", nil)
    if resp.StatusCode != 204 { t.Fatalf("delete: %d", resp.StatusCode) }
    resp, _ = doJSON(t, "GET", ts.URL+"/v1/subscriptions/"+sub.ID, "t1", nil)
    if resp.StatusCode != 404 { t.Fatalf("get after delete: %d", resp.StatusCode) }
}

func TestCrossTenantIsNotFound(t *testing.T) {
    _, ts := newTestServer(t)
    sub := createSub(t, ts, "t1", model.SubscriptionRequest{
        TargetURL: "https://example.com/hook",
        EventType: "contact.created",
    })

    for _, c := range []struct{ method, path string }{
        {"GET", "/v1/subscriptions/" + sub.ID},
        {"DELETE", "/v1/subscriptions/" + sub.ID},
        {"POST", "/v1/subscriptions/" + sub.ID + "/deactivate"},
        {"GET", "/v1/subscriptions/" + sub.ID + "/deliveries"},
        {"GET", "/v1/subscriptions/" + sub.ID + "/stats"},
    } {
        resp, raw := doJSON(t, c.method, ts.URL+c.path, "t2", nil)
        if resp.StatusCode != 404 {
            t.Fatalf("%s %s as t2: %d %s", c.method, c.path, resp.StatusCode, raw)
        }
    }
}

func TestEventsEndToEnd(t *testing.T) {
    srv, ts := newTestServer(t)
    ctx, cancel := context.WithCancel(context.Background())
    defer cancel()
    go srv.Worker.Run(ctx, 2)

    received := make(chan *http.Request, 4)
    bodies := make(chan []byte, 4)
    hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        b, _ := io.ReadAll(r.Body)
        received <- r
        bodies <- b
        w.WriteHeader(200)
    }))
    defer hook.Close()

    sub := createSub(t, ts, "t1", model.SubscriptionRequest{
        TargetURL: hook.URL,
        EventType: "score.changed",
    })

    resp, raw := doJSON(t, "POST", ts.URL+"/v1/events", "t1", map[string]any{
        "eventType": "score.changed",
        "payload":   map[string]any{"accountId": "a1", "newScore": 85},
    })
    if resp.StatusCode != http.StatusAccepted {
        t.Fatalf("fire: %d %s", resp.StatusCode, raw)
    }
    var fired struct{ Scheduled int `json:"scheduled"` }
    json.Unmarshal(raw, &fired)
    if fired.Scheduled != 1 {
        t.Fatalf("scheduled = %d", fired.Scheduled)
    }

    var hookReq *http.Request
    var hookBody []byte
    select {
    case hookReq = <-received:
        hookBody = <-bodies
    case <-time.After(5 * time.Second):
        t.Fatal("webhook never arrived")
    }
    if hookReq.Header.Get("X-Sigscore-Event") != "score.changed" {
        t.Fatalf("event header = %q", hookReq.Header.Get("X-Sigscore-Event"))
    }
    sig := hookReq.Header.Get("X-Sigscore-Signature")
    if !webhooks.VerifySignature(sub.Secret, hookBody, sig) {
        t.Fatalf("signature %q does not verify against creation secret", sig)
    }
    var envelope map[string]any
    json.Unmarshal(hookBody, &envelope)
    if envelope["event"] != "score.changed" || envelope["organizationId"] != "t1" {
        t.Fatalf("envelope = %#v", envelope)
    }

    // The attempt lands in the delivery log and the stats.
    deadline := time.Now().Add(3 * time.Second)
    for {
        resp, raw = doJSON(t, "GET", ts.URL+"/v1/subscriptions/"+sub.ID+"/deliveries", "t1", nil)
        if resp.StatusCode != 200 { t.Fatalf("deliveries: %d", resp.StatusCode) }
        var out struct{ Items []model.DeliveryRecord `json:"items"` }
        json.Unmarshal(raw, &out)
        if len(out.Items) == 1 {
            if !out.Items[0].Success || out.Items[0].StatusCode != 200 || out.Items[0].Attempt != 1 {
                t.Fatalf("record = %+v", out.Items[0])
            }
            break
        }
        if time.Now().After(deadline) { t.Fatalf("no delivery record, got %s", raw) }
        time.Sleep(20 * time.Millisecond)
    }

    resp, raw = doJSON(t, "GET", ts.URL+"/v1/subscriptions/"+sub.ID+"/stats?windowDays=7", "t1", nil)
    if resp.StatusCode != 200 { t.Fatalf("stats: %d", resp.StatusCode) }
    var st model.DeliveryStats
    json.Unmarshal(raw, &st)
    if st.Total != 1 || st.Succeeded != 1 || st.SuccessRate != 1 {
        t.Fatalf("stats = %+v", st)
    }
}

func TestDeliveriesOmitStatusCodeOnTransportFailure(t *testing.T) {
    _, ts := newTestServer(t)
    // A target that refuses connections: reserve a port, then free it.
    hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
    url := hook.URL
    hook.Close()

    sub := createSub(t, ts, "t1", model.SubscriptionRequest{
        TargetURL: url,
        EventType: "score.changed",
    })
    resp, raw := doJSON(t, "POST", ts.URL+"/v1/subscriptions/"+sub.ID+"/test", "t1", nil)
    if resp.StatusCode != 200 { t.Fatalf("test: %d %s", resp.StatusCode, raw) }

    resp, raw = doJSON(t, "GET", ts.URL+"/v1/subscriptions/"+sub.ID+"/deliveries", "t1", nil)
    if resp.StatusCode != 200 { t.Fatalf("deliveries: %d", resp.StatusCode) }
    var out struct{ Items []model.DeliveryRecord `json:"items"` }
    json.Unmarshal(raw, &out)
    if len(out.Items) != 1 || out.Items[0].Success {
        t.Fatalf("items = %s", raw)
    }
    // No HTTP response was observed, so no status code is reported at all.
    if strings.Contains(string(raw), "statusCode") {
        t.Fatalf("transport-failure record carries a statusCode: %s", raw)
    }
}

func TestEventsRequireAdminRole(t *testing.T) {
    _, ts := newTestServer(t)
    body := `{"eventType":"score.changed","payload":{}}`
    req, err := http.NewRequest("POST", ts.URL+"/v1/events", strings.NewReader(body))
    if err != nil { t.Fatal(err) }
    req.Header.Set("Content-Type", "application/json")
    req.Header.Set("X-Tenant-Id", "t1")
    req.Header.Set("X-Role", "member")
    resp, err := http.DefaultClient.Do(req)
    if err != nil { t.Fatal(err) }
    resp.Body.Close()
    if resp.StatusCode != http.StatusForbidden {
        t.Fatalf("fire as member: %d, want 403", resp.StatusCode)
    }
}

func TestEventsRejectsUnknownType(t *testing.T) {
    _, ts := newTestServer(t)
    resp, _ := doJSON(t, "POST", ts.URL+"/v1/events", "t1", map[string]any{
        "eventType": "nope",
        "payload":   map[string]any{},
    })
    if resp.StatusCode != http.StatusUnprocessableEntity {
        t.Fatalf("fire unknown type: %d", resp.StatusCode)
    }
}

func TestTestDeliveryEndpoint(t *testing.T) {
    _, ts := newTestServer(t)
    hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        fmt.Fprint(w, "pong")
    }))
    defer hook.Close()

    sub := createSub(t, ts, "t1", model.SubscriptionRequest{
        TargetURL: hook.URL,
        EventType: "tier.changed",
    })

    resp, raw := doJSON(t, "POST", ts.URL+"/v1/subscriptions/"+sub.ID+"/test", "t1", nil)
    if resp.StatusCode != 200 { t.Fatalf("test: %d %s", resp.StatusCode, raw) }
    var res model.TestDeliveryResult
    json.Unmarshal(raw, &res)
    if !res.Success || res.StatusCode == nil || *res.StatusCode != 200 {
        t.Fatalf("result = %+v", res)
    }
    if res.Response != "pong" || res.Headers["X-Sigscore-Event"] != "tier.changed" {
        t.Fatalf("result = %+v", res)
    }
    if !strings.Contains(res.Payload, `"_test":true`) {
        t.Fatalf("payload = %s", res.Payload)
    }
}

func TestHealthAndReady(t *testing.T) {
    _, ts := newTestServer(t)
    resp, _ := doJSON(t, "GET", ts.URL+"/healthz", "", nil)
    if resp.StatusCode != 200 { t.Fatalf("healthz: %d", resp.StatusCode) }
    resp, _ = doJSON(t, "GET", ts.URL+"/readyz", "", nil)
    if resp.StatusCode != 200 { t.Fatalf("readyz: %d", resp.StatusCode) }
}
