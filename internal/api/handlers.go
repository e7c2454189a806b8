package api

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "net/http"
    "strings"
    "time"

    "sigscore/internal/model"
    "sigscore/internal/store"
    "sigscore/internal/webhooks"
)

// redact blanks the signing secret; it is only ever returned at creation.
func redact(s model.Subscription) model.Subscription {
    s.Secret = ""
    return s
}

// SubscriptionsHandler handles POST/GET /v1/subscriptions
func (s *Server) SubscriptionsHandler(w http.ResponseWriter, r *http.Request) {
    p := s.getPrincipal(r)
    switch r.Method {
    case http.MethodPost:
        var req model.SubscriptionRequest
        if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
            writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
            return
        }
        if err := validateSubscriptionRequest(&req); err != nil {
            writeProblem(w, http.StatusUnprocessableEntity, "Invalid subscription", err.Error(), r.URL.Path)
            return
        }
        secret, err := webhooks.NewSecret()
        if err != nil {
            writeProblem(w, http.StatusInternalServerError, "Create subscription failed", err.Error(), r.URL.Path)
            return
        }
        sub, err := s.Store.CreateSubscription(r.Context(), p.Tenant, req, secret)
        if err != nil {
            writeProblem(w, http.StatusInternalServerError, "Create subscription failed", err.Error(), r.URL.Path)
            return
        }
        // The one response that carries the secret.
        writeJSON(w, http.StatusCreated, sub)
    case http.MethodGet:
        cursor := r.URL.Query().Get("cursor")
        limit := 100
        if v := r.URL.Query().Get("limit"); v != "" { fmt.Sscanf(v, "%d", &limit) }
        items, next, err := s.Store.ListSubscriptions(r.Context(), p.Tenant, cursor, limit)
        if err != nil { writeProblem(w, 500, "List subscriptions failed", err.Error(), r.URL.Path); return }
        out := make([]model.Subscription, 0, len(items))
        for _, it := range items { out = append(out, redact(it)) }
        writeJSON(w, 200, map[string]any{"items": out, "nextCursor": next})
    default:
        w.WriteHeader(http.StatusMethodNotAllowed)
    }
}

// SubscriptionByIDHandler handles /v1/subscriptions/{id} and its subresources:
// /activate, /deactivate, /test, /deliveries, /deliveries/stream, /stats.
func (s *Server) SubscriptionByIDHandler(w http.ResponseWriter, r *http.Request) {
    rest := strings.TrimPrefix(r.URL.Path, "/v1/subscriptions/")
    if rest == "" || rest == r.URL.Path {
        writeProblem(w, 404, "Not Found", "", r.URL.Path)
        return
    }
    id, sub, _ := strings.Cut(rest, "/")
    p := s.getPrincipal(r)
    switch sub {
    case "":
        s.subscriptionResource(w, r, p, id)
    case "activate":
        s.toggleActive(w, r, p, id, true)
    case "deactivate":
        s.toggleActive(w, r, p, id, false)
    case "test":
        s.testDelivery(w, r, p, id)
    case "deliveries":
        s.listDeliveries(w, r, p, id)
    case "deliveries/stream":
        s.StreamDeliveries(w, r, p, id)
    case "stats":
        s.deliveryStats(w, r, p, id)
    default:
        writeProblem(w, 404, "Not Found", "", r.URL.Path)
    }
}

func (s *Server) subscriptionResource(w http.ResponseWriter, r *http.Request, p Principal, id string) {
    switch r.Method {
    case http.MethodGet:
        sub, err := s.Store.GetSubscription(r.Context(), p.Tenant, id)
        if err != nil { s.subError(w, r, err, "Get subscription failed"); return }
        writeJSON(w, 200, redact(sub))
    case http.MethodPatch:
        var upd model.SubscriptionUpdate
        if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
            writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
            return
        }
        if err := validateSubscriptionUpdate(&upd); err != nil {
            writeProblem(w, http.StatusUnprocessableEntity, "Invalid subscription", err.Error(), r.URL.Path)
            return
        }
        sub, err := s.Store.UpdateSubscription(r.Context(), p.Tenant, id, upd)
        if err != nil { s.subError(w, r, err, "Update subscription failed"); return }
        writeJSON(w, 200, redact(sub))
    case http.MethodDelete:
        if err := s.Store.DeleteSubscription(r.Context(), p.Tenant, id); err != nil {
            s.subError(w, r, err, "Delete subscription failed")
            return
        }
        w.WriteHeader(204)
    default:
        w.WriteHeader(http.StatusMethodNotAllowed)
    }
}

func (s *Server) toggleActive(w http.ResponseWriter, r *http.Request, p Principal, id string, active bool) {
    if r.Method != http.MethodPost { w.WriteHeader(405); return }
    sub, err := s.Store.SetSubscriptionActive(r.Context(), p.Tenant, id, active)
    if err != nil { s.subError(w, r, err, "Toggle subscription failed"); return }
    writeJSON(w, 200, redact(sub))
}

func (s *Server) testDelivery(w http.ResponseWriter, r *http.Request, p Principal, id string) {
    if r.Method != http.MethodPost { w.WriteHeader(405); return }
    sub, err := s.Store.GetSubscription(r.Context(), p.Tenant, id)
    if err != nil { s.subError(w, r, err, "Test delivery failed"); return }
    res, err := webhooks.SendTest(r.Context(), s.Store, s.Worker.Sender, sub)
    if err != nil { writeProblem(w, 500, "Test delivery failed", err.Error(), r.URL.Path); return }
    writeJSON(w, 200, res)
}

func (s *Server) listDeliveries(w http.ResponseWriter, r *http.Request, p Principal, id string) {
    if r.Method != http.MethodGet { w.WriteHeader(405); return }
    limit := 50
    if v := r.URL.Query().Get("limit"); v != "" { fmt.Sscanf(v, "%d", &limit) }
    items, err := s.Store.ListDeliveryRecords(r.Context(), p.Tenant, id, limit)
    if err != nil { s.subError(w, r, err, "List deliveries failed"); return }
    writeJSON(w, 200, map[string]any{"items": items})
}

func (s *Server) deliveryStats(w http.ResponseWriter, r *http.Request, p Principal, id string) {
    if r.Method != http.MethodGet { w.WriteHeader(405); return }
    windowDays := 7
    if v := r.URL.Query().Get("windowDays"); v != "" { fmt.Sscanf(v, "%d", &windowDays) }
    st, err := s.Store.DeliveryStats(r.Context(), p.Tenant, id, windowDays)
    if err != nil { s.subError(w, r, err, "Delivery stats failed"); return }
    writeJSON(w, 200, st)
}

// EventsHandler handles POST /v1/events: the fire entry point for domain code
// and for manual testing.
func (s *Server) EventsHandler(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodPost {
        w.WriteHeader(http.StatusMethodNotAllowed)
        return
    }
    p := s.getPrincipal(r)
    // Firing is the domain-code entry point, not a subscriber-facing one.
    if !p.IsAdmin() {
        writeProblem(w, http.StatusForbidden, "Forbidden", "firing events requires the admin role", r.URL.Path)
        return
    }
    var req struct {
        EventType string         `json:"eventType"`
        Payload   map[string]any `json:"payload"`
    }
    if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
        writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
        return
    }
    if err := validateEventType(req.EventType); err != nil {
        writeProblem(w, http.StatusUnprocessableEntity, "Invalid event", err.Error(), r.URL.Path)
        return
    }
    scheduled := s.Pub.Fire(r.Context(), p.Tenant, req.EventType, req.Payload)
    writeJSON(w, http.StatusAccepted, map[string]any{"scheduled": scheduled})
}

func (s *Server) subError(w http.ResponseWriter, r *http.Request, err error, title string) {
    if errors.Is(err, store.ErrNotFound) {
        writeProblem(w, 404, "Subscription not found", "", r.URL.Path)
        return
    }
    writeProblem(w, 500, title, err.Error(), r.URL.Path)
}

// Health
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
    writeJSON(w, 200, map[string]string{"status": "ok"})
}

func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
    // Check DB connectivity when using the Postgres store
    type pinger interface{ Ping(ctx context.Context) error }
    if pg, ok := s.Store.(pinger); ok {
        ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
        defer cancel()
        if err := pg.Ping(ctx); err != nil { writeProblem(w, 503, "Not Ready", err.Error(), r.URL.Path); return }
    }
    writeJSON(w, 200, map[string]string{"status": "ready"})
}
