package webhooks

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"
)

const (
	// DeliveryTimeout bounds one outbound POST attempt.
	DeliveryTimeout = 10 * time.Second
	// ResponseBodyCap limits how much of the subscriber's response is recorded.
	ResponseBodyCap = 4096

	HeaderSignature = "X-Sigscore-Signature"
	HeaderEvent     = "X-Sigscore-Event"
)

// Sender performs one delivery attempt and classifies the outcome.
type Sender interface {
	Send(ctx context.Context, req DeliveryRequest) DeliveryResult
}

type DeliveryRequest struct {
	URL       string
	Secret    string
	EventType string
	Payload   []byte
}

type DeliveryResult struct {
	StatusCode int    // 0 when no HTTP response was observed
	Body       string // truncated response body, or the transport error message
	Err        error
	Duration   time.Duration
}

// Success reports whether the response landed in the 2xx range.
func (r DeliveryResult) Success() bool {
	return r.Err == nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// HTTPSender posts signed JSON payloads with a bounded timeout.
type HTTPSender struct {
	Client *http.Client
}

func NewHTTPSender() *HTTPSender {
	return &HTTPSender{Client: &http.Client{Timeout: DeliveryTimeout}}
}

func (s *HTTPSender) Send(ctx context.Context, req DeliveryRequest) DeliveryResult {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, DeliveryTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.URL, bytes.NewReader(req.Payload))
	if err != nil {
		return DeliveryResult{Err: err, Body: err.Error(), Duration: time.Since(start)}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set(HeaderSignature, SignPayload(req.Secret, req.Payload))
	httpReq.Header.Set(HeaderEvent, req.EventType)

	resp, err := s.Client.Do(httpReq)
	if err != nil {
		return DeliveryResult{Err: err, Body: truncate(err.Error()), Duration: time.Since(start)}
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, ResponseBodyCap))
	return DeliveryResult{StatusCode: resp.StatusCode, Body: string(body), Duration: time.Since(start)}
}

// Headers returns the header set a delivery attempt sends, for test-delivery
// diagnostics.
func Headers(secret, eventType string, payload []byte) map[string]string {
	return map[string]string{
		"Content-Type":  "application/json",
		HeaderSignature: SignPayload(secret, payload),
		HeaderEvent:     eventType,
	}
}

func truncate(s string) string {
	if len(s) > ResponseBodyCap {
		return s[:ResponseBodyCap]
	}
	return s
}
