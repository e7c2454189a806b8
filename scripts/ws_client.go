// Package main runs a demo client for the live delivery stream: it stands up
// a local webhook receiver, creates a subscription pointing at it, watches the
// subscription's delivery stream over WebSocket, and fires one event.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"time"

	"github.com/gorilla/websocket"
)

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	base := fmt.Sprintf("http://localhost:%s", port)

	// Local receiver for the webhook POSTs.
	receiver := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Printf("hook <- %s sig=%s", r.Header.Get("X-Sigscore-Event"), r.Header.Get("X-Sigscore-Signature"))
		w.WriteHeader(http.StatusOK)
	}))
	defer receiver.Close()

	// Create a subscription for score changes above 80.
	body := fmt.Sprintf(`{"targetUrl":%q,"eventType":"score.changed","filters":{"scoreAbove":80}}`, receiver.URL)
	req, _ := http.NewRequest(http.MethodPost, base+"/v1/subscriptions", bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tenant-Id", "t_demo")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatal(err)
	}
	var sub struct {
		ID     string `json:"id"`
		Secret string `json:"secret"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&sub); err != nil {
		log.Fatal(err)
	}
	_ = resp.Body.Close()
	log.Printf("subscription %s secret=%s", sub.ID, sub.Secret)

	// Watch the delivery stream.
	u := url.URL{Scheme: "ws", Host: fmt.Sprintf("localhost:%s", port), Path: fmt.Sprintf("/v1/subscriptions/%s/deliveries/stream", sub.ID)}
	hdr := http.Header{}
	hdr.Set("X-Tenant-Id", "t_demo")
	c, _, err := websocket.DefaultDialer.Dial(u.String(), hdr)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer func() { _ = c.Close() }()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var rec map[string]any
			if err := c.ReadJSON(&rec); err != nil {
				log.Printf("read: %v", err)
				return
			}
			out, _ := json.Marshal(rec)
			log.Printf("WS <- %s", out)
		}
	}()

	// Fire an event that passes the filter.
	time.Sleep(500 * time.Millisecond)
	event := []byte(`{"eventType":"score.changed","payload":{"accountId":"a_demo","newScore":92,"newTier":"HOT"}}`)
	evReq, _ := http.NewRequest(http.MethodPost, base+"/v1/events", bytes.NewReader(event))
	evReq.Header.Set("Content-Type", "application/json")
	evReq.Header.Set("X-Tenant-Id", "t_demo")
	_, _ = http.DefaultClient.Do(evReq)

	// Wait briefly to receive the delivery outcome
	select {
	case <-time.After(3 * time.Second):
	case <-done:
	}
}
