package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(_ *http.Request) bool { return true }}

const (
	streamWriteWait = 5 * time.Second
	streamPingEvery = 30 * time.Second
)

// StreamDeliveries upgrades to a WebSocket and pushes each delivery attempt
// outcome for the subscription as a JSON message until the client disconnects.
func (s *Server) StreamDeliveries(w http.ResponseWriter, r *http.Request, p Principal, id string) {
	// Existence check before upgrading, wrong tenant reads as missing.
	if _, err := s.Store.GetSubscription(r.Context(), p.Tenant, id); err != nil {
		s.subError(w, r, err, "Stream failed")
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()

	ch := s.Broker.Subscribe(id)
	defer s.Broker.Unsubscribe(id, ch)

	// Reader goroutine only to detect client close.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(streamPingEvery)
	defer ping.Stop()
	for {
		select {
		case <-done:
			return
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case rec, ok := <-ch:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteJSON(rec); err != nil {
				return
			}
		}
	}
}
