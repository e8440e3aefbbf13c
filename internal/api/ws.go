package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"dvrp/internal/store"
)

// Run progress over WebSocket. Messages follow the graphql-transport-ws
// framing: connection_init/connection_ack, ping/pong, subscribe, next,
// error and complete. A subscription ends with complete after the run's
// terminal event.

var upgrader = websocket.Upgrader{CheckOrigin: func(_ *http.Request) bool { return true }}

type wsMessage struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

const (
	wsReadTimeout  = 60 * time.Second
	wsPingInterval = 20 * time.Second
)

// RunStreamHandler handles /v1/runs/{id}/ws
func (s *Server) RunStreamHandler(w http.ResponseWriter, r *http.Request, runID string) {
	if _, err := s.Store.GetRun(r.Context(), runID); err != nil {
		s.storeProblem(w, r, "Run not found", err)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()

	conn.SetReadLimit(1 << 16)
	_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(string) error { return conn.SetReadDeadline(time.Now().Add(wsReadTimeout)) })

	// one writer at a time
	var wmu sync.Mutex
	write := func(v any) error {
		wmu.Lock()
		defer wmu.Unlock()
		_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		return conn.WriteJSON(v)
	}
	next := func(id string, evt Event) error {
		payload, _ := json.Marshal(evt)
		return write(wsMessage{Type: "next", ID: id, Payload: payload})
	}

	done := make(chan struct{})
	defer close(done)
	subs := map[string]chan Event{}
	acked := false

	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		switch msg.Type {
		case "connection_init":
			if acked {
				continue
			}
			acked = true
			_ = write(wsMessage{Type: "connection_ack"})
			go func() {
				ticker := time.NewTicker(wsPingInterval)
				defer ticker.Stop()
				for {
					select {
					case <-done:
						return
					case <-ticker.C:
						if err := write(wsMessage{Type: "ping"}); err != nil {
							return
						}
					}
				}
			}()
		case "ping":
			_ = write(wsMessage{Type: "pong"})
		case "subscribe":
			if !acked {
				_ = write(wsMessage{Type: "error", ID: msg.ID, Payload: []byte(`{"message":"connection_init required"}`)})
				continue
			}
			if _, dup := subs[msg.ID]; dup || msg.ID == "" {
				_ = write(wsMessage{Type: "error", ID: msg.ID, Payload: []byte(`{"message":"subscription id missing or in use"}`)})
				continue
			}
			ch := s.Broker.Subscribe(runID)
			// the run may have finished before the subscription existed
			if run, err := s.Store.GetRun(r.Context(), runID); err == nil && run.Status != store.StatusRunning {
				s.Broker.Unsubscribe(runID, ch)
				_ = next(msg.ID, terminalEvent(run))
				_ = write(wsMessage{Type: "complete", ID: msg.ID})
				continue
			}
			subs[msg.ID] = ch
			go func(id string, c chan Event) {
				for evt := range c {
					if err := next(id, evt); err != nil {
						return
					}
					if evt.terminal() {
						_ = write(wsMessage{Type: "complete", ID: id})
						return
					}
				}
			}(msg.ID, ch)
		case "complete":
			if ch, ok := subs[msg.ID]; ok {
				s.Broker.Unsubscribe(runID, ch)
				delete(subs, msg.ID)
			}
		default:
			// ignore
		}
	}
	for id, ch := range subs {
		s.Broker.Unsubscribe(runID, ch)
		delete(subs, id)
	}
}
