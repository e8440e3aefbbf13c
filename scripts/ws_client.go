// Package main runs a demo WebSocket client for optimizer run progress.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/gorilla/websocket"
)

type wsMessage struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	base := fmt.Sprintf("http://localhost:%s", port)

	// Start an asynchronous optimizer run on the server's scenario
	body := []byte(`{"async":true,"timeBudgetMs":3000}`)
	resp, err := http.Post(base+"/v1/optimize", "application/json", bytes.NewReader(body))
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusAccepted {
		log.Fatalf("optimize: unexpected status %s", resp.Status)
	}
	var optResp struct {
		RunID string `json:"runId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&optResp); err != nil {
		log.Fatal(err)
	}
	log.Printf("Run ID: %s", optResp.RunID)

	// Connect WS
	u := url.URL{Scheme: "ws", Host: "localhost:" + port, Path: "/v1/runs/" + optResp.RunID + "/ws"}
	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer func() { _ = c.Close() }()

	if err := c.WriteJSON(wsMessage{Type: "connection_init"}); err != nil {
		log.Fatal(err)
	}
	if err := c.WriteJSON(wsMessage{Type: "subscribe", ID: "1"}); err != nil {
		log.Fatal(err)
	}

	_ = c.SetReadDeadline(time.Now().Add(time.Minute))
	for {
		var m wsMessage
		if err := c.ReadJSON(&m); err != nil {
			log.Printf("read: %v", err)
			return
		}
		log.Printf("WS <- %s: %s", m.Type, string(m.Payload))
		if m.Type == "complete" {
			return
		}
	}
}
