// Package main runs a demo WebSocket client: it submits a solve run and
// prints the run's progress events until the run finishes.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"

	"github.com/gorilla/websocket"
)

type wsMessage struct {
	Type  string          `json:"type"`
	Event json.RawMessage `json:"event,omitempty"`
}

// demoRecords is a four-pair instance around a depot at the origin.
var demoRecords = []map[string]any{
	{"id": 0, "due": 1000},
	{"id": 1, "x": 10, "y": 0, "demand": 2, "due": 1000, "service": 5, "delivery": 2},
	{"id": 2, "x": 25, "y": 5, "demand": -2, "due": 1000, "service": 5, "pickup": 1},
	{"id": 3, "x": 0, "y": 12, "demand": 3, "due": 1000, "service": 5, "delivery": 4},
	{"id": 4, "x": -5, "y": 30, "demand": -3, "due": 1000, "service": 5, "pickup": 3},
	{"id": 5, "x": -15, "y": -5, "demand": 1, "due": 1000, "service": 5, "delivery": 6},
	{"id": 6, "x": -30, "y": -10, "demand": -1, "due": 1000, "service": 5, "pickup": 5},
	{"id": 7, "x": 5, "y": -20, "demand": 4, "due": 1000, "service": 5, "delivery": 8},
	{"id": 8, "x": 20, "y": -25, "demand": -4, "due": 1000, "service": 5, "pickup": 7},
}

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	base := fmt.Sprintf("http://localhost:%s", port)

	instance := map[string]any{"name": "demo", "records": demoRecords, "vehicles": map[string]any{"count": 3, "capacity": 6}}
	if len(os.Args) > 1 {
		text, err := os.ReadFile(os.Args[1])
		if err != nil {
			log.Fatal(err)
		}
		instance = map[string]any{"name": "file", "text": string(text)}
	}
	body, _ := json.Marshal(map[string]any{
		"instance": instance,
		"search":   map[string]any{"iterations": 2000, "snapshotEvery": 100},
	})
	resp, err := http.Post(base+"/v1/solve", "application/json", bytes.NewReader(body))
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusAccepted {
		log.Fatalf("submit failed: %s", resp.Status)
	}
	var acc struct {
		RunID string `json:"runId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&acc); err != nil {
		log.Fatal(err)
	}
	log.Printf("Run ID: %s", acc.RunID)

	u := url.URL{Scheme: "ws", Host: "localhost:" + port, Path: "/v1/runs/" + acc.RunID + "/ws"}
	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer func() { _ = c.Close() }()

	for {
		var m wsMessage
		if err := c.ReadJSON(&m); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				log.Printf("run finished")
			} else {
				log.Printf("read: %v", err)
			}
			break
		}
		log.Printf("WS <- %s: %s", m.Type, string(m.Event))
	}

	final, err := http.Get(base + "/v1/runs/" + acc.RunID)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = final.Body.Close() }()
	var run map[string]any
	_ = json.NewDecoder(final.Body).Decode(&run)
	log.Printf("status=%v objective=%v vehiclesUsed=%v unassigned=%v", run["status"], run["objective"], run["vehiclesUsed"], run["unassigned"])
}
