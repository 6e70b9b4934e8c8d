package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"pdptw/internal/model"
)

const heartbeatEvery = 15 * time.Second

var upgrader = websocket.Upgrader{CheckOrigin: func(_ *http.Request) bool { return true }}

// subscribeRun subscribes to a run's events and returns its current state.
// The caller must Unsubscribe when ok.
func (s *Server) subscribeRun(w http.ResponseWriter, r *http.Request) (model.Run, chan model.Event, bool) {
	id := r.PathValue("id")
	ch := s.Broker.Subscribe(id)
	run, ok := s.loadRun(w, r)
	if !ok {
		s.Broker.Unsubscribe(id, ch)
		return model.Run{}, nil, false
	}
	return run, ch, true
}

func terminal(evt model.Event) bool {
	r := model.Run{Status: evt.Status}
	return evt.Type == EventStatus && r.Terminal()
}

// EventsStreamHandler handles GET /v1/runs/{id}/events/stream (SSE). The
// stream starts with the run's current status and ends after a terminal one.
func (s *Server) EventsStreamHandler(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeProblem(w, http.StatusInternalServerError, "Streaming unsupported", "", r.URL.Path)
		return
	}
	run, ch, ok := s.subscribeRun(w, r)
	if !ok {
		return
	}
	defer s.Broker.Unsubscribe(run.ID, ch)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	send := func(evt model.Event) {
		b, _ := json.Marshal(evt)
		fmt.Fprintf(w, "event: %s\n", evt.Type)
		fmt.Fprintf(w, "data: %s\n\n", b)
		flusher.Flush()
	}
	first := statusEvent(run)
	send(first)
	if terminal(first) {
		return
	}

	heartbeat := time.NewTicker(heartbeatEvery)
	defer heartbeat.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case evt, open := <-ch:
			if !open {
				return
			}
			send(evt)
			if terminal(evt) {
				return
			}
		case <-heartbeat.C:
			fmt.Fprintf(w, "event: heartbeat\n")
			fmt.Fprintf(w, "data: {\"runId\":%q,\"ts\":%q}\n\n", run.ID, now())
			flusher.Flush()
		}
	}
}

type wsMessage struct {
	Type  string       `json:"type"`
	Event *model.Event `json:"event,omitempty"`
}

// WSHandler handles GET /v1/runs/{id}/ws. Events are pushed as
// {"type":"event","event":{...}}; clients may send {"type":"ping"}. The
// server closes the connection after a terminal status.
func (s *Server) WSHandler(w http.ResponseWriter, r *http.Request) {
	run, ch, ok := s.subscribeRun(w, r)
	if !ok {
		return
	}
	defer s.Broker.Unsubscribe(run.ID, ch)
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).WithField("run", run.ID).Debug("websocket upgrade")
		return
	}
	defer func() { _ = conn.Close() }()

	conn.SetReadLimit(1 << 16)
	_ = conn.SetReadDeadline(time.Now().Add(4 * heartbeatEvery))
	conn.SetPongHandler(func(string) error { return conn.SetReadDeadline(time.Now().Add(4 * heartbeatEvery)) })

	// Only this goroutine writes; the reader hands pings over.
	pings := make(chan struct{}, 1)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var msg wsMessage
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			_ = conn.SetReadDeadline(time.Now().Add(4 * heartbeatEvery))
			if msg.Type == "ping" {
				select {
				case pings <- struct{}{}:
				default:
				}
			}
		}
	}()

	write := func(v any) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		return conn.WriteJSON(v) == nil
	}
	first := statusEvent(run)
	if !write(wsMessage{Type: "event", Event: &first}) || terminal(first) {
		closeWS(conn)
		return
	}
	heartbeat := time.NewTicker(heartbeatEvery)
	defer heartbeat.Stop()
	for {
		select {
		case <-done:
			return
		case <-pings:
			if !write(wsMessage{Type: "pong"}) {
				return
			}
		case <-heartbeat.C:
			_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case evt, open := <-ch:
			if !open {
				closeWS(conn)
				return
			}
			if !write(wsMessage{Type: "event", Event: &evt}) {
				return
			}
			if terminal(evt) {
				closeWS(conn)
				return
			}
		}
	}
}

func closeWS(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "run finished")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
}
