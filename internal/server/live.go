package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/claude/ironsession/internal/workout"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // access is gated by the tailnet
	},
}

const liveWriteTimeout = 10 * time.Second

// handleEvents streams coordinator events as server-sent events, starting
// with a snapshot.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	c, _, _, ok := s.coordinator(w, r)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "streaming not supported"})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := c.Subscribe()
	defer c.Unsubscribe(ch)

	fmt.Fprintf(w, "event: snapshot\ndata: %s\n\n", mustJSON(c.Snapshot()))
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Type, mustJSON(evt))
			flusher.Flush()
		}
	}
}

// liveCommand is a message sent by the client over /live.
type liveCommand struct {
	Type string `json:"type"`
	workout.SetInput
}

// liveReply answers one liveCommand.
type liveReply struct {
	Type  string `json:"type"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
	Code  string `json:"code,omitempty"`
	Data  any    `json:"data,omitempty"`
}

// liveConn serializes writes to one WebSocket connection.
type liveConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (lc *liveConn) send(v any) error {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	_ = lc.conn.SetWriteDeadline(time.Now().Add(liveWriteTimeout))
	return lc.conn.WriteJSON(v)
}

// handleLive upgrades to a WebSocket that pushes coordinator events and
// accepts log_set and snapshot commands.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	c, uid, name, ok := s.coordinator(w, r)
	if !ok {
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()
	lc := &liveConn{conn: conn}
	s.log.Info("live client connected", "user_id", uid, "workout", name)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := c.Subscribe()
	defer c.Unsubscribe(ch)

	if err := lc.send(liveReply{Type: "snapshot", OK: true, Data: c.Snapshot()}); err != nil {
		return
	}

	go func() {
		defer cancel()
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-ch:
				if !ok {
					_ = conn.Close()
					return
				}
				if err := lc.send(evt); err != nil {
					return
				}
			}
		}
	}()

	for {
		var cmd liveCommand
		if err := conn.ReadJSON(&cmd); err != nil {
			s.log.Info("live client disconnected", "user_id", uid, "workout", name)
			return
		}
		if err := lc.send(s.runLiveCommand(ctx, c, cmd)); err != nil {
			return
		}
	}
}

func (s *Server) runLiveCommand(ctx context.Context, c *workout.Coordinator, cmd liveCommand) liveReply {
	switch cmd.Type {
	case "log_set":
		row, err := c.LogSet(ctx, cmd.SetInput)
		if err != nil {
			_, code := engineErrorStatus(err)
			return liveReply{Type: "log_set", Error: err.Error(), Code: code}
		}
		return liveReply{Type: "log_set", OK: true, Data: row}
	case "snapshot":
		return liveReply{Type: "snapshot", OK: true, Data: c.Snapshot()}
	default:
		return liveReply{Type: cmd.Type, Error: "unknown command", Code: "unknown_command"}
	}
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return `{}`
	}
	return string(b)
}
