package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/jpalmerr/safetypole/internal/state"
)

const (
	wsWriteWait      = 5 * time.Second     // time allowed to write a message to the peer
	wsPongWait       = 60 * time.Second    // time allowed to read the next pong from the peer
	wsPingPeriod     = wsPongWait * 9 / 10 // must be less than wsPongWait
	wsMaxMessageSize = 512                 // observers only send control frames
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// dashboards may be served from another origin; subscribers are not authenticated
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsSubscriber delivers state messages over one WebSocket connection.
// Snapshots arrive from the handler and the hub, so Send drops any that
// are not newer than the last one written.
type wsSubscriber struct {
	id     string
	conn   *websocket.Conn
	logger *slog.Logger

	writeMu   sync.Mutex
	wrote     bool   // guarded by writeMu
	lastSeq   uint64 // guarded by writeMu
	closeOnce sync.Once
	done      chan struct{}
}

func newWSSubscriber(conn *websocket.Conn, logger *slog.Logger) *wsSubscriber {
	id := uuid.NewString()
	return &wsSubscriber{
		id:     id,
		conn:   conn,
		logger: logger.With("subscriber_id", id, "transport", "websocket"),
		done:   make(chan struct{}),
	}
}

func (s *wsSubscriber) ID() string {
	return s.id
}

// Send writes snap as one text frame. The write deadline is the earlier of
// ctx's deadline and wsWriteWait. A snapshot whose Seq is not above the
// last one written is skipped.
func (s *wsSubscriber) Send(ctx context.Context, snap state.Snapshot) error {
	msg, err := state.NewMessage(snap)
	if err != nil {
		s.logger.Error("invalid snapshot", "seq", snap.Seq, "error", err)
		return nil
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	deadline := time.Now().Add(wsWriteWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.wrote && snap.Seq <= s.lastSeq {
		return nil
	}
	if err := s.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return err
	}
	s.wrote = true
	s.lastSeq = snap.Seq
	return nil
}

// Close closes the connection, which also ends the handler's read loop.
func (s *wsSubscriber) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.conn.Close()
	})
	return err
}

// handleWebSocket upgrades the connection and subscribes it to state
// updates. The handler owns the connection until the peer goes away, a
// keepalive ping fails, the hub evicts the subscriber, or the server shuts
// down.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied with an HTTP error
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	sub := newWSSubscriber(conn, s.logger)
	defer sub.Close()

	// the current state goes out before the subscriber joins the hub; a
	// publish racing with the join is dropped by Send if it is not newer
	if err := sub.Send(r.Context(), s.backend.Snapshot()); err != nil {
		sub.logger.Debug("initial write failed", "error", err)
		return
	}

	s.backend.Subscribe(sub)
	defer s.backend.Unsubscribe(sub.ID())
	sub.logger.Debug("subscriber connected", "remote_addr", r.RemoteAddr)

	conn.SetReadLimit(wsMaxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	readErr := make(chan error, 1)
	go func() {
		for {
			// inbound frames are ignored; reading keeps pong and close handling alive
			if _, _, err := conn.ReadMessage(); err != nil {
				readErr <- err
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			// WriteControl is safe to call concurrently with WriteMessage
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				sub.logger.Debug("keepalive failed", "error", err)
				return
			}

		case err := <-readErr:
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				sub.logger.Debug("websocket read error", "error", err)
			}
			return

		case <-sub.done:
			sub.logger.Debug("subscriber evicted")
			return

		case <-r.Context().Done():
			sub.writeClose(websocket.CloseGoingAway, "server shutting down")
			return
		}
	}
}

// writeClose sends a close frame, ignoring errors from a dead peer.
func (s *wsSubscriber) writeClose(code int, text string) {
	msg := websocket.FormatCloseMessage(code, text)
	_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
}
