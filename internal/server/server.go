package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io/fs"
	"log/slog"
	"math"
	"mime"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jpalmerr/safetypole/internal/hub"
	"github.com/jpalmerr/safetypole/internal/state"
)

const (
	// sseWriteTimeout is the maximum time allowed for a single SSE write operation.
	// Must be <= shutdown timeout to ensure clean shutdown.
	sseWriteTimeout = 5 * time.Second

	// sseBuffer is the number of snapshots queued per SSE client before
	// deliveries start to block.
	sseBuffer = 4

	// shutdownTimeout bounds in-flight requests once the server context ends.
	shutdownTimeout = 5 * time.Second

	// maxOverrideBody limits the size of a manual override request body.
	maxOverrideBody = 1 << 12

	defaultTitle     = "SafetyPole"
	titlePlaceholder = "{{.Title}}"
)

// Backend is everything the HTTP layer needs from the running monitor.
type Backend interface {
	// Snapshot returns the current committed state.
	Snapshot() state.Snapshot
	// Subscribe adds a live connection to the broadcast set.
	Subscribe(sub hub.Subscriber) bool
	// Unsubscribe removes a live connection. Unknown IDs are ignored.
	Unsubscribe(id string)
	// Submit feeds a manual reading through the same path as sampled ones.
	Submit(ctx context.Context, r state.Reading) error
}

// Server handles HTTP requests for the SafetyPole dashboard and API.
//
// Routes:
//   - GET /: embedded dashboard HTML
//   - GET /api/state: current state as JSON
//   - GET /api/sse: Server-Sent Events subscription
//   - GET /ws: WebSocket subscription
//   - POST /api/readings (and POST /update): manual override
type Server struct {
	backend    Backend
	port       int
	httpServer *http.Server
	assets     fs.FS
	title      string
	logger     *slog.Logger
}

// NewServer creates a new HTTP [Server]. assets may be nil, in which case
// the dashboard route is not registered. The server is not started until
// [Server.Start] is called.
func NewServer(backend Backend, port int, assets fs.FS, title string, logger *slog.Logger) *Server {
	return &Server{
		backend: backend,
		port:    port,
		assets:  assets,
		title:   title,
		logger:  logger,
	}
}

// Handler returns the request multiplexer with every route registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/state", s.handleState)
	mux.HandleFunc("/api/sse", s.handleSSE)
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/api/readings", s.handleReadings)
	mux.HandleFunc("/update", s.handleReadings)

	if s.assets != nil {
		mux.HandleFunc("/", s.handleDashboard)
	}
	return mux
}

// Start begins serving HTTP requests in a background goroutine.
//
// Start is non-blocking and returns once the port is bound. When ctx is
// cancelled the server shuts down gracefully, waiting at most five seconds
// for in-flight requests.
func (s *Server) Start(ctx context.Context) error {
	// bind first so a busy port is reported synchronously
	addr := fmt.Sprintf(":%d", s.port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind to port %d: %w", s.port, err)
	}

	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		// request contexts end with ctx, which stops SSE and WebSocket
		// handlers during shutdown
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server error", "error", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("http server shutdown error", "error", err)
		}
	}()

	return nil
}

// handleDashboard serves the main dashboard page.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if s.assets == nil {
		http.Error(w, "Dashboard not found", http.StatusInternalServerError)
		return
	}

	content, err := fs.ReadFile(s.assets, "assets/index.html")
	if err != nil {
		http.Error(w, "Dashboard not found", http.StatusInternalServerError)
		return
	}

	title := s.title
	if title == "" {
		title = defaultTitle
	}
	rendered := strings.ReplaceAll(string(content), titlePlaceholder, html.EscapeString(title))

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err = w.Write([]byte(rendered)); err != nil {
		s.logger.Error("failed to write dashboard response", "error", err)
	}
}

// handleState returns the current state message.
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	msg, err := state.NewMessage(s.backend.Snapshot())
	if err != nil {
		s.logger.Error("invalid snapshot", "error", err)
		http.Error(w, "State unavailable", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	if err := json.NewEncoder(w).Encode(msg); err != nil {
		s.logger.Error("failed to encode state response", "error", err)
	}
}

// handleSSE streams state messages via Server-Sent Events. Each event
// carries the snapshot sequence number as its id.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	if _, ok := w.(http.Flusher); !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	rc := http.NewResponseController(w)
	deadlinesSupported := true

	writeEvent := func(snap state.Snapshot) error {
		msg, err := state.NewMessage(snap)
		if err != nil {
			// a malformed snapshot is skipped, not fatal to the stream
			s.logger.Error("invalid snapshot", "seq", snap.Seq, "error", err)
			return nil
		}
		data, err := json.Marshal(msg)
		if err != nil {
			return err
		}

		if deadlinesSupported {
			if err := rc.SetWriteDeadline(time.Now().Add(sseWriteTimeout)); err != nil {
				s.logger.Warn("sse write deadlines not supported", "error", err)
				deadlinesSupported = false
			}
		}
		if _, err := fmt.Fprintf(w, "id: %d\ndata: %s\n\n", snap.Seq, data); err != nil {
			return err
		}
		return rc.Flush()
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	sub := hub.NewChanSubscriber(uuid.NewString(), sseBuffer)
	s.backend.Subscribe(sub)
	defer s.backend.Unsubscribe(sub.ID())

	log := s.logger.With("subscriber_id", sub.ID(), "transport", "sse")
	log.Debug("subscriber connected", "remote_addr", r.RemoteAddr)

	// the current state goes out first; published snapshots that are not
	// newer are dropped
	initial := s.backend.Snapshot()
	if err := writeEvent(initial); err != nil {
		return
	}
	last := initial.Seq

	for {
		select {
		case snap := <-sub.Snapshots():
			if snap.Seq <= last {
				continue
			}
			if err := writeEvent(snap); err != nil {
				log.Debug("sse write failed", "error", err)
				return
			}
			last = snap.Seq

		case <-sub.Done():
			log.Debug("subscriber evicted")
			return

		case <-r.Context().Done():
			// fires on client disconnect and, through BaseContext, on shutdown
			return
		}
	}
}

// override is the JSON body accepted by the manual override route.
type override struct {
	Primary   *float64 `json:"primary"`
	Secondary *float64 `json:"secondary"`
	EField    *float64 `json:"e_field"`
	Current   *float64 `json:"current"`
}

// handleReadings accepts a manual reading pair and feeds it into the
// pipeline.
func (s *Server) handleReadings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxOverrideBody)
	reading, err := parseOverride(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.backend.Submit(r.Context(), reading); err != nil {
		s.logger.Warn("manual override rejected", "error", err)
		http.Error(w, "Monitor not accepting readings", http.StatusServiceUnavailable)
		return
	}

	s.logger.Info("manual override accepted", "primary", reading.Primary, "secondary", reading.Secondary)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	if err := json.NewEncoder(w).Encode(map[string]string{"status": "ok"}); err != nil {
		s.logger.Error("failed to encode override response", "error", err)
	}
}

// parseOverride reads the reading pair from a JSON or form-encoded body.
// Fields are primary/secondary, with e_field/current accepted as aliases.
func parseOverride(r *http.Request) (state.Reading, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	if mediaType == "application/json" {
		var body override
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return state.Reading{}, fmt.Errorf("invalid JSON body: %w", err)
		}
		primary, secondary := firstSet(body.Primary, body.EField), firstSet(body.Secondary, body.Current)
		if primary == nil || secondary == nil {
			return state.Reading{}, errors.New("both primary and secondary readings are required")
		}
		return state.Reading{Primary: *primary, Secondary: *secondary}, nil
	}

	if err := r.ParseForm(); err != nil {
		return state.Reading{}, fmt.Errorf("invalid form body: %w", err)
	}
	primary, err := formValue(r, "primary", "e_field")
	if err != nil {
		return state.Reading{}, err
	}
	secondary, err := formValue(r, "secondary", "current")
	if err != nil {
		return state.Reading{}, err
	}
	return state.Reading{Primary: primary, Secondary: secondary}, nil
}

func firstSet(values ...*float64) *float64 {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}

// formValue returns the first non-empty form field among names as a number.
func formValue(r *http.Request, names ...string) (float64, error) {
	for _, name := range names {
		raw := strings.TrimSpace(r.PostForm.Get(name))
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, fmt.Errorf("field %s: not a number: %q", name, raw)
		}
		return v, nil
	}
	return 0, fmt.Errorf("missing field %s", names[0])
}
