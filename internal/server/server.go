package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/jpalmerr/pollmatch/internal/store"
)

const (
	// sseWriteTimeout is the maximum time allowed for a single SSE write operation.
	// This prevents goroutine leaks when clients are slow or disconnected.
	// Must be <= shutdown timeout to ensure clean shutdown.
	sseWriteTimeout = 5 * time.Second

	// maxSubmitBytes caps the size of a POST /api/polls body.
	maxSubmitBytes = 1 << 20
)

// PollSpec is the JSON body accepted by POST /api/polls.
type PollSpec struct {
	Name        string            `json:"name"`
	URL         string            `json:"url"`
	Method      string            `json:"method,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
	Body        *string           `json:"body,omitempty"`
	Match       MatchJSON         `json:"match"`
	MaxAttempts int               `json:"max_attempts"`
	DelayMs     int64             `json:"delay_ms"`
	TimeoutMs   int64             `json:"timeout_ms,omitempty"`
	Extract     string            `json:"extract,omitempty"`
}

// MatchJSON is the stop condition of a [PollSpec].
type MatchJSON struct {
	Type    string `json:"type"`
	Pattern string `json:"pattern"`
	Invert  bool   `json:"invert,omitempty"`
}

// Submitter validates spec and starts the poll in the background,
// returning its ID. A returned error means the poll was rejected and
// nothing was started.
type Submitter func(spec PollSpec) (string, error)

// Server handles HTTP requests for the poll service.
//
// Server provides these endpoints:
//   - POST /api/polls: Submit a poll, returns 202 with its ID
//   - GET /api/polls: Returns all stored polls as JSON
//   - GET /api/polls/{id}: Returns one poll, or 404
//   - GET /api/sse: Server-Sent Events stream of poll updates
//
// Extra handlers (for example a metrics endpoint) can be mounted at
// construction. The server is designed for graceful shutdown via context
// cancellation.
type Server struct {
	store      store.Store
	port       int
	submit     Submitter
	extra      map[string]http.Handler
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a new HTTP [Server].
//
// Parameters:
//   - st: Store implementation for poll records
//   - port: TCP port to listen on
//   - submit: starts polls accepted by POST /api/polls
//   - logger: Logger for server events
//   - extra: additional handlers keyed by mux pattern (may be nil)
//
// The server is not started until [Server.Start] is called.
func NewServer(st store.Store, port int, submit Submitter, logger *slog.Logger, extra map[string]http.Handler) *Server {
	return &Server{
		store:  st,
		port:   port,
		submit: submit,
		extra:  extra,
		logger: logger,
	}
}

// Handler returns the server's request router.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/polls", s.handleSubmit)
	mux.HandleFunc("GET /api/polls", s.handleList)
	mux.HandleFunc("GET /api/polls/{id}", s.handleGet)
	mux.HandleFunc("GET /api/sse", s.handleSSE)

	for pattern, h := range s.extra {
		mux.Handle(pattern, h)
	}
	return mux
}

// Start begins serving HTTP requests in a background goroutine.
//
// Start is non-blocking and returns immediately after confirming the server
// is listening. The server will continue running until the context is
// cancelled, at which point it initiates a graceful shutdown with a 5-second
// timeout.
//
// Returns an error if the server fails to bind to the configured port.
func (s *Server) Start(ctx context.Context) error {
	// create listener first to verify port availability synchronously
	addr := fmt.Sprintf(":%d", s.port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind to port %d: %w", s.port, err)
	}
	return s.StartListener(ctx, ln)
}

// Addr returns the bound listen address, or "" before Start.
func (s *Server) Addr() string {
	if s.httpServer == nil {
		return ""
	}
	return s.httpServer.Addr
}

// StartListener is like [Server.Start] but serves on an existing listener,
// ignoring the configured port. The listener is closed on shutdown.
func (s *Server) StartListener(ctx context.Context, ln net.Listener) error {
	s.httpServer = &http.Server{
		Addr:              ln.Addr().String(),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		// BaseContext derives all request contexts from the server context.
		// When ctx is cancelled, all request contexts are also cancelled,
		// enabling graceful shutdown of long-running handlers like SSE.
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
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("http server shutdown error", "error", err)
		}
	}()

	return nil
}

// handleSubmit validates and starts a poll.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var spec PollSpec
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSubmitBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&spec); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid poll: %w", err))
		return
	}

	id, err := s.submit(spec)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	s.logger.Info("poll submitted", "poll_id", id, "poll", spec.Name, "url", spec.URL)
	s.writeJSON(w, http.StatusAccepted, map[string]string{"id": id})
}

// handleList returns all stored polls as JSON.
func (s *Server) handleList(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.store.GetAll())
}

// handleGet returns one poll by ID.
func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	rec, ok := s.store.Get(id)
	if !ok {
		s.writeError(w, http.StatusNotFound, fmt.Errorf("poll %q not found", id))
		return
	}
	s.writeJSON(w, http.StatusOK, rec)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

// handleSSE streams poll updates via Server-Sent Events.
//
// The handler uses write deadlines to prevent goroutine leaks when clients are
// slow or disconnected. Without deadlines, a blocked Fprintf call would prevent
// the handler from detecting context cancellation or channel closure.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	if _, ok := w.(http.Flusher); !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	rc := http.NewResponseController(w)

	// track if write deadlines are supported (may not be for some ResponseWriter impls)
	deadlinesSupported := true

	writeAndFlush := func(data []byte) error {
		if deadlinesSupported {
			if err := rc.SetWriteDeadline(time.Now().Add(sseWriteTimeout)); err != nil {
				s.logger.Warn("sse write deadlines not supported", "error", err)
				deadlinesSupported = false
			}
		}

		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return err
		}
		return rc.Flush()
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	// subscribe before the snapshot so no update falls between them
	ch := s.store.Subscribe()
	defer s.store.Unsubscribe(ch)

	for _, rec := range s.store.GetAll() {
		data, err := json.Marshal(rec)
		if err != nil {
			continue
		}
		if err := writeAndFlush(data); err != nil {
			return
		}
	}

	for {
		select {
		case rec, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(rec)
			if err != nil {
				continue
			}
			if err := writeAndFlush(data); err != nil {
				return
			}

		case <-r.Context().Done():
			// request context is derived from server context via BaseContext,
			// so this fires on both client disconnect AND server shutdown
			return
		}
	}
}
