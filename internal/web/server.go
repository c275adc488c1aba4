// Package web serves the local query API: search and read endpoints over the
// indexed corpus, a sync trigger, and a websocket that streams sync progress.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/slacksift/slacksift/internal/ingest"
	"github.com/slacksift/slacksift/internal/logging"
	"github.com/slacksift/slacksift/internal/workspace"
)

// Config defines runtime options for the web server.
type Config struct {
	ListenAddr string
	// Token, when set, is required on every request (query param or bearer
	// header).
	Token string
}

// Server wraps an HTTP server bound to one open workspace.
type Server struct {
	cfg        Config
	handle     *workspace.Handle
	httpServer *http.Server
	baseCtx    context.Context
	cancelBase context.CancelFunc
	watcher    *stateWatcher
	log        *slog.Logger

	subscribersMu sync.Mutex
	subscribers   map[chan wsEvent]struct{}

	syncMu      sync.Mutex
	syncRunning bool
}

// NewServer creates a web server with all routes registered.
func NewServer(cfg Config, handle *workspace.Handle) *Server {
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = "127.0.0.1:8430"
	}

	s := &Server{
		cfg:         cfg,
		handle:      handle,
		subscribers: make(map[chan wsEvent]struct{}),
		log:         logging.ForComponent(logging.CompWeb),
	}
	s.baseCtx, s.cancelBase = context.WithCancel(context.Background())

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		resp := map[string]any{
			"ok":        true,
			"workspace": handle.Alias,
			"time":      time.Now().UTC().Format(time.RFC3339),
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	})
	mux.HandleFunc("/api/search", s.handleSearch)
	mux.HandleFunc("/api/recent", s.handleRecent)
	mux.HandleFunc("/api/contacts", s.handleContacts)
	mux.HandleFunc("/api/conversations", s.handleConversations)
	mux.HandleFunc("/api/thread", s.handleThread)
	mux.HandleFunc("/api/stats", s.handleStats)
	mux.HandleFunc("/api/sync", s.handleSync)
	mux.HandleFunc("/ws/progress", s.handleProgressWS)

	s.httpServer = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           withRecover(mux),
		BaseContext:       func(_ net.Listener) context.Context { return s.baseCtx },
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Handler returns the configured HTTP handler (used by tests).
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start runs the HTTP server and blocks until shutdown or error. Returns nil
// on graceful shutdown.
func (s *Server) Start() error {
	if watcher, err := newStateWatcher(s.handle.StatePath(), func() {
		s.broadcast(wsEvent{Type: "state-changed"})
	}); err != nil {
		s.log.Warn("state_watcher_disabled", slog.String("error", err.Error()))
	} else {
		s.watcher = watcher
		go watcher.run(s.baseCtx)
	}

	err := s.httpServer.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.cancelBase != nil {
		// Signal long-lived handlers (websockets) to stop promptly.
		s.cancelBase()
	}

	err := s.httpServer.Shutdown(ctx)
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		if closeErr := s.httpServer.Close(); closeErr == nil {
			return nil
		} else {
			return fmt.Errorf("graceful shutdown timed out and force close failed: %w", closeErr)
		}
	}
	return err
}

func withRecover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logging.ForComponent(logging.CompWeb).Error("panic",
					slog.String("recover", fmt.Sprintf("%v", rec)),
					slog.String("path", r.URL.Path))
				http.Error(w, "internal server error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) subscribe() chan wsEvent {
	ch := make(chan wsEvent, 64)
	s.subscribersMu.Lock()
	s.subscribers[ch] = struct{}{}
	s.subscribersMu.Unlock()
	return ch
}

func (s *Server) unsubscribe(ch chan wsEvent) {
	if ch == nil {
		return
	}
	s.subscribersMu.Lock()
	if _, ok := s.subscribers[ch]; ok {
		delete(s.subscribers, ch)
		close(ch)
	}
	s.subscribersMu.Unlock()
}

func (s *Server) broadcast(ev wsEvent) {
	s.subscribersMu.Lock()
	for ch := range s.subscribers {
		select {
		case ch <- ev:
		default:
			// Slow consumer; drop rather than stall the sync.
		}
	}
	s.subscribersMu.Unlock()
}

// startSync launches a sync in the background, streaming progress to all
// websocket subscribers. Only one sync runs at a time.
func (s *Server) startSync(full bool) bool {
	s.syncMu.Lock()
	if s.syncRunning {
		s.syncMu.Unlock()
		return false
	}
	s.syncRunning = true
	s.syncMu.Unlock()

	go func() {
		defer func() {
			s.syncMu.Lock()
			s.syncRunning = false
			s.syncMu.Unlock()
		}()

		progress := func(p ingest.Progress) {
			s.broadcast(wsEvent{
				Type:    "progress",
				Phase:   string(p.Phase),
				Current: p.Current,
				Total:   p.Total,
			})
		}

		var err error
		if full {
			_, err = s.handle.Pipeline.BuildIndex(s.baseCtx, progress)
		} else {
			_, err = s.handle.Pipeline.UpdateIndex(s.baseCtx, progress)
		}
		if err != nil {
			s.log.Error("sync_failed", slog.Bool("full", full), slog.String("error", err.Error()))
			s.broadcast(wsEvent{Type: "sync-failed", Error: err.Error()})
			return
		}
		s.broadcast(wsEvent{Type: "sync-finished"})
	}()
	return true
}
