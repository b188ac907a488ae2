// Package telemetry streams the host's metric registry to websocket clients.
package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lixenwraith/thundagun/core"
	"github.com/lixenwraith/thundagun/status"
)

// DefaultInterval is the snapshot push period when none is configured
const DefaultInterval = 500 * time.Millisecond

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Local diagnostics endpoint
	},
}

// Frame is one pushed snapshot
type Frame struct {
	Seq     uint64         `json:"seq"`
	Time    time.Time      `json:"time"`
	Metrics map[string]any `json:"metrics"`
}

// Server serves /status (websocket stream) and /snapshot (one JSON frame)
type Server struct {
	Registry *status.Registry
	Interval time.Duration
	Addr     string

	log *slog.Logger
	mux *http.ServeMux

	mu      sync.Mutex
	clients map[*websocket.Conn]*sync.Mutex
	ln      net.Listener
	srv     *http.Server
	stopped bool
}

// NewServer creates a server; Addr is only needed when run as a service
func NewServer(reg *status.Registry, addr string, interval time.Duration, log *slog.Logger) *Server {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		Registry: reg,
		Interval: interval,
		Addr:     addr,
		log:      log,
		clients:  make(map[*websocket.Conn]*sync.Mutex),
	}
	s.mux = http.NewServeMux()
	s.mux.HandleFunc("/status", s.handleStream)
	s.mux.HandleFunc("/snapshot", s.handleSnapshot)
	return s
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Clients returns the number of connected stream clients
func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// frame snapshots the metrics under prefix; "" selects all
func (s *Server) frame(seq uint64, prefix string) Frame {
	return Frame{Seq: seq, Time: time.Now(), Metrics: s.Registry.SnapshotPrefix(prefix)}
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.frame(0, r.URL.Query().Get("prefix"))); err != nil {
		s.log.Warn("snapshot encode failed", "err", err)
	}
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}

	connMu := &sync.Mutex{}
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		conn.Close()
		return
	}
	s.clients[conn] = connMu
	s.mu.Unlock()
	s.log.Debug("telemetry client connected", "remote", r.RemoteAddr)

	defer func() {
		s.mu.Lock()
		delete(s.clients, conn)
		s.mu.Unlock()
		conn.Close()
		s.log.Debug("telemetry client disconnected", "remote", r.RemoteAddr)
	}()

	// Reader detects disconnect; clients never send
	gone := make(chan struct{})
	core.Go(func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	prefix := r.URL.Query().Get("prefix")
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	var seq uint64
	for {
		connMu.Lock()
		err := conn.WriteJSON(s.frame(seq, prefix))
		connMu.Unlock()
		if err != nil {
			return
		}
		seq++

		select {
		case <-ticker.C:
		case <-gone:
			return
		case <-r.Context().Done():
			return
		}
	}
}

// Name implements service.Service
func (s *Server) Name() string { return "telemetry" }

// Dependencies implements service.Service
func (s *Server) Dependencies() []string { return nil }

// Init binds the listen address
func (s *Server) Init() error {
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.ln = ln
	s.srv = &http.Server{Handler: s, ReadHeaderTimeout: 5 * time.Second}
	s.mu.Unlock()
	return nil
}

// Start serves on the bound listener until Stop or ctx ends
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	ln, srv := s.ln, s.srv
	s.mu.Unlock()
	if srv == nil {
		return errors.New("telemetry: not initialized")
	}

	core.Go(func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("telemetry server failed", "err", err)
		}
	})
	context.AfterFunc(ctx, func() { _ = s.Stop() })
	s.log.Info("telemetry listening", "addr", ln.Addr().String())
	return nil
}

// ListenAddr returns the bound address, or "" before Init
func (s *Server) ListenAddr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

// Stop closes the listener and every stream client
func (s *Server) Stop() error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	srv, ln := s.srv, s.ln
	conns := make([]*websocket.Conn, 0, len(s.clients))
	for c := range s.clients {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	// Hijacked websocket conns are not tracked by http.Server
	for _, c := range conns {
		c.Close()
	}
	var err error
	if srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		err = srv.Shutdown(ctx)
	}
	if ln != nil {
		_ = ln.Close() // Already closed when Serve ran
	}
	return err
}
