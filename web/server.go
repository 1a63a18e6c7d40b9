// Package web serves the local control surface: a JSON API over the snippet
// store and expander, plus a websocket feed of state changes.
package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"markestedt/spark/config"
	"markestedt/spark/render"
	"markestedt/spark/storage"
)

//go:embed static/*
var staticFiles embed.FS

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return isLocalOrigin(r.Header.Get("Origin"))
	},
}

// Expander is the lifecycle control the API exposes
type Expander interface {
	Start(ctx context.Context) error
	Stop()
	Reload(ctx context.Context) error
	IsActive() bool
}

// Previewer renders a snippet body for the editor preview
type Previewer interface {
	RenderResult(ctx context.Context, body string) render.Result
}

// Options configures a Server
type Options struct {
	DB         *storage.DB
	Expander   Expander
	Previewer  Previewer
	Config     *config.Config
	ConfigPath string
	Port       int
}

// Server represents the web server
type Server struct {
	db         *storage.DB
	expander   Expander
	previewer  Previewer
	configPath string
	port       int
	hub        *Hub

	mu     sync.RWMutex
	config *config.Config
	srv    *http.Server
	// base outlives requests so sessions started over HTTP keep running
	base context.Context
}

// NewServer creates a new web server
func NewServer(opts Options) *Server {
	hub := NewHub()
	go hub.Run()

	return &Server{
		db:         opts.DB,
		expander:   opts.Expander,
		previewer:  opts.Previewer,
		config:     opts.Config,
		configPath: opts.ConfigPath,
		port:       opts.Port,
		hub:        hub,
		base:       context.Background(),
	}
}

// Handler returns the HTTP routes
func (s *Server) Handler() (http.Handler, error) {
	mux := http.NewServeMux()

	// API endpoints
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/expander/", s.handleExpander)
	mux.HandleFunc("/api/snippets", s.handleSnippets)
	mux.HandleFunc("/api/snippets/", s.handleSnippet)
	mux.HandleFunc("/api/folders", s.handleFolders)
	mux.HandleFunc("/api/render", s.handleRender)
	mux.HandleFunc("/api/config", s.handleConfig)
	mux.HandleFunc("/api/stats", s.handleStats)
	mux.HandleFunc("/api/history", s.handleHistory)
	mux.HandleFunc("/ws", s.handleWebSocket)

	// Static files
	staticFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		return nil, fmt.Errorf("failed to load static files: %w", err)
	}
	mux.Handle("/", http.FileServer(http.FS(staticFS)))

	return mux, nil
}

// Start serves on localhost until ctx is done
func (s *Server) Start(ctx context.Context) error {
	handler, err := s.Handler()
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("127.0.0.1:%d", s.port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	s.mu.Lock()
	s.srv = srv
	s.base = context.WithoutCancel(ctx)
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
		s.hub.Close()
	}()

	slog.Info("Starting web server", "port", s.port, "url", s.URL())

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("web server: %w", err)
	}
	return nil
}

// Close disconnects websocket clients; Start does this when its context ends
func (s *Server) Close() {
	s.hub.Close()
}

// URL returns the address of the web UI
func (s *Server) URL() string {
	return fmt.Sprintf("http://localhost:%d", s.port)
}

// GetConfig returns the current configuration (thread-safe)
func (s *Server) GetConfig() *config.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config
}

// UpdateConfig updates the configuration (thread-safe)
func (s *Server) UpdateConfig(cfg *config.Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.config = cfg
}

func (s *Server) baseContext() context.Context {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.base
}

// BroadcastStatus broadcasts the expander state to all connected clients
func (s *Server) BroadcastStatus(active bool) {
	s.hub.BroadcastMessage(Message{
		Type: MessageTypeStatus,
		Data: StatusMessage{Active: active, Status: statusName(active)},
	})
}

// BroadcastExpansion broadcasts a new expansion to all connected clients
func (s *Server) BroadcastExpansion(e *storage.Expansion) {
	s.hub.BroadcastMessage(Message{
		Type: MessageTypeExpansion,
		Data: ExpansionMessage{
			ID:        e.ID,
			Shortcut:  e.Shortcut,
			CharCount: e.CharCount,
			LatencyMs: e.LatencyMs,
			Success:   e.Success,
			Timestamp: e.Timestamp.UTC().Format(time.RFC3339),
		},
	})
}

// BroadcastSnippetsChanged tells clients to refetch the snippet list
func (s *Server) BroadcastSnippetsChanged() {
	s.hub.BroadcastMessage(Message{Type: MessageTypeSnippets})
}

// handleWebSocket handles WebSocket connections
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade WebSocket connection", "error", err)
		return
	}

	client := &Client{
		hub:  s.hub,
		conn: conn,
		send: make(chan []byte, 256),
	}

	select {
	case client.hub.register <- client:
	case <-client.hub.done:
		conn.Close()
		return
	}

	// Start client goroutines
	go client.writePump()
	go client.readPump()

	// Tell the new client where things stand
	s.BroadcastStatus(s.expander.IsActive())
}

func statusName(active bool) string {
	if active {
		return "active"
	}
	return "paused"
}
