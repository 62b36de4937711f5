package server

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"

	"github.com/charmbracelet/log"

	"github.com/zot/lua-reload/internal/config"
	"github.com/zot/lua-reload/internal/journal"
	"github.com/zot/lua-reload/internal/lua"
	"github.com/zot/lua-reload/internal/protocol"
	"github.com/zot/lua-reload/internal/reloader"
)

// Server is the reload server: one Lua runtime with dependency tracking,
// exposed over HTTP and WebSocket.
type Server struct {
	config       *config.Config
	rt           *lua.Runtime
	session      *reloader.Session
	journal      journal.Backend
	service      *Service
	handler      *protocol.Handler
	wsEndpoint   *WebSocketEndpoint
	httpEndpoint *HTTPEndpoint
	httpServer   *http.Server
	log          *log.Logger
}

// New creates a new server with the given configuration. Dependency tracking
// is enabled from the start so the graph covers every import.
func New(cfg *config.Config, logger *log.Logger) (*Server, error) {
	if logger == nil {
		logger = log.New(io.Discard)
	}

	rt, err := lua.NewRuntime(lua.Options{Roots: cfg.Lua.Roots, Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("failed to create runtime: %w", err)
	}

	sess := reloader.NewSession(rt, reloader.WithLogger(logger))
	sess.Enable(cfg.Reload.Blacklist)

	jb, err := newJournal(cfg)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	s := &Server{
		config:  cfg,
		rt:      rt,
		session: sess,
		journal: jb,
		log:     logger,
	}
	s.service = NewService(rt, sess, ServiceOptions{
		Journal:      jb,
		Logger:       logger,
		JournalLimit: cfg.Journal.Limit,
		Verbose:      cfg.Reload.Verbose,
	})
	s.handler = protocol.NewHandler(s.service, logger)
	s.handler.SetVerbosity(cfg.Verbosity())
	s.wsEndpoint = NewWebSocketEndpoint(s.handler, s.service.Events(), logger)
	s.httpEndpoint = NewHTTPEndpoint(s.handler, s.wsEndpoint, s.service)

	return s, nil
}

// newJournal builds the journal backend named by the configuration.
func newJournal(cfg *config.Config) (journal.Backend, error) {
	switch cfg.Journal.Backend {
	case "sqlite":
		return journal.NewSQLiteJournal(cfg.Journal.Path)
	case "postgres":
		return journal.NewPostgresJournal(cfg.Journal.URL)
	case "off":
		return journal.Discard, nil
	default:
		return journal.NewMemoryJournal(0), nil
	}
}

// Service returns the operation surface, for CLI and test use.
func (s *Server) Service() *Service {
	return s.service
}

// Handler returns the HTTP handler, for test use.
func (s *Server) Handler() http.Handler {
	return s.httpEndpoint
}

// ImportEntry loads the configured entry module, if any.
func (s *Server) ImportEntry() error {
	entry := s.config.Lua.Entry
	if entry == "" {
		return nil
	}
	s.log.Info("importing entry module", "module", entry)
	_, err := s.service.Import(entry)
	return err
}

// Start starts the HTTP server and returns its base URL. A configured port
// of 0 picks a free one.
func (s *Server) Start() (string, error) {
	addr := s.config.Server.Addr()
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return "", fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	if s.config.Server.Port == 0 {
		_, portStr, _ := net.SplitHostPort(listener.Addr().String())
		s.config.Server.Port, _ = strconv.Atoi(portStr)
	}

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.httpEndpoint,
	}

	go func() {
		s.log.Info("listening", "addr", listener.Addr().String())
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.log.Error("http server failed", "error", err)
		}
	}()

	host := s.config.Server.Host
	if host == "" || host == "0.0.0.0" {
		host = "127.0.0.1"
	}
	return fmt.Sprintf("http://%s:%d", host, s.config.Server.Port), nil
}

// Shutdown stops the server. In-flight requests get until ctx expires;
// WebSocket connections are closed outright.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}
	s.wsEndpoint.CloseAll()
	s.service.Close()
	s.journal.Close()
	s.rt.Close()
	return err
}
