// Package server exposes the trading agent over HTTP: a WebSocket that
// streams loop progress, a synchronous chat endpoint and the avatar list.
package server

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"tradeagent/internal/agent"
	"tradeagent/internal/conversation"
	"tradeagent/internal/logger"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/cors"
	"golang.org/x/sync/errgroup"
)

// StartInstruction is the fixed task sent by the "start" command
const StartInstruction = "Start trading. Don't stop until you execute a swap. " +
	"Always remember to use as max amount the amount of the coin in your wallet you want to swap."

type Config struct {
	Addr            string
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
	AvatarsDir      string
	DefaultPersona  string
}

func (c Config) withDefaults() Config {
	if c.Addr == "" {
		c.Addr = ":8000"
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 15 * time.Second
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"*"}
	}
	if c.AvatarsDir == "" {
		c.AvatarsDir = "./avatars"
	}
	if c.DefaultPersona == "" {
		c.DefaultPersona = agent.DefaultPersona
	}
	return c
}

// Server owns the HTTP listener and every live WebSocket session
type Server struct {
	cfg      Config
	factory  agent.Factory
	archive  conversation.Archive
	log      *logger.Logger
	upgrader websocket.Upgrader

	mu       sync.Mutex
	sessions map[*session]struct{}
}

func New(cfg Config, factory agent.Factory, archive conversation.Archive, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}
	if archive == nil {
		archive = conversation.NopArchive{}
	}
	s := &Server{
		cfg:      cfg.withDefaults(),
		factory:  factory,
		archive:  archive,
		log:      log,
		sessions: make(map[*session]struct{}),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// Handler returns the routes wrapped in the CORS policy
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	mux.HandleFunc("POST /chat", s.handleChat)
	mux.HandleFunc("GET /avatars", s.handleAvatars)
	mux.HandleFunc("GET /healthz", s.handleHealth)

	c := cors.New(cors.Options{
		AllowedOrigins:   s.cfg.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})
	return c.Handler(mux)
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.log.Info("listening on %s", s.cfg.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "listen")
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()

		s.closeSessions()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "shutdown")
		}
		s.log.Info("server stopped")
		return nil
	})
	return g.Wait()
}

// SessionCount returns the number of connected WebSocket clients
func (s *Server) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Server) track(sess *session) {
	s.mu.Lock()
	s.sessions[sess] = struct{}{}
	s.mu.Unlock()
}

func (s *Server) untrack(sess *session) {
	s.mu.Lock()
	delete(s.sessions, sess)
	s.mu.Unlock()
}

// closeSessions closes hijacked connections, which http.Server.Shutdown does not track
func (s *Server) closeSessions() {
	s.mu.Lock()
	live := make([]*session, 0, len(s.sessions))
	for sess := range s.sessions {
		live = append(live, sess)
	}
	s.mu.Unlock()

	for _, sess := range live {
		sess.close()
	}
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range s.cfg.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}
