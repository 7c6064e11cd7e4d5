// Package server implements the teacher dashboard HTTP API.
//
// Routes are served by a chi router. Teachers log in with their classroom
// number; the server keeps the classroom cookie in a [session.Store] and
// hands the browser a signed JWT naming the session. Replays are available
// as timeline JSON, rendered frames and a websocket channel that pushes a
// frame after every playback change.
package server

import (
	"context"
	stderrors "errors"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/matzehuels/treereplay/pkg/buildinfo"
	"github.com/matzehuels/treereplay/pkg/integrations/classroom"
	"github.com/matzehuels/treereplay/pkg/layout"
	"github.com/matzehuels/treereplay/pkg/pipeline"
	"github.com/matzehuels/treereplay/pkg/replay"
	"github.com/matzehuels/treereplay/pkg/session"
	"github.com/matzehuels/treereplay/pkg/timeline"
)

// Config wires the server's dependencies.
type Config struct {
	Classroom *classroom.Client // anonymous client; sessions derive from it
	Chat      replay.ChatSource // optional
	Sessions  session.Store     // defaults to a memory store
	Runner    *pipeline.Runner  // defaults to an uncached runner
	Logger    *log.Logger

	JWTSecret  []byte // random per process when empty
	SessionTTL time.Duration

	Speed         timeline.Speed
	AutoplayDelay time.Duration
	MaxPasses     int

	// AllowedOrigins limits websocket upgrades. Empty allows same-origin
	// requests only.
	AllowedOrigins []string
}

// Server is the dashboard API.
type Server struct {
	cfg      Config
	tokens   *tokenService
	router   chi.Router
	upgrader websocket.Upgrader
	logger   *log.Logger
}

// New creates a server. Classroom is required.
func New(cfg Config) (*Server, error) {
	if cfg.Classroom == nil {
		return nil, stderrors.New("server: classroom client is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	if cfg.Sessions == nil {
		cfg.Sessions = session.NewMemoryStore()
	}
	if cfg.Runner == nil {
		cfg.Runner = pipeline.NewRunner(nil, nil, cfg.Logger)
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = session.DefaultTTL
	}
	if cfg.Speed == "" {
		cfg.Speed = timeline.DefaultSpeed
	}
	if cfg.AutoplayDelay <= 0 {
		cfg.AutoplayDelay = timeline.DefaultAutoplayDelay
	}
	if cfg.MaxPasses <= 0 {
		cfg.MaxPasses = layout.DefaultMaxPasses
	}

	tokens, err := newTokenService(cfg.JWTSecret, cfg.SessionTTL)
	if err != nil {
		return nil, err
	}
	if len(cfg.JWTSecret) == 0 {
		cfg.Logger.Warn("no jwt secret configured; sessions will not survive a restart")
	}

	s := &Server{
		cfg:    cfg,
		tokens: tokens,
		logger: cfg.Logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
	}
	if len(cfg.AllowedOrigins) > 0 {
		s.upgrader.CheckOrigin = s.checkOrigin
	}
	s.router = s.routes()
	return s, nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(s.requestID)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", s.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(s.requireSession)

			r.Post("/auth/logout", s.handleLogout)
			r.Get("/me", s.handleMe)

			r.Get("/students", s.handleStudents)
			r.Get("/assignments", s.handleAssignments)
			r.Post("/assignments", s.handleCreateAssignment)
			r.Get("/assignments/{id}", s.handleAssignment)

			r.Route("/assignments/{id}/students/{sid}/replay", func(r chi.Router) {
				r.Get("/", s.handleReplay)
				r.Get("/frames/{cursor}", s.handleFrame)
				r.Get("/nodes/{nodeID}/chat", s.handleChat)
			})
		})
	})

	r.With(s.requireSession).Get("/ws/replay", s.handleReplaySocket)
	return r
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("dashboard listening", "addr", addr, "build", buildinfo.Get().String())
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if stderrors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, o := range s.cfg.AllowedOrigins {
		if o == "*" || o == origin {
			return true
		}
	}
	return false
}
