package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/quillpost/apiserver/config"
	"github.com/quillpost/apiserver/internal/db"
	"github.com/quillpost/apiserver/internal/events"
	"github.com/quillpost/apiserver/internal/handlers"
	"github.com/quillpost/apiserver/internal/logging"
	"github.com/quillpost/apiserver/internal/mq"
	"github.com/quillpost/apiserver/internal/services"
	"github.com/quillpost/apiserver/internal/store"
)

const (
	requestTimeout  = 60 * time.Second
	shutdownTimeout = 10 * time.Second
)

// Dependencies are the services the HTTP layer is built from.
type Dependencies struct {
	Users          *services.UserService
	Sessions       *services.SessionManager
	Posts          *services.PostService
	Logger         logging.Logger
	Cookie         handlers.CookieSettings
	AllowedOrigins []string
}

// Server wraps the HTTP server and router.
type Server struct {
	httpServer      *http.Server
	router          *chi.Mux
	db              *sql.DB
	mq              *mq.MQ
	sessions        *services.SessionManager
	cleanupInterval time.Duration
	logger          logging.Logger
}

// NewRouter builds the HTTP routes with the API mounted under apiPrefix.
func NewRouter(deps Dependencies, apiPrefix string) *chi.Mux {
	if apiPrefix == "" {
		apiPrefix = "/"
	}

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		handlers.AccessLog(deps.Logger),
		middleware.Timeout(requestTimeout),
		cors.Handler(cors.Options{
			AllowedOrigins:   deps.AllowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}),
		handlers.LoadPrincipal(deps.Sessions, deps.Cookie.Name, deps.Logger),
	)

	authHandler := handlers.NewAuthHandler(deps.Users, deps.Sessions, deps.Cookie, deps.Logger)
	postHandler := handlers.NewPostHandler(deps.Posts, deps.Logger)

	router.Route(apiPrefix, func(r chi.Router) {
		r.Get("/health", handlers.Healthz)
		r.Route("/auth", func(r chi.Router) {
			handlers.AuthRouter(r, authHandler)
		})
		r.Route("/posts", func(r chi.Router) {
			handlers.PostRouter(r, postHandler, handlers.RequireAuth)
		})
	})

	return router
}

// New constructs a Server with its storage, broker and routes wired from cfg.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	logger := logging.New(os.Stdout, cfg.Log)

	var (
		dbConn      *sql.DB
		userRepo    services.UserRepository
		postRepo    services.PostRepository
		sessionRepo services.SessionRepository
	)
	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		logger.Warn(ctx, "using in-memory store; data is lost on restart")
		userRepo = store.NewMemoryUserRepository()
		postRepo = store.NewMemoryPostRepository()
		sessionRepo = store.NewMemorySessionRepository()
	case config.StoreDriverPostgres, "":
		conn, err := db.Open(ctx, cfg)
		if err != nil {
			return nil, err
		}
		dbConn = conn
		userRepo = store.NewUserRepository(conn)
		postRepo = store.NewPostRepository(conn)
		sessionRepo = store.NewSessionRepository(conn)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}

	broker, err := mq.Open(ctx, cfg)
	if err != nil {
		if dbConn != nil {
			_ = dbConn.Close()
		}
		return nil, err
	}

	var publisher services.PostEvents
	if broker != nil {
		publisher = events.NewPublisher(broker, cfg.Events.Channel)
	}

	sessions := services.NewSessionManager(sessionRepo, cfg.Session.TTL, []byte(cfg.Session.Secret), logger)
	deps := Dependencies{
		Users:    services.NewUserService(userRepo, cfg.BcryptCost),
		Sessions: sessions,
		Posts:    services.NewPostService(postRepo, publisher, logger),
		Logger:   logger,
		Cookie: handlers.CookieSettings{
			Name:   cfg.Session.CookieName,
			Secure: cfg.Session.CookieSecure,
		},
		AllowedOrigins: cfg.AllowedOrigins,
	}
	router := NewRouter(deps, cfg.APIPrefix)

	port := cfg.ServerPort
	if port == 0 {
		port = 8000
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer:      httpServer,
		router:          router,
		db:              dbConn,
		mq:              broker,
		sessions:        sessions,
		cleanupInterval: cfg.Session.CleanupInterval,
		logger:          logger,
	}, nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Run serves HTTP and sweeps expired sessions until ctx is cancelled, then
// shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	cleanupCtx, stopCleanup := context.WithCancel(ctx)
	defer stopCleanup()
	go s.sessions.RunCleanup(cleanupCtx, s.cleanupInterval)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, "server listening", "addr", s.httpServer.Addr)
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.closeResources()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.logger.Info(context.Background(), "shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	}
}

// Shutdown stops accepting requests, waits for in-flight ones and releases
// the database and broker.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	s.closeResources()
	return err
}

func (s *Server) closeResources() {
	if s.mq != nil {
		_ = s.mq.Close()
		s.mq = nil
	}
	if s.db != nil {
		_ = s.db.Close()
		s.db = nil
	}
}
