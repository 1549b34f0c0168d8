package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/classvault/apiserver/config"
	"github.com/classvault/apiserver/internal/db"
	"github.com/classvault/apiserver/internal/handlers"
	"github.com/classvault/apiserver/internal/mailer"
	"github.com/classvault/apiserver/internal/mq"
	"github.com/classvault/apiserver/internal/services"
	"github.com/classvault/apiserver/internal/storage"
	"github.com/classvault/apiserver/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
)

// Server wraps the HTTP server and its shared resources.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	queue      *mq.MQ
}

// New constructs a Server with the full dependency graph wired up.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	if cfg.Auth.AdminPasskey == "" || cfg.Auth.AdminTokenSecret == "" {
		return nil, errors.New("ADMIN_PASSKEY and ADMIN_TOKEN_SECRET are required")
	}

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	objects, err := storage.NewFromConfig(ctx, cfg)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}
	if err := objects.EnsureBucket(ctx); err != nil {
		_ = dbConn.Close()
		return nil, err
	}

	queue, err := mq.NewFromConfig(ctx, cfg)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}

	userRepo := store.NewUserRepository(dbConn)
	sessionRepo := store.NewSessionRepository(dbConn)
	otpRepo := store.NewOTPRepository(dbConn)
	fileRepo := store.NewFileRepository(dbConn)

	dispatcher := mailer.NewQueueDispatcher(queue, cfg.MQ.MailChannel)
	issuer := services.NewOTPIssuer(otpRepo, dispatcher, cfg.Auth.OTPTTL, logger)
	authService := services.NewAuthService(
		userRepo, sessionRepo, otpRepo, issuer,
		cfg.Auth.SessionTTL, cfg.Auth.OTPMaxAttempts, logger,
	)
	fileService := services.NewFileService(fileRepo, objects, logger)
	adminService := services.NewAdminService(userRepo, sessionRepo, otpRepo, logger)

	authHandler := handlers.NewAuthHandler(authService, cfg.Auth.CookieSecure, cfg.Auth.SessionTTL)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(60*time.Second),
	)
	router.Use(cors.New(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	}).Handler)

	router.Get("/healthz", handlers.Healthz)
	router.Route("/auth", func(r chi.Router) {
		handlers.AuthRouter(r, authService, cfg.Auth.CookieSecure, cfg.Auth.SessionTTL)
	})
	router.Route("/files", func(r chi.Router) {
		handlers.FileRouter(r, fileService, authHandler.RequireUser)
	})
	router.Route("/admin", func(r chi.Router) {
		handlers.AdminRouter(r, adminService, cfg.Auth.AdminPasskey, cfg.Auth.AdminTokenSecret, cfg.Auth.AdminTokenTTL)
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
		queue:      queue,
	}, nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown attempts a graceful shutdown.
func (s *Server) Shutdown() error {
	if s.queue != nil {
		_ = s.queue.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	return s.httpServer.Close()
}
