// Package api exposes the user records client over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/CreativeUnicorns/userrecords"
)

// Client is the part of *userrecords.Client served over HTTP.
type Client interface {
	CreateUser(ctx context.Context, in userrecords.CreateUserInput) (*userrecords.User, error)
	FindUniqueUser(ctx context.Context, where userrecords.UserUniqueWhere) (*userrecords.User, error)
	FindManyUsers(ctx context.Context, q userrecords.UserQuery) ([]*userrecords.User, error)
	DeleteManyUsers(ctx context.Context, where *userrecords.UserWhere) (userrecords.BatchResult, error)
	FindManyPreferences(ctx context.Context, where *userrecords.PreferenceWhere) ([]*userrecords.UserPreference, error)
	DeleteManyPreferences(ctx context.Context, where *userrecords.PreferenceWhere) (userrecords.BatchResult, error)
}

// Server holds the dependencies for the HTTP server.
type Server struct {
	client     Client
	logger     userrecords.Logger
	router     *chi.Mux
	httpServer *http.Server
}

// Config holds configuration for the API server.
type Config struct {
	ListenAddress string
	Client        Client
	Logger        userrecords.Logger
}

// NewServer creates and configures a new API server instance.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Client == nil {
		return nil, errors.New("client is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = userrecords.NewDefaultLogger()
	}
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = ":8080"
	}

	s := &Server{
		client: cfg.Client,
		logger: cfg.Logger,
		router: chi.NewRouter(),
	}

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         cfg.ListenAddress,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// Handler returns the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start runs the HTTP server and blocks until it is shut down.
// A graceful shutdown returns nil.
func (s *Server) Start() error {
	s.logger.Info("API server starting", "address", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("could not start server: %w", err)
	}
	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("API server stopping")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.logger.Info("API server stopped gracefully")
	return nil
}
