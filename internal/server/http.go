package server

import (
	"context"
	"fmt"
	"net/http"

	"admission-control/internal/admission"
	"admission-control/internal/api"
	"admission-control/internal/config"
	"admission-control/internal/logging"
)

// HTTPServer represents the HTTP REST API server
type HTTPServer struct {
	config      *config.Config
	engine      *admission.Engine
	logger      *logging.Logger
	server      *http.Server
	restHandler *api.RESTHandler
}

// NewHTTPServer creates a new HTTP server
func NewHTTPServer(cfg *config.Config, engine *admission.Engine, logger *logging.Logger) *HTTPServer {
	restHandler := api.NewRESTHandler(engine, logger)

	return &HTTPServer{
		config:      cfg,
		engine:      engine,
		logger:      logger,
		restHandler: restHandler,
	}
}

// Start starts the HTTP server
func (s *HTTPServer) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)

	router := s.restHandler.SetupRoutes()

	s.server = &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  s.config.Server.ReadTimeout,
		WriteTimeout: s.config.Server.WriteTimeout,
		IdleTimeout:  s.config.Server.IdleTimeout,
	}

	s.logger.Info("Starting HTTP server",
		"address", addr,
		"service", "http",
	)

	return s.server.ListenAndServe()
}

// Stop stops the HTTP server gracefully
func (s *HTTPServer) Stop(ctx context.Context) error {
	if s.server != nil {
		s.logger.Info("Stopping HTTP server")
		return s.server.Shutdown(ctx)
	}
	return nil
}
