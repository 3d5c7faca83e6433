package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"admission-control/internal/admission"
	"admission-control/internal/config"
	"admission-control/internal/logging"
)

type Server struct {
	config     *config.Config
	logger     *logging.Logger
	engine     *admission.Engine
	httpServer *HTTPServer
	startTime  time.Time
}

func NewServer(cfg *config.Config) (*Server, error) {
	logger := logging.NewLogger(&cfg.Logging)

	logger.Info("Initializing server",
		"version", "1.0.0",
	)

	engine, err := admission.New(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create admission engine: %w", err)
	}

	httpServer := NewHTTPServer(cfg, engine, logger)

	return &Server{
		config:     cfg,
		logger:     logger,
		engine:     engine,
		httpServer: httpServer,
		startTime:  time.Now(),
	}, nil
}

func (s *Server) Start() error {
	s.logger.Info("Starting admission control server")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errChan := make(chan error, 1)

	go func() {
		if err := s.httpServer.Start(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("HTTP server failed: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	s.logger.Info("Server started successfully",
		"http_port", s.config.Server.Port,
	)

	select {
	case err := <-errChan:
		s.logger.Error("Server encountered an error", "error", err.Error())
		return err
	case sig := <-sigChan:
		s.logger.Info("Received shutdown signal", "signal", sig)
		return s.Shutdown(ctx)
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	done := make(chan error, 1)

	go func() {
		if err := s.httpServer.Stop(shutdownCtx); err != nil {
			s.logger.Error("Failed to stop HTTP server", "error", err.Error())
		}

		if err := s.engine.Close(); err != nil {
			s.logger.Error("Failed to close admission engine", "error", err.Error())
			done <- err
			return
		}

		done <- nil
	}()

	select {
	case err := <-done:
		if err != nil {
			s.logger.Error("Error during shutdown", "error", err.Error())
			return err
		}
		s.logger.Info("Server shutdown completed")
		return nil
	case <-shutdownCtx.Done():
		s.logger.Error("Shutdown timeout exceeded")
		return fmt.Errorf("shutdown timeout exceeded")
	}
}

func (s *Server) GetUptime() time.Duration {
	return time.Since(s.startTime)
}
