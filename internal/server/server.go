// Package server exposes the ingestion pipeline over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"signal-recorder/internal/config"
	apperrors "signal-recorder/internal/errors"
	"signal-recorder/internal/ingest"
	"signal-recorder/internal/metrics"
	"signal-recorder/internal/store"
)

// Server is the webhook receiver.
type Server struct {
	cfg      config.ServerConfig
	echo     *echo.Echo
	ingestor *ingest.Ingestor
	store    store.SignalStore
	metrics  *metrics.Recorder
	logger   zerolog.Logger
	zone     string
}

// New wires routes and middleware. m may be nil.
func New(cfg config.ServerConfig, ing *ingest.Ingestor, zone string, m *metrics.Recorder, logger zerolog.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		cfg:      cfg,
		echo:     e,
		ingestor: ing,
		store:    ing.Store(),
		metrics:  m,
		logger:   logger.With().Str("component", "server").Logger(),
		zone:     zone,
	}

	e.HTTPErrorHandler = s.handleError
	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	if cfg.BodyLimit != "" {
		e.Use(middleware.BodyLimit(cfg.BodyLimit))
	}
	e.Use(s.requestLogger())

	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.echo.GET("/", s.handleHome)
	s.echo.POST("/webhook", s.handleWebhook)
	s.echo.GET("/signals", s.handleList)
	s.echo.GET("/download", s.handleDownload)
	s.echo.GET("/healthz", s.handleHealth)
	if s.metrics != nil {
		s.echo.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))
	}
}

// handleError replaces echo's default handler so every failure carries the
// JSON envelope. Body-limit rejections are webhook parse failures and, like
// recovered panics, answer 500. Routing errors keep their status.
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var he *echo.HTTPError
	switch {
	case !errors.As(err, &he):
		s.logger.Error().Err(err).Str("path", c.Request().URL.Path).Msg("Unhandled request error")
		err = apperrors.New(apperrors.KindUnknown, "http", "internal server error", nil)
	case he.Code == http.StatusRequestEntityTooLarge:
		err = s.bodyTooLarge(err)
	default:
		msg := http.StatusText(he.Code)
		if m, ok := he.Message.(string); ok && m != "" {
			msg = m
		}
		if c.Request().Method == http.MethodHead {
			err = c.NoContent(he.Code)
		} else {
			err = c.JSON(he.Code, Response{Status: "error", Message: msg})
		}
		if err != nil {
			s.logger.Warn().Err(err).Msg("Failed to write error response")
		}
		return
	}

	if werr := s.errorResponse(c, err); werr != nil {
		s.logger.Warn().Err(werr).Msg("Failed to write error response")
	}
}

func (s *Server) bodyTooLarge(err error) error {
	return apperrors.NewParseError("webhook", "request body exceeds "+s.cfg.BodyLimit, err)
}

// ServeHTTP lets the server be mounted or driven by httptest.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.echo,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.cfg.Addr).Str("timezone", s.zone).Msg("Webhook receiver listening")
		if err := s.echo.StartServer(srv); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	s.logger.Info().Msg("Shutting down webhook receiver")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
