package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"github.com/KrzysztofStaron/graph-llm-backend/internal/config"
	"github.com/KrzysztofStaron/graph-llm-backend/internal/docparse"
	"github.com/KrzysztofStaron/graph-llm-backend/internal/relay"
	"github.com/KrzysztofStaron/graph-llm-backend/internal/speech"
	"github.com/KrzysztofStaron/graph-llm-backend/internal/storage"
)

const (
	maxBodyBytes        = 20 << 20 // inline data-URI images make chat bodies large
	shutdownGracePeriod = 10 * time.Second
	readHeaderTimeout   = 30 * time.Second
	idleTimeout         = 120 * time.Second
)

// Server hosts the backend-for-frontend HTTP surface.
type Server struct {
	cfg     config.Config
	relay   *relay.Relay
	speech  speech.Synthesizer
	parser  docparse.Parser
	store   storage.Store
	app     *echo.Echo
	address string
}

// New constructs an HTTP server wired with routing and middleware.
func New(cfg config.Config, rl *relay.Relay, synth speech.Synthesizer, parser docparse.Parser, store storage.Store) (*Server, error) {
	if rl == nil {
		return nil, errors.New("relay must not be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler

	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogLatency: true,
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			slog.Info("request",
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency_ms", v.Latency.Milliseconds(),
				"error", v.Error,
			)
			return nil
		},
	}))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: allowedOrigins(cfg.Server.AllowedOrigins),
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType, echo.HeaderAuthorization, "X-Client-ID"},
	}))
	e.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(rate.Limit(cfg.Server.RateLimit))))
	e.Use(middleware.BodyLimit("20M"))

	srv := &Server{
		cfg:     cfg,
		relay:   rl,
		speech:  synth,
		parser:  parser,
		store:   store,
		app:     e,
		address: fmt.Sprintf(":%d", cfg.Server.Port),
	}

	srv.registerRoutes()

	return srv, nil
}

func (s *Server) registerRoutes() {
	s.app.GET("/health", s.handleHealth)
	s.app.POST("/api/chat", s.handleChat)
	s.app.POST("/api/tts", s.handleSynthesize)
	s.app.POST("/api/transcribe", s.handleTranscribe)
	s.app.POST("/api/parse-document", s.handleParseDocument)
	s.app.POST("/api/images", s.handleUploadImage)
	s.app.DELETE("/api/images/:key", s.handleDeleteImage)

	if disk, ok := s.store.(*storage.DiskStore); ok {
		s.app.Static("/files", disk.Dir())
	}
}

// Run starts the HTTP server and blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	slog.Info("starting server", "addr", s.address)

	httpServer := &http.Server{
		Addr:              s.address,
		Handler:           s.app,
		ReadHeaderTimeout: readHeaderTimeout,
		IdleTimeout:       idleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.app.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
		defer cancel()
		if err := s.app.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		slog.Info("server shutdown complete")
		return nil
	case err := <-errCh:
		return err
	}
}

func allowedOrigins(configured []string) []string {
	if len(configured) == 0 {
		return []string{"*"}
	}
	return configured
}

func decodeRequestBody[T any](c echo.Context, target *T) error {
	req := c.Request()
	defer req.Body.Close()

	req.Body = http.MaxBytesReader(c.Response(), req.Body, maxBodyBytes)

	decoder := json.NewDecoder(req.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, io.EOF) {
			return requestError{
				Status:  http.StatusBadRequest,
				Message: "request body is required",
			}
		}
		return requestError{
			Status:  http.StatusBadRequest,
			Message: fmt.Sprintf("invalid JSON payload: %v", err),
		}
	}

	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return requestError{
			Status:  http.StatusBadRequest,
			Message: "request body must contain a single JSON object",
		}
	}
	return nil
}

type requestError struct {
	Status  int
	Message string
}

func (e requestError) Error() string {
	return e.Message
}

type errorBody struct {
	Error string `json:"error"`
}

func errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var reqErr requestError
	if errors.As(err, &reqErr) {
		_ = c.JSON(reqErr.Status, errorBody{Error: reqErr.Message})
		return
	}

	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		_ = c.JSON(httpErr.Code, errorBody{Error: fmt.Sprintf("%v", httpErr.Message)})
		return
	}

	_ = c.JSON(http.StatusInternalServerError, errorBody{Error: "internal server error"})
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, docparse.ErrUnsupportedFormat):
		return requestError{Status: http.StatusUnsupportedMediaType, Message: err.Error()}
	case errors.Is(err, storage.ErrUnsupportedMediaType):
		return requestError{Status: http.StatusUnsupportedMediaType, Message: err.Error()}
	case errors.Is(err, storage.ErrNotFound):
		return requestError{Status: http.StatusNotFound, Message: err.Error()}
	case errors.Is(err, speech.ErrMissingAPIKey):
		return requestError{Status: http.StatusBadGateway, Message: "speech provider is not configured"}
	default:
		return requestError{Status: http.StatusBadGateway, Message: "upstream provider error"}
	}
}
