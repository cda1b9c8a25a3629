package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/cyberxapi/gdrive-storage-api/internal/apperr"
	"github.com/cyberxapi/gdrive-storage-api/internal/metrics"
	"github.com/cyberxapi/gdrive-storage-api/internal/relay"
	"github.com/cyberxapi/gdrive-storage-api/internal/tracing"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// Config controls the HTTP surface
type Config struct {
	Version      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// Metrics, when set, instruments every request and serves /metrics
	Metrics *metrics.Metrics
	// Tracing wraps every request in a server span
	Tracing bool
}

// Server exposes the relay over HTTP
type Server struct {
	echo   *echo.Echo
	relay  *relay.Relay
	config Config
}

// New builds the router and middleware chain
func New(r *relay.Relay, config Config) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:   e,
		relay:  r,
		config: config,
	}

	e.HTTPErrorHandler = s.errorHandler

	if config.Tracing {
		e.Use(echo.WrapMiddleware(tracing.Middleware))
	}
	if config.Metrics != nil {
		e.Use(echo.WrapMiddleware(config.Metrics.Middleware))
	}
	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
		RequestIDHandler: func(c echo.Context, id string) {
			req := c.Request()
			c.SetRequest(req.WithContext(relay.WithRequestID(req.Context(), id)))
		},
	}))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURIPath:   true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			log.Printf("%s %s %d %s request_id=%s", v.Method, v.URIPath, v.Status, v.Latency.Round(time.Millisecond), v.RequestID)
			return nil
		},
	}))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{
			http.MethodGet, http.MethodHead, http.MethodPut, http.MethodPatch,
			http.MethodPost, http.MethodDelete, http.MethodOptions,
		},
	}))
	// Render handler errors before the wrapped net/http middleware observes the status
	e.Use(renderErrors)

	s.routes()
	return s
}

func (s *Server) routes() {
	s.echo.GET("/", s.root)
	s.echo.GET("/health", s.health)
	if s.config.Metrics != nil {
		s.echo.GET("/metrics", echo.WrapHandler(s.config.Metrics.Handler()))
	}

	s.echo.GET("/files", s.listFiles)
	s.echo.GET("/files/:file_id", s.getFileInfo)
	s.echo.POST("/upload", s.uploadFile)
	s.echo.GET("/download/:file_id", s.downloadFile)
	s.echo.DELETE("/files/:file_id", s.deleteFile)
	s.echo.PUT("/files/:file_id", s.updateFile)
	s.echo.POST("/folders", s.createFolder)
	s.echo.GET("/search", s.searchFiles)
	s.echo.GET("/history", s.history)
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start listens on address until Shutdown is called
func (s *Server) Start(address string) error {
	srv := &http.Server{
		Addr:         address,
		Handler:      s.echo,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	log.Printf("HTTP server listening on %s", address)
	if err := s.echo.StartServer(srv); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func renderErrors(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := next(c); err != nil {
			c.Error(err)
		}
		return nil
	}
}

type errorResponse struct {
	Detail string `json:"detail"`
}

// errorHandler renders every failure as {"detail": message}
func (s *Server) errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	detail := err.Error()

	var appErr *apperr.Error
	var httpErr *echo.HTTPError
	switch {
	case errors.As(err, &appErr):
		status = appErr.StatusCode()
		detail = appErr.Message
	case errors.As(err, &httpErr):
		status = httpErr.Code
		detail = fmt.Sprint(httpErr.Message)
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(status)
	} else {
		err = c.JSON(status, errorResponse{Detail: detail})
	}
	if err != nil {
		log.Printf("Failed to write error response: %v", err)
	}
}
