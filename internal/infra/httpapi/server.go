package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"elapsed_tracker/internal/app"
	"elapsed_tracker/internal/domain/photo"
)

// PhotoStore is the storage-side photo and start date surface.
type PhotoStore interface {
	CreatePhoto(ctx context.Context, image string) (*photo.Photo, error)
	ListPhotos(ctx context.Context) ([]*photo.Photo, error)
	GetPhoto(ctx context.Context, id string) (*photo.Photo, error)
	DeletePhoto(ctx context.Context, id string) error
	GetMainPhoto(ctx context.Context) (string, error)
	SetMainPhoto(ctx context.Context, image string) error
	StartDate(ctx context.Context) (string, error)
	SetStartDate(ctx context.Context, startDate string) error
}

// Reader gives the latest elapsed-time reading.
type Reader interface {
	Read() app.Reading
}

type Server struct {
	echo    *echo.Echo
	photos  PhotoStore
	tracker Reader
	logger  *logrus.Entry
}

// Option customises a Server.
type Option func(*options)

type options struct {
	registerer prometheus.Registerer
	gatherer   prometheus.Gatherer
	bodyLimit  string
}

// WithRegistry sets where HTTP metrics are registered and served from.
func WithRegistry(reg prometheus.Registerer, gatherer prometheus.Gatherer) Option {
	return func(o *options) {
		o.registerer = reg
		o.gatherer = gatherer
	}
}

// WithBodyLimit caps request bodies, e.g. "20M".
func WithBodyLimit(limit string) Option {
	return func(o *options) {
		o.bodyLimit = limit
	}
}

func NewServer(photos PhotoStore, tracker Reader, logger *logrus.Entry, opts ...Option) *Server {
	o := &options{
		registerer: prometheus.DefaultRegisterer,
		gatherer:   prometheus.DefaultGatherer,
		bodyLimit:  "20M",
	}
	for _, opt := range opts {
		opt(o)
	}

	s := &Server{photos: photos, tracker: tracker, logger: logger}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.errorHandler

	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger.WithFields(logrus.Fields{
				"method":  v.Method,
				"uri":     v.URI,
				"status":  v.Status,
				"latency": v.Latency.String(),
			}).Debug("HTTP request")
			return nil
		},
	}))
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Subsystem:  "tracker",
		Registerer: o.registerer,
	}))
	e.Use(middleware.BodyLimit(o.bodyLimit))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
	}))

	e.GET("/_health", s.handleHealthCheck)
	e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{Gatherer: o.gatherer}))

	api := e.Group("/api")
	api.GET("/", s.handleRoot)
	api.GET("/photos", s.handleListPhotos)
	api.POST("/photos", s.handleCreatePhoto)
	api.GET("/photos/:id", s.handleGetPhoto)
	api.DELETE("/photos/:id", s.handleDeletePhoto)
	api.GET("/main-photo", s.handleGetMainPhoto)
	api.POST("/main-photo", s.handleSetMainPhoto)
	api.GET("/start-date", s.handleGetStartDate)
	api.POST("/start-date", s.handleSetStartDate)
	api.GET("/elapsed", s.handleElapsed)

	s.echo = e
	return s
}

// Handler exposes the router, mostly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start serves until Shutdown is called.
func (s *Server) Start(listen string) error {
	s.logger.WithField("listen", listen).Info("Starting HTTP API")
	if err := s.echo.Start(listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

type HealthStatus struct {
	Status  string `json:"status"`
	Message string `json:"msg,omitempty"`
}

func (s *Server) handleHealthCheck(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()
	if _, err := s.photos.StartDate(ctx); err != nil {
		s.logger.WithError(err).Error("Healthcheck can't reach storage")
		return c.JSON(http.StatusInternalServerError, HealthStatus{Status: "error", Message: "can't reach storage"})
	}
	return c.JSON(http.StatusOK, HealthStatus{Status: "ok"})
}

func (s *Server) errorHandler(err error, c echo.Context) {
	code := http.StatusInternalServerError
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
	}
	if code >= http.StatusInternalServerError {
		s.logger.WithError(err).WithFields(logrus.Fields{"status": code, "path": c.Path()}).Warn("HTTP request error")
	}
	if c.Response().Committed {
		return
	}

	msg := http.StatusText(code)
	if he != nil && code < http.StatusInternalServerError {
		if m, ok := he.Message.(string); ok {
			msg = m
		}
	}
	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(code)
		return
	}
	_ = c.JSON(code, map[string]string{"detail": msg})
}
