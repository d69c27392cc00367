package devserver

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"showtimedb-cli/logger"
)

// Server serves the movie service REST API under /api.
type Server struct {
	echo *echo.Echo
	log  *slog.Logger
}

type Options struct {
	Repo   Repository
	Auth   *Authenticator
	Logger *slog.Logger
}

func New(opts Options) *Server {
	log := opts.Logger
	if log == nil {
		log = logger.Discard()
	}
	h := &handler{repo: opts.Repo, auth: opts.Auth, log: log}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler(log)

	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: logger.NewRequestID,
	}))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			level := slog.LevelInfo
			if v.Status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			attrs := []slog.Attr{
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
				slog.String("request_id", v.RequestID),
			}
			if v.Error != nil {
				attrs = append(attrs, slog.String("error", v.Error.Error()))
			}
			log.LogAttrs(c.Request().Context(), level, "request", attrs...)
			return nil
		},
	}))

	api := e.Group("/api")
	api.GET("/health", h.health)
	api.POST("/auth/register", h.register)
	api.POST("/auth/login", h.login)
	api.GET("/movies", h.listMovies)
	api.GET("/shows", h.listShows)
	api.GET("/seats/:showId", h.listSeats)
	api.POST("/bookings", h.createBooking, opts.Auth.RequireAuth())

	return &Server{echo: e, log: log}
}

func (s *Server) Handler() http.Handler { return s.echo }

// Start blocks until the server stops. A clean shutdown returns nil.
func (s *Server) Start(addr string) error {
	s.log.Info("devserver listening", "addr", addr)
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// errorHandler renders every error as {"error": message}.
func errorHandler(log *slog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		status := http.StatusInternalServerError
		message := "internal server error"
		var he *echo.HTTPError
		if errors.As(err, &he) {
			status = he.Code
			if m, ok := he.Message.(string); ok {
				message = m
			} else {
				message = http.StatusText(status)
			}
		} else {
			log.Error("unhandled error", "error", err, "uri", c.Request().RequestURI)
		}
		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = c.JSON(status, echo.Map{"error": message})
		}
		if err != nil {
			log.Error("write error response", "error", err)
		}
	}
}
