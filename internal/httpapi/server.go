// Package httpapi exposes the bill analysis pipeline over HTTP.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/gyeh/medbill/internal/collab"
	"github.com/gyeh/medbill/internal/config"
	"github.com/gyeh/medbill/internal/logging"
	"github.com/gyeh/medbill/internal/pipeline"
)

// New builds the echo server with middleware and routes.
func New(cfg *config.Config, p *pipeline.Pipeline, caps collab.Capabilities, log zerolog.Logger) *echo.Echo {
	log = logging.Component(log, "http")

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = NewValidator()
	e.HTTPErrorHandler = errorHandler(log)

	e.Use(recoverer(log))
	e.Use(middleware.RequestID())
	e.Use(requestLogger(log))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType, echo.HeaderXRequestID},
	}))
	e.Use(requestTimeout(cfg.RequestTimeout))

	h := &Handler{
		pipeline:  p,
		caps:      caps,
		imagesDir: cfg.BillImagesDir,
		maxUpload: cfg.MaxUploadBytes,
		log:       log,
	}
	limited := rateLimiter(cfg.ChatRateLimitPerMinute, cfg.ChatRateLimitBurst)

	e.GET("/health", h.Health)
	e.POST("/upload-bill", h.UploadBill, limited)
	e.POST("/confirm-bill", h.ConfirmBill)
	e.POST("/chat", h.Chat, limited)
	e.POST("/chat/start", h.StartChat, limited)
	e.GET("/results/:session_id", h.Results)
	e.POST("/dispute/preview", h.DisputePreview)
	e.POST("/dispute/send", h.DisputeSend)
	e.GET("/test-image", h.TestImage)
	return e
}

// NewHTTPServer wraps handler in a net/http server listening on addr.
func NewHTTPServer(addr string, handler http.Handler, requestTimeout time.Duration) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      requestTimeout + 10*time.Second,
		IdleTimeout:       2 * time.Minute,
	}
}

func recoverer(log zerolog.Logger) echo.MiddlewareFunc {
	return middleware.RecoverWithConfig(middleware.RecoverConfig{
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			log.Error().
				Str("request_id", c.Response().Header().Get(echo.HeaderXRequestID)).
				Err(err).
				Str("stack", string(stack)).
				Msg("panic recovered")
			return err
		},
	})
}

func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			evt := log.Info()
			if v.Status >= http.StatusInternalServerError {
				evt = log.Error()
			}
			if v.Error != nil {
				evt = evt.Err(v.Error)
			}
			evt.
				Str("request_id", v.RequestID).
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Str("remote_ip", v.RemoteIP).
				Dur("latency", v.Latency).
				Msg("request")
			return nil
		},
	})
}

// requestTimeout bounds each request's context. Handlers observe the
// deadline through the context they pass to the pipeline.
func requestTimeout(timeout time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if timeout <= 0 {
				return next(c)
			}
			ctx, cancel := context.WithTimeout(c.Request().Context(), timeout)
			defer cancel()
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

func rateLimiter(perMinute, burst int) echo.MiddlewareFunc {
	store := middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(float64(perMinute) / 60.0),
		Burst:     burst,
		ExpiresIn: time.Minute,
	})
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: store,
		DenyHandler: func(c echo.Context, _ string, _ error) error {
			return c.JSON(http.StatusTooManyRequests, errorBody{Error: "Too many requests. Please wait a moment and try again."})
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return c.JSON(http.StatusForbidden, errorBody{Error: "Could not identify the client."})
		},
	})
}
