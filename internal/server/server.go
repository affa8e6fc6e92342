package server

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/notehub/gatekeeper/internal/middleware"
	"github.com/notehub/gatekeeper/internal/ratelimit"
	"github.com/notehub/gatekeeper/internal/response"
)

const (
	defaultAuthRateLimitMax = 10
	authRateLimitWindow     = 1 * time.Minute
)

type Config struct {
	Host           string
	Port           int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	CorsOrigins    string
	BypassPrefixes []string
	AuthRateMax    int
}

type Server struct {
	app     *fiber.App
	config  Config
	limiter *ratelimit.Limiter
	auth    *middleware.AuthMiddleware
	logger  *slog.Logger
}

// New builds the fiber app with the gateway chain installed: recover, trace
// id, security headers, CORS, access log, the adaptive rate limiter and the
// authorization policy, in that order.
func New(cfg Config, rl *ratelimit.Limiter, auth *middleware.AuthMiddleware, log *slog.Logger) *Server {
	app := fiber.New(fiber.Config{
		AppName:               "Gatekeeper API",
		ReadTimeout:           cfg.ReadTimeout,
		WriteTimeout:          cfg.WriteTimeout,
		IdleTimeout:           cfg.IdleTimeout,
		DisableStartupMessage: true,
		ErrorHandler:          customErrorHandler(log),
	})

	s := &Server{
		app:     app,
		config:  cfg,
		limiter: rl,
		auth:    auth,
		logger:  log,
	}

	s.setupMiddlewares()

	return s
}

func (s *Server) setupMiddlewares() {
	s.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))

	s.app.Use(middleware.TraceID())

	s.app.Use(securityHeaders)

	corsOrigins := s.config.CorsOrigins
	if corsOrigins == "*" || corsOrigins == "" {
		s.logger.Warn("CORS_ORIGINS is wildcard or empty; in production, set explicit origins")
	}
	corsConfig := cors.Config{
		AllowOrigins:  corsOrigins,
		AllowMethods:  "GET,POST,PATCH,DELETE,OPTIONS",
		AllowHeaders:  "Content-Type,Authorization,X-Trace-ID,X-Device-Id,X-Refresh-Token",
		ExposeHeaders: "X-Trace-ID,Retry-After",
	}
	if corsOrigins != "*" && corsOrigins != "" {
		corsConfig.AllowCredentials = true
	}
	s.app.Use(cors.New(corsConfig))

	s.app.Use(logger.New(logger.Config{
		Format:     "${time} | ${status} | ${latency} | ${method} ${path} | trace=${locals:traceId}\n",
		TimeFormat: "2006-01-02 15:04:05",
		Next: func(c *fiber.Ctx) bool {
			return c.Path() == "/health"
		},
	}))

	if s.limiter != nil {
		s.app.Use(middleware.RateLimit(s.limiter, s.config.BypassPrefixes))
	}
	if s.auth != nil {
		s.app.Use(s.auth.Require())
	}
}

// AuthRateLimiter is a fixed-window gate for credential-guessing endpoints,
// applied on top of the adaptive limiter.
func (s *Server) AuthRateLimiter() fiber.Handler {
	limit := s.config.AuthRateMax
	if limit <= 0 {
		limit = defaultAuthRateLimitMax
	}
	return limiter.New(limiter.Config{
		Max:        limit,
		Expiration: authRateLimitWindow,
		KeyGenerator: func(c *fiber.Ctx) string {
			if ip := middleware.ClientIPFromContext(c); ip != "" {
				return ip
			}
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return response.RateLimited(c, "too many authentication attempts")
		},
	})
}

func securityHeaders(c *fiber.Ctx) error {
	c.Set("X-Content-Type-Options", "nosniff")
	c.Set("X-Frame-Options", "DENY")
	c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
	c.Set("Cache-Control", "no-store")
	if c.Protocol() == "https" {
		c.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
	}
	return c.Next()
}

func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("Server listening", "addr", addr)
	return s.app.Listen(addr)
}

func (s *Server) Shutdown() error {
	s.logger.Info("Shutting down server...")
	return s.app.Shutdown()
}

func customErrorHandler(log *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		errCode := response.ErrCodeInternal
		message := "internal server error"

		var fe *fiber.Error
		if errors.As(err, &fe) {
			code = fe.Code
			message = fe.Message

			switch code {
			case fiber.StatusBadRequest:
				errCode = response.ErrCodeInvalidPayload
			case fiber.StatusUnauthorized:
				errCode = response.ErrCodeUnauthorized
			case fiber.StatusForbidden:
				errCode = response.ErrCodeForbidden
			case fiber.StatusNotFound:
				errCode = response.ErrCodeNotFound
			case fiber.StatusConflict:
				errCode = response.ErrCodeConflict
			case fiber.StatusTooManyRequests:
				errCode = response.ErrCodeRateLimited
			}
		}

		traceID := middleware.GetTraceID(c)

		if code >= fiber.StatusInternalServerError {
			log.Error("Request error",
				"path", c.Path(),
				"method", c.Method(),
				"error", err.Error(),
				"status", code,
				"traceId", traceID,
			)
		}

		return c.Status(code).JSON(response.Envelope{
			Success: false,
			Error: &response.ErrorInfo{
				Code:    errCode,
				Message: message,
			},
			Meta: response.Meta{
				TraceID: traceID,
			},
		})
	}
}
