package middleware

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/notehub/gatekeeper/internal/domain"
	"github.com/notehub/gatekeeper/internal/handler"
	"github.com/notehub/gatekeeper/internal/policy"
	"github.com/notehub/gatekeeper/internal/response"
)

type credentialValidator interface {
	ValidateAccess(raw string) (string, error)
}

type AuthMiddleware struct {
	policy    *policy.Policy
	validator credentialValidator
	userRepo  domain.UserRepository
	logger    *slog.Logger
}

type AuthMiddlewareConfig struct {
	Policy    *policy.Policy
	Validator credentialValidator
	UserRepo  domain.UserRepository
	Logger    *slog.Logger
}

func NewAuthMiddleware(cfg AuthMiddlewareConfig) *AuthMiddleware {
	p := cfg.Policy
	if p == nil {
		p = policy.Default()
	}
	return &AuthMiddleware{
		policy:    p,
		validator: cfg.Validator,
		userRepo:  cfg.UserRepo,
		logger:    cfg.Logger.With("component", "auth_middleware"),
	}
}

// Require lets public routes through and demands a valid bearer access
// credential on everything else. The resolved user is stored for the handlers.
func (m *AuthMiddleware) Require() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if m.policy.IsPublic(c.Method(), c.Path()) {
			return c.Next()
		}

		raw, ok := handler.BearerToken(c.Get(fiber.HeaderAuthorization))
		if !ok {
			return response.Unauthorized(c, "authentication required")
		}

		subject, err := m.validator.ValidateAccess(raw)
		if err != nil {
			m.logger.Debug("rejected credential", "error", err, "path", c.Path())
			return handler.HandleDomainError(c, err)
		}
		if _, err := uuid.Parse(subject); err != nil {
			m.logger.Debug("rejected credential subject", "path", c.Path())
			return handler.HandleDomainError(c, domain.ErrInvalidCredential)
		}

		user, err := m.userRepo.FindByID(c.UserContext(), subject)
		if errors.Is(err, domain.ErrNotFound) {
			return response.Unauthorized(c, "user not found")
		}
		if err != nil {
			m.logger.Error("failed to load user for credential", "error", err, "user_id", subject)
			return response.InternalError(c)
		}

		handler.SetUserInContext(c, user)
		return c.Next()
	}
}
