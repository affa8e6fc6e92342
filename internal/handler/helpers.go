package handler

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/notehub/gatekeeper/internal/domain"
	"github.com/notehub/gatekeeper/internal/ratelimit"
	"github.com/notehub/gatekeeper/internal/response"
	"github.com/notehub/gatekeeper/internal/token"
)

type errorMapping struct {
	target  error
	status  int
	code    response.ErrorCode
	message string
}

// Messages left empty use err.Error().
var domainErrors = []errorMapping{
	{domain.ErrMissingDevice, fiber.StatusBadRequest, response.ErrCodeInvalidPayload, ""},
	{domain.ErrInvalidDevice, fiber.StatusBadRequest, response.ErrCodeInvalidPayload, ""},
	{domain.ErrMissingRefreshToken, fiber.StatusBadRequest, response.ErrCodeInvalidPayload, ""},
	{domain.ErrInvalidRefreshToken, fiber.StatusBadRequest, response.ErrCodeInvalidPayload, ""},
	{domain.ErrInvalidInput, fiber.StatusBadRequest, response.ErrCodeInvalidPayload, ""},

	{domain.ErrSessionNotFound, fiber.StatusNotFound, response.ErrCodeSessionNotFound, ""},
	{domain.ErrSessionExpired, fiber.StatusForbidden, response.ErrCodeSessionExpired, ""},
	{domain.ErrDeviceMismatch, fiber.StatusForbidden, response.ErrCodeDeviceMismatch, ""},

	{domain.ErrInvalidCredential, fiber.StatusUnauthorized, response.ErrCodeInvalidCredential, ""},
	{domain.ErrExpiredCredential, fiber.StatusUnauthorized, response.ErrCodeExpiredCredential, ""},
	{domain.ErrBadCredentials, fiber.StatusUnauthorized, response.ErrCodeBadCredentials, ""},
	{domain.ErrScopeNotAllowed, fiber.StatusForbidden, response.ErrCodeScopeNotAllowed, ""},
	{domain.ErrHostNotAllowed, fiber.StatusForbidden, response.ErrCodeHostNotAllowed, ""},
	{domain.ErrInactiveAccount, fiber.StatusForbidden, response.ErrCodeAccountInactive, ""},
	{domain.ErrForbidden, fiber.StatusForbidden, response.ErrCodeForbidden, ""},
	{domain.ErrUnauthorized, fiber.StatusUnauthorized, response.ErrCodeUnauthorized, ""},

	{domain.ErrFederationFailed, fiber.StatusBadRequest, response.ErrCodeFederationFailed, MsgFederationFailed},
	{domain.ErrMissingEmail, fiber.StatusBadRequest, response.ErrCodeFederationFailed, MsgFederationFailed},

	{domain.ErrEmailConflict, fiber.StatusConflict, response.ErrCodeEmailConflict, ""},
	{domain.ErrUsernameTaken, fiber.StatusConflict, response.ErrCodeUsernameTaken, ""},
	{domain.ErrAlreadyActive, fiber.StatusConflict, response.ErrCodeAlreadyActive, ""},
	{domain.ErrAlreadyExists, fiber.StatusConflict, response.ErrCodeConflict, ""},
	{domain.ErrConflict, fiber.StatusConflict, response.ErrCodeConflict, ""},

	{domain.ErrNotFound, fiber.StatusNotFound, response.ErrCodeNotFound, MsgUserNotFound},
}

func lookupDomainError(err error) (errorMapping, bool) {
	for _, m := range domainErrors {
		if errors.Is(err, m.target) {
			return m, true
		}
	}
	return errorMapping{}, false
}

func isKnownDomainError(err error) bool {
	_, ok := lookupDomainError(err)
	return ok
}

// HandleDomainError renders err as an envelope. Unknown errors become a 500
// without leaking their text.
func HandleDomainError(c *fiber.Ctx, err error) error {
	m, ok := lookupDomainError(err)
	if !ok {
		return response.InternalError(c)
	}
	message := m.message
	if message == "" {
		message = err.Error()
	}
	return response.Error(c, m.status, m.code, message)
}

// sessionMeta reads the device header and the caller's address.
func sessionMeta(c *fiber.Ctx, requireDevice bool) (token.SessionMeta, error) {
	meta := token.SessionMeta{
		IPAddress: clientIP(c),
		UserAgent: c.Get(fiber.HeaderUserAgent),
	}

	raw := c.Get(HeaderDeviceID)
	if raw == "" && !requireDevice {
		return meta, nil
	}
	device, err := token.ParseDeviceID(raw)
	if err != nil {
		return meta, err
	}
	meta.Device = device
	return meta, nil
}

func clientIP(c *fiber.Ctx) string {
	return ratelimit.RequestIP(c.Context())
}

// BearerToken extracts the credential from an Authorization header. The
// scheme is matched case-insensitively.
func BearerToken(header string) (string, bool) {
	scheme, raw, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	raw = strings.TrimSpace(raw)
	return raw, raw != ""
}
