package response

import (
	"github.com/gofiber/fiber/v2"
)

// traceIDLocal mirrors the key the trace middleware stores under.
const traceIDLocal = "traceId"

type Envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
	Error   *ErrorInfo  `json:"error"`
	Meta    Meta        `json:"meta"`
}

type ErrorInfo struct {
	Code    ErrorCode   `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

type Meta struct {
	TraceID string `json:"traceId,omitempty"`
}

type ErrorCode string

const (
	ErrCodeInvalidPayload ErrorCode = "INVALID_PAYLOAD"
	ErrCodeUnauthorized   ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden      ErrorCode = "FORBIDDEN"
	ErrCodeNotFound       ErrorCode = "NOT_FOUND"
	ErrCodeConflict       ErrorCode = "CONFLICT"
	ErrCodeRateLimited    ErrorCode = "RATE_LIMITED"
	ErrCodeInternal       ErrorCode = "INTERNAL_ERROR"

	ErrCodeSessionNotFound   ErrorCode = "SESSION_NOT_FOUND"
	ErrCodeSessionExpired    ErrorCode = "SESSION_EXPIRED"
	ErrCodeDeviceMismatch    ErrorCode = "DEVICE_MISMATCH"
	ErrCodeInvalidCredential ErrorCode = "INVALID_CREDENTIAL"
	ErrCodeExpiredCredential ErrorCode = "CREDENTIAL_EXPIRED"
	ErrCodeScopeNotAllowed   ErrorCode = "SCOPE_NOT_ALLOWED"
	ErrCodeHostNotAllowed    ErrorCode = "HOST_NOT_ALLOWED"
	ErrCodeFederationFailed  ErrorCode = "FEDERATION_FAILED"
	ErrCodeEmailConflict     ErrorCode = "EMAIL_CONFLICT"
	ErrCodeUsernameTaken     ErrorCode = "USERNAME_TAKEN"
	ErrCodeAlreadyActive     ErrorCode = "ALREADY_ACTIVE"
	ErrCodeBadCredentials    ErrorCode = "BAD_CREDENTIALS"
	ErrCodeAccountInactive   ErrorCode = "ACCOUNT_INACTIVE"
)

func OK(c *fiber.Ctx, data interface{}) error {
	return write(c, fiber.StatusOK, data, nil)
}

func Created(c *fiber.Ctx, data interface{}) error {
	return write(c, fiber.StatusCreated, data, nil)
}

// Accepted answers requests whose outcome is delivered out of band, such as
// a credential sent to the account's inbox.
func Accepted(c *fiber.Ctx, data interface{}) error {
	return write(c, fiber.StatusAccepted, data, nil)
}

func NoContent(c *fiber.Ctx) error {
	return c.SendStatus(fiber.StatusNoContent)
}

func BadRequest(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusBadRequest, ErrCodeInvalidPayload, message)
}

func Unauthorized(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusUnauthorized, ErrCodeUnauthorized, message)
}

func NotFound(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusNotFound, ErrCodeNotFound, message)
}

func RateLimited(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusTooManyRequests, ErrCodeRateLimited, message)
}

func InternalError(c *fiber.Ctx) error {
	return Error(c, fiber.StatusInternalServerError, ErrCodeInternal, "internal server error")
}

// Error renders an error envelope with an explicit status and code.
func Error(c *fiber.Ctx, status int, code ErrorCode, message string) error {
	return write(c, status, nil, &ErrorInfo{Code: code, Message: message})
}

func write(c *fiber.Ctx, status int, data interface{}, errInfo *ErrorInfo) error {
	return c.Status(status).JSON(Envelope{
		Success: errInfo == nil,
		Data:    data,
		Error:   errInfo,
		Meta:    Meta{TraceID: traceID(c)},
	})
}

func traceID(c *fiber.Ctx) string {
	id, _ := c.Locals(traceIDLocal).(string)
	return id
}
