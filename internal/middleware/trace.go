package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const (
	TraceIDHeader = "X-Trace-ID"
	TraceIDKey    = "traceId"

	maxTraceIDLength = 64
)

// TraceID propagates the caller's trace id when it is a short token and mints
// a UUID otherwise. The id ends up in logs and response envelopes.
func TraceID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		traceID := c.Get(TraceIDHeader)
		if !validTraceID(traceID) {
			traceID = uuid.NewString()
		}

		c.Locals(TraceIDKey, traceID)
		c.Set(TraceIDHeader, traceID)

		return c.Next()
	}
}

func GetTraceID(c *fiber.Ctx) string {
	id, _ := c.Locals(TraceIDKey).(string)
	return id
}

func validTraceID(id string) bool {
	if id == "" || len(id) > maxTraceIDLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		ch := id[i]
		switch {
		case ch >= 'a' && ch <= 'z', ch >= 'A' && ch <= 'Z', ch >= '0' && ch <= '9':
		case ch == '-', ch == '_', ch == '.':
		default:
			return false
		}
	}
	return true
}
