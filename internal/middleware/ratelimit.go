package middleware

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/notehub/gatekeeper/internal/ratelimit"
)

const clientIPKey = "clientIp"

type rateLimitBody struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	Limit      int    `json:"limite"`
	Period     string `json:"periodo"`
	Violations int    `json:"violacoes"`
	Warning    string `json:"aviso"`
}

type penaltyBody struct {
	Error             string `json:"error"`
	Message           string `json:"message"`
	BlockedForSeconds int64  `json:"blocked_for_seconds"`
	RetryAfter        string `json:"retry_after"`
}

// RateLimit admits each request through limiter, keyed by the client IP.
// Paths starting with one of bypass skip the check entirely.
func RateLimit(limiter *ratelimit.Limiter, bypass []string) fiber.Handler {
	cfg := limiter.Config()
	warning := fmt.Sprintf("After %d consecutive violations you will be blocked for %d minutes",
		cfg.PenaltyThreshold, int(cfg.PenaltyDuration/time.Minute))

	return func(c *fiber.Ctx) error {
		path := c.Path()
		for _, prefix := range bypass {
			if strings.HasPrefix(path, prefix) {
				return c.Next()
			}
		}

		ip := ratelimit.RequestIP(c.Context())
		c.Locals(clientIPKey, ip)

		d := limiter.Admit(ip)
		switch {
		case d.Allowed:
			return c.Next()
		case d.Blocked:
			seconds := retryAfterSeconds(d.RetryAfter)
			c.Set(fiber.HeaderRetryAfter, strconv.FormatInt(seconds, 10))
			return c.Status(fiber.StatusTooManyRequests).JSON(penaltyBody{
				Error:             "temporarily_blocked",
				Message:           "You have been temporarily blocked after repeated rate limit violations.",
				BlockedForSeconds: seconds,
				RetryAfter:        retryAfterText(seconds),
			})
		default:
			return c.Status(fiber.StatusTooManyRequests).JSON(rateLimitBody{
				Error:      "rate_limit",
				Message:    "Too many requests. Try again later.",
				Limit:      d.Limit,
				Period:     "1 minute",
				Violations: d.Violations,
				Warning:    warning,
			})
		}
	}
}

// retryAfterSeconds rounds up so a blocked client is never told to retry
// before the penalty ends.
func retryAfterSeconds(d time.Duration) int64 {
	if d <= 0 {
		return 1
	}
	return int64((d + time.Second - 1) / time.Second)
}

func retryAfterText(seconds int64) string {
	minutes := (seconds + 59) / 60
	if minutes == 1 {
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", minutes)
}

// ClientIPFromContext returns the address the limiter keyed the request by.
func ClientIPFromContext(c *fiber.Ctx) string {
	if ip, ok := c.Locals(clientIPKey).(string); ok {
		return ip
	}
	return ""
}
