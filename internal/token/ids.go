package token

import (
	"strings"

	"github.com/google/uuid"

	"github.com/notehub/gatekeeper/internal/domain"
)

const (
	DeviceHeader  = "X-Device-Id"
	RefreshHeader = "X-Refresh-Token"
)

// ParseDeviceID validates the raw X-Device-Id header value.
func ParseDeviceID(raw string) (uuid.UUID, error) {
	return parseID(raw, domain.ErrMissingDevice, domain.ErrInvalidDevice)
}

// ParseRefreshID validates the raw X-Refresh-Token header value.
func ParseRefreshID(raw string) (uuid.UUID, error) {
	return parseID(raw, domain.ErrMissingRefreshToken, domain.ErrInvalidRefreshToken)
}

func parseID(raw string, missing, invalid error) (uuid.UUID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return uuid.Nil, missing
	}
	id, err := uuid.Parse(raw)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, invalid
	}
	return id, nil
}
