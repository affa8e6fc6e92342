package handler

import (
	"time"

	"github.com/notehub/gatekeeper/internal/domain"
	"github.com/notehub/gatekeeper/internal/token"
)

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type GoogleLoginRequest struct {
	AccessToken string `json:"accessToken"`
}

type GitHubLoginRequest struct {
	Code  string `json:"code"`
	State string `json:"state,omitempty"`
}

type EmailRequest struct {
	Email string `json:"email"`
}

type ChangePasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

type ChangeEmailRequest struct {
	Token string `json:"token"`
	Email string `json:"email"`
}

type TokenResponse struct {
	TokenType        string    `json:"tokenType"`
	AccessToken      string    `json:"accessToken"`
	ExpiresAt        time.Time `json:"expiresAt"`
	RefreshToken     string    `json:"refreshToken"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
	DeviceID         string    `json:"deviceId"`
}

func toTokenResponse(creds *token.Credentials) TokenResponse {
	return TokenResponse{
		TokenType:        "Bearer",
		AccessToken:      creds.AccessToken,
		ExpiresAt:        creds.AccessExpiresAt,
		RefreshToken:     creds.Session.ID,
		RefreshExpiresAt: creds.Session.ExpiresAt,
		DeviceID:         creds.Session.Device,
	}
}

type SessionResponse struct {
	ID        string    `json:"id"`
	DeviceID  string    `json:"deviceId"`
	IPAddress string    `json:"ipAddress,omitempty"`
	UserAgent string    `json:"userAgent,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func toSessionResponses(sessions []domain.Session) []SessionResponse {
	out := make([]SessionResponse, len(sessions))
	for i, s := range sessions {
		out[i] = SessionResponse{
			ID:        s.ID,
			DeviceID:  s.Device,
			IPAddress: s.IPAddress,
			UserAgent: s.UserAgent,
			CreatedAt: s.CreatedAt,
			ExpiresAt: s.ExpiresAt,
		}
	}
	return out
}

type UserResponse struct {
	ID          string    `json:"id"`
	Host        string    `json:"host"`
	Email       string    `json:"email"`
	Username    string    `json:"username"`
	DisplayName string    `json:"displayName"`
	AvatarURL   string    `json:"avatarUrl,omitempty"`
	Active      bool      `json:"active"`
	Roles       []string  `json:"roles"`
	CreatedAt   time.Time `json:"createdAt"`
}

func toUserResponse(u *domain.User) UserResponse {
	return UserResponse{
		ID:          u.ID,
		Host:        string(u.Host),
		Email:       u.Email,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		AvatarURL:   u.AvatarURL,
		Active:      u.Active,
		Roles:       u.Roles(),
		CreatedAt:   u.CreatedAt,
	}
}

type MessageResponse struct {
	Message string `json:"message"`
}
