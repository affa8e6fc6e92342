package docs

import "time"

// LoginRequest
// @Description Username and password
type LoginRequest struct {
	Username string `json:"username" example:"ana"`
	Password string `json:"password" example:"correct-horse"`
}

// GoogleLoginRequest
// @Description Access token obtained by the client from Google
type GoogleLoginRequest struct {
	AccessToken string `json:"accessToken" example:"ya29.a0Af..."`
}

// GitHubLoginRequest
// @Description Authorization code from the GitHub redirect
type GitHubLoginRequest struct {
	Code  string `json:"code" example:"4d1e7c..."`
	State string `json:"state,omitempty" example:"q0d8Xa7Xb8yO3m6c2yH0nA"`
}

// TokenResponse
// @Description Access credential plus the refresh token bound to the device
type TokenResponse struct {
	TokenType        string    `json:"tokenType" example:"Bearer"`
	AccessToken      string    `json:"accessToken" example:"eyJhbGciOiJIUzI1NiIs..."`
	ExpiresAt        time.Time `json:"expiresAt"`
	RefreshToken     string    `json:"refreshToken" example:"550e8400-e29b-41d4-a716-446655440000"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
	DeviceID         string    `json:"deviceId" example:"9b2f7c1e-0f51-4d59-b3a4-3e8ac1d7a0c2"`
}

// SessionResponse
// @Description A live refresh session
type SessionResponse struct {
	ID        string    `json:"id" example:"550e8400-e29b-41d4-a716-446655440000"`
	DeviceID  string    `json:"deviceId" example:"9b2f7c1e-0f51-4d59-b3a4-3e8ac1d7a0c2"`
	IPAddress string    `json:"ipAddress,omitempty" example:"203.0.113.7"`
	UserAgent string    `json:"userAgent,omitempty" example:"Mozilla/5.0"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// EmailRequest
// @Description Account email address
type EmailRequest struct {
	Email string `json:"email" example:"ana@example.com"`
}

// RegisterRequest
// @Description Data for a new native account
type RegisterRequest struct {
	Email       string `json:"email" example:"ana@example.com"`
	Username    string `json:"username" example:"ana"`
	DisplayName string `json:"displayName,omitempty" example:"Ana"`
	Password    string `json:"password" example:"correct-horse"`
}

// ChangePasswordRequest
// @Description Password-scoped credential and the new password
type ChangePasswordRequest struct {
	Token    string `json:"token" example:"eyJhbGciOiJIUzI1NiIs..."`
	Password string `json:"password" example:"battery-staple"`
}

// ChangeEmailRequest
// @Description Email-scoped credential and the new address
type ChangeEmailRequest struct {
	Token string `json:"token" example:"eyJhbGciOiJIUzI1NiIs..."`
	Email string `json:"email" example:"ana@new.example.com"`
}

// User
// @Description Account as seen by its owner
type User struct {
	ID          string    `json:"id" example:"550e8400-e29b-41d4-a716-446655440000"`
	Host        string    `json:"host" example:"native" enums:"native,google,github"`
	Email       string    `json:"email" example:"ana@example.com"`
	Username    string    `json:"username" example:"ana"`
	DisplayName string    `json:"displayName" example:"Ana"`
	AvatarURL   string    `json:"avatarUrl,omitempty"`
	Active      bool      `json:"active" example:"true"`
	Roles       []string  `json:"roles" example:"basic"`
	CreatedAt   time.Time `json:"createdAt"`
}

// MessageResponse
// @Description Human readable acknowledgement
type MessageResponse struct {
	Message string `json:"message" example:"check your inbox to continue"`
}

// Envelope
// @Description Standard response envelope
type Envelope struct {
	Success bool        `json:"success" example:"true"`
	Data    interface{} `json:"data"`
	Error   *ErrorInfo  `json:"error"`
	Meta    Meta        `json:"meta"`
}

// ErrorInfo
// @Description Error details
type ErrorInfo struct {
	Code    string      `json:"code" example:"SESSION_NOT_FOUND"`
	Message string      `json:"message" example:"session not found"`
	Details interface{} `json:"details,omitempty"`
}

// Meta
// @Description Response metadata
type Meta struct {
	TraceID string `json:"traceId,omitempty" example:"3f8e2b4c-1d6a-4e9b-8c7f-2a1b3c4d5e6f"`
}

// RateLimitError
// @Description Body of a 429 from the bucket stage
type RateLimitError struct {
	Error     string `json:"error" example:"rate_limit"`
	Message   string `json:"message" example:"Too many requests. Try again in a few seconds."`
	Limite    int    `json:"limite" example:"60"`
	Periodo   string `json:"periodo" example:"1 minute"`
	Violacoes int    `json:"violacoes" example:"3"`
	Aviso     string `json:"aviso" example:"After 10 consecutive violations you will be blocked for 5 minutes"`
}

// PenaltyError
// @Description Body of a 429 while a penalty is active
type PenaltyError struct {
	Error             string `json:"error" example:"temporarily_blocked"`
	Message           string `json:"message" example:"Too many requests. You are temporarily blocked."`
	BlockedForSeconds int    `json:"blocked_for_seconds" example:"300"`
	RetryAfter        string `json:"retry_after" example:"5 minutes"`
}
