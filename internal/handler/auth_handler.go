package handler

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/notehub/gatekeeper/internal/crypto"
	_ "github.com/notehub/gatekeeper/internal/docs"
	"github.com/notehub/gatekeeper/internal/domain"
	"github.com/notehub/gatekeeper/internal/response"
	"github.com/notehub/gatekeeper/internal/service"
	"github.com/notehub/gatekeeper/internal/token"
)

const oauthStateMaxAge = 600

type authorizer interface {
	AuthorizationURL(state string) string
}

type AuthHandler struct {
	auth         *service.AuthService
	github       authorizer
	logger       *slog.Logger
	secureCookie bool
}

type AuthHandlerConfig struct {
	Auth         *service.AuthService
	GitHub       authorizer
	Logger       *slog.Logger
	SecureCookie bool
}

func NewAuthHandler(cfg AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		auth:         cfg.Auth,
		github:       cfg.GitHub,
		logger:       cfg.Logger.With("component", "auth_handler"),
		secureCookie: cfg.SecureCookie,
	}
}

// Register mounts the auth routes. loginGate runs in front of the
// credential-guessing endpoints; nil disables it.
func (h *AuthHandler) Register(router fiber.Router, loginGate fiber.Handler) {
	if loginGate == nil {
		loginGate = func(c *fiber.Ctx) error { return c.Next() }
	}
	auth := router.Group("/auth")

	auth.Post("/login", loginGate, h.Login)
	auth.Post("/login/google", loginGate, h.LoginGoogle)
	auth.Post("/login/github", loginGate, h.LoginGitHub)
	auth.Get("/github/authorize", h.AuthorizeGitHub)

	auth.Get("/refresh", h.Refresh)
	auth.Post("/refresh", h.Refresh)
	auth.Delete("/logout", h.Logout)

	auth.Post("/change-password", loginGate, h.RequestPasswordChange)
	auth.Post("/change-email", h.RequestEmailChange)
	auth.Post("/secret-key", loginGate, h.RequestSecretKey)
	auth.Get("/sessions", h.Sessions)
}

// Login godoc
//
//	@Summary		Sign in with username and password
//	@Tags			auth
//	@Accept			json
//	@Produce		json
//	@Param			X-Device-Id	header		string				true	"Device UUID"
//	@Param			input		body		docs.LoginRequest	true	"Credentials"
//	@Success		200			{object}	docs.TokenResponse
//	@Failure		400			{object}	docs.ErrorInfo
//	@Failure		401			{object}	docs.ErrorInfo
//	@Failure		403			{object}	docs.ErrorInfo
//	@Router			/auth/login [post]
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	meta, err := sessionMeta(c, true)
	if err != nil {
		return HandleDomainError(c, err)
	}

	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, MsgInvalidRequestBody)
	}

	creds, err := h.auth.Login(c.UserContext(), meta, req.Username, req.Password)
	if err != nil {
		return h.fail(c, "login failed", err)
	}
	return response.OK(c, toTokenResponse(creds))
}

// LoginGoogle godoc
//
//	@Summary		Sign in with a Google access token
//	@Tags			auth
//	@Accept			json
//	@Produce		json
//	@Param			X-Device-Id	header		string						true	"Device UUID"
//	@Param			input		body		docs.GoogleLoginRequest	true	"Google access token"
//	@Success		200			{object}	docs.TokenResponse
//	@Failure		400			{object}	docs.ErrorInfo
//	@Failure		409			{object}	docs.ErrorInfo
//	@Router			/auth/login/google [post]
func (h *AuthHandler) LoginGoogle(c *fiber.Ctx) error {
	var req GoogleLoginRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, MsgInvalidRequestBody)
	}
	return h.loginFederated(c, domain.HostGoogle, req.AccessToken)
}

// LoginGitHub godoc
//
//	@Summary		Sign in with a GitHub authorization code
//	@Tags			auth
//	@Accept			json
//	@Produce		json
//	@Param			X-Device-Id	header		string						true	"Device UUID"
//	@Param			input		body		docs.GitHubLoginRequest	true	"Authorization code"
//	@Success		200			{object}	docs.TokenResponse
//	@Failure		400			{object}	docs.ErrorInfo
//	@Failure		409			{object}	docs.ErrorInfo
//	@Router			/auth/login/github [post]
func (h *AuthHandler) LoginGitHub(c *fiber.Ctx) error {
	var req GitHubLoginRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, MsgInvalidRequestBody)
	}

	if stored := c.Cookies(oauthStateCookie); stored != "" {
		h.clearCookie(c, oauthStateCookie)
		if req.State != stored {
			h.logger.Warn("invalid OAuth state", "ip", clientIP(c))
			return response.BadRequest(c, MsgInvalidState)
		}
	}

	return h.loginFederated(c, domain.HostGitHub, req.Code)
}

func (h *AuthHandler) loginFederated(c *fiber.Ctx, host domain.Host, credential string) error {
	meta, err := sessionMeta(c, true)
	if err != nil {
		return HandleDomainError(c, err)
	}

	creds, err := h.auth.LoginFederated(c.UserContext(), host, meta, credential)
	if err != nil {
		return h.fail(c, "federated login failed", err)
	}
	return response.OK(c, toTokenResponse(creds))
}

// AuthorizeGitHub godoc
//
//	@Summary		Redirect to the GitHub consent screen
//	@Tags			auth
//	@Success		307
//	@Failure		404	{object}	docs.ErrorInfo
//	@Router			/auth/github/authorize [get]
func (h *AuthHandler) AuthorizeGitHub(c *fiber.Ctx) error {
	if h.github == nil {
		return response.NotFound(c, "GitHub login is not configured")
	}

	state, err := crypto.GenerateState()
	if err != nil {
		h.logger.Error("failed to generate state", "error", err)
		return response.InternalError(c)
	}

	h.setCookie(c, oauthStateCookie, state, oauthStateMaxAge)
	return c.Redirect(h.github.AuthorizationURL(state), fiber.StatusTemporaryRedirect)
}

// Refresh godoc
//
//	@Summary		Rotate a refresh token
//	@Tags			auth
//	@Produce		json
//	@Param			X-Refresh-Token	header		string	true	"Refresh token"
//	@Param			X-Device-Id		header		string	true	"Device UUID"
//	@Success		201				{object}	docs.TokenResponse
//	@Failure		400				{object}	docs.ErrorInfo
//	@Failure		403				{object}	docs.ErrorInfo
//	@Failure		404				{object}	docs.ErrorInfo
//	@Router			/auth/refresh [post]
func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	refreshID, err := token.ParseRefreshID(c.Get(HeaderRefreshToken))
	if err != nil {
		return HandleDomainError(c, err)
	}
	meta, err := sessionMeta(c, true)
	if err != nil {
		return HandleDomainError(c, err)
	}

	creds, err := h.auth.Refresh(c.UserContext(), refreshID, meta)
	if err != nil {
		return h.fail(c, "refresh failed", err)
	}
	return response.Created(c, toTokenResponse(creds))
}

// Logout godoc
//
//	@Summary		Revoke a refresh token
//	@Tags			auth
//	@Param			X-Refresh-Token	header	string	true	"Refresh token"
//	@Success		204
//	@Failure		400	{object}	docs.ErrorInfo
//	@Failure		404	{object}	docs.ErrorInfo
//	@Router			/auth/logout [delete]
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	refreshID, err := token.ParseRefreshID(c.Get(HeaderRefreshToken))
	if err != nil {
		return HandleDomainError(c, err)
	}

	if err := h.auth.Logout(c.UserContext(), refreshID); err != nil {
		return h.fail(c, "logout failed", err)
	}
	return response.NoContent(c)
}

// RequestPasswordChange godoc
//
//	@Summary		Send a password change credential
//	@Tags			auth
//	@Accept			json
//	@Produce		json
//	@Param			input	body		docs.EmailRequest	true	"Account email"
//	@Success		202		{object}	docs.MessageResponse
//	@Failure		403		{object}	docs.ErrorInfo
//	@Failure		404		{object}	docs.ErrorInfo
//	@Router			/auth/change-password [post]
func (h *AuthHandler) RequestPasswordChange(c *fiber.Ctx) error {
	var req EmailRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, MsgInvalidRequestBody)
	}

	if err := h.auth.RequestPasswordChange(c.UserContext(), req.Email); err != nil {
		return h.fail(c, "password change request failed", err)
	}
	return response.Accepted(c, MessageResponse{Message: MsgNoticeSent})
}

// RequestEmailChange godoc
//
//	@Summary		Send an email change credential to the current address
//	@Tags			auth
//	@Produce		json
//	@Security		BearerAuth
//	@Success		202	{object}	docs.MessageResponse
//	@Failure		401	{object}	docs.ErrorInfo
//	@Router			/auth/change-email [post]
func (h *AuthHandler) RequestEmailChange(c *fiber.Ctx) error {
	user := GetUserFromContext(c)
	if user == nil {
		return response.Unauthorized(c, MsgNotAuthenticated)
	}

	if err := h.auth.RequestEmailChange(c.UserContext(), user); err != nil {
		return h.fail(c, "email change request failed", err)
	}
	return response.Accepted(c, MessageResponse{Message: MsgNoticeSent})
}

// RequestSecretKey godoc
//
//	@Summary		Mail a confirmation key to a federated account
//	@Tags			auth
//	@Accept			json
//	@Produce		json
//	@Param			input	body		docs.EmailRequest	true	"Account email"
//	@Success		202		{object}	docs.MessageResponse
//	@Failure		403		{object}	docs.ErrorInfo
//	@Failure		404		{object}	docs.ErrorInfo
//	@Router			/auth/secret-key [post]
func (h *AuthHandler) RequestSecretKey(c *fiber.Ctx) error {
	var req EmailRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, MsgInvalidRequestBody)
	}

	if err := h.auth.RequestSecretKey(c.UserContext(), req.Email); err != nil {
		return h.fail(c, "secret key request failed", err)
	}
	return response.Accepted(c, MessageResponse{Message: MsgNoticeSent})
}

// Sessions godoc
//
//	@Summary		List the caller's live sessions
//	@Tags			auth
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{array}		docs.SessionResponse
//	@Failure		401	{object}	docs.ErrorInfo
//	@Router			/auth/sessions [get]
func (h *AuthHandler) Sessions(c *fiber.Ctx) error {
	user := GetUserFromContext(c)
	if user == nil {
		return response.Unauthorized(c, MsgNotAuthenticated)
	}

	sessions, err := h.auth.Sessions(c.UserContext(), user.ID)
	if err != nil {
		return h.fail(c, "list sessions failed", err)
	}
	return response.OK(c, toSessionResponses(sessions))
}

func (h *AuthHandler) fail(c *fiber.Ctx, msg string, err error) error {
	if !isKnownDomainError(err) {
		h.logger.Error(msg, "error", err, "path", c.Path())
	}
	return HandleDomainError(c, err)
}

func (h *AuthHandler) setCookie(c *fiber.Ctx, name, value string, maxAge int) {
	c.Cookie(&fiber.Cookie{
		Name:     name,
		Value:    value,
		HTTPOnly: true,
		Secure:   h.secureCookie,
		SameSite: "Lax",
		MaxAge:   maxAge,
		Path:     "/",
	})
}

func (h *AuthHandler) clearCookie(c *fiber.Ctx, name string) {
	h.setCookie(c, name, "", -1)
}
