package handler

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/notehub/gatekeeper/internal/response"
	"github.com/notehub/gatekeeper/internal/service"
)

type UserHandler struct {
	users  *service.UserService
	logger *slog.Logger
}

func NewUserHandler(users *service.UserService, logger *slog.Logger) *UserHandler {
	return &UserHandler{
		users:  users,
		logger: logger.With("component", "user_handler"),
	}
}

func (h *UserHandler) Register(router fiber.Router) {
	users := router.Group("/users")

	users.Post("/register", h.SignUp)
	users.Patch("/activate", h.Activate)
	users.Patch("/password", h.ChangePassword)
	users.Patch("/email", h.ChangeEmail)
	users.Get("/me", h.Me)
}

// SignUp godoc
//
//	@Summary		Register a native account
//	@Tags			users
//	@Accept			json
//	@Produce		json
//	@Param			input	body		docs.RegisterRequest	true	"Account data"
//	@Success		201		{object}	docs.User
//	@Failure		400		{object}	docs.ErrorInfo
//	@Failure		409		{object}	docs.ErrorInfo
//	@Router			/users/register [post]
func (h *UserHandler) SignUp(c *fiber.Ctx) error {
	var input service.RegisterInput
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, MsgInvalidRequestBody)
	}

	user, err := h.users.Register(c.UserContext(), input)
	if err != nil {
		return h.fail(c, "registration failed", err)
	}
	return response.Created(c, toUserResponse(user))
}

// Activate godoc
//
//	@Summary		Confirm an account with its activation credential
//	@Tags			users
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	docs.User
//	@Failure		401	{object}	docs.ErrorInfo
//	@Failure		404	{object}	docs.ErrorInfo
//	@Failure		409	{object}	docs.ErrorInfo
//	@Router			/users/activate [patch]
func (h *UserHandler) Activate(c *fiber.Ctx) error {
	raw, ok := BearerToken(c.Get(fiber.HeaderAuthorization))
	if !ok {
		return response.Unauthorized(c, MsgNotAuthenticated)
	}

	user, err := h.users.Activate(c.UserContext(), raw)
	if err != nil {
		return h.fail(c, "activation failed", err)
	}
	return response.OK(c, toUserResponse(user))
}

// ChangePassword godoc
//
//	@Summary		Set a new password with a password-scoped credential
//	@Tags			users
//	@Accept			json
//	@Produce		json
//	@Param			input	body		docs.ChangePasswordRequest	true	"Scoped credential and new password"
//	@Success		200		{object}	docs.MessageResponse
//	@Failure		401		{object}	docs.ErrorInfo
//	@Failure		403		{object}	docs.ErrorInfo
//	@Router			/users/password [patch]
func (h *UserHandler) ChangePassword(c *fiber.Ctx) error {
	var req ChangePasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, MsgInvalidRequestBody)
	}

	if err := h.users.ChangePassword(c.UserContext(), req.Token, req.Password); err != nil {
		return h.fail(c, "password change failed", err)
	}
	return response.OK(c, MessageResponse{Message: "password changed"})
}

// ChangeEmail godoc
//
//	@Summary		Set a new email with an email-scoped credential
//	@Tags			users
//	@Accept			json
//	@Produce		json
//	@Param			input	body		docs.ChangeEmailRequest	true	"Scoped credential and new email"
//	@Success		200		{object}	docs.User
//	@Failure		401		{object}	docs.ErrorInfo
//	@Failure		409		{object}	docs.ErrorInfo
//	@Router			/users/email [patch]
func (h *UserHandler) ChangeEmail(c *fiber.Ctx) error {
	var req ChangeEmailRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, MsgInvalidRequestBody)
	}

	user, err := h.users.ChangeEmail(c.UserContext(), req.Token, req.Email)
	if err != nil {
		return h.fail(c, "email change failed", err)
	}
	return response.OK(c, toUserResponse(user))
}

// Me godoc
//
//	@Summary		Current account
//	@Tags			users
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	docs.User
//	@Failure		401	{object}	docs.ErrorInfo
//	@Router			/users/me [get]
func (h *UserHandler) Me(c *fiber.Ctx) error {
	user := GetUserFromContext(c)
	if user == nil {
		return response.Unauthorized(c, MsgNotAuthenticated)
	}
	return response.OK(c, toUserResponse(user))
}

func (h *UserHandler) fail(c *fiber.Ctx, msg string, err error) error {
	if !isKnownDomainError(err) {
		h.logger.Error(msg, "error", err, "path", c.Path())
	}
	return HandleDomainError(c, err)
}
