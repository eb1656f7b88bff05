package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/roamly/tour-booking/internal/apperror"
	"github.com/roamly/tour-booking/internal/config"
	"github.com/roamly/tour-booking/internal/middleware"
	"github.com/roamly/tour-booking/internal/model"
	"github.com/roamly/tour-booking/internal/repository"
	"github.com/roamly/tour-booking/internal/utils"
)

// UserStore is the persistence surface the auth flows need. The user
// repository satisfies it; tests use an in-memory fake.
type UserStore interface {
	Create(ctx context.Context, u *model.User) error
	GetByID(ctx context.Context, id primitive.ObjectID) (model.User, error)
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetByResetToken(ctx context.Context, tokenHash string) (model.User, error)
	UpdatePassword(ctx context.Context, id primitive.ObjectID, hash string) error
	SetResetToken(ctx context.Context, id primitive.ObjectID, tokenHash string, expires time.Time) error
	ClearResetTokenIf(ctx context.Context, id primitive.ObjectID, tokenHash string) error
}

// Sender delivers transactional mail. Failures surface synchronously.
type Sender interface {
	Send(to, subject, body string) error
}

// AuthHandler bundles dependencies for the authentication endpoints.
type AuthHandler struct {
	Cfg   config.Config
	Users UserStore
	Mail  Sender
}

func NewAuthHandler(cfg config.Config, users UserStore, mail Sender) *AuthHandler {
	if users == nil || mail == nil {
		panic("nil dependency passed to NewAuthHandler")
	}
	return &AuthHandler{Cfg: cfg, Users: users, Mail: mail}
}

// ----- DTOs -----

type signupReq struct {
	Name            string `json:"name" validate:"required"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=8"`
	PasswordConfirm string `json:"passwordConfirm" validate:"required,eqfield=Password"`
	Role            string `json:"role" validate:"omitempty,oneof=user guide lead-guide admin"`
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type forgotReq struct {
	Email string `json:"email" validate:"required,email"`
}

type newPasswordReq struct {
	Password        string `json:"password" validate:"required,min=8"`
	PasswordConfirm string `json:"passwordConfirm" validate:"required,eqfield=Password"`
}

type updatePasswordReq struct {
	PasswordCurrent string `json:"passwordCurrent" validate:"required"`
	Password        string `json:"password" validate:"required,min=8"`
	PasswordConfirm string `json:"passwordConfirm" validate:"required,eqfield=Password"`
}

// Signup creates a user from the restricted field set and logs them in
// immediately. The response carries the token and the sanitized user; the
// password hash never serializes.
func (h *AuthHandler) Signup(c echo.Context) error {
	var req signupReq
	if err := c.Bind(&req); err != nil {
		return apperror.BadRequest("invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	if req.Role == "" {
		req.Role = model.RoleUser
	}

	hash, err := utils.HashPassword(req.Password, h.Cfg.BcryptCost)
	if err != nil {
		return apperror.Internal(err)
	}
	user := model.User{
		Name:     req.Name,
		Email:    req.Email,
		Role:     req.Role,
		Password: hash,
	}
	if err := h.Users.Create(c.Request().Context(), &user); err != nil {
		return err // duplicate email maps to 409 centrally
	}
	return h.sendToken(c, user, http.StatusCreated)
}

// Login verifies email and password and issues a fresh token. User absence
// and password mismatch share one generic message to avoid enumeration.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return apperror.BadRequest("invalid request body")
	}
	if req.Email == "" || req.Password == "" {
		return apperror.BadRequest("please provide email and password")
	}

	user, err := h.Users.GetByEmail(c.Request().Context(), req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperror.Unauthorized("incorrect email or password")
		}
		return apperror.Internal(err)
	}
	if !utils.VerifyPassword(user.Password, req.Password) {
		return apperror.Unauthorized("incorrect email or password")
	}
	return h.sendToken(c, user, http.StatusOK)
}

// Logout overwrites the auth cookie with a short-lived dummy value.
func (h *AuthHandler) Logout(c echo.Context) error {
	c.SetCookie(&http.Cookie{
		Name:     middleware.AuthCookie,
		Value:    "loggedout",
		Expires:  time.Now().Add(10 * time.Second),
		HttpOnly: true,
		Path:     "/",
	})
	return respondMessage(c, http.StatusOK, "logged out")
}

// ForgotPassword generates a reset token for the given email and mails the
// raw value inside a reset URL. Only the token's hash is persisted. When
// delivery fails the stored token is cleared again, conditionally, so a
// concurrent newer reset request is never clobbered.
func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	var req forgotReq
	if err := c.Bind(&req); err != nil {
		return apperror.BadRequest("invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	user, err := h.Users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperror.NotFound("there is no user with that email address")
		}
		return apperror.Internal(err)
	}

	token, err := utils.NewResetToken()
	if err != nil {
		return apperror.Internal(err)
	}
	if err := h.Users.SetResetToken(ctx, user.ID, token.Hash, token.Exp); err != nil {
		return apperror.Internal(err)
	}

	resetURL := fmt.Sprintf("%s://%s/api/v1/users/reset-password/%s",
		c.Scheme(), c.Request().Host, token.Raw)
	body := fmt.Sprintf("Forgot your password? Submit a PATCH request with your new "+
		"password and passwordConfirm to: %s.\nIf you didn't forget your password, "+
		"please ignore this email.", resetURL)

	if err := h.Mail.Send(user.Email, "Your password reset token (valid for 10 min)", body); err != nil {
		// best effort cleanup; the token expires on its own in 10 minutes
		_ = h.Users.ClearResetTokenIf(ctx, user.ID, token.Hash)
		return apperror.EmailDelivery(err)
	}
	return respondMessage(c, http.StatusOK, "token sent to email")
}

// ResetPassword consumes a raw reset token from the URL. Lookup is by the
// token's hash with an unexpired expiry; a hit sets the new password,
// clears the reset fields and logs the user in.
func (h *AuthHandler) ResetPassword(c echo.Context) error {
	ctx := c.Request().Context()
	user, err := h.Users.GetByResetToken(ctx, utils.HashResetRaw(c.Param("token")))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperror.BadRequest("token is invalid or has expired")
		}
		return apperror.Internal(err)
	}

	var req newPasswordReq
	if err := c.Bind(&req); err != nil {
		return apperror.BadRequest("invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	hash, err := utils.HashPassword(req.Password, h.Cfg.BcryptCost)
	if err != nil {
		return apperror.Internal(err)
	}
	if err := h.Users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return apperror.Internal(err)
	}
	return h.sendToken(c, user, http.StatusOK)
}

// UpdatePassword lets an authenticated user rotate their password after
// proving they know the current one.
func (h *AuthHandler) UpdatePassword(c echo.Context) error {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		return apperror.Unauthorized("you are not logged in, please log in to get access")
	}

	var req updatePasswordReq
	if err := c.Bind(&req); err != nil {
		return apperror.BadRequest("invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	if !utils.VerifyPassword(user.Password, req.PasswordCurrent) {
		return apperror.Unauthorized("your current password is wrong")
	}

	hash, err := utils.HashPassword(req.Password, h.Cfg.BcryptCost)
	if err != nil {
		return apperror.Internal(err)
	}
	if err := h.Users.UpdatePassword(c.Request().Context(), user.ID, hash); err != nil {
		return apperror.Internal(err)
	}
	return h.sendToken(c, user, http.StatusOK)
}

// sendToken issues a JWT for the user, attaches it as an http-only cookie
// and writes the token plus sanitized user envelope.
func (h *AuthHandler) sendToken(c echo.Context, user model.User, code int) error {
	token, err := utils.NewAccessToken(h.Cfg.JWTSecret, user.ID.Hex(), h.Cfg.JWTTTLMin)
	if err != nil {
		return apperror.Internal(err)
	}
	c.SetCookie(&http.Cookie{
		Name:     middleware.AuthCookie,
		Value:    token.Token,
		Expires:  time.Now().Add(time.Duration(h.Cfg.CookieTTLDays) * 24 * time.Hour),
		HttpOnly: true,
		Secure:   h.Cfg.IsProduction(),
		Path:     "/",
	})
	return c.JSON(code, echo.Map{
		"status": "success",
		"token":  token.Token,
		"data":   echo.Map{"user": user},
	})
}
