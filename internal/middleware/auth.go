package middleware // package middleware contains reusable HTTP middleware functions

import (
	"context"
	"errors"
	"strings"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/roamly/tour-booking/internal/apperror"
	"github.com/roamly/tour-booking/internal/model"
	"github.com/roamly/tour-booking/internal/repository"
	"github.com/roamly/tour-booking/internal/utils"
)

// AuthCookie is the cookie carrying the JWT for browser clients. API
// clients use the Authorization header instead; both are accepted.
const AuthCookie = "jwt"

// userKey is the context key under which the resolved user is stored.
const userKey = "currentUser"

// UserLoader resolves the user referenced by a verified token. The
// repository layer satisfies it; tests plug in fakes.
type UserLoader interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (model.User, error)
}

// Protect returns middleware that walks the full authentication chain:
// extract the credential, verify signature and expiry, load the referenced
// user, reject tokens older than the user's last password change, then
// attach the user to the request context. Any failure short-circuits with
// a 401 flowing to the central error responder.
func Protect(secret string, users UserLoader) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := extractToken(c)
			if raw == "" {
				return apperror.Unauthorized("you are not logged in, please log in to get access")
			}
			user, err := resolveUser(c, secret, users, raw)
			if err != nil {
				return err
			}
			AttachUser(c, user)
			return next(c)
		}
	}
}

// OptionalAuth attaches the user when a valid credential is present and
// silently continues otherwise. Used for routes rendered differently for
// logged-in visitors; it never fails the request.
func OptionalAuth(secret string, users UserLoader) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if raw := extractToken(c); raw != "" {
				if user, err := resolveUser(c, secret, users, raw); err == nil {
					AttachUser(c, user)
				}
			}
			return next(c)
		}
	}
}

// AttachUser stores the resolved user on the request context for
// downstream handlers.
func AttachUser(c echo.Context, user model.User) {
	c.Set(userKey, user)
}

// CurrentUser returns the user attached by Protect or OptionalAuth.
func CurrentUser(c echo.Context) (model.User, bool) {
	user, ok := c.Get(userKey).(model.User)
	return user, ok
}

// resolveUser verifies a serialized token and loads its subject.
func resolveUser(c echo.Context, secret string, users UserLoader, raw string) (model.User, error) {
	claims, err := utils.VerifyAccessToken(secret, raw)
	if err != nil {
		if errors.Is(err, utils.ErrTokenExpired) {
			return model.User{}, apperror.Unauthorized("your token has expired, please log in again")
		}
		return model.User{}, apperror.Unauthorized("invalid token, please log in again")
	}
	id, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		return model.User{}, apperror.Unauthorized("invalid token, please log in again")
	}
	user, err := users.GetByID(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.User{}, apperror.Unauthorized("the user belonging to this token no longer exists")
		}
		return model.User{}, apperror.Internal(err)
	}
	if user.PasswordChangedAfter(claims.IssuedAt) {
		return model.User{}, apperror.Unauthorized("user recently changed password, please log in again")
	}
	return user, nil
}

// extractToken pulls the credential from the bearer header or, failing
// that, from the auth cookie.
func extractToken(c echo.Context) string {
	auth := c.Request().Header.Get(echo.HeaderAuthorization)
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	if cookie, err := c.Cookie(AuthCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	return ""
}
