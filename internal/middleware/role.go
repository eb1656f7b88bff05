package middleware // middleware provides shared request processing for handlers

import (
	"github.com/labstack/echo/v4"

	"github.com/roamly/tour-booking/internal/apperror"
)

// RoleSet is a declarative authorization descriptor attached to a route:
// the set of roles allowed through.
type RoleSet map[string]bool

// Roles builds a RoleSet from its members.
func Roles(roles ...string) RoleSet {
	set := make(RoleSet, len(roles))
	for _, r := range roles {
		set[r] = true
	}
	return set
}

// RequireRoles enforces that the authenticated user's role is in the
// allowed set. It assumes Protect ran earlier and attached the user; a
// request without one is rejected outright. A role mismatch is 403, not
// 401: the caller is authenticated, just not allowed.
func RequireRoles(allowed RoleSet) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user, ok := CurrentUser(c)
			if !ok {
				return apperror.Unauthorized("you are not logged in, please log in to get access")
			}
			if !allowed[user.Role] {
				return apperror.Forbidden("you do not have permission to perform this action")
			}
			return next(c)
		}
	}
}
