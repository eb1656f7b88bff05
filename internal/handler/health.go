package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Health answers liveness probes with a plain 200 "ok". It sits outside
// /api/v1 and carries no auth or envelope.
func Health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}
