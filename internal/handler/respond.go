package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Success responses share one envelope: {status, data?, message?, token?}
// with a result count on collections. Error responses never originate
// here; they flow through the central error handler.

func respondData(c echo.Context, code int, doc any) error {
	return c.JSON(code, echo.Map{
		"status": "success",
		"data":   echo.Map{"data": doc},
	})
}

func respondList(c echo.Context, docs any, results int) error {
	return c.JSON(http.StatusOK, echo.Map{
		"status":  "success",
		"results": results,
		"data":    echo.Map{"data": docs},
	})
}

func respondMessage(c echo.Context, code int, message string) error {
	return c.JSON(code, echo.Map{
		"status":  "success",
		"message": message,
	})
}
