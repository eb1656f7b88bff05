package apperror

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/mongo"
)

// envelope is the uniform error body sent to clients. Status is "fail" for
// 4xx responses and "error" for 5xx ones.
type envelope struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"` // wrapped cause, development only
}

// HTTPErrorHandler builds the central Echo error handler. Every failure in
// the app flows through here: typed *Error values, validator violations,
// Mongo duplicate-key errors, Echo's own routing errors (404/405) and plain
// unexpected errors. Handlers never write error responses locally.
func HTTPErrorHandler(production bool) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		appErr := normalize(err)

		body := envelope{Status: appErr.Status(), Message: appErr.Message}
		if !appErr.Operational {
			if production {
				body.Message = "something went very wrong"
			} else if appErr.Err != nil {
				body.Detail = appErr.Err.Error()
			}
			c.Logger().Error(err)
		}

		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(appErr.Code)
			return
		}
		_ = c.JSON(appErr.Code, body)
	}
}

// normalize maps any error to a typed *Error.
func normalize(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}

	// Validator violations come straight out of c.Validate on bound input.
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return Validation(validationMessage(verrs))
	}

	// Duplicate unique index, e.g. tour name, user email or (tour,user) review.
	if mongo.IsDuplicateKeyError(err) {
		return Conflict("duplicate field value, please use another value")
	}

	// Echo raises *echo.HTTPError for unmatched routes and bad methods.
	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		msg, ok := httpErr.Message.(string)
		if !ok {
			msg = http.StatusText(httpErr.Code)
		}
		return New(httpErr.Code, msg)
	}

	return Internal(err)
}

// validationMessage flattens field violations into one client message.
func validationMessage(verrs validator.ValidationErrors) string {
	msg := "invalid input data."
	for _, fe := range verrs {
		msg += " field '" + fe.Field() + "' failed on '" + fe.Tag() + "'."
	}
	return msg
}
