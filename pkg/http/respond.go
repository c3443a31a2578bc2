package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Responses share one envelope: {"ok": bool, "data": ...} on success,
// {"ok": false, "errors": [...]} on failure. The HTTP status code carries
// the outcome; the envelope never disagrees with it.
type envelope struct {
	OK     bool        `json:"ok"`
	Data   interface{} `json:"data,omitempty"`
	Errors interface{} `json:"errors,omitempty"`
}

// SuccessResponse writes a 200 with data in the envelope.
func SuccessResponse(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusOK, envelope{OK: true, Data: data})
}

// FailureResponse writes status with the given error payload. Single errors
// are wrapped into a one-element list so clients always see an array.
func FailureResponse(c echo.Context, status int, errs interface{}) error {
	switch v := errs.(type) {
	case *AppError:
		errs = []*AppError{v}
	case ValidationError:
		errs = []ValidationError{v}
	}
	return c.JSON(status, envelope{OK: false, Errors: errs})
}

func BadRequestResponse(c echo.Context, errs interface{}) error {
	return FailureResponse(c, http.StatusBadRequest, errs)
}

func NotFoundResponse(c echo.Context, errs interface{}) error {
	return FailureResponse(c, http.StatusNotFound, errs)
}

func TooManyRequestsResponse(c echo.Context, errs interface{}) error {
	return FailureResponse(c, http.StatusTooManyRequests, errs)
}

func InternalServerErrorResponse(c echo.Context) error {
	return FailureResponse(c, http.StatusInternalServerError, InternalError("something went wrong"))
}

// AppErrorResponse maps an error to its declared status, defaulting to 500
// for anything that is not an AppError.
func AppErrorResponse(c echo.Context, err error) error {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return FailureResponse(c, appErr.Status, appErr)
	}
	return InternalServerErrorResponse(c)
}
