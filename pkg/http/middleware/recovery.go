package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	applogger "github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/pkg/logger"

	"github.com/labstack/echo/v4"
)

// Recover turns handler panics into 500 responses. The stack goes to the
// log, never to the client.
func Recover(l *applogger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				perr, ok := r.(error)
				if !ok {
					perr = fmt.Errorf("%v", r)
				}
				if l != nil {
					l.Error("handler panic",
						applogger.String("method", c.Request().Method),
						applogger.String("path", c.Request().URL.Path),
						applogger.Error(perr),
						applogger.String("stack", string(debug.Stack())))
				}
				err = c.JSON(http.StatusInternalServerError, map[string]interface{}{
					"ok": false,
					"errors": []map[string]string{
						{"code": "internal", "message": "something went wrong"},
					},
				})
			}()
			return next(c)
		}
	}
}
