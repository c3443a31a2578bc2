package middleware

import (
	"time"

	applogger "github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/pkg/logger"

	"github.com/labstack/echo/v4"
)

// Paths hit by scrapers and probes every few seconds; logging them would
// drown out real traffic.
var quietPaths = map[string]struct{}{
	"/metrics": {},
	"/healthz": {},
}

// RequestLogging emits one structured line per request.
func RequestLogging(l *applogger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			path := c.Request().URL.Path
			if _, quiet := quietPaths[path]; quiet {
				return err
			}

			l.Info("http request",
				applogger.String("method", c.Request().Method),
				applogger.String("path", path),
				applogger.Int("status", c.Response().Status),
				applogger.String("remote", c.RealIP()),
				applogger.Duration("elapsed", time.Since(start)))
			return err
		}
	}
}
