package network

import (
	"fmt"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/MRamiBalles/FantasyEROperations/server/internal/platform/logger"
)

// requestLogger logs one debug line per request.
func requestLogger(log *logger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			req, res := c.Request(), c.Response()
			log.With("request_id", res.Header().Get(echo.HeaderXRequestID)).
				Debug(fmt.Sprintf("%s %s %d %s", req.Method, req.URL.Path, res.Status, time.Since(start)))
			return nil
		}
	}
}
