package observability

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const (
	// unmatchedRoute labels requests that hit no registered admin route.
	unmatchedRoute = "unmatched"

	// sessionFoundKey is set by the /session handler.
	sessionFoundKey = "msrp_session_found"
)

// pollRoutes are hit by scrapers and orchestrators on a timer.
var pollRoutes = map[string]bool{
	"/health":  true,
	"/ready":   true,
	"/metrics": true,
}

func adminRoute(c *gin.Context) string {
	if route := c.FullPath(); route != "" {
		return route
	}
	return unmatchedRoute
}

// AdminLogger logs one line per admin request for endpoint. Successful polls of
// health, readiness and metrics log at debug; rejected /session reads log at warn
// with whether a session existed and whether credentials were presented.
func AdminLogger(logger zerolog.Logger, endpoint string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		route := adminRoute(c)

		var event *zerolog.Event
		switch {
		case status >= http.StatusInternalServerError:
			event = logger.Error()
		case status >= http.StatusBadRequest:
			event = logger.Warn()
		case pollRoutes[route]:
			event = logger.Debug()
		default:
			event = logger.Info()
		}

		event = event.
			Str("endpoint", endpoint).
			Str("route", route).
			Int("status", status).
			Dur("latency", time.Since(start))
		if found, ok := c.Get(sessionFoundKey); ok {
			event = event.Interface("session_found", found)
		}
		if status == http.StatusUnauthorized || status == http.StatusForbidden {
			event = event.
				Bool("credentials", c.GetHeader("Authorization") != "").
				Str("client_ip", c.ClientIP())
		}
		event.Msg("admin_request")
	}
}

// AdminMetrics records admin traffic per route. Unknown paths share one label value.
func AdminMetrics(endpoint string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		RecordAdminRequest(endpoint, adminRoute(c), c.Writer.Status(), time.Since(start))
	}
}
