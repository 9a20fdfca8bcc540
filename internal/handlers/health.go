package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/menuguard/internal/monitoring"
	"github.com/charlesng35/menuguard/pkg/response"
)

// Health reports readiness. Degraded dependencies still answer 200; any probe that is down
// turns the response into a 503.
func Health(checker *monitoring.Checker) gin.HandlerFunc {
	return func(c *gin.Context) {
		report := checker.Evaluate(requestContext(c))
		status := http.StatusOK
		if !report.Ready() {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, response.Response{Success: report.Ready(), Data: report})
	}
}
