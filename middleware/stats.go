package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/competitor-monitor/backend/logging"
)

// StatsMiddleware tracks various statistics about requests
func StatsMiddleware(stats *logging.Statistics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		// Track unique visitor
		stats.TrackVisitor(c.ClientIP())

		c.Next()

		// Only track comparison requests
		if c.Request.URL.Path == "/api/compare" && c.Request.Method == "POST" {
			loadTime := float64(time.Since(start).Milliseconds())
			// Handlers publish the resolved topic slug on the context
			slug := c.GetString("slug")
			stats.TrackComparison(slug, loadTime, c.Writer.Status() >= 400)
		}

		// Periodically save statistics
		if stats.GetStatistics()["totalRequests"].(int)%100 == 0 {
			go stats.Save() // Save asynchronously to not block the request
		}
	}
}
