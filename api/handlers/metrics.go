package handlers

import (
	"net/http"

	"github.com/linesmerrill/jurysane-api/api"
)

// formatRouteMetrics converts duration fields to milliseconds for JSON serialization
func formatRouteMetrics(routes []*api.RouteMetrics) []map[string]interface{} {
	result := make([]map[string]interface{}, len(routes))
	for i, route := range routes {
		result[i] = map[string]interface{}{
			"method":      route.Method,
			"path":        route.Path,
			"count":       route.Count,
			"errorCount":  route.ErrorCount,
			"avgTime":     route.AvgTime.Milliseconds(),
			"minTime":     route.MinTime.Milliseconds(),
			"maxTime":     route.MaxTime.Milliseconds(),
			"p95Time":     route.P95Time.Milliseconds(),
			"lastRequest": route.LastRequest,
		}
	}
	return result
}

// metricsHandler reports request counts and latencies per route
func (a *App) metricsHandler(w http.ResponseWriter, r *http.Request) {
	summary := a.metrics.Summary()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"since":         summary.Since,
		"totalRequests": summary.TotalRequests,
		"totalErrors":   summary.TotalErrors,
		"routes":        formatRouteMetrics(summary.Routes),
	})
}
