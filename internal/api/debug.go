package api

import (
	"net/http"
	"time"

	"dvrp/internal/buildinfo"
)

// DebugJSON reports build info and the effective, non-secret configuration.
func (s *Server) DebugJSON(w http.ResponseWriter, r *http.Request) {
	c := s.Cfg
	writeJSON(w, http.StatusOK, map[string]any{
		"build": buildinfo.Info(),
		"time":  time.Now().UTC().Format(time.RFC3339),
		"config": map[string]any{
			"port":           c.Server.Port,
			"rateRps":        c.Server.RateRPS,
			"rateBurst":      c.Server.RateBurst,
			"progressRps":    c.Server.ProgressRPS,
			"scenario":       s.Scenario.Name,
			"timeBudgetMs":   c.Optimizer.TimeBudgetMs,
			"logLevel":       c.LogLevel,
			"hasDatabaseUrl": c.Server.DatabaseURL != "",
			"hasRedisUrl":    c.Server.RedisURL != "",
		},
	})
}
