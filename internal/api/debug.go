package api

import (
	"net/http"
	"os"
	"time"

	"foodsim/internal/buildinfo"
	"foodsim/internal/opt"
)

func (s *Server) DebugJSON(w http.ResponseWriter, r *http.Request) {
	info := map[string]any{
		"build":    buildinfo.Info(),
		"time":     time.Now().UTC().Format(time.RFC3339),
		"sim":      s.Sim.Stats(),
		"searches": opt.Totals(),
		"config": map[string]any{
			"PORT":              os.Getenv("PORT"),
			"CONFIG_PATH":       os.Getenv("CONFIG_PATH"),
			"AUTH_DEFAULT_ROLE": os.Getenv("AUTH_DEFAULT_ROLE"),
			"RATE_RPS":          s.Config.Server.RateRPS,
			"RATE_BURST":        s.Config.Server.RateBurst,
			"HAS_DATABASE_URL":  s.Config.Server.DatabaseURL != "",
			"HAS_SQLITE_PATH":   s.Config.Server.SQLitePath != "",
			"HAS_REDIS_URL":     s.Config.Server.RedisURL != "",
			"HAS_WEBHOOK_URL":   s.Config.Server.WebhookURL != "",
		},
	}
	if s.Runner != nil {
		info["runner"] = s.Runner.State()
	}
	writeJSON(w, http.StatusOK, info)
}
