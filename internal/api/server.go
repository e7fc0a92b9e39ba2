package api

import (
	"fmt"
	"log"
	"strings"

	"foodsim/internal/config"
	"foodsim/internal/runner"
	"foodsim/internal/sim"
	"foodsim/internal/store"
)

type Server struct {
	Sim     *sim.System
	Archive store.Archive
	Broker  EventBroker
	Runner  *runner.Runner
	Config  *config.Config
}

// NewServer wires the HTTP layer to a running simulation. Runner may be nil
// when the caller drives the clock itself.
func NewServer(cfg *config.Config, sys *sim.System, archive store.Archive, broker EventBroker, run *runner.Runner) *Server {
	return &Server{Sim: sys, Archive: archive, Broker: broker, Runner: run, Config: cfg}
}

// OpenArchive selects the archive backend: Postgres when a database URL is
// set, SQLite when a file path is set, memory otherwise.
func OpenArchive(cfg config.ServerConfig) (store.Archive, error) {
	switch {
	case strings.TrimSpace(cfg.DatabaseURL) != "":
		a, err := store.OpenPostgres(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("postgres archive: %w", err)
		}
		return a, nil
	case strings.TrimSpace(cfg.SQLitePath) != "":
		a, err := store.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("sqlite archive: %w", err)
		}
		return a, nil
	default:
		return store.NewMemory(), nil
	}
}

// OpenBroker uses Redis when a URL is configured and reachable, the in-process broker otherwise.
func OpenBroker(cfg config.ServerConfig) EventBroker {
	if cfg.RedisURL == "" {
		return NewBroker()
	}
	rb, err := NewRedisBroker(cfg.RedisURL)
	if err != nil {
		log.Printf("redis broker unavailable, using in-process broker: %v", err)
		return NewBroker()
	}
	return rb
}
