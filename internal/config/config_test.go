package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Delivery.Budget != time.Hour || cfg.Sim.HistoryCapacity != 10 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestLoadOverridesFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "foodsim.yaml")
	body := `
delivery:
  budget: 45m
  check_interval: 5s
courier:
  pause_chance: 0
map:
  average_speed: 5
  vertices:
    - {x: 0, y: 0}
    - {x: 30, y: 40}
  edges:
    - {from: 0, to: 1}
    - {from: 1, to: 0, distance: 80}
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Delivery.Budget != 45*time.Minute || cfg.Delivery.CheckInterval != 5*time.Second {
		t.Fatalf("delivery not overridden: %+v", cfg.Delivery)
	}
	if cfg.Courier.PauseChance != 0 || cfg.Courier.AcceptanceMax != 4*time.Minute {
		t.Fatalf("courier merge wrong: %+v", cfg.Courier)
	}
	if len(cfg.Map.Vertices) != 2 || cfg.Map.Edges[1].Distance != 80 {
		t.Fatalf("map not parsed: %+v", cfg.Map)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	cfg := Defaults()
	cfg.Sim.TimeSpeed = 7
	cfg.Delivery.Budget = 45 * time.Minute
	cfg.Server.WebhookSecret = "s3cret"
	path := filepath.Join(t.TempDir(), "dump.yaml")
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Sim.TimeSpeed != 7 || got.Delivery.Budget != 45*time.Minute || got.Server.WebhookSecret != "s3cret" {
		t.Fatalf("round trip lost values: %+v", got)
	}
	if len(got.Map.Vertices) != len(cfg.Map.Vertices) || len(got.Map.Edges) != len(cfg.Map.Edges) {
		t.Fatalf("map changed: %d/%d vertices", len(got.Map.Vertices), len(cfg.Map.Vertices))
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("mode %v", perm)
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("RATE_RPS", "2.5")
	t.Setenv("RATE_BURST", "7")
	t.Setenv("SEED", "42")
	t.Setenv("AUTO_ORDERS", "false")
	cfg := Defaults()
	if err := cfg.ApplyEnv(); err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}
	if cfg.Server.Addr != ":9090" || cfg.Server.RateRPS != 2.5 || cfg.Server.RateBurst != 7 {
		t.Fatalf("server env not applied: %+v", cfg.Server)
	}
	if cfg.Sim.Seed != 42 || cfg.Sim.AutoOrders.Enabled {
		t.Fatalf("sim env not applied: %+v", cfg.Sim)
	}

	t.Setenv("RATE_BURST", "lots")
	if err := cfg.ApplyEnv(); err == nil || !strings.Contains(err.Error(), "RATE_BURST") {
		t.Fatalf("want RATE_BURST error, got %v", err)
	}
}

func TestValidateReportsEveryProblem(t *testing.T) {
	cfg := Defaults()
	cfg.Map.AverageSpeed = 0
	cfg.Courier.PaymentMin = 10 * time.Minute
	err := cfg.Validate()
	if err == nil {
		t.Fatal("want validation error")
	}
	for _, want := range []string{"average_speed", "courier.payment"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q does not mention %s", err, want)
		}
	}
}

func TestStopTime(t *testing.T) {
	c := Defaults().Courier
	if got := c.StopTime(); got != 7*time.Minute {
		t.Fatalf("StopTime = %v, want 7m", got)
	}
}
