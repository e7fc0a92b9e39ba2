// Package config holds the simulator settings. Values come from Defaults,
// an optional YAML file and finally environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"foodsim/internal/graph"
)

// Config is the top-level application configuration.
type Config struct {
	Sim       SimConfig    `yaml:"sim" json:"sim"`
	Map       MapConfig    `yaml:"map" json:"map"`
	Courier   Courier      `yaml:"courier" json:"courier"`
	Kitchener Kitchener    `yaml:"kitchener" json:"kitchener"`
	Delivery  Delivery     `yaml:"delivery" json:"delivery"`
	Server    ServerConfig `yaml:"server" json:"server"`
}

// SimConfig controls the simulation clock and the initial staff.
type SimConfig struct {
	Depot             int           `yaml:"depot" json:"depot"`
	Seed              int64         `yaml:"seed" json:"seed"` // 0 picks a time-based seed
	HistoryCapacity   int           `yaml:"history_capacity" json:"historyCapacity"`
	TickInterval      time.Duration `yaml:"tick_interval" json:"tickInterval"`
	TimeSpeed         int           `yaml:"time_speed" json:"timeSpeed"`
	Couriers          int           `yaml:"couriers" json:"couriers"`
	DoughKitcheners   int           `yaml:"dough_kitcheners" json:"doughKitcheners"`
	FillingKitcheners int           `yaml:"filling_kitcheners" json:"fillingKitcheners"`
	PickerKitcheners  int           `yaml:"picker_kitcheners" json:"pickerKitcheners"`
	InitialOrders     int           `yaml:"initial_orders" json:"initialOrders"`
	AutoOrders        AutoOrders    `yaml:"auto_orders" json:"autoOrders"`
}

// AutoOrders drives the random order generator. Every Interval a number in
// [1, window] is drawn; a draw <= Chance creates an order and widens the
// window by Grow, otherwise the window shrinks by Shrink.
type AutoOrders struct {
	Enabled   bool          `yaml:"enabled" json:"enabled"`
	Interval  time.Duration `yaml:"interval" json:"interval"`
	Chance    int           `yaml:"chance" json:"chance"`
	Window    int           `yaml:"window" json:"window"`
	WindowMin int           `yaml:"window_min" json:"windowMin"`
	WindowMax int           `yaml:"window_max" json:"windowMax"`
	Grow      int           `yaml:"grow" json:"grow"`
	Shrink    int           `yaml:"shrink" json:"shrink"`
}

// MapConfig describes the road network. An empty vertex list selects the built-in map.
type MapConfig struct {
	AverageSpeed int                `yaml:"average_speed" json:"averageSpeed"` // m/s
	Scale        int                `yaml:"scale" json:"scale"`
	Vertices     []graph.VertexSpec `yaml:"vertices,omitempty" json:"vertices,omitempty"`
	Edges        []graph.EdgeSpec   `yaml:"edges,omitempty" json:"edges,omitempty"`
}

// Courier holds courier phase durations. Each Min/Max pair is drawn uniformly in whole seconds.
type Courier struct {
	AcceptanceMin time.Duration `yaml:"acceptance_min" json:"acceptanceMin"`
	AcceptanceMax time.Duration `yaml:"acceptance_max" json:"acceptanceMax"`
	DeliveryMin   time.Duration `yaml:"delivery_min" json:"deliveryMin"`
	DeliveryMax   time.Duration `yaml:"delivery_max" json:"deliveryMax"`
	PaymentMin    time.Duration `yaml:"payment_min" json:"paymentMin"`
	PaymentMax    time.Duration `yaml:"payment_max" json:"paymentMax"`
	PauseChance   int           `yaml:"pause_chance" json:"pauseChance"` // percent
	PauseMin      time.Duration `yaml:"pause_min" json:"pauseMin"`
	PauseMax      time.Duration `yaml:"pause_max" json:"pauseMax"`
	ShortPause    time.Duration `yaml:"short_pause" json:"shortPause"`
}

// StopTime is the time a tour search reserves for each delivery stop.
func (c Courier) StopTime() time.Duration { return c.DeliveryMax + c.PaymentMax }

type Kitchener struct {
	PauseChance int           `yaml:"pause_chance" json:"pauseChance"`
	PauseMin    time.Duration `yaml:"pause_min" json:"pauseMin"`
	PauseMax    time.Duration `yaml:"pause_max" json:"pauseMax"`
	ShortPause  time.Duration `yaml:"short_pause" json:"shortPause"`
	DoughTime   time.Duration `yaml:"dough_time" json:"doughTime"`
}

type Delivery struct {
	// Budget is the promised delivery time measured from order creation.
	Budget        time.Duration `yaml:"budget" json:"budget"`
	CheckInterval time.Duration `yaml:"check_interval" json:"checkInterval"`
}

type ServerConfig struct {
	Addr        string  `yaml:"addr" json:"addr"`
	DatabaseURL string  `yaml:"database_url" json:"-"`
	SQLitePath  string  `yaml:"sqlite_path" json:"sqlitePath"`
	RedisURL    string  `yaml:"redis_url" json:"-"`
	RateRPS     float64 `yaml:"rate_rps" json:"rateRps"`
	RateBurst   int     `yaml:"rate_burst" json:"rateBurst"`
	// WebhookURL receives completed orders when set.
	WebhookURL    string `yaml:"webhook_url" json:"webhookUrl"`
	WebhookSecret string `yaml:"webhook_secret" json:"-"`
}

// MaxTimeSpeed bounds how many simulated intervals pass per wall-clock tick.
const MaxTimeSpeed = 100

// Defaults returns a Config with sane defaults.
func Defaults() *Config {
	return &Config{
		Sim: SimConfig{
			Depot:             0,
			HistoryCapacity:   10,
			TickInterval:      time.Second / 60,
			TimeSpeed:         1,
			Couriers:          3,
			DoughKitcheners:   1,
			FillingKitcheners: 2,
			PickerKitcheners:  3,
			InitialOrders:     2,
			AutoOrders: AutoOrders{
				Enabled:   true,
				Interval:  time.Minute,
				Chance:    5,
				Window:    50,
				WindowMin: 10,
				WindowMax: 100,
				Grow:      10,
				Shrink:    2,
			},
		},
		Map: MapConfig{
			AverageSpeed: 10,
			Scale:        1,
		},
		Courier: Courier{
			AcceptanceMin: 2 * time.Minute,
			AcceptanceMax: 4 * time.Minute,
			DeliveryMin:   time.Minute,
			DeliveryMax:   3 * time.Minute,
			PaymentMin:    time.Minute,
			PaymentMax:    4 * time.Minute,
			PauseChance:   10,
			PauseMin:      5 * time.Minute,
			PauseMax:      15 * time.Minute,
			ShortPause:    30 * time.Second,
		},
		Kitchener: Kitchener{
			PauseChance: 10,
			PauseMin:    time.Minute,
			PauseMax:    5 * time.Minute,
			DoughTime:   150 * time.Second,
		},
		Delivery: Delivery{
			Budget:        time.Hour,
			CheckInterval: time.Second,
		},
		Server: ServerConfig{
			Addr:      ":8080",
			RateRPS:   0,
			RateBurst: 20,
		},
	}
}

// Load reads a YAML config file. If the file doesn't exist, defaults are used.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the config to a YAML file that Load reads back unchanged.
// The file holds connection strings and the webhook secret, so it is private.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// ApplyEnv overlays environment variables on top of c.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv("PORT"); v != "" {
		c.Server.Addr = ":" + v
	}
	if v := os.Getenv("FOODSIM_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Server.DatabaseURL = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		c.Server.SQLitePath = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		c.Server.RedisURL = v
	}
	if v := os.Getenv("WEBHOOK_URL"); v != "" {
		c.Server.WebhookURL = v
	}
	if v := os.Getenv("WEBHOOK_SECRET"); v != "" {
		c.Server.WebhookSecret = v
	}
	if v := os.Getenv("RATE_RPS"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("RATE_RPS: %w", err)
		}
		c.Server.RateRPS = f
	}
	if v := os.Getenv("RATE_BURST"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("RATE_BURST: %w", err)
		}
		c.Server.RateBurst = n
	}
	if v := os.Getenv("TIME_SPEED"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("TIME_SPEED: %w", err)
		}
		c.Sim.TimeSpeed = n
	}
	if v := os.Getenv("SEED"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("SEED: %w", err)
		}
		c.Sim.Seed = n
	}
	if v := os.Getenv("AUTO_ORDERS"); v != "" {
		c.Sim.AutoOrders.Enabled = strings.EqualFold(v, "true") || v == "1"
	}
	return nil
}

// Validate checks ranges that the simulation relies on.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}
	check(c.Map.AverageSpeed > 0, "map.average_speed must be > 0")
	check(c.Sim.HistoryCapacity > 0, "sim.history_capacity must be > 0")
	check(c.Sim.TickInterval > 0, "sim.tick_interval must be > 0")
	check(c.Sim.TimeSpeed >= 1 && c.Sim.TimeSpeed <= MaxTimeSpeed, "sim.time_speed must be in [1,%d]", MaxTimeSpeed)
	check(c.Delivery.Budget > 0, "delivery.budget must be > 0")
	check(c.Delivery.CheckInterval > 0, "delivery.check_interval must be > 0")
	checkRange := func(name string, lo, hi time.Duration) {
		check(lo >= 0 && lo <= hi, "%s: min %v must be in [0, max %v]", name, lo, hi)
	}
	checkRange("courier.acceptance", c.Courier.AcceptanceMin, c.Courier.AcceptanceMax)
	checkRange("courier.delivery", c.Courier.DeliveryMin, c.Courier.DeliveryMax)
	checkRange("courier.payment", c.Courier.PaymentMin, c.Courier.PaymentMax)
	checkRange("courier.pause", c.Courier.PauseMin, c.Courier.PauseMax)
	checkRange("kitchener.pause", c.Kitchener.PauseMin, c.Kitchener.PauseMax)
	check(c.Courier.PauseChance >= 0 && c.Courier.PauseChance <= 100, "courier.pause_chance must be in [0,100]")
	check(c.Kitchener.PauseChance >= 0 && c.Kitchener.PauseChance <= 100, "kitchener.pause_chance must be in [0,100]")
	check(c.Courier.ShortPause >= 0 && c.Kitchener.ShortPause >= 0, "short pauses must be >= 0")
	check(c.Kitchener.DoughTime >= 0, "kitchener.dough_time must be >= 0")
	if a := c.Sim.AutoOrders; a.Enabled {
		check(a.Interval > 0, "sim.auto_orders.interval must be > 0")
		check(a.WindowMin >= 1 && a.WindowMin <= a.WindowMax, "sim.auto_orders window bounds invalid")
	}
	return errors.Join(errs...)
}
