package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ServerConfig controls the sync server.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// PollerConfig bounds the adaptive polling interval. All values are
// milliseconds.
type PollerConfig struct {
	FloorMS        int `yaml:"floor_ms"`
	CeilingMS      int `yaml:"ceiling_ms"`
	IncreaseStepMS int `yaml:"increase_step_ms"`
	DecreaseStepMS int `yaml:"decrease_step_ms"`
	TickTimeoutMS  int `yaml:"tick_timeout_ms"`
	TradesLimit    int `yaml:"trades_limit"`
	ClosedLimit    int `yaml:"closed_limit"`
}

// UpstreamConfig points at the leader activity source.
type UpstreamConfig struct {
	DataAPIURL string `yaml:"data_api_url"`
}

// DataConfig contains persistence-related settings.
type DataConfig struct {
	Dir string `yaml:"dir"`
}

// Config aggregates all runtime knobs. The copy profile itself (leader,
// funds, limits) is configured separately via the configure operation and
// persisted under Data.Dir.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Poller   PollerConfig   `yaml:"poller"`
	Upstream UpstreamConfig `yaml:"upstream"`
	Data     DataConfig     `yaml:"data"`

	// Optional backing services, taken from the environment.
	RedisURL    string `yaml:"-"`
	DatabaseURL string `yaml:"-"`
}

// Defaults returns the baseline configuration used when no file is present.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{Host: "127.0.0.1", Port: 8787},
		Poller: PollerConfig{
			FloorMS:        500,
			CeilingMS:      30000,
			IncreaseStepMS: 250,
			DecreaseStepMS: 100,
			TickTimeoutMS:  15000,
			TradesLimit:    20,
			ClosedLimit:    50,
		},
		Upstream: UpstreamConfig{DataAPIURL: "https://data-api.polymarket.com"},
		Data:     DataConfig{Dir: defaultDataDir()},
	}
}

// Load reads configuration from disk, falling back to defaults when the path
// is empty or the file does not exist. Environment variables override file
// values.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err == nil {
			if err := yaml.Unmarshal(raw, cfg); err != nil {
				return nil, fmt.Errorf("config: parse %s: %w", path, err)
			}
		}
	}

	applyEnv(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = p
		}
	}
	if v := os.Getenv("COPYTRADER_DATA_DIR"); v != "" {
		cfg.Data.Dir = v
	}
	if v := os.Getenv("POLYMARKET_DATA_API_URL"); v != "" {
		cfg.Upstream.DataAPIURL = v
	}
	cfg.RedisURL = os.Getenv("REDIS_URL")
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: invalid server port %d", c.Server.Port)
	}
	if c.Poller.FloorMS <= 0 {
		return errors.New("config: poller floor must be positive")
	}
	if c.Poller.CeilingMS < c.Poller.FloorMS {
		return fmt.Errorf("config: poller ceiling %dms below floor %dms",
			c.Poller.CeilingMS, c.Poller.FloorMS)
	}
	if c.Poller.IncreaseStepMS <= 0 || c.Poller.DecreaseStepMS <= 0 {
		return errors.New("config: poller steps must be positive")
	}
	if c.Data.Dir == "" {
		return errors.New("config: data dir is empty")
	}
	return nil
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".copytrader"
	}
	return filepath.Join(home, ".config", "copytrader")
}
