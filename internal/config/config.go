// Package config loads service configuration from YAML with environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"dvrp/internal/opt"
	"dvrp/internal/sim"
)

type EngineConfig struct {
	sim.Params   `yaml:",inline"`
	SpeedDivisor float64 `yaml:"speed_divisor"`
}

type OptimizerConfig struct {
	TimeBudgetMs  int     `yaml:"time_budget_ms"`
	Acceptance    float64 `yaml:"acceptance"`
	Seed          int64   `yaml:"seed"`
	MaxRounds     int     `yaml:"max_rounds"`
	Parallel      bool    `yaml:"parallel"`
	SnapshotEvery int     `yaml:"snapshot_every"`
}

func (o OptimizerConfig) TimeBudget() time.Duration {
	return time.Duration(o.TimeBudgetMs) * time.Millisecond
}

type ServerConfig struct {
	Port         string  `yaml:"port"`
	RateRPS      float64 `yaml:"rate_rps"`
	RateBurst    int     `yaml:"rate_burst"`
	ProgressRPS  float64 `yaml:"progress_rps"`
	DatabaseURL  string  `yaml:"database_url"`
	RedisURL     string  `yaml:"redis_url"`
	ScenarioPath string  `yaml:"scenario_path"`
}

type Config struct {
	Engine    EngineConfig    `yaml:"engine"`
	Optimizer OptimizerConfig `yaml:"optimizer"`
	Server    ServerConfig    `yaml:"server"`
	LogLevel  string          `yaml:"log_level"`
}

func Default() Config {
	return Config{
		Engine: EngineConfig{Params: sim.DefaultParams(), SpeedDivisor: sim.DefaultSpeedDivisor},
		Optimizer: OptimizerConfig{
			TimeBudgetMs:  int(opt.DefaultTimeBudget / time.Millisecond),
			Acceptance:    opt.DefaultAcceptance,
			SnapshotEvery: opt.DefaultSnapshotEvery,
		},
		Server:   ServerConfig{Port: "8080", ProgressRPS: 10},
		LogLevel: "info",
	}
}

// Load reads path over the defaults; an empty path yields the defaults.
// Environment variables are applied afterwards.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// ApplyEnv overlays PORT, DATABASE_URL, REDIS_URL, RATE_RPS, RATE_BURST,
// PROGRESS_RPS, SCENARIO_PATH, LOG_LEVEL and the OPT_* optimizer knobs.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	var errs []error
	num := func(key string, set func(string) error) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			if err := set(strings.TrimSpace(v)); err != nil {
				errs = append(errs, fmt.Errorf("config: %s: %w", key, err))
			}
		}
	}
	str("PORT", &c.Server.Port)
	str("DATABASE_URL", &c.Server.DatabaseURL)
	str("REDIS_URL", &c.Server.RedisURL)
	str("SCENARIO_PATH", &c.Server.ScenarioPath)
	str("LOG_LEVEL", &c.LogLevel)
	num("RATE_RPS", func(v string) (err error) { c.Server.RateRPS, err = strconv.ParseFloat(v, 64); return })
	num("RATE_BURST", func(v string) (err error) { c.Server.RateBurst, err = strconv.Atoi(v); return })
	num("PROGRESS_RPS", func(v string) (err error) { c.Server.ProgressRPS, err = strconv.ParseFloat(v, 64); return })
	num("OPT_TIME_BUDGET_MS", func(v string) (err error) { c.Optimizer.TimeBudgetMs, err = strconv.Atoi(v); return })
	num("OPT_ACCEPTANCE", func(v string) (err error) { c.Optimizer.Acceptance, err = strconv.ParseFloat(v, 64); return })
	num("OPT_SEED", func(v string) (err error) { c.Optimizer.Seed, err = strconv.ParseInt(v, 10, 64); return })
	num("OPT_PARALLEL", func(v string) (err error) { c.Optimizer.Parallel, err = strconv.ParseBool(v); return })
	return errors.Join(errs...)
}

func (c Config) Validate() error {
	var errs []error
	p := c.Engine.Params
	if p.ServiceTime < 0 || p.HandlingTime < 0 || p.LatenessWeight < 0 {
		errs = append(errs, errors.New("config: engine times and weights must be >= 0"))
	}
	if p.Horizon < 0 || p.RetryStep < 0 || p.MaxIterations < 0 {
		errs = append(errs, errors.New("config: engine loop bounds must be >= 0"))
	}
	if c.Optimizer.TimeBudgetMs < 0 {
		errs = append(errs, errors.New("config: optimizer time_budget_ms must be >= 0"))
	}
	if c.Optimizer.Acceptance < 0 {
		errs = append(errs, errors.New("config: optimizer acceptance must be >= 0"))
	}
	if c.Server.RateRPS < 0 || c.Server.RateBurst < 0 || c.Server.ProgressRPS < 0 {
		errs = append(errs, errors.New("config: rate limits must be >= 0"))
	}
	return errors.Join(errs...)
}
