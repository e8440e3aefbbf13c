package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dvrp.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
engine:
  service_time: 5
  handling_time: 2
  lateness_weight: 50
  horizon: 480
optimizer:
  time_budget_ms: 250
  acceptance: 1.5
server:
  port: "9090"
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2.0, cfg.Engine.HandlingTime)
	assert.Equal(t, 480.0, cfg.Engine.Horizon)
	assert.Equal(t, 20000, cfg.Engine.MaxIterations, "default kept")
	assert.Equal(t, 30.0, cfg.Engine.SpeedDivisor)
	assert.Equal(t, 250*time.Millisecond, cfg.Optimizer.TimeBudget())
	assert.Equal(t, 1.5, cfg.Optimizer.Acceptance)
	assert.Equal(t, 50, cfg.Optimizer.SnapshotEvery)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyEnv(env(map[string]string{
		"PORT":               "7000",
		"REDIS_URL":          "redis://localhost:6379/0",
		"RATE_RPS":           "2.5",
		"RATE_BURST":         "4",
		"OPT_SEED":           "99",
		"OPT_PARALLEL":       "true",
		"OPT_TIME_BUDGET_MS": " ",
	}))
	require.NoError(t, err)
	assert.Equal(t, "7000", cfg.Server.Port)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Server.RedisURL)
	assert.Equal(t, 2.5, cfg.Server.RateRPS)
	assert.Equal(t, 4, cfg.Server.RateBurst)
	assert.Equal(t, int64(99), cfg.Optimizer.Seed)
	assert.True(t, cfg.Optimizer.Parallel)
	assert.Equal(t, 5000, cfg.Optimizer.TimeBudgetMs)

	err = cfg.ApplyEnv(env(map[string]string{"RATE_BURST": "lots", "OPT_ACCEPTANCE": "x"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RATE_BURST")
	assert.Contains(t, err.Error(), "OPT_ACCEPTANCE")
}

func TestValidate(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	cfg.Optimizer.Acceptance = -1
	cfg.Server.RateRPS = -3
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "acceptance")
	assert.Contains(t, err.Error(), "rate limits")
}
