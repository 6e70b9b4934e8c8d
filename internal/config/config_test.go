package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdptw/internal/opt"
)

func writeTempYAML(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeTempYAML(t, `
instance:
  path: data/lc101.txt
  vehicles: 25
algorithms:
  generation: sweep
search:
  iterations: 200
  seed: 7
replay:
  enabled: true
`)
	c, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, c.Validate())

	assert.Equal(t, "data/lc101.txt", c.Instance.Path)
	assert.Equal(t, 25, c.Instance.Vehicles)
	assert.Equal(t, "sweep", c.Algorithms.Generation)
	assert.Equal(t, opt.DefaultAlgorithms.Removal, c.Algorithms.Removal)
	assert.Equal(t, 200, c.Search.Iterations)
	assert.Equal(t, int64(7), c.Search.Seed)
	assert.Equal(t, opt.DefaultParams.Tenure, c.Search.Tenure)
	assert.Equal(t, 10.0, c.Replay.Step)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "reading run config")

	_, err = Load(writeTempYAML(t, "search: [1, 2"))
	assert.ErrorContains(t, err, "parsing run config")
}

func TestValidateCollectsEveryProblem(t *testing.T) {
	c := Default()
	c.Algorithms.Generation = "bogus"
	c.Algorithms.Removal = "bogus"
	c.Search.RegretK = 1
	c.Search.RemovalMin = 0.5
	c.Search.RemovalMax = 0.2

	err := c.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, opt.ErrInvalidArgument))
	assert.ErrorContains(t, err, "invalid generation algorithm name; invalid removal algorithm name")
	assert.ErrorContains(t, err, "regretK")
	assert.ErrorContains(t, err, "removal fractions")
}

func TestFromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("RATE_RPS", "2.5")
	t.Setenv("RATE_BURST", "nope")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")

	s := FromEnv()
	assert.Equal(t, "9090", s.Port)
	assert.Equal(t, 2.5, s.RateRPS)
	assert.Equal(t, 10, s.RateBurst)
	assert.Equal(t, "redis://localhost:6379/0", s.RedisURL)
	assert.Equal(t, 5, s.WebhookMaxAttempts)
	assert.True(t, s.Migrate)
	assert.Equal(t, "db/migrations", s.MigrationsDir)

	t.Setenv("DB_MIGRATE", "false")
	t.Setenv("MAX_CONCURRENT_RUNS", "3")
	s = FromEnv()
	assert.False(t, s.Migrate)
	assert.Equal(t, 3, s.MaxConcurrentRuns)
}
