package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleetroute/internal/opt"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	for _, k := range []string{"PORT", "DATABASE_URL", "REDIS_URL", "RATE_RPS", "RATE_BURST", "LOG_LEVEL", "MAX_CONCURRENT_RUNS", "SEARCH_CONFIG", "DB_MIGRATE", "WEBHOOK_URL", "WEBHOOK_MAX_ATTEMPTS"} {
		t.Setenv(k, "")
	}

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", c.Port)
	assert.Equal(t, "info", c.LogLevel)
	assert.Equal(t, 4, c.MaxConcurrentRuns)
	assert.Equal(t, 20, c.RateBurst)
	assert.Zero(t, c.RateRPS)
	assert.True(t, c.Migrate)
	assert.Empty(t, c.WebhookURL)
	assert.Equal(t, 5, c.WebhookMaxAttempts)
	assert.Equal(t, opt.DefaultParams().Tabu.Tenure, c.Search.Tabu.Tenure)
}

func TestLoadReadsDotEnvAndSearchFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	for _, k := range []string{"PORT", "RATE_RPS", "MAX_CONCURRENT_RUNS", "SEARCH_CONFIG"} {
		t.Setenv(k, "")
		// godotenv never overrides variables that are already set
		require.NoError(t, os.Unsetenv(k))
	}
	search := filepath.Join(dir, "search.yaml")
	require.NoError(t, os.WriteFile(search, []byte("algorithm: twoopt\ntwoOpt:\n  policy: full\n"), 0o644))
	env := "PORT=9090\nRATE_RPS=2.5\nMAX_CONCURRENT_RUNS=8\nSEARCH_CONFIG=" + search + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(env), 0o644))

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9090", c.Port)
	assert.Equal(t, 2.5, c.RateRPS)
	assert.Equal(t, 8, c.MaxConcurrentRuns)
	assert.Equal(t, opt.AlgoTwoOpt, c.Search.Algorithm)
	assert.Equal(t, opt.TwoOptFull, c.Search.TwoOpt.Policy)
}

func TestLoadRejectsBadNumbers(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("MAX_CONCURRENT_RUNS", "lots")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("MAX_CONCURRENT_RUNS", "0")
	_, err = Load()
	assert.Error(t, err)
}

func TestParseSearch(t *testing.T) {
	body := `
algorithm: tabu
tabu:
  iterations: 800
  timeBudget: 2s
  tenure: 15
  relocate: false
`
	p, err := ParseSearch([]byte(body), opt.DefaultParams())
	require.NoError(t, err)
	assert.Equal(t, 800, p.Tabu.Iterations)
	assert.Equal(t, 2*time.Second, p.Tabu.TimeBudget)
	assert.Equal(t, 15, p.Tabu.Tenure)
	assert.False(t, p.Tabu.Relocate)
	// untouched keys keep the base value
	assert.Equal(t, opt.DefaultParams().Tabu.StagnationLimit, p.Tabu.StagnationLimit)

	_, err = ParseSearch([]byte("tabu:\n  tenur: 3\n"), opt.DefaultParams())
	assert.Error(t, err)

	_, err = ParseSearch([]byte("algorithm: annealing\n"), opt.DefaultParams())
	assert.ErrorIs(t, err, opt.ErrInvalidConfig)
}
