package config

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

// replaceFile swaps name's content in one rename so watchers never read a
// half-written file.
func replaceFile(t *testing.T, dir, name, body string) {
	t.Helper()
	tmp := filepath.Join(dir, "."+name+".tmp")
	require.NoError(t, os.WriteFile(tmp, []byte(body), 0o644))
	require.NoError(t, os.Rename(tmp, filepath.Join(dir, name)))
}

func TestLoad_AppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", "app:\n  env: prod\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "prod", cfg.App.Env)
	assert.Equal(t, "info", cfg.App.LogLevel)
	assert.Equal(t, "text", cfg.App.LogFormat)
	assert.Equal(t, ":9991", cfg.App.HTTPAddr)
	assert.Equal(t, 0.5, cfg.Scoring.MEVWeight)
	assert.Equal(t, 0.5, cfg.Scoring.ProfitWeight)
	assert.Equal(t, 2.0, cfg.Scoring.WaitPenalty)
	assert.Equal(t, 10, cfg.Execution.HistoryLimit)
	assert.Equal(t, 2*time.Second, cfg.Execution.StepDelay)
	assert.Equal(t, 15*time.Minute, cfg.Execution.ScheduleHorizon)
	assert.Equal(t, 0.95, cfg.Execution.SuccessProbability)
	assert.Equal(t, 60, cfg.HTTP.RateLimitPerMin)
}

func TestLoad_ExplicitValuesWin(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", `
scoring:
  mev_weight: 0
  profit_weight: 1
execution:
  step_delay: 250ms
  schedule_horizon: 5m
  history_limit: "25"
http:
  rate_limit_per_min: 0
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0.0, cfg.Scoring.MEVWeight, "explicit zero is not replaced by the default")
	assert.Equal(t, 1.0, cfg.Scoring.ProfitWeight)
	assert.Equal(t, 250*time.Millisecond, cfg.Execution.StepDelay)
	assert.Equal(t, 5*time.Minute, cfg.Execution.ScheduleHorizon)
	assert.Equal(t, 25, cfg.Execution.HistoryLimit)
	assert.Equal(t, 0, cfg.HTTP.RateLimitPerMin)
}

func TestLoad_IncludesMergeInOrder(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", "app:\n  log_level: debug\n  http_addr: \":8080\"\n")
	writeFile(t, dir, "scoring.yaml", "scoring:\n  wait_penalty: 3\n")
	path := writeFile(t, dir, "config.yaml", `
include:
  - base.yaml
  - scoring.yaml
app:
  http_addr: ":9000"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.App.LogLevel)
	assert.Equal(t, ":9000", cfg.App.HTTPAddr, "root file overrides includes")
	assert.Equal(t, 3.0, cfg.Scoring.WaitPenalty)
}

func TestLoad_IncludeCycle(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.yaml", "include: [b.yaml]\n")
	writeFile(t, dir, "b.yaml", "include: [a.yaml]\n")
	_, err := Load(filepath.Join(dir, "a.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")
}

func TestLoad_ValidationErrors(t *testing.T) {
	cases := map[string]string{
		"log level":   "app:\n  log_level: loud\n",
		"log format":  "app:\n  log_format: xml\n",
		"weights":     "scoring:\n  mev_weight: 0\n  profit_weight: 0\n",
		"penalty":     "scoring:\n  gas_penalty: -1\n",
		"probability": "execution:\n  success_probability: 1.5\n",
		"history":     "execution:\n  history_limit: 0\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), "config.yaml", body)
			_, err := Load(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid config")
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
	_, err = Load("")
	assert.Error(t, err)
}

func TestWatcher_ReloadsOnIncludedFileEdit(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "scoring.yaml", "scoring:\n  mev_weight: 0.5\n")
	root := writeFile(t, dir, "config.yaml", "include:\n  - scoring.yaml\napp:\n  env: prod\n")

	w, err := Watch(root)
	require.NoError(t, err)
	defer w.Close()
	assert.Equal(t, 0.5, w.Current().Scoring.MEVWeight)

	var mu sync.Mutex
	var seen []float64
	w.OnChange(func(c *Config) {
		mu.Lock()
		seen = append(seen, c.Scoring.MEVWeight)
		mu.Unlock()
	})

	replaceFile(t, dir, "scoring.yaml", "scoring:\n  mev_weight: 0.9\n")
	require.Eventually(t, func() bool {
		return w.Current().Scoring.MEVWeight == 0.9
	}, 3*time.Second, 20*time.Millisecond, "edit to an included file reloads")
	assert.Equal(t, "prod", w.Current().App.Env)

	replaceFile(t, dir, "scoring.yaml", "scoring:\n  mev_weight: -1\n")
	replaceFile(t, dir, "config.yaml", "include:\n  - scoring.yaml\napp:\n  env: staging\n")
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 0.9, w.Current().Scoring.MEVWeight, "bad reload keeps the previous config")

	replaceFile(t, dir, "scoring.yaml", "scoring:\n  mev_weight: 0.7\n")
	require.Eventually(t, func() bool {
		c := w.Current()
		return c.Scoring.MEVWeight == 0.7 && c.App.Env == "staging"
	}, 3*time.Second, 20*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, seen)
	for _, v := range seen {
		assert.GreaterOrEqual(t, v, 0.0, "invalid configs never reach listeners")
	}
}

func TestWatcher_TracksNewIncludes(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "extra")
	require.NoError(t, os.Mkdir(sub, 0o755))
	writeFile(t, sub, "http.yaml", "http:\n  burst: 4\n")
	root := writeFile(t, dir, "config.yaml", "app:\n  env: prod\n")

	w, err := Watch(root)
	require.NoError(t, err)
	defer w.Close()
	assert.False(t, w.tracks(filepath.Join(sub, "http.yaml")))

	replaceFile(t, dir, "config.yaml", "include:\n  - extra/http.yaml\napp:\n  env: prod\n")
	require.Eventually(t, func() bool { return w.Current().HTTP.Burst == 4 }, 3*time.Second, 20*time.Millisecond)
	assert.True(t, w.tracks(filepath.Join(sub, "http.yaml")))

	replaceFile(t, sub, "http.yaml", "http:\n  burst: 6\n")
	require.Eventually(t, func() bool { return w.Current().HTTP.Burst == 6 }, 3*time.Second, 20*time.Millisecond)
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
}
