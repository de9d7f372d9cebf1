package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 300*time.Second, cfg.Cache.SnapshotTTL)
	assert.Equal(t, 600*time.Second, cfg.Cache.HistoryTTL)
	assert.Equal(t, 24*time.Hour, cfg.Cache.RichListTTL)
	assert.Equal(t, time.Hour, cfg.Cache.BurnTTL)
	assert.Equal(t, 20*time.Second, cfg.Upstream.Timeout)
	assert.Equal(t, "yahoo", cfg.DataSource.Provider)

	require.Len(t, cfg.Groups, 4)
	assert.Equal(t, "Index ETFs", cfg.Groups[0].Name)
	assert.Equal(t, "Canada ETFs", cfg.Groups[3].Instruments[0].Group)
	assert.Len(t, cfg.XRPL.Periods, 4)
	assert.Equal(t, "1000000", cfg.WhaleThreshold().String())

	disabled := cfg.Disabled()
	assert.Contains(t, disabled, "telegram")
	assert.Contains(t, disabled, "social")
	assert.Contains(t, disabled, "richlist")
	assert.NotContains(t, disabled, "burn")
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := writeFile(t, "config.yaml", `
cache:
  snapshot_ttl: 90s
data_source:
  provider: rest
  base_url: http://bars.local
groups:
  - name: Spot ETFs
    instruments:
      - symbol: XRPC
        description: Canary Capital XRP
xrpl:
  endpoints: [wss://one.example]
  periods:
    - {name: daily, days: 1}
telegram:
  chat_id: "42"
`)
	t.Setenv("TELEGRAM_BOT_TOKEN", "token")
	t.Setenv("XRPL_ENDPOINTS", "wss://a.example, https://b.example")
	t.Setenv("UPSTREAM_TIMEOUT", "15s")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 90*time.Second, cfg.Cache.SnapshotTTL)
	assert.Equal(t, 15*time.Second, cfg.Upstream.Timeout)
	assert.Equal(t, []string{"wss://a.example", "https://b.example"}, cfg.XRPL.Endpoints)
	require.Len(t, cfg.Groups, 1)
	assert.Equal(t, "Spot ETFs", cfg.Groups[0].Instruments[0].Group)
	assert.NotContains(t, cfg.Disabled(), "telegram")
}

func TestLoad_BadEnvDuration(t *testing.T) {
	t.Setenv("UPSTREAM_TIMEOUT", "soon")
	_, err := Load(filepath.Join(t.TempDir(), "none.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		ok     bool
	}{
		{"defaults", func(c *Config) {}, true},
		{"unknown provider", func(c *Config) { c.DataSource.Provider = "bloomberg" }, false},
		{"rest without url", func(c *Config) { c.DataSource.Provider = "rest" }, false},
		{"duplicate symbol", func(c *Config) {
			c.Groups[0].Instruments = append(c.Groups[0].Instruments, c.Groups[0].Instruments[0])
		}, false},
		{"negative margin", func(c *Config) { c.XRPL.Margin = -1 }, false},
		{"zero day period", func(c *Config) { c.XRPL.Periods[0].Days = 0 }, false},
		{"bad whale threshold", func(c *Config) { c.RichList.WhaleThreshold = "lots" }, false},
		{"clickhouse without addr", func(c *Config) { c.Recorder.Driver = "clickhouse" }, false},
		{"unknown recorder", func(c *Config) { c.Recorder.Driver = "csv" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(filepath.Join(t.TempDir(), "none.yaml"))
			require.NoError(t, err)
			tt.mutate(cfg)
			if tt.ok {
				assert.NoError(t, cfg.Validate())
			} else {
				assert.Error(t, cfg.Validate())
			}
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	path := writeFile(t, ".env", "LUNARCRUSH_API_KEY=from-dotenv\n")
	t.Setenv("LUNARCRUSH_API_KEY", "")
	os.Unsetenv("LUNARCRUSH_API_KEY")

	require.NoError(t, LoadDotEnv(path))
	t.Cleanup(func() { os.Unsetenv("LUNARCRUSH_API_KEY") })
	assert.Equal(t, "from-dotenv", os.Getenv("LUNARCRUSH_API_KEY"))

	assert.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "absent.env")))
}
