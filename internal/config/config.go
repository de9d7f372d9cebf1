package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"FlowSentinel/internal/ledger"
	"FlowSentinel/internal/model"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Server struct {
		Addr       string `yaml:"addr"`
		AdminToken string `yaml:"admin_token"`
	} `yaml:"server"`
	Log struct {
		Level string `yaml:"level"`
		Dir   string `yaml:"dir"`
	} `yaml:"log"`
	Cache struct {
		SnapshotTTL    time.Duration `yaml:"snapshot_ttl"`
		HistoryTTL     time.Duration `yaml:"history_ttl"`
		RichListTTL    time.Duration `yaml:"richlist_ttl"`
		BurnTTL        time.Duration `yaml:"burn_ttl"`
		SocialTTL      time.Duration `yaml:"social_ttl"`
		ComputeTimeout time.Duration `yaml:"compute_timeout"`
	} `yaml:"cache"`
	Upstream struct {
		Timeout time.Duration `yaml:"timeout"`
		Proxy   string        `yaml:"proxy"`
	} `yaml:"upstream"`
	DataSource struct {
		Provider    string `yaml:"provider"` // yahoo, rest or mock
		BaseURL     string `yaml:"base_url"`
		APIKey      string `yaml:"api_key"`
		Concurrency int    `yaml:"concurrency"`
		ProbeSymbol string `yaml:"probe_symbol"`
	} `yaml:"data_source"`
	Groups []model.Group `yaml:"groups"`
	XRPL   struct {
		Endpoints     []string        `yaml:"endpoints"`
		MinIndex      int64           `yaml:"min_index"`
		FloorInterval time.Duration   `yaml:"floor_interval"`
		Margin        float64         `yaml:"margin"`
		Periods       []ledger.Period `yaml:"periods"`
	} `yaml:"xrpl"`
	RichList struct {
		URL            string `yaml:"url"`
		APIKey         string `yaml:"api_key"`
		Limit          int    `yaml:"limit"`
		WhaleThreshold string `yaml:"whale_threshold"`
	} `yaml:"richlist"`
	Social struct {
		BaseURL string `yaml:"base_url"`
		APIKey  string `yaml:"api_key"`
		Topic   string `yaml:"topic"`
	} `yaml:"social"`
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	Schedule struct {
		SnapshotCron string `yaml:"snapshot_cron"`
		BurnCron     string `yaml:"burn_cron"`
		RichListCron string `yaml:"richlist_cron"`
		DigestCron   string `yaml:"digest_cron"`
	} `yaml:"schedule"`
	Recorder struct {
		Driver     string `yaml:"driver"` // sqlite, clickhouse or none
		SQLitePath string `yaml:"sqlite_path"`
		ClickHouse struct {
			Addr     string `yaml:"addr"`
			Database string `yaml:"database"`
			Username string `yaml:"username"`
			Password string `yaml:"password"`
		} `yaml:"clickhouse"`
	} `yaml:"recorder"`
}

// LoadDotEnv loads variables from an env file without overriding the
// environment. A missing file is not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Load reads config from a YAML file, then applies environment variable
// overrides and defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() error {
	strs := map[string]*string{
		"LISTEN_ADDR":          &c.Server.Addr,
		"ADMIN_TOKEN":          &c.Server.AdminToken,
		"LOG_LEVEL":            &c.Log.Level,
		"LOG_DIR":              &c.Log.Dir,
		"HTTPS_PROXY":          &c.Upstream.Proxy,
		"DATA_SOURCE_PROVIDER": &c.DataSource.Provider,
		"DATA_SOURCE_BASE_URL": &c.DataSource.BaseURL,
		"DATA_SOURCE_API_KEY":  &c.DataSource.APIKey,
		"RICHLIST_URL":         &c.RichList.URL,
		"RICHLIST_API_KEY":     &c.RichList.APIKey,
		"LUNARCRUSH_API_KEY":   &c.Social.APIKey,
		"TELEGRAM_BOT_TOKEN":   &c.Telegram.BotToken,
		"TELEGRAM_CHAT_ID":     &c.Telegram.ChatID,
		"RECORDER_DRIVER":      &c.Recorder.Driver,
		"SQLITE_PATH":          &c.Recorder.SQLitePath,
		"CLICKHOUSE_ADDR":      &c.Recorder.ClickHouse.Addr,
		"CLICKHOUSE_DB":        &c.Recorder.ClickHouse.Database,
		"CLICKHOUSE_USER":      &c.Recorder.ClickHouse.Username,
		"CLICKHOUSE_PASSWORD":  &c.Recorder.ClickHouse.Password,
	}
	for key, dst := range strs {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	if v := os.Getenv("XRPL_ENDPOINTS"); v != "" {
		c.XRPL.Endpoints = splitList(v)
	}
	if v := os.Getenv("UPSTREAM_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("UPSTREAM_TIMEOUT: %w", err)
		}
		c.Upstream.Timeout = d
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":5000"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}

	if c.Cache.SnapshotTTL == 0 {
		c.Cache.SnapshotTTL = 300 * time.Second
	}
	if c.Cache.HistoryTTL == 0 {
		c.Cache.HistoryTTL = 600 * time.Second
	}
	if c.Cache.RichListTTL == 0 {
		c.Cache.RichListTTL = 24 * time.Hour
	}
	if c.Cache.BurnTTL == 0 {
		c.Cache.BurnTTL = time.Hour
	}
	if c.Cache.SocialTTL == 0 {
		c.Cache.SocialTTL = 300 * time.Second
	}
	if c.Cache.ComputeTimeout == 0 {
		c.Cache.ComputeTimeout = 2 * time.Minute
	}
	if c.Upstream.Timeout == 0 {
		c.Upstream.Timeout = 20 * time.Second
	}

	if c.DataSource.Provider == "" {
		c.DataSource.Provider = "yahoo"
	}
	if c.DataSource.Concurrency == 0 {
		c.DataSource.Concurrency = 4
	}
	if c.DataSource.ProbeSymbol == "" {
		c.DataSource.ProbeSymbol = "BITW"
	}
	if len(c.Groups) == 0 {
		c.Groups = DefaultGroups()
	}
	for gi := range c.Groups {
		for ii := range c.Groups[gi].Instruments {
			c.Groups[gi].Instruments[ii].Group = c.Groups[gi].Name
		}
	}

	if len(c.XRPL.Endpoints) == 0 {
		c.XRPL.Endpoints = []string{"wss://xrplcluster.com", "wss://s1.ripple.com", "https://xrplcluster.com"}
	}
	if c.XRPL.MinIndex == 0 {
		c.XRPL.MinIndex = 32570 // oldest ledger kept by full-history servers
	}
	if c.XRPL.FloorInterval == 0 {
		c.XRPL.FloorInterval = 3 * time.Second
	}
	if c.XRPL.Margin == 0 {
		c.XRPL.Margin = 0.1
	}
	if len(c.XRPL.Periods) == 0 {
		c.XRPL.Periods = append([]ledger.Period(nil), ledger.DefaultPeriods...)
	}

	if c.RichList.Limit == 0 {
		c.RichList.Limit = 100
	}
	if c.RichList.WhaleThreshold == "" {
		c.RichList.WhaleThreshold = "1000000"
	}
	if c.Social.Topic == "" {
		c.Social.Topic = "xrp"
	}

	if c.Schedule.SnapshotCron == "" {
		c.Schedule.SnapshotCron = "0 */5 * * * *"
	}
	if c.Schedule.BurnCron == "" {
		c.Schedule.BurnCron = "0 0 * * * *"
	}
	if c.Schedule.RichListCron == "" {
		c.Schedule.RichListCron = "0 10 0 * * *"
	}
	if c.Schedule.DigestCron == "" {
		c.Schedule.DigestCron = "0 0 22 * * *"
	}

	if c.Recorder.Driver == "" {
		c.Recorder.Driver = "sqlite"
	}
	if c.Recorder.SQLitePath == "" {
		c.Recorder.SQLitePath = "data/flow_sentinel.db"
	}
	if c.Recorder.ClickHouse.Database == "" {
		c.Recorder.ClickHouse.Database = "default"
	}
}

// WhaleThreshold returns the parsed rich-list whale threshold.
func (c *Config) WhaleThreshold() decimal.Decimal {
	d, err := decimal.NewFromString(c.RichList.WhaleThreshold)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// Validate checks that the configuration is usable. Optional features with
// missing credentials are not errors; see Disabled.
func (c *Config) Validate() error {
	switch c.DataSource.Provider {
	case "yahoo", "mock":
	case "rest":
		if c.DataSource.BaseURL == "" {
			return fmt.Errorf("data_source.base_url is required for the rest provider")
		}
	default:
		return fmt.Errorf("data_source.provider %q is not one of yahoo, rest, mock", c.DataSource.Provider)
	}

	ttls := map[string]time.Duration{
		"cache.snapshot_ttl": c.Cache.SnapshotTTL,
		"cache.history_ttl":  c.Cache.HistoryTTL,
		"cache.richlist_ttl": c.Cache.RichListTTL,
		"cache.burn_ttl":     c.Cache.BurnTTL,
		"cache.social_ttl":   c.Cache.SocialTTL,
		"upstream.timeout":   c.Upstream.Timeout,
	}
	for name, d := range ttls {
		if d < 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}

	for _, g := range c.Groups {
		if g.Name == "" {
			return fmt.Errorf("groups: every group needs a name")
		}
		seen := make(map[string]bool, len(g.Instruments))
		for _, inst := range g.Instruments {
			if inst.Symbol == "" {
				return fmt.Errorf("group %q: empty symbol", g.Name)
			}
			if seen[inst.Symbol] {
				return fmt.Errorf("group %q: duplicate symbol %s", g.Name, inst.Symbol)
			}
			seen[inst.Symbol] = true
		}
	}

	if c.XRPL.Margin < 0 {
		return fmt.Errorf("xrpl.margin must not be negative")
	}
	periods := make(map[string]bool, len(c.XRPL.Periods))
	for _, p := range c.XRPL.Periods {
		if p.Name == "" || p.Days <= 0 {
			return fmt.Errorf("xrpl.periods: %q needs a name and positive days", p.Name)
		}
		if periods[p.Name] {
			return fmt.Errorf("xrpl.periods: duplicate period %s", p.Name)
		}
		periods[p.Name] = true
	}

	if _, err := decimal.NewFromString(c.RichList.WhaleThreshold); err != nil {
		return fmt.Errorf("richlist.whale_threshold: %w", err)
	}

	switch c.Recorder.Driver {
	case "sqlite", "none":
	case "clickhouse":
		if c.Recorder.ClickHouse.Addr == "" {
			return fmt.Errorf("recorder.clickhouse.addr is required for the clickhouse driver")
		}
	default:
		return fmt.Errorf("recorder.driver %q is not one of sqlite, clickhouse, none", c.Recorder.Driver)
	}
	return nil
}

// Disabled lists optional features whose credentials or endpoints are
// missing, with the setting that would enable each.
func (c *Config) Disabled() map[string]string {
	out := map[string]string{}
	if c.Telegram.BotToken == "" || c.Telegram.ChatID == "" {
		out["telegram"] = "telegram.bot_token and telegram.chat_id"
	}
	if c.Social.APIKey == "" {
		out["social"] = "social.api_key"
	}
	if c.RichList.URL == "" {
		out["richlist"] = "richlist.url"
	}
	if len(c.XRPL.Endpoints) == 0 {
		out["burn"] = "xrpl.endpoints"
	}
	if c.Server.AdminToken == "" {
		out["admin"] = "server.admin_token"
	}
	return out
}
