package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"text/template"
	"time"

	"gopkg.in/yaml.v3"

	"notion-post-bot/selector"
	"notion-post-bot/workflow"
)

// Config holds all application configuration.
type Config struct {
	NotionAPIKey         string `yaml:"notion_api_key"`
	NotionDatabaseID     string `yaml:"notion_database_id"`
	NotionAPIVersion     string `yaml:"notion_api_version"`
	NotionFilterProperty string `yaml:"notion_filter_property"`
	NotionTitleProperty  string `yaml:"notion_title_property"`
	NotionSortProperty   string `yaml:"notion_sort_property"`
	LookbackDays         int    `yaml:"lookback_days"`
	ExpandBookmarks      bool   `yaml:"expand_bookmarks"`

	GeminiAPIKey      string   `yaml:"gemini_api_key"`
	ModelName         string   `yaml:"model_name"`
	Temperature       *float64 `yaml:"temperature"`
	RequestsPerMinute int      `yaml:"requests_per_minute"`

	BlockMinChars int  `yaml:"block_min_chars"`
	BlockMaxChars int  `yaml:"block_max_chars"`
	PostMinChars  int  `yaml:"post_min_chars"`
	PostMaxChars  int  `yaml:"post_max_chars"`
	MaxTrials     *int `yaml:"max_trials"`

	Prompts PromptOverrides `yaml:"prompts"`

	RecentWithinHours int      `yaml:"recent_within_hours"`
	MidWithinDays     int      `yaml:"mid_within_days"`
	RecentWeight      *float64 `yaml:"recent_weight"`
	MidWeight         *float64 `yaml:"mid_weight"`
	OldWeight         *float64 `yaml:"old_weight"`

	TwitterAPIKey            string `yaml:"twitter_api_key"`
	TwitterAPISecret         string `yaml:"twitter_api_secret"`
	TwitterAccessToken       string `yaml:"twitter_access_token"`
	TwitterAccessTokenSecret string `yaml:"twitter_access_token_secret"`
	DryRun                   bool   `yaml:"dry_run"`

	TelegramToken  string `yaml:"telegram_token"`
	TelegramChatID int64  `yaml:"telegram_chat_id"`

	FetchTimeoutSecs int    `yaml:"fetch_timeout_secs"`
	RunTimeoutSecs   int    `yaml:"run_timeout_secs"`
	MetricsTextfile  string `yaml:"metrics_textfile"`
	TraceStdout      bool   `yaml:"trace_stdout"`
	LogLevel         string `yaml:"log_level"`
}

// PromptOverrides replaces the built-in prompt templates. Empty fields keep the default.
type PromptOverrides struct {
	BlockSelection string `yaml:"block_selection"`
	PostGeneration string `yaml:"post_generation"`
	AdjustPost     string `yaml:"adjust_post"`
}

// Load reads configuration from a YAML file and applies defaults.
// A missing file is not an error when the environment supplies the secrets.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config yaml: %w", err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("read config file: %w", err)
	}

	applyDefaults(cfg)
	if err := applyEnvironmentOverrides(cfg); err != nil {
		return nil, err
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// GetConfigPath returns the config file path from environment or default.
func GetConfigPath() string {
	if path := os.Getenv("NOTE_BOT_CONFIG"); path != "" {
		return path
	}
	return "./config.yaml"
}

func float(v float64) *float64 { return &v }

func applyDefaults(cfg *Config) {
	if cfg.NotionAPIVersion == "" {
		cfg.NotionAPIVersion = "2022-06-28"
	}
	if cfg.NotionFilterProperty == "" {
		cfg.NotionFilterProperty = "サマリ対象"
	}
	if cfg.NotionTitleProperty == "" {
		cfg.NotionTitleProperty = "名前"
	}
	if cfg.NotionSortProperty == "" {
		cfg.NotionSortProperty = "作成日時"
	}
	if cfg.LookbackDays == 0 {
		cfg.LookbackDays = 365
	}
	if cfg.ModelName == "" {
		cfg.ModelName = "gemini-2.0-flash"
	}
	if cfg.Temperature == nil {
		cfg.Temperature = float(0.5)
	}
	if cfg.RequestsPerMinute == 0 {
		cfg.RequestsPerMinute = 15
	}

	wf := workflow.DefaultConfig()
	if cfg.BlockMinChars == 0 {
		cfg.BlockMinChars = wf.BlockMinChars
	}
	if cfg.BlockMaxChars == 0 {
		cfg.BlockMaxChars = wf.BlockMaxChars
	}
	if cfg.PostMinChars == 0 {
		cfg.PostMinChars = wf.PostMinChars
	}
	if cfg.PostMaxChars == 0 {
		cfg.PostMaxChars = wf.PostMaxChars
	}
	if cfg.MaxTrials == nil {
		n := wf.MaxTrials
		cfg.MaxTrials = &n
	}

	sel := selector.DefaultConfig()
	if cfg.RecentWithinHours == 0 {
		cfg.RecentWithinHours = int(sel.RecentWithin / time.Hour)
	}
	if cfg.MidWithinDays == 0 {
		cfg.MidWithinDays = int(sel.MidWithin / (24 * time.Hour))
	}
	if cfg.RecentWeight == nil {
		cfg.RecentWeight = float(sel.RecentWeight)
	}
	if cfg.MidWeight == nil {
		cfg.MidWeight = float(sel.MidWeight)
	}
	if cfg.OldWeight == nil {
		cfg.OldWeight = float(sel.OldWeight)
	}

	if cfg.FetchTimeoutSecs == 0 {
		cfg.FetchTimeoutSecs = 30
	}
	if cfg.RunTimeoutSecs == 0 {
		cfg.RunTimeoutSecs = 300
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
}

func applyEnvironmentOverrides(cfg *Config) error {
	secrets := []struct {
		env string
		dst *string
	}{
		{"NOTION_API_KEY", &cfg.NotionAPIKey},
		{"NOTION_DATABASE_ID", &cfg.NotionDatabaseID},
		{"GEMINI_API_KEY", &cfg.GeminiAPIKey},
		{"TWITTER_API_KEY", &cfg.TwitterAPIKey},
		{"TWITTER_API_SECRET", &cfg.TwitterAPISecret},
		{"TWITTER_ACCESS_TOKEN", &cfg.TwitterAccessToken},
		{"TWITTER_ACCESS_TOKEN_SECRET", &cfg.TwitterAccessTokenSecret},
		{"TELEGRAM_TOKEN", &cfg.TelegramToken},
	}
	for _, s := range secrets {
		if v := os.Getenv(s.env); v != "" {
			*s.dst = v
		}
	}

	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		chatID, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("parse TELEGRAM_CHAT_ID %q: %w", v, err)
		}
		cfg.TelegramChatID = chatID
	}

	if v := os.Getenv("NOTE_BOT_DRY_RUN"); v != "" {
		dryRun, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("parse NOTE_BOT_DRY_RUN %q: %w", v, err)
		}
		cfg.DryRun = dryRun
	}
	return nil
}

func validate(cfg *Config) error {
	if cfg.NotionAPIKey == "" {
		return fmt.Errorf("notion_api_key is required")
	}
	if cfg.NotionDatabaseID == "" {
		return fmt.Errorf("notion_database_id is required")
	}
	if cfg.GeminiAPIKey == "" {
		return fmt.Errorf("gemini_api_key is required")
	}
	if !cfg.DryRun {
		if cfg.TwitterAPIKey == "" || cfg.TwitterAPISecret == "" ||
			cfg.TwitterAccessToken == "" || cfg.TwitterAccessTokenSecret == "" {
			return fmt.Errorf("twitter credentials are required unless dry_run is set")
		}
	}
	if (cfg.TelegramToken == "") != (cfg.TelegramChatID == 0) {
		return fmt.Errorf("telegram_token and telegram_chat_id must be set together")
	}

	if cfg.LookbackDays < 0 {
		return fmt.Errorf("lookback_days must not be negative, got %d", cfg.LookbackDays)
	}
	if t := *cfg.Temperature; t < 0 || t > 2 {
		return fmt.Errorf("temperature must be within 0-2, got %g", t)
	}
	if cfg.BlockMinChars <= 0 || cfg.BlockMinChars > cfg.BlockMaxChars {
		return fmt.Errorf("block bounds must satisfy 0 < min <= max, got %d-%d", cfg.BlockMinChars, cfg.BlockMaxChars)
	}
	if cfg.PostMinChars <= 0 || cfg.PostMinChars > cfg.PostMaxChars {
		return fmt.Errorf("post bounds must satisfy 0 < min <= max, got %d-%d", cfg.PostMinChars, cfg.PostMaxChars)
	}
	if *cfg.MaxTrials < 0 {
		return fmt.Errorf("max_trials must not be negative, got %d", *cfg.MaxTrials)
	}

	if cfg.RecentWithinHours <= 0 || cfg.MidWithinDays <= 0 {
		return fmt.Errorf("tier thresholds must be positive")
	}
	if time.Duration(cfg.RecentWithinHours)*time.Hour >= time.Duration(cfg.MidWithinDays)*24*time.Hour {
		return fmt.Errorf("recent_within_hours (%d) must be shorter than mid_within_days (%d)", cfg.RecentWithinHours, cfg.MidWithinDays)
	}
	weights := []float64{*cfg.RecentWeight, *cfg.MidWeight, *cfg.OldWeight}
	var total float64
	for _, w := range weights {
		if w < 0 {
			return fmt.Errorf("tier weights must not be negative, got %v", weights)
		}
		total += w
	}
	if total <= 0 {
		return fmt.Errorf("tier weights must have a positive sum")
	}

	prompts := []struct {
		key  string
		text string
	}{
		{"prompts.block_selection", cfg.Prompts.BlockSelection},
		{"prompts.post_generation", cfg.Prompts.PostGeneration},
		{"prompts.adjust_post", cfg.Prompts.AdjustPost},
	}
	for _, p := range prompts {
		if p.text == "" {
			continue
		}
		if _, err := template.New(p.key).Parse(p.text); err != nil {
			return fmt.Errorf("%s: %w", p.key, err)
		}
	}

	if _, err := ParseLevel(cfg.LogLevel); err != nil {
		return err
	}
	return nil
}

// ParseLevel maps a log_level string to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log_level %q", s)
}

// Selector returns the tier configuration for candidate selection.
func (c *Config) Selector() selector.Config {
	return selector.Config{
		RecentWithin: time.Duration(c.RecentWithinHours) * time.Hour,
		MidWithin:    time.Duration(c.MidWithinDays) * 24 * time.Hour,
		RecentWeight: *c.RecentWeight,
		MidWeight:    *c.MidWeight,
		OldWeight:    *c.OldWeight,
	}
}

// Workflow returns the length bounds and trial budget for generation.
func (c *Config) Workflow() workflow.Config {
	return workflow.Config{
		BlockMinChars: c.BlockMinChars,
		BlockMaxChars: c.BlockMaxChars,
		PostMinChars:  c.PostMinChars,
		PostMaxChars:  c.PostMaxChars,
		MaxTrials:     *c.MaxTrials,
	}
}

// PromptTemplates returns the built-in prompts with any configured overrides applied.
func (c *Config) PromptTemplates() workflow.Prompts {
	p := workflow.DefaultPrompts()
	if c.Prompts.BlockSelection != "" {
		p.BlockSelection = c.Prompts.BlockSelection
	}
	if c.Prompts.PostGeneration != "" {
		p.PostGeneration = c.Prompts.PostGeneration
	}
	if c.Prompts.AdjustPost != "" {
		p.AdjustPost = c.Prompts.AdjustPost
	}
	return p
}

// Lookback returns how far back candidate notes are queried.
func (c *Config) Lookback() time.Duration {
	return time.Duration(c.LookbackDays) * 24 * time.Hour
}

// FetchTimeout returns the per-request HTTP timeout.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutSecs) * time.Second
}

// RunTimeout returns the deadline for a whole run. An unset or zero
// run_timeout_secs means 300 seconds; a negative value disables the deadline.
func (c *Config) RunTimeout() time.Duration {
	return time.Duration(c.RunTimeoutSecs) * time.Second
}

// TelegramEnabled reports whether outcome notifications are configured.
func (c *Config) TelegramEnabled() bool {
	return c.TelegramToken != "" && c.TelegramChatID != 0
}
