package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notion-post-bot/workflow"
)

const credentials = `
notion_api_key: "notion-key"
notion_database_id: "db"
gemini_api_key: "gemini-key"
`

const minimal = credentials + "dry_run: true\n"

// clearEnv blanks every variable Load reads so the host environment cannot leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"NOTE_BOT_CONFIG", "NOTE_BOT_DRY_RUN",
		"NOTION_API_KEY", "NOTION_DATABASE_ID", "GEMINI_API_KEY",
		"TWITTER_API_KEY", "TWITTER_API_SECRET", "TWITTER_ACCESS_TOKEN", "TWITTER_ACCESS_TOKEN_SECRET",
		"TELEGRAM_TOKEN", "TELEGRAM_CHAT_ID",
	} {
		t.Setenv(k, "")
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(writeConfig(t, minimal))
	require.NoError(t, err)

	assert.Equal(t, "2022-06-28", cfg.NotionAPIVersion)
	assert.Equal(t, "サマリ対象", cfg.NotionFilterProperty)
	assert.Equal(t, "名前", cfg.NotionTitleProperty)
	assert.Equal(t, "作成日時", cfg.NotionSortProperty)
	assert.Equal(t, 365, cfg.LookbackDays)
	assert.False(t, cfg.ExpandBookmarks)
	assert.Equal(t, "gemini-2.0-flash", cfg.ModelName)
	assert.Equal(t, 0.5, *cfg.Temperature)
	assert.Equal(t, 15, cfg.RequestsPerMinute)
	assert.Equal(t, 3, *cfg.MaxTrials)
	assert.Equal(t, 30, cfg.FetchTimeoutSecs)
	assert.Equal(t, 300, cfg.RunTimeoutSecs)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.TelegramEnabled())

	wf := cfg.Workflow()
	assert.Equal(t, 300, wf.BlockMinChars)
	assert.Equal(t, 600, wf.BlockMaxChars)
	assert.Equal(t, 110, wf.PostMinChars)
	assert.Equal(t, 140, wf.PostMaxChars)
	assert.Equal(t, 3, wf.MaxTrials)

	sel := cfg.Selector()
	assert.Equal(t, 24*time.Hour, sel.RecentWithin)
	assert.Equal(t, 7*24*time.Hour, sel.MidWithin)
	assert.Equal(t, 0.6, sel.RecentWeight)
	assert.Equal(t, 0.2, sel.MidWeight)
	assert.Equal(t, 0.2, sel.OldWeight)

	assert.Equal(t, 365*24*time.Hour, cfg.Lookback())
	assert.Equal(t, 30*time.Second, cfg.FetchTimeout())
	assert.Equal(t, 5*time.Minute, cfg.RunTimeout())
}

func TestLoadOverrideDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(writeConfig(t, minimal+`
model_name: "gemini-1.5-pro"
temperature: 0
max_trials: 0
post_min_chars: 50
post_max_chars: 70
recent_within_hours: 12
mid_within_days: 3
recent_weight: 1
mid_weight: 0
old_weight: 0
lookback_days: 30
expand_bookmarks: true
telegram_token: "tg"
telegram_chat_id: 42
log_level: "debug"
`))
	require.NoError(t, err)

	assert.Equal(t, "gemini-1.5-pro", cfg.ModelName)
	assert.Equal(t, 0.0, *cfg.Temperature)
	assert.Equal(t, 0, cfg.Workflow().MaxTrials)
	assert.Equal(t, 50, cfg.Workflow().PostMinChars)
	assert.Equal(t, 70, cfg.Workflow().PostMaxChars)
	assert.Equal(t, 12*time.Hour, cfg.Selector().RecentWithin)
	assert.Equal(t, 3*24*time.Hour, cfg.Selector().MidWithin)
	assert.Equal(t, 0.0, cfg.Selector().MidWeight)
	assert.True(t, cfg.ExpandBookmarks)
	assert.True(t, cfg.TelegramEnabled())
	assert.Equal(t, 30*24*time.Hour, cfg.Lookback())
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("NOTION_API_KEY", "env-notion")
	t.Setenv("GEMINI_API_KEY", "env-gemini")
	t.Setenv("TWITTER_API_KEY", "ck")
	t.Setenv("TWITTER_API_SECRET", "cs")
	t.Setenv("TWITTER_ACCESS_TOKEN", "at")
	t.Setenv("TWITTER_ACCESS_TOKEN_SECRET", "as")
	t.Setenv("NOTE_BOT_DRY_RUN", "false")

	cfg, err := Load(writeConfig(t, minimal))
	require.NoError(t, err)

	assert.Equal(t, "env-notion", cfg.NotionAPIKey)
	assert.Equal(t, "env-gemini", cfg.GeminiAPIKey)
	assert.Equal(t, "ck", cfg.TwitterAPIKey)
	assert.Equal(t, "as", cfg.TwitterAccessTokenSecret)
	assert.False(t, cfg.DryRun)
}

func TestLoadMissingFileUsesEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("NOTION_API_KEY", "n")
	t.Setenv("NOTION_DATABASE_ID", "db")
	t.Setenv("GEMINI_API_KEY", "g")
	t.Setenv("NOTE_BOT_DRY_RUN", "1")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.True(t, cfg.DryRun)
	assert.Equal(t, "db", cfg.NotionDatabaseID)
}

func TestLoadBadDryRunValue(t *testing.T) {
	clearEnv(t)
	t.Setenv("NOTE_BOT_DRY_RUN", "maybe")

	_, err := Load(writeConfig(t, minimal))
	assert.ErrorContains(t, err, "NOTE_BOT_DRY_RUN")
}

func TestLoadTelegramFromEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("TELEGRAM_TOKEN", "bot-token")
	t.Setenv("TELEGRAM_CHAT_ID", "-1001234567890")

	cfg, err := Load(writeConfig(t, minimal))
	require.NoError(t, err)
	assert.Equal(t, "bot-token", cfg.TelegramToken)
	assert.Equal(t, int64(-1001234567890), cfg.TelegramChatID)
	assert.True(t, cfg.TelegramEnabled())
}

func TestLoadBadTelegramChatID(t *testing.T) {
	clearEnv(t)
	t.Setenv("TELEGRAM_TOKEN", "bot-token")
	t.Setenv("TELEGRAM_CHAT_ID", "@channel")

	_, err := Load(writeConfig(t, minimal))
	assert.ErrorContains(t, err, "TELEGRAM_CHAT_ID")
}

func TestRunTimeout(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want time.Duration
	}{
		{"unset", "", 300 * time.Second},
		{"zero", "run_timeout_secs: 0\n", 300 * time.Second},
		{"explicit", "run_timeout_secs: 45\n", 45 * time.Second},
		{"negative disables", "run_timeout_secs: -1\n", -time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			cfg, err := Load(writeConfig(t, minimal+tt.yaml))
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.RunTimeout())
		})
	}
}

func TestPromptTemplates(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(writeConfig(t, minimal+`
prompts:
  post_generation: "Summarize in {{.min_chars}}-{{.max_chars}} chars: {{.content}}"
`))
	require.NoError(t, err)

	defaults := workflow.DefaultPrompts()
	p := cfg.PromptTemplates()
	assert.Equal(t, "Summarize in {{.min_chars}}-{{.max_chars}} chars: {{.content}}", p.PostGeneration)
	assert.Equal(t, defaults.BlockSelection, p.BlockSelection)
	assert.Equal(t, defaults.AdjustPost, p.AdjustPost)
}

func TestLoadInvalidPromptTemplate(t *testing.T) {
	clearEnv(t)
	_, err := Load(writeConfig(t, minimal+`
prompts:
  adjust_post: "{{.content"
`))
	assert.ErrorContains(t, err, "prompts.adjust_post")
}

func TestLoadInvalidYAML(t *testing.T) {
	clearEnv(t)

	_, err := Load(writeConfig(t, "notion_api_key: [unclosed"))
	assert.ErrorContains(t, err, "parse config yaml")
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name    string
		extra   string
		wantErr string
	}{
		{"post min above max", "post_min_chars: 150\npost_max_chars: 140\n", "post bounds"},
		{"block min negative", "block_min_chars: -1\n", "block bounds"},
		{"negative trials", "max_trials: -1\n", "max_trials"},
		{"negative weight", "mid_weight: -0.1\n", "must not be negative"},
		{"zero weights", "recent_weight: 0\nmid_weight: 0\nold_weight: 0\n", "positive sum"},
		{"recent not shorter than mid", "recent_within_hours: 168\nmid_within_days: 7\n", "must be shorter"},
		{"temperature out of range", "temperature: 2.5\n", "temperature"},
		{"telegram half configured", "telegram_token: \"tg\"\n", "telegram_token and telegram_chat_id"},
		{"unknown log level", "log_level: \"loud\"\n", "log_level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			_, err := Load(writeConfig(t, minimal+tt.extra))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadTwitterRequiredWithoutDryRun(t *testing.T) {
	clearEnv(t)

	_, err := Load(writeConfig(t, credentials))
	assert.ErrorContains(t, err, "twitter credentials")
}

func TestLoadRequiredKeys(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"notion key", "notion_database_id: db\ngemini_api_key: g\ndry_run: true\n", "notion_api_key"},
		{"database", "notion_api_key: n\ngemini_api_key: g\ndry_run: true\n", "notion_database_id"},
		{"gemini key", "notion_api_key: n\nnotion_database_id: db\ndry_run: true\n", "gemini_api_key"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			_, err := Load(writeConfig(t, tt.content))
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestGetConfigPath(t *testing.T) {
	t.Setenv("NOTE_BOT_CONFIG", "")
	assert.Equal(t, "./config.yaml", GetConfigPath())

	t.Setenv("NOTE_BOT_CONFIG", "/etc/bot.yaml")
	assert.Equal(t, "/etc/bot.yaml", GetConfigPath())
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	} {
		got, err := ParseLevel(in)
		require.NoError(t, err)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("verbose")
	assert.Error(t, err)
}
