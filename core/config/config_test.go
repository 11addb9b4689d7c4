package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func valid() *Config {
	return &Config{Telegram: TelegramConfig{Token: "123:abc", AdminID: 1000}}
}

func TestNormalize_Defaults(t *testing.T) {
	cfg := valid()
	require.NoError(t, Normalize(cfg))
	require.Equal(t, RunModeLongpoll, cfg.Telegram.RunMode)
	require.Equal(t, []string{UpdateCallback, UpdatePhoto}, cfg.RateLimit.ExcludeUpdates)

	cfg = valid()
	cfg.Telegram.RunMode = " Polling "
	require.NoError(t, Normalize(cfg))
	require.Equal(t, RunModeLongpoll, cfg.Telegram.RunMode)
}

func TestNormalize_Webhook(t *testing.T) {
	cfg := valid()
	cfg.Telegram.RunMode = "webhook"
	cfg.Webhook = WebhookConfig{URL: "https://bot.example", Port: 8443, SecretToken: "s3cret"}
	require.NoError(t, Normalize(cfg))
	require.Equal(t, "/s3cret", cfg.Webhook.Path)

	cfg.Webhook.Path = "hook"
	require.NoError(t, Normalize(cfg))
	require.Equal(t, "/hook", cfg.Webhook.Path)

	for name, mutate := range map[string]func(*WebhookConfig){
		"url":    func(w *WebhookConfig) { w.URL = "" },
		"port":   func(w *WebhookConfig) { w.Port = 0 },
		"secret": func(w *WebhookConfig) { w.SecretToken = "" },
	} {
		t.Run(name, func(t *testing.T) {
			cfg := valid()
			cfg.Telegram.RunMode = RunModeWebhook
			cfg.Webhook = WebhookConfig{URL: "https://bot.example", Port: 8443, SecretToken: "s3cret"}
			mutate(&cfg.Webhook)
			require.Error(t, Normalize(cfg))
		})
	}
}

func TestNormalize_Errors(t *testing.T) {
	require.Error(t, Normalize(nil))

	cfg := valid()
	cfg.Telegram.Token = ""
	require.ErrorContains(t, Normalize(cfg), "token")

	cfg = valid()
	cfg.Telegram.AdminID = 0
	require.ErrorContains(t, Normalize(cfg), "admin_id")

	cfg = valid()
	cfg.Telegram.RunMode = "carrier-pigeon"
	require.ErrorContains(t, Normalize(cfg), "run_mode")

	cfg = valid()
	cfg.RateLimit.ExcludeUpdates = []string{"inline_query"}
	require.ErrorContains(t, Normalize(cfg), "exclude_updates")

	cfg = valid()
	cfg.Sender.MaxRetries = -1
	require.Error(t, Normalize(cfg))
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := "telegram:\n  token: file-token\n  admin_id: 7\nrate_limit:\n  exclude_updates: [\" Callback \"]\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	t.Setenv("BOT_TOKEN", "env-token")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "env-token", cfg.Telegram.Token)
	require.Equal(t, int64(7), cfg.Telegram.AdminID)
	require.Equal(t, []string{UpdateCallback}, cfg.RateLimit.ExcludeUpdates)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorContains(t, err, "read config")
}
