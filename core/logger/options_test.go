package logger

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	coreconfig "github.com/ashbolt/coursebot/core/config"
)

func TestResolveOptions(t *testing.T) {
	opts := resolveOptions(nil)
	require.Equal(t, formatJSON, opts.format)
	require.Equal(t, slog.LevelInfo, opts.level)
	require.Equal(t, defaultKeyOrder, opts.keyOrder)

	cfg := &coreconfig.Config{}
	cfg.Logging.Profile = "Dev"
	cfg.Logging.Level = "warning"
	cfg.Logging.KeysOrder = "ts, level ,event,"
	cfg.Logging.DebugSample = "0"
	opts = resolveOptions(cfg)
	require.Equal(t, "dev", opts.profile)
	require.Equal(t, formatKV, opts.format)
	require.Equal(t, slog.LevelWarn, opts.level)
	require.Equal(t, []string{"ts", "level", "event"}, opts.keyOrder)
	require.Zero(t, opts.sampleN)
	require.Zero(t, opts.sampleD)

	cfg.Logging.Format = "json"
	cfg.Logging.Level = "shout"
	cfg.Logging.DebugSample = "1/10"
	opts = resolveOptions(cfg)
	require.Equal(t, formatJSON, opts.format)
	require.Equal(t, slog.LevelInfo, opts.level)
	require.Equal(t, 1, opts.sampleN)
	require.Equal(t, 10, opts.sampleD)
}
