package logger

import (
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	coreconfig "github.com/ashbolt/coursebot/core/config"
)

// options is the resolved logging setup derived from configuration.
type options struct {
	format   logFormat
	keyOrder []string
	level    slog.Level
	sampleN  int
	sampleD  int
	profile  string
}

func resolveOptions(cfg *coreconfig.Config) options {
	opts := options{
		format:   formatJSON,
		keyOrder: append([]string(nil), defaultKeyOrder...),
		level:    slog.LevelInfo,
		sampleN:  1,
		sampleD:  50,
	}
	if cfg == nil {
		return opts
	}
	lc := cfg.Logging

	opts.profile = strings.ToLower(strings.TrimSpace(lc.Profile))
	if opts.profile == "" {
		opts.profile = "prod"
	}

	switch strings.ToLower(strings.TrimSpace(lc.Format)) {
	case "kv", "text", "pretty":
		opts.format = formatKV
	case "json":
	default:
		if opts.profile == "debug" || opts.profile == "dev" {
			opts.format = formatKV
		}
	}

	if raw := strings.TrimSpace(lc.KeysOrder); raw != "" && raw != "default" {
		var order []string
		for _, k := range strings.Split(raw, ",") {
			if k = strings.TrimSpace(k); k != "" {
				order = append(order, k)
			}
		}
		if len(order) > 0 {
			opts.keyOrder = order
		}
	}

	level := strings.ToLower(strings.TrimSpace(lc.Level))
	if level == "warning" {
		level = "warn"
	}
	if level != "" {
		// unknown names keep the info default
		_ = opts.level.UnmarshalText([]byte(level))
	}

	if spec := strings.TrimSpace(lc.DebugSample); spec != "" {
		switch num, den := parseRatioSpec(spec); {
		case num == 0 && den == 0:
			opts.sampleN, opts.sampleD = 0, 0
		case num > 0 && den > 0:
			opts.sampleN, opts.sampleD = num, den
		}
	}
	return opts
}

// openOutputs returns stdout plus the optional log file. A file that cannot be
// opened is reported on the standard logger and skipped.
func openOutputs(cfg *coreconfig.Config) ([]io.Writer, []io.Closer) {
	writers := []io.Writer{os.Stdout}
	if cfg == nil {
		return writers, nil
	}
	dir := strings.TrimSpace(cfg.Logging.Dir)
	file := strings.TrimSpace(cfg.Logging.BotFile)
	if dir == "" || file == "" {
		return writers, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Printf("logger: create log dir %s: %v", dir, err)
		return writers, nil
	}
	path := filepath.Join(dir, file)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		log.Printf("logger: open log file %s: %v", path, err)
		return writers, nil
	}
	return append(writers, f), []io.Closer{f}
}

func traceRequested() bool {
	for _, key := range []string{"TRACE", "LOG_TRACE"} {
		switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
		case "1", "true", "on", "yes":
			return true
		}
	}
	return false
}
