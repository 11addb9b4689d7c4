package telegram

import (
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"

	coreconfig "github.com/ashbolt/coursebot/core/config"
)

func TestDefaultMiddlewares(t *testing.T) {
	names := func(mws []Middleware) []string {
		return lo.Map(mws, func(m Middleware, _ int) string { return m.Name })
	}

	require.Equal(t, []string{"recover", "logger", "metrics"}, names(DefaultMiddlewares(nil, nil)))

	cfg := &coreconfig.Config{}
	cfg.RateLimit.IntervalMS = 700
	cfg.RateLimit.ExcludeUpdates = []string{coreconfig.UpdatePhoto}
	require.Equal(t, []string{"recover", "rate_limit", "logger", "metrics"}, names(DefaultMiddlewares(cfg, nil)))
}
