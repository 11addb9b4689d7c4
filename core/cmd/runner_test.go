package cmd

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	coreconfig "github.com/ashbolt/coursebot/core/config"
	coretelegram "github.com/ashbolt/coursebot/core/telegram"
)

type carrier struct{ cfg *coreconfig.Config }

func (c carrier) CoreConfig() *coreconfig.Config { return c.cfg }

type fakeApp struct {
	optsErr error
	closed  int
	started int
	stopped int
}

func (a *fakeApp) TelegramRunOptions() (coretelegram.RunOptions, error) {
	if a.optsErr != nil {
		return coretelegram.RunOptions{}, a.optsErr
	}
	return coretelegram.RunOptions{
		OnStart: func(context.Context, coretelegram.Runtime) error { a.started++; return nil },
		OnStop:  func(context.Context, coretelegram.Runtime) error { a.stopped++; return nil },
	}, nil
}

func (a *fakeApp) Close() error { a.closed++; return nil }

func baseOptions(app *fakeApp, flushed *int) Options {
	return Options{
		ConfigEnvVar:      "COURSEBOT_TEST_CONFIG",
		DefaultConfigPath: "config.yaml",
		LoadConfig: func(string) (ConfigCarrier, error) {
			return carrier{cfg: &coreconfig.Config{}}, nil
		},
		Bootstrap: func(context.Context, ConfigCarrier) (TelegramApp, error) {
			return app, nil
		},
		ShutdownLogger: func() error { *flushed++; return nil },
	}
}

func TestRun_WrapsLifecycleHooks(t *testing.T) {
	app := &fakeApp{}
	flushed := 0
	opts := baseOptions(app, &flushed)
	opts.RunTelegram = func(ctx context.Context, ro coretelegram.RunOptions) error {
		require.NoError(t, ro.OnStart(ctx, coretelegram.Runtime{}))
		require.NoError(t, ro.OnStop(ctx, coretelegram.Runtime{}))
		return nil
	}

	require.NoError(t, Run(opts))
	require.Equal(t, 1, app.started)
	require.Equal(t, 1, app.stopped)
	require.Zero(t, app.closed)
	require.Equal(t, 1, flushed)
}

func TestRun_ClosesAppWhenOptionsFail(t *testing.T) {
	app := &fakeApp{optsErr: errors.New("no token")}
	flushed := 0
	opts := baseOptions(app, &flushed)
	opts.RunTelegram = func(context.Context, coretelegram.RunOptions) error {
		t.Fatal("must not run")
		return nil
	}

	err := Run(opts)
	require.ErrorContains(t, err, "no token")
	require.Equal(t, 1, app.closed)
	require.Equal(t, 1, flushed)
}

func TestRun_FlushesLoggerOnBootstrapFailure(t *testing.T) {
	flushed := 0
	opts := baseOptions(&fakeApp{}, &flushed)
	opts.Bootstrap = func(context.Context, ConfigCarrier) (TelegramApp, error) {
		return nil, errors.New("db down")
	}
	require.ErrorContains(t, Run(opts), "db down")
	require.Equal(t, 1, flushed)
}

func TestConfigPath(t *testing.T) {
	t.Setenv("COURSEBOT_TEST_CONFIG", "/etc/coursebot.yaml")
	p, err := configPath(Options{ConfigEnvVar: "COURSEBOT_TEST_CONFIG", DefaultConfigPath: "config.yaml"})
	require.NoError(t, err)
	require.Equal(t, "/etc/coursebot.yaml", p)

	t.Setenv("COURSEBOT_TEST_CONFIG", "")
	_, err = configPath(Options{ConfigEnvVar: "COURSEBOT_TEST_CONFIG"})
	require.Error(t, err)

	require.Error(t, Run(Options{}))
}
