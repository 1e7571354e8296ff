package cmd

import (
	"context"
	"errors"
	"testing"

	coreconfig "github.com/m3rciful/meterbot/core/config"
	coretelegram "github.com/m3rciful/meterbot/core/telegram"
)

type stubConfig struct{ core *coreconfig.Config }

func (s stubConfig) CoreConfig() *coreconfig.Config { return s.core }

type stubApp struct {
	opts coretelegram.RunOptions
	err  error
}

func (a stubApp) TelegramRunOptions() (coretelegram.RunOptions, error) { return a.opts, a.err }

func TestConfigPath(t *testing.T) {
	t.Setenv("METERBOT_CONFIG", "")
	if p, err := ConfigPath("METERBOT_CONFIG", "config.yaml"); err != nil || p != "config.yaml" {
		t.Fatalf("fallback = %q, %v", p, err)
	}
	t.Setenv("METERBOT_CONFIG", "/etc/meterbot.yaml")
	if p, _ := ConfigPath("METERBOT_CONFIG", "config.yaml"); p != "/etc/meterbot.yaml" {
		t.Fatalf("env path = %q", p)
	}
	t.Setenv("METERBOT_CONFIG", "")
	if _, err := ConfigPath("METERBOT_CONFIG", ""); err == nil {
		t.Fatal("missing path accepted")
	}
}

func TestRunWrapsLifecycleHooks(t *testing.T) {
	t.Setenv("CONFIG_PATH", "test.yaml")
	var calls []string
	app := stubApp{opts: coretelegram.RunOptions{
		OnStart: func(context.Context, coretelegram.Runtime) error { calls = append(calls, "start"); return nil },
		OnStop:  func(context.Context, coretelegram.Runtime) error { calls = append(calls, "stop"); return nil },
	}}
	loggerClosed := false

	err := Run(Options{
		LoadConfig: func(path string) (ConfigCarrier, error) {
			if path != "test.yaml" {
				t.Fatalf("path = %q", path)
			}
			return stubConfig{core: &coreconfig.Config{}}, nil
		},
		Bootstrap:      func(ConfigCarrier) (TelegramApp, error) { return app, nil },
		ShutdownLogger: func() error { loggerClosed = true; return nil },
		RunTelegram: func(ctx context.Context, o coretelegram.RunOptions) error {
			if err := o.OnStart(ctx, coretelegram.Runtime{}); err != nil {
				return err
			}
			return o.OnStop(ctx, coretelegram.Runtime{})
		},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(calls) != 2 || calls[0] != "start" || calls[1] != "stop" {
		t.Fatalf("hooks = %v", calls)
	}
	if !loggerClosed {
		t.Fatal("logger not shut down")
	}
}

func TestRunErrors(t *testing.T) {
	t.Setenv("CONFIG_PATH", "x.yaml")
	boom := errors.New("boom")

	if err := Run(Options{}); err == nil {
		t.Fatal("missing callbacks accepted")
	}
	err := Run(Options{
		LoadConfig: func(string) (ConfigCarrier, error) { return nil, boom },
		Bootstrap:  func(ConfigCarrier) (TelegramApp, error) { return nil, nil },
	})
	if !errors.Is(err, boom) {
		t.Fatalf("load err = %v", err)
	}
	err = Run(Options{
		LoadConfig: func(string) (ConfigCarrier, error) { return stubConfig{}, nil },
		Bootstrap:  func(ConfigCarrier) (TelegramApp, error) { return nil, nil },
	})
	if err == nil {
		t.Fatal("config without core section accepted")
	}
	err = Run(Options{
		LoadConfig:     func(string) (ConfigCarrier, error) { return stubConfig{core: &coreconfig.Config{}}, nil },
		Bootstrap:      func(ConfigCarrier) (TelegramApp, error) { return stubApp{err: boom}, nil },
		ShutdownLogger: func() error { return nil },
	})
	if !errors.Is(err, boom) {
		t.Fatalf("options err = %v", err)
	}
}
