package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	tele "gopkg.in/telebot.v4"

	coreconfig "github.com/m3rciful/meterbot/core/config"
	"github.com/m3rciful/meterbot/core/logger"
	tghelpers "github.com/m3rciful/meterbot/core/telegram/helpers"
)

const defaultPollTimeout = 10 * time.Second

// Middleware is a named global middleware installed with bot.Use.
type Middleware struct {
	Name string
	Use  tele.MiddlewareFunc
}

// Route binds a handler to a telebot endpoint (command, tele.OnText, ...).
type Route struct {
	Endpoint any
	Handler  tele.HandlerFunc
}

// RunOptions describes the bot to assemble in RunTelegram.
type RunOptions struct {
	Config   *coreconfig.Config
	Registry *Registry

	Middlewares []Middleware
	Routes      []Route

	// KeepWebhook skips the webhook removal done before long polling starts.
	KeepWebhook bool

	OnStart func(ctx context.Context, rt Runtime) error
	OnStop  func(ctx context.Context, rt Runtime) error
}

// Runtime is handed to lifecycle hooks.
type Runtime struct {
	Bot      *tele.Bot
	Registry *Registry
}

// RunTelegram builds the bot, serves updates until ctx is done and then
// stops the poller. Cancellation is a clean exit.
func RunTelegram(ctx context.Context, opts RunOptions) error {
	if opts.Config == nil {
		return errors.New("telegram: nil config provided")
	}
	if opts.Registry == nil {
		opts.Registry = NewRegistry()
	}
	cfg := opts.Config

	poller, modeAttrs := newPoller(cfg)
	started := time.Now()
	bot, err := tele.NewBot(tele.Settings{
		Token:   cfg.Telegram.Token,
		Poller:  poller,
		Client:  NewHTTPClient(),
		OnError: logUpdateError,
	})
	if err != nil {
		return fmt.Errorf("telegram: bot initialization failed: %w", logger.RedactError(err))
	}
	logger.Info(ctx, "tg", "mode", append(modeAttrs, slog.Duration("duration", logger.Took(started)))...)

	if _, polling := poller.(*tele.LongPoller); polling && !opts.KeepWebhook {
		removeWebhook(ctx, bot, cfg.Telegram.DropPendingUpdates)
	}

	for _, mw := range opts.Middlewares {
		if mw.Use != nil {
			bot.Use(mw.Use)
		}
	}
	for _, r := range opts.Routes {
		if r.Endpoint != nil && r.Handler != nil {
			bot.Handle(r.Endpoint, r.Handler)
		}
	}
	PublishCommands(bot, opts.Registry, cfg.Telegram.AdminIDs)

	rt := Runtime{Bot: bot, Registry: opts.Registry}
	if opts.OnStart != nil {
		if err := opts.OnStart(ctx, rt); err != nil {
			return err
		}
	}

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		bot.Start()
	}()
	select {
	case <-ctx.Done():
		bot.Stop()
		<-stopped
	case <-stopped:
	}

	if opts.OnStop != nil {
		return opts.OnStop(context.Background(), rt)
	}
	return nil
}

func newPoller(cfg *coreconfig.Config) (tele.Poller, []slog.Attr) {
	if cfg.Telegram.RunMode == coreconfig.RunModeWebhook {
		wh := &tele.Webhook{
			Listen:      fmt.Sprintf("%s:%d", cfg.Webhook.Listen, cfg.Webhook.Port),
			Endpoint:    &tele.WebhookEndpoint{PublicURL: cfg.Webhook.URL},
			DropUpdates: cfg.Telegram.DropPendingUpdates,
		}
		return wh, []slog.Attr{
			slog.String("mode", coreconfig.RunModeWebhook),
			slog.String("listen", wh.Listen),
			slog.String("public_url", cfg.Webhook.URL),
		}
	}
	timeout := defaultPollTimeout
	if s := cfg.Telegram.LongPollTimeoutSeconds; s > 0 {
		timeout = time.Duration(s) * time.Second
	}
	return &tele.LongPoller{Timeout: timeout}, []slog.Attr{
		slog.String("mode", coreconfig.RunModeLongpoll),
		slog.Duration("timeout", timeout),
	}
}

// removeWebhook clears a webhook left by an earlier deployment; Telegram
// refuses getUpdates while one is set.
func removeWebhook(ctx context.Context, bot *tele.Bot, dropPending bool) {
	if err := bot.RemoveWebhook(dropPending); err != nil {
		logger.Warn(ctx, "tg", "webhook.remove",
			slog.String("status", "fail"),
			slog.Any("err", err),
		)
		return
	}
	logger.Info(ctx, "tg", "webhook.remove",
		slog.String("status", "ok"),
		slog.Bool("drop_pending", dropPending),
	)
}

// logUpdateError receives handler errors after the error boundary replied to the user.
func logUpdateError(err error, c tele.Context) {
	ctx := logger.Background()
	if c != nil {
		ctx = tghelpers.BuildContext(c)
	}
	logger.Error(ctx, "tg", "update.error",
		slog.String("err", logger.SanitizeLimit(err.Error(), 512)),
	)
}
