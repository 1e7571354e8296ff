// Package bot binds the meter conversations to Telegram: commands, callbacks,
// the conversation store and the rendering of replies.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/jmoiron/sqlx"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/meterbot/core/bootstrap"
	corecmd "github.com/m3rciful/meterbot/core/cmd"
	"github.com/m3rciful/meterbot/core/logger"
	tg "github.com/m3rciful/meterbot/core/telegram"
	"github.com/m3rciful/meterbot/core/telegram/middleware"
	"github.com/m3rciful/meterbot/core/telegram/router"
	"github.com/m3rciful/meterbot/core/telegram/sender"
	"github.com/m3rciful/meterbot/core/telegram/state"
	"github.com/m3rciful/meterbot/internal/admin"
	"github.com/m3rciful/meterbot/internal/config"
	"github.com/m3rciful/meterbot/internal/registration"
	"github.com/m3rciful/meterbot/internal/repository"
	"github.com/m3rciful/meterbot/internal/serialedit"
	"github.com/m3rciful/meterbot/internal/submission"
)

var errBotNotStarted = errors.New("bot: telegram runtime not started")

// App is the wired meter bot.
type App struct {
	cfg *config.Config
	db  *sqlx.DB

	states       *state.Manager
	registry     *tg.Registry
	gate         middleware.AdminOptions
	registration *registration.Machine
	submission   *submission.Machine
	serials      *serialedit.Machine
	admin        *admin.Service
	fallback     fallbacks

	bot atomic.Pointer[tele.Bot]
}

// Store is the full persistence surface of the bot.
type Store interface {
	registration.Store
	submission.Store
	serialedit.Store
	admin.Store
}

// Bootstrap initialises logging and the database, seeds the meter types and
// builds the App. It matches the signature core/cmd expects.
func Bootstrap(carrier corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
	cfg, ok := carrier.(*config.Config)
	if !ok || cfg == nil {
		return nil, fmt.Errorf("bot: unexpected config type %T", carrier)
	}
	ctx := logger.Background()
	res, err := bootstrap.Run(ctx, bootstrap.Options{
		Config:   cfg.CoreConfig(),
		Database: cfg.Database,
		Modules: bootstrap.Modules{Seeders: []bootstrap.Seeder{
			bootstrap.SeederFunc(func(ctx context.Context, db *sqlx.DB) error {
				return repository.New(db).EnsureMeterTypes(ctx)
			}),
		}},
	})
	if err != nil {
		return nil, err
	}
	app := New(cfg, repository.New(res.DB))
	app.db = res.DB
	return app, nil
}

// New wires the conversations over store.
func New(cfg *config.Config, store Store) *App {
	a := &App{
		cfg:      cfg,
		states:   state.NewManager(nil),
		registry: tg.NewRegistry(),
	}
	a.gate = middleware.AdminOptions{
		IsAdmin:     cfg.Telegram.IsAdmin,
		PrivateOnly: true,
		OnReject:    a.rejectAdmin,
	}
	a.registration = registration.New(store, registration.Settings{
		ApartmentMin: cfg.Meters.ApartmentMin,
		ApartmentMax: cfg.Meters.ApartmentMax,
	})
	a.submission = submission.New(store, submission.Settings{OffsetMonths: cfg.Meters.Offset()})
	a.serials = serialedit.New(store)
	a.admin = admin.New(store, admin.Settings{
		OffsetMonths: cfg.Meters.Offset(),
		ApartmentMin: cfg.Meters.ApartmentMin,
		ApartmentMax: cfg.Meters.ApartmentMax,
		Policy:       cfg.Meters.Policy(),
		ReminderText: cfg.Meters.ReminderText,
	}, sender.NewDispatcher(sender.Options{Workers: 4, MaxRetries: 2}), a.notify)

	a.registerFlows()
	a.registerCommands()
	a.registerCallbacks()
	a.registry.SetCallbackNotFound(a.fallback.UnknownCallback())
	a.registry.SetTextFallback(a.onMenuText)
	return a
}

// TelegramRunOptions assembles middlewares and routes for core/telegram.
func (a *App) TelegramRunOptions() (tg.RunOptions, error) {
	core := a.cfg.CoreConfig()
	routes := router.CommandRoutes(a.registry, router.CommandRouteOptions{Admin: a.gate})
	routes = append(routes, router.CallbackRoute(a.registry, router.CallbackOptions{
		NotFound: a.fallback.UnknownCallback(),
	}))
	routes = append(routes, router.TextRoutes(a.states, a.registry, router.TextOptions{
		UnknownText:     a.fallback.UnknownText(),
		UnknownDocument: a.fallback.UnknownDocument(),
		Preempt:         a.isAdminButton,
	})...)

	return tg.RunOptions{
		Config:      core,
		Registry:    a.registry,
		Middlewares: tg.DefaultMiddlewares(core, nil),
		Routes:      routes,
		OnStart: func(ctx context.Context, rt tg.Runtime) error {
			a.bot.Store(rt.Bot)
			logger.Info(ctx, "app", "bot.wired",
				slog.Int("commands", len(a.registry.Commands())),
				slog.Int("callbacks", len(a.registry.ListCallbacks())),
			)
			return nil
		},
		OnStop: func(ctx context.Context, _ tg.Runtime) error {
			a.bot.Store(nil)
			if a.db == nil {
				return nil
			}
			if err := a.db.Close(); err != nil {
				logger.Warn(ctx, "db", "close", slog.String("status", "fail"), slog.String("err", err.Error()))
			}
			return nil
		},
	}, nil
}

// notify sends a direct message through the running bot.
func (a *App) notify(_ context.Context, userID int64, text string) error {
	b := a.bot.Load()
	if b == nil {
		return errBotNotStarted
	}
	_, err := b.Send(&tele.User{ID: userID}, text)
	return err
}
