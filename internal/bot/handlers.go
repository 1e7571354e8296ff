package bot

import (
	"fmt"
	"log/slog"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/meterbot/core/logger"
	"github.com/m3rciful/meterbot/core/telegram/callbacks"
	"github.com/m3rciful/meterbot/core/telegram/commands"
	"github.com/m3rciful/meterbot/core/telegram/helpers"
	"github.com/m3rciful/meterbot/core/telegram/middleware"
	"github.com/m3rciful/meterbot/core/telegram/state"
	"github.com/m3rciful/meterbot/internal/admin"
	"github.com/m3rciful/meterbot/internal/flow"
	"github.com/m3rciful/meterbot/internal/meter"
	"github.com/m3rciful/meterbot/internal/registration"
	"github.com/m3rciful/meterbot/internal/serialedit"
	"github.com/m3rciful/meterbot/internal/submission"
)

func (a *App) registerCommands() {
	private := middleware.PrivateOnly(a.rejectGroup)
	cmds := map[string]commands.Command{
		"/start": {
			Description: "Register or show your profile",
			Handler: private(func(c tele.Context) error {
				return a.apply(c, a.registration.Start(helpers.BuildContext(c), userOf(c)))
			}),
		},
		"/submit": {
			Description: "Submit meter readings",
			Handler: private(func(c tele.Context) error {
				return a.apply(c, a.submission.Start(helpers.BuildContext(c), userOf(c)))
			}),
		},
		"/edit_serials": {
			Description: "Change a meter serial number",
			Handler: private(func(c tele.Context) error {
				return a.apply(c, a.serials.Start(helpers.BuildContext(c), userOf(c)))
			}),
		},
		"/cancel": {
			Description: "Cancel the current action",
			Handler:     a.onCancel,
		},
		"/admin": {
			Description: "Administrator menu",
			AdminOnly:   true,
			Handler: func(c tele.Context) error {
				return a.apply(c, a.admin.Menu())
			},
		},
	}
	for name, cmd := range cmds {
		if err := a.registry.RegisterCommand(name, cmd); err != nil {
			logger.Error(logger.Background(), "tg.wire", "register.command",
				slog.String("status", "fail"),
				slog.String("name", name),
				slog.String("err", err.Error()),
			)
		}
	}
}

func (a *App) registerFlows() {
	a.states.Register(registration.Flow, func(c tele.Context, st state.State) error {
		return a.apply(c, a.registration.Handle(helpers.BuildContext(c), userOf(c), st, c.Text()))
	})
	a.states.Register(submission.Flow, func(c tele.Context, st state.State) error {
		return a.apply(c, a.submission.Handle(helpers.BuildContext(c), userOf(c), st, c.Text()))
	})
	a.states.Register(serialedit.Flow, func(c tele.Context, st state.State) error {
		return a.apply(c, a.serials.Handle(helpers.BuildContext(c), userOf(c), st, c.Text()))
	})
	a.states.Register(admin.Flow, func(c tele.Context, st state.State) error {
		if !a.gate.Allowed(c) {
			a.states.Store().Clear(state.KeyOf(c))
			return a.rejectAdmin(c)
		}
		return a.apply(c, a.admin.Handle(helpers.BuildContext(c), userOf(c), st, c.Text()))
	})
}

func (a *App) registerCallbacks() {
	adminOnly := middleware.AdminOnlyMiddleware(a.gate)
	handlers := map[string]tele.HandlerFunc{
		submission.CallbackType: func(c tele.Context) error {
			t := meter.Type(callbacks.CallbackPayload(c))
			return a.apply(c, a.submission.SelectType(helpers.BuildContext(c), userOf(c), a.current(c), t))
		},
		submission.CallbackFinish: func(c tele.Context) error {
			return a.apply(c, a.submission.Finish(helpers.BuildContext(c), userOf(c), a.current(c)))
		},
		serialedit.CallbackPick: func(c tele.Context) error {
			id, err := callbacks.PayloadInt64(c)
			if err != nil {
				return fmt.Errorf("edit serial payload: %w", err)
			}
			return a.apply(c, a.serials.Pick(helpers.BuildContext(c), userOf(c), a.current(c), id))
		},
		admin.CallbackDeleteUser: adminOnly(func(c tele.Context) error {
			id, err := callbacks.PayloadInt64(c)
			if err != nil {
				return fmt.Errorf("delete resident payload: %w", err)
			}
			return a.apply(c, a.admin.PickResident(helpers.BuildContext(c), a.current(c), id))
		}),
		admin.CallbackDeleteConfirm: adminOnly(func(c tele.Context) error {
			return a.apply(c, a.admin.ConfirmDelete(helpers.BuildContext(c), a.current(c)))
		}),
		admin.CallbackDeleteCancel: adminOnly(func(c tele.Context) error {
			return a.apply(c, a.admin.CancelDelete(helpers.BuildContext(c)))
		}),
	}
	for key, h := range handlers {
		if err := a.registry.RegisterCallback(key, h); err != nil {
			logger.Error(logger.Background(), "tg.wire", "register.callback",
				slog.String("status", "fail"),
				slog.String("key", key),
				slog.String("err", err.Error()),
			)
		}
	}
}

// isAdminButton reports admin menu text that replaces any conversation in progress.
func (a *App) isAdminButton(c tele.Context) bool {
	return admin.IsButton(c.Text()) && a.gate.Allowed(c)
}

// onMenuText serves the admin reply keyboard outside any conversation.
func (a *App) onMenuText(c tele.Context) error {
	text := c.Text()
	if !admin.IsButton(text) {
		return a.fallback.UnknownText()(c)
	}
	if !a.gate.Allowed(c) {
		return a.rejectAdmin(c)
	}
	return a.apply(c, a.admin.Button(helpers.BuildContext(c), text))
}

func (a *App) onCancel(c tele.Context) error {
	if !a.states.InProgress(c) {
		return a.apply(c, flow.End(flow.Reply{Text: "Nothing to cancel.", RemoveKeyboard: true}))
	}
	return a.apply(c, flow.End(flow.Reply{Text: "Cancelled.", RemoveKeyboard: true}))
}

func (a *App) rejectGroup(c tele.Context) error {
	return helpers.SendText(c, "Please use this command in a private chat with the bot.", nil)
}

func (a *App) rejectAdmin(c tele.Context) error {
	return helpers.SendText(c, "This action is available to administrators only.", nil)
}
