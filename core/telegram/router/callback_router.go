package router

import (
	"log/slog"

	tele "gopkg.in/telebot.v4"

	tg "github.com/m3rciful/meterbot/core/telegram"
	"github.com/m3rciful/meterbot/core/telegram/callbacks"
)

type CallbackOptions struct {
	// NotFound overrides the registry fallback for unknown keys.
	NotFound tele.HandlerFunc
}

// CallbackRoute dispatches every callback query by its unique key. The query
// is answered up front so the client stops its spinner even if the handler fails.
func CallbackRoute(reg *tg.Registry, opts CallbackOptions) tg.Route {
	return tg.Route{Endpoint: tele.OnCallback, Handler: func(c tele.Context) error {
		if c.Callback() == nil {
			return nil
		}
		key, _ := callbacks.ParseCallbackData(c.Callback())
		_ = c.Respond()

		name := "callback." + handlerName(key)
		if h, ok := reg.GetCallback(key); ok {
			return traced(c, name, h, slog.String("cb_key", key))
		}
		fallback := opts.NotFound
		if fallback == nil {
			fallback = reg.CallbackNotFound()
		}
		return traced(c, name, fallback,
			slog.String("cb_key", key),
			slog.String("cause", "not_found"),
		)
	}}
}
