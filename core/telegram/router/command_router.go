package router

import (
	"log/slog"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/meterbot/core/logger"
	tg "github.com/m3rciful/meterbot/core/telegram"
	"github.com/m3rciful/meterbot/core/telegram/middleware"
)

type CommandRouteOptions struct {
	// Admin gates commands registered with AdminOnly.
	Admin middleware.AdminOptions
}

// CommandRoutes builds one traced route per registered command.
func CommandRoutes(reg *tg.Registry, opts CommandRouteOptions) []tg.Route {
	if reg == nil {
		return nil
	}
	cmds := reg.Commands()
	routes := make([]tg.Route, 0, len(cmds))
	admins := 0
	for text, def := range cmds {
		name, inner := handlerName(text), def.Handler
		var h tele.HandlerFunc = func(c tele.Context) error {
			return traced(c, name, inner)
		}
		if def.AdminOnly {
			h = middleware.AdminOnlyMiddleware(opts.Admin)(h)
			admins++
		}
		routes = append(routes, tg.Route{Endpoint: text, Handler: h})
	}
	logger.Info(logger.Background(), "tg.wire", "routes.commands",
		slog.String("status", "ok"),
		slog.Int("count", len(routes)),
		slog.Int("admin", admins),
	)
	return routes
}
