package middleware

import (
	"log/slog"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/meterbot/core/logger"
	tghelpers "github.com/m3rciful/meterbot/core/telegram/helpers"
)

// AdminOptions defines how admin-only checks should behave.
type AdminOptions struct {
	// IsAdmin decides membership in the static allow-list.
	IsAdmin func(userID int64) bool
	// PrivateOnly rejects admin updates coming from groups and channels.
	PrivateOnly bool
	OnReject    tele.HandlerFunc
}

// Allowed reports whether the update passes the admin gate.
func (o AdminOptions) Allowed(c tele.Context) bool {
	user := c.Sender()
	if user == nil || o.IsAdmin == nil || !o.IsAdmin(user.ID) {
		return false
	}
	if o.PrivateOnly {
		chat := c.Chat()
		if chat == nil || chat.Type != tele.ChatPrivate {
			return false
		}
	}
	return true
}

// AdminOnlyMiddleware ensures that only allow-listed users reach downstream handlers.
func AdminOnlyMiddleware(opts AdminOptions) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if !opts.Allowed(c) {
				logger.Warn(tghelpers.BuildContext(c), "tg", "admin.reject",
					slog.String("reason", "not_allowed"),
				)
				if opts.OnReject != nil {
					return opts.OnReject(c)
				}
				return nil
			}
			return next(c)
		}
	}
}

// PrivateOnly answers updates from groups and channels with onReject instead
// of running the handler.
func PrivateOnly(onReject tele.HandlerFunc) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if chat := c.Chat(); chat == nil || chat.Type != tele.ChatPrivate {
				logger.Warn(tghelpers.BuildContext(c), "tg", "private.reject",
					slog.String("reason", "not_private"),
				)
				if onReject != nil {
					return onReject(c)
				}
				return nil
			}
			return next(c)
		}
	}
}
