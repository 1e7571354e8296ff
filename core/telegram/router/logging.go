// Package router turns the registry into telebot routes. Every route logs one
// handler.handled line per update with the reply counters and the outcome.
package router

import (
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/meterbot/core/logger"
	tghelpers "github.com/m3rciful/meterbot/core/telegram/helpers"
	"github.com/m3rciful/meterbot/core/telegram/middleware"
)

// traced runs h and logs its summary under name.
func traced(c tele.Context, name string, h tele.HandlerFunc, extras ...slog.Attr) error {
	start := time.Now()
	ctx := tghelpers.WithHandler(c, name)
	status := "skip"
	var err error
	if h != nil {
		err = h(c)
		status = logger.Status(err)
	}

	n := middleware.GetCounters(c)
	attrs := append([]slog.Attr{
		slog.String("status", status),
		slog.Int("messages", n.Messages),
		slog.Bool("kb", n.Keyboard),
		slog.Duration("duration", logger.Took(start)),
	}, extras...)
	if n.Documents > 0 {
		attrs = append(attrs, slog.Int("documents", n.Documents))
	}
	if err != nil {
		attrs = append(attrs,
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			slog.String("err_code", errorCode(err)),
		)
	}
	logger.Info(ctx, "tg", "handler.handled", attrs...)
	return err
}

// handlerName turns "/edit_serials" or "Admin Menu" into a log-friendly name.
func handlerName(raw string) string {
	raw = strings.TrimPrefix(strings.TrimSpace(raw), "/")
	if raw == "" {
		return "unknown"
	}
	return strings.ToLower(strings.ReplaceAll(raw, " ", "_"))
}

func errorCode(err error) string {
	var pe *middleware.PanicError
	switch {
	case errors.As(err, &pe):
		return "PANIC"
	case errors.Is(err, tele.ErrBlockedByUser):
		return "BLOCKED"
	}
	var te *tele.Error
	if errors.As(err, &te) {
		return "API_" + strconv.Itoa(te.Code)
	}
	return "INTERNAL"
}
