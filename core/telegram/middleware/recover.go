package middleware

import (
	"fmt"
	"log/slog"
	"runtime/debug"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/meterbot/core/logger"
	tghelpers "github.com/m3rciful/meterbot/core/telegram/helpers"
)

// DefaultFailureText is shown to the user when a handler fails unexpectedly.
const DefaultFailureText = "An unexpected error occurred. Please contact the administrator."

// PanicError carries a recovered panic value and the stack it was raised on.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// BoundaryOptions configures the error boundary.
type BoundaryOptions struct {
	// FailureText overrides DefaultFailureText.
	FailureText string
}

// ErrorBoundary converts panics into errors, logs every handler failure with
// its stack, tells the user something went wrong, and returns the error so
// telebot's OnError hook sees it as well.
func ErrorBoundary(opts BoundaryOptions) tele.MiddlewareFunc {
	text := opts.FailureText
	if text == "" {
		text = DefaultFailureText
	}
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = &PanicError{Value: r, Stack: debug.Stack()}
				}
				if err == nil {
					return
				}
				ctx := tghelpers.BuildContext(c)
				stack := debug.Stack()
				if pe, ok := err.(*PanicError); ok {
					stack = pe.Stack
				}
				logger.Error(ctx, "tg", "handler.error",
					slog.String("err", logger.SanitizeLimit(err.Error(), 512)),
					slog.String("stack", string(stack)),
				)
				if c.Callback() != nil {
					_ = c.Respond()
				}
				_ = c.Send(text)
			}()
			return next(c)
		}
	}
}

// RecoverMiddleware swallows panics after logging them; the update is dropped.
func RecoverMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		defer func() {
			if r := recover(); r != nil {
				logger.Error(tghelpers.BuildContext(c), "tg", "tg.panic",
					slog.Any("err", r),
					slog.String("stack", string(debug.Stack())),
				)
			}
		}()
		return next(c)
	}
}
