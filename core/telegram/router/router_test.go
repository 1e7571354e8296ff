package router

import (
	"errors"
	"fmt"
	"testing"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/meterbot/core/telegram/middleware"
)

func TestHandlerName(t *testing.T) {
	cases := map[string]string{
		"/edit_serials": "edit_serials",
		" Admin Menu ":  "admin_menu",
		"":              "unknown",
		"/":             "unknown",
		"submit_finish": "submit_finish",
		"/Export Excel": "export_excel",
	}
	for in, want := range cases {
		if got := handlerName(in); got != want {
			t.Errorf("handlerName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestErrorCode(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{&middleware.PanicError{Value: "boom"}, "PANIC"},
		{fmt.Errorf("send: %w", tele.ErrBlockedByUser), "BLOCKED"},
		{tele.ErrChatNotFound, "API_400"},
		{errors.New("db down"), "INTERNAL"},
	}
	for _, tc := range cases {
		if got := errorCode(tc.err); got != tc.want {
			t.Errorf("errorCode(%v) = %s, want %s", tc.err, got, tc.want)
		}
	}
}
