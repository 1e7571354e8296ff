package router

import (
	tele "gopkg.in/telebot.v4"

	tg "github.com/m3rciful/meterbot/core/telegram"
)

// Conversations is the part of the state manager the text route needs.
type Conversations interface {
	InProgress(c tele.Context) bool
	ManagerHandler(c tele.Context) error
}

type TextOptions struct {
	UnknownText     tele.HandlerFunc
	UnknownDocument tele.HandlerFunc
	// Preempt selects text served by the registry text fallback even while a
	// conversation is in progress.
	Preempt func(c tele.Context) bool
}

// TextRoutes routes plain text to the active conversation first, then to the
// registry text fallback, then to UnknownText. Text matched by Preempt skips
// the conversation. Documents are never expected.
func TextRoutes(conv Conversations, reg *tg.Registry, opts TextOptions) []tg.Route {
	onText := func(c tele.Context) error {
		menu := reg != nil && reg.TextFallback() != nil
		switch {
		case menu && opts.Preempt != nil && opts.Preempt(c):
			return traced(c, "menu_text", reg.TextFallback())
		case conv != nil && conv.InProgress(c):
			return traced(c, "conversation", conv.ManagerHandler)
		case menu:
			return traced(c, "menu_text", reg.TextFallback())
		}
		return traced(c, "unknown_text", opts.UnknownText)
	}
	onDocument := func(c tele.Context) error {
		return traced(c, "unexpected_document", opts.UnknownDocument)
	}
	return []tg.Route{
		{Endpoint: tele.OnText, Handler: onText},
		{Endpoint: tele.OnDocument, Handler: onDocument},
	}
}
