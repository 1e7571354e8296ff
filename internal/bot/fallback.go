package bot

import (
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/meterbot/core/telegram/helpers"
)

// fallbacks answers updates no command, conversation or callback claims.
type fallbacks struct{}

func (fallbacks) UnknownText() tele.HandlerFunc {
	return func(c tele.Context) error {
		return helpers.SendText(c, "I don't understand. Use /start to register, /submit to send readings or /edit_serials to fix a serial number.", nil)
	}
}

func (fallbacks) UnknownDocument() tele.HandlerFunc {
	return func(c tele.Context) error {
		return helpers.SendText(c, "Files are not accepted. Please type your answer.", nil)
	}
}

func (fallbacks) UnknownCallback() tele.HandlerFunc {
	return func(c tele.Context) error {
		_ = c.Respond(&tele.CallbackResponse{Text: "This button is no longer active."})
		return nil
	}
}
