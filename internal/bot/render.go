package bot

import (
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/meterbot/core/telegram/helpers"
	"github.com/m3rciful/meterbot/core/telegram/keyboard"
	"github.com/m3rciful/meterbot/core/telegram/state"
	"github.com/m3rciful/meterbot/internal/flow"
)

// apply stores the next state of the conversation and sends the replies.
func (a *App) apply(c tele.Context, res flow.Result) error {
	a.states.Store().Set(state.KeyOf(c), res.Next)
	for _, r := range res.Replies {
		if err := send(c, r); err != nil {
			return err
		}
	}
	return nil
}

func send(c tele.Context, r flow.Reply) error {
	if r.Document != nil {
		return helpers.SendDocument(c, r.Document.FileName, r.Document.Data, r.Document.Caption)
	}
	return helpers.SendText(c, r.Text, markup(r))
}

func markup(r flow.Reply) *tele.ReplyMarkup {
	switch {
	case len(r.Inline) > 0:
		return keyboard.InlineButtonsRows(r.Inline...)
	case len(r.Keyboard) > 0:
		return keyboard.ReplyButtons(r.Keyboard...)
	case r.RemoveKeyboard:
		return keyboard.RemoveKeyboard()
	}
	return nil
}

// current returns the active conversation state of the update, or nil.
func (a *App) current(c tele.Context) state.State {
	st, _ := a.states.Store().Get(state.KeyOf(c))
	return st
}

func userOf(c tele.Context) flow.User {
	s := c.Sender()
	if s == nil {
		return flow.User{}
	}
	u := flow.User{ID: s.ID, FirstName: s.FirstName}
	if s.LastName != "" {
		last := s.LastName
		u.LastName = &last
	}
	return u
}
