package state

import tele "gopkg.in/telebot.v4"

// State is one typed step of a conversation. Implementations carry only the
// fields valid for that step.
type State interface {
	// Flow names the conversation; handlers are registered per flow.
	Flow() string
	// Step names the position inside the flow for logs.
	Step() string
}

// Key identifies a conversation.
type Key struct {
	ChatID int64
	UserID int64
}

// KeyOf derives the conversation key of an update.
func KeyOf(c tele.Context) Key {
	var k Key
	if chat := c.Chat(); chat != nil {
		k.ChatID = chat.ID
	}
	if user := c.Sender(); user != nil {
		k.UserID = user.ID
	}
	return k
}

// Handler consumes an update while the conversation is in st.
type Handler func(c tele.Context, st State) error
