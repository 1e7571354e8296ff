// Package flow is the reply model shared by the conversations: a handler
// returns the messages to send and the next conversation state.
package flow

import (
	"github.com/m3rciful/meterbot/core/telegram/keyboard"
	"github.com/m3rciful/meterbot/core/telegram/state"
)

// User is the Telegram identity driving a conversation.
type User struct {
	ID        int64
	FirstName string
	LastName  *string
}

// Document is a file attached to a reply.
type Document struct {
	FileName string
	Data     []byte
	Caption  string
}

// Reply is one outbound message.
type Reply struct {
	Text string
	// Inline buttons, one slice per row.
	Inline [][]keyboard.InlineBtn
	// Keyboard is a reply keyboard, one slice of labels per row.
	Keyboard       [][]string
	RemoveKeyboard bool
	Document       *Document
}

// Result is what a conversation step produces. A nil Next ends the conversation.
type Result struct {
	Replies []Reply
	Next    state.State
}

// Say builds a plain text reply.
func Say(text string) Reply {
	return Reply{Text: text}
}

// To moves the conversation to next.
func To(next state.State, replies ...Reply) Result {
	return Result{Replies: replies, Next: next}
}

// End finishes the conversation.
func End(replies ...Reply) Result {
	return Result{Replies: replies}
}

// Texts lists the reply texts; handy for logs and tests.
func (r Result) Texts() []string {
	out := make([]string, 0, len(r.Replies))
	for _, rep := range r.Replies {
		out = append(out, rep.Text)
	}
	return out
}
