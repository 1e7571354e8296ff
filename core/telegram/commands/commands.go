// Package commands describes slash commands exposed by the bot.
package commands

import tele "gopkg.in/telebot.v4"

// Command represents a bot command with its handler, description, and metadata.
type Command struct {
	Handler     tele.HandlerFunc
	Description string
	// AdminOnly commands are gated by the admin allow-list and hidden from the menu.
	AdminOnly bool
	Hidden    bool
}
