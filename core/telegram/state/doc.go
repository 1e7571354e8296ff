// Package state keeps typed conversation state per (chat, user) pair and
// dispatches updates to the handler registered for the active flow.
package state
