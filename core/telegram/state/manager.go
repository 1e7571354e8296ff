package state

import (
	"log/slog"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/meterbot/core/logger"
	tghelpers "github.com/m3rciful/meterbot/core/telegram/helpers"
)

// Manager routes updates of active conversations to per-flow handlers.
type Manager struct {
	store    *Store
	handlers map[string]Handler
}

// NewManager wraps store; a nil store gets a fresh one.
func NewManager(store *Store) *Manager {
	if store == nil {
		store = NewStore()
	}
	return &Manager{store: store, handlers: make(map[string]Handler)}
}

// Store exposes the underlying store.
func (m *Manager) Store() *Store { return m.store }

// Register binds a handler to a flow name.
func (m *Manager) Register(flow string, h Handler) {
	if flow == "" || h == nil {
		return
	}
	m.handlers[flow] = h
}

// InProgress reports whether the update belongs to an active conversation.
func (m *Manager) InProgress(c tele.Context) bool {
	_, ok := m.store.Get(KeyOf(c))
	return ok
}

// ManagerHandler executes the handler registered for the active flow. A state
// whose flow has no handler is dropped.
func (m *Manager) ManagerHandler(c tele.Context) error {
	key := KeyOf(c)
	st, ok := m.store.Get(key)
	if !ok {
		return nil
	}
	ctx := tghelpers.BuildContext(c)
	handler, ok := m.handlers[st.Flow()]
	if !ok {
		logger.Warn(ctx, "tg", "fsm.orphan",
			slog.String("state", st.Flow()+"."+st.Step()),
		)
		m.store.Clear(key)
		return nil
	}
	logger.Debug(ctx, "tg", "fsm.dispatch",
		slog.String("status", "ok"),
		slog.String("state", st.Flow()+"."+st.Step()),
	)
	return handler(c, st)
}
