package telegram

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/meterbot/core/logger"
	"github.com/m3rciful/meterbot/core/telegram/commands"
)

var (
	ErrInvalidCommand  = errors.New("telegram: invalid command")
	ErrInvalidCallback = errors.New("telegram: invalid callback")
)

// Registry maps slash commands and callback keys to handlers. It also holds
// the fallbacks used when nothing matches.
type Registry struct {
	mu        sync.RWMutex
	commands  map[string]commands.Command
	callbacks map[string]tele.HandlerFunc

	unknownCallback tele.HandlerFunc
	textFallback    tele.HandlerFunc
}

func NewRegistry() *Registry {
	return &Registry{
		commands:  make(map[string]commands.Command),
		callbacks: make(map[string]tele.HandlerFunc),
		unknownCallback: func(c tele.Context) error {
			return c.Respond(&tele.CallbackResponse{Text: "Unsupported action"})
		},
	}
}

// RegisterCommand adds cmd under name, which must start with a slash.
func (r *Registry) RegisterCommand(name string, cmd commands.Command) error {
	if !strings.HasPrefix(name, "/") || len(name) < 2 || cmd.Handler == nil || cmd.Description == "" {
		return fmt.Errorf("%w: %q", ErrInvalidCommand, name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.commands[name]; dup {
		return fmt.Errorf("%w: %s registered twice", ErrInvalidCommand, name)
	}
	r.commands[name] = cmd
	return nil
}

// Commands returns a snapshot of the registered commands.
func (r *Registry) Commands() map[string]commands.Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]commands.Command, len(r.commands))
	for k, v := range r.commands {
		out[k] = v
	}
	return out
}

// ListCommands returns menu entries sorted by name. With visibleOnly, hidden
// and admin commands are left out.
func (r *Registry) ListCommands(visibleOnly bool) []tele.Command {
	return r.menu(func(c commands.Command) bool {
		return !visibleOnly || (!c.Hidden && !c.AdminOnly)
	})
}

func (r *Registry) menu(keep func(commands.Command) bool) []tele.Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var list []tele.Command
	for name, c := range r.commands {
		if keep(c) {
			list = append(list, tele.Command{Text: name, Description: c.Description})
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Text < list[j].Text })
	return list
}

func (r *Registry) RegisterCallback(key string, h tele.HandlerFunc) error {
	if key == "" || h == nil {
		return ErrInvalidCallback
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.callbacks[key]; dup {
		return fmt.Errorf("%w: %s registered twice", ErrInvalidCallback, key)
	}
	r.callbacks[key] = h
	return nil
}

func (r *Registry) GetCallback(key string) (tele.HandlerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.callbacks[key]
	return h, ok
}

// ListCallbacks returns the registered callback keys in order.
func (r *Registry) ListCallbacks() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.callbacks))
	for k := range r.callbacks {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SetCallbackNotFound replaces the handler for unknown callback keys. Nil is ignored.
func (r *Registry) SetCallbackNotFound(h tele.HandlerFunc) {
	if h == nil {
		return
	}
	r.mu.Lock()
	r.unknownCallback = h
	r.mu.Unlock()
}

func (r *Registry) CallbackNotFound() tele.HandlerFunc {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.unknownCallback
}

// SetTextFallback sets the handler for text that no conversation claims.
func (r *Registry) SetTextFallback(h tele.HandlerFunc) {
	r.mu.Lock()
	r.textFallback = h
	r.mu.Unlock()
}

func (r *Registry) TextFallback() tele.HandlerFunc {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.textFallback
}

// PublishCommands sets the public command menu, then gives every admin chat a
// menu that also lists admin commands. Failures are logged, not returned.
func PublishCommands(bot *tele.Bot, reg *Registry, adminIDs []int64) {
	ctx := logger.Background()
	public := reg.ListCommands(true)
	if err := bot.SetCommands(public); err != nil {
		logger.Error(ctx, "tg.wire", "commands.publish",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
		return
	}

	full := reg.menu(func(c commands.Command) bool { return !c.Hidden })
	published := 0
	if len(full) > len(public) {
		for _, id := range adminIDs {
			scope := tele.CommandScope{Type: tele.CommandScopeChat, ChatID: id}
			if err := bot.SetCommands(full, scope); err != nil {
				logger.Warn(ctx, "tg.wire", "commands.publish.admin",
					slog.String("status", "fail"),
					slog.Int64("user_id", id),
					slog.String("err", err.Error()),
				)
				continue
			}
			published++
		}
	}
	logger.Info(ctx, "tg.wire", "commands.publish",
		slog.String("status", "ok"),
		slog.Int("count", len(public)),
		slog.Int("admin_menus", published),
	)
}
