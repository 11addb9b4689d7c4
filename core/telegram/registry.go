package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/samber/lo"
	tele "gopkg.in/telebot.v4"

	"github.com/ashbolt/coursebot/core/logger"
)

// Command is a slash command with its handler and menu metadata.
type Command struct {
	Handler     tele.HandlerFunc
	Description string
	// AdminOnly commands run for the configured admin only and never show in the menu.
	AdminOnly bool
	Hidden    bool
	Aliases   []string
}

// CommandEntry pairs a command with the name it is registered under.
type CommandEntry struct {
	Name string
	Command
}

var (
	errInvalidCommand  = errors.New("invalid command registration")
	errInvalidCallback = errors.New("invalid callback registration")
)

// Registry holds bot commands and callbacks.
type Registry struct {
	mu               sync.RWMutex
	commands         map[string]Command
	callbacks        map[string]tele.HandlerFunc
	callbackNotFound tele.HandlerFunc
}

// NewRegistry creates an empty Registry with default fallbacks.
func NewRegistry() *Registry {
	return &Registry{
		commands:  make(map[string]Command),
		callbacks: make(map[string]tele.HandlerFunc),
		callbackNotFound: func(c tele.Context) error {
			_ = c.Respond(&tele.CallbackResponse{Text: "Unsupported action"})
			return nil
		},
	}
}

func skip(event string, attrs ...slog.Attr) {
	logger.TWire.LogAttrs(context.Background(), slog.LevelWarn, event, attrs...)
}

// RegisterCommand adds a command under name, which must start with a slash.
func (r *Registry) RegisterCommand(name string, cmd Command) error {
	if name == "" || cmd.Handler == nil || cmd.Description == "" {
		skip("register.command.skip", slog.String("name", name), slog.String("reason", "invalid"))
		return fmt.Errorf("%w: %q", errInvalidCommand, name)
	}
	if !strings.HasPrefix(name, "/") {
		skip("register.command.skip", slog.String("name", name), slog.String("reason", "no_slash_prefix"))
		return fmt.Errorf("%w: %q has no slash prefix", errInvalidCommand, name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.commands[name]; exists {
		skip("register.command.duplicate", slog.String("name", name))
		return fmt.Errorf("command already registered: %s", name)
	}
	r.commands[name] = cmd
	return nil
}

// Commands returns every registered command ordered by name.
func (r *Registry) Commands() []CommandEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entries := lo.MapToSlice(r.commands, func(name string, cmd Command) CommandEntry {
		return CommandEntry{Name: name, Command: cmd}
	})
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries
}

// ListCommands returns the bot menu, optionally without hidden and admin-only commands.
func (r *Registry) ListCommands(visibleOnly bool) []tele.Command {
	entries := r.Commands()
	if visibleOnly {
		entries = lo.Reject(entries, func(e CommandEntry, _ int) bool { return e.Hidden || e.AdminOnly })
	}
	return lo.Map(entries, func(e CommandEntry, _ int) tele.Command {
		return tele.Command{Text: e.Name, Description: e.Description}
	})
}

// LookupCommand finds a command by name or alias, with or without the slash.
func (r *Registry) LookupCommand(name string) (string, Command, bool) {
	name = strings.TrimSpace(name)
	if !strings.HasPrefix(name, "/") {
		name = "/" + name
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if cmd, ok := r.commands[name]; ok {
		return name, cmd, true
	}
	for key, cmd := range r.commands {
		if lo.ContainsBy(cmd.Aliases, func(alias string) bool { return alias == name || "/"+alias == name }) {
			return key, cmd, true
		}
	}
	return "", Command{}, false
}

// RegisterCallback maps a callback unique key to handler.
func (r *Registry) RegisterCallback(key string, handler tele.HandlerFunc) error {
	if key == "" || handler == nil {
		skip("register.callback.skip", slog.String("key", key), slog.Bool("handler_nil", handler == nil))
		return errInvalidCallback
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.callbacks[key]; exists {
		skip("register.callback.duplicate", slog.String("key", key))
		return fmt.Errorf("callback already registered: %s", key)
	}
	r.callbacks[key] = handler
	return nil
}

// GetCallback returns the handler registered for key.
func (r *Registry) GetCallback(key string) (tele.HandlerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.callbacks[key]
	return h, ok
}

// ListCallbacks returns sorted keys (for diagnostics).
func (r *Registry) ListCallbacks() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := lo.Keys(r.callbacks)
	sort.Strings(keys)
	return keys
}

// SetCallbackNotFound replaces the fallback handler for unknown callbacks.
func (r *Registry) SetCallbackNotFound(h tele.HandlerFunc) {
	if h == nil {
		return
	}
	r.mu.Lock()
	r.callbackNotFound = h
	r.mu.Unlock()
}

// CallbackNotFound returns the current fallback callback handler.
func (r *Registry) CallbackNotFound() tele.HandlerFunc {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.callbackNotFound
}

// InitBotCommands publishes the visible commands as the bot menu.
func InitBotCommands(bot *tele.Bot, reg *Registry) {
	if err := bot.SetCommands(reg.ListCommands(true)); err != nil {
		logger.TWire.LogAttrs(context.Background(), slog.LevelError, "register.commands.set_failed",
			slog.String("err", err.Error()),
		)
	}
}
