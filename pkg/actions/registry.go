// Package actions holds the closed set of named operations that backend
// supplied action code may invoke on the host shell.
package actions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/goshawk/voice-agent/pkg/notify"
)

// ErrNotFound describes a lookup miss inside an action. It is reported through
// the notifier and never returned by Invoke.
var ErrNotFound = errors.New("not found")

// DefaultOpenAppRetryDelay is how long openApp waits for the apps menu to
// render before matching again.
const DefaultOpenAppRetryDelay = 300 * time.Millisecond

const (
	OpenMainMenu      = "openMainMenu"
	ActivateDebugMode = "activateDebugMode"
	OpenApp           = "openApp"
	OpenSettings      = "openSettings"
)

// Action is a registry entry. Invoke performs a host side effect and reports
// problems through the notifier instead of returning them.
type Action struct {
	Name        string
	Aliases     []string
	Description string
	// TakesArg is true when the action expects exactly one string argument.
	TakesArg bool
	// MayFail is true when the action depends on UI elements that may be absent.
	MayFail bool
	Invoke  func(ctx context.Context, args []string)
}

// Registry is read-only after construction.
type Registry struct {
	actions map[string]*Action
	aliases map[string]string
	names   []string
}

// NewRegistry builds a registry from the given actions. Names and aliases must
// be unique.
func NewRegistry(actions ...*Action) (*Registry, error) {
	r := &Registry{
		actions: make(map[string]*Action, len(actions)),
		aliases: make(map[string]string),
	}

	for _, a := range actions {
		if a.Name == "" || a.Invoke == nil {
			return nil, fmt.Errorf("invalid action %q", a.Name)
		}
		if _, exists := r.lookup(a.Name); exists {
			return nil, fmt.Errorf("duplicate action %q", a.Name)
		}
		r.actions[a.Name] = a
		r.names = append(r.names, a.Name)

		for _, alias := range a.Aliases {
			if _, exists := r.lookup(alias); exists {
				return nil, fmt.Errorf("duplicate action alias %q", alias)
			}
			r.aliases[alias] = a.Name
		}
	}

	slices.Sort(r.names)
	return r, nil
}

func (r *Registry) lookup(name string) (*Action, bool) {
	if a, ok := r.actions[name]; ok {
		return a, true
	}
	if canonical, ok := r.aliases[name]; ok {
		return r.actions[canonical], true
	}
	return nil, false
}

// Lookup resolves a canonical name or an alias. A miss is not an error.
func (r *Registry) Lookup(name string) (*Action, bool) {
	return r.lookup(name)
}

// Names returns the sorted canonical action names.
func (r *Registry) Names() []string {
	return slices.Clone(r.names)
}

// Option configures the default registry.
type Option func(*defaults)

type defaults struct {
	retryDelay time.Duration
	logger     *slog.Logger
}

func WithOpenAppRetryDelay(d time.Duration) Option {
	return func(o *defaults) {
		o.retryDelay = d
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *defaults) {
		o.logger = logger
	}
}

// NewDefaultRegistry returns the built-in actions bound to the given host.
func NewDefaultRegistry(host Host, notifier notify.Notifier, opts ...Option) *Registry {
	o := defaults{
		retryDelay: DefaultOpenAppRetryDelay,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if notifier == nil {
		notifier = notify.Discard
	}

	b := &builtins{host: host, notifier: notifier, retryDelay: o.retryDelay, logger: o.logger}

	r, err := NewRegistry(
		&Action{
			Name:        OpenMainMenu,
			Aliases:     []string{"open-main-menu", "open_menu"},
			Description: "Open the main menu",
			MayFail:     true,
			Invoke:      func(ctx context.Context, _ []string) { b.openMainMenu(ctx) },
		},
		&Action{
			Name:        ActivateDebugMode,
			Aliases:     []string{"activate-debug-mode", "toggle_debug"},
			Description: "Activate debug mode",
			Invoke:      func(ctx context.Context, _ []string) { b.activateDebugMode(ctx) },
		},
		&Action{
			Name:        OpenApp,
			Aliases:     []string{"open-app-by-name", "open_app"},
			Description: "Open an app by name",
			TakesArg:    true,
			MayFail:     true,
			Invoke: func(ctx context.Context, args []string) {
				if len(args) == 0 {
					b.notifier.Notify(notify.LevelWarning, "No app name given")
					return
				}
				b.openApp(ctx, args[0])
			},
		},
		&Action{
			Name:        OpenSettings,
			Aliases:     []string{"open-settings", "open_settings"},
			Description: "Open the Settings app",
			MayFail:     true,
			Invoke:      func(ctx context.Context, _ []string) { b.openApp(ctx, "Settings") },
		},
	)
	if err != nil {
		// The built-in set is static.
		panic(err)
	}
	return r
}

type builtins struct {
	host       Host
	notifier   notify.Notifier
	retryDelay time.Duration
	logger     *slog.Logger
}

func (b *builtins) openMainMenu(context.Context) {
	toggle, ok := b.host.MainMenuToggle()
	if !ok {
		b.notifier.Notify(notify.LevelWarning, "Main menu toggle button not found")
		return
	}
	toggle.Activate()
}

func (b *builtins) activateDebugMode(context.Context) {
	location := b.host.Location()
	u, err := url.Parse(location)
	if err != nil {
		b.logger.Warn("Cannot parse host location", "location", location, "error", err)
		b.notifier.Notify(notify.LevelWarning, "Cannot read the current location")
		return
	}

	query := u.Query()
	if query.Has("debug") {
		b.notifier.Notify(notify.LevelInfo, "Debug mode is already active")
		return
	}

	query.Set("debug", "1")
	u.RawQuery = query.Encode()
	b.host.Navigate(u.String())
}

func (b *builtins) openApp(ctx context.Context, name string) {
	if entry, ok := findEntry(b.host.VisibleEntries(), name); ok {
		entry.Activate()
		return
	}

	toggle, ok := b.host.AppsMenuToggle()
	if !ok {
		b.appNotFound(name)
		return
	}
	toggle.Activate()

	select {
	case <-ctx.Done():
		b.logger.Debug("openApp retry canceled", "app", name, "error", ctx.Err())
		return
	case <-time.After(b.retryDelay):
	}

	if entry, ok := findEntry(b.host.VisibleEntries(), name); ok {
		entry.Activate()
		return
	}
	b.appNotFound(name)
}

func (b *builtins) appNotFound(name string) {
	b.logger.Debug("App lookup failed", "app", name, "error", ErrNotFound)
	b.notifier.Notify(notify.LevelWarning, fmt.Sprintf("App %q not found", name))
}

// findEntry matches entry names case-insensitively after trimming.
func findEntry(entries []Entry, name string) (Entry, bool) {
	want := strings.TrimSpace(name)
	for _, e := range entries {
		if strings.EqualFold(strings.TrimSpace(e.Name()), want) {
			return e, true
		}
	}
	return nil, false
}
