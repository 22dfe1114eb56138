// Package host provides a simulated application shell that the CLI hands to
// the action registry in place of a browser page.
package host

import (
	"log/slog"
	"sync"

	"github.com/goshawk/voice-agent/pkg/actions"
)

type Config struct {
	// Location is the initial URL of the shell.
	Location string
	// Entries are visible from the start.
	Entries []string
	// AppsMenu entries only become visible once the apps toggle is activated.
	AppsMenu []string
	// MainMenu enables the main menu toggle.
	MainMenu bool
}

type entryKind int

const (
	kindEntry entryKind = iota
	kindAppsToggle
	kindMainMenu
)

type entry struct {
	shell *Shell
	name  string
	kind  entryKind
}

func (e *entry) Name() string { return e.name }

func (e *entry) Activate() { e.shell.activate(e) }

// Shell implements actions.Host. It is safe for concurrent use.
type Shell struct {
	logger     *slog.Logger
	onNavigate func(location string)
	onActivate func(name string)

	mu        sync.Mutex
	location  string
	entries   []*entry
	apps      []*entry
	appsOpen  bool
	appsMenu  *entry
	mainMenu  *entry
	menuOpen  bool
	activated []string
}

var _ actions.Host = (*Shell)(nil)

type Opt func(*Shell)

// WithNavigateHandler is called after every navigation, outside the lock.
func WithNavigateHandler(fn func(location string)) Opt {
	return func(s *Shell) {
		s.onNavigate = fn
	}
}

// WithActivateHandler is called after an entry is activated, outside the lock.
func WithActivateHandler(fn func(name string)) Opt {
	return func(s *Shell) {
		s.onActivate = fn
	}
}

func WithLogger(logger *slog.Logger) Opt {
	return func(s *Shell) {
		s.logger = logger
	}
}

func New(cfg Config, opts ...Opt) *Shell {
	s := &Shell{
		logger:   slog.Default(),
		location: cfg.Location,
	}
	for _, opt := range opts {
		opt(s)
	}

	for _, name := range cfg.Entries {
		s.entries = append(s.entries, &entry{shell: s, name: name})
	}
	for _, name := range cfg.AppsMenu {
		s.apps = append(s.apps, &entry{shell: s, name: name})
	}
	if len(s.apps) > 0 {
		s.appsMenu = &entry{shell: s, name: "Apps", kind: kindAppsToggle}
	}
	if cfg.MainMenu {
		s.mainMenu = &entry{shell: s, name: "Main menu", kind: kindMainMenu}
	}
	return s
}

func (s *Shell) VisibleEntries() []actions.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	visible := make([]actions.Entry, 0, len(s.entries)+len(s.apps))
	for _, e := range s.entries {
		visible = append(visible, e)
	}
	if s.appsOpen {
		for _, e := range s.apps {
			visible = append(visible, e)
		}
	}
	return visible
}

func (s *Shell) MainMenuToggle() (actions.Entry, bool) {
	if s.mainMenu == nil {
		return nil, false
	}
	return s.mainMenu, true
}

func (s *Shell) AppsMenuToggle() (actions.Entry, bool) {
	if s.appsMenu == nil {
		return nil, false
	}
	return s.appsMenu, true
}

func (s *Shell) Location() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.location
}

func (s *Shell) Navigate(location string) {
	s.mu.Lock()
	s.location = location
	s.mu.Unlock()

	s.logger.Debug("Navigated", "location", location)
	if s.onNavigate != nil {
		s.onNavigate(location)
	}
}

// MainMenuOpen reports whether the main menu is currently expanded.
func (s *Shell) MainMenuOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.menuOpen
}

// Activated lists the names of every entry activated so far, in order.
func (s *Shell) Activated() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]string(nil), s.activated...)
}

func (s *Shell) activate(e *entry) {
	s.mu.Lock()
	switch e.kind {
	case kindAppsToggle:
		s.appsOpen = true
	case kindMainMenu:
		s.menuOpen = !s.menuOpen
	}
	s.activated = append(s.activated, e.name)
	s.mu.Unlock()

	s.logger.Debug("Activated entry", "name", e.name)
	if s.onActivate != nil {
		s.onActivate(e.name)
	}
}
