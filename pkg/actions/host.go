package actions

// Entry is a named, activatable entry point visible in the host UI
// (an app tile, a dropdown item, a menu toggle).
type Entry interface {
	Name() string
	Activate()
}

// Host is the only surface of the application shell that actions may reach.
type Host interface {
	// VisibleEntries lists the named entry points currently visible.
	VisibleEntries() []Entry
	// MainMenuToggle returns the main menu toggle, if the shell shows one.
	MainMenuToggle() (Entry, bool)
	// AppsMenuToggle returns the toggle of the secondary apps menu whose
	// entries only become visible once it has been activated.
	AppsMenuToggle() (Entry, bool)
	// Location returns the current navigable location.
	Location() string
	// Navigate moves the shell to a new location.
	Navigate(location string)
}
