// Package notify is a fire-and-forget channel for user-visible toasts.
// Notifications are not part of a session's message log.
package notify

import (
	"log/slog"
	"sync"
)

type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelDanger  Level = "danger"
)

type Notifier interface {
	Notify(level Level, message string)
}

// Func adapts an ordinary function to a Notifier.
type Func func(level Level, message string)

func (f Func) Notify(level Level, message string) { f(level, message) }

// Discard drops every notification.
var Discard Notifier = Func(func(Level, string) {})

// LogNotifier writes notifications to a structured logger.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(level Level, message string) {
	switch level {
	case LevelDanger:
		n.logger.Error("Notification", "message", message)
	case LevelWarning:
		n.logger.Warn("Notification", "message", message)
	default:
		n.logger.Info("Notification", "message", message)
	}
}

// Notification is a single recorded toast.
type Notification struct {
	Level   Level
	Message string
}

// Recorder keeps every notification it receives, optionally forwarding them.
type Recorder struct {
	mu   sync.Mutex
	next Notifier
	all  []Notification
}

func NewRecorder(next Notifier) *Recorder {
	return &Recorder{next: next}
}

func (r *Recorder) Notify(level Level, message string) {
	r.mu.Lock()
	r.all = append(r.all, Notification{Level: level, Message: message})
	r.mu.Unlock()

	if r.next != nil {
		r.next.Notify(level, message)
	}
}

func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]Notification(nil), r.all...)
}

// Count returns the number of notifications recorded at the given level.
func (r *Recorder) Count(level Level) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, notification := range r.all {
		if notification.Level == level {
			n++
		}
	}
	return n
}
