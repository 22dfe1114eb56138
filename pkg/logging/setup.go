package logging

import (
	"cmp"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/goshawk/voice-agent/pkg/paths"
)

// DebugLogName is the file written under the data directory in debug mode.
const DebugLogName = "voice-agent.debug.log"

type Options struct {
	// Debug writes debug level logs to a rotating file.
	Debug bool
	// Path overrides the debug log location.
	Path string
	// Stderr receives info level logs when Debug is off, and everything if
	// the debug file cannot be opened.
	Stderr io.Writer
}

// Setup returns the process logger. The returned closer releases the log
// file and is never nil.
func Setup(opts Options) (*slog.Logger, io.Closer, error) {
	if !opts.Debug {
		return stderrLogger(opts.Stderr, slog.LevelInfo), noopCloser{}, nil
	}

	path := cmp.Or(strings.TrimSpace(opts.Path), filepath.Join(paths.GetDataDir(), DebugLogName))
	file, err := NewRotatingFile(path)
	if err != nil {
		return stderrLogger(opts.Stderr, slog.LevelDebug), noopCloser{}, err
	}

	return slog.New(slog.NewTextHandler(file, &slog.HandlerOptions{Level: slog.LevelDebug})), file, nil
}

func stderrLogger(w io.Writer, level slog.Level) *slog.Logger {
	if w == nil {
		return slog.New(slog.DiscardHandler)
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

type noopCloser struct{}

func (noopCloser) Close() error { return nil }
