package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/goshawk/voice-agent/pkg/chat"
	"github.com/goshawk/voice-agent/pkg/input"
	"github.com/goshawk/voice-agent/pkg/session"
)

// RuntimeError wraps session errors to distinguish them from usage errors
type RuntimeError struct {
	Err error
}

func (e RuntimeError) Error() string {
	return e.Err.Error()
}

func (e RuntimeError) Unwrap() error {
	return e.Err
}

// Config holds configuration for running a session in CLI mode
type Config struct {
	AppName string
}

// Session is the part of a session the CLI drives.
type Session interface {
	StartRecording() error
	StopRecording() error
	Submit(text string) error
	WaitIdle(ctx context.Context) error
	State() session.State
	Messages() []chat.Message
}

// Run drives sess from the terminal. With args, each argument is submitted in
// turn and Run returns once all of them are handled; a single "-" reads one
// command per line from in. Without args, Run reads commands interactively
// until /exit or the end of input.
func Run(ctx context.Context, out *Printer, cfg Config, sess Session, in io.Reader, args []string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if len(args) > 0 {
		if err := runBatch(ctx, sess, in, args); err != nil {
			return err
		}
		// If the last message is an error, return it. That way the exit code
		// will be non-zero if the command failed.
		if lastErr := lastError(sess.Messages()); lastErr != nil {
			return RuntimeError{Err: lastErr}
		}
		return nil
	}

	out.PrintWelcomeMessage(cfg.AppName)

	lines := input.NewLineReader(in)
	for {
		out.Print(out.bold("> "))

		line, err := lines.ReadLine(ctx)
		if err != nil {
			out.Println()
			if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("failed to read input: %w", err)
		}

		text := strings.TrimSpace(line)
		if text == "" {
			continue
		}

		handled, exit, err := runUserCommand(out, text, sess)
		if err != nil {
			return err
		}
		if exit {
			return nil
		}
		if handled {
			continue
		}

		if err := submit(ctx, sess, text); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
	}
}

func runBatch(ctx context.Context, sess Session, in io.Reader, args []string) error {
	commands := args
	if len(args) == 1 && args[0] == "-" {
		buf, err := io.ReadAll(in)
		if err != nil {
			return fmt.Errorf("failed to read from stdin: %w", err)
		}
		commands = strings.Split(string(buf), "\n")
	}

	for _, text := range commands {
		if strings.TrimSpace(text) == "" {
			continue
		}
		if err := submit(ctx, sess, text); err != nil {
			return err
		}
	}
	return nil
}

// submit sends text and waits for its result so that every command of a
// batch is interpreted instead of being replaced in the queue.
func submit(ctx context.Context, sess Session, text string) error {
	if err := sess.Submit(text); err != nil {
		if errors.Is(err, session.ErrEmptyInput) {
			return nil
		}
		return err
	}
	return sess.WaitIdle(ctx)
}

func lastError(messages []chat.Message) error {
	if len(messages) == 0 {
		return nil
	}
	last := messages[len(messages)-1]
	if last.Role != chat.MessageRoleSystem {
		return nil
	}
	return errors.New(strings.TrimPrefix(last.Content, "Error: "))
}

// runUserCommand handles built-in session commands
func runUserCommand(out *Printer, userInput string, sess Session) (handled, exit bool, err error) {
	switch userInput {
	case "/exit", "/quit":
		return true, true, nil
	case "/help":
		out.PrintHelp()
		return true, false, nil
	case "/listen":
		if err := sess.StartRecording(); err != nil {
			// The session already told the user.
			if errors.Is(err, session.ErrCaptureUnavailable) {
				slog.Debug("Speech capture unavailable", "error", err)
				return true, false, nil
			}
			return true, false, err
		}
		out.Println("Listening... type /stop to stop.")
		return true, false, nil
	case "/stop":
		if err := sess.StopRecording(); err != nil {
			return true, false, err
		}
		return true, false, nil
	case "/state":
		out.PrintState(sess.State())
		return true, false, nil
	case "/messages":
		for _, m := range sess.Messages() {
			out.PrintMessage(m)
		}
		return true, false, nil
	}
	return false, false, nil
}
