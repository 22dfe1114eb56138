package cli

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"

	"github.com/goshawk/voice-agent/pkg/chat"
	"github.com/goshawk/voice-agent/pkg/session"
)

// fakeSession answers every submitted command synchronously.
type fakeSession struct {
	mu        sync.Mutex
	submitted []string
	messages  []chat.Message
	recording bool
	startErr  error
	fail      map[string]string
}

func (f *fakeSession) StartRecording() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	f.recording = true
	return nil
}

func (f *fakeSession) StopRecording() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recording = false
	return nil
}

func (f *fakeSession) Submit(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return session.ErrEmptyInput
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted = append(f.submitted, text)
	f.messages = append(f.messages, chat.UserMessage(text))
	if reason, ok := f.fail[text]; ok {
		f.messages = append(f.messages, chat.SystemMessage("Error: "+reason))
	} else {
		f.messages = append(f.messages, chat.AssistantMessage(`{"action": "none"}`))
	}
	return nil
}

func (f *fakeSession) WaitIdle(context.Context) error { return nil }

func (f *fakeSession) State() session.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.recording {
		return session.StateListening
	}
	return session.StateIdle
}

func (f *fakeSession) Messages() []chat.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]chat.Message(nil), f.messages...)
}

func TestRunBatch(t *testing.T) {
	t.Parallel()

	sess := &fakeSession{}
	var out bytes.Buffer

	err := Run(t.Context(), NewPrinter(&out), Config{}, sess, strings.NewReader(""), []string{"open settings", "  ", "debug"})
	assert.NilError(t, err)
	assert.DeepEqual(t, sess.submitted, []string{"open settings", "debug"})
}

func TestRunBatchFromStdin(t *testing.T) {
	t.Parallel()

	sess := &fakeSession{}
	var out bytes.Buffer

	err := Run(t.Context(), NewPrinter(&out), Config{}, sess, strings.NewReader("open sales\n\nopen menu\n"), []string{"-"})
	assert.NilError(t, err)
	assert.DeepEqual(t, sess.submitted, []string{"open sales", "open menu"})
}

func TestRunBatchReturnsLastError(t *testing.T) {
	t.Parallel()

	sess := &fakeSession{fail: map[string]string{"open sales": "backend unreachable"}}
	var out bytes.Buffer

	err := Run(t.Context(), NewPrinter(&out), Config{}, sess, strings.NewReader(""), []string{"open sales"})

	var runtimeErr RuntimeError
	assert.Assert(t, errors.As(err, &runtimeErr))
	assert.Error(t, err, "backend unreachable")
}

func TestRunInteractive(t *testing.T) {
	t.Parallel()

	sess := &fakeSession{}
	var out bytes.Buffer

	in := strings.NewReader("/listen\n/state\nopen settings\n/stop\n/messages\n/exit\nnever sent\n")
	err := Run(t.Context(), NewPrinter(&out), Config{AppName: "voice-agent"}, sess, in, nil)
	assert.NilError(t, err)

	assert.DeepEqual(t, sess.submitted, []string{"open settings"})
	assert.Check(t, is.Contains(out.String(), "Welcome to voice-agent"))
	assert.Check(t, is.Contains(out.String(), "Listening..."))
	assert.Check(t, is.Contains(out.String(), "state: listening"))
	assert.Check(t, is.Contains(out.String(), "you: open settings"))
	assert.Check(t, is.Contains(out.String(), "agent: none()"))
}

func TestRunInteractiveCaptureUnavailable(t *testing.T) {
	t.Parallel()

	sess := &fakeSession{startErr: session.ErrCaptureUnavailable}
	var out bytes.Buffer

	err := Run(t.Context(), NewPrinter(&out), Config{}, sess, strings.NewReader("/listen\n/state\n"), nil)
	assert.NilError(t, err)
	assert.Check(t, !strings.Contains(out.String(), "Listening..."))
	assert.Check(t, is.Contains(out.String(), "state: idle"))
}

func TestRunInteractiveCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	var out bytes.Buffer
	err := Run(ctx, NewPrinter(&out), Config{}, &fakeSession{}, blockingReader{}, nil)
	assert.NilError(t, err)
}

type blockingReader struct{}

func (blockingReader) Read([]byte) (int, error) { select {} }
