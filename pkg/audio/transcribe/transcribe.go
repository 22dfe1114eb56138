// Package transcribe streams PCM16 audio to OpenAI's Realtime API and reports
// the transcript as it grows.
package transcribe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/goshawk/voice-agent/pkg/httpclient"
)

const (
	DefaultURL   = "wss://api.openai.com/v1/realtime?intent=transcription"
	DefaultModel = "whisper-1"

	// SampleRate is the rate the Realtime API expects for pcm16 input.
	SampleRate = 24000

	// 100ms of mono 16-bit audio.
	chunkSize     = SampleRate * 2 / 10
	chunkDuration = 100 * time.Millisecond

	drainTimeout = 10 * time.Second
)

var ErrAlreadyRunning = errors.New("transcriber already running")

// Source opens the audio to transcribe: raw little-endian PCM16, mono, 24kHz.
type Source func() (io.ReadCloser, error)

// FileSource reads audio from a file or named pipe.
func FileSource(path string) Source {
	return func() (io.ReadCloser, error) {
		return os.Open(path)
	}
}

// Transcriber implements the session's speech capture on top of a realtime
// transcription websocket. One stream runs at a time.
type Transcriber struct {
	apiKey string
	url    string
	model  string
	source Source
	pace   bool
	dialer *websocket.Dialer
	logger *slog.Logger

	mu      sync.Mutex
	current *stream
	pending *pendingStart
}

type Opt func(*Transcriber)

func WithURL(url string) Opt {
	return func(t *Transcriber) {
		t.url = url
	}
}

func WithModel(model string) Opt {
	return func(t *Transcriber) {
		t.model = model
	}
}

func WithSource(source Source) Opt {
	return func(t *Transcriber) {
		t.source = source
	}
}

// WithRealtimePacing sends audio no faster than it would be spoken. Useful
// when the source is a file rather than a live device.
func WithRealtimePacing(pace bool) Opt {
	return func(t *Transcriber) {
		t.pace = pace
	}
}

func WithDialer(d *websocket.Dialer) Opt {
	return func(t *Transcriber) {
		t.dialer = d
	}
}

func WithLogger(logger *slog.Logger) Opt {
	return func(t *Transcriber) {
		t.logger = logger
	}
}

func New(apiKey string, opts ...Opt) *Transcriber {
	t := &Transcriber{
		apiKey: apiKey,
		url:    DefaultURL,
		model:  DefaultModel,
		dialer: websocket.DefaultDialer,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Available reports whether the transcriber has credentials and audio.
func (t *Transcriber) Available() bool {
	return t.apiKey != "" && t.source != nil
}

// IsRunning returns true while a stream is active.
func (t *Transcriber) IsRunning() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current != nil
}

// Start connects, configures the session and begins streaming audio.
// onTranscript receives the cumulative transcript of everything heard since
// the stream started or ResetTranscript was last called; onEnd is called once
// when the stream ends without Stop being called. Stop aborts a Start that is
// still connecting.
func (t *Transcriber) Start(ctx context.Context, onTranscript func(string), onEnd func(error)) error {
	if !t.Available() {
		return errors.New("transcriber is not configured")
	}

	ctx, cancel := context.WithCancel(ctx)
	attempt := &pendingStart{cancel: cancel}

	t.mu.Lock()
	if t.current != nil || t.pending != nil {
		t.mu.Unlock()
		cancel()
		return ErrAlreadyRunning
	}
	t.pending = attempt
	t.mu.Unlock()

	s, err := t.connect(ctx, cancel, onTranscript)

	t.mu.Lock()
	if t.pending == attempt {
		t.pending = nil
	}
	if err == nil && ctx.Err() != nil {
		s.close()
		_ = s.audio.Close()
		err = fmt.Errorf("connect to transcription service: %w", ctx.Err())
	}
	if err != nil {
		t.mu.Unlock()
		cancel()
		return err
	}
	t.current = s
	t.mu.Unlock()

	go s.pump(ctx)
	go func() {
		err := s.read(ctx)
		s.close()

		t.mu.Lock()
		if t.current == s {
			t.current = nil
		}
		t.mu.Unlock()

		if s.isStopped() {
			return
		}
		if err != nil {
			t.logger.Warn("Transcription stream failed", "error", err)
		}
		if onEnd != nil {
			onEnd(err)
		}
	}()

	t.logger.Debug("Transcription started", "url", t.url, "model", t.model)
	return nil
}

type pendingStart struct {
	cancel context.CancelFunc
}

// connect opens the audio source and the websocket. It runs without t.mu so
// Stop can cancel a slow handshake.
func (t *Transcriber) connect(ctx context.Context, cancel context.CancelFunc, onTranscript func(string)) (*stream, error) {
	audio, err := t.source()
	if err != nil {
		return nil, fmt.Errorf("open audio source: %w", err)
	}

	conn, err := t.dial(ctx)
	if err != nil {
		_ = audio.Close()
		return nil, fmt.Errorf("connect to transcription service: %w", err)
	}

	if err := conn.WriteJSON(map[string]any{
		"type": "transcription_session.update",
		"session": map[string]any{
			"input_audio_format": "pcm16",
			"input_audio_transcription": map[string]string{
				"model": t.model,
			},
			"turn_detection": map[string]any{
				"type": "server_vad",
			},
		},
	}); err != nil {
		conn.Close()
		_ = audio.Close()
		return nil, fmt.Errorf("configure session: %w", err)
	}

	return &stream{
		conn:         conn,
		audio:        audio,
		cancel:       cancel,
		pace:         t.pace,
		logger:       t.logger,
		onTranscript: onTranscript,
		transcript:   newTranscript(),
		pendingItems: map[string]bool{},
		idle:         make(chan struct{}),
	}, nil
}

type dialResult struct {
	conn *websocket.Conn
	err  error
}

// dial returns as soon as ctx is done. The websocket handshake itself only
// honours the dialer's timeout.
func (t *Transcriber) dial(ctx context.Context) (*websocket.Conn, error) {
	result := make(chan dialResult, 1)
	go func() {
		conn, _, err := t.dialer.DialContext(ctx, t.url, http.Header{
			"Authorization": []string{"Bearer " + t.apiKey},
			"OpenAI-Beta":   []string{"realtime=v1"},
			"User-Agent":    []string{httpclient.UserAgent()},
		})
		result <- dialResult{conn: conn, err: err}
	}()

	select {
	case r := <-result:
		return r.conn, r.err
	case <-ctx.Done():
		go func() {
			if r := <-result; r.conn != nil {
				r.conn.Close()
			}
		}()
		return nil, ctx.Err()
	}
}

// ResetTranscript starts the next transcript from scratch. It is called once
// the current one has been acted on.
func (t *Transcriber) ResetTranscript() {
	t.mu.Lock()
	s := t.current
	t.mu.Unlock()

	if s != nil {
		s.transcript.reset()
	}
}

// Stop ends the current stream, or aborts one that is still connecting.
// onEnd is not called for a stopped stream.
func (t *Transcriber) Stop() {
	t.mu.Lock()
	s := t.current
	t.current = nil
	if t.pending != nil {
		t.pending.cancel()
		t.pending = nil
	}
	t.mu.Unlock()

	if s == nil {
		return
	}
	s.stop()
	t.logger.Debug("Transcription stopped")
}
