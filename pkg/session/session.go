// Package session ties speech capture, interpretation and action execution
// together into a single conversational session.
//
// A Session is an actor: every state change happens on one loop goroutine
// that drains a queue of events. Capture callbacks, debounce timer firings
// and interpretation results are all posted to that queue, so handlers run
// to completion without locks.
package session

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/goshawk/voice-agent/pkg/chat"
	"github.com/goshawk/voice-agent/pkg/debounce"
	"github.com/goshawk/voice-agent/pkg/interpret"
	"github.com/goshawk/voice-agent/pkg/notify"
)

const eventQueueSize = 256

// Capture streams cumulative transcripts of what the user is saying.
//
// Start may block while the capture connects; it runs off the session loop
// and a concurrent Stop must abort it. onTranscript receives the full
// transcript each time it changes; onEnd is called once when capture stops on
// its own, with a nil error for a normal end.
type Capture interface {
	Available() bool
	Start(ctx context.Context, onTranscript func(transcript string), onEnd func(err error)) error
	Stop()
}

// TranscriptResetter is implemented by captures whose transcript keeps growing
// across utterances. ResetTranscript is called each time a transcript is
// committed so the next one only holds new speech.
type TranscriptResetter interface {
	ResetTranscript()
}

// Interpreter turns an utterance into a prompt and optional action code.
type Interpreter interface {
	Interpret(ctx context.Context, text string) (*interpret.Result, error)
}

// Executor runs action code returned by the interpreter.
type Executor interface {
	Run(ctx context.Context, code string) error
}

type Session struct {
	// ID is the unique identifier for the session
	ID string

	capture     Capture
	interpreter Interpreter
	executor    Executor
	notifier    notify.Notifier
	logger      *slog.Logger
	quiet       time.Duration
	onMessage   func(chat.Message)

	log   *chat.Log
	state atomic.Int32

	ctx    context.Context
	cancel context.CancelFunc
	events chan func()
	quit   chan struct{}
	done   chan struct{}
	once   sync.Once

	// Owned by the loop goroutine.
	recording bool
	epoch     uint64
	debouncer *debounce.Debouncer
	inFlight  bool
	queued    *string
	closed    bool
	waiters   []chan struct{}
}

type Opt func(s *Session)

// WithCapture sets the speech capture. Without one, StartRecording reports
// that speech recognition is not available.
func WithCapture(c Capture) Opt {
	return func(s *Session) {
		s.capture = c
	}
}

func WithNotifier(n notify.Notifier) Opt {
	return func(s *Session) {
		s.notifier = n
	}
}

// WithQuietPeriod sets how long the transcript must stay unchanged before it
// is sent for interpretation.
func WithQuietPeriod(d time.Duration) Opt {
	return func(s *Session) {
		s.quiet = d
	}
}

// WithMessageHandler registers a callback invoked on the session loop for
// every message appended to the log.
func WithMessageHandler(fn func(chat.Message)) Opt {
	return func(s *Session) {
		s.onMessage = fn
	}
}

func WithLogger(logger *slog.Logger) Opt {
	return func(s *Session) {
		s.logger = logger
	}
}

// New creates a session and starts its loop. Close must be called to release
// it.
func New(interpreter Interpreter, executor Executor, opts ...Opt) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		ID:          uuid.New().String(),
		interpreter: interpreter,
		executor:    executor,
		notifier:    notify.Discard,
		logger:      slog.Default(),
		quiet:       debounce.DefaultQuietPeriod,
		log:         chat.NewLog(),
		ctx:         ctx,
		cancel:      cancel,
		events:      make(chan func(), eventQueueSize),
		quit:        make(chan struct{}),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("session_id", s.ID)

	go s.loop()
	return s
}

func (s *Session) loop() {
	defer close(s.done)
	for {
		select {
		case fn := <-s.events:
			fn()
			s.refreshState()
		case <-s.quit:
			return
		}
	}
}

// post queues fn for the loop. It reports false once the loop has exited.
func (s *Session) post(fn func()) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.events <- fn:
		return true
	case <-s.done:
		return false
	}
}

// call runs fn on the loop and waits for its result.
func (s *Session) call(fn func() error) error {
	result := make(chan error, 1)
	if !s.post(func() {
		err := fn()
		s.refreshState()
		result <- err
	}) {
		return ErrClosed
	}
	select {
	case err := <-result:
		return err
	case <-s.done:
		select {
		case err := <-result:
			return err
		default:
			return ErrClosed
		}
	}
}

// StartRecording begins capturing speech. Starting an already recording
// session does nothing. The session is listening while the capture connects,
// so typed input, StopRecording and Close are served in the meantime.
func (s *Session) StartRecording() error {
	var (
		epoch uint64
		start func() error
	)
	err := s.call(func() error {
		if s.closed {
			return ErrClosed
		}
		if s.recording {
			return nil
		}
		if s.capture == nil || !s.capture.Available() {
			s.notifier.Notify(notify.LevelWarning, "Speech recognition is not available")
			return ErrCaptureUnavailable
		}

		s.epoch++
		epoch = s.epoch
		s.debouncer = debounce.New(s.quiet, func(transcript string) {
			s.post(func() { s.handleFinal(epoch, transcript) })
		})
		s.recording = true

		onTranscript := func(transcript string) {
			s.post(func() { s.handleTranscript(epoch, transcript) })
		}
		onEnd := func(err error) {
			s.post(func() { s.handleCaptureEnd(epoch, err) })
		}
		capture, ctx := s.capture, s.ctx
		start = func() error { return capture.Start(ctx, onTranscript, onEnd) }
		return nil
	})
	if err != nil || start == nil {
		return err
	}

	startErr := start()
	return s.call(func() error { return s.started(epoch, startErr) })
}

// started records the outcome of capture.Start. A start that was overtaken
// by StopRecording or Close is not reported.
func (s *Session) started(epoch uint64, err error) error {
	if epoch != s.epoch || !s.recording {
		if s.closed {
			return ErrClosed
		}
		return nil
	}
	if err != nil {
		s.logger.Warn("Failed to start speech capture", "error", err)
		s.notifier.Notify(notify.LevelWarning, "Speech recognition is not available")
		s.epoch++
		s.recording = false
		s.debouncer.Cancel()
		s.debouncer = nil
		return errors.Join(ErrCaptureUnavailable, err)
	}
	s.logger.Debug("Recording started")
	return nil
}

// StopRecording stops capturing speech and drops any transcript that was
// still waiting for the quiet period. A request already in flight keeps
// running and its result is still recorded.
func (s *Session) StopRecording() error {
	return s.call(func() error {
		if s.closed {
			return ErrClosed
		}
		s.stopRecording()
		return nil
	})
}

func (s *Session) stopRecording() {
	if !s.recording {
		return
	}
	// Bumping the epoch first turns any callback the capture or the timer
	// already posted into a no-op.
	s.epoch++
	s.recording = false
	if s.debouncer != nil {
		s.debouncer.Cancel()
		s.debouncer = nil
	}
	s.capture.Stop()
	s.logger.Debug("Recording stopped")
}

// Submit sends typed text through the same path as a finalized transcript.
func (s *Session) Submit(text string) error {
	return s.call(func() error {
		if s.closed {
			return ErrClosed
		}
		return s.process(text)
	})
}

// Close stops recording, cancels the context of any request in flight and
// stops the loop. Results that arrive afterwards are discarded.
func (s *Session) Close() error {
	s.once.Do(func() {
		_ = s.call(func() error {
			s.stopRecording()
			s.closed = true
			s.releaseWaiters()
			return nil
		})
		s.cancel()
		close(s.quit)
		<-s.done
		s.state.Store(int32(StateIdle))
		s.logger.Debug("Session closed")
	})
	return nil
}

// WaitIdle blocks until no request is in flight and none is queued.
func (s *Session) WaitIdle(ctx context.Context) error {
	ready := make(chan struct{})
	err := s.call(func() error {
		if s.busy() {
			s.waiters = append(s.waiters, ready)
		} else {
			close(ready)
		}
		return nil
	})
	if err != nil {
		return err
	}

	select {
	case <-ready:
		return nil
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) State() State {
	return State(s.state.Load())
}

// Messages returns a copy of the message log.
func (s *Session) Messages() []chat.Message {
	return s.log.All()
}

func (s *Session) handleTranscript(epoch uint64, transcript string) {
	if epoch != s.epoch || !s.recording {
		return
	}
	s.debouncer.Update(transcript)
}

func (s *Session) handleFinal(epoch uint64, transcript string) {
	if epoch != s.epoch || !s.recording {
		return
	}
	s.resetTranscript()
	if err := s.process(transcript); err != nil {
		s.logger.Debug("Ignoring finalized transcript", "error", err)
	}
}

func (s *Session) resetTranscript() {
	if r, ok := s.capture.(TranscriptResetter); ok {
		r.ResetTranscript()
	}
}

// handleCaptureEnd runs when the capture stops by itself. The last utterance
// is committed right away rather than lost with the timer.
func (s *Session) handleCaptureEnd(epoch uint64, err error) {
	if epoch != s.epoch || !s.recording {
		return
	}
	if err != nil {
		s.logger.Warn("Speech capture ended with an error", "error", err)
	} else {
		s.logger.Debug("Speech capture ended")
	}

	transcript, ok := s.debouncer.Take()
	s.epoch++
	s.recording = false
	s.debouncer = nil

	if ok {
		if err := s.process(transcript); err != nil {
			s.logger.Debug("Ignoring final transcript", "error", err)
		}
	}
}

// process starts a request for text, or queues it if one is in flight. Only
// the most recent queued input survives.
func (s *Session) process(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyInput
	}
	if s.inFlight {
		if s.queued != nil {
			s.logger.Debug("Replacing queued input", "dropped", *s.queued)
		}
		s.queued = &text
		return nil
	}
	s.begin(text)
	return nil
}

func (s *Session) begin(text string) {
	s.append(chat.UserMessage(text))
	s.inFlight = true

	ctx := s.ctx
	go func() {
		res, err := s.interpreter.Interpret(ctx, text)
		s.post(func() { s.settle(res, err) })
	}()
}

func (s *Session) settle(res *interpret.Result, err error) {
	if s.closed {
		return
	}
	s.inFlight = false

	switch {
	case err != nil:
		ierr := &InterpretationError{Reason: "Error processing voice input", Err: err}
		s.logger.Warn("Interpretation failed", "error", ierr)
		s.notifier.Notify(notify.LevelDanger, ierr.Reason)
		s.append(chat.SystemMessage("Error: " + err.Error()))
	case res == nil:
		ierr := &InterpretationError{Reason: "Error processing voice input", Err: interpret.ErrMalformedResponse}
		s.logger.Warn("Interpretation failed", "error", ierr)
		s.notifier.Notify(notify.LevelDanger, ierr.Reason)
		s.append(chat.SystemMessage("Error: " + interpret.ErrMalformedResponse.Error()))
	case res.Failed():
		ierr := &InterpretationError{Reason: res.Error}
		s.logger.Warn("Backend reported an error", "error", ierr)
		s.notifier.Notify(notify.LevelDanger, res.Error)
		s.append(chat.SystemMessage("Error: " + res.Error))
	default:
		s.append(chat.AssistantMessage(res.Prompt))
		if res.HasAction() {
			s.execute(res.ActionCode)
		}
	}

	if s.queued != nil {
		next := *s.queued
		s.queued = nil
		s.begin(next)
		return
	}
	s.releaseWaiters()
}

func (s *Session) execute(code string) {
	if err := s.executor.Run(s.ctx, code); err != nil {
		s.logger.Warn("Action execution failed", "error", err)
		s.notifier.Notify(notify.LevelDanger, "Error executing action")
	}
}

func (s *Session) append(m chat.Message) {
	s.log.Append(m)
	if s.onMessage != nil {
		s.onMessage(m)
	}
}

func (s *Session) busy() bool {
	return s.inFlight || s.queued != nil
}

func (s *Session) releaseWaiters() {
	s.refreshState()
	for _, w := range s.waiters {
		close(w)
	}
	s.waiters = nil
}

func (s *Session) refreshState() {
	state := StateIdle
	switch {
	case s.inFlight:
		state = StateProcessing
	case s.recording && s.debouncer != nil && s.debouncer.Pending():
		state = StateFinalizing
	case s.recording:
		state = StateListening
	}
	s.state.Store(int32(state))
}
