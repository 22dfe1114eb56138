// Package sandbox runs backend supplied action code against the action
// registry. Code is parsed, never evaluated: the only admitted program is a
// sequence of calls into the registry whose arguments are string literals or
// the read-only current location.
package sandbox

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/goshawk/voice-agent/pkg/actions"
	"github.com/goshawk/voice-agent/pkg/notify"
)

var tracer = otel.Tracer("github.com/goshawk/voice-agent/pkg/sandbox")

type Sandbox struct {
	registry *actions.Registry
	notifier notify.Notifier
	location func() string
	logger   *slog.Logger
}

type Opt func(*Sandbox)

func WithNotifier(n notify.Notifier) Opt {
	return func(s *Sandbox) {
		s.notifier = n
	}
}

// WithLocation sets the accessor behind `location` and `location.href`.
func WithLocation(fn func() string) Opt {
	return func(s *Sandbox) {
		s.location = fn
	}
}

func WithLogger(logger *slog.Logger) Opt {
	return func(s *Sandbox) {
		s.logger = logger
	}
}

func New(registry *actions.Registry, opts ...Opt) *Sandbox {
	s := &Sandbox{
		registry: registry,
		notifier: notify.Discard,
		location: func() string { return "" },
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type boundCall struct {
	name   string
	action *actions.Action
	args   []arg
}

// Run executes code. Any failure, including a panic inside an action, is
// returned as an *ExecutionError. Calls into unknown `actions.` members are
// reported as warnings and skipped. Nothing is kept between calls to Run.
func (s *Sandbox) Run(ctx context.Context, code string) (err error) {
	ctx, span := tracer.Start(ctx, "voice_agent.execute")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	calls, err := compile(code)
	if err != nil {
		s.logger.Warn("Rejected action code", "error", err)
		return err
	}
	span.SetAttributes(attribute.Int("voice_agent.calls", len(calls)))

	bound, err := s.bind(calls)
	if err != nil {
		s.logger.Warn("Rejected action code", "error", err)
		return err
	}

	for _, c := range bound {
		if err := ctx.Err(); err != nil {
			return &ExecutionError{Reason: "canceled", Err: err}
		}

		if c.action == nil {
			s.logger.Debug("Unknown action", "action", c.name)
			s.notifier.Notify(notify.LevelWarning, fmt.Sprintf("Action %q not found", c.name))
			continue
		}

		if err := s.invoke(ctx, c); err != nil {
			s.logger.Warn("Action failed", "action", c.name, "error", err)
			return err
		}
	}

	return nil
}

// bind resolves every call before any of them runs, so a rejected snippet
// has no side effects.
func (s *Sandbox) bind(calls []call) ([]boundCall, error) {
	bound := make([]boundCall, 0, len(calls))
	for _, c := range calls {
		a, ok := s.registry.Lookup(c.name)
		if !ok {
			if !c.scoped {
				return nil, rejected(fmt.Sprintf("%q is not an action", c.name))
			}
			bound = append(bound, boundCall{name: c.name})
			continue
		}

		want := 0
		if a.TakesArg {
			want = 1
		}
		if len(c.args) != want {
			return nil, rejected(fmt.Sprintf("action %s takes %d argument(s), got %d", a.Name, want, len(c.args)))
		}

		bound = append(bound, boundCall{name: c.name, action: a, args: c.args})
	}
	return bound, nil
}

func (s *Sandbox) invoke(ctx context.Context, c boundCall) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &ExecutionError{Reason: "action " + c.action.Name + " raised", Err: fmt.Errorf("%v", r)}
		}
	}()

	args := make([]string, 0, len(c.args))
	for _, a := range c.args {
		switch a.kind {
		case argLocation:
			args = append(args, s.location())
		default:
			args = append(args, a.value)
		}
	}

	s.logger.Debug("Invoking action", "action", c.action.Name, "args", args)
	c.action.Invoke(ctx, args)
	return nil
}
