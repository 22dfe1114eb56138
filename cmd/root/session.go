package root

import (
	"context"
	"log/slog"

	"github.com/goshawk/voice-agent/pkg/actions"
	"github.com/goshawk/voice-agent/pkg/audio/transcribe"
	"github.com/goshawk/voice-agent/pkg/cli"
	"github.com/goshawk/voice-agent/pkg/environment"
	"github.com/goshawk/voice-agent/pkg/host"
	"github.com/goshawk/voice-agent/pkg/httpclient"
	"github.com/goshawk/voice-agent/pkg/interpret"
	"github.com/goshawk/voice-agent/pkg/sandbox"
	"github.com/goshawk/voice-agent/pkg/session"
	"github.com/goshawk/voice-agent/pkg/userconfig"
)

// newSession wires the simulated shell, the action registry, the sandbox and
// the backend client into a session that prints to out. Speech capture is
// only attached when withCapture is set and an audio source is configured.
func newSession(ctx context.Context, cfg *userconfig.Config, env environment.Provider, out *cli.Printer, withCapture bool) *session.Session {
	logger := slog.Default()

	shellCfg := host.Config{
		Location: cfg.Host.Location,
		Entries:  cfg.Host.Entries,
		AppsMenu: cfg.Host.AppsMenu,
		MainMenu: cfg.Host.MainMenu,
	}
	shell := host.New(shellCfg,
		host.WithLogger(logger),
		host.WithNavigateHandler(func(location string) {
			out.Printf("-> %s\n", location)
		}),
		host.WithActivateHandler(func(name string) {
			out.Printf("* %s\n", name)
		}),
	)

	registry := actions.NewDefaultRegistry(shell, out,
		actions.WithOpenAppRetryDelay(cfg.Actions.OpenAppRetryDelay.Duration),
		actions.WithLogger(logger),
	)
	executor := sandbox.New(registry,
		sandbox.WithNotifier(out),
		sandbox.WithLocation(shell.Location),
		sandbox.WithLogger(logger),
	)

	httpOpts := []httpclient.Opt{httpclient.WithTimeout(cfg.Backend.Timeout.Duration)}
	for k, v := range cfg.Backend.Headers {
		httpOpts = append(httpOpts, httpclient.WithHeader(k, v))
	}
	client := interpret.NewClient(cfg.Backend.URL,
		interpret.WithHTTPClient(httpclient.NewHTTPClient(httpOpts...)),
		interpret.WithJSONRPC(cfg.Backend.JSONRPC),
		interpret.WithLogger(logger),
	)

	opts := []session.Opt{
		session.WithNotifier(out),
		session.WithQuietPeriod(cfg.Session.QuietPeriod.Duration),
		session.WithMessageHandler(out.PrintMessage),
		session.WithLogger(logger),
	}
	if withCapture {
		if capture := newTranscriber(ctx, cfg.Transcriber, env); capture != nil {
			opts = append(opts, session.WithCapture(capture))
		}
	}

	sess := session.New(client, executor, opts...)
	slog.Debug("Session created", "session_id", sess.ID, "backend", cfg.Backend.URL)
	return sess
}

func newTranscriber(ctx context.Context, cfg userconfig.Transcriber, env environment.Provider) *transcribe.Transcriber {
	if cfg.Audio == "" {
		slog.Debug("No audio source configured, speech capture disabled")
		return nil
	}
	return transcribe.New(environment.Value(ctx, env, environment.OpenAIKeyEnv),
		transcribe.WithURL(cfg.URL),
		transcribe.WithModel(cfg.Model),
		transcribe.WithSource(transcribe.FileSource(cfg.Audio)),
		transcribe.WithRealtimePacing(cfg.Realtime),
		transcribe.WithLogger(slog.Default()),
	)
}
