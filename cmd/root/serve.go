package root

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/goshawk/voice-agent/pkg/backend"
	"github.com/goshawk/voice-agent/pkg/cli"
	"github.com/goshawk/voice-agent/pkg/environment"
	"github.com/goshawk/voice-agent/pkg/server"
	"github.com/goshawk/voice-agent/pkg/userconfig"
)

type serveFlags struct {
	listen      string
	interpreter string
	model       string
	baseURL     string
}

func newServeCmd(flags *rootFlags) *cobra.Command {
	var opts serveFlags

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start a development interpretation backend",
		Long:  `Serve the interpretation endpoint used by voice sessions, backed by a keyword matcher or a model`,
		Example: `  voice-agent serve
  voice-agent serve --interpreter gemini
  voice-agent serve --interpreter anthropic --model claude-3-5-haiku-latest
  voice-agent serve --listen unix:///tmp/voice-agent.sock`,
		GroupID: "advanced",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			env, err := flags.loadEnvironment()
			if err != nil {
				return err
			}
			cfg, err := flags.loadConfig(ctx, env)
			if err != nil {
				return err
			}

			serverCfg := cfg.Server
			if cmd.Flags().Changed("listen") {
				serverCfg.Listen = opts.listen
			}
			if cmd.Flags().Changed("interpreter") {
				serverCfg.Interpreter = opts.interpreter
			}
			if cmd.Flags().Changed("model") {
				serverCfg.Model = opts.model
			}
			if cmd.Flags().Changed("base-url") {
				serverCfg.BaseURL = opts.baseURL
			}

			interpreter, err := newInterpreter(ctx, serverCfg, env)
			if err != nil {
				return err
			}

			ln, err := server.Listen(ctx, serverCfg.Listen)
			if err != nil {
				return fmt.Errorf("failed to listen on %s: %w", serverCfg.Listen, err)
			}
			defer ln.Close()

			out := cli.NewPrinter(cmd.OutOrStdout())
			out.Printf("Listening on %s (%s interpreter)\n", ln.Addr(), serverCfg.Interpreter)

			return server.New(interpreter, server.WithLogger(slog.Default())).Serve(ctx, ln)
		},
	}

	cmd.Flags().StringVar(&opts.listen, "listen", userconfig.DefaultListen, "Address to listen on (host:port, unix://path, npipe://name or fd://n)")
	cmd.Flags().StringVar(&opts.interpreter, "interpreter", "keyword", "Interpreter to use: keyword, gemini, openai or anthropic")
	cmd.Flags().StringVar(&opts.model, "model", "", "Model used by the model-backed interpreters")
	cmd.Flags().StringVar(&opts.baseURL, "base-url", "", "Override the model provider API URL")

	return cmd
}

func newInterpreter(ctx context.Context, cfg userconfig.Server, env environment.Provider) (backend.Interpreter, error) {
	switch cfg.Interpreter {
	case "", "keyword":
		return backend.Keyword{}, nil
	case "gemini":
		model, err := backend.NewGemini(ctx, environment.Value(ctx, env, environment.GoogleKeyEnv), cfg.Model, cfg.BaseURL)
		if err != nil {
			return nil, err
		}
		return backend.NewTwoStep(model, slog.Default()), nil
	case "openai":
		model, err := backend.NewOpenAI(environment.Value(ctx, env, environment.OpenAIKeyEnv), cfg.Model, cfg.BaseURL)
		if err != nil {
			return nil, err
		}
		return backend.NewTwoStep(model, slog.Default()), nil
	case "anthropic":
		model, err := backend.NewAnthropic(environment.Value(ctx, env, environment.AnthropicKeyEnv), cfg.Model, cfg.BaseURL)
		if err != nil {
			return nil, err
		}
		return backend.NewTwoStep(model, slog.Default()), nil
	default:
		return nil, fmt.Errorf("unknown interpreter %q", cfg.Interpreter)
	}
}
