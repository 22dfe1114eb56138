package root

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/goshawk/voice-agent/pkg/cli"
	"github.com/goshawk/voice-agent/pkg/session"
)

// newRunCmd creates a new run command
func newRunCmd(flags *rootFlags) *cobra.Command {
	var listen bool

	cmd := &cobra.Command{
		Use:   "run [message...|-]",
		Short: "Start a voice session",
		Long:  `Start an interactive session that takes spoken or typed commands`,
		Example: `  voice-agent run
  voice-agent run --listen
  voice-agent run "open settings"
  echo "open settings" | voice-agent run -`,
		GroupID: "core",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSession(cmd, flags, args, true, listen)
		},
	}

	cmd.Flags().BoolVarP(&listen, "listen", "l", false, "Start speech capture right away")

	return cmd
}

func runSession(cmd *cobra.Command, flags *rootFlags, args []string, withCapture, listen bool) error {
	ctx := cmd.Context()

	env, err := flags.loadEnvironment()
	if err != nil {
		return err
	}
	cfg, err := flags.loadConfig(ctx, env)
	if err != nil {
		return err
	}

	out := cli.NewPrinter(cmd.OutOrStdout())
	sess := newSession(ctx, cfg, env, out, withCapture)

	if listen {
		if err := sess.StartRecording(); err != nil && !errors.Is(err, session.ErrCaptureUnavailable) {
			_ = sess.Close()
			return err
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		return cli.Run(ctx, out, cli.Config{AppName: AppName}, sess, cmd.InOrStdin(), args)
	})
	g.Go(func() error {
		<-ctx.Done()
		return sess.Close()
	})

	return g.Wait()
}
