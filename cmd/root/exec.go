package root

import "github.com/spf13/cobra"

func newExecCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "exec <message>...|-",
		Short: "Run commands without speech capture",
		Long:  `Send each message to the backend in turn, run the resulting actions and exit`,
		Example: `  voice-agent exec "open settings"
  voice-agent exec "open sales" "debug"
  voice-agent exec - < commands.txt`,
		GroupID: "core",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSession(cmd, flags, args, false, false)
		},
	}
}
