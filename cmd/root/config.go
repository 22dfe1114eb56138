package root

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"

	"github.com/goshawk/voice-agent/pkg/cli"
	"github.com/goshawk/voice-agent/pkg/userconfig"
)

func newConfigCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage user configuration",
		Long:  "View and manage user-level voice-agent configuration stored in ~/.config/voice-agent/config.yaml",
		Example: `  # Show the current configuration
  voice-agent config show

  # Write the default configuration
  voice-agent config init

  # Show the path to the config file
  voice-agent config path`,
		GroupID: "advanced",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigShowCommand(cmd, flags)
		},
	}

	cmd.AddCommand(newConfigShowCmd(flags))
	cmd.AddCommand(newConfigInitCmd(flags))
	cmd.AddCommand(newConfigPathCmd(flags))

	return cmd
}

func newConfigShowCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the current configuration",
		Long:  "Display the effective configuration, defaults and environment overrides included, in YAML format",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigShowCommand(cmd, flags)
		},
	}
}

func newConfigInitCmd(flags *rootFlags) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := flags.configFile()
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("config file %s already exists (use --force to overwrite)", path)
			}

			if err := userconfig.Default().SaveTo(path); err != nil {
				return fmt.Errorf("failed to write config: %w", err)
			}

			cli.NewPrinter(cmd.OutOrStdout()).Printf("Wrote %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing config file")

	return cmd
}

func newConfigPathCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Show the path to the config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cli.NewPrinter(cmd.OutOrStdout()).Println(flags.configFile())
			return nil
		},
	}
}

func runConfigShowCommand(cmd *cobra.Command, flags *rootFlags) error {
	out := cli.NewPrinter(cmd.OutOrStdout())

	env, err := flags.loadEnvironment()
	if err != nil {
		return err
	}
	config, err := flags.loadConfig(cmd.Context(), env)
	if err != nil {
		return err
	}

	data, err := yaml.MarshalWithOptions(config, yaml.IndentSequence(true), yaml.UseSingleQuote(false))
	if err != nil {
		return fmt.Errorf("failed to format config: %w", err)
	}

	out.Print(string(data))
	return nil
}
