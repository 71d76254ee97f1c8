package main

import (
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configDir string
	logLevel  string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	rootCmd := &cobra.Command{
		Use:           "mediatrack",
		Short:         "Track embedded YouTube players and ship media events to analytics sinks",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.configDir, "config-dir", ".", "directory containing mediatrack.cfg.json")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level override: debug|info|warn|error")

	rootCmd.AddCommand(newSimulateCmd(opts))
	rootCmd.AddCommand(newEventsCmd())
	rootCmd.AddCommand(newParamsCmd())
	return rootCmd
}
