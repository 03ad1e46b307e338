package main

import (
	"github.com/spf13/cobra"

	"github.com/mapscene/animator/internal/config"
)

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:          AppName,
		Short:        "Animate camera paths, actors and sky cycles over a map",
		SilenceUsage: true,
	}
	flags := root.PersistentFlags()
	flags.StringVar(&opts.configDir, "config", "", "directory containing "+config.FileName)
	flags.StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	flags.StringVar(&opts.logsDir, "logs-dir", "", "directory for log files")
	flags.BoolVar(&opts.noLogFile, "no-log-file", false, "log to stderr only")

	root.AddCommand(
		newRunCmd(opts),
		newSampleCmd(opts),
		newScenesCmd(opts),
	)
	return root
}

// withApp sets up the app for the duration of fn.
func withApp(cmd *cobra.Command, opts *rootOptions, fn func(a *app) error) error {
	a, err := newApp(cmd, opts)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}
