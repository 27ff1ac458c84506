package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/oukeidos/gifsmith/internal/cleanup"
	"github.com/oukeidos/gifsmith/internal/version"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

func execute() {
	cmd := newRootCmd()
	err := cmd.Execute()
	if cleanupErr := cleanup.RunAll(); cleanupErr != nil {
		fmt.Fprintln(os.Stderr, cleanupErr)
		if err == nil {
			err = cleanupErr
		}
	}
	if err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintln(os.Stderr, newPalette(os.Stderr).fail("Error: ")+err.Error())
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	global := &globalOptions{}
	convertOpts := convertOptions{}

	cmd := &cobra.Command{
		Use:   "gifsmith",
		Short: "Convert short videos to animated GIFs",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				if hasAnyFlagSet(cmd) {
					_ = cmd.Usage()
					return fmt.Errorf("input file is required")
				}
				return cmd.Help()
			}
			if isSubcommand(cmd, args[0]) {
				_ = cmd.Usage()
				return fmt.Errorf("unknown command %q for %q", args[0], cmd.CommandPath())
			}
			return runConvert(cmd, args, global, &convertOpts)
		},
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.Version = version.Info()
	cmd.SetVersionTemplate("{{.Version}}\n")
	cmd.SetUsageTemplate(rootUsageTemplate)

	addGlobalFlags(cmd, global)
	addConvertFlags(cmd, &convertOpts)

	cmd.AddCommand(
		newAboutCmd(),
		newConvertCmd(global),
		newProbeCmd(global),
		newFormatsCmd(global),
	)

	cmd.InitDefaultCompletionCmd()
	for _, sub := range cmd.Commands() {
		if sub.Name() == "completion" {
			sub.Short = "Generate the autocompletion script for the specified shell"
			sub.SetUsageTemplate(subcommandUsageTemplate)
			break
		}
	}

	return cmd
}

func addGlobalFlags(cmd *cobra.Command, opts *globalOptions) {
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to config.toml (default: per-user config directory)")
	cmd.PersistentFlags().StringVar(&opts.logFile, "log-file", "", "Path to save machine-readable JSONL logs")
	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug logging")
}

func hasAnyFlagSet(cmd *cobra.Command) bool {
	changed := false
	cmd.Flags().Visit(func(_ *pflag.Flag) {
		changed = true
	})
	return changed
}

func isSubcommand(cmd *cobra.Command, name string) bool {
	for _, c := range cmd.Commands() {
		if c.Name() == name {
			return true
		}
	}
	return false
}
