package main

import (
	"fmt"

	"github.com/oukeidos/gifsmith/internal/version"
	"github.com/spf13/cobra"
)

func newAboutCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "about",
		Short: "Show a short description and link",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "gifsmith %s: convert short videos to animated GIFs with ffmpeg\n", version.Version)
			fmt.Fprintln(out, "https://github.com/oukeidos/gifsmith")
		},
	}
	cmd.SetUsageTemplate(subcommandUsageTemplate)
	return cmd
}
