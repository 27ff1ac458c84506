package main

import (
	"fmt"
	"strings"

	"github.com/oukeidos/gifsmith/internal/formats"
	"github.com/spf13/cobra"
)

func newFormatsCmd(global *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "formats",
		Short: "List known video formats and which are accepted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup(global)
			if err != nil {
				return err
			}
			reg, err := cfg.Registry()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			p := newPalette(out)
			fmt.Fprintln(out, "Video formats:")
			for _, f := range formats.Catalog() {
				mark := p.muted("  -")
				if reg.Allowed(f.ID) {
					mark = p.ok("  +")
				}
				fmt.Fprintf(out, "%s %-7s %-22s %s\n", mark, f.ID, f.Label, strings.Join(f.Extensions, " "))
			}
			fmt.Fprintln(out, p.muted("(+ accepted, - disabled; set [formats] allowed in config.toml)"))
			return nil
		},
	}
	cmd.SetUsageTemplate(subcommandUsageTemplate)
	return cmd
}
