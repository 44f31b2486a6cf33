package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Veraticus/spice-ingest/internal/cli"
	"github.com/Veraticus/spice-ingest/internal/model"
)

func formatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "formats",
		Short: "List configured file formats",
		Long: `Validate the file_formats section of the config and list every format with
its path rule and columns. Any configuration error is reported in full.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			settings, err := loadSettings()
			if err != nil {
				return err
			}
			reg, err := buildRegistry(settings)
			if err != nil {
				return err
			}
			printFormats(cmd.OutOrStdout(), reg.Formats())
			return nil
		},
	}
}

func printFormats(w io.Writer, formats []model.FormatSpec) {
	fmt.Fprintln(w, cli.FormatTitle(fmt.Sprintf("%d file formats", len(formats))))
	for i := range formats {
		f := &formats[i]
		fmt.Fprintf(w, "%s  %s\n", cli.BoldStyle.Render(f.ID), cli.SubtleStyle.Render(f.Rule.String()))

		cols := make([]string, len(f.Columns))
		for j, c := range f.Columns {
			desc := c.Name + ":" + c.Type.String()
			if c.Format != "" {
				desc += "(" + c.Format + ")"
			}
			if c.Special {
				desc += "*"
			}
			cols[j] = desc
		}
		fmt.Fprintf(w, "    columns: %s\n", strings.Join(cols, ", "))

		var opts []string
		if f.HasHeaderRow {
			opts = append(opts, "header")
		}
		if f.ValidateHeader {
			opts = append(opts, "validate-header")
		}
		if f.SkipRows > 0 {
			opts = append(opts, fmt.Sprintf("skip %d", f.SkipRows))
		}
		if f.Comma() != ',' {
			opts = append(opts, fmt.Sprintf("delimiter %q", f.Comma()))
		}
		if f.Handler != "" {
			opts = append(opts, "handler "+f.Handler)
		}
		if f.FlagUnsuggested {
			opts = append(opts, "flag-unsuggested")
		}
		if len(opts) > 0 {
			fmt.Fprintf(w, "    options: %s\n", strings.Join(opts, ", "))
		}
	}
}
