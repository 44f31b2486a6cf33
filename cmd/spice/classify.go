package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Veraticus/spice-ingest/internal/cli"
	"github.com/Veraticus/spice-ingest/internal/model"
	"github.com/Veraticus/spice-ingest/internal/registry"
)

func classifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "classify <path>...",
		Short: "Show which file format each path resolves to",
		Long: `Resolve each path against the configured file formats without reading it.
With --dir, paths are treated as directories and the command reports whether
files below them could still match some format.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadSettings()
			if err != nil {
				return err
			}
			reg, err := buildRegistry(settings)
			if err != nil {
				return err
			}
			dirs, _ := cmd.Flags().GetBool("dir")
			if dirs {
				printPrune(cmd.OutOrStdout(), reg, args)
				return nil
			}
			printClassification(cmd.OutOrStdout(), reg, args)
			return nil
		},
	}
	cmd.Flags().Bool("dir", false, "treat paths as directories")
	return cmd
}

func printClassification(w io.Writer, reg *registry.Registry, paths []string) {
	for _, p := range paths {
		spec, err := reg.Resolve(p)
		if err != nil {
			fmt.Fprintln(w, cli.FormatUnresolved(p, model.ErrorKind(err)))
			var ce *registry.ClassificationError
			if errors.As(err, &ce) && len(ce.Candidates) > 0 {
				fmt.Fprintf(w, "    candidates: %v\n", ce.Candidates)
			}
			continue
		}
		fmt.Fprintln(w, cli.FormatResolved(p, spec.ID))
	}
}

func printPrune(w io.Writer, reg *registry.Registry, dirs []string) {
	for _, d := range dirs {
		fmt.Fprintln(w, cli.FormatOutcome(d, reg.Prune(d)))
	}
}
