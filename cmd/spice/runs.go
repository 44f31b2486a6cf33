package main

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/spice-ingest/internal/cli"
	"github.com/Veraticus/spice-ingest/internal/common"
	"github.com/Veraticus/spice-ingest/internal/config"
)

func runsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <id>",
		Short: "Show a past ingest run and its errors",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := openStorage(ctx, config.DatabasePath(viper.GetViper()))
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			run, err := store.GetRun(ctx, args[0])
			if errors.Is(err, sql.ErrNoRows) {
				return common.NewUserError("No such run "+args[0], nil)
			}
			if err != nil {
				return err
			}
			problems, err := store.GetIngestErrors(ctx, run.ID)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintln(w, cli.FormatTitle("Run "+run.ID))
			fmt.Fprintf(w, "started:  %s\n", run.StartedAt.Local().Format("2006-01-02 15:04:05"))
			if run.Done() {
				fmt.Fprintf(w, "finished: %s\n", run.FinishedAt.Local().Format("2006-01-02 15:04:05"))
			} else {
				fmt.Fprintln(w, cli.FormatWarning("never finished"))
			}
			fmt.Fprintf(w, "files %d, records %d, duplicates %d, skipped files %d, dropped rows %d\n",
				run.Files, run.Records, run.Duplicates, run.SkippedFiles, run.DroppedRows)
			for _, p := range problems {
				loc := p.Path
				if p.Line > 0 {
					loc = fmt.Sprintf("%s:%d", p.Path, p.Line)
				}
				fmt.Fprintf(w, "  %s %s [%s] %s\n", cli.ErrorStyle.Render(cli.ErrorIcon), loc, p.Kind, p.Message)
			}
			return nil
		},
	}
}
