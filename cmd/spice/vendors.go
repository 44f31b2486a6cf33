package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/spice-ingest/internal/cli"
	"github.com/Veraticus/spice-ingest/internal/config"
	"github.com/Veraticus/spice-ingest/internal/model"
)

func vendorsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vendors",
		Short: "Manage vendor categories",
		Long: `View and edit the vendor→category map. Vendors are learned from ingested
records that carry a category; manual entries are never overwritten by learning.`,
	}

	// Subcommands
	cmd.AddCommand(vendorsListCmd())
	cmd.AddCommand(vendorsSetCmd())

	return cmd
}

func vendorsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all vendors",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, err := openStorage(ctx, config.DatabasePath(viper.GetViper()))
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			vendors, err := store.GetAllVendors(ctx)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if len(vendors) == 0 {
				fmt.Fprintln(w, cli.FormatInfo("No vendors yet"))
				return nil
			}
			for _, v := range vendors {
				fmt.Fprintf(w, "%s  %s  %s\n",
					cli.TableCellStyle.Width(32).Render(v.Name),
					cli.TableCellStyle.Width(20).Render(v.Category),
					cli.SubtleStyle.Render(fmt.Sprintf("%s, used %d", strings.ToLower(string(v.Source)), v.UseCount)))
			}
			return nil
		},
	}
}

func vendorsSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <title> <category>",
		Short: "Set the category for a vendor",
		Long: `Set a manual category for the vendor a record title normalizes to, for
example "spice vendors set 'STARBUCKS #1234' Dining".`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := model.VendorKey(args[0])
			if key == "" {
				return fmt.Errorf("title %q has no vendor name", args[0])
			}

			ctx := cmd.Context()
			store, err := openStorage(ctx, config.DatabasePath(viper.GetViper()))
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			vendor := &model.Vendor{Name: key, Category: args[1], Source: model.SourceManual}
			if existing, err := store.GetVendor(ctx, key); err == nil {
				vendor.UseCount = existing.UseCount
			}
			if err := store.SaveVendor(ctx, vendor); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("%s → %s", key, args[1])))
			return nil
		},
	}
}
