package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Veraticus/spice-sorter/internal/cli"
)

func overridesCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "overrides",
		Short: "Inspect learned merchant overrides",
		Long: `Every manual category edit is remembered twice: under the exact merchant
fingerprint and under the merchant stem, which covers other branches of the
same chain.`,
	}

	cmd.AddCommand(listOverridesCmd(opts))
	cmd.AddCommand(backfillOverridesCmd(opts))
	return cmd
}

func listOverridesCmd(opts *rootOptions) *cobra.Command {
	var stems bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List overrides, most recently updated first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := opts.openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			entries, err := a.store.ListOverrides(ctx)
			if stems {
				entries, err = a.store.ListStemOverrides(ctx)
			}
			if err != nil {
				return fmt.Errorf("failed to list overrides: %w", err)
			}
			return cli.RenderOverrides(cmd.OutOrStdout(), entries)
		},
	}

	cmd.Flags().BoolVar(&stems, "stems", false, "List stem overrides instead of fingerprint overrides")
	return cmd
}

func backfillOverridesCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "backfill",
		Short: "Derive stem overrides from fingerprint overrides",
		Long: `Create a stem override for every learned fingerprint whose stem has none.
Existing stem overrides are never replaced. The database is also backfilled
automatically when it is opened, so this is only needed after changing
classifier.aliases.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := opts.openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			created, err := a.store.BackfillStemOverrides(ctx)
			if err != nil {
				return fmt.Errorf("backfill failed: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Created %d stem override(s)", created)))
			return err
		},
	}
}
