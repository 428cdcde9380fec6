package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Veraticus/spice-sorter/internal/cli"
	"github.com/Veraticus/spice-sorter/internal/common"
)

func transactionsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "transactions",
		Aliases: []string{"tx"},
		Short:   "List and edit stored transactions",
	}

	cmd.AddCommand(listTransactionsCmd(opts))
	cmd.AddCommand(addTransactionCmd(opts))
	cmd.AddCommand(setCategoryCmd(opts))
	cmd.AddCommand(deleteTransactionCmd(opts))

	return cmd
}

func listTransactionsCmd(opts *rootOptions) *cobra.Command {
	var category string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List transactions, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := opts.openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			txns, err := a.ledger.List(ctx)
			if err != nil {
				return fmt.Errorf("failed to list transactions: %w", err)
			}
			if category != "" {
				filtered := txns[:0]
				for _, txn := range txns {
					if txn.Category == category {
						filtered = append(filtered, txn)
					}
				}
				txns = filtered
			}
			return cli.RenderTransactions(cmd.OutOrStdout(), txns)
		},
	}

	cmd.Flags().StringVarP(&category, "category", "c", "", "Only show transactions in this category")
	return cmd
}

func addTransactionCmd(opts *rootOptions) *cobra.Command {
	var flags transactionFlags

	cmd := &cobra.Command{
		Use:   "add <merchant>",
		Short: "Add a transaction by hand",
		Example: `  sorter transactions add "EASY PARK" --amount -5
  sorter transactions add "Vet clinic" --amount -80 --category Pets`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			txn, err := flags.transaction(args[0])
			if err != nil {
				return err
			}

			a, err := opts.openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			created, err := a.ledger.Create(ctx, txn)
			if err != nil {
				return fmt.Errorf("failed to add transaction: %w", err)
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Added %s as %s (%s)",
				created.ID, created.Category, created.Classification.Source)))
			return err
		},
	}

	flags.register(cmd, true)
	return cmd
}

func setCategoryCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "set-category <id> <category>",
		Short: "Correct a transaction's category",
		Long: `Set the category of one transaction by hand.

The choice is remembered for the merchant, so future transactions from it,
and from other branches of the same chain, get the same category.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := opts.openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			updated, err := a.ledger.SetCategory(ctx, args[0], args[1])
			if errors.Is(err, common.ErrNotFound) {
				return common.NewUserError(fmt.Sprintf("no transaction with id %s", args[0]), nil)
			}
			if err != nil {
				return fmt.Errorf("failed to set category: %w", err)
			}

			out := cmd.OutOrStdout()
			if updated.Category != args[1] {
				fmt.Fprintln(out, cli.FormatWarning(fmt.Sprintf("Unknown category %q stored as %s", args[1], updated.Category)))
			}
			_, err = fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("%s %s %s", updated.ID, cli.ArrowIcon, updated.Category)))
			return err
		},
	}
}

func deleteTransactionCmd(opts *rootOptions) *cobra.Command {
	var all, yes bool

	cmd := &cobra.Command{
		Use:   "delete [id]",
		Short: "Delete one transaction, or all with --all",
		Long:  `Delete transactions. Learned merchant overrides and custom categories are kept.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if all {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.ExactArgs(1)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			if all && !yes {
				ok, err := cli.NewNonBlockingReader(cmd.InOrStdin()).Confirm(ctx, out, "Delete every transaction?")
				if err != nil || !ok {
					fmt.Fprintln(out, cli.SubtleStyle.Render("Deletion cancelled."))
					return err
				}
			}

			a, err := opts.openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if all {
				n, err := a.ledger.DeleteAll(ctx)
				if err != nil {
					return fmt.Errorf("failed to delete transactions: %w", err)
				}
				_, err = fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("Deleted %d transaction(s)", n)))
				return err
			}

			deleted, err := a.ledger.Delete(ctx, args[0])
			if err != nil {
				return fmt.Errorf("failed to delete transaction: %w", err)
			}
			if !deleted {
				return common.NewUserError(fmt.Sprintf("no transaction with id %s", args[0]), nil)
			}
			_, err = fmt.Fprintln(out, cli.FormatSuccess("Deleted "+args[0]))
			return err
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Delete every transaction")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip confirmation prompt")
	return cmd
}
