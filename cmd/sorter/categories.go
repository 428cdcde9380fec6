package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Veraticus/spice-sorter/internal/cli"
	"github.com/Veraticus/spice-sorter/internal/common"
	"github.com/Veraticus/spice-sorter/internal/model"
)

func categoriesCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "categories",
		Short: "Manage categories",
		Long: `List the built-in categories and manage your own.

A category that is neither built in nor registered here is stored as
UNCATEGORIZED.`,
	}

	cmd.AddCommand(listCategoriesCmd(opts))
	cmd.AddCommand(addCategoryCmd(opts))
	cmd.AddCommand(removeCategoryCmd(opts))
	return cmd
}

func listCategoriesCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List built-in and custom categories",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := opts.openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			custom, err := a.store.ListCustomCategories(ctx)
			if err != nil {
				return fmt.Errorf("failed to list categories: %w", err)
			}

			var b strings.Builder
			b.WriteString(cli.FormatTitle("Built-in"))
			b.WriteString("\n")
			for _, c := range model.BuiltinCategories() {
				b.WriteString("  " + c.String() + "\n")
			}
			b.WriteString("\n")
			b.WriteString(cli.FormatTitle("Custom"))
			b.WriteString("\n")
			if len(custom) == 0 {
				b.WriteString(cli.SubtleStyle.Render("  (none)") + "\n")
			}
			for _, name := range custom {
				b.WriteString("  " + name + "\n")
			}

			_, err = fmt.Fprint(cmd.OutOrStdout(), b.String())
			return err
		},
	}
}

func addCategoryCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "add <name>",
		Short: "Register a custom category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := opts.openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if model.IsBuiltin(strings.TrimSpace(args[0])) {
				return common.NewUserError(fmt.Sprintf("%s is already a built-in category", args[0]), nil)
			}

			name, err := a.store.AddCustomCategory(ctx, args[0])
			if err != nil {
				return fmt.Errorf("failed to add category: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Added category "+name))
			return err
		},
	}
}

func removeCategoryCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <name>",
		Short: "Unregister a custom category",
		Long: `Unregister a custom category. Transactions already carrying it keep it;
new writes with this name are stored as UNCATEGORIZED.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := opts.openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			removed, err := a.store.RemoveCustomCategory(ctx, args[0])
			if err != nil {
				return fmt.Errorf("failed to remove category: %w", err)
			}
			if !removed {
				return common.NewUserError(fmt.Sprintf("no custom category named %s", args[0]), nil)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Removed category "+args[0]))
			return err
		},
	}
}
