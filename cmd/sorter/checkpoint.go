package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Veraticus/spice-sorter/internal/cli"
	"github.com/Veraticus/spice-sorter/internal/storage"
)

func checkpointCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "checkpoint",
		Short: "Manage database checkpoints",
		Long: `Create, list, restore, and delete database checkpoints.

Reclassification takes an automatic checkpoint before applying changes
unless reclassify.checkpoint is false.`,
		Example: `  sorter checkpoint create --tag before-cleanup
  sorter checkpoint list
  sorter checkpoint restore before-cleanup`,
	}

	cmd.AddCommand(createCheckpointCmd(opts))
	cmd.AddCommand(listCheckpointsCmd(opts))
	cmd.AddCommand(restoreCheckpointCmd(opts))
	cmd.AddCommand(deleteCheckpointCmd(opts))
	return cmd
}

// withCheckpoints opens the app and a checkpoint manager for fn.
func withCheckpoints(cmd *cobra.Command, opts *rootOptions, fn func(*app, *storage.CheckpointManager) error) error {
	a, err := opts.openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	manager, err := a.store.NewCheckpointManager()
	if err != nil {
		return fmt.Errorf("failed to create checkpoint manager: %w", err)
	}
	return fn(a, manager)
}

func createCheckpointCmd(opts *rootOptions) *cobra.Command {
	var tag, description string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new checkpoint",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withCheckpoints(cmd, opts, func(_ *app, manager *storage.CheckpointManager) error {
				info, err := manager.Create(cmd.Context(), tag, description)
				if err != nil {
					return fmt.Errorf("failed to create checkpoint: %w", err)
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s Created checkpoint %s (%s)\n",
					cli.SuccessStyle.Render(cli.SuccessIcon),
					cli.InfoStyle.Render(info.ID),
					formatFileSize(info.FileSize))
				return err
			})
		},
	}

	cmd.Flags().StringVarP(&tag, "tag", "t", "", "Checkpoint tag/name (auto-generated if not provided)")
	cmd.Flags().StringVarP(&description, "description", "d", "", "Description of the checkpoint")
	return cmd
}

func listCheckpointsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all checkpoints",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withCheckpoints(cmd, opts, func(_ *app, manager *storage.CheckpointManager) error {
				checkpoints, err := manager.List(cmd.Context())
				if err != nil {
					return fmt.Errorf("failed to list checkpoints: %w", err)
				}

				out := cmd.OutOrStdout()
				if len(checkpoints) == 0 {
					_, err := fmt.Fprintln(out, cli.SubtleStyle.Render("No checkpoints found."))
					return err
				}

				w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, strings.Join([]string{
					cli.BoldStyle.Render("NAME"),
					cli.BoldStyle.Render("CREATED"),
					cli.BoldStyle.Render("SIZE"),
					cli.BoldStyle.Render("TRANSACTIONS"),
					cli.BoldStyle.Render("OVERRIDES"),
					cli.BoldStyle.Render("TYPE"),
				}, "\t"))

				for _, cp := range checkpoints {
					typeLabel := "manual"
					if cp.IsAuto {
						typeLabel = "auto"
					}
					fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\n",
						cli.InfoStyle.Render(cp.ID),
						formatRelativeTime(cp.CreatedAt),
						formatFileSize(cp.FileSize),
						cp.Transactions,
						cp.Overrides,
						cli.SubtleStyle.Render(typeLabel),
					)
				}
				return w.Flush()
			})
		},
	}
}

func restoreCheckpointCmd(opts *rootOptions) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "restore <checkpoint-id>",
		Short: "Restore database from a checkpoint",
		Long:  `Replace the current database with a checkpoint.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			out := cmd.OutOrStdout()

			if !force {
				fmt.Fprintf(out, "%s This will replace your current database with checkpoint %s.\n",
					cli.WarningStyle.Render(cli.WarningIcon),
					cli.InfoStyle.Render(id))
				ok, err := cli.NewNonBlockingReader(cmd.InOrStdin()).Confirm(cmd.Context(), out, "Continue?")
				if err != nil {
					return err
				}
				if !ok {
					_, err := fmt.Fprintln(out, cli.SubtleStyle.Render("Restore cancelled."))
					return err
				}
			}

			return withCheckpoints(cmd, opts, func(_ *app, manager *storage.CheckpointManager) error {
				if err := manager.Restore(cmd.Context(), id); err != nil {
					return fmt.Errorf("failed to restore checkpoint: %w", err)
				}
				_, err := fmt.Fprintf(out, "%s Restored from checkpoint %s\n",
					cli.SuccessStyle.Render(cli.SuccessIcon),
					cli.InfoStyle.Render(id))
				return err
			})
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Skip confirmation prompt")
	return cmd
}

func deleteCheckpointCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <checkpoint-id>",
		Short: "Delete a checkpoint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCheckpoints(cmd, opts, func(_ *app, manager *storage.CheckpointManager) error {
				if err := manager.Delete(cmd.Context(), args[0]); err != nil {
					return fmt.Errorf("failed to delete checkpoint: %w", err)
				}
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s Deleted checkpoint %s\n",
					cli.SuccessStyle.Render(cli.SuccessIcon),
					cli.InfoStyle.Render(args[0]))
				return err
			})
		},
	}
}
