package main

import (
	"context"
	"fmt"
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/Veraticus/spice-sorter/internal/cli"
	"github.com/Veraticus/spice-sorter/internal/model"
	"github.com/Veraticus/spice-sorter/internal/reclassify"
	"github.com/Veraticus/spice-sorter/internal/review"
)

func reclassifyCmd(opts *rootOptions) *cobra.Command {
	var (
		ids         []string
		all         bool
		interactive bool
		yes         bool
		workers     int
	)

	cmd := &cobra.Command{
		Use:   "reclassify",
		Short: "Re-run the classifier over stored transactions",
		Long: `Classify every stored transaction again and show where the result differs
from the stored category. Nothing changes unless you apply: pick ids with
--apply, take everything with --all, or choose in a list with --interactive.

Applied changes are remembered like manual edits.`,
		Example: `  sorter reclassify
  sorter reclassify --apply imp-3f2a9c81d0b4e6f7,tx-42
  sorter reclassify --interactive`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if workers <= 0 {
				workers = opts.cfg.Reclassify.Workers
			}

			a, err := opts.openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			svcOpts := []reclassify.Option{reclassify.WithWorkers(workers)}
			if opts.cfg.Reclassify.Checkpoint {
				manager, err := a.store.NewCheckpointManager()
				if err != nil {
					slog.Warn("Checkpoints disabled", "error", err)
				} else {
					svcOpts = append(svcOpts, reclassify.WithCheckpointer(manager))
				}
			}

			r := &reclassifyRun{cmd: cmd, yes: yes}
			svc := reclassify.New(a.ledger, append(svcOpts, reclassify.WithProgress(r.progress))...)

			switch {
			case len(ids) > 0:
				return r.apply(cmd.Context(), len(ids), func(ctx context.Context) (*model.ApplyReport, error) {
					return svc.Apply(ctx, ids)
				})
			case all, interactive:
				return r.review(cmd.Context(), svc, interactive)
			}
			return r.dryRun(cmd.Context(), svc)
		},
	}

	cmd.Flags().StringSliceVar(&ids, "apply", nil, "Apply the suggestions for these transaction ids")
	cmd.Flags().BoolVar(&all, "all", false, "Apply every suggested change")
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "Choose the changes to apply in a list")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt for --all")
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "Parallel classifiers for the preview (default: reclassify.workers)")
	cmd.MarkFlagsMutuallyExclusive("apply", "all", "interactive")

	return cmd
}

type reclassifyRun struct {
	cmd *cobra.Command
	bar *progressbar.ProgressBar
	yes bool
}

func (r *reclassifyRun) progress(done, total int) {
	if r.bar == nil {
		return
	}
	r.bar.ChangeMax(total)
	_ = r.bar.Set(done)
}

func (r *reclassifyRun) dryRun(ctx context.Context, svc *reclassify.Service) error {
	changes, err := svc.DryRun(ctx)
	if err != nil {
		return fmt.Errorf("dry run failed: %w", err)
	}
	return cli.RenderChanges(r.cmd.OutOrStdout(), changes)
}

func (r *reclassifyRun) review(ctx context.Context, svc *reclassify.Service, interactive bool) error {
	out := r.cmd.OutOrStdout()

	changes, err := svc.DryRun(ctx)
	if err != nil {
		return fmt.Errorf("dry run failed: %w", err)
	}
	if len(changes) == 0 {
		_, err := fmt.Fprintln(out, cli.FormatInfo("No changes suggested"))
		return err
	}

	selected := changes
	if interactive {
		ids, err := review.Run(ctx, changes,
			tea.WithInput(r.cmd.InOrStdin()),
			tea.WithOutput(out),
			tea.WithAltScreen())
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			_, err := fmt.Fprintln(out, cli.SubtleStyle.Render("Nothing applied."))
			return err
		}
		selected = pick(changes, ids)
	} else {
		if err := cli.RenderChanges(out, changes); err != nil {
			return err
		}
		if !r.yes {
			ok, err := cli.NewNonBlockingReader(r.cmd.InOrStdin()).Confirm(ctx, out, fmt.Sprintf("Apply %d change(s)?", len(changes)))
			if err != nil {
				return err
			}
			if !ok {
				_, err := fmt.Fprintln(out, cli.SubtleStyle.Render("Nothing applied."))
				return err
			}
		}
	}

	return r.apply(ctx, len(selected), func(ctx context.Context) (*model.ApplyReport, error) {
		return svc.ApplyChanges(ctx, selected)
	})
}

// pick returns the changes whose ids were selected, in change-set order.
func pick(changes []model.Change, ids []string) []model.Change {
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	picked := make([]model.Change, 0, len(ids))
	for _, c := range changes {
		if _, ok := want[c.TransactionID]; ok {
			picked = append(picked, c)
		}
	}
	return picked
}

func (r *reclassifyRun) apply(ctx context.Context, total int, run func(context.Context) (*model.ApplyReport, error)) error {
	handler := cli.NewInterruptHandler(r.cmd.ErrOrStderr(), "Reclassification",
		"Changes applied so far are kept; run reclassify again to see what is left.")
	ctx = handler.HandleInterrupts(ctx)

	r.bar = cli.NewProgressBar(r.cmd.ErrOrStderr(), total, "Applying changes...")
	report, err := run(ctx)
	cli.Finish(r.bar)
	if err != nil {
		if handler.WasInterrupted() {
			return nil
		}
		return fmt.Errorf("apply failed: %w", err)
	}
	return cli.RenderApplyReport(r.cmd.OutOrStdout(), report)
}
