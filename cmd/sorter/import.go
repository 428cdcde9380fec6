package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Veraticus/spice-sorter/internal/cli"
	"github.com/Veraticus/spice-sorter/internal/importer"
	"github.com/Veraticus/spice-sorter/internal/model"
)

func importCmd(opts *rootOptions) *cobra.Command {
	var (
		format string
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import a bank statement",
		Long: `Import transactions from a CSV, XLSX, BCC credit-card XLSX or OFX/QFX statement.

Every row gets a stable id derived from its date, time, amount and merchant,
so importing the same statement twice, or two overlapping exports, never
creates duplicates. New rows are classified once, on insert.`,
		Example: `  sorter import january.csv
  sorter import estratto.xlsx --format bcc
  sorter import export.qfx --dry-run`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if format == "" {
				format = opts.cfg.Import.DefaultFormat
			}

			f, err := resolveImportFormat(format, path)
			if err != nil {
				return err
			}

			file, err := os.Open(filepath.Clean(path))
			if err != nil {
				return fmt.Errorf("failed to open statement: %w", err)
			}
			defer func() { _ = file.Close() }()

			handler := cli.NewInterruptHandler(cmd.ErrOrStderr(), "Import",
				"Rows imported so far are kept; importing the file again skips them.")
			ctx := handler.HandleInterrupts(cmd.Context())

			rows, err := importer.Parse(ctx, file, f)
			if err != nil {
				return fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
			}

			a, err := opts.openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			im := importer.New(a.ledger, importer.WithProgressWriter(cmd.ErrOrStderr()))
			out := cmd.OutOrStdout()

			if dryRun {
				preview, err := im.Preview(ctx, rows)
				if err != nil {
					return err
				}
				return renderPreview(cmd, preview)
			}

			report, err := im.Commit(ctx, rows)
			if err != nil {
				if handler.WasInterrupted() {
					return nil
				}
				return fmt.Errorf("import failed: %w", err)
			}
			return cli.RenderImportReport(out, report)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "", "Statement format: csv, xlsx, bcc, ofx (default: from extension)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show the parsed rows without saving")
	return cmd
}

func resolveImportFormat(name, path string) (importer.Format, error) {
	if name != "" {
		return importer.ParseFormat(name)
	}
	return importer.DetectFormat(path)
}

func renderPreview(cmd *cobra.Command, rows []model.ImportRow) error {
	txns := make([]model.Transaction, 0, len(rows))
	duplicates := 0
	for _, row := range rows {
		if row.Duplicate {
			duplicates++
			continue
		}
		txns = append(txns, row.Transaction)
	}

	out := cmd.OutOrStdout()
	if err := cli.RenderTransactions(out, txns); err != nil {
		return err
	}
	_, err := fmt.Fprintf(out, "\n%s\n", cli.FormatInfo(fmt.Sprintf("%d new, %d duplicate(s); nothing was saved", len(txns), duplicates)))
	return err
}
