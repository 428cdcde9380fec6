package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/Veraticus/spice-sorter/internal/model"
)

// maxMerchantWidth truncates merchant columns in tables.
const maxMerchantWidth = 36

func newTable(w io.Writer, headers ...string) *tabwriter.Writer {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	styled := make([]string, len(headers))
	rules := make([]string, len(headers))
	for i, h := range headers {
		styled[i] = BoldStyle.Render(h)
		rules[i] = strings.Repeat("-", len(h))
	}
	fmt.Fprintln(tw, strings.Join(styled, "\t"))
	fmt.Fprintln(tw, strings.Join(rules, "\t"))
	return tw
}

// RenderChanges writes a reclassification preview table.
func RenderChanges(w io.Writer, changes []model.Change) error {
	if len(changes) == 0 {
		_, err := fmt.Fprintln(w, FormatInfo("No changes suggested"))
		return err
	}

	tw := newTable(w, "DATE", "ID", "MERCHANT", "CURRENT", "SUGGESTED", "SOURCE", "RULE", "CONF")
	for _, c := range changes {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s %s\t%s\t%s\t%.2f\n",
			c.Date.Format(model.DateLayout),
			c.TransactionID,
			truncate(c.Merchant, maxMerchantWidth),
			c.CurrentCategory,
			ArrowIcon,
			c.SuggestedCategory,
			SourceStyle(c.Source).Render(string(c.Source)),
			dash(c.MatchedRuleID),
			c.Confidence,
		)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\n%d change(s) suggested\n", len(changes))
	return err
}

// RenderTransactions writes a transaction table.
func RenderTransactions(w io.Writer, txns []model.Transaction) error {
	if len(txns) == 0 {
		_, err := fmt.Fprintln(w, FormatInfo("No transactions"))
		return err
	}

	tw := newTable(w, "DATE", "ID", "MERCHANT", "AMOUNT", "CATEGORY", "SOURCE", "CONF")
	for _, txn := range txns {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%.2f\n",
			txn.DateString(),
			txn.ID,
			truncate(txn.Merchant, maxMerchantWidth),
			txn.Amount.StringFixed(2),
			txn.Category,
			SourceStyle(txn.Classification.Source).Render(string(txn.Classification.Source)),
			txn.Classification.Confidence,
		)
	}
	return tw.Flush()
}

// RenderOverrides writes the merchant override table.
func RenderOverrides(w io.Writer, entries []model.OverrideEntry) error {
	if len(entries) == 0 {
		_, err := fmt.Fprintln(w, FormatInfo("No merchant overrides learned yet"))
		return err
	}

	tw := newTable(w, "KIND", "KEY", "CATEGORY", "EXAMPLE", "UPDATED")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			e.Kind,
			truncate(e.Key, maxMerchantWidth),
			e.Category,
			dash(truncate(e.ExampleMerchant, maxMerchantWidth)),
			e.UpdatedAt.Format("2006-01-02 15:04"),
		)
	}
	return tw.Flush()
}

// RenderApplyReport summarizes a reclassification apply.
func RenderApplyReport(w io.Writer, report *model.ApplyReport) error {
	var b strings.Builder
	b.WriteString(FormatSuccess(fmt.Sprintf("Applied %d change(s)", len(report.Applied))) + "\n")
	if len(report.Unchanged) > 0 {
		b.WriteString(SubtleStyle.Render(fmt.Sprintf("%d already up to date", len(report.Unchanged))) + "\n")
	}
	writeFailures(&b, report.Failed)
	_, err := fmt.Fprint(w, b.String())
	return err
}

// RenderImportReport summarizes an import commit.
func RenderImportReport(w io.Writer, report *model.ImportReport) error {
	var b strings.Builder
	b.WriteString(FormatSuccess(fmt.Sprintf("Imported %d of %d row(s)", len(report.Inserted), report.Total)) + "\n")
	if len(report.Duplicates) > 0 {
		b.WriteString(SubtleStyle.Render(fmt.Sprintf("%d duplicate(s) skipped", len(report.Duplicates))) + "\n")
	}
	writeFailures(&b, report.Failed)
	_, err := fmt.Fprint(w, b.String())
	return err
}

func writeFailures(b *strings.Builder, failed []model.ApplyFailure) {
	if len(failed) == 0 {
		return
	}
	b.WriteString(FormatWarning(fmt.Sprintf("%d failed", len(failed))) + "\n")
	for _, f := range failed {
		fmt.Fprintf(b, "  %s %s: %v\n", ErrorIcon, f.TransactionID, f.Err)
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
