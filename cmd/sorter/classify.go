package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/Veraticus/spice-sorter/internal/cli"
	"github.com/Veraticus/spice-sorter/internal/model"
)

type transactionFlags struct {
	id            string
	amount        string
	date          string
	time          string
	category      string
	channel       string
	mcc           string
	country       string
	paymentMethod string
}

func (f *transactionFlags) register(cmd *cobra.Command, withCategory bool) {
	cmd.Flags().StringVarP(&f.amount, "amount", "a", "0", "Signed amount; negative is an expense")
	cmd.Flags().StringVarP(&f.date, "date", "d", "", "Date as YYYY-MM-DD (default: today)")
	cmd.Flags().StringVar(&f.time, "time", "", "Time of day as HH:MM:SS")
	cmd.Flags().StringVar(&f.channel, "channel", "", "Channel (one-time, recurring, cash, transfer)")
	cmd.Flags().StringVar(&f.mcc, "mcc", "", "Merchant category code")
	cmd.Flags().StringVar(&f.country, "country", "", "Counterparty IBAN country prefix")
	if withCategory {
		cmd.Flags().StringVar(&f.id, "id", "", "Transaction id (default: generated)")
		cmd.Flags().StringVarP(&f.category, "category", "c", "", "Category to keep instead of classifying")
		cmd.Flags().StringVar(&f.paymentMethod, "payment-method", "", "Payment method")
	}
}

func (f *transactionFlags) transaction(merchant string) (*model.Transaction, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(f.amount))
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", f.amount, err)
	}

	txn := &model.Transaction{
		ID:            f.id,
		Merchant:      merchant,
		Amount:        amount,
		Time:          f.time,
		Category:      f.category,
		Channel:       f.channel,
		MCC:           f.mcc,
		CountryPrefix: strings.ToUpper(f.country),
		PaymentMethod: f.paymentMethod,
	}
	if f.date != "" {
		date, err := time.Parse(model.DateLayout, f.date)
		if err != nil {
			return nil, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", f.date)
		}
		txn.Date = date
	}
	return txn, nil
}

func classifyCmd(opts *rootOptions) *cobra.Command {
	var flags transactionFlags

	cmd := &cobra.Command{
		Use:   "classify <merchant>",
		Short: "Show how a merchant would be classified",
		Long: `Run the classifier on a merchant description without storing anything.

The output shows the chosen category, where it came from (a learned
override, a rule or the fallback) and the signals that matched.`,
		Example: `  sorter classify "EASY PARK" --amount -5
  sorter classify "POS 1234 ESSELUNGA" --mcc 5411`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			txn, err := flags.transaction(strings.Join(args, " "))
			if err != nil {
				return err
			}

			a, err := opts.openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.classifier.Classify(ctx, txn)
			if err != nil {
				return fmt.Errorf("classification failed: %w", err)
			}

			normalizer := a.classifier.Normalizer()
			var b strings.Builder
			fmt.Fprintf(&b, "Normalized:  %s\n", normalizer.Normalize(txn.MerchantCandidate()))
			fmt.Fprintf(&b, "Stem:        %s\n", orDash(normalizer.Stem(txn.MerchantCandidate())))
			fmt.Fprintf(&b, "Fingerprint: %s\n", result.Fingerprint)
			fmt.Fprintf(&b, "Category:    %s\n", cli.BoldStyle.Render(result.Category))
			fmt.Fprintf(&b, "Source:      %s\n", cli.SourceStyle(result.Source).Render(string(result.Source)))
			fmt.Fprintf(&b, "Rule:        %s\n", orDash(result.MatchedRuleID))
			fmt.Fprintf(&b, "Confidence:  %.2f\n", result.Confidence)
			fmt.Fprintf(&b, "Signals:     %s", orDash(strings.Join(result.MatchedSignals, ", ")))

			_, err = fmt.Fprintln(cmd.OutOrStdout(), cli.RenderBox(txn.Merchant, b.String()))
			return err
		},
	}

	flags.register(cmd, false)
	return cmd
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
