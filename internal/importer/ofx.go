package importer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"

	"github.com/aclindsa/ofxgo"
	"github.com/shopspring/decimal"

	"github.com/Veraticus/spice-sorter/internal/common"
	"github.com/Veraticus/spice-sorter/internal/model"
)

// OFXParser reads OFX and QFX statements. The FITID is ignored so the same
// transaction exported twice, or by two different exports, gets one id.
type OFXParser struct{}

// NewOFXParser creates an OFX parser.
func NewOFXParser() *OFXParser {
	return &OFXParser{}
}

var (
	severityPattern = regexp.MustCompile(`(?i)<SEVERITY>(Info|Warn|Error)</SEVERITY>`)
	openTagPattern  = regexp.MustCompile(`(?m)^(\s*<[A-Z][A-Z0-9._]*[A-Z0-9])$`)
)

// preprocess fixes formatting issues some banks ship in their exports.
func (p *OFXParser) preprocess(content string) string {
	content = strings.TrimLeft(content, " \t\r\n")
	content = severityPattern.ReplaceAllStringFunc(content, strings.ToUpper)
	return openTagPattern.ReplaceAllString(content, "$1>")
}

// Parse implements Parser.
func (p *OFXParser) Parse(ctx context.Context, r io.Reader) ([]model.ImportRow, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read OFX file: %w", err)
	}
	if strings.TrimSpace(string(content)) == "" {
		return nil, fmt.Errorf("%w: empty OFX file", common.ErrEmptyStatement)
	}

	resp, err := ofxgo.ParseResponse(strings.NewReader(p.preprocess(string(content))))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse OFX file: %w", common.ErrUnsupportedFormat, err)
	}

	var rows []model.ImportRow
	var bankStmts, ccStmts int

	for _, msg := range resp.Bank {
		stmt, ok := msg.(*ofxgo.StatementResponse)
		if !ok || stmt.BankTranList == nil {
			continue
		}
		bankStmts++
		rows = p.appendTransactions(rows, stmt.BankTranList.Transactions)
	}

	for _, msg := range resp.CreditCard {
		stmt, ok := msg.(*ofxgo.CCStatementResponse)
		if !ok || stmt.BankTranList == nil {
			continue
		}
		ccStmts++
		rows = p.appendTransactions(rows, stmt.BankTranList.Transactions)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	slog.Info("Parsed OFX file",
		"total_transactions", len(rows),
		"bank_statements", bankStmts,
		"cc_statements", ccStmts)
	return rows, nil
}

func (p *OFXParser) appendTransactions(rows []model.ImportRow, txns []ofxgo.Transaction) []model.ImportRow {
	for _, ofxTx := range txns {
		rows = append(rows, model.ImportRow{
			Transaction: p.convert(ofxTx),
			Line:        len(rows) + 1,
		})
	}
	return rows
}

// convert maps one OFX transaction. Amounts keep their sign.
func (p *OFXParser) convert(ofxTx ofxgo.Transaction) model.Transaction {
	posted := ofxTx.DtPosted.Time.UTC()

	txn := model.Transaction{
		Date:          startOfDay(posted),
		Amount:        ofxAmount(ofxTx.TrnAmt),
		Merchant:      extractMerchantName(ofxTx),
		Channel:       channelFor(ofxTx.TrnType.String()),
		PaymentMethod: "OFX",
		Status:        DefaultStatus,
	}
	if !posted.IsZero() && (posted.Hour() != 0 || posted.Minute() != 0 || posted.Second() != 0) {
		txn.Time = posted.Format("15:04:05")
	}
	if ofxTx.Payee != nil && string(ofxTx.Payee.Name) != txn.Merchant {
		txn.Payee = string(ofxTx.Payee.Name)
	}
	if memo := strings.TrimSpace(string(ofxTx.Memo)); memo != "" && memo != txn.Merchant {
		txn.Description = memo
	}
	if txn.Merchant == "" {
		txn.Merchant = UnknownMerchant
	}

	txn.ID = StableID(txn.DateString(), txn.Time, txn.Amount, txn.Merchant)
	return txn
}

func ofxAmount(a ofxgo.Amount) decimal.Decimal {
	d, err := decimal.NewFromString(a.FloatString(2))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func channelFor(trnType string) string {
	switch trnType {
	case "ATM", "CASH":
		return model.ChannelCash
	case "XFER":
		return model.ChannelTransfer
	case "REPEATPMT", "DIRECTDEBIT":
		return model.ChannelRecurring
	}
	return model.ChannelOneTime
}

var cardPrefixes = []string{
	"POS PURCHASE ",
	"PURCHASE AUTHORIZED ON ",
	"DEBIT CARD PURCHASE ",
	"ACH DEBIT ",
	"CHECK CARD ",
	"VISA PURCHASE ",
	"MC PURCHASE ",
	"DEBIT PURCHASE ",
}

// extractMerchantName prefers PAYEE, then NAME, then MEMO when NAME is generic.
func extractMerchantName(tx ofxgo.Transaction) string {
	if tx.Payee != nil && tx.Payee.Name != "" {
		return strings.TrimSpace(string(tx.Payee.Name))
	}

	name := strings.TrimSpace(string(tx.Name))
	if tx.Memo != "" && isGenericDescription(name) {
		name = strings.TrimSpace(string(tx.Memo))
	}

	for _, prefix := range cardPrefixes {
		if strings.HasPrefix(strings.ToUpper(name), prefix) {
			name = name[len(prefix):]
			break
		}
	}

	// "MM/DD " date stamps some banks prepend
	if len(name) > 5 && name[2] == '/' && name[5] == ' ' {
		name = strings.TrimSpace(name[6:])
	}
	return name
}

func isGenericDescription(name string) bool {
	switch strings.ToUpper(name) {
	case "", "DEBIT", "CREDIT", "PURCHASE", "PAYMENT", "POS TRANSACTION", "CARD PURCHASE":
		return true
	}
	return false
}
