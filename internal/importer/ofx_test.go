package importer

import (
	"context"
	"strings"
	"testing"

	"github.com/aclindsa/ofxgo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/spice-sorter/internal/common"
	"github.com/Veraticus/spice-sorter/internal/model"
)

const sampleBankOFX = `OFXHEADER:100
DATA:OFXSGML
VERSION:102
SECURITY:NONE
ENCODING:USASCII
CHARSET:1252
COMPRESSION:NONE
OLDFILEUID:NONE
NEWFILEUID:NONE

<OFX>
<SIGNONMSGSRSV1>
<SONRS>
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<DTSERVER>20240315120000[0:GMT]
<LANGUAGE>ENG
</SONRS>
</SIGNONMSGSRSV1>
<BANKMSGSRSV1>
<STMTTRNRS>
<TRNUID>1
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<STMTRS>
<CURDEF>EUR
<BANKACCTFROM>
<BANKID>123456789
<ACCTID>1234567890
<ACCTTYPE>CHECKING
</BANKACCTFROM>
<BANKTRANLIST>
<DTSTART>20240101120000[0:GMT]
<DTEND>20240131120000[0:GMT]
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20240115120000[0:GMT]
<TRNAMT>-25.50
<FITID>2024011501
<NAME>POS PURCHASE STARBUCKS 1234
</STMTTRN>
<STMTTRN>
<TRNTYPE>ATM
<DTPOSTED>20240116000000[0:GMT]
<TRNAMT>-100.00
<FITID>2024011602
<NAME>DEBIT
<MEMO>ATM WITHDRAWAL MAIN ST
</STMTTRN>
<STMTTRN>
<TRNTYPE>CREDIT
<DTPOSTED>20240131120000[0:GMT]
<TRNAMT>2500.00
<FITID>2024013103
<NAME>ACME PAYROLL
</STMTTRN>
</BANKTRANLIST>
<LEDGERBAL>
<BALAMT>5000.00
<DTASOF>20240131120000[0:GMT]
</LEDGERBAL>
</STMTRS>
</STMTTRNRS>
</BANKMSGSRSV1>
</OFX>
`

func TestOFXParser(t *testing.T) {
	rows, err := NewOFXParser().Parse(context.Background(), strings.NewReader(sampleBankOFX))
	require.NoError(t, err)
	require.Len(t, rows, 3)

	first := rows[0].Transaction
	assert.Equal(t, "STARBUCKS 1234", first.Merchant)
	assert.Equal(t, "2024-01-15", first.DateString())
	assert.Equal(t, "12:00:00", first.Time)
	assert.True(t, decimal.RequireFromString("-25.50").Equal(first.Amount))
	assert.Equal(t, model.ChannelOneTime, first.Channel)
	assert.Regexp(t, `^imp-`, first.ID)

	atm := rows[1].Transaction
	assert.Equal(t, "ATM WITHDRAWAL MAIN ST", atm.Merchant)
	assert.Equal(t, model.ChannelCash, atm.Channel)
	assert.Empty(t, atm.Time)

	assert.True(t, rows[2].Transaction.IsIncome())
}

func TestOFXParser_IDIgnoresFITID(t *testing.T) {
	rows, err := NewOFXParser().Parse(context.Background(), strings.NewReader(sampleBankOFX))
	require.NoError(t, err)

	renumbered := strings.ReplaceAll(sampleBankOFX, "<FITID>20240115", "<FITID>99999999")
	again, err := NewOFXParser().Parse(context.Background(), strings.NewReader(renumbered))
	require.NoError(t, err)

	assert.Equal(t, rows[0].Transaction.ID, again[0].Transaction.ID)
}

func TestOFXParser_Errors(t *testing.T) {
	_, err := NewOFXParser().Parse(context.Background(), strings.NewReader(""))
	require.ErrorIs(t, err, common.ErrEmptyStatement)

	_, err = NewOFXParser().Parse(context.Background(), strings.NewReader("not ofx at all"))
	require.ErrorIs(t, err, common.ErrUnsupportedFormat)
}

func TestExtractMerchantName(t *testing.T) {
	tests := []struct {
		name string
		tx   ofxgo.Transaction
		want string
	}{
		{name: "payee wins", tx: ofxgo.Transaction{Name: "SOMETHING", Payee: &ofxgo.Payee{Name: "Corner Shop"}}, want: "Corner Shop"},
		{name: "prefix stripped", tx: ofxgo.Transaction{Name: "CHECK CARD NETFLIX"}, want: "NETFLIX"},
		{name: "date stamp stripped", tx: ofxgo.Transaction{Name: "01/15 SPOTIFY P1"}, want: "SPOTIFY P1"},
		{name: "generic uses memo", tx: ofxgo.Transaction{Name: "PAYMENT", Memo: "CITY WATER"}, want: "CITY WATER"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractMerchantName(tt.tx))
		})
	}
}

func TestChannelFor(t *testing.T) {
	assert.Equal(t, model.ChannelCash, channelFor("ATM"))
	assert.Equal(t, model.ChannelTransfer, channelFor("XFER"))
	assert.Equal(t, model.ChannelRecurring, channelFor("DIRECTDEBIT"))
	assert.Equal(t, model.ChannelOneTime, channelFor("DEBIT"))
}
