package classification

import (
	"regexp"
	"strings"

	"github.com/Veraticus/spice-sorter/internal/model"
)

var (
	cashMerchantRe     = regexp.MustCompile(`(?i)\bATM\b|CASH\s*WITHDRAWAL|BANCOMAT`)
	cashNormalizedRe   = regexp.MustCompile(`\bATM\b|\bCASH\s*OUT\b`)
	salaryRe           = regexp.MustCompile(`\b(STIPENDIO|SALARY|PAYROLL|WAGE|WAGES|PAY\s*SLIP)\b`)
	internalTransferRe = regexp.MustCompile(`(?i)\b(TRANSFER\s*FROM|INTERNAL|OWN\s*ACCOUNT)\b`)
	selfTransferRe     = regexp.MustCompile(`(?i)SELF|INTERNAL`)
)

// DefaultRules returns the built-in rule table. Order matters: specific rules
// precede general ones sharing vocabulary (salary before generic income,
// internal before external transfers, cash withdrawal before everything).
func DefaultRules() []Rule {
	return []Rule{
		{
			ID:         "cash_withdrawal",
			Category:   model.CategoryCashWithdrawal,
			Confidence: 0.95,
			Match: func(in Input) bool {
				if strings.EqualFold(trimmed(in.Txn.Channel), model.ChannelCash) {
					return true
				}
				if cashMerchantRe.MatchString(in.Txn.Merchant) {
					return true
				}
				return cashNormalizedRe.MatchString(in.Normalized)
			},
		},
		{
			ID:         "amazon_shopping",
			Category:   model.CategoryShopping,
			Confidence: 0.9,
			Match: func(in Input) bool {
				return strings.HasPrefix(in.Normalized, "AMAZON")
			},
		},
		{
			ID:         "easypark_parking",
			Category:   model.CategoryParking,
			Confidence: 0.95,
			Match:      matchNormalized(`EASYPARK|EASY\s*PARK`),
		},
		{
			ID:         "subscriptions_streaming",
			Category:   model.CategorySubscriptions,
			Confidence: 0.9,
			Match:      matchNormalized(`NETFLIX|SPOTIFY|PRIME|GOOGLE\s*ONE|APPLE\s*MUSIC|APPLE\s*TV|DISNEY|HBO|YOUTUBE\s*PREMIUM|ICLOUD|DROPBOX`),
		},
		{
			ID:         "groceries_mcc",
			Category:   model.CategoryGroceries,
			Confidence: 0.9,
			Match:      matchMCC(`^5411$`),
		},
		{
			ID:         "groceries_keywords",
			Category:   model.CategoryGroceries,
			Confidence: 0.85,
			Match:      matchNormalized(`\b(SUPERMARKET|SUPERMERCATO|GROCERY|LIDL|ALDI|CARREFOUR|ESSELUNGA|CONAD|COOP|TESCO|REWE|EDEKA|WHOLE\s*FOODS|SAINSBURY)\b`),
		},
		{
			ID:         "dining_mcc",
			Category:   model.CategoryDining,
			Confidence: 0.9,
			Match:      matchMCC(`^581[24]$`),
		},
		{
			ID:         "dining_keywords",
			Category:   model.CategoryDining,
			Confidence: 0.85,
			Match:      matchNormalized(`\b(RESTAURANT|RISTORANTE|TRATTORIA|CAFE|BAR|COFFEE|PIZZA|PIZZERIA|UBER\s*EATS|DELIVEROO|WOLT|GLOVO|JUST\s*EAT|STARBUCKS|MCDONALD|MCDONALDS)\b`),
		},
		{
			ID:         "fuel_keywords",
			Category:   model.CategoryTransportFuel,
			Confidence: 0.9,
			Match:      matchNormalized(`\b(ENI|Q8|SHELL|BP|ESSO|EXXON|TOTAL|TOTALENERGIES|CHEVRON|ARAL|FUEL|GAS\s*STATION|PETROL|CARBURANTE)\b`),
		},
		{
			ID:         "fuel_mcc",
			Category:   model.CategoryTransportFuel,
			Confidence: 0.9,
			Match:      matchMCC(`^554[12]$`),
		},
		{
			ID:         "rent_keywords",
			Category:   model.CategoryHousingRentMortgage,
			Confidence: 0.9,
			Match:      matchNormalized(`\b(RENT|AFFITTO|MIETE|MORTGAGE|MUTUO|LANDLORD)\b`),
		},
		{
			ID:         "utilities_keywords",
			Category:   model.CategoryUtilities,
			Confidence: 0.9,
			Match:      matchNormalized(`\b(ENEL|EDISON|A2A|HERA|IREN|GAS\s*BILL|ELECTRICITY|ACQUA|TARI|UTILITY|PGE|WATER|ELECTRIC)\b`),
		},
		{
			ID:         "insurance_keywords",
			Category:   model.CategoryInsurance,
			Confidence: 0.85,
			Match:      matchNormalized(`\b(INSURANCE|ASSICURAZIONE|ASSICURAZIONI|VERSICHERUNG)\b`),
		},
		{
			ID:         "salary_keywords",
			Category:   model.CategoryIncomeSalary,
			Confidence: 0.9,
			Match: func(in Input) bool {
				return in.Txn.IsIncome() && salaryRe.MatchString(in.Normalized)
			},
		},
		{
			ID:         "income_positive",
			Category:   model.CategoryIncomeOther,
			Confidence: 0.7,
			Match: func(in Input) bool {
				return in.Txn.IsIncome()
			},
		},
		{
			ID:         "transfers_internal",
			Category:   model.CategoryTransfersInternal,
			Confidence: 0.9,
			Match: func(in Input) bool {
				if internalTransferRe.MatchString(in.Txn.Merchant) {
					return true
				}
				return strings.EqualFold(trimmed(in.Txn.Channel), model.ChannelTransfer) &&
					selfTransferRe.MatchString(in.Txn.Merchant)
			},
		},
		{
			ID:         "transfers_external",
			Category:   model.CategoryTransfersExternal,
			Confidence: 0.7,
			Match:      matchNormalized(`\b(TRANSFER|BANK\s*TRANSFER|BONIFICO|UEBERWEISUNG|SEPA)\b`),
		},
	}
}

var defaultTable = MustNewTable(DefaultRules())

// Default returns the table built from DefaultRules.
func Default() *Table {
	return defaultTable
}

func trimmed(s string) string {
	return strings.TrimSpace(s)
}
