package model

import "time"

// Category is one of the built-in classification categories.
type Category string

// Built-in categories.
const (
	CategoryIncomeSalary        Category = "INCOME_SALARY"
	CategoryIncomeOther         Category = "INCOME_OTHER"
	CategoryHousingRentMortgage Category = "HOUSING_RENT_MORTGAGE"
	CategoryUtilities           Category = "UTILITIES"
	CategoryGroceries           Category = "GROCERIES"
	CategoryDining              Category = "DINING"
	CategoryTransportFuel       Category = "TRANSPORT_FUEL"
	CategoryTransportPublic     Category = "TRANSPORT_PUBLIC"
	CategoryParking             Category = "PARKING"
	CategoryShopping            Category = "SHOPPING"
	CategorySubscriptions       Category = "SUBSCRIPTIONS"
	CategoryHealth              Category = "HEALTH"
	CategoryEducation           Category = "EDUCATION"
	CategoryChildcare           Category = "CHILDCARE"
	CategoryEntertainment       Category = "ENTERTAINMENT"
	CategoryTravel              Category = "TRAVEL"
	CategoryInsurance           Category = "INSURANCE"
	CategoryTaxesFees           Category = "TAXES_FEES"
	CategoryCashWithdrawal      Category = "CASH_WITHDRAWAL"
	CategoryTransfersInternal   Category = "TRANSFERS_INTERNAL"
	CategoryTransfersExternal   Category = "TRANSFERS_EXTERNAL"
	CategoryGiftsDonations      Category = "GIFTS_DONATIONS"
	CategoryOther               Category = "OTHER"
	CategoryUncategorized       Category = "UNCATEGORIZED"
)

// FallbackCategory is assigned when nothing else matches, and to any invalid category.
const FallbackCategory = CategoryUncategorized

var builtinCategories = []Category{
	CategoryIncomeSalary,
	CategoryIncomeOther,
	CategoryHousingRentMortgage,
	CategoryUtilities,
	CategoryGroceries,
	CategoryDining,
	CategoryTransportFuel,
	CategoryTransportPublic,
	CategoryParking,
	CategoryShopping,
	CategorySubscriptions,
	CategoryHealth,
	CategoryEducation,
	CategoryChildcare,
	CategoryEntertainment,
	CategoryTravel,
	CategoryInsurance,
	CategoryTaxesFees,
	CategoryCashWithdrawal,
	CategoryTransfersInternal,
	CategoryTransfersExternal,
	CategoryGiftsDonations,
	CategoryOther,
	CategoryUncategorized,
}

var builtinSet = func() map[Category]struct{} {
	set := make(map[Category]struct{}, len(builtinCategories))
	for _, c := range builtinCategories {
		set[c] = struct{}{}
	}
	return set
}()

// BuiltinCategories returns the closed set of built-in categories in display order.
func BuiltinCategories() []Category {
	out := make([]Category, len(builtinCategories))
	copy(out, builtinCategories)
	return out
}

// IsBuiltin reports whether name is one of the built-in categories.
func IsBuiltin(name string) bool {
	_, ok := builtinSet[Category(name)]
	return ok
}

// String implements fmt.Stringer.
func (c Category) String() string {
	return string(c)
}

// CustomCategory is a user-created category name.
type CustomCategory struct {
	CreatedAt time.Time
	Name      string
}
