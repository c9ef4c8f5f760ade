package domain

import "github.com/shopspring/decimal"

// MoneyScale is the number of fractional digits every amount is stored
// with (NUMERIC(20, 8)).
const MoneyScale = 8

var maxMoney = decimal.New(1, 20-MoneyScale)

// ValidMoney reports whether d is stored without rounding or overflow.
func ValidMoney(d decimal.Decimal) bool {
	return d.Equal(d.Truncate(MoneyScale)) && d.Abs().LessThan(maxMoney)
}
