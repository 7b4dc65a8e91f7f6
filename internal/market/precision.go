package market

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// UnknownCurrencyError reports a currency with no registered precision.
type UnknownCurrencyError struct {
	Currency Currency
}

func (e *UnknownCurrencyError) Error() string {
	return fmt.Sprintf("unknown currency %q", string(e.Currency))
}

// precisionTable maps a currency to the number of fractional digits used in
// every rendered amount of that currency.
var precisionTable = map[Currency]int32{
	"eur": 2,
	"usd": 2,
	"gbp": 2,
	"btc": 4,
	"xmr": 4,
	"bsq": 2,
	"brl": 2,
	"cad": 2,
}

// Precision returns the fractional-digit count for a currency. There is no
// default; unregistered currencies fail explicitly.
func Precision(c Currency) (int32, error) {
	p, ok := precisionTable[c]
	if !ok {
		return 0, &UnknownCurrencyError{Currency: c}
	}
	return p, nil
}

// KnownCurrency reports whether a precision is registered for c.
func KnownCurrency(c Currency) bool {
	_, ok := precisionTable[c]
	return ok
}

// FormatAmount renders v fixed-point with exactly the currency's precision,
// never scientific notation, trailing zeros kept.
func FormatAmount(v decimal.Decimal, c Currency) (string, error) {
	p, err := Precision(c)
	if err != nil {
		return "", err
	}
	return v.StringFixed(p), nil
}

// FormatFloat is FormatAmount for float64 inputs such as reference prices.
func FormatFloat(v float64, c Currency) (string, error) {
	return FormatAmount(decimal.NewFromFloat(v), c)
}
