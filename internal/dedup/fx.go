package dedup

import "strings"

// usdMicros holds the fixed-point FX table: micro-USD per one unit of the
// currency. Rates are intentionally static — amountUsd is a comparison
// key for the 10% duplicate tolerance, not an accounting figure.
var usdMicros = map[string]int64{
	"USD": 1_000_000,
	"EUR": 1_080_000,
	"GBP": 1_270_000,
	"CHF": 1_130_000,
	"SEK": 95_000,
	"NOK": 94_000,
	"DKK": 145_000,
	"CAD": 730_000,
	"AUD": 650_000,
	"JPY": 6_700,
	"SGD": 750_000,
	"ILS": 270_000,
	"INR": 12_000,
	"BRL": 180_000,
}

// ToUSD converts an amount in the given currency to USD using the fixed
// FX table. An empty currency is treated as USD. Returns ok=false for
// unknown currencies.
func ToUSD(amount float64, currency string) (float64, bool) {
	cur := strings.ToUpper(strings.TrimSpace(currency))
	if cur == "" {
		cur = "USD"
	}
	micros, ok := usdMicros[cur]
	if !ok {
		return 0, false
	}
	return amount * float64(micros) / 1e6, true
}

// KnownCurrency reports whether the FX table has a rate for the currency.
func KnownCurrency(currency string) bool {
	cur := strings.ToUpper(strings.TrimSpace(currency))
	if cur == "" {
		return true
	}
	_, ok := usdMicros[cur]
	return ok
}
