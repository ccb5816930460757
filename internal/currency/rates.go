package currency

import (
	"fmt"
	"sort"
)

// settlementRates maps currency codes to the settlement-unit value of one
// local currency unit. These are the fixed rates the deployment operates
// on; the minimum-payment check and the reverse-computed minimum in
// rejection messages both use this table.
var settlementRates = map[string]float64{
	"BIF": 0.000000347, // Burundi Franc
	"USD": 0.0004,
	"KES": 0.0000065, // Kenyan Shilling
}

// Rate returns the settlement rate for a currency code.
func Rate(code string) (float64, error) {
	rate, ok := settlementRates[code]
	if !ok {
		return 0, fmt.Errorf("unsupported currency: %s", code)
	}
	return rate, nil
}

// ToSettlement converts a local currency amount into settlement units.
func ToSettlement(amount float64, code string) (float64, error) {
	rate, ok := settlementRates[code]
	if !ok {
		return 0, fmt.Errorf("unsupported currency: %s", code)
	}
	return amount * rate, nil
}

// FromSettlement converts a settlement-unit value back into local
// currency. Used to express the configured minimum in the sender's own
// currency.
func FromSettlement(value float64, code string) (float64, error) {
	rate, ok := settlementRates[code]
	if !ok {
		return 0, fmt.Errorf("unsupported currency: %s", code)
	}
	return value / rate, nil
}

// Supported returns the supported currency codes, sorted.
func Supported() []string {
	codes := make([]string, 0, len(settlementRates))
	for code := range settlementRates {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}
