package upgrade

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// FormatUnits renders a raw integer token amount in whole-token units, e.g.
// "50000000" with 6 decimals is "50".
func FormatUnits(raw string, decimals int32) (string, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return "", fmt.Errorf("parsing amount %q: %w", raw, err)
	}
	return d.Shift(-decimals).String(), nil
}

// ParseUnits converts a whole-token amount to its raw integer form. It
// rejects amounts with more fractional digits than decimals allows.
func ParseUnits(amount string, decimals int32) (string, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return "", fmt.Errorf("parsing amount %q: %w", amount, err)
	}
	if d.IsNegative() {
		return "", fmt.Errorf("amount %q is negative", amount)
	}
	raw := d.Shift(decimals)
	if !raw.Equal(raw.Truncate(0)) {
		return "", fmt.Errorf("amount %q has more than %d decimal places", amount, decimals)
	}
	return raw.BigInt().String(), nil
}
