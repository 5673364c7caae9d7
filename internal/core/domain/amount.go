package domain

import (
	"fmt"
	"math/big"
	"strings"
)

// Amounts cross the provider boundary as arbitrary-precision integer strings
// in the asset's smallest unit. Conversion is string arithmetic on big.Int;
// floats never touch an amount.

// ToSmallestUnit converts a human decimal amount (e.g. "12.5") into an
// integer string in the asset's smallest unit, given the asset's decimal
// place count. Negative and malformed amounts are rejected, as is more
// precision than the asset supports.
func ToSmallestUnit(amount string, decimals int) (string, error) {
	if decimals < 0 {
		return "", fmt.Errorf("negative decimals %d", decimals)
	}
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return "", fmt.Errorf("empty amount")
	}

	intPart, fracPart, _ := strings.Cut(amount, ".")
	if intPart == "" {
		intPart = "0"
	}
	if !isDigits(intPart) || (fracPart != "" && !isDigits(fracPart)) {
		return "", fmt.Errorf("malformed amount %q", amount)
	}
	if len(fracPart) > decimals {
		return "", fmt.Errorf("amount %q exceeds %d decimal places", amount, decimals)
	}

	// Right-pad the fraction to the full decimal width and let big.Int
	// normalize leading zeros.
	padded := fracPart + strings.Repeat("0", decimals-len(fracPart))
	n, ok := new(big.Int).SetString(intPart+padded, 10)
	if !ok {
		return "", fmt.Errorf("malformed amount %q", amount)
	}
	if n.Sign() == 0 {
		return "", fmt.Errorf("amount must be positive")
	}
	return n.String(), nil
}

// FromSmallestUnit renders a smallest-unit integer string as a human decimal
// amount with trailing zeros trimmed.
func FromSmallestUnit(units string, decimals int) (string, error) {
	if decimals < 0 {
		return "", fmt.Errorf("negative decimals %d", decimals)
	}
	n, ok := new(big.Int).SetString(strings.TrimSpace(units), 10)
	if !ok || n.Sign() < 0 {
		return "", fmt.Errorf("malformed unit amount %q", units)
	}
	digits := n.String()
	if decimals == 0 {
		return digits, nil
	}
	if len(digits) <= decimals {
		digits = strings.Repeat("0", decimals-len(digits)+1) + digits
	}
	intPart := digits[:len(digits)-decimals]
	fracPart := strings.TrimRight(digits[len(digits)-decimals:], "0")
	if fracPart == "" {
		return intPart, nil
	}
	return intPart + "." + fracPart, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
