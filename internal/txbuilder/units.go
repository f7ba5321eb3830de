package txbuilder

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

type Unit string

const (
	UnitWei   Unit = "wei"
	UnitGwei  Unit = "gwei"
	UnitEther Unit = "ether"
)

func (u Unit) Decimals() (uint8, error) {
	switch Unit(strings.ToLower(string(u))) {
	case UnitWei, "":
		return 0, nil
	case UnitGwei:
		return 9, nil
	case UnitEther:
		return 18, nil
	default:
		return 0, fmt.Errorf("unknown value unit %q", string(u))
	}
}

// ConvertValToWei converts an amount such as "5" or "0.25" in unit to wei.
func ConvertValToWei(amount string, unit Unit) (*big.Int, error) {
	decimals, err := unit.Decimals()
	if err != nil {
		return nil, err
	}
	return ParseUnits(amount, decimals)
}

// ParseUnits scales a plain decimal amount by 10^decimals. Signs, exponents
// and fractions finer than one base unit are rejected.
func ParseUnits(amount string, decimals uint8) (*big.Int, error) {
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return nil, errors.New("amount is empty")
	}
	if strings.HasPrefix(amount, "-") {
		return nil, errors.New("amount must be non-negative")
	}
	if !plainDecimal(amount) {
		return nil, fmt.Errorf("invalid number format %q", amount)
	}
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("invalid number format %q: %w", amount, err)
	}
	shifted := d.Shift(int32(decimals))
	if !shifted.IsInteger() {
		return nil, fmt.Errorf("too many decimal places for %d decimals: %s", decimals, amount)
	}
	return shifted.BigInt(), nil
}

func plainDecimal(s string) bool {
	digits, dots := 0, 0
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '.':
			dots++
		default:
			return false
		}
	}
	return digits > 0 && dots <= 1
}

// FormatUnits renders wei in unit with all of the unit's decimal places.
func FormatUnits(wei *big.Int, unit Unit) string {
	decimals, err := unit.Decimals()
	if err != nil {
		return bigString(wei)
	}
	return decimal.NewFromBigInt(orZero(wei), -int32(decimals)).StringFixed(int32(decimals))
}
