package models

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Amount is a monetary value in cents.
type Amount int64

// MaxAmount bounds a single wager.
const MaxAmount Amount = 100_000_000

// AmountFromFloat rounds a decimal value to 2 places and converts it to cents.
func AmountFromFloat(f float64) (Amount, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("amount is not a finite number")
	}
	if f < 0 {
		return 0, fmt.Errorf("amount must not be negative")
	}
	cents := math.Round(f * 100)
	if cents > float64(MaxAmount) {
		return 0, fmt.Errorf("amount exceeds maximum of %s", MaxAmount)
	}
	return Amount(cents), nil
}

// Float returns the amount in currency units.
func (a Amount) Float() float64 {
	return float64(a) / 100
}

// String formats the amount with two decimals, e.g. "12.50".
func (a Amount) String() string {
	return strconv.FormatFloat(a.Float(), 'f', 2, 64)
}

// Dollars formats the amount for player-facing messages, e.g. "$12.50".
func (a Amount) Dollars() string {
	return "$" + a.String()
}

// Mul scales the amount by a multiplier, rounding to the nearest cent.
func (a Amount) Mul(m float64) Amount {
	return Amount(math.Round(float64(a) * m))
}

func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Amount) UnmarshalJSON(data []byte) error {
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	v, err := AmountFromFloat(f)
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// Round2 rounds a multiplier to two decimal places.
func Round2(f float64) float64 {
	return math.Round(f*100) / 100
}
