// Package core provides the ledger data model and money handling utilities.
//
// This file contains functions for parsing monetary amounts from user input
// and formatting them for display in a given currency.
package core

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// ParseAmount converts a decimal string into a positive amount.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and keeps
// the full precision of the input, since crypto amounts routinely carry eight
// or more fractional digits. Signs, exponents, thousands separators and zero
// are rejected.
//
// Examples:
//
//	ParseAmount("12.34")      -> 12.34, nil
//	ParseAmount("12,34")      -> 12.34, nil
//	ParseAmount("0.00012345") -> 0.00012345, nil
//	ParseAmount("-1")         -> 0, ErrInvalidAmount
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")

	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return decimal.Zero, ErrInvalidAmount
	}
	for _, part := range parts {
		for _, r := range part {
			if !unicode.IsDigit(r) {
				return decimal.Zero, ErrInvalidAmount
			}
		}
	}
	if parts[0] == "" {
		s = "0" + s
	}
	if strings.HasSuffix(s, ".") {
		s += "0"
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if !d.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// FormatAmount renders an amount with the currency symbol, rounded to the
// display precision of the currency kind (e.g. "$12.34", "-€5.00", "₿0.00120000").
func FormatAmount(d decimal.Decimal, c Currency) string {
	symbol := c.Symbol
	if symbol == "" {
		symbol = c.Code + " "
	}
	s := d.Abs().StringFixed(c.Kind.Precision())
	if d.IsNegative() {
		return "-" + symbol + s
	}
	return symbol + s
}
