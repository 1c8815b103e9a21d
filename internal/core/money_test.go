package core

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out string
		ok  bool
	}{
		{"1", "1", true},
		{"1.0", "1", true},
		{"1.23", "1.23", true},
		{"1,23", "1.23", true},
		{"0.01", "0.01", true},
		{"0.00012345", "0.00012345", true},
		{" 2.50 ", "2.5", true},
		{".5", "0.5", true},
		{"-1", "", false},
		{"+1", "", false},
		{"0", "", false},
		{"abc", "", false},
		{"1.2.3", "", false},
		{"1e5", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil || got.String() != tc.out {
				t.Fatalf("%q expected %s, got %s (err=%v)", tc.in, tc.out, got, err)
			}
		} else {
			if err == nil {
				t.Fatalf("%q expected error", tc.in)
			}
		}
	}
}

func TestFormatAmount(t *testing.T) {
	usd := Currency{Code: "USD", Symbol: "$", Kind: Fiat}
	btc := Currency{Code: "BTC", Symbol: "₿", Kind: Crypto}
	noSymbol := Currency{Code: "XYZ", Kind: Fiat}

	cases := []struct {
		d    decimal.Decimal
		c    Currency
		want string
	}{
		{decimal.RequireFromString("12.345"), usd, "$12.35"},
		{decimal.RequireFromString("-5"), usd, "-$5.00"},
		{decimal.RequireFromString("0.0012"), btc, "₿0.00120000"},
		{decimal.RequireFromString("3"), noSymbol, "XYZ 3.00"},
	}
	for _, tc := range cases {
		if got := FormatAmount(tc.d, tc.c); got != tc.want {
			t.Fatalf("FormatAmount(%s) = %q, want %q", tc.d, got, tc.want)
		}
	}
}
