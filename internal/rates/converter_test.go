package rates

import (
	"testing"

	"github.com/shopspring/decimal"

	"ledger/internal/core"
)

type staticSource struct {
	table Table
	ok    bool
}

func (s staticSource) Table() (Table, bool) {
	return s.table, s.ok
}

func TestConvert(t *testing.T) {
	conv := NewConverter(core.DefaultCatalog(), staticSource{table: sampleTable(), ok: true})

	tests := []struct {
		name     string
		amount   string
		from, to string
		want     string
	}{
		{"identity", "123.45", "EUR", "EUR", "123.45"},
		{"pivot to fiat", "100", "USD", "EUR", "92"},
		{"fiat to pivot", "92", "EUR", "USD", "100"},
		{"crypto to pivot", "0.5", "BTC", "USD", "32500"},
		{"pivot to crypto", "6500", "USD", "BTC", "0.1"},
		{"crypto to fiat", "1", "BTC", "EUR", "59800"},
		{"fiat to fiat", "184", "EUR", "JPY", "29900"},
		{"lower case codes", "100", "usd", "eur", "92"},
		{"missing target rate yields pivot amount", "92", "EUR", "GBP", "100"},
		{"missing source rate yields zero", "10", "GBP", "EUR", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := conv.Convert(decimal.RequireFromString(tt.amount), tt.from, tt.to)
			if !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Fatalf("Convert(%s, %s, %s) = %s, want %s", tt.amount, tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestConvertWithoutRates(t *testing.T) {
	conv := NewConverter(core.DefaultCatalog(), staticSource{})

	if got := conv.Convert(decimal.NewFromInt(5), "USD", "USD"); !got.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("identity must not need rates, got %s", got)
	}
	if got := conv.Convert(decimal.NewFromInt(5), "USD", "EUR"); !got.IsZero() {
		t.Fatalf("expected zero without rates, got %s", got)
	}
}

func TestConvertRoundTrip(t *testing.T) {
	table := sampleTable()
	table.Rates["EUR"] = decimal.RequireFromString("0.9137")
	conv := NewConverter(core.DefaultCatalog(), staticSource{table: table, ok: true})
	epsilon := decimal.RequireFromString("0.000000001")

	for _, s := range []string{"0.01", "1", "19.99", "1234567.89"} {
		x := decimal.RequireFromString(s)
		back := conv.Convert(conv.Convert(x, "USD", "EUR"), "EUR", "USD")
		if back.Sub(x).Abs().GreaterThan(epsilon) {
			t.Errorf("round trip of %s gave %s", x, back)
		}
	}
}

func TestConvertSkipsCodesMissingFromCatalog(t *testing.T) {
	// The table prices a coin the catalog does not know; its direction is
	// unknown, so it is treated like a missing rate.
	table := sampleTable()
	table.Rates["NEWCOIN"] = decimal.NewFromInt(2)
	conv := NewConverter(core.DefaultCatalog(), staticSource{table: table, ok: true})

	if got := conv.Convert(decimal.NewFromInt(10), "NEWCOIN", "USD"); !got.IsZero() {
		t.Fatalf("unknown source kind converted to %s, want 0", got)
	}
	if got := conv.Convert(decimal.NewFromInt(92), "EUR", "NEWCOIN"); !got.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("unknown target kind converted to %s, want pivot amount 100", got)
	}
}
