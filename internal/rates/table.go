// Package rates fetches, caches and applies exchange rates.
//
// Every rate is relative to a pivot currency (core.PivotCurrency). Fiat rates
// are units of the currency per one pivot unit; crypto rates are pivot units
// per one coin.
package rates

import (
	"time"

	"github.com/shopspring/decimal"
)

// Table is one snapshot of rates against Base.
type Table struct {
	Base  string                     `json:"base"`
	Date  time.Time                  `json:"date"`
	Rates map[string]decimal.Decimal `json:"rates"`
}

// Rate returns the positive rate for code, if any.
func (t Table) Rate(code string) (decimal.Decimal, bool) {
	r, ok := t.Rates[code]
	if !ok || !r.IsPositive() {
		return decimal.Zero, false
	}
	return r, true
}

func (t Table) Len() int {
	return len(t.Rates)
}

func (t Table) clone() Table {
	out := Table{Base: t.Base, Date: t.Date, Rates: make(map[string]decimal.Decimal, len(t.Rates))}
	for k, v := range t.Rates {
		out.Rates[k] = v
	}
	return out
}
