package rates

import (
	"github.com/shopspring/decimal"

	"ledger/internal/core"
)

const divisionPrecision = 18

// TableSource supplies the current rate table.
type TableSource interface {
	Table() (Table, bool)
}

// Converter converts amounts through the pivot currency. It never fails:
// without rates it degrades to zero or to the pivot amount.
type Converter struct {
	catalog *core.Catalog
	source  TableSource
}

func NewConverter(catalog *core.Catalog, source TableSource) *Converter {
	return &Converter{catalog: catalog, source: source}
}

// Convert returns amount expressed in to. It returns zero when no table is
// cached or the rate or kind of from is unknown, and the pivot amount when
// only the rate or kind of to is unknown.
func (c *Converter) Convert(amount decimal.Decimal, from, to string) decimal.Decimal {
	from, to = core.NormalizeCode(from), core.NormalizeCode(to)
	if from == to {
		return amount
	}
	table, ok := c.source.Table()
	if !ok {
		return decimal.Zero
	}
	pivot := table.Base
	if pivot == "" {
		pivot = core.PivotCurrency
	}

	inPivot := amount
	if from != pivot {
		rate, ok := table.Rate(from)
		if !ok {
			return decimal.Zero
		}
		kind, known := c.catalog.Kind(from)
		if !known {
			return decimal.Zero
		}
		if kind == core.Crypto {
			inPivot = amount.Mul(rate)
		} else {
			inPivot = amount.DivRound(rate, divisionPrecision)
		}
	}

	if to == pivot {
		return inPivot
	}
	rate, ok := table.Rate(to)
	if !ok {
		return inPivot
	}
	kind, known := c.catalog.Kind(to)
	if !known {
		return inPivot
	}
	if kind == core.Crypto {
		return inPivot.DivRound(rate, divisionPrecision)
	}
	return inPivot.Mul(rate)
}
