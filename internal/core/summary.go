package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountBalance is one account's balance, natively and in a display currency.
type AccountBalance struct {
	Account   Account
	Converted decimal.Decimal
}

// Summary is the net worth of all accounts expressed in a single currency.
type Summary struct {
	Currency     string
	Total        decimal.Decimal
	Accounts     []AccountBalance
	RatesFetched time.Time // zero when no rate table is cached
}
