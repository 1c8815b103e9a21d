package http

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"ledger/internal/core"
	"ledger/internal/ledger"
)

// parseDate parses a date string in YYYY-MM-DD format.
func parseDate(dateStr string) (core.Date, error) {
	parsedTime, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		return core.Date{}, err
	}
	return core.Date{Time: parsedTime}, nil
}

// sanitizeInput removes potentially dangerous characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	result := strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
	return result
}

type accountResponse struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Balance        decimal.Decimal `json:"balance"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
	Currency       string          `json:"currency"`
	IsDefault      bool            `json:"is_default"`
	CreatedAt      time.Time       `json:"created_at"`
}

func toAccountResponse(a core.Account) accountResponse {
	return accountResponse{
		ID:             a.ID,
		Name:           a.Name,
		Balance:        a.Balance,
		OpeningBalance: a.OpeningBalance,
		Currency:       a.CurrencyCode,
		IsDefault:      a.IsDefault,
		CreatedAt:      a.CreatedAt,
	}
}

type transactionResponse struct {
	ID           string           `json:"id"`
	Type         string           `json:"type"`
	Amount       decimal.Decimal  `json:"amount"`
	TargetAmount *decimal.Decimal `json:"target_amount,omitempty"`
	AccountID    string           `json:"account_id"`
	ToAccountID  string           `json:"to_account_id,omitempty"`
	CategoryID   string           `json:"category_id,omitempty"`
	Note         string           `json:"note,omitempty"`
	Date         string           `json:"date"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

func toTransactionResponse(t core.Transaction) transactionResponse {
	return transactionResponse{
		ID:           t.ID,
		Type:         t.Type.String(),
		Amount:       t.Amount,
		TargetAmount: t.TransferTargetAmount,
		AccountID:    t.AccountID,
		ToAccountID:  t.ToAccountID,
		CategoryID:   t.CategoryID,
		Note:         t.Note,
		Date:         t.Date.String(),
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
	}
}

func toTransactionResponses(txs []core.Transaction) []transactionResponse {
	out := make([]transactionResponse, 0, len(txs))
	for _, t := range txs {
		out = append(out, toTransactionResponse(t))
	}
	return out
}

type categoryResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Kind string `json:"kind"`
}

type currencyResponse struct {
	Code   string `json:"code"`
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
	Kind   string `json:"kind"`
	IsBase bool   `json:"is_base"`
}

type summaryAccount struct {
	accountResponse
	Converted decimal.Decimal `json:"converted"`
}

type summaryResponse struct {
	Currency       string           `json:"currency"`
	Total          decimal.Decimal  `json:"total"`
	RatesFetchedAt *time.Time       `json:"rates_fetched_at,omitempty"`
	Accounts       []summaryAccount `json:"accounts"`
}

func toSummaryResponse(s core.Summary) summaryResponse {
	resp := summaryResponse{
		Currency: s.Currency,
		Total:    s.Total,
		Accounts: make([]summaryAccount, 0, len(s.Accounts)),
	}
	if !s.RatesFetched.IsZero() {
		fetched := s.RatesFetched
		resp.RatesFetchedAt = &fetched
	}
	for _, ab := range s.Accounts {
		resp.Accounts = append(resp.Accounts, summaryAccount{
			accountResponse: toAccountResponse(ab.Account),
			Converted:       ab.Converted,
		})
	}
	return resp
}

type driftResponse struct {
	AccountID  string          `json:"account_id"`
	Stored     decimal.Decimal `json:"stored"`
	Expected   decimal.Decimal `json:"expected"`
	Difference decimal.Decimal `json:"difference"`
}

func toDriftResponses(drifts []ledger.Drift) []driftResponse {
	out := make([]driftResponse, 0, len(drifts))
	for _, d := range drifts {
		out = append(out, driftResponse{
			AccountID:  d.AccountID,
			Stored:     d.Stored,
			Expected:   d.Expected,
			Difference: d.Difference(),
		})
	}
	return out
}
