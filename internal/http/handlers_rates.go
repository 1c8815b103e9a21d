package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"ledger/internal/core"
	"ledger/internal/log"
)

const refreshTimeout = 30 * time.Second

type convertResponse struct {
	Amount         decimal.Decimal `json:"amount"`
	From           string          `json:"from"`
	To             string          `json:"to"`
	Converted      decimal.Decimal `json:"converted"`
	RatesFetchedAt *time.Time      `json:"rates_fetched_at,omitempty"`
}

// handleConvert converts ?amount= from ?from= into ?to= with the cached
// rates. Without a cached table the converted amount is zero.
func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from := core.NormalizeCode(q.Get("from"))
	to := core.NormalizeCode(q.Get("to"))
	if from == "" || to == "" {
		UnprocessableEntityError("from and to are required").Write(w)
		return
	}
	currencies, err := s.ledger.Currencies(r.Context())
	if err != nil {
		s.fail(w, r, "List currencies failed", err)
		return
	}
	for _, code := range []string{from, to} {
		if !knownCurrency(currencies, code) {
			UnprocessableEntityError("unknown currency: " + code).Write(w)
			return
		}
	}
	amount, err := decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(q.Get("amount")), ",", "."))
	if err != nil {
		UnprocessableEntityError("amount must be a number").Write(w)
		return
	}

	resp := convertResponse{
		Amount:    amount,
		From:      from,
		To:        to,
		Converted: s.ledger.Convert(amount, from, to),
	}
	if fetched := s.ledger.Rates().FetchedAt(); !fetched.IsZero() {
		resp.RatesFetchedAt = &fetched
	}
	NewJSONResponse().Data(resp).Write(w)
}

func knownCurrency(currencies []core.Currency, code string) bool {
	for _, c := range currencies {
		if c.Code == code {
			return true
		}
	}
	return false
}

// handleRefreshRates fetches a fresh rate table regardless of its age.
func (s *Server) handleRefreshRates(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), refreshTimeout)
	defer cancel()

	table, err := s.ledger.Rates().RefreshRates(ctx)
	if err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Rate refresh failed",
			log.FieldError, err,
			log.FieldOperation, log.OpRefresh)
		ErrorResponse(http.StatusBadGateway, "rate provider unavailable").Write(w)
		return
	}
	s.invalidateSummaries()
	NewJSONResponse().Data(map[string]any{
		"base":       table.Base,
		"rates":      table.Len(),
		"fetched_at": s.ledger.Rates().FetchedAt(),
	}).Write(w)
}

// handleSummary returns the net worth in ?currency= (default: base currency).
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.getSummary(r.Context(), r.URL.Query().Get("currency"))
	if err != nil {
		s.fail(w, r, "Summary failed", err)
		return
	}
	NewJSONResponse().Data(toSummaryResponse(summary)).Write(w)
}

// handleReconcile reports accounts whose stored balance drifted from their
// transactions. With ?repair=true the balances are rewritten.
func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	repair := r.URL.Query().Get("repair") == "true"
	drifts, err := s.ledger.Reconcile(r.Context(), repair)
	if err != nil {
		s.fail(w, r, "Reconcile failed", err)
		return
	}
	if repair && len(drifts) > 0 {
		s.invalidateSummaries()
	}
	NewJSONResponse().Data(map[string]any{
		"repaired": repair,
		"drifts":   toDriftResponses(drifts),
	}).Write(w)
}
