package http

import (
	"net/http"
	"sync/atomic"

	"ledger/internal/core"
	"ledger/internal/ledger"
	"ledger/internal/log"
)

// handleCreateEntry records an expense or income. Body fields: amount,
// account_id, category_id, note, date (YYYY-MM-DD, default today).
func (s *Server) handleCreateEntry(typ core.TransactionType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := parseBody(w, r)
		if !ok {
			return
		}
		amount, err := p.Amount("amount")
		if err != nil {
			DomainError(err).Write(w)
			return
		}
		date, err := p.Date("date")
		if err != nil {
			DomainError(err).Write(w)
			return
		}

		in := ledger.EntryInput{
			Amount:     amount,
			AccountID:  p.Get("account_id"),
			CategoryID: p.Get("category_id"),
			Note:       p.Get("note"),
			Date:       date,
		}
		var tx core.Transaction
		if typ == core.Income {
			tx, err = s.ledger.AddIncome(r.Context(), in)
		} else {
			tx, err = s.ledger.AddExpense(r.Context(), in)
		}
		if err != nil {
			s.fail(w, r, "Create transaction failed", err, log.FieldType, typ, log.FieldAccountID, in.AccountID)
			return
		}
		s.created(w, tx)
	}
}

// handleCreateTransfer moves money between accounts. Body fields: amount,
// target_amount (required across currencies), from_account_id,
// to_account_id, note, date.
func (s *Server) handleCreateTransfer(w http.ResponseWriter, r *http.Request) {
	p, ok := parseBody(w, r)
	if !ok {
		return
	}
	amount, err := p.Amount("amount")
	if err != nil {
		DomainError(err).Write(w)
		return
	}
	target, err := p.OptionalAmount("target_amount")
	if err != nil {
		DomainError(err).Write(w)
		return
	}
	date, err := p.Date("date")
	if err != nil {
		DomainError(err).Write(w)
		return
	}

	in := ledger.TransferInput{
		Amount:        amount,
		TargetAmount:  target,
		FromAccountID: p.Get("from_account_id"),
		ToAccountID:   p.Get("to_account_id"),
		Note:          p.Get("note"),
		Date:          date,
	}
	tx, err := s.ledger.AddTransfer(r.Context(), in)
	if err != nil {
		s.fail(w, r, "Create transfer failed", err, log.FieldAccountID, in.FromAccountID)
		return
	}
	s.created(w, tx)
}

func (s *Server) created(w http.ResponseWriter, tx core.Transaction) {
	atomic.AddInt64(&s.appMetrics.transactions, 1)
	s.invalidateSummaries()
	NewJSONResponse().Status(http.StatusCreated).Data(toTransactionResponse(tx)).Write(w)
}

// handleUpdateTransaction replaces a transaction's fields. amount is
// required; type, target_amount, account_id, to_account_id, category_id,
// note and date keep their current value when absent.
func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	p, ok := parseBody(w, r)
	if !ok {
		return
	}

	in := ledger.UpdateInput{
		AccountID:   p.OptionalString("account_id"),
		ToAccountID: p.OptionalString("to_account_id"),
		CategoryID:  p.OptionalString("category_id"),
		Note:        p.OptionalString("note"),
	}
	var err error
	if v := p.Get("type"); v != "" {
		if in.Type, err = core.ParseTransactionType(v); err != nil {
			DomainError(err).Write(w)
			return
		}
	}
	if in.Amount, err = p.Amount("amount"); err != nil {
		DomainError(err).Write(w)
		return
	}
	if in.TargetAmount, err = p.OptionalAmount("target_amount"); err != nil {
		DomainError(err).Write(w)
		return
	}
	if p.Get("date") != "" {
		date, err := p.Date("date")
		if err != nil {
			DomainError(err).Write(w)
			return
		}
		in.Date = &date
	}

	tx, err := s.ledger.UpdateTransaction(r.Context(), id, in)
	if err != nil {
		s.fail(w, r, "Update transaction failed", err, log.FieldTransactionID, id)
		return
	}
	s.invalidateSummaries()
	NewJSONResponse().Data(toTransactionResponse(tx)).Write(w)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.ledger.DeleteTransaction(r.Context(), id); err != nil {
		s.fail(w, r, "Delete transaction failed", err, log.FieldTransactionID, id)
		return
	}
	s.invalidateSummaries()
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}
