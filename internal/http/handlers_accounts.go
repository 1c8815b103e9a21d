package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"ledger/internal/core"
	"ledger/internal/ledger"
	"ledger/internal/log"
)

const maxListLimit = 500

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.ledger.Accounts(r.Context())
	if err != nil {
		s.fail(w, r, "List accounts failed", err)
		return
	}
	out := make([]accountResponse, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, toAccountResponse(a))
	}
	NewJSONResponse().Data(out).Write(w)
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	p, ok := parseBody(w, r)
	if !ok {
		return
	}

	opening := decimal.Zero
	if v := p.Get("opening_balance"); v != "" {
		d, err := decimal.NewFromString(strings.ReplaceAll(v, ",", "."))
		if err != nil {
			UnprocessableEntityError("opening_balance must be a number").Write(w)
			return
		}
		opening = d
	}

	acc, err := s.ledger.CreateAccount(r.Context(), ledger.NewAccount{
		Name:           p.Get("name"),
		CurrencyCode:   p.Get("currency"),
		OpeningBalance: opening,
		IsDefault:      p.Bool("is_default"),
	})
	if err != nil {
		s.fail(w, r, "Create account failed", err)
		return
	}
	s.invalidateSummaries()
	NewJSONResponse().Status(http.StatusCreated).Data(toAccountResponse(acc)).Write(w)
}

func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.ledger.DeleteAccount(r.Context(), id); err != nil {
		s.fail(w, r, "Delete account failed", err, log.FieldAccountID, id)
		return
	}
	s.invalidateSummaries()
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

// handleAccountTransactions lists the transactions touching an account,
// newest first. Optional query parameters: type, limit.
func (s *Server) handleAccountTransactions(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.ledger.Account(r.Context(), id); err != nil {
		s.fail(w, r, "Load account failed", err, log.FieldAccountID, id)
		return
	}

	filter := core.TransactionFilter{AccountID: id}
	q := r.URL.Query()
	if v := strings.TrimSpace(q.Get("type")); v != "" {
		typ, err := core.ParseTransactionType(v)
		if err != nil {
			DomainError(err).Write(w)
			return
		}
		filter.Type = typ
	}
	if v := strings.TrimSpace(q.Get("limit")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			UnprocessableEntityError("limit must be a positive integer").Write(w)
			return
		}
		filter.Limit = min(n, maxListLimit)
	}

	txs, err := s.ledger.Transactions(r.Context(), filter)
	if err != nil {
		s.fail(w, r, "List transactions failed", err, log.FieldAccountID, id)
		return
	}
	NewJSONResponse().Data(toTransactionResponses(txs)).Write(w)
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	var kind core.CategoryKind
	if v := strings.TrimSpace(r.URL.Query().Get("kind")); v != "" {
		k, err := core.ParseCategoryKind(v)
		if err != nil {
			DomainError(err).Write(w)
			return
		}
		kind = k
	}

	cats, err := s.ledger.Categories(r.Context())
	if err != nil {
		s.fail(w, r, "List categories failed", err)
		return
	}
	out := make([]categoryResponse, 0, len(cats))
	for _, c := range cats {
		if kind != "" && c.Kind != kind {
			continue
		}
		out = append(out, categoryResponse{ID: c.ID, Name: c.Name, Kind: string(c.Kind)})
	}
	NewJSONResponse().Data(out).Write(w)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	p, ok := parseBody(w, r)
	if !ok {
		return
	}
	kind, err := core.ParseCategoryKind(p.Get("kind"))
	if err != nil {
		DomainError(err).Write(w)
		return
	}
	cat, err := s.ledger.CreateCategory(r.Context(), p.Get("name"), kind)
	if err != nil {
		s.fail(w, r, "Create category failed", err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).
		Data(categoryResponse{ID: cat.ID, Name: cat.Name, Kind: string(cat.Kind)}).
		Write(w)
}

func (s *Server) handleListCurrencies(w http.ResponseWriter, r *http.Request) {
	currencies, err := s.ledger.Currencies(r.Context())
	if err != nil {
		s.fail(w, r, "List currencies failed", err)
		return
	}
	out := make([]currencyResponse, 0, len(currencies))
	for _, c := range currencies {
		out = append(out, currencyResponse{
			Code:   c.Code,
			Symbol: c.Symbol,
			Name:   c.Name,
			Kind:   string(c.Kind),
			IsBase: c.IsBase,
		})
	}
	NewJSONResponse().Data(out).Write(w)
}

// fail logs err at a level matching its status and writes the response.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, msg string, err error, attrs ...any) {
	logger := log.FromContext(r.Context())
	args := append([]any{log.FieldError, err, log.FieldPath, r.URL.Path}, attrs...)
	if errorStatus(err) >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), msg, args...)
	} else {
		logger.DebugContext(r.Context(), msg, args...)
	}
	DomainError(err).Write(w)
}
