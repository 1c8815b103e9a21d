package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

const (
	Expense  TransactionType = "expense"
	Income   TransactionType = "income"
	Transfer TransactionType = "transfer"
)

const (
	ExpenseCategory CategoryKind = "expense"
	IncomeCategory  CategoryKind = "income"
)

const maxNoteLength = 200

type (
	TransactionType string

	CategoryKind string

	Date struct {
		time.Time
	}

	// Account balances are always expressed in CurrencyCode and equal
	// OpeningBalance plus the effects of every live transaction on the account.
	Account struct {
		ID             string
		Name           string
		Balance        decimal.Decimal
		OpeningBalance decimal.Decimal
		CurrencyCode   string
		IsDefault      bool
		CreatedAt      time.Time
	}

	Category struct {
		ID   string
		Name string
		Kind CategoryKind
	}

	// Transaction references accounts and categories by ID only. An empty ID
	// means the reference is unset or no longer resolves.
	Transaction struct {
		ID                   string
		Amount               decimal.Decimal // magnitude, direction comes from Type
		TransferTargetAmount *decimal.Decimal
		Note                 string
		Date                 Date
		Type                 TransactionType
		CategoryID           string
		AccountID            string
		ToAccountID          string // transfer destination
		CreatedAt            time.Time
		UpdatedAt            time.Time
	}

	// Effect is a signed balance delta on a single account.
	Effect struct {
		AccountID string
		Delta     decimal.Decimal
	}
)

var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotFound        = errors.New("not found")

	ErrInvalidDay          = fmt.Errorf("%w: invalid day", ErrInvalidArgument)
	ErrInvalidMonth        = fmt.Errorf("%w: invalid month", ErrInvalidArgument)
	ErrZeroDate            = fmt.Errorf("%w: date cannot be zero", ErrInvalidArgument)
	ErrInvalidAmount       = fmt.Errorf("%w: amount must be positive", ErrInvalidArgument)
	ErrInvalidType         = fmt.Errorf("%w: invalid transaction type", ErrInvalidArgument)
	ErrMissingAccount      = fmt.Errorf("%w: account is required", ErrInvalidArgument)
	ErrMissingCategory     = fmt.Errorf("%w: category is required", ErrInvalidArgument)
	ErrUnexpectedCategory  = fmt.Errorf("%w: transfers cannot have a category", ErrInvalidArgument)
	ErrUnexpectedToAccount = fmt.Errorf("%w: only transfers have a destination account", ErrInvalidArgument)
	ErrMissingToAccount    = fmt.Errorf("%w: transfer destination is required", ErrInvalidArgument)
	ErrSameAccountTransfer = fmt.Errorf("%w: cannot transfer to the same account", ErrInvalidArgument)
	ErrNoteTooLong         = fmt.Errorf("%w: note too long (max %d characters)", ErrInvalidArgument, maxNoteLength)
	ErrEmptyName           = fmt.Errorf("%w: name cannot be empty", ErrInvalidArgument)
	ErrUnknownCurrency     = fmt.Errorf("%w: unknown currency", ErrInvalidArgument)
)

// ParseTransactionType maps a persisted value back to its variant.
func ParseTransactionType(s string) (TransactionType, error) {
	switch t := TransactionType(strings.ToLower(strings.TrimSpace(s))); t {
	case Expense, Income, Transfer:
		return t, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidType, s)
	}
}

func (t TransactionType) String() string {
	return string(t)
}

// CategoryKind returns the kind of category a transaction of this type must
// reference. Transfers have none.
func (t TransactionType) CategoryKind() (CategoryKind, bool) {
	switch t {
	case Expense:
		return ExpenseCategory, true
	case Income:
		return IncomeCategory, true
	case Transfer:
		return "", false
	default:
		return "", false
	}
}

func ParseCategoryKind(s string) (CategoryKind, error) {
	switch k := CategoryKind(strings.ToLower(strings.TrimSpace(s))); k {
	case ExpenseCategory, IncomeCategory:
		return k, nil
	default:
		return "", fmt.Errorf("%w: invalid category kind %q", ErrInvalidArgument, s)
	}
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrZeroDate
	}
	_, month, day := d.Date()
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// String formats the date as YYYY-MM-DD
func (d Date) String() string {
	return d.Format("2006-01-02")
}

func (a Account) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return ErrEmptyName
	}
	if strings.TrimSpace(a.CurrencyCode) == "" {
		return ErrUnknownCurrency
	}
	return nil
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	_, err := ParseCategoryKind(string(c.Kind))
	return err
}

// TargetAmount is the amount credited to the destination of a transfer. It
// falls back to Amount when no separate target was recorded.
func (t Transaction) TargetAmount() decimal.Decimal {
	if t.TransferTargetAmount != nil {
		return *t.TransferTargetAmount
	}
	return t.Amount
}

// Effects returns the forward balance deltas of the transaction. Legs whose
// account reference is empty are omitted.
func (t Transaction) Effects() []Effect {
	var effects []Effect
	add := func(id string, delta decimal.Decimal) {
		if id != "" {
			effects = append(effects, Effect{AccountID: id, Delta: delta})
		}
	}

	switch t.Type {
	case Expense:
		add(t.AccountID, t.Amount.Neg())
	case Income:
		add(t.AccountID, t.Amount)
	case Transfer:
		add(t.AccountID, t.Amount.Neg())
		add(t.ToAccountID, t.TargetAmount())
	}
	return effects
}

// AccountIDs lists the distinct accounts the transaction touches.
func (t Transaction) AccountIDs() []string {
	var ids []string
	if t.AccountID != "" {
		ids = append(ids, t.AccountID)
	}
	if t.ToAccountID != "" && t.ToAccountID != t.AccountID {
		ids = append(ids, t.ToAccountID)
	}
	return ids
}

func (e Effect) Inverse() Effect {
	return Effect{AccountID: e.AccountID, Delta: e.Delta.Neg()}
}

func (t Transaction) Validate() error {
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if !t.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if utf8.RuneCountInString(t.Note) > maxNoteLength {
		return ErrNoteTooLong
	}
	if t.AccountID == "" {
		return ErrMissingAccount
	}

	switch t.Type {
	case Expense, Income:
		if strings.TrimSpace(t.CategoryID) == "" {
			return ErrMissingCategory
		}
		if t.ToAccountID != "" {
			return ErrUnexpectedToAccount
		}
		if t.TransferTargetAmount != nil {
			return fmt.Errorf("%w: target amount is only valid for transfers", ErrInvalidArgument)
		}
	case Transfer:
		if t.CategoryID != "" {
			return ErrUnexpectedCategory
		}
		if t.ToAccountID == "" {
			return ErrMissingToAccount
		}
		if t.ToAccountID == t.AccountID {
			return ErrSameAccountTransfer
		}
		if t.TransferTargetAmount != nil && !t.TransferTargetAmount.IsPositive() {
			return fmt.Errorf("%w: target amount must be positive", ErrInvalidArgument)
		}
	default:
		return ErrInvalidType
	}
	return nil
}
