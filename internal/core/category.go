package core

// DefaultCategories lists the categories seeded into an empty store.
var DefaultCategories = map[CategoryKind][]string{
	ExpenseCategory: {
		"Groceries", "Rent", "Utilities", "Transport", "Restaurants",
		"Health", "Entertainment", "Shopping", "Travel", "Other",
	},
	IncomeCategory: {
		"Salary", "Freelance", "Investments", "Gifts", "Other",
	},
}

// TransactionFilter narrows transaction listings. Zero values mean no filter.
type TransactionFilter struct {
	AccountID string
	Type      TransactionType
	Limit     int
}

func (f TransactionFilter) Matches(t Transaction) bool {
	if f.AccountID != "" && t.AccountID != f.AccountID && t.ToAccountID != f.AccountID {
		return false
	}
	if f.Type != "" && t.Type != f.Type {
		return false
	}
	return true
}
