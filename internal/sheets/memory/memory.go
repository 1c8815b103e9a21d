package memory

import (
	"context"
	"sync"

	"ledger/internal/sheets"
)

// Exporter keeps exported rows in insertion order.
type Exporter struct {
	mu   sync.Mutex
	rows []sheets.TransactionRow
}

var _ sheets.TransactionExporter = (*Exporter)(nil)

func New() *Exporter {
	return &Exporter{}
}

func (e *Exporter) Export(_ context.Context, row sheets.TransactionRow) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if i := e.indexOf(row.TransactionID); i >= 0 {
		e.rows[i] = row
		return nil
	}
	e.rows = append(e.rows, row)
	return nil
}

func (e *Exporter) Remove(_ context.Context, transactionID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if i := e.indexOf(transactionID); i >= 0 {
		e.rows = append(e.rows[:i], e.rows[i+1:]...)
	}
	return nil
}

// Rows returns a copy of the exported rows.
func (e *Exporter) Rows() []sheets.TransactionRow {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]sheets.TransactionRow(nil), e.rows...)
}

// Row returns the exported row of a transaction.
func (e *Exporter) Row(transactionID string) (sheets.TransactionRow, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if i := e.indexOf(transactionID); i >= 0 {
		return e.rows[i], true
	}
	return sheets.TransactionRow{}, false
}

func (e *Exporter) indexOf(id string) int {
	for i, r := range e.rows {
		if r.TransactionID == id {
			return i
		}
	}
	return -1
}
