package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"ledger/internal/core"
	ports "ledger/internal/sheets"
)

// fakeSheet serves the subset of the Sheets API the client uses.
type fakeSheet struct {
	mu    sync.Mutex
	rows  [][]string
	calls map[string]int
}

func (f *fakeSheet) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	path := r.URL.Path

	switch {
	case r.Method == http.MethodPost && strings.HasSuffix(path, ":append"):
		f.calls["append"]++
		var vr gsheet.ValueRange
		json.NewDecoder(r.Body).Decode(&vr)
		for _, row := range vr.Values {
			f.rows = append(f.rows, toStrings(row))
		}
		json.NewEncoder(w).Encode(&gsheet.AppendValuesResponse{})
	case r.Method == http.MethodPost && strings.HasSuffix(path, ":batchUpdate"):
		f.calls["batchUpdate"]++
		var req gsheet.BatchUpdateSpreadsheetRequest
		json.NewDecoder(r.Body).Decode(&req)
		for _, q := range req.Requests {
			d := q.DeleteDimension.Range
			if d.SheetId != 7 {
				http.Error(w, "unknown sheet", http.StatusBadRequest)
				return
			}
			f.rows = append(f.rows[:d.StartIndex], f.rows[d.EndIndex:]...)
		}
		json.NewEncoder(w).Encode(&gsheet.BatchUpdateSpreadsheetResponse{})
	case r.Method == http.MethodPut && strings.Contains(path, "/values/"):
		f.calls["update"]++
		rng := path[strings.Index(path, "!A")+2:]
		n, err := strconv.Atoi(rng[:strings.Index(rng, ":")])
		if err != nil {
			http.Error(w, "bad range", http.StatusBadRequest)
			return
		}
		var vr gsheet.ValueRange
		json.NewDecoder(r.Body).Decode(&vr)
		f.rows[n-1] = toStrings(vr.Values[0])
		json.NewEncoder(w).Encode(&gsheet.UpdateValuesResponse{})
	case r.Method == http.MethodGet && strings.Contains(path, "/values/"):
		f.calls["get"]++
		vr := gsheet.ValueRange{}
		for _, row := range f.rows {
			vr.Values = append(vr.Values, []any{row[0]})
		}
		json.NewEncoder(w).Encode(&vr)
	case r.Method == http.MethodGet:
		f.calls["spreadsheet"]++
		json.NewEncoder(w).Encode(&gsheet.Spreadsheet{Sheets: []*gsheet.Sheet{
			{Properties: &gsheet.SheetProperties{SheetId: 3, Title: "Other"}},
			{Properties: &gsheet.SheetProperties{SheetId: 7, Title: "Transactions"}},
		}})
	default:
		http.NotFound(w, r)
	}
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i], _ = v.(string)
	}
	return out
}

func newTestClient(t *testing.T) (*Client, *fakeSheet) {
	t.Helper()
	fake := &fakeSheet{calls: map[string]int{}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return New(svc, "sheet-id", ""), fake
}

func row(id, amount string) ports.TransactionRow {
	return ports.TransactionRow{
		TransactionID: id,
		Date:          core.NewDate(2024, 5, 1),
		Type:          core.Expense,
		Amount:        decimal.RequireFromString(amount),
		Currency:      "USD",
		Account:       "Checking",
		Category:      "Food",
	}
}

func TestClientExportWritesHeaderThenUpserts(t *testing.T) {
	c, fake := newTestClient(t)
	ctx := context.Background()

	if err := c.Export(ctx, row("t1", "10")); err != nil {
		t.Fatalf("export t1: %v", err)
	}
	if err := c.Export(ctx, row("t2", "20")); err != nil {
		t.Fatalf("export t2: %v", err)
	}
	if err := c.Export(ctx, row("t1", "15.5")); err != nil {
		t.Fatalf("re-export t1: %v", err)
	}

	if len(fake.rows) != 3 {
		t.Fatalf("rows = %v", fake.rows)
	}
	if fake.rows[0][0] != "ID" {
		t.Errorf("first row should be the header, got %v", fake.rows[0])
	}
	if fake.rows[1][0] != "t1" || fake.rows[1][3] != "15.5" {
		t.Errorf("t1 not updated in place: %v", fake.rows[1])
	}
	if fake.calls["append"] != 2 || fake.calls["update"] != 1 {
		t.Errorf("calls = %v", fake.calls)
	}
}

func TestClientRemove(t *testing.T) {
	c, fake := newTestClient(t)
	ctx := context.Background()

	for _, id := range []string{"t1", "t2", "t3"} {
		if err := c.Export(ctx, row(id, "1")); err != nil {
			t.Fatalf("export %s: %v", id, err)
		}
	}

	if err := c.Remove(ctx, "t2"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := c.Remove(ctx, "t3"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := c.Remove(ctx, "missing"); err != nil {
		t.Fatalf("removing a missing row should be a no-op: %v", err)
	}

	if len(fake.rows) != 2 || fake.rows[1][0] != "t1" {
		t.Fatalf("rows = %v", fake.rows)
	}
	if fake.calls["spreadsheet"] != 1 {
		t.Errorf("sheet id should be resolved once, got %d lookups", fake.calls["spreadsheet"])
	}
}

func TestClientWithoutService(t *testing.T) {
	c := &Client{spreadsheetID: "test", sheet: defaultSheetName}
	if err := c.Export(context.Background(), row("t1", "1")); err == nil {
		t.Error("expected error with nil service")
	}
	if err := c.Remove(context.Background(), "t1"); err == nil {
		t.Error("expected error with nil service")
	}
}

func TestA1QuotesSheetName(t *testing.T) {
	tests := []struct {
		sheet, want string
	}{
		{"Transactions", "'Transactions'!A:A"},
		{"2024 Ledger", "'2024 Ledger'!A:A"},
		{"Bob's", "'Bob''s'!A:A"},
	}
	for _, tt := range tests {
		if got := New(nil, "id", tt.sheet).a1("A:A"); got != tt.want {
			t.Errorf("a1(%q) = %q, want %q", tt.sheet, got, tt.want)
		}
	}
}

func TestNewFromEnv_MissingSpreadsheetID(t *testing.T) {
	t.Setenv("GOOGLE_SPREADSHEET_ID", "")

	_, err := NewFromEnv(context.Background())
	if err == nil {
		t.Fatal("expected error for missing GOOGLE_SPREADSHEET_ID")
	}
	if err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestServiceAccountCredentials(t *testing.T) {
	file := filepath.Join(t.TempDir(), "sa.json")
	if err := os.WriteFile(file, []byte(`{"type":"service_account"}`), 0o600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		env     map[string]string
		want    string
		wantErr bool
	}{
		{"inline json wins", map[string]string{"GOOGLE_SERVICE_ACCOUNT_JSON": `{"inline":true}`, "GOOGLE_SERVICE_ACCOUNT_FILE": file}, `{"inline":true}`, false},
		{"file", map[string]string{"GOOGLE_SERVICE_ACCOUNT_FILE": file}, `{"type":"service_account"}`, false},
		{"application credentials fallback", map[string]string{"GOOGLE_APPLICATION_CREDENTIALS": file}, `{"type":"service_account"}`, false},
		{"missing file", map[string]string{"GOOGLE_SERVICE_ACCOUNT_FILE": filepath.Join(t.TempDir(), "nope.json")}, "", true},
		{"nothing set", map[string]string{}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, k := range []string{"GOOGLE_SERVICE_ACCOUNT_JSON", "GOOGLE_SERVICE_ACCOUNT_FILE", "GOOGLE_APPLICATION_CREDENTIALS"} {
				t.Setenv(k, tt.env[k])
			}
			got, err := serviceAccountCredentials()
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if string(got) != tt.want {
				t.Errorf("credentials = %q, want %q", got, tt.want)
			}
		})
	}
}
