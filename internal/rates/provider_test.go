package rates

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"ledger/internal/core"
)

var testCurrencies = []core.Currency{
	{Code: "USD", Kind: core.Fiat, IsBase: true},
	{Code: "EUR", Kind: core.Fiat},
	{Code: "BTC", Kind: core.Crypto},
	{Code: "ETH", Kind: core.Crypto},
	{Code: "NOTACOIN", Kind: core.Crypto},
}

func fiatServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/latest/USD" {
			t.Errorf("unexpected fiat path %s", r.URL.Path)
		}
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func cryptoServer(t *testing.T, status int, body string, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Path != "/simple/price" {
			t.Errorf("unexpected crypto path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("ids"); got != "bitcoin,ethereum" {
			t.Errorf("ids = %q", got)
		}
		if got := r.URL.Query().Get("vs_currencies"); got != "usd" {
			t.Errorf("vs_currencies = %q", got)
		}
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

const (
	fiatBody   = `{"result":"success","base":"USD","date":"2024-03-10","rates":{"USD":1,"EUR":0.92,"GBP":0.79}}`
	cryptoBody = `{"bitcoin":{"usd":65000.5},"ethereum":{"usd":3500}}`
)

func TestFetchRatesMergesBothSources(t *testing.T) {
	var calls atomic.Int32
	p := NewProvider(ProviderConfig{
		FiatURL:   fiatServer(t, http.StatusOK, fiatBody).URL,
		CryptoURL: cryptoServer(t, http.StatusOK, cryptoBody, &calls).URL,
	})

	table, err := p.FetchRates(context.Background(), testCurrencies, "usd")
	if err != nil {
		t.Fatalf("FetchRates: %v", err)
	}

	want := map[string]string{"USD": "1", "EUR": "0.92", "GBP": "0.79", "BTC": "65000.5", "ETH": "3500"}
	if table.Len() != len(want) {
		t.Fatalf("got %d rates, want %d: %v", table.Len(), len(want), table.Rates)
	}
	for code, rate := range want {
		got, ok := table.Rate(code)
		if !ok || !got.Equal(decimal.RequireFromString(rate)) {
			t.Errorf("%s = %s (ok=%v), want %s", code, got, ok, rate)
		}
	}
	if table.Base != "USD" || table.Date.Format("2006-01-02") != "2024-03-10" {
		t.Fatalf("unexpected table header: base=%s date=%s", table.Base, table.Date)
	}
}

func TestFetchRatesPartialSuccess(t *testing.T) {
	var calls atomic.Int32
	p := NewProvider(ProviderConfig{
		FiatURL:   fiatServer(t, http.StatusOK, fiatBody).URL,
		CryptoURL: cryptoServer(t, http.StatusServiceUnavailable, "down", &calls).URL,
	})

	table, err := p.FetchRates(context.Background(), testCurrencies, "USD")
	if err != nil {
		t.Fatalf("crypto outage must not fail the fetch: %v", err)
	}
	if _, ok := table.Rate("EUR"); !ok {
		t.Fatalf("fiat rates missing")
	}
	for _, code := range []string{"BTC", "ETH"} {
		if _, ok := table.Rate(code); ok {
			t.Fatalf("unexpected crypto rate %s", code)
		}
	}
}

func TestFetchRatesSlowSourceTimesOut(t *testing.T) {
	const upstreamDelay = 2 * time.Second
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(upstreamDelay):
			w.Write([]byte(cryptoBody))
		}
	}))
	t.Cleanup(slow.Close)

	p := NewProvider(ProviderConfig{
		FiatURL:   fiatServer(t, http.StatusOK, fiatBody).URL,
		CryptoURL: slow.URL,
		Timeout:   100 * time.Millisecond,
	})

	start := time.Now()
	table, err := p.FetchRates(context.Background(), testCurrencies, "USD")
	elapsed := time.Since(start)
	if err != nil {
		t.Fatalf("timed-out crypto fetch must not fail the table: %v", err)
	}
	if elapsed >= upstreamDelay/2 {
		t.Fatalf("FetchRates took %v, sub-fetch timeout not applied", elapsed)
	}
	for _, code := range []string{"USD", "EUR", "GBP"} {
		if _, ok := table.Rate(code); !ok {
			t.Errorf("fiat rate %s missing", code)
		}
	}
	for _, code := range []string{"BTC", "ETH"} {
		if _, ok := table.Rate(code); ok {
			t.Errorf("unexpected crypto rate %s", code)
		}
	}
}

func TestFetchRatesCryptoOnly(t *testing.T) {
	var calls atomic.Int32
	p := NewProvider(ProviderConfig{
		FiatURL:   fiatServer(t, http.StatusOK, `{"rates":`).URL,
		CryptoURL: cryptoServer(t, http.StatusOK, cryptoBody, &calls).URL,
	})

	table, err := p.FetchRates(context.Background(), testCurrencies, "USD")
	if err != nil {
		t.Fatalf("FetchRates: %v", err)
	}
	if _, ok := table.Rate("BTC"); !ok {
		t.Fatalf("crypto rates missing")
	}
	if _, ok := table.Rate("EUR"); ok {
		t.Fatalf("unexpected fiat rate")
	}
}

func TestFetchRatesAllFail(t *testing.T) {
	var calls atomic.Int32
	p := NewProvider(ProviderConfig{
		FiatURL:   fiatServer(t, http.StatusInternalServerError, "").URL,
		CryptoURL: cryptoServer(t, http.StatusOK, "not json", &calls).URL,
	})

	_, err := p.FetchRates(context.Background(), testCurrencies, "USD")
	if err == nil {
		t.Fatalf("expected error when every source fails")
	}
	if !errors.Is(err, ErrTransport) || !errors.Is(err, ErrDecode) {
		t.Fatalf("expected both failures in %v", err)
	}
	var status *StatusError
	if !errors.As(err, &status) || status.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestFetchRatesSkipsCryptoWithoutMappedCoins(t *testing.T) {
	var calls atomic.Int32
	p := NewProvider(ProviderConfig{
		FiatURL:   fiatServer(t, http.StatusOK, fiatBody).URL,
		CryptoURL: cryptoServer(t, http.StatusOK, cryptoBody, &calls).URL,
	})

	currencies := []core.Currency{{Code: "EUR", Kind: core.Fiat}, {Code: "NOTACOIN", Kind: core.Crypto}}
	if _, err := p.FetchRates(context.Background(), currencies, "USD"); err != nil {
		t.Fatalf("FetchRates: %v", err)
	}
	if n := calls.Load(); n != 0 {
		t.Fatalf("crypto source called %d times", n)
	}
}

func TestFetchRatesMalformedURL(t *testing.T) {
	p := NewProvider(ProviderConfig{FiatURL: "not a url", CryptoURL: "::"})

	_, err := p.FetchRates(context.Background(), testCurrencies, "USD")
	if !errors.Is(err, ErrMalformedURL) {
		t.Fatalf("expected malformed url error, got %v", err)
	}
}

func TestCoinIDMappingIsBidirectional(t *testing.T) {
	for _, c := range core.DefaultCatalog().All() {
		if c.Kind != core.Crypto {
			continue
		}
		id, ok := CoinID(c.Code)
		if !ok {
			t.Errorf("crypto %s has no coin id", c.Code)
			continue
		}
		code, ok := CodeForCoinID(strings.ToUpper(id))
		if !ok || code != c.Code {
			t.Errorf("CodeForCoinID(%s) = %s, want %s", id, code, c.Code)
		}
	}
}
