package rates

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"ledger/internal/core"
)

type fakeFetcher struct {
	calls   atomic.Int32
	release chan struct{}
	err     error
	base    string
}

func (f *fakeFetcher) FetchRates(ctx context.Context, _ []core.Currency, base string) (Table, error) {
	f.calls.Add(1)
	f.base = base
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return Table{}, ctx.Err()
		}
	}
	if f.err != nil {
		return Table{}, f.err
	}
	return sampleTable(), nil
}

type currencyList []core.Currency

func (l currencyList) Currencies(context.Context) ([]core.Currency, error) {
	return l, nil
}

func newTestService(f *fakeFetcher, clock *fakeClock) *Service {
	cache := NewCache(newMapKV(), DefaultTTL).WithClock(clock.Now)
	return NewService(f, cache, currencyList(testCurrencies), core.DefaultCatalog())
}

func TestRefreshRatesIfNeeded(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)}
	f := &fakeFetcher{}
	svc := newTestService(f, clock)
	ctx := context.Background()

	refreshed, err := svc.RefreshRatesIfNeeded(ctx)
	if err != nil || !refreshed {
		t.Fatalf("first refresh: refreshed=%v err=%v", refreshed, err)
	}
	if f.base != core.PivotCurrency {
		t.Fatalf("fetched against %s, want pivot", f.base)
	}

	refreshed, err = svc.RefreshRatesIfNeeded(ctx)
	if err != nil || refreshed {
		t.Fatalf("fresh cache refreshed again: refreshed=%v err=%v", refreshed, err)
	}

	clock.Advance(7 * time.Hour)
	if refreshed, _ := svc.RefreshRatesIfNeeded(ctx); !refreshed {
		t.Fatalf("stale cache was not refreshed")
	}
	if n := f.calls.Load(); n != 2 {
		t.Fatalf("fetcher called %d times, want 2", n)
	}

	if got := svc.Convert(sampleTable().Rates["EUR"], "EUR", "USD"); !got.Equal(sampleTable().Rates["USD"]) {
		t.Fatalf("convert after refresh = %s", got)
	}
}

func TestRefreshRatesCollapsesConcurrentCalls(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	f := &fakeFetcher{release: make(chan struct{})}
	svc := newTestService(f, clock)

	var (
		wg      sync.WaitGroup
		started atomic.Int32
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			started.Add(1)
			if _, err := svc.RefreshRates(context.Background()); err != nil {
				t.Errorf("refresh: %v", err)
			}
		}()
	}
	for started.Load() < 10 || f.calls.Load() == 0 {
		time.Sleep(time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond)
	close(f.release)
	wg.Wait()

	if n := f.calls.Load(); n != 1 {
		t.Fatalf("fetcher called %d times, want 1", n)
	}
}

func TestRefreshRatesFailureKeepsCache(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	f := &fakeFetcher{}
	svc := newTestService(f, clock)
	ctx := context.Background()

	if _, err := svc.RefreshRates(ctx); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	f.err = ErrTransport
	if _, err := svc.RefreshRates(ctx); !errors.Is(err, ErrTransport) {
		t.Fatalf("expected transport error, got %v", err)
	}
	if _, ok := svc.Table(); !ok {
		t.Fatalf("previous table lost after failed refresh")
	}
}

func TestRefreshRatesSurvivesCanceledCaller(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	f := &fakeFetcher{release: make(chan struct{})}
	svc := newTestService(f, clock)

	ctx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := svc.RefreshRates(ctx)
		firstErr <- err
	}()
	for f.calls.Load() == 0 {
		time.Sleep(time.Millisecond)
	}

	secondErr := make(chan error, 1)
	go func() {
		_, err := svc.RefreshRates(context.Background())
		secondErr <- err
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	select {
	case err := <-firstErr:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("canceled caller err = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("canceled caller kept waiting for the shared fetch")
	}

	close(f.release)
	if err := <-secondErr; err != nil {
		t.Fatalf("independent caller err = %v, want nil", err)
	}
	if _, ok := svc.Table(); !ok {
		t.Fatal("shared fetch did not save a table")
	}
}
