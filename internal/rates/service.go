package rates

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"ledger/internal/core"
)

// refreshTimeout bounds one shared refresh: both provider sub-fetches plus
// the cache write.
const refreshTimeout = time.Minute

type Fetcher interface {
	FetchRates(ctx context.Context, currencies []core.Currency, base string) (Table, error)
}

// CurrencyLister returns the currencies rates should be fetched for.
type CurrencyLister interface {
	Currencies(ctx context.Context) ([]core.Currency, error)
}

// Service ties the provider, the cache and the converter together.
type Service struct {
	fetcher    Fetcher
	cache      *Cache
	currencies CurrencyLister
	converter  *Converter
	group      singleflight.Group
}

func NewService(fetcher Fetcher, cache *Cache, currencies CurrencyLister, catalog *core.Catalog) *Service {
	return &Service{
		fetcher:    fetcher,
		cache:      cache,
		currencies: currencies,
		converter:  NewConverter(catalog, cache),
	}
}

// RefreshRates fetches a new table against the pivot currency and saves it.
// Concurrent callers share one fetch. The shared fetch is detached from any
// single caller and bounded by refreshTimeout; a caller whose ctx ends stops
// waiting without cancelling it for the others.
func (s *Service) RefreshRates(ctx context.Context) (Table, error) {
	ch := s.group.DoChan("refresh", func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()
		return s.refresh(fetchCtx)
	})

	select {
	case <-ctx.Done():
		return Table{}, fmt.Errorf("refresh rates: %w", ctx.Err())
	case res := <-ch:
		if res.Shared {
			slog.DebugContext(ctx, "Joined in-flight rate refresh")
		}
		if res.Err != nil {
			return Table{}, res.Err
		}
		return res.Val.(Table).clone(), nil
	}
}

func (s *Service) refresh(ctx context.Context) (Table, error) {
	start := time.Now()
	currencies, err := s.currencies.Currencies(ctx)
	if err != nil {
		return Table{}, fmt.Errorf("list currencies: %w", err)
	}
	table, err := s.fetcher.FetchRates(ctx, currencies, core.PivotCurrency)
	if err != nil {
		slog.ErrorContext(ctx, "Rate refresh failed", "error", err, "duration", time.Since(start))
		return Table{}, fmt.Errorf("fetch rates: %w", err)
	}
	if err := s.cache.Save(ctx, table); err != nil {
		return Table{}, err
	}
	slog.InfoContext(ctx, "Rates refreshed", "rates", table.Len(), "duration", time.Since(start))
	return table, nil
}

// RefreshRatesIfNeeded refreshes only a missing or stale table and reports
// whether a fetch happened.
func (s *Service) RefreshRatesIfNeeded(ctx context.Context) (bool, error) {
	if !s.cache.NeedsRefresh() {
		return false, nil
	}
	if _, err := s.RefreshRates(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Service) Convert(amount decimal.Decimal, from, to string) decimal.Decimal {
	return s.converter.Convert(amount, from, to)
}

func (s *Service) Table() (Table, bool) {
	return s.cache.Table()
}

func (s *Service) FetchedAt() time.Time {
	return s.cache.FetchedAt()
}

func (s *Service) NeedsRefresh() bool {
	return s.cache.NeedsRefresh()
}
