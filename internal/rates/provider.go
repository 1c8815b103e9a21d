package rates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"ledger/internal/core"
)

const (
	DefaultFiatURL   = "https://open.er-api.com/v6"
	DefaultCryptoURL = "https://api.coingecko.com/api/v3"
	DefaultTimeout   = 10 * time.Second

	maxResponseBytes = 1 << 20
)

var (
	ErrMalformedURL = errors.New("malformed rate source url")
	ErrTransport    = errors.New("rate source unavailable")
	ErrDecode       = errors.New("rate source returned malformed data")
)

// StatusError reports a non-2xx response from a rate source.
type StatusError struct {
	Source     string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %s returned status %d", ErrTransport, e.Source, e.StatusCode)
}

func (e *StatusError) Unwrap() error {
	return ErrTransport
}

type ProviderConfig struct {
	FiatURL   string
	CryptoURL string
	Timeout   time.Duration // per sub-fetch
	Client    *http.Client
}

// Provider fetches fiat and crypto rates from two independent upstreams.
type Provider struct {
	fiatURL   string
	cryptoURL string
	timeout   time.Duration
	client    *http.Client
}

func NewProvider(cfg ProviderConfig) *Provider {
	p := &Provider{
		fiatURL:   strings.TrimRight(cfg.FiatURL, "/"),
		cryptoURL: strings.TrimRight(cfg.CryptoURL, "/"),
		timeout:   cfg.Timeout,
		client:    cfg.Client,
	}
	if p.fiatURL == "" {
		p.fiatURL = DefaultFiatURL
	}
	if p.cryptoURL == "" {
		p.cryptoURL = DefaultCryptoURL
	}
	if p.timeout <= 0 {
		p.timeout = DefaultTimeout
	}
	if p.client == nil {
		p.client = &http.Client{}
	}
	return p
}

type fiatResponse struct {
	Base  string                     `json:"base"`
	Date  string                     `json:"date"`
	Rates map[string]decimal.Decimal `json:"rates"`
}

// FetchRates fetches the fiat table for base and the prices of the requested
// crypto currencies concurrently and merges them. The table is returned as
// long as one of the two fetches succeeded.
func (p *Provider) FetchRates(ctx context.Context, currencies []core.Currency, base string) (Table, error) {
	base = core.NormalizeCode(base)

	var (
		fiat      fiatResponse
		crypto    map[string]decimal.Decimal
		fiatErr   error
		cryptoErr error
	)
	coins := coinIDsFor(currencies)

	var g errgroup.Group
	g.Go(func() error {
		fiat, fiatErr = p.fetchFiat(ctx, base)
		return nil
	})
	if len(coins) > 0 {
		g.Go(func() error {
			crypto, cryptoErr = p.fetchCrypto(ctx, coins, base)
			return nil
		})
	}
	_ = g.Wait()

	fiatOK := fiatErr == nil
	cryptoOK := len(coins) > 0 && cryptoErr == nil
	if !fiatOK && !cryptoOK {
		return Table{}, errors.Join(fiatErr, cryptoErr)
	}

	table := Table{Base: base, Date: time.Now().UTC(), Rates: map[string]decimal.Decimal{base: decimal.NewFromInt(1)}}
	if fiatOK {
		for code, rate := range fiat.Rates {
			table.Rates[core.NormalizeCode(code)] = rate
		}
		if d, err := time.Parse("2006-01-02", fiat.Date); err == nil {
			table.Date = d
		}
	} else {
		slog.WarnContext(ctx, "Fiat rate fetch failed, using crypto rates only", "error", fiatErr)
	}
	if cryptoOK {
		for code, rate := range crypto {
			table.Rates[code] = rate
		}
	} else if cryptoErr != nil {
		slog.WarnContext(ctx, "Crypto rate fetch failed, using fiat rates only", "error", cryptoErr)
	}

	slog.InfoContext(ctx, "Rates fetched", "base", base, "rates", table.Len())
	return table, nil
}

func (p *Provider) fetchFiat(ctx context.Context, base string) (fiatResponse, error) {
	u, err := endpoint(p.fiatURL, "latest", base)
	if err != nil {
		return fiatResponse{}, err
	}

	var resp fiatResponse
	if err := p.getJSON(ctx, "fiat", u.String(), &resp); err != nil {
		return fiatResponse{}, err
	}
	if len(resp.Rates) == 0 {
		return fiatResponse{}, fmt.Errorf("%w: fiat response has no rates", ErrDecode)
	}
	return resp, nil
}

// fetchCrypto returns the price of each coin in base, keyed by currency code.
func (p *Provider) fetchCrypto(ctx context.Context, coins []string, base string) (map[string]decimal.Decimal, error) {
	u, err := endpoint(p.cryptoURL, "simple", "price")
	if err != nil {
		return nil, err
	}
	vs := strings.ToLower(base)
	q := u.Query()
	q.Set("ids", strings.Join(coins, ","))
	q.Set("vs_currencies", vs)
	u.RawQuery = q.Encode()

	var resp map[string]map[string]decimal.Decimal
	if err := p.getJSON(ctx, "crypto", u.String(), &resp); err != nil {
		return nil, err
	}

	out := make(map[string]decimal.Decimal, len(resp))
	for id, prices := range resp {
		code, ok := CodeForCoinID(id)
		if !ok {
			continue
		}
		if price, ok := prices[vs]; ok && price.IsPositive() {
			out[code] = price
		}
	}
	return out, nil
}

func (p *Provider) getJSON(ctx context.Context, source, rawURL string, v any) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedURL, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrTransport, source, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return &StatusError{Source: source, StatusCode: resp.StatusCode}
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(v); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrDecode, source, err)
	}
	return nil
}

func endpoint(base string, elem ...string) (*url.URL, error) {
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrMalformedURL, base)
	}
	return u.JoinPath(elem...), nil
}

// coinIDsFor returns the sorted source ids of the mapped crypto currencies.
func coinIDsFor(currencies []core.Currency) []string {
	seen := make(map[string]struct{})
	var ids []string
	for _, c := range currencies {
		if c.Kind != core.Crypto {
			continue
		}
		id, ok := CoinID(c.Code)
		if !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
