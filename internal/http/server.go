package http

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"ledger/internal/cache"
	"ledger/internal/core"
	"ledger/internal/log"
	"ledger/internal/middleware/ratelimit"
	"ledger/internal/middleware/security"
	"ledger/internal/middleware/trace"
	"ledger/internal/services"
)

const (
	summaryCacheSize = 32
	summaryCacheTTL  = 5 * time.Minute
	cacheCleanup     = 10 * time.Minute
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options tune a Server. Zero values select defaults.
type Options struct {
	RateLimitPerMinute int
	Pinger             Pinger
	Logger             *log.Logger
}

type Server struct {
	http.Server
	ledger *services.LedgerService
	pinger Pinger
	logger *log.Logger

	summaryCache *cache.LRUCache[core.Summary]
	cacheManager *cache.Manager

	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware
	appMetrics       *appMetrics

	// summaryGen is part of every summary cache key. Writes bump it, so a
	// summary computed before a write can never be read back after it.
	summaryGen atomic.Uint64

	shutdownOnce sync.Once
}

type appMetrics struct {
	transactions int64
	cacheHits    int64
	cacheMisses  int64
	uptime       time.Time
}

// NewServer wires the JSON API over ledger and returns a ready-to-run server.
func NewServer(addr string, ledger *services.LedgerService, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig()).WithComponent(log.ComponentHTTP)
	}

	limitCfg := ratelimit.DefaultConfig()
	if opts.RateLimitPerMinute > 0 {
		limitCfg.RequestsPerMinute = opts.RateLimitPerMinute
	}

	s := &Server{
		ledger:           ledger,
		pinger:           opts.Pinger,
		logger:           logger,
		summaryCache:     cache.NewLRUCache[core.Summary](summaryCacheSize, summaryCacheTTL),
		cacheManager:     cache.NewManager(),
		rateLimiter:      ratelimit.NewLimiter(limitCfg),
		securityDetector: security.NewDetector(),
		appMetrics:       &appMetrics{uptime: time.Now()},
	}
	s.traceMiddleware = trace.NewMiddleware(s.securityDetector.ExtractClientIP, logger)
	s.cacheManager.Register(s.summaryCache)
	s.cacheManager.StartCleanup(cacheCleanup)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("GET /api/accounts", s.handleListAccounts)
	mux.HandleFunc("POST /api/accounts", s.handleCreateAccount)
	mux.HandleFunc("DELETE /api/accounts/{id}", s.handleDeleteAccount)
	mux.HandleFunc("GET /api/accounts/{id}/transactions", s.handleAccountTransactions)

	mux.HandleFunc("GET /api/categories", s.handleListCategories)
	mux.HandleFunc("POST /api/categories", s.handleCreateCategory)

	mux.HandleFunc("POST /api/transactions/expense", s.handleCreateEntry(core.Expense))
	mux.HandleFunc("POST /api/transactions/income", s.handleCreateEntry(core.Income))
	mux.HandleFunc("POST /api/transactions/transfer", s.handleCreateTransfer)
	mux.HandleFunc("PUT /api/transactions/{id}", s.handleUpdateTransaction)
	mux.HandleFunc("DELETE /api/transactions/{id}", s.handleDeleteTransaction)

	mux.HandleFunc("GET /api/currencies", s.handleListCurrencies)
	mux.HandleFunc("GET /api/convert", s.handleConvert)
	mux.HandleFunc("POST /api/rates/refresh", s.handleRefreshRates)
	mux.HandleFunc("GET /api/summary", s.handleSummary)
	mux.HandleFunc("POST /api/reconcile", s.handleReconcile)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.middleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// middleware wraps the mux, outermost first: security headers, tracing,
// request logger, probe detection, then rate limiting of writes.
func (s *Server) middleware(next http.Handler) http.Handler {
	limited := s.rateLimiter.Middleware(s.securityDetector.ExtractClientIP, isWrite, s.handleRateLimited)(next)
	h := s.securityDetector.Middleware(limited)
	h = log.RequestIDMiddleware(trace.RequestIDFromRequest)(h)
	h = log.Middleware(s.logger)(h)
	h = s.traceMiddleware.Middleware(h)
	return security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
}

func isWrite(r *http.Request) bool {
	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	default:
		return false
	}
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.securityDetector.ExtractClientIP(r),
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded, retry later").Write(w)
}

// Shutdown stops background cleanup and then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// invalidateSummaries drops every cached summary after a write.
func (s *Server) invalidateSummaries() {
	s.summaryGen.Add(1)
	s.summaryCache.Clear()
}

// summaryCacheKey identifies a summary by display currency, rate table and
// ledger generation.
func (s *Server) summaryCacheKey(currency string) string {
	return core.NormalizeCode(currency) +
		"@" + strconv.FormatInt(s.ledger.Rates().FetchedAt().UnixNano(), 10) +
		"#" + strconv.FormatUint(s.summaryGen.Load(), 10)
}

func (s *Server) getSummary(ctx context.Context, currency string) (core.Summary, error) {
	key := s.summaryCacheKey(currency)
	if summary, found := s.summaryCache.Get(key); found {
		atomic.AddInt64(&s.appMetrics.cacheHits, 1)
		return summary, nil
	}
	atomic.AddInt64(&s.appMetrics.cacheMisses, 1)

	summary, err := s.ledger.Summary(ctx, currency)
	if err != nil {
		return core.Summary{}, err
	}
	s.summaryCache.Set(key, summary)
	return summary, nil
}
