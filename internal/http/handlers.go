package http

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"
)

// handleHealth reports liveness only.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Data(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.appMetrics.uptime).String(),
	}).Write(w)
}

// handleReady pings the store and reports rate freshness and cache state.
// Only a failed ping makes the server not ready.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]any)

	if s.pinger != nil {
		if err := s.pinger.Ping(ctx); err != nil {
			checks["store"] = fmt.Sprintf("failed: %v", err)
			status = "not_ready"
			httpStatus = http.StatusServiceUnavailable
		} else {
			checks["store"] = "ok"
		}
	} else {
		checks["store"] = "in_memory"
	}

	rates := map[string]any{"stale": s.ledger.Rates().NeedsRefresh()}
	if fetched := s.ledger.Rates().FetchedAt(); !fetched.IsZero() {
		rates["fetched_at"] = fetched.Format(time.RFC3339)
	}
	checks["rates"] = rates

	checks["cache"] = map[string]any{"summary_entries": s.summaryCache.Size()}
	checks["rate_limiter"] = map[string]any{"active_clients": s.rateLimiter.ActiveClients()}

	NewJSONResponse().Status(httpStatus).Data(map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	}).Write(w)
}

type metric struct {
	name, kind, help string
	value            float64
	labels           string
}

// handleMetrics writes counters and gauges in the Prometheus text format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	trace := s.traceMiddleware.GetMetrics()
	limiter := s.rateLimiter.GetMetrics()
	detector := s.securityDetector.GetMetrics()

	var ratesAge float64
	if fetched := s.ledger.Rates().FetchedAt(); !fetched.IsZero() {
		ratesAge = time.Since(fetched).Seconds()
	}

	metrics := []metric{
		{"http_requests_total", "counter", "Requests served", float64(trace.TotalRequests), ""},
		{"http_server_errors_total", "counter", "Responses with a 5xx status", float64(trace.ServerErrors), ""},
		{"ledger_transactions_total", "counter", "Transactions created through the API", float64(atomic.LoadInt64(&s.appMetrics.transactions)), ""},
		{"summary_cache_hits_total", "counter", "Summary lookups served from cache", float64(atomic.LoadInt64(&s.appMetrics.cacheHits)), ""},
		{"summary_cache_misses_total", "counter", "Summary lookups computed from the ledger", float64(atomic.LoadInt64(&s.appMetrics.cacheMisses)), ""},
		{"cache_entries", "gauge", "Entries held per cache", float64(s.summaryCache.Size()), `type="summary"`},
		{"rates_age_seconds", "gauge", "Age of the cached rate table, 0 when none", ratesAge, ""},
		{"rate_limit_hits_total", "counter", "Writes rejected by the rate limiter", float64(limiter.TotalHits), ""},
		{"active_rate_limit_clients", "gauge", "Clients tracked by the rate limiter", float64(limiter.ClientCount), ""},
		{"suspicious_requests_total", "counter", "Requests flagged by the detector", float64(detector.SuspiciousRequests), ""},
		{"uptime_seconds", "gauge", "Seconds since the server started", time.Since(s.appMetrics.uptime).Seconds(), ""},
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	for _, m := range metrics {
		name := m.name
		if m.labels != "" {
			name += "{" + m.labels + "}"
		}
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n%s %s\n\n",
			m.name, m.help, m.name, m.kind, name, strconv.FormatFloat(m.value, 'f', -1, 64))
	}
}
