// Package http is the JSON API. Every response is wrapped in a
// {data, error} envelope; callers identify themselves with the X-User-ID
// header.
package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"spendly/internal/analytics"
	"spendly/internal/cache"
	"spendly/internal/core"
	"spendly/internal/ledger"
	"spendly/internal/services"
)

type Server struct {
	http.Server
	store       *ledger.Store
	settlements *services.SettlementService
	emis        *services.EmiService
	reports     *analytics.Aggregator
	rateLimiter *rateLimiter
	logger      *slog.Logger
	now         func() time.Time

	// Response caches in front of the heavy reads; mutations invalidate
	// by user prefix.
	overviewCache *cache.LRU[core.MonthOverview]
	reportCache   *cache.LRU[analytics.Report]
	janitor       *cache.Janitor

	shutdownOnce sync.Once
}

type Options struct {
	Addr      string
	CacheSize int
	CacheTTL  time.Duration
}

func NewServer(opts Options, store *ledger.Store, settlements *services.SettlementService, emis *services.EmiService, reports *analytics.Aggregator, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	if opts.CacheSize < 1 {
		opts.CacheSize = 256
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = time.Minute
	}

	s := &Server{
		Server: http.Server{
			Addr:    opts.Addr,
			Handler: mux,
		},
		store:         store,
		settlements:   settlements,
		emis:          emis,
		reports:       reports,
		rateLimiter:   newRateLimiter(),
		logger:        logger,
		now:           time.Now,
		overviewCache: cache.NewLRU[core.MonthOverview](opts.CacheSize, opts.CacheTTL),
		reportCache:   cache.NewLRU[analytics.Report](opts.CacheSize, opts.CacheTTL),
	}
	s.janitor = cache.NewJanitor(s.overviewCache, s.reportCache)
	s.janitor.Start(10 * time.Minute)

	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", handleReady)

	mux.HandleFunc("/api/transactions", s.withSecurityHeaders(s.handleTransactions))
	mux.HandleFunc("/api/tags", s.withSecurityHeaders(s.handleTags))
	mux.HandleFunc("/api/friends", s.withSecurityHeaders(s.handleFriends))
	mux.HandleFunc("/api/friends/debts", s.withSecurityHeaders(s.handleFriendDebts))
	mux.HandleFunc("/api/debts", s.withSecurityHeaders(s.handlePendingDebts))
	mux.HandleFunc("/api/debts/settle", s.withSecurityHeaders(s.handleSettleDebt))
	mux.HandleFunc("/api/debts/settle-all", s.withSecurityHeaders(s.handleSettleAll))
	mux.HandleFunc("/api/budget", s.withSecurityHeaders(s.handleBudget))
	mux.HandleFunc("/api/winnings", s.withSecurityHeaders(s.handleWinnings))
	mux.HandleFunc("/api/emis", s.withSecurityHeaders(s.handleEmis))
	mux.HandleFunc("/api/emis/pay", s.withSecurityHeaders(s.handlePayEmi))
	mux.HandleFunc("/api/emis/unpay", s.withSecurityHeaders(s.handleUnpayEmi))
	mux.HandleFunc("/api/dashboard", s.withSecurityHeaders(s.handleDashboard))
	mux.HandleFunc("/api/analytics", s.withSecurityHeaders(s.handleAnalytics))
	mux.HandleFunc("/api/analytics/month", s.withSecurityHeaders(s.handleAnalyticsMonth))

	return s
}

// Shutdown stops the server together with its background goroutines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.janitor.Stop()
		s.rateLimiter.stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// withSecurityHeaders adds security headers, rate limiting, and request
// logging.
func (s *Server) withSecurityHeaders(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		clientIP := extractClientIP(r)
		requestID := generateRequestID()

		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		s.logger.InfoContext(ctx, "Request started",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"client_ip", clientIP)

		// Rate limit mutations only; reads are cached anyway.
		if r.Method != http.MethodGet && !s.rateLimiter.allow(clientIP) {
			s.logger.WarnContext(ctx, "Rate limit exceeded", "client_ip", clientIP, "method", r.Method, "url", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded, try again later")
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		s.logger.InfoContext(ctx, "Request completed",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"status", rw.statusCode,
			"duration_ms", time.Since(start).Milliseconds(),
			"client_ip", clientIP)
	}
}

type requestIDKey struct{}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// invalidate drops every cached response for the user. Called by all
// mutating handlers.
func (s *Server) invalidate(userID string) {
	s.overviewCache.DeletePrefix(userID + ":")
	s.reportCache.Delete(userID)
}
