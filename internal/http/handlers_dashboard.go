package http

import (
	"net/http"

	"golang.org/x/sync/errgroup"

	"spendly/internal/core"
)

// handleDashboard serves the month overview: effective budget, cash-flow
// spend, installments paid, and pending debt totals. Responses are cached
// per user and month until a mutation invalidates them.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	p, err := parsePeriod(r, core.PeriodOf(s.now()))
	if err != nil {
		s.respondError(r.Context(), w, err)
		return
	}

	cacheKey := uid + ":" + p.Key()
	if overview, ok := s.overviewCache.Get(cacheKey); ok {
		writeJSON(w, http.StatusOK, overview)
		return
	}

	var (
		budget   *core.Budget
		winnings []core.Winning
		txns     []core.Transaction
		pending  []core.Debt
		emis     []core.Emi
	)
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		budget, err = s.store.Budget(ctx, uid, p)
		return err
	})
	g.Go(func() error {
		var err error
		winnings, err = s.store.Winnings(ctx, uid, p)
		return err
	})
	g.Go(func() error {
		var err error
		txns, err = s.store.MonthTransactions(ctx, uid, p)
		return err
	})
	g.Go(func() error {
		var err error
		pending, err = s.store.PendingDebts(ctx, uid)
		return err
	})
	g.Go(func() error {
		var err error
		emis, err = s.store.Emis(ctx, uid, true)
		return err
	})
	if err := g.Wait(); err != nil {
		s.respondError(r.Context(), w, err)
		return
	}

	overview := core.BuildMonthOverview(p, budget, winnings, txns, pending, emis)
	s.overviewCache.Set(cacheKey, overview)
	writeJSON(w, http.StatusOK, overview)
}

// handleAnalytics serves the rolling two-year spending report.
func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	if report, ok := s.reportCache.Get(uid); ok {
		writeJSON(w, http.StatusOK, report)
		return
	}

	report, err := s.reports.Overview(r.Context(), uid)
	if err != nil {
		s.respondError(r.Context(), w, err)
		return
	}
	s.reportCache.Set(uid, report)
	writeJSON(w, http.StatusOK, report)
}

// handleAnalyticsMonth is the drill-down for one month: per-tag and
// per-day breakdowns.
func (s *Server) handleAnalyticsMonth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	p, err := parsePeriod(r, core.PeriodOf(s.now()))
	if err != nil {
		s.respondError(r.Context(), w, err)
		return
	}

	detail, err := s.reports.Month(r.Context(), uid, p)
	if err != nil {
		s.respondError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}
