// Package analytics builds the spending report: month groups over a
// rolling two-year window, tag breakdowns, and per-day detail for a single
// month.
package analytics

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"spendly/internal/core"
	"spendly/internal/ledger"
)

// MonthGroup is one month's slice of the window, oldest first in the
// report. Total accumulates only positive spends; credits appear in the
// transaction list but do not pull the total down.
type MonthGroup struct {
	Key          string             `json:"key"` // YYYY-MM
	Label        string             `json:"label"`
	Month        int                `json:"month"`
	Year         int                `json:"year"`
	Total        float64            `json:"total"`
	Budget       float64            `json:"budget"`
	Transactions []core.Transaction `json:"transactions"`
}

// TagTotal is one tag's share of the spend for some set of transactions.
type TagTotal struct {
	Tag   core.Tag `json:"tag"`
	Total float64  `json:"total"`
	Count int      `json:"count"`
}

// DayTotal is one calendar day's spend within a month.
type DayTotal struct {
	Day   int     `json:"day"`
	Total float64 `json:"total"`
}

type Report struct {
	Months           []MonthGroup `json:"months"`
	Tags             []TagTotal   `json:"tags"` // all-time within the window, largest first
	TotalSpent       float64      `json:"total_spent"`
	AvgMonthly       float64      `json:"avg_monthly"`
	HighestMonthKey  string       `json:"highest_month_key"`
	TransactionCount int          `json:"transaction_count"`
}

// MonthDetail is the drill-down for a single month.
type MonthDetail struct {
	MonthGroup
	Tags   []TagTotal `json:"tags"`
	Days   []DayTotal `json:"days"`
	MaxDay float64    `json:"max_day"` // never below 1, so ratios stay defined
}

type Aggregator struct {
	store  *ledger.Store
	logger *slog.Logger
	now    func() time.Time
}

func NewAggregator(store *ledger.Store, logger *slog.Logger) *Aggregator {
	return &Aggregator{store: store, logger: logger, now: time.Now}
}

// Overview assembles the full report. Transactions and budgets are fetched
// concurrently; the window starts in January of last year.
func (a *Aggregator) Overview(ctx context.Context, userID string) (Report, error) {
	fromYear := a.now().Year() - 1

	var txns []core.Transaction
	var budgets []core.Budget
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		txns, err = a.store.TransactionsSince(gctx, userID, fromYear)
		return err
	})
	g.Go(func() error {
		var err error
		budgets, err = a.store.BudgetsSince(gctx, userID, fromYear)
		return err
	})
	if err := g.Wait(); err != nil {
		return Report{}, err
	}

	budgetByKey := make(map[string]float64, len(budgets))
	for _, b := range budgets {
		budgetByKey[(core.Period{Month: b.Month, Year: b.Year}).Key()] = b.Amount
	}

	groups := make(map[string]*MonthGroup)
	for _, t := range txns {
		p := t.Period()
		key := p.Key()
		mg, ok := groups[key]
		if !ok {
			mg = &MonthGroup{
				Key:    key,
				Label:  p.Label(),
				Month:  p.Month,
				Year:   p.Year,
				Budget: budgetByKey[key],
			}
			groups[key] = mg
		}
		mg.Transactions = append(mg.Transactions, t)
		if spend := spendOf(t); spend > 0 {
			mg.Total += spend
		}
	}

	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	r := Report{
		Months:           make([]MonthGroup, 0, len(keys)),
		Tags:             TagBreakdown(txns),
		TransactionCount: len(txns),
	}
	var monthSum float64
	for _, k := range keys {
		mg := groups[k]
		r.Months = append(r.Months, *mg)
		monthSum += mg.Total
		if r.HighestMonthKey == "" || mg.Total > groups[r.HighestMonthKey].Total {
			r.HighestMonthKey = k
		}
	}
	if len(r.Months) > 0 {
		r.AvgMonthly = monthSum / float64(len(r.Months))
	}
	for _, t := range txns {
		if spend := spendOf(t); spend > 0 {
			r.TotalSpent += spend
		}
	}
	return r, nil
}

// Month assembles the drill-down for one period.
func (a *Aggregator) Month(ctx context.Context, userID string, p core.Period) (MonthDetail, error) {
	if err := p.Validate(); err != nil {
		return MonthDetail{}, err
	}

	var txns []core.Transaction
	var budget *core.Budget
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		txns, err = a.store.MonthTransactions(gctx, userID, p)
		return err
	})
	g.Go(func() error {
		var err error
		budget, err = a.store.Budget(gctx, userID, p)
		return err
	})
	if err := g.Wait(); err != nil {
		return MonthDetail{}, err
	}

	detail := MonthDetail{
		MonthGroup: MonthGroup{
			Key:          p.Key(),
			Label:        p.Label(),
			Month:        p.Month,
			Year:         p.Year,
			Transactions: txns,
		},
		Tags: TagBreakdown(txns),
	}
	if budget != nil {
		detail.Budget = budget.Amount
	}
	for _, t := range txns {
		if spend := spendOf(t); spend > 0 {
			detail.Total += spend
		}
	}
	detail.Days, detail.MaxDay = DayBreakdown(txns)
	return detail, nil
}

// TagBreakdown totals positive spends per tag, largest first. Credits and
// zero rows are skipped. Ties keep first-seen order.
func TagBreakdown(txns []core.Transaction) []TagTotal {
	byID := make(map[string]*TagTotal)
	var order []string
	for _, t := range txns {
		spend := spendOf(t)
		if spend <= 0 {
			continue
		}
		for _, tag := range t.Tags {
			tt, ok := byID[tag.ID]
			if !ok {
				tt = &TagTotal{Tag: tag}
				byID[tag.ID] = tt
				order = append(order, tag.ID)
			}
			tt.Total += spend
			tt.Count++
		}
	}
	out := make([]TagTotal, 0, len(order))
	for _, id := range order {
		out = append(out, *byID[id])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Total > out[j].Total })
	return out
}

// DayBreakdown totals positive spends per day of month. The returned max
// is floored at 1 so bar ratios stay defined on empty months.
func DayBreakdown(txns []core.Transaction) ([]DayTotal, float64) {
	byDay := make(map[int]float64)
	for _, t := range txns {
		spend := spendOf(t)
		if spend <= 0 {
			continue
		}
		day, ok := dayOf(t.Date)
		if !ok {
			continue
		}
		byDay[day] += spend
	}

	out := make([]DayTotal, 0, len(byDay))
	max := 1.0
	for day, total := range byDay {
		out = append(out, DayTotal{Day: day, Total: total})
		if total > max {
			max = total
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day < out[j].Day })
	return out, max
}

func dayOf(date string) (int, bool) {
	d, err := time.Parse("2006-01-02", date)
	if err != nil {
		return 0, false
	}
	return d.Day(), true
}

func spendOf(t core.Transaction) float64 {
	return core.SpendOf(t, core.DebtStatus(t.Debts))
}
