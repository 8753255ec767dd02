// Package core holds the ledger's domain types and the pure spend/budget
// math shared by the dashboard and the analytics aggregator.
//
// Two "total spent" definitions coexist on purpose and must not be unified:
// CashFlowSpent is the dashboard's cash view (full amount physically paid,
// credits subtracted), while SpendOf nets out splits once they are settled.
package core

// DebtInfo summarizes the split state of one transaction.
type DebtInfo struct {
	HasUnsettled    bool
	UnsettledAmount float64
}

// DebtStatus derives DebtInfo from a transaction's debts.
func DebtStatus(debts []Debt) DebtInfo {
	var info DebtInfo
	for _, d := range debts {
		if !d.IsSettled {
			info.HasUnsettled = true
			info.UnsettledAmount += d.Amount
		}
	}
	return info
}

// SpendOf is the analytics spend for one transaction. Credits count as-is;
// a transaction with an unsettled split counts in full because the owner
// fronted the entire bill; otherwise the owner's own share counts.
func SpendOf(t Transaction, info DebtInfo) float64 {
	if t.MyAmount < 0 {
		return t.MyAmount
	}
	if info.HasUnsettled {
		return t.TotalAmount
	}
	return t.MyAmount
}

// CashFlowSpent is the dashboard's total: actual cash paid out of pocket.
// Credits reduce the figure; split transactions count the full amount since
// the owner fronted the whole bill regardless of later reimbursement.
func CashFlowSpent(txns []Transaction) float64 {
	var total float64
	for _, t := range txns {
		if t.MyAmount < 0 {
			total += t.MyAmount
			continue
		}
		total += t.TotalAmount
	}
	return total
}

// PendingTotal sums unsettled debt amounts.
func PendingTotal(debts []Debt) float64 {
	var total float64
	for _, d := range debts {
		if !d.IsSettled {
			total += d.Amount
		}
	}
	return total
}

// EffectiveBudget is the base budget plus the month's winnings.
func EffectiveBudget(base float64, winnings []Winning) float64 {
	total := base
	for _, w := range winnings {
		total += w.Amount
	}
	return total
}

// MonthOverview is the derived dashboard view for one month.
type MonthOverview struct {
	Period          Period  `json:"period"`
	BaseBudget      float64 `json:"base_budget"`
	WinningsTotal   float64 `json:"winnings_total"`
	EffectiveBudget float64 `json:"effective_budget"`
	TotalSpent      float64 `json:"total_spent"` // cash-flow definition
	EmiPaid         float64 `json:"emi_paid"`    // installments paid this month, included in TotalSpent
	PendingTotal    float64 `json:"pending_total"`
	Remaining       float64 `json:"remaining"`
	AfterDebts      float64 `json:"after_debts"` // Remaining once all friends pay back
}

// BuildMonthOverview derives the dashboard numbers for one month. budget may
// be nil when none is set. pending is the user's unsettled debts (all time,
// matching what "To Collect" shows).
func BuildMonthOverview(p Period, budget *Budget, winnings []Winning, txns []Transaction, pending []Debt, emis []Emi) MonthOverview {
	o := MonthOverview{Period: p}
	if budget != nil {
		o.BaseBudget = budget.Amount
	}
	for _, w := range winnings {
		o.WinningsTotal += w.Amount
	}
	o.EffectiveBudget = o.BaseBudget + o.WinningsTotal
	o.TotalSpent = CashFlowSpent(txns)
	for _, e := range emis {
		if pay, ok := e.PaymentFor(p); ok {
			o.EmiPaid += pay.Amount
		}
	}
	o.PendingTotal = PendingTotal(pending)
	o.Remaining = o.EffectiveBudget - o.TotalSpent
	o.AfterDebts = o.Remaining + o.PendingTotal
	return o
}
