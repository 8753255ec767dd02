package core

import (
	"strings"
	"time"
)

const (
	// CategoryGeneral is the default transaction category.
	CategoryGeneral = "General"
	// CategoryBills is the category assigned to EMI-generated transactions.
	CategoryBills = "Bills"
)

var monthNames = [...]string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}

type (
	// Period identifies a calendar month. It is threaded explicitly through
	// every call so tests can supply arbitrary months instead of relying on
	// an ambient "current month".
	Period struct {
		Month int `json:"month"` // 1-12
		Year  int `json:"year"`
	}

	// Transaction is a single ledger entry. TotalAmount is what was
	// physically paid; MyAmount is the portion counted against the owner's
	// budget, negative when the row is a reimbursement credit.
	Transaction struct {
		ID          string  `json:"id"`
		UserID      string  `json:"user_id"`
		Title       string  `json:"title"`
		TotalAmount float64 `json:"total_amount"`
		MyAmount    float64 `json:"my_amount"`
		Category    string  `json:"category"`
		Note        string  `json:"note,omitempty"`
		Date        string  `json:"date"` // YYYY-MM-DD
		Month       int     `json:"month"`
		Year        int     `json:"year"`
		EmiID       string  `json:"emi_id,omitempty"` // set only on EMI-generated rows

		// Attached by ledger reads; never persisted on this row.
		Debts []Debt `json:"debts,omitempty"`
		Tags  []Tag  `json:"tags,omitempty"`
	}

	// Debt is a friend's share of a split transaction.
	Debt struct {
		ID            string    `json:"id"`
		UserID        string    `json:"user_id"`
		TransactionID string    `json:"transaction_id"`
		FriendID      string    `json:"friend_id"`
		Amount        float64   `json:"amount"`
		IsSettled     bool      `json:"is_settled"`
		SettledAt     time.Time `json:"settled_at"` // zero until settled

		// Read-only join context attached by ledger queries.
		FriendName       string `json:"friend_name,omitempty"`
		TransactionTitle string `json:"transaction_title,omitempty"`
		TransactionDate  string `json:"transaction_date,omitempty"`
		Tags             []Tag  `json:"tags,omitempty"`
	}

	Friend struct {
		ID     string `json:"id"`
		UserID string `json:"user_id"`
		Name   string `json:"name"`
		Email  string `json:"email,omitempty"`
	}

	// Tag is a display label attached to transactions via a join table.
	Tag struct {
		ID     string `json:"id"`
		UserID string `json:"user_id"`
		Name   string `json:"name"`
		Color  string `json:"color"`
	}

	// Budget is the base monthly budget; one row per (user, month, year).
	Budget struct {
		ID     string  `json:"id"`
		UserID string  `json:"user_id"`
		Month  int     `json:"month"`
		Year   int     `json:"year"`
		Amount float64 `json:"amount"`
	}

	// Winning is an ad hoc top-up to a month's effective budget.
	Winning struct {
		ID     string  `json:"id"`
		UserID string  `json:"user_id"`
		Title  string  `json:"title"`
		Amount float64 `json:"amount"`
		Month  int     `json:"month"`
		Year   int     `json:"year"`
	}

	// Emi is a fixed-term monthly installment obligation.
	Emi struct {
		ID          string  `json:"id"`
		UserID      string  `json:"user_id"`
		Title       string  `json:"title"`
		Amount      float64 `json:"amount"` // monthly installment
		TotalMonths int     `json:"total_months"`
		StartMonth  int     `json:"start_month"`
		StartYear   int     `json:"start_year"`
		IsActive    bool    `json:"is_active"`

		// Attached by ledger reads.
		Payments []EmiPayment `json:"payments,omitempty"`
	}

	// EmiPayment marks one installment month as paid. Unique per
	// (emi_id, month, year); each payment has exactly one linked Transaction.
	EmiPayment struct {
		ID     string  `json:"id"`
		UserID string  `json:"user_id"`
		EmiID  string  `json:"emi_id"`
		Month  int     `json:"month"`
		Year   int     `json:"year"`
		Amount float64 `json:"amount"`
	}
)

// PeriodOf returns the period containing t.
func PeriodOf(t time.Time) Period {
	return Period{Month: int(t.Month()), Year: t.Year()}
}

func (p Period) Validate() error {
	if p.Month < 1 || p.Month > 12 {
		return ErrInvalidMonth
	}
	if p.Year < 1970 || p.Year > 9999 {
		return ErrInvalidYear
	}
	return nil
}

// Key returns the sortable "YYYY-MM" form used as an aggregation key.
func (p Period) Key() string {
	return itoa4(p.Year) + "-" + itoa2(p.Month)
}

// Label returns the human form, e.g. "Sep 2025".
func (p Period) Label() string {
	if p.Month < 1 || p.Month > 12 {
		return p.Key()
	}
	return monthNames[p.Month-1] + " " + itoa4(p.Year)
}

func itoa2(n int) string {
	return string([]byte{'0' + byte(n/10%10), '0' + byte(n%10)})
}

func itoa4(n int) string {
	return string([]byte{'0' + byte(n/1000%10), '0' + byte(n/100%10), '0' + byte(n/10%10), '0' + byte(n%10)})
}

func (t Transaction) Validate() error {
	if strings.TrimSpace(t.Title) == "" {
		return ErrEmptyTitle
	}
	if len(t.Title) > 200 {
		return Invalidf("title too long (max 200 characters)")
	}
	if t.TotalAmount <= 0 {
		return ErrInvalidAmount
	}
	// MyAmount above TotalAmount makes no sense unless the row is a credit.
	if t.MyAmount > t.TotalAmount+AmountEpsilon {
		return Invalidf("my amount %.2f exceeds total %.2f", t.MyAmount, t.TotalAmount)
	}
	if err := (Period{Month: t.Month, Year: t.Year}).Validate(); err != nil {
		return err
	}
	if t.Date != "" {
		if _, err := time.Parse("2006-01-02", t.Date); err != nil {
			return Invalidf("invalid date %q", t.Date)
		}
	}
	return nil
}

// Period returns the month the transaction is attributed to.
func (t Transaction) Period() Period {
	return Period{Month: t.Month, Year: t.Year}
}

func (d Debt) Validate() error {
	if d.TransactionID == "" {
		return Invalidf("debt missing transaction id")
	}
	if d.FriendID == "" {
		return Invalidf("debt missing friend id")
	}
	if d.Amount <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (f Friend) Validate() error {
	if strings.TrimSpace(f.Name) == "" {
		return ErrEmptyName
	}
	return nil
}

func (t Tag) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return ErrEmptyName
	}
	return nil
}

func (b Budget) Validate() error {
	if b.Amount < 0 {
		return ErrInvalidAmount
	}
	return (Period{Month: b.Month, Year: b.Year}).Validate()
}

func (w Winning) Validate() error {
	if strings.TrimSpace(w.Title) == "" {
		return ErrEmptyTitle
	}
	if w.Amount <= 0 {
		return ErrInvalidAmount
	}
	return (Period{Month: w.Month, Year: w.Year}).Validate()
}

func (e Emi) Validate() error {
	if strings.TrimSpace(e.Title) == "" {
		return ErrEmptyTitle
	}
	if e.Amount <= 0 {
		return ErrInvalidAmount
	}
	if e.TotalMonths < 1 {
		return Invalidf("total months must be at least 1")
	}
	return (Period{Month: e.StartMonth, Year: e.StartYear}).Validate()
}

// Progress is the number of installments paid so far.
func (e Emi) Progress() int {
	return len(e.Payments)
}

// Completed reports whether every installment has been paid.
func (e Emi) Completed() bool {
	return e.Progress() >= e.TotalMonths
}

// RemainingMonths is the number of unpaid installments.
func (e Emi) RemainingMonths() int {
	if r := e.TotalMonths - e.Progress(); r > 0 {
		return r
	}
	return 0
}

// TotalLeft is the amount still owed across unpaid installments.
func (e Emi) TotalLeft() float64 {
	return e.Amount * float64(e.RemainingMonths())
}

// PaymentFor returns the payment covering p, if any.
func (e Emi) PaymentFor(p Period) (EmiPayment, bool) {
	for _, pay := range e.Payments {
		if pay.Month == p.Month && pay.Year == p.Year {
			return pay, true
		}
	}
	return EmiPayment{}, false
}

func (ep EmiPayment) Validate() error {
	if ep.EmiID == "" {
		return Invalidf("payment missing emi id")
	}
	if ep.Amount <= 0 {
		return ErrInvalidAmount
	}
	return (Period{Month: ep.Month, Year: ep.Year}).Validate()
}
