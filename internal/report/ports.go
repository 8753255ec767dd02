// Package report defines the audit trail appended for every settlement and
// installment event, plus the ports its writers implement.
package report

import (
	"context"
	"time"

	"spendly/internal/core"
)

// Entry is one audit line. Detail is human text; the rest is structured.
type Entry struct {
	When   time.Time
	Kind   string
	UserID string
	Detail string
	Amount float64
	Period core.Period
}

func (e Entry) Validate() error {
	if e.Kind == "" {
		return core.Invalidf("entry missing kind")
	}
	if e.UserID == "" {
		return core.Invalidf("entry missing user id")
	}
	return nil
}

// Writer appends entries to a report destination.
type Writer interface {
	Append(ctx context.Context, e Entry) (rowRef string, err error)
}
