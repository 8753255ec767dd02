// Package worker turns ledger events into report rows. Events carry only
// ids; the worker re-reads the ledger so the appended line reflects
// current state even when deliveries arrive late or out of order.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"spendly/internal/core"
	"spendly/internal/events"
	"spendly/internal/ledger"
	"spendly/internal/report"
)

type ReportWorker struct {
	store  *ledger.Store
	writer report.Writer
}

func NewReportWorker(store *ledger.Store, writer report.Writer) *ReportWorker {
	return &ReportWorker{store: store, writer: writer}
}

// HandleEvent appends one report line for the event. Errors are returned
// so the consumer can requeue the delivery.
func (w *ReportWorker) HandleEvent(ctx context.Context, e *events.Event) error {
	entry, err := w.buildEntry(ctx, e)
	if err != nil {
		return fmt.Errorf("build report entry: %w", err)
	}

	ref, err := w.writer.Append(ctx, entry)
	if err != nil {
		return fmt.Errorf("append report entry: %w", err)
	}

	slog.InfoContext(ctx, "Appended report entry",
		"kind", e.Kind,
		"user_id", e.UserID,
		"row_ref", ref)
	return nil
}

func (w *ReportWorker) buildEntry(ctx context.Context, e *events.Event) (report.Entry, error) {
	entry := report.Entry{
		When:   e.Timestamp,
		Kind:   e.Kind,
		UserID: e.UserID,
		Amount: e.Amount,
		Period: core.Period{Month: e.Month, Year: e.Year},
	}
	if entry.When.IsZero() {
		entry.When = time.Now()
	}

	switch e.Kind {
	case events.KeyDebtSettled:
		friend, err := w.store.Friend(ctx, e.UserID, e.FriendID)
		if err != nil {
			// The friend may have been deleted after settling; report
			// the id instead of failing the delivery.
			slog.WarnContext(ctx, "Friend lookup failed for report", "friend_id", e.FriendID, "error", err)
			entry.Detail = fmt.Sprintf("settled %d debt(s) of %s", len(e.DebtIDs), e.FriendID)
			return entry, nil
		}
		entry.Detail = fmt.Sprintf("settled %d debt(s) of %s", len(e.DebtIDs), friend.Name)
		entry.Period = core.PeriodOf(entry.When)
		return entry, nil

	case events.KeyEmiPaid, events.KeyEmiUnpaid:
		verb := "paid"
		if e.Kind == events.KeyEmiUnpaid {
			verb = "reverted"
		}
		emi, err := w.store.Emi(ctx, e.UserID, e.EmiID)
		if err != nil {
			slog.WarnContext(ctx, "Plan lookup failed for report", "emi_id", e.EmiID, "error", err)
			entry.Detail = fmt.Sprintf("%s installment for %s", verb, e.EmiID)
			return entry, nil
		}
		entry.Detail = fmt.Sprintf("%s installment %d/%d of %s", verb, emi.Progress(), emi.TotalMonths, emi.Title)
		return entry, nil

	default:
		entry.Detail = "unknown event"
		return entry, nil
	}
}
