package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"spendly/internal/core"
	dsmemory "spendly/internal/datastore/memory"
	"spendly/internal/events"
	"spendly/internal/ledger"
	"spendly/internal/report"
	rmemory "spendly/internal/report/memory"
)

func newFixture(t *testing.T) (*ReportWorker, *ledger.Store, *rmemory.Store) {
	t.Helper()
	store := ledger.NewStore(dsmemory.New(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	sink := rmemory.New()
	return NewReportWorker(store, sink), store, sink
}

func TestHandleDebtSettledEvent(t *testing.T) {
	w, store, sink := newFixture(t)
	ctx := context.Background()

	friend, err := store.AddFriend(ctx, core.Friend{UserID: "u1", Name: "Ravi"})
	if err != nil {
		t.Fatalf("add friend: %v", err)
	}

	err = w.HandleEvent(ctx, &events.Event{
		Kind:      events.KeyDebtSettled,
		UserID:    "u1",
		DebtIDs:   []string{"d1", "d2"},
		FriendID:  friend.ID,
		Amount:    500,
		Timestamp: time.Date(2025, 9, 15, 12, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}

	entries := sink.Entries()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	e := entries[0]
	if e.Detail != "settled 2 debt(s) of Ravi" {
		t.Errorf("detail = %q", e.Detail)
	}
	if e.Amount != 500 || e.Period.Key() != "2025-09" {
		t.Errorf("entry = %+v", e)
	}
}

func TestHandleEmiPaidEvent(t *testing.T) {
	w, store, sink := newFixture(t)
	ctx := context.Background()

	emi, err := store.AddEmi(ctx, core.Emi{
		UserID: "u1", Title: "Laptop", Amount: 2500, TotalMonths: 6,
		StartMonth: 7, StartYear: 2025,
	})
	if err != nil {
		t.Fatalf("add emi: %v", err)
	}
	if _, err := store.UpsertEmiPayment(ctx, core.EmiPayment{
		UserID: "u1", EmiID: emi.ID, Month: 9, Year: 2025, Amount: 2500,
	}); err != nil {
		t.Fatalf("pay: %v", err)
	}

	err = w.HandleEvent(ctx, &events.Event{
		Kind:   events.KeyEmiPaid,
		UserID: "u1",
		EmiID:  emi.ID,
		Month:  9,
		Year:   2025,
		Amount: 2500,
	})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}

	entries := sink.Entries()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Detail != "paid installment 1/6 of Laptop" {
		t.Errorf("detail = %q", entries[0].Detail)
	}
}

func TestHandleEventWithDeletedFriendStillReports(t *testing.T) {
	w, _, sink := newFixture(t)

	err := w.HandleEvent(context.Background(), &events.Event{
		Kind:     events.KeyDebtSettled,
		UserID:   "u1",
		DebtIDs:  []string{"d1"},
		FriendID: "gone",
		Amount:   120,
	})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(sink.Entries()) != 1 {
		t.Fatal("expected an entry despite the missing friend")
	}
}

type failingWriter struct{}

func (failingWriter) Append(context.Context, report.Entry) (string, error) {
	return "", errors.New("sheet unavailable")
}

func TestHandleEventPropagatesWriterError(t *testing.T) {
	store := ledger.NewStore(dsmemory.New(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	w := NewReportWorker(store, failingWriter{})

	err := w.HandleEvent(context.Background(), &events.Event{
		Kind:   events.KeyEmiUnpaid,
		UserID: "u1",
		EmiID:  "missing",
	})
	if err == nil {
		t.Fatal("expected writer error to propagate for requeue")
	}
}
