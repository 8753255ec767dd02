package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"spendly/internal/core"
	"spendly/internal/datastore/memory"
	"spendly/internal/events"
	"spendly/internal/ledger"
)

type capturedEvents struct {
	published []*events.Event
}

func (c *capturedEvents) Publish(_ context.Context, e *events.Event) error {
	c.published = append(c.published, e)
	return nil
}

func newSettlementFixture(t *testing.T) (*SettlementService, *ledger.Store, *memory.Store, *capturedEvents) {
	t.Helper()
	db := memory.New()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := ledger.NewStore(db, logger)
	sink := &capturedEvents{}
	svc := NewSettlementService(store, sink, logger)
	svc.now = func() time.Time {
		return time.Date(2025, 9, 15, 12, 0, 0, 0, time.UTC)
	}
	return svc, store, db, sink
}

func addFriendAndDebt(t *testing.T, store *ledger.Store, amount float64) (core.Friend, core.Debt) {
	t.Helper()
	ctx := context.Background()
	friend, err := store.AddFriend(ctx, core.Friend{UserID: "u1", Name: "Ravi"})
	if err != nil {
		t.Fatalf("add friend: %v", err)
	}
	txn, err := store.AddTransaction(ctx, core.Transaction{
		UserID: "u1", Title: "Dinner", TotalAmount: amount * 2, MyAmount: amount,
		Date: "2025-09-01", Month: 9, Year: 2025,
	})
	if err != nil {
		t.Fatalf("add transaction: %v", err)
	}
	debts, err := store.AddDebts(ctx, []core.Debt{
		{UserID: "u1", TransactionID: txn.ID, FriendID: friend.ID, Amount: amount},
	})
	if err != nil {
		t.Fatalf("add debts: %v", err)
	}
	return friend, debts[0]
}

func TestCreateSplit(t *testing.T) {
	svc, store, _, _ := newSettlementFixture(t)
	ctx := context.Background()

	friend, err := store.AddFriend(ctx, core.Friend{UserID: "u1", Name: "Meera"})
	if err != nil {
		t.Fatalf("add friend: %v", err)
	}

	created, err := svc.CreateSplit(ctx, SplitInput{
		Transaction: core.Transaction{
			UserID: "u1", Title: "Dinner", TotalAmount: 1000, MyAmount: 600,
			Date: "2025-09-10", Month: 9, Year: 2025,
		},
		Shares: []DebtShare{{FriendID: friend.ID, Amount: 400}},
	})
	if err != nil {
		t.Fatalf("create split: %v", err)
	}
	if len(created.Debts) != 1 || created.Debts[0].Amount != 400 {
		t.Fatalf("expected one 400 debt, got %+v", created.Debts)
	}

	pending, err := store.PendingDebts(ctx, "u1")
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 1 {
		t.Errorf("expected 1 pending debt, got %d", len(pending))
	}
}

func TestCreateSplitRejectsMismatchedShares(t *testing.T) {
	svc, _, _, _ := newSettlementFixture(t)

	_, err := svc.CreateSplit(context.Background(), SplitInput{
		Transaction: core.Transaction{
			UserID: "u1", Title: "Dinner", TotalAmount: 1000, MyAmount: 600,
			Date: "2025-09-10", Month: 9, Year: 2025,
		},
		Shares: []DebtShare{{FriendID: "f1", Amount: 300}},
	})
	var ve *core.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCreateSplitCompensatesTransactionOnDebtFailure(t *testing.T) {
	svc, store, db, _ := newSettlementFixture(t)
	ctx := context.Background()

	friend, _ := store.AddFriend(ctx, core.Friend{UserID: "u1", Name: "Meera"})
	db.FailNext("insert", "debts", errors.New("debts table down"))

	_, err := svc.CreateSplit(ctx, SplitInput{
		Transaction: core.Transaction{
			UserID: "u1", Title: "Dinner", TotalAmount: 1000, MyAmount: 600,
			Date: "2025-09-10", Month: 9, Year: 2025,
		},
		Shares: []DebtShare{{FriendID: friend.ID, Amount: 400}},
	})
	if err == nil {
		t.Fatal("expected error from debt insert")
	}

	txns, err := store.MonthTransactions(ctx, "u1", core.Period{Month: 9, Year: 2025})
	if err != nil {
		t.Fatalf("month transactions: %v", err)
	}
	if len(txns) != 0 {
		t.Errorf("expected transaction rolled back, found %d", len(txns))
	}
}

func TestSettleOneCreatesCredit(t *testing.T) {
	svc, store, _, sink := newSettlementFixture(t)
	ctx := context.Background()

	_, debt := addFriendAndDebt(t, store, 200)

	res, err := svc.SettleOne(ctx, "u1", debt.ID)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if len(res.Settled) != 1 {
		t.Fatalf("expected 1 settled debt, got %d", len(res.Settled))
	}
	if res.Credit == nil {
		t.Fatal("expected credit transaction")
	}
	if res.Credit.Title != "Settled: Ravi - Dinner" {
		t.Errorf("credit title = %q", res.Credit.Title)
	}
	if res.Credit.MyAmount != -200 || res.Credit.TotalAmount != 200 {
		t.Errorf("credit amounts = %v / %v", res.Credit.MyAmount, res.Credit.TotalAmount)
	}
	if len(sink.published) != 1 || sink.published[0].Kind != events.KeyDebtSettled {
		t.Errorf("expected one debt.settled event, got %+v", sink.published)
	}
}

func TestSettleOneTwiceIsNoOp(t *testing.T) {
	svc, store, _, _ := newSettlementFixture(t)
	ctx := context.Background()

	_, debt := addFriendAndDebt(t, store, 200)

	if _, err := svc.SettleOne(ctx, "u1", debt.ID); err != nil {
		t.Fatalf("first settle: %v", err)
	}
	res, err := svc.SettleOne(ctx, "u1", debt.ID)
	if err != nil {
		t.Fatalf("second settle: %v", err)
	}
	if len(res.Settled) != 0 || res.Credit != nil {
		t.Fatalf("expected no-op, got %+v", res)
	}

	txns, _ := store.MonthTransactions(ctx, "u1", core.Period{Month: 9, Year: 2025})
	credits := 0
	for _, txn := range txns {
		if txn.MyAmount < 0 {
			credits++
		}
	}
	if credits != 1 {
		t.Errorf("expected exactly one credit, got %d", credits)
	}
}

func TestSettleOneSurfacesCreditFailure(t *testing.T) {
	svc, store, db, _ := newSettlementFixture(t)
	ctx := context.Background()

	_, debt := addFriendAndDebt(t, store, 200)
	db.FailNext("insert", "transactions", errors.New("transactions down"))

	res, err := svc.SettleOne(ctx, "u1", debt.ID)
	if err == nil {
		t.Fatal("expected credit failure to surface")
	}
	// The flag is not rolled back; the debt stays settled.
	if len(res.Settled) != 1 {
		t.Fatalf("expected the settled debt in the result, got %+v", res)
	}
	got, _ := store.Debt(ctx, "u1", debt.ID)
	if !got.IsSettled {
		t.Error("expected debt to remain settled")
	}
}

func TestSettleAllForFriendCombinesDebts(t *testing.T) {
	svc, store, _, sink := newSettlementFixture(t)
	ctx := context.Background()

	friend, err := store.AddFriend(ctx, core.Friend{UserID: "u1", Name: "Ravi"})
	if err != nil {
		t.Fatalf("add friend: %v", err)
	}
	for _, amt := range []float64{120, 380} {
		txn, _ := store.AddTransaction(ctx, core.Transaction{
			UserID: "u1", Title: "Split", TotalAmount: amt * 2, MyAmount: amt,
			Date: "2025-09-01", Month: 9, Year: 2025,
		})
		if _, err := store.AddDebts(ctx, []core.Debt{
			{UserID: "u1", TransactionID: txn.ID, FriendID: friend.ID, Amount: amt},
		}); err != nil {
			t.Fatalf("add debts: %v", err)
		}
	}

	res, err := svc.SettleAllForFriend(ctx, "u1", friend.ID)
	if err != nil {
		t.Fatalf("settle all: %v", err)
	}
	if len(res.Settled) != 2 {
		t.Fatalf("expected 2 settled debts, got %d", len(res.Settled))
	}
	if res.Credit == nil || res.Credit.TotalAmount != 500 || res.Credit.MyAmount != -500 {
		t.Fatalf("expected combined 500 credit, got %+v", res.Credit)
	}
	if res.Credit.Title != "Settled: Ravi (2 debts)" {
		t.Errorf("credit title = %q", res.Credit.Title)
	}
	for _, d := range res.Settled {
		if !d.SettledAt.Equal(res.Settled[0].SettledAt) {
			t.Error("expected all debts to share one settled_at")
		}
	}
	if len(sink.published) != 1 || sink.published[0].Amount != 500 {
		t.Errorf("expected one combined event, got %+v", sink.published)
	}

	pending, _ := store.PendingDebts(ctx, "u1")
	if len(pending) != 0 {
		t.Errorf("expected no pending debts, got %d", len(pending))
	}
}

func TestSettleAllForFriendNothingPending(t *testing.T) {
	svc, store, _, sink := newSettlementFixture(t)
	ctx := context.Background()

	friend, err := store.AddFriend(ctx, core.Friend{UserID: "u1", Name: "Ravi"})
	if err != nil {
		t.Fatalf("add friend: %v", err)
	}

	res, err := svc.SettleAllForFriend(ctx, "u1", friend.ID)
	if err != nil {
		t.Fatalf("settle all: %v", err)
	}
	if len(res.Settled) != 0 || res.Credit != nil {
		t.Fatalf("expected no-op, got %+v", res)
	}
	if len(sink.published) != 0 {
		t.Errorf("expected no events, got %+v", sink.published)
	}
}

func TestSettleOneUnknownDebt(t *testing.T) {
	svc, _, _, _ := newSettlementFixture(t)

	_, err := svc.SettleOne(context.Background(), "u1", "missing")
	var nf *core.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected not found, got %v", err)
	}
}
