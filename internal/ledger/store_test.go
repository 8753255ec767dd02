package ledger

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"spendly/internal/core"
	"spendly/internal/datastore/memory"
)

func newTestStore() (*Store, *memory.Store) {
	db := memory.New()
	return NewStore(db, slog.New(slog.NewTextHandler(io.Discard, nil))), db
}

func TestSetBudgetReplacesExisting(t *testing.T) {
	s, _ := newTestStore()
	ctx := context.Background()

	first, err := s.SetBudget(ctx, core.Budget{UserID: "u1", Month: 9, Year: 2025, Amount: 10000})
	if err != nil {
		t.Fatalf("set budget: %v", err)
	}
	second, err := s.SetBudget(ctx, core.Budget{UserID: "u1", Month: 9, Year: 2025, Amount: 12000})
	if err != nil {
		t.Fatalf("replace budget: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("expected upsert to keep id %s, got %s", first.ID, second.ID)
	}

	got, err := s.Budget(ctx, "u1", core.Period{Month: 9, Year: 2025})
	if err != nil {
		t.Fatalf("budget: %v", err)
	}
	if got == nil || got.Amount != 12000 {
		t.Fatalf("expected amount 12000, got %+v", got)
	}
}

func TestBudgetMissingReturnsNil(t *testing.T) {
	s, _ := newTestStore()

	got, err := s.Budget(context.Background(), "u1", core.Period{Month: 1, Year: 2025})
	if err != nil {
		t.Fatalf("budget: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil budget, got %+v", got)
	}
}

func TestMonthTransactionsAttachesDebtsAndTags(t *testing.T) {
	s, _ := newTestStore()
	ctx := context.Background()

	friend, err := s.AddFriend(ctx, core.Friend{UserID: "u1", Name: "Ravi"})
	if err != nil {
		t.Fatalf("add friend: %v", err)
	}
	tag, err := s.CreateTag(ctx, core.Tag{UserID: "u1", Name: "food"})
	if err != nil {
		t.Fatalf("create tag: %v", err)
	}
	txn, err := s.AddTransaction(ctx, core.Transaction{
		UserID: "u1", Title: "Dinner", TotalAmount: 1000, MyAmount: 600,
		Date: "2025-09-10", Month: 9, Year: 2025,
	})
	if err != nil {
		t.Fatalf("add transaction: %v", err)
	}
	if _, err := s.AddDebts(ctx, []core.Debt{
		{UserID: "u1", TransactionID: txn.ID, FriendID: friend.ID, Amount: 400},
	}); err != nil {
		t.Fatalf("add debts: %v", err)
	}
	if err := s.TagTransaction(ctx, "u1", txn.ID, []string{tag.ID}); err != nil {
		t.Fatalf("tag transaction: %v", err)
	}

	txns, err := s.MonthTransactions(ctx, "u1", core.Period{Month: 9, Year: 2025})
	if err != nil {
		t.Fatalf("month transactions: %v", err)
	}
	if len(txns) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(txns))
	}
	got := txns[0]
	if len(got.Debts) != 1 || got.Debts[0].FriendName != "Ravi" {
		t.Errorf("expected debt with friend name Ravi, got %+v", got.Debts)
	}
	if len(got.Tags) != 1 || got.Tags[0].Name != "food" {
		t.Errorf("expected tag food, got %+v", got.Tags)
	}
}

func TestTransactionsDegradeWhenTagsFail(t *testing.T) {
	s, db := newTestStore()
	ctx := context.Background()

	txn, err := s.AddTransaction(ctx, core.Transaction{
		UserID: "u1", Title: "Groceries", TotalAmount: 500, MyAmount: 500,
		Date: "2025-09-02", Month: 9, Year: 2025,
	})
	if err != nil {
		t.Fatalf("add transaction: %v", err)
	}

	db.FailNext("select", "transaction_tags", errors.New("join table down"))

	txns, err := s.MonthTransactions(ctx, "u1", core.Period{Month: 9, Year: 2025})
	if err != nil {
		t.Fatalf("expected tag failure to degrade, got %v", err)
	}
	if len(txns) != 1 || txns[0].ID != txn.ID {
		t.Fatalf("expected transaction back untagged, got %+v", txns)
	}
	if txns[0].Tags != nil {
		t.Errorf("expected no tags, got %+v", txns[0].Tags)
	}
}

func TestPendingDebtsCarryTransactionContext(t *testing.T) {
	s, _ := newTestStore()
	ctx := context.Background()

	friend, _ := s.AddFriend(ctx, core.Friend{UserID: "u1", Name: "Meera"})
	txn, _ := s.AddTransaction(ctx, core.Transaction{
		UserID: "u1", Title: "Cab", TotalAmount: 300, MyAmount: 150,
		Date: "2025-09-05", Month: 9, Year: 2025,
	})
	if _, err := s.AddDebts(ctx, []core.Debt{
		{UserID: "u1", TransactionID: txn.ID, FriendID: friend.ID, Amount: 150},
	}); err != nil {
		t.Fatalf("add debts: %v", err)
	}

	pending, err := s.PendingDebts(ctx, "u1")
	if err != nil {
		t.Fatalf("pending debts: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending debt, got %d", len(pending))
	}
	d := pending[0]
	if d.FriendName != "Meera" || d.TransactionTitle != "Cab" || d.TransactionDate != "2025-09-05" {
		t.Errorf("missing join context: %+v", d)
	}
}

func TestMarkDebtSettledIsIdempotent(t *testing.T) {
	s, _ := newTestStore()
	ctx := context.Background()
	at := time.Date(2025, 9, 15, 10, 0, 0, 0, time.UTC)

	friend, _ := s.AddFriend(ctx, core.Friend{UserID: "u1", Name: "Ravi"})
	txn, _ := s.AddTransaction(ctx, core.Transaction{
		UserID: "u1", Title: "Lunch", TotalAmount: 400, MyAmount: 200,
		Date: "2025-09-01", Month: 9, Year: 2025,
	})
	debts, _ := s.AddDebts(ctx, []core.Debt{
		{UserID: "u1", TransactionID: txn.ID, FriendID: friend.ID, Amount: 200},
	})

	settled, err := s.MarkDebtSettled(ctx, "u1", debts[0].ID, at)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if len(settled) != 1 || !settled[0].IsSettled || !settled[0].SettledAt.Equal(at) {
		t.Fatalf("unexpected settle result: %+v", settled)
	}

	again, err := s.MarkDebtSettled(ctx, "u1", debts[0].ID, at.Add(time.Hour))
	if err != nil {
		t.Fatalf("second settle: %v", err)
	}
	if len(again) != 0 {
		t.Fatalf("expected no-op on already settled debt, got %+v", again)
	}
}

func TestMarkFriendDebtsSettledSharesTimestamp(t *testing.T) {
	s, _ := newTestStore()
	ctx := context.Background()
	at := time.Date(2025, 9, 20, 8, 30, 0, 0, time.UTC)

	friend, _ := s.AddFriend(ctx, core.Friend{UserID: "u1", Name: "Ravi"})
	for _, amt := range []float64{120, 380} {
		txn, _ := s.AddTransaction(ctx, core.Transaction{
			UserID: "u1", Title: "Split", TotalAmount: amt * 2, MyAmount: amt,
			Date: "2025-09-01", Month: 9, Year: 2025,
		})
		if _, err := s.AddDebts(ctx, []core.Debt{
			{UserID: "u1", TransactionID: txn.ID, FriendID: friend.ID, Amount: amt},
		}); err != nil {
			t.Fatalf("add debts: %v", err)
		}
	}

	settled, err := s.MarkFriendDebtsSettled(ctx, "u1", friend.ID, at)
	if err != nil {
		t.Fatalf("settle all: %v", err)
	}
	if len(settled) != 2 {
		t.Fatalf("expected 2 settled debts, got %d", len(settled))
	}
	for _, d := range settled {
		if !d.SettledAt.Equal(at) {
			t.Errorf("debt %s settled at %v, want %v", d.ID, d.SettledAt, at)
		}
	}

	pending, err := s.PendingDebts(ctx, "u1")
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("expected no pending debts, got %d", len(pending))
	}
}

func TestDeleteTransactionRemovesDebtsAndLinks(t *testing.T) {
	s, _ := newTestStore()
	ctx := context.Background()

	friend, _ := s.AddFriend(ctx, core.Friend{UserID: "u1", Name: "Ravi"})
	tag, _ := s.CreateTag(ctx, core.Tag{UserID: "u1", Name: "travel"})
	txn, _ := s.AddTransaction(ctx, core.Transaction{
		UserID: "u1", Title: "Train", TotalAmount: 800, MyAmount: 400,
		Date: "2025-09-12", Month: 9, Year: 2025,
	})
	s.AddDebts(ctx, []core.Debt{{UserID: "u1", TransactionID: txn.ID, FriendID: friend.ID, Amount: 400}})
	s.TagTransaction(ctx, "u1", txn.ID, []string{tag.ID})

	if err := s.DeleteTransaction(ctx, "u1", txn.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	pending, _ := s.PendingDebts(ctx, "u1")
	if len(pending) != 0 {
		t.Errorf("expected debts gone with the transaction, got %d", len(pending))
	}

	var nf *core.NotFoundError
	if err := s.DeleteTransaction(ctx, "u1", txn.ID); !errors.As(err, &nf) {
		t.Errorf("expected not found on second delete, got %v", err)
	}
}

func TestEmisAttachPayments(t *testing.T) {
	s, _ := newTestStore()
	ctx := context.Background()

	emi, err := s.AddEmi(ctx, core.Emi{
		UserID: "u1", Title: "Laptop", Amount: 2500, TotalMonths: 6,
		StartMonth: 7, StartYear: 2025,
	})
	if err != nil {
		t.Fatalf("add emi: %v", err)
	}
	for m := 7; m <= 9; m++ {
		if _, err := s.UpsertEmiPayment(ctx, core.EmiPayment{
			UserID: "u1", EmiID: emi.ID, Month: m, Year: 2025, Amount: 2500,
		}); err != nil {
			t.Fatalf("pay month %d: %v", m, err)
		}
	}

	emis, err := s.Emis(ctx, "u1", true)
	if err != nil {
		t.Fatalf("emis: %v", err)
	}
	if len(emis) != 1 {
		t.Fatalf("expected 1 emi, got %d", len(emis))
	}
	if got := emis[0].Progress(); got != 3 {
		t.Errorf("progress = %d, want 3", got)
	}
	if got := emis[0].TotalLeft(); got != 7500 {
		t.Errorf("total left = %v, want 7500", got)
	}
}

func TestUserScopingIsolatesRows(t *testing.T) {
	s, _ := newTestStore()
	ctx := context.Background()

	s.AddTransaction(ctx, core.Transaction{
		UserID: "u1", Title: "Mine", TotalAmount: 100, MyAmount: 100,
		Date: "2025-09-01", Month: 9, Year: 2025,
	})
	s.AddTransaction(ctx, core.Transaction{
		UserID: "u2", Title: "Theirs", TotalAmount: 200, MyAmount: 200,
		Date: "2025-09-01", Month: 9, Year: 2025,
	})

	txns, err := s.MonthTransactions(ctx, "u1", core.Period{Month: 9, Year: 2025})
	if err != nil {
		t.Fatalf("month transactions: %v", err)
	}
	if len(txns) != 1 || txns[0].Title != "Mine" {
		t.Fatalf("expected only u1 rows, got %+v", txns)
	}
}

func TestDeleteFriendKeepsDebts(t *testing.T) {
	s, _ := newTestStore()
	ctx := context.Background()

	friend, err := s.AddFriend(ctx, core.Friend{UserID: "u1", Name: "Sana"})
	if err != nil {
		t.Fatalf("add friend: %v", err)
	}
	txn, err := s.AddTransaction(ctx, core.Transaction{
		UserID: "u1", Title: "Taxi", TotalAmount: 300, MyAmount: 150,
		Date: "2025-09-11", Month: 9, Year: 2025,
	})
	if err != nil {
		t.Fatalf("add transaction: %v", err)
	}
	debts, err := s.AddDebts(ctx, []core.Debt{
		{UserID: "u1", TransactionID: txn.ID, FriendID: friend.ID, Amount: 150},
	})
	if err != nil {
		t.Fatalf("add debts: %v", err)
	}

	if err := s.DeleteFriend(ctx, "u1", friend.ID); err != nil {
		t.Fatalf("delete friend: %v", err)
	}

	got, err := s.Debt(ctx, "u1", debts[0].ID)
	if err != nil {
		t.Fatalf("debt after friend delete: %v", err)
	}
	if got.FriendID != friend.ID || got.Amount != 150 {
		t.Errorf("unexpected orphaned debt: %+v", got)
	}
	if got.FriendName != "" {
		t.Errorf("friend name should degrade to empty, got %q", got.FriendName)
	}

	pending, err := s.PendingDebts(ctx, "u1")
	if err != nil {
		t.Fatalf("pending debts: %v", err)
	}
	if len(pending) != 1 {
		t.Errorf("orphaned debt should stay pending, got %d rows", len(pending))
	}
}

func TestDebtCarriesTransactionContext(t *testing.T) {
	s, _ := newTestStore()
	ctx := context.Background()

	friend, err := s.AddFriend(ctx, core.Friend{UserID: "u1", Name: "Mira"})
	if err != nil {
		t.Fatalf("add friend: %v", err)
	}
	txn, err := s.AddTransaction(ctx, core.Transaction{
		UserID: "u1", Title: "Groceries", TotalAmount: 800, MyAmount: 500,
		Date: "2025-09-12", Month: 9, Year: 2025,
	})
	if err != nil {
		t.Fatalf("add transaction: %v", err)
	}
	debts, err := s.AddDebts(ctx, []core.Debt{
		{UserID: "u1", TransactionID: txn.ID, FriendID: friend.ID, Amount: 300},
	})
	if err != nil {
		t.Fatalf("add debts: %v", err)
	}

	got, err := s.Debt(ctx, "u1", debts[0].ID)
	if err != nil {
		t.Fatalf("debt: %v", err)
	}
	if got.FriendName != "Mira" || got.TransactionTitle != "Groceries" || got.TransactionDate != "2025-09-12" {
		t.Errorf("missing context on debt: %+v", got)
	}
}

func TestDeleteEmiKeepsTransactions(t *testing.T) {
	s, _ := newTestStore()
	ctx := context.Background()

	emi, err := s.AddEmi(ctx, core.Emi{
		UserID: "u1", Title: "Phone", Amount: 1200, TotalMonths: 6,
		StartMonth: 7, StartYear: 2025,
	})
	if err != nil {
		t.Fatalf("add emi: %v", err)
	}
	p := core.Period{Month: 9, Year: 2025}
	if _, err := s.UpsertEmiPayment(ctx, core.EmiPayment{
		UserID: "u1", EmiID: emi.ID, Month: p.Month, Year: p.Year, Amount: 1200,
	}); err != nil {
		t.Fatalf("upsert payment: %v", err)
	}
	if _, err := s.AddTransaction(ctx, core.Transaction{
		UserID: "u1", Title: "Phone (installment)", TotalAmount: 1200, MyAmount: 1200,
		Category: core.CategoryBills, EmiID: emi.ID,
		Date: "2025-09-05", Month: 9, Year: 2025,
	}); err != nil {
		t.Fatalf("add transaction: %v", err)
	}

	if err := s.DeleteEmi(ctx, "u1", emi.ID); err != nil {
		t.Fatalf("delete emi: %v", err)
	}

	if _, err := s.Emi(ctx, "u1", emi.ID); !errors.As(err, new(*core.NotFoundError)) {
		t.Errorf("expected not found for deleted emi, got %v", err)
	}
	txns, err := s.MonthTransactions(ctx, "u1", p)
	if err != nil {
		t.Fatalf("month transactions: %v", err)
	}
	if len(txns) != 1 || txns[0].EmiID != emi.ID {
		t.Errorf("installment transaction should survive plan deletion, got %+v", txns)
	}
}
