// Package ledger is the typed persistence layer. It translates domain
// entities to datastore rows and back, and attaches the join context
// (debts, friend names, tags) the handlers and engines read.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"spendly/internal/core"
	"spendly/internal/datastore"
)

type Store struct {
	db     datastore.Client
	logger *slog.Logger
}

func NewStore(db datastore.Client, logger *slog.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// Budget returns the base budget for the period, or nil when none is set.
func (s *Store) Budget(ctx context.Context, userID string, p core.Period) (*core.Budget, error) {
	rows, err := s.db.Select(ctx, "budgets", datastore.Query{
		Eq: map[string]any{"user_id": userID, "month": p.Month, "year": p.Year},
	})
	if err != nil {
		return nil, fmt.Errorf("load budget: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	b := toBudget(rows[0])
	return &b, nil
}

// BudgetsSince returns every budget row from fromYear onward.
func (s *Store) BudgetsSince(ctx context.Context, userID string, fromYear int) ([]core.Budget, error) {
	rows, err := s.db.Select(ctx, "budgets", datastore.Query{
		Eq:  map[string]any{"user_id": userID},
		Gte: map[string]any{"year": fromYear},
	})
	if err != nil {
		return nil, fmt.Errorf("load budget window: %w", err)
	}
	out := make([]core.Budget, 0, len(rows))
	for _, r := range rows {
		out = append(out, toBudget(r))
	}
	return out, nil
}

// SetBudget creates or replaces the budget for (user, month, year).
func (s *Store) SetBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	if err := b.Validate(); err != nil {
		return core.Budget{}, err
	}
	row, err := s.db.Upsert(ctx, "budgets", budgetRow(b), []string{"user_id", "month", "year"})
	if err != nil {
		return core.Budget{}, fmt.Errorf("save budget: %w", err)
	}
	return toBudget(row), nil
}

func (s *Store) Winnings(ctx context.Context, userID string, p core.Period) ([]core.Winning, error) {
	rows, err := s.db.Select(ctx, "winnings", datastore.Query{
		Eq:      map[string]any{"user_id": userID, "month": p.Month, "year": p.Year},
		OrderBy: "created_at", Desc: true,
	})
	if err != nil {
		return nil, fmt.Errorf("load winnings: %w", err)
	}
	out := make([]core.Winning, 0, len(rows))
	for _, r := range rows {
		out = append(out, toWinning(r))
	}
	return out, nil
}

func (s *Store) AddWinning(ctx context.Context, w core.Winning) (core.Winning, error) {
	if err := w.Validate(); err != nil {
		return core.Winning{}, err
	}
	rows, err := s.db.Insert(ctx, "winnings", []datastore.Row{winningRow(w)})
	if err != nil {
		return core.Winning{}, fmt.Errorf("save winning: %w", err)
	}
	return toWinning(rows[0]), nil
}

func (s *Store) DeleteWinning(ctx context.Context, userID, id string) error {
	if err := s.mustExist(ctx, "winnings", "winning", userID, id); err != nil {
		return err
	}
	if err := s.db.Delete(ctx, "winnings", datastore.Eq("user_id", userID, "id", id)); err != nil {
		return fmt.Errorf("delete winning: %w", err)
	}
	return nil
}

func (s *Store) Tags(ctx context.Context, userID string) ([]core.Tag, error) {
	rows, err := s.db.Select(ctx, "tags", datastore.Query{
		Eq: map[string]any{"user_id": userID}, OrderBy: "name",
	})
	if err != nil {
		return nil, fmt.Errorf("load tags: %w", err)
	}
	out := make([]core.Tag, 0, len(rows))
	for _, r := range rows {
		out = append(out, toTag(r))
	}
	return out, nil
}

func (s *Store) CreateTag(ctx context.Context, t core.Tag) (core.Tag, error) {
	if err := t.Validate(); err != nil {
		return core.Tag{}, err
	}
	rows, err := s.db.Insert(ctx, "tags", []datastore.Row{tagRow(t)})
	if err != nil {
		return core.Tag{}, fmt.Errorf("save tag: %w", err)
	}
	return toTag(rows[0]), nil
}

// DeleteTag removes the tag and every transaction link pointing at it.
func (s *Store) DeleteTag(ctx context.Context, userID, id string) error {
	if err := s.mustExist(ctx, "tags", "tag", userID, id); err != nil {
		return err
	}
	if err := s.db.Delete(ctx, "transaction_tags", datastore.Eq("tag_id", id)); err != nil {
		return fmt.Errorf("unlink tag: %w", err)
	}
	if err := s.db.Delete(ctx, "tags", datastore.Eq("user_id", userID, "id", id)); err != nil {
		return fmt.Errorf("delete tag: %w", err)
	}
	return nil
}

func (s *Store) Friends(ctx context.Context, userID string) ([]core.Friend, error) {
	rows, err := s.db.Select(ctx, "friends", datastore.Query{
		Eq: map[string]any{"user_id": userID}, OrderBy: "name",
	})
	if err != nil {
		return nil, fmt.Errorf("load friends: %w", err)
	}
	out := make([]core.Friend, 0, len(rows))
	for _, r := range rows {
		out = append(out, toFriend(r))
	}
	return out, nil
}

func (s *Store) Friend(ctx context.Context, userID, id string) (core.Friend, error) {
	rows, err := s.db.Select(ctx, "friends", datastore.Eq("user_id", userID, "id", id))
	if err != nil {
		return core.Friend{}, fmt.Errorf("load friend: %w", err)
	}
	if len(rows) == 0 {
		return core.Friend{}, core.NotFound("friend", id)
	}
	return toFriend(rows[0]), nil
}

func (s *Store) AddFriend(ctx context.Context, f core.Friend) (core.Friend, error) {
	if err := f.Validate(); err != nil {
		return core.Friend{}, err
	}
	rows, err := s.db.Insert(ctx, "friends", []datastore.Row{friendRow(f)})
	if err != nil {
		return core.Friend{}, fmt.Errorf("save friend: %w", err)
	}
	return toFriend(rows[0]), nil
}

// DeleteFriend removes the friend row only. Their debts stay as ledger
// history; name lookups on those rows degrade to the bare friend id.
func (s *Store) DeleteFriend(ctx context.Context, userID, id string) error {
	if err := s.mustExist(ctx, "friends", "friend", userID, id); err != nil {
		return err
	}
	if err := s.db.Delete(ctx, "friends", datastore.Eq("user_id", userID, "id", id)); err != nil {
		return fmt.Errorf("delete friend: %w", err)
	}
	return nil
}

// MonthTransactions returns the period's transactions newest first, each
// with its debts (friend names resolved) and tags attached.
func (s *Store) MonthTransactions(ctx context.Context, userID string, p core.Period) ([]core.Transaction, error) {
	rows, err := s.db.Select(ctx, "transactions", datastore.Query{
		Eq:      map[string]any{"user_id": userID, "month": p.Month, "year": p.Year},
		OrderBy: "date", Desc: true,
	})
	if err != nil {
		return nil, fmt.Errorf("load transactions: %w", err)
	}
	return s.hydrateTransactions(ctx, userID, rows)
}

// TransactionsSince returns every transaction from fromYear onward, with
// debts and tags attached. The analytics engine reads this window.
func (s *Store) TransactionsSince(ctx context.Context, userID string, fromYear int) ([]core.Transaction, error) {
	rows, err := s.db.Select(ctx, "transactions", datastore.Query{
		Eq:      map[string]any{"user_id": userID},
		Gte:     map[string]any{"year": fromYear},
		OrderBy: "date", Desc: true,
	})
	if err != nil {
		return nil, fmt.Errorf("load transaction window: %w", err)
	}
	return s.hydrateTransactions(ctx, userID, rows)
}

func (s *Store) hydrateTransactions(ctx context.Context, userID string, rows []datastore.Row) ([]core.Transaction, error) {
	txns := make([]core.Transaction, 0, len(rows))
	txnIDs := make([]any, 0, len(rows))
	for _, r := range rows {
		t := toTransaction(r)
		txns = append(txns, t)
		txnIDs = append(txnIDs, t.ID)
	}
	if len(txns) == 0 {
		return txns, nil
	}

	debtRows, err := s.db.Select(ctx, "debts", datastore.Query{
		In: map[string][]any{"transaction_id": txnIDs},
	})
	if err != nil {
		return nil, fmt.Errorf("load transaction debts: %w", err)
	}
	friendNames, err := s.friendNames(ctx, userID)
	if err != nil {
		return nil, err
	}
	debtsByTxn := make(map[string][]core.Debt)
	for _, r := range debtRows {
		d := toDebt(r)
		d.FriendName = friendNames[d.FriendID]
		debtsByTxn[d.TransactionID] = append(debtsByTxn[d.TransactionID], d)
	}

	tagsByTxn := s.transactionTags(ctx, userID, txnIDs)

	for i := range txns {
		txns[i].Debts = debtsByTxn[txns[i].ID]
		txns[i].Tags = tagsByTxn[txns[i].ID]
	}
	return txns, nil
}

func (s *Store) AddTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	if t.Category == "" {
		t.Category = core.CategoryGeneral
	}
	rows, err := s.db.Insert(ctx, "transactions", []datastore.Row{transactionRow(t)})
	if err != nil {
		return core.Transaction{}, fmt.Errorf("save transaction: %w", err)
	}
	return toTransaction(rows[0]), nil
}

// DeleteTransaction removes a transaction along with its debts and tag
// links.
func (s *Store) DeleteTransaction(ctx context.Context, userID, id string) error {
	if err := s.mustExist(ctx, "transactions", "transaction", userID, id); err != nil {
		return err
	}
	if err := s.db.Delete(ctx, "debts", datastore.Eq("transaction_id", id)); err != nil {
		return fmt.Errorf("delete transaction debts: %w", err)
	}
	if err := s.db.Delete(ctx, "transaction_tags", datastore.Eq("transaction_id", id)); err != nil {
		return fmt.Errorf("unlink transaction tags: %w", err)
	}
	if err := s.db.Delete(ctx, "transactions", datastore.Eq("user_id", userID, "id", id)); err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	return nil
}

// TagTransaction links the transaction to the given tags, replacing any
// previous links.
func (s *Store) TagTransaction(ctx context.Context, userID, txnID string, tagIDs []string) error {
	if err := s.mustExist(ctx, "transactions", "transaction", userID, txnID); err != nil {
		return err
	}
	if err := s.db.Delete(ctx, "transaction_tags", datastore.Eq("transaction_id", txnID)); err != nil {
		return fmt.Errorf("unlink transaction tags: %w", err)
	}
	if len(tagIDs) == 0 {
		return nil
	}
	links := make([]datastore.Row, 0, len(tagIDs))
	for _, tagID := range tagIDs {
		links = append(links, datastore.Row{"transaction_id": txnID, "tag_id": tagID})
	}
	if _, err := s.db.Insert(ctx, "transaction_tags", links); err != nil {
		return fmt.Errorf("link transaction tags: %w", err)
	}
	return nil
}

func (s *Store) AddDebts(ctx context.Context, debts []core.Debt) ([]core.Debt, error) {
	rows := make([]datastore.Row, 0, len(debts))
	for _, d := range debts {
		if err := d.Validate(); err != nil {
			return nil, err
		}
		rows = append(rows, debtRow(d))
	}
	inserted, err := s.db.Insert(ctx, "debts", rows)
	if err != nil {
		return nil, fmt.Errorf("save debts: %w", err)
	}
	out := make([]core.Debt, 0, len(inserted))
	for _, r := range inserted {
		out = append(out, toDebt(r))
	}
	return out, nil
}

// Debt returns a single debt with friend name and transaction context
// attached.
func (s *Store) Debt(ctx context.Context, userID, id string) (core.Debt, error) {
	rows, err := s.db.Select(ctx, "debts", datastore.Query{
		Eq: map[string]any{"user_id": userID, "id": id},
	})
	if err != nil {
		return core.Debt{}, fmt.Errorf("load debt: %w", err)
	}
	if len(rows) == 0 {
		return core.Debt{}, core.NotFound("debt", id)
	}
	debts, err := s.hydrateDebts(ctx, userID, rows)
	if err != nil {
		return core.Debt{}, err
	}
	return debts[0], nil
}

// PendingDebts returns every unsettled debt with friend and transaction
// context attached, newest first.
func (s *Store) PendingDebts(ctx context.Context, userID string) ([]core.Debt, error) {
	rows, err := s.db.Select(ctx, "debts", datastore.Query{
		Eq:      map[string]any{"user_id": userID, "is_settled": false},
		OrderBy: "created_at", Desc: true,
	})
	if err != nil {
		return nil, fmt.Errorf("load pending debts: %w", err)
	}
	return s.hydrateDebts(ctx, userID, rows)
}

// FriendDebts returns a friend's full debt history, settled rows included.
func (s *Store) FriendDebts(ctx context.Context, userID, friendID string) ([]core.Debt, error) {
	rows, err := s.db.Select(ctx, "debts", datastore.Query{
		Eq:      map[string]any{"user_id": userID, "friend_id": friendID},
		OrderBy: "created_at", Desc: true,
	})
	if err != nil {
		return nil, fmt.Errorf("load friend debts: %w", err)
	}
	return s.hydrateDebts(ctx, userID, rows)
}

func (s *Store) hydrateDebts(ctx context.Context, userID string, rows []datastore.Row) ([]core.Debt, error) {
	debts := make([]core.Debt, 0, len(rows))
	txnIDs := make([]any, 0, len(rows))
	for _, r := range rows {
		d := toDebt(r)
		debts = append(debts, d)
		txnIDs = append(txnIDs, d.TransactionID)
	}
	if len(debts) == 0 {
		return debts, nil
	}

	friendNames, err := s.friendNames(ctx, userID)
	if err != nil {
		return nil, err
	}
	txnRows, err := s.db.Select(ctx, "transactions", datastore.Query{
		In: map[string][]any{"id": txnIDs},
	})
	if err != nil {
		return nil, fmt.Errorf("load debt transactions: %w", err)
	}
	txnByID := make(map[string]core.Transaction, len(txnRows))
	for _, r := range txnRows {
		t := toTransaction(r)
		txnByID[t.ID] = t
	}
	tagsByTxn := s.transactionTags(ctx, userID, txnIDs)

	for i := range debts {
		debts[i].FriendName = friendNames[debts[i].FriendID]
		if t, ok := txnByID[debts[i].TransactionID]; ok {
			debts[i].TransactionTitle = t.Title
			debts[i].TransactionDate = t.Date
		}
		debts[i].Tags = tagsByTxn[debts[i].TransactionID]
	}
	return debts, nil
}

// MarkDebtSettled flips a single unsettled debt to settled. It returns the
// updated rows; an empty result means the debt was missing or already
// settled, and nothing changed.
func (s *Store) MarkDebtSettled(ctx context.Context, userID, debtID string, at time.Time) ([]core.Debt, error) {
	return s.settleDebts(ctx, datastore.Query{
		Eq: map[string]any{"user_id": userID, "id": debtID, "is_settled": false},
	}, at)
}

// MarkFriendDebtsSettled flips every unsettled debt owed by the friend,
// all with the same settled_at timestamp.
func (s *Store) MarkFriendDebtsSettled(ctx context.Context, userID, friendID string, at time.Time) ([]core.Debt, error) {
	return s.settleDebts(ctx, datastore.Query{
		Eq: map[string]any{"user_id": userID, "friend_id": friendID, "is_settled": false},
	}, at)
}

func (s *Store) settleDebts(ctx context.Context, q datastore.Query, at time.Time) ([]core.Debt, error) {
	rows, err := s.db.Update(ctx, "debts", q, datastore.Row{
		"is_settled": true,
		"settled_at": at.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return nil, fmt.Errorf("settle debts: %w", err)
	}
	out := make([]core.Debt, 0, len(rows))
	for _, r := range rows {
		out = append(out, toDebt(r))
	}
	return out, nil
}

// Emis returns the user's installment plans newest first, payments
// attached. With activeOnly set, inactive plans are skipped.
func (s *Store) Emis(ctx context.Context, userID string, activeOnly bool) ([]core.Emi, error) {
	q := datastore.Query{
		Eq:      map[string]any{"user_id": userID},
		OrderBy: "created_at", Desc: true,
	}
	if activeOnly {
		q.Eq["is_active"] = true
	}
	rows, err := s.db.Select(ctx, "emis", q)
	if err != nil {
		return nil, fmt.Errorf("load emis: %w", err)
	}

	emis := make([]core.Emi, 0, len(rows))
	emiIDs := make([]any, 0, len(rows))
	for _, r := range rows {
		e := toEmi(r)
		emis = append(emis, e)
		emiIDs = append(emiIDs, e.ID)
	}
	if len(emis) == 0 {
		return emis, nil
	}

	payRows, err := s.db.Select(ctx, "emi_payments", datastore.Query{
		In: map[string][]any{"emi_id": emiIDs},
	})
	if err != nil {
		return nil, fmt.Errorf("load emi payments: %w", err)
	}
	byEmi := make(map[string][]core.EmiPayment)
	for _, r := range payRows {
		p := toEmiPayment(r)
		byEmi[p.EmiID] = append(byEmi[p.EmiID], p)
	}
	for i := range emis {
		emis[i].Payments = byEmi[emis[i].ID]
	}
	return emis, nil
}

func (s *Store) Emi(ctx context.Context, userID, id string) (core.Emi, error) {
	rows, err := s.db.Select(ctx, "emis", datastore.Query{
		Eq: map[string]any{"user_id": userID, "id": id},
	})
	if err != nil {
		return core.Emi{}, fmt.Errorf("load emi: %w", err)
	}
	if len(rows) == 0 {
		return core.Emi{}, core.NotFound("emi", id)
	}
	e := toEmi(rows[0])

	payRows, err := s.db.Select(ctx, "emi_payments", datastore.Query{
		Eq: map[string]any{"emi_id": id},
	})
	if err != nil {
		return core.Emi{}, fmt.Errorf("load emi payments: %w", err)
	}
	for _, r := range payRows {
		e.Payments = append(e.Payments, toEmiPayment(r))
	}
	return e, nil
}

func (s *Store) AddEmi(ctx context.Context, e core.Emi) (core.Emi, error) {
	if err := e.Validate(); err != nil {
		return core.Emi{}, err
	}
	e.IsActive = true
	rows, err := s.db.Insert(ctx, "emis", []datastore.Row{emiRow(e)})
	if err != nil {
		return core.Emi{}, fmt.Errorf("save emi: %w", err)
	}
	return toEmi(rows[0]), nil
}

// DeleteEmi removes the plan and its payment marks. The transactions it
// generated stay in the ledger as history.
func (s *Store) DeleteEmi(ctx context.Context, userID, id string) error {
	if err := s.mustExist(ctx, "emis", "emi", userID, id); err != nil {
		return err
	}
	if err := s.db.Delete(ctx, "emi_payments", datastore.Eq("emi_id", id)); err != nil {
		return fmt.Errorf("delete emi payments: %w", err)
	}
	if err := s.db.Delete(ctx, "emis", datastore.Eq("user_id", userID, "id", id)); err != nil {
		return fmt.Errorf("delete emi: %w", err)
	}
	return nil
}

// UpsertEmiPayment marks an installment month paid. Re-marking the same
// month replaces the existing row instead of adding a second one.
func (s *Store) UpsertEmiPayment(ctx context.Context, p core.EmiPayment) (core.EmiPayment, error) {
	if err := p.Validate(); err != nil {
		return core.EmiPayment{}, err
	}
	row, err := s.db.Upsert(ctx, "emi_payments", emiPaymentRow(p), []string{"emi_id", "month", "year"})
	if err != nil {
		return core.EmiPayment{}, fmt.Errorf("save emi payment: %w", err)
	}
	return toEmiPayment(row), nil
}

func (s *Store) DeleteEmiPayment(ctx context.Context, emiID string, p core.Period) error {
	err := s.db.Delete(ctx, "emi_payments", datastore.Eq("emi_id", emiID, "month", p.Month, "year", p.Year))
	if err != nil {
		return fmt.Errorf("delete emi payment: %w", err)
	}
	return nil
}

// DeleteEmiTransactions removes the EMI-generated transactions for one
// period.
func (s *Store) DeleteEmiTransactions(ctx context.Context, userID, emiID string, p core.Period) error {
	err := s.db.Delete(ctx, "transactions", datastore.Query{
		Eq: map[string]any{"user_id": userID, "emi_id": emiID, "month": p.Month, "year": p.Year},
	})
	if err != nil {
		return fmt.Errorf("delete emi transactions: %w", err)
	}
	return nil
}

func (s *Store) friendNames(ctx context.Context, userID string) (map[string]string, error) {
	rows, err := s.db.Select(ctx, "friends", datastore.Query{
		Eq: map[string]any{"user_id": userID},
	})
	if err != nil {
		return nil, fmt.Errorf("load friend names: %w", err)
	}
	names := make(map[string]string, len(rows))
	for _, r := range rows {
		names[asString(r["id"])] = asString(r["name"])
	}
	return names, nil
}

func (s *Store) mustExist(ctx context.Context, table, entity, userID, id string) error {
	rows, err := s.db.Select(ctx, table, datastore.Eq("user_id", userID, "id", id))
	if err != nil {
		return fmt.Errorf("load %s: %w", entity, err)
	}
	if len(rows) == 0 {
		return core.NotFound(entity, id)
	}
	return nil
}
