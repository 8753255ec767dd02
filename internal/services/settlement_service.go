// Package services holds the multi-write engines: split creation, debt
// settlement, and installment payment. Each engine validates against the
// domain rules, writes through the ledger, and emits an event on success.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"spendly/internal/core"
	"spendly/internal/events"
	"spendly/internal/ledger"
)

// EventPublisher pushes ledger events onto the report stream. A nil events
// client satisfies it as a no-op.
type EventPublisher interface {
	Publish(ctx context.Context, e *events.Event) error
}

// DebtShare is one friend's portion of a split.
type DebtShare struct {
	FriendID string
	Amount   float64
}

// SplitInput is a transaction plus the shares owed back by friends.
type SplitInput struct {
	Transaction core.Transaction
	Shares      []DebtShare
}

// SettlementResult reports what a settle call changed. Settled is empty
// when the call was a no-op; Credit is the reimbursement transaction
// created, if any.
type SettlementResult struct {
	Settled []core.Debt
	Credit  *core.Transaction
}

type SettlementService struct {
	store  *ledger.Store
	events EventPublisher
	logger *slog.Logger
	now    func() time.Time
}

func NewSettlementService(store *ledger.Store, publisher EventPublisher, logger *slog.Logger) *SettlementService {
	return &SettlementService{
		store:  store,
		events: publisher,
		logger: logger,
		now:    time.Now,
	}
}

// CreateSplit writes the transaction and its debts. If the debts cannot be
// written the transaction is removed again, so a split never lands
// half-recorded.
func (s *SettlementService) CreateSplit(ctx context.Context, in SplitInput) (core.Transaction, error) {
	txn := in.Transaction
	if err := txn.Validate(); err != nil {
		return core.Transaction{}, err
	}
	if err := validateShares(txn, in.Shares); err != nil {
		return core.Transaction{}, err
	}

	var created core.Transaction
	var debts []core.Debt
	steps := []step{
		{
			name: "insert transaction",
			apply: func(ctx context.Context) error {
				var err error
				created, err = s.store.AddTransaction(ctx, txn)
				return err
			},
			compensate: func(ctx context.Context) error {
				return s.store.DeleteTransaction(ctx, txn.UserID, created.ID)
			},
		},
		{
			name: "insert debts",
			apply: func(ctx context.Context) error {
				if len(in.Shares) == 0 {
					return nil
				}
				rows := make([]core.Debt, 0, len(in.Shares))
				for _, share := range in.Shares {
					rows = append(rows, core.Debt{
						UserID:        txn.UserID,
						TransactionID: created.ID,
						FriendID:      share.FriendID,
						Amount:        share.Amount,
					})
				}
				var err error
				debts, err = s.store.AddDebts(ctx, rows)
				return err
			},
		},
	}
	if err := runSteps(ctx, s.logger, steps); err != nil {
		return core.Transaction{}, err
	}

	created.Debts = debts
	return created, nil
}

// SettleOne marks a single debt settled and records a reimbursement
// credit. Settling an already settled debt is a no-op. The settled flag is
// not rolled back when the credit write fails; the error is surfaced and
// the caller can retry the credit as a plain transaction.
func (s *SettlementService) SettleOne(ctx context.Context, userID, debtID string) (SettlementResult, error) {
	debt, err := s.store.Debt(ctx, userID, debtID)
	if err != nil {
		return SettlementResult{}, err
	}
	if debt.IsSettled {
		return SettlementResult{}, nil
	}
	friend, err := s.store.Friend(ctx, userID, debt.FriendID)
	if err != nil {
		return SettlementResult{}, err
	}

	at := s.now()
	settled, err := s.store.MarkDebtSettled(ctx, userID, debtID, at)
	if err != nil {
		return SettlementResult{}, err
	}
	if len(settled) == 0 {
		return SettlementResult{}, nil
	}

	title := "Settled: " + friend.Name
	if debt.TransactionTitle != "" {
		title += " - " + debt.TransactionTitle
	}
	credit, err := s.recordCredit(ctx, userID, title, debt.Amount, at)
	if err != nil {
		return SettlementResult{Settled: settled}, fmt.Errorf("debt settled but credit not recorded: %w", err)
	}

	s.publish(ctx, &events.Event{
		Kind:     events.KeyDebtSettled,
		UserID:   userID,
		DebtIDs:  []string{debtID},
		FriendID: debt.FriendID,
		Amount:   debt.Amount,
	})
	return SettlementResult{Settled: settled, Credit: &credit}, nil
}

// SettleAllForFriend settles every pending debt owed by the friend in one
// shot, with a single combined credit. All settled rows share the same
// timestamp. A friend with nothing pending yields an empty result and no
// credit.
func (s *SettlementService) SettleAllForFriend(ctx context.Context, userID, friendID string) (SettlementResult, error) {
	friend, err := s.store.Friend(ctx, userID, friendID)
	if err != nil {
		return SettlementResult{}, err
	}

	at := s.now()
	settled, err := s.store.MarkFriendDebtsSettled(ctx, userID, friendID, at)
	if err != nil {
		return SettlementResult{}, err
	}
	if len(settled) == 0 {
		return SettlementResult{}, nil
	}

	var total float64
	debtIDs := make([]string, 0, len(settled))
	for _, d := range settled {
		total += d.Amount
		debtIDs = append(debtIDs, d.ID)
	}

	title := fmt.Sprintf("Settled: %s (%d debts)", friend.Name, len(settled))
	credit, err := s.recordCredit(ctx, userID, title, total, at)
	if err != nil {
		return SettlementResult{Settled: settled}, fmt.Errorf("debts settled but credit not recorded: %w", err)
	}

	s.publish(ctx, &events.Event{
		Kind:     events.KeyDebtSettled,
		UserID:   userID,
		DebtIDs:  debtIDs,
		FriendID: friendID,
		Amount:   total,
	})
	return SettlementResult{Settled: settled, Credit: &credit}, nil
}

// recordCredit writes the reimbursement row: positive total, negative
// MyAmount, so the month's cash flow goes down by the settled amount.
func (s *SettlementService) recordCredit(ctx context.Context, userID, title string, amount float64, at time.Time) (core.Transaction, error) {
	p := core.PeriodOf(at)
	return s.store.AddTransaction(ctx, core.Transaction{
		UserID:      userID,
		Title:       title,
		TotalAmount: amount,
		MyAmount:    -amount,
		Category:    core.CategoryGeneral,
		Date:        at.Format("2006-01-02"),
		Month:       p.Month,
		Year:        p.Year,
	})
}

func (s *SettlementService) publish(ctx context.Context, e *events.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, e); err != nil {
		s.logger.WarnContext(ctx, "event publish failed", "kind", e.Kind, "error", err)
	}
}

func validateShares(txn core.Transaction, shares []DebtShare) error {
	if len(shares) == 0 {
		return nil
	}
	sum := txn.MyAmount
	for _, share := range shares {
		if share.FriendID == "" {
			return core.Invalidf("share missing friend id")
		}
		if share.Amount <= 0 {
			return core.ErrInvalidAmount
		}
		sum += share.Amount
	}
	if diff := sum - txn.TotalAmount; diff > core.AmountEpsilon || diff < -core.AmountEpsilon {
		return core.Invalidf("shares sum to %.2f, total is %.2f", sum, txn.TotalAmount)
	}
	return nil
}
