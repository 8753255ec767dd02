package services

import (
	"context"
	"log/slog"
	"time"

	"spendly/internal/core"
	"spendly/internal/events"
	"spendly/internal/ledger"
)

type EmiService struct {
	store  *ledger.Store
	events EventPublisher
	logger *slog.Logger
	now    func() time.Time
}

func NewEmiService(store *ledger.Store, publisher EventPublisher, logger *slog.Logger) *EmiService {
	return &EmiService{
		store:  store,
		events: publisher,
		logger: logger,
		now:    time.Now,
	}
}

// PayMonth marks the installment for p as paid and records the matching
// Bills transaction. Paying the same month twice replaces the payment and
// transaction, never duplicating either. Paying a plan that already has
// every installment marked is a no-op.
func (s *EmiService) PayMonth(ctx context.Context, userID, emiID string, p core.Period) (core.Emi, error) {
	if err := p.Validate(); err != nil {
		return core.Emi{}, err
	}
	emi, err := s.store.Emi(ctx, userID, emiID)
	if err != nil {
		return core.Emi{}, err
	}
	if _, paid := emi.PaymentFor(p); !paid && emi.Completed() {
		return emi, nil
	}

	at := s.now()
	steps := []step{
		{
			// A repay of the same month must not leave the old
			// transaction behind.
			name: "clear prior installment transaction",
			apply: func(ctx context.Context) error {
				return s.store.DeleteEmiTransactions(ctx, userID, emiID, p)
			},
		},
		{
			name: "mark installment paid",
			apply: func(ctx context.Context) error {
				_, err := s.store.UpsertEmiPayment(ctx, core.EmiPayment{
					UserID: userID,
					EmiID:  emiID,
					Month:  p.Month,
					Year:   p.Year,
					Amount: emi.Amount,
				})
				return err
			},
			compensate: func(ctx context.Context) error {
				return s.store.DeleteEmiPayment(ctx, emiID, p)
			},
		},
		{
			name: "record installment transaction",
			apply: func(ctx context.Context) error {
				_, err := s.store.AddTransaction(ctx, core.Transaction{
					UserID:      userID,
					Title:       emi.Title,
					TotalAmount: emi.Amount,
					MyAmount:    emi.Amount,
					Category:    core.CategoryBills,
					Date:        at.Format("2006-01-02"),
					Month:       p.Month,
					Year:        p.Year,
					EmiID:       emiID,
				})
				return err
			},
		},
	}
	if err := runSteps(ctx, s.logger, steps); err != nil {
		return core.Emi{}, err
	}

	s.publish(ctx, &events.Event{
		Kind:   events.KeyEmiPaid,
		UserID: userID,
		EmiID:  emiID,
		Month:  p.Month,
		Year:   p.Year,
		Amount: emi.Amount,
	})
	return s.store.Emi(ctx, userID, emiID)
}

// UnpayMonth reverses PayMonth. The transaction goes first; a failure
// there leaves the payment mark in place, so the month still reads as
// paid and can be unpaid again.
func (s *EmiService) UnpayMonth(ctx context.Context, userID, emiID string, p core.Period) (core.Emi, error) {
	if err := p.Validate(); err != nil {
		return core.Emi{}, err
	}
	emi, err := s.store.Emi(ctx, userID, emiID)
	if err != nil {
		return core.Emi{}, err
	}
	if _, paid := emi.PaymentFor(p); !paid {
		return emi, nil
	}

	if err := s.store.DeleteEmiTransactions(ctx, userID, emiID, p); err != nil {
		return core.Emi{}, err
	}
	if err := s.store.DeleteEmiPayment(ctx, emiID, p); err != nil {
		return core.Emi{}, err
	}

	s.publish(ctx, &events.Event{
		Kind:   events.KeyEmiUnpaid,
		UserID: userID,
		EmiID:  emiID,
		Month:  p.Month,
		Year:   p.Year,
		Amount: emi.Amount,
	})
	return s.store.Emi(ctx, userID, emiID)
}

func (s *EmiService) publish(ctx context.Context, e *events.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, e); err != nil {
		s.logger.WarnContext(ctx, "event publish failed", "kind", e.Kind, "error", err)
	}
}
