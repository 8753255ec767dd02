package core

import (
	"errors"
	"testing"
	"time"
)

func TestPeriodValidate(t *testing.T) {
	cases := []struct {
		p  Period
		ok bool
	}{
		{Period{Month: 1, Year: 2025}, true},
		{Period{Month: 12, Year: 2025}, true},
		{Period{Month: 0, Year: 2025}, false},
		{Period{Month: 13, Year: 2025}, false},
		{Period{Month: 6, Year: 0}, false},
	}
	for i, tc := range cases {
		err := tc.p.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestPeriodKeyAndLabel(t *testing.T) {
	p := Period{Month: 9, Year: 2025}
	if p.Key() != "2025-09" {
		t.Fatalf("key = %q", p.Key())
	}
	if p.Label() != "Sep 2025" {
		t.Fatalf("label = %q", p.Label())
	}
	if got := PeriodOf(time.Date(2024, time.January, 15, 0, 0, 0, 0, time.UTC)); got != (Period{Month: 1, Year: 2024}) {
		t.Fatalf("PeriodOf = %+v", got)
	}
}

func TestTransactionValidate(t *testing.T) {
	good := Transaction{
		Title: "Dinner", TotalAmount: 1000, MyAmount: 600,
		Month: 9, Year: 2025, Date: "2025-09-01",
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	// Credit rows carry a negative MyAmount and stay valid.
	credit := Transaction{Title: "Collected: Sam", TotalAmount: 400, MyAmount: -400, Month: 9, Year: 2025}
	if err := credit.Validate(); err != nil {
		t.Fatalf("credit should validate, got %v", err)
	}

	bads := []Transaction{
		{Title: "", TotalAmount: 10, MyAmount: 10, Month: 9, Year: 2025},
		{Title: "x", TotalAmount: 0, MyAmount: 0, Month: 9, Year: 2025},
		{Title: "x", TotalAmount: 100, MyAmount: 150, Month: 9, Year: 2025},
		{Title: "x", TotalAmount: 100, MyAmount: 100, Month: 13, Year: 2025},
		{Title: "x", TotalAmount: 100, MyAmount: 100, Month: 9, Year: 2025, Date: "bad"},
	}
	for i, tx := range bads {
		err := tx.Validate()
		if err == nil {
			t.Fatalf("case %d expected error", i)
		}
		var ve *ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("case %d expected ValidationError, got %T", i, err)
		}
	}
}

func TestEmiProgress(t *testing.T) {
	e := Emi{Title: "Laptop", Amount: 2500, TotalMonths: 6, StartMonth: 1, StartYear: 2025}
	for m := 1; m <= 3; m++ {
		e.Payments = append(e.Payments, EmiPayment{EmiID: "e1", Month: m, Year: 2025, Amount: 2500})
	}

	if e.Progress() != 3 {
		t.Fatalf("progress = %d, want 3", e.Progress())
	}
	if e.RemainingMonths() != 3 {
		t.Fatalf("remaining = %d, want 3", e.RemainingMonths())
	}
	if e.TotalLeft() != 7500 {
		t.Fatalf("total left = %v, want 7500", e.TotalLeft())
	}
	if e.Completed() {
		t.Fatal("should not be complete")
	}
	if _, ok := e.PaymentFor(Period{Month: 2, Year: 2025}); !ok {
		t.Fatal("expected payment for Feb")
	}
	if _, ok := e.PaymentFor(Period{Month: 4, Year: 2025}); ok {
		t.Fatal("unexpected payment for Apr")
	}
}

func TestErrorKinds(t *testing.T) {
	var nf *NotFoundError
	if !errors.As(NotFound("debt", "d1"), &nf) {
		t.Fatal("expected NotFoundError")
	}
	if nf.Error() != "debt d1 not found" {
		t.Fatalf("message = %q", nf.Error())
	}

	te := &TransportError{Op: "select transactions", Err: errors.New("boom")}
	if !errors.Is(te, te.Err) {
		t.Fatal("TransportError should unwrap")
	}
}
