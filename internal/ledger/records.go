package ledger

import (
	"time"

	"spendly/internal/core"
	"spendly/internal/datastore"
)

// Row converters. Inserted rows carry empty "id" and "created_at" so the
// backend assigns them; readers are tolerant about numeric and bool
// representations because SQLite hands back int64 where the memory store
// keeps the Go values it was given.

func budgetRow(b core.Budget) datastore.Row {
	return datastore.Row{
		"id":         b.ID,
		"user_id":    b.UserID,
		"month":      b.Month,
		"year":       b.Year,
		"amount":     b.Amount,
		"created_at": "",
	}
}

func toBudget(r datastore.Row) core.Budget {
	return core.Budget{
		ID:     asString(r["id"]),
		UserID: asString(r["user_id"]),
		Month:  asInt(r["month"]),
		Year:   asInt(r["year"]),
		Amount: asFloat(r["amount"]),
	}
}

func tagRow(t core.Tag) datastore.Row {
	return datastore.Row{
		"id":         t.ID,
		"user_id":    t.UserID,
		"name":       t.Name,
		"color":      t.Color,
		"created_at": "",
	}
}

func toTag(r datastore.Row) core.Tag {
	return core.Tag{
		ID:     asString(r["id"]),
		UserID: asString(r["user_id"]),
		Name:   asString(r["name"]),
		Color:  asString(r["color"]),
	}
}

func friendRow(f core.Friend) datastore.Row {
	return datastore.Row{
		"id":         f.ID,
		"user_id":    f.UserID,
		"name":       f.Name,
		"email":      f.Email,
		"created_at": "",
	}
}

func toFriend(r datastore.Row) core.Friend {
	return core.Friend{
		ID:     asString(r["id"]),
		UserID: asString(r["user_id"]),
		Name:   asString(r["name"]),
		Email:  asString(r["email"]),
	}
}

func transactionRow(t core.Transaction) datastore.Row {
	return datastore.Row{
		"id":           t.ID,
		"user_id":      t.UserID,
		"title":        t.Title,
		"total_amount": t.TotalAmount,
		"my_amount":    t.MyAmount,
		"category":     t.Category,
		"note":         t.Note,
		"date":         t.Date,
		"month":        t.Month,
		"year":         t.Year,
		"emi_id":       t.EmiID,
		"created_at":   "",
	}
}

func toTransaction(r datastore.Row) core.Transaction {
	return core.Transaction{
		ID:          asString(r["id"]),
		UserID:      asString(r["user_id"]),
		Title:       asString(r["title"]),
		TotalAmount: asFloat(r["total_amount"]),
		MyAmount:    asFloat(r["my_amount"]),
		Category:    asString(r["category"]),
		Note:        asString(r["note"]),
		Date:        asString(r["date"]),
		Month:       asInt(r["month"]),
		Year:        asInt(r["year"]),
		EmiID:       asString(r["emi_id"]),
	}
}

func debtRow(d core.Debt) datastore.Row {
	settledAt := ""
	if !d.SettledAt.IsZero() {
		settledAt = d.SettledAt.UTC().Format(time.RFC3339)
	}
	return datastore.Row{
		"id":             d.ID,
		"user_id":        d.UserID,
		"transaction_id": d.TransactionID,
		"friend_id":      d.FriendID,
		"amount":         d.Amount,
		"is_settled":     d.IsSettled,
		"settled_at":     settledAt,
		"created_at":     "",
	}
}

func toDebt(r datastore.Row) core.Debt {
	d := core.Debt{
		ID:            asString(r["id"]),
		UserID:        asString(r["user_id"]),
		TransactionID: asString(r["transaction_id"]),
		FriendID:      asString(r["friend_id"]),
		Amount:        asFloat(r["amount"]),
		IsSettled:     asBool(r["is_settled"]),
	}
	if raw := asString(r["settled_at"]); raw != "" {
		if at, err := time.Parse(time.RFC3339, raw); err == nil {
			d.SettledAt = at
		}
	}
	return d
}

func winningRow(w core.Winning) datastore.Row {
	return datastore.Row{
		"id":         w.ID,
		"user_id":    w.UserID,
		"title":      w.Title,
		"amount":     w.Amount,
		"month":      w.Month,
		"year":       w.Year,
		"created_at": "",
	}
}

func toWinning(r datastore.Row) core.Winning {
	return core.Winning{
		ID:     asString(r["id"]),
		UserID: asString(r["user_id"]),
		Title:  asString(r["title"]),
		Amount: asFloat(r["amount"]),
		Month:  asInt(r["month"]),
		Year:   asInt(r["year"]),
	}
}

func emiRow(e core.Emi) datastore.Row {
	return datastore.Row{
		"id":           e.ID,
		"user_id":      e.UserID,
		"title":        e.Title,
		"amount":       e.Amount,
		"total_months": e.TotalMonths,
		"start_month":  e.StartMonth,
		"start_year":   e.StartYear,
		"is_active":    e.IsActive,
		"created_at":   "",
	}
}

func toEmi(r datastore.Row) core.Emi {
	return core.Emi{
		ID:          asString(r["id"]),
		UserID:      asString(r["user_id"]),
		Title:       asString(r["title"]),
		Amount:      asFloat(r["amount"]),
		TotalMonths: asInt(r["total_months"]),
		StartMonth:  asInt(r["start_month"]),
		StartYear:   asInt(r["start_year"]),
		IsActive:    asBool(r["is_active"]),
	}
}

func emiPaymentRow(p core.EmiPayment) datastore.Row {
	return datastore.Row{
		"id":         p.ID,
		"user_id":    p.UserID,
		"emi_id":     p.EmiID,
		"month":      p.Month,
		"year":       p.Year,
		"amount":     p.Amount,
		"created_at": "",
	}
}

func toEmiPayment(r datastore.Row) core.EmiPayment {
	return core.EmiPayment{
		ID:     asString(r["id"]),
		UserID: asString(r["user_id"]),
		EmiID:  asString(r["emi_id"]),
		Month:  asInt(r["month"]),
		Year:   asInt(r["year"]),
		Amount: asFloat(r["amount"]),
	}
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	case int:
		return float64(n)
	}
	return 0
}

func asInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}

func asBool(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case int64:
		return b != 0
	case int:
		return b != 0
	case float64:
		return b != 0
	}
	return false
}
