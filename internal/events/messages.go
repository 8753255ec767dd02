package events

import (
	"encoding/json"
	"time"
)

// Routing keys for ledger events. The report queue is bound to all of
// them.
const (
	KeyDebtSettled = "debt.settled"
	KeyEmiPaid     = "emi.paid"
	KeyEmiUnpaid   = "emi.unpaid"
)

// Event is a lightweight pointer message. It carries ids, not entity
// bodies; the worker re-reads the ledger so it always reports current
// state.
type Event struct {
	Kind      string    `json:"kind"`
	UserID    string    `json:"user_id"`
	DebtIDs   []string  `json:"debt_ids,omitempty"`
	FriendID  string    `json:"friend_id,omitempty"`
	EmiID     string    `json:"emi_id,omitempty"`
	Month     int       `json:"month,omitempty"`
	Year      int       `json:"year,omitempty"`
	Amount    float64   `json:"amount,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func (e *Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

func EventFromJSON(data []byte) (*Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}
