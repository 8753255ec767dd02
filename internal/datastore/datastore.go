// Package datastore defines the tabular data-access port the ledger runs
// against. The contract is deliberately narrow: exact-match and set-membership
// filtering plus a >= bound for the analytics window, nothing else. Backends
// (SQLite, in-memory) can be swapped without touching the ledger.
package datastore

import "context"

// Row is one table row as stored. The ledger converts rows to typed records
// at its boundary; nothing above the ledger sees a Row.
//
// On insert, implementations assign a UUID to an empty "id" value and a UTC
// RFC 3339 timestamp to an empty "created_at" value. Rows without those keys
// (join tables) are stored as-is.
type Row map[string]any

// Query selects rows by column filters. All referenced columns are indexed;
// nothing here supports full-text or open-ended range scans.
type Query struct {
	// Eq matches columns by equality.
	Eq map[string]any
	// In matches a column against a set of values.
	In map[string][]any
	// Gte matches numeric columns with >= (analytics year window only).
	Gte map[string]any

	// OrderBy names a column to sort on; Desc reverses the order.
	OrderBy string
	Desc    bool
}

// Client is the remote-store interface. Every call is a single round trip;
// multi-step consistency is the caller's problem (see the service engines).
type Client interface {
	// Select returns the rows matching q, in q's order.
	Select(ctx context.Context, table string, q Query) ([]Row, error)

	// Insert persists rows and returns them with generated values filled in.
	Insert(ctx context.Context, table string, rows []Row) ([]Row, error)

	// Update applies patch to all rows matching q and returns the rows as
	// they are after the update, even when the patch makes them stop
	// matching q.
	Update(ctx context.Context, table string, q Query, patch Row) ([]Row, error)

	// Upsert inserts row or, when the conflict columns collide with an
	// existing row, replaces its remaining columns. Returns the final row.
	Upsert(ctx context.Context, table string, row Row, conflictCols []string) (Row, error)

	// Delete removes all rows matching q.
	Delete(ctx context.Context, table string, q Query) error

	// Close releases any resources held by the backend.
	Close() error
}

// Eq is shorthand for a pure equality query.
func Eq(pairs ...any) Query {
	q := Query{Eq: make(map[string]any, len(pairs)/2)}
	for i := 0; i+1 < len(pairs); i += 2 {
		q.Eq[pairs[i].(string)] = pairs[i+1]
	}
	return q
}
