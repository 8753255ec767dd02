// Package memory provides an in-memory datastore backend. It backs every
// test in the repo and doubles as a zero-setup default for local runs.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"spendly/internal/datastore"
)

// Ensure Store implements the port.
var _ datastore.Client = (*Store)(nil)

// Store keeps rows per table behind a mutex.
type Store struct {
	mu     sync.Mutex
	tables map[string][]datastore.Row
	faults map[string]error
}

func New() *Store {
	return &Store{
		tables: make(map[string][]datastore.Row),
		faults: make(map[string]error),
	}
}

// FailNext makes the next call of the given op ("select", "insert", "update",
// "upsert", "delete") on table fail with err. Used by tests to exercise
// partial-failure compensation paths.
func (s *Store) FailNext(op, table string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[op+":"+table] = err
}

func (s *Store) takeFault(op, table string) error {
	key := op + ":" + table
	if err, ok := s.faults[key]; ok {
		delete(s.faults, key)
		return err
	}
	return nil
}

func (s *Store) Select(_ context.Context, table string, q datastore.Query) ([]datastore.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFault("select", table); err != nil {
		return nil, err
	}

	var out []datastore.Row
	for _, row := range s.tables[table] {
		if matches(row, q) {
			out = append(out, clone(row))
		}
	}
	orderRows(out, q)
	return out, nil
}

func (s *Store) Insert(_ context.Context, table string, rows []datastore.Row) ([]datastore.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFault("insert", table); err != nil {
		return nil, err
	}

	out := make([]datastore.Row, 0, len(rows))
	for _, row := range rows {
		stored := clone(row)
		fillGenerated(stored)
		s.tables[table] = append(s.tables[table], stored)
		out = append(out, clone(stored))
	}
	return out, nil
}

func (s *Store) Update(_ context.Context, table string, q datastore.Query, patch datastore.Row) ([]datastore.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFault("update", table); err != nil {
		return nil, err
	}

	var out []datastore.Row
	for _, row := range s.tables[table] {
		if !matches(row, q) {
			continue
		}
		for k, v := range patch {
			row[k] = v
		}
		out = append(out, clone(row))
	}
	return out, nil
}

func (s *Store) Upsert(_ context.Context, table string, row datastore.Row, conflictCols []string) (datastore.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFault("upsert", table); err != nil {
		return nil, err
	}

	for _, existing := range s.tables[table] {
		if conflicts(existing, row, conflictCols) {
			for k, v := range row {
				if k == "id" || k == "created_at" {
					continue
				}
				existing[k] = v
			}
			return clone(existing), nil
		}
	}

	stored := clone(row)
	fillGenerated(stored)
	s.tables[table] = append(s.tables[table], stored)
	return clone(stored), nil
}

func (s *Store) Delete(_ context.Context, table string, q datastore.Query) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFault("delete", table); err != nil {
		return err
	}

	kept := s.tables[table][:0]
	for _, row := range s.tables[table] {
		if !matches(row, q) {
			kept = append(kept, row)
		}
	}
	s.tables[table] = kept
	return nil
}

func (s *Store) Close() error { return nil }

func fillGenerated(row datastore.Row) {
	if v, ok := row["id"]; ok && v == "" {
		row["id"] = uuid.New().String()
	}
	if v, ok := row["created_at"]; ok && v == "" {
		row["created_at"] = time.Now().UTC().Format(time.RFC3339Nano)
	}
}

func clone(row datastore.Row) datastore.Row {
	out := make(datastore.Row, len(row))
	for k, v := range row {
		out[k] = v
	}
	return out
}

func conflicts(existing, row datastore.Row, cols []string) bool {
	if len(cols) == 0 {
		return false
	}
	for _, c := range cols {
		if !valueEq(existing[c], row[c]) {
			return false
		}
	}
	return true
}

func matches(row datastore.Row, q datastore.Query) bool {
	for col, want := range q.Eq {
		if !valueEq(row[col], want) {
			return false
		}
	}
	for col, set := range q.In {
		found := false
		for _, want := range set {
			if valueEq(row[col], want) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	for col, bound := range q.Gte {
		have, ok1 := toNumber(row[col])
		min, ok2 := toNumber(bound)
		if !ok1 || !ok2 || have < min {
			return false
		}
	}
	return true
}

func orderRows(rows []datastore.Row, q datastore.Query) {
	if q.OrderBy == "" {
		return
	}
	sort.SliceStable(rows, func(i, j int) bool {
		less := valueLess(rows[i][q.OrderBy], rows[j][q.OrderBy])
		if q.Desc {
			return valueLess(rows[j][q.OrderBy], rows[i][q.OrderBy])
		}
		return less
	})
}

func valueEq(a, b any) bool {
	if af, ok := toNumber(a); ok {
		if bf, ok := toNumber(b); ok {
			return af == bf
		}
	}
	return a == b
}

func valueLess(a, b any) bool {
	if af, ok := toNumber(a); ok {
		if bf, ok := toNumber(b); ok {
			return af < bf
		}
	}
	as, aok := a.(string)
	bs, bok := b.(string)
	return aok && bok && as < bs
}

func toNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
