// Package sqlite implements the datastore port on SQLite using the pure Go
// driver, with golang-migrate applying the embedded schema on open.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"spendly/internal/core"
	"spendly/internal/datastore"
)

// Ensure Store implements the port.
var _ datastore.Client = (*Store)(nil)

// tableColumns whitelists every table and column the ledger touches.
// Queries referencing anything else are caller bugs, not SQL.
var tableColumns = map[string][]string{
	"budgets":          {"id", "user_id", "month", "year", "amount", "created_at"},
	"tags":             {"id", "user_id", "name", "color", "created_at"},
	"friends":          {"id", "user_id", "name", "email", "created_at"},
	"transactions":     {"id", "user_id", "title", "total_amount", "my_amount", "category", "note", "date", "month", "year", "emi_id", "created_at"},
	"debts":            {"id", "user_id", "transaction_id", "friend_id", "amount", "is_settled", "settled_at", "created_at"},
	"winnings":         {"id", "user_id", "title", "amount", "month", "year", "created_at"},
	"emis":             {"id", "user_id", "title", "amount", "total_months", "start_month", "start_year", "is_active", "created_at"},
	"emi_payments":     {"id", "user_id", "emi_id", "month", "year", "amount", "created_at"},
	"transaction_tags": {"transaction_id", "tag_id"},
}

// Store implements datastore.Client on SQLite.
type Store struct {
	db *sql.DB
}

// New opens (and migrates) the database at dbPath, creating parent
// directories as needed.
func New(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Select(ctx context.Context, table string, q datastore.Query) ([]datastore.Row, error) {
	cols, err := columnsFor(table)
	if err != nil {
		return nil, err
	}

	where, args, err := buildWhere(table, q)
	if err != nil {
		return nil, err
	}
	query := "SELECT " + strings.Join(cols, ", ") + " FROM " + table + where
	if q.OrderBy != "" {
		if !hasColumn(table, q.OrderBy) {
			return nil, fmt.Errorf("unknown order column %q on %s", q.OrderBy, table)
		}
		query += " ORDER BY " + q.OrderBy
		if q.Desc {
			query += " DESC"
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeErr("select "+table, err)
	}
	defer rows.Close()

	return scanRows(rows, cols)
}

func (s *Store) Insert(ctx context.Context, table string, in []datastore.Row) ([]datastore.Row, error) {
	if _, err := columnsFor(table); err != nil {
		return nil, err
	}

	out := make([]datastore.Row, 0, len(in))
	for _, row := range in {
		stored := cloneRow(row)
		fillGenerated(stored)

		cols := sortedKeys(stored)
		for _, c := range cols {
			if !hasColumn(table, c) {
				return nil, fmt.Errorf("unknown column %q on %s", c, table)
			}
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
		args := make([]any, 0, len(cols))
		for _, c := range cols {
			args = append(args, toDBValue(stored[c]))
		}

		query := "INSERT INTO " + table + " (" + strings.Join(cols, ", ") + ") VALUES (" + placeholders + ")"
		if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
			return nil, storeErr("insert "+table, err)
		}
		out = append(out, stored)
	}
	return out, nil
}

func (s *Store) Update(ctx context.Context, table string, q datastore.Query, patch datastore.Row) ([]datastore.Row, error) {
	if !hasColumn(table, "id") {
		return nil, fmt.Errorf("table %s does not support update", table)
	}

	// Select ids first so the updated rows can be returned even when the
	// patch makes them stop matching q (e.g. is_settled false -> true).
	where, args, err := buildWhere(table, q)
	if err != nil {
		return nil, err
	}
	idRows, err := s.db.QueryContext(ctx, "SELECT id FROM "+table+where, args...)
	if err != nil {
		return nil, storeErr("update "+table, err)
	}
	var ids []any
	for idRows.Next() {
		var id string
		if err := idRows.Scan(&id); err != nil {
			idRows.Close()
			return nil, storeErr("update "+table, err)
		}
		ids = append(ids, id)
	}
	idRows.Close()
	if err := idRows.Err(); err != nil {
		return nil, storeErr("update "+table, err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	setCols := sortedKeys(patch)
	sets := make([]string, 0, len(setCols))
	setArgs := make([]any, 0, len(setCols))
	for _, c := range setCols {
		if !hasColumn(table, c) {
			return nil, fmt.Errorf("unknown column %q on %s", c, table)
		}
		sets = append(sets, c+" = ?")
		setArgs = append(setArgs, toDBValue(patch[c]))
	}
	inClause := " WHERE id IN (" + strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ") + ")"
	if _, err := s.db.ExecContext(ctx, "UPDATE "+table+" SET "+strings.Join(sets, ", ")+inClause, append(setArgs, ids...)...); err != nil {
		return nil, storeErr("update "+table, err)
	}

	return s.Select(ctx, table, datastore.Query{In: map[string][]any{"id": ids}})
}

func (s *Store) Upsert(ctx context.Context, table string, row datastore.Row, conflictCols []string) (datastore.Row, error) {
	if _, err := columnsFor(table); err != nil {
		return nil, err
	}
	if len(conflictCols) == 0 {
		rows, err := s.Insert(ctx, table, []datastore.Row{row})
		if err != nil {
			return nil, err
		}
		return rows[0], nil
	}

	stored := cloneRow(row)
	fillGenerated(stored)

	cols := sortedKeys(stored)
	args := make([]any, 0, len(cols))
	for _, c := range cols {
		if !hasColumn(table, c) {
			return nil, fmt.Errorf("unknown column %q on %s", c, table)
		}
		args = append(args, toDBValue(stored[c]))
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")

	var updates []string
	for _, c := range cols {
		if c == "id" || c == "created_at" || contains(conflictCols, c) {
			continue
		}
		updates = append(updates, c+" = excluded."+c)
	}
	query := "INSERT INTO " + table + " (" + strings.Join(cols, ", ") + ") VALUES (" + placeholders + ")" +
		" ON CONFLICT(" + strings.Join(conflictCols, ", ") + ") DO UPDATE SET " + strings.Join(updates, ", ")
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return nil, storeErr("upsert "+table, err)
	}

	// Re-read by the conflict key so the caller sees the surviving row.
	eq := make(map[string]any, len(conflictCols))
	for _, c := range conflictCols {
		eq[c] = stored[c]
	}
	rows, err := s.Select(ctx, table, datastore.Query{Eq: eq})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, storeErr("upsert "+table, sql.ErrNoRows)
	}
	return rows[0], nil
}

func (s *Store) Delete(ctx context.Context, table string, q datastore.Query) error {
	if _, err := columnsFor(table); err != nil {
		return err
	}
	where, args, err := buildWhere(table, q)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table+where, args...); err != nil {
		return storeErr("delete "+table, err)
	}
	return nil
}

func columnsFor(table string) ([]string, error) {
	cols, ok := tableColumns[table]
	if !ok {
		return nil, fmt.Errorf("unknown table %q", table)
	}
	return cols, nil
}

func hasColumn(table, col string) bool {
	for _, c := range tableColumns[table] {
		if c == col {
			return true
		}
	}
	return false
}

func buildWhere(table string, q datastore.Query) (string, []any, error) {
	var conds []string
	var args []any

	appendCond := func(col, op string, v any) error {
		if !hasColumn(table, col) {
			return fmt.Errorf("unknown filter column %q on %s", col, table)
		}
		conds = append(conds, col+" "+op+" ?")
		args = append(args, toDBValue(v))
		return nil
	}

	for _, col := range sortedKeys(q.Eq) {
		if err := appendCond(col, "=", q.Eq[col]); err != nil {
			return "", nil, err
		}
	}
	for _, col := range sortedAnyKeys(q.In) {
		set := q.In[col]
		if !hasColumn(table, col) {
			return "", nil, fmt.Errorf("unknown filter column %q on %s", col, table)
		}
		if len(set) == 0 {
			conds = append(conds, "1 = 0")
			continue
		}
		conds = append(conds, col+" IN ("+strings.TrimSuffix(strings.Repeat("?, ", len(set)), ", ")+")")
		for _, v := range set {
			args = append(args, toDBValue(v))
		}
	}
	for _, col := range sortedKeys(q.Gte) {
		if err := appendCond(col, ">=", q.Gte[col]); err != nil {
			return "", nil, err
		}
	}

	if len(conds) == 0 {
		return "", nil, nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args, nil
}

func scanRows(rows *sql.Rows, cols []string) ([]datastore.Row, error) {
	var out []datastore.Row
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, storeErr("scan", err)
		}
		row := make(datastore.Row, len(cols))
		for i, c := range cols {
			row[c] = normalize(vals[i])
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate", err)
	}
	return out, nil
}

// normalize maps driver values to the Row vocabulary (string, int64,
// float64, bool, nil).
func normalize(v any) any {
	switch n := v.(type) {
	case []byte:
		return string(n)
	default:
		return v
	}
}

func toDBValue(v any) any {
	switch b := v.(type) {
	case bool:
		if b {
			return int64(1)
		}
		return int64(0)
	}
	return v
}

func fillGenerated(row datastore.Row) {
	if v, ok := row["id"]; ok && v == "" {
		row["id"] = uuid.New().String()
	}
	if v, ok := row["created_at"]; ok && v == "" {
		row["created_at"] = nowUTC()
	}
}

func cloneRow(row datastore.Row) datastore.Row {
	out := make(datastore.Row, len(row))
	for k, v := range row {
		out[k] = v
	}
	return out
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedAnyKeys(m map[string][]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

// storeErr maps driver failures to the typed error kinds the engines expect.
func storeErr(op string, err error) error {
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		table := op
		if i := strings.LastIndex(op, " "); i >= 0 {
			table = op[i+1:]
		}
		return &core.ConflictError{Table: table, Key: err.Error()}
	}
	return &core.TransportError{Op: op, Err: err}
}

func nowUTC() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
