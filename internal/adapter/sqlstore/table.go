package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/serenize/snaker"

	"timeledger/internal/domain"
)

// table stores documents of type T as JSON bodies next to a few indexed
// columns used for field queries. Writes are single-row and version checked.
type table[T any] struct {
	db      *sql.DB
	dialect Dialect
	log     *slog.Logger

	name    string
	kind    string
	columns []string
	meta    func(T) (tenantID, id string, version int64)
	index   func(T) []any
	bump    func(T, int64) T
}

// filter matches a document field by its Go name, e.g. "EmployeeID".
type filter struct {
	field string
	value any
}

func (t *table[T]) get(ctx context.Context, tenantID, id string) (T, error) {
	var zero T
	var body string
	err := t.db.QueryRowContext(ctx,
		"SELECT body FROM "+t.name+" WHERE tenant_id = ? AND id = ?", tenantID, id,
	).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return zero, domain.NotFound(t.kind, id)
	}
	if err != nil {
		return zero, fmt.Errorf("%s: get %s: %w", t.name, id, err)
	}
	return t.decode(body)
}

// column maps a Go field name to its column, the way struct fields map to
// snake_case columns. Only indexed columns are queryable.
func (t *table[T]) column(field string) (string, error) {
	col := snaker.CamelToSnake(field)
	for _, c := range t.columns {
		if c == col {
			return col, nil
		}
	}
	return "", fmt.Errorf("%s: field %s is not queryable", t.name, field)
}

func (t *table[T]) query(ctx context.Context, tenantID string, filters ...filter) ([]T, error) {
	where := []string{"tenant_id = ?"}
	args := []any{tenantID}
	for _, f := range filters {
		col, err := t.column(f.field)
		if err != nil {
			return nil, err
		}
		where = append(where, col+" = ?")
		args = append(args, f.value)
	}
	q := "SELECT body FROM " + t.name + " WHERE " + strings.Join(where, " AND ") + " ORDER BY id"
	rows, err := t.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: query: %w", t.name, err)
	}
	defer rows.Close()

	out := []T{}
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("%s: scan: %w", t.name, err)
		}
		doc, err := t.decode(body)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

func (t *table[T]) put(ctx context.Context, doc T) (T, error) {
	tenantID, id, version := t.meta(doc)
	if tenantID == "" || id == "" {
		return doc, fmt.Errorf("%s: tenant and id are required", t.name)
	}
	next := t.bump(doc, version+1)
	body, err := json.Marshal(next)
	if err != nil {
		return doc, fmt.Errorf("%s: encode %s: %w", t.name, id, err)
	}
	idx := t.index(next)

	if version == 0 {
		cols := append([]string{"tenant_id", "id", "version"}, t.columns...)
		cols = append(cols, "body")
		args := append([]any{tenantID, id, version + 1}, idx...)
		args = append(args, string(body))
		q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
			t.name, strings.Join(cols, ", "), placeholders(len(cols)))
		if _, err := t.db.ExecContext(ctx, q, args...); err != nil {
			if t.dialect.isDuplicate(err) {
				return doc, domain.StaleWrite(t.kind, id, version)
			}
			return doc, fmt.Errorf("%s: insert %s: %w", t.name, id, err)
		}
		t.log.Debug("document inserted", slog.String("table", t.name), slog.String("id", id))
		return next, nil
	}

	sets := []string{"version = ?"}
	args := []any{version + 1}
	for i, c := range t.columns {
		sets = append(sets, c+" = ?")
		args = append(args, idx[i])
	}
	sets = append(sets, "body = ?")
	args = append(args, string(body), tenantID, id, version)
	q := "UPDATE " + t.name + " SET " + strings.Join(sets, ", ") +
		" WHERE tenant_id = ? AND id = ? AND version = ?"
	res, err := t.db.ExecContext(ctx, q, args...)
	if err != nil {
		return doc, fmt.Errorf("%s: update %s: %w", t.name, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return doc, fmt.Errorf("%s: update %s: %w", t.name, id, err)
	}
	if n == 0 {
		return doc, t.missingOrStale(ctx, tenantID, id, version)
	}
	t.log.Debug("document updated", slog.String("table", t.name), slog.String("id", id), slog.Int64("version", version+1))
	return next, nil
}

func (t *table[T]) delete(ctx context.Context, tenantID, id string, version int64) error {
	res, err := t.db.ExecContext(ctx,
		"DELETE FROM "+t.name+" WHERE tenant_id = ? AND id = ? AND version = ?", tenantID, id, version)
	if err != nil {
		return fmt.Errorf("%s: delete %s: %w", t.name, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: delete %s: %w", t.name, id, err)
	}
	if n == 0 {
		return t.missingOrStale(ctx, tenantID, id, version)
	}
	t.log.Debug("document deleted", slog.String("table", t.name), slog.String("id", id))
	return nil
}

func (t *table[T]) missingOrStale(ctx context.Context, tenantID, id string, version int64) error {
	var count int
	err := t.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM "+t.name+" WHERE tenant_id = ? AND id = ?", tenantID, id,
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("%s: lookup %s: %w", t.name, id, err)
	}
	if count == 0 {
		return domain.NotFound(t.kind, id)
	}
	return domain.StaleWrite(t.kind, id, version)
}

func (t *table[T]) decode(body string) (T, error) {
	var doc T
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return doc, fmt.Errorf("%s: decode: %w", t.name, err)
	}
	return doc, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
