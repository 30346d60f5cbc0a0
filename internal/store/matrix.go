package store

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strconv"

	"github.com/abhisek/predinator/internal/answer"
	"github.com/abhisek/predinator/internal/matrix"
)

// MatrixRepo stores the subject matrix in the subjects, attributes and
// subject_values tables. It implements matrix.Store.
type MatrixRepo struct {
	db *sql.DB
}

var _ matrix.Store = (*MatrixRepo)(nil)

// Load rebuilds the table in stored row and column order. Values that are NULL
// or not numeric load as unknown. An empty database is ErrMatrixUnavailable.
func (r *MatrixRepo) Load(ctx context.Context) (*matrix.Table, error) {
	cols, err := r.strings(ctx, `SELECT attribute_id FROM attributes ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("load attributes: %w", err)
	}
	names, err := r.strings(ctx, `SELECT name FROM subjects ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("load subjects: %w", err)
	}
	if len(cols) == 0 && len(names) == 0 {
		return nil, matrix.ErrMatrixUnavailable
	}

	t := matrix.NewTable(cols...)
	for _, n := range names {
		if err := t.AddRow(n, nil); err != nil {
			return nil, err
		}
	}

	rows, err := r.db.QueryContext(ctx, `SELECT subject, attribute_id, value FROM subject_values`)
	if err != nil {
		return nil, fmt.Errorf("load values: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			subject, attr string
			raw           any
		)
		if err := rows.Scan(&subject, &attr, &raw); err != nil {
			return nil, fmt.Errorf("scan value: %w", err)
		}
		if err := t.Set(subject, attr, coerce(raw)); err != nil {
			return nil, err
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load values: %w", err)
	}
	return t, nil
}

// Save replaces the stored matrix with t in a single transaction.
func (r *MatrixRepo) Save(ctx context.Context, t *matrix.Table) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{
		`DELETE FROM subject_values`,
		`DELETE FROM subjects`,
		`DELETE FROM attributes`,
	} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("clear matrix: %w", err)
		}
	}

	cols := t.Columns()
	for i, c := range cols {
		if _, err := tx.ExecContext(ctx, `INSERT INTO attributes (attribute_id, position) VALUES (?, ?)`, c, i); err != nil {
			return fmt.Errorf("insert attribute %s: %w", c, err)
		}
	}

	insert, err := tx.PrepareContext(ctx, `INSERT INTO subject_values (subject, attribute_id, value) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer insert.Close()

	for i, name := range t.Names() {
		if _, err := tx.ExecContext(ctx, `INSERT INTO subjects (name, position) VALUES (?, ?)`, name, i); err != nil {
			return fmt.Errorf("insert subject %s: %w", name, err)
		}
		for _, c := range cols {
			v, _ := t.Get(name, c)
			var val any
			if !v.IsUnknown() {
				val = v.Float()
			}
			if _, err := insert.ExecContext(ctx, name, c, val); err != nil {
				return fmt.Errorf("insert value %s/%s: %w", name, c, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (r *MatrixRepo) strings(ctx context.Context, query string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// coerce converts a stored cell to an answer value; anything not numeric is
// unknown.
func coerce(raw any) answer.Value {
	var f float64
	switch v := raw.(type) {
	case float64:
		f = v
	case int64:
		f = float64(v)
	case string:
		p, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return answer.Unknown
		}
		f = p
	case []byte:
		p, err := strconv.ParseFloat(string(v), 64)
		if err != nil {
			return answer.Unknown
		}
		f = p
	default:
		return answer.Unknown
	}
	if math.IsInf(f, 0) {
		return answer.Unknown
	}
	return answer.FromFloat(f)
}
