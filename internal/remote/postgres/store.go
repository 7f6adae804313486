// Package postgres talks to the remote tables over a direct PostgreSQL connection.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/finsync/internal/remote"
)

// batchSize keeps a single INSERT well under the 65535 bind parameter limit.
const batchSize = 500

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func quote(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func quoteAll(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = quote(n)
	}

	return out
}

func selectQuery(table remote.Table) string {
	var b strings.Builder

	b.WriteString("SELECT ")
	b.WriteString(strings.Join(quoteAll(table.ColumnNames()), ", "))
	b.WriteString(" FROM ")
	b.WriteString(quote(table.Name))
	b.WriteString(" WHERE ")
	b.WriteString(quote(remote.UserIDColumn))
	b.WriteString(" = $1")

	if len(table.OrderBy) > 0 {
		parts := make([]string, len(table.OrderBy))
		for i, o := range table.OrderBy {
			parts[i] = quote(o.Column)
			if o.Desc {
				parts[i] += " DESC"
			}
		}

		b.WriteString(" ORDER BY ")
		b.WriteString(strings.Join(parts, ", "))
	}

	return b.String()
}

// upsertQuery builds a multi-row INSERT for n rows that overwrites every
// non-key column on conflict.
func upsertQuery(table remote.Table, onConflict string, n int) string {
	cols := table.ColumnNames()

	var b strings.Builder

	b.WriteString("INSERT INTO ")
	b.WriteString(quote(table.Name))
	b.WriteString(" (")
	b.WriteString(strings.Join(quoteAll(cols), ", "))
	b.WriteString(") VALUES ")

	arg := 1

	for r := range n {
		if r > 0 {
			b.WriteString(", ")
		}

		b.WriteString("(")

		for c := range cols {
			if c > 0 {
				b.WriteString(", ")
			}

			fmt.Fprintf(&b, "$%d", arg)
			arg++
		}

		b.WriteString(")")
	}

	var sets []string

	for _, c := range cols {
		if c == onConflict {
			continue
		}

		sets = append(sets, quote(c)+" = EXCLUDED."+quote(c))
	}

	b.WriteString(" ON CONFLICT (")
	b.WriteString(quote(onConflict))
	b.WriteString(")")

	if len(sets) == 0 {
		b.WriteString(" DO NOTHING")
	} else {
		b.WriteString(" DO UPDATE SET ")
		b.WriteString(strings.Join(sets, ", "))
	}

	return b.String()
}

func scanDest(c remote.Column) any {
	switch c.Type {
	case remote.TypeNumeric:
		return &decimal.NullDecimal{}
	case remote.TypeBool:
		return &sql.NullBool{}
	case remote.TypeTimestamp:
		return &sql.NullTime{}
	default:
		return &sql.NullString{}
	}
}

// scannedValue unwraps a scanDest pointer, mapping SQL NULL to nil.
func scannedValue(dest any) any {
	switch v := dest.(type) {
	case *decimal.NullDecimal:
		if v.Valid {
			return v.Decimal
		}
	case *sql.NullBool:
		if v.Valid {
			return v.Bool
		}
	case *sql.NullTime:
		if v.Valid {
			return v.Time.UTC()
		}
	case *sql.NullString:
		if v.Valid {
			return v.String
		}
	}

	return nil
}

func (s *Store) Select(ctx context.Context, table remote.Table, userID string) ([]remote.Row, error) {
	rows, err := s.db.QueryContext(ctx, selectQuery(table), userID)
	if err != nil {
		return nil, fmt.Errorf("selecting %s: %w", table.Name, mapError(table.Name, err))
	}
	defer rows.Close()

	var out []remote.Row

	for rows.Next() {
		dest := make([]any, len(table.Columns))
		for i, c := range table.Columns {
			dest[i] = scanDest(c)
		}

		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scanning %s: %w", table.Name, err)
		}

		row := make(remote.Row, len(table.Columns))
		for i, c := range table.Columns {
			row[c.Name] = scannedValue(dest[i])
		}

		out = append(out, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating %s: %w", table.Name, mapError(table.Name, err))
	}

	return out, nil
}

// Upsert writes rows in one database transaction.
func (s *Store) Upsert(ctx context.Context, table remote.Table, rows []remote.Row, onConflict string) error {
	if len(rows) == 0 {
		return nil
	}

	if _, ok := table.Column(onConflict); !ok {
		return fmt.Errorf("upserting %s: unknown conflict column %q", table.Name, onConflict)
	}

	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning upsert: %w", mapError(table.Name, err))
	}
	defer dbTx.Rollback()

	cols := table.ColumnNames()

	for start := 0; start < len(rows); start += batchSize {
		batch := rows[start:min(start+batchSize, len(rows))]

		args := make([]any, 0, len(batch)*len(cols))
		for _, r := range batch {
			for _, c := range cols {
				args = append(args, r[c])
			}
		}

		if _, err := dbTx.ExecContext(ctx, upsertQuery(table, onConflict, len(batch)), args...); err != nil {
			return fmt.Errorf("upserting %s: %w", table.Name, mapError(table.Name, err))
		}
	}

	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("committing upsert: %w", mapError(table.Name, err))
	}

	return nil
}

func mapError(table string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return remote.NewError(table, pgErr.Code, 0, pgErr.Message)
	}

	return err
}
