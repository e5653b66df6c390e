package sqlite

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/AustralianBioCommons/gen3metadata/internal/domain/model"
	"github.com/AustralianBioCommons/gen3metadata/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.TableStore = (*TableRepo)(nil)

// rowColumn records the position of each row in its source data array. It is
// renamed when a data column already uses the name.
const rowColumn = "_row"

// TableRepo is the SQLite implementation of the TableStore port. Each dataset
// key owns one table of TEXT columns that is replaced on every save.
type TableRepo struct {
	db    *DB
	now   func() time.Time
	newID func() string
}

// NewTableRepo creates a new TableRepo backed by the given DB.
func NewTableRepo(db *DB) *TableRepo {
	return &TableRepo{
		db:    db,
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
}

// TableName returns the SQLite table that holds the export of key. The
// readable part is lowercased with anything outside [a-z0-9_] replaced, so a
// suffix derived from the exact key keeps keys such as "a-b" and "a_b" apart.
func TableName(key model.DatasetKey) string {
	var b strings.Builder
	b.WriteString("gen3_")
	for _, r := range strings.ToLower(key.Program + "_" + key.Project + "_" + key.NodeLabel) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	sum := uuid.NewSHA1(uuid.NameSpaceURL, []byte(key.String()))
	b.WriteByte('_')
	b.WriteString(hex.EncodeToString(sum[:4]))
	return b.String()
}

// storedColumns maps table columns to SQLite column names. SQLite compares
// identifiers case-insensitively, so a name that folds onto an earlier one
// gets a numeric suffix. The row column is picked last so it never takes a
// data column's name.
func storedColumns(columns []string) (row string, data []string) {
	seen := make(map[string]bool, len(columns)+1)
	claim := func(name string) string {
		candidate := name
		for n := 2; seen[strings.ToLower(candidate)]; n++ {
			candidate = fmt.Sprintf("%s_%d", name, n)
		}
		seen[strings.ToLower(candidate)] = true
		return candidate
	}

	data = make([]string, len(columns))
	for i, col := range columns {
		data[i] = claim(col)
	}
	return claim(rowColumn), data
}

// SaveTable drops and recreates the table for key, inserts every row and
// appends an entry to the export ledger, all in one transaction.
func (r *TableRepo) SaveTable(ctx context.Context, key model.DatasetKey, table *model.Table) (string, error) {
	name := TableName(key)

	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback after commit is a no-op.

	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+quoteIdent(name)); err != nil {
		return "", fmt.Errorf("drop table %s: %w", name, err)
	}

	rowCol, dataCols := storedColumns(table.Columns)

	defs := []string{quoteIdent(rowCol) + " INTEGER NOT NULL"}
	for _, col := range dataCols {
		defs = append(defs, quoteIdent(col)+" TEXT")
	}
	createQuery := fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(name), strings.Join(defs, ", "))
	if _, err := tx.ExecContext(ctx, createQuery); err != nil {
		return "", fmt.Errorf("create table %s: %w", name, err)
	}

	if len(table.Rows) > 0 {
		cols := []string{quoteIdent(rowCol)}
		for _, col := range dataCols {
			cols = append(cols, quoteIdent(col))
		}
		insertQuery := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
			quoteIdent(name), strings.Join(cols, ", "), strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", "))

		stmt, err := tx.PrepareContext(ctx, insertQuery)
		if err != nil {
			return "", fmt.Errorf("prepare insert into %s: %w", name, err)
		}
		defer stmt.Close()

		for i, row := range table.Rows {
			args := make([]any, len(cols))
			args[0] = i
			for j := range table.Columns {
				var v any
				if j < len(row) {
					v = row[j]
				}
				args[j+1] = cellText(v)
			}
			if _, err := stmt.ExecContext(ctx, args...); err != nil {
				return "", fmt.Errorf("insert row %d into %s: %w", i, name, err)
			}
		}
	}

	const ledgerQuery = `INSERT INTO exports (id, program, project, node_label, table_name, row_count, exported_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	id := r.newID()
	exportedAt := r.now().UTC().Format(time.RFC3339Nano)
	if _, err := tx.ExecContext(ctx, ledgerQuery,
		id, key.Program, key.Project, key.NodeLabel, name, table.Len(), exportedAt,
	); err != nil {
		return "", fmt.Errorf("record export of %s: %w", key, err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit export of %s: %w", key, err)
	}

	return id, nil
}

// ListExports returns the export ledger, most recent first.
func (r *TableRepo) ListExports(ctx context.Context) ([]model.ExportRecord, error) {
	const query = `SELECT id, program, project, node_label, table_name, row_count, exported_at
		FROM exports ORDER BY seq DESC`

	rows, err := r.db.Reader.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list exports: %w", err)
	}
	defer rows.Close()

	var records []model.ExportRecord
	for rows.Next() {
		rec, err := scanExport(rows)
		if err != nil {
			return nil, fmt.Errorf("scan export: %w", err)
		}
		records = append(records, *rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate exports: %w", err)
	}

	return records, nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanExport(s scanner) (*model.ExportRecord, error) {
	var rec model.ExportRecord
	var exportedAt string

	err := s.Scan(
		&rec.ID, &rec.Key.Program, &rec.Key.Project, &rec.Key.NodeLabel,
		&rec.TableName, &rec.RowCount, &exportedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.ExportedAt, err = parseTime(exportedAt)
	if err != nil {
		return nil, fmt.Errorf("parse exported_at: %w", err)
	}

	return &rec, nil
}

// cellText renders a flattened cell as SQLite TEXT, keeping nil as NULL.
func cellText(v any) any {
	if v == nil {
		return nil
	}
	return model.FormatCell(v)
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// parseTime tries the layouts the ledger has been written with.
func parseTime(s string) (time.Time, error) {
	formats := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
	}

	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized time format: %s", s)
}
