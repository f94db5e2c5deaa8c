package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/simonaseno/nhanes/internal/domain/table"
)

// recordsTable is the single table holding the persisted rows. A
// column-less source table is persisted as a database without it.
const recordsTable = "records"

// writeDB writes tbl into a fresh SQLite database at path. The file
// is staged under a partial name and renamed into place once fully
// written, so readers never observe a half-built database.
func writeDB(ctx context.Context, tbl *table.Table, path string) error {
	tmp := path + partialSuffix
	if err := os.Remove(tmp); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("clearing stale partial: %w", err)
	}

	conn, err := sql.Open("sqlite", tmp)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}

	if err := fillDB(ctx, conn, tbl); err != nil {
		_ = conn.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := conn.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("closing database: %w", err)
	}

	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("moving database into place: %w", err)
	}
	return nil
}

func fillDB(ctx context.Context, conn *sql.DB, tbl *table.Table) error {
	// Stamp the header first so even a column-less table produces a
	// well-formed database file.
	if _, err := conn.ExecContext(ctx, "PRAGMA user_version = 1"); err != nil {
		return fmt.Errorf("stamping database: %w", err)
	}
	if tbl.NumCols() == 0 {
		return nil
	}

	names := tbl.Names()
	quoted := make([]string, len(names))
	defs := make([]string, len(names))
	marks := make([]string, len(names))
	for i, name := range names {
		quoted[i] = quoteIdent(name)
		defs[i] = quoted[i] + " " + sqlType(tbl.ColumnAt(i).Kind)
		marks[i] = "?"
	}

	create := fmt.Sprintf("CREATE TABLE %s (%s)", recordsTable, strings.Join(defs, ", "))
	if _, err := conn.ExecContext(ctx, create); err != nil {
		return fmt.Errorf("creating records table: %w", err)
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}

	insert := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		recordsTable, strings.Join(quoted, ", "), strings.Join(marks, ", "))
	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("preparing insert: %w", err)
	}

	args := make([]any, len(names))
	for row := 0; row < tbl.NumRows(); row++ {
		for i := range names {
			args[i] = sqlArg(tbl.ColumnAt(i).Cells[row])
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			_ = stmt.Close()
			_ = tx.Rollback()
			return fmt.Errorf("inserting row %d: %w", row, err)
		}
	}

	if err := stmt.Close(); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("closing insert statement: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing rows: %w", err)
	}
	return nil
}

// readDB reads the records table back from the database at path,
// preserving the persisted row and column order.
func readDB(ctx context.Context, path string) (*table.Table, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	defer conn.Close()

	var present int
	err = conn.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?",
		recordsTable,
	).Scan(&present)
	if err != nil {
		return nil, fmt.Errorf("inspecting database: %w", err)
	}
	if present == 0 {
		return table.New()
	}

	rows, err := conn.QueryContext(ctx,
		fmt.Sprintf("SELECT * FROM %s ORDER BY rowid", recordsTable))
	if err != nil {
		return nil, fmt.Errorf("querying records: %w", err)
	}
	defer rows.Close()

	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("reading column types: %w", err)
	}

	cols := make([]table.Column, len(types))
	for i, ct := range types {
		kind := table.KindString
		if strings.EqualFold(ct.DatabaseTypeName(), "REAL") {
			kind = table.KindNumeric
		}
		cols[i] = table.Column{Name: ct.Name(), Kind: kind}
	}

	nums := make([]sql.NullFloat64, len(cols))
	strs := make([]sql.NullString, len(cols))
	targets := make([]any, len(cols))
	for i := range cols {
		if cols[i].Kind == table.KindNumeric {
			targets[i] = &nums[i]
		} else {
			targets[i] = &strs[i]
		}
	}

	for rows.Next() {
		if err := rows.Scan(targets...); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		for i := range cols {
			cols[i].Cells = append(cols[i].Cells, cellFrom(cols[i].Kind, nums[i], strs[i]))
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}

	tbl, err := table.New(cols...)
	if err != nil {
		return nil, fmt.Errorf("assembling table: %w", err)
	}
	return tbl, nil
}

// sqlArg converts a cell into a driver argument. Null cells become
// SQL NULL.
func sqlArg(v table.Value) any {
	if f, ok := v.Float(); ok {
		return f
	}
	if s, ok := v.Text(); ok {
		return s
	}
	return nil
}

func cellFrom(kind table.Kind, num sql.NullFloat64, str sql.NullString) table.Value {
	switch {
	case kind == table.KindNumeric && num.Valid:
		return table.Num(num.Float64)
	case kind != table.KindNumeric && str.Valid:
		return table.Str(str.String)
	default:
		return table.Null()
	}
}

// sqlType maps a column kind to its SQLite storage type. Null-kind
// columns are stored as REAL, matching the transport writer.
func sqlType(k table.Kind) string {
	if k == table.KindString {
		return "TEXT"
	}
	return "REAL"
}

// quoteIdent quotes a column name for use as a SQL identifier.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
