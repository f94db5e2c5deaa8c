// Package join implements the inner join of the two combined category
// tables on the shared participant identifier.
package join

import (
	"fmt"

	table "github.com/simonaseno/nhanes/internal/domain/table"
)

// defaultRightSuffix disambiguates right-side columns whose names
// collide with left-side columns.
const defaultRightSuffix = "_right"

// Option applies a configuration option to a join.
type Option func(*joiner)

// WithRightSuffix sets the suffix appended to right-side column names
// that collide with left-side names other than the key.
func WithRightSuffix(suffix string) Option {
	return func(j *joiner) {
		if suffix != "" {
			j.rightSuffix = suffix
		}
	}
}

type joiner struct {
	rightSuffix string
}

// Inner keeps only rows whose key value appears on both sides. Left
// rows are scanned in order and each emits one output row per matching
// right row, so duplicated keys multiply. Null keys never match, and a
// NaN key never matches anything, itself included. Output columns are
// every left column followed by the right table's non-key columns; a
// right column colliding with a left name is renamed with the
// configured suffix. Zero matches yields an empty table, not an error.
func Inner(left, right *table.Table, key string, opts ...Option) (*table.Table, error) {
	j := &joiner{rightSuffix: defaultRightSuffix}
	for _, opt := range opts {
		opt(j)
	}

	if key == "" {
		return nil, fmt.Errorf("%w: empty column name", ErrInvalidKey)
	}
	leftKey, ok := left.Column(key)
	if !ok {
		return nil, fmt.Errorf("%w: %q not in left table", ErrKeyColumn, key)
	}
	rightKey, ok := right.Column(key)
	if !ok {
		return nil, fmt.Errorf("%w: %q not in right table", ErrKeyColumn, key)
	}

	byKey := make(map[table.Value][]int, len(rightKey.Cells))
	for row, v := range rightKey.Cells {
		if v.IsNull() {
			continue
		}
		byKey[v] = append(byKey[v], row)
	}

	var leftRows, rightRows []int
	for row, v := range leftKey.Cells {
		if v.IsNull() {
			continue
		}
		for _, match := range byKey[v] {
			leftRows = append(leftRows, row)
			rightRows = append(rightRows, match)
		}
	}

	cols := make([]table.Column, 0, left.NumCols()+right.NumCols()-1)
	for i := 0; i < left.NumCols(); i++ {
		cols = append(cols, pick(left.ColumnAt(i), leftRows))
	}
	for i := 0; i < right.NumCols(); i++ {
		src := right.ColumnAt(i)
		if src.Name == key {
			continue
		}
		col := pick(src, rightRows)
		if left.Has(col.Name) {
			col.Name += j.rightSuffix
		}
		cols = append(cols, col)
	}

	out, err := table.New(cols...)
	if err != nil {
		return nil, fmt.Errorf("assembling joined table: %w", err)
	}
	return out, nil
}

// pick projects the source column onto the given row indices.
func pick(src table.Column, rows []int) table.Column {
	cells := make([]table.Value, len(rows))
	for i, row := range rows {
		cells[i] = src.Cells[row]
	}
	return table.Column{Name: src.Name, Kind: src.Kind, Cells: cells}
}
