// Package table implements the column-oriented dataset model shared by
// the acquisition, concatenation, and join stages.
package table

import (
	"fmt"
	"strconv"
)

// Names of the provenance columns appended by Tagged.
const (
	CycleColumn      = "Cycle"
	SourceFileColumn = "SourceFile"
)

// Kind classifies the semantic type of a value or column.
type Kind uint8

// Value kinds. The zero Kind marks a null (absent) value.
const (
	KindNull Kind = iota
	KindNumeric
	KindString
)

// String returns a short human-readable kind name.
func (k Kind) String() string {
	switch k {
	case KindNumeric:
		return "numeric"
	case KindString:
		return "string"
	default:
		return "null"
	}
}

// Value is a single cell. The zero Value is null. Values are immutable
// and comparable, so they can serve directly as map keys; note that a
// NaN numeric never equals itself, which matches the join semantics of
// missing measurements.
type Value struct {
	kind Kind
	num  float64
	str  string
}

// Null returns the null value.
func Null() Value { return Value{} }

// Num returns a numeric value.
func Num(v float64) Value { return Value{kind: KindNumeric, num: v} }

// Str returns a string value.
func Str(s string) Value { return Value{kind: KindString, str: s} }

// Kind reports the value's kind.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether the value is absent.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Float returns the numeric payload; ok is false for non-numeric values.
func (v Value) Float() (float64, bool) {
	return v.num, v.kind == KindNumeric
}

// Text returns the string payload; ok is false for non-string values.
func (v Value) Text() (string, bool) {
	return v.str, v.kind == KindString
}

// String renders the value the way the delimited text artifacts do:
// null is empty, numerics use the shortest round-trip decimal form.
func (v Value) String() string {
	switch v.kind {
	case KindNumeric:
		return formatFloat(v.num)
	case KindString:
		return v.str
	default:
		return ""
	}
}

// Column is a named, ordered sequence of cells. Kind records the
// column's declared type; individual cells may still be null.
type Column struct {
	Name  string
	Kind  Kind
	Cells []Value
}

// Const builds a column of n identical cells.
func Const(name string, v Value, n int) Column {
	cells := make([]Value, n)
	for i := range cells {
		cells[i] = v
	}
	return Column{Name: name, Kind: v.Kind(), Cells: cells}
}

// Nulls builds an all-null column of n cells with the given declared kind.
func Nulls(name string, kind Kind, n int) Column {
	return Column{Name: name, Kind: kind, Cells: make([]Value, n)}
}

// Table is an ordered collection of equal-length columns aligned to an
// implicit row index. Tables are built once and treated as immutable by
// every downstream stage, so copies may share cell storage.
type Table struct {
	cols   []Column
	byName map[string]int
}

// New builds a table from the given columns. Column names must be
// non-empty and unique, and every column must have the same number of
// cells. The column slices are retained, not copied.
func New(cols ...Column) (*Table, error) {
	t := &Table{
		cols:   make([]Column, 0, len(cols)),
		byName: make(map[string]int, len(cols)),
	}
	for _, c := range cols {
		if err := t.AppendColumn(c); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// AppendColumn adds a column in last position, enforcing the name and
// row-alignment invariants.
func (t *Table) AppendColumn(c Column) error {
	if c.Name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidColumn)
	}
	if _, dup := t.byName[c.Name]; dup {
		return fmt.Errorf("%w: %q", ErrDuplicateColumn, c.Name)
	}
	if len(t.cols) > 0 && len(c.Cells) != t.NumRows() {
		return fmt.Errorf("%w: column %q has %d cells, table has %d rows",
			ErrColumnLength, c.Name, len(c.Cells), t.NumRows())
	}
	t.byName[c.Name] = len(t.cols)
	t.cols = append(t.cols, c)
	return nil
}

// NumRows returns the row count; a table with no columns has zero rows.
func (t *Table) NumRows() int {
	if len(t.cols) == 0 {
		return 0
	}
	return len(t.cols[0].Cells)
}

// NumCols returns the column count.
func (t *Table) NumCols() int { return len(t.cols) }

// Names returns the column names in table order.
func (t *Table) Names() []string {
	names := make([]string, len(t.cols))
	for i, c := range t.cols {
		names[i] = c.Name
	}
	return names
}

// Has reports whether the table contains the named column.
func (t *Table) Has(name string) bool {
	_, ok := t.byName[name]
	return ok
}

// Column returns the named column; ok is false when absent.
func (t *Table) Column(name string) (Column, bool) {
	i, ok := t.byName[name]
	if !ok {
		return Column{}, false
	}
	return t.cols[i], true
}

// ColumnAt returns the column at position i in table order.
func (t *Table) ColumnAt(i int) Column { return t.cols[i] }

// Cell returns the value at (row, name). Absent columns and
// out-of-range rows read as null.
func (t *Table) Cell(row int, name string) Value {
	i, ok := t.byName[name]
	if !ok || row < 0 || row >= t.NumRows() {
		return Null()
	}
	return t.cols[i].Cells[row]
}

// Tagged returns a copy of the table with two constant provenance
// columns, Cycle and SourceFile, in last position. Provenance columns
// already present are replaced. The receiver is not modified.
func (t *Table) Tagged(cycle, sourceFile string) *Table {
	out := &Table{
		cols:   make([]Column, 0, len(t.cols)+2),
		byName: make(map[string]int, len(t.cols)+2),
	}
	for _, c := range t.cols {
		if c.Name == CycleColumn || c.Name == SourceFileColumn {
			continue
		}
		out.byName[c.Name] = len(out.cols)
		out.cols = append(out.cols, c)
	}
	n := t.NumRows()
	for _, c := range []Column{
		Const(CycleColumn, Str(cycle), n),
		Const(SourceFileColumn, Str(sourceFile), n),
	} {
		out.byName[c.Name] = len(out.cols)
		out.cols = append(out.cols, c)
	}
	return out
}

// formatFloat renders the shortest decimal form that round-trips.
func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
