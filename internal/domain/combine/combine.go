// Package combine row-concatenates per-cycle tables into one combined
// table per category.
package combine

import (
	table "github.com/simonaseno/nhanes/internal/domain/table"
)

// Stack concatenates tables row-wise in input order. The output column
// set is the union of all input columns, ordered by first appearance;
// cells for columns a table lacks read as null. A column's declared
// kind follows the first table that carries it. Stacking nothing, or
// only empty tables, yields an empty table rather than an error.
func Stack(tables []*table.Table) *table.Table {
	names := make([]string, 0)
	kinds := make(map[string]table.Kind)
	rows := 0
	for _, t := range tables {
		rows += t.NumRows()
		for _, name := range t.Names() {
			if _, seen := kinds[name]; seen {
				continue
			}
			col, _ := t.Column(name)
			kinds[name] = col.Kind
			names = append(names, name)
		}
	}

	cols := make([]table.Column, 0, len(names))
	for _, name := range names {
		cells := make([]table.Value, 0, rows)
		for _, t := range tables {
			if col, ok := t.Column(name); ok {
				cells = append(cells, col.Cells...)
				continue
			}
			cells = append(cells, make([]table.Value, t.NumRows())...)
		}
		cols = append(cols, table.Column{Name: name, Kind: kinds[name], Cells: cells})
	}

	out, err := table.New(cols...)
	if err != nil {
		// Unreachable: the union loop deduplicates names and aligns lengths.
		panic(err)
	}
	return out
}
