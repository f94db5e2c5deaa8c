package simulator

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/simonaseno/nhanes/internal/adapters/store"
	service "github.com/simonaseno/nhanes/internal/app"
	"github.com/simonaseno/nhanes/internal/domain/table"
	"github.com/simonaseno/nhanes/pkg/logger"
)

// Artifact base names written by the pipeline.
const (
	labBase    = "lab_combined"
	demoBase   = "demo_combined"
	mergedBase = "merged"
)

// Key column shared by every synthesized file.
const keyColumn = "SEQN"

// verifyArtifacts reloads the persisted artifacts and checks them
// against the synthesized survey.
func verifyArtifacts(ctx context.Context, world *World, report *service.RunReport, outputDir string, stats *Stats) error {
	logger.Get().Info(ctx, "verifying artifacts", logger.String("output_dir", outputDir))

	st := store.NewFileStore()
	lab, err := st.Load(ctx, filepath.Join(outputDir, labBase))
	if err != nil {
		return fmt.Errorf("load laboratory snapshot: %w", err)
	}
	demo, err := st.Load(ctx, filepath.Join(outputDir, demoBase))
	if err != nil {
		return fmt.Errorf("load demographics snapshot: %w", err)
	}
	merged, err := st.Load(ctx, filepath.Join(outputDir, mergedBase))
	if err != nil {
		return fmt.Errorf("load merged table: %w", err)
	}

	checks := []struct {
		name string
		err  error
	}{
		{"lab row additivity", checkRowAdditivity(lab, world.Lab)},
		{"demo row additivity", checkRowAdditivity(demo, world.Demo)},
		{"lab cycle counts", checkCycleCounts(lab, world.Lab)},
		{"demo cycle counts", checkCycleCounts(demo, world.Demo)},
		{"lab column order", checkColumnOrder(lab, world.Lab)},
		{"demo column order", checkColumnOrder(demo, world.Demo)},
		{"lab null fill", checkNullFill(lab, world.Lab)},
		{"join scope", checkJoinScope(lab, demo, merged)},
		{"row fidelity", checkRowFidelity(world, merged)},
		{"report agreement", checkReportAgreement(report, lab, demo, merged)},
	}

	var failed error
	for _, check := range checks {
		if check.err != nil {
			stats.ChecksFailed++
			logger.Get().Error(ctx, "check failed",
				logger.String("check", check.name),
				logger.Error(check.err))
			failed = fmt.Errorf("%s: %w", check.name, check.err)
			continue
		}
		stats.ChecksPassed++
		logger.Get().Debug(ctx, "check passed", logger.String("check", check.name))
	}
	if failed != nil {
		return failed
	}

	logger.Get().Info(ctx, "all checks passed", logger.Int("checks", len(checks)))
	return nil
}

// checkRowAdditivity confirms the combined table holds exactly the
// rows of the files the origin actually served.
func checkRowAdditivity(combined *table.Table, files []CycleFile) error {
	want := 0
	for _, f := range files {
		if f.Fail {
			continue
		}
		want += f.Table.NumRows()
	}
	if combined.NumRows() != want {
		return fmt.Errorf("combined has %d rows, surviving sources total %d", combined.NumRows(), want)
	}
	return nil
}

// checkCycleCounts confirms the provenance labels partition the
// combined rows the same way the source files do.
func checkCycleCounts(combined *table.Table, files []CycleFile) error {
	want := map[string]int{}
	for _, f := range files {
		if f.Fail {
			continue
		}
		want[f.Entry.Cycle] += f.Table.NumRows()
	}

	col, ok := combined.Column(table.CycleColumn)
	if !ok {
		return fmt.Errorf("missing %s column", table.CycleColumn)
	}
	got := map[string]int{}
	for _, cell := range col.Cells {
		label, isText := cell.Text()
		if !isText {
			return fmt.Errorf("non-text cycle label %v", cell)
		}
		got[label]++
	}

	for label, count := range want {
		if got[label] != count {
			return fmt.Errorf("cycle %s has %d rows, want %d", label, got[label], count)
		}
	}
	for label, count := range got {
		if want[label] != count {
			return fmt.Errorf("unexpected cycle label %s with %d rows", label, count)
		}
	}
	return nil
}

// checkColumnOrder confirms the combined columns are the union of the
// surviving sources in first appearance order, with the provenance
// pair right after the first file's own columns.
func checkColumnOrder(combined *table.Table, files []CycleFile) error {
	var want []string
	seen := map[string]bool{}
	for _, f := range files {
		if f.Fail {
			continue
		}
		for _, name := range f.Table.Names() {
			if seen[name] {
				continue
			}
			seen[name] = true
			want = append(want, name)
		}
		if !seen[table.CycleColumn] {
			seen[table.CycleColumn] = true
			want = append(want, table.CycleColumn)
			seen[table.SourceFileColumn] = true
			want = append(want, table.SourceFileColumn)
		}
	}

	got := combined.Names()
	if len(got) != len(want) {
		return fmt.Errorf("combined has %d columns, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			return fmt.Errorf("column %d is %s, want %s", i, got[i], want[i])
		}
	}
	return nil
}

// checkNullFill confirms cells read back non-null exactly where the
// originating file carried the column.
func checkNullFill(combined *table.Table, files []CycleFile) error {
	carries := map[string]map[string]bool{}
	for _, f := range files {
		if f.Fail {
			continue
		}
		cols := map[string]bool{}
		for _, name := range f.Table.Names() {
			cols[name] = true
		}
		carries[f.Entry.LocalName()] = cols
	}

	srcCol, ok := combined.Column(table.SourceFileColumn)
	if !ok {
		return fmt.Errorf("missing %s column", table.SourceFileColumn)
	}
	for row := 0; row < combined.NumRows(); row++ {
		src, _ := srcCol.Cells[row].Text()
		cols, known := carries[src]
		if !known {
			return fmt.Errorf("row %d names unknown source %s", row, src)
		}
		for _, name := range combined.Names() {
			if name == table.CycleColumn || name == table.SourceFileColumn {
				continue
			}
			cell := combined.Cell(row, name)
			if cols[name] && cell.IsNull() {
				return fmt.Errorf("row %d column %s is null but %s carries it", row, name, src)
			}
			if !cols[name] && !cell.IsNull() {
				return fmt.Errorf("row %d column %s has a value but %s never carried it", row, name, src)
			}
		}
	}
	return nil
}

// checkJoinScope confirms the merged table covers exactly the keys
// present on both sides.
func checkJoinScope(lab, demo, merged *table.Table) error {
	labKeys, err := keySet(lab)
	if err != nil {
		return fmt.Errorf("laboratory: %w", err)
	}
	demoKeys, err := keySet(demo)
	if err != nil {
		return fmt.Errorf("demographics: %w", err)
	}

	shared := map[float64]bool{}
	for k := range labKeys {
		if demoKeys[k] {
			shared[k] = true
		}
	}
	if merged.NumRows() != len(shared) {
		return fmt.Errorf("merged has %d rows, key intersection has %d", merged.NumRows(), len(shared))
	}

	mergedKeys, err := keySet(merged)
	if err != nil {
		return fmt.Errorf("merged: %w", err)
	}
	for k := range mergedKeys {
		if !shared[k] {
			return fmt.Errorf("merged key %v exists on one side only", k)
		}
	}
	return nil
}

// keySet collects a table's key column into a set, rejecting
// duplicates and non-numeric keys.
func keySet(tbl *table.Table) (map[float64]bool, error) {
	col, ok := tbl.Column(keyColumn)
	if !ok {
		return nil, fmt.Errorf("missing %s column", keyColumn)
	}
	keys := make(map[float64]bool, len(col.Cells))
	for i, cell := range col.Cells {
		v, isNum := cell.Float()
		if !isNum {
			return nil, fmt.Errorf("row %d has a non-numeric key", i)
		}
		if keys[v] {
			return nil, fmt.Errorf("duplicate key %v", v)
		}
		keys[v] = true
	}
	return keys, nil
}

// checkRowFidelity confirms merged rows carry the synthesized values
// from both categories.
func checkRowFidelity(world *World, merged *table.Table) error {
	wantTC := valuesByKey(world.Lab, "LBXTC")
	wantAge := valuesByKey(world.Demo, "RIDAGEYR")

	for row := 0; row < merged.NumRows(); row++ {
		key, isNum := merged.Cell(row, keyColumn).Float()
		if !isNum {
			return fmt.Errorf("row %d has a non-numeric key", row)
		}
		tc, isNum := merged.Cell(row, "LBXTC").Float()
		if !isNum {
			return fmt.Errorf("key %v has a non-numeric LBXTC", key)
		}
		if want := wantTC[key]; tc != want {
			return fmt.Errorf("key %v has LBXTC %v, want %v", key, tc, want)
		}
		age, isNum := merged.Cell(row, "RIDAGEYR").Float()
		if !isNum {
			return fmt.Errorf("key %v has a non-numeric RIDAGEYR", key)
		}
		if want := wantAge[key]; age != want {
			return fmt.Errorf("key %v has RIDAGEYR %v, want %v", key, age, want)
		}
	}
	return nil
}

// valuesByKey indexes one column of the surviving files by key.
func valuesByKey(files []CycleFile, column string) map[float64]float64 {
	out := map[float64]float64{}
	for _, f := range files {
		if f.Fail {
			continue
		}
		col, ok := f.Table.Column(column)
		if !ok {
			continue
		}
		keys, ok := f.Table.Column(keyColumn)
		if !ok {
			continue
		}
		for i := range col.Cells {
			k, _ := keys.Cells[i].Float()
			v, _ := col.Cells[i].Float()
			out[k] = v
		}
	}
	return out
}

// checkReportAgreement confirms the run report counted what was
// actually persisted.
func checkReportAgreement(report *service.RunReport, lab, demo, merged *table.Table) error {
	if report.Lab.Rows != lab.NumRows() {
		return fmt.Errorf("report counts %d laboratory rows, snapshot has %d", report.Lab.Rows, lab.NumRows())
	}
	if report.Demo.Rows != demo.NumRows() {
		return fmt.Errorf("report counts %d demographics rows, snapshot has %d", report.Demo.Rows, demo.NumRows())
	}
	if report.Merged.Rows != merged.NumRows() {
		return fmt.Errorf("report counts %d merged rows, table has %d", report.Merged.Rows, merged.NumRows())
	}
	return nil
}
