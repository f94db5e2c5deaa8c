package store

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/simonaseno/nhanes/internal/domain/table"
)

// writeCSV renders tbl as comma-separated text at path, staged under
// a partial name and renamed into place. Null cells render as empty
// fields; a column-less table produces an empty file.
func writeCSV(tbl *table.Table, path string) error {
	tmp := path + partialSuffix
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("creating partial file: %w", err)
	}

	if err := renderCSV(tbl, f); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("closing partial file: %w", err)
	}

	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("moving text file into place: %w", err)
	}
	return nil
}

func renderCSV(tbl *table.Table, w io.Writer) error {
	if tbl.NumCols() == 0 {
		return nil
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(tbl.Names()); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	record := make([]string, tbl.NumCols())
	for row := 0; row < tbl.NumRows(); row++ {
		for i := 0; i < tbl.NumCols(); i++ {
			record[i] = tbl.ColumnAt(i).Cells[row].String()
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("writing row %d: %w", row, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flushing text: %w", err)
	}
	return nil
}
