package xpt

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	table "github.com/simonaseno/nhanes/internal/domain/table"
)

// Writer defaults.
const (
	defaultMemberName = "DATA"
	defaultSasVersion = "9.4"
	defaultOsName     = "LINUX"
	maxCharWidth      = 200
)

// Option applies a configuration option to the Writer.
type Option func(*Writer)

// WithMemberName sets the dataset member name recorded in the file.
func WithMemberName(name string) Option {
	return func(w *Writer) {
		if name != "" {
			w.member = name
		}
	}
}

// WithTimestamp pins the created/modified timestamps, which makes the
// output byte-for-byte reproducible.
func WithTimestamp(ts time.Time) Option {
	return func(w *Writer) {
		if !ts.IsZero() {
			w.now = func() time.Time { return ts }
		}
	}
}

// Writer serializes tables into transport streams. It exists for the
// synthetic survey origin and test fixtures; the acquisition path only
// reads.
type Writer struct {
	member string
	now    func() time.Time
}

// NewWriter creates a Writer with the given options.
func NewWriter(opts ...Option) *Writer {
	w := &Writer{
		member: defaultMemberName,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// WriteFile serializes the table to path.
func (w *Writer) WriteFile(path string, tbl *table.Table) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create transport file: %w", err)
	}
	if err := w.Write(f, tbl); err != nil {
		f.Close()
		return fmt.Errorf("%s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close transport file: %w", err)
	}
	return nil
}

// Write serializes the table to dst. Column names longer than eight
// bytes are rejected rather than silently truncated.
func (w *Writer) Write(dst io.Writer, tbl *table.Table) error {
	vars, err := planVariables(tbl)
	if err != nil {
		return err
	}

	bw := bufio.NewWriter(dst)
	stamp := transportTime(w.now())

	writeCard(bw, headerPrefix(keywordLibrary)+blankTail)
	writeCard(bw, field("SAS", 8)+field("SAS", 8)+field("SASLIB", 8)+
		field(defaultSasVersion, 8)+field(defaultOsName, 8)+field("", 24)+stamp)
	writeCard(bw, stamp+field("", 64))

	writeCard(bw, headerPrefix(keywordMember)+memberTail)
	writeCard(bw, headerPrefix(keywordDscrptr)+blankTail)
	writeCard(bw, field("SAS", 8)+field(w.member, 8)+field("SASDATA", 8)+
		field(defaultSasVersion, 8)+field(defaultOsName, 8)+field("", 24)+stamp)
	writeCard(bw, stamp+field("", 16)+field("", 40)+field("", 8))

	writeCard(bw, headerPrefix(keywordNamestr)+fmt.Sprintf("%06d%04d", 0, len(vars))+
		strings.Repeat("0", 20)+"  ")

	for _, v := range vars {
		bw.Write(namestrEntry(v))
	}
	if pad := (len(vars) * namestrLen) % recordLen; pad != 0 {
		bw.WriteString(strings.Repeat(" ", recordLen-pad))
	}

	writeCard(bw, headerPrefix(keywordObs)+blankTail)

	written := 0
	for row := 0; row < tbl.NumRows(); row++ {
		for _, v := range vars {
			written += writeField(bw, tbl.ColumnAt(v.index), row, v)
		}
	}
	if pad := written % recordLen; pad != 0 {
		bw.WriteString(strings.Repeat(" ", recordLen-pad))
	}

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write transport stream: %w", err)
	}
	return nil
}

// plannedVar carries the layout decisions for one column.
type plannedVar struct {
	variable
	index int
}

// planVariables maps table columns onto transport variables.
func planVariables(tbl *table.Table) ([]plannedVar, error) {
	if tbl.NumCols() == 0 {
		return nil, fmt.Errorf("%w: table has no columns", ErrVariable)
	}
	vars := make([]plannedVar, 0, tbl.NumCols())
	offset := 0
	for i := 0; i < tbl.NumCols(); i++ {
		col := tbl.ColumnAt(i)
		if len(col.Name) > maxNameLen {
			return nil, fmt.Errorf("%w: column %q exceeds %d bytes", ErrVariable, col.Name, maxNameLen)
		}
		v := plannedVar{index: i}
		v.name = col.Name
		v.number = i + 1
		v.offset = offset
		switch col.Kind {
		case table.KindString:
			v.kind = typeChar
			v.length = charWidth(col)
		default:
			// Unknown kinds hold only nulls and serialize as numerics.
			v.kind = typeNumeric
			v.length = numericWidth
		}
		offset += v.length
		vars = append(vars, v)
	}
	return vars, nil
}

// charWidth picks the field width for a character column.
func charWidth(col table.Column) int {
	width := 1
	for _, cell := range col.Cells {
		if s, ok := cell.Text(); ok && len(s) > width {
			width = len(s)
		}
	}
	if width > maxCharWidth {
		width = maxCharWidth
	}
	return width
}

// namestrEntry renders one 140-byte variable descriptor.
func namestrEntry(v plannedVar) []byte {
	entry := make([]byte, namestrLen)
	putInt16(entry[0:2], v.kind)
	putInt16(entry[4:6], v.length)
	putInt16(entry[6:8], v.number)
	copy(entry[8:16], field(v.name, 8))
	copy(entry[16:56], field(v.name, 40)) // label defaults to the name
	putInt32(entry[84:88], v.offset)
	return entry
}

// writeField renders one cell and returns the bytes written.
func writeField(bw *bufio.Writer, col table.Column, row int, v plannedVar) int {
	cell := col.Cells[row]
	if v.kind == typeChar {
		s, _ := cell.Text()
		if len(s) > v.length {
			s = s[:v.length]
		}
		bw.WriteString(field(s, v.length))
		return v.length
	}
	if f, ok := cell.Float(); ok {
		b := floatToIBM(f)
		bw.Write(b[:])
	} else {
		b := missingValue()
		bw.Write(b[:])
	}
	return numericWidth
}

// writeCard emits one 80-byte record, blank-padding short input.
func writeCard(bw *bufio.Writer, s string) {
	bw.WriteString(field(s, recordLen))
}

// field left-justifies s in a blank-padded cell of the given width.
func field(s string, width int) string {
	if len(s) >= width {
		return s[:width]
	}
	return s + strings.Repeat(" ", width-len(s))
}

// transportTime renders the 16-byte ddMMMyy:hh:mm:ss stamp.
func transportTime(t time.Time) string {
	return strings.ToUpper(t.Format("02Jan06:15:04:05"))
}

func putInt16(b []byte, v int) {
	b[0] = byte(v >> 8)
	b[1] = byte(v)
}

func putInt32(b []byte, v int) {
	b[0] = byte(v >> 24)
	b[1] = byte(v >> 16)
	b[2] = byte(v >> 8)
	b[3] = byte(v)
}
