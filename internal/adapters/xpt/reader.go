package xpt

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	table "github.com/simonaseno/nhanes/internal/domain/table"
)

// variable is one parsed NAMESTR entry.
type variable struct {
	name    string
	kind    int // typeNumeric or typeChar
	length  int // bytes per observation
	number  int // declaration order
	offset  int // byte offset within a row
	hasOffs bool
}

// ReadFile parses the transport file at path into a table.
func ReadFile(path string) (*table.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open transport file: %w", err)
	}
	defer f.Close()

	tbl, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return tbl, nil
}

// Read parses one transport stream into a table. Numeric missing
// values and all-blank character fields both become null cells.
func Read(r io.Reader) (*table.Table, error) {
	rd := &reader{src: r}

	if err := rd.expectHeader(keywordLibrary); err != nil {
		return nil, err
	}
	// Two library descriptor records: SAS vendor fields and timestamps.
	if _, err := rd.record(); err != nil {
		return nil, err
	}
	if _, err := rd.record(); err != nil {
		return nil, err
	}

	member, err := rd.header(keywordMember)
	if err != nil {
		return nil, err
	}
	entryLen, err := digits(member[74:78])
	if err != nil {
		return nil, fmt.Errorf("%w: member header declares no entry size", ErrHeader)
	}
	if entryLen != namestrLen && entryLen != 136 {
		return nil, fmt.Errorf("%w: unsupported NAMESTR size %d", ErrHeader, entryLen)
	}

	if err := rd.expectHeader(keywordDscrptr); err != nil {
		return nil, err
	}
	// Two member descriptor records: dataset name, label, timestamps.
	if _, err := rd.record(); err != nil {
		return nil, err
	}
	if _, err := rd.record(); err != nil {
		return nil, err
	}

	namestr, err := rd.header(keywordNamestr)
	if err != nil {
		return nil, err
	}
	count, err := digits(namestr[54:58])
	if err != nil {
		return nil, fmt.Errorf("%w: NAMESTR header declares no variable count", ErrHeader)
	}

	vars, err := rd.variables(count, entryLen)
	if err != nil {
		return nil, err
	}

	if err := rd.expectHeader(keywordObs); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(rd.src)
	if err != nil {
		return nil, fmt.Errorf("read observations: %w", err)
	}
	return assemble(vars, data)
}

// reader tracks position in the card-image stream for error messages.
type reader struct {
	src  io.Reader
	card int
}

// record reads the next 80-byte card image.
func (r *reader) record() ([]byte, error) {
	buf := make([]byte, recordLen)
	if _, err := io.ReadFull(r.src, buf); err != nil {
		return nil, fmt.Errorf("%w: card %d: %v", ErrTruncated, r.card, err)
	}
	r.card++
	return buf, nil
}

// header reads the next record and checks its constant prefix.
func (r *reader) header(keyword string) ([]byte, error) {
	rec, err := r.record()
	if err != nil {
		return nil, err
	}
	want := headerPrefix(keyword)
	if string(rec[:len(want)]) != want {
		return nil, fmt.Errorf("%w: card %d is not a %s header", ErrHeader, r.card-1, strings.TrimSpace(keyword))
	}
	return rec, nil
}

func (r *reader) expectHeader(keyword string) error {
	_, err := r.header(keyword)
	return err
}

// variables reads count NAMESTR entries plus blank padding up to the
// next card boundary.
func (r *reader) variables(count, entryLen int) ([]variable, error) {
	if count <= 0 {
		return nil, fmt.Errorf("%w: variable count %d", ErrHeader, count)
	}
	section := count * entryLen
	if pad := section % recordLen; pad != 0 {
		section += recordLen - pad
	}
	buf := make([]byte, section)
	if _, err := io.ReadFull(r.src, buf); err != nil {
		return nil, fmt.Errorf("%w: NAMESTR section: %v", ErrTruncated, err)
	}
	r.card += section / recordLen

	vars := make([]variable, 0, count)
	for i := 0; i < count; i++ {
		entry := buf[i*entryLen : (i+1)*entryLen]
		v := variable{
			kind:   int(int16(binary.BigEndian.Uint16(entry[0:2]))),
			length: int(int16(binary.BigEndian.Uint16(entry[4:6]))),
			number: int(int16(binary.BigEndian.Uint16(entry[6:8]))),
			name:   strings.TrimRight(string(entry[8:16]), " "),
		}
		if len(entry) >= 88 {
			v.offset = int(int32(binary.BigEndian.Uint32(entry[84:88])))
			v.hasOffs = v.offset > 0 || i == 0
		}
		if v.kind != typeNumeric && v.kind != typeChar {
			return nil, fmt.Errorf("%w: variable %q has type %d", ErrVariable, v.name, v.kind)
		}
		if v.length <= 0 {
			return nil, fmt.Errorf("%w: variable %q has length %d", ErrVariable, v.name, v.length)
		}
		if v.name == "" {
			return nil, fmt.Errorf("%w: unnamed variable at position %d", ErrVariable, i)
		}
		vars = append(vars, v)
	}

	// Rows follow declaration order; fall back to cumulative offsets
	// when the writer left NPOS zero.
	sort.SliceStable(vars, func(a, b int) bool { return vars[a].number < vars[b].number })
	offset := 0
	for i := range vars {
		if !vars[i].hasOffs {
			vars[i].offset = offset
		}
		offset += vars[i].length
	}
	return vars, nil
}

// assemble decodes the observation section into columns.
func assemble(vars []variable, data []byte) (*table.Table, error) {
	rowLen := 0
	for _, v := range vars {
		if end := v.offset + v.length; end > rowLen {
			rowLen = end
		}
	}
	rows, err := observationCount(data, rowLen)
	if err != nil {
		return nil, err
	}

	cols := make([]table.Column, 0, len(vars))
	for _, v := range vars {
		kind := table.KindNumeric
		if v.kind == typeChar {
			kind = table.KindString
		}
		cells := make([]table.Value, rows)
		for row := 0; row < rows; row++ {
			field := data[row*rowLen+v.offset : row*rowLen+v.offset+v.length]
			cells[row] = decodeField(v, field)
		}
		cols = append(cols, table.Column{Name: v.name, Kind: kind, Cells: cells})
	}

	tbl, err := table.New(cols...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrVariable, err)
	}
	return tbl, nil
}

// decodeField converts one raw field to a cell value.
func decodeField(v variable, field []byte) table.Value {
	if v.kind == typeChar {
		s := strings.TrimRight(string(field), " ")
		if s == "" {
			return table.Null()
		}
		return table.Str(s)
	}
	// Truncated numerics (2..8 bytes) are zero-extended before
	// conversion.
	var buf [numericWidth]byte
	copy(buf[:], field)
	f, ok := ibmToFloat(buf[:])
	if !ok {
		return table.Null()
	}
	return table.Num(f)
}

// observationCount derives the row count from the data section length.
// The section is blank-padded to a card boundary, so trailing blank
// 8-byte words of the final card are not data; a remainder after that
// means the file was cut mid-row.
func observationCount(data []byte, rowLen int) (int, error) {
	if rowLen <= 0 {
		return 0, nil
	}
	total := len(data)
	if rowLen <= recordLen && total >= recordLen {
		last := data[total-recordLen:]
		pad := 0
		for pad+8 <= recordLen && allBlank(last[recordLen-pad-8:recordLen-pad]) {
			pad += 8
		}
		total -= pad
	}
	rows := total / rowLen
	if rem := total % rowLen; rem != 0 && !allBlank(data[total-rem:total]) {
		return 0, fmt.Errorf("%w: %d stray bytes after row %d", ErrTruncated, rem, rows)
	}
	return rows, nil
}

func allBlank(b []byte) bool {
	for _, c := range b {
		if c != ' ' {
			return false
		}
	}
	return true
}

// digits parses a zero-padded decimal field.
func digits(b []byte) (int, error) {
	return strconv.Atoi(strings.TrimSpace(string(b)))
}
