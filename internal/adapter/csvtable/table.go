// Package csvtable reads provider CSV payloads into header-indexed rows.
package csvtable

import (
	"bytes"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// Table is a parsed CSV payload with its header row indexed by name.
type Table struct {
	colIdx map[string]int
	rows   [][]string
}

// Parse reads data as CSV. The first row is the header and every name in
// required must appear in it. Payloads that are not valid UTF-8 are decoded
// as ISO-8859-1, the encoding of the census estimate files.
func Parse(data []byte, required ...string) (*Table, error) {
	var r io.Reader = bytes.NewReader(data)
	if !utf8.Valid(data) {
		r = charmap.ISO8859_1.NewDecoder().Reader(r)
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("read csv: empty payload")
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	colIdx := make(map[string]int, len(header))
	for i, h := range header {
		// Strip a UTF-8 byte order mark from the first column name.
		colIdx[strings.TrimPrefix(strings.TrimSpace(h), "\ufeff")] = i
	}
	for _, name := range required {
		if _, ok := colIdx[name]; !ok {
			return nil, fmt.Errorf("read csv: missing column %q", name)
		}
	}

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv rows: %w", err)
	}
	return &Table{colIdx: colIdx, rows: rows}, nil
}

// Len returns the number of data rows.
func (t *Table) Len() int { return len(t.rows) }

// Has reports whether the header contains column.
func (t *Table) Has(column string) bool {
	_, ok := t.colIdx[column]
	return ok
}

// Columns returns the header names in no particular order.
func (t *Table) Columns() []string {
	out := make([]string, 0, len(t.colIdx))
	for c := range t.colIdx {
		out = append(out, c)
	}
	return out
}

// String returns the trimmed cell at row i and column, or "" when the column
// is absent or the row is short.
func (t *Table) String(i int, column string) string {
	idx, ok := t.colIdx[column]
	if !ok || idx >= len(t.rows[i]) {
		return ""
	}
	return strings.TrimSpace(t.rows[i][idx])
}

// ErrBlankCell is returned by Float for an empty or absent cell. Callers
// decide what a missing count means for their feed.
var ErrBlankCell = errors.New("blank cell")

// Float parses the cell at row i and column. Blank cells yield ErrBlankCell;
// anything else that is not a number is an error naming the row and column.
func (t *Table) Float(i int, column string) (float64, error) {
	s := t.String(i, column)
	if s == "" {
		return 0, fmt.Errorf("row %d column %q: %w", i+2, column, ErrBlankCell)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("row %d column %q: invalid number %q", i+2, column, s)
	}
	return v, nil
}

// Checksum returns the hex sha256 of a raw payload.
func Checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
