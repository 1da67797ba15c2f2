// Package table loads a delimited text file into an in-memory grid of raw
// cells. Cells stay text; numeric interpretation belongs to the accumulators.
package table

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	apperrors "tabstat/internal/errors"
)

// cancelCheckRows is how often the parser polls the context
const cancelCheckRows = 4096

const ambiguous = -1

// Options controls parsing
type Options struct {
	// Delimiter is one of ',', ';', '|' or '\t'. Zero means ','.
	Delimiter rune
	// TrimSpace strips leading and trailing white space from every cell.
	TrimSpace bool
}

// Table is a header row plus data rows of equal width. It is read-only once
// loaded and safe for concurrent readers.
type Table struct {
	Header []string
	Rows   [][]string

	columns map[string]int
	labels  map[string]int
}

// ParseDelimiter converts a configured delimiter string to a rune
func ParseDelimiter(s string) (rune, error) {
	switch s {
	case "", ",":
		return ',', nil
	case ";":
		return ';', nil
	case "|":
		return '|', nil
	case "\t", `\t`, "tab":
		return '\t', nil
	}
	return 0, apperrors.NewInvalidRequestError(fmt.Sprintf("unsupported delimiter %q", s), nil)
}

// Load reads the file at path. A missing or unreadable file yields
// FILE_NOT_FOUND; anything wrong with its contents yields MALFORMED_TABLE.
func Load(ctx context.Context, path string, opts Options) (*Table, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, apperrors.NewFileNotFoundError(path, err)
	}
	if info.IsDir() {
		return nil, apperrors.NewFileNotFoundError(path, fmt.Errorf("%s is a directory", path))
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.NewFileNotFoundError(path, err)
	}
	defer f.Close()

	t, err := parse(ctx, f, opts)
	if err != nil {
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			appErr.WithContext("path", path)
		}
		return nil, err
	}
	return t, nil
}

// Parse reads a table from r
func Parse(r io.Reader, opts Options) (*Table, error) {
	return parse(context.Background(), r, opts)
}

func parse(ctx context.Context, r io.Reader, opts Options) (*Table, error) {
	delim := opts.Delimiter
	if delim == 0 {
		delim = ','
	}
	switch delim {
	case ',', ';', '|', '\t':
	default:
		return nil, apperrors.NewInvalidRequestError(fmt.Sprintf("unsupported delimiter %q", delim), nil)
	}

	reader := csv.NewReader(r)
	reader.Comma = delim
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, apperrors.NewMalformedTableError("table is empty", nil)
	}
	if err != nil {
		return nil, apperrors.NewMalformedTableError("failed to read header", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	if err := cleanRecord(header, 1, opts.TrimSpace); err != nil {
		return nil, err
	}

	width := len(header)
	var rows [][]string
	for line := 2; ; line++ {
		if line%cancelCheckRows == 0 {
			if err := ctx.Err(); err != nil {
				return nil, apperrors.NewCancelledError(err)
			}
		}

		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, apperrors.NewMalformedTableError(fmt.Sprintf("failed to read record %d", line), err)
		}
		if len(record) != width {
			return nil, apperrors.NewMalformedTableError(
				fmt.Sprintf("record %d has %d fields, header has %d", line, len(record), width), nil).
				WithContext("record", line)
		}
		if err := cleanRecord(record, line, opts.TrimSpace); err != nil {
			return nil, err
		}
		rows = append(rows, record)
	}

	return New(header, rows)
}

func cleanRecord(record []string, line int, trim bool) error {
	for i, cell := range record {
		if !utf8.ValidString(cell) {
			return apperrors.NewMalformedTableError(
				fmt.Sprintf("record %d field %d is not valid UTF-8", line, i+1), nil).
				WithContext("record", line)
		}
		if trim {
			record[i] = strings.TrimSpace(cell)
		}
	}
	return nil
}

// New builds a Table from a header and rows, checking that every row has the
// header's width.
func New(header []string, rows [][]string) (*Table, error) {
	if len(header) == 0 {
		return nil, apperrors.NewMalformedTableError("header has no columns", nil)
	}
	for i, row := range rows {
		if len(row) != len(header) {
			return nil, apperrors.NewMalformedTableError(
				fmt.Sprintf("row %d has %d fields, header has %d", i, len(row), len(header)), nil)
		}
	}

	t := &Table{
		Header:  header,
		Rows:    rows,
		columns: indexOf(len(header), func(i int) string { return header[i] }),
		labels:  indexOf(len(rows), func(i int) string { return rows[i][0] }),
	}
	return t, nil
}

func indexOf(n int, key func(int) string) map[string]int {
	m := make(map[string]int, n)
	for i := 0; i < n; i++ {
		k := key(i)
		if _, dup := m[k]; dup {
			m[k] = ambiguous
			continue
		}
		m[k] = i
	}
	return m
}

// NumRows returns the number of data rows
func (t *Table) NumRows() int { return len(t.Rows) }

// NumCols returns the number of columns
func (t *Table) NumCols() int { return len(t.Header) }

// Cell returns the raw text at a data row and column
func (t *Table) Cell(row, col int) string { return t.Rows[row][col] }

// ColumnIndex looks up a column by its exact header text
func (t *Table) ColumnIndex(name string) (int, error) {
	return lookup(t.columns, name, "column")
}

// RowIndex looks up a data row by the exact text of its first cell
func (t *Table) RowIndex(label string) (int, error) {
	return lookup(t.labels, label, "row")
}

func lookup(m map[string]int, name, axis string) (int, error) {
	i, ok := m[name]
	if !ok {
		return 0, apperrors.NewInvalidRangeError(fmt.Sprintf("unknown %s %q", axis, name)).
			WithContext("name", name)
	}
	if i == ambiguous {
		return 0, apperrors.NewInvalidRangeError(fmt.Sprintf("%s name %q is ambiguous", axis, name)).
			WithContext("name", name)
	}
	return i, nil
}
