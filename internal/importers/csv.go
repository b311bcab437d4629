package importers

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

const utf8BOM = "\ufeff"

// Row maps a column name to the raw field value of one data line.
type Row map[string]string

// Clone returns a copy that is safe to keep after the row is modified.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Has reports whether the column exists in the row, even when empty.
func (r Row) Has(column string) bool {
	_, ok := r[column]
	return ok
}

// ParseError is returned when a source cannot be opened or read.
type ParseError struct {
	Op   string // "open", "read"
	Path string
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.Path != "" {
		b.WriteString(" " + e.Path)
	}
	if e.Line > 0 {
		fmt.Fprintf(&b, " (line %d)", e.Line)
	}
	b.WriteString(": ")
	b.WriteString(e.Err.Error())
	return b.String()
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Option configures a CSVReader.
type Option func(*CSVReader)

// WithDelimiter sets the field delimiter. The default is a comma.
func WithDelimiter(delim rune) Option {
	return func(r *CSVReader) {
		r.csv.Comma = delim
	}
}

// WithName sets the source name used in errors.
func WithName(name string) Option {
	return func(r *CSVReader) {
		r.name = name
	}
}

// CSVReader turns a delimited source into Rows using its first line as
// the header.
type CSVReader struct {
	csv    *csv.Reader
	closer io.Closer
	name   string
	header []string
	done   bool
}

// NewCSVReader wraps r. The header is read lazily on the first call to
// Next or Header.
func NewCSVReader(r io.Reader, opts ...Option) *CSVReader {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // Allow variable number of fields
	reader.LazyQuotes = true
	reader.ReuseRecord = false

	cr := &CSVReader{csv: reader}
	for _, opt := range opts {
		opt(cr)
	}
	return cr
}

// OpenCSV opens the file at path for reading. The caller must Close it.
func OpenCSV(path string, opts ...Option) (*CSVReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ParseError{Op: "open", Path: path, Err: err}
	}
	cr := NewCSVReader(f, append([]Option{WithName(path)}, opts...)...)
	cr.closer = f
	return cr, nil
}

// Close releases the underlying file, if any.
func (r *CSVReader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// Header returns the column names. It returns io.EOF for an empty source.
func (r *CSVReader) Header() ([]string, error) {
	if r.header != nil {
		return r.header, nil
	}
	if r.done {
		return nil, io.EOF
	}

	record, err := r.csv.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			r.done = true
			return nil, io.EOF
		}
		return nil, r.wrap(err)
	}

	header := make([]string, len(record))
	for i, col := range record {
		if i == 0 {
			col = strings.TrimPrefix(col, utf8BOM)
		}
		header[i] = strings.TrimSpace(col)
	}
	r.header = header
	return r.header, nil
}

// Next returns the next data row or io.EOF once the source is exhausted.
// Missing trailing fields are filled with "" and surplus fields dropped.
func (r *CSVReader) Next() (Row, error) {
	header, err := r.Header()
	if err != nil {
		return nil, err
	}
	if r.done {
		return nil, io.EOF
	}

	record, err := r.csv.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			r.done = true
			return nil, io.EOF
		}
		return nil, r.wrap(err)
	}

	row := make(Row, len(header))
	for i, col := range header {
		if i < len(record) {
			row[col] = record[i]
		} else {
			row[col] = ""
		}
	}
	return row, nil
}

// ReadAll drains the remaining rows.
func (r *CSVReader) ReadAll() ([]Row, error) {
	var rows []Row
	for {
		row, err := r.Next()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return rows, err
		}
		rows = append(rows, row)
	}
}

func (r *CSVReader) wrap(err error) error {
	pe := &ParseError{Op: "read", Path: r.name, Err: err}
	var csvErr *csv.ParseError
	if errors.As(err, &csvErr) {
		pe.Line = csvErr.Line
	}
	return pe
}
