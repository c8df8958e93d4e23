package core

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

// MaxFileSize is the maximum accepted sheet size (100MB).
var MaxFileSize int64 = 100 * 1024 * 1024

var (
	// ErrUnsupportedFormat is returned for files that are neither CSV nor XLSX.
	ErrUnsupportedFormat = errors.New("unsupported format")
	// ErrEmptySheet is returned when the sheet has no header row.
	ErrEmptySheet = errors.New("empty sheet")
	// ErrFileTooLarge is returned when the input exceeds MaxFileSize.
	ErrFileTooLarge = errors.New("file too large")
)

// Row is one data row of the intake sheet.
type Row struct {
	Line  int // 1-indexed line in the source; the header is line 1
	cells []string
	index HeaderIndex
}

// NewRow binds raw cells to a header index.
func NewRow(line int, cells []string, index HeaderIndex) Row {
	return Row{Line: line, cells: cells, index: index}
}

// Get returns the cell under the named column, or nil when the sheet has no
// such column or the row is short. Header matching ignores whitespace.
func (r Row) Get(header string) any {
	pos, ok := r.index[headerKey(header)]
	if !ok || pos >= len(r.cells) {
		return nil
	}
	return r.cells[pos]
}

// Values returns the raw cells of the row.
func (r Row) Values() []string {
	return r.cells
}

// Sheet is a parsed intake sheet: a header row and the data rows below it.
type Sheet struct {
	Name   string
	Header []string
	Rows   []Row
	index  HeaderIndex
}

// NewSheet builds a sheet from raw records. The first record is the header;
// blank records are dropped but keep their line numbers counted.
func NewSheet(name string, records [][]string) (*Sheet, error) {
	if len(records) == 0 || isEmptyRow(records[0]) {
		return nil, fmt.Errorf("%s: %w: no header row", name, ErrEmptySheet)
	}

	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		header[i] = CleanCell(h)
	}

	s := &Sheet{
		Name:   name,
		Header: header,
		index:  MakeHeaderIndex(header),
	}
	for i, rec := range records[1:] {
		if isEmptyRow(rec) {
			continue
		}
		s.Rows = append(s.Rows, NewRow(i+2, rec, s.index))
	}
	return s, nil
}

// HasColumn reports whether the header contains the named column.
func (s *Sheet) HasColumn(header string) bool {
	_, ok := s.index[headerKey(header)]
	return ok
}

// Column returns the named column's cell for every row.
func (s *Sheet) Column(header string) []any {
	out := make([]any, len(s.Rows))
	for i, r := range s.Rows {
		out[i] = r.Get(header)
	}
	return out
}

// ReadOptions selects what to read from a workbook.
type ReadOptions struct {
	SheetName string // Workbook sheet; empty means the first one
}

// ReadSheet parses a CSV or XLSX document. The format is chosen by the
// file name's extension.
func ReadSheet(name string, r io.Reader, opts ReadOptions) (*Sheet, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	if int64(len(data)) > MaxFileSize {
		return nil, fmt.Errorf("%s: %w (limit %dMB)", name, ErrFileTooLarge, MaxFileSize/(1024*1024))
	}

	var records [][]string
	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case ".csv", ".txt":
		records, err = parseCSV(sanitizeUTF8(data))
		if err != nil {
			return nil, fmt.Errorf("invalid csv %s: %w", name, err)
		}
	case ".xlsx", ".xlsm":
		records, err = parseWorkbook(data, opts.SheetName)
		if err != nil {
			return nil, fmt.Errorf("read workbook %s: %w", name, err)
		}
	default:
		return nil, fmt.Errorf("%s: %w %q (want .csv or .xlsx)", name, ErrUnsupportedFormat, ext)
	}

	return NewSheet(name, records)
}

// parseWorkbook returns the raw cell values of one sheet. Raw values keep
// dates as Excel serial numbers, which the date normalizer understands.
func parseWorkbook(data []byte, sheet string) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, ErrEmptySheet
		}
		sheet = sheets[0]
	}

	return f.GetRows(sheet, excelize.Options{RawCellValue: true})
}

// Helper functions

func sanitizeUTF8(data []byte) []byte {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if utf8.Valid(data) {
		return data
	}

	var buf bytes.Buffer
	buf.Grow(len(data))

	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r == utf8.RuneError && size == 1 {
			buf.WriteRune('\uFFFD')
			data = data[1:]
		} else {
			buf.WriteRune(r)
			data = data[size:]
		}
	}

	return buf.Bytes()
}

func parseCSV(data []byte) ([][]string, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	return r.ReadAll()
}

func isEmptyRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
