// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package table

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrUnsupportedFormat is returned by ReadFile for unknown file extensions.
	ErrUnsupportedFormat = errors.New("unsupported file format")
	// ErrInputTooLarge is returned when an input exceeds MaxInputSize.
	ErrInputTooLarge = errors.New("input too large")
)

// MaxInputSize bounds the bytes read from a single input file.
const MaxInputSize = 256 * 1024 * 1024

const sniffSize = 64 * 1024

var utf8BOM = []byte("\xef\xbb\xbf")

type format int

const (
	formatUnknown format = iota
	formatDelimited
	formatXLSX
)

// formats maps the lower-case extensions ReadFile understands.
var formats = map[string]format{
	".csv":  formatDelimited,
	".tsv":  formatDelimited,
	".txt":  formatDelimited,
	".xlsx": formatXLSX,
	".xlsm": formatXLSX,
}

// Supported reports whether ReadFile can load path, judged by extension.
func Supported(path string) bool {
	return formats[strings.ToLower(filepath.Ext(path))] != formatUnknown
}

// ReadFile loads a CSV, TSV or XLSX file based on its extension.
func ReadFile(path string) (*Table, error) {
	switch formats[strings.ToLower(filepath.Ext(path))] {
	case formatDelimited:
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
		defer f.Close()
		t, err := ReadCSV(f)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
		}
		return t, nil
	case formatXLSX:
		return ReadXLSX(path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// ReadCSV parses delimited text with a header row. The delimiter is sniffed
// from the header line. Inputs over MaxInputSize fail with ErrInputTooLarge.
func ReadCSV(r io.Reader) (*Table, error) {
	return readCSV(r, MaxInputSize)
}

func readCSV(r io.Reader, limit int64) (*Table, error) {
	br := bufio.NewReaderSize(&cappedReader{r: r, left: limit, limit: limit}, sniffSize)
	head, err := br.Peek(sniffSize)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	if bytes.HasPrefix(head, utf8BOM) {
		if _, err := br.Discard(len(utf8BOM)); err != nil {
			return nil, err
		}
		head = head[len(utf8BOM):]
	}
	delim := sniffDelimiter(head)

	cr := csv.NewReader(br)
	cr.Comma = delim
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	return fromRecords(records)
}

// cappedReader passes through at most limit bytes and fails if the source
// has more, so an oversized file is never parsed as a truncated one.
type cappedReader struct {
	r     io.Reader
	left  int64
	limit int64
}

func (c *cappedReader) Read(p []byte) (int, error) {
	if c.left <= 0 {
		var one [1]byte
		n, err := io.ReadFull(c.r, one[:])
		if n > 0 {
			return 0, fmt.Errorf("%w: more than %d bytes", ErrInputTooLarge, c.limit)
		}
		return 0, err
	}
	if int64(len(p)) > c.left {
		p = p[:c.left]
	}
	n, err := c.r.Read(p)
	c.left -= int64(n)
	return n, err
}

// sniffDelimiter picks the candidate that occurs most often in the first line.
func sniffDelimiter(head []byte) rune {
	line := head
	if i := bytes.IndexByte(head, '\n'); i >= 0 {
		line = head[:i]
	}
	best, bestCount := ',', 0
	for _, c := range []rune{',', ';', '\t', '|'} {
		if n := bytes.Count(line, []byte(string(c))); n > bestCount {
			best, bestCount = c, n
		}
	}
	return best
}

// fromRecords builds a table from a header row and data rows. Short rows are
// padded with missing values and long rows truncated.
func fromRecords(records [][]string) (*Table, error) {
	if len(records) == 0 {
		return New()
	}
	header := dedupeHeader(records[0])
	rows := records[1:]
	t := &Table{index: make(map[string]int, len(header)), rows: len(rows)}
	for c, name := range header {
		raw := make([]string, len(rows))
		for r, rec := range rows {
			if c < len(rec) {
				raw[r] = rec[c]
			}
		}
		values, dtype := parseColumn(raw)
		if err := t.addColumn(&Column{Name: name, Dtype: dtype, Values: values}); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// dedupeHeader trims names, fills blanks and suffixes repeats the way pandas does.
func dedupeHeader(header []string) []string {
	out := make([]string, len(header))
	seen := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.TrimSpace(h)
		if name == "" {
			name = fmt.Sprintf("Unnamed: %d", i)
		}
		if n, ok := seen[name]; ok {
			seen[name] = n + 1
			name = fmt.Sprintf("%s.%d", name, n+1)
		} else {
			seen[name] = 0
		}
		out[i] = name
	}
	return out
}

// WriteCSV writes the table as comma-separated text with a header row.
func (t *Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns()); err != nil {
		return err
	}
	record := make([]string, len(t.columns))
	for r := 0; r < t.rows; r++ {
		for c, col := range t.columns {
			record[c] = FormatValue(col.Values[r])
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// CSV returns the table encoded by WriteCSV.
func (t *Table) CSV() ([]byte, error) {
	var buf bytes.Buffer
	if err := t.WriteCSV(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
