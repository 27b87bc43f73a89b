// Package ingest reads the tabular batch files (enrollment lists, written
// exam exports, team forms, leaderboards, report sheets) into the row types
// consumed by the grade merge engines.
package ingest

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dsl-grades/grade-hub/internal/domain/grade"
	"github.com/dsl-grades/grade-hub/internal/domain/shared"
)

// RowError is a single unusable row. The rest of the batch stays valid.
type RowError struct {
	Line      int
	StudentID string
	Err       error
}

func (e RowError) Error() string {
	if e.StudentID != "" {
		return fmt.Sprintf("line %d (student %s): %v", e.Line, e.StudentID, e.Err)
	}
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

// Table is a parsed delimited file. Line numbers are 1-based and count the header.
type Table struct {
	Name   string
	Header []string
	Rows   []grade.Payload
	Lines  []int
}

// Column returns the header name matching want: an exact match first,
// then the first header starting with want followed by a space, so
// "COGNOME" finds "COGNOME - (*) Inserito dal docente".
func (t *Table) Column(want string) (string, bool) {
	for _, h := range t.Header {
		if h == want {
			return h, true
		}
	}
	for _, h := range t.Header {
		if strings.HasPrefix(h, want+" ") {
			return h, true
		}
	}
	return "", false
}

// Require resolves every wanted column or fails with MalformedBatch.
func (t *Table) Require(wanted ...string) (map[string]string, error) {
	cols := make(map[string]string, len(wanted))
	var missing []string
	for _, w := range wanted {
		if w == "" {
			continue
		}
		h, ok := t.Column(w)
		if !ok {
			missing = append(missing, w)
			continue
		}
		cols[w] = h
	}
	if len(missing) > 0 {
		return nil, shared.Malformed("ReadCSV", "%s: missing required column(s) %s",
			t.Name, strings.Join(missing, ", "))
	}
	return cols, nil
}

// ReadCSV opens and parses a delimited file.
func ReadCSV(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return ParseCSV(f, path)
}

// ParseCSV parses a delimited stream. The delimiter (comma or semicolon) is
// detected from the header line; a UTF-8 BOM is dropped; blank lines are skipped.
func ParseCSV(r io.Reader, name string) (*Table, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(4096)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	if bytes.HasPrefix(head, utf8BOM) {
		_, _ = br.Discard(3)
		head = head[3:]
	}

	cr := csv.NewReader(br)
	cr.Comma = detectDelimiter(head)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, shared.Malformed("ReadCSV", "%s: file is empty", name)
		}
		return nil, shared.WrapError("batch", "ReadCSV", shared.ErrMalformedBatch, name+": bad header", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	t := &Table{Name: name, Header: header}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, shared.WrapError("batch", "ReadCSV", shared.ErrMalformedBatch, name, err)
		}
		if blank(rec) {
			continue
		}
		line, _ := cr.FieldPos(0)
		row := make(grade.Payload, len(header))
		for i, h := range header {
			if i < len(rec) {
				row[h] = strings.TrimSpace(rec[i])
			} else {
				row[h] = ""
			}
		}
		t.Rows = append(t.Rows, row)
		t.Lines = append(t.Lines, line)
	}
	return t, nil
}

var utf8BOM = []byte("\xef\xbb\xbf")

// detectDelimiter prefers ';' on ties: exam exports put commas inside
// unquoted header names ("Valutazione/20,00").
func detectDelimiter(head []byte) rune {
	first := head
	if i := bytes.IndexByte(head, '\n'); i >= 0 {
		first = head[:i]
	}
	semi := bytes.Count(first, []byte(";"))
	if semi > 0 && semi >= bytes.Count(first, []byte(",")) {
		return ';'
	}
	return ','
}

func blank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
