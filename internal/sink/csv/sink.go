// Package csvsink appends search results to CSV files on disk.
package csvsink

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/JakeFAU/wigle-openroaming/internal/wigle"
)

// DefaultEscapeChar is prefixed to any escape character found in a cell.
const DefaultEscapeChar = `\`

// Options controls how cells are written.
type Options struct {
	// EscapeChar is doubled wherever it appears in a cell. Empty disables escaping.
	EscapeChar string
}

// Sink appends rows to one CSV file. The header is fixed by the first batch
// written, or adopted from the file when it already has content.
type Sink struct {
	path   string
	file   *os.File
	writer *csv.Writer
	header []string
	escape string
}

// Opener adapts Open to wigle.SinkOpener.
func Opener(opts Options) wigle.SinkOpener {
	return func(path string) (wigle.Sink, error) {
		s, err := Open(path, opts)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

// Open creates parent directories and opens path for appending.
func Open(path string, opts Options) (*Sink, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create output dir %s: %w", dir, err)
		}
	}
	header, err := readHeader(path)
	if err != nil {
		return nil, err
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open csv %s: %w", path, err)
	}
	return &Sink{
		path:   path,
		file:   file,
		writer: csv.NewWriter(file),
		header: header,
		escape: opts.EscapeChar,
	}, nil
}

// readHeader returns the first row of an existing, non-empty file.
func readHeader(path string) ([]string, error) {
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open csv %s: %w", path, err)
	}
	defer func() { _ = file.Close() }()

	reader := newReader(file)
	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header %s: %w", path, err)
	}
	return header, nil
}

// Path returns the file being written.
func (s *Sink) Path() string {
	return s.path
}

// Append writes records as rows. The header goes out first only if the file
// is still empty.
func (s *Sink) Append(ctx context.Context, records []wigle.Record) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("context canceled: %w", err)
	}
	if len(records) == 0 {
		return 0, nil
	}
	if s.header == nil {
		s.header = columnsOf(records)
	}

	info, err := s.file.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat csv %s: %w", s.path, err)
	}
	if info.Size() == 0 {
		if err := s.writer.Write(s.header); err != nil {
			return 0, fmt.Errorf("write csv header: %w", err)
		}
	}

	row := make([]string, len(s.header))
	for _, rec := range records {
		for i, col := range s.header {
			row[i] = s.escapeCell(rec.Cell(col))
		}
		if err := s.writer.Write(row); err != nil {
			return 0, fmt.Errorf("write csv row: %w", err)
		}
	}
	s.writer.Flush()
	if err := s.writer.Error(); err != nil {
		return 0, fmt.Errorf("flush csv %s: %w", s.path, err)
	}
	return len(records), nil
}

// Close flushes and closes the file.
func (s *Sink) Close() error {
	s.writer.Flush()
	flushErr := s.writer.Error()
	closeErr := s.file.Close()
	if flushErr != nil {
		return fmt.Errorf("flush csv %s: %w", s.path, flushErr)
	}
	if closeErr != nil {
		return fmt.Errorf("close csv %s: %w", s.path, closeErr)
	}
	return nil
}

func (s *Sink) escapeCell(v string) string {
	if s.escape == "" {
		return v
	}
	return strings.ReplaceAll(v, s.escape, s.escape+s.escape)
}

// columnsOf lists keys in order of first appearance across records.
func columnsOf(records []wigle.Record) []string {
	seen := make(map[string]struct{})
	var cols []string
	for _, rec := range records {
		for _, key := range rec.Keys() {
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			cols = append(cols, key)
		}
	}
	return cols
}

// CountRows returns the number of data rows in path, excluding the header.
// An empty file has zero rows. A missing file yields an error wrapping
// os.ErrNotExist.
func CountRows(path string) (int, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open csv %s: %w", path, err)
	}
	defer func() { _ = file.Close() }()

	reader := newReader(file)
	count := 0
	for {
		_, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("read csv %s: %w", path, err)
		}
		count++
	}
	if count == 0 {
		return 0, nil
	}
	return count - 1, nil
}

func newReader(r io.Reader) *csv.Reader {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	return reader
}
