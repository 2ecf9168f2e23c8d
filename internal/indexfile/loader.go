// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package indexfile

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"

	"github.com/cardinalhq/udal-cwd/internal/geotime"
	"github.com/cardinalhq/udal-cwd/internal/logctx"
)

const (
	// PreambleLines is the number of descriptive lines before the header.
	PreambleLines = 5

	// DefaultChunkSize bounds how many raw rows are held while filtering.
	DefaultChunkSize = 1000

	LegacyInstitutionColumn = "provider_edmo_code"
	InstitutionColumn       = "institution_edmo_code"
)

var (
	ErrNoHeader     = errors.New("index file has no header row")
	ErrMalformedRow = errors.New("malformed index row")
)

// Loader reads index files.
type Loader struct {
	chunkSize int
}

// NewLoader returns a loader that filters in chunks of chunkSize rows.
// A non-positive chunkSize selects DefaultChunkSize.
func NewLoader(chunkSize int) *Loader {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Loader{chunkSize: chunkSize}
}

// Load reads the index file at path. When region is nil every row is kept.
// Otherwise rows are read chunkSize at a time and only rows whose minimum
// corner lies in region survive; rows with malformed coordinates are
// excluded. Surviving rows keep their file order.
func (l *Loader) Load(ctx context.Context, path string, region *geotime.Region) (*Table, error) {
	name := filepath.Base(path)
	ll := logctx.FromContext(ctx)
	ll.Info("Loading index file", slog.String("file", name), slog.Bool("regionFilter", region != nil))

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open index file %s: %w", name, err)
	}
	defer func() { _ = f.Close() }()

	table, err := l.read(ctx, name, f, region)
	if err != nil {
		return nil, fmt.Errorf("read index file %s: %w", name, err)
	}

	if table.RenameColumn(LegacyInstitutionColumn, InstitutionColumn) {
		ll.Debug("Renamed legacy column",
			slog.String("file", name),
			slog.String("from", LegacyInstitutionColumn),
			slog.String("to", InstitutionColumn))
	}

	ll.Info("Loaded index file", slog.String("file", name), slog.Int("rows", table.Len()))
	return table, nil
}

func (l *Loader) read(ctx context.Context, name string, r io.Reader, region *geotime.Region) (*Table, error) {
	br := bufio.NewReader(r)
	if err := skipLines(br, PreambleLines); err != nil {
		return nil, err
	}

	cr := csv.NewReader(br)
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrNoHeader
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	columns := normalizeHeader(header)
	if len(columns) == 0 {
		return nil, ErrNoHeader
	}

	attrs := otelmetric.WithAttributes(attribute.String("file", name))
	table := &Table{Columns: columns}
	chunk := make([]Row, 0, l.chunkSize)

	for {
		chunk = chunk[:0]
		eof, err := l.readChunk(ctx, cr, columns, &chunk, attrs)
		if err != nil {
			return nil, err
		}

		rowsReadCounter.Add(ctx, int64(len(chunk)), attrs)
		if region == nil {
			table.Rows = append(table.Rows, chunk...)
		} else {
			kept := 0
			for _, row := range chunk {
				if geotime.InRegion(row, region) {
					table.Rows = append(table.Rows, row)
					kept++
				}
			}
			rowsFilteredCounter.Add(ctx, int64(len(chunk)-kept), attrs)
		}

		if eof {
			return table, nil
		}
	}
}

// readChunk fills chunk with up to chunkSize rows. It reports eof once the
// underlying reader is exhausted. Short rows are padded with empty values;
// a row with more non-empty fields than the header fails the load.
func (l *Loader) readChunk(ctx context.Context, cr *csv.Reader, columns []string, chunk *[]Row, attrs otelmetric.AddOption) (bool, error) {
	for len(*chunk) < l.chunkSize {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return true, nil
		}
		if err != nil {
			return false, err
		}
		if isBlank(record) {
			continue
		}
		if len(record) > len(columns) && !isBlank(record[len(columns):]) {
			line, _ := cr.FieldPos(0)
			rowsRejectedCounter.Add(ctx, 1, attrs)
			return false, fmt.Errorf("%w: line %d: expected %d fields, saw %d",
				ErrMalformedRow, line+PreambleLines, len(columns), len(record))
		}

		row := make(Row, len(columns))
		for i, c := range columns {
			if i < len(record) {
				row[c] = record[i]
			} else {
				row[c] = ""
			}
		}
		*chunk = append(*chunk, row)
	}
	return false, nil
}

func skipLines(br *bufio.Reader, n int) error {
	for i := 0; i < n; i++ {
		if _, err := br.ReadString('\n'); err != nil {
			if errors.Is(err, io.EOF) {
				return fmt.Errorf("preamble: expected %d lines, found %d: %w", n, i, ErrNoHeader)
			}
			return err
		}
	}
	return nil
}

// normalizeHeader strips the comment marker some index files put in front
// of the header row and surrounding whitespace.
func normalizeHeader(header []string) []string {
	columns := make([]string, 0, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		if i == 0 {
			h = strings.TrimSpace(strings.TrimPrefix(h, "#"))
		}
		columns = append(columns, h)
	}
	for len(columns) > 0 && columns[len(columns)-1] == "" {
		columns = columns[:len(columns)-1]
	}
	return columns
}

func isBlank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
