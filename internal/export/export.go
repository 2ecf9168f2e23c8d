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

// Package export writes query results in the formats offered by the CLI.
package export

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/parquet-go/parquet-go"
	"gopkg.in/yaml.v3"

	"github.com/cardinalhq/udal-cwd/internal/reconcile"
	"github.com/cardinalhq/udal-cwd/internal/udal"
)

const (
	FormatJSON    = "json"
	FormatYAML    = "yaml"
	FormatCSV     = "csv"
	FormatParquet = "parquet"
)

var ErrUnknownFormat = errors.New("unknown output format")

// Formats lists the supported output formats.
func Formats() []string {
	return []string{FormatJSON, FormatYAML, FormatCSV, FormatParquet}
}

// IsBinary reports whether format should not be written to a terminal.
func IsBinary(format string) bool {
	return format == FormatParquet
}

// Document is the structured form written as JSON or YAML.
type Document struct {
	Query    udal.NamedQueryInfo `json:"query" yaml:"query"`
	Metadata udal.Metadata       `json:"metadata" yaml:"metadata"`
	Records  []reconcile.Flat    `json:"records" yaml:"records"`
}

func NewDocument(res *udal.Result) Document {
	return Document{
		Query:    res.Query(),
		Metadata: res.Metadata(),
		Records:  flatten(res),
	}
}

// Write encodes res to w. JSON and YAML carry the query and metadata along
// with the records; CSV and Parquet hold only the records, one row each, in
// group order.
func Write(w io.Writer, format string, res *udal.Result) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(NewDocument(res))
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(NewDocument(res)); err != nil {
			return err
		}
		return enc.Close()
	case FormatCSV:
		return writeCSV(w, flatten(res))
	case FormatParquet:
		return writeParquet(w, flatten(res))
	default:
		return fmt.Errorf("%w: %q (want one of %v)", ErrUnknownFormat, format, Formats())
	}
}

func flatten(res *udal.Result) []reconcile.Flat {
	rows := []reconcile.Flat{}
	for _, g := range res.Groups() {
		for _, r := range g.Records {
			rows = append(rows, r.Flat())
		}
	}
	return rows
}

func writeCSV(w io.Writer, rows []reconcile.Flat) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(slices.Clone(reconcile.FlatColumns)); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write(r.Values()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeParquet(w io.Writer, rows []reconcile.Flat) error {
	pw := parquet.NewGenericWriter[reconcile.Flat](w)
	if _, err := pw.Write(rows); err != nil {
		_ = pw.Close()
		return fmt.Errorf("write parquet rows: %w", err)
	}
	if err := pw.Close(); err != nil {
		return fmt.Errorf("close parquet writer: %w", err)
	}
	return nil
}
