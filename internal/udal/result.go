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

package udal

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/cardinalhq/udal-cwd/internal/reconcile"
)

var (
	ErrUnsupportedQuery      = errors.New("query not supported")
	ErrUnsupportedDataFormat = errors.New("data format not supported")
	ErrInvalidParam          = errors.New("invalid query parameter")
)

// Format selects the representation returned by Result.Data.
type Format string

const (
	// FormatGroups is []Group, one per (platform_code, data_type).
	FormatGroups Format = "groups"
	// FormatRecords is the flat []reconcile.Record in index order.
	FormatRecords Format = "records"
	// FormatArrow is an arrow.RecordBatch of reconcile.Flat rows. The
	// caller must Release it.
	FormatArrow Format = "arrow"
)

// Group holds the selected records of one platform and data type, in index
// order.
type Group struct {
	PlatformCode string
	DataType     string
	Records      []reconcile.Record
}

// FileGroup lists the file names of one Group.
type FileGroup struct {
	PlatformCode string   `json:"platform_code" yaml:"platform_code"`
	DataType     string   `json:"data_type" yaml:"data_type"`
	Files        []string `json:"files" yaml:"files"`
}

// Metadata describes how a result was produced.
type Metadata struct {
	ExecutionID string      `json:"execution_id" yaml:"execution_id"`
	Query       string      `json:"query" yaml:"query"`
	DatasetID   string      `json:"dataset_id" yaml:"dataset_id"`
	Period      string      `json:"period" yaml:"period"`
	Directory   string      `json:"directory" yaml:"directory"`
	Manifest    []string    `json:"manifest" yaml:"manifest"`
	Files       []FileGroup `json:"files" yaml:"files"`
	StartedAt   time.Time   `json:"started_at" yaml:"started_at"`
	Elapsed     string      `json:"elapsed" yaml:"elapsed"`
}

// Result is the outcome of one query execution.
type Result struct {
	query    NamedQueryInfo
	metadata Metadata
	records  []reconcile.Record
	groups   []Group
}

// NewResult groups records and fills md.Files from the groups.
func NewResult(query NamedQueryInfo, md Metadata, records []reconcile.Record) *Result {
	groups := groupRecords(records)
	md.Files = make([]FileGroup, 0, len(groups))
	for _, g := range groups {
		files := make([]string, 0, len(g.Records))
		for _, r := range g.Records {
			files = append(files, r.FileName())
		}
		md.Files = append(md.Files, FileGroup{
			PlatformCode: g.PlatformCode,
			DataType:     g.DataType,
			Files:        files,
		})
	}
	return &Result{
		query:    query,
		metadata: md,
		records:  records,
		groups:   groups,
	}
}

func (r *Result) Query() NamedQueryInfo { return r.query }

func (r *Result) Metadata() Metadata { return r.metadata }

func (r *Result) Groups() []Group { return r.groups }

// Data returns the result in the requested format. An empty format means
// FormatGroups.
func (r *Result) Data(format Format) (any, error) {
	switch format {
	case "", FormatGroups:
		return r.groups, nil
	case FormatRecords:
		return r.records, nil
	case FormatArrow:
		return recordBatch(r.records), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDataFormat, format)
	}
}

// groupRecords partitions records by (platform_code, data_type). Groups are
// sorted by key; records keep their relative order.
func groupRecords(records []reconcile.Record) []Group {
	type key struct{ platform, dataType string }
	index := map[key]int{}
	var groups []Group
	for _, r := range records {
		k := key{r.PlatformCode, r.DataType}
		i, ok := index[k]
		if !ok {
			i = len(groups)
			index[k] = i
			groups = append(groups, Group{PlatformCode: r.PlatformCode, DataType: r.DataType})
		}
		groups[i].Records = append(groups[i].Records, r)
	}
	slices.SortFunc(groups, func(a, b Group) int {
		return cmp.Or(
			cmp.Compare(a.PlatformCode, b.PlatformCode),
			cmp.Compare(a.DataType, b.DataType),
		)
	})
	return groups
}
