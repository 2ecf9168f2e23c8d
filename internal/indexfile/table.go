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

// Package indexfile loads the tabular index files published alongside an
// in-situ dataset. Each file starts with a fixed descriptive preamble,
// followed by a comma separated header row and one row per dataset file or
// platform.
package indexfile

import "slices"

// Row is one index record keyed by column name.
type Row map[string]string

// Table is an ordered set of rows sharing a header.
type Table struct {
	Columns []string
	Rows    []Row
}

func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

func (t *Table) HasColumn(name string) bool {
	return slices.Contains(t.Columns, name)
}

// RenameColumn renames a column in the header and in every row. It returns
// false, leaving the table untouched, when the column is absent.
func (t *Table) RenameColumn(from, to string) bool {
	idx := slices.Index(t.Columns, from)
	if idx < 0 {
		return false
	}
	t.Columns[idx] = to
	for _, row := range t.Rows {
		if v, ok := row[from]; ok {
			delete(row, from)
			row[to] = v
		}
	}
	return true
}

// Append adds other's rows after t's, extending the header with any columns
// t has not seen yet.
func (t *Table) Append(other *Table) {
	if other == nil {
		return
	}
	for _, c := range other.Columns {
		if !t.HasColumn(c) {
			t.Columns = append(t.Columns, c)
		}
	}
	t.Rows = append(t.Rows, other.Rows...)
}

// Concat joins tables in order.
func Concat(tables ...*Table) *Table {
	out := &Table{}
	for _, t := range tables {
		out.Append(t)
	}
	return out
}
