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
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/cardinalhq/udal-cwd/internal/reconcile"
)

var recordSchema = func() *arrow.Schema {
	fields := make([]arrow.Field, len(reconcile.FlatColumns))
	for i, name := range reconcile.FlatColumns {
		fields[i] = arrow.Field{Name: name, Type: arrow.BinaryTypes.String, Nullable: false}
	}
	return arrow.NewSchema(fields, nil)
}()

func recordBatch(records []reconcile.Record) arrow.RecordBatch {
	b := array.NewRecordBuilder(memory.NewGoAllocator(), recordSchema)
	defer b.Release()

	cols := make([]*array.StringBuilder, len(reconcile.FlatColumns))
	for i := range cols {
		cols[i] = b.Field(i).(*array.StringBuilder)
		cols[i].Reserve(len(records))
	}
	for _, r := range records {
		for i, v := range r.Flat().Values() {
			cols[i].Append(v)
		}
	}
	return b.NewRecordBatch()
}
