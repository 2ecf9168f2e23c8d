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
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/cardinalhq/udal-cwd/internal/geotime"
	"github.com/cardinalhq/udal-cwd/internal/reconcile"
)

type filterStage struct {
	name string
	keep func(reconcile.Record) bool
}

// filterStages returns the active filters in application order: polygon,
// time range, data type, file type. The polygon stage repeats the loader's
// filter on the reconciled rows.
func filterStages(q QueryParams) []filterStage {
	var stages []filterStage
	if q.Region != nil {
		region := q.Region
		stages = append(stages, filterStage{
			name: "polygon",
			keep: func(r reconcile.Record) bool { return geotime.InRegion(r.Row, region) },
		})
	}
	if q.TimeRange != nil {
		tr := *q.TimeRange
		stages = append(stages, filterStage{
			name: "time_range",
			keep: func(r reconcile.Record) bool { return geotime.Overlapping(r.Row, tr) },
		})
	}
	stages = append(stages,
		filterStage{
			name: "data_type",
			keep: func(r reconcile.Record) bool { return r.DataType == q.DataType },
		},
		filterStage{
			name: "file_type",
			keep: func(r reconcile.Record) bool { return r.FileType == q.FileType },
		},
	)
	return stages
}

// applyFilters runs records through each stage in turn. The input slice is
// not modified.
func applyFilters(ctx context.Context, records []reconcile.Record, stages []filterStage) []reconcile.Record {
	out := records
	for _, st := range stages {
		kept := make([]reconcile.Record, 0, len(out))
		for _, r := range out {
			if st.keep(r) {
				kept = append(kept, r)
			}
		}
		if removed := len(out) - len(kept); removed > 0 {
			recordsFiltered.Add(ctx, int64(removed), metric.WithAttributes(attribute.String("stage", st.name)))
		}
		slog.Debug("Applied filter",
			slog.String("stage", st.name),
			slog.Int("in", len(out)),
			slog.Int("out", len(kept)))
		out = kept
	}
	return out
}
