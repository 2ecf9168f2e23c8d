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
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var (
	meter  = otel.Meter("github.com/cardinalhq/udal-cwd/internal/udal")
	tracer = otel.Tracer("github.com/cardinalhq/udal-cwd/internal/udal")

	queryDuration   metric.Float64Histogram
	queryCounter    metric.Int64Counter
	recordsFiltered metric.Int64Counter
)

func init() {
	var err error

	queryDuration, err = meter.Float64Histogram(
		"udal.query.duration",
		metric.WithUnit("s"),
		metric.WithDescription("Time taken to execute a query"),
	)
	if err != nil {
		panic(err)
	}

	queryCounter, err = meter.Int64Counter(
		"udal.query.executions",
		metric.WithDescription("Number of query executions, by outcome"),
	)
	if err != nil {
		panic(err)
	}

	recordsFiltered, err = meter.Int64Counter(
		"udal.query.records.filtered",
		metric.WithDescription("Number of reconciled records removed by a query filter stage"),
	)
	if err != nil {
		panic(err)
	}
}
