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
	"fmt"

	"go.opentelemetry.io/otel"
	otelmetric "go.opentelemetry.io/otel/metric"
)

var (
	rowsReadCounter     otelmetric.Int64Counter
	rowsRejectedCounter otelmetric.Int64Counter
	rowsFilteredCounter otelmetric.Int64Counter
)

func init() {
	meter := otel.Meter("github.com/cardinalhq/udal-cwd/internal/indexfile")

	var err error
	rowsReadCounter, err = meter.Int64Counter(
		"udal.index.rows.read",
		otelmetric.WithDescription("Number of rows read from index files"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create rows.read counter: %w", err))
	}

	rowsRejectedCounter, err = meter.Int64Counter(
		"udal.index.rows.rejected",
		otelmetric.WithDescription("Number of index rows with more fields than the header, each failing its load"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create rows.rejected counter: %w", err))
	}

	rowsFilteredCounter, err = meter.Int64Counter(
		"udal.index.rows.filtered",
		otelmetric.WithDescription("Number of index rows excluded by the region filter while loading"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create rows.filtered counter: %w", err))
	}
}
