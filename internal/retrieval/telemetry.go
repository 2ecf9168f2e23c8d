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

package retrieval

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var (
	downloadErrors  metric.Int64Counter
	downloadCount   metric.Int64Counter
	downloadBytes   metric.Int64Counter
	downloadSkipped metric.Int64Counter
)

func init() {
	meter := otel.Meter("github.com/cardinalhq/udal-cwd/internal/retrieval")

	var err error
	downloadErrors, err = meter.Int64Counter(
		"udal.retrieval.download.errors",
		metric.WithDescription("Number of dataset file download errors"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create download.errors counter: %w", err))
	}

	downloadCount, err = meter.Int64Counter(
		"udal.retrieval.download.count",
		metric.WithDescription("Number of dataset files downloaded"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create download.count counter: %w", err))
	}

	downloadBytes, err = meter.Int64Counter(
		"udal.retrieval.download.bytes",
		metric.WithDescription("Bytes of dataset files downloaded"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create download.bytes counter: %w", err))
	}

	downloadSkipped, err = meter.Int64Counter(
		"udal.retrieval.download.skipped",
		metric.WithDescription("Number of dataset files skipped because they already exist locally"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create download.skipped counter: %w", err))
	}
}
