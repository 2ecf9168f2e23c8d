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

package geotime

import (
	"fmt"
	"log/slog"
	"strings"
	"time"
)

const (
	// TimeLayout is the only timestamp layout accepted in index files and
	// time range parameters.
	TimeLayout = "2006-01-02T15:04:05Z"

	StartColumn = "time_coverage_start"
	EndColumn   = "time_coverage_end"

	day = 24 * time.Hour
)

// TimeRange is a closed interval [Start, End].
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// ParseTimeRange parses "<start>/<end>".
func ParseTimeRange(s string) (TimeRange, error) {
	parts := strings.Split(strings.TrimSpace(s), "/")
	if len(parts) != 2 {
		return TimeRange{}, fmt.Errorf("time range %q: expected <start>/<end>", s)
	}
	start, err := ParseTimestamp(parts[0])
	if err != nil {
		return TimeRange{}, fmt.Errorf("time range start: %w", err)
	}
	end, err := ParseTimestamp(parts[1])
	if err != nil {
		return TimeRange{}, fmt.Errorf("time range end: %w", err)
	}
	return TimeRange{Start: start, End: end}, nil
}

// ParseTimestamp parses s in TimeLayout exactly. time.Parse would also take
// fractional seconds after the seconds field; those are rejected.
func ParseTimestamp(s string) (time.Time, error) {
	if strings.ContainsAny(s, ".,") {
		return time.Time{}, fmt.Errorf("timestamp %q: fractional seconds not allowed, want %s", s, TimeLayout)
	}
	return time.Parse(TimeLayout, s)
}

func (r TimeRange) String() string {
	return r.Start.Format(TimeLayout) + "/" + r.End.Format(TimeLayout)
}

// RowCoverage reads a row's time_coverage_start/time_coverage_end.
func RowCoverage(row map[string]string) (TimeRange, error) {
	start, err := ParseTimestamp(strings.TrimSpace(row[StartColumn]))
	if err != nil {
		return TimeRange{}, fmt.Errorf("%s: %w", StartColumn, err)
	}
	end, err := ParseTimestamp(strings.TrimSpace(row[EndColumn]))
	if err != nil {
		return TimeRange{}, fmt.Errorf("%s: %w", EndColumn, err)
	}
	return TimeRange{Start: start, End: end}, nil
}

// OverlapDays is the inclusive overlap of two ranges in whole days:
// floor((min(ends) - max(starts)) / 24h) + 1. Sub-day precision is
// truncated, so two ranges that touch at a single instant overlap by one day.
func (r TimeRange) OverlapDays(o TimeRange) int64 {
	latestStart := r.Start
	if o.Start.After(latestStart) {
		latestStart = o.Start
	}
	earliestEnd := r.End
	if o.End.Before(earliestEnd) {
		earliestEnd = o.End
	}
	return floorDays(earliestEnd.Sub(latestStart)) + 1
}

// Overlaps reports whether OverlapDays is positive.
func (r TimeRange) Overlaps(o TimeRange) bool {
	return r.OverlapDays(o) > 0
}

func floorDays(d time.Duration) int64 {
	days := int64(d / day)
	if d%day < 0 {
		days--
	}
	return days
}

// Overlapping is the time predicate. Rows whose coverage cannot be parsed
// are logged and never match.
func Overlapping(row map[string]string, query TimeRange) bool {
	coverage, err := RowCoverage(row)
	if err != nil {
		slog.Error("Unreadable time coverage, excluding row",
			slog.String("file_name", row["file_name"]),
			slog.Any("error", err))
		return false
	}
	return query.Overlaps(coverage)
}
