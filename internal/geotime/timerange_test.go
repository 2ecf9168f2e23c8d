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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustRange(t *testing.T, s string) TimeRange {
	t.Helper()
	r, err := ParseTimeRange(s)
	require.NoError(t, err)
	return r
}

func TestParseTimeRange(t *testing.T) {
	r := mustRange(t, "2021-01-01T00:00:00Z/2021-01-05T12:30:00Z")
	assert.Equal(t, time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC), r.Start)
	assert.Equal(t, time.Date(2021, 1, 5, 12, 30, 0, 0, time.UTC), r.End)
	assert.Equal(t, "2021-01-01T00:00:00Z/2021-01-05T12:30:00Z", r.String())

	for _, bad := range []string{
		"",
		"2021-01-01T00:00:00Z",
		"2021-01-01/2021-01-05",
		"2021-01-01T00:00:00Z/2021-01-05T00:00:00Z/2021-01-09T00:00:00Z",
		"yesterday/today",
		"2024-01-01T00:00:00.5Z/2024-01-02T00:00:00Z",
		"2024-01-01T00:00:00Z/2024-01-02T00:00:00,25Z",
	} {
		_, err := ParseTimeRange(bad)
		assert.Error(t, err, bad)
	}
}

func TestOverlapDays(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want int64
	}{
		{
			name: "touching at a boundary overlaps one day",
			a:    "2021-01-01T00:00:00Z/2021-01-05T00:00:00Z",
			b:    "2021-01-05T00:00:00Z/2021-01-10T00:00:00Z",
			want: 1,
		},
		{
			name: "contained",
			a:    "2021-01-01T00:00:00Z/2021-01-31T00:00:00Z",
			b:    "2021-01-10T00:00:00Z/2021-01-12T00:00:00Z",
			want: 3,
		},
		{
			name: "sub-day overlap counts as one day",
			a:    "2021-01-01T00:00:00Z/2021-01-05T06:00:00Z",
			b:    "2021-01-05T00:00:00Z/2021-01-10T00:00:00Z",
			want: 1,
		},
		{
			name: "gap of one hour",
			a:    "2021-01-01T00:00:00Z/2021-01-05T00:00:00Z",
			b:    "2021-01-05T01:00:00Z/2021-01-10T00:00:00Z",
			want: 0,
		},
		{
			name: "disjoint by days",
			a:    "2021-01-01T00:00:00Z/2021-01-05T00:00:00Z",
			b:    "2021-02-01T00:00:00Z/2021-02-10T00:00:00Z",
			want: -26,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := mustRange(t, tt.a)
			b := mustRange(t, tt.b)
			assert.Equal(t, tt.want, a.OverlapDays(b))
			assert.Equal(t, tt.want, b.OverlapDays(a), "overlap must not depend on which range is the query")
			assert.Equal(t, tt.want > 0, a.Overlaps(b))
		})
	}
}

func TestOverlapNotSymmetricUnderEndpointSwap(t *testing.T) {
	query := mustRange(t, "2021-01-01T00:00:00Z/2021-01-05T00:00:00Z")
	file := mustRange(t, "2021-01-03T00:00:00Z/2021-01-04T00:00:00Z")
	assert.True(t, query.Overlaps(file))

	reversed := TimeRange{Start: query.End, End: query.Start}
	assert.False(t, reversed.Overlaps(file))
}

func TestOverlapping(t *testing.T) {
	query := mustRange(t, "2021-01-01T00:00:00Z/2021-01-05T00:00:00Z")

	tests := []struct {
		name string
		row  map[string]string
		want bool
	}{
		{
			name: "overlapping row",
			row: map[string]string{
				StartColumn: "2021-01-05T00:00:00Z",
				EndColumn:   "2021-01-10T00:00:00Z",
			},
			want: true,
		},
		{
			name: "later row",
			row: map[string]string{
				StartColumn: "2021-03-01T00:00:00Z",
				EndColumn:   "2021-03-10T00:00:00Z",
			},
			want: false,
		},
		{
			name: "unparsable start",
			row: map[string]string{
				StartColumn: "2021-01-02",
				EndColumn:   "2021-01-10T00:00:00Z",
			},
			want: false,
		},
		{
			name: "missing end",
			row: map[string]string{
				StartColumn: "2021-01-02T00:00:00Z",
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				assert.Equal(t, tt.want, Overlapping(tt.row, query))
			})
		})
	}
}

func TestFloorDays(t *testing.T) {
	assert.Equal(t, int64(0), floorDays(0))
	assert.Equal(t, int64(0), floorDays(23*time.Hour))
	assert.Equal(t, int64(1), floorDays(24*time.Hour))
	assert.Equal(t, int64(-1), floorDays(-time.Second))
	assert.Equal(t, int64(-1), floorDays(-24*time.Hour))
	assert.Equal(t, int64(-2), floorDays(-25*time.Hour))
}

func TestParseTimestampRejectsFractionalSeconds(t *testing.T) {
	ts, err := ParseTimestamp("2024-01-01T00:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), ts)

	for _, bad := range []string{"2024-01-01T00:00:00.5Z", "2024-01-01T00:00:00.000Z", "2024-01-01T00:00:00,5Z"} {
		_, err := ParseTimestamp(bad)
		assert.Error(t, err, bad)
	}

	row := map[string]string{StartColumn: "2024-01-01T00:00:00.5Z", EndColumn: "2024-01-02T00:00:00Z"}
	_, err = RowCoverage(row)
	assert.Error(t, err)
	assert.False(t, Overlapping(row, mustRange(t, "2023-01-01T00:00:00Z/2025-01-01T00:00:00Z")))
}
