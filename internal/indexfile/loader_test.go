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
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/udal-cwd/internal/geotime"
)

const preamble = `# Title : In Situ file index
# Description : catalog of available In Situ files per platform.
# Project : Copernicus Marine In Situ TAC
# Format version : 1.0
# Date of update : 20231016080012
`

func writeIndex(t *testing.T, dir, name, header string, rows ...string) string {
	t.Helper()
	var sb strings.Builder
	sb.WriteString(preamble)
	sb.WriteString(header + "\n")
	for _, r := range rows {
		sb.WriteString(r + "\n")
	}
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(sb.String()), 0o644))
	return path
}

const fileHeader = "#catalog_id,file_name,geospatial_lat_min,geospatial_lat_max,geospatial_lon_min,geospatial_lon_max,time_coverage_start,time_coverage_end,provider_edmo_code,date_update,data_mode,parameters"

func fileRow(name string, lat, lon string) string {
	return fmt.Sprintf("COP-GLOBAL-01,s3://bucket/history/MO/%s,%s,%s,%s,%s,2021-01-01T00:00:00Z,2021-01-10T00:00:00Z,1234,2021-01-11T00:00:00Z,R,TEMP PSAL", name, lat, lat, lon, lon)
}

func TestLoadWithoutRegion(t *testing.T) {
	dir := t.TempDir()
	path := writeIndex(t, dir, "index_history.txt", fileHeader,
		fileRow("GL_TS_MO_A.nc", "40", "15"),
		fileRow("GL_TS_MO_B.nc", "bad", "15"),
		fileRow("GL_TS_MO_C.nc", "-10", "-40"),
	)

	table, err := NewLoader(0).Load(context.Background(), path, nil)
	require.NoError(t, err)
	require.Equal(t, 3, table.Len())

	assert.Equal(t, "catalog_id", table.Columns[0])
	assert.True(t, table.HasColumn(InstitutionColumn))
	assert.False(t, table.HasColumn(LegacyInstitutionColumn))
	assert.Equal(t, "1234", table.Rows[0][InstitutionColumn])
	assert.Equal(t, "s3://bucket/history/MO/GL_TS_MO_B.nc", table.Rows[1]["file_name"])
}

func TestLoadWithoutLegacyColumn(t *testing.T) {
	dir := t.TempDir()
	path := writeIndex(t, dir, "index_platform.txt",
		"#platform_code,wmo_platform_code,institution_edmo_code",
		"P1,123,42",
	)

	table, err := NewLoader(0).Load(context.Background(), path, nil)
	require.NoError(t, err)
	require.Equal(t, 1, table.Len())
	assert.Equal(t, []string{"platform_code", "wmo_platform_code", "institution_edmo_code"}, table.Columns)
	assert.Equal(t, "42", table.Rows[0][InstitutionColumn])
}

func TestLoadWithRegionKeepsOrderAcrossChunks(t *testing.T) {
	dir := t.TempDir()
	var rows []string
	var want []string
	for i := 0; i < 25; i++ {
		name := fmt.Sprintf("GL_TS_MO_%02d.nc", i)
		switch {
		case i%5 == 0:
			rows = append(rows, fileRow(name, "not-a-number", "15"))
		case i%2 == 0:
			rows = append(rows, fileRow(name, "40", "15"))
			want = append(want, name)
		default:
			rows = append(rows, fileRow(name, "-60", "-120"))
		}
	}
	path := writeIndex(t, dir, "index_latest.txt", fileHeader, rows...)

	region, err := geotime.ParseRegion("POLYGON((30 -6, 30 36, 46 36, 46 -6, 30 -6))")
	require.NoError(t, err)

	for _, chunkSize := range []int{1, 3, 7, 1000} {
		t.Run(fmt.Sprintf("chunk=%d", chunkSize), func(t *testing.T) {
			table, err := NewLoader(chunkSize).Load(context.Background(), path, region)
			require.NoError(t, err)

			var got []string
			for _, row := range table.Rows {
				got = append(got, filepath.Base(row["file_name"]))
			}
			assert.Equal(t, want, got)
		})
	}
}

func TestLoadWithRegionRenamesLegacyColumn(t *testing.T) {
	path := writeIndex(t, t.TempDir(), "index_latest.txt", fileHeader,
		fileRow("GL_TS_MO_A.nc", "40", "15"),
		fileRow("GL_TS_MO_B.nc", "-60", "-120"),
	)
	region, err := geotime.ParseRegion("POLYGON((30 -6, 30 36, 46 36, 46 -6, 30 -6))")
	require.NoError(t, err)

	table, err := NewLoader(1).Load(context.Background(), path, region)
	require.NoError(t, err)
	require.Equal(t, 1, table.Len())
	assert.True(t, table.HasColumn(InstitutionColumn))
	assert.False(t, table.HasColumn(LegacyInstitutionColumn))
	assert.Equal(t, "1234", table.Rows[0][InstitutionColumn])
	_, legacy := table.Rows[0][LegacyInstitutionColumn]
	assert.False(t, legacy)
}

func TestLoadWithRegionNoMatches(t *testing.T) {
	dir := t.TempDir()
	path := writeIndex(t, dir, "index_latest.txt", fileHeader, fileRow("GL_TS_MO_A.nc", "-60", "-120"))

	region, err := geotime.ParseRegion("POLYGON((0 0, 1 0, 1 1, 0 1, 0 0))")
	require.NoError(t, err)

	table, err := NewLoader(10).Load(context.Background(), path, region)
	require.NoError(t, err)
	assert.Equal(t, 0, table.Len())
	assert.NotEmpty(t, table.Columns)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := NewLoader(0).Load(context.Background(), filepath.Join(t.TempDir(), "nope.txt"), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadTruncatedPreamble(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index_latest.txt")
	require.NoError(t, os.WriteFile(path, []byte("# Title : x\n# Description : y\n"), 0o644))

	_, err := NewLoader(0).Load(context.Background(), path, nil)
	assert.ErrorIs(t, err, ErrNoHeader)
}

func TestLoadHeaderOnly(t *testing.T) {
	path := writeIndex(t, t.TempDir(), "index_latest.txt", fileHeader)
	table, err := NewLoader(0).Load(context.Background(), path, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, table.Len())
	assert.Len(t, table.Columns, 12)
}

func TestLoadRaggedRows(t *testing.T) {
	path := writeIndex(t, t.TempDir(), "index_platform.txt",
		"#platform_code,a,b",
		"P1,1,2",
		"P2,1",
		"P4,1,2,,",
		",,",
	)
	table, err := NewLoader(0).Load(context.Background(), path, nil)
	require.NoError(t, err)
	require.Equal(t, 3, table.Len())
	assert.Equal(t, "P1", table.Rows[0]["platform_code"])
	assert.Equal(t, "P2", table.Rows[1]["platform_code"])
	assert.Equal(t, "", table.Rows[1]["b"])
	assert.Equal(t, "P4", table.Rows[2]["platform_code"])
}

func TestLoadRowWithExtraFields(t *testing.T) {
	dir := t.TempDir()
	path := writeIndex(t, dir, "index_platform.txt",
		"#platform_code,a,b",
		"P1,1,2",
		"P3,1,2,3",
	)
	region, err := geotime.ParseRegion("POLYGON((0 0, 1 0, 1 1, 0 1, 0 0))")
	require.NoError(t, err)

	for _, r := range []*geotime.Region{nil, region} {
		table, err := NewLoader(1).Load(context.Background(), path, r)
		require.Error(t, err)
		assert.Nil(t, table)
		assert.ErrorIs(t, err, ErrMalformedRow)
		assert.ErrorContains(t, err, "index_platform.txt")
		assert.ErrorContains(t, err, "line 8")
		assert.ErrorContains(t, err, "expected 3 fields, saw 4")
	}

	path = writeIndex(t, dir, "index_latest.txt", "#catalog_id,file_name",
		"GL,a/GL_TS_MO_P1.nc",
		"GL,a/GL_TS_MO_P2.nc,EXTRA",
	)
	_, err = NewLoader(0).Load(context.Background(), path, nil)
	assert.ErrorIs(t, err, ErrMalformedRow)
}

func TestTableRenameAndConcat(t *testing.T) {
	a := &Table{Columns: []string{"x", "y"}, Rows: []Row{{"x": "1", "y": "2"}}}
	b := &Table{Columns: []string{"x", "z"}, Rows: []Row{{"x": "3", "z": "4"}}}

	assert.False(t, a.RenameColumn("missing", "other"))
	assert.True(t, a.RenameColumn("y", "w"))
	assert.Equal(t, []string{"x", "w"}, a.Columns)
	assert.Equal(t, "2", a.Rows[0]["w"])
	_, still := a.Rows[0]["y"]
	assert.False(t, still)

	c := Concat(a, nil, b)
	assert.Equal(t, []string{"x", "w", "z"}, c.Columns)
	require.Equal(t, 2, c.Len())
	assert.Equal(t, "1", c.Rows[0]["x"])
	assert.Equal(t, "3", c.Rows[1]["x"])

	var nilTable *Table
	assert.Equal(t, 0, nilTable.Len())
}
