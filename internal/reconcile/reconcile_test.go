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

package reconcile

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/udal-cwd/internal/catalog"
	"github.com/cardinalhq/udal-cwd/internal/geotime"
	"github.com/cardinalhq/udal-cwd/internal/indexfile"
)

const preamble = "# Title : x\n# Description : x\n# Project : x\n# Format version : 1.0\n# Date of update : 20231016080012\n"

const (
	platformHeader = "#platform_code,creation_date,update_date,wmo_platform_code,data_source,institution,institution_edmo_code,parameters,last_latitude_observation,last_longitude_observation,last_date_observation"
	fileHeader     = "#catalog_id,file_name,geospatial_lat_min,geospatial_lat_max,geospatial_lon_min,geospatial_lon_max,time_coverage_start,time_coverage_end,provider_edmo_code,date_update,data_mode,parameters"
)

func write(t *testing.T, dir, name, header string, rows ...string) {
	t.Helper()
	contents := preamble + header + "\n" + strings.Join(rows, "\n") + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(contents), 0o644))
}

func TestDeriveFileFields(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want FileFields
	}{
		{
			name: "bare name",
			in:   "SOMEPREFIX_TS_MO_6801500.nc",
			want: FileFields{NetCDF: "SOMEPREFIX_TS_MO_6801500.nc", FileType: "TS", DataType: "MO", PlatformCode: "6801500"},
		},
		{
			name: "url with extra components",
			in:   "ftp://nrt.cmems-du.eu/Core/INSITU/history/MO/GL_TS_MO_6801500_202101.nc",
			want: FileFields{NetCDF: "GL_TS_MO_6801500_202101.nc", FileType: "TS", DataType: "MO", PlatformCode: "6801500"},
		},
		{
			name: "dots in platform code only keep the first segment",
			in:   "s3://b/GL_PR_PF_A.B.nc",
			want: FileFields{NetCDF: "GL_PR_PF_A.B.nc", FileType: "PR", DataType: "PF", PlatformCode: "A"},
		},
		{
			name: "too few components",
			in:   "s3://b/GL_TS.nc",
			want: FileFields{NetCDF: "GL_TS.nc", FileType: "TS"},
		},
		{
			name: "empty",
			in:   "",
			want: FileFields{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveFileFields(tt.in))
		})
	}
}

func TestPlatformsKeepsFirstDuplicate(t *testing.T) {
	table := &indexfile.Table{
		Columns: []string{"code", "wmo_platform_code"},
		Rows: []indexfile.Row{
			{"code": "P1", "wmo_platform_code": "first"},
			{"code": "P1", "wmo_platform_code": "second"},
			{"code": "P2", "wmo_platform_code": "other"},
			{"code": "", "wmo_platform_code": "blank"},
		},
	}
	got := Platforms(table)
	require.Len(t, got, 2)
	assert.Equal(t, "first", got["P1"].WMOPlatformCode)
	assert.Equal(t, "P1", got["P1"].Code)
	assert.Equal(t, PlatformCodeColumn, table.Columns[0])
}

func TestJoinDropsUnknownPlatforms(t *testing.T) {
	files := &indexfile.Table{
		Columns: []string{FileNameColumn},
		Rows: []indexfile.Row{
			{FileNameColumn: "x/GL_TS_MO_P1.nc"},
			{FileNameColumn: "x/GL_TS_MO_P9.nc"},
			{FileNameColumn: "x/GL_TS_DB_P1.nc"},
			{FileNameColumn: "x/broken.nc"},
		},
	}
	platforms := map[string]Platform{"P1": {Code: "P1", WMOPlatformCode: "123"}}

	got := Join(files, platforms)
	require.Len(t, got, 2)
	assert.LessOrEqual(t, len(got), files.Len())
	assert.Equal(t, "x/GL_TS_MO_P1.nc", got[0].FileName())
	assert.Equal(t, "DB", got[1].DataType)
	assert.Equal(t, "123", got[1].Platform.WMOPlatformCode)
}

func TestReconcile(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "index_platform.txt", platformHeader,
		"P1,2020-01-01,2021-01-01,6801500,x,INST,1001,TEMP PSAL,40.1,15.1,2021-01-10T00:00:00Z",
		"P1,2020-01-01,2021-01-01,DUPLICATE,x,INST,9999,TEMP,0,0,2021-01-10T00:00:00Z",
		"P2,2020-01-01,2021-01-01,6801501,x,INST,1002,TEMP,41.0,16.0,2021-01-10T00:00:00Z",
	)
	write(t, dir, "index_latest.txt", fileHeader,
		"C,s3://b/latest/20210105/GL_TS_MO_P1.nc,40,40,15,15,2021-01-01T00:00:00Z,2021-01-05T00:00:00Z,7,2021-01-06T00:00:00Z,R,TEMP",
		"C,s3://b/latest/20210105/GL_TS_MO_P3.nc,40,40,15,15,2021-01-01T00:00:00Z,2021-01-05T00:00:00Z,7,2021-01-06T00:00:00Z,R,TEMP",
	)
	write(t, dir, "index_monthly.txt", fileHeader,
		"C,s3://b/monthly/MO/202101/GL_TS_MO_P2.nc,-60,-60,-120,-120,2021-01-01T00:00:00Z,2021-01-31T00:00:00Z,7,2021-02-01T00:00:00Z,R,TEMP",
	)

	set := catalog.IndexSet{
		PlatformIndex: "index_platform.txt",
		IndexFiles:    []string{"index_latest.txt", "index_monthly.txt"},
	}
	r := New(indexfile.NewLoader(2))

	records, err := r.Reconcile(context.Background(), set, dir, nil)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "P1", records[0].PlatformCode)
	assert.Equal(t, "6801500", records[0].Platform.WMOPlatformCode)
	assert.Equal(t, "1001", records[0].Platform.InstitutionEDMOCode)
	assert.Equal(t, "7", records[0].Row["institution_edmo_code"], "legacy file column is renamed")
	assert.Equal(t, "P2", records[1].PlatformCode)

	region, err := geotime.ParseRegion("POLYGON((30 -6, 30 36, 46 36, 46 -6, 30 -6))")
	require.NoError(t, err)
	records, err = r.Reconcile(context.Background(), set, dir, region)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "P1", records[0].PlatformCode)

	flat := records[0].Flat()
	assert.Equal(t, "GL_TS_MO_P1.nc", flat.NetCDF)
	assert.Len(t, flat.Values(), len(FlatColumns))
}

func TestReconcileMissingIndex(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "index_platform.txt", platformHeader)

	_, err := New(nil).Reconcile(context.Background(), catalog.IndexSet{
		PlatformIndex: "index_platform.txt",
		IndexFiles:    []string{"index_latest.txt"},
	}, dir, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = New(nil).Reconcile(context.Background(), catalog.IndexSet{
		PlatformIndex: "missing_platform.txt",
	}, dir, nil)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
