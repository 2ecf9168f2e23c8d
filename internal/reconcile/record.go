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
	"strings"

	"github.com/cardinalhq/udal-cwd/internal/indexfile"
)

const (
	FileNameColumn     = "file_name"
	PlatformCodeColumn = "platform_code"
)

// PlatformColumns are the platform index attributes carried onto each file.
var PlatformColumns = []string{
	"wmo_platform_code",
	"institution_edmo_code",
	"parameters",
	"last_latitude_observation",
	"last_longitude_observation",
	"last_date_observation",
}

// FileFields are derived from a file name of the form
// <prefix>_<file_type>_<data_type>_<platform_code>[_...].nc.
type FileFields struct {
	NetCDF       string
	FileType     string
	DataType     string
	PlatformCode string
}

// DeriveFileFields splits the trailing path segment of fileName. Components
// the name does not have are left empty.
func DeriveFileFields(fileName string) FileFields {
	netcdf := strings.TrimSpace(fileName)
	if i := strings.LastIndex(netcdf, "/"); i >= 0 {
		netcdf = netcdf[i+1:]
	}
	stem, _, _ := strings.Cut(netcdf, ".")
	parts := strings.Split(stem, "_")

	at := func(i int) string {
		if i < len(parts) {
			return parts[i]
		}
		return ""
	}
	return FileFields{
		NetCDF:       netcdf,
		FileType:     at(1),
		DataType:     at(2),
		PlatformCode: at(3),
	}
}

// Platform holds the projected platform index attributes.
type Platform struct {
	Code                     string
	WMOPlatformCode          string
	InstitutionEDMOCode      string
	Parameters               string
	LastLatitudeObservation  string
	LastLongitudeObservation string
	LastDateObservation      string
}

func platformFromRow(row indexfile.Row) Platform {
	return Platform{
		Code:                     row[PlatformCodeColumn],
		WMOPlatformCode:          row["wmo_platform_code"],
		InstitutionEDMOCode:      row["institution_edmo_code"],
		Parameters:               row["parameters"],
		LastLatitudeObservation:  row["last_latitude_observation"],
		LastLongitudeObservation: row["last_longitude_observation"],
		LastDateObservation:      row["last_date_observation"],
	}
}

// Record is a file index row joined with its platform.
type Record struct {
	// Row holds every column of the file index as loaded.
	Row indexfile.Row
	FileFields
	Platform Platform
}

func (r Record) FileName() string {
	return r.Row[FileNameColumn]
}

// Flat is the flattened, serializable form of a Record.
type Flat struct {
	PlatformCode             string `json:"platform_code" yaml:"platform_code" parquet:"platform_code"`
	DataType                 string `json:"data_type" yaml:"data_type" parquet:"data_type"`
	FileType                 string `json:"file_type" yaml:"file_type" parquet:"file_type"`
	NetCDF                   string `json:"netcdf" yaml:"netcdf" parquet:"netcdf"`
	FileName                 string `json:"file_name" yaml:"file_name" parquet:"file_name"`
	LatMin                   string `json:"geospatial_lat_min" yaml:"geospatial_lat_min" parquet:"geospatial_lat_min"`
	LatMax                   string `json:"geospatial_lat_max" yaml:"geospatial_lat_max" parquet:"geospatial_lat_max"`
	LonMin                   string `json:"geospatial_lon_min" yaml:"geospatial_lon_min" parquet:"geospatial_lon_min"`
	LonMax                   string `json:"geospatial_lon_max" yaml:"geospatial_lon_max" parquet:"geospatial_lon_max"`
	TimeCoverageStart        string `json:"time_coverage_start" yaml:"time_coverage_start" parquet:"time_coverage_start"`
	TimeCoverageEnd          string `json:"time_coverage_end" yaml:"time_coverage_end" parquet:"time_coverage_end"`
	WMOPlatformCode          string `json:"wmo_platform_code" yaml:"wmo_platform_code" parquet:"wmo_platform_code"`
	InstitutionEDMOCode      string `json:"institution_edmo_code" yaml:"institution_edmo_code" parquet:"institution_edmo_code"`
	Parameters               string `json:"parameters" yaml:"parameters" parquet:"parameters"`
	LastLatitudeObservation  string `json:"last_latitude_observation" yaml:"last_latitude_observation" parquet:"last_latitude_observation"`
	LastLongitudeObservation string `json:"last_longitude_observation" yaml:"last_longitude_observation" parquet:"last_longitude_observation"`
	LastDateObservation      string `json:"last_date_observation" yaml:"last_date_observation" parquet:"last_date_observation"`
}

// FlatColumns is the column order of Flat.Values.
var FlatColumns = []string{
	"platform_code", "data_type", "file_type", "netcdf", "file_name",
	"geospatial_lat_min", "geospatial_lat_max", "geospatial_lon_min", "geospatial_lon_max",
	"time_coverage_start", "time_coverage_end",
	"wmo_platform_code", "institution_edmo_code", "parameters",
	"last_latitude_observation", "last_longitude_observation", "last_date_observation",
}

func (r Record) Flat() Flat {
	return Flat{
		PlatformCode:             r.PlatformCode,
		DataType:                 r.DataType,
		FileType:                 r.FileType,
		NetCDF:                   r.NetCDF,
		FileName:                 r.FileName(),
		LatMin:                   r.Row["geospatial_lat_min"],
		LatMax:                   r.Row["geospatial_lat_max"],
		LonMin:                   r.Row["geospatial_lon_min"],
		LonMax:                   r.Row["geospatial_lon_max"],
		TimeCoverageStart:        r.Row["time_coverage_start"],
		TimeCoverageEnd:          r.Row["time_coverage_end"],
		WMOPlatformCode:          r.Platform.WMOPlatformCode,
		InstitutionEDMOCode:      r.Platform.InstitutionEDMOCode,
		Parameters:               r.Platform.Parameters,
		LastLatitudeObservation:  r.Platform.LastLatitudeObservation,
		LastLongitudeObservation: r.Platform.LastLongitudeObservation,
		LastDateObservation:      r.Platform.LastDateObservation,
	}
}

// Values returns the fields in FlatColumns order.
func (f Flat) Values() []string {
	return []string{
		f.PlatformCode, f.DataType, f.FileType, f.NetCDF, f.FileName,
		f.LatMin, f.LatMax, f.LonMin, f.LonMax,
		f.TimeCoverageStart, f.TimeCoverageEnd,
		f.WMOPlatformCode, f.InstitutionEDMOCode, f.Parameters,
		f.LastLatitudeObservation, f.LastLongitudeObservation, f.LastDateObservation,
	}
}
