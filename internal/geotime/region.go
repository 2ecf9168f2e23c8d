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

// Package geotime holds the row predicates used to narrow dataset index
// files: containment of a file's minimum corner in a region, and overlap of a
// file's time coverage with a requested range.
package geotime

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

const (
	LatMinColumn = "geospatial_lat_min"
	LonMinColumn = "geospatial_lon_min"
)

var ErrUnsupportedGeometry = errors.New("unsupported geometry")

// AxisOrder says how a region's coordinates map onto latitude and longitude.
type AxisOrder string

const (
	// LatLon reads X as latitude and Y as longitude. This is the default.
	LatLon AxisOrder = "lat_lon"
	// LonLat is the GeoJSON and WKT convention: X is longitude.
	LonLat AxisOrder = "lon_lat"
)

var ErrUnknownAxisOrder = errors.New("unknown axis order")

// ParseAxisOrder accepts lat_lon or lon_lat. An empty string is LatLon.
func ParseAxisOrder(s string) (AxisOrder, error) {
	switch o := AxisOrder(strings.ToLower(strings.TrimSpace(s))); o {
	case "":
		return LatLon, nil
	case LatLon, LonLat:
		return o, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownAxisOrder, s)
	}
}

// Region is an area that can answer whether it contains a point.
type Region struct {
	geom  orb.Geometry
	order AxisOrder
}

// NewRegion wraps a polygon or multipolygon. Its coordinates are read in
// LatLon order; use WithAxisOrder to change that.
func NewRegion(g orb.Geometry) (*Region, error) {
	switch v := g.(type) {
	case orb.Polygon:
		if len(v) == 0 || len(v[0]) < 4 {
			return nil, fmt.Errorf("polygon needs a closed outer ring of at least 4 points")
		}
	case orb.MultiPolygon:
		if len(v) == 0 {
			return nil, fmt.Errorf("multipolygon has no polygons")
		}
	case orb.Bound:
		g = v.ToPolygon()
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedGeometry, g)
	}
	return &Region{geom: g, order: LatLon}, nil
}

// WithAxisOrder returns a copy of r that reads its coordinates in order.
func (r *Region) WithAxisOrder(order AxisOrder) *Region {
	return &Region{geom: r.geom, order: order}
}

func (r *Region) AxisOrder() AxisOrder { return r.order }

// ParseRegion accepts a WKT POLYGON/MULTIPOLYGON or a GeoJSON geometry or
// feature.
func ParseRegion(s string) (*Region, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty region")
	}

	var g orb.Geometry
	var err error
	if strings.HasPrefix(s, "{") {
		g, err = parseGeoJSON([]byte(s))
	} else {
		g, err = wkt.Unmarshal(s)
	}
	if err != nil {
		return nil, fmt.Errorf("parse region: %w", err)
	}
	return NewRegion(g)
}

func parseGeoJSON(data []byte) (orb.Geometry, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, err
	}
	if head.Type == "Feature" {
		f, err := geojson.UnmarshalFeature(data)
		if err != nil {
			return nil, err
		}
		return f.Geometry, nil
	}
	g, err := geojson.UnmarshalGeometry(data)
	if err != nil {
		return nil, err
	}
	return g.Geometry(), nil
}

// Contains reports whether p, given in the region's own axis order, lies
// inside the region.
func (r *Region) Contains(p orb.Point) bool {
	switch g := r.geom.(type) {
	case orb.Polygon:
		return planar.PolygonContains(g, p)
	case orb.MultiPolygon:
		return planar.MultiPolygonContains(g, p)
	}
	return false
}

func (r *Region) String() string {
	return wkt.MarshalString(r.geom)
}

// MinCornerPoint builds the point used for containment from a row's minimum
// latitude and longitude, laid out in order. This is a single point, not a
// bounding box.
func MinCornerPoint(row map[string]string, order AxisOrder) (orb.Point, error) {
	lat, err := parseCoordinate(row, LatMinColumn)
	if err != nil {
		return orb.Point{}, err
	}
	lon, err := parseCoordinate(row, LonMinColumn)
	if err != nil {
		return orb.Point{}, err
	}
	if order == LonLat {
		return orb.Point{lon, lat}, nil
	}
	return orb.Point{lat, lon}, nil
}

func parseCoordinate(row map[string]string, column string) (float64, error) {
	raw, ok := row[column]
	if !ok {
		return 0, fmt.Errorf("missing column %s", column)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", column, err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%s: not a finite number: %q", column, raw)
	}
	return v, nil
}

// InRegion is the containment predicate. Rows whose coordinates cannot be
// read never match.
func InRegion(row map[string]string, region *Region) bool {
	if region == nil {
		return false
	}
	p, err := MinCornerPoint(row, region.order)
	if err != nil {
		return false
	}
	return region.Contains(p)
}
