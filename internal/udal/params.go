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
	"fmt"
	"strconv"
	"strings"

	"github.com/paulmach/orb"

	"github.com/cardinalhq/udal-cwd/internal/geotime"
)

// Parameter keys accepted by QueryNAME.
const (
	ParamLatest    = "latest"
	ParamPolygon   = "polygon"
	ParamTimeRange = "time_range"
	ParamDataType  = "data_type"
	ParamFileType  = "file_type"
	ParamAxisOrder = "axis_order"
)

const (
	PeriodLatest  = "latest"
	PeriodHistory = "history"

	DefaultDataType = "MO"
	DefaultFileType = "TS"
)

// Params are the caller supplied query parameters. Absent keys, nil values
// and empty strings take the default.
type Params map[string]any

// QueryParams are Params resolved to typed values.
type QueryParams struct {
	Latest    bool
	Region    *geotime.Region
	TimeRange *geotime.TimeRange
	DataType  string
	FileType  string
}

// Period names the index period the query reads.
func (q QueryParams) Period() string {
	if q.Latest {
		return PeriodLatest
	}
	return PeriodHistory
}

// ResolveParams applies defaults and parses every parameter. Keys other than
// the documented ones are ignored.
func ResolveParams(p Params) (QueryParams, error) {
	q := QueryParams{
		Latest:   true,
		DataType: DefaultDataType,
		FileType: DefaultFileType,
	}

	var err error
	if q.Latest, err = resolveLatest(p[ParamLatest]); err != nil {
		return QueryParams{}, err
	}
	if q.Region, err = resolveRegion(p[ParamPolygon]); err != nil {
		return QueryParams{}, err
	}
	order, explicit, err := resolveAxisOrder(p[ParamAxisOrder])
	if err != nil {
		return QueryParams{}, err
	}
	if q.Region != nil && explicit {
		q.Region = q.Region.WithAxisOrder(order)
	}
	if q.TimeRange, err = resolveTimeRange(p[ParamTimeRange]); err != nil {
		return QueryParams{}, err
	}
	if q.DataType, err = resolveString(ParamDataType, p[ParamDataType], DefaultDataType); err != nil {
		return QueryParams{}, err
	}
	if q.FileType, err = resolveString(ParamFileType, p[ParamFileType], DefaultFileType); err != nil {
		return QueryParams{}, err
	}
	return q, nil
}

func invalid(key string, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidParam, key, fmt.Sprintf(format, args...))
}

func resolveLatest(v any) (bool, error) {
	switch v := v.(type) {
	case nil:
		return true, nil
	case bool:
		return v, nil
	case *bool:
		if v == nil {
			return true, nil
		}
		return *v, nil
	case string:
		if strings.TrimSpace(v) == "" {
			return true, nil
		}
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return false, invalid(ParamLatest, "%q is not a boolean", v)
		}
		return b, nil
	default:
		return false, invalid(ParamLatest, "unsupported type %T", v)
	}
}

func resolveRegion(v any) (*geotime.Region, error) {
	var (
		r   *geotime.Region
		err error
	)
	switch v := v.(type) {
	case nil:
		return nil, nil
	case *geotime.Region:
		return v, nil
	case string:
		if strings.TrimSpace(v) == "" {
			return nil, nil
		}
		r, err = geotime.ParseRegion(v)
	case orb.Geometry:
		r, err = geotime.NewRegion(v)
	default:
		return nil, invalid(ParamPolygon, "unsupported type %T", v)
	}
	if err != nil {
		return nil, invalid(ParamPolygon, "%v", err)
	}
	return r, nil
}

// resolveAxisOrder reports whether the caller chose an order. Without one a
// region keeps its own, which is LatLon unless built otherwise.
func resolveAxisOrder(v any) (geotime.AxisOrder, bool, error) {
	var raw string
	switch v := v.(type) {
	case nil:
		return geotime.LatLon, false, nil
	case geotime.AxisOrder:
		raw = string(v)
	case string:
		raw = v
	default:
		return "", false, invalid(ParamAxisOrder, "unsupported type %T", v)
	}
	if strings.TrimSpace(raw) == "" {
		return geotime.LatLon, false, nil
	}
	order, err := geotime.ParseAxisOrder(raw)
	if err != nil {
		return "", false, invalid(ParamAxisOrder, "%v", err)
	}
	return order, true, nil
}

func resolveTimeRange(v any) (*geotime.TimeRange, error) {
	switch v := v.(type) {
	case nil:
		return nil, nil
	case geotime.TimeRange:
		return &v, nil
	case *geotime.TimeRange:
		return v, nil
	case string:
		if strings.TrimSpace(v) == "" {
			return nil, nil
		}
		tr, err := geotime.ParseTimeRange(v)
		if err != nil {
			return nil, invalid(ParamTimeRange, "%v", err)
		}
		return &tr, nil
	default:
		return nil, invalid(ParamTimeRange, "unsupported type %T", v)
	}
}

func resolveString(key string, v any, def string) (string, error) {
	switch v := v.(type) {
	case nil:
		return def, nil
	case string:
		if v = strings.TrimSpace(v); v == "" {
			return def, nil
		}
		return v, nil
	default:
		return "", invalid(key, "unsupported type %T", v)
	}
}
