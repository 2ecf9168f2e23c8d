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

import "maps"

// QueryNAME selects in-situ dataset files by region, time, data type and
// file type.
const QueryNAME = "urn:fairease.eu:udal:cwd:NAME"

// NamedQueryInfo describes a supported query. Params is the parameter
// schema advertised for it.
type NamedQueryInfo struct {
	Name   string         `json:"name" yaml:"name"`
	Params map[string]any `json:"params" yaml:"params"`
}

var queryNames = []string{QueryNAME}

var queryRegistry = map[string]NamedQueryInfo{
	QueryNAME: {Name: QueryNAME, Params: map[string]any{}},
}

// QueryNames lists the supported query names.
func QueryNames() []string {
	out := make([]string, len(queryNames))
	copy(out, queryNames)
	return out
}

// Queries returns the descriptor of every supported query, keyed by name.
func Queries() map[string]NamedQueryInfo {
	out := make(map[string]NamedQueryInfo, len(queryRegistry))
	for name, q := range queryRegistry {
		q.Params = maps.Clone(q.Params)
		out[name] = q
	}
	return out
}

func lookupQuery(name string) (NamedQueryInfo, bool) {
	q, ok := queryRegistry[name]
	return q, ok
}
