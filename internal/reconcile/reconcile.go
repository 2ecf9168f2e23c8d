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

// Package reconcile merges a dataset's file indexes with its platform index.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/cardinalhq/udal-cwd/internal/catalog"
	"github.com/cardinalhq/udal-cwd/internal/geotime"
	"github.com/cardinalhq/udal-cwd/internal/indexfile"
	"github.com/cardinalhq/udal-cwd/internal/logctx"
)

// Reconciler loads index files from a local directory and joins them.
type Reconciler struct {
	loader *indexfile.Loader
}

func New(loader *indexfile.Loader) *Reconciler {
	if loader == nil {
		loader = indexfile.NewLoader(0)
	}
	return &Reconciler{loader: loader}
}

// Reconcile loads set from dir and returns one Record per file row whose
// derived platform code has an entry in the platform index. File rows keep
// the order of set.IndexFiles and of the rows inside each file. When region
// is non-nil the file indexes are filtered by it while loading.
func (r *Reconciler) Reconcile(ctx context.Context, set catalog.IndexSet, dir string, region *geotime.Region) ([]Record, error) {
	platforms, err := r.loadPlatforms(ctx, filepath.Join(dir, set.PlatformIndex))
	if err != nil {
		return nil, err
	}

	tables := make([]*indexfile.Table, 0, len(set.IndexFiles))
	for _, name := range set.IndexFiles {
		t, err := r.loader.Load(ctx, filepath.Join(dir, name), region)
		if err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	files := indexfile.Concat(tables...)
	if files.Len() > 0 && !files.HasColumn(FileNameColumn) {
		return nil, fmt.Errorf("file index has no %s column", FileNameColumn)
	}

	records := Join(files, platforms)
	logctx.FromContext(ctx).Info("Reconciled index files",
		slog.Int("fileRows", files.Len()),
		slog.Int("platforms", len(platforms)),
		slog.Int("records", len(records)))
	return records, nil
}

func (r *Reconciler) loadPlatforms(ctx context.Context, path string) (map[string]Platform, error) {
	t, err := r.loader.Load(ctx, path, nil)
	if err != nil {
		return nil, err
	}
	return Platforms(t), nil
}

// Platforms keys the platform index by its first column, renamed to
// platform_code. When a code repeats the first row wins.
func Platforms(t *indexfile.Table) map[string]Platform {
	out := make(map[string]Platform, t.Len())
	if len(t.Columns) == 0 {
		return out
	}
	if t.Columns[0] != PlatformCodeColumn {
		t.RenameColumn(t.Columns[0], PlatformCodeColumn)
	}
	for _, row := range t.Rows {
		code := row[PlatformCodeColumn]
		if code == "" {
			continue
		}
		if _, dup := out[code]; dup {
			continue
		}
		out[code] = platformFromRow(row)
	}
	return out
}

// Join derives the file fields of every file row and inner-joins it with
// platforms. Rows whose platform is unknown are dropped.
func Join(files *indexfile.Table, platforms map[string]Platform) []Record {
	records := make([]Record, 0, files.Len())
	dropped := 0
	for _, row := range files.Rows {
		fields := DeriveFileFields(row[FileNameColumn])
		p, ok := platforms[fields.PlatformCode]
		if !ok || fields.PlatformCode == "" {
			dropped++
			continue
		}
		records = append(records, Record{
			Row:        row,
			FileFields: fields,
			Platform:   p,
		})
	}
	if dropped > 0 {
		slog.Debug("Dropped file rows without a matching platform", slog.Int("rows", dropped))
	}
	return records
}
