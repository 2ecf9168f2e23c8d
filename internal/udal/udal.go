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

// Package udal executes named queries over the in-situ observation dataset.
// A query fetches the dataset's index files, reconciles them with the
// platform index, narrows the rows with the query's filters and fetches the
// selected data files into the cache directory.
package udal

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"strings"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/cardinalhq/udal-cwd/internal/catalog"
	"github.com/cardinalhq/udal-cwd/internal/idgen"
	"github.com/cardinalhq/udal-cwd/internal/indexfile"
	"github.com/cardinalhq/udal-cwd/internal/logctx"
	"github.com/cardinalhq/udal-cwd/internal/reconcile"
	"github.com/cardinalhq/udal-cwd/internal/retrieval"
)

const (
	DefaultCacheDir  = "udal_cwd_cache"
	DefaultDatasetID = "cmems_obs-ins_glo_phybgcwav_mynrt_na_irr"
)

type Config struct {
	// CacheDir receives index and data files. Defaults to DefaultCacheDir.
	CacheDir string
	// ChunkSize bounds the rows held while region filtering an index file.
	ChunkSize int
	// DatasetID is the catalog entry queried. Defaults to DefaultDatasetID.
	DatasetID string
}

// UDAL is the uniform data access layer over one catalog.
type UDAL struct {
	cfg        Config
	catalog    *catalog.Catalog
	fetcher    retrieval.Fetcher
	reconciler *reconcile.Reconciler
}

func New(cfg Config, cat *catalog.Catalog, fetcher retrieval.Fetcher) *UDAL {
	if cfg.CacheDir == "" {
		cfg.CacheDir = DefaultCacheDir
	}
	if cfg.DatasetID == "" {
		cfg.DatasetID = DefaultDatasetID
	}
	if cat == nil {
		cat = catalog.Default()
	}
	return &UDAL{
		cfg:        cfg,
		catalog:    cat,
		fetcher:    fetcher,
		reconciler: reconcile.New(indexfile.NewLoader(cfg.ChunkSize)),
	}
}

func (u *UDAL) QueryNames() []string { return QueryNames() }

func (u *UDAL) Queries() map[string]NamedQueryInfo { return Queries() }

// Execute runs the named query. Errors from retrieval and index loading are
// returned as is; nothing is retried and no partial result is returned.
func (u *UDAL) Execute(ctx context.Context, name string, params Params) (*Result, error) {
	query, ok := lookupQuery(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedQuery, name)
	}
	qp, err := ResolveParams(params)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	md := Metadata{
		ExecutionID: idgen.NewExecutionID(),
		Query:       name,
		DatasetID:   u.cfg.DatasetID,
		Period:      qp.Period(),
		StartedAt:   start.UTC(),
	}

	ctx, ll := logctx.With(ctx, slog.String("executionID", md.ExecutionID))
	ctx, span := tracer.Start(ctx, "udal.Execute", trace.WithAttributes(
		attribute.String("query", name),
		attribute.String("executionID", md.ExecutionID),
		attribute.String("period", md.Period),
	))
	defer span.End()
	if qp.Region != nil {
		span.SetAttributes(
			attribute.String("region", qp.Region.String()),
			attribute.String("axisOrder", string(qp.Region.AxisOrder())))
		ll.Debug("Region filter",
			slog.String("region", qp.Region.String()),
			slog.String("axisOrder", string(qp.Region.AxisOrder())))
	}

	records, err := u.run(ctx, qp, &md)

	elapsed := time.Since(start)
	outcome := "success"
	if err != nil {
		outcome = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	attrs := metric.WithAttributes(attribute.String("query", name), attribute.String("outcome", outcome))
	queryCounter.Add(ctx, 1, attrs)
	queryDuration.Record(ctx, elapsed.Seconds(), attrs)
	if err != nil {
		ll.Error("Query failed", slog.String("query", name), slog.Any("error", err))
		return nil, err
	}

	md.Elapsed = elapsed.String()
	res := NewResult(query, md, records)
	ll.Info("Query complete",
		slog.String("query", name),
		slog.Int("records", len(records)),
		slog.Int("groups", len(res.groups)),
		slog.Duration("elapsed", elapsed))
	return res, nil
}

func (u *UDAL) run(ctx context.Context, qp QueryParams, md *Metadata) ([]reconcile.Record, error) {
	ds, err := u.catalog.Dataset(u.cfg.DatasetID)
	if err != nil {
		return nil, err
	}
	dir := filepath.Join(u.cfg.CacheDir, "input", ds.Type, md.Period)
	md.Directory = dir

	err = u.fetcher.Get(ctx, retrieval.Request{
		DatasetID:       ds.ID,
		OutputDirectory: dir,
		NoDirectories:   true,
		IndexParts:      true,
		Overwrite:       true,
	})
	if err != nil {
		return nil, fmt.Errorf("fetch index files: %w", err)
	}

	records, err := u.reconciler.Reconcile(ctx, ds.IndexSet(md.Period), dir, qp.Region)
	if err != nil {
		return nil, err
	}
	selected := applyFilters(ctx, records, filterStages(qp))

	md.Manifest = manifestKeys(md.Period, selected)
	if err := u.fetchFiles(ctx, ds.ID, filepath.Join(dir, qp.DataType), md.Manifest); err != nil {
		return nil, err
	}
	return selected, nil
}

// fetchFiles retrieves keys through a temporary manifest that is removed on
// return whatever the outcome.
func (u *UDAL) fetchFiles(ctx context.Context, datasetID, dir string, keys []string) error {
	if len(keys) == 0 {
		logctx.FromContext(ctx).Info("No files selected, skipping data retrieval")
		return nil
	}
	manifest, cleanup, err := retrieval.WriteManifest("", keys)
	if err != nil {
		return err
	}
	defer cleanup()

	err = u.fetcher.Get(ctx, retrieval.Request{
		DatasetID:       datasetID,
		OutputDirectory: dir,
		NoDirectories:   true,
		Overwrite:       true,
		FileList:        manifest,
	})
	if err != nil {
		return fmt.Errorf("fetch data files: %w", err)
	}
	return nil
}

// manifestKeys maps each record to <period>/<parent directory>/<file>,
// dropping repeats.
func manifestKeys(period string, records []reconcile.Record) []string {
	seen := mapset.NewThreadUnsafeSet[string]()
	keys := make([]string, 0, len(records))
	for _, r := range records {
		k := manifestKey(period, r.FileName())
		if seen.Add(k) {
			keys = append(keys, k)
		}
	}
	return keys
}

func manifestKey(period, fileName string) string {
	dir, file := path.Split(strings.TrimSpace(fileName))
	dir = strings.TrimSuffix(dir, "/")
	parent := dir[strings.LastIndex(dir, "/")+1:]
	return path.Join(period, parent, file)
}
