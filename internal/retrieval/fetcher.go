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

package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/cardinalhq/udal-cwd/internal/catalog"
	"github.com/cardinalhq/udal-cwd/internal/logctx"
)

const DefaultConcurrency = 4

// ObjectStore exposes one dataset's files. Keys are relative to the
// dataset root and use forward slashes.
type ObjectStore interface {
	// ListIndexParts returns the keys of the dataset's index files.
	ListIndexParts(ctx context.Context) ([]string, error)

	// Download writes the object at key to the file dst and returns its
	// size. A missing object yields an error wrapping ErrNotFound.
	Download(ctx context.Context, key, dst string) (int64, error)
}

// StoreFactory opens the store that holds a dataset.
type StoreFactory func(ctx context.Context, ds catalog.Dataset) (ObjectStore, error)

// CatalogFetcher implements Fetcher for every dataset in a catalog.
type CatalogFetcher struct {
	catalog     *catalog.Catalog
	factory     StoreFactory
	concurrency int
	tracer      trace.Tracer

	mu     sync.Mutex
	stores map[string]ObjectStore
}

var _ Fetcher = (*CatalogFetcher)(nil)

type FetcherOption func(*CatalogFetcher)

// WithConcurrency bounds how many files are downloaded at once.
func WithConcurrency(n int) FetcherOption {
	return func(f *CatalogFetcher) {
		if n > 0 {
			f.concurrency = n
		}
	}
}

func NewFetcher(cat *catalog.Catalog, factory StoreFactory, opts ...FetcherOption) *CatalogFetcher {
	f := &CatalogFetcher{
		catalog:     cat,
		factory:     factory,
		concurrency: DefaultConcurrency,
		tracer:      otel.Tracer("github.com/cardinalhq/udal-cwd/internal/retrieval"),
		stores:      map[string]ObjectStore{},
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

func (f *CatalogFetcher) store(ctx context.Context, ds catalog.Dataset) (ObjectStore, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.stores[ds.ID]; ok {
		return s, nil
	}
	s, err := f.factory(ctx, ds)
	if err != nil {
		return nil, fmt.Errorf("open store for dataset %s: %w", ds.ID, err)
	}
	f.stores[ds.ID] = s
	return s, nil
}

// Get fetches the index parts or the manifest entries named by req.
func (f *CatalogFetcher) Get(ctx context.Context, req Request) error {
	ds, err := f.catalog.Dataset(req.DatasetID)
	if err != nil {
		return err
	}

	ctx, span := f.tracer.Start(ctx, "retrieval.Get", trace.WithAttributes(
		attribute.String("dataset", ds.ID),
		attribute.Bool("indexParts", req.IndexParts),
	))
	defer span.End()

	store, err := f.store(ctx, ds)
	if err != nil {
		return err
	}

	var keys []string
	switch {
	case req.IndexParts:
		keys, err = store.ListIndexParts(ctx)
		if err != nil {
			return fmt.Errorf("list index parts of %s: %w", ds.ID, err)
		}
	case req.FileList != "":
		keys, err = ReadManifest(req.FileList)
		if err != nil {
			return err
		}
	default:
		return ErrNoSelection
	}

	if err := os.MkdirAll(req.OutputDirectory, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	keys, dsts, err := destinations(req, keys)
	if err != nil {
		return err
	}

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.concurrency)
	for i, key := range keys {
		dst := dsts[i]
		if !req.Overwrite && fileExists(dst) {
			downloadSkipped.Add(ctx, 1, metric.WithAttributes(attribute.String("dataset", ds.ID)))
			logctx.FromContext(ctx).Debug("Keeping existing file", slog.String("path", dst))
			continue
		}
		g.Go(func() error {
			return f.download(gctx, store, ds.ID, key, dst)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	logctx.FromContext(ctx).Info("Fetched dataset files",
		slog.String("dataset", ds.ID),
		slog.Int("files", len(keys)),
		slog.Bool("indexParts", req.IndexParts),
		slog.String("directory", req.OutputDirectory),
		slog.Duration("elapsed", time.Since(start)))
	return nil
}

// download writes to a temporary sibling of dst and renames it into place so
// an interrupted transfer never leaves a partial file under the final name.
func (f *CatalogFetcher) download(ctx context.Context, store ObjectStore, dataset, key, dst string) error {
	ctx, span := f.tracer.Start(ctx, "retrieval.download", trace.WithAttributes(
		attribute.String("key", key),
	))
	defer span.End()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create directory for %s: %w", key, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".partial-*-"+filepath.Base(dst))
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	_ = tmp.Close()

	size, err := store.Download(ctx, key, tmpName)
	if err != nil {
		_ = os.Remove(tmpName)
		reason := "unknown"
		if errors.Is(err, ErrNotFound) {
			reason = "not_found"
		}
		downloadErrors.Add(ctx, 1, metric.WithAttributes(
			attribute.String("dataset", dataset),
			attribute.String("reason", reason),
		))
		span.RecordError(err)
		return fmt.Errorf("download %s: %w", key, err)
	}
	if err := os.Rename(tmpName, dst); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("move %s into place: %w", key, err)
	}

	downloadCount.Add(ctx, 1, metric.WithAttributes(attribute.String("dataset", dataset)))
	downloadBytes.Add(ctx, size, metric.WithAttributes(attribute.String("dataset", dataset)))
	return nil
}

// destination maps a key to its local path, rejecting keys that would
// escape the output directory.
func destination(req Request, key string) (string, error) {
	clean := path.Clean("/" + strings.TrimSpace(key))
	if clean == "/" || strings.Contains(key, "..") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	rel := strings.TrimPrefix(clean, "/")
	if req.NoDirectories {
		rel = path.Base(rel)
	}
	return filepath.Join(req.OutputDirectory, filepath.FromSlash(rel)), nil
}

// destinations maps keys to local paths. A key listed twice is fetched once;
// two different keys sharing a path fail the request before anything is
// downloaded.
func destinations(req Request, keys []string) ([]string, []string, error) {
	owner := make(map[string]string, len(keys))
	outKeys := make([]string, 0, len(keys))
	dsts := make([]string, 0, len(keys))
	for _, key := range keys {
		dst, err := destination(req, key)
		if err != nil {
			return nil, nil, err
		}
		if prev, ok := owner[dst]; ok {
			if prev == key {
				continue
			}
			return nil, nil, fmt.Errorf("%w: %q and %q both map to %s", ErrDuplicateDestination, prev, key, dst)
		}
		owner[dst] = key
		outKeys = append(outKeys, key)
		dsts = append(dsts, dst)
	}
	return outKeys, dsts, nil
}

func fileExists(p string) bool {
	fi, err := os.Stat(p)
	return err == nil && fi.Mode().IsRegular()
}
