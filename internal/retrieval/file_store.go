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
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cardinalhq/udal-cwd/internal/catalog"
)

// IndexPartPrefix marks a dataset's index files at the dataset root.
const IndexPartPrefix = "index_"

// NewFileFetcher serves datasets from a local mirror laid out as
// <base>/<bucket>/<prefix>/..., for tests and offline use.
func NewFileFetcher(cat *catalog.Catalog, base string, opts ...FetcherOption) *CatalogFetcher {
	return NewFetcher(cat, FileStoreFactory(base), opts...)
}

// FileStoreFactory opens datasets under base.
func FileStoreFactory(base string) StoreFactory {
	return func(_ context.Context, ds catalog.Dataset) (ObjectStore, error) {
		root := filepath.Join(base, ds.Source.Bucket, filepath.FromSlash(ds.Source.Prefix))
		fi, err := os.Stat(root)
		if err != nil {
			return nil, fmt.Errorf("dataset root %s: %w", root, err)
		}
		if !fi.IsDir() {
			return nil, fmt.Errorf("dataset root %s is not a directory", root)
		}
		return &fileStore{root: root}, nil
	}
}

type fileStore struct {
	root string
}

func (s *fileStore) path(key string) string {
	return filepath.Join(s.root, filepath.FromSlash(key))
}

func (s *fileStore) ListIndexParts(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, err
	}
	var keys []string
	for _, e := range entries {
		if e.Type().IsRegular() && strings.HasPrefix(e.Name(), IndexPartPrefix) {
			keys = append(keys, e.Name())
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *fileStore) Download(_ context.Context, key, dst string) (int64, error) {
	src, err := os.Open(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, fmt.Errorf("%s: %w", key, ErrNotFound)
		}
		return 0, err
	}
	defer func() { _ = src.Close() }()

	out, err := os.Create(dst)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(out, src)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	return n, err
}
