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

package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/cardinalhq/udal-cwd/config"
	"github.com/cardinalhq/udal-cwd/internal/catalog"
	"github.com/cardinalhq/udal-cwd/internal/idgen"
	"github.com/cardinalhq/udal-cwd/internal/retrieval"
	"github.com/cardinalhq/udal-cwd/internal/udal"
)

// settings holds values from the environment, config.yaml and the
// persistent flags bound below.
var settings = viper.New()

func init() {
	defaults := config.DefaultConfig()
	flags := rootCmd.PersistentFlags()

	flags.String("cache-dir", defaults.CacheDir, "Directory that receives index and data files")
	flags.String("catalog", "", "Dataset catalog YAML file, or env:VAR to read it from an environment variable")
	flags.String("dataset", defaults.DatasetID, "Catalog dataset to query")
	flags.Int("chunk-size", defaults.Loader.ChunkSize, "Rows held at once while filtering an index file by region")
	flags.String("provider", defaults.Retrieval.Provider, "Where dataset files come from: s3 or file")
	flags.String("file-base", "", "Root of the local mirror used by the file provider")
	flags.Int("concurrency", defaults.Retrieval.Concurrency, "Maximum parallel downloads")

	bindFlags(flags, map[string]string{
		"cache_dir":             "cache-dir",
		"catalog_file":          "catalog",
		"dataset_id":            "dataset",
		"loader.chunk_size":     "chunk-size",
		"retrieval.provider":    "provider",
		"retrieval.file_base":   "file-base",
		"retrieval.concurrency": "concurrency",
	})
}

func bindFlags(flags *pflag.FlagSet, keys map[string]string) {
	for key, name := range keys {
		if err := settings.BindPFlag(key, flags.Lookup(name)); err != nil {
			panic(fmt.Errorf("failed to bind flag %s: %w", name, err))
		}
	}
}

// services are the collaborators built from the loaded configuration.
type services struct {
	cfg     *config.Config
	catalog *catalog.Catalog
	fetcher retrieval.Fetcher
}

func loadServices(ctx context.Context) (*services, error) {
	cfg, err := config.LoadFrom(settings)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	cat := catalog.Default()
	if cfg.CatalogFile != "" {
		if cat, err = catalog.Load(cfg.CatalogFile); err != nil {
			return nil, err
		}
	}

	fetcher, err := newFetcher(ctx, cfg, cat)
	if err != nil {
		return nil, err
	}
	return &services{cfg: cfg, catalog: cat, fetcher: fetcher}, nil
}

func newFetcher(ctx context.Context, cfg *config.Config, cat *catalog.Catalog) (retrieval.Fetcher, error) {
	fetchOpts := []retrieval.FetcherOption{retrieval.WithConcurrency(cfg.Retrieval.Concurrency)}

	switch cfg.Retrieval.Provider {
	case config.ProviderFile:
		slog.Info("Using local mirror", slog.String("base", cfg.Retrieval.FileBase))
		return retrieval.NewFileFetcher(cat, cfg.Retrieval.FileBase, fetchOpts...), nil
	case config.ProviderS3:
		opts := []retrieval.S3Option{
			retrieval.WithFetcherOptions(fetchOpts...),
			retrieval.WithAssumeRoleSessionName(roleSessionName(cfg)),
		}
		switch {
		case cfg.Retrieval.AccessKeyID != "":
			opts = append(opts, retrieval.WithStaticCredentials(cfg.Retrieval.AccessKeyID, cfg.Retrieval.SecretAccessKey))
		case cfg.Retrieval.UseDefaultCredentials:
			opts = append(opts, retrieval.WithDefaultCredentials())
		}
		return retrieval.NewS3Fetcher(ctx, cat, opts...)
	default:
		return nil, fmt.Errorf("unknown retrieval provider %q", cfg.Retrieval.Provider)
	}
}

func roleSessionName(cfg *config.Config) string {
	if cfg.Retrieval.RoleSessionName != "" {
		return cfg.Retrieval.RoleSessionName
	}
	return "udal-cwd-" + idgen.NextBase32ID()
}

func (s *services) udal() *udal.UDAL {
	return udal.New(udal.Config{
		CacheDir:  s.cfg.CacheDir,
		ChunkSize: s.cfg.Loader.ChunkSize,
		DatasetID: s.cfg.DatasetID,
	}, s.catalog, s.fetcher)
}
