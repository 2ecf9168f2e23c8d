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

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "udal_cwd_cache", cfg.CacheDir)
	assert.Equal(t, "cmems_obs-ins_glo_phybgcwav_mynrt_na_irr", cfg.DatasetID)
	assert.Equal(t, 1000, cfg.Loader.ChunkSize)
	assert.Equal(t, ProviderS3, cfg.Retrieval.Provider)
	assert.Equal(t, 4, cfg.Retrieval.Concurrency)
	assert.Empty(t, cfg.CatalogFile)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("UDAL_CACHE_DIR", "/tmp/udal")
	t.Setenv("UDAL_LOADER_CHUNK_SIZE", "250")
	t.Setenv("UDAL_RETRIEVAL_PROVIDER", "file")
	t.Setenv("UDAL_RETRIEVAL_FILE_BASE", "/data/mirror")
	t.Setenv("UDAL_RETRIEVAL_CONCURRENCY", "8")
	t.Setenv("UDAL_RETRIEVAL_ROLE_SESSION_NAME", "nightly")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/tmp/udal", cfg.CacheDir)
	assert.Equal(t, 250, cfg.Loader.ChunkSize)
	assert.Equal(t, ProviderFile, cfg.Retrieval.Provider)
	assert.Equal(t, "/data/mirror", cfg.Retrieval.FileBase)
	assert.Equal(t, 8, cfg.Retrieval.Concurrency)
	assert.Equal(t, "nightly", cfg.Retrieval.RoleSessionName)
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(`
cache_dir: from-file
retrieval:
  concurrency: 2
`), 0o644))
	t.Setenv("UDAL_RETRIEVAL_CONCURRENCY", "3")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.CacheDir)
	assert.Equal(t, 3, cfg.Retrieval.Concurrency, "environment wins over the config file")
}

func TestLoadFromBoundValues(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("UDAL_CACHE_DIR", "from-env")

	v := viper.New()
	v.Set("cache_dir", "from-flag")
	cfg, err := LoadFrom(v)
	require.NoError(t, err)
	assert.Equal(t, "from-flag", cfg.CacheDir)
}

func TestValidate(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("UDAL_RETRIEVAL_PROVIDER", "ftp")
	t.Setenv("UDAL_LOADER_CHUNK_SIZE", "-1")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown retrieval.provider")
	assert.Contains(t, err.Error(), "loader.chunk_size")

	cfg := DefaultConfig()
	cfg.Retrieval.Provider = ProviderFile
	assert.ErrorContains(t, cfg.Validate(), "file_base")

	cfg = DefaultConfig()
	cfg.Retrieval.AccessKeyID = "AKIA"
	assert.ErrorContains(t, cfg.Validate(), "must be set together")
}
