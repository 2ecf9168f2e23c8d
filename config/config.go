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

// Package config loads the settings of the udal command.
package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/viper"

	"github.com/cardinalhq/udal-cwd/internal/indexfile"
	"github.com/cardinalhq/udal-cwd/internal/retrieval"
	"github.com/cardinalhq/udal-cwd/internal/udal"
)

const (
	ProviderS3   = "s3"
	ProviderFile = "file"
)

// Config aggregates configuration for the application.
type Config struct {
	CacheDir    string          `mapstructure:"cache_dir"`
	CatalogFile string          `mapstructure:"catalog_file"`
	DatasetID   string          `mapstructure:"dataset_id"`
	Loader      LoaderConfig    `mapstructure:"loader"`
	Retrieval   RetrievalConfig `mapstructure:"retrieval"`
}

type LoaderConfig struct {
	ChunkSize int `mapstructure:"chunk_size"`
}

type RetrievalConfig struct {
	// Provider is "s3" for the dataset's own store or "file" for a local
	// mirror rooted at FileBase.
	Provider              string `mapstructure:"provider"`
	FileBase              string `mapstructure:"file_base"`
	Concurrency           int    `mapstructure:"concurrency"`
	AccessKeyID           string `mapstructure:"access_key_id"`
	SecretAccessKey       string `mapstructure:"secret_access_key"`
	UseDefaultCredentials bool   `mapstructure:"use_default_credentials"`
	// RoleSessionName names sessions for sources that assume a role. Empty
	// picks a unique name per process.
	RoleSessionName       string `mapstructure:"role_session_name"`
}

func DefaultConfig() *Config {
	return &Config{
		CacheDir:  udal.DefaultCacheDir,
		DatasetID: udal.DefaultDatasetID,
		Loader: LoaderConfig{
			ChunkSize: indexfile.DefaultChunkSize,
		},
		Retrieval: RetrievalConfig{
			Provider:    ProviderS3,
			Concurrency: retrieval.DefaultConcurrency,
		},
	}
}

// Load reads configuration from files and environment variables.
// Environment variables use the prefix "UDAL" and the dot character
// in keys is replaced by an underscore. For example, "loader.chunk_size"
// becomes "UDAL_LOADER_CHUNK_SIZE".
func Load() (*Config, error) {
	return LoadFrom(viper.New())
}

// LoadFrom is Load using v, so callers can bind command line flags to v
// beforehand. Bound flags take precedence over the environment.
func LoadFrom(v *viper.Viper) (*Config, error) {
	cfg := DefaultConfig()

	v.SetConfigName("config")
	v.AddConfigPath(".")
	v.SetEnvPrefix("UDAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvs(v, cfg)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var result *multierror.Error
	if c.CacheDir == "" {
		result = multierror.Append(result, errors.New("cache_dir must not be empty"))
	}
	if c.Loader.ChunkSize < 0 {
		result = multierror.Append(result, fmt.Errorf("loader.chunk_size must not be negative, got %d", c.Loader.ChunkSize))
	}
	if c.Retrieval.Concurrency < 0 {
		result = multierror.Append(result, fmt.Errorf("retrieval.concurrency must not be negative, got %d", c.Retrieval.Concurrency))
	}
	switch c.Retrieval.Provider {
	case ProviderS3:
		if (c.Retrieval.AccessKeyID == "") != (c.Retrieval.SecretAccessKey == "") {
			result = multierror.Append(result, errors.New("retrieval.access_key_id and retrieval.secret_access_key must be set together"))
		}
	case ProviderFile:
		if c.Retrieval.FileBase == "" {
			result = multierror.Append(result, errors.New("retrieval.file_base is required for the file provider"))
		}
	default:
		result = multierror.Append(result, fmt.Errorf("unknown retrieval.provider %q", c.Retrieval.Provider))
	}
	return result.ErrorOrNil()
}

// bindEnvs registers all keys within cfg so that viper will look up
// corresponding environment variables when unmarshalling.
func bindEnvs(v *viper.Viper, cfg any, parts ...string) {
	val := reflect.ValueOf(cfg)
	typ := reflect.TypeOf(cfg)
	if typ.Kind() == reflect.Ptr {
		val = val.Elem()
		typ = typ.Elem()
	}
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		tag := f.Tag.Get("mapstructure")
		if tag == "" {
			tag = strings.ToLower(f.Name)
		}
		key := append(parts, tag)
		if f.Type.Kind() == reflect.Struct {
			bindEnvs(v, val.Field(i).Interface(), key...)
			continue
		}
		_ = v.BindEnv(strings.Join(key, "."))
	}
}
