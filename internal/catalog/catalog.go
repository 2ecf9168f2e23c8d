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

// Package catalog describes the datasets the access layer knows how to query:
// which index files they publish and where their files are stored.
package catalog

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"
)

// PeriodPlaceholder is replaced by the query period in index file names.
const PeriodPlaceholder = "{period}"

var ErrDatasetNotFound = errors.New("dataset not found in catalog")

//go:embed default_catalog.yaml
var defaultCatalog []byte

// Source locates a dataset's files in an S3 compatible store.
type Source struct {
	Provider     string `yaml:"provider"`
	Endpoint     string `yaml:"endpoint,omitempty"`
	Region       string `yaml:"region,omitempty"`
	Bucket       string `yaml:"bucket"`
	Prefix       string `yaml:"prefix,omitempty"`
	Role         string `yaml:"role,omitempty"`
	UsePathStyle bool   `yaml:"use_path_style,omitempty"`
	InsecureTLS  bool   `yaml:"insecure_tls,omitempty"`
}

// Dataset is one distributable dataset and its index layout.
type Dataset struct {
	ID            string   `yaml:"id"`
	Product       string   `yaml:"product"`
	Type          string   `yaml:"type"`
	IndexFiles    []string `yaml:"index_files"`
	PlatformIndex string   `yaml:"index_platform"`
	Source        Source   `yaml:"source"`
}

// IndexSet names the index files to reconcile for one period.
type IndexSet struct {
	PlatformIndex string
	IndexFiles    []string
}

// IndexSet resolves the period placeholder in the dataset's index files.
func (d Dataset) IndexSet(period string) IndexSet {
	files := make([]string, 0, len(d.IndexFiles))
	for _, f := range d.IndexFiles {
		files = append(files, strings.ReplaceAll(f, PeriodPlaceholder, period))
	}
	return IndexSet{
		PlatformIndex: d.PlatformIndex,
		IndexFiles:    files,
	}
}

type catalogFile struct {
	Version  int       `yaml:"version"`
	Datasets []Dataset `yaml:"datasets"`
}

// Catalog is a validated set of datasets keyed by id.
type Catalog struct {
	datasets []Dataset
	byID     map[string]int
}

// Default returns the built-in catalog.
func Default() *Catalog {
	c, err := Parse("default_catalog.yaml", defaultCatalog)
	if err != nil {
		panic(fmt.Errorf("built-in catalog is invalid: %w", err))
	}
	return c
}

// Load reads a catalog from filename. A filename of the form "env:NAME"
// reads the YAML from the environment variable NAME instead.
func Load(filename string) (*Catalog, error) {
	if envVar, ok := strings.CutPrefix(filename, "env:"); ok {
		contents := os.Getenv(envVar)
		if contents == "" {
			return nil, fmt.Errorf("environment variable %s is not set", envVar)
		}
		return Parse(filename, []byte(contents))
	}

	contents, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog from file %s: %w", filename, err)
	}
	return Parse(filename, contents)
}

// Parse decodes and validates catalog YAML. Unknown keys are rejected.
func Parse(name string, contents []byte) (*Catalog, error) {
	var cf catalogFile
	dec := yaml.NewDecoder(bytes.NewReader(contents))
	dec.KnownFields(true)
	if err := dec.Decode(&cf); err != nil {
		return nil, fmt.Errorf("failed to unmarshal catalog %s: %w", name, err)
	}
	if cf.Version != 1 {
		return nil, fmt.Errorf("catalog %s: unsupported version %d", name, cf.Version)
	}

	c := &Catalog{
		datasets: cf.Datasets,
		byID:     make(map[string]int, len(cf.Datasets)),
	}
	for i := range c.datasets {
		if c.datasets[i].Source.Provider == "" {
			c.datasets[i].Source.Provider = "s3"
		}
		if _, dup := c.byID[c.datasets[i].ID]; !dup {
			c.byID[c.datasets[i].ID] = i
		}
	}
	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("catalog %s: %w", name, err)
	}
	return c, nil
}

func (c *Catalog) validate() error {
	var result *multierror.Error
	if len(c.datasets) == 0 {
		result = multierror.Append(result, errors.New("no datasets defined"))
	}
	seen := map[string]bool{}
	for i, d := range c.datasets {
		label := d.ID
		if label == "" {
			label = fmt.Sprintf("#%d", i)
			result = multierror.Append(result, fmt.Errorf("dataset %s: missing id", label))
		} else if seen[d.ID] {
			result = multierror.Append(result, fmt.Errorf("dataset %s: duplicate id", label))
		}
		seen[d.ID] = true

		if d.Type == "" {
			result = multierror.Append(result, fmt.Errorf("dataset %s: missing type", label))
		}
		if len(d.IndexFiles) == 0 {
			result = multierror.Append(result, fmt.Errorf("dataset %s: no index_files", label))
		}
		if d.PlatformIndex == "" {
			result = multierror.Append(result, fmt.Errorf("dataset %s: missing index_platform", label))
		}
		if d.Source.Provider != "s3" {
			result = multierror.Append(result, fmt.Errorf("dataset %s: unsupported source provider %q", label, d.Source.Provider))
		}
		if d.Source.Bucket == "" {
			result = multierror.Append(result, fmt.Errorf("dataset %s: missing source bucket", label))
		}
	}
	return result.ErrorOrNil()
}

// Dataset looks up a dataset by id.
func (c *Catalog) Dataset(id string) (Dataset, error) {
	i, ok := c.byID[id]
	if !ok {
		return Dataset{}, fmt.Errorf("%w: %s", ErrDatasetNotFound, id)
	}
	return c.datasets[i], nil
}

// Datasets returns all datasets in declaration order.
func (c *Catalog) Datasets() []Dataset {
	out := make([]Dataset, len(c.datasets))
	copy(out, c.datasets)
	return out
}
