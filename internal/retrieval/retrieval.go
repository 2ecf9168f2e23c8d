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

// Package retrieval fetches dataset index parts and data files into a local
// directory. The query layer only depends on the Fetcher contract; the S3 and
// local mirror stores here are the implementations wired by the CLI.
package retrieval

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
)

var (
	ErrNotFound    = errors.New("object not found")
	ErrNoSelection = errors.New("request selects neither index parts nor a file list")
	ErrInvalidKey  = errors.New("invalid object key")

	// ErrDuplicateDestination means two keys would be written to the same
	// local file, which happens when NoDirectories flattens keys that share
	// a base name.
	ErrDuplicateDestination = errors.New("keys map to the same local file")
)

// Request describes one fetch.
type Request struct {
	DatasetID       string
	OutputDirectory string
	// NoDirectories writes every file directly into OutputDirectory.
	NoDirectories bool
	// IndexParts fetches only the dataset's index files.
	IndexParts bool
	// Overwrite replaces files that already exist locally.
	Overwrite bool
	// FileList is the path of a manifest of keys, relative to the dataset
	// root, one per line.
	FileList string
}

// Fetcher retrieves dataset files.
type Fetcher interface {
	Get(ctx context.Context, req Request) error
}

// ReadManifest returns the keys listed in a manifest file. Blank lines and
// lines starting with # are ignored.
func ReadManifest(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	defer func() { _ = f.Close() }()

	var keys []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		keys = append(keys, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return keys, nil
}

// WriteManifest writes keys to a new temporary file and returns its path
// along with a function that removes it.
func WriteManifest(dir string, keys []string) (string, func(), error) {
	f, err := os.CreateTemp(dir, "udal-manifest-*.txt")
	if err != nil {
		return "", func() {}, fmt.Errorf("create manifest: %w", err)
	}
	cleanup := func() { _ = os.Remove(f.Name()) }

	w := bufio.NewWriter(f)
	for _, k := range keys {
		if _, err := w.WriteString(k + "\n"); err != nil {
			_ = f.Close()
			cleanup()
			return "", func() {}, fmt.Errorf("write manifest: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		cleanup()
		return "", func() {}, fmt.Errorf("write manifest: %w", err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", func() {}, fmt.Errorf("close manifest: %w", err)
	}
	return f.Name(), cleanup, nil
}
