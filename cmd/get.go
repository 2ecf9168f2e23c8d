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

	"github.com/spf13/cobra"

	"github.com/cardinalhq/udal-cwd/internal/retrieval"
)

func init() {
	rootCmd.AddCommand(newGetCmd())
}

// newGetCmd exposes the retrieval layer directly, for warming the cache or
// fetching a hand written manifest.
func newGetCmd() *cobra.Command {
	var req retrieval.Request
	cmd := &cobra.Command{
		Use:   "get",
		Short: "Fetch dataset index files or the files listed in a manifest",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runWithTelemetry(func(ctx context.Context) error {
				svc, err := loadServices(ctx)
				if err != nil {
					return err
				}
				if req.DatasetID == "" {
					req.DatasetID = svc.cfg.DatasetID
				}
				if req.IndexParts && req.FileList != "" {
					return fmt.Errorf("--index-parts and --file-list are mutually exclusive")
				}
				return svc.fetcher.Get(ctx, req)
			})
		},
	}

	cmd.Flags().StringVar(&req.OutputDirectory, "output-directory", ".", "Directory to write files into")
	cmd.Flags().BoolVar(&req.NoDirectories, "no-directories", false, "Write every file directly into the output directory")
	cmd.Flags().BoolVar(&req.IndexParts, "index-parts", false, "Fetch the dataset's index files")
	cmd.Flags().BoolVar(&req.Overwrite, "overwrite", false, "Replace files that already exist")
	cmd.Flags().StringVar(&req.FileList, "file-list", "", "Manifest of keys to fetch, one per line")

	return cmd
}
