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
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cardinalhq/udal-cwd/internal/export"
	"github.com/cardinalhq/udal-cwd/internal/geotime"
	"github.com/cardinalhq/udal-cwd/internal/udal"
)

type executeOptions struct {
	latest    bool
	polygon   string
	axisOrder string
	timeRange string
	dataType  string
	fileType  string
	output    string
	out       string
}

func init() {
	rootCmd.AddCommand(newExecuteCmd())
}

func newExecuteCmd() *cobra.Command {
	opts := &executeOptions{}
	cmd := &cobra.Command{
		Use:   "execute <query-name>",
		Short: "Execute a named query and write the selected files",
		Long: `Execute a named query. Index files are fetched into <cache-dir>/input/OBSERVATION/<period>,
the files matching every filter are fetched into the <data-type> directory below it, and the
selected records are written in the requested format.`,
		Example: `  udal execute urn:fairease.eu:udal:cwd:NAME --polygon 'POLYGON((35 -10, 35 5, 45 5, 45 -10, 35 -10))'
  udal execute urn:fairease.eu:udal:cwd:NAME --axis-order lon_lat --polygon 'POLYGON((-10 35, 5 35, 5 45, -10 45, -10 35))'
  udal execute urn:fairease.eu:udal:cwd:NAME --latest=false --time-range 2023-01-01T00:00:00Z/2023-01-31T00:00:00Z --output csv`,
		Args: cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			return runWithTelemetry(func(ctx context.Context) error {
				return runExecute(ctx, c, args[0], opts)
			})
		},
	}

	cmd.Flags().BoolVar(&opts.latest, "latest", true, "Query the latest index; false queries the history index")
	cmd.Flags().StringVar(&opts.polygon, "polygon", "", "Region as WKT or GeoJSON")
	cmd.Flags().StringVar(&opts.axisOrder, "axis-order", string(geotime.LatLon), "Coordinate order of --polygon: lat_lon or lon_lat")
	cmd.Flags().StringVar(&opts.timeRange, "time-range", "", "Time range as <start>/<end> in YYYY-MM-DDThh:mm:ssZ")
	cmd.Flags().StringVar(&opts.dataType, "data-type", udal.DefaultDataType, "Data type code, for example MO or DB")
	cmd.Flags().StringVar(&opts.fileType, "file-type", udal.DefaultFileType, "File type code, for example TS or PR")
	cmd.Flags().StringVarP(&opts.output, "output", "o", export.FormatJSON, "Output format: "+strings.Join(export.Formats(), ", "))
	cmd.Flags().StringVar(&opts.out, "out", "", "Write the result to this file instead of stdout")

	return cmd
}

func (o *executeOptions) params() udal.Params {
	return udal.Params{
		udal.ParamLatest:    o.latest,
		udal.ParamPolygon:   o.polygon,
		udal.ParamAxisOrder: o.axisOrder,
		udal.ParamTimeRange: o.timeRange,
		udal.ParamDataType:  o.dataType,
		udal.ParamFileType:  o.fileType,
	}
}

func runExecute(ctx context.Context, c *cobra.Command, name string, opts *executeOptions) error {
	if export.IsBinary(opts.output) && opts.out == "" {
		return fmt.Errorf("%s output requires --out", opts.output)
	}
	if !slices.Contains(export.Formats(), opts.output) {
		return fmt.Errorf("%w: %q", export.ErrUnknownFormat, opts.output)
	}

	svc, err := loadServices(ctx)
	if err != nil {
		return err
	}

	res, err := svc.udal().Execute(ctx, name, opts.params())
	if err != nil {
		if errors.Is(err, udal.ErrUnsupportedQuery) {
			return fmt.Errorf("%w; supported queries: %s", err, strings.Join(udal.QueryNames(), ", "))
		}
		return err
	}

	return writeResult(c.OutOrStdout(), opts.out, opts.output, res)
}

func writeResult(stdout io.Writer, path, format string, res *udal.Result) error {
	if path == "" {
		return export.Write(stdout, format, res)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	if err := export.Write(f, format, res); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	slog.Info("Wrote result", slog.String("path", path), slog.String("format", format))
	return nil
}
