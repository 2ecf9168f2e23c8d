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
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/cardinalhq/udal-cwd/internal/export"
	"github.com/cardinalhq/udal-cwd/internal/udal"
)

func init() {
	rootCmd.AddCommand(newQueriesCmd())
}

func newQueriesCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "queries",
		Short: "List the supported query names",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			return printQueries(c.OutOrStdout(), output)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "text", "Output format: text, json or yaml")
	return cmd
}

func printQueries(w io.Writer, output string) error {
	queries := udal.Queries()
	names := udal.QueryNames()
	sort.Strings(names)

	switch output {
	case "text":
		for _, name := range names {
			if _, err := fmt.Fprintln(w, name); err != nil {
				return err
			}
		}
		return nil
	case export.FormatJSON:
		list := make([]udal.NamedQueryInfo, 0, len(names))
		for _, name := range names {
			list = append(list, queries[name])
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(list)
	case export.FormatYAML:
		return yaml.NewEncoder(w).Encode(queries)
	default:
		return fmt.Errorf("unknown output format %q", output)
	}
}
