package main

import (
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/persistorai/catalogsync/model"
)

func newSourcesCmd() *cobra.Command {
	var sourceType string

	cmd := &cobra.Command{
		Use:   "sources",
		Short: "List the sources known to the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sources, err := apiClient.Sources.List(cmd.Context())
			if err != nil {
				return err
			}
			if sourceType != "" {
				want := model.ParseSourceType(sourceType)
				filtered := sources[:0]
				for _, s := range sources {
					if s.Type == want {
						filtered = append(filtered, s)
					}
				}
				sources = filtered
			}

			ids := make([]string, len(sources))
			for i, s := range sources {
				ids[i] = s.ID
			}
			output(sources, strings.Join(ids, "\n"), func() ([]string, [][]string) {
				rows := make([][]string, len(sources))
				for i, s := range sources {
					rows[i] = []string{s.ID, string(s.Type), s.ClusterName, strconv.FormatInt(s.ExtractIteration, 10), s.URL}
				}
				return []string{"ID", "TYPE", "CLUSTER", "ITERATION", "URL"}, rows
			})
			return nil
		},
	}

	cmd.Flags().StringVar(&sourceType, "type", "", "Only list sources of this type (e.g. HIVE)")
	return cmd
}
