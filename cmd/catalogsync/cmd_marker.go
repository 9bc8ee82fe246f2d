package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/persistorai/catalogsync/internal/markerstore"
	"github.com/persistorai/catalogsync/marker"
	"github.com/persistorai/catalogsync/query"
)

func newMarkerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "marker",
		Short: "Inspect extraction markers and saved checkpoints",
	}

	cmd.AddCommand(newMarkerCurrentCmd())
	cmd.AddCommand(newMarkerDiffCmd())
	cmd.AddCommand(newMarkerListCmd())
	cmd.AddCommand(newMarkerHistoryCmd())
	return cmd
}

func newMarkerCurrentCmd() *cobra.Command {
	var fromBeginning bool

	cmd := &cobra.Command{
		Use:   "current",
		Short: "Print the marker for the current state of every source",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sources, err := apiClient.Sources.List(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Println(marker.Current(sources, fromBeginning).String())
			return nil
		},
	}

	cmd.Flags().BoolVar(&fromBeginning, "from-beginning", false, "Use iteration 0 for every source")
	return cmd
}

// markerDiff is the plan printed by "marker diff".
type markerDiff struct {
	Tokens  []string `json:"tokens"`
	Clauses []string `json:"clauses"`
}

func planDiff(startText, endText string, maxGroupSize int) (*markerDiff, error) {
	start, err := marker.Parse(startText)
	if err != nil {
		return nil, fmt.Errorf("start marker: %w", err)
	}
	end, err := marker.Parse(endText)
	if err != nil {
		return nil, fmt.Errorf("end marker: %w", err)
	}
	tokens, err := marker.Diff(start.Merge(end), end)
	if err != nil {
		return nil, err
	}

	d := &markerDiff{Tokens: tokens, Clauses: []string{}}
	for _, group := range query.Partition(tokens, maxGroupSize) {
		d.Clauses = append(d.Clauses, query.BuildClause(query.FieldExtractorRunID, group))
	}
	return d, nil
}

func newMarkerDiffCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "diff <start> <end>",
		Short: "Print the run tokens between two markers and the query clauses that select them",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := planDiff(args[0], args[1], cfg.MaxQueryGroup)
			if err != nil {
				return err
			}
			output(d, strings.Join(d.Tokens, "\n"), nil)
			return nil
		},
	}
}

func entryRows(entries []markerstore.Entry) func() ([]string, [][]string) {
	return func() ([]string, [][]string) {
		rows := make([][]string, len(entries))
		for i, e := range entries {
			rows[i] = []string{e.Name, e.SavedAt.Format(time.RFC3339), e.Marker}
		}
		return []string{"NAME", "SAVED", "MARKER"}, rows
	}
}

func newMarkerListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved checkpoints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := openMarkerStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer backend.Close()

			entries, err := backend.store.List(cmd.Context())
			if err != nil {
				return err
			}
			names := make([]string, len(entries))
			for i, e := range entries {
				names[i] = e.Name
			}
			output(entries, strings.Join(names, "\n"), entryRows(entries))
			return nil
		},
	}
}

func newMarkerHistoryCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history <checkpoint>",
		Short: "Show previous saves of a checkpoint (postgres store only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := openMarkerStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer backend.Close()

			pg, ok := backend.store.(*markerstore.Postgres)
			if !ok {
				return fmt.Errorf("checkpoint history requires MARKER_STORE=postgres")
			}
			entries, err := pg.History(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}
			markers := make([]string, len(entries))
			for i, e := range entries {
				markers[i] = e.Marker
			}
			output(entries, strings.Join(markers, "\n"), entryRows(entries))
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of entries")
	return cmd
}
