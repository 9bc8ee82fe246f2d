package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/persistorai/catalogsync/client"
)

// pushResult is printed after a push.
type pushResult struct {
	Session string               `json:"session"`
	Summary *client.WriteSummary `json:"summary"`
}

func newPushCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "push <manifest.yaml>",
		Short: "Publish tables, files, operations and their lineage from a YAML manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := loadManifest(args[0])
			if err != nil {
				return err
			}
			roots, err := m.build(cfg.Namespace)
			if err != nil {
				return err
			}

			if dryRun {
				req, _, err := client.Encode(roots...)
				if err != nil {
					return err
				}
				formatJSON(req)
				return nil
			}

			w := apiClient.NewWriter(client.WriterOptions{Autocommit: cfg.Autocommit})
			defer w.Close() //nolint:errcheck // Close only resets local change sets.

			summary, err := w.Write(cmd.Context(), roots...)
			if err != nil {
				return err
			}

			res := pushResult{Session: w.SessionID(), Summary: summary}
			output(res, w.SessionID(), func() ([]string, [][]string) {
				return []string{"KIND", "UPDATED", "ERRORS"}, [][]string{
					{"entities", strconv.Itoa(summary.EntityUpdateCount), strconv.Itoa(len(summary.EntityErrors))},
					{"relations", strconv.Itoa(summary.RelationUpdateCount), strconv.Itoa(len(summary.RelationErrors))},
				}
			})
			if summary.HasErrors() {
				return fmt.Errorf("catalog rejected %d entities and %d relations",
					len(summary.EntityErrors), len(summary.RelationErrors))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the encoded request instead of sending it")
	return cmd
}
