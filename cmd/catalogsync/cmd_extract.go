package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/persistorai/catalogsync/client"
	"github.com/persistorai/catalogsync/extract"
	"github.com/persistorai/catalogsync/internal/api"
	"github.com/persistorai/catalogsync/internal/config"
	"github.com/persistorai/catalogsync/internal/markerstore"
	"github.com/persistorai/catalogsync/internal/metrics"
)

type extractOptions struct {
	entityQuery   string
	relationQuery string
	start         string
	end           string
	checkpoint    string
	workers       int
}

// extractLine is one record of the extract output stream.
type extractLine struct {
	Kind   string         `json:"kind"`
	Record extract.Record `json:"record"`
}

func newExtractCmd() *cobra.Command {
	var opts extractOptions

	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Stream entities and relations changed since a marker as JSON lines",
		Long: "Stream entities and relations as JSON lines on stdout. With --checkpoint the\n" +
			"start marker is loaded from the marker store and the new marker is saved\n" +
			"once every record has been written.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.checkpoint != "" && opts.start != "" {
				return fmt.Errorf("--start and --checkpoint are mutually exclusive")
			}
			if opts.workers <= 0 {
				opts.workers = cfg.ExtractWorkers
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			var store markerstore.Store
			deps := &api.RouterDeps{Log: logger, Tracker: api.NewTracker(), Version: config.Version}
			if opts.checkpoint != "" {
				backend, err := openMarkerStore(ctx, cfg)
				if errors.Is(err, errNoMarkerStore) {
					return fmt.Errorf("--checkpoint needs a marker store: %w", err)
				}
				if err != nil {
					return err
				}
				defer backend.Close()
				store = backend.store
				if backend.pool != nil {
					deps.DB = backend.pool
				}
			}

			if cfg.MetricsAddr != "" {
				serveCtx, cancel := context.WithCancel(ctx)
				done := make(chan struct{})
				go func() {
					defer close(done)
					if err := api.Serve(serveCtx, cfg.MetricsAddr, deps); err != nil {
						logger.WithError(err).Error("operational endpoint failed")
					}
				}()
				defer func() {
					cancel()
					<-done
				}()
			}

			return runExtract(ctx, apiClient, cfg, opts, store, deps.Tracker, os.Stdout)
		},
	}

	cmd.Flags().StringVar(&opts.entityQuery, "query", "", "Entity query (default: all entities)")
	cmd.Flags().StringVar(&opts.relationQuery, "relation-query", "", "Relation query (default: all relations)")
	cmd.Flags().StringVar(&opts.start, "start", "", "Start marker (default: extract everything)")
	cmd.Flags().StringVar(&opts.end, "end", "", "End marker (default: current state of every source)")
	cmd.Flags().StringVar(&opts.checkpoint, "checkpoint", "", "Load the start marker from and save the end marker to this checkpoint")
	cmd.Flags().IntVar(&opts.workers, "workers", 0, "Token groups fetched in parallel (env: EXTRACT_WORKERS)")
	return cmd
}

// runExtract streams every matching record to out. The end marker is saved
// under opts.checkpoint only after both record kinds have been drained.
func runExtract(ctx context.Context, c *client.Client, conf *config.Config, opts extractOptions, store markerstore.Store, tracker *api.Tracker, out io.Writer) error {
	start := opts.start
	if opts.checkpoint != "" {
		saved, ok, err := store.Load(ctx, opts.checkpoint)
		if err != nil {
			return err
		}
		if ok {
			start = saved
		}
	}

	tracker.Begin(api.PhaseExtracting, opts.checkpoint)
	log := logger.WithFields(logrus.Fields{"checkpoint": opts.checkpoint, "workers": opts.workers})

	x := c.NewExtractor(client.ExtractorOptions{Limit: conf.PageLimit, MaxGroupSize: conf.MaxQueryGroup})
	req := extract.Request{
		EntityQuery:   opts.entityQuery,
		RelationQuery: opts.relationQuery,
		StartMarker:   start,
		EndMarker:     opts.end,
	}

	lw := newLineWriter(out)
	emit := func(_ context.Context, kind string, rec extract.Record) error {
		if kind == extract.KindEntity {
			tracker.AddEntities(1)
		} else {
			tracker.AddRelations(1)
		}
		return lw.write(extractLine{Kind: kind, Record: rec})
	}

	var (
		end string
		err error
	)
	if opts.workers > 1 {
		end, err = x.ExtractParallel(ctx, req, opts.workers, emit)
	} else {
		end, err = extractSequential(ctx, x, req, emit)
	}
	if err != nil {
		metrics.ErrorsTotal.WithLabelValues("extract").Inc()
		tracker.Finish("", err)
		return err
	}

	if opts.checkpoint != "" {
		if err := store.Save(ctx, opts.checkpoint, end); err != nil {
			tracker.Finish("", err)
			return err
		}
		metrics.LastMarkerSave.SetToCurrentTime()
	}
	tracker.Finish(end, nil)

	log.WithFields(logrus.Fields{"records": lw.count(), "marker": end}).Info("extraction complete")
	return nil
}

func extractSequential(ctx context.Context, x *extract.Extractor, req extract.Request, emit func(context.Context, string, extract.Record) error) (string, error) {
	res, err := x.Extract(ctx, req)
	if err != nil {
		return "", err
	}
	for rec, err := range res.Entities.All(ctx) {
		if err != nil {
			return "", err
		}
		if err := emit(ctx, extract.KindEntity, rec); err != nil {
			return "", err
		}
	}
	for rec, err := range res.Relations.All(ctx) {
		if err != nil {
			return "", err
		}
		if err := emit(ctx, extract.KindRelation, rec); err != nil {
			return "", err
		}
	}
	return res.Marker, nil
}
