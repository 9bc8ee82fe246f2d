package markerstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/catalogsync/internal/dbpool"
	"github.com/persistorai/catalogsync/marker"
)

// Postgres keeps checkpoints in the extraction_markers table and appends
// every save to extraction_marker_history.
type Postgres struct {
	pool *dbpool.Pool
	log  *logrus.Logger
}

// NewPostgres returns a store on pool. The schema must have been migrated
// with db.Migrate. A nil logger discards output.
func NewPostgres(pool *dbpool.Pool, log *logrus.Logger) *Postgres {
	return &Postgres{pool: pool, log: orDiscard(log)}
}

// Load implements Store.
func (p *Postgres) Load(ctx context.Context, name string) (string, bool, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var text string
	err := p.pool.QueryRow(ctx,
		`SELECT marker::text FROM extraction_markers WHERE name = $1`, name,
	).Scan(&text)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("loading checkpoint %s: %w", name, err)
	}

	// jsonb re-renders the document; hand back the canonical text.
	m, err := marker.Parse(text)
	if err != nil {
		return "", false, fmt.Errorf("checkpoint %s: %w", name, err)
	}
	return m.String(), true, nil
}

// Save implements Store.
func (p *Postgres) Save(ctx context.Context, name, text string) error {
	canonical, err := normalize(name, text)
	if err != nil {
		return err
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit.

	if _, err := tx.Exec(ctx, `
		INSERT INTO extraction_markers (name, marker, updated_at)
		VALUES ($1, $2::jsonb, now())
		ON CONFLICT (name) DO UPDATE SET marker = EXCLUDED.marker, updated_at = EXCLUDED.updated_at`,
		name, canonical,
	); err != nil {
		return fmt.Errorf("saving checkpoint %s: %w", name, err)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO extraction_marker_history (name, marker) VALUES ($1, $2::jsonb)`,
		name, canonical,
	); err != nil {
		return fmt.Errorf("recording checkpoint history %s: %w", name, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing checkpoint %s: %w", name, err)
	}

	p.log.WithField("checkpoint", name).Debug("marker saved")
	return nil
}

// List implements Store. Entries are sorted by name.
func (p *Postgres) List(ctx context.Context) ([]Entry, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rows, err := p.pool.Query(ctx,
		`SELECT name, marker::text, updated_at FROM extraction_markers ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing checkpoints: %w", err)
	}
	return collectEntries(rows)
}

// History returns the most recent saves of a checkpoint, newest first.
func (p *Postgres) History(ctx context.Context, name string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rows, err := p.pool.Query(ctx, `
		SELECT name, marker::text, saved_at FROM extraction_marker_history
		WHERE name = $1 ORDER BY saved_at DESC, id DESC LIMIT $2`,
		name, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("reading checkpoint history %s: %w", name, err)
	}
	return collectEntries(rows)
}

func collectEntries(rows pgx.Rows) ([]Entry, error) {
	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Entry, error) {
		var e Entry
		err := row.Scan(&e.Name, &e.Marker, &e.SavedAt)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning checkpoints: %w", err)
	}
	for i := range entries {
		if m, err := marker.Parse(entries[i].Marker); err == nil {
			entries[i].Marker = m.String()
		}
	}
	return entries, nil
}
