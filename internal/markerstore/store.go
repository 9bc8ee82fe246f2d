// Package markerstore persists extraction markers between runs under a
// checkpoint name.
package markerstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/persistorai/catalogsync/marker"
)

const defaultQueryTimeout = 10 * time.Second

// ErrInvalidName is returned for an empty checkpoint name.
var ErrInvalidName = errors.New("checkpoint name must not be empty")

// Entry is one saved checkpoint.
type Entry struct {
	Name    string    `json:"name"`
	Marker  string    `json:"marker"`
	SavedAt time.Time `json:"savedAt"`
}

// Store loads and saves markers by checkpoint name.
type Store interface {
	// Load returns the marker saved under name. The bool is false when no
	// marker has been saved yet.
	Load(ctx context.Context, name string) (string, bool, error)
	Save(ctx context.Context, name, marker string) error
	List(ctx context.Context) ([]Entry, error)
}

// normalize validates text as a marker and returns its canonical form.
func normalize(name, text string) (string, error) {
	if name == "" {
		return "", ErrInvalidName
	}
	m, err := marker.Parse(text)
	if err != nil {
		return "", fmt.Errorf("checkpoint %s: %w", name, err)
	}
	return m.String(), nil
}

// withTimeout creates a context with the default query timeout.
func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, defaultQueryTimeout)
}

func orDiscard(log *logrus.Logger) *logrus.Logger {
	if log != nil {
		return log
	}
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
