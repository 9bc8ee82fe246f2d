package markerstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// File keeps every checkpoint in one JSON document. Writes replace the
// document atomically.
type File struct {
	path string
	log  *logrus.Logger
	mu   sync.Mutex
}

type fileEntry struct {
	Marker  json.RawMessage `json:"marker"`
	SavedAt time.Time       `json:"savedAt"`
}

// NewFile returns a store backed by the document at path. The file is
// created on first save. A nil logger discards output.
func NewFile(path string, log *logrus.Logger) *File {
	return &File{path: path, log: orDiscard(log)}
}

// Load implements Store.
func (f *File) Load(_ context.Context, name string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.read()
	if err != nil {
		return "", false, err
	}
	e, ok := doc[name]
	if !ok {
		return "", false, nil
	}
	text, err := normalize(name, string(e.Marker))
	if err != nil {
		return "", false, err
	}
	return text, true, nil
}

// Save implements Store.
func (f *File) Save(_ context.Context, name, text string) error {
	canonical, err := normalize(name, text)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.read()
	if err != nil {
		return err
	}
	doc[name] = fileEntry{Marker: json.RawMessage(canonical), SavedAt: time.Now().UTC()}
	if err := f.write(doc); err != nil {
		return err
	}

	f.log.WithFields(logrus.Fields{"checkpoint": name, "path": f.path}).Debug("marker saved")
	return nil
}

// List implements Store. Entries are sorted by name.
func (f *File) List(_ context.Context) ([]Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.read()
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(doc))
	for name, e := range doc {
		text, err := normalize(name, string(e.Marker))
		if err != nil {
			return nil, err
		}
		out = append(out, Entry{Name: name, Marker: text, SavedAt: e.SavedAt})
	}
	slices.SortFunc(out, func(a, b Entry) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}

func (f *File) read() (map[string]fileEntry, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]fileEntry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading marker file: %w", err)
	}
	doc := map[string]fileEntry{}
	if len(strings.TrimSpace(string(data))) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing marker file %s: %w", f.path, err)
	}
	return doc, nil
}

func (f *File) write(doc map[string]fileEntry) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding marker file: %w", err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating marker directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".markers-*.json")
	if err != nil {
		return fmt.Errorf("creating temp marker file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // no-op once renamed.

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("writing marker file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing marker file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing marker file: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("replacing marker file: %w", err)
	}
	return nil
}
