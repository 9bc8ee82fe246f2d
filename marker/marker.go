// Package marker records how far extraction has progressed per source and
// derives the run tokens that cover the iterations between two markers.
package marker

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/persistorai/catalogsync/model"
)

// TokenSeparator joins a source id and an extraction iteration in a run token.
const TokenSeparator = "##"

// Sentinel errors for marker operations.
var (
	ErrInvalidMarkerRange = errors.New("invalid marker range")
	ErrMalformedMarker    = errors.New("malformed marker")
	ErrUnknownSource      = errors.New("unknown source")
)

// Marker maps a source id to the last extraction iteration covered.
type Marker map[string]int64

// RunToken names one extraction run of one source.
func RunToken(sourceID string, iteration int64) string {
	return sourceID + TokenSeparator + strconv.FormatInt(iteration, 10)
}

// Current returns a marker with the latest iteration of every source, or
// iteration zero for all of them when fromBeginning is set.
func Current(sources []model.Source, fromBeginning bool) Marker {
	m := make(Marker, len(sources))
	for _, s := range sources {
		if fromBeginning {
			m[s.ID] = 0
			continue
		}
		m[s.ID] = s.ExtractIteration
	}
	return m
}

// Diff returns one run token for every iteration in [start[id], end[id]] of
// every source in start, sources in sorted order. When start is empty the
// sources of end are covered from iteration zero.
func Diff(start, end Marker) ([]string, error) {
	from := start
	if len(start) == 0 {
		from = make(Marker, len(end))
		for id := range end {
			from[id] = 0
		}
	} else {
		for id := range end {
			if _, ok := start[id]; !ok {
				return nil, fmt.Errorf("%w: source %s missing from start marker", ErrInvalidMarkerRange, id)
			}
		}
	}

	ids := make([]string, 0, len(from))
	for id := range from {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	var tokens []string
	for _, id := range ids {
		last, ok := end[id]
		if !ok {
			return nil, fmt.Errorf("%w: source %s missing from end marker", ErrInvalidMarkerRange, id)
		}
		first := from[id]
		if last < first {
			return nil, fmt.Errorf("%w: source %s goes back from %d to %d", ErrInvalidMarkerRange, id, first, last)
		}
		for it := first; it <= last; it++ {
			tokens = append(tokens, RunToken(id, it))
		}
	}
	return tokens, nil
}

// CheckSources reports the first marker entry whose source is not in the
// given registry listing.
func (m Marker) CheckSources(sources []model.Source) error {
	known := make(map[string]struct{}, len(sources))
	for _, s := range sources {
		known[s.ID] = struct{}{}
	}
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		if _, ok := known[id]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownSource, id)
		}
	}
	return nil
}

// String renders the marker as a JSON object with sorted keys.
func (m Marker) String() string {
	if m == nil {
		m = Marker{}
	}
	data, err := json.Marshal(map[string]int64(m))
	if err != nil {
		return "{}"
	}
	return string(data)
}

// Parse reads a marker produced by String. Blank text is an empty marker.
func Parse(s string) (Marker, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Marker{}, nil
	}
	var m map[string]int64
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMarker, err)
	}
	if m == nil {
		return nil, fmt.Errorf("%w: not an object", ErrMalformedMarker)
	}
	for id, it := range m {
		if id == "" || it < 0 {
			return nil, fmt.Errorf("%w: entry %q=%d", ErrMalformedMarker, id, it)
		}
	}
	return Marker(m), nil
}

// Merge returns a copy of m extended with every source of other that m does
// not know yet, at iteration zero.
func (m Marker) Merge(other Marker) Marker {
	out := make(Marker, len(m)+len(other))
	for id, it := range m {
		out[id] = it
	}
	for id := range other {
		if _, ok := out[id]; !ok {
			out[id] = 0
		}
	}
	return out
}
