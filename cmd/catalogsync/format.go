package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

func formatJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "Error: encode json: %v\n", err)
		os.Exit(1)
	}
}

func formatTable(headers []string, rows [][]string) {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	printRow := func(cells []string) {
		parts := make([]string, len(cells))
		for i, cell := range cells {
			w := 0
			if i < len(widths) {
				w = widths[i]
			}
			parts[i] = fmt.Sprintf("%-*s", w, cell)
		}
		fmt.Println(strings.Join(parts, "  "))
	}

	printRow(headers)
	seps := make([]string, len(headers))
	for i, w := range widths {
		seps[i] = strings.Repeat("-", w)
	}
	printRow(seps)
	for _, row := range rows {
		printRow(row)
	}
}

func formatQuiet(s string) {
	fmt.Println(s)
}

// output prints v as JSON, or quietVal alone in quiet mode. table builds
// the rows for table mode; a nil table falls back to JSON.
func output(v any, quietVal string, table func() ([]string, [][]string)) {
	switch flagFmt {
	case "quiet":
		formatQuiet(quietVal)
	case "table":
		if table == nil {
			formatJSON(v)
			return
		}
		formatTable(table())
	default:
		formatJSON(v)
	}
}

// lineWriter writes one compact JSON document per line. It is safe for
// concurrent use by extraction workers.
type lineWriter struct {
	mu  sync.Mutex
	enc *json.Encoder
	n   int
}

func newLineWriter(w io.Writer) *lineWriter {
	return &lineWriter{enc: json.NewEncoder(w)}
}

func (lw *lineWriter) write(v any) error {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	if err := lw.enc.Encode(v); err != nil {
		return fmt.Errorf("writing record: %w", err)
	}
	lw.n++
	return nil
}

func (lw *lineWriter) count() int {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	return lw.n
}
