package client

import (
	"github.com/persistorai/catalogsync/extract"
)

// ExtractorOptions tunes an extractor built on a Client.
type ExtractorOptions struct {
	Limit        int
	MaxGroupSize int
}

// NewExtractor returns an extractor that lists sources and pages entities
// and relations through c.
func (c *Client) NewExtractor(opts ExtractorOptions) *extract.Extractor {
	return extract.NewExtractor(extract.Options{
		Sources:      c.Sources,
		Entities:     c.Entities,
		Relations:    c.Relations,
		Limit:        opts.Limit,
		MaxGroupSize: opts.MaxGroupSize,
		Logger:       c.log,
	})
}
