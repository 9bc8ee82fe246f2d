// Package model defines the catalog data types: sources, entities with their
// static schemas, relations, and the validation errors raised while building
// them.
package model

import "strings"

// SourceType identifies the kind of upstream system that produced metadata.
type SourceType string

// Source types known to the catalog.
const (
	SourceTypeHDFS      SourceType = "HDFS"
	SourceTypeHive      SourceType = "HIVE"
	SourceTypeImpala    SourceType = "IMPALA"
	SourceTypeSpark     SourceType = "SPARK"
	SourceTypePig       SourceType = "PIG"
	SourceTypeOozie     SourceType = "OOZIE"
	SourceTypeYARN      SourceType = "YARN"
	SourceTypeSqoop     SourceType = "SQOOP"
	SourceTypeMapReduce SourceType = "MAPREDUCE"
	SourceTypeSDK       SourceType = "SDK"
)

// ParseSourceType normalizes s to a SourceType. Unknown values are kept
// upper-cased; the catalog accepts plugin-defined types.
func ParseSourceType(s string) SourceType {
	return SourceType(strings.ToUpper(strings.TrimSpace(s)))
}

// Source is one upstream metadata-producing system as listed by the catalog.
// ExtractIteration increases every time the catalog re-extracts the source.
type Source struct {
	ID               string     `json:"identity"`
	Name             string     `json:"name,omitempty"`
	Type             SourceType `json:"sourceType"`
	ClusterName      string     `json:"clusterName,omitempty"`
	URL              string     `json:"sourceUrl,omitempty"`
	ExtractIteration int64      `json:"sourceExtractIteration"`
}
