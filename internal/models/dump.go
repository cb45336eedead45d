package models

import (
	"maps"
	"slices"
)

// ErrorsKey names the bucket of a [TitlesDump] holding titles that failed the last pass.
const ErrorsKey = "errors"

// TitlesDump is the full content of one title store.
//
// Buckets are keyed by watchlist kind, plus [ErrorsKey]. For a parser dump the errors bucket maps
// title keys to source URLs; for an exporter dump it maps kinds to {title key: original record}.
type TitlesDump map[string]map[string]any

// Kinds returns the watchlist kinds present in the dump in processing order, without [ErrorsKey].
func (d TitlesDump) Kinds() []WatchlistKind {
	kinds := make([]WatchlistKind, 0, len(d))
	for _, k := range AllKinds() {
		if _, ok := d[string(k)]; ok {
			kinds = append(kinds, k)
		}
	}
	return kinds
}

// Records decodes every record of the kind, skipping entries that are not records.
func (d TitlesDump) Records(kind WatchlistKind) map[string]AnimeRecord {
	out := make(map[string]AnimeRecord)
	for key, raw := range d[string(kind)] {
		m, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		r, err := FromMapping(m)
		if err != nil {
			continue
		}
		out[key] = r
	}
	return out
}

// Keys returns the sorted title keys of a bucket.
func (d TitlesDump) Keys(bucket string) []string {
	return slices.Sorted(maps.Keys(d[bucket]))
}

// Total counts the titles stored under watchlist kinds.
func (d TitlesDump) Total() int {
	total := 0
	for _, k := range d.Kinds() {
		total += len(d[string(k)])
	}
	return total
}

// Empty reports whether no watchlist kind holds a title.
func (d TitlesDump) Empty() bool {
	return d.Total() == 0
}

// DumpRef locates the dump a module writes for a user.
type DumpRef struct {
	Module string `json:"module"`
	User   string `json:"user"`
}
