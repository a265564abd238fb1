// Package search filters catalog entries by fuzzy filename match.
package search

import (
	"path"
	"strings"

	"github.com/mmcdole/camroll/internal/domain"
	"github.com/sahilm/fuzzy"
)

// Kind narrows a search to photos or videos
type Kind int

const (
	KindPhoto Kind = iota
	KindVideo
)

// Result is a matched entry with match metadata for highlighting
type Result struct {
	Entry          domain.MediaEntry
	MatchedIndexes []int // positions in Entry.Filename
	Score          int
}

// index implements fuzzy.Source over pre-lowercased filenames
type index struct {
	entries []domain.MediaEntry
	lower   []string
}

func (idx *index) String(i int) string { return idx.lower[i] }
func (idx *index) Len() int            { return len(idx.entries) }

// Filter returns entries whose filename fuzzy-matches query, best match first.
// A query containing "/" also matches against folder/filename. An empty query
// keeps catalog order. kinds restricts results (none = all kinds).
func Filter(query string, entries []domain.MediaEntry, kinds ...Kind) []Result {
	allowed := makeKindSet(kinds)
	query = strings.ToLower(strings.TrimSpace(query))
	withFolder := strings.Contains(query, "/")

	idx := &index{}
	for _, e := range entries {
		if !allowed(e) {
			continue
		}
		name := e.Filename
		if withFolder {
			name = path.Join(e.Folder, e.Filename)
		}
		idx.entries = append(idx.entries, e)
		idx.lower = append(idx.lower, strings.ToLower(name))
	}

	if query == "" {
		results := make([]Result, len(idx.entries))
		for i, e := range idx.entries {
			results[i] = Result{Entry: e}
		}
		return results
	}

	matches := fuzzy.FindFrom(query, idx)
	results := make([]Result, len(matches))
	for i, m := range matches {
		results[i] = Result{
			Entry:          idx.entries[m.Index],
			MatchedIndexes: filenameIndexes(m.MatchedIndexes, len(idx.lower[m.Index])-len(idx.entries[m.Index].Filename)),
			Score:          m.Score,
		}
	}
	return results
}

// Entries strips match metadata
func Entries(results []Result) []domain.MediaEntry {
	out := make([]domain.MediaEntry, len(results))
	for i, r := range results {
		out[i] = r.Entry
	}
	return out
}

// filenameIndexes shifts folder-relative match positions onto the filename
func filenameIndexes(indexes []int, offset int) []int {
	if offset == 0 {
		return indexes
	}
	var out []int
	for _, i := range indexes {
		if i >= offset {
			out = append(out, i-offset)
		}
	}
	return out
}

func makeKindSet(kinds []Kind) func(domain.MediaEntry) bool {
	if len(kinds) == 0 {
		return func(domain.MediaEntry) bool { return true }
	}
	set := make(map[Kind]bool)
	for _, k := range kinds {
		set[k] = true
	}
	return func(e domain.MediaEntry) bool {
		if e.IsVideo() {
			return set[KindVideo]
		}
		return set[KindPhoto]
	}
}
