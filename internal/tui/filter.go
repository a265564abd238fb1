package tui

import (
	"path"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/mmcdole/camroll/internal/domain"
)

// quickFilter narrows the loaded page to entries whose folder/filename
// contains query as a fuzzy subsequence, ignoring case and diacritics.
func quickFilter(query string, items []domain.MediaEntry) []domain.MediaEntry {
	if query == "" {
		return items
	}
	var out []domain.MediaEntry
	for _, e := range items {
		if fuzzy.MatchNormalizedFold(query, path.Join(e.Folder, e.Filename)) {
			out = append(out, e)
		}
	}
	return out
}
