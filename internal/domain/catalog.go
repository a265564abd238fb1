package domain

import "time"

// NoBackend is the source ID of a catalog no backend could populate
const NoBackend = "none"

// Catalog is an immutable snapshot of the media list from one resolution pass.
// A new pass produces a new Catalog; an existing one is never modified.
type Catalog struct {
	entries         []MediaEntry
	index           map[string]int
	SourceBackendID string
	GeneratedAt     time.Time
	Hint            string // user-facing guidance, e.g. unlock the device
}

// NewCatalog copies entries into a new snapshot
func NewCatalog(entries []MediaEntry, sourceBackendID string, generatedAt time.Time) *Catalog {
	c := &Catalog{
		entries:         make([]MediaEntry, len(entries)),
		index:           make(map[string]int, len(entries)),
		SourceBackendID: sourceBackendID,
		GeneratedAt:     generatedAt,
	}
	copy(c.entries, entries)
	for i, e := range c.entries {
		if _, dup := c.index[e.Identity]; !dup {
			c.index[e.Identity] = i
		}
	}
	return c
}

// EmptyCatalog is the terminal state when every backend failed
func EmptyCatalog(generatedAt time.Time) *Catalog {
	return NewCatalog(nil, NoBackend, generatedAt)
}

// Len returns the number of entries
func (c *Catalog) Len() int {
	return len(c.entries)
}

// IsEmpty reports whether no backend produced data
func (c *Catalog) IsEmpty() bool {
	return c.SourceBackendID == NoBackend
}

// Entries returns a copy of all entries
func (c *Catalog) Entries() []MediaEntry {
	out := make([]MediaEntry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Slice returns a copy of entries[offset:offset+limit], clipped to the catalog
func (c *Catalog) Slice(offset, limit int) []MediaEntry {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 || offset >= len(c.entries) {
		return []MediaEntry{}
	}
	end := offset + limit
	if end > len(c.entries) || end < offset {
		end = len(c.entries)
	}
	out := make([]MediaEntry, end-offset)
	copy(out, c.entries[offset:end])
	return out
}

// Lookup finds an entry by identity
func (c *Catalog) Lookup(identity string) (MediaEntry, bool) {
	i, ok := c.index[identity]
	if !ok {
		return MediaEntry{}, false
	}
	return c.entries[i], true
}

// Page is one window into a catalog
type Page struct {
	Items  []MediaEntry
	Offset int
	Total  int
}

// LoadState tracks catalog loading
type LoadState int

const (
	LoadIdle LoadState = iota
	LoadLoading
	LoadLoaded
)

func (s LoadState) String() string {
	switch s {
	case LoadLoading:
		return "loading"
	case LoadLoaded:
		return "loaded"
	default:
		return "idle"
	}
}
