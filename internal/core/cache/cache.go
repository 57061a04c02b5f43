// Package cache holds the per-session page text cache. The cache is the only
// mutable state shared between extraction and search; it does no I/O so it
// stays synchronous and testable. Persistence writes belong to the caller.
package cache

import (
	"sort"
	"sync"

	"github.com/kirillkom/scanreader/internal/core/domain"
	"github.com/kirillkom/scanreader/internal/core/normalize"
)

// PageTextCache maps page numbers to extraction records for one open
// document. Records are replaced wholesale, never mutated in place.
type PageTextCache struct {
	mu    sync.RWMutex
	pages map[int]domain.PageTextRecord
}

func New() *PageTextCache {
	return &PageTextCache{pages: make(map[int]domain.PageTextRecord)}
}

// Get returns the record for a page, if present.
func (c *PageTextCache) Get(pageNumber int) (domain.PageTextRecord, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rec, ok := c.pages[pageNumber]
	return rec, ok
}

// Put computes the normalized form of rawText, stores a fresh record for the
// page and returns it. Any prior record for the page is overwritten; callers
// honoring the never-re-extract invariant must check Get first.
func (c *PageTextCache) Put(pageNumber int, rawText string) domain.PageTextRecord {
	rec := domain.PageTextRecord{
		PageNumber:     pageNumber,
		RawText:        rawText,
		NormalizedText: normalize.Normalize(rawText),
		Origin:         domain.OriginFresh,
	}
	c.mu.Lock()
	c.pages[pageNumber] = rec
	c.mu.Unlock()
	return rec
}

// LoadAll hydrates the cache from persisted records at document-open time.
func (c *PageTextCache) LoadAll(records []domain.PageTextRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, rec := range records {
		rec.Origin = domain.OriginFromStore
		if rec.NormalizedText == "" && rec.RawText != "" {
			rec.NormalizedText = normalize.Normalize(rec.RawText)
		}
		c.pages[rec.PageNumber] = rec
	}
}

// SizeWithText counts pages whose record carries non-empty raw text.
func (c *PageTextCache) SizeWithText() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := 0
	for _, rec := range c.pages {
		if rec.HasText() {
			n++
		}
	}
	return n
}

// SnapshotWithText returns the records with non-empty text in ascending page
// order. Search iterates this snapshot without holding the cache lock.
func (c *PageTextCache) SnapshotWithText() []domain.PageTextRecord {
	c.mu.RLock()
	records := make([]domain.PageTextRecord, 0, len(c.pages))
	for _, rec := range c.pages {
		if rec.HasText() {
			records = append(records, rec)
		}
	}
	c.mu.RUnlock()

	sort.Slice(records, func(i, j int) bool {
		return records[i].PageNumber < records[j].PageNumber
	})
	return records
}
