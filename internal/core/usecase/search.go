package usecase

import (
	"github.com/kirillkom/scanreader/internal/core/cache"
	"github.com/kirillkom/scanreader/internal/core/domain"
	"github.com/kirillkom/scanreader/internal/core/normalize"
)

// contextRadius is the context window, in runes of raw text, shown around
// each match.
const contextRadius = 40

// SearchUseCase performs deterministic substring search over every cached
// page. Results are ordered by page ascending, then ordinal ascending.
type SearchUseCase struct {
	cache *cache.PageTextCache
}

func NewSearchUseCase(pageCache *cache.PageTextCache) *SearchUseCase {
	return &SearchUseCase{cache: pageCache}
}

// Search returns every occurrence of query across extracted pages. An empty
// (or whitespace/diacritic-only) query returns no matches and no error;
// domain.ErrNothingIndexed distinguishes "nothing extracted yet" from a
// query with zero hits.
func (uc *SearchUseCase) Search(query string) ([]domain.SearchMatch, error) {
	q := []rune(normalize.Normalize(query))
	if len(q) == 0 {
		return nil, nil
	}

	pages := uc.cache.SnapshotWithText()
	if len(pages) == 0 {
		return nil, domain.ErrNothingIndexed
	}

	var matches []domain.SearchMatch
	for _, rec := range pages {
		norm, offsets := normalize.WithOffsets(rec.RawText)
		normRunes := []rune(norm)
		rawRunes := []rune(rec.RawText)

		ordinal := 0
		for pos := 0; ; {
			idx := indexRunes(normRunes, q, pos)
			if idx < 0 {
				break
			}
			matches = append(matches, domain.SearchMatch{
				PageNumber:   rec.PageNumber,
				MatchOrdinal: ordinal,
				ContextText:  contextWindow(rawRunes, offsets, idx, len(q)),
			})
			ordinal++
			// Advancing one position past the match start also catches
			// adjacent and overlapping repeats.
			pos = idx + 1
		}
	}
	return matches, nil
}

// indexRunes finds needle in haystack starting at from, rune-wise.
func indexRunes(haystack, needle []rune, from int) int {
	if from < 0 {
		from = 0
	}
	for i := from; i+len(needle) <= len(haystack); i++ {
		match := true
		for j := range needle {
			if haystack[i+j] != needle[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

// contextWindow cuts a fixed-radius window of raw text around a match found
// in normalized text, translated through the normalization offset map.
func contextWindow(rawRunes []rune, offsets []int, normStart, queryLen int) string {
	if normStart >= len(offsets) {
		return ""
	}
	rawStart := offsets[normStart]
	rawEnd := rawStart + 1
	if last := normStart + queryLen - 1; last < len(offsets) {
		rawEnd = offsets[last] + 1
	}

	lo := rawStart - contextRadius
	if lo < 0 {
		lo = 0
	}
	hi := rawEnd + contextRadius
	if hi > len(rawRunes) {
		hi = len(rawRunes)
	}
	return string(rawRunes[lo:hi])
}
