package domain

// RecordOrigin tells whether a page record was rehydrated from the page-text
// store or produced by recognition in the current session.
type RecordOrigin string

const (
	OriginFromStore RecordOrigin = "from_store"
	OriginFresh     RecordOrigin = "fresh"
)

// PageTextRecord is the unit of the per-page extraction cache. At most one
// record exists per page; a record with non-empty RawText is final for the
// session and is never re-extracted.
type PageTextRecord struct {
	PageNumber     int          `json:"page_number"`
	RawText        string       `json:"raw_text"`
	NormalizedText string       `json:"normalized_text"`
	Origin         RecordOrigin `json:"origin"`
}

// HasText reports whether recognition produced anything for this page.
func (r PageTextRecord) HasText() bool {
	return r.RawText != ""
}

// ClassificationResult is the scanned-vs-text-based verdict for a document,
// recomputed on every open from a small page sample.
type ClassificationResult struct {
	IsScanned     bool    `json:"is_scanned"`
	SampledPages  int     `json:"sampled_pages"`
	AverageLength float64 `json:"average_length"`
}

// SearchMatch is one occurrence of a query inside a page. Results are ordered
// by page number ascending, then ordinal ascending; next/previous navigation
// depends on that ordering.
type SearchMatch struct {
	PageNumber   int    `json:"page_number"`
	MatchOrdinal int    `json:"match_ordinal"`
	ContextText  string `json:"context_text"`
}
