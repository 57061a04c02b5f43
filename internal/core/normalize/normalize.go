// Package normalize canonicalizes page text for search. Arabic-script letter
// variants are folded to single representatives, harakat/tanwin are stripped,
// whitespace runs collapse to one space, and Latin text is lowercased. The
// mapping is deterministic and idempotent.
package normalize

import "unicode"

// Letter-shape folds that are orthographically equivalent for search.
var folds = map[rune]rune{
	'آ': 'ا', // alef with madda
	'أ': 'ا', // alef with hamza above
	'إ': 'ا', // alef with hamza below
	'ٱ': 'ا', // alef wasla
	'ئ': 'ي', // ya with hamza
	'ى': 'ي', // alef maqsura
	'ک': 'ك', // keheh
	'ڪ': 'ك', // swash kaf
	'ة': 'ه', // ta marbuta
}

// Normalize returns the canonical search form of text. Empty in, empty out.
func Normalize(text string) string {
	n, _ := WithOffsets(text)
	return n
}

// WithOffsets normalizes text and additionally returns, for every rune of the
// normalized result, the index of the raw rune it was derived from. The map is
// what lets search locate a context window in raw text without assuming that
// normalization preserves offsets (it does not: diacritics are deleted and
// whitespace runs shrink).
func WithOffsets(text string) (string, []int) {
	out := make([]rune, 0, len(text))
	offsets := make([]int, 0, len(text))
	pendingSpace := false
	spaceAt := 0

	idx := 0
	for _, r := range text {
		i := idx
		idx++

		if isArabicDiacritic(r) {
			continue
		}
		if unicode.IsSpace(r) {
			if !pendingSpace {
				pendingSpace = true
				spaceAt = i
			}
			continue
		}
		if pendingSpace {
			if len(out) > 0 {
				out = append(out, ' ')
				offsets = append(offsets, spaceAt)
			}
			pendingSpace = false
		}
		if folded, ok := folds[r]; ok {
			r = folded
		}
		out = append(out, unicode.ToLower(r))
		offsets = append(offsets, i)
	}

	return string(out), offsets
}

// isArabicDiacritic covers the harakat/tanwin combining range plus the
// superscript alef.
func isArabicDiacritic(r rune) bool {
	return (r >= 'ً' && r <= 'ٟ') || r == 'ٰ'
}
