// Package render projects positions computed against raw document text onto
// a markdown view of the same text.
//
// ConvertToMarkdown only inserts heading prefixes; it never changes or
// reorders the source text. The offset map it returns records the cumulative
// insertion shift so raw positions can be translated with TranslateOffset.
package render

import (
	"sort"
	"strings"

	"github.com/dgallion1/ndachunk/internal/doctree"
)

// OffsetMapping is a checkpoint: from Original onward, positions shift by
// Markdown - Original until the next checkpoint.
type OffsetMapping struct {
	Original int `json:"original"`
	Markdown int `json:"markdown"`
}

const headingMarker = "#"

// ConvertToMarkdown inserts a heading prefix at the start of every section.
// Sections outside the text are skipped; overlapping sections are prefixed
// at the first position not already emitted.
func ConvertToMarkdown(text string, sections []doctree.PositionedSection) (string, []OffsetMapping) {
	sorted := make([]doctree.PositionedSection, len(sections))
	copy(sorted, sections)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].StartOffset < sorted[j].StartOffset })

	var (
		b       strings.Builder
		offsets []OffsetMapping
		cursor  int
		shift   int
	)
	b.Grow(len(text) + len(sorted)*4)
	for _, s := range sorted {
		if s.StartOffset < 0 || s.StartOffset > len(text) {
			continue
		}
		at := max(s.StartOffset, cursor)
		b.WriteString(text[cursor:at])
		prefix := headingPrefix(s.Level)
		b.WriteString(prefix)
		shift += len(prefix)
		offsets = append(offsets, OffsetMapping{Original: at, Markdown: at + shift})
		cursor = at
	}
	b.WriteString(text[cursor:])
	return b.String(), offsets
}

func headingPrefix(level int) string {
	return strings.Repeat(headingMarker, min(max(level, 1), 6)) + " "
}

// TranslateOffset maps a raw-text position to the markdown text. Positions
// before the first checkpoint are unchanged.
func TranslateOffset(pos int, offsets []OffsetMapping) int {
	i := sort.Search(len(offsets), func(i int) bool { return offsets[i].Original > pos })
	if i == 0 {
		return pos
	}
	cp := offsets[i-1]
	return pos + (cp.Markdown - cp.Original)
}

// translateEnd maps an exclusive end position. An end that coincides with a
// heading insertion stays before the inserted prefix.
func translateEnd(start, end int, offsets []OffsetMapping) int {
	if end <= start {
		return TranslateOffset(start, offsets)
	}
	return TranslateOffset(end-1, offsets) + 1
}
