package chunker

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dgallion1/ndachunk/internal/doctree"
	"github.com/dgallion1/ndachunk/internal/xref"
)

// MergeShortChunks folds each chunk below minTokens into the chunk after it
// when both sit under the same top-level section and on the same side of the
// boilerplate line. A merge whose joined content would exceed maxTokens is
// skipped; pass 0 to disable that limit. The result keeps merging forward while it is still
// short.
func MergeShortChunks(chunks []doctree.LegalChunk, minTokens, maxTokens int, counter *Counter) []doctree.LegalChunk {
	if minTokens <= 0 || len(chunks) < 2 {
		return chunks
	}
	out := make([]doctree.LegalChunk, 0, len(chunks))
	for i := 0; i < len(chunks); {
		cur := chunks[i]
		i++
		for cur.TokenCount < minTokens && i < len(chunks) && canMerge(cur, chunks[i], maxTokens, counter) {
			cur = mergePair(cur, chunks[i], counter)
			i++
		}
		out = append(out, cur)
	}
	return out
}

func canMerge(a, b doctree.LegalChunk, maxTokens int, counter *Counter) bool {
	if a.TopLevelSection() != b.TopLevelSection() {
		return false
	}
	if a.IsBoilerplate() != b.IsBoilerplate() {
		return false
	}
	return maxTokens <= 0 || counter.CountSync(joinContent(a, b)) <= maxTokens
}

func joinContent(a, b doctree.LegalChunk) string {
	return a.Content + "\n\n" + b.Content
}

func mergePair(a, b doctree.LegalChunk, counter *Counter) doctree.LegalChunk {
	content := joinContent(a, b)
	span := a.Span().Union(b.Span())
	intro := a.Metadata.ParentClauseIntro
	if intro == "" {
		intro = b.Metadata.ParentClauseIntro
	}
	return doctree.LegalChunk{
		Content:       content,
		SectionPath:   commonPrefix(a.SectionPath, b.SectionPath),
		TokenCount:    counter.CountSync(content),
		StartPosition: span.Start,
		EndPosition:   span.End,
		ChunkType:     doctree.ChunkMerged,
		Metadata: doctree.ChunkMetadata{
			ParentClauseIntro: intro,
			References:        xref.Union(a.Metadata.References, b.Metadata.References),
			StructureSource:   a.Metadata.StructureSource,
			IsOCR:             a.Metadata.IsOCR || b.Metadata.IsOCR,
			Boilerplate:       a.IsBoilerplate(),
		},
	}
}

func commonPrefix(a, b []string) []string {
	n := 0
	for n < len(a) && n < len(b) && a[n] == b[n] {
		n++
	}
	return doctree.CopyPath(a[:n])
}

// SplitOversizedChunks breaks every chunk above maxTokens at sentence
// boundaries, falling back to word boundaries. A piece exceeds maxTokens only
// when it is a single word. Piece positions are found in text within the
// parent chunk's span.
func SplitOversizedChunks(text string, chunks []doctree.LegalChunk, maxTokens int, counter *Counter) []doctree.LegalChunk {
	if maxTokens <= 0 {
		return chunks
	}
	out := make([]doctree.LegalChunk, 0, len(chunks))
	for _, ch := range chunks {
		if ch.TokenCount <= maxTokens {
			out = append(out, ch)
			continue
		}
		out = append(out, splitChunk(text, ch, maxTokens, counter)...)
	}
	return out
}

// unit is a byte range within a chunk's content.
type unit struct{ start, end int }

func splitChunk(text string, ch doctree.LegalChunk, maxTokens int, counter *Counter) []doctree.LegalChunk {
	content := ch.Content
	units := sentenceUnits(content)
	if len(units) <= 1 {
		units = wordUnits(content, unit{0, len(content)})
	}

	// Sentences that are still too large fall back to words.
	var fine []unit
	for _, u := range units {
		if counter.CountSync(content[u.start:u.end]) > maxTokens {
			fine = append(fine, wordUnits(content, u)...)
			continue
		}
		fine = append(fine, u)
	}
	if len(fine) == 0 {
		return []doctree.LegalChunk{ch}
	}

	groups := packUnits(content, fine, maxTokens, counter)
	if len(groups) == 1 {
		ch.TokenCount = counter.CountSync(ch.Content)
		return []doctree.LegalChunk{ch}
	}

	intro := ch.Metadata.ParentClauseIntro
	if intro == "" {
		intro = truncateIntro(content)
	}
	parent := doctree.ClampSpan(ch.StartPosition, ch.EndPosition, len(text))
	cursor := parent.Start
	out := make([]doctree.LegalChunk, 0, len(groups))
	for _, g := range groups {
		piece := content[g.start:g.end]
		sp, ok := locatePiece(text, cursor, parent.End, piece)
		if !ok {
			sp = doctree.ClampSpan(parent.Start+g.start, parent.Start+g.end, parent.End)
			sp.Start = max(sp.Start, cursor)
			sp.End = max(sp.End, sp.Start)
		}
		cursor = sp.End
		md := ch.Metadata
		md.ParentClauseIntro = intro
		md.References = nil
		out = append(out, doctree.LegalChunk{
			Content:       piece,
			SectionPath:   doctree.CopyPath(ch.SectionPath),
			TokenCount:    counter.CountSync(piece),
			StartPosition: sp.Start,
			EndPosition:   sp.End,
			ChunkType:     doctree.ChunkSplit,
			Metadata:      md,
		})
	}
	return out
}

// locatePiece finds piece in text[from:limit]. Merged content may join
// pieces that are apart in the source, so when the piece is not verbatim its
// words are matched in order and the span runs from the first to the last.
func locatePiece(text string, from, limit int, piece string) (doctree.Span, bool) {
	if from > limit || limit > len(text) {
		return doctree.Span{}, false
	}
	hay := text[from:limit]
	if i := strings.Index(hay, piece); i >= 0 {
		return doctree.Span{Start: from + i, End: from + i + len(piece)}, true
	}
	words := strings.Fields(piece)
	if len(words) == 0 {
		return doctree.Span{}, false
	}
	start, pos := -1, 0
	for _, w := range words {
		i := strings.Index(hay[pos:], w)
		if i < 0 {
			return doctree.Span{}, false
		}
		if start < 0 {
			start = pos + i
		}
		pos += i + len(w)
	}
	return doctree.Span{Start: from + start, End: from + pos}, true
}

// packUnits greedily joins consecutive units while the joined text stays
// within maxTokens. Joined text is the contiguous content range, so the
// whitespace between units is preserved.
func packUnits(content string, units []unit, maxTokens int, counter *Counter) []unit {
	var groups []unit
	g := units[0]
	for _, u := range units[1:] {
		cand := unit{g.start, u.end}
		if counter.CountSync(content[cand.start:cand.end]) > maxTokens {
			groups = append(groups, g)
			g = u
			continue
		}
		g = cand
	}
	return append(groups, g)
}

// sentenceUnits cuts after a period or semicolon that is followed by
// whitespace and then a capital letter or an opening parenthesis. If that
// finds a single sentence, any period followed by whitespace is a cut.
func sentenceUnits(s string) []unit {
	cuts := sentenceCuts(s, true)
	if len(cuts) == 0 {
		cuts = sentenceCuts(s, false)
	}
	var out []unit
	prev := 0
	for _, c := range append(cuts, len(s)) {
		if u, ok := trimUnit(s, unit{prev, c}); ok {
			out = append(out, u)
		}
		prev = c
	}
	return out
}

func sentenceCuts(s string, strict bool) []int {
	var cuts []int
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '.' && (!strict || c != ';') {
			continue
		}
		j := i + 1
		for j < len(s) && isSpace(s[j]) {
			j++
		}
		if j == i+1 || j >= len(s) {
			continue
		}
		if strict {
			r, _ := utf8.DecodeRuneInString(s[j:])
			if !unicode.IsUpper(r) && r != '(' {
				continue
			}
		}
		cuts = append(cuts, i+1)
	}
	return cuts
}

var word = regexp.MustCompile(`\S+`)

func wordUnits(s string, within unit) []unit {
	var out []unit
	for _, loc := range word.FindAllStringIndex(s[within.start:within.end], -1) {
		out = append(out, unit{within.start + loc[0], within.start + loc[1]})
	}
	return out
}

func trimUnit(s string, u unit) (unit, bool) {
	for u.start < u.end && isSpace(s[u.start]) {
		u.start++
	}
	for u.end > u.start && isSpace(s[u.end-1]) {
		u.end--
	}
	return u, u.end > u.start
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r' || b == '\f' || b == '\v'
}
