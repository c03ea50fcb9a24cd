package render

import (
	"regexp"
	"sort"

	"github.com/dgallion1/ndachunk/internal/doctree"
)

// ClauseRecord is a scored clause as stored downstream. Positions refer to
// the raw text and may be missing.
type ClauseRecord struct {
	ClauseID      string  `json:"clauseId"`
	Category      string  `json:"category"`
	RiskLevel     string  `json:"riskLevel"`
	Confidence    float64 `json:"confidence"`
	StartPosition *int    `json:"startPosition"`
	EndPosition   *int    `json:"endPosition"`
}

// ClauseOverlay places a clause on the markdown view. It is computed per
// render and never stored.
type ClauseOverlay struct {
	ClauseID       string  `json:"clauseId"`
	Category       string  `json:"category"`
	RiskLevel      string  `json:"riskLevel"`
	Confidence     float64 `json:"confidence"`
	OriginalStart  int     `json:"originalStart"`
	OriginalEnd    int     `json:"originalEnd"`
	MarkdownStart  int     `json:"markdownStart"`
	MarkdownEnd    int     `json:"markdownEnd"`
	ParagraphIndex int     `json:"paragraphIndex"`
}

// DocumentSegment is a unit of markdown text for windowed rendering.
// ChunkType and Depth are set only for segments built from chunks.
type DocumentSegment struct {
	Text        string            `json:"text"`
	StartOffset int               `json:"startOffset"`
	EndOffset   int               `json:"endOffset"`
	Index       int               `json:"index"`
	ChunkType   doctree.ChunkType `json:"chunkType,omitempty"`
	Depth       int               `json:"depth,omitempty"`
}

// MapClausePositions translates clause positions onto the markdown view and
// finds the paragraph holding each clause start. Clauses without positions
// are skipped.
func MapClausePositions(clauses []ClauseRecord, offsets []OffsetMapping, paragraphs []DocumentSegment) []ClauseOverlay {
	out := make([]ClauseOverlay, 0, len(clauses))
	for _, c := range clauses {
		if c.StartPosition == nil || c.EndPosition == nil {
			continue
		}
		start := max(*c.StartPosition, 0)
		end := max(*c.EndPosition, start)
		mdStart := TranslateOffset(start, offsets)
		out = append(out, ClauseOverlay{
			ClauseID:       c.ClauseID,
			Category:       c.Category,
			RiskLevel:      c.RiskLevel,
			Confidence:     c.Confidence,
			OriginalStart:  start,
			OriginalEnd:    end,
			MarkdownStart:  mdStart,
			MarkdownEnd:    translateEnd(start, end, offsets),
			ParagraphIndex: paragraphIndex(mdStart, paragraphs),
		})
	}
	return out
}

// paragraphIndex returns the segment containing pos, or the nearest one
// before it when pos falls between segments. It is -1 with no segments and
// 0 for positions before the first one.
func paragraphIndex(pos int, paragraphs []DocumentSegment) int {
	if len(paragraphs) == 0 {
		return -1
	}
	best := 0
	for _, p := range paragraphs {
		if pos >= p.StartOffset && pos < p.EndOffset {
			return p.Index
		}
		if p.StartOffset <= pos {
			best = p.Index
		}
	}
	return best
}

var blankLines = regexp.MustCompile(`\n[ \t]*\n`)

// SplitIntoParagraphs segments markdown at blank lines. Offsets exclude the
// surrounding whitespace of each paragraph.
func SplitIntoParagraphs(markdown string) []DocumentSegment {
	var out []DocumentSegment
	add := func(sp doctree.Span) {
		sp = sp.Trim(markdown)
		if sp.Empty() {
			return
		}
		out = append(out, DocumentSegment{
			Text:        sp.Slice(markdown),
			StartOffset: sp.Start,
			EndOffset:   sp.End,
			Index:       len(out),
		})
	}
	prev := 0
	for _, loc := range blankLines.FindAllStringIndex(markdown, -1) {
		add(doctree.Span{Start: prev, End: loc[0]})
		prev = loc[1]
	}
	add(doctree.Span{Start: prev, End: len(markdown)})
	return out
}

// SplitByChunks projects chunk spans onto the markdown view. Text between
// chunks becomes untagged segments so the view stays complete.
func SplitByChunks(markdown string, chunks []doctree.LegalChunk, offsets []OffsetMapping) []DocumentSegment {
	sorted := make([]doctree.LegalChunk, len(chunks))
	copy(sorted, chunks)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].StartPosition < sorted[j].StartPosition })

	var out []DocumentSegment
	add := func(sp doctree.Span, typ doctree.ChunkType, depth int) {
		if sp.Empty() || sp.Blank(markdown) {
			return
		}
		out = append(out, DocumentSegment{
			Text:        sp.Slice(markdown),
			StartOffset: sp.Start,
			EndOffset:   sp.End,
			Index:       len(out),
			ChunkType:   typ,
			Depth:       depth,
		})
	}

	cursor := 0
	for _, c := range sorted {
		rawStart := max(c.StartPosition, 0)
		start := TranslateOffset(rawStart, offsets)
		end := translateEnd(rawStart, c.EndPosition, offsets)
		sp := doctree.ClampSpan(max(start, cursor), end, len(markdown))
		if sp.Start > cursor {
			add(doctree.Span{Start: cursor, End: sp.Start}, "", 0)
		}
		add(sp, c.ChunkType, len(c.SectionPath))
		cursor = max(cursor, sp.End)
	}
	add(doctree.ClampSpan(cursor, len(markdown), len(markdown)), "", 0)
	return out
}

// View is everything a presentation layer needs to draw a document.
type View struct {
	Markdown   string            `json:"markdown"`
	OffsetMap  []OffsetMapping   `json:"offsetMap"`
	Paragraphs []DocumentSegment `json:"paragraphs"`
	Segments   []DocumentSegment `json:"segments,omitempty"`
	Overlays   []ClauseOverlay   `json:"overlays"`
}

// Render builds a View. Segments are produced only when chunks are given.
func Render(text string, sections []doctree.PositionedSection, clauses []ClauseRecord, chunks []doctree.LegalChunk) View {
	md, offsets := ConvertToMarkdown(text, sections)
	paragraphs := SplitIntoParagraphs(md)
	v := View{
		Markdown:   md,
		OffsetMap:  offsets,
		Paragraphs: paragraphs,
		Overlays:   MapClausePositions(clauses, offsets, paragraphs),
	}
	if len(chunks) > 0 {
		v.Segments = SplitByChunks(md, chunks, offsets)
	}
	return v
}
