package render

import (
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/ndachunk/internal/doctree"
)

func TestConvertToMarkdown_Intro(t *testing.T) {
	md, offsets := ConvertToMarkdown("Intro\n\nBody.", []doctree.PositionedSection{
		{Title: "Intro", Level: 1, StartOffset: 0, EndOffset: 5},
	})
	assert.Equal(t, "# Intro\n\nBody.", md)
	assert.Equal(t, []OffsetMapping{{Original: 0, Markdown: 2}}, offsets)
	assert.Equal(t, 12, TranslateOffset(10, offsets))
}

func TestConvertToMarkdown_NestedLevels(t *testing.T) {
	text := "ARTICLE I\n\n1.1 Scope. Data.\n\n1.2 Term. Two years."
	sections := []doctree.PositionedSection{
		// out of order on purpose
		{Level: 3, StartOffset: strings.Index(text, "1.2")},
		{Level: 1, StartOffset: 0},
		{Level: 3, StartOffset: strings.Index(text, "1.1")},
	}
	md, offsets := ConvertToMarkdown(text, sections)
	assert.Equal(t, "# ARTICLE I\n\n### 1.1 Scope. Data.\n\n### 1.2 Term. Two years.", md)
	require.Len(t, offsets, 3)

	// Every raw position maps to the same character in markdown.
	for pos := range len(text) {
		assert.Equal(t, text[pos], md[TranslateOffset(pos, offsets)], "pos %d", pos)
	}
}

func TestConvertToMarkdown_SkipsOutOfRange(t *testing.T) {
	md, offsets := ConvertToMarkdown("abc", []doctree.PositionedSection{{Level: 1, StartOffset: 10}, {Level: 9, StartOffset: 1}})
	assert.Equal(t, "a###### bc", md)
	assert.Equal(t, []OffsetMapping{{Original: 1, Markdown: 8}}, offsets)
}

func TestTranslateOffset_BeforeFirstCheckpoint(t *testing.T) {
	offsets := []OffsetMapping{{Original: 5, Markdown: 7}}
	assert.Equal(t, 3, TranslateOffset(3, offsets))
	assert.Equal(t, 7, TranslateOffset(5, offsets))
	assert.Equal(t, 4, TranslateOffset(4, nil))
}

func TestTranslateOffset_Monotonic(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	for range 200 {
		var offsets []OffsetMapping
		orig, shift := 0, 0
		for range rng.IntN(20) {
			orig += rng.IntN(50)
			shift += 1 + rng.IntN(6)
			offsets = append(offsets, OffsetMapping{Original: orig, Markdown: orig + shift})
		}
		prev := TranslateOffset(0, offsets)
		for pos := 1; pos < orig+60; pos++ {
			got := TranslateOffset(pos, offsets)
			require.GreaterOrEqual(t, got, prev, "pos %d offsets %v", pos, offsets)
			prev = got
		}
	}
}

func intp(v int) *int { return &v }

func TestMapClausePositions(t *testing.T) {
	text := "Intro\n\nBody text here.\n\nTerm\n\nTwo years."
	termAt := strings.Index(text, "Term")
	md, offsets := ConvertToMarkdown(text, []doctree.PositionedSection{
		{Level: 1, StartOffset: 0},
		{Level: 2, StartOffset: termAt},
	})
	paragraphs := SplitIntoParagraphs(md)
	require.Len(t, paragraphs, 4)

	bodyStart := strings.Index(text, "Body")
	clauses := []ClauseRecord{
		{ClauseID: "c1", Category: "Confidentiality", RiskLevel: "low", Confidence: 0.9,
			StartPosition: intp(bodyStart), EndPosition: intp(termAt)},
		{ClauseID: "missing"},
		{ClauseID: "neg", StartPosition: intp(-4), EndPosition: intp(3)},
		{ClauseID: "gap", StartPosition: intp(termAt - 1), EndPosition: intp(termAt)},
	}
	overlays := MapClausePositions(clauses, offsets, paragraphs)
	require.Len(t, overlays, 3)

	c1 := overlays[0]
	assert.Equal(t, "Confidentiality", c1.Category)
	assert.Equal(t, "Body", md[c1.MarkdownStart:c1.MarkdownStart+4])
	// The end stops before the "## " inserted for the next section.
	assert.Equal(t, "Body text here.\n\n", md[c1.MarkdownStart:c1.MarkdownEnd])
	assert.Equal(t, 1, c1.ParagraphIndex)

	assert.Equal(t, 0, overlays[1].OriginalStart)
	assert.Equal(t, 2, overlays[1].MarkdownStart)
	assert.Equal(t, 0, overlays[1].ParagraphIndex)

	// Whitespace between paragraphs resolves to the preceding paragraph.
	assert.Equal(t, 1, overlays[2].ParagraphIndex)
}

func TestSplitIntoParagraphs(t *testing.T) {
	md := "\n\n# Title\n\nFirst para\nstill first.\n  \n\nSecond."
	got := SplitIntoParagraphs(md)
	require.Len(t, got, 3)
	assert.Equal(t, "# Title", got[0].Text)
	assert.Equal(t, "First para\nstill first.", got[1].Text)
	assert.Equal(t, "Second.", got[2].Text)
	for i, p := range got {
		assert.Equal(t, i, p.Index)
		assert.Equal(t, p.Text, md[p.StartOffset:p.EndOffset])
	}
	assert.Empty(t, SplitIntoParagraphs("  \n\n "))
}

func TestSplitByChunks(t *testing.T) {
	text := "Section 1. Scope\n\nCovers data.\n\nSection 2. Term\n\nTwo years."
	s2 := strings.Index(text, "Section 2")
	sections := []doctree.PositionedSection{
		{Level: 2, StartOffset: 0, EndOffset: s2},
		{Level: 2, StartOffset: s2, EndOffset: len(text)},
	}
	md, offsets := ConvertToMarkdown(text, sections)

	scope := strings.Index(text, "Covers")
	term := strings.Index(text, "Two")
	chunks := []doctree.LegalChunk{
		{StartPosition: term, EndPosition: len(text), ChunkType: doctree.ChunkClause, SectionPath: []string{"Section 2. Term"}},
		{StartPosition: scope, EndPosition: scope + len("Covers data."), ChunkType: doctree.ChunkDefinition, SectionPath: []string{"Section 1. Scope", "Definition: Data"}},
	}
	segs := SplitByChunks(md, chunks, offsets)
	require.Len(t, segs, 4)

	assert.Equal(t, "## Section 1. Scope\n\n", segs[0].Text)
	assert.Equal(t, doctree.ChunkType(""), segs[0].ChunkType)
	assert.Equal(t, "Covers data.", segs[1].Text)
	assert.Equal(t, doctree.ChunkDefinition, segs[1].ChunkType)
	assert.Equal(t, 2, segs[1].Depth)
	assert.Equal(t, "\n\n## Section 2. Term\n\n", segs[2].Text)
	assert.Equal(t, "Two years.", segs[3].Text)
	assert.Equal(t, 1, segs[3].Depth)

	var rebuilt strings.Builder
	for i, s := range segs {
		assert.Equal(t, i, s.Index)
		rebuilt.WriteString(s.Text)
	}
	assert.Equal(t, md, rebuilt.String())
}

func TestSplitByChunks_NegativeStartIsClamped(t *testing.T) {
	text := "Intro\n\nBody."
	md, offsets := ConvertToMarkdown(text, []doctree.PositionedSection{{Level: 1, StartOffset: 0}})
	chunks := []doctree.LegalChunk{
		{StartPosition: -3, EndPosition: 0, ChunkType: doctree.ChunkClause},
		{StartPosition: -4, EndPosition: 5, ChunkType: doctree.ChunkClause},
		{StartPosition: 7, EndPosition: len(text), ChunkType: doctree.ChunkClause},
	}
	segs := SplitByChunks(md, chunks, offsets)

	var texts []string
	for _, s := range segs {
		texts = append(texts, s.Text)
		assert.GreaterOrEqual(t, s.StartOffset, 0)
		assert.LessOrEqual(t, s.StartOffset, s.EndOffset)
	}
	assert.Equal(t, []string{"# ", "Intro", "Body."}, texts)
}

func TestRender(t *testing.T) {
	v := Render("Intro\n\nBody.", []doctree.PositionedSection{{Level: 1, StartOffset: 0}}, nil, nil)
	assert.Equal(t, "# Intro\n\nBody.", v.Markdown)
	assert.Len(t, v.Paragraphs, 2)
	assert.Empty(t, v.Overlays)
	assert.Nil(t, v.Segments)
}
