package chunker

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/ndachunk/internal/doctree"
	"github.com/dgallion1/ndachunk/internal/extract"
	"github.com/dgallion1/ndachunk/internal/structure"
)

type stubExtractor struct {
	res   *extract.HeadingResult
	err   error
	calls int
}

func (s *stubExtractor) ExtractHeadings(context.Context, string) (*extract.HeadingResult, error) {
	s.calls++
	return s.res, s.err
}

const sampleNDA = `MUTUAL NON-DISCLOSURE AGREEMENT

This Agreement is entered into by and between Acme Corp. (the "Disclosing Party") and Beta LLC (the "Receiving Party").

RECITALS

WHEREAS, the Disclosing Party owns certain proprietary technology; and

WHEREAS, the Receiving Party wishes to evaluate that technology for a possible transaction;

NOW, THEREFORE, the parties agree as follows.

ARTICLE I
DEFINITIONS

1.1 "Confidential Information" means all non-public information disclosed by the Disclosing Party, whether oral or written, including the items listed in Exhibit A.

1.2 "Purpose" means the evaluation described in the Recitals.

ARTICLE II
OBLIGATIONS

2.1 Protection. The Receiving Party shall:
(a) hold the Confidential Information in strict confidence;
(b) use it solely for the Purpose as defined in Section 1.2; and
(c) restrict disclosure to employees with a need to know.

2.2 Term. The obligations in Section 2.1 survive for three years after disclosure.

IN WITNESS WHEREOF

By: ________________
Name: Jane Roe

EXHIBIT A

Source code, product roadmaps and customer lists.
`

func TestChunk_TwoSectionScenario(t *testing.T) {
	text := "Section 1. Definitions\n\n\"Confidential Information\" means all non-public data.\n\nSection 2. Term\n\nThis Agreement lasts 2 years."
	res := NewLegalChunker(nil, nil).Chunk(context.Background(), text, Request{DocumentID: "doc"})

	require.Len(t, res.Structure.Sections, 2)
	require.GreaterOrEqual(t, len(res.Chunks), 2)

	first, second := res.Chunks[0], res.Chunks[1]
	assert.Equal(t, doctree.ChunkDefinition, first.ChunkType)
	assert.Equal(t, "Definition: Confidential Information", first.SectionPath[len(first.SectionPath)-1])
	assert.Equal(t, doctree.ChunkClause, second.ChunkType)
	assert.Equal(t, []string{"Section 2. Term"}, second.SectionPath)
	assert.Equal(t, doctree.SourceRegex, second.Metadata.StructureSource)

	for i, c := range res.Chunks {
		assert.Equal(t, i, c.Index)
		assert.Equal(t, ChunkID("doc", i), c.ID)
		assert.NotNil(t, c.Metadata.References)
	}
}

func TestChunk_EmptyText(t *testing.T) {
	lc := NewLegalChunker(nil, nil)
	assert.Empty(t, lc.Chunk(context.Background(), "", Request{}).Chunks)
	assert.Empty(t, lc.Chunk(context.Background(), " \n\t ", Request{}).Chunks)
}

func TestChunk_SampleNDA(t *testing.T) {
	lc := NewLegalChunker(nil, nil, WithOptions(ChunkOptions{MaxTokens: 512, TargetTokens: 400, OverlapTokens: 20, MinChunkTokens: 10, IsOCR: true}))
	res := lc.Chunk(context.Background(), sampleNDA, Request{DocumentID: "nda"})

	st := res.Structure
	assert.Equal(t, "Acme Corp.", st.Parties.Disclosing)
	assert.Equal(t, "Beta LLC", st.Parties.Receiving)
	assert.True(t, st.HasSignatureBlock)
	assert.True(t, st.HasExhibits)
	assert.False(t, st.HasRedactedText)

	types := map[doctree.ChunkType]int{}
	var refs []string
	for _, c := range res.Chunks {
		types[c.ChunkType]++
		refs = append(refs, c.Metadata.References...)
		assert.True(t, c.Metadata.IsOCR)
		assert.LessOrEqual(t, c.StartPosition, c.EndPosition)
		assert.LessOrEqual(t, c.EndPosition, len(sampleNDA))
	}
	assert.Positive(t, types[doctree.ChunkRecital])
	assert.Positive(t, types[doctree.ChunkDefinition])
	assert.Positive(t, types[doctree.ChunkSubClause])
	assert.Positive(t, types[doctree.ChunkBoilerplate])
	assert.Positive(t, types[doctree.ChunkExhibit])
	assert.Contains(t, refs, "1.2")
	assert.Contains(t, refs, "A")

	for _, c := range res.Chunks {
		if c.ChunkType == doctree.ChunkSubClause {
			assert.Equal(t, "The Receiving Party shall:", c.Metadata.ParentClauseIntro)
		}
		if c.ChunkType == doctree.ChunkBoilerplate {
			assert.True(t, c.SkipEmbedding())
		}
	}
}

func TestChunk_Idempotent(t *testing.T) {
	lc := NewLegalChunker(nil, nil)
	a := lc.Chunk(context.Background(), sampleNDA, Request{DocumentID: "x"})
	b := lc.Chunk(context.Background(), sampleNDA, Request{DocumentID: "x"})
	assert.Equal(t, a, b)
}

func TestChunk_AlwaysAtLeastOneChunk(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 5))
	lines := []string{
		"ARTICLE I", "Section 4. Notices", "1.1 Scope.", "(a) Exceptions", "WHEREAS",
		"CONFIDENTIALITY", "EXHIBIT B", "IN WITNESS WHEREOF", "", "", "x",
		"The Recipient shall keep all information secret.", "\"Term\" means two years.",
		"é ü ß", "   ", "NOW, THEREFORE",
	}
	lc := NewLegalChunker(nil, nil)
	for iter := range 300 {
		n := 1 + rng.IntN(12)
		parts := make([]string, n)
		for i := range parts {
			parts[i] = lines[rng.IntN(len(lines))]
		}
		text := strings.Join(parts, "\n")
		res := lc.Chunk(context.Background(), text, Request{})
		if strings.TrimSpace(text) == "" {
			assert.Empty(t, res.Chunks, "iter %d", iter)
			continue
		}
		require.NotEmpty(t, res.Chunks, "iter %d: %q", iter, text)
		for i, c := range res.Chunks {
			require.Equal(t, i, c.Index)
			require.LessOrEqual(t, c.StartPosition, c.EndPosition)
			require.LessOrEqual(t, c.EndPosition, len(text))
		}
	}
}

func TestChunk_PresetStructureSkipsDetection(t *testing.T) {
	stub := &stubExtractor{res: &extract.HeadingResult{}}
	lc := NewLegalChunker(structure.NewDetector(stub, nil), nil)
	text := "alpha beta gamma\n\ndelta epsilon"
	preset := &doctree.DocumentStructure{
		Sections: []doctree.PositionedSection{{
			Title: "Custom", Level: 1, Type: doctree.SectionClause,
			StartOffset: 0, EndOffset: len(text), SectionPath: []string{"Custom"},
		}},
		Source: doctree.SourceLLM,
	}
	res := lc.Chunk(context.Background(), text, Request{Structure: preset})
	require.Len(t, res.Chunks, 1)
	assert.Equal(t, []string{"Custom"}, res.Chunks[0].SectionPath)
	assert.Equal(t, doctree.SourceLLM, res.Chunks[0].Metadata.StructureSource)
	assert.Zero(t, stub.calls)
}

const poorlyStructured = "Section 1. Scope\n\nThis agreement covers secrets.\n\nconfidentiality\nKeep secrets safe and sound.\n\ngoverning law\nDelaware law applies here."

func TestChunk_PoorQualityRechunksWithFallback(t *testing.T) {
	stub := &stubExtractor{res: &extract.HeadingResult{Sections: []extract.Heading{
		{Title: "Section 1. Scope", Level: 1, Type: "clause"},
		{Title: "confidentiality", Level: 1, Type: "clause"},
		{Title: "governing law", Level: 1, Type: "clause"},
	}}}
	lc := NewLegalChunker(structure.NewDetector(stub, nil), nil)
	res := lc.Chunk(context.Background(), poorlyStructured, Request{})

	assert.Equal(t, 1, stub.calls)
	assert.True(t, res.Rechunked)
	assert.Equal(t, doctree.SourceLLM, res.Structure.Source)
	require.Len(t, res.Chunks, 3)
	for _, c := range res.Chunks {
		assert.Equal(t, doctree.SourceLLM, c.Metadata.StructureSource)
	}
	assert.Equal(t, []string{"governing law"}, res.Chunks[2].SectionPath)
}

func TestChunk_FailedFallbackKeepsRegexResult(t *testing.T) {
	stub := &stubExtractor{err: errors.New("timeout")}
	lc := NewLegalChunker(structure.NewDetector(stub, nil), nil)
	res := lc.Chunk(context.Background(), poorlyStructured, Request{})

	assert.Equal(t, 1, stub.calls)
	assert.False(t, res.Rechunked)
	assert.Equal(t, doctree.SourceRegex, res.Structure.Source)
	require.Len(t, res.Chunks, 1)
	assert.Equal(t, []string{"Section 1. Scope"}, res.Chunks[0].SectionPath)
}

func TestChunk_UnlocatedFallbackHeadingLosesNoText(t *testing.T) {
	text := "The parties agree to keep secrets.\n\nConfidentiality\n\nRecipient shall not disclose."
	stub := &stubExtractor{res: &extract.HeadingResult{Sections: []extract.Heading{
		{Title: "Preamble Paraphrased", Level: 1, Type: "clause"},
		{Title: "Confidentiality", Level: 1, Type: "clause"},
	}}}
	lc := NewLegalChunker(structure.NewDetector(stub, nil), nil,
		WithOptions(ChunkOptions{MaxTokens: 512, TargetTokens: 400}))
	res := lc.Chunk(context.Background(), text, Request{DocumentID: "doc", ForceLLM: true})

	require.Len(t, res.Chunks, 2)
	assert.Equal(t, "The parties agree to keep secrets.", res.Chunks[0].Content)
	assert.Equal(t, 0, res.Chunks[0].StartPosition)
	assert.Equal(t, "Recipient shall not disclose.", res.Chunks[1].Content)
	for _, c := range res.Chunks {
		assert.Equal(t, c.Content, text[c.StartPosition:c.EndPosition])
	}
}

func TestChunk_FallbackOnlyWhenNoHeadings(t *testing.T) {
	stub := &stubExtractor{err: errors.New("unavailable")}
	lc := NewLegalChunker(structure.NewDetector(stub, nil), nil)
	res := lc.Chunk(context.Background(), "just some text without headings", Request{})

	require.Len(t, res.Chunks, 1)
	assert.Equal(t, doctree.ChunkFallback, res.Chunks[0].ChunkType)
	assert.Equal(t, doctree.SourceLLM, res.Chunks[0].Metadata.StructureSource)
	assert.Equal(t, 1, stub.calls)
}

func TestValidateStructure(t *testing.T) {
	text := strings.Repeat("a", 20)
	in := doctree.DocumentStructure{Sections: []doctree.PositionedSection{
		{Title: "late", Level: 7, StartOffset: 10, EndOffset: 50, ContentStart: 12, Type: doctree.SectionClause},
		{Title: "early", Level: 1, StartOffset: 0, EndOffset: 12, ContentStart: 0},
	}}

	out, report := ValidateStructure(text, in)
	assert.Equal(t, 1, report.Clamped)
	assert.Equal(t, 1, report.Overlaps)
	assert.Equal(t, 2, report.Sections)
	assert.InDelta(t, 1.0, report.Coverage, 1e-9)

	require.Len(t, out.Sections, 2)
	assert.Equal(t, "early", out.Sections[0].Title)
	assert.Equal(t, doctree.SectionOther, out.Sections[0].Type)
	assert.Equal(t, 20, out.Sections[1].EndOffset)
	assert.Equal(t, 4, out.Sections[1].Level)
	assert.Equal(t, strings.Repeat("a", 8), out.Sections[1].Content)

	// The caller's structure is untouched.
	assert.Equal(t, 50, in.Sections[0].EndOffset)
	assert.Equal(t, "late", in.Sections[0].Title)
}

func TestValidateStructure_Coverage(t *testing.T) {
	text := strings.Repeat("b", 100)
	_, report := ValidateStructure(text, doctree.DocumentStructure{Sections: []doctree.PositionedSection{
		{StartOffset: 50, EndOffset: 100, ContentStart: 50, Level: 1, Type: doctree.SectionClause},
	}})
	assert.InDelta(t, 0.5, report.Coverage, 1e-9)
}

func TestDetectStructure(t *testing.T) {
	lc := NewLegalChunker(nil, nil)
	st, report := lc.DetectStructure(context.Background(), sampleNDA, false)
	assert.Equal(t, doctree.SourceRegex, st.Source)
	assert.NotEmpty(t, st.Sections)
	assert.Equal(t, len(st.Sections), report.Sections)
	for _, s := range st.Sections {
		assert.LessOrEqual(t, s.EndOffset, len(sampleNDA))
	}
}
