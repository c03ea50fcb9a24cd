package doctree

// SectionType classifies a detected section by its heading text.
type SectionType string

const (
	SectionHeading     SectionType = "heading"
	SectionDefinitions SectionType = "definitions"
	SectionClause      SectionType = "clause"
	SectionSignature   SectionType = "signature"
	SectionExhibit     SectionType = "exhibit"
	SectionSchedule    SectionType = "schedule"
	SectionAmendment   SectionType = "amendment"
	SectionCoverLetter SectionType = "cover_letter"
	SectionOther       SectionType = "other"
)

// SectionTypes lists every SectionType in declaration order.
var SectionTypes = []SectionType{
	SectionHeading, SectionDefinitions, SectionClause, SectionSignature,
	SectionExhibit, SectionSchedule, SectionAmendment, SectionCoverLetter, SectionOther,
}

// Valid reports whether t is one of the declared section types.
func (t SectionType) Valid() bool {
	for _, s := range SectionTypes {
		if s == t {
			return true
		}
	}
	return false
}

// Source records how section boundaries were found.
type Source string

const (
	SourceRegex Source = "regex"
	SourceLLM   Source = "llm"
)

// Parties holds the extracted party names. Empty means not found.
type Parties struct {
	Disclosing string `json:"disclosing,omitempty"`
	Receiving  string `json:"receiving,omitempty"`
}

// PositionedSection is a heading and the text it governs, located in the
// source text. StartOffset is the heading start; EndOffset is the start of the
// next heading or the end of the text. ContentStart is where the body begins
// (after the heading line).
type PositionedSection struct {
	Title        string      `json:"title"`
	Level        int         `json:"level"`
	Content      string      `json:"content"`
	Type         SectionType `json:"type"`
	StartOffset  int         `json:"startOffset"`
	EndOffset    int         `json:"endOffset"`
	ContentStart int         `json:"contentStart"`
	SectionPath  []string    `json:"sectionPath"`
}

// Span returns the full section span (heading included).
func (s PositionedSection) Span() Span {
	return Span{Start: s.StartOffset, End: s.EndOffset}
}

// ContentSpan returns the body span, excluding the heading line.
func (s PositionedSection) ContentSpan() Span {
	start := s.ContentStart
	if start < s.StartOffset || start > s.EndOffset {
		start = s.StartOffset
	}
	return Span{Start: start, End: s.EndOffset}
}

// DocumentStructure is the detector's output for a single document.
type DocumentStructure struct {
	Sections          []PositionedSection `json:"sections"`
	Parties           Parties             `json:"parties"`
	HasExhibits       bool                `json:"hasExhibits"`
	HasSignatureBlock bool                `json:"hasSignatureBlock"`
	HasRedactedText   bool                `json:"hasRedactedText"`
	Source            Source              `json:"source"`
}

// ChunkType tags how a chunk was produced.
type ChunkType string

const (
	ChunkDefinition  ChunkType = "definition"
	ChunkClause      ChunkType = "clause"
	ChunkSubClause   ChunkType = "sub-clause"
	ChunkRecital     ChunkType = "recital"
	ChunkBoilerplate ChunkType = "boilerplate"
	ChunkExhibit     ChunkType = "exhibit"
	ChunkMerged      ChunkType = "merged"
	ChunkSplit       ChunkType = "split"
	ChunkFallback    ChunkType = "fallback"
)

// ChunkMetadata carries provenance and context for a chunk.
type ChunkMetadata struct {
	ParentClauseIntro string   `json:"parentClauseIntro,omitempty"`
	References        []string `json:"references"`
	IsOverlap         bool     `json:"isOverlap"`
	OverlapTokens     int      `json:"overlapTokens"`
	StructureSource   Source   `json:"structureSource"`
	IsOCR             bool     `json:"isOcr,omitempty"`
	Boilerplate       bool     `json:"boilerplate,omitempty"`
}

// LegalChunk is a sized text segment ready for embedding and classification.
// StartPosition and EndPosition refer to the source text and never include
// prepended overlap.
type LegalChunk struct {
	ID            string        `json:"id"`
	Index         int           `json:"index"`
	Content       string        `json:"content"`
	SectionPath   []string      `json:"sectionPath"`
	TokenCount    int           `json:"tokenCount"`
	StartPosition int           `json:"startPosition"`
	EndPosition   int           `json:"endPosition"`
	ChunkType     ChunkType     `json:"chunkType"`
	Metadata      ChunkMetadata `json:"metadata"`
}

// Span returns the chunk's source span.
func (c LegalChunk) Span() Span {
	return Span{Start: c.StartPosition, End: c.EndPosition}
}

// TopLevelSection returns the first section path entry, or "" for chunks
// outside any detected section.
func (c LegalChunk) TopLevelSection() string {
	if len(c.SectionPath) == 0 {
		return ""
	}
	return c.SectionPath[0]
}

// IsBoilerplate reports whether the chunk came from a boilerplate section.
// Merged and split chunks keep the flag of their parents.
func (c LegalChunk) IsBoilerplate() bool {
	return c.ChunkType == ChunkBoilerplate || c.Metadata.Boilerplate
}

// SkipEmbedding reports whether downstream embedding should skip this chunk.
// Boilerplate is kept for reconstruction and highlighting only.
func (c LegalChunk) SkipEmbedding() bool {
	return c.IsBoilerplate()
}

// CopyPath returns an independent copy of a section path.
func CopyPath(path []string) []string {
	if len(path) == 0 {
		return nil
	}
	out := make([]string, len(path))
	copy(out, path)
	return out
}

// AppendPath returns path with extra appended, without aliasing path.
func AppendPath(path []string, extra ...string) []string {
	out := make([]string, 0, len(path)+len(extra))
	out = append(out, path...)
	return append(out, extra...)
}
