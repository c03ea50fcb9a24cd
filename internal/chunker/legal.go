// Package chunker turns legal documents into sized, structure-aware chunks.
//
// LegalChunker runs the whole pipeline: structure validation, per-section
// strategies, an optional generative re-chunk when the regex structure looks
// poor, merging of short chunks, splitting of oversized ones, cross-reference
// annotation, overlap injection and final indexing.
package chunker

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/dgallion1/ndachunk/internal/doctree"
	"github.com/dgallion1/ndachunk/internal/structure"
)

// LegalChunker is safe for concurrent use; per-document state lives on the
// stack of Chunk.
type LegalChunker struct {
	detector *structure.Detector
	counter  *Counter
	log      *slog.Logger
	opts     ChunkOptions
	quality  QualityConfig
}

// Option configures a LegalChunker.
type Option func(*LegalChunker)

// WithOptions sets the default chunk sizes.
func WithOptions(o ChunkOptions) Option {
	return func(lc *LegalChunker) { lc.opts = o.withDefaults() }
}

// WithQuality sets the re-chunk thresholds.
func WithQuality(q QualityConfig) Option {
	return func(lc *LegalChunker) { lc.quality = q.withDefaults() }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(lc *LegalChunker) {
		if l != nil {
			lc.log = l
		}
	}
}

// NewLegalChunker builds a chunker. A nil detector gets a regex-only one;
// a nil counter uses the character heuristic.
func NewLegalChunker(detector *structure.Detector, counter *Counter, opts ...Option) *LegalChunker {
	lc := &LegalChunker{
		detector: detector,
		counter:  counter,
		log:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		opts:     DefaultOptions(),
		quality:  DefaultQuality(),
	}
	for _, o := range opts {
		o(lc)
	}
	if lc.detector == nil {
		lc.detector = structure.NewDetector(nil, lc.log)
	}
	if lc.counter == nil {
		lc.counter = HeuristicCounter()
	}
	return lc
}

// Counter returns the token counter in use.
func (lc *LegalChunker) Counter() *Counter { return lc.counter }

// Request describes one chunking run.
type Request struct {
	// DocumentID seeds chunk IDs.
	DocumentID string
	// Structure skips detection when set.
	Structure *doctree.DocumentStructure
	// ForceLLM asks the detector for the generative fallback directly.
	ForceLLM bool
	// Options overrides the chunker's default sizes.
	Options *ChunkOptions
}

// Result is the output of Chunk.
type Result struct {
	Chunks    []doctree.LegalChunk      `json:"chunks"`
	Structure doctree.DocumentStructure `json:"structure"`
	Report    StructureReport           `json:"report"`
	// Rechunked is true when the fallback structure replaced the regex one.
	Rechunked bool `json:"rechunked"`
}

// Chunk runs the pipeline over text. Any non-empty text yields at least one
// chunk; empty or blank text yields none.
func (lc *LegalChunker) Chunk(ctx context.Context, text string, req Request) Result {
	opts := lc.opts
	if req.Options != nil {
		opts = req.Options.withDefaults()
	}
	if strings.TrimSpace(text) == "" {
		return Result{Structure: doctree.DocumentStructure{Source: doctree.SourceRegex}}
	}

	var st doctree.DocumentStructure
	if req.Structure != nil {
		st = *req.Structure
	} else {
		st = lc.detector.Detect(ctx, text, structure.Options{ForceLLM: req.ForceLLM})
	}
	if st.Source == "" {
		st.Source = doctree.SourceRegex
	}

	st, report := lc.validate(text, st)
	chunks := lc.initialChunks(text, st, opts)

	res := Result{}
	if req.Structure == nil && !req.ForceLLM && st.Source == doctree.SourceRegex && lc.detector.HasFallback() {
		if reason := lc.poorQuality(len(text), report, len(chunks)); reason != "" {
			lc.log.Info("structure quality poor, retrying with fallback",
				"reason", reason, "sections", report.Sections, "chunks", len(chunks), "coverage", report.Coverage)
			if llmSt, llmReport, llmChunks, ok := lc.rechunk(ctx, text, opts, len(chunks)); ok {
				st, report, chunks = llmSt, llmReport, llmChunks
				res.Rechunked = true
			}
		}
	}

	chunks = MergeShortChunks(chunks, opts.MinChunkTokens, opts.MaxTokens, lc.counter)
	chunks = SplitOversizedChunks(text, chunks, opts.MaxTokens, lc.counter)
	annotate(chunks, st.Source, opts.IsOCR)
	chunks = InjectOverlap(chunks, opts.OverlapTokens, lc.counter)
	reindex(chunks, req.DocumentID)

	res.Chunks = chunks
	res.Structure = st
	res.Report = report
	return res
}

// rechunk asks the fallback for a structure and returns its chunks when
// they beat the regex result.
func (lc *LegalChunker) rechunk(ctx context.Context, text string, opts ChunkOptions, regexChunks int) (doctree.DocumentStructure, StructureReport, []doctree.LegalChunk, bool) {
	st := lc.detector.Detect(ctx, text, structure.Options{ForceLLM: true})
	if len(st.Sections) == 0 {
		lc.log.Info("fallback structure empty, keeping regex result")
		return st, StructureReport{}, nil, false
	}
	st, report := lc.validate(text, st)
	chunks := lc.initialChunks(text, st, opts)
	ratio := lc.quality.chunkRatio(len(chunks), len(text))
	if len(chunks) > regexChunks || ratio >= lc.quality.MinChunksPerPage {
		lc.log.Info("using fallback structure", "sections", len(st.Sections), "chunks", len(chunks))
		return st, report, chunks, true
	}
	lc.log.Info("fallback structure not better, keeping regex result",
		"regex_chunks", regexChunks, "fallback_chunks", len(chunks))
	return st, report, nil, false
}

// poorQuality returns why a structure looks poor, or "".
func (lc *LegalChunker) poorQuality(textLen int, report StructureReport, chunks int) string {
	q := lc.quality
	switch {
	case report.Sections < q.MinSections:
		return "too few sections"
	case q.chunkRatio(chunks, textLen) < q.MinChunksPerPage:
		return "too few chunks per page"
	case report.Coverage < q.MinCoverage:
		return "low coverage"
	}
	return ""
}

func (lc *LegalChunker) initialChunks(text string, st doctree.DocumentStructure, opts ChunkOptions) []doctree.LegalChunk {
	sc := &sectionChunker{text: text, counter: lc.counter, opts: opts}
	whole := doctree.Span{Start: 0, End: len(text)}
	if len(st.Sections) == 0 {
		return sc.pack(whole, nil, doctree.ChunkFallback)
	}

	var out []doctree.LegalChunk
	cursor := 0
	for _, s := range st.Sections {
		if s.StartOffset > cursor {
			out = append(out, sc.gap(doctree.Span{Start: cursor, End: s.StartOffset})...)
		}
		out = append(out, sc.chunkSection(s)...)
		cursor = max(cursor, s.EndOffset)
	}
	if cursor < len(text) {
		out = append(out, sc.gap(doctree.Span{Start: cursor, End: len(text)})...)
	}
	if len(out) == 0 {
		// Headings with no bodies; keep the text anyway.
		out = sc.pack(whole, nil, doctree.ChunkFallback)
	}
	return out
}

// StructureReport summarizes structural anomalies found by ValidateStructure.
type StructureReport struct {
	Sections int     `json:"sections"`
	Clamped  int     `json:"clamped"`
	Overlaps int     `json:"overlaps"`
	Coverage float64 `json:"coverage"`
}

// ValidateStructure clamps sections to the text, orders them by offset and
// measures how much of the text they cover. Overlapping sections are counted
// but left as they are. The input structure is not modified.
func ValidateStructure(text string, st doctree.DocumentStructure) (doctree.DocumentStructure, StructureReport) {
	sections := make([]doctree.PositionedSection, len(st.Sections))
	copy(sections, st.Sections)

	var report StructureReport
	for i := range sections {
		s := &sections[i]
		sp := doctree.ClampSpan(s.StartOffset, s.EndOffset, len(text))
		if sp.Start != s.StartOffset || sp.End != s.EndOffset {
			report.Clamped++
			s.StartOffset, s.EndOffset = sp.Start, sp.End
			s.ContentStart = min(max(s.ContentStart, sp.Start), sp.End)
			s.Content = s.ContentSpan().Trim(text).Slice(text)
		}
		if s.Level < 1 || s.Level > 4 {
			s.Level = min(max(s.Level, 1), 4)
		}
		if !s.Type.Valid() {
			s.Type = doctree.SectionOther
		}
	}
	sort.SliceStable(sections, func(i, j int) bool { return sections[i].StartOffset < sections[j].StartOffset })

	covered, reach := 0, 0
	for i, s := range sections {
		if i > 0 && s.StartOffset < sections[i-1].EndOffset {
			report.Overlaps++
		}
		start := max(s.StartOffset, reach)
		if s.EndOffset > start {
			covered += s.EndOffset - start
		}
		reach = max(reach, s.EndOffset)
	}
	report.Sections = len(sections)
	if len(text) > 0 {
		report.Coverage = float64(covered) / float64(len(text))
	}

	st.Sections = sections
	return st, report
}

// DetectStructure runs detection and bounds validation without chunking.
func (lc *LegalChunker) DetectStructure(ctx context.Context, text string, forceLLM bool) (doctree.DocumentStructure, StructureReport) {
	st := lc.detector.Detect(ctx, text, structure.Options{ForceLLM: forceLLM})
	if st.Source == "" {
		st.Source = doctree.SourceRegex
	}
	return lc.validate(text, st)
}

func (lc *LegalChunker) validate(text string, st doctree.DocumentStructure) (doctree.DocumentStructure, StructureReport) {
	st, report := ValidateStructure(text, st)
	if report.Clamped > 0 {
		lc.log.Warn("sections out of bounds, clamped", "count", report.Clamped, "text_len", len(text))
	}
	if report.Overlaps > 0 {
		lc.log.Warn("overlapping sections", "count", report.Overlaps)
	}
	if report.Sections > 0 && report.Coverage < lc.quality.MinCoverage {
		lc.log.Warn("low structure coverage", "coverage", report.Coverage, "sections", report.Sections)
	}
	return st, report
}
