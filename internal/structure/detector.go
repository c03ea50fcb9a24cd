// Package structure detects the heading hierarchy of legal documents.
//
// Detection is deterministic first: an ordered catalogue of heading patterns
// is matched against the text, one match is kept per line, and the text
// between headings becomes section content. When the patterns find nothing,
// or the caller forces it, a generative fallback supplies heading titles only
// and content is sliced from the source text by the same rule.
package structure

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/dgallion1/ndachunk/internal/doctree"
	"github.com/dgallion1/ndachunk/internal/extract"
)

// DefaultFallbackPrefix bounds the text sent to the fallback model. Legal
// documents put their headings early, so a prefix is enough.
const DefaultFallbackPrefix = 30000

// Options controls a single detection run.
type Options struct {
	ForceLLM bool
}

// Detector finds document structure.
type Detector struct {
	fallback  extract.HeadingExtractor
	log       *slog.Logger
	maxPrefix int
	timeout   time.Duration
	observe   func(d time.Duration, err error)
}

// Option configures a Detector.
type Option func(*Detector)

// WithFallbackPrefix sets how many characters are sent to the fallback.
func WithFallbackPrefix(n int) Option {
	return func(d *Detector) {
		if n > 0 {
			d.maxPrefix = n
		}
	}
}

// WithFallbackTimeout bounds a single fallback call.
func WithFallbackTimeout(t time.Duration) Option {
	return func(d *Detector) { d.timeout = t }
}

// WithFallbackObserver receives the duration and outcome of each fallback call.
func WithFallbackObserver(fn func(d time.Duration, err error)) Option {
	return func(d *Detector) { d.observe = fn }
}

// NewDetector returns a Detector. fallback may be nil, in which case
// documents without recognizable headings get an empty section list.
func NewDetector(fallback extract.HeadingExtractor, log *slog.Logger, opts ...Option) *Detector {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	d := &Detector{
		fallback:  fallback,
		log:       log,
		maxPrefix: DefaultFallbackPrefix,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// HasFallback reports whether a generative fallback is configured.
func (d *Detector) HasFallback() bool {
	return d.fallback != nil
}

// Detect returns the structure of text. It never fails: a fallback error is
// logged and yields an empty section list, which callers must accept.
func (d *Detector) Detect(ctx context.Context, text string, opts Options) doctree.DocumentStructure {
	st := d.DetectPatterns(text)
	if !opts.ForceLLM && len(st.Sections) > 0 {
		return st
	}
	if d.fallback == nil {
		if opts.ForceLLM {
			d.log.Warn("fallback structure detection requested but no fallback configured")
		}
		return st
	}

	llm, err := d.detectWithFallback(ctx, text)
	if err != nil {
		d.log.Warn("fallback structure detection failed, using empty structure", "error", err)
		st.Sections = nil
		st.Source = doctree.SourceLLM
		return st
	}
	if llm.Parties.Disclosing == "" {
		llm.Parties.Disclosing = st.Parties.Disclosing
	}
	if llm.Parties.Receiving == "" {
		llm.Parties.Receiving = st.Parties.Receiving
	}
	if st.Parties.Disclosing != "" {
		llm.Parties.Disclosing = st.Parties.Disclosing
	}
	if st.Parties.Receiving != "" {
		llm.Parties.Receiving = st.Parties.Receiving
	}
	llm.HasExhibits = st.HasExhibits
	llm.HasSignatureBlock = st.HasSignatureBlock
	llm.HasRedactedText = st.HasRedactedText
	return llm
}

// DetectPatterns runs only the deterministic pattern pass.
func (d *Detector) DetectPatterns(text string) doctree.DocumentStructure {
	flags := DetectFlags(text)
	st := doctree.DocumentStructure{
		Parties:           ExtractParties(text),
		HasExhibits:       flags.HasExhibits,
		HasSignatureBlock: flags.HasSignatureBlock,
		HasRedactedText:   flags.HasRedactedText,
		Source:            doctree.SourceRegex,
	}
	st.Sections = buildSections(text, dedupeByLine(text, matchHeadings(text)))
	return st
}

// heading is a located heading before content slicing.
type heading struct {
	title string
	level int
	rank  int
	start int // heading start offset
	end   int // offset where the body begins
	typ   doctree.SectionType
}

func matchHeadings(text string) []heading {
	var out []heading
	for _, rule := range headingCatalogue {
		for _, loc := range rule.re.FindAllStringSubmatchIndex(text, -1) {
			titleStart, titleEnd := loc[2], loc[3]
			if titleStart < 0 {
				continue
			}
			title := strings.TrimSpace(text[titleStart:titleEnd])
			rest := restOfLine(text, loc[1])
			if rule.accept != nil && !rule.accept(title, rest) {
				continue
			}
			level := rule.level
			if rule.levelOf != nil {
				level = rule.levelOf(title)
			}
			end := loc[1]
			if strings.TrimSpace(rest) == "" {
				end += len(rest)
			}
			out = append(out, heading{
				title: strings.TrimRight(strings.TrimSpace(title), ".:"),
				level: level,
				rank:  rule.rank,
				start: titleStart,
				end:   end,
			})
		}
	}
	return out
}

func restOfLine(text string, pos int) string {
	if pos >= len(text) {
		return ""
	}
	if nl := strings.IndexByte(text[pos:], '\n'); nl >= 0 {
		return text[pos : pos+nl]
	}
	return text[pos:]
}

func lineStart(text string, pos int) int {
	return strings.LastIndexByte(text[:pos], '\n') + 1
}

// dedupeByLine keeps the highest-rank heading per source line, then sorts
// the survivors by offset. Equal ranks keep the longer title.
func dedupeByLine(text string, hs []heading) []heading {
	best := make(map[int]heading, len(hs))
	for _, h := range hs {
		ls := lineStart(text, h.start)
		cur, ok := best[ls]
		if !ok || h.rank > cur.rank || (h.rank == cur.rank && len(h.title) > len(cur.title)) {
			best[ls] = h
		}
	}
	out := make([]heading, 0, len(best))
	for _, h := range best {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].start < out[j].start })
	return out
}

// buildSections slices content between consecutive headings and assigns
// section paths by level nesting.
func buildSections(text string, hs []heading) []doctree.PositionedSection {
	if len(hs) == 0 {
		return nil
	}
	type frame struct {
		level int
		title string
	}
	var stack []frame
	sections := make([]doctree.PositionedSection, 0, len(hs))
	for i, h := range hs {
		level := min(max(h.level, 1), 4)
		next := len(text)
		if i+1 < len(hs) {
			next = hs[i+1].start
		}
		span := doctree.ClampSpan(h.start, next, len(text))
		body := doctree.ClampSpan(h.end, span.End, len(text))
		if body.Start < span.Start {
			body.Start = span.Start
		}
		body = body.Trim(text)

		for len(stack) > 0 && stack[len(stack)-1].level >= level {
			stack = stack[:len(stack)-1]
		}
		stack = append(stack, frame{level: level, title: h.title})
		path := make([]string, len(stack))
		for j, f := range stack {
			path[j] = f.title
		}

		typ := h.typ
		if typ == "" {
			typ = Classify(h.title, level)
		}
		sections = append(sections, doctree.PositionedSection{
			Title:        h.title,
			Level:        level,
			Content:      body.Slice(text),
			Type:         typ,
			StartOffset:  span.Start,
			EndOffset:    span.End,
			ContentStart: body.Start,
			SectionPath:  path,
		})
	}
	return sections
}
