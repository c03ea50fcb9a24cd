package chunker

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/dgallion1/ndachunk/internal/doctree"
)

// sectionChunker turns sections of one document into raw chunks. All spans
// refer to text, so chunk content is always a verbatim slice of the source.
type sectionChunker struct {
	text    string
	counter *Counter
	opts    ChunkOptions
}

var (
	// Content that reads like recitals goes to the recital strategy whatever
	// the heading says.
	recitalSignal = regexp.MustCompile(`(?i)\bwhereas\b|(?m)^[ \t]*recitals?\b`)

	whereasStart = regexp.MustCompile(`(?mi)^[ \t]*whereas\b`)

	definitionEntry = regexp.MustCompile(`(?m)(?:^[ \t]*(?:(?:\(?[A-Za-z0-9]{1,4}\)|\d{1,3}(?:\.\d{1,3})*\.?|[A-Za-z]\.)[ \t]+)?)?["“]([^"”\n]{1,80})["”][ \t]*(?:\([^)\n]{0,60}\)[ \t]*)?,?[ \t]*(?:shall\s+mean|means|refers\s+to|is\s+defined\s+as|has\s+the\s+meaning)\b`)

	subItem = regexp.MustCompile(`(?:^|[\s:;])\(([a-z])\)[ \t]`)

	paragraphBreak = regexp.MustCompile(`\n[ \t]*\n`)
)

// chunkSection dispatches one section to its strategy.
func (c *sectionChunker) chunkSection(s doctree.PositionedSection) []doctree.LegalChunk {
	cs := s.ContentSpan()
	body := doctree.ClampSpan(cs.Start, cs.End, len(c.text)).Trim(c.text)
	if body.Empty() {
		return nil
	}
	if recitalSignal.MatchString(body.Slice(c.text)) {
		return c.recitals(body, s.SectionPath)
	}
	switch s.Type {
	case doctree.SectionDefinitions:
		return c.definitions(body, s.SectionPath)
	case doctree.SectionClause, doctree.SectionHeading, doctree.SectionOther, doctree.SectionAmendment:
		return c.clause(body, s.SectionPath)
	case doctree.SectionSignature, doctree.SectionCoverLetter:
		return c.boilerplate(body, s.SectionPath)
	case doctree.SectionExhibit, doctree.SectionSchedule:
		return c.exhibit(body, s.SectionPath)
	default:
		return c.clause(body, s.SectionPath)
	}
}

// gap chunks text that no section claims.
func (c *sectionChunker) gap(sp doctree.Span) []doctree.LegalChunk {
	sp = sp.Trim(c.text)
	if sp.Empty() {
		return nil
	}
	if recitalSignal.MatchString(sp.Slice(c.text)) {
		return c.recitals(sp, nil)
	}
	return c.pack(sp, nil, doctree.ChunkFallback)
}

func (c *sectionChunker) newChunk(sp doctree.Span, path []string, typ doctree.ChunkType) (doctree.LegalChunk, bool) {
	sp = sp.Trim(c.text)
	if sp.Empty() {
		return doctree.LegalChunk{}, false
	}
	content := sp.Slice(c.text)
	return doctree.LegalChunk{
		Content:       content,
		SectionPath:   doctree.CopyPath(path),
		TokenCount:    c.counter.CountSync(content),
		StartPosition: sp.Start,
		EndPosition:   sp.End,
		ChunkType:     typ,
	}, true
}

func (c *sectionChunker) single(sp doctree.Span, path []string, typ doctree.ChunkType) []doctree.LegalChunk {
	if ch, ok := c.newChunk(sp, path, typ); ok {
		return []doctree.LegalChunk{ch}
	}
	return nil
}

// definitions emits one chunk per defined term. Text before the first
// definition is kept when it clears introFloor.
func (c *sectionChunker) definitions(body doctree.Span, path []string) []doctree.LegalChunk {
	content := body.Slice(c.text)
	locs := definitionEntry.FindAllStringSubmatchIndex(content, -1)
	if len(locs) == 0 {
		return c.single(body, path, doctree.ChunkClause)
	}

	var out []doctree.LegalChunk
	if ch, ok := c.newChunk(body.Sub(0, locs[0][0]), path, doctree.ChunkClause); ok && ch.TokenCount >= introFloor {
		out = append(out, ch)
	}
	for i, loc := range locs {
		end := len(content)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		term := strings.Join(strings.Fields(content[loc[2]:loc[3]]), " ")
		if ch, ok := c.newChunk(body.Sub(loc[0], end), doctree.AppendPath(path, "Definition: "+term), doctree.ChunkDefinition); ok {
			out = append(out, ch)
		}
	}
	return out
}

type subClause struct {
	label string
	start int
}

// subClauseStarts finds the sequential lettered items (a), (b), ... in
// content. Out-of-sequence letters are treated as text. Fewer than two
// items means the clause has no sub-structure.
func subClauseStarts(content string) []subClause {
	want := byte('a')
	var out []subClause
	for _, loc := range subItem.FindAllStringSubmatchIndex(content, -1) {
		letter := content[loc[2]]
		if letter != want {
			continue
		}
		out = append(out, subClause{label: "(" + string(letter) + ")", start: loc[2] - 1})
		want++
	}
	if len(out) < 2 {
		return nil
	}
	return out
}

// clause emits the section as one chunk, or as an intro plus one chunk per
// lettered sub-clause. Each sub-clause carries the intro as context.
func (c *sectionChunker) clause(body doctree.Span, path []string) []doctree.LegalChunk {
	content := body.Slice(c.text)
	subs := subClauseStarts(content)
	if subs == nil {
		return c.single(body, path, doctree.ChunkClause)
	}

	intro := body.Sub(0, subs[0].start).Trim(c.text)
	parent := truncateIntro(intro.Slice(c.text))

	var out []doctree.LegalChunk
	if ch, ok := c.newChunk(intro, path, doctree.ChunkClause); ok && ch.TokenCount >= introFloor {
		out = append(out, ch)
	}
	for i, s := range subs {
		end := len(content)
		if i+1 < len(subs) {
			end = subs[i+1].start
		}
		ch, ok := c.newChunk(body.Sub(s.start, end), doctree.AppendPath(path, s.label), doctree.ChunkSubClause)
		if !ok {
			continue
		}
		ch.Metadata.ParentClauseIntro = parent
		out = append(out, ch)
	}
	return out
}

// recitals emits one chunk per WHEREAS paragraph.
func (c *sectionChunker) recitals(body doctree.Span, path []string) []doctree.LegalChunk {
	content := body.Slice(c.text)
	locs := whereasStart.FindAllStringIndex(content, -1)
	if len(locs) == 0 {
		return c.single(body, path, doctree.ChunkRecital)
	}

	var out []doctree.LegalChunk
	first := locs[0][0]
	if pre := body.Sub(0, first); !pre.Blank(c.text) {
		if ch, ok := c.newChunk(pre, path, doctree.ChunkRecital); ok && ch.TokenCount >= introFloor {
			out = append(out, ch)
		} else {
			// Too short to stand alone; fold into the first recital.
			first = 0
		}
	}
	for i, loc := range locs {
		start := loc[0]
		if i == 0 {
			start = first
		}
		end := len(content)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		label := fmt.Sprintf("Recital %d", i+1)
		if ch, ok := c.newChunk(body.Sub(start, end), doctree.AppendPath(path, label), doctree.ChunkRecital); ok {
			out = append(out, ch)
		}
	}
	return out
}

// boilerplate keeps signature blocks and cover letters as a single chunk,
// flagged so embedding can skip it.
func (c *sectionChunker) boilerplate(body doctree.Span, path []string) []doctree.LegalChunk {
	out := c.single(body, path, doctree.ChunkBoilerplate)
	for i := range out {
		out[i].Metadata.Boilerplate = true
	}
	return out
}

// exhibit keeps an exhibit whole when it fits, otherwise packs paragraphs.
func (c *sectionChunker) exhibit(body doctree.Span, path []string) []doctree.LegalChunk {
	out := c.single(body, path, doctree.ChunkExhibit)
	if len(out) == 0 || out[0].TokenCount <= c.opts.MaxTokens {
		return out
	}
	return c.pack(body, path, doctree.ChunkExhibit)
}

// pack accumulates paragraphs until the next one would exceed TargetTokens.
// A single paragraph larger than the target becomes its own chunk; the
// splitter deals with it later.
func (c *sectionChunker) pack(body doctree.Span, path []string, typ doctree.ChunkType) []doctree.LegalChunk {
	var (
		out       []doctree.LegalChunk
		cur       doctree.Span
		curTokens int
		open      bool
	)
	flush := func() {
		if !open {
			return
		}
		if ch, ok := c.newChunk(cur, path, typ); ok {
			out = append(out, ch)
		}
		open = false
	}

	for _, p := range paragraphSpans(c.text, body) {
		pt := c.counter.CountSync(p.Slice(c.text))
		if open && curTokens+pt > c.opts.TargetTokens {
			flush()
		}
		if !open {
			cur, curTokens, open = p, pt, true
			continue
		}
		cur = cur.Union(p)
		curTokens += pt
	}
	flush()
	return out
}

// paragraphSpans splits sp on blank lines, dropping empty paragraphs.
func paragraphSpans(text string, sp doctree.Span) []doctree.Span {
	content := sp.Slice(text)
	var out []doctree.Span
	prev := 0
	for _, loc := range paragraphBreak.FindAllStringIndex(content, -1) {
		if p := sp.Sub(prev, loc[0]).Trim(text); !p.Empty() {
			out = append(out, p)
		}
		prev = loc[1]
	}
	if p := sp.Sub(prev, len(content)).Trim(text); !p.Empty() {
		out = append(out, p)
	}
	return out
}

// truncateIntro collapses whitespace and cuts at a word boundary.
func truncateIntro(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= parentIntroChars {
		return s
	}
	cut, n := len(s), 0
	for i := range s {
		if n == parentIntroChars {
			cut = i
			break
		}
		n++
	}
	if sp := strings.LastIndexByte(s[:cut], ' '); sp > parentIntroChars/2 {
		cut = sp
	}
	return strings.TrimRight(s[:cut], " ,;:") + "..."
}
