package structure

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dgallion1/ndachunk/internal/doctree"
	"github.com/dgallion1/ndachunk/internal/extract"
)

// detectWithFallback asks the fallback model for headings and rebuilds
// sections against the full text.
func (d *Detector) detectWithFallback(ctx context.Context, text string) (doctree.DocumentStructure, error) {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	start := time.Now()
	res, err := d.fallback.ExtractHeadings(ctx, truncatePrefix(text, d.maxPrefix))
	if d.observe != nil {
		d.observe(time.Since(start), err)
	}
	if err != nil {
		return doctree.DocumentStructure{}, fmt.Errorf("extract headings: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return doctree.DocumentStructure{}, fmt.Errorf("fallback abandoned: %w", err)
	}

	hs := d.locateHeadings(text, res.Sections)
	return doctree.DocumentStructure{
		Sections: buildSections(text, hs),
		Parties: doctree.Parties{
			Disclosing: strings.TrimSpace(res.Parties.Disclosing),
			Receiving:  strings.TrimSpace(res.Parties.Receiving),
		},
		Source: doctree.SourceLLM,
	}, nil
}

// locateHeadings finds each returned title in order, searching forward from
// the previous heading. Titles that cannot be found (OCR drift, paraphrase)
// are placed at the cursor with zero width, so no source text is taken as
// heading text. The cursor never moves backward.
func (d *Detector) locateHeadings(text string, found []extract.Heading) []heading {
	hs := make([]heading, 0, len(found))
	cursor := 0
	for _, f := range found {
		title := strings.TrimSpace(f.Title)
		if title == "" {
			continue
		}
		level := min(max(f.Level, 1), 4)
		typ, ok := parseSectionType(f.Type)
		if !ok {
			typ = Classify(title, level)
		}

		start, end, located := findFrom(text, title, cursor)
		if !located {
			start = min(cursor, len(text))
			end = start
			d.log.Warn("fallback heading not found in text, estimating position",
				"title", title, "estimated_offset", start)
		} else if rest := restOfLine(text, end); strings.TrimSpace(rest) == "" {
			end += len(rest)
		}
		if start < cursor {
			start = cursor
		}
		if end < start {
			end = start
		}
		cursor = end

		hs = append(hs, heading{title: title, level: level, start: start, end: end, typ: typ})
	}
	return hs
}

// findFrom locates title in text at or after from, exactly first and then
// ignoring case and runs of whitespace.
func findFrom(text, title string, from int) (int, int, bool) {
	if from >= len(text) {
		return 0, 0, false
	}
	if i := strings.Index(text[from:], title); i >= 0 {
		return from + i, from + i + len(title), true
	}
	words := strings.Fields(title)
	if len(words) == 0 {
		return 0, 0, false
	}
	hay := text[from:]
	for off := 0; off < len(hay); {
		i := indexFold(hay[off:], words[0])
		if i < 0 {
			break
		}
		pos := off + i
		if end, ok := matchWords(hay, pos, words); ok {
			return from + pos, from + end, true
		}
		off = pos + len(words[0])
	}
	return 0, 0, false
}

func matchWords(hay string, pos int, words []string) (int, bool) {
	for wi, w := range words {
		if wi > 0 {
			j := pos
			for j < len(hay) && (hay[j] == ' ' || hay[j] == '\t' || hay[j] == '\n' || hay[j] == '\r') {
				j++
			}
			if j == pos {
				return 0, false
			}
			pos = j
		}
		if len(hay)-pos < len(w) || !strings.EqualFold(hay[pos:pos+len(w)], w) {
			return 0, false
		}
		pos += len(w)
	}
	return pos, true
}

func indexFold(s, sub string) int {
	n := len(sub)
	for i := 0; i+n <= len(s); i++ {
		if strings.EqualFold(s[i:i+n], sub) {
			return i
		}
	}
	return -1
}

func truncatePrefix(text string, n int) string {
	if n <= 0 || len(text) <= n {
		return text
	}
	for n > 0 && !utf8.RuneStart(text[n]) {
		n--
	}
	return text[:n]
}
