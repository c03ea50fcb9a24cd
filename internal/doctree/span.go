package doctree

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ErrInvalidSpan is returned for negative or inverted spans.
var ErrInvalidSpan = errors.New("invalid span")

// Span is a half-open byte range [Start, End) over a text.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// NewSpan validates 0 <= start <= end.
func NewSpan(start, end int) (Span, error) {
	if start < 0 || end < start {
		return Span{}, fmt.Errorf("%w: [%d, %d)", ErrInvalidSpan, start, end)
	}
	return Span{Start: start, End: end}, nil
}

// ClampSpan forces start and end into [0, limit] with start <= end.
func ClampSpan(start, end, limit int) Span {
	if limit < 0 {
		limit = 0
	}
	start = clamp(start, 0, limit)
	end = clamp(end, start, limit)
	return Span{Start: start, End: end}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func (s Span) Len() int { return s.End - s.Start }

func (s Span) Empty() bool { return s.End <= s.Start }

// Contains reports whether pos lies in [Start, End).
func (s Span) Contains(pos int) bool { return pos >= s.Start && pos < s.End }

// Shift moves both ends by delta.
func (s Span) Shift(delta int) Span {
	return Span{Start: s.Start + delta, End: s.End + delta}
}

// Union returns the smallest span covering both.
func (s Span) Union(o Span) Span {
	return Span{Start: min(s.Start, o.Start), End: max(s.End, o.End)}
}

// Overlaps reports whether the two spans share at least one byte.
func (s Span) Overlaps(o Span) bool {
	return s.Start < o.End && o.Start < s.End
}

// Slice returns text[Start:End], clamped to the text and adjusted so that
// neither end splits a UTF-8 sequence.
func (s Span) Slice(text string) string {
	c := ClampSpan(s.Start, s.End, len(text))
	return text[alignRune(text, c.Start):alignRune(text, c.End)]
}

// Trim shrinks the span past leading and trailing whitespace in text.
func (s Span) Trim(text string) Span {
	c := ClampSpan(s.Start, s.End, len(text))
	start, end := c.Start, c.End
	for start < end {
		r, size := utf8.DecodeRuneInString(text[start:end])
		if !unicode.IsSpace(r) {
			break
		}
		start += size
	}
	for end > start {
		r, size := utf8.DecodeLastRuneInString(text[start:end])
		if !unicode.IsSpace(r) {
			break
		}
		end -= size
	}
	return Span{Start: start, End: end}
}

// Sub returns the span of a sub-range given relative to s.Start.
func (s Span) Sub(relStart, relEnd int) Span {
	c := ClampSpan(relStart, relEnd, s.Len())
	return c.Shift(s.Start)
}

// Blank reports whether the span covers only whitespace in text.
func (s Span) Blank(text string) bool {
	return strings.TrimSpace(s.Slice(text)) == ""
}

func alignRune(text string, i int) int {
	for i > 0 && i < len(text) && !utf8.RuneStart(text[i]) {
		i--
	}
	return i
}
