package parser

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

var whitespaceFixer = strings.NewReplacer(
	"\r\n", "\n",
	"\r", "\n",
	"\u00a0", " ", // no-break space
	"\u2028", "\n", // line separator
	"\u2029", "\n\n", // paragraph separator
	"\u200b", "", // zero-width space
	"\ufeff", "", // byte order mark
)

// Normalize returns text in NFC with Unix line endings and without
// invisible separators, trailing spaces or runs of more than one blank line.
// Offsets computed downstream refer to this form.
func Normalize(text string) string {
	text = norm.NFC.String(whitespaceFixer.Replace(text))

	lines := strings.Split(text, "\n")
	out := lines[:0]
	blank := 0
	for _, l := range lines {
		l = strings.TrimRight(l, " \t")
		if l == "" {
			blank++
			if blank > 1 {
				continue
			}
		} else {
			blank = 0
		}
		out = append(out, l)
	}
	return strings.Trim(strings.Join(out, "\n"), "\n")
}
