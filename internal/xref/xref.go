// Package xref finds internal document references in legal text.
package xref

import (
	"regexp"
	"sort"
	"strings"
)

const num = `\d+(?:\.\d+)*(?:\([a-z0-9]{1,4}\))*`

// numList matches a number followed by further numbers joined with commas,
// "and", "or", "through" or "to".
const numList = num + `(?:\s*(?:,\s*(?:and\s+|or\s+)?|and\s+|or\s+|through\s+|to\s+)` + num + `)*`

var numRe = regexp.MustCompile(`(?i)` + num)

// citation captures the reference text in group 1. A list citation may hold
// several numbers.
type citation struct {
	re   *regexp.Regexp
	list bool
}

var patterns = []citation{
	// Section 3.1(a), Sections 4 and 5, § 7.2, §§ 8 and 9
	{re: regexp.MustCompile(`(?i)(?:\bsections?|§+)\s*(` + numList + `)`), list: true},
	// Article IV, Article 12
	{re: regexp.MustCompile(`(?i)\barticles?\s+([IVXLC]+|\d+)\b`)},
	// paragraph 4, clauses 2.3 and 2.4
	{re: regexp.MustCompile(`(?i)\b(?:paragraphs?|clauses?)\s+(` + numList + `)`), list: true},
	// as defined in Section 2, pursuant to Section 9.1
	{re: regexp.MustCompile(`(?i)\b(?:as\s+defined\s+in|pursuant\s+to|subject\s+to|in\s+accordance\s+with|set\s+forth\s+in)\s+(?:section|clause|paragraph)\s+(\d+(?:\.\d+)*)`)},
	// Exhibit A, Schedule 2, Attachment B, Annex 1
	{re: regexp.MustCompile(`\b(?:Exhibit|Schedule|Attachment|Annex|Appendix|EXHIBIT|SCHEDULE|ATTACHMENT|ANNEX|APPENDIX)\s+([A-Z]|\d+)\b`)},
}

// Extract returns the sorted, deduplicated reference tokens found in text,
// e.g. "3.1", "IV", "A".
func Extract(text string) []string {
	if text == "" {
		return nil
	}
	seen := make(map[string]bool)
	for _, c := range patterns {
		for _, m := range c.re.FindAllStringSubmatch(text, -1) {
			if len(m) < 2 {
				continue
			}
			refs := []string{m[1]}
			if c.list {
				refs = numRe.FindAllString(m[1], -1)
			}
			for _, ref := range refs {
				ref = strings.TrimSpace(ref)
				if ref == "" {
					continue
				}
				if isRoman(ref) {
					ref = strings.ToUpper(ref)
				}
				seen[ref] = true
			}
		}
	}
	if len(seen) == 0 {
		return nil
	}
	refs := make([]string, 0, len(seen))
	for r := range seen {
		refs = append(refs, r)
	}
	sort.Strings(refs)
	return refs
}

func isRoman(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range strings.ToUpper(s) {
		if !strings.ContainsRune("IVXLC", r) {
			return false
		}
	}
	return true
}

// Union merges reference lists, keeping the result sorted and unique.
func Union(a, b []string) []string {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(a)+len(b))
	var out []string
	for _, list := range [][]string{a, b} {
		for _, r := range list {
			if !seen[r] {
				seen[r] = true
				out = append(out, r)
			}
		}
	}
	sort.Strings(out)
	return out
}
