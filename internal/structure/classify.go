package structure

import (
	"regexp"

	"github.com/dgallion1/ndachunk/internal/doctree"
)

type typeRule struct {
	re  *regexp.Regexp
	typ doctree.SectionType
}

// typeRules are checked in order; the first match decides.
var typeRules = []typeRule{
	{regexp.MustCompile(`(?i)\bdefinitions?\b|\bdefined\s+terms\b|\binterpretation\b`), doctree.SectionDefinitions},
	{regexp.MustCompile(`(?i)\bschedule\b`), doctree.SectionSchedule},
	{regexp.MustCompile(`(?i)\b(?:exhibit|attachment|annex|appendix)\b`), doctree.SectionExhibit},
	{regexp.MustCompile(`(?i)\bsignatures?\b|\bin\s+witness\s+whereof\b|\bexecution\s+page\b|\bexecuted\s+by\b`), doctree.SectionSignature},
	{regexp.MustCompile(`(?i)\bamendments?\b|\bamended\b|\bmodifications?\b`), doctree.SectionAmendment},
	{regexp.MustCompile(`(?i)\bcover\s+letter\b|\btransmittal\b|^\s*dear\b|^\s*re\s*:`), doctree.SectionCoverLetter},
	{regexp.MustCompile(`(?i)\brecitals?\b|\bwhereas\b|\bbackground\b|\bpreamble\b|\bwitnesseth\b|\bw i t n e s s e t h\b|\bnow,?\s+therefore\b`), doctree.SectionHeading},
}

// Classify maps a heading title to a SectionType. Titles matching no keyword
// rule are headings at level 1 and clauses below that.
func Classify(title string, level int) doctree.SectionType {
	for _, r := range typeRules {
		if r.re.MatchString(title) {
			return r.typ
		}
	}
	if level <= 1 {
		return doctree.SectionHeading
	}
	return doctree.SectionClause
}

// parseSectionType accepts a type label from the fallback model, returning
// false for labels outside the closed set.
func parseSectionType(label string) (doctree.SectionType, bool) {
	t := doctree.SectionType(label)
	if t.Valid() {
		return t, true
	}
	switch label {
	case "definition":
		return doctree.SectionDefinitions, true
	case "recital", "recitals", "preamble":
		return doctree.SectionHeading, true
	case "signatures", "signature_block":
		return doctree.SectionSignature, true
	case "cover", "letter":
		return doctree.SectionCoverLetter, true
	}
	return "", false
}
