package structure

import (
	"regexp"
	"strings"
)

// headingRule is one entry of the heading catalogue. The pattern is applied
// in multiline mode and must match at a line start; capture group 1 is the
// heading title. The heading ends where the match ends, so inline headings
// ("5. Term. This Agreement ...") leave the body text as section content.
type headingRule struct {
	name  string
	re    *regexp.Regexp
	level int
	// rank breaks ties when several rules match the same line; higher wins.
	rank int
	// levelOf overrides level from the captured title when set.
	levelOf func(title string) int
	accept  func(title, rest string) bool
}

const (
	rankCapsLine  = 1
	rankPreamble  = 2
	rankLettered  = 3
	rankDecimal   = 4
	rankNumbered  = 5
	rankSection   = 6
	rankTopLevel  = 7
	maxTitleWords = 10
	// A caption ending in a period with more words than this is prose.
	maxSentenceWords = 5
)

// headingCatalogue is ordered by rank, highest first. Matching never depends
// on this order; dedupeByLine picks the winner per line.
var headingCatalogue = []headingRule{
	{
		name:   "article",
		re:     regexp.MustCompile(`(?m)^[ \t]*((?:ARTICLE|Article|PART|Part)[ \t]+(?:[IVXLC]+|\d+)\b[^\n]{0,100})[ \t]*$`),
		level:  1,
		rank:   rankTopLevel,
		accept: shortTitle,
	},
	{
		name:   "exhibit",
		re:     regexp.MustCompile(`(?m)^[ \t]*((?:EXHIBIT|Exhibit|SCHEDULE|Schedule|ATTACHMENT|Attachment|ANNEX|Annex|APPENDIX|Appendix)[ \t]+[A-Z0-9]{1,3}\b[^\n]{0,80})[ \t]*$`),
		level:  1,
		rank:   rankTopLevel,
		accept: shortTitle,
	},
	{
		name:   "section",
		re:     regexp.MustCompile(`(?m)^[ \t]*((?:SECTION|Section)[ \t]+\d+(?:\.\d+)*\.?(?:[ \t]+[A-Z"“][^.\n]{0,80}\.?)?)`),
		level:  2,
		rank:   rankSection,
		accept: inlineTitle,
	},
	{
		name:   "numbered",
		re:     regexp.MustCompile(`(?m)^[ \t]*(\d{1,2}\.[ \t]+[A-Z"“][^.\n]{0,80}\.?)`),
		level:  2,
		rank:   rankNumbered,
		accept: inlineTitle,
	},
	{
		name:   "roman",
		re:     regexp.MustCompile(`(?m)^[ \t]*([IVX]{1,5}\.[ \t]+[A-Z"“][^.\n]{0,80}\.?)`),
		level:  2,
		rank:   rankNumbered,
		accept: inlineTitle,
	},
	{
		name:    "decimal",
		re:      regexp.MustCompile(`(?m)^[ \t]*(\d{1,2}(?:\.\d{1,3})+\.?[ \t]+[A-Z"“][^.\n]{0,80}\.?)`),
		level:   3,
		rank:    rankDecimal,
		levelOf: decimalLevel,
		accept:  inlineTitle,
	},
	{
		name:   "lettered",
		re:     regexp.MustCompile(`(?m)^[ \t]*(\([a-z]\)[ \t]+[A-Z][^.;:,\n]{0,60}\.?)[ \t]*$`),
		level:  4,
		rank:   rankLettered,
		accept: shortTitle,
	},
	{
		name:  "preamble",
		re:    regexp.MustCompile(`(?m)^[ \t]*(RECITALS|Recitals|BACKGROUND|Background|PREAMBLE|Preamble|WITNESSETH|W I T N E S S E T H|WHEREAS)[ \t]*:?[ \t]*$`),
		level: 2,
		rank:  rankPreamble,
	},
	{
		name:  "now-therefore",
		re:    regexp.MustCompile(`(?m)^[ \t]*(NOW,?[ \t]+(?:THEREFORE|Therefore|therefore))\b,?`),
		level: 2,
		rank:  rankPreamble,
	},
	{
		name:   "caps",
		re:     regexp.MustCompile(`(?m)^[ \t]*([A-Z][A-Z0-9 &,'’/\-]{2,80}?)[ \t]*:?[ \t]*$`),
		level:  1,
		rank:   rankCapsLine,
		accept: knownCapsHeading,
	},
}

// legalHeadingTerms is the closed vocabulary a bare ALL-CAPS line must use to
// count as a heading.
var legalHeadingTerms = []string{
	"DEFINITIONS", "DEFINED TERMS", "INTERPRETATION",
	"CONFIDENTIALITY", "CONFIDENTIAL INFORMATION", "OBLIGATIONS", "EXCLUSIONS",
	"EXCEPTIONS", "PERMITTED DISCLOSURE", "COMPELLED DISCLOSURE", "PURPOSE", "SCOPE",
	"TERM", "TERMINATION", "SURVIVAL", "RETURN OF MATERIALS", "RETURN OR DESTRUCTION",
	"REMEDIES", "INJUNCTIVE RELIEF", "EQUITABLE RELIEF", "NO LICENSE", "OWNERSHIP",
	"WARRANTIES", "REPRESENTATIONS", "DISCLAIMER", "INDEMNIFICATION", "LIMITATION OF LIABILITY",
	"NON-SOLICITATION", "NON-COMPETITION", "PUBLICITY", "DATA PROTECTION", "EXPORT CONTROL",
	"GOVERNING LAW", "JURISDICTION", "DISPUTE RESOLUTION", "ARBITRATION",
	"NOTICES", "ASSIGNMENT", "ENTIRE AGREEMENT", "SEVERABILITY", "WAIVER",
	"AMENDMENT", "AMENDMENTS", "COUNTERPARTS", "MISCELLANEOUS", "GENERAL PROVISIONS",
	"SIGNATURES", "SIGNATURE PAGE", "IN WITNESS WHEREOF", "EXECUTION",
	"RECITALS", "BACKGROUND", "EXHIBIT", "SCHEDULE", "ATTACHMENT", "ANNEX", "APPENDIX",
	"COVER LETTER",
}

var termBoundary = regexp.MustCompile(`[^A-Z0-9\-]+`)

func knownCapsHeading(title, rest string) bool {
	if strings.TrimSpace(rest) != "" {
		return false
	}
	words := strings.Fields(title)
	if len(words) == 0 || len(words) > 8 {
		return false
	}
	upper := strings.ToUpper(title)
	if upper != title {
		return false
	}
	// Document titles ("MUTUAL NON-DISCLOSURE AGREEMENT") are not sections.
	if strings.HasSuffix(strings.TrimRight(upper, " :"), "AGREEMENT") {
		return false
	}
	normalized := " " + strings.TrimSpace(termBoundary.ReplaceAllString(upper, " ")) + " "
	for _, term := range legalHeadingTerms {
		if strings.Contains(normalized, " "+term+" ") {
			return true
		}
	}
	return false
}

func shortTitle(title, rest string) bool {
	return len(strings.Fields(title)) <= maxTitleWords && !looksLikeSentence(title)
}

var definitionalPhrase = regexp.MustCompile(`["”]\s+(?:means|shall\s+mean|refers\s+to|is\s+defined\s+as)\b`)

// looksLikeSentence rejects full sentences that happen to sit alone on a
// numbered line, such as a one-line definition.
func looksLikeSentence(title string) bool {
	if definitionalPhrase.MatchString(title) {
		return true
	}
	return strings.HasSuffix(title, ".") && len(strings.Fields(title)) > maxSentenceWords
}

// inlineTitle accepts a heading whose remaining line text, if any, starts a
// new sentence, and whose title is short enough to be a caption.
func inlineTitle(title, rest string) bool {
	if len(strings.Fields(title)) > maxTitleWords || looksLikeSentence(title) {
		return false
	}
	rest = strings.TrimLeft(rest, " \t")
	if rest == "" || rest[0] == '\n' || rest[0] == '\r' {
		return true
	}
	if !strings.HasSuffix(title, ".") && !endsWithNumber(title) {
		return false
	}
	c := rest[0]
	return (c >= 'A' && c <= 'Z') || c == '(' || c == '"' || strings.HasPrefix(rest, "“")
}

func endsWithNumber(title string) bool {
	t := strings.TrimRight(title, ".")
	return t != "" && t[len(t)-1] >= '0' && t[len(t)-1] <= '9'
}

var decimalNumber = regexp.MustCompile(`^\d+(?:\.\d+)+`)

func decimalLevel(title string) int {
	num := decimalNumber.FindString(strings.TrimSpace(title))
	if num == "" {
		return 3
	}
	depth := strings.Count(num, ".") + 2
	if depth > 4 {
		depth = 4
	}
	return depth
}
