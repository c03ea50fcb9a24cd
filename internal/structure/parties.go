package structure

import (
	"regexp"
	"strings"

	"github.com/dgallion1/ndachunk/internal/doctree"
)

const (
	disclosingRole = `(?:Disclosing\s+Party|Discloser|Disclosor)`
	receivingRole  = `(?:Receiving\s+Party|Recipient)`
	partyName      = `((?:[A-Z][\w&.'’\-]*,?[ \t]+){0,6}[A-Z][\w&.'’\-]*)`
)

// partyPatterns returns the naming conventions for one role, in priority order.
func partyPatterns(role string) []*regexp.Regexp {
	return []*regexp.Regexp{
		// Acme Corp. (the "Disclosing Party")
		regexp.MustCompile(partyName + `,?[ \t]*\((?:the[ \t]+|hereinafter(?:[ \t]+referred[ \t]+to[ \t]+as)?[ \t]+(?:the[ \t]+)?)?["“]?` + role + `["”]?\)`),
		// Disclosing Party: Acme Corp.
		regexp.MustCompile(`(?im)^[ \t]*` + role + `[ \t]*:[ \t]*([^\n]{2,100})$`),
		// "Disclosing Party" means Acme Corp.
		regexp.MustCompile(`(?i)["“]` + role + `["”][ \t]+(?:means|shall\s+mean|refers\s+to)[ \t]+([^,;\n]{2,100})`),
	}
}

var (
	disclosingPatterns = partyPatterns(disclosingRole)
	receivingPatterns  = partyPatterns(receivingRole)
)

// ExtractParties finds the disclosing and receiving party names. For each
// role the first pattern that matches wins.
func ExtractParties(text string) doctree.Parties {
	return doctree.Parties{
		Disclosing: firstParty(text, disclosingPatterns),
		Receiving:  firstParty(text, receivingPatterns),
	}
}

func firstParty(text string, patterns []*regexp.Regexp) string {
	for _, re := range patterns {
		m := re.FindStringSubmatch(text)
		if len(m) < 2 {
			continue
		}
		name := cleanPartyName(m[1])
		if name != "" {
			return name
		}
	}
	return ""
}

var leadingArticles = regexp.MustCompile(`^(?i:by\s+and\s+between|between|and|by)\s+`)

func cleanPartyName(s string) string {
	s = strings.TrimSpace(s)
	s = leadingArticles.ReplaceAllString(s, "")
	s = strings.Trim(s, ` ,;:"“”`)
	s = strings.TrimSuffix(s, " and")
	return strings.TrimSpace(s)
}

var (
	signatureMarker = regexp.MustCompile(`(?im)\bIN\s+WITNESS\s+WHEREOF\b|^[ \t]*By:[ \t]*_{2,}|^[ \t]*Signature[ \t]*:|^[ \t]*/s/`)
	exhibitMarker   = regexp.MustCompile(`(?m)^[ \t]*(?:EXHIBIT|Exhibit|SCHEDULE|Schedule|ATTACHMENT|Attachment|ANNEX|Annex|APPENDIX|Appendix)[ \t]+[A-Z0-9]{1,3}\b`)
	redactionMarker = regexp.MustCompile(`(?i)\[\s*redacted\s*\]|\(\s*redacted\s*\)|\[\*{2,}\]|█+|\*{3,}[ \t]*redacted`)
)

// Flags reports the structural markers in text.
type Flags struct {
	HasExhibits       bool
	HasSignatureBlock bool
	HasRedactedText   bool
}

// DetectFlags scans text for signature, exhibit and redaction markers.
func DetectFlags(text string) Flags {
	return Flags{
		HasExhibits:       exhibitMarker.MatchString(text),
		HasSignatureBlock: signatureMarker.MatchString(text),
		HasRedactedText:   redactionMarker.MatchString(text),
	}
}
