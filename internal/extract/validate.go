package extract

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

const maxHeadingTitle = 200

var codeBlockRe = regexp.MustCompile("(?s)^```(?:json)?\\s*(.*?)\\s*```$")

func stripCodeBlock(s string) string {
	s = strings.TrimSpace(s)
	if m := codeBlockRe.FindStringSubmatch(s); len(m) > 1 {
		return m[1]
	}
	return s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// ParseHeadingResult decodes a model response into a validated HeadingResult.
func ParseHeadingResult(raw string) (*HeadingResult, error) {
	text := stripCodeBlock(raw)
	var res HeadingResult
	if err := json.Unmarshal([]byte(text), &res); err != nil {
		return nil, fmt.Errorf("parse headings json: %w (raw: %s)", err, truncate(text, 200))
	}
	ValidateHeadings(&res)
	return &res, nil
}

// ValidateHeadings drops unusable entries and clamps levels into 1..4.
func ValidateHeadings(res *HeadingResult) {
	if res == nil {
		return
	}
	kept := res.Sections[:0]
	for _, h := range res.Sections {
		h.Title = strings.TrimSpace(h.Title)
		if h.Title == "" || len(h.Title) > maxHeadingTitle {
			continue
		}
		if h.Level < 1 {
			h.Level = 1
		}
		if h.Level > 4 {
			h.Level = 4
		}
		h.Type = strings.ToLower(strings.TrimSpace(h.Type))
		kept = append(kept, h)
	}
	res.Sections = kept
	res.Parties.Disclosing = strings.TrimSpace(res.Parties.Disclosing)
	res.Parties.Receiving = strings.TrimSpace(res.Parties.Receiving)
}
