package extract

import "strings"

// HeadingSystemPrompt restricts the model to headings; content is never
// requested so responses stay small.
const HeadingSystemPrompt = `You identify the section structure of legal agreements such as non-disclosure agreements.

Return ONLY a JSON object with this shape:
{"sections": [{"title": string, "level": integer, "type": string}], "parties": {"disclosing": string, "receiving": string}}

Rules:
- "title" must be the heading text exactly as it appears in the document, including any numbering ("Section 2. Term", "ARTICLE IV", "(a) Exceptions")
- "level" is 1 for top-level articles, parts and exhibits, 2 for sections, 3 for numbered sub-sections, 4 for lettered sub-items
- "type" is one of "heading", "definitions", "clause", "signature", "exhibit", "schedule", "amendment", "cover_letter", "other"
- List headings in document order
- Do NOT include section content, summaries or commentary
- Omit a party when it is not named; use "" for unknown values
- Return {"sections": [], "parties": {}} if the document has no headings`

// HeadingSchema is the JSON schema of HeadingResult, for providers that
// support constrained output.
const HeadingSchema = `{
  "type": "object",
  "properties": {
    "sections": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "title": {"type": "string"},
          "level": {"type": "integer", "minimum": 1, "maximum": 4},
          "type": {"type": "string", "enum": ["heading", "definitions", "clause", "signature", "exhibit", "schedule", "amendment", "cover_letter", "other"]}
        },
        "required": ["title", "level", "type"]
      }
    },
    "parties": {
      "type": "object",
      "properties": {
        "disclosing": {"type": "string"},
        "receiving": {"type": "string"}
      }
    }
  },
  "required": ["sections"]
}`

// BuildHeadingPrompt wraps the document prefix for the user turn.
func BuildHeadingPrompt(prefix string) string {
	var sb strings.Builder
	sb.WriteString("List the headings of the following document.\n\n---\n")
	sb.WriteString(prefix)
	sb.WriteString("\n---")
	return sb.String()
}
