package parser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkdownParser_HeadingsBecomeLines(t *testing.T) {
	input := `# Mutual NDA

Intro text.

## 1. Definitions

"Confidential Information" means **all** information.

### 1.1 Scope

Scope content.
`
	p := &MarkdownParser{}
	doc, err := p.Parse(strings.NewReader(input), "doc.md")
	require.NoError(t, err)
	assert.Equal(t, "Mutual NDA", doc.Title)
	assert.Equal(t, "Mutual NDA\n\nIntro text.\n\n1. Definitions\n\n\"Confidential Information\" means all information.\n\n1.1 Scope\n\nScope content.", doc.Text)
	assert.NotContains(t, doc.Text, "#")
	assert.NotContains(t, doc.Text, "**")
}

func TestMarkdownParser_NoHeadingUsesFilename(t *testing.T) {
	p := &MarkdownParser{}
	doc, err := p.Parse(strings.NewReader("Just a paragraph."), "plain-notes.md")
	require.NoError(t, err)
	assert.Equal(t, "plain-notes", doc.Title)
	assert.Equal(t, "Just a paragraph.", doc.Text)
}

func TestMarkdownParser_ListItemsSeparate(t *testing.T) {
	input := "The Recipient shall:\n\n- protect the information;\n- limit access.\n\n---\n\nEnd."
	p := &MarkdownParser{}
	doc, err := p.Parse(strings.NewReader(input), "list.md")
	require.NoError(t, err)
	assert.Equal(t, "The Recipient shall:\n\nprotect the information;\n\nlimit access.\n\nEnd.", doc.Text)
}

func TestMarkdownParser_CodeBlockText(t *testing.T) {
	input := "Before.\n\n```\nverbatim line\n```\n\nAfter."
	p := &MarkdownParser{}
	doc, err := p.Parse(strings.NewReader(input), "code.md")
	require.NoError(t, err)
	assert.Contains(t, doc.Text, "verbatim line")
}
