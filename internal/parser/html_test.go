package parser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTMLParser_BlocksAndTitle(t *testing.T) {
	input := `<html><head><title>Acme NDA</title><style>p{}</style></head>
<body>
<nav>Home | About</nav>
<h1>NON-DISCLOSURE AGREEMENT</h1>
<h2>1. Definitions</h2>
<p>"Confidential Information"   means
all information.</p>
<ul><li>first item</li><li>second<br>line</li></ul>
<script>var x = 1;</script>
<footer>copyright</footer>
</body></html>`
	p := &HTMLParser{}
	doc, err := p.Parse(strings.NewReader(input), "nda.html")
	require.NoError(t, err)
	assert.Equal(t, "Acme NDA", doc.Title)
	assert.Equal(t, "NON-DISCLOSURE AGREEMENT\n\n1. Definitions\n\n\"Confidential Information\" means\nall information.\n\nfirst item\n\nsecond\nline", doc.Text)
	for _, banned := range []string{"Home", "var x", "copyright", "p{}"} {
		assert.NotContains(t, doc.Text, banned)
	}
}

func TestHTMLParser_BareDivText(t *testing.T) {
	p := &HTMLParser{}
	doc, err := p.Parse(strings.NewReader("<div>Loose text</div>"), "frag.htm")
	require.NoError(t, err)
	assert.Equal(t, "frag", doc.Title)
	assert.Equal(t, "Loose text", doc.Text)
}
