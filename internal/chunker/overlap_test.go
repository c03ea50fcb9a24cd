package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/ndachunk/internal/doctree"
)

func TestInjectOverlap(t *testing.T) {
	counter := wordCounter(t)
	first := doctree.LegalChunk{Content: strings.TrimSpace(strings.Repeat("alpha ", 40)), StartPosition: 0, EndPosition: 239}
	second := doctree.LegalChunk{Content: "Beta clause text.", StartPosition: 241, EndPosition: 258}

	out := InjectOverlap([]doctree.LegalChunk{first, second}, 10, counter)
	require.Len(t, out, 2)
	assert.Equal(t, first, out[0])

	got := out[1]
	assert.True(t, got.Metadata.IsOverlap)
	assert.Equal(t, 10, got.Metadata.OverlapTokens)
	assert.Equal(t, strings.TrimSpace(strings.Repeat("alpha ", 10))+"\n\nBeta clause text.", got.Content)
	assert.Equal(t, 13, got.TokenCount)
	assert.Equal(t, 241, got.StartPosition)
	assert.Equal(t, 258, got.EndPosition)

	// Input is not modified.
	assert.Equal(t, "Beta clause text.", second.Content)
}

func TestInjectOverlap_CappedAtHalfOfPrevious(t *testing.T) {
	counter := wordCounter(t)
	prev := doctree.LegalChunk{Content: "one two three four"}
	next := doctree.LegalChunk{Content: "next"}

	out := InjectOverlap([]doctree.LegalChunk{prev, next}, 50, counter)
	assert.Equal(t, "three four\n\nnext", out[1].Content)
	assert.Equal(t, 2, out[1].Metadata.OverlapTokens)
}

func TestInjectOverlap_Disabled(t *testing.T) {
	in := []doctree.LegalChunk{{Content: "a b c d"}, {Content: "e"}}
	out := InjectOverlap(in, 0, HeuristicCounter())
	assert.Equal(t, in, out)
}

func TestChunkID_Positional(t *testing.T) {
	assert.Equal(t, ChunkID("doc-1", 3), ChunkID("doc-1", 3))
	assert.NotEqual(t, ChunkID("doc-1", 3), ChunkID("doc-1", 4))
	assert.NotEqual(t, ChunkID("doc-1", 3), ChunkID("doc-2", 3))
	assert.Len(t, ChunkID("doc-1", 0), 36)
}
