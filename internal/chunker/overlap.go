package chunker

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/dgallion1/ndachunk/internal/doctree"
	"github.com/dgallion1/ndachunk/internal/xref"
)

// chunkNamespace scopes chunk IDs. IDs depend only on document and index.
var chunkNamespace = uuid.NewSHA1(uuid.NameSpaceOID, []byte("ndachunk.legal-chunk"))

// ChunkID returns the positional ID of chunk index in document docID.
func ChunkID(docID string, index int) string {
	return uuid.NewSHA1(chunkNamespace, []byte(fmt.Sprintf("%s:%d", docID, index))).String()
}

// InjectOverlap prepends the tail of each chunk's predecessor. The tail is
// whole words, at least overlapTokens when available, at most 1.5 times
// that, and never more than half the predecessor. Positions are unchanged.
func InjectOverlap(chunks []doctree.LegalChunk, overlapTokens int, counter *Counter) []doctree.LegalChunk {
	if overlapTokens <= 0 || len(chunks) < 2 {
		return chunks
	}
	out := make([]doctree.LegalChunk, len(chunks))
	copy(out, chunks)
	for i := 1; i < len(chunks); i++ {
		tail := overlapTail(chunks[i-1].Content, overlapTokens, counter)
		if tail == "" {
			continue
		}
		out[i].Content = tail + "\n\n" + chunks[i].Content
		out[i].TokenCount = counter.CountSync(out[i].Content)
		out[i].Metadata.IsOverlap = true
		out[i].Metadata.OverlapTokens = counter.CountSync(tail)
	}
	return out
}

func overlapTail(prev string, overlapTokens int, counter *Counter) string {
	words := strings.Fields(prev)
	limit := len(words) / 2
	if limit == 0 {
		return ""
	}
	ceiling := overlapTokens + overlapTokens/2
	tail := ""
	for k := 1; k <= limit; k++ {
		cand := strings.Join(words[len(words)-k:], " ")
		n := counter.CountSync(cand)
		if n > ceiling {
			break
		}
		tail = cand
		if n >= overlapTokens {
			break
		}
	}
	return tail
}

// annotate records cross-references and provenance on every chunk.
func annotate(chunks []doctree.LegalChunk, source doctree.Source, isOCR bool) {
	for i := range chunks {
		refs := xref.Extract(chunks[i].Content)
		if refs == nil {
			refs = []string{}
		}
		chunks[i].Metadata.References = refs
		chunks[i].Metadata.StructureSource = source
		chunks[i].Metadata.IsOCR = chunks[i].Metadata.IsOCR || isOCR
	}
}

// reindex assigns final sequential indexes and positional IDs.
func reindex(chunks []doctree.LegalChunk, docID string) {
	for i := range chunks {
		chunks[i].Index = i
		chunks[i].ID = ChunkID(docID, i)
	}
}
