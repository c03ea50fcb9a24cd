package chunker

// ChunkOptions controls chunk sizing. Token counts use the Counter the
// chunker was built with.
type ChunkOptions struct {
	MaxTokens      int `json:"maxTokens"`
	TargetTokens   int `json:"targetTokens"`
	OverlapTokens  int `json:"overlapTokens"`
	MinChunkTokens int `json:"minChunkTokens"`
	// IsOCR marks chunks produced from OCR text.
	IsOCR bool `json:"isOcr"`
}

// DefaultOptions returns the sizes used for the embedding model.
func DefaultOptions() ChunkOptions {
	return ChunkOptions{
		MaxTokens:      512,
		TargetTokens:   400,
		OverlapTokens:  50,
		MinChunkTokens: 50,
	}
}

// withDefaults fills unset or inconsistent fields.
func (o ChunkOptions) withDefaults() ChunkOptions {
	d := DefaultOptions()
	if o.MaxTokens <= 0 {
		o.MaxTokens = d.MaxTokens
	}
	if o.TargetTokens <= 0 || o.TargetTokens > o.MaxTokens {
		o.TargetTokens = min(d.TargetTokens, o.MaxTokens)
	}
	if o.OverlapTokens < 0 {
		o.OverlapTokens = 0
	}
	if o.MinChunkTokens < 0 {
		o.MinChunkTokens = 0
	}
	return o
}

// introFloor is the minimum size of a preamble or intro chunk. Smaller intros
// are kept only as parent context on their sub-clauses.
const introFloor = 10

// parentIntroChars bounds ParentClauseIntro.
const parentIntroChars = 200

// QualityConfig holds the thresholds deciding when a regex structure is poor
// enough to retry with the generative fallback.
type QualityConfig struct {
	CharsPerPage     int
	MinChunksPerPage float64
	MinSections      int
	MinCoverage      float64
}

// DefaultQuality returns the default quality thresholds.
func DefaultQuality() QualityConfig {
	return QualityConfig{
		CharsPerPage:     3000,
		MinChunksPerPage: 2.0,
		MinSections:      3,
		MinCoverage:      0.8,
	}
}

func (q QualityConfig) withDefaults() QualityConfig {
	d := DefaultQuality()
	if q.CharsPerPage <= 0 {
		q.CharsPerPage = d.CharsPerPage
	}
	if q.MinChunksPerPage <= 0 {
		q.MinChunksPerPage = d.MinChunksPerPage
	}
	if q.MinSections <= 0 {
		q.MinSections = d.MinSections
	}
	if q.MinCoverage <= 0 {
		q.MinCoverage = d.MinCoverage
	}
	return q
}

// estimatedPages is at least one.
func (q QualityConfig) estimatedPages(textLen int) float64 {
	pages := float64(textLen) / float64(q.CharsPerPage)
	if pages < 1 {
		return 1
	}
	return pages
}

// chunkRatio is chunks per estimated page.
func (q QualityConfig) chunkRatio(chunks, textLen int) float64 {
	return float64(chunks) / q.estimatedPages(textLen)
}
