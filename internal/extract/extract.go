// Package extract talks to generative models that return the heading list of
// a legal document when pattern matching finds none.
package extract

import "context"

// Heading is one entry of a fallback response. Only titles are requested;
// section content is sliced from the source text by the caller.
type Heading struct {
	Title string `json:"title"`
	Level int    `json:"level"`
	Type  string `json:"type"`
}

// PartyNames holds party names reported by the model.
type PartyNames struct {
	Disclosing string `json:"disclosing,omitempty"`
	Receiving  string `json:"receiving,omitempty"`
}

// HeadingResult is the strict response schema of a fallback call.
type HeadingResult struct {
	Sections []Heading  `json:"sections"`
	Parties  PartyNames `json:"parties"`
}

// HeadingExtractor returns the headings found in a document prefix.
type HeadingExtractor interface {
	ExtractHeadings(ctx context.Context, prefix string) (*HeadingResult, error)
}

// Provider is a HeadingExtractor backed by a named model with latency stats.
type Provider interface {
	HeadingExtractor
	Model() string
	LatencyStats() *LLMStats
	Close()
}
