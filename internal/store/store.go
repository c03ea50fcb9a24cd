// Package store persists analysis results: the detected structure and the
// final chunk list of each document. The core never calls it; the ingest
// pipeline hands finished results to a Sink.
package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dgallion1/ndachunk/internal/doctree"
)

// Analysis is everything persisted for one document.
type Analysis struct {
	DocID       string                    `json:"doc_id"`
	Title       string                    `json:"title"`
	Filename    string                    `json:"filename,omitempty"`
	ContentHash string                    `json:"content_hash"`
	Structure   doctree.DocumentStructure `json:"structure"`
	Chunks      []doctree.LegalChunk      `json:"chunks"`
	CreatedAt   time.Time                 `json:"created_at"`
}

// Sink is an outbound persistence target. SaveAnalysis replaces any earlier
// result stored for the same DocID.
type Sink interface {
	SaveAnalysis(ctx context.Context, a Analysis) error
	// FindByHash returns the document already stored with this content
	// hash, if any.
	FindByHash(ctx context.Context, contentHash string) (docID string, found bool, err error)
	Close()
}

// RetryableError is returned for transient backend failures (HTTP 429/5xx).
type RetryableError struct {
	StatusCode int
	Err        error
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable (status %d): %v", e.StatusCode, e.Err)
}

func (e *RetryableError) Unwrap() error { return e.Err }

// Memory keeps analyses in process. It backs tests and single-node runs that
// only need results for the life of the process.
type Memory struct {
	mu     sync.RWMutex
	docs   map[string]Analysis
	byHash map[string]string
}

func NewMemory() *Memory {
	return &Memory{
		docs:   make(map[string]Analysis),
		byHash: make(map[string]string),
	}
}

func (m *Memory) SaveAnalysis(ctx context.Context, a Analysis) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.docs[a.DocID]; ok && old.ContentHash != a.ContentHash {
		delete(m.byHash, old.ContentHash)
	}
	a.Chunks = append([]doctree.LegalChunk(nil), a.Chunks...)
	m.docs[a.DocID] = a
	if a.ContentHash != "" {
		m.byHash[a.ContentHash] = a.DocID
	}
	return nil
}

func (m *Memory) FindByHash(_ context.Context, contentHash string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byHash[contentHash]
	return id, ok, nil
}

// Get returns a stored analysis.
func (m *Memory) Get(docID string) (Analysis, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.docs[docID]
	return a, ok
}

func (m *Memory) Close() {}
