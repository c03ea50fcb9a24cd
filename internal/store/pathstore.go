package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// Pathstore writes analyses to the pathstore HTTP key-value API under
//
//	documents/{docID}/meta
//	documents/{docID}/structure
//	documents/{docID}/chunks/{index}
//	documents/by_hash/{hash}/{docID}
type Pathstore struct {
	baseURL       string
	apiKey        string
	httpClient    *http.Client
	maxConcurrent int
}

// NewPathstore returns a Pathstore sink. maxConcurrent bounds parallel chunk
// writes; values below 1 mean one at a time.
func NewPathstore(baseURL, apiKey string, maxConcurrent int) *Pathstore {
	return &Pathstore{
		baseURL:       strings.TrimRight(baseURL, "/"),
		apiKey:        apiKey,
		maxConcurrent: max(maxConcurrent, 1),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// nodeRequest is the body for PUT /kv/{key}.
type nodeRequest struct {
	Value      any     `json:"value"`
	MemoryType string  `json:"memory_type,omitempty"`
	Salience   float64 `json:"salience,omitempty"`
	Source     string  `json:"source,omitempty"`
}

type listedNode struct {
	Key   string `json:"key_path"`
	Value any    `json:"value"`
}

func docPrefix(docID string) string { return "documents/" + docID }

func (p *Pathstore) SaveAnalysis(ctx context.Context, a Analysis) error {
	prefix := docPrefix(a.DocID)
	source := "ndachunk:" + a.DocID

	// Earlier runs may have produced more chunks.
	if err := p.deleteNode(ctx, prefix+"/chunks", true); err != nil {
		return err
	}

	if err := p.putNode(ctx, prefix+"/structure", nodeRequest{
		Value:      a.Structure,
		MemoryType: "metacognitive",
		Salience:   0.5,
		Source:     source,
	}); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.maxConcurrent)
	for _, c := range a.Chunks {
		g.Go(func() error {
			return p.putNode(gctx, prefix+"/chunks/"+strconv.Itoa(c.Index), nodeRequest{
				Value:      c,
				MemoryType: "semantic",
				Salience:   0.3,
				Source:     source,
			})
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if err := p.putNode(ctx, prefix+"/meta", nodeRequest{
		Value: map[string]any{
			"title":        a.Title,
			"filename":     a.Filename,
			"content_hash": a.ContentHash,
			"total_chunks": len(a.Chunks),
			"source":       a.Structure.Source,
			"created_at":   a.CreatedAt.Format(time.RFC3339),
		},
		MemoryType: "metacognitive",
		Salience:   0.5,
		Source:     source,
	}); err != nil {
		return err
	}

	if a.ContentHash == "" {
		return nil
	}
	return p.putNode(ctx, "documents/by_hash/"+a.ContentHash+"/"+a.DocID, nodeRequest{
		Value:      map[string]any{"filename": a.Filename},
		MemoryType: "metacognitive",
		Salience:   0.1,
		Source:     source,
	})
}

func (p *Pathstore) FindByHash(ctx context.Context, contentHash string) (string, bool, error) {
	nodes, err := p.listChildren(ctx, "documents/by_hash/"+contentHash, 1)
	if err != nil {
		return "", false, err
	}
	if len(nodes) == 0 {
		return "", false, nil
	}
	// Keys come back dotted or slashed depending on the server version.
	parts := strings.FieldsFunc(nodes[0].Key, func(r rune) bool { return r == '/' || r == '.' })
	if len(parts) == 0 {
		return "", false, nil
	}
	return parts[len(parts)-1], true, nil
}

func (p *Pathstore) putNode(ctx context.Context, key string, req nodeRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal node: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPut, p.baseURL+"/kv/"+key, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	p.authorize(httpReq)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("put node: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return statusError("put node "+key, resp)
	}
	return nil
}

func (p *Pathstore) deleteNode(ctx context.Context, key string, recursive bool) error {
	u := p.baseURL + "/kv/" + key
	if recursive {
		u += "?children=true"
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodDelete, u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	p.authorize(httpReq)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("delete node: %w", err)
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent, http.StatusNotFound:
		return nil
	}
	return statusError("delete node "+key, resp)
}

func (p *Pathstore) listChildren(ctx context.Context, key string, limit int) ([]listedNode, error) {
	u := p.baseURL + "/kv/" + key + "/*"
	if limit > 0 {
		u += "?limit=" + url.QueryEscape(strconv.Itoa(limit))
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	p.authorize(httpReq)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("list children: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, statusError("list children "+key, resp)
	}

	var result struct {
		Nodes []listedNode `json:"nodes"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode children: %w", err)
	}
	return result.Nodes, nil
}

func (p *Pathstore) authorize(r *http.Request) {
	if p.apiKey != "" {
		r.Header.Set("Authorization", "Bearer "+p.apiKey)
	}
}

// statusError reads a bounded error body. 429 and 5xx are retryable.
func statusError(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	err := fmt.Errorf("%s: status %d: %s", op, resp.StatusCode, string(body))
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return &RetryableError{StatusCode: resp.StatusCode, Err: err}
	}
	return err
}

// Close releases idle connections.
func (p *Pathstore) Close() {
	p.httpClient.CloseIdleConnections()
}
