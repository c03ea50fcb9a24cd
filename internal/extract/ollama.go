package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
	"github.com/ollama/ollama/envconfig"
)

// OllamaClient extracts headings with a local Ollama model.
type OllamaClient struct {
	client     *api.Client
	httpClient *http.Client
	model      string
	stats      *LLMStats
}

// NewOllamaClient connects to the host named by OLLAMA_HOST.
func NewOllamaClient(model string) *OllamaClient {
	return NewOllamaClientWithHost(envconfig.Host(), model)
}

// NewOllamaClientWithHost connects to an explicit Ollama base URL.
func NewOllamaClientWithHost(host *url.URL, model string) *OllamaClient {
	hc := &http.Client{Timeout: 120 * time.Second}
	return &OllamaClient{
		client:     api.NewClient(host, hc),
		httpClient: hc,
		model:      model,
		stats:      NewLLMStats(time.Hour),
	}
}

// ExtractHeadings asks the model for the heading list, constraining output to
// the HeadingResult schema.
func (o *OllamaClient) ExtractHeadings(ctx context.Context, prefix string) (res *HeadingResult, err error) {
	start := time.Now()
	defer func() {
		if err != nil {
			o.stats.RecordFailure(time.Since(start).Milliseconds())
			return
		}
		o.stats.Record(time.Since(start).Milliseconds())
	}()

	stream := false
	req := &api.ChatRequest{
		Model: o.model,
		Messages: []api.Message{
			{Role: "system", Content: HeadingSystemPrompt},
			{Role: "user", Content: BuildHeadingPrompt(prefix)},
		},
		Format: json.RawMessage(HeadingSchema),
		Stream: &stream,
		Options: map[string]any{
			"temperature": 0,
		},
	}

	var out strings.Builder
	err = o.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		out.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ollama chat: %w", err)
	}
	if strings.TrimSpace(out.String()) == "" {
		return nil, fmt.Errorf("empty response from ollama")
	}
	return ParseHeadingResult(out.String())
}

func (o *OllamaClient) Model() string { return o.model }

func (o *OllamaClient) LatencyStats() *LLMStats { return o.stats }

// Close releases idle connections.
func (o *OllamaClient) Close() {
	o.httpClient.CloseIdleConnections()
}
