package extract

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOllamaClient_ExtractHeadings(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "llama-test", req["model"])
		assert.NotNil(t, req["format"])

		content := `{"sections":[{"title":"ARTICLE I","level":1,"type":"heading"},{"title":"1.1 Scope","level":3,"type":"clause"}],"parties":{"receiving":"Beta LLC"}}`
		w.Header().Set("Content-Type", "application/x-ndjson")
		json.NewEncoder(w).Encode(map[string]any{
			"model":   "llama-test",
			"message": map[string]string{"role": "assistant", "content": content},
			"done":    true,
		})
	}))
	defer srv.Close()

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	c := NewOllamaClientWithHost(u, "llama-test")
	defer c.Close()

	res, err := c.ExtractHeadings(context.Background(), "ARTICLE I\n\n1.1 Scope")
	require.NoError(t, err)
	require.Len(t, res.Sections, 2)
	assert.Equal(t, "1.1 Scope", res.Sections[1].Title)
	assert.Equal(t, "Beta LLC", res.Parties.Receiving)
	assert.Equal(t, 1, c.LatencyStats().Snapshot().Count)
}

func TestOllamaClient_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"model not loaded"}`))
	}))
	defer srv.Close()

	u, _ := url.Parse(srv.URL)
	c := NewOllamaClientWithHost(u, "llama-test")
	_, err := c.ExtractHeadings(context.Background(), "text")
	require.Error(t, err)
	assert.Equal(t, 1, c.LatencyStats().Snapshot().Failures)
}
