package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/dgallion1/ndachunk/internal/chunker"
	"github.com/dgallion1/ndachunk/internal/doctree"
	"github.com/dgallion1/ndachunk/internal/pipeline"
	"github.com/dgallion1/ndachunk/internal/render"
)

type analyzeRequest struct {
	Text       string                     `json:"text"`
	DocumentID string                     `json:"documentId"`
	ForceLLM   bool                       `json:"forceLlm"`
	Structure  *doctree.DocumentStructure `json:"structure"`
	Options    *chunker.ChunkOptions      `json:"options"`
}

// handleAnalyze chunks a document synchronously.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if req.DocumentID == "" {
		req.DocumentID = pipeline.ContentHashHex([]byte(req.Text))[:16]
	}

	start := time.Now()
	res := s.chunker.Chunk(r.Context(), req.Text, chunker.Request{
		DocumentID: req.DocumentID,
		Structure:  req.Structure,
		ForceLLM:   req.ForceLLM,
		Options:    req.Options,
	})
	s.metrics.ObserveAnalysis(res.Structure.Source, res.Rechunked, res.Chunks, time.Since(start))

	writeJSON(w, http.StatusOK, map[string]any{
		"documentId": req.DocumentID,
		"structure":  res.Structure,
		"chunks":     res.Chunks,
		"report":     res.Report,
		"rechunked":  res.Rechunked,
	})
}

type renderRequest struct {
	Text      string                     `json:"text"`
	Structure *doctree.DocumentStructure `json:"structure"`
	Clauses   []render.ClauseRecord      `json:"clauses"`
	Chunks    []doctree.LegalChunk       `json:"chunks"`
}

// handleRender builds the markdown view of a document with clause overlays.
// Detection runs only when no structure is supplied.
func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	var req renderRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	var st doctree.DocumentStructure
	if req.Structure != nil {
		st, _ = chunker.ValidateStructure(req.Text, *req.Structure)
	} else {
		st, _ = s.chunker.DetectStructure(r.Context(), req.Text, false)
	}

	writeJSON(w, http.StatusOK, render.Render(req.Text, st.Sections, req.Clauses, req.Chunks))
}

// decodeJSON reads a size-limited JSON body, writing the error response
// itself on failure.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			jsonError(w, "request body too large", http.StatusRequestEntityTooLarge)
			return false
		}
		jsonError(w, "invalid json: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}
