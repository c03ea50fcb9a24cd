// Package parser turns uploaded documents into normalized plain text for the
// structure detector. Headings are kept as standalone lines so the detector
// can find them again; no markup survives.
package parser

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// Document is the plain-text result of parsing an upload.
type Document struct {
	Title string
	Text  string
}

// Parser converts raw document bytes into a Document.
type Parser interface {
	Parse(r io.Reader, filename string) (*Document, error)
}

// SupportedExtensions lists file extensions this service can handle.
var SupportedExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
	".html":     true,
	".htm":      true,
	".docx":     true,
}

// ForFile returns the appropriate parser for a filename.
func ForFile(filename string) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".txt":
		return &TextParser{}, nil
	case ".md", ".markdown":
		return &MarkdownParser{}, nil
	case ".html", ".htm":
		return &HTMLParser{}, nil
	case ".docx":
		return &DOCXParser{}, nil
	default:
		return nil, fmt.Errorf("unsupported file extension: %s", ext)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedExtensions[ext]
}

func titleFromFilename(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// blocks accumulates paragraphs separated by blank lines.
type blocks struct {
	b strings.Builder
}

func (bl *blocks) add(s string) {
	s = strings.TrimSpace(s)
	if s == "" {
		return
	}
	if bl.b.Len() > 0 {
		bl.b.WriteString("\n\n")
	}
	bl.b.WriteString(s)
}

func (bl *blocks) String() string { return bl.b.String() }
