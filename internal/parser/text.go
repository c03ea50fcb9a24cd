package parser

import (
	"fmt"
	"io"
	"unicode/utf8"
)

// TextParser handles plain text files.
type TextParser struct{}

func (p *TextParser) Parse(r io.Reader, filename string) (*Document, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if !utf8.Valid(src) {
		return nil, fmt.Errorf("%s: text is not valid UTF-8", filename)
	}
	return &Document{
		Title: titleFromFilename(filename),
		Text:  Normalize(string(src)),
	}, nil
}
