package chunker

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
	"golang.org/x/sync/singleflight"
)

// DefaultEncoding matches the vocabulary of the target embedding model.
const DefaultEncoding = "cl100k_base"

// charsPerToken is tuned low for legal English (long defined terms, section
// numbers, punctuation) so the estimate overshoots real counts.
const charsPerToken = 3.2

// Encoder turns text into subword token IDs.
type Encoder interface {
	Encode(text string, allowedSpecial, disallowedSpecial []string) []int
}

// LoadFunc loads an encoder by encoding name.
type LoadFunc func(encoding string) (Encoder, error)

func loadTiktoken(encoding string) (Encoder, error) {
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, err
	}
	return enc, nil
}

type encoderBox struct{ enc Encoder }

// Counter counts tokens. CountSync is exact once the encoder is loaded and a
// heuristic estimate before that. The encoder is loaded at most once per
// Counter; concurrent loads share a single in-flight attempt.
type Counter struct {
	encoding string
	load     LoadFunc
	enc      atomic.Pointer[encoderBox]
	group    singleflight.Group
}

// NewCounter returns a Counter backed by tiktoken.
func NewCounter(encoding string) *Counter {
	return NewCounterWithLoader(encoding, loadTiktoken)
}

// NewCounterWithLoader returns a Counter with a custom encoder loader.
func NewCounterWithLoader(encoding string, load LoadFunc) *Counter {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	return &Counter{encoding: encoding, load: load}
}

// HeuristicCounter never loads an encoder.
func HeuristicCounter() *Counter {
	return &Counter{encoding: DefaultEncoding}
}

// Init loads the encoder if it is not loaded yet. Safe for concurrent use;
// a failed load can be retried by a later call.
func (c *Counter) Init(ctx context.Context) error {
	if c.enc.Load() != nil {
		return nil
	}
	if c.load == nil {
		return fmt.Errorf("tokenizer %s: no loader configured", c.encoding)
	}
	ch := c.group.DoChan(c.encoding, func() (any, error) {
		if box := c.enc.Load(); box != nil {
			return box, nil
		}
		enc, err := c.load(c.encoding)
		if err != nil {
			return nil, fmt.Errorf("load tokenizer %s: %w", c.encoding, err)
		}
		box := &encoderBox{enc: enc}
		c.enc.CompareAndSwap(nil, box)
		return box, nil
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Ready reports whether exact counting is available.
func (c *Counter) Ready() bool {
	return c.enc.Load() != nil
}

// CountSync returns the exact count when the encoder is loaded, otherwise the
// character heuristic.
func (c *Counter) CountSync(text string) int {
	if text == "" {
		return 0
	}
	if box := c.enc.Load(); box != nil {
		return len(box.enc.Encode(text, nil, nil))
	}
	return EstimateTokens(text)
}

// CountExact loads the encoder if needed and returns the exact count.
func (c *Counter) CountExact(ctx context.Context, text string) (int, error) {
	if err := c.Init(ctx); err != nil {
		return 0, err
	}
	return c.CountSync(text), nil
}

// EstimateTokens approximates a token count from the character count.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	n := utf8.RuneCountInString(text)
	tokens := int(math.Ceil(float64(n) / charsPerToken))
	if tokens < 1 {
		tokens = 1
	}
	return tokens
}
