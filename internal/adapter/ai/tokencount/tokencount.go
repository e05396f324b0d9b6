// Package tokencount estimates token usage for stage outputs that do not
// report their own counts. It uses tiktoken-go for models with a known
// encoding and falls back to the length/4 heuristic; heuristic estimates are
// flagged so the trace can label them as approximations and budget
// accounting downstream is not silently polluted.
package tokencount

import (
	"sync"

	"log/slog"

	tiktoken "github.com/pkoukk/tiktoken-go"
)

// fallbackEncoding covers GPT-4/3.5-era models and most modern providers.
const fallbackEncoding = "cl100k_base"

// Counter provides thread-safe token estimation with cached encodings.
type Counter struct {
	mu            sync.RWMutex
	encodingCache map[string]*tiktoken.Tiktoken
}

// NewCounter creates a token counter.
func NewCounter() *Counter {
	return &Counter{encodingCache: make(map[string]*tiktoken.Tiktoken)}
}

// Estimate returns the token count for text under the given model.
// approximate is true when no encoding was available and the length/4
// heuristic was used instead.
func (c *Counter) Estimate(text, model string) (count int, approximate bool) {
	if text == "" {
		return 0, false
	}
	enc, err := c.encodingFor(model)
	if err != nil {
		// Rough heuristic: ~4 characters per token for English-like text.
		return len(text) / 4, true
	}
	return len(enc.Encode(text, nil, nil)), false
}

func (c *Counter) encodingFor(model string) (*tiktoken.Tiktoken, error) {
	c.mu.RLock()
	if enc, ok := c.encodingCache[model]; ok {
		c.mu.RUnlock()
		return enc, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if enc, ok := c.encodingCache[model]; ok {
		return enc, nil
	}
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		slog.Debug("falling back to cl100k_base encoding",
			slog.String("model", model),
			slog.Any("error", err))
		enc, err = tiktoken.GetEncoding(fallbackEncoding)
		if err != nil {
			return nil, err
		}
	}
	c.encodingCache[model] = enc
	return enc, nil
}
