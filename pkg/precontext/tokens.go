package precontext

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

var (
	encodingCache = make(map[string]*tiktoken.Tiktoken)
	encodingMu    sync.RWMutex
)

// TokenBudget truncates prompt sections by token count instead of
// bytes. When no encoding is available (offline first run), it falls
// back to the rough four-characters-per-token estimate.
type TokenBudget struct {
	encoding *tiktoken.Tiktoken
	model    string
}

// NewTokenBudget builds a budget for the model, falling back to
// cl100k_base for unknown models.
func NewTokenBudget(model string) *TokenBudget {
	encodingMu.RLock()
	cached, ok := encodingCache[model]
	encodingMu.RUnlock()

	if ok {
		return &TokenBudget{encoding: cached, model: model}
	}

	encoding, err := tiktoken.EncodingForModel(model)
	if err != nil {
		encoding, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return &TokenBudget{model: model}
		}
	}

	encodingMu.Lock()
	encodingCache[model] = encoding
	encodingMu.Unlock()

	return &TokenBudget{encoding: encoding, model: model}
}

// Count returns the token count for text.
func (b *TokenBudget) Count(text string) int {
	if b == nil || b.encoding == nil {
		return len(text) / 4
	}
	return len(b.encoding.Encode(text, nil, nil))
}

// Truncate cuts text to at most maxTokens tokens, decoding back so the
// result stays valid UTF-8 on token boundaries.
func (b *TokenBudget) Truncate(text string, maxTokens int) string {
	if maxTokens <= 0 {
		return ""
	}

	if b == nil || b.encoding == nil {
		limit := maxTokens * 4
		if len(text) <= limit {
			return text
		}
		return text[:limit]
	}

	tokens := b.encoding.Encode(text, nil, nil)
	if len(tokens) <= maxTokens {
		return text
	}
	return b.encoding.Decode(tokens[:maxTokens])
}

// FitLines keeps whole lines from the end (most recent last) within the
// budget, for working-memory and episodic sections. When not even the
// newest line fits, it is kept truncated rather than dropped.
func (b *TokenBudget) FitLines(lines []string, maxTokens int) []string {
	if len(lines) == 0 || maxTokens <= 0 {
		return nil
	}

	fitted := make([]string, 0, len(lines))
	used := 0
	for i := len(lines) - 1; i >= 0; i-- {
		n := b.Count(lines[i])
		if used+n > maxTokens {
			break
		}
		fitted = append([]string{lines[i]}, fitted...)
		used += n
	}
	if len(fitted) == 0 {
		return []string{b.Truncate(lines[len(lines)-1], maxTokens)}
	}
	return fitted
}

// FitTop keeps whole lines from the front within the budget, for ranked
// sections where the best hits come first and the lowest are dropped.
// When not even the top hit fits, it is kept truncated.
func (b *TokenBudget) FitTop(lines []string, maxTokens int) []string {
	if len(lines) == 0 || maxTokens <= 0 {
		return nil
	}

	fitted := make([]string, 0, len(lines))
	used := 0
	for _, line := range lines {
		n := b.Count(line)
		if used+n > maxTokens {
			break
		}
		fitted = append(fitted, line)
		used += n
	}
	if len(fitted) == 0 {
		return []string{b.Truncate(lines[0], maxTokens)}
	}
	return fitted
}

// Model returns the model this budget was built for.
func (b *TokenBudget) Model() string {
	return b.model
}
