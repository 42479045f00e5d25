package memory

import (
	"regexp"
	"strings"
)

// PII patterns scrubbed from chunk text before it reaches the vector
// index. Raw text keeps the originals (optionally encrypted).
var (
	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
	phonePattern = regexp.MustCompile(`(?:\+?\d{1,2}[-.\s]?)?\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}`)
)

// RedactPII replaces email addresses and phone numbers with placeholder
// tokens.
func RedactPII(text string) string {
	text = emailPattern.ReplaceAllString(text, "[email]")
	text = phonePattern.ReplaceAllString(text, "[phone]")
	return text
}

// ChunkText splits text into chunks of at most maxSize characters,
// breaking on word boundaries. Words longer than maxSize are hard-split.
// Always returns at least one chunk for non-empty text.
func ChunkText(text string, maxSize int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if maxSize <= 0 {
		maxSize = 800
	}
	if len(text) <= maxSize {
		return []string{text}
	}

	var chunks []string
	var current strings.Builder
	for _, word := range strings.Fields(text) {
		// Hard-split words that cannot fit in any chunk.
		for len(word) > maxSize {
			if current.Len() > 0 {
				chunks = append(chunks, current.String())
				current.Reset()
			}
			chunks = append(chunks, word[:maxSize])
			word = word[maxSize:]
		}
		if word == "" {
			continue
		}
		need := len(word)
		if current.Len() > 0 {
			need++
		}
		if current.Len()+need > maxSize {
			chunks = append(chunks, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteByte(' ')
		}
		current.WriteString(word)
	}
	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}
