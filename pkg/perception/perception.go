// Package perception normalizes raw input into a Percept: detected
// modality, tokens, an embedding, and intent features. It is the entry
// stage of the pipeline; everything downstream consumes Percepts, never
// raw strings.
package perception

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cortexkit/cortex/pkg/embedder"
)

// EmbeddingDim is the fallback embedding width. The hash embedder pads
// to this; real embedders keep their native dimension.
const EmbeddingDim = 768

// Modality classifies the dominant content type of an input.
type Modality string

const (
	ModalityText       Modality = "text"
	ModalityImage      Modality = "image"
	ModalityAudio      Modality = "audio"
	ModalityCode       Modality = "code"
	ModalityMultimodal Modality = "multimodal"
)

// Percept is the normalized form of one raw input. Immutable once
// built; downstream stages only read it.
type Percept struct {
	ID           string
	Modality     Modality
	RawText      string
	Tokens       []string
	Embedding    []float32
	SessionID    string
	UserID       string
	PrivacyFlags map[string]bool
	CreatedAt    time.Time
}

// Metadata carries per-request identity and privacy hints into Process.
type Metadata struct {
	SessionID    string
	UserID       string
	PrivacyFlags map[string]bool
}

// Detection order is code > image > audio; text is the fallback.
var (
	codePatterns = []*regexp.Regexp{
		regexp.MustCompile("(?is)```.*?```"),
		regexp.MustCompile("`[^`]+`"),
		regexp.MustCompile(`(?i)def\s+\w+`),
		regexp.MustCompile(`(?i)function\s+\w+`),
		regexp.MustCompile(`(?i)class\s+\w+`),
		regexp.MustCompile(`(?i)import\s+\w+`),
		regexp.MustCompile(`(?i)#include\s*<`),
	}

	imagePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\.(jpg|jpeg|png|gif|bmp|svg|webp)`),
		regexp.MustCompile(`(?i)image|picture|photo|screenshot`),
		regexp.MustCompile(`(?i)<img\s+src=`),
	}

	audioPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\.(mp3|wav|flac|aac|ogg|m4a)`),
		regexp.MustCompile(`(?i)audio|sound|music|voice|speech`),
		regexp.MustCompile(`(?i)record|recording|listen`),
	}

	tokenPattern = regexp.MustCompile(`\w+|[^\w\s]`)
)

// Adapter turns raw input into Percepts. The embedder is optional; when
// absent or failing, a deterministic hash embedding keeps the pipeline
// offline-capable.
type Adapter struct {
	embedder embedder.Embedder
	fallback *embedder.Hash
}

func NewAdapter(e embedder.Embedder) *Adapter {
	return &Adapter{
		embedder: e,
		fallback: embedder.NewHash(EmbeddingDim),
	}
}

// Process builds a Percept from raw input. Empty input is rejected so
// the caller can surface it as an input error rather than running the
// pipeline on nothing.
func (a *Adapter) Process(ctx context.Context, rawInput string, meta Metadata) (*Percept, error) {
	if strings.TrimSpace(rawInput) == "" {
		return nil, fmt.Errorf("empty input")
	}

	modality := DetectModality(rawInput)
	tokens := Tokenize(rawInput, modality)

	embedding, err := a.embed(ctx, rawInput)
	if err != nil {
		return nil, err
	}

	flags := meta.PrivacyFlags
	if flags == nil {
		flags = map[string]bool{}
	}

	return &Percept{
		ID:           uuid.NewString(),
		Modality:     modality,
		RawText:      rawInput,
		Tokens:       tokens,
		Embedding:    embedding,
		SessionID:    meta.SessionID,
		UserID:       meta.UserID,
		PrivacyFlags: flags,
		CreatedAt:    time.Now().UTC(),
	}, nil
}

func (a *Adapter) embed(ctx context.Context, text string) ([]float32, error) {
	if a.embedder != nil {
		embedding, err := a.embedder.Embed(ctx, text)
		if err == nil {
			return embedding, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		slog.Warn("Embedder failed, falling back to hash embedding", "error", err)
	}
	return a.fallback.Embed(ctx, text)
}

// DetectModality picks the dominant modality. Code beats image beats
// audio; anything else is text.
func DetectModality(text string) Modality {
	for _, p := range codePatterns {
		if p.MatchString(text) {
			return ModalityCode
		}
	}
	for _, p := range imagePatterns {
		if p.MatchString(text) {
			return ModalityImage
		}
	}
	for _, p := range audioPatterns {
		if p.MatchString(text) {
			return ModalityAudio
		}
	}
	return ModalityText
}

// Tokenize splits into word and punctuation tokens. Text is lowercased;
// code keeps its case since identifiers are case-sensitive.
func Tokenize(text string, modality Modality) []string {
	if modality != ModalityCode {
		text = strings.ToLower(text)
	}
	return tokenPattern.FindAllString(text, -1)
}
