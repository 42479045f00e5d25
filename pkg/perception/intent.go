package perception

import "strings"

// IntentFeatures are cheap lexical signals fed to routing decisions,
// notably resolving reasoning depth when the classifier says "auto".
type IntentFeatures struct {
	Length            int
	TokenCount        int
	Modality          Modality
	HasQuestion       bool
	HasImperative     bool
	HasTechnicalTerms bool
	Sentiment         SentimentIndicators
	ComplexityScore   float64
}

// SentimentIndicators count occurrences per polarity word list.
type SentimentIndicators struct {
	Positive int
	Negative int
	Urgent   int
}

var (
	imperativeWords = []string{"please", "can you", "help", "do", "make"}
	technicalWords  = []string{"algorithm", "function", "code", "data", "model"}
	positiveWords   = []string{"good", "great", "excellent", "amazing", "wonderful", "love", "like"}
	negativeWords   = []string{"bad", "terrible", "awful", "hate", "dislike", "wrong", "error"}
	urgentWords     = []string{"urgent", "asap", "immediately", "critical", "important"}
)

// ExtractIntentFeatures derives routing features from a percept.
func ExtractIntentFeatures(p *Percept) IntentFeatures {
	lower := strings.ToLower(p.RawText)

	return IntentFeatures{
		Length:            len(p.RawText),
		TokenCount:        len(p.Tokens),
		Modality:          p.Modality,
		HasQuestion:       strings.Contains(p.RawText, "?"),
		HasImperative:     containsAny(lower, imperativeWords),
		HasTechnicalTerms: containsAny(lower, technicalWords),
		Sentiment:         extractSentiment(lower),
		ComplexityScore:   ComplexityScore(p.RawText),
	}
}

// ComplexityScore combines average sentence length (normalized by 20
// words) with the share of long words (>6 chars), capped at 1.0.
func ComplexityScore(text string) float64 {
	sentences := strings.Split(text, ".")
	totalWords := 0
	for _, s := range sentences {
		totalWords += len(strings.Fields(s))
	}
	avgSentenceLength := float64(totalWords) / float64(max(1, len(sentences)))

	words := strings.Fields(text)
	complexWords := 0
	for _, w := range words {
		if len(w) > 6 {
			complexWords++
		}
	}
	complexityRatio := float64(complexWords) / float64(max(1, len(words)))

	score := avgSentenceLength/20.0 + complexityRatio
	return min(score, 1.0)
}

func extractSentiment(lower string) SentimentIndicators {
	return SentimentIndicators{
		Positive: countContained(lower, positiveWords),
		Negative: countContained(lower, negativeWords),
		Urgent:   countContained(lower, urgentWords),
	}
}

func containsAny(text string, words []string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}

func countContained(text string, words []string) int {
	n := 0
	for _, w := range words {
		if strings.Contains(text, w) {
			n++
		}
	}
	return n
}
