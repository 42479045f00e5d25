package perception

import "strings"

// Features is the encoded view of a percept. Exactly one of Text/Code
// is set for single-modality inputs; multimodal sets the dominant one
// plus CrossModal.
type Features struct {
	Modality   Modality
	Text       *TextFeatures
	Code       *CodeFeatures
	CrossModal *CrossModalFeatures
}

// TextFeatures capture semantic, syntactic, linguistic, and pragmatic
// properties of natural-language input.
type TextFeatures struct {
	TopicScores  map[string]float64
	Abstractness float64
	Concreteness float64
	Syntactic    SyntacticFeatures
	Linguistic   LinguisticFeatures
	Contextual   ContextualFeatures
}

type SyntacticFeatures struct {
	AvgSentenceLength float64
	IsQuestion        bool
	QuestionWordCount int
	IsImperative      bool
	SentenceCount     int
}

type LinguisticFeatures struct {
	VocabularyRichness float64
	AvgWordLength      float64
	TechnicalTermCount int
	TotalWords         int
	UniqueWords        int
}

type ContextualFeatures struct {
	PolitenessScore  int
	UncertaintyScore int
	ConfidenceScore  int
	EmotionalTone    string
}

// CodeFeatures capture language, structure, and complexity signals for
// code-dominant input.
type CodeFeatures struct {
	Language   LanguageFeatures
	Structure  StructureFeatures
	Complexity ComplexityFeatures
}

type LanguageFeatures struct {
	Detected   string
	Scores     map[string]float64
	Confidence float64
}

type StructureFeatures struct {
	TotalLines     int
	NonEmptyLines  int
	CommentLines   int
	CommentRatio   float64
	AvgIndentation float64
	MaxIndentation int
}

type ComplexityFeatures struct {
	ControlFlowCount int
	FunctionCount    int
	VariableCount    int
	Score            float64
}

// CrossModalFeatures describe mixed text/code content.
type CrossModalFeatures struct {
	HasCode        bool
	HasText        bool
	IsMixedContent bool
	ContentBalance float64
}

// Encoder turns a percept into features for its modality.
type Encoder interface {
	Encode(p *Percept) Features
}

// EncoderFor selects the encoder for a modality. Image and audio fall
// back to text encoding of their descriptions.
func EncoderFor(modality Modality) Encoder {
	switch modality {
	case ModalityCode:
		return codeEncoder{}
	case ModalityMultimodal:
		return multimodalEncoder{}
	default:
		return textEncoder{}
	}
}

// EncodePercept encodes with the percept's own modality.
func EncodePercept(p *Percept) Features {
	return EncoderFor(p.Modality).Encode(p)
}

// -----------------------------------------------------------------
// Text encoder

var topicIndicators = map[string][]string{
	"technology": {"code", "programming", "software", "algorithm", "data", "ai", "machine learning"},
	"science":    {"research", "experiment", "hypothesis", "theory", "analysis", "study"},
	"business":   {"strategy", "marketing", "sales", "revenue", "profit", "management"},
	"personal":   {"feel", "think", "believe", "experience", "personal", "myself"},
	"creative":   {"design", "art", "creative", "imagine", "inspire", "beautiful"},
}

var (
	questionWords     = []string{"what", "how", "why", "when", "where", "who", "which"}
	abstractWords     = []string{"concept", "idea", "theory", "principle", "philosophy", "abstract", "general"}
	concreteWords     = []string{"table", "chair", "car", "house", "book", "computer", "specific"}
	politenessMarkers = []string{"please", "thank you", "thanks", "appreciate", "sorry", "excuse me"}
	uncertaintyMarks  = []string{"maybe", "perhaps", "might", "could", "possibly", "unclear", "not sure"}
	confidenceMarks   = []string{"definitely", "certainly", "sure", "absolutely", "clearly", "obviously"}
	tonePositive      = []string{"good", "great", "excellent", "amazing", "wonderful", "love", "like", "happy"}
	toneNegative      = []string{"bad", "terrible", "awful", "hate", "dislike", "sad", "angry", "frustrated"}
	toneNeutral       = []string{"okay", "fine", "normal", "average", "standard"}
)

type textEncoder struct{}

func (textEncoder) Encode(p *Percept) Features {
	lower := strings.ToLower(p.RawText)

	topicScores := make(map[string]float64, len(topicIndicators))
	for topic, keywords := range topicIndicators {
		hits := 0
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				hits++
			}
		}
		topicScores[topic] = float64(hits) / float64(len(keywords))
	}

	abstractness := calcAbstractness(lower)

	return Features{
		Modality: ModalityText,
		Text: &TextFeatures{
			TopicScores:  topicScores,
			Abstractness: abstractness,
			Concreteness: 1.0 - abstractness,
			Syntactic:    encodeSyntactic(p.RawText, lower),
			Linguistic:   encodeLinguistic(p.RawText, lower),
			Contextual:   encodeContextual(lower),
		},
	}
}

func encodeSyntactic(text, lower string) SyntacticFeatures {
	sentences := strings.Split(text, ".")
	totalWords := 0
	for _, s := range sentences {
		totalWords += len(strings.Fields(s))
	}

	questionCount := 0
	for _, w := range questionWords {
		if strings.Contains(lower, w) {
			questionCount++
		}
	}

	return SyntacticFeatures{
		AvgSentenceLength: float64(totalWords) / float64(max(1, len(sentences))),
		IsQuestion:        strings.Contains(text, "?"),
		QuestionWordCount: questionCount,
		IsImperative:      containsAny(lower, imperativeWords),
		SentenceCount:     len(sentences),
	}
}

func encodeLinguistic(text, lower string) LinguisticFeatures {
	words := strings.Fields(text)

	unique := make(map[string]struct{}, len(words))
	totalLen := 0
	for _, w := range words {
		unique[strings.ToLower(w)] = struct{}{}
		totalLen += len(w)
	}

	technicalTerms := []string{"algorithm", "function", "variable", "parameter", "method", "class", "object"}

	return LinguisticFeatures{
		VocabularyRichness: float64(len(unique)) / float64(max(1, len(words))),
		AvgWordLength:      float64(totalLen) / float64(max(1, len(words))),
		TechnicalTermCount: countContained(lower, technicalTerms),
		TotalWords:         len(words),
		UniqueWords:        len(unique),
	}
}

func encodeContextual(lower string) ContextualFeatures {
	return ContextualFeatures{
		PolitenessScore:  countContained(lower, politenessMarkers),
		UncertaintyScore: countContained(lower, uncertaintyMarks),
		ConfidenceScore:  countContained(lower, confidenceMarks),
		EmotionalTone:    assessTone(lower),
	}
}

func calcAbstractness(lower string) float64 {
	abstract := countContained(lower, abstractWords)
	concrete := countContained(lower, concreteWords)
	total := abstract + concrete
	return float64(abstract) / float64(max(1, total))
}

func assessTone(lower string) string {
	pos := countContained(lower, tonePositive)
	neg := countContained(lower, toneNegative)
	neu := countContained(lower, toneNeutral)

	switch {
	case pos > neg && pos > neu:
		return "positive"
	case neg > pos && neg > neu:
		return "negative"
	default:
		return "neutral"
	}
}

// -----------------------------------------------------------------
// Code encoder

var languageIndicators = map[string][]string{
	"python":     {"def ", "import ", "class ", "if __name__", "print(", "lambda "},
	"javascript": {"function ", "const ", "let ", "var ", "=>", "console.log"},
	"java":       {"public class", "public static void", "System.out.println", "private "},
	"cpp":        {"#include", "int main()", "std::", "namespace ", "class "},
	"sql":        {"SELECT ", "FROM ", "WHERE ", "INSERT ", "UPDATE ", "DELETE "},
}

type codeEncoder struct{}

func (codeEncoder) Encode(p *Percept) Features {
	return Features{
		Modality: ModalityCode,
		Code: &CodeFeatures{
			Language:   detectLanguage(p.RawText),
			Structure:  encodeStructure(p.RawText),
			Complexity: encodeComplexity(p.RawText),
		},
	}
}

func detectLanguage(text string) LanguageFeatures {
	scores := make(map[string]float64, len(languageIndicators))
	detected := "unknown"
	best := 0.0

	for lang, indicators := range languageIndicators {
		hits := 0
		for _, ind := range indicators {
			if strings.Contains(text, ind) {
				hits++
			}
		}
		score := float64(hits) / float64(len(indicators))
		scores[lang] = score
		if score > best {
			best = score
			detected = lang
		}
	}

	return LanguageFeatures{
		Detected:   detected,
		Scores:     scores,
		Confidence: best,
	}
}

func encodeStructure(text string) StructureFeatures {
	lines := strings.Split(text, "\n")

	nonEmpty := 0
	comments := 0
	totalIndent := 0
	maxIndent := 0
	indented := 0

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		nonEmpty++
		if strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, "//") {
			comments++
		}
		indent := len(line) - len(strings.TrimLeft(line, " \t"))
		totalIndent += indent
		indented++
		if indent > maxIndent {
			maxIndent = indent
		}
	}

	avgIndent := 0.0
	if indented > 0 {
		avgIndent = float64(totalIndent) / float64(indented)
	}

	return StructureFeatures{
		TotalLines:     len(lines),
		NonEmptyLines:  nonEmpty,
		CommentLines:   comments,
		CommentRatio:   float64(comments) / float64(max(1, nonEmpty)),
		AvgIndentation: avgIndent,
		MaxIndentation: maxIndent,
	}
}

func encodeComplexity(text string) ComplexityFeatures {
	controlFlow := []string{"if", "elif", "else", "for", "while", "try", "except", "case", "switch"}
	functionPatterns := []string{"def ", "function ", "public ", "private ", "protected "}
	variablePatterns := []string{"=", "let ", "const ", "var ", "int ", "string ", "float "}

	cf := countContained(text, controlFlow)
	fn := countContained(text, functionPatterns)
	vars := countContained(text, variablePatterns)

	lines := len(strings.Split(text, "\n"))

	return ComplexityFeatures{
		ControlFlowCount: cf,
		FunctionCount:    fn,
		VariableCount:    vars,
		Score:            float64(cf+fn) / float64(max(1, lines)),
	}
}

// -----------------------------------------------------------------
// Multimodal encoder

type multimodalEncoder struct{}

func (multimodalEncoder) Encode(p *Percept) Features {
	var features Features
	if p.Modality == ModalityCode {
		features = codeEncoder{}.Encode(p)
	} else {
		features = textEncoder{}.Encode(p)
	}

	features.Modality = ModalityMultimodal
	features.CrossModal = encodeCrossModal(p.RawText)
	return features
}

func encodeCrossModal(text string) *CrossModalFeatures {
	hasCode := strings.Contains(text, "```") || strings.Contains(text, "`")
	hasText := len(strings.Fields(text)) > 10

	return &CrossModalFeatures{
		HasCode:        hasCode,
		HasText:        hasText,
		IsMixedContent: hasCode && hasText,
		ContentBalance: contentBalance(text),
	}
}

func contentBalance(text string) float64 {
	codeBlocks := strings.Count(text, "```")
	inlineCode := strings.Count(text, "`") - codeBlocks*2
	if inlineCode < 0 {
		inlineCode = 0
	}
	words := len(strings.Fields(text))
	if words == 0 {
		return 0
	}
	return min(float64(codeBlocks+inlineCode)/float64(words), 1.0)
}
