package service

import (
	"log/slog"
	"strings"
	"unicode"
)

type Language string

const (
	LanguageEN Language = "EN"
	LanguageRU Language = "RU"
)

var alphabets = map[Language][]rune{
	LanguageEN: []rune("ABCDEFGHIJKLMNOPQRSTUVWXYZ"),
	LanguageRU: []rune("АБВГДЕЁЖЗИЙКЛМНОПРСТУФХЦЧШЩЪЫЬЭЮЯ"),
}

// language name keys used as a visualization parameter for skipped characters
var languageNameKeys = map[Language]string{
	LanguageEN: "alphabet_english",
	LanguageRU: "alphabet_russian",
}

// ParseLanguage accepts "EN" or "RU" in any case.
func ParseLanguage(s string) (Language, error) {
	lang := Language(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := alphabets[lang]; !ok {
		return "", ErrUnsupportedLanguage
	}
	return lang, nil
}

// Alphabet returns the upper-case letters of lang, or nil for an unknown language.
func Alphabet(lang Language) []rune {
	return alphabets[lang]
}

const (
	explanationAlphabetic    = "visualization_explanation_alphabetic_trans"
	explanationNonAlphabetic = "visualization_explanation_nonalphabetic_trans"
	operationEncrypt         = "visualization_operation_encrypt"
	operationDecrypt         = "visualization_operation_decrypt"
)

// VisualizationStep describes how one character of the input was processed.
type VisualizationStep struct {
	StepIndex        int                    `json:"stepIndex"`
	CharIndex        int                    `json:"charIndex"`
	OriginalChar     string                 `json:"originalChar"`
	ProcessedChar    string                 `json:"processedChar"`
	IntermediateText string                 `json:"intermediateText"`
	ExplanationKey   string                 `json:"explanationKey"`
	Params           map[string]interface{} `json:"params"`
	Skipped          bool                   `json:"skipped"`
}

type Visualization struct {
	Steps      []VisualizationStep `json:"steps"`
	ResultText string              `json:"resultText"`
}

// CipherService implements the Caesar shift over the supported alphabets.
// Letters keep their case; characters outside the alphabet pass through.
type CipherService struct {
	log *slog.Logger
}

func NewCipherService(log *slog.Logger) *CipherService {
	return &CipherService{log: log}
}

func (s *CipherService) Encrypt(text string, shift int, lang Language) (string, error) {
	return s.transform(text, shift, lang, true)
}

func (s *CipherService) Decrypt(text string, shift int, lang Language) (string, error) {
	return s.transform(text, shift, lang, false)
}

func (s *CipherService) transform(text string, shift int, lang Language, encrypt bool) (string, error) {
	alphabet, err := checkShift(shift, lang)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		out, _, _ := shiftRune(r, shift, alphabet, encrypt)
		b.WriteRune(out)
	}
	return b.String(), nil
}

// Visualize returns one step per character of text plus the final result
func (s *CipherService) Visualize(text string, shift int, lang Language, encrypt bool) (*Visualization, error) {
	alphabet, err := checkShift(shift, lang)
	if err != nil {
		return nil, err
	}

	operation := operationDecrypt
	if encrypt {
		operation = operationEncrypt
	}

	runes := []rune(text)
	intermediate := make([]rune, len(runes))
	copy(intermediate, runes)

	steps := make([]VisualizationStep, 0, len(runes))
	for i, r := range runes {
		out, from, to := shiftRune(r, shift, alphabet, encrypt)
		intermediate[i] = out

		step := VisualizationStep{
			StepIndex:        i,
			CharIndex:        i,
			OriginalChar:     string(r),
			ProcessedChar:    string(out),
			IntermediateText: string(intermediate),
		}
		if from < 0 {
			step.ExplanationKey = explanationNonAlphabetic
			step.Skipped = true
			step.Params = map[string]interface{}{
				"val0": string(r),
				"val1": languageNameKeys[lang],
			}
		} else {
			step.ExplanationKey = explanationAlphabetic
			step.Params = map[string]interface{}{
				"val0":              string(r),
				"val1":              from + 1,
				"val2_key":          operation,
				"val2_params_count": shift,
				"val3":              string(out),
				"val4":              to + 1,
			}
		}
		steps = append(steps, step)
	}

	s.log.Debug("visualization generated", "language", lang, "shift", shift, "encrypt", encrypt, "steps", len(steps))
	return &Visualization{Steps: steps, ResultText: string(intermediate)}, nil
}

func checkShift(shift int, lang Language) ([]rune, error) {
	alphabet, ok := alphabets[lang]
	if !ok {
		return nil, ErrUnsupportedLanguage
	}
	if shift < 1 || shift >= len(alphabet) {
		return nil, ErrInvalidShift
	}
	return alphabet, nil
}

// shiftRune shifts r within alphabet. It returns the output rune and the
// alphabet positions before and after; from is -1 when r is not a letter of
// the alphabet.
func shiftRune(r rune, shift int, alphabet []rune, encrypt bool) (out rune, from, to int) {
	from = indexRune(alphabet, unicode.ToUpper(r))
	// ToUpper folds some foreign letters into the alphabet (ı -> I, ſ -> S)
	if from < 0 || (r != alphabet[from] && r != unicode.ToLower(alphabet[from])) {
		return r, -1, -1
	}

	n := len(alphabet)
	if !encrypt {
		shift = -shift
	}
	to = ((from+shift)%n + n) % n

	out = alphabet[to]
	if unicode.IsLower(r) {
		out = unicode.ToLower(out)
	}
	return out, from, to
}

func indexRune(alphabet []rune, r rune) int {
	for i, a := range alphabet {
		if a == r {
			return i
		}
	}
	return -1
}
