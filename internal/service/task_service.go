package service

import (
	"bufio"
	"context"
	"embed"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"cryptolearn-backend/internal/cache"
	"cryptolearn-backend/internal/metrics"

	"github.com/google/uuid"
)

//go:embed words/*.txt
var wordFiles embed.FS

var wordFileNames = map[Language]string{
	LanguageEN: "words/en.txt",
	LanguageRU: "words/ru.txt",
}

const (
	minTextLength   = 1
	maxTextLength   = 100
	minRandomSuffix = 3
)

type TaskType string

const (
	TaskFindKey     TaskType = "FIND_KEY"
	TaskEncryptText TaskType = "ENCRYPT_TEXT"
	TaskDecryptText TaskType = "DECRYPT_TEXT"
)

// ParseTaskType accepts FIND_KEY style names in any case as well as
// find-key style path segments.
func ParseTaskType(s string) (TaskType, error) {
	t := TaskType(strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(s)), "-", "_"))
	switch t {
	case TaskFindKey, TaskEncryptText, TaskDecryptText:
		return t, nil
	default:
		return "", ErrUnknownTaskType
	}
}

type Difficulty string

const (
	DifficultyEasy   Difficulty = "EASY"
	DifficultyMedium Difficulty = "MEDIUM"
	DifficultyHard   Difficulty = "HARD"
	DifficultyCustom Difficulty = "CUSTOM"
)

func ParseDifficulty(s string) (Difficulty, error) {
	d := Difficulty(strings.ToUpper(strings.TrimSpace(s)))
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard, DifficultyCustom:
		return d, nil
	default:
		return "", ErrUnknownDifficulty
	}
}

// GenerateRequest selects the alphabet and the ranges a task is drawn from.
// The Custom* bounds are only read for DifficultyCustom.
type GenerateRequest struct {
	Language            Language
	Difficulty          Difficulty
	CustomMinTextLength *int
	CustomMaxTextLength *int
	CustomMinKey        *int
	CustomMaxKey        *int
}

// TaskPayload is what the student sees. It never contains the answer.
type TaskPayload struct {
	TaskID        string   `json:"taskId"`
	TaskType      TaskType `json:"taskType"`
	Language      Language `json:"language"`
	SourceText    string   `json:"sourceText,omitempty"`
	EncryptedText string   `json:"encryptedText,omitempty"`
	Key           int      `json:"key,omitempty"`
	Description   string   `json:"description"`
}

type Solution struct {
	TaskID                   string
	KeySolution              *int
	TextSolution             *string
	RequestCorrectAnswerOnly bool
}

type VerificationResult struct {
	Correct       bool   `json:"correct"`
	Message       string `json:"message"`
	CorrectAnswer string `json:"correctAnswer,omitempty"`
}

const (
	msgTaskNotFound     = "task not found or expired"
	msgTaskTypeMismatch = "task type mismatch: the task was generated as a different type"
	msgKeyRequired      = "key solution is required"
	msgTextRequired     = "text solution is required"
	msgCorrect          = "Correct!"
	msgIncorrect        = "Incorrect, try again."
	msgAnswerPrefix     = "Correct answer:"
)

var taskDescriptions = map[TaskType]string{
	TaskFindKey:     "Find the key that was used to encrypt the text with the Caesar cipher.",
	TaskEncryptText: "Encrypt the text with the Caesar cipher using the given key.",
	TaskDecryptText: "Decrypt the text that was encrypted with the Caesar cipher.",
}

// TaskService generates Caesar exercises and checks submitted solutions.
type TaskService struct {
	cipher  *CipherService
	answers cache.AnswerStore
	words   map[Language][]string
	metrics *metrics.Metrics
	log     *slog.Logger
	intn    func(n int) int
	now     func() time.Time
}

func NewTaskService(cipher *CipherService, answers cache.AnswerStore, m *metrics.Metrics, log *slog.Logger) *TaskService {
	s := &TaskService{
		cipher:  cipher,
		answers: answers,
		words:   make(map[Language][]string, len(wordFileNames)),
		metrics: m,
		log:     log,
		intn:    rand.IntN,
		now:     time.Now,
	}
	for lang, name := range wordFileNames {
		words, err := loadWords(name)
		if err != nil || len(words) == 0 {
			log.Warn("word list unavailable, falling back to random letters", "language", lang, "error", err)
			continue
		}
		s.words[lang] = words
		log.Debug("word list loaded", "language", lang, "words", len(words))
	}
	return s
}

func loadWords(name string) ([]string, error) {
	f, err := wordFiles.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var words []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if w := strings.TrimSpace(sc.Text()); w != "" {
			words = append(words, strings.ToUpper(w))
		}
	}
	return words, sc.Err()
}

// Generate creates a task of taskType, stores its answer and returns the
// student-facing payload
func (s *TaskService) Generate(ctx context.Context, taskType TaskType, req GenerateRequest) (*TaskPayload, error) {
	if _, ok := taskDescriptions[taskType]; !ok {
		return nil, ErrUnknownTaskType
	}
	alphabet := Alphabet(req.Language)
	if alphabet == nil {
		return nil, ErrUnsupportedLanguage
	}
	maxKey := len(alphabet) - 1

	var textLength, key int
	switch req.Difficulty {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		lo, hi := textLengthRange(req.Difficulty)
		textLength = s.pick(lo, hi)
		lo, hi = keyRange(req.Difficulty, maxKey)
		key = s.pick(lo, hi)
	case DifficultyCustom:
		lo, hi := customRange(req.CustomMinTextLength, req.CustomMaxTextLength, minTextLength, maxTextLength)
		textLength = s.pick(lo, hi)
		lo, hi = customRange(req.CustomMinKey, req.CustomMaxKey, 1, maxKey)
		key = s.pick(lo, hi)
	default:
		return nil, ErrUnknownDifficulty
	}

	sourceText := s.generateText(req.Language, textLength)
	encrypted, err := s.cipher.Encrypt(sourceText, key, req.Language)
	if err != nil {
		return nil, err
	}

	payload := &TaskPayload{
		TaskID:      uuid.NewString(),
		TaskType:    taskType,
		Language:    req.Language,
		Description: taskDescriptions[taskType],
	}
	answer := cache.Answer{TaskType: string(taskType), CreatedAt: s.now()}

	switch taskType {
	case TaskFindKey:
		payload.EncryptedText = encrypted
		answer.Key = key
	case TaskEncryptText:
		payload.SourceText = sourceText
		payload.Key = key
		answer.Text = encrypted
	case TaskDecryptText:
		payload.EncryptedText = encrypted
		answer.Text = sourceText
	default:
		return nil, ErrUnknownTaskType
	}

	if err := s.answers.Put(ctx, payload.TaskID, answer); err != nil {
		return nil, fmt.Errorf("store task answer: %w", err)
	}

	s.metrics.RecordTaskGenerated(string(taskType), string(req.Language))
	s.log.Info("task generated",
		"task_id", payload.TaskID,
		"type", taskType,
		"language", req.Language,
		"difficulty", req.Difficulty,
		"text_length", textLength,
	)
	return payload, nil
}

// Verify checks sol against the stored answer of its task. Verifying does
// not consume the answer.
func (s *TaskService) Verify(ctx context.Context, taskType TaskType, sol Solution) (*VerificationResult, error) {
	answer, ok, err := s.answers.Get(ctx, sol.TaskID)
	if err != nil {
		return nil, fmt.Errorf("load task answer: %w", err)
	}
	if !ok {
		s.metrics.RecordVerification(string(taskType), "not_found")
		return &VerificationResult{Message: msgTaskNotFound}, nil
	}
	if TaskType(answer.TaskType) != taskType {
		s.metrics.RecordVerification(string(taskType), "mismatch")
		s.log.Warn("task verified as wrong type", "task_id", sol.TaskID, "stored", answer.TaskType, "requested", taskType)
		return &VerificationResult{Message: msgTaskTypeMismatch}, nil
	}

	expected := answer.Text
	if taskType == TaskFindKey {
		expected = strconv.Itoa(answer.Key)
	}

	if sol.RequestCorrectAnswerOnly {
		s.metrics.RecordVerification(string(taskType), "revealed")
		return &VerificationResult{
			Message:       msgAnswerPrefix + " " + expected,
			CorrectAnswer: expected,
		}, nil
	}

	var correct bool
	switch taskType {
	case TaskFindKey:
		if sol.KeySolution == nil {
			return &VerificationResult{Message: msgKeyRequired}, nil
		}
		correct = *sol.KeySolution == answer.Key
	default:
		if sol.TextSolution == nil || strings.TrimSpace(*sol.TextSolution) == "" {
			return &VerificationResult{Message: msgTextRequired}, nil
		}
		correct = strings.EqualFold(strings.TrimSpace(*sol.TextSolution), strings.TrimSpace(expected))
	}

	if correct {
		s.metrics.RecordVerification(string(taskType), "correct")
		return &VerificationResult{Correct: true, Message: msgCorrect}, nil
	}
	s.metrics.RecordVerification(string(taskType), "incorrect")
	return &VerificationResult{Message: msgIncorrect}, nil
}

// pick returns a uniform value in [lo, hi]
func (s *TaskService) pick(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + s.intn(hi-lo+1)
}

// textLengthRange splits [minTextLength, maxTextLength] into thirds
func textLengthRange(d Difficulty) (int, int) {
	part := max(1, (maxTextLength-minTextLength+1)/3)
	switch d {
	case DifficultyEasy:
		return minTextLength, min(maxTextLength, minTextLength+part-1)
	case DifficultyHard:
		return min(maxTextLength, minTextLength+2*part), maxTextLength
	default:
		return min(maxTextLength, minTextLength+part), min(maxTextLength, minTextLength+2*part-1)
	}
}

// keyRange splits [1, maxKey] into thirds
func keyRange(d Difficulty, maxKey int) (int, int) {
	if maxKey < 1 {
		return 1, 1
	}
	part := max(1, maxKey/3)

	var lo, hi int
	switch d {
	case DifficultyEasy:
		lo, hi = 1, min(maxKey, part)
	case DifficultyHard:
		lo, hi = min(maxKey, 2*part+1), maxKey
	default:
		lo, hi = min(maxKey, part+1), min(maxKey, 2*part)
	}
	lo = max(1, lo)
	hi = max(lo, hi)
	return lo, hi
}

// customRange clamps caller bounds into [lo, hi], swapping them if inverted
func customRange(minP, maxP *int, lo, hi int) (int, int) {
	a, b := lo, hi
	if minP != nil {
		a = clamp(*minP, lo, hi)
	}
	if maxP != nil {
		b = clamp(*maxP, lo, hi)
	}
	if a > b {
		a, b = b, a
	}
	return a, b
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}

// generateText builds an upper-case text of at most length runes from the
// word list of lang, padded with random letters when words do not fill it.
func (s *TaskService) generateText(lang Language, length int) string {
	if length <= 0 {
		return ""
	}
	alphabet := Alphabet(lang)
	words := s.words[lang]

	if len(words) == 0 {
		out := make([]rune, length)
		for i := range out {
			out[i] = alphabet[s.intn(len(alphabet))]
		}
		return string(out)
	}

	text := make([]rune, 0, length+5)
	for len(text) < length {
		word := []rune(words[s.intn(len(words))])
		needsSpace := len(text) > 0
		space := 0
		if needsSpace {
			space = 1
		}

		if len(text)+space+len(word) <= length {
			if needsSpace {
				text = append(text, ' ')
			}
			text = append(text, word...)
			continue
		}

		remaining := length - len(text)
		if needsSpace && remaining > 1 {
			text = append(text, ' ')
			remaining--
		}
		// a partial word shorter than minRandomSuffix reads as noise
		if remaining > 0 && (remaining >= minRandomSuffix || len(text) == 0) {
			text = append(text, word[:min(len(word), remaining)]...)
		}
		break
	}

	if deficit := length - len(text); deficit > 0 && (deficit >= minRandomSuffix || len(text) == 0) {
		if len(text) > 0 && text[len(text)-1] != ' ' {
			text = append(text, ' ')
			deficit--
		}
		for i := 0; i < deficit && len(text) < length; i++ {
			text = append(text, alphabet[s.intn(len(alphabet))])
		}
	}

	if len(text) > length {
		text = text[:length]
	}
	return strings.TrimSpace(string(text))
}
