// Package answer turns a session's indexed materials into grounded answers,
// multiple-choice questions, and flashcards. Every operation follows the
// same shape: embed a query, search each of the session's per-material
// indices, merge the best passages, and hand them to the chat model.
package answer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"studymate/internal/index"
	"studymate/internal/llm"
	"studymate/internal/session"
)

var (
	// ErrNoContent is returned when the session has no indexed materials.
	ErrNoContent = errors.New("no study materials uploaded")

	// ErrRetrieval is returned when passage retrieval fails.
	ErrRetrieval = errors.New("retrieval failed")

	// ErrGeneration is returned when the language model call fails.
	ErrGeneration = errors.New("generation failed")

	// ErrMalformedGeneration is returned when the model responds but its
	// output cannot be parsed into the requested structure.
	ErrMalformedGeneration = errors.New("malformed generation output")
)

const (
	// DefaultTopK is how many passages each material index contributes.
	DefaultTopK = 4
	// DefaultTopN caps the merged passage set across all materials.
	DefaultTopN = 6

	// DefaultQuestionCount is used when a generation request doesn't say
	// how many items it wants.
	DefaultQuestionCount = 5
	maxQuestionCount     = 20
)

// Passage is a retrieved chunk with its provenance and similarity score.
type Passage struct {
	SourceType string  `json:"source_type"`
	SourceID   string  `json:"source_id"`
	Text       string  `json:"text"`
	Score      float32 `json:"score"`
}

// Answer is a grounded response with the passages that informed it.
type Answer struct {
	Text     string    `json:"answer"`
	Passages []Passage `json:"sources"`
}

// MCQ is one multiple-choice question. Answer holds the full text of the
// correct option; CorrectIndex is its position in Options, derived during
// validation.
type MCQ struct {
	Question     string   `json:"question"`
	Options      []string `json:"options"`
	Answer       string   `json:"answer"`
	CorrectIndex int      `json:"correct_index"`
}

// Flashcard is a question/answer study pair.
type Flashcard struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Engine answers questions and generates study aids from indexed materials.
type Engine struct {
	store      *index.Store
	registry   session.Registry
	llm        llm.Engine
	chatModel  string
	embedModel string
	topK       int
	topN       int
	logger     *slog.Logger
}

// New creates an answer engine with default retrieval limits.
func New(store *index.Store, registry session.Registry, eng llm.Engine, chatModel, embedModel string, logger *slog.Logger) *Engine {
	return &Engine{
		store:      store,
		registry:   registry,
		llm:        eng,
		chatModel:  chatModel,
		embedModel: embedModel,
		topK:       DefaultTopK,
		topN:       DefaultTopN,
		logger:     logger,
	}
}

// SetLimits overrides the per-index and merged retrieval limits. Values
// <= 0 keep the current setting.
func (e *Engine) SetLimits(topK, topN int) {
	if topK > 0 {
		e.topK = topK
	}
	if topN > 0 {
		e.topN = topN
	}
}

// Ask answers a question using the session's materials as the only source
// of truth.
func (e *Engine) Ask(ctx context.Context, sessionID, question string) (Answer, error) {
	passages, err := e.retrieve(ctx, sessionID, question)
	if err != nil {
		return Answer{}, err
	}

	resp, err := e.llm.Complete(ctx, e.chatModel, []llm.Message{
		{Role: "system", Content: answerSystemPrompt},
		{Role: "user", Content: answerUserPrompt(question, passages)},
	}, nil)
	if err != nil {
		return Answer{}, fmt.Errorf("%w: %v", ErrGeneration, err)
	}
	return Answer{Text: resp, Passages: passages}, nil
}

// GenerateMCQs produces count multiple-choice questions about topic. An
// empty topic quizzes the materials broadly; difficulty is free-form
// ("easy", "hard", ...) and empty leaves it to the model.
func (e *Engine) GenerateMCQs(ctx context.Context, sessionID, topic, difficulty string, count int) ([]MCQ, error) {
	count = clampCount(count)
	passages, err := e.retrieve(ctx, sessionID, generationQuery(topic))
	if err != nil {
		return nil, err
	}

	resp, err := e.llm.Complete(ctx, e.chatModel, []llm.Message{
		{Role: "system", Content: mcqSystemPrompt},
		{Role: "user", Content: mcqUserPrompt(topic, difficulty, count, passages)},
	}, mcqSchema)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGeneration, err)
	}

	mcqs, err := parseMCQs(resp)
	if err != nil {
		e.logger.Warn("mcq output unparseable", "session_id", sessionID, "error", err)
		return nil, err
	}
	if len(mcqs) > count {
		mcqs = mcqs[:count]
	}
	return mcqs, nil
}

// GenerateFlashcards produces count flashcards about topic. An empty topic
// covers the materials broadly.
func (e *Engine) GenerateFlashcards(ctx context.Context, sessionID, topic string, count int) ([]Flashcard, error) {
	count = clampCount(count)
	passages, err := e.retrieve(ctx, sessionID, generationQuery(topic))
	if err != nil {
		return nil, err
	}

	resp, err := e.llm.Complete(ctx, e.chatModel, []llm.Message{
		{Role: "system", Content: flashcardSystemPrompt},
		{Role: "user", Content: flashcardUserPrompt(topic, count, passages)},
	}, flashcardSchema)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGeneration, err)
	}

	cards, err := parseFlashcards(resp)
	if err != nil {
		e.logger.Warn("flashcard output unparseable", "session_id", sessionID, "error", err)
		return nil, err
	}
	if len(cards) > count {
		cards = cards[:count]
	}
	return cards, nil
}

// retrieve embeds the query once and searches every material the session
// has, merging the per-index results into a single ranked passage list.
// Ties are broken by material upload order, so earlier uploads win.
func (e *Engine) retrieve(ctx context.Context, sessionID, query string) ([]Passage, error) {
	materials := e.registry.List(sessionID)
	if len(materials) == 0 {
		return nil, ErrNoContent
	}

	vector, err := e.llm.Embed(ctx, e.embedModel, query)
	if err != nil {
		return nil, fmt.Errorf("%w: embedding query: %v", ErrRetrieval, err)
	}

	var merged []Passage
	for _, m := range materials {
		ix, err := e.store.Load(m.SourceType, m.SourceID)
		if err != nil {
			// A registered material with no index on disk is skipped, not
			// fatal: the rest of the session's materials still answer.
			e.logger.Warn("skipping material with unreadable index",
				"source_type", m.SourceType, "source_id", m.SourceID, "error", err)
			continue
		}
		scored, err := ix.Search(vector, e.topK)
		ix.Close()
		if err != nil {
			return nil, fmt.Errorf("%w: searching %s/%s: %v", ErrRetrieval, m.SourceType, m.SourceID, err)
		}
		for _, s := range scored {
			merged = append(merged, Passage{
				SourceType: m.SourceType,
				SourceID:   m.SourceID,
				Text:       s.TextChunk,
				Score:      s.Score,
			})
		}
	}
	if len(merged) == 0 {
		return nil, fmt.Errorf("%w: no indexed content found", ErrRetrieval)
	}

	// Stable sort preserves material insertion order among equal scores.
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Score > merged[j].Score
	})
	if len(merged) > e.topN {
		merged = merged[:e.topN]
	}
	return merged, nil
}

func clampCount(count int) int {
	if count <= 0 {
		return DefaultQuestionCount
	}
	if count > maxQuestionCount {
		return maxQuestionCount
	}
	return count
}

// generationQuery maps an optional topic to a retrieval query. With no
// topic the query targets the materials' central ideas.
func generationQuery(topic string) string {
	if topic == "" {
		return "the most important concepts, definitions, and facts"
	}
	return topic
}
