package answer

import (
	"encoding/json"
	"fmt"
	"strings"
)

// parseMCQs extracts multiple-choice questions from a model response.
// Items missing a question, with fewer than two options, or whose answer is
// not one of the options are dropped; an empty valid set is an error.
func parseMCQs(resp string) ([]MCQ, error) {
	var wrapper struct {
		Questions []MCQ `json:"questions"`
	}
	raw, err := extractJSON(resp)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedGeneration, err)
	}

	var items []MCQ
	if strings.HasPrefix(raw, "[") {
		err = json.Unmarshal([]byte(raw), &items)
	} else {
		err = json.Unmarshal([]byte(raw), &wrapper)
		items = wrapper.Questions
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedGeneration, err)
	}

	valid := make([]MCQ, 0, len(items))
	for _, q := range items {
		if strings.TrimSpace(q.Question) == "" || len(q.Options) < 2 {
			continue
		}
		idx, ok := optionIndex(q.Options, q.Answer)
		if !ok {
			continue
		}
		q.CorrectIndex = idx
		valid = append(valid, q)
	}
	if len(valid) == 0 {
		return nil, fmt.Errorf("%w: no valid questions in response", ErrMalformedGeneration)
	}
	return valid, nil
}

// parseFlashcards extracts flashcards from a model response. Cards with an
// empty side are dropped; an empty valid set is an error.
func parseFlashcards(resp string) ([]Flashcard, error) {
	var wrapper struct {
		Flashcards []Flashcard `json:"flashcards"`
	}
	raw, err := extractJSON(resp)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedGeneration, err)
	}

	var items []Flashcard
	if strings.HasPrefix(raw, "[") {
		err = json.Unmarshal([]byte(raw), &items)
	} else {
		err = json.Unmarshal([]byte(raw), &wrapper)
		items = wrapper.Flashcards
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedGeneration, err)
	}

	valid := make([]Flashcard, 0, len(items))
	for _, c := range items {
		if strings.TrimSpace(c.Question) == "" || strings.TrimSpace(c.Answer) == "" {
			continue
		}
		valid = append(valid, c)
	}
	if len(valid) == 0 {
		return nil, fmt.Errorf("%w: no valid flashcards in response", ErrMalformedGeneration)
	}
	return valid, nil
}

// extractJSON isolates the JSON payload in a model response. Models
// frequently wrap JSON in markdown code fences or prepend conversational
// filler, so the parser strips fences first and then cuts from the first
// opening brace or bracket to its matching close.
func extractJSON(resp string) (string, error) {
	s := strings.TrimSpace(resp)

	if idx := strings.Index(s, "```"); idx != -1 {
		s = s[idx+3:]
		if strings.HasPrefix(s, "json") {
			s = s[4:]
		}
		if end := strings.Index(s, "```"); end != -1 {
			s = s[:end]
		}
		s = strings.TrimSpace(s)
	}

	objStart := strings.Index(s, "{")
	arrStart := strings.Index(s, "[")
	switch {
	case arrStart != -1 && (objStart == -1 || arrStart < objStart):
		end := strings.LastIndex(s, "]")
		if end <= arrStart {
			return "", fmt.Errorf("unterminated JSON array in response")
		}
		return s[arrStart : end+1], nil
	case objStart != -1:
		end := strings.LastIndex(s, "}")
		if end <= objStart {
			return "", fmt.Errorf("unterminated JSON object in response")
		}
		return s[objStart : end+1], nil
	default:
		return "", fmt.Errorf("no JSON in response")
	}
}

// optionIndex locates answer among options, tolerating surrounding
// whitespace on either side.
func optionIndex(options []string, answer string) (int, bool) {
	want := strings.TrimSpace(answer)
	if want == "" {
		return 0, false
	}
	for i, o := range options {
		if strings.TrimSpace(o) == want {
			return i, true
		}
	}
	return 0, false
}
