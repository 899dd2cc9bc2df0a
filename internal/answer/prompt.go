package answer

import (
	"fmt"
	"strings"

	"studymate/internal/llm"
)

// maxContextTokens bounds how much passage text is injected into a prompt,
// using a rough 4-chars-per-token estimate.
const maxContextTokens = 4000

const answerSystemPrompt = `You are a study assistant. Answer strictly from the provided study material excerpts. ` +
	`If the excerpts do not contain the answer, say so plainly instead of guessing. ` +
	`Cite the source tag (e.g. [document:notes.pdf]) for the excerpts you rely on.`

const mcqSystemPrompt = `You are a study assistant that writes multiple-choice questions from provided study material excerpts. ` +
	`Respond with a JSON object of the form {"questions": [{"question": "...", "options": ["...", "..."], "answer": "..."}]}. ` +
	`Each question has exactly 4 options and "answer" is the full text of the correct option. ` +
	`Base every question only on the excerpts.`

const flashcardSystemPrompt = `You are a study assistant that writes flashcards from provided study material excerpts. ` +
	`Respond with a JSON object of the form {"flashcards": [{"question": "...", "answer": "..."}]}. ` +
	`Keep each side concise and base every card only on the excerpts.`

var mcqSchema = &llm.Schema{
	Type: "object",
	Properties: map[string]llm.SchemaProperty{
		"questions": {Type: "array", Description: "Multiple-choice questions with options and the correct answer"},
	},
	Required: []string{"questions"},
}

var flashcardSchema = &llm.Schema{
	Type: "object",
	Properties: map[string]llm.SchemaProperty{
		"flashcards": {Type: "array", Description: "Question and answer study pairs"},
	},
	Required: []string{"flashcards"},
}

func answerUserPrompt(question string, passages []Passage) string {
	var sb strings.Builder
	sb.WriteString("Study material excerpts:\n\n")
	sb.WriteString(formatPassages(passages))
	sb.WriteString("\nQuestion: ")
	sb.WriteString(question)
	return sb.String()
}

func mcqUserPrompt(topic, difficulty string, count int, passages []Passage) string {
	var sb strings.Builder
	sb.WriteString("Study material excerpts:\n\n")
	sb.WriteString(formatPassages(passages))
	fmt.Fprintf(&sb, "\nWrite %d multiple-choice questions", count)
	if topic != "" {
		fmt.Fprintf(&sb, " about %q", topic)
	}
	if difficulty != "" {
		fmt.Fprintf(&sb, " at %s difficulty", difficulty)
	}
	sb.WriteString(" covering these excerpts.")
	return sb.String()
}

func flashcardUserPrompt(topic string, count int, passages []Passage) string {
	var sb strings.Builder
	sb.WriteString("Study material excerpts:\n\n")
	sb.WriteString(formatPassages(passages))
	fmt.Fprintf(&sb, "\nWrite %d flashcards", count)
	if topic != "" {
		fmt.Fprintf(&sb, " about %q", topic)
	}
	sb.WriteString(" covering these excerpts.")
	return sb.String()
}

// formatPassages renders passages as tagged excerpts, dropping the
// lowest-ranked ones once the token budget is spent. Passages arrive
// already sorted by score descending.
func formatPassages(passages []Passage) string {
	var sb strings.Builder
	remaining := maxContextTokens
	for _, p := range passages {
		entry := fmt.Sprintf("[%s:%s]\n%s\n\n", p.SourceType, p.SourceID, p.Text)
		tokens := estimateTokens(entry)
		if tokens > remaining {
			continue
		}
		sb.WriteString(entry)
		remaining -= tokens
	}
	return sb.String()
}

// estimateTokens provides a rough token count using 4 chars per token.
func estimateTokens(text string) int {
	return (len(text) + 3) / 4
}
