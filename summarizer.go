package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Summarizer condenses content with respect to a goal.
type Summarizer interface {
	Summarize(ctx context.Context, goal, content string) (string, error)
}

// Completer sends a single prompt to a language model and returns its completion.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// LLMSummarizer builds a prompt from the goal and content and asks a Completer.
type LLMSummarizer struct {
	llm Completer
}

// NewLLMSummarizer creates a Summarizer backed by llm.
func NewLLMSummarizer(llm Completer) *LLMSummarizer {
	return &LLMSummarizer{llm: llm}
}

// Summarize returns the model's summary. Any model failure is reported as ErrSummarization.
func (s *LLMSummarizer) Summarize(ctx context.Context, goal, content string) (string, error) {
	out, err := s.llm.Complete(ctx, BuildPrompt(goal, content))
	if err != nil {
		return "", summarizationErr(err)
	}
	return strings.TrimSpace(out), nil
}

// BuildPrompt renders the summarization prompt for goal and content.
func BuildPrompt(goal, content string) string {
	var b strings.Builder
	b.WriteString("Summarize this raw HTML/Text content for the goal '")
	b.WriteString(goal)
	b.WriteString("': ")
	b.WriteString(content)
	return b.String()
}

func summarizationErr(err error) error {
	if errors.Is(err, ErrSummarization) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrSummarization, err)
}
