// Package oracles contains the provider adapters behind the core.Oracle
// interface. Each adapter translates the refine and score operations into
// one provider API call and maps provider failures onto the shared error
// codes, so the search core never sees provider-specific errors.
package oracles

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/billyvinning/langchain-mcts/pkg/core"
	"github.com/billyvinning/langchain-mcts/pkg/errors"
)

// finalMarker is the sentinel a model prepends when it judges the latest
// candidate complete. It is stripped from the stored content.
const finalMarker = "FINAL:"

// buildRefinePrompt renders the full trajectory into a single refinement
// request. The first element is the problem statement; later elements are
// prior candidates, most recent last.
func buildRefinePrompt(trajectory []string) string {
	var b strings.Builder

	b.WriteString("You are refining an answer through repeated self-improvement.\n\n")
	b.WriteString("Problem:\n")
	b.WriteString(trajectory[0])
	b.WriteString("\n")

	if len(trajectory) > 1 {
		b.WriteString("\nPrevious attempts, oldest first:\n")
		for i, attempt := range trajectory[1:] {
			fmt.Fprintf(&b, "\n--- Attempt %d ---\n%s\n", i+1, attempt)
		}
		b.WriteString("\nWrite an improved answer. Fix any errors in the latest attempt and make it more complete and precise.")
	} else {
		b.WriteString("\nWrite your best answer to the problem.")
	}

	b.WriteString(" If you judge the answer complete and no further refinement would improve it, start your reply with " + finalMarker + "\n")
	return b.String()
}

// buildScorePrompt asks for a bare numeric grade so the reply can be
// parsed without any structured-output support from the provider.
func buildScorePrompt(content, problem string) string {
	var b strings.Builder
	b.WriteString("Grade the following answer strictly.\n\n")
	b.WriteString("Problem:\n")
	b.WriteString(problem)
	b.WriteString("\n\nAnswer:\n")
	b.WriteString(content)
	b.WriteString("\n\nReply with a single number from 0 to 100 rating correctness and completeness. No other text.")
	return b.String()
}

// parseCompletion turns raw model text into a Completion, detecting and
// stripping the final-answer sentinel.
func parseCompletion(text string) (*core.Completion, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, errors.New(errors.MalformedCompletion, "empty completion from provider")
	}

	final := false
	if strings.HasPrefix(trimmed, finalMarker) {
		final = true
		trimmed = strings.TrimSpace(strings.TrimPrefix(trimmed, finalMarker))
		if trimmed == "" {
			return nil, errors.New(errors.MalformedCompletion, "completion carried only the final marker")
		}
	}

	return &core.Completion{Content: trimmed, IsFinal: final}, nil
}

var scorePattern = regexp.MustCompile(`-?\d+(?:\.\d+)?`)

// parseScore extracts the first number from a grading reply. Models
// occasionally wrap the grade in prose despite instructions, so any
// leading text before the number is tolerated.
func parseScore(text string) (float64, error) {
	match := scorePattern.FindString(text)
	if match == "" {
		return 0, errors.WithFields(
			errors.New(errors.ScoreParseFailed, "no numeric score in grading reply"),
			errors.Fields{"reply": truncateForField(text)})
	}

	score, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0, errors.Wrap(err, errors.ScoreParseFailed, "failed to parse numeric score")
	}
	return score, nil
}

func truncateForField(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 80 {
		return s[:77] + "..."
	}
	return s
}
