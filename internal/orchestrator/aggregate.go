package orchestrator

import (
	"fmt"
	"strings"

	"github.com/conclave-ai/conclave/internal/prompt"
)

// noResponsesSentinel is stored as the synthesis when a launch ends with no
// usable output from any session.
const noResponsesSentinel = "No responses were produced by any council member."

// Aggregate renders collected responses as one markdown block per agent,
// separated by dividers. An empty input produces the fixed sentinel so a
// degenerate launch still completes with an explicit synthesis.
func Aggregate(responses []prompt.Response) string {
	if len(responses) == 0 {
		return noResponsesSentinel
	}
	blocks := make([]string, len(responses))
	for i, r := range responses {
		blocks[i] = fmt.Sprintf("### %s\n\n%s", r.AgentName, r.Content)
	}
	return strings.Join(blocks, "\n\n---\n\n")
}

// fallbackSynthesis aggregates the best available outputs when no chairman
// synthesis exists. Reviewer output is preferred; member responses are the
// fallback.
func fallbackSynthesis(members, reviews []prompt.Response) string {
	if len(reviews) > 0 {
		return Aggregate(reviews)
	}
	return Aggregate(members)
}
