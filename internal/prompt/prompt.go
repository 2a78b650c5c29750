// Package prompt builds the text prompts delivered to agent sessions at each
// deliberation stage. All functions are pure formatting; the stage controller
// decides when each prompt is sent and to whom.
package prompt

import (
	"fmt"
	"strings"

	"github.com/conclave-ai/conclave/internal/council"
)

// Response pairs an agent's display name with the output it produced. Used
// for member responses and peer reviews alike.
type Response struct {
	AgentName string
	Content   string
}

const memberTemplate = `You are %s, one member of a council of AI agents. Every member answers the question below independently; the council then discusses, reviews each other's work, and a chairman synthesizes a final answer.

Give your own complete answer. Do not ask clarifying questions; state your assumptions instead.

## Question

%s`

// Member builds the initial prompt for a member session.
func Member(agentName, question string) string {
	return fmt.Sprintf(memberTemplate, agentName, question)
}

// DiscussionRound builds the prompt for one agent in one discussion round.
// It carries the original question, every member's initial response, and the
// full transcript of prior rounds.
func DiscussionRound(agentName, question string, round, totalRounds int, responses []Response, transcript []*council.DiscussionMessage) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s. The council answered the question below independently and is now in discussion round %d of %d.\n\n", agentName, round, totalRounds)
	b.WriteString("## Question\n\n")
	b.WriteString(question)
	b.WriteString("\n\n## Initial Responses\n\n")
	b.WriteString(responseBlocks(responses))
	if len(transcript) > 0 {
		b.WriteString("\n\n## Discussion So Far\n\n")
		b.WriteString(transcriptLines(transcript))
	}
	b.WriteString("\n\n## Your Task\n\n")
	b.WriteString("React to the other members' positions: agree, disagree, or refine. Keep your contribution focused on what moves the council toward a better final answer.")
	return b.String()
}

// Review builds the anonymized peer-review prompt for the reviewer at
// position reviewerIdx in responses. The reviewer's own response is excluded
// and the remaining responses are labeled "Response 1" through "Response n-1",
// starting from the next agent in council order, so no two reviewers see the
// same label assignment.
func Review(question string, responses []Response, reviewerIdx int) string {
	var b strings.Builder
	b.WriteString("The council answered the question below. Review the other members' responses critically. The responses are anonymized.\n\n")
	b.WriteString("## Question\n\n")
	b.WriteString(question)
	b.WriteString("\n\n## Responses Under Review\n\n")

	n := len(responses)
	if n <= 1 {
		b.WriteString("(no peer responses to review)")
	} else {
		blocks := make([]string, 0, n-1)
		for off := 1; off < n; off++ {
			peer := responses[(reviewerIdx+off)%n]
			blocks = append(blocks, fmt.Sprintf("### Response %d\n\n%s", off, peer.Content))
		}
		b.WriteString(strings.Join(blocks, "\n\n"))
	}

	b.WriteString("\n\n## Your Review\n\n")
	b.WriteString("For each response, state its strengths, its weaknesses, and anything factually wrong. Refer to responses by their labels. End with which response you find strongest and why.")
	return b.String()
}

// Synthesis builds the chairman's prompt. All three evidence sections are
// always present so the chairman sees an explicit "(none)" rather than a
// silently missing stage.
func Synthesis(question string, responses []Response, transcript []*council.DiscussionMessage, reviews []Response) string {
	var b strings.Builder
	b.WriteString("You are the council chairman. The council has deliberated on the question below. Synthesize the material into a single final answer.\n\n")
	b.WriteString("## Question\n\n")
	b.WriteString(question)

	b.WriteString("\n\n## Initial Responses\n\n")
	if len(responses) == 0 {
		b.WriteString("(none)")
	} else {
		b.WriteString(responseBlocks(responses))
	}

	b.WriteString("\n\n## Discussion Transcript\n\n")
	if len(transcript) == 0 {
		b.WriteString("(none)")
	} else {
		b.WriteString(transcriptLines(transcript))
	}

	b.WriteString("\n\n## Peer Reviews\n\n")
	if len(reviews) == 0 {
		b.WriteString("(none)")
	} else {
		b.WriteString(responseBlocks(reviews))
	}

	b.WriteString("\n\n## Your Synthesis\n\n")
	b.WriteString("Write the council's final answer. Resolve disagreements explicitly, discard positions the reviews discredited, and do not mention the deliberation process itself.")
	return b.String()
}

// FollowUpChat builds the seed context for a follow-up chat session on a
// completed launch.
func FollowUpChat(question, synthesis string, transcript []*council.DiscussionMessage) string {
	var b strings.Builder
	b.WriteString("You are the chairman of a council deliberation that has already concluded. The user will now ask follow-up questions about the result; answer them directly, drawing on the context below.\n\n")
	b.WriteString("## Original Question\n\n")
	b.WriteString(question)
	b.WriteString("\n\n## Final Synthesis\n\n")
	b.WriteString(synthesis)
	if len(transcript) > 0 {
		b.WriteString("\n\n## Discussion Transcript\n\n")
		b.WriteString(transcriptLines(transcript))
	}
	return b.String()
}

// responseBlocks renders named responses as markdown blocks.
func responseBlocks(responses []Response) string {
	blocks := make([]string, 0, len(responses))
	for _, r := range responses {
		blocks = append(blocks, fmt.Sprintf("### %s\n\n%s", r.AgentName, r.Content))
	}
	return strings.Join(blocks, "\n\n")
}

// transcriptLines renders discussion messages in round order.
func transcriptLines(transcript []*council.DiscussionMessage) string {
	lines := make([]string, 0, len(transcript))
	for _, m := range transcript {
		lines = append(lines, fmt.Sprintf("[Round %d] %s:\n%s", m.Round, m.AgentName, m.Content))
	}
	return strings.Join(lines, "\n\n")
}
