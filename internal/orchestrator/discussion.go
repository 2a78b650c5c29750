package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/conclave-ai/conclave/internal/council"
	"github.com/conclave-ai/conclave/internal/event"
	"github.com/conclave-ai/conclave/internal/prompt"
	"github.com/conclave-ai/conclave/internal/roster"
)

// discussionPlaceholder is recorded for an agent whose discussion session
// failed to start or produced nothing, so every round has one message per
// agent.
const discussionPlaceholder = "(no response this round)"

// roundBudget computes one discussion round's wait budget. The per-agent
// budget is scaled by cohort size only when at least one agent runs
// serialized, then clamped up to the round floor.
func roundBudget(perAgent, floor time.Duration, agentCount int, serialized bool) time.Duration {
	budget := perAgent
	if serialized {
		if agentCount < 1 {
			agentCount = 1
		}
		budget = perAgent * time.Duration(agentCount)
	}
	if budget < floor {
		budget = floor
	}
	return budget
}

// runDiscussion drives all configured discussion rounds sequentially and then
// hands over to review. Elapsed time is charged against the launch-wide
// discussion ceiling; rounds that no longer fit are skipped with a log entry.
// The handoff to review happens regardless of how the rounds went.
func (sc *StageController) runDiscussion(ctx context.Context, launchID string) {
	sc.mu.Lock()
	launch, err := sc.store.LoadLaunch(ctx, launchID)
	if err != nil {
		sc.mu.Unlock()
		sc.logger.Warn("discussion lost its launch", "launch_id", launchID, "error", err)
		return
	}
	if launch.Stage != council.StageResponding {
		stage := launch.Stage
		sc.mu.Unlock()
		sc.logger.Debug("skipping discussion", "launch_id", launchID, "stage", stage)
		return
	}
	c, err := sc.store.LoadCouncil(ctx, launch.CouncilID)
	if err != nil {
		sc.mu.Unlock()
		sc.logger.Warn("discussion lost its council", "launch_id", launchID, "error", err)
		return
	}
	if err := sc.transitionLocked(ctx, launch, council.StageDiscussing, nil); err != nil {
		sc.mu.Unlock()
		sc.logger.Warn("failed to enter discussion", "launch_id", launchID, "error", err)
		return
	}
	agents := sc.councilAgents(launchID, c)
	members := sc.memberResponses(ctx, launch, agents)
	sc.mu.Unlock()

	serialized := sc.roster.AnySerialized(c.AgentIDs)
	remaining := sc.config.DiscussionTotalCeiling

	for round := 1; round <= launch.TotalRounds; round++ {
		if ctx.Err() != nil {
			sc.logger.Debug("controller closing, leaving launch in place", "launch_id", launchID)
			return
		}
		if remaining <= 0 {
			sc.recordLog(ctx, launchID, council.LogWarn, "discussion budget exhausted",
				fmt.Sprintf("skipping rounds %d through %d", round, launch.TotalRounds))
			break
		}

		sc.mu.Lock()
		fresh, err := sc.store.LoadLaunch(ctx, launchID)
		if err != nil || fresh.Stage != council.StageDiscussing {
			sc.mu.Unlock()
			sc.logger.Debug("discussion interrupted", "launch_id", launchID, "round", round)
			return
		}
		fresh.CurrentRound = round
		fresh.Updated = time.Now()
		if err := sc.store.SaveLaunch(ctx, fresh); err != nil {
			sc.logger.Warn("failed to persist round counter", "launch_id", launchID, "error", err)
		}
		launch = fresh
		sc.mu.Unlock()

		budget := roundBudget(sc.config.DiscussionBudgetPerAgent, sc.config.DiscussionRoundFloor, len(agents), serialized)
		if budget > remaining {
			budget = remaining
		}

		start := time.Now()
		sc.runRound(ctx, launch, agents, members, round, budget)
		remaining -= time.Since(start)
	}

	if ctx.Err() != nil {
		sc.logger.Debug("controller closing, leaving launch in place", "launch_id", launchID)
		return
	}
	if err := sc.TriggerReview(ctx, launchID); err != nil {
		sc.logger.Warn("review handoff failed", "launch_id", launchID, "error", err)
	}
}

// runRound executes one discussion round: spawn a discusser session per
// agent, wait out the round budget, force-stop stragglers, then append and
// broadcast one message per agent in council order.
func (sc *StageController) runRound(ctx context.Context, launch *council.Launch, agents []roster.Agent, members []prompt.Response, round int, budget time.Duration) {
	transcript, err := sc.store.ListMessagesByLaunch(ctx, launch.ID)
	if err != nil {
		sc.logger.Warn("failed to load transcript", "launch_id", launch.ID, "error", err)
	}

	prompts := make([]string, len(agents))
	for i, agent := range agents {
		prompts[i] = prompt.DiscussionRound(agent.Name, launch.Prompt, round, launch.TotalRounds, members, transcript)
	}
	sessions := sc.spawnSessions(ctx, launch, agents, council.RoleDiscusser, prompts)

	result := sc.waiter.Wait(ctx, sessionIDs(sessions), budget)
	for _, id := range result.TimedOut {
		sc.recordLog(ctx, launch.ID, council.LogWarn, "session timed out", id)
		if err := sc.runtime.StopProcess(id); err != nil {
			sc.logger.Warn("failed to stop timed-out session", "session_id", id, "error", err)
		}
	}

	for i, agent := range agents {
		content := discussionPlaceholder
		sessionID := ""
		if sessions[i] != nil {
			sessionID = sessions[i].ID
			if out := strings.TrimSpace(sc.runtime.Output(sessionID)); out != "" {
				content = out
			}
		}
		msg := council.NewDiscussionMessage(launch.ID, agent.ID, agent.Name, round, content, sessionID)
		if err := sc.store.AppendMessage(ctx, msg); err != nil {
			sc.logger.Error("failed to persist discussion message",
				"launch_id", launch.ID, "agent_id", agent.ID, "error", err)
			continue
		}
		sc.bus.Publish(event.NewDiscussionMessageEvent(*msg))
	}
}
