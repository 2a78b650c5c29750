// Package orchestrator drives council deliberations through their stage
// machine: responding, optional discussion rounds, peer review, synthesis,
// complete. The StageController owns every transition; the Waiter and the
// auto-advance watchers are the concurrency primitives underneath it.
//
// A launch is guaranteed to reach the complete stage in bounded time: every
// wait carries a timeout, stragglers are force-stopped, and individual
// session failures degrade to placeholders and fallbacks instead of errors.
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/conclave-ai/conclave/internal/council"
	"github.com/conclave-ai/conclave/internal/errors"
	"github.com/conclave-ai/conclave/internal/event"
	"github.com/conclave-ai/conclave/internal/logging"
	"github.com/conclave-ai/conclave/internal/prompt"
	"github.com/conclave-ai/conclave/internal/roster"
	"github.com/conclave-ai/conclave/internal/runtime"
	"github.com/conclave-ai/conclave/internal/store"
)

// emptySynthesisMarker is stored when the chairman session completes without
// producing any output.
const emptySynthesisMarker = "(no synthesis produced)"

// abortedSynthesisPrefix marks a synthesis assembled from partial output
// after a manual abort.
const abortedSynthesisPrefix = "(deliberation terminated manually)\n\n"

// Config holds the stage timeout budgets. Per-agent budgets are scaled by
// cohort size where the stage machinery calls for it.
type Config struct {
	ResponseBudgetPerAgent   time.Duration
	DiscussionBudgetPerAgent time.Duration
	DiscussionRoundFloor     time.Duration
	DiscussionTotalCeiling   time.Duration
	ReviewBudgetPerAgent     time.Duration
	SynthesisBudget          time.Duration
	ChatStartBudget          time.Duration
}

// DefaultConfig returns the stock budgets.
func DefaultConfig() Config {
	return Config{
		ResponseBudgetPerAgent:   5 * time.Minute,
		DiscussionBudgetPerAgent: 3 * time.Minute,
		DiscussionRoundFloor:     2 * time.Minute,
		DiscussionTotalCeiling:   30 * time.Minute,
		ReviewBudgetPerAgent:     5 * time.Minute,
		SynthesisBudget:          10 * time.Minute,
		ChatStartBudget:          time.Minute,
	}
}

// applyDefaults fills any zero budget with its default.
func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.ResponseBudgetPerAgent <= 0 {
		c.ResponseBudgetPerAgent = d.ResponseBudgetPerAgent
	}
	if c.DiscussionBudgetPerAgent <= 0 {
		c.DiscussionBudgetPerAgent = d.DiscussionBudgetPerAgent
	}
	if c.DiscussionRoundFloor <= 0 {
		c.DiscussionRoundFloor = d.DiscussionRoundFloor
	}
	if c.DiscussionTotalCeiling <= 0 {
		c.DiscussionTotalCeiling = d.DiscussionTotalCeiling
	}
	if c.ReviewBudgetPerAgent <= 0 {
		c.ReviewBudgetPerAgent = d.ReviewBudgetPerAgent
	}
	if c.SynthesisBudget <= 0 {
		c.SynthesisBudget = d.SynthesisBudget
	}
	if c.ChatStartBudget <= 0 {
		c.ChatStartBudget = d.ChatStartBudget
	}
}

// StageController owns the launch stage machine. All transitions serialize
// through its mutex; watcher and discussion goroutines are tracked by its
// WaitGroup and stopped by Close.
type StageController struct {
	store   store.Store
	runtime runtime.Runtime
	roster  *roster.Directory
	bus     *event.Bus
	config  Config
	logger  *logging.Logger
	waiter  *Waiter

	mu     sync.Mutex
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// NewStageController wires a controller. Store, runtime, roster, and bus are
// required; a nil logger falls back to the no-op logger and zero budgets fall
// back to defaults.
func NewStageController(st store.Store, rt runtime.Runtime, agents *roster.Directory, bus *event.Bus, cfg Config, logger *logging.Logger) (*StageController, error) {
	if st == nil {
		return nil, errors.New("stage controller requires a store")
	}
	if rt == nil {
		return nil, errors.New("stage controller requires a session runtime")
	}
	if agents == nil {
		return nil, errors.New("stage controller requires an agent roster")
	}
	if bus == nil {
		return nil, errors.New("stage controller requires an event bus")
	}
	if logger == nil {
		logger = logging.NopLogger()
	}
	cfg.applyDefaults()

	ctx, cancel := context.WithCancel(context.Background())
	return &StageController{
		store:   st,
		runtime: rt,
		roster:  agents,
		bus:     bus,
		config:  cfg,
		logger:  logger.WithComponent("controller"),
		waiter:  NewWaiter(rt, logger),
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

// Close cancels all in-flight waits and joins the controller's goroutines.
func (sc *StageController) Close() {
	sc.cancel()
	sc.wg.Wait()
}

// Launch starts a deliberation: it validates the council and project, creates
// the launch in the responding stage, spawns one member session per agent,
// and registers the auto-advance watcher that moves the launch onward once
// the members finish. Individual spawn failures are logged and skipped.
func (sc *StageController) Launch(ctx context.Context, councilID, projectID, question string) (*council.Launch, error) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	c, err := sc.store.LoadCouncil(ctx, councilID)
	if err != nil {
		return nil, err
	}
	if _, err := sc.store.LoadProject(ctx, projectID); err != nil {
		return nil, err
	}

	launch := council.NewLaunch(c, projectID, question)
	if err := sc.store.SaveLaunch(ctx, launch); err != nil {
		return nil, errors.Wrapf(err, "failed to persist launch")
	}

	agents := sc.councilAgents(launch.ID, c)
	prompts := make([]string, len(agents))
	for i, agent := range agents {
		prompts[i] = prompt.Member(agent.Name, question)
	}
	sessions := sc.spawnSessions(ctx, launch, agents, council.RoleMember, prompts)
	ids := sessionIDs(sessions)

	sc.bus.Publish(event.NewStageChangedEvent(launch.ID, "", council.StageResponding, ids))
	sc.recordLog(ctx, launch.ID, council.LogInfo, "launch started",
		fmt.Sprintf("council %s, %d member sessions", c.Name, len(ids)))

	sc.autoAdvance(launch.ID, council.RoleMember, ids, func(ctx context.Context) {
		if launch.TotalRounds > 0 {
			sc.runDiscussion(ctx, launch.ID)
			return
		}
		if err := sc.TriggerReview(ctx, launch.ID); err != nil {
			sc.logger.Warn("review handoff failed", "launch_id", launch.ID, "error", err)
		}
	})

	return launch, nil
}

// TriggerReview moves a launch into the reviewing stage. Legal from
// responding or discussing. Each agent receives an anonymized peer-review
// prompt that excludes its own response, with label assignment rotated per
// reviewer.
func (sc *StageController) TriggerReview(ctx context.Context, launchID string) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	launch, err := sc.store.LoadLaunch(ctx, launchID)
	if err != nil {
		return err
	}
	if launch.Stage != council.StageResponding && launch.Stage != council.StageDiscussing {
		return errors.NewInvalidStateError(launchID, string(launch.Stage), "trigger review")
	}
	c, err := sc.store.LoadCouncil(ctx, launch.CouncilID)
	if err != nil {
		return err
	}

	agents := sc.councilAgents(launchID, c)
	responses := sc.memberResponses(ctx, launch, agents)

	prompts := make([]string, len(agents))
	for i := range agents {
		prompts[i] = prompt.Review(launch.Prompt, responses, i)
	}
	sessions := sc.spawnSessions(ctx, launch, agents, council.RoleReviewer, prompts)
	ids := sessionIDs(sessions)

	if err := sc.transitionLocked(ctx, launch, council.StageReviewing, ids); err != nil {
		return err
	}

	sc.autoAdvance(launchID, council.RoleReviewer, ids, func(ctx context.Context) {
		if err := sc.TriggerSynthesis(ctx, launchID, ""); err != nil {
			sc.logger.Warn("synthesis handoff failed", "launch_id", launchID, "error", err)
		}
	})

	return nil
}

// TriggerSynthesis moves a launch into the synthesizing stage. Legal from
// reviewing only. The chairman is the override if given, else the council's
// chairman, else the first council agent ad hoc. If no chairman session can
// be started the launch completes immediately with an aggregated fallback
// synthesis.
func (sc *StageController) TriggerSynthesis(ctx context.Context, launchID, chairmanOverride string) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	launch, err := sc.store.LoadLaunch(ctx, launchID)
	if err != nil {
		return err
	}
	if launch.Stage != council.StageReviewing {
		return errors.NewInvalidStateError(launchID, string(launch.Stage), "trigger synthesis")
	}
	c, err := sc.store.LoadCouncil(ctx, launch.CouncilID)
	if err != nil {
		return err
	}

	agents := sc.councilAgents(launchID, c)
	members := sc.collectOutputs(ctx, launchID, council.RoleMember)
	reviews := sc.collectOutputs(ctx, launchID, council.RoleReviewer)

	chairman := sc.resolveChairman(launchID, c, agents, chairmanOverride)
	if chairman == nil {
		sc.recordLog(ctx, launchID, council.LogWarn, "no chairman available", "completing with aggregated responses")
		return sc.completeLaunchLocked(ctx, launch, fallbackSynthesis(members, reviews), nil)
	}

	transcript, err := sc.store.ListMessagesByLaunch(ctx, launchID)
	if err != nil {
		sc.logger.Warn("failed to load transcript", "launch_id", launchID, "error", err)
	}

	sess := council.NewSession(launchID, chairman.ID, council.RoleChairman)
	if err := sc.store.SaveSession(ctx, sess); err != nil {
		sc.recordLog(ctx, launchID, council.LogError, "failed to record chairman session", err.Error())
		return sc.completeLaunchLocked(ctx, launch, fallbackSynthesis(members, reviews), nil)
	}
	synthesisPrompt := prompt.Synthesis(launch.Prompt, members, transcript, reviews)
	if err := sc.runtime.StartProcess(ctx, sess, synthesisPrompt); err != nil {
		sc.recordLog(ctx, launchID, council.LogWarn, "failed to start chairman session", err.Error())
		return sc.completeLaunchLocked(ctx, launch, fallbackSynthesis(members, reviews), nil)
	}

	if err := sc.transitionLocked(ctx, launch, council.StageSynthesizing, []string{sess.ID}); err != nil {
		return err
	}

	sc.wg.Add(1)
	go sc.watchChairman(launchID, sess.ID)
	return nil
}

// Abort force-stops every running session of a launch and completes it with
// an aggregated synthesis marked as manually terminated. Legal from any
// non-terminal stage.
func (sc *StageController) Abort(ctx context.Context, launchID string) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	launch, err := sc.store.LoadLaunch(ctx, launchID)
	if err != nil {
		return err
	}
	if launch.Stage.Terminal() {
		return errors.NewInvalidStateError(launchID, string(launch.Stage), "abort")
	}

	sessions, err := sc.store.ListSessionsByLaunch(ctx, launchID)
	if err != nil {
		sc.logger.Warn("failed to list sessions for abort", "launch_id", launchID, "error", err)
	}
	stopped := 0
	for _, sess := range sessions {
		if !sc.runtime.IsRunning(sess.ID) {
			continue
		}
		if err := sc.runtime.StopProcess(sess.ID); err != nil {
			sc.logger.Warn("failed to stop session", "session_id", sess.ID, "error", err)
			continue
		}
		stopped++
	}
	sc.recordLog(ctx, launchID, council.LogWarn, "launch aborted", fmt.Sprintf("stopped %d running sessions", stopped))

	members := sc.collectOutputs(ctx, launchID, council.RoleMember)
	reviews := sc.collectOutputs(ctx, launchID, council.RoleReviewer)
	synthesis := abortedSynthesisPrefix + fallbackSynthesis(members, reviews)
	return sc.completeLaunchLocked(ctx, launch, synthesis, nil)
}

// StartFollowUpChat delivers a follow-up message on a completed launch. The
// existing chat session is reused while its process lives; otherwise a new
// chairman session is seeded with the original question, the synthesis, and
// the transcript. Returns the chat session id.
func (sc *StageController) StartFollowUpChat(ctx context.Context, launchID, message string) (string, error) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	launch, err := sc.store.LoadLaunch(ctx, launchID)
	if err != nil {
		return "", err
	}
	if launch.Stage != council.StageComplete {
		return "", errors.NewInvalidStateError(launchID, string(launch.Stage), "follow-up chat")
	}
	if launch.Synthesis == "" {
		return "", errors.Wrapf(errors.ErrNoSynthesis, "launch '%s'", launchID)
	}

	if launch.ChatSessionID != "" && sc.runtime.IsRunning(launch.ChatSessionID) {
		if sc.runtime.SendMessage(launch.ChatSessionID, message) {
			sc.recordLog(ctx, launchID, council.LogInfo, "follow-up message delivered", launch.ChatSessionID)
			return launch.ChatSessionID, nil
		}
		sc.logger.Warn("existing chat session rejected message, starting fresh",
			"launch_id", launchID, "session_id", launch.ChatSessionID)
	}

	c, err := sc.store.LoadCouncil(ctx, launch.CouncilID)
	if err != nil {
		return "", err
	}
	agents := sc.councilAgents(launchID, c)
	chairman := sc.resolveChairman(launchID, c, agents, "")
	if chairman == nil {
		return "", errors.NewRuntimeError("no agent available for follow-up chat", errors.ErrAgentNotFound)
	}

	transcript, err := sc.store.ListMessagesByLaunch(ctx, launchID)
	if err != nil {
		sc.logger.Warn("failed to load transcript", "launch_id", launchID, "error", err)
	}

	sess := council.NewSession(launchID, chairman.ID, council.RoleChairman)
	if err := sc.store.SaveSession(ctx, sess); err != nil {
		return "", errors.Wrapf(err, "failed to record chat session")
	}

	startCtx, cancel := context.WithTimeout(ctx, sc.config.ChatStartBudget)
	defer cancel()
	seed := prompt.FollowUpChat(launch.Prompt, launch.Synthesis, transcript)
	if err := sc.runtime.StartProcess(startCtx, sess, seed); err != nil {
		return "", errors.Wrapf(err, "failed to start chat session")
	}
	if !sc.runtime.SendMessage(sess.ID, message) {
		sc.logger.Warn("chat session did not accept message", "launch_id", launchID, "session_id", sess.ID)
	}

	launch.ChatSessionID = sess.ID
	launch.Updated = time.Now()
	if err := sc.store.SaveLaunch(ctx, launch); err != nil {
		return "", errors.Wrapf(err, "failed to persist chat session id")
	}
	sc.recordLog(ctx, launchID, council.LogInfo, "follow-up chat started", sess.ID)
	return sess.ID, nil
}

// transitionLocked advances the launch stage, persists it, and emits the
// stage-change broadcast and log entry. Caller holds sc.mu.
func (sc *StageController) transitionLocked(ctx context.Context, launch *council.Launch, next council.Stage, sessionIDs []string) error {
	if !launch.Stage.CanAdvanceTo(next) {
		return errors.NewInvalidStateError(launch.ID, string(launch.Stage), fmt.Sprintf("advance to %s", next))
	}

	previous := launch.Stage
	launch.Stage = next
	launch.Updated = time.Now()
	if err := sc.store.SaveLaunch(ctx, launch); err != nil {
		launch.Stage = previous
		return errors.Wrapf(err, "failed to persist stage transition")
	}

	sc.bus.Publish(event.NewStageChangedEvent(launch.ID, previous, next, sessionIDs))
	sc.recordLog(ctx, launch.ID, council.LogInfo, "stage advanced", fmt.Sprintf("%s -> %s", previous, next))
	return nil
}

// completeLaunchLocked stores the synthesis and moves the launch to the
// complete stage. Caller holds sc.mu.
func (sc *StageController) completeLaunchLocked(ctx context.Context, launch *council.Launch, synthesis string, sessionIDs []string) error {
	launch.Synthesis = synthesis
	return sc.transitionLocked(ctx, launch, council.StageComplete, sessionIDs)
}

// recordLog appends a launch log entry, broadcasts it, and mirrors it to the
// structured logger. Log persistence failures are not propagated.
func (sc *StageController) recordLog(ctx context.Context, launchID string, level council.LogLevel, message, detail string) {
	entry := council.NewLogEntry(launchID, level, message, detail)
	if err := sc.store.AppendLog(ctx, entry); err != nil {
		sc.logger.Error("failed to persist launch log", "launch_id", launchID, "error", err)
	}
	sc.bus.Publish(event.NewLogEntryEvent(*entry))

	logger := sc.logger.WithLaunch(launchID)
	switch level {
	case council.LogError:
		logger.Error(message, "detail", detail)
	case council.LogWarn:
		logger.Warn(message, "detail", detail)
	default:
		logger.Info(message, "detail", detail)
	}
}

// councilAgents resolves the council's agent ids against the roster,
// logging and skipping ids the roster does not know.
func (sc *StageController) councilAgents(launchID string, c *council.Council) []roster.Agent {
	agents := make([]roster.Agent, 0, len(c.AgentIDs))
	for _, id := range c.AgentIDs {
		agent, err := sc.roster.Agent(id)
		if err != nil {
			sc.logger.Warn("council references unknown agent", "launch_id", launchID, "agent_id", id)
			continue
		}
		agents = append(agents, *agent)
	}
	return agents
}

// resolveChairman picks the synthesis agent: explicit override first, then
// the council's configured chairman, then the first council agent ad hoc.
// Returns nil when no candidate resolves.
func (sc *StageController) resolveChairman(launchID string, c *council.Council, agents []roster.Agent, override string) *roster.Agent {
	for _, id := range []string{override, c.ChairmanAgentID} {
		if id == "" {
			continue
		}
		agent, err := sc.roster.Agent(id)
		if err != nil {
			sc.logger.Warn("chairman not in roster", "launch_id", launchID, "agent_id", id)
			continue
		}
		return agent
	}
	if len(agents) > 0 {
		return &agents[0]
	}
	return nil
}

// spawnSessions starts one session per agent in parallel with no stagger.
// Failures are logged and leave a nil slot; the returned slice stays aligned
// with agents.
func (sc *StageController) spawnSessions(ctx context.Context, launch *council.Launch, agents []roster.Agent, role council.Role, prompts []string) []*council.Session {
	sessions := make([]*council.Session, len(agents))
	var g errgroup.Group
	for i, agent := range agents {
		i, agent := i, agent
		g.Go(func() error {
			sess := council.NewSession(launch.ID, agent.ID, role)
			if err := sc.store.SaveSession(ctx, sess); err != nil {
				sc.recordLog(ctx, launch.ID, council.LogError,
					fmt.Sprintf("failed to record %s session for %s", role, agent.ID), err.Error())
				return nil
			}
			if err := sc.runtime.StartProcess(ctx, sess, prompts[i]); err != nil {
				sc.recordLog(ctx, launch.ID, council.LogWarn,
					fmt.Sprintf("failed to start %s session for %s", role, agent.ID), err.Error())
				return nil
			}
			sessions[i] = sess
			return nil
		})
	}
	_ = g.Wait()
	return sessions
}

// memberResponses returns one response per council agent, aligned with
// agents, substituting an explicit placeholder where the agent's member
// session produced nothing. Alignment is what lets the review prompt exclude
// each reviewer's own response by index.
func (sc *StageController) memberResponses(ctx context.Context, launch *council.Launch, agents []roster.Agent) []prompt.Response {
	byAgent := make(map[string]string, len(agents))
	sessions, err := sc.store.ListSessionsByLaunch(ctx, launch.ID)
	if err != nil {
		sc.logger.Warn("failed to list sessions", "launch_id", launch.ID, "error", err)
	}
	for _, sess := range sessions {
		if sess.Role != council.RoleMember {
			continue
		}
		if out := strings.TrimSpace(sc.runtime.Output(sess.ID)); out != "" {
			byAgent[sess.AgentID] = out
		}
	}

	responses := make([]prompt.Response, len(agents))
	for i, agent := range agents {
		content, ok := byAgent[agent.ID]
		if !ok {
			content = "(no response)"
		}
		responses[i] = prompt.Response{AgentName: agent.Name, Content: content}
	}
	return responses
}

// collectOutputs gathers the latest non-empty output per agent for sessions
// of the given role, in session creation order.
func (sc *StageController) collectOutputs(ctx context.Context, launchID string, role council.Role) []prompt.Response {
	sessions, err := sc.store.ListSessionsByLaunch(ctx, launchID)
	if err != nil {
		sc.logger.Warn("failed to list sessions", "launch_id", launchID, "error", err)
		return nil
	}

	type slot struct {
		name    string
		content string
	}
	order := make([]string, 0, len(sessions))
	latest := make(map[string]slot, len(sessions))
	for _, sess := range sessions {
		if sess.Role != role {
			continue
		}
		out := strings.TrimSpace(sc.runtime.Output(sess.ID))
		if out == "" {
			continue
		}
		if _, seen := latest[sess.AgentID]; !seen {
			order = append(order, sess.AgentID)
		}
		latest[sess.AgentID] = slot{name: sc.agentName(sess.AgentID), content: out}
	}

	responses := make([]prompt.Response, 0, len(order))
	for _, agentID := range order {
		s := latest[agentID]
		responses = append(responses, prompt.Response{AgentName: s.name, Content: s.content})
	}
	return responses
}

// agentName resolves an agent's display name, falling back to the id.
func (sc *StageController) agentName(agentID string) string {
	if agent, err := sc.roster.Agent(agentID); err == nil {
		return agent.Name
	}
	return agentID
}

// sessionIDs extracts the ids of successfully spawned sessions.
func sessionIDs(sessions []*council.Session) []string {
	ids := make([]string, 0, len(sessions))
	for _, sess := range sessions {
		if sess != nil {
			ids = append(ids, sess.ID)
		}
	}
	return ids
}
