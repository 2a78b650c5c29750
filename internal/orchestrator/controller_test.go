package orchestrator

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/conclave-ai/conclave/internal/council"
	"github.com/conclave-ai/conclave/internal/errors"
	"github.com/conclave-ai/conclave/internal/event"
	"github.com/conclave-ai/conclave/internal/roster"
	"github.com/conclave-ai/conclave/internal/store"
)

// testBudgets keeps stage waits short enough for tests while leaving headroom
// over scheduler jitter.
func testBudgets() Config {
	return Config{
		ResponseBudgetPerAgent:   150 * time.Millisecond,
		DiscussionBudgetPerAgent: 150 * time.Millisecond,
		DiscussionRoundFloor:     50 * time.Millisecond,
		DiscussionTotalCeiling:   5 * time.Second,
		ReviewBudgetPerAgent:     150 * time.Millisecond,
		SynthesisBudget:          150 * time.Millisecond,
		ChatStartBudget:          150 * time.Millisecond,
	}
}

// parkedBudgets are long enough that nothing auto-advances during a test.
func parkedBudgets() Config {
	return Config{
		ResponseBudgetPerAgent:   30 * time.Second,
		DiscussionBudgetPerAgent: 30 * time.Second,
		DiscussionRoundFloor:     30 * time.Second,
		DiscussionTotalCeiling:   5 * time.Minute,
		ReviewBudgetPerAgent:     30 * time.Second,
		SynthesisBudget:          30 * time.Second,
		ChatStartBudget:          30 * time.Second,
	}
}

type harness struct {
	t      *testing.T
	store  store.Store
	rt     *fakeRuntime
	agents *roster.Directory
	bus    *event.Bus
	sc     *StageController

	mu     sync.Mutex
	stages []event.StageChangedEvent
	msgs   []event.DiscussionMessageEvent
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()

	st, err := store.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	dir, err := roster.NewDirectory([]roster.Agent{
		{ID: "gpt-5", Name: "GPT-5", Command: []string{"true"}},
		{ID: "opus", Name: "Claude Opus", Command: []string{"true"}},
		{ID: "llama", Name: "Local Llama", Command: []string{"true"}},
	})
	if err != nil {
		t.Fatalf("NewDirectory() error = %v", err)
	}

	h := &harness{
		t:      t,
		store:  st,
		rt:     newFakeRuntime(),
		agents: dir,
		bus:    event.NewBus(),
	}
	h.bus.Subscribe(event.TypeStageChanged, func(ev event.Event) {
		h.mu.Lock()
		h.stages = append(h.stages, ev.(event.StageChangedEvent))
		h.mu.Unlock()
	})
	h.bus.Subscribe(event.TypeDiscussionMessage, func(ev event.Event) {
		h.mu.Lock()
		h.msgs = append(h.msgs, ev.(event.DiscussionMessageEvent))
		h.mu.Unlock()
	})

	sc, err := NewStageController(h.store, h.rt, h.agents, h.bus, cfg, nil)
	if err != nil {
		t.Fatalf("NewStageController() error = %v", err)
	}
	h.sc = sc
	t.Cleanup(sc.Close)
	return h
}

func (h *harness) createCouncil(rounds int, chairman string) *council.Council {
	h.t.Helper()
	c := council.NewCouncil("Architecture Council", []string{"gpt-5", "opus", "llama"}, chairman, rounds)
	if err := h.store.SaveCouncil(context.Background(), c); err != nil {
		h.t.Fatalf("SaveCouncil() error = %v", err)
	}
	return c
}

func (h *harness) createProject() *council.Project {
	h.t.Helper()
	p := council.NewProject("demo", h.t.TempDir())
	if err := h.store.SaveProject(context.Background(), p); err != nil {
		h.t.Fatalf("SaveProject() error = %v", err)
	}
	return p
}

// stageSequence returns the broadcast stage transitions for a launch, in order.
func (h *harness) stageSequence(launchID string) []council.Stage {
	h.mu.Lock()
	defer h.mu.Unlock()
	var seq []council.Stage
	for _, ev := range h.stages {
		if ev.LaunchID == launchID {
			seq = append(seq, ev.CurrentStage)
		}
	}
	return seq
}

// waitForStage blocks until a stage-change broadcast for the given stage has
// been observed.
func (h *harness) waitForStage(launchID string, want council.Stage, timeout time.Duration) {
	h.t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		for _, s := range h.stageSequence(launchID) {
			if s == want {
				return
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	h.t.Fatalf("launch %s never reached stage %s, saw %v", launchID, want, h.stageSequence(launchID))
}

func (h *harness) loadLaunch(launchID string) *council.Launch {
	h.t.Helper()
	launch, err := h.store.LoadLaunch(context.Background(), launchID)
	if err != nil {
		h.t.Fatalf("LoadLaunch() error = %v", err)
	}
	return launch
}

func TestNewStageControllerValidatesCollaborators(t *testing.T) {
	st, err := store.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	dir, err := roster.NewDirectory(nil)
	if err != nil {
		t.Fatalf("NewDirectory() error = %v", err)
	}
	rt := newFakeRuntime()
	bus := event.NewBus()

	tests := []struct {
		name string
		err  error
	}{
		{"nil store", func() error { _, err := NewStageController(nil, rt, dir, bus, Config{}, nil); return err }()},
		{"nil runtime", func() error { _, err := NewStageController(st, nil, dir, bus, Config{}, nil); return err }()},
		{"nil roster", func() error { _, err := NewStageController(st, rt, nil, bus, Config{}, nil); return err }()},
		{"nil bus", func() error { _, err := NewStageController(st, rt, dir, nil, Config{}, nil); return err }()},
	}
	for _, tt := range tests {
		if tt.err == nil {
			t.Errorf("%s: expected constructor error", tt.name)
		}
	}

	sc, err := NewStageController(st, rt, dir, bus, Config{}, nil)
	if err != nil {
		t.Fatalf("NewStageController() error = %v", err)
	}
	sc.Close()
}

func TestConfigApplyDefaults(t *testing.T) {
	var cfg Config
	cfg.applyDefaults()
	if cfg != DefaultConfig() {
		t.Errorf("applyDefaults() on zero config = %+v, want %+v", cfg, DefaultConfig())
	}

	cfg = Config{SynthesisBudget: time.Hour}
	cfg.applyDefaults()
	if cfg.SynthesisBudget != time.Hour {
		t.Errorf("SynthesisBudget = %v, want 1h preserved", cfg.SynthesisBudget)
	}
	if cfg.ResponseBudgetPerAgent != DefaultConfig().ResponseBudgetPerAgent {
		t.Errorf("ResponseBudgetPerAgent = %v, want default", cfg.ResponseBudgetPerAgent)
	}
}

func TestLaunchRunsFullPipeline(t *testing.T) {
	h := newHarness(t, testBudgets())
	h.rt.exitOnStart[council.RoleMember] = true
	h.rt.exitOnStart[council.RoleReviewer] = true
	h.rt.exitOnStart[council.RoleChairman] = true
	h.rt.outputByRole[council.RoleMember] = "initial position"
	h.rt.outputByRole[council.RoleReviewer] = "peer verdict"
	h.rt.outputByRole[council.RoleChairman] = "the final synthesis"

	c := h.createCouncil(0, "opus")
	p := h.createProject()

	launch, err := h.sc.Launch(context.Background(), c.ID, p.ID, "Should we rewrite the scheduler?")
	if err != nil {
		t.Fatalf("Launch() error = %v", err)
	}
	if launch.Stage != council.StageResponding {
		t.Errorf("launch.Stage = %s, want %s", launch.Stage, council.StageResponding)
	}

	h.waitForStage(launch.ID, council.StageComplete, 10*time.Second)

	final := h.loadLaunch(launch.ID)
	if final.Synthesis != "the final synthesis" {
		t.Errorf("Synthesis = %q, want %q", final.Synthesis, "the final synthesis")
	}

	// Zero rounds: discussion is skipped entirely.
	want := []council.Stage{
		council.StageResponding,
		council.StageReviewing,
		council.StageSynthesizing,
		council.StageComplete,
	}
	got := h.stageSequence(launch.ID)
	if len(got) != len(want) {
		t.Fatalf("stage sequence = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("stage[%d] = %s, want %s", i, got[i], want[i])
		}
	}

	sessions, err := h.store.ListSessionsByLaunch(context.Background(), launch.ID)
	if err != nil {
		t.Fatalf("ListSessionsByLaunch() error = %v", err)
	}
	byRole := make(map[council.Role]int)
	for _, sess := range sessions {
		byRole[sess.Role]++
	}
	if byRole[council.RoleMember] != 3 || byRole[council.RoleReviewer] != 3 || byRole[council.RoleChairman] != 1 {
		t.Errorf("sessions by role = %v, want 3 members, 3 reviewers, 1 chairman", byRole)
	}

	// Member prompts carry the question; the chairman prompt carries the
	// member and review material.
	memberIDs := h.rt.sessionsWithRole(council.RoleMember)
	if len(memberIDs) != 3 {
		t.Fatalf("member sessions started = %d, want 3", len(memberIDs))
	}
	if !strings.Contains(h.rt.promptFor(memberIDs[0]), "Should we rewrite the scheduler?") {
		t.Error("member prompt missing the question")
	}
	chairmanIDs := h.rt.sessionsWithRole(council.RoleChairman)
	if len(chairmanIDs) != 1 {
		t.Fatalf("chairman sessions started = %d, want 1", len(chairmanIDs))
	}
	synthPrompt := h.rt.promptFor(chairmanIDs[0])
	if !strings.Contains(synthPrompt, "initial position") || !strings.Contains(synthPrompt, "peer verdict") {
		t.Error("chairman prompt missing member or review material")
	}
}

func TestLaunchValidatesCouncilAndProject(t *testing.T) {
	h := newHarness(t, testBudgets())
	c := h.createCouncil(0, "")
	p := h.createProject()

	if _, err := h.sc.Launch(context.Background(), "missing", p.ID, "q"); !errors.IsNotFound(err) {
		t.Errorf("Launch(unknown council) error = %v, want not found", err)
	}
	if _, err := h.sc.Launch(context.Background(), c.ID, "missing", "q"); !errors.IsNotFound(err) {
		t.Errorf("Launch(unknown project) error = %v, want not found", err)
	}
}

func TestStageGuardsRejectIllegalOperations(t *testing.T) {
	h := newHarness(t, testBudgets())
	h.rt.exitOnStart[council.RoleMember] = true
	h.rt.exitOnStart[council.RoleReviewer] = true
	h.rt.exitOnStart[council.RoleChairman] = true
	h.rt.outputByRole[council.RoleChairman] = "done"

	c := h.createCouncil(0, "")
	p := h.createProject()
	launch, err := h.sc.Launch(context.Background(), c.ID, p.ID, "q")
	if err != nil {
		t.Fatalf("Launch() error = %v", err)
	}
	h.waitForStage(launch.ID, council.StageComplete, 10*time.Second)

	ctx := context.Background()
	if err := h.sc.TriggerReview(ctx, launch.ID); !errors.IsInvalidState(err) {
		t.Errorf("TriggerReview on complete launch: error = %v, want invalid state", err)
	}
	if err := h.sc.TriggerSynthesis(ctx, launch.ID, ""); !errors.IsInvalidState(err) {
		t.Errorf("TriggerSynthesis on complete launch: error = %v, want invalid state", err)
	}
	if err := h.sc.Abort(ctx, launch.ID); !errors.IsInvalidState(err) {
		t.Errorf("Abort on complete launch: error = %v, want invalid state", err)
	}

	if err := h.sc.TriggerReview(ctx, "missing"); !errors.IsNotFound(err) {
		t.Errorf("TriggerReview(unknown launch) error = %v, want not found", err)
	}
}

func TestManualReviewSupersedesAutoAdvance(t *testing.T) {
	cfg := testBudgets()
	cfg.ResponseBudgetPerAgent = 50 * time.Millisecond
	h := newHarness(t, cfg)
	// Members stay parked; reviewers and chairman finish instantly.
	h.rt.exitOnStart[council.RoleReviewer] = true
	h.rt.exitOnStart[council.RoleChairman] = true
	h.rt.outputByRole[council.RoleReviewer] = "verdict"
	h.rt.outputByRole[council.RoleChairman] = "synthesis"

	// One discussion round is configured: if the member watcher were to win,
	// the launch would enter the discussing stage.
	c := h.createCouncil(1, "")
	p := h.createProject()
	launch, err := h.sc.Launch(context.Background(), c.ID, p.ID, "q")
	if err != nil {
		t.Fatalf("Launch() error = %v", err)
	}

	if err := h.sc.TriggerReview(context.Background(), launch.ID); err != nil {
		t.Fatalf("TriggerReview() error = %v", err)
	}
	h.waitForStage(launch.ID, council.StageComplete, 10*time.Second)

	// Let the member watcher fire (50ms x 3 members) and observe the stale
	// stage.
	time.Sleep(400 * time.Millisecond)

	for _, s := range h.stageSequence(launch.ID) {
		if s == council.StageDiscussing {
			t.Fatalf("stage sequence %v entered discussing after manual review", h.stageSequence(launch.ID))
		}
	}
	reviewing := 0
	for _, s := range h.stageSequence(launch.ID) {
		if s == council.StageReviewing {
			reviewing++
		}
	}
	if reviewing != 1 {
		t.Errorf("reviewing transitions = %d, want 1", reviewing)
	}
}

func TestAbortStopsSessionsAndCompletes(t *testing.T) {
	h := newHarness(t, parkedBudgets())
	c := h.createCouncil(0, "")
	p := h.createProject()

	launch, err := h.sc.Launch(context.Background(), c.ID, p.ID, "q")
	if err != nil {
		t.Fatalf("Launch() error = %v", err)
	}
	if n := h.rt.runningCount(); n != 3 {
		t.Fatalf("running sessions = %d, want 3", n)
	}

	if err := h.sc.Abort(context.Background(), launch.ID); err != nil {
		t.Fatalf("Abort() error = %v", err)
	}

	final := h.loadLaunch(launch.ID)
	if final.Stage != council.StageComplete {
		t.Errorf("Stage = %s, want %s", final.Stage, council.StageComplete)
	}
	if n := h.rt.runningCount(); n != 0 {
		t.Errorf("running sessions after abort = %d, want 0", n)
	}
	if !strings.HasPrefix(final.Synthesis, abortedSynthesisPrefix) {
		t.Errorf("Synthesis = %q, want %q prefix", final.Synthesis, abortedSynthesisPrefix)
	}
	// No session produced output, so the body is the no-responses marker.
	if !strings.Contains(final.Synthesis, noResponsesSentinel) {
		t.Errorf("Synthesis = %q, want it to contain %q", final.Synthesis, noResponsesSentinel)
	}

	if err := h.sc.Abort(context.Background(), launch.ID); !errors.IsInvalidState(err) {
		t.Errorf("second Abort error = %v, want invalid state", err)
	}
}

func TestAbortPrefersReviewerOutput(t *testing.T) {
	cfg := parkedBudgets()
	cfg.ResponseBudgetPerAgent = 50 * time.Millisecond
	h := newHarness(t, cfg)
	h.rt.exitOnStart[council.RoleMember] = true
	h.rt.outputByRole[council.RoleMember] = "member thoughts"
	// Reviewers park with output already captured.
	h.rt.outputByRole[council.RoleReviewer] = "reviewer verdict"

	c := h.createCouncil(0, "")
	p := h.createProject()
	launch, err := h.sc.Launch(context.Background(), c.ID, p.ID, "q")
	if err != nil {
		t.Fatalf("Launch() error = %v", err)
	}
	h.waitForStage(launch.ID, council.StageReviewing, 10*time.Second)

	if err := h.sc.Abort(context.Background(), launch.ID); err != nil {
		t.Fatalf("Abort() error = %v", err)
	}

	final := h.loadLaunch(launch.ID)
	if !strings.HasPrefix(final.Synthesis, abortedSynthesisPrefix) {
		t.Errorf("Synthesis = %q, want %q prefix", final.Synthesis, abortedSynthesisPrefix)
	}
	if !strings.Contains(final.Synthesis, "reviewer verdict") {
		t.Errorf("Synthesis = %q, want reviewer output", final.Synthesis)
	}
	if strings.Contains(final.Synthesis, "member thoughts") {
		t.Errorf("Synthesis = %q, want reviewer output to shadow member output", final.Synthesis)
	}
}

func TestSynthesisFallsBackWhenChairmanCannotStart(t *testing.T) {
	h := newHarness(t, testBudgets())
	h.rt.exitOnStart[council.RoleMember] = true
	h.rt.exitOnStart[council.RoleReviewer] = true
	h.rt.failStart[council.RoleChairman] = true
	h.rt.outputByRole[council.RoleMember] = "member thoughts"
	h.rt.outputByRole[council.RoleReviewer] = "peer verdict"

	c := h.createCouncil(0, "opus")
	p := h.createProject()
	launch, err := h.sc.Launch(context.Background(), c.ID, p.ID, "q")
	if err != nil {
		t.Fatalf("Launch() error = %v", err)
	}
	h.waitForStage(launch.ID, council.StageComplete, 10*time.Second)

	final := h.loadLaunch(launch.ID)
	if !strings.Contains(final.Synthesis, "peer verdict") {
		t.Errorf("Synthesis = %q, want aggregated reviews", final.Synthesis)
	}
	if strings.HasPrefix(final.Synthesis, abortedSynthesisPrefix) {
		t.Errorf("Synthesis = %q, must not carry the abort marker", final.Synthesis)
	}

	// The synthesizing stage is never entered when the chairman cannot start.
	for _, s := range h.stageSequence(launch.ID) {
		if s == council.StageSynthesizing {
			t.Fatalf("stage sequence %v entered synthesizing", h.stageSequence(launch.ID))
		}
	}
}

func TestEmptyChairmanOutputGetsMarker(t *testing.T) {
	h := newHarness(t, testBudgets())
	h.rt.exitOnStart[council.RoleMember] = true
	h.rt.exitOnStart[council.RoleReviewer] = true
	h.rt.exitOnStart[council.RoleChairman] = true

	c := h.createCouncil(0, "opus")
	p := h.createProject()
	launch, err := h.sc.Launch(context.Background(), c.ID, p.ID, "q")
	if err != nil {
		t.Fatalf("Launch() error = %v", err)
	}
	h.waitForStage(launch.ID, council.StageComplete, 10*time.Second)

	if got := h.loadLaunch(launch.ID).Synthesis; got != emptySynthesisMarker {
		t.Errorf("Synthesis = %q, want %q", got, emptySynthesisMarker)
	}
}

func TestChairmanTimeoutCompletesWithPartialOutput(t *testing.T) {
	cfg := testBudgets()
	cfg.SynthesisBudget = 100 * time.Millisecond
	h := newHarness(t, cfg)
	h.rt.exitOnStart[council.RoleMember] = true
	h.rt.exitOnStart[council.RoleReviewer] = true
	// Chairman parks but its partial output is already captured.
	h.rt.outputByRole[council.RoleChairman] = "partial synthesis"

	c := h.createCouncil(0, "opus")
	p := h.createProject()
	launch, err := h.sc.Launch(context.Background(), c.ID, p.ID, "q")
	if err != nil {
		t.Fatalf("Launch() error = %v", err)
	}
	h.waitForStage(launch.ID, council.StageComplete, 10*time.Second)

	if got := h.loadLaunch(launch.ID).Synthesis; got != "partial synthesis" {
		t.Errorf("Synthesis = %q, want %q", got, "partial synthesis")
	}
	chairmanIDs := h.rt.sessionsWithRole(council.RoleChairman)
	if len(chairmanIDs) != 1 {
		t.Fatalf("chairman sessions = %d, want 1", len(chairmanIDs))
	}
	if h.rt.stopCount(chairmanIDs[0]) != 1 {
		t.Errorf("chairman stop count = %d, want 1", h.rt.stopCount(chairmanIDs[0]))
	}
}

func TestLaunchWithNoResolvableAgents(t *testing.T) {
	h := newHarness(t, testBudgets())
	c := council.NewCouncil("Ghost Council", []string{"nobody", "missing"}, "", 0)
	if err := h.store.SaveCouncil(context.Background(), c); err != nil {
		t.Fatalf("SaveCouncil() error = %v", err)
	}
	p := h.createProject()

	launch, err := h.sc.Launch(context.Background(), c.ID, p.ID, "q")
	if err != nil {
		t.Fatalf("Launch() error = %v", err)
	}
	h.waitForStage(launch.ID, council.StageComplete, 10*time.Second)

	if got := h.loadLaunch(launch.ID).Synthesis; got != noResponsesSentinel {
		t.Errorf("Synthesis = %q, want %q", got, noResponsesSentinel)
	}
}

func TestMemberSpawnFailuresDegradeToPlaceholders(t *testing.T) {
	h := newHarness(t, testBudgets())
	h.rt.failStart[council.RoleMember] = true
	h.rt.exitOnStart[council.RoleReviewer] = true
	h.rt.exitOnStart[council.RoleChairman] = true
	h.rt.outputByRole[council.RoleChairman] = "synthesis anyway"

	c := h.createCouncil(0, "opus")
	p := h.createProject()
	launch, err := h.sc.Launch(context.Background(), c.ID, p.ID, "q")
	if err != nil {
		t.Fatalf("Launch() error = %v", err)
	}
	h.waitForStage(launch.ID, council.StageComplete, 10*time.Second)

	// The responding broadcast carries no session ids when every spawn failed.
	h.mu.Lock()
	var responding *event.StageChangedEvent
	for i := range h.stages {
		if h.stages[i].LaunchID == launch.ID && h.stages[i].CurrentStage == council.StageResponding {
			responding = &h.stages[i]
			break
		}
	}
	h.mu.Unlock()
	if responding == nil {
		t.Fatal("no responding stage broadcast observed")
	}
	if len(responding.SessionIDs) != 0 {
		t.Errorf("responding SessionIDs = %v, want none", responding.SessionIDs)
	}

	// Reviewers still run, each seeing placeholder member responses.
	reviewerIDs := h.rt.sessionsWithRole(council.RoleReviewer)
	if len(reviewerIDs) != 3 {
		t.Fatalf("reviewer sessions = %d, want 3", len(reviewerIDs))
	}
	if !strings.Contains(h.rt.promptFor(reviewerIDs[0]), "(no response)") {
		t.Error("review prompt missing the member placeholder")
	}

	if got := h.loadLaunch(launch.ID).Synthesis; got != "synthesis anyway" {
		t.Errorf("Synthesis = %q, want %q", got, "synthesis anyway")
	}
}

func TestFollowUpChatLifecycle(t *testing.T) {
	cfg := testBudgets()
	cfg.SynthesisBudget = 100 * time.Millisecond
	h := newHarness(t, cfg)
	h.rt.exitOnStart[council.RoleMember] = true
	h.rt.exitOnStart[council.RoleReviewer] = true
	// Chairman sessions park, so the chat session stays alive for reuse. The
	// synthesis session itself is reaped by its budget.
	h.rt.outputByRole[council.RoleChairman] = "final answer"

	c := h.createCouncil(0, "opus")
	p := h.createProject()
	launch, err := h.sc.Launch(context.Background(), c.ID, p.ID, "Should we rewrite the scheduler?")
	if err != nil {
		t.Fatalf("Launch() error = %v", err)
	}
	h.waitForStage(launch.ID, council.StageComplete, 10*time.Second)

	ctx := context.Background()
	first, err := h.sc.StartFollowUpChat(ctx, launch.ID, "but why?")
	if err != nil {
		t.Fatalf("StartFollowUpChat() error = %v", err)
	}
	if got := h.rt.messagesFor(first); len(got) != 1 || got[0] != "but why?" {
		t.Errorf("messages = %v, want [but why?]", got)
	}
	seed := h.rt.promptFor(first)
	if !strings.Contains(seed, "final answer") || !strings.Contains(seed, "Should we rewrite the scheduler?") {
		t.Error("chat seed missing synthesis or original question")
	}
	if got := h.loadLaunch(launch.ID).ChatSessionID; got != first {
		t.Errorf("ChatSessionID = %q, want %q", got, first)
	}

	// A live chat session is reused.
	second, err := h.sc.StartFollowUpChat(ctx, launch.ID, "more detail")
	if err != nil {
		t.Fatalf("StartFollowUpChat() reuse error = %v", err)
	}
	if second != first {
		t.Errorf("reuse returned session %q, want %q", second, first)
	}
	if got := h.rt.messagesFor(first); len(got) != 2 {
		t.Errorf("messages after reuse = %v, want 2 entries", got)
	}

	// A dead chat session is replaced.
	h.rt.finish(first, "chat reply")
	third, err := h.sc.StartFollowUpChat(ctx, launch.ID, "one more thing")
	if err != nil {
		t.Fatalf("StartFollowUpChat() replacement error = %v", err)
	}
	if third == first {
		t.Error("dead chat session was reused")
	}
	if got := h.loadLaunch(launch.ID).ChatSessionID; got != third {
		t.Errorf("ChatSessionID = %q, want %q", got, third)
	}
}

func TestFollowUpChatRequiresCompleteStage(t *testing.T) {
	h := newHarness(t, parkedBudgets())
	c := h.createCouncil(0, "")
	p := h.createProject()
	launch, err := h.sc.Launch(context.Background(), c.ID, p.ID, "q")
	if err != nil {
		t.Fatalf("Launch() error = %v", err)
	}

	if _, err := h.sc.StartFollowUpChat(context.Background(), launch.ID, "hi"); !errors.IsInvalidState(err) {
		t.Errorf("StartFollowUpChat on responding launch: error = %v, want invalid state", err)
	}
}

func TestFollowUpChatRequiresSynthesis(t *testing.T) {
	h := newHarness(t, testBudgets())
	c := h.createCouncil(0, "")
	p := h.createProject()

	launch := council.NewLaunch(c, p.ID, "q")
	launch.Stage = council.StageComplete
	if err := h.store.SaveLaunch(context.Background(), launch); err != nil {
		t.Fatalf("SaveLaunch() error = %v", err)
	}

	_, err := h.sc.StartFollowUpChat(context.Background(), launch.ID, "hi")
	if !errors.Is(err, errors.ErrNoSynthesis) {
		t.Errorf("StartFollowUpChat error = %v, want ErrNoSynthesis", err)
	}
}

func TestCloseLeavesLaunchInPlace(t *testing.T) {
	h := newHarness(t, parkedBudgets())
	c := h.createCouncil(0, "")
	p := h.createProject()
	launch, err := h.sc.Launch(context.Background(), c.ID, p.ID, "q")
	if err != nil {
		t.Fatalf("Launch() error = %v", err)
	}

	done := make(chan struct{})
	go func() {
		h.sc.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Close() did not return")
	}

	// Shutdown does not advance the stage machine.
	if got := h.loadLaunch(launch.ID).Stage; got != council.StageResponding {
		t.Errorf("Stage after Close = %s, want %s", got, council.StageResponding)
	}
}
