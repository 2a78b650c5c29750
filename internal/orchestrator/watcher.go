package orchestrator

import (
	"context"
	"strings"
	"time"

	"github.com/conclave-ai/conclave/internal/council"
)

// safetyTimeout scales a per-agent budget by cohort size. A cohort smaller
// than one still carries a single budget so every wait is bounded.
func safetyTimeout(perAgent time.Duration, cohort int) time.Duration {
	if cohort < 1 {
		cohort = 1
	}
	return perAgent * time.Duration(cohort)
}

// autoAdvance registers a watcher goroutine that waits for a session cohort
// and then invokes the stage continuation. The continuation is skipped when
// the launch moved off the expected stage while waiting, which happens after
// an abort or a manual trigger.
func (sc *StageController) autoAdvance(launchID string, role council.Role, ids []string, continuation func(ctx context.Context)) {
	var expected council.Stage
	var perAgent time.Duration
	switch role {
	case council.RoleReviewer:
		expected = council.StageReviewing
		perAgent = sc.config.ReviewBudgetPerAgent
	default:
		expected = council.StageResponding
		perAgent = sc.config.ResponseBudgetPerAgent
	}
	timeout := safetyTimeout(perAgent, len(ids))

	sc.wg.Add(1)
	go func() {
		defer sc.wg.Done()

		result := sc.waiter.Wait(sc.ctx, ids, timeout)
		if sc.ctx.Err() != nil {
			sc.logger.Debug("controller closing, leaving launch in place", "launch_id", launchID)
			return
		}
		for _, id := range result.TimedOut {
			sc.recordLog(sc.ctx, launchID, council.LogWarn, "session timed out", id)
			if err := sc.runtime.StopProcess(id); err != nil {
				sc.logger.Warn("failed to stop timed-out session", "session_id", id, "error", err)
			}
		}

		sc.mu.Lock()
		launch, err := sc.store.LoadLaunch(sc.ctx, launchID)
		if err != nil {
			sc.mu.Unlock()
			sc.logger.Warn("auto-advance lost its launch", "launch_id", launchID, "error", err)
			return
		}
		stage := launch.Stage
		sc.mu.Unlock()

		if stage != expected {
			sc.logger.Debug("skipping auto-advance",
				"launch_id", launchID, "expected_stage", expected, "stage", stage)
			return
		}
		continuation(sc.ctx)
	}()
}

// watchChairman waits for the synthesis session and completes the launch
// with its output, or with an explicit marker when the session produced
// nothing. A launch already moved off synthesizing (aborted) is left alone.
func (sc *StageController) watchChairman(launchID, sessionID string) {
	defer sc.wg.Done()

	result := sc.waiter.Wait(sc.ctx, []string{sessionID}, sc.config.SynthesisBudget)
	if sc.ctx.Err() != nil {
		sc.logger.Debug("controller closing, leaving launch in place", "launch_id", launchID)
		return
	}
	if len(result.TimedOut) > 0 {
		sc.recordLog(sc.ctx, launchID, council.LogWarn, "chairman session timed out", sessionID)
		if err := sc.runtime.StopProcess(sessionID); err != nil {
			sc.logger.Warn("failed to stop chairman session", "session_id", sessionID, "error", err)
		}
	}

	sc.mu.Lock()
	defer sc.mu.Unlock()

	launch, err := sc.store.LoadLaunch(sc.ctx, launchID)
	if err != nil {
		sc.logger.Warn("chairman watcher lost its launch", "launch_id", launchID, "error", err)
		return
	}
	if launch.Stage != council.StageSynthesizing {
		sc.logger.Debug("launch moved past synthesizing, leaving it alone",
			"launch_id", launchID, "stage", launch.Stage)
		return
	}

	synthesis := strings.TrimSpace(sc.runtime.Output(sessionID))
	if synthesis == "" {
		synthesis = emptySynthesisMarker
	}
	if err := sc.completeLaunchLocked(sc.ctx, launch, synthesis, nil); err != nil {
		sc.logger.Error("failed to complete launch", "launch_id", launchID, "error", err)
	}
}
