package orchestrator

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/conclave-ai/conclave/internal/logging"
	"github.com/conclave-ai/conclave/internal/runtime"
)

// WaitResult partitions a cohort of session ids by whether a completion event
// was observed before the timeout. Every input id appears in exactly one list.
type WaitResult struct {
	Completed []string
	TimedOut  []string
}

// Waiter blocks until a cohort of sessions completes or a timeout elapses.
// Timing out is a normal outcome, not an error: sessions still pending at the
// deadline are reported in TimedOut and it is the caller's job to stop them.
type Waiter struct {
	runtime runtime.Runtime
	logger  *logging.Logger
}

// NewWaiter creates a Waiter over the given runtime.
func NewWaiter(rt runtime.Runtime, logger *logging.Logger) *Waiter {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Waiter{
		runtime: rt,
		logger:  logger.WithComponent("waiter"),
	}
}

// Wait blocks until every session in ids emits a completion event, the
// timeout elapses, or ctx is canceled. Cancellation settles exactly like a
// timeout: whatever is still pending lands in TimedOut.
//
// Subscriptions are registered before liveness is checked, so a session that
// exits between the two cannot be missed. Duplicate completion events count
// once. An empty cohort resolves immediately without arming a timer.
func (w *Waiter) Wait(ctx context.Context, ids []string, timeout time.Duration) WaitResult {
	if len(ids) == 0 {
		return WaitResult{}
	}

	var (
		mu        sync.Mutex
		pending   = make(map[string]bool, len(ids))
		completed = make([]string, 0, len(ids))
		emptyOnce sync.Once
		emptyCh   = make(chan struct{})
	)
	for _, id := range ids {
		pending[id] = true
	}

	complete := func(id string) {
		mu.Lock()
		defer mu.Unlock()
		if !pending[id] {
			return
		}
		delete(pending, id)
		completed = append(completed, id)
		if len(pending) == 0 {
			emptyOnce.Do(func() { close(emptyCh) })
		}
	}

	type subscription struct {
		sessionID string
		token     string
	}
	subs := make([]subscription, 0, len(ids))
	for _, id := range ids {
		token := w.runtime.Subscribe(id, func(sessionID string, ev runtime.Event) {
			switch ev.(type) {
			case runtime.Exited, runtime.Stopped:
				complete(sessionID)
			}
		})
		subs = append(subs, subscription{sessionID: id, token: token})
	}
	defer func() {
		for _, s := range subs {
			w.runtime.Unsubscribe(s.sessionID, s.token)
		}
	}()

	// Liveness check after subscribing: anything already finished completes
	// here instead of via an event we were not yet listening for.
	for _, id := range ids {
		if !w.runtime.IsRunning(id) {
			complete(id)
		}
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-emptyCh:
	case <-timer.C:
	case <-ctx.Done():
	}

	mu.Lock()
	defer mu.Unlock()

	result := WaitResult{Completed: completed}
	for id := range pending {
		result.TimedOut = append(result.TimedOut, id)
	}
	sort.Strings(result.TimedOut)

	if len(result.TimedOut) > 0 {
		w.logger.Debug("wait settled with pending sessions",
			"completed", len(result.Completed),
			"timed_out", len(result.TimedOut),
		)
	}
	return result
}
