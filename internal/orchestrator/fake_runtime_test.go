package orchestrator

import (
	"context"
	"fmt"
	"sync"

	"github.com/conclave-ai/conclave/internal/council"
	"github.com/conclave-ai/conclave/internal/runtime"
)

// fakeRuntime is a scripted in-memory session runtime. Tests choose per role
// whether sessions exit the moment they start, refuse to start, and what
// output they carry; parked sessions are finished explicitly with finish.
type fakeRuntime struct {
	mu         sync.Mutex
	procs      map[string]*fakeProc
	subs       map[string]map[string]runtime.EventHandler
	subSeq     int
	startOrder []string

	outputByRole map[council.Role]string
	exitOnStart  map[council.Role]bool
	failStart    map[council.Role]bool
	messages     map[string][]string
	stopCounts   map[string]int
}

type fakeProc struct {
	sess    council.Session
	prompt  string
	output  string
	running bool
}

func newFakeRuntime() *fakeRuntime {
	return &fakeRuntime{
		procs:        make(map[string]*fakeProc),
		subs:         make(map[string]map[string]runtime.EventHandler),
		outputByRole: make(map[council.Role]string),
		exitOnStart:  make(map[council.Role]bool),
		failStart:    make(map[council.Role]bool),
		messages:     make(map[string][]string),
		stopCounts:   make(map[string]int),
	}
}

var _ runtime.Runtime = (*fakeRuntime)(nil)

func (f *fakeRuntime) StartProcess(ctx context.Context, sess *council.Session, prompt string) error {
	f.mu.Lock()
	if f.failStart[sess.Role] {
		f.mu.Unlock()
		return fmt.Errorf("scripted start failure for role %s", sess.Role)
	}
	proc := &fakeProc{
		sess:    *sess,
		prompt:  prompt,
		output:  f.outputByRole[sess.Role],
		running: true,
	}
	exits := f.exitOnStart[sess.Role]
	if exits {
		proc.running = false
	}
	f.procs[sess.ID] = proc
	f.startOrder = append(f.startOrder, sess.ID)
	f.mu.Unlock()

	if exits {
		f.emit(sess.ID, runtime.Exited{Code: 0})
	}
	return nil
}

func (f *fakeRuntime) StopProcess(id string) error {
	f.mu.Lock()
	proc, ok := f.procs[id]
	if !ok || !proc.running {
		f.mu.Unlock()
		return nil
	}
	proc.running = false
	f.stopCounts[id]++
	f.mu.Unlock()

	f.emit(id, runtime.Stopped{})
	return nil
}

func (f *fakeRuntime) IsRunning(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	proc, ok := f.procs[id]
	return ok && proc.running
}

func (f *fakeRuntime) Subscribe(id string, h runtime.EventHandler) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subSeq++
	token := fmt.Sprintf("sub-%d", f.subSeq)
	if f.subs[id] == nil {
		f.subs[id] = make(map[string]runtime.EventHandler)
	}
	f.subs[id][token] = h
	return token
}

func (f *fakeRuntime) Unsubscribe(id, token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.subs[id], token)
}

func (f *fakeRuntime) SendMessage(id, content string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	proc, ok := f.procs[id]
	if !ok || !proc.running {
		return false
	}
	f.messages[id] = append(f.messages[id], content)
	return true
}

func (f *fakeRuntime) Output(id string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if proc, ok := f.procs[id]; ok {
		return proc.output
	}
	return ""
}

// finish marks a running session done with the given output and emits Exited.
// Finishing an unknown or already-finished session is a no-op.
func (f *fakeRuntime) finish(id, output string) {
	f.mu.Lock()
	proc, ok := f.procs[id]
	if !ok || !proc.running {
		f.mu.Unlock()
		return
	}
	proc.output = output
	proc.running = false
	f.mu.Unlock()

	f.emit(id, runtime.Exited{Code: 0})
}

// addRunning registers a parked session without going through StartProcess.
func (f *fakeRuntime) addRunning(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.procs[id] = &fakeProc{sess: council.Session{ID: id}, running: true}
	f.startOrder = append(f.startOrder, id)
}

// addFinished registers a session that already exited before anyone waited.
func (f *fakeRuntime) addFinished(id, output string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.procs[id] = &fakeProc{sess: council.Session{ID: id}, output: output}
	f.startOrder = append(f.startOrder, id)
}

// emit snapshots the session's handlers and invokes them without the lock.
func (f *fakeRuntime) emit(id string, ev runtime.Event) {
	f.mu.Lock()
	handlers := make([]runtime.EventHandler, 0, len(f.subs[id]))
	for _, h := range f.subs[id] {
		handlers = append(handlers, h)
	}
	f.mu.Unlock()

	for _, h := range handlers {
		h(id, ev)
	}
}

// sessionsWithRole returns ids of sessions started with the role, in start order.
func (f *fakeRuntime) sessionsWithRole(role council.Role) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []string
	for _, id := range f.startOrder {
		if f.procs[id].sess.Role == role {
			ids = append(ids, id)
		}
	}
	return ids
}

// promptFor returns the prompt a session was started with.
func (f *fakeRuntime) promptFor(id string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if proc, ok := f.procs[id]; ok {
		return proc.prompt
	}
	return ""
}

// runningCount returns how many sessions are currently running.
func (f *fakeRuntime) runningCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, proc := range f.procs {
		if proc.running {
			n++
		}
	}
	return n
}

// stopCount returns how many times StopProcess terminated the session.
func (f *fakeRuntime) stopCount(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopCounts[id]
}

// messagesFor returns the messages delivered to a session.
func (f *fakeRuntime) messagesFor(id string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.messages[id]))
	copy(out, f.messages[id])
	return out
}
