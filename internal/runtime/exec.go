package runtime

import (
	"bufio"
	"context"
	"io"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/conclave-ai/conclave/internal/council"
	"github.com/conclave-ai/conclave/internal/errors"
	"github.com/conclave-ai/conclave/internal/logging"
	"github.com/conclave-ai/conclave/internal/roster"
)

// AgentSource resolves agent ids to their runnable roster entries.
type AgentSource interface {
	Agent(id string) (*roster.Agent, error)
}

// WorkdirFunc resolves the working directory a launch's sessions run in.
type WorkdirFunc func(launchID string) (string, error)

// ExecConfig holds tunables for the exec-backed runtime.
type ExecConfig struct {
	// OutputBufferSize is how many bytes of stdout are retained per session.
	OutputBufferSize int
	// StopGrace is how long StopProcess waits after an interrupt before
	// killing the process.
	StopGrace time.Duration
}

// DefaultExecConfig returns the default exec runtime configuration.
func DefaultExecConfig() ExecConfig {
	return ExecConfig{
		OutputBufferSize: 256 * 1024, // 256KB
		StopGrace:        2 * time.Second,
	}
}

// ExecRuntime runs each worker session as a local subprocess of the agent's
// configured command. The prompt is written to stdin (which stays open for
// follow-up messages), stdout is captured as the assistant output, and exit
// is reported through typed events.
type ExecRuntime struct {
	agents  AgentSource
	workdir WorkdirFunc
	config  ExecConfig
	logger  *logging.Logger

	mu      sync.RWMutex
	procs   map[string]*execProc
	subs    map[string][]execSub
	nextSub atomic.Uint64
}

// execSub is one registered event handler.
type execSub struct {
	token   string
	handler EventHandler
}

// execProc tracks one running (or finished) session process.
type execProc struct {
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	output  *outputBuffer
	started time.Time
	done    chan struct{} // closed when the process has exited
	ioWg    sync.WaitGroup

	mu      sync.Mutex
	running bool
}

func (p *execProc) isRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *execProc) setDone() {
	p.mu.Lock()
	p.running = false
	p.mu.Unlock()
}

// NewExecRuntime creates an exec-backed runtime. The workdir resolver maps a
// launch id to the directory its sessions run in (typically the project's
// working directory). A nil logger discards logs.
func NewExecRuntime(agents AgentSource, workdir WorkdirFunc, config ExecConfig, logger *logging.Logger) *ExecRuntime {
	if logger == nil {
		logger = logging.NopLogger()
	}
	if config.OutputBufferSize <= 0 {
		config.OutputBufferSize = DefaultExecConfig().OutputBufferSize
	}
	if config.StopGrace <= 0 {
		config.StopGrace = DefaultExecConfig().StopGrace
	}
	return &ExecRuntime{
		agents:  agents,
		workdir: workdir,
		config:  config,
		logger:  logger.WithComponent("runtime"),
		procs:   make(map[string]*execProc),
		subs:    make(map[string][]execSub),
	}
}

// StartProcess launches the agent's command for the given session.
func (r *ExecRuntime) StartProcess(ctx context.Context, sess *council.Session, prompt string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	agent, err := r.agents.Agent(sess.AgentID)
	if err != nil {
		return err
	}

	dir, err := r.workdir(sess.LaunchID)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.procs[sess.ID]; ok && existing.isRunning() {
		return errors.NewRuntimeError("session already running", nil).
			WithSessionID(sess.ID).
			WithAgentID(sess.AgentID)
	}

	cmd := exec.Command(agent.Command[0], agent.Command[1:]...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(),
		"CONCLAVE_SESSION_ID="+sess.ID,
		"CONCLAVE_ROLE="+string(sess.Role),
	)
	if agent.Model != "" {
		cmd.Env = append(cmd.Env, "CONCLAVE_MODEL="+agent.Model)
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return errors.NewRuntimeError("failed to open stdin pipe", err).WithSessionID(sess.ID)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return errors.NewRuntimeError("failed to open stdout pipe", err).WithSessionID(sess.ID)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return errors.NewRuntimeError("failed to open stderr pipe", err).WithSessionID(sess.ID)
	}

	if err := cmd.Start(); err != nil {
		return errors.NewRuntimeError("failed to start agent process", err).
			WithSessionID(sess.ID).
			WithAgentID(sess.AgentID)
	}

	p := &execProc{
		cmd:     cmd,
		stdin:   stdin,
		output:  newOutputBuffer(r.config.OutputBufferSize),
		started: time.Now(),
		done:    make(chan struct{}),
		running: true,
	}
	r.procs[sess.ID] = p

	r.logger.Debug("session process started",
		"session_id", sess.ID, "agent_id", sess.AgentID, "role", string(sess.Role), "pid", cmd.Process.Pid)

	// Deliver the prompt without blocking on a full pipe. Stdin stays open
	// for SendMessage.
	go func() {
		if _, err := io.WriteString(stdin, prompt+"\n"); err != nil {
			r.logger.Debug("prompt delivery failed", "session_id", sess.ID, "error", err)
		}
	}()

	p.ioWg.Add(2)
	go r.captureOutput(sess.ID, p, stdout)
	go r.drainStderr(sess.ID, p, stderr)
	go r.waitProcess(sess.ID, p)

	return nil
}

// captureOutput copies stdout into the session's ring buffer, emitting a
// chunk event per read.
func (r *ExecRuntime) captureOutput(id string, p *execProc, stdout io.Reader) {
	defer p.ioWg.Done()

	buf := make([]byte, 4096)
	for {
		n, err := stdout.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			p.output.Write(chunk)
			r.emit(id, OutputChunk{Content: string(chunk)})
		}
		if err != nil {
			return
		}
	}
}

// drainStderr forwards agent stderr lines to the debug log.
func (r *ExecRuntime) drainStderr(id string, p *execProc, stderr io.Reader) {
	defer p.ioWg.Done()

	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		r.logger.Debug("agent stderr", "session_id", id, "line", scanner.Text())
	}
}

// waitProcess reaps the process and emits the Exited event.
func (r *ExecRuntime) waitProcess(id string, p *execProc) {
	// Pipes must be fully read before Wait.
	p.ioWg.Wait()
	err := p.cmd.Wait()

	code := 0
	if err != nil {
		code = -1
		if exitErr, ok := err.(*exec.ExitError); ok {
			code = exitErr.ExitCode()
		}
	}

	p.setDone()
	close(p.done)

	duration := time.Since(p.started)
	r.logger.Debug("session process exited", "session_id", id, "code", code, "duration", duration.String())
	r.emit(id, Exited{Code: code, Duration: duration})
}

// StopProcess interrupts the session's process, escalating to a kill after
// the configured grace period. Unknown or finished sessions are a no-op.
func (r *ExecRuntime) StopProcess(id string) error {
	r.mu.RLock()
	p := r.procs[id]
	r.mu.RUnlock()

	if p == nil || !p.isRunning() {
		return nil
	}

	if err := p.cmd.Process.Signal(os.Interrupt); err != nil {
		// Interrupt can fail on an already-dead process; fall through to
		// the grace wait either way.
		r.logger.Debug("interrupt failed", "session_id", id, "error", err)
	}

	select {
	case <-p.done:
	case <-time.After(r.config.StopGrace):
		p.cmd.Process.Kill()
		select {
		case <-p.done:
		case <-time.After(r.config.StopGrace):
			// The process is dead but an orphaned child may still hold
			// the output pipe open; report the session stopped anyway.
		}
	}

	p.setDone()
	r.emit(id, Stopped{})
	return nil
}

// IsRunning reports whether the session's process is alive.
func (r *ExecRuntime) IsRunning(id string) bool {
	r.mu.RLock()
	p := r.procs[id]
	r.mu.RUnlock()
	return p != nil && p.isRunning()
}

// Subscribe registers a handler for the session's events.
func (r *ExecRuntime) Subscribe(id string, h EventHandler) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	token := "rsub-" + strconv.FormatUint(r.nextSub.Add(1), 10)
	r.subs[id] = append(r.subs[id], execSub{token: token, handler: h})
	return token
}

// Unsubscribe removes a handler registered with Subscribe.
func (r *ExecRuntime) Unsubscribe(id, subID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	subs := r.subs[id]
	for i, sub := range subs {
		if sub.token == subID {
			r.subs[id] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	if len(r.subs[id]) == 0 {
		delete(r.subs, id)
	}
}

// emit dispatches an event to the session's subscribers. Handlers run
// outside the runtime lock and are panic-isolated so one bad subscriber
// cannot kill the capture or reaper goroutines.
func (r *ExecRuntime) emit(id string, ev Event) {
	r.mu.RLock()
	subs := make([]execSub, len(r.subs[id]))
	copy(subs, r.subs[id])
	r.mu.RUnlock()

	for _, sub := range subs {
		r.safeCall(sub.handler, id, ev)
	}
}

func (r *ExecRuntime) safeCall(h EventHandler, id string, ev Event) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("session event handler panicked", "session_id", id, "panic", rec)
		}
	}()
	h(id, ev)
}

// SendMessage writes a follow-up message to the session's stdin.
func (r *ExecRuntime) SendMessage(id, content string) bool {
	r.mu.RLock()
	p := r.procs[id]
	r.mu.RUnlock()

	if p == nil || !p.isRunning() {
		return false
	}

	_, err := io.WriteString(p.stdin, content+"\n")
	return err == nil
}

// Output returns the captured stdout for a session, "" if unknown.
func (r *ExecRuntime) Output(id string) string {
	r.mu.RLock()
	p := r.procs[id]
	r.mu.RUnlock()

	if p == nil {
		return ""
	}
	return p.output.String()
}

// Close stops every running session. Used on shutdown.
func (r *ExecRuntime) Close() error {
	r.mu.RLock()
	ids := make([]string, 0, len(r.procs))
	for id := range r.procs {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	for _, id := range ids {
		if err := r.StopProcess(id); err != nil {
			return err
		}
	}
	return nil
}
