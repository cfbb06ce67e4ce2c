// Package process owns the completion engine child process: it spawns it,
// exchanges newline-delimited JSON with it, and restarts it on failure within
// a bounded budget.
package process

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"tabcomplete/binary"
	"tabcomplete/logger"
	"tabcomplete/metrics"
	"tabcomplete/types"

	"github.com/google/uuid"
)

// MaxRestarts bounds automatic restarts between explicit settings changes
const MaxRestarts = 10

// ClientName is passed to the engine as --client
const ClientName = "nvim"

var (
	// ErrUnavailable is returned once the restart budget is exhausted
	ErrUnavailable = errors.New("completion engine unavailable")
	// ErrNotRunning is returned when no engine process could be started
	ErrNotRunning = errors.New("completion engine not running")
	// ErrTimeout is returned when the engine does not answer in time
	ErrTimeout = errors.New("completion engine timed out")
)

type Config struct {
	CustomBinaryPath string
	InstallDir       string
	LogFilePath      string
	ExtraArgs        []string
	RequestTimeout   time.Duration // 0 = wait forever
	Env              []string      // appended to the inherited environment
}

// Args returns the engine command line arguments
func (c Config) Args() []string {
	args := []string{"--client", ClientName}
	if c.LogFilePath != "" {
		args = append(args, "--log-file-path", c.LogFilePath)
	}
	return append(args, c.ExtraArgs...)
}

// Manager serialises all traffic to a single engine process.
// Manager is safe for concurrent use; requests are handled one at a time.
type Manager struct {
	mu       sync.Mutex
	config   Config
	proc     *engineProcess
	launched bool
	restarts int
	spawns   int

	locate func(customPath, installDir string) (string, error)
}

type engineProcess struct {
	id     string
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader
	done   chan struct{}

	// pending receives the response to a request the caller gave up on
	pending chan readResult
}

type readResult struct {
	line []byte
	err  error
}

func (p *engineProcess) exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// NewManager creates a manager. The process is started lazily on the first
// request, or eagerly with Start.
func NewManager(config Config) *Manager {
	return &Manager{
		config: config,
		locate: binary.Locate,
	}
}

// Start spawns the engine process. It does not count against the restart budget.
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.spawnLocked()
}

// Restart terminates the current process and spawns a new one. reset is
// true for explicit settings changes and zeroes the restart budget;
// otherwise the restart counts against it.
func (m *Manager) Restart(reset bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if reset {
		m.restarts = 0
	} else {
		m.restarts++
	}
	m.spawnLocked()
}

// Reconfigure replaces the launch configuration and restarts with a fresh budget
func (m *Manager) Reconfigure(config Config) {
	m.mu.Lock()
	m.config = config
	m.mu.Unlock()
	m.Restart(true)
}

// Restarts returns the number of restarts counted against the budget
func (m *Manager) Restarts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.restarts
}

// Spawns returns how many times a process launch was attempted
func (m *Manager) Spawns() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.spawns
}

// Close terminates the engine process
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.terminateLocked()
}

// Send writes one request and reads exactly one response line.
// Any failure restarts the engine while the budget allows; the caller only
// sees an error and should treat it as "no result". A request abandoned
// because ctx ended is not a failure: its response is drained before the
// next request is written.
func (m *Manager) Send(ctx context.Context, req types.Request) (json.RawMessage, error) {
	return m.send(ctx, req, nil)
}

// Autocomplete sends an Autocomplete request and decodes the response.
// A response that does not decode counts as an engine failure.
func (m *Manager) Autocomplete(ctx context.Context, req *types.AutocompleteRequest) (*types.AutocompleteResponse, error) {
	var resp types.AutocompleteResponse
	_, err := m.send(ctx, types.Request{Autocomplete: req}, func(raw json.RawMessage) error {
		if err := json.Unmarshal(raw, &resp); err != nil {
			return fmt.Errorf("decode autocomplete response: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// Prefetch asks the engine to index filename; the response body is ignored
func (m *Manager) Prefetch(ctx context.Context, filename string) error {
	_, err := m.Send(ctx, types.Request{Prefetch: &types.PrefetchRequest{Filename: filename}})
	return err
}

// send runs one exchange under the lock. decode, when set, runs before the
// lock is released so a bad response fails the process that produced it.
func (m *Manager) send(ctx context.Context, req types.Request, decode func(json.RawMessage) error) (json.RawMessage, error) {
	defer logger.Trace("process.Send " + req.Kind())()
	m.mu.Lock()
	defer m.mu.Unlock()

	kind := req.Kind()
	metrics.Requests.WithLabelValues(kind).Inc()

	if m.proc == nil && !m.launched {
		m.spawnLocked()
	}
	if m.proc == nil || m.proc.exited() {
		if m.restarts >= MaxRestarts {
			metrics.RequestFailures.WithLabelValues(kind).Inc()
			return nil, ErrUnavailable
		}
		logger.Warn("engine process is not running, restarting (%d/%d)", m.restarts+1, MaxRestarts)
		m.restarts++
		metrics.EngineRestarts.Inc()
		m.spawnLocked()
		if m.proc == nil {
			metrics.RequestFailures.WithLabelValues(kind).Inc()
			return nil, ErrNotRunning
		}
	}

	start := time.Now()
	line, err := m.exchange(ctx, req)
	if err == nil && decode != nil {
		err = decode(line)
	}
	if err != nil {
		if abandoned(ctx, err) {
			logger.Debug("%s request abandoned: %v", kind, err)
			return nil, err
		}
		metrics.RequestFailures.WithLabelValues(kind).Inc()
		m.failLocked(err)
		return nil, err
	}
	metrics.RequestDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	return line, nil
}

// abandoned reports whether err only says that the caller stopped waiting
func abandoned(ctx context.Context, err error) bool {
	return ctx.Err() != nil && errors.Is(err, ctx.Err())
}

// failLocked drops the process (its stream may be out of sync) and restarts
// it if the budget allows.
func (m *Manager) failLocked(err error) {
	logger.Error("error while interacting with engine: %v", err)
	m.terminateLocked()
	if m.restarts < MaxRestarts {
		m.restarts++
		metrics.EngineRestarts.Inc()
		logger.Info("restarting engine (%d/%d)", m.restarts, MaxRestarts)
		m.spawnLocked()
	} else {
		metrics.EngineUnavailable.Inc()
		logger.Warn("engine restart budget exhausted, completions disabled until settings change")
	}
}

func (m *Manager) exchange(ctx context.Context, req types.Request) (json.RawMessage, error) {
	data, err := json.Marshal(types.Envelope{Version: types.ProtocolVersion, Request: req})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	data = append(data, '\n')

	p := m.proc
	if p.pending != nil {
		if _, err := m.await(ctx, p.pending); err != nil {
			return nil, err
		}
		p.pending = nil
		logger.Debug("engine %s: drained abandoned response", shortID(p.id))
	}

	if _, err := p.stdin.Write(data); err != nil {
		return nil, fmt.Errorf("write request: %w", err)
	}

	ch := make(chan readResult, 1)
	go func() {
		line, err := p.stdout.ReadBytes('\n')
		ch <- readResult{line, err}
	}()

	line, err := m.await(ctx, ch)
	if err != nil && abandoned(ctx, err) {
		p.pending = ch
	}
	return line, err
}

// await waits for one response line, the request timeout or ctx
func (m *Manager) await(ctx context.Context, ch <-chan readResult) (json.RawMessage, error) {
	var timeout <-chan time.Time
	if m.config.RequestTimeout > 0 {
		timer := time.NewTimer(m.config.RequestTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case r := <-ch:
		if r.err != nil {
			return nil, fmt.Errorf("read response: %w", r.err)
		}
		line := bytes.TrimSpace(r.line)
		if !json.Valid(line) {
			return nil, fmt.Errorf("malformed response: %q", truncate(line, 200))
		}
		return json.RawMessage(line), nil
	case <-timeout:
		return nil, ErrTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (m *Manager) spawnLocked() {
	m.terminateLocked()
	m.launched = true
	m.spawns++

	path, err := m.locate(m.config.CustomBinaryPath, m.config.InstallDir)
	if err != nil {
		logger.Error("cannot start engine: %v", err)
		return
	}

	cmd := exec.Command(path, m.config.Args()...)
	cmd.Env = append(os.Environ(), m.config.Env...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		logger.Error("create engine stdin pipe: %v", err)
		return
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		logger.Error("create engine stdout pipe: %v", err)
		return
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		stdin.Close()
		logger.Error("create engine stderr pipe: %v", err)
		return
	}
	if err := cmd.Start(); err != nil {
		stdin.Close()
		logger.Error("start engine %s: %v", path, err)
		return
	}

	p := &engineProcess{
		id:     uuid.NewString(),
		cmd:    cmd,
		stdin:  stdin,
		stdout: bufio.NewReaderSize(stdout, 64*1024),
		done:   make(chan struct{}),
	}
	go forwardStderr(p.id, stderr)
	go func() {
		err := cmd.Wait()
		logger.Debug("engine %s exited: %v", shortID(p.id), err)
		close(p.done)
	}()

	m.proc = p
	logger.Info("engine %s started: %s %v (pid %d)", shortID(p.id), path, m.config.Args(), cmd.Process.Pid)
}

// terminateLocked kills the current process. Errors are swallowed: the
// process may already be gone.
func (m *Manager) terminateLocked() {
	if m.proc == nil {
		return
	}
	p := m.proc
	m.proc = nil
	p.stdin.Close()
	if err := p.cmd.Process.Kill(); err != nil {
		logger.Debug("terminate engine %s: %v", shortID(p.id), err)
	}
}

func forwardStderr(id string, r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		logger.Debug("engine %s stderr: %s", shortID(id), scanner.Text())
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(b []byte, n int) []byte {
	if len(b) > n {
		return b[:n]
	}
	return b
}
