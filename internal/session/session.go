// Package session manages the lifecycle of a single deliberation: create,
// run to completion in the background, pause, resume from checkpoint,
// kill, and report status/metrics (spec §4.16, §6's external interface
// contract). Grounded on the teacher's mutex-protected-map registry idiom
// (internal/reasoning/decision.go's DecisionMaker,
// internal/integration/synthesizer.go's Synthesizer), generalized from an
// in-memory result store to a registry of live, background-running
// sessions.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"boardofone/internal/checkpoint"
	"boardofone/internal/config"
	"boardofone/internal/graph"
	"boardofone/internal/safety"
	"boardofone/internal/types"
)

// Status is the externally visible lifecycle state of a session, distinct
// from types.SessionStatus in that it also covers "not yet started".
type Status string

const (
	StatusRunning  Status = "running"
	StatusPaused   Status = "paused"
	StatusComplete Status = "complete"
	StatusAborted  Status = "aborted"
	StatusFailed   Status = "failed"
)

// Metrics is the point-in-time resource usage/outcome snapshot returned by
// Manager.Metrics (spec §6).
type Metrics struct {
	SessionID       string  `json:"session_id"`
	Status          Status  `json:"status"`
	CostUSD         float64 `json:"cost_usd"`
	StepCount       int     `json:"step_count"`
	SubProblemsDone int     `json:"sub_problems_done"`
	SubProblemsTotal int    `json:"sub_problems_total"`
	ElapsedSec      float64 `json:"elapsed_sec"`
}

// handle is the Manager's internal bookkeeping for one session.
type handle struct {
	mu        sync.Mutex
	state     *types.DeliberationState
	limits    *safety.Limits
	status    Status
	pauseCh   chan struct{} // closed to signal "resume"
	paused    bool
	cancel    context.CancelFunc
	startedAt time.Time
	err       error
}

// Manager owns every live session in this process and drives each one's
// graph.Driver on its own goroutine.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*handle
	driver   *graph.Driver
	cfg      config.Config
	store    checkpoint.Store
}

// New returns a Manager wired to the given driver, config, and checkpoint
// store.
func New(driver *graph.Driver, cfg config.Config, store checkpoint.Store) *Manager {
	return &Manager{
		sessions: make(map[string]*handle),
		driver:   driver,
		cfg:      cfg,
		store:    store,
	}
}

// Start creates a new session for the given problem, runs decomposition
// and persona selection (driver.Start) before returning, then runs the
// sub-problems in the background. Callers poll Status/Metrics or subscribe
// to events for progress.
func (m *Manager) Start(ctx context.Context, problem *types.Problem) (string, error) {
	sessionID := uuid.New().String()

	state, err := m.driver.Start(ctx, sessionID, problem)
	if err != nil {
		return "", fmt.Errorf("session: start: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	h := &handle{
		state:     state,
		limits:    safety.NewLimits(m.cfg.Safety),
		status:    StatusRunning,
		pauseCh:   make(chan struct{}),
		cancel:    cancel,
		startedAt: time.Now(),
	}
	close(h.pauseCh) // not paused initially; closed channel reads immediately

	m.mu.Lock()
	m.sessions[sessionID] = h
	m.mu.Unlock()

	go m.run(runCtx, sessionID, h)

	return sessionID, nil
}

// run drives the session's sub-problems to completion, honoring pause and
// cancellation between sub-problems (cooperative, not preemptive — a
// sub-problem already in flight runs to its next round boundary).
func (m *Manager) run(ctx context.Context, sessionID string, h *handle) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			h.status = StatusAborted
			h.mu.Unlock()
			return
		case <-h.waitIfPaused():
		}

		deliberation := h.snapshot()

		pending := deliberation.PendingSubProblems()
		if len(pending) == 0 {
			break
		}

		aborted := false
		for _, sp := range pending {
			select {
			case <-ctx.Done():
				aborted = true
			case <-h.waitIfPaused():
			}
			if aborted {
				break
			}

			if err := m.driver.RunSubProblem(ctx, deliberation, sp, h.limits); err != nil {
				if abort, ok := safety.IsAbort(err); ok {
					h.mu.Lock()
					h.status = StatusAborted
					h.err = abort
					h.mu.Unlock()
					return
				}
				h.mu.Lock()
				h.status = StatusFailed
				h.err = err
				h.mu.Unlock()
				return
			}
			m.checkpointState(ctx, sessionID, deliberation, sp.ID)
		}
		if aborted {
			h.mu.Lock()
			h.status = StatusAborted
			h.mu.Unlock()
			return
		}
	}

	if err := m.driver.MetaSynthesize(ctx, h.snapshot()); err != nil {
		h.mu.Lock()
		h.status = StatusFailed
		h.err = err
		h.mu.Unlock()
		return
	}

	h.mu.Lock()
	h.status = StatusComplete
	h.mu.Unlock()
}

// snapshot returns the handle's DeliberationState pointer. The pointer
// itself is mutated in place by the driver (append-only maps/slices), so
// holding the pointer across calls is safe as long as only this session's
// own goroutine mutates it — which the single-goroutine-per-session model
// guarantees.
func (h *handle) snapshot() *types.DeliberationState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// waitIfPaused returns a channel that is already closed when not paused,
// or the handle's pauseCh when paused — selecting on it blocks exactly
// until Resume closes it.
func (h *handle) waitIfPaused() <-chan struct{} {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.pauseCh
}

func (m *Manager) checkpointState(ctx context.Context, sessionID string, state *types.DeliberationState, stepID string) {
	if m.store == nil {
		return
	}
	blob, err := json.Marshal(state)
	if err != nil {
		return
	}
	ttl := time.Duration(m.cfg.Checkpoint.TTLDays) * 24 * time.Hour
	_ = m.store.Put(ctx, sessionID, stepID, blob, ttl)
}

// Pause cooperatively suspends a running session between sub-problems.
func (m *Manager) Pause(sessionID string) error {
	h, err := m.lookup(sessionID)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.paused {
		return nil
	}
	h.paused = true
	h.pauseCh = make(chan struct{})
	h.status = StatusPaused
	return nil
}

// Resume lets a paused session continue. If no in-memory handle exists —
// the process restarted since the session last ran — it reconstructs one
// from the latest durable checkpoint and resumes driving it in the
// background (spec §4.4, §8's round-trip property, resume-after-restart
// scenario).
func (m *Manager) Resume(sessionID string) error {
	h, err := m.lookup(sessionID)
	if err != nil {
		return m.resumeFromCheckpoint(sessionID)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.paused {
		return nil
	}
	h.paused = false
	h.status = StatusRunning
	close(h.pauseCh)
	return nil
}

// resumeFromCheckpoint loads the latest checkpoint record for sessionID,
// unmarshals it back into a DeliberationState, and starts a fresh handle
// running in the background from that state — mirroring Start's handle
// construction, minus the decompose/select step since the state already
// carries sub-problems and personas.
func (m *Manager) resumeFromCheckpoint(sessionID string) error {
	if m.store == nil {
		return fmt.Errorf("session: unknown session %q", sessionID)
	}
	rec, ok, err := m.store.Latest(context.Background(), sessionID)
	if err != nil {
		return fmt.Errorf("session: resume %s: %w", sessionID, err)
	}
	if !ok {
		return fmt.Errorf("session: unknown session %q", sessionID)
	}

	var state types.DeliberationState
	if err := json.Unmarshal(rec.State, &state); err != nil {
		return fmt.Errorf("session: resume %s: decode checkpoint: %w", sessionID, err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	h := &handle{
		state:     &state,
		limits:    safety.NewLimits(m.cfg.Safety),
		status:    StatusRunning,
		pauseCh:   make(chan struct{}),
		cancel:    cancel,
		startedAt: time.Now(),
	}
	close(h.pauseCh)

	m.mu.Lock()
	if existing, ok := m.sessions[sessionID]; ok {
		m.mu.Unlock()
		cancel()
		existing.mu.Lock()
		defer existing.mu.Unlock()
		if !existing.paused {
			return nil
		}
		existing.paused = false
		existing.status = StatusRunning
		close(existing.pauseCh)
		return nil
	}
	m.sessions[sessionID] = h
	m.mu.Unlock()

	go m.run(runCtx, sessionID, h)
	return nil
}

// Kill aborts a session immediately, whether running or paused.
func (m *Manager) Kill(sessionID string, reason string) error {
	h, err := m.lookup(sessionID)
	if err != nil {
		return err
	}
	h.limits.Kill(safety.KindUserKill, reason)
	h.cancel()
	if h.isPaused() {
		_ = m.Resume(sessionID) // wake it so the cancellation is observed promptly
	}
	return nil
}

func (h *handle) isPaused() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.paused
}

// Status reports the session's current lifecycle status.
func (m *Manager) Status(sessionID string) (Status, error) {
	h, err := m.lookup(sessionID)
	if err != nil {
		return "", err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status, nil
}

// LastError returns the error that caused a failed or aborted session to
// stop, or nil if the session never failed.
func (m *Manager) LastError(sessionID string) (error, error) {
	h, err := m.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err, nil
}

// Result returns the session's DeliberationState, including its
// meta-synthesis once complete.
func (m *Manager) Result(sessionID string) (*types.DeliberationState, error) {
	h, err := m.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state, nil
}

// Metrics reports cost/step/progress metrics for a session. CostUSD is the
// total recorded in the session's safety.Limits; no caller records LLM
// spend there, so it stays 0.
func (m *Manager) Metrics(sessionID string) (Metrics, error) {
	h, err := m.lookup(sessionID)
	if err != nil {
		return Metrics{}, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	done := 0
	for _, sp := range h.state.SubProblems {
		if sp.Status == types.SubProblemComplete || sp.Status == types.SubProblemSkipped {
			done++
		}
	}

	return Metrics{
		SessionID:        sessionID,
		Status:           h.status,
		CostUSD:          h.limits.SessionCostUSD(),
		StepCount:        h.limits.StepCount(),
		SubProblemsDone:  done,
		SubProblemsTotal: len(h.state.SubProblems),
		ElapsedSec:       time.Since(h.startedAt).Seconds(),
	}, nil
}

func (m *Manager) lookup(sessionID string) (*handle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("session: unknown session %q", sessionID)
	}
	return h, nil
}
