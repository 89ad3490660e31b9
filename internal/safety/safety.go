// Package safety enforces the cost, time, round, and recursion limits that
// bound a deliberation session (spec §4.14), and detects the cyclic
// round-summary signatures that indicate a stalled debate.
//
// The cycle detector is grounded on the teacher's dependency-deadlock
// detection in internal/orchestration/workflow.go's executeConditional,
// which tracks "no progress" across iterations and aborts with a named
// error rather than spinning forever; here the same no-progress idea is
// applied to repeating round-summary signatures instead of step
// dependencies.
package safety

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"time"

	"boardofone/internal/config"
)

// Kind enumerates why a safety limit tripped.
type Kind string

const (
	KindCostSession    Kind = "cost_session_exceeded"
	KindCostSubProblem Kind = "cost_subproblem_exceeded"
	KindDuration       Kind = "duration_exceeded"
	KindMaxRounds      Kind = "max_rounds_exceeded"
	KindMaxSteps       Kind = "max_steps_exceeded"
	KindMaxSubProblems Kind = "max_sub_problems_exceeded"
	KindCycleDetected  Kind = "cycle_detected"
	KindUserKill       Kind = "user_kill"
	KindAdminKill      Kind = "admin_kill"
)

// Abort is returned when a safety limit trips. Code using the safety layer
// should treat it as a request to stop the current sub-problem (or the
// whole session, per Kind) rather than a generic error.
type Abort struct {
	Kind         Kind
	SubProblemID string
	Detail       string
}

func (a *Abort) Error() string {
	if a.SubProblemID != "" {
		return fmt.Sprintf("safety abort (%s) on sub-problem %s: %s", a.Kind, a.SubProblemID, a.Detail)
	}
	return fmt.Sprintf("safety abort (%s): %s", a.Kind, a.Detail)
}

// IsAbort reports whether err is a *Abort and returns it.
func IsAbort(err error) (*Abort, bool) {
	a, ok := err.(*Abort)
	return a, ok
}

// Limits is a stateful tracker for one session's safety budget. It is not
// safe for concurrent use from multiple sub-problems at once — the graph
// driver serializes sub-problem execution, so each sub-problem's checks
// happen from a single goroutine at a time (the parallel-round node's
// internal fan-out is a sibling concern, not a safety-layer one).
type Limits struct {
	cfg           config.SafetyConfig
	sessionStart  time.Time
	costTotal     float64
	costByProblem map[string]float64
	stepCount     int
	killed        *Abort
}

// NewLimits creates a tracker seeded from the given safety configuration.
func NewLimits(cfg config.SafetyConfig) *Limits {
	return &Limits{
		cfg:           cfg,
		sessionStart:  time.Now(),
		costByProblem: make(map[string]float64),
	}
}

// Kill marks the session as killed by a user or admin action; subsequent
// checks return the recorded Abort immediately.
func (l *Limits) Kill(kind Kind, detail string) {
	if kind != KindUserKill && kind != KindAdminKill {
		kind = KindUserKill
	}
	l.killed = &Abort{Kind: kind, Detail: detail}
}

// RecordCost adds to the running session and per-sub-problem cost totals.
func (l *Limits) RecordCost(subProblemID string, usd float64) {
	l.costTotal += usd
	l.costByProblem[subProblemID] += usd
}

// RecordStep increments the total graph-step counter. internal/graph's
// RunSubProblem calls it once per round iteration; decomposition, voting
// and synthesis are not counted.
func (l *Limits) RecordStep() {
	l.stepCount++
}

// CheckSession returns a non-nil *Abort if a session-wide limit has
// tripped: kill switch, total cost, or total step count.
func (l *Limits) CheckSession() *Abort {
	if l.killed != nil {
		return l.killed
	}
	if l.costTotal > l.cfg.MaxCostPerSessionUSD {
		return &Abort{Kind: KindCostSession, Detail: fmt.Sprintf("spent $%.4f of $%.2f budget", l.costTotal, l.cfg.MaxCostPerSessionUSD)}
	}
	if l.stepCount > l.cfg.MaxSteps {
		return &Abort{Kind: KindMaxSteps, Detail: fmt.Sprintf("%d steps exceeds max_steps=%d", l.stepCount, l.cfg.MaxSteps)}
	}
	return nil
}

// CheckSubProblem returns a non-nil *Abort if the given sub-problem has
// exceeded its per-sub-problem cost, duration, or round budget.
func (l *Limits) CheckSubProblem(subProblemID string, startedAt time.Time, round int) *Abort {
	if abort := l.CheckSession(); abort != nil {
		return abort
	}
	if l.costByProblem[subProblemID] > l.cfg.MaxCostPerSubProblemUSD {
		return &Abort{
			Kind:         KindCostSubProblem,
			SubProblemID: subProblemID,
			Detail:       fmt.Sprintf("spent $%.4f of $%.2f budget", l.costByProblem[subProblemID], l.cfg.MaxCostPerSubProblemUSD),
		}
	}
	if elapsed := time.Since(startedAt); elapsed > time.Duration(l.cfg.MaxDurationPerSubProblemSec)*time.Second {
		return &Abort{
			Kind:         KindDuration,
			SubProblemID: subProblemID,
			Detail:       fmt.Sprintf("%.0fs elapsed exceeds max_duration_per_subproblem_sec=%d", elapsed.Seconds(), l.cfg.MaxDurationPerSubProblemSec),
		}
	}
	if round > l.cfg.MaxRounds {
		return &Abort{
			Kind:         KindMaxRounds,
			SubProblemID: subProblemID,
			Detail:       fmt.Sprintf("round %d exceeds max_rounds=%d", round, l.cfg.MaxRounds),
		}
	}
	return nil
}

// SessionCostUSD returns the running total cost for the session.
func (l *Limits) SessionCostUSD() float64 { return l.costTotal }

// SubProblemCostUSD returns the running total cost for one sub-problem.
func (l *Limits) SubProblemCostUSD(subProblemID string) float64 { return l.costByProblem[subProblemID] }

// StepCount returns the total number of graph steps executed so far.
func (l *Limits) StepCount() int { return l.stepCount }

// CycleDetector watches a sequence of round-summary signatures for
// repetition: if the same signature (a normalized digest of key themes and
// scores) recurs within a short lookback window, the debate has stalled and
// a MODERATOR or VOTE transition should be forced rather than continuing to
// burn rounds.
type CycleDetector struct {
	lookback   int
	signatures []string
}

// NewCycleDetector creates a detector that compares each new signature
// against the last `lookback` signatures.
func NewCycleDetector(lookback int) *CycleDetector {
	if lookback < 1 {
		lookback = 3
	}
	return &CycleDetector{lookback: lookback}
}

// Signature builds a stable digest from a round's key themes and rounded
// quality scores, order-independent in the themes.
func Signature(keyThemes []string, convergence, novelty, focus float64) string {
	sorted := append([]string(nil), keyThemes...)
	sort.Strings(sorted)
	h := sha256.New()
	for _, theme := range sorted {
		h.Write([]byte(theme))
		h.Write([]byte{0})
	}
	fmt.Fprintf(h, "%.2f|%.2f|%.2f", convergence, novelty, focus)
	return hex.EncodeToString(h.Sum(nil))
}

// Observe records a new round's signature and reports whether it matches
// any signature within the lookback window, indicating the debate is
// repeating itself rather than progressing.
func (d *CycleDetector) Observe(signature string) bool {
	start := 0
	if len(d.signatures) > d.lookback {
		start = len(d.signatures) - d.lookback
	}
	cycle := false
	for _, prior := range d.signatures[start:] {
		if prior == signature {
			cycle = true
			break
		}
	}
	d.signatures = append(d.signatures, signature)
	return cycle
}

// Reset clears recorded signatures, used when a sub-problem transitions out
// of a phase where repetition would no longer be meaningful (e.g. after a
// moderator intervention resets the conversation).
func (d *CycleDetector) Reset() {
	d.signatures = nil
}
