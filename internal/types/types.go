// Package types defines the core data model shared across the deliberation
// engine: problems, sub-problems, personas, contributions, round summaries,
// votes, and the aggregate state a session threads through the graph
// driver.
package types

import "time"

// ProblemStatus tracks a top-level decision problem through its lifecycle.
type ProblemStatus string

const (
	ProblemStatusPending  ProblemStatus = "pending"
	ProblemStatusRunning  ProblemStatus = "running"
	ProblemStatusComplete ProblemStatus = "complete"
	ProblemStatusAborted  ProblemStatus = "aborted"
)

// Problem is the user-supplied decision question, before decomposition.
type Problem struct {
	ID          string                 `json:"id"`
	Statement   string                 `json:"statement"`
	Context     string                 `json:"context,omitempty"`
	Constraints []string               `json:"constraints,omitempty"`
	Status      ProblemStatus          `json:"status"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
}

// SubProblemStatus tracks an individual sub-problem through deliberation.
type SubProblemStatus string

const (
	SubProblemPending  SubProblemStatus = "pending"
	SubProblemActive   SubProblemStatus = "active"
	SubProblemComplete SubProblemStatus = "complete"
	SubProblemSkipped  SubProblemStatus = "skipped"
)

// SubProblem is one node in the decomposition DAG produced for a Problem.
//
// DependsOn lists the IDs of sub-problems whose SubProblemResult must be
// available before this one may enter a round. The graph this forms is
// acyclic by construction: internal/decomposer builds it with
// dominikbraun/graph and rejects any decomposition that introduces a cycle.
type SubProblem struct {
	ID          string           `json:"id"`
	ProblemID   string           `json:"problem_id"`
	Description string           `json:"description"`
	DependsOn   []string         `json:"depends_on,omitempty"`
	Complexity  float64          `json:"complexity"` // 0..1, from internal/complexity
	Status      SubProblemStatus `json:"status"`
	Index       int              `json:"index"` // position in the decomposition, stable for UI ordering
}

// Persona is an expert stance assigned to a sub-problem's deliberation.
// Catalog entries are immutable; per-session state (e.g. consecutive speak
// count) lives in DeliberationState, not here.
type Persona struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Role         string   `json:"role"`
	Stance       string   `json:"stance"`
	Concerns     []string `json:"concerns,omitempty"`
	Priorities   []string `json:"priorities,omitempty"`
	SystemPrompt string   `json:"system_prompt"`
	IsModerator  bool     `json:"is_moderator,omitempty"`
}

// Phase names the deliberation stage a round belongs to.
type Phase string

const (
	PhaseExploration Phase = "exploration"
	PhaseChallenge   Phase = "challenge"
	PhaseConvergence Phase = "convergence"
)

// Contribution is a single persona's utterance within a round.
type Contribution struct {
	ID              string                 `json:"id"`
	SubProblemID    string                 `json:"sub_problem_id"`
	Round           int                    `json:"round"`
	PersonaID       string                 `json:"persona_id"`
	Phase           Phase                  `json:"phase"`
	Content         string                 `json:"content"`
	KeyPoints       []string               `json:"key_points,omitempty"`
	Confidence      float64                `json:"confidence"`
	Embedding       []float32              `json:"-"` // held in vectorstore, not serialized inline
	NoveltyScore    float64                `json:"novelty_score"`
	Filtered        bool                   `json:"filtered"` // true if deduped against a near-identical prior contribution
	FilteredAgainst string                 `json:"filtered_against,omitempty"`
	IsSystem        bool                   `json:"is_system"` // true for researcher/moderator output; excluded from dominance accounting
	Timestamp       time.Time              `json:"timestamp"`
	Metadata        map[string]interface{} `json:"metadata,omitempty"`
}

// RoundSummary aggregates one round's contributions and quality metrics for
// a sub-problem. Facilitator routing decisions are made from this, not from
// raw contributions, to keep the hierarchical context small.
type RoundSummary struct {
	SubProblemID       string    `json:"sub_problem_id"`
	Round              int       `json:"round"`
	Phase              Phase     `json:"phase"`
	Summary            string    `json:"summary"`
	KeyThemes          []string  `json:"key_themes,omitempty"`
	Disagreements      []string  `json:"disagreements,omitempty"`
	ConvergenceScore   float64   `json:"convergence_score"`
	NoveltyScore       float64   `json:"novelty_score"`
	ExplorationScore   float64   `json:"exploration_score"`
	FocusScore         float64   `json:"focus_score"`
	ConflictScore      float64   `json:"conflict_score"`
	ExpertNoveltyScore float64   `json:"expert_novelty_score"`
	DominantPersonaID  string    `json:"dominant_persona_id,omitempty"`
	DominanceShare     float64   `json:"dominance_share"`
	CreatedAt          time.Time `json:"created_at"`
}

// Vote is one persona's position during the voting phase of a sub-problem.
type Vote struct {
	PersonaID      string  `json:"persona_id"`
	SubProblemID   string  `json:"sub_problem_id"`
	Recommendation string  `json:"recommendation"`
	Confidence     float64 `json:"confidence"`
	Rationale      string  `json:"rationale"`
	Dissent        bool    `json:"dissent"` // true if this vote disagrees with the plurality
}

// SubProblemResult is the synthesized outcome of one sub-problem's
// deliberation, consumed both by meta-synthesis and by dependent
// sub-problems' context (its Recommendation only, via internal/graph's
// hierarchicalContext).
type SubProblemResult struct {
	SubProblemID   string    `json:"sub_problem_id"`
	Recommendation string    `json:"recommendation"`
	Confidence     float64   `json:"confidence"`
	Summary        string    `json:"summary"`
	Dissent        []Vote    `json:"dissent,omitempty"`
	RoundsUsed     int       `json:"rounds_used"`
	Votes          []Vote    `json:"votes"`
	CompletedAt    time.Time `json:"completed_at"`
}

// SessionMetrics is the point-in-time resource usage and outcome summary
// returned by a session's Metrics() call.
type SessionMetrics struct {
	SessionID          string             `json:"session_id"`
	CostUSD            float64            `json:"cost_usd"`
	CostBySubProblem   map[string]float64 `json:"cost_by_sub_problem"`
	TokensIn           int64              `json:"tokens_in"`
	TokensOut          int64              `json:"tokens_out"`
	CacheHitRate       float64            `json:"cache_hit_rate"`
	Duration           time.Duration      `json:"duration"`
	RoundsBySubProblem map[string]int     `json:"rounds_by_sub_problem"`
	InterventionCount  int                `json:"intervention_count"`
}

// EventLogEntry is the persisted mirror of an emitted Event, keyed by
// (session_id, sequence) for replay.
type EventLogEntry struct {
	SessionID string    `json:"session_id"`
	Sequence  int64     `json:"sequence"`
	Type      string    `json:"type"`
	Payload   []byte    `json:"payload"` // JSON-encoded event payload
	Timestamp time.Time `json:"timestamp"`
}

// SessionStatus tracks the overall deliberation session.
type SessionStatus string

const (
	SessionStatusRunning  SessionStatus = "running"
	SessionStatusPaused   SessionStatus = "paused"
	SessionStatusComplete SessionStatus = "complete"
	SessionStatusAborted  SessionStatus = "aborted"
	SessionStatusFailed   SessionStatus = "failed"
)

// DeliberationState is the full mutable state threaded through the graph
// driver for one session. internal/session checkpoints it after each
// completed sub-problem; it is not checkpointed between rounds or other
// graph nodes.
type DeliberationState struct {
	SessionID          string                       `json:"session_id"`
	Problem            *Problem                     `json:"problem"`
	SubProblems        []*SubProblem                `json:"sub_problems"`
	Personas           map[string][]*Persona        `json:"personas"`       // keyed by sub_problem_id
	Contributions      map[string][]*Contribution   `json:"contributions"`  // keyed by sub_problem_id
	RoundSummaries     map[string][]*RoundSummary   `json:"round_summaries"` // keyed by sub_problem_id
	Results            map[string]*SubProblemResult `json:"results"`        // keyed by sub_problem_id
	Status             SessionStatus                `json:"status"`
	CurrentStep        string                        `json:"current_step"` // not set by the driver; resume continues from PendingSubProblems
	ConsecutiveSpeaker map[string]int               `json:"consecutive_speaker"` // keyed by sub_problem_id, run length of current speaker
	LastSpeaker        map[string]string             `json:"last_speaker"`        // keyed by sub_problem_id
	PersonaMemory      map[string]string             `json:"persona_memory"`      // keyed by persona_id, carried across sub-problems
	MetaSynthesis      string                        `json:"meta_synthesis,omitempty"`
	StartedAt          time.Time                     `json:"started_at"`
	UpdatedAt          time.Time                     `json:"updated_at"`
}

// NewDeliberationState constructs an empty state for a freshly created
// problem, with all maps pre-allocated.
func NewDeliberationState(sessionID string, problem *Problem) *DeliberationState {
	now := time.Now()
	return &DeliberationState{
		SessionID:          sessionID,
		Problem:            problem,
		SubProblems:        make([]*SubProblem, 0, 8),
		Personas:           make(map[string][]*Persona),
		Contributions:      make(map[string][]*Contribution),
		RoundSummaries:     make(map[string][]*RoundSummary),
		Results:            make(map[string]*SubProblemResult),
		Status:             SessionStatusRunning,
		ConsecutiveSpeaker: make(map[string]int),
		LastSpeaker:        make(map[string]string),
		PersonaMemory:      make(map[string]string),
		StartedAt:          now,
		UpdatedAt:          now,
	}
}

// SubProblemByID returns the sub-problem with the given ID, or nil.
func (s *DeliberationState) SubProblemByID(id string) *SubProblem {
	for _, sp := range s.SubProblems {
		if sp.ID == id {
			return sp
		}
	}
	return nil
}

// PendingSubProblems returns sub-problems whose dependencies are all
// complete and that are themselves still pending (not active, complete or
// skipped).
func (s *DeliberationState) PendingSubProblems() []*SubProblem {
	var pending []*SubProblem
	for _, sp := range s.SubProblems {
		if sp.Status != SubProblemPending {
			continue
		}
		ready := true
		for _, depID := range sp.DependsOn {
			dep := s.SubProblemByID(depID)
			if dep == nil || dep.Status != SubProblemComplete {
				ready = false
				break
			}
		}
		if ready {
			pending = append(pending, sp)
		}
	}
	return pending
}

// AllSubProblemsComplete reports whether every sub-problem is complete or
// skipped.
func (s *DeliberationState) AllSubProblemsComplete() bool {
	for _, sp := range s.SubProblems {
		if sp.Status != SubProblemComplete && sp.Status != SubProblemSkipped {
			return false
		}
	}
	return true
}
