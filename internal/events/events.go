// Package events defines the structured event stream emitted by a
// deliberation session, the contract that a streaming UI (kept outside this
// module's scope) would consume. The sink is provider-agnostic: it holds an
// ordered, monotonically-sequenced log and fans out to any number of
// subscriber channels.
//
// The design generalizes the teacher's internal/streaming ProgressReporter
// idiom — a rate-limitable, enable/disable-able progress interface — from
// per-tool-call MCP progress notifications to a named, typed event stream
// covering a whole session's lifecycle.
package events

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"
)

// Type enumerates every event the engine may emit (spec §6 event sink
// table).
type Type string

const (
	TypeDecompositionComplete  Type = "decomposition_complete"
	TypePersonasSelected       Type = "personas_selected"
	TypeRoundStarted           Type = "round_started"
	TypeContribution           Type = "contribution"
	TypeContributionFiltered   Type = "contribution_filtered"
	TypeRoundSummary           Type = "round_summary"
	TypeQualityMetrics         Type = "quality_metrics"
	TypeFacilitatorDecision    Type = "facilitator_decision"
	TypeModeratorIntervention  Type = "moderator_intervention"
	TypeResearchComplete       Type = "research_complete"
	TypeVotingStarted          Type = "voting_started"
	TypePersonaVote            Type = "persona_vote"
	TypeVotingComplete         Type = "voting_complete"
	TypeSynthesisComplete      Type = "synthesis_complete"
	TypeSubProblemComplete     Type = "subproblem_complete"
	TypeMetaSynthesisComplete  Type = "meta_synthesis_complete"
	TypeError                  Type = "error"
	TypeTerminal               Type = "terminal"
	TypeHeartbeat              Type = "heartbeat"
)

// Event is one entry in a session's event stream.
type Event struct {
	SessionID       string      `json:"session_id"`
	Sequence        int64       `json:"sequence"`
	Type            Type        `json:"type"`
	SubProblemIndex int         `json:"sub_problem_index,omitempty"`
	Payload         interface{} `json:"payload,omitempty"`
	Timestamp       time.Time   `json:"timestamp"`
}

// Config controls per-type emission behavior, mirroring the teacher's
// StreamingConfig functional-options idiom.
type Config struct {
	Enabled         bool
	MinInterval     time.Duration
	SendPartialData bool
}

// DefaultConfig returns the baseline event configuration: enabled, no rate
// limiting, all payload data included.
func DefaultConfig() Config {
	return Config{Enabled: true, MinInterval: 0, SendPartialData: true}
}

// ConfigOption mutates a Config; the functional-options pattern the teacher
// uses throughout internal/streaming.
type ConfigOption func(*Config)

// WithMinInterval rate-limits emission of high-frequency event types (e.g.
// heartbeat) to at most one per interval.
func WithMinInterval(d time.Duration) ConfigOption {
	return func(c *Config) { c.MinInterval = d }
}

// WithoutPartialData clears Config.SendPartialData. Emit does not consult
// SendPartialData, so payloads are emitted unchanged either way.
func WithoutPartialData() ConfigOption {
	return func(c *Config) { c.SendPartialData = false }
}

// NewConfig builds a Config from the given options over DefaultConfig.
func NewConfig(opts ...ConfigOption) Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// Sink is a structured event emitter for one session. It is safe for
// concurrent use — the parallel-round node emits contribution events from
// multiple goroutines at once.
type Sink struct {
	sessionID string
	config    Config
	sequence  atomic.Int64

	mu          sync.RWMutex
	subscribers []chan Event
	log         []Event // append-only, for replay/checkpointing
	lastEmit    map[Type]time.Time
}

// NewSink creates an event sink for a session.
func NewSink(sessionID string, opts ...ConfigOption) *Sink {
	return &Sink{
		sessionID: sessionID,
		config:    NewConfig(opts...),
		log:       make([]Event, 0, 256),
		lastEmit:  make(map[Type]time.Time),
	}
}

// Subscribe returns a channel that receives every event emitted from this
// point forward. The channel is closed when the sink is closed.
func (s *Sink) Subscribe(buffer int) <-chan Event {
	ch := make(chan Event, buffer)
	s.mu.Lock()
	s.subscribers = append(s.subscribers, ch)
	s.mu.Unlock()
	return ch
}

// Emit appends an event to the log and fans it out to subscribers. Returns
// false if the event was suppressed by rate limiting (the event is still
// logged so replay remains complete).
func (s *Sink) Emit(eventType Type, subProblemIndex int, payload interface{}) bool {
	if !s.config.Enabled {
		return false
	}

	ev := Event{
		SessionID:       s.sessionID,
		Sequence:        s.sequence.Add(1),
		Type:            eventType,
		SubProblemIndex: subProblemIndex,
		Payload:         payload,
		Timestamp:       time.Now(),
	}

	s.mu.Lock()
	s.log = append(s.log, ev)
	shouldFanOut := s.shouldEmit(eventType)
	if shouldFanOut {
		s.lastEmit[eventType] = ev.Timestamp
	}
	subs := make([]chan Event, len(s.subscribers))
	copy(subs, s.subscribers)
	s.mu.Unlock()

	if !shouldFanOut {
		return false
	}

	for _, ch := range subs {
		select {
		case ch <- ev:
		default: // slow subscriber, drop rather than block the deliberation
		}
	}
	return true
}

// shouldEmit applies MinInterval rate limiting per event type. Must be
// called with s.mu held.
func (s *Sink) shouldEmit(eventType Type) bool {
	if s.config.MinInterval == 0 {
		return true
	}
	last, ok := s.lastEmit[eventType]
	if !ok {
		return true
	}
	return time.Since(last) >= s.config.MinInterval
}

// Log returns a snapshot of every event emitted so far, for checkpointing
// or replay.
func (s *Sink) Log() []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Event, len(s.log))
	copy(out, s.log)
	return out
}

// Close closes all subscriber channels. The sink itself remains usable for
// Log() after Close.
func (s *Sink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subscribers {
		close(ch)
	}
	s.subscribers = nil
}

// MarshalPayload is a convenience for building an EventLogEntry-compatible
// JSON payload from an arbitrary event's Payload field.
func MarshalPayload(ev Event) ([]byte, error) {
	return json.Marshal(ev.Payload)
}
