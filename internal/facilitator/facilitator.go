// Package facilitator chooses what happens after each round: CONTINUE
// with a named speaker set, VOTE, RESEARCH, or MODERATOR (spec §4.9), and
// enforces the rotation/dominance/participation invariants that bind
// regardless of what the LLM router proposes (spec §4.10). Grounded on the
// teacher's internal/orchestration/workflow.go step-dispatch/condition
// idiom, generalized from named tool steps to named deliberation actions.
package facilitator

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/google/jsonschema-go/jsonschema"

	"boardofone/internal/llmbroker"
	"boardofone/internal/persona"
)

// Action is the closed variant of facilitator decisions (spec §9 design
// note: "use a closed variant... with exhaustive handling in the router").
type Action string

const (
	ActionContinue   Action = "CONTINUE"
	ActionVote       Action = "VOTE"
	ActionResearch   Action = "RESEARCH"
	ActionModerator  Action = "MODERATOR"
)

// Decision is the facilitator's routing output for one round boundary.
type Decision struct {
	Action         Action
	NextSpeakers   []string // persona codes, for ActionContinue
	Prompt         string   // targeted prompt for ActionContinue
	ResearchQuery  string   // for ActionResearch
	ModeratorVariant string // "contrarian" | "skeptic" | "optimist", for ActionModerator
	Reasoning      string
	Overridden     bool   // true if a pre-LLM rule changed the LLM's proposed action
	OverrideReason string
}

// Config holds the thresholds the router enforces (spec §6).
type Config struct {
	MinRounds             int
	MaxRounds             int
	ExplorationThreshold  float64
	ConsecutiveSpeakerMax int
	DominanceShareMax     float64
}

// DefaultConfig returns the numeric defaults from spec §6.
func DefaultConfig() Config {
	return Config{
		MinRounds:             3,
		MaxRounds:             10,
		ExplorationThreshold:  0.60,
		ConsecutiveSpeakerMax: 3,
		DominanceShareMax:     0.25,
	}
}

// RoundContext is everything the router needs to decide, both for the
// pre-LLM overrides and for the LLM's own proposal.
type RoundContext struct {
	Round                 int
	ContributionCounts    map[string]int // persona code -> total non-system contributions so far
	PerExpertNovelty      map[string]float64
	LastSpeakers          []string // most recent speakers, oldest first
	ParticipationLast4    map[string]int // persona code -> count of the last 4 rounds they spoke in
	ExplorationScore      float64
	FocusScore            float64
	MissingCriticalAspects []string
	Roster                []persona.Entry // non-moderator personas eligible to speak
}

// Facilitator proposes routing decisions via the broker's strong tier and
// enforces the binding pre-LLM overrides before returning.
type Facilitator struct {
	broker *llmbroker.Broker
	cfg    Config
}

// New returns a Facilitator.
func New(broker *llmbroker.Broker, cfg Config) *Facilitator {
	return &Facilitator{broker: broker, cfg: cfg}
}

// Decide asks the broker for a routing proposal, then applies every
// pre-LLM override in order (spec §4.9). Overrides always win; the
// returned Decision always names a valid roster member when action is
// CONTINUE (spec testable property 8).
func (f *Facilitator) Decide(ctx context.Context, rc RoundContext) (Decision, error) {
	// Hard cap: must transition to VOTE regardless of other scores.
	if rc.Round >= f.cfg.MaxRounds {
		return Decision{Action: ActionVote, Reasoning: "max_rounds reached"}, nil
	}

	proposed, err := f.propose(ctx, rc)
	if err != nil {
		// BrokerError on exhaustion: the owning node applies a default.
		// The facilitator's default is the least-contributed valid
		// expert, same as the next_speaker-missing override below.
		proposed = Decision{Action: ActionContinue}
	}

	return f.applyOverrides(rc, proposed), nil
}

func (f *Facilitator) propose(ctx context.Context, rc RoundContext) (Decision, error) {
	prompt := fmt.Sprintf(
		"Round %d. Exploration score %.2f, focus score %.2f. Missing critical aspects: %v. "+
			"Contribution counts: %v. Choose the next facilitator action.",
		rc.Round, rc.ExplorationScore, rc.FocusScore, rc.MissingCriticalAspects, rc.ContributionCounts,
	)
	resp, _, err := f.broker.Dispatch(ctx, llmbroker.TierStrong, llmbroker.Request{
		Messages: []llmbroker.Message{{Role: llmbroker.RoleUser, Content: prompt}},
		Schema:   decisionSchema,
	})
	if err != nil {
		return Decision{}, err
	}
	var parsed struct {
		Action           string   `json:"action"`
		NextSpeakers     []string `json:"next_speakers"`
		Prompt           string   `json:"prompt"`
		ResearchQuery    string   `json:"research_query"`
		ModeratorVariant string   `json:"moderator_variant"`
		Reasoning        string   `json:"reasoning"`
	}
	if err := json.Unmarshal([]byte(resp.Content), &parsed); err != nil {
		return Decision{}, fmt.Errorf("facilitator: malformed routing output: %w", err)
	}
	return Decision{
		Action:           Action(parsed.Action),
		NextSpeakers:     parsed.NextSpeakers,
		Prompt:           parsed.Prompt,
		ResearchQuery:    parsed.ResearchQuery,
		ModeratorVariant: parsed.ModeratorVariant,
		Reasoning:        parsed.Reasoning,
	}, nil
}

// applyOverrides enforces spec §4.9's pre-LLM rules in order, each capable
// of changing the proposed action or speaker set. Rules are cheaper and
// harder-bound than the LLM's own judgment, so they always take priority.
func (f *Facilitator) applyOverrides(rc RoundContext, proposed Decision) Decision {
	excluded := f.excludedExperts(rc)

	// Rotation: last 3 contributions from the same expert forces a
	// different expert next.
	if len(rc.LastSpeakers) >= f.cfg.ConsecutiveSpeakerMax && allSame(lastN(rc.LastSpeakers, f.cfg.ConsecutiveSpeakerMax)) {
		excluded[rc.LastSpeakers[len(rc.LastSpeakers)-1]] = true
	}

	// round < min_rounds and LLM returned VOTE: override to CONTINUE.
	if proposed.Action == ActionVote && rc.Round < f.cfg.MinRounds {
		next := leastContributed(rc, excluded)
		return Decision{
			Action:         ActionContinue,
			NextSpeakers:   []string{next},
			Reasoning:      "overridden: VOTE proposed before min_rounds",
			Overridden:     true,
			OverrideReason: "round < min_rounds",
		}
	}

	// round >= min_rounds but the hard VOTE gate isn't satisfied: override
	// to CONTINUE. Stricter than the LLM's own judgment by design (spec
	// §4.11) — exploration must clear the threshold AND neither
	// risks_failure_modes nor options_alternatives may still be missing.
	if proposed.Action == ActionVote && !f.voteGateSatisfied(rc) {
		next := leastContributed(rc, excluded)
		return Decision{
			Action:         ActionContinue,
			NextSpeakers:   []string{next},
			Reasoning:      "overridden: VOTE proposed without clearing the exploration/coverage gate",
			Overridden:     true,
			OverrideReason: "exploration_score below threshold or a critical aspect still missing",
		}
	}

	if proposed.Action != ActionContinue {
		return proposed
	}

	// CONTINUE but next_speaker missing or not in roster, or excluded by
	// rotation/dominance/novelty/participation rules: substitute the
	// least-contributed valid roster member (testable property 8 and
	// InvariantViolation policy from spec §7).
	valid := proposed.NextSpeakers[:0:0]
	for _, code := range proposed.NextSpeakers {
		if !excluded[code] && inRoster(rc.Roster, code) {
			valid = append(valid, code)
		}
	}
	if len(valid) == 0 {
		next := leastContributed(rc, excluded)
		if next == "" {
			// No eligible expert at all; let voting take over rather
			// than deadlock.
			return Decision{Action: ActionVote, Reasoning: "no eligible expert remains after overrides"}
		}
		proposed.Overridden = true
		proposed.OverrideReason = "next_speaker absent, not in roster, or excluded"
		valid = []string{next}
	}
	proposed.NextSpeakers = valid
	return proposed
}

// voteGateSatisfied reports whether a proposed VOTE clears the hard router
// gate: exploration at or above threshold, and neither risks_failure_modes
// nor options_alternatives still listed as missing (spec §4.11; see
// DESIGN.md's resolution of the min-rounds-vs-exploration open question).
func (f *Facilitator) voteGateSatisfied(rc RoundContext) bool {
	if rc.ExplorationScore < f.cfg.ExplorationThreshold {
		return false
	}
	for _, a := range rc.MissingCriticalAspects {
		if a == "risks_failure_modes" || a == "options_alternatives" {
			return false
		}
	}
	return true
}

// excludedExperts computes the dominance/novelty/participation exclusions
// that apply regardless of what the LLM proposed (spec §4.9).
func (f *Facilitator) excludedExperts(rc RoundContext) map[string]bool {
	excluded := map[string]bool{}
	total := 0
	for _, n := range rc.ContributionCounts {
		total += n
	}
	for code, n := range rc.ContributionCounts {
		if total > 0 && float64(n)/float64(total) > f.cfg.DominanceShareMax {
			excluded[code] = true
		}
	}
	for code, novelty := range rc.PerExpertNovelty {
		if novelty < 0.4 {
			excluded[code] = true
		}
	}
	for code, count := range rc.ParticipationLast4 {
		if count > 2 { // > 50% of last 4 rounds
			excluded[code] = true
		}
	}
	return excluded
}

func leastContributed(rc RoundContext, excluded map[string]bool) string {
	var codes []string
	for _, e := range rc.Roster {
		if !excluded[e.Persona.ID] {
			codes = append(codes, e.Persona.ID)
		}
	}
	if len(codes) == 0 {
		return ""
	}
	sort.Slice(codes, func(i, j int) bool {
		ci, cj := rc.ContributionCounts[codes[i]], rc.ContributionCounts[codes[j]]
		if ci != cj {
			return ci < cj
		}
		return codes[i] < codes[j]
	})
	return codes[0]
}

func inRoster(roster []persona.Entry, code string) bool {
	for _, e := range roster {
		if e.Persona.ID == code {
			return true
		}
	}
	return false
}

func allSame(xs []string) bool {
	if len(xs) == 0 {
		return false
	}
	for _, x := range xs {
		if x != xs[0] {
			return false
		}
	}
	return true
}

func lastN(xs []string, n int) []string {
	if len(xs) < n {
		return xs
	}
	return xs[len(xs)-n:]
}

var decisionSchema = mustDecisionSchema()

func mustDecisionSchema() *llmbroker.Schema {
	raw := &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"action":            {Type: "string", Enum: []any{"CONTINUE", "VOTE", "RESEARCH", "MODERATOR"}},
			"next_speakers":     {Type: "array", Items: &jsonschema.Schema{Type: "string"}},
			"prompt":            {Type: "string"},
			"research_query":    {Type: "string"},
			"moderator_variant": {Type: "string"},
			"reasoning":         {Type: "string"},
		},
		Required: []string{"action", "reasoning"},
	}
	s, err := llmbroker.NewSchema(raw)
	if err != nil {
		panic(fmt.Sprintf("facilitator: invalid built-in schema: %v", err))
	}
	return s
}
