// Package moderator inserts rule-triggered contrarian/skeptic/optimist
// interventions to correct discussion dynamics (spec §4.12). Trigger
// detection is heuristic, grounded on the teacher's
// internal/analysis/perspective.go pattern-matching idiom; generation goes
// through internal/llmbroker like any other persona call.
package moderator

import (
	"context"
	"fmt"
	"math"
	"strings"

	"boardofone/internal/llmbroker"
	"boardofone/internal/persona"
)

// Variant names one of the three fixed moderator personas.
type Variant string

const (
	VariantContrarian Variant = "contrarian"
	VariantSkeptic    Variant = "skeptic"
	VariantOptimist   Variant = "optimist"
)

func (v Variant) personaID() string {
	return "moderator_" + string(v)
}

// contributionTokenCeiling bounds a moderator's generated contribution to
// roughly 100 tokens (spec §4.12).
const contributionTokenCeiling = 140

var absoluteClaimWords = []string{"always", "never", "definitely", "guaranteed", "certainly", "undeniably", "obviously"}
var evidenceWords = []string{"data", "study", "evidence", "measured", "because", "research", "benchmark"}

// Moderator tracks which variants have already fired for a sub-problem
// (spec §4.12: "at most once per sub-problem per variant unless explicitly
// reset") and evaluates the rule-based triggers.
type Moderator struct {
	broker *llmbroker.Broker
	cat    *persona.Catalog
	used   map[Variant]bool
}

// New returns a Moderator for one sub-problem's deliberation.
func New(broker *llmbroker.Broker, cat *persona.Catalog) *Moderator {
	return &Moderator{broker: broker, cat: cat, used: make(map[Variant]bool)}
}

// Reset clears the used flag for variant, allowing it to trigger again.
func (m *Moderator) Reset(variant Variant) {
	delete(m.used, variant)
}

// Used reports whether variant has already fired for this sub-problem.
func (m *Moderator) Used(variant Variant) bool {
	return m.used[variant]
}

// TriggerContrarian reports whether the early-round premature-consensus
// rule fires: round <= ceil(maxRounds/3) and convergence > 0.80.
func TriggerContrarian(round, maxRounds int, convergence float64) bool {
	earlyBound := int(math.Ceil(float64(maxRounds) / 3))
	return round <= earlyBound && convergence > 0.80
}

// TriggerSkeptic heuristically detects unsupported absolute claims:
// contributions containing an absolute-claim word without any
// evidence-bearing word nearby.
func TriggerSkeptic(recentContributions []string) bool {
	for _, c := range recentContributions {
		lower := strings.ToLower(c)
		hasAbsolute := containsAny(lower, absoluteClaimWords)
		hasEvidence := containsAny(lower, evidenceWords)
		if hasAbsolute && !hasEvidence {
			return true
		}
	}
	return false
}

// TriggerOptimist reports whether conflict has stayed above 0.70 for at
// least 3 consecutive rounds (deadlock).
func TriggerOptimist(recentConflictScores []float64) bool {
	if len(recentConflictScores) < 3 {
		return false
	}
	window := recentConflictScores[len(recentConflictScores)-3:]
	for _, c := range window {
		if c <= 0.70 {
			return false
		}
	}
	return true
}

func containsAny(text string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(text, t) {
			return true
		}
	}
	return false
}

// Generate produces a single moderator contribution for variant, bounded
// to roughly 100 tokens, and marks the variant used. transcriptContext is
// whatever window of recent contributions the caller wants the moderator
// to react to.
func (m *Moderator) Generate(ctx context.Context, variant Variant, transcriptContext string) (string, error) {
	entry, ok := m.cat.Lookup(variant.personaID())
	if !ok {
		return "", fmt.Errorf("moderator: no catalog entry for variant %q", variant)
	}

	resp, _, err := m.broker.Dispatch(ctx, llmbroker.TierFast, llmbroker.Request{
		System:    entry.Persona.SystemPrompt,
		Messages:  []llmbroker.Message{{Role: llmbroker.RoleUser, Content: transcriptContext}},
		MaxTokens: contributionTokenCeiling,
	})
	if err != nil {
		return "", fmt.Errorf("moderator: %s generation failed: %w", variant, err)
	}

	m.used[variant] = true
	return resp.Content, nil
}
