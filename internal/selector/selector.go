// Package selector picks the persona roster for a sub-problem, balancing
// domain coverage, perspective diversity, and redundancy avoidance
// (spec §4.7).
package selector

import (
	"math"
	"sort"

	"boardofone/internal/persona"
)

// Config holds the thresholds the selector enforces.
type Config struct {
	// DomainOverlapThreshold excludes a candidate whose domain-tag overlap
	// with an already-selected persona exceeds this fraction of the
	// smaller tag set.
	DomainOverlapThreshold float64
	// TraitSimilarityThreshold excludes a candidate whose trait-vector
	// cosine similarity with an already-selected persona is >= this value.
	TraitSimilarityThreshold float64
	MinCount                 int
	MaxCount                 int
}

// DefaultConfig returns the thresholds named in spec §4.7.
func DefaultConfig() Config {
	return Config{
		DomainOverlapThreshold:   0.75,
		TraitSimilarityThreshold: 0.8,
		MinCount:                 3,
		MaxCount:                 5,
	}
}

// Result is the outcome of one Select call.
type Result struct {
	Selected  []persona.Entry
	Rationale []string // one entry per selected persona, same order
	Relaxed   bool      // true if the diversity constraint had to be relaxed
	Warning   string    // non-empty iff Relaxed
}

// Selector chooses personas for a sub-problem from a catalog.
type Selector struct {
	cfg Config
}

// New returns a Selector with the given configuration.
func New(cfg Config) *Selector {
	return &Selector{cfg: cfg}
}

// Select picks up to wantCount non-moderator personas from the catalog.
// requiredTags is the sub-problem's required expertise; wantCount
// (typically internal/complexity's NumExperts recommendation) is clamped
// into [MinCount, MaxCount]. Fewer are returned when the catalog has too
// few candidates passing the overlap and similarity exclusions.
func (s *Selector) Select(cat *persona.Catalog, requiredTags []string, wantCount int) Result {
	count := clampInt(wantCount, s.cfg.MinCount, s.cfg.MaxCount)
	candidates := cat.Filter(func(e persona.Entry) bool { return !e.Persona.IsModerator })
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Persona.ID < candidates[j].Persona.ID })

	selected := s.coverageFirst(candidates, requiredTags, count)
	selected, relaxed := s.fillForDiversity(candidates, selected, count)

	result := Result{Selected: selected, Relaxed: relaxed}
	if relaxed {
		result.Warning = "could not satisfy perspective diversity with available non-redundant personas; coverage preserved, diversity relaxed"
	}
	for _, e := range selected {
		result.Rationale = append(result.Rationale, rationaleFor(e, requiredTags))
	}
	return result
}

// coverageFirst greedily covers requiredTags (set-cover heuristic): at each
// step, pick the eligible candidate covering the most still-uncovered
// tags, alphabetical tie-break (spec §4.7 determinism requirement).
func (s *Selector) coverageFirst(candidates []persona.Entry, requiredTags []string, count int) []persona.Entry {
	uncovered := make(map[string]bool, len(requiredTags))
	for _, t := range requiredTags {
		uncovered[t] = true
	}

	var selected []persona.Entry
	for len(uncovered) > 0 && len(selected) < count {
		best, bestGain := -1, -1
		for i, c := range candidates {
			if containsEntry(selected, c) || !s.eligible(selected, c) {
				continue
			}
			gain := 0
			for tag := range uncovered {
				if c.HasDomainTag(tag) {
					gain++
				}
			}
			if gain > bestGain {
				best, bestGain = i, gain
			}
		}
		if best == -1 || bestGain == 0 {
			break
		}
		chosen := candidates[best]
		selected = append(selected, chosen)
		for tag := range uncovered {
			if chosen.HasDomainTag(tag) {
				delete(uncovered, tag)
			}
		}
	}
	return selected
}

// fillForDiversity tops up the selection to count, preferring personas
// from perspectives not yet represented. If it cannot fill count while
// satisfying both diversity and the overlap/similarity exclusions, it
// relaxes diversity (keeps picking eligible candidates regardless of
// perspective) and reports that via the returned bool.
func (s *Selector) fillForDiversity(candidates []persona.Entry, selected []persona.Entry, count int) ([]persona.Entry, bool) {
	have := func(p persona.Perspective) bool {
		for _, e := range selected {
			if e.Perspective == p {
				return true
			}
		}
		return false
	}
	missing := func() []persona.Perspective {
		var m []persona.Perspective
		for _, p := range []persona.Perspective{persona.PerspectiveStrategic, persona.PerspectiveTactical, persona.PerspectiveExecution} {
			if !have(p) {
				m = append(m, p)
			}
		}
		return m
	}

	for len(selected) < count {
		candidate := s.pickDiverse(candidates, selected, missing())
		if candidate == nil {
			break
		}
		selected = append(selected, *candidate)
	}

	if len(missing()) > 0 && len(selected) < count {
		for len(selected) < count {
			candidate := s.pickAnyEligible(candidates, selected)
			if candidate == nil {
				break
			}
			selected = append(selected, *candidate)
		}
		return selected, true
	}
	return selected, len(missing()) > 0
}

func (s *Selector) pickDiverse(candidates []persona.Entry, selected []persona.Entry, wantPerspectives []persona.Perspective) *persona.Entry {
	if len(wantPerspectives) == 0 {
		return s.pickAnyEligible(candidates, selected)
	}
	for _, c := range candidates {
		if containsEntry(selected, c) || !s.eligible(selected, c) {
			continue
		}
		for _, want := range wantPerspectives {
			if c.Perspective == want {
				cc := c
				return &cc
			}
		}
	}
	return nil
}

func (s *Selector) pickAnyEligible(candidates []persona.Entry, selected []persona.Entry) *persona.Entry {
	for _, c := range candidates {
		if containsEntry(selected, c) || !s.eligible(selected, c) {
			continue
		}
		cc := c
		return &cc
	}
	return nil
}

// eligible reports whether candidate c can join selected: no domain-tag
// overlap exceeding the configured threshold and no trait-vector cosine
// similarity at or above the configured threshold with any already-picked
// persona.
func (s *Selector) eligible(selected []persona.Entry, c persona.Entry) bool {
	for _, e := range selected {
		if tagOverlapRatio(e.DomainTags, c.DomainTags) > s.cfg.DomainOverlapThreshold {
			return false
		}
		if cosineSimilarity(e.TraitVector(), c.TraitVector()) >= s.cfg.TraitSimilarityThreshold {
			return false
		}
	}
	return true
}

func rationaleFor(e persona.Entry, requiredTags []string) string {
	var covered []string
	for _, t := range requiredTags {
		if e.HasDomainTag(t) {
			covered = append(covered, t)
		}
	}
	if len(covered) == 0 {
		return e.Persona.Name + ": " + string(e.Perspective) + " perspective"
	}
	reason := e.Persona.Name + ": covers"
	for i, t := range covered {
		if i > 0 {
			reason += ","
		}
		reason += " " + t
	}
	return reason
}

func containsEntry(list []persona.Entry, e persona.Entry) bool {
	for _, x := range list {
		if x.Persona.ID == e.Persona.ID {
			return true
		}
	}
	return false
}

func tagOverlapRatio(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]bool, len(a))
	for _, t := range a {
		set[t] = true
	}
	overlap := 0
	for _, t := range b {
		if set[t] {
			overlap++
		}
	}
	smaller := len(a)
	if len(b) < smaller {
		smaller = len(b)
	}
	return float64(overlap) / float64(smaller)
}

func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
