// Package complexity assesses a decision problem along five weighted
// dimensions and recommends round/expert budgets for the decomposer and
// selector.
package complexity

import (
	"math"
	"regexp"
	"strings"
)

// Dimension weights (spec §4.6). Sum to 1.0.
const (
	WeightScopeBreadth  = 0.25
	WeightDependencies  = 0.25
	WeightAmbiguity     = 0.20
	WeightStakeholders  = 0.15
	WeightNovelty       = 0.15
)

// Assessment is the scored result for one problem.
type Assessment struct {
	ScopeBreadth float64
	Dependencies float64
	Ambiguity    float64
	Stakeholders float64
	Novelty      float64
	Overall      float64 // weighted sum, clamped to [0,1]
	MaxRounds    int
	NumExperts   int
}

// Assessor scores problems heuristically from their statement and context,
// the way the teacher's problem classifier reads surface signals rather
// than calling a model for a judgment this cheap.
type Assessor struct{}

// NewAssessor returns an Assessor. It holds no state.
func NewAssessor() *Assessor {
	return &Assessor{}
}

// wellEstablishedPatterns caps novelty for problem types the catalog
// already has deep pattern coverage for (spec §4.6).
var wellEstablishedPatterns = []string{
	"pricing", "price", "tech stack", "technology stack", "which database",
	"postgresql", "mysql", "hiring", "hire", "build vs buy", "buy vs build",
}

var domainKeywordSets = [][]string{
	{"market", "customer", "competitor", "competitive", "demand", "sales"},
	{"engineering", "technical", "architecture", "infrastructure", "system", "software", "code"},
	{"finance", "cost", "budget", "revenue", "margin", "price", "funding"},
	{"legal", "regulat", "compliance", "contract", "liability", "gdpr"},
	{"hr", "staff", "hiring", "team", "culture", "organization"},
	{"product", "feature", "user", "ux", "design"},
	{"operations", "logistics", "supply", "process", "support"},
}

var dependencyConnectors = []string{
	"depends on", "affects", "impacts", "requires", "before we can",
	"which in turn", "tied to", "contingent on", "blocks", "unlocks",
}

var ambiguityHedges = []string{
	"might", "maybe", "unclear", "not sure", "uncertain", "unknown",
	"could be", "possibly", "hard to say", "depends",
}

var stakeholderTerms = []string{
	"customers", "users", "investors", "employees", "team", "board",
	"partners", "regulators", "competitors", "vendors", "leadership",
}

// Assess scores the given problem statement and optional context.
func (a *Assessor) Assess(statement, context string) Assessment {
	text := strings.ToLower(statement + " " + context)

	scope := clamp01(float64(countDistinctMatches(text, domainKeywordSets)) / 4.0)
	deps := clamp01(float64(countMatches(text, dependencyConnectors)) / 3.0)
	ambiguity := clamp01(float64(countMatches(text, ambiguityHedges)) / 3.0)
	stakeholders := clamp01(float64(countMatches(text, stakeholderTerms)) / 4.0)
	novelty := clamp01(0.3 + float64(countWords(text))/400.0)
	if containsAny(text, wellEstablishedPatterns) {
		novelty = math.Min(novelty, 0.5)
	}

	overall := clamp01(scope*WeightScopeBreadth +
		deps*WeightDependencies +
		ambiguity*WeightAmbiguity +
		stakeholders*WeightStakeholders +
		novelty*WeightNovelty)

	// Validation rule: if scope_breadth > 0.7, overall must be >= 0.5;
	// otherwise re-derive by folding the scope signal more heavily into
	// overall directly (spec §4.6).
	if scope > 0.7 && overall < 0.5 {
		overall = clamp01((overall + scope) / 2)
	}

	rounds, experts := band(overall)
	return Assessment{
		ScopeBreadth: scope,
		Dependencies: deps,
		Ambiguity:    ambiguity,
		Stakeholders: stakeholders,
		Novelty:      novelty,
		Overall:      overall,
		MaxRounds:    rounds,
		NumExperts:   experts,
	}
}

// band maps overall complexity to the recommended max_rounds/num_experts
// bands from spec §4.6.
func band(overall float64) (maxRounds, numExperts int) {
	switch {
	case overall < 0.2:
		return 3, 3
	case overall < 0.4:
		return 4, 3
	case overall < 0.6:
		return 5, 4
	case overall < 0.8:
		return 6, 4
	default:
		return 7, 5
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func countMatches(text string, terms []string) int {
	n := 0
	for _, t := range terms {
		if strings.Contains(text, t) {
			n++
		}
	}
	return n
}

func countDistinctMatches(text string, sets [][]string) int {
	n := 0
	for _, set := range sets {
		if countMatches(text, set) > 0 {
			n++
		}
	}
	return n
}

func containsAny(text string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(text, t) {
			return true
		}
	}
	return false
}

var wordSplit = regexp.MustCompile(`\s+`)

func countWords(text string) int {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return 0
	}
	return len(wordSplit.Split(trimmed, -1))
}
