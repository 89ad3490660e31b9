package complexity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAssessAtomicLowComplexityProblem(t *testing.T) {
	a := NewAssessor()
	result := a.Assess("Should I use PostgreSQL or MySQL for a 10-user B2B tool?", "")

	assert.Less(t, result.Overall, 0.3)
	assert.Equal(t, 3, result.MaxRounds)
	assert.Equal(t, 3, result.NumExperts)
}

func TestAssessMultiDomainProblemScoresHigher(t *testing.T) {
	a := NewAssessor()
	atomic := a.Assess("Which database should we use?", "")
	broad := a.Assess(
		"Should we expand our US SaaS to the EU?",
		"This affects market demand, requires GDPR legal compliance, depends on "+
			"engineering localization, and impacts our finance budget and customers, "+
			"investors, and regulators. It's unclear how competitors will respond.",
	)

	assert.Greater(t, broad.Overall, atomic.Overall)
	assert.Greater(t, broad.ScopeBreadth, atomic.ScopeBreadth)
}

func TestAssessNoveltyCappedForWellEstablishedPatterns(t *testing.T) {
	a := NewAssessor()
	result := a.Assess("What pricing model should we use for our new tier?", "")
	assert.LessOrEqual(t, result.Novelty, 0.5)
}

func TestAssessValidationRuleRaisesOverallWithHighScope(t *testing.T) {
	a := NewAssessor()
	result := a.Assess(
		"market customer competitor engineering architecture finance legal regulat hiring",
		"",
	)
	if result.ScopeBreadth > 0.7 {
		assert.GreaterOrEqual(t, result.Overall, 0.5)
	}
}

func TestAssessOverallAlwaysClamped(t *testing.T) {
	a := NewAssessor()
	result := a.Assess("", "")
	assert.GreaterOrEqual(t, result.Overall, 0.0)
	assert.LessOrEqual(t, result.Overall, 1.0)
}
