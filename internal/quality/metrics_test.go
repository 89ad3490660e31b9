package quality

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"boardofone/internal/types"
)

func TestCheckDedupFiltersNearDuplicate(t *testing.T) {
	cfg := DefaultConfig()
	prior := []*types.Contribution{{PersonaID: "strategist"}}
	priorEmbs := [][]float32{{1, 0, 0}}

	result := CheckDedup(cfg, []float32{0.99, 0.01, 0}, prior, priorEmbs)
	assert.True(t, result.Filtered)
	assert.Equal(t, "strategist", result.MostSimilarID)
}

func TestCheckDedupKeepsDistinctContribution(t *testing.T) {
	cfg := DefaultConfig()
	prior := []*types.Contribution{{PersonaID: "strategist"}}
	priorEmbs := [][]float32{{1, 0, 0}}

	result := CheckDedup(cfg, []float32{0, 1, 0}, prior, priorEmbs)
	assert.False(t, result.Filtered)
}

func TestConvergenceOfIdenticalVectorsIsOne(t *testing.T) {
	embs := [][]float32{{1, 0}, {1, 0}, {1, 0}}
	assert.InDelta(t, 1.0, Convergence(embs), 1e-9)
}

func TestConvergenceOfOrthogonalVectorsIsZero(t *testing.T) {
	embs := [][]float32{{1, 0}, {0, 1}}
	assert.InDelta(t, 0.0, Convergence(embs), 1e-9)
}

func TestNoveltyOfFirstContributionIsMax(t *testing.T) {
	roundEmbs := [][]float32{{1, 0}}
	priorByIndex := [][][]float32{nil}
	assert.Equal(t, 1.0, Novelty(roundEmbs, priorByIndex))
}

func TestFocusScoresOverlap(t *testing.T) {
	score := Focus("we should consider pricing tiers and market demand", "pricing strategy for new market segment")
	assert.Greater(t, score, 0.0)
	assert.LessOrEqual(t, score, 1.0)
}

func TestConflictIsInverseOfConvergence(t *testing.T) {
	embs := [][]float32{{1, 0}, {0, 1}}
	assert.InDelta(t, 1.0, Conflict(embs), 1e-9)
}

func TestDominanceShareExcludesSystemContributions(t *testing.T) {
	contributions := []*types.Contribution{
		{PersonaID: "strategist"},
		{PersonaID: "strategist"},
		{PersonaID: "architect"},
		{PersonaID: "researcher", IsSystem: true},
	}
	shares := DominanceShare(contributions)
	assert.InDelta(t, 2.0/3.0, shares["strategist"], 1e-9)
	assert.NotContains(t, shares, "researcher")
}

func TestDominantPersonaTieBreaksAlphabetically(t *testing.T) {
	contributions := []*types.Contribution{
		{PersonaID: "zeta"},
		{PersonaID: "alpha"},
	}
	dominant, share := DominantPersona(contributions)
	assert.Equal(t, "alpha", dominant)
	assert.InDelta(t, 0.5, share, 1e-9)
}

func TestDominanceShareIgnoresFilteredContributions(t *testing.T) {
	contributions := []*types.Contribution{
		{PersonaID: "strategist"},
		{PersonaID: "strategist", Filtered: true},
	}
	shares := DominanceShare(contributions)
	assert.Equal(t, 1.0, shares["strategist"])
}
