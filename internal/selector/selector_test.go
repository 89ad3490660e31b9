package selector

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"boardofone/internal/persona"
	"boardofone/internal/types"
)

func TestSelectReturnsCountWithinBounds(t *testing.T) {
	cat := persona.DefaultCatalog()
	sel := New(DefaultConfig())

	result := sel.Select(cat, []string{"finance", "legal"}, 4)
	assert.GreaterOrEqual(t, len(result.Selected), DefaultConfig().MinCount)
	assert.LessOrEqual(t, len(result.Selected), DefaultConfig().MaxCount)
}

func TestSelectCoversRequiredDomainTags(t *testing.T) {
	cat := persona.DefaultCatalog()
	sel := New(DefaultConfig())

	result := sel.Select(cat, []string{"finance", "legal", "engineering"}, 5)
	covered := map[string]bool{}
	for _, e := range result.Selected {
		for _, tag := range e.DomainTags {
			covered[tag] = true
		}
	}
	assert.True(t, covered["finance"])
	assert.True(t, covered["legal"])
	assert.True(t, covered["engineering"])
}

func TestSelectExcludesModerators(t *testing.T) {
	cat := persona.DefaultCatalog()
	sel := New(DefaultConfig())

	result := sel.Select(cat, nil, 3)
	for _, e := range result.Selected {
		assert.False(t, e.Persona.IsModerator)
	}
}

func TestSelectNoDuplicatePersonas(t *testing.T) {
	cat := persona.DefaultCatalog()
	sel := New(DefaultConfig())

	result := sel.Select(cat, []string{"product", "data"}, 5)
	seen := map[string]bool{}
	for _, e := range result.Selected {
		assert.False(t, seen[e.Persona.ID], "duplicate persona in selection: %s", e.Persona.ID)
		seen[e.Persona.ID] = true
	}
}

func TestSelectRationaleMatchesSelection(t *testing.T) {
	cat := persona.DefaultCatalog()
	sel := New(DefaultConfig())

	result := sel.Select(cat, []string{"finance"}, 3)
	assert.Len(t, result.Rationale, len(result.Selected))
}

func TestSelectOnSmallCatalogRelaxesDiversity(t *testing.T) {
	small := persona.NewCatalog([]persona.Entry{
		{Persona: types.Persona{ID: "a", Name: "A"}, Perspective: persona.PerspectiveStrategic, DomainTags: []string{"finance"},
			Traits: map[string]float64{persona.TraitRiskTolerance: 0.5}},
		{Persona: types.Persona{ID: "b", Name: "B"}, Perspective: persona.PerspectiveStrategic, DomainTags: []string{"finance"},
			Traits: map[string]float64{persona.TraitRiskTolerance: 0.5}},
	})
	sel := New(DefaultConfig())

	result := sel.Select(small, []string{"finance"}, 3)
	assert.LessOrEqual(t, len(result.Selected), 2)
	assert.True(t, result.Relaxed)
}
