package persona

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalogHasExpertsAndModerators(t *testing.T) {
	cat := DefaultCatalog()
	assert.Equal(t, len(builtinExperts)+len(builtinModerators), cat.Count())

	strategist, ok := cat.Lookup("strategist")
	require.True(t, ok)
	assert.Equal(t, "Strategist", strategist.Persona.Name)

	_, ok = cat.Lookup("does-not-exist")
	assert.False(t, ok)
}

func TestCatalogAllIsAlphabeticalByCode(t *testing.T) {
	cat := DefaultCatalog()
	all := cat.All()
	for i := 1; i < len(all); i++ {
		assert.LessOrEqual(t, all[i-1].Persona.ID, all[i].Persona.ID)
	}
}

func TestCatalogFilterExcludesModerators(t *testing.T) {
	cat := DefaultCatalog()
	experts := cat.Filter(func(e Entry) bool { return !e.Persona.IsModerator })
	assert.Len(t, experts, len(builtinExperts))
	for _, e := range experts {
		assert.False(t, e.Persona.IsModerator)
	}
}

func TestEntryTraitVectorIsFixedOrder(t *testing.T) {
	cat := DefaultCatalog()
	a, _ := cat.Lookup("strategist")
	b, _ := cat.Lookup("finance_analyst")
	assert.Len(t, a.TraitVector(), len(traitKeys))
	assert.Len(t, b.TraitVector(), len(traitKeys))
}

func TestCatalogSnapshotIsImmutable(t *testing.T) {
	entries := []Entry{strategistPersona()}
	cat := NewCatalog(entries)
	entries[0].Persona.Name = "mutated after construction"

	e, ok := cat.Lookup("strategist")
	require.True(t, ok)
	assert.Equal(t, "Strategist", e.Persona.Name)
}
