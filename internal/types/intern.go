package types

import "sync"

// StringInterner deduplicates repeated strings to reduce memory footprint.
// A single session's contributions repeat the same small set of phase
// names, persona IDs, and metadata keys thousands of times over a long
// deliberation; interning keeps one copy of each.
type StringInterner struct {
	mu      sync.RWMutex
	strings map[string]string // canonical string -> itself
}

var (
	// Global interners for common string types
	phaseInterner     = NewStringInterner()
	personaIDInterner = NewStringInterner()
	metadataInterner  = NewStringInterner()
)

// NewStringInterner creates a new string interner
func NewStringInterner() *StringInterner {
	return &StringInterner{
		strings: make(map[string]string, 100),
	}
}

// Intern returns the canonical instance of the string
// If the string hasn't been seen before, it's added to the intern pool
func (si *StringInterner) Intern(s string) string {
	if s == "" {
		return ""
	}

	// Fast path: check if already interned (read lock)
	si.mu.RLock()
	if canonical, exists := si.strings[s]; exists {
		si.mu.RUnlock()
		return canonical
	}
	si.mu.RUnlock()

	// Slow path: intern the string (write lock)
	si.mu.Lock()
	defer si.mu.Unlock()

	// Double-check after acquiring write lock
	if canonical, exists := si.strings[s]; exists {
		return canonical
	}

	// Add to intern pool
	si.strings[s] = s
	return s
}

// InternPhase interns a deliberation phase string.
func InternPhase(phase Phase) Phase {
	return Phase(phaseInterner.Intern(string(phase)))
}

// InternPersonaID interns a persona ID string.
func InternPersonaID(personaID string) string {
	return personaIDInterner.Intern(personaID)
}

// InternMetadataKey interns a metadata key string
func InternMetadataKey(key string) string {
	return metadataInterner.Intern(key)
}

// Size returns the number of interned strings
func (si *StringInterner) Size() int {
	si.mu.RLock()
	defer si.mu.RUnlock()
	return len(si.strings)
}

// Clear removes all interned strings (useful for testing)
func (si *StringInterner) Clear() {
	si.mu.Lock()
	defer si.mu.Unlock()
	si.strings = make(map[string]string, 100)
}
