// Package embeddings generates vector embeddings for deliberation
// contributions, grounded on the teacher's internal/embeddings package
// (embedder.go + similarity.go). Semantic similarity over these vectors
// backs dedup and novelty scoring in internal/quality.
package embeddings

import (
	"context"
	"time"
)

// Role distinguishes how a text is being embedded, per the Voyage AI
// (and most modern embedding APIs') document/query asymmetry: a query
// embedding is optimized for retrieval against a corpus of document
// embeddings, not for direct comparison with another query.
type Role string

const (
	RoleDocument Role = "document"
	RoleQuery    Role = "query"
)

// Embedder generates vector embeddings from text.
type Embedder interface {
	// Embed generates an embedding for a single text under the given role.
	Embed(ctx context.Context, text string, role Role) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts in one call.
	EmbedBatch(ctx context.Context, texts []string, role Role) ([][]float32, error)

	// Dimension returns the embedding dimension.
	Dimension() int

	// Model returns the model identifier.
	Model() string

	// Provider returns the provider name.
	Provider() string
}

// Metadata describes the provenance of a stored embedding.
type Metadata struct {
	Model     string    `json:"model"`
	Provider  string    `json:"provider"`
	Dimension int       `json:"dimension"`
	CreatedAt time.Time `json:"created_at"`
}
