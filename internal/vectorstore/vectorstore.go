// Package vectorstore holds per-sub-problem collections of contribution
// embeddings, backing semantic deduplication and novelty scoring (spec
// §4.3, §4.10). One collection per sub-problem keeps similarity search
// scoped to the contributions that can actually be compared against each
// other; cross-sub-problem comparison is never meaningful here.
//
// Grounded on the teacher's internal/knowledge/vector_store.go chromem-go
// wrapper, narrowed from a general entity store to the one shape Board of
// One needs: add a contribution, find its nearest neighbors within the same
// sub-problem.
package vectorstore

import (
	"context"
	"fmt"
	"log"

	chromem "github.com/philippgille/chromem-go"

	"boardofone/internal/embeddings"
)

// Match is one nearest-neighbor hit against a sub-problem's collection.
type Match struct {
	ContributionID string
	Similarity     float64
}

// Store holds one contribution-embedding collection per sub-problem.
type Store struct {
	db       *chromem.DB
	embedder embeddings.Embedder
}

// Config configures a Store.
type Config struct {
	PersistPath string // empty = in-memory only
	Embedder    embeddings.Embedder
}

// New creates a vector store. With PersistPath set, collections survive
// process restarts the same way checkpoints do.
func New(cfg Config) (*Store, error) {
	if cfg.Embedder == nil {
		return nil, fmt.Errorf("vectorstore: embedder is required")
	}

	var db *chromem.DB
	var err error
	if cfg.PersistPath != "" {
		db, err = chromem.NewPersistentDB(cfg.PersistPath, false)
		if err != nil {
			return nil, fmt.Errorf("vectorstore: open persistent db: %w", err)
		}
		log.Printf("[DEBUG] vectorstore initialized with persistence at %s", cfg.PersistPath)
	} else {
		db = chromem.NewDB()
		log.Printf("[DEBUG] vectorstore initialized (in-memory)")
	}

	return &Store{db: db, embedder: cfg.Embedder}, nil
}

func collectionName(sessionID, subProblemID string) string {
	return sessionID + "/" + subProblemID
}

func (s *Store) getOrCreateCollection(name string) (*chromem.Collection, error) {
	if collection := s.db.GetCollection(name, nil); collection != nil {
		return collection, nil
	}
	return s.db.CreateCollection(name, nil, nil)
}

// AddContribution embeds and stores a contribution's text under its
// sub-problem's collection. Embedding and store failures are returned to
// the caller. internal/round passes a precomputed embedding and treats an
// error here as non-fatal: the contribution is kept, and dedup for the rest
// of the round continues. An embedding failure in internal/round skips
// dedup for that one contribution only; the round is not switched to
// no-dedup.
func (s *Store) AddContribution(ctx context.Context, sessionID, subProblemID, contributionID, text string, embedding []float32) error {
	collection, err := s.getOrCreateCollection(collectionName(sessionID, subProblemID))
	if err != nil {
		return fmt.Errorf("vectorstore: get or create collection: %w", err)
	}

	if embedding == nil {
		embedding, err = s.embedder.Embed(ctx, text, embeddings.RoleDocument)
		if err != nil {
			return fmt.Errorf("vectorstore: embed contribution: %w", err)
		}
	}

	if err := collection.AddDocument(ctx, chromem.Document{
		ID:        contributionID,
		Content:   text,
		Embedding: embedding,
	}); err != nil {
		return fmt.Errorf("vectorstore: add document: %w", err)
	}
	return nil
}

// NearestNeighbors returns the k contributions in a sub-problem's
// collection most similar to the given embedding, sorted by descending
// similarity. Returns an empty slice (not an error) if the collection has
// no prior contributions, which is the common case for the first
// contribution in a sub-problem.
func (s *Store) NearestNeighbors(ctx context.Context, sessionID, subProblemID string, embedding []float32, k int) ([]Match, error) {
	collection := s.db.GetCollection(collectionName(sessionID, subProblemID), nil)
	if collection == nil || collection.Count() == 0 {
		return nil, nil
	}
	if k <= 0 {
		k = 5
	}
	if k > collection.Count() {
		k = collection.Count()
	}

	results, err := collection.QueryEmbedding(ctx, embedding, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: query embedding: %w", err)
	}

	matches := make([]Match, len(results))
	for i, r := range results {
		matches[i] = Match{ContributionID: r.ID, Similarity: float64(r.Similarity)}
	}
	return matches, nil
}

// DropSubProblem removes a sub-problem's collection once it reaches a
// terminal state and its contributions no longer need dedup lookups.
func (s *Store) DropSubProblem(sessionID, subProblemID string) {
	s.db.DeleteCollection(collectionName(sessionID, subProblemID))
}

// Close is a no-op: chromem-go persists on write when PersistPath is set,
// matching the teacher's VectorStore.Close precedent.
func (s *Store) Close() error { return nil }
