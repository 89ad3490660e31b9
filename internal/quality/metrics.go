// Package quality scores a round's contributions: semantic dedup,
// convergence, novelty, focus, conflict, and dominance share (spec §4.8
// step 3/5, §4.10). Exploration scoring itself lives in internal/judge,
// since it requires an LLM call rather than embedding math.
package quality

import (
	"sort"
	"strings"

	"boardofone/internal/embeddings"
	"boardofone/internal/types"
)

// Config holds the thresholds this package enforces.
type Config struct {
	DedupThreshold         float64
	NearIdenticalThreshold float64
	DominanceShareMax      float64
}

// DefaultConfig returns the thresholds named in spec §6/§9 (Open Question
// resolution 4: single configurable dedup value, default 0.80; a separate
// near-identical threshold of 0.90).
func DefaultConfig() Config {
	return Config{
		DedupThreshold:         0.80,
		NearIdenticalThreshold: 0.90,
		DominanceShareMax:      0.25,
	}
}

// DedupResult is the outcome of checking one candidate contribution
// against prior contributions in the same sub-problem.
type DedupResult struct {
	Filtered        bool
	MaxSimilarity   float64
	MostSimilarID   string
	NearIdentical   bool
}

// CheckDedup compares candidateEmbedding against every prior contribution's
// embedding and reports whether it should be dropped as a near-duplicate
// (spec §4.8 step 3). prior must carry one embedding per contribution, same
// order as contributions.
func CheckDedup(cfg Config, candidateEmbedding []float32, prior []*types.Contribution, priorEmbeddings [][]float32) DedupResult {
	var maxSim float64
	var mostSimilar string
	for i, emb := range priorEmbeddings {
		sim := embeddings.CosineSimilarity(candidateEmbedding, emb)
		if sim > maxSim {
			maxSim = sim
			if i < len(prior) {
				mostSimilar = prior[i].PersonaID
			}
		}
	}
	return DedupResult{
		Filtered:      maxSim >= cfg.DedupThreshold,
		MaxSimilarity: maxSim,
		MostSimilarID: mostSimilar,
		NearIdentical: maxSim >= cfg.NearIdenticalThreshold,
	}
}

// Convergence returns the mean pairwise cosine similarity of the given
// embeddings (spec glossary: "mean pairwise cosine similarity of recent
// contributions").
func Convergence(embs [][]float32) float64 {
	var sum float64
	var pairs int
	for i := 0; i < len(embs); i++ {
		for j := i + 1; j < len(embs); j++ {
			sum += embeddings.CosineSimilarity(embs[i], embs[j])
			pairs++
		}
	}
	if pairs == 0 {
		return 0
	}
	return sum / float64(pairs)
}

// Novelty is the round's average (1 - max similarity against all prior
// contributions), per-contribution. priorByIndex[i] is the set of
// embeddings that existed before contribution i was generated.
func Novelty(roundEmbs [][]float32, priorByIndex [][][]float32) float64 {
	if len(roundEmbs) == 0 {
		return 1
	}
	var sum float64
	for i, emb := range roundEmbs {
		maxSim := 0.0
		if i < len(priorByIndex) {
			for _, p := range priorByIndex[i] {
				if sim := embeddings.CosineSimilarity(emb, p); sim > maxSim {
					maxSim = sim
				}
			}
		}
		sum += 1 - maxSim
	}
	return sum / float64(len(roundEmbs))
}

// PerExpertNovelty is the mean similarity (not 1-similarity, see spec
// glossary "per-expert novelty is the mean similarity of an expert's own
// recent contributions") of a persona's last n contributions against each
// other.
func PerExpertNovelty(recentOwnEmbs [][]float32) float64 {
	if len(recentOwnEmbs) < 2 {
		return 0
	}
	var sum float64
	var pairs int
	for i := 0; i < len(recentOwnEmbs); i++ {
		for j := i + 1; j < len(recentOwnEmbs); j++ {
			sum += embeddings.CosineSimilarity(recentOwnEmbs[i], recentOwnEmbs[j])
			pairs++
		}
	}
	return sum / float64(pairs)
}

// Focus is a heuristic keyword-overlap score between a contribution and
// the sub-problem's goal statement (spec §4.8 step 5). internal/round
// averages it over a round's retained contributions; no LLM-assisted focus
// check is made when the score is low.
func Focus(contribution, goal string) float64 {
	goalWords := keywordSet(goal)
	if len(goalWords) == 0 {
		return 1
	}
	contribWords := keywordSet(contribution)
	hits := 0
	for w := range goalWords {
		if contribWords[w] {
			hits++
		}
	}
	return float64(hits) / float64(len(goalWords))
}

func keywordSet(text string) map[string]bool {
	set := map[string]bool{}
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, ".,;:!?\"'()")
		if len(w) > 3 {
			set[w] = true
		}
	}
	return set
}

// Conflict scores disagreement as 1 - convergence over the same recent
// window; a low-convergence round is read as high-conflict.
func Conflict(embs [][]float32) float64 {
	return 1 - Convergence(embs)
}

// DominanceShare returns, for each non-system persona, its share of total
// non-system contributions (spec §9 resolution 3: researcher/system
// contributions are excluded from dominance-share accounting).
func DominanceShare(contributions []*types.Contribution) map[string]float64 {
	counts := map[string]int{}
	total := 0
	for _, c := range contributions {
		if c.IsSystem || c.Filtered {
			continue
		}
		counts[c.PersonaID]++
		total++
	}
	shares := make(map[string]float64, len(counts))
	if total == 0 {
		return shares
	}
	for persona, n := range counts {
		shares[persona] = float64(n) / float64(total)
	}
	return shares
}

// DominantPersona returns the persona with the largest dominance share and
// that share, or ("", 0) if there are no non-system contributions.
// Alphabetical tie-break keeps the result deterministic across runs.
func DominantPersona(contributions []*types.Contribution) (string, float64) {
	shares := DominanceShare(contributions)
	personas := make([]string, 0, len(shares))
	for p := range shares {
		personas = append(personas, p)
	}
	sort.Strings(personas)

	var best string
	var bestShare float64
	for _, p := range personas {
		if shares[p] > bestShare {
			best, bestShare = p, shares[p]
		}
	}
	return best, bestShare
}
