// Package round runs one parallel-round node: fan out concurrent persona
// calls, embed and dedup the results, summarize, and score (spec §4.8, the
// engine's heart). Concurrent fan-out is grounded on the teacher's
// internal/orchestration/workflow.go executeParallel WaitGroup+mutex idiom.
package round

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"boardofone/internal/embeddings"
	"boardofone/internal/judge"
	"boardofone/internal/llmbroker"
	"boardofone/internal/persona"
	"boardofone/internal/quality"
	"boardofone/internal/summarizer"
	"boardofone/internal/types"
	"boardofone/internal/vectorstore"
)

// contributionTokenCeiling bounds the public portion of a persona's
// contribution to roughly 80 tokens (spec §4.8 step 2).
const contributionTokenCeiling = 120

// PhasePrompt returns the phase-specific instruction appended to every
// persona's prompt in that phase (spec §4.8).
func PhasePrompt(phase types.Phase) string {
	switch phase {
	case types.PhaseExploration:
		return "Surface new perspectives and risks; challenge assumptions. Do not state agreement without offering new information."
	case types.PhaseChallenge:
		return "You must either disagree with a specific prior claim or introduce novel evidence. Do not restate what's already been said."
	default:
		return "State your strongest recommendation, the key risk, and why it outweighs the alternatives."
	}
}

// PhaseForRound derives the phase from round position within maxRounds
// (glossary: exploration | challenge | convergence determined by round
// position within max_rounds).
func PhaseForRound(round, maxRounds int) types.Phase {
	third := maxRounds / 3
	if third < 1 {
		third = 1
	}
	switch {
	case round <= third:
		return types.PhaseExploration
	case round <= 2*third:
		return types.PhaseChallenge
	default:
		return types.PhaseConvergence
	}
}

// Input bundles everything a round needs to run.
type Input struct {
	SubProblem       *types.SubProblem
	Round            int
	MaxRounds        int
	Speakers         []persona.Entry
	HierarchicalCtx  string // prior round summaries + full final-round detail
	ExpertMemory     map[string]string // keyed by persona ID
}

// Output is the round's result: the retained (non-deduped) contributions
// in stable order, the filtered ones, the computed scores, and each
// speaking persona's updated memory for the next sub-problem.
type Output struct {
	Retained     []*types.Contribution
	Filtered     []*types.Contribution
	Summary      *types.RoundSummary
	ExpertMemory map[string]string
}

// Runner executes parallel-round nodes for one sub-problem.
type Runner struct {
	broker     *llmbroker.Broker
	embedder   embeddings.Embedder
	store      *vectorstore.Store
	judge      *judge.Judge
	summarizer *summarizer.Summarizer
	qualityCfg quality.Config
}

// New returns a Runner wired to the given services.
func New(broker *llmbroker.Broker, embedder embeddings.Embedder, store *vectorstore.Store, j *judge.Judge, qualityCfg quality.Config) *Runner {
	return &Runner{broker: broker, embedder: embedder, store: store, judge: j, summarizer: summarizer.New(broker), qualityCfg: qualityCfg}
}

type rawContribution struct {
	persona persona.Entry
	content string
	err     error
}

// Run fans out one concurrent broker call per speaker, embeds and dedups
// the results, computes a round summary and quality scores, and returns
// the round's retained/filtered contributions.
func (r *Runner) Run(ctx context.Context, in Input, sessionID string, priorEmbeddings [][]float32, priorContributions []*types.Contribution) (*Output, error) {
	phase := PhaseForRound(in.Round, in.MaxRounds)
	raw := r.generateConcurrently(ctx, in, phase)

	retained, filtered := r.dedupAndStore(ctx, sessionID, in, phase, raw, priorEmbeddings, priorContributions)

	summary := r.summarize(ctx, in, phase, retained)
	memory := r.updateExpertMemory(ctx, in, retained)
	return &Output{Retained: retained, Filtered: filtered, Summary: summary, ExpertMemory: memory}, nil
}

// updateExpertMemory folds each speaking persona's newest retained
// contribution into its carried-forward memory (spec §3 "per-persona
// summaries feed expert memory"). Personas who didn't speak this round (a
// failed call, or filtered as a near-duplicate) keep their prior memory
// unchanged.
func (r *Runner) updateExpertMemory(ctx context.Context, in Input, retained []*types.Contribution) map[string]string {
	memory := make(map[string]string, len(in.ExpertMemory))
	for id, mem := range in.ExpertMemory {
		memory[id] = mem
	}
	for _, c := range retained {
		memory[c.PersonaID] = r.summarizer.Persona(ctx, c.PersonaID, memory[c.PersonaID], c.Content)
	}
	return memory
}

// generateConcurrently dispatches one broker call per speaker in parallel,
// mirroring the teacher's WaitGroup+mutex-protected-results fan-out.
func (r *Runner) generateConcurrently(ctx context.Context, in Input, phase types.Phase) []rawContribution {
	results := make([]rawContribution, len(in.Speakers))
	var wg sync.WaitGroup
	for i, p := range in.Speakers {
		wg.Add(1)
		go func(idx int, entry persona.Entry) {
			defer wg.Done()
			content, err := r.generateOne(ctx, in, phase, entry)
			results[idx] = rawContribution{persona: entry, content: content, err: err}
		}(i, p)
	}
	wg.Wait()
	return results
}

// generateOne builds one speaker's broker call. The system prompt carries
// only content every speaker in this round shares (sub-problem
// description, hierarchical context, phase instructions) and is marked
// cacheable; persona-specific identity and memory go in the user message
// instead, per the broker's caching contract (spec §4.2) — five personas
// sharing a round should share cached system-prompt tokens, which would
// not happen if each persona's own system prompt varied the cached block.
func (r *Runner) generateOne(ctx context.Context, in Input, phase types.Phase, entry persona.Entry) (string, error) {
	var system strings.Builder
	system.WriteString("Sub-problem: ")
	system.WriteString(in.SubProblem.Description)
	system.WriteString("\n\n")
	system.WriteString(in.HierarchicalCtx)
	system.WriteString("\n\n")
	system.WriteString(PhasePrompt(phase))
	system.WriteString("\n\nRespond with <thinking>...</thinking><contribution>...</contribution>, optionally followed by <recommendation>...</recommendation>.")

	var user strings.Builder
	user.WriteString(entry.Persona.SystemPrompt)
	if mem := in.ExpertMemory[entry.Persona.ID]; mem != "" {
		user.WriteString("\n\nYour memory from prior sub-problems: ")
		user.WriteString(mem)
	}

	resp, _, err := r.broker.Dispatch(ctx, llmbroker.TierFast, llmbroker.Request{
		System:      system.String(),
		CacheSystem: true,
		Messages:    []llmbroker.Message{{Role: llmbroker.RoleUser, Content: user.String()}},
		MaxTokens:   contributionTokenCeiling,
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// dedupAndStore embeds each raw contribution, checks it against every
// embedding already stored for this sub-problem (prior rounds plus
// already-accepted contributions from this round), drops near-duplicates,
// and persists survivors to the vector store.
func (r *Runner) dedupAndStore(ctx context.Context, sessionID string, in Input, phase types.Phase, raw []rawContribution, priorEmbeddings [][]float32, priorContributions []*types.Contribution) (retained, filtered []*types.Contribution) {
	seenEmbeddings := append([][]float32{}, priorEmbeddings...)
	seenContributions := append([]*types.Contribution{}, priorContributions...)

	for _, rc := range raw {
		if rc.err != nil {
			continue // a failed persona call is skipped, not a fatal round error (spec §7)
		}

		contribution := &types.Contribution{
			ID:           fmt.Sprintf("%s-r%d-%s", in.SubProblem.ID, in.Round, rc.persona.Persona.ID),
			SubProblemID: in.SubProblem.ID,
			Round:        in.Round,
			PersonaID:    rc.persona.Persona.ID,
			Phase:        phase,
			Content:      extractTag(rc.content, "contribution"),
			KeyPoints:    nil,
			Confidence:   0.7,
			Timestamp:    time.Now(),
		}
		if contribution.Content == "" {
			contribution.Content = rc.content
		}

		emb, embErr := r.embedder.Embed(ctx, contribution.Content, embeddings.RoleDocument)
		if embErr != nil {
			// EmbeddingError is non-fatal: dedup degrades to no-filtering
			// for this contribution (spec §7).
			retained = append(retained, contribution)
			continue
		}
		contribution.Embedding = emb

		dedup := quality.CheckDedup(r.qualityCfg, emb, seenContributions, seenEmbeddings)
		if dedup.Filtered {
			contribution.Filtered = true
			contribution.FilteredAgainst = dedup.MostSimilarID
			contribution.NoveltyScore = 1 - dedup.MaxSimilarity
			filtered = append(filtered, contribution)
			continue
		}
		contribution.NoveltyScore = 1 - dedup.MaxSimilarity

		if err := r.store.AddContribution(ctx, sessionID, in.SubProblem.ID, contribution.ID, contribution.Content, emb); err != nil {
			// Vector store failure degrades gracefully: the contribution
			// still counts toward the transcript, just without future
			// dedup protection from it.
			_ = err
		}

		retained = append(retained, contribution)
		seenContributions = append(seenContributions, contribution)
		seenEmbeddings = append(seenEmbeddings, emb)
	}

	sort.SliceStable(retained, func(i, j int) bool { return retained[i].PersonaID < retained[j].PersonaID })
	return retained, filtered
}

func (r *Runner) summarize(ctx context.Context, in Input, phase types.Phase, retained []*types.Contribution) *types.RoundSummary {
	var embs [][]float32
	for _, c := range retained {
		if c.Embedding != nil {
			embs = append(embs, c.Embedding)
		}
	}
	summaryText, themes := r.summarizer.Round(ctx, retained)

	var novelty float64
	if len(retained) > 0 {
		var sum float64
		for _, c := range retained {
			sum += c.NoveltyScore
		}
		novelty = sum / float64(len(retained))
	}

	dominant, share := quality.DominantPersona(retained)

	return &types.RoundSummary{
		SubProblemID:      in.SubProblem.ID,
		Round:             in.Round,
		Phase:             phase,
		Summary:           summaryText,
		KeyThemes:         themes,
		ConvergenceScore:  quality.Convergence(embs),
		NoveltyScore:      novelty,
		ConflictScore:     quality.Conflict(embs),
		FocusScore:        focusForRound(retained, in.SubProblem.Description),
		DominantPersonaID: dominant,
		DominanceShare:    share,
		CreatedAt:         time.Now(),
	}
}

func focusForRound(contributions []*types.Contribution, goal string) float64 {
	if len(contributions) == 0 {
		return 1
	}
	var sum float64
	for _, c := range contributions {
		sum += quality.Focus(c.Content, goal)
	}
	return sum / float64(len(contributions))
}

func extractTag(content, tag string) string {
	open := "<" + tag + ">"
	closeTag := "</" + tag + ">"
	start := strings.Index(content, open)
	if start == -1 {
		return ""
	}
	start += len(open)
	end := strings.Index(content[start:], closeTag)
	if end == -1 {
		return ""
	}
	return strings.TrimSpace(content[start : start+end])
}
