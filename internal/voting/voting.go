// Package voting collects per-persona votes once the facilitator decides a
// sub-problem is ready, runs the single calibration pass, and synthesizes
// the sub-problem's recommendation from hierarchical context (spec §4.14).
// Vote-collection fan-out is grounded on the teacher's
// internal/orchestration/workflow.go executeParallel idiom; confidence
// scoring is grounded on internal/reasoning/decision.go's margin-of-victory
// calculation generalized from weighted criteria to vote plurality, and
// synthesis confidence adjustment is grounded on
// internal/integration/synthesizer.go's boost/penalty/clamp idiom.
package voting

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"

	"boardofone/internal/llmbroker"
	"boardofone/internal/persona"
	"boardofone/internal/types"
)

// Collector gathers votes, calibrates them, and synthesizes results.
type Collector struct {
	broker *llmbroker.Broker
}

// New returns a Collector.
func New(broker *llmbroker.Broker) *Collector {
	return &Collector{broker: broker}
}

// CollectVotes dispatches one parallel broker call per persona asking for
// its final recommendation on the sub-problem, given the full transcript
// context. A persona whose call fails is silently skipped — voting
// proceeds on whatever quorum remains, matching the non-fatal per-call
// failure policy used throughout the engine.
func (c *Collector) CollectVotes(ctx context.Context, subProblemID, transcript string, voters []persona.Entry) []types.Vote {
	votes := make([]*types.Vote, len(voters))
	var wg sync.WaitGroup
	for i, v := range voters {
		wg.Add(1)
		go func(idx int, entry persona.Entry) {
			defer wg.Done()
			vote, err := c.collectOne(ctx, subProblemID, transcript, entry)
			if err != nil {
				return
			}
			votes[idx] = vote
		}(i, v)
	}
	wg.Wait()

	out := make([]types.Vote, 0, len(votes))
	for _, v := range votes {
		if v != nil {
			out = append(out, *v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PersonaID < out[j].PersonaID })
	markDissent(out)
	return out
}

// collectOne's system prompt carries only the transcript every voter shares,
// marked cacheable; persona identity moves into the user message so the
// per-persona fan-out in CollectVotes shares cached system-prompt tokens,
// mirroring internal/round's generateOne (spec §4.2's caching contract).
func (c *Collector) collectOne(ctx context.Context, subProblemID, transcript string, entry persona.Entry) (*types.Vote, error) {
	system := fmt.Sprintf(
		"Sub-problem transcript:\n%s\n\nState your final recommendation, your confidence (0-1), and your rationale in one or two sentences.",
		transcript,
	)
	resp, _, err := c.broker.Dispatch(ctx, llmbroker.TierFast, llmbroker.Request{
		System:      system,
		CacheSystem: true,
		Messages:    []llmbroker.Message{{Role: llmbroker.RoleUser, Content: entry.Persona.SystemPrompt}},
		Schema:      voteSchema,
	})
	if err != nil {
		return nil, err
	}
	var parsed struct {
		Recommendation string  `json:"recommendation"`
		Confidence     float64 `json:"confidence"`
		Rationale      string  `json:"rationale"`
	}
	if err := json.Unmarshal([]byte(resp.Content), &parsed); err != nil {
		return nil, fmt.Errorf("voting: malformed vote from %s: %w", entry.Persona.ID, err)
	}
	return &types.Vote{
		PersonaID:      entry.Persona.ID,
		SubProblemID:   subProblemID,
		Recommendation: parsed.Recommendation,
		Confidence:     clamp01(parsed.Confidence),
		Rationale:      parsed.Rationale,
	}, nil
}

// markDissent flags each vote whose recommendation does not match the
// plurality recommendation (by exact normalized text match — the
// synthesis step, not this heuristic, is responsible for judging nuanced
// disagreement).
func markDissent(votes []types.Vote) {
	if len(votes) == 0 {
		return
	}
	counts := map[string]int{}
	for _, v := range votes {
		counts[normalize(v.Recommendation)]++
	}
	var plurality string
	best := -1
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if counts[k] > best {
			best = counts[k]
			plurality = k
		}
	}
	for i := range votes {
		votes[i].Dissent = normalize(votes[i].Recommendation) != plurality
	}
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Calibrate runs the single post-vote calibration pass (spec §4.14): votes
// whose confidence diverges sharply from the group's mean confidence are
// pulled toward it, damping both overconfidence and underconfidence
// outliers without a second LLM round.
func Calibrate(votes []types.Vote) []types.Vote {
	if len(votes) == 0 {
		return votes
	}
	var sum float64
	for _, v := range votes {
		sum += v.Confidence
	}
	mean := sum / float64(len(votes))

	calibrated := make([]types.Vote, len(votes))
	for i, v := range votes {
		delta := v.Confidence - mean
		// Pull outliers (>0.3 from the mean) 50% of the way back in.
		if delta > 0.3 {
			v.Confidence -= delta * 0.5
		} else if delta < -0.3 {
			v.Confidence -= delta * 0.5
		}
		v.Confidence = clamp01(v.Confidence)
		calibrated[i] = v
	}
	return calibrated
}

// Tally returns the recommendation with the most confidence-weighted
// support (1 + confidence per vote) and a confidence score from its margin
// of victory (grounded on
// internal/reasoning/decision.go's calculateDecisionConfidence).
func Tally(votes []types.Vote) (recommendation string, confidence float64) {
	if len(votes) == 0 {
		return "", 0.5
	}
	support := map[string]float64{}
	display := map[string]string{}
	for _, v := range votes {
		key := normalize(v.Recommendation)
		support[key] += 1 + v.Confidence
		if _, ok := display[key]; !ok {
			display[key] = v.Recommendation
		}
	}
	keys := make([]string, 0, len(support))
	for k := range support {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if support[keys[i]] != support[keys[j]] {
			return support[keys[i]] > support[keys[j]]
		}
		return keys[i] < keys[j]
	})

	best := keys[0]
	bestScore := support[best]
	var second float64
	if len(keys) > 1 {
		second = support[keys[1]]
	}
	margin := bestScore - second
	totalPossible := float64(len(votes)) * 2
	normalizedMargin := margin / totalPossible

	confidence = 0.5 + normalizedMargin*0.5
	confidence = clamp01(confidence)
	return display[best], confidence
}

// Synthesize builds the sub-problem's SubProblemResult from its vote tally
// plus hierarchical context (dependency recommendations and this
// sub-problem's round summaries). The prose
// synthesis itself is delegated to the broker's strong tier; Tally and
// Calibrate are pure and local.
func (c *Collector) Synthesize(ctx context.Context, subProblemID string, roundsUsed int, votes []types.Vote, hierarchicalCtx string) (*types.SubProblemResult, error) {
	recommendation, confidence := Tally(votes)

	var dissent []types.Vote
	for _, v := range votes {
		if v.Dissent {
			dissent = append(dissent, v)
		}
	}

	summary, err := c.narrativeSynthesis(ctx, subProblemID, votes, hierarchicalCtx)
	if err != nil {
		// SynthesisError: retry once with a terser prompt before falling
		// back to a tally-only summary (spec §7).
		summary, err = c.narrativeSynthesis(ctx, subProblemID, votes, "")
		if err != nil {
			summary = tallyOnlySummary(recommendation, votes)
		}
	}

	return &types.SubProblemResult{
		SubProblemID:   subProblemID,
		Recommendation: recommendation,
		Confidence:     confidence,
		Summary:        summary,
		Dissent:        dissent,
		RoundsUsed:     roundsUsed,
		Votes:          votes,
	}, nil
}

func (c *Collector) narrativeSynthesis(ctx context.Context, subProblemID string, votes []types.Vote, hierarchicalCtx string) (string, error) {
	var sb strings.Builder
	sb.WriteString("Synthesize the following expert votes into a single recommendation paragraph (~150 words), naming the key tradeoff and any dissent.\n\n")
	if hierarchicalCtx != "" {
		sb.WriteString("Prior context:\n")
		sb.WriteString(hierarchicalCtx)
		sb.WriteString("\n\n")
	}
	for _, v := range votes {
		sb.WriteString(fmt.Sprintf("- %s (confidence %.2f): %s — %s\n", v.PersonaID, v.Confidence, v.Recommendation, v.Rationale))
	}

	resp, _, err := c.broker.Dispatch(ctx, llmbroker.TierStrong, llmbroker.Request{
		Messages:  []llmbroker.Message{{Role: llmbroker.RoleUser, Content: sb.String()}},
		MaxTokens: 1200,
	})
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(resp.Content) == "" {
		return "", fmt.Errorf("voting: empty synthesis for %s", subProblemID)
	}
	return resp.Content, nil
}

func tallyOnlySummary(recommendation string, votes []types.Vote) string {
	return fmt.Sprintf("Plurality recommendation across %d expert votes: %s", len(votes), recommendation)
}

// MetaSynthesize combines two or more completed sub-problem results into a
// single top-level recommendation once at least two are done (spec §4.14).
func (c *Collector) MetaSynthesize(ctx context.Context, problemStatement string, results []*types.SubProblemResult) (string, error) {
	if len(results) < 2 {
		return "", fmt.Errorf("voting: meta-synthesis requires at least 2 completed sub-problems, got %d", len(results))
	}
	var sb strings.Builder
	sb.WriteString("Original decision: ")
	sb.WriteString(problemStatement)
	sb.WriteString("\n\nSynthesize these sub-problem recommendations into one overall recommendation:\n\n")
	for _, r := range results {
		sb.WriteString(fmt.Sprintf("- %s (confidence %.2f): %s\n", r.SubProblemID, r.Confidence, r.Recommendation))
	}

	resp, _, err := c.broker.Dispatch(ctx, llmbroker.TierStrong, llmbroker.Request{
		Messages:  []llmbroker.Message{{Role: llmbroker.RoleUser, Content: sb.String()}},
		MaxTokens: 1200,
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
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

var voteSchema = mustVoteSchema()

func mustVoteSchema() *llmbroker.Schema {
	raw := &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"recommendation": {Type: "string"},
			"confidence":     {Type: "number"},
			"rationale":      {Type: "string"},
		},
		Required: []string{"recommendation", "confidence", "rationale"},
	}
	s, err := llmbroker.NewSchema(raw)
	if err != nil {
		panic(fmt.Sprintf("voting: invalid built-in schema: %v", err))
	}
	return s
}
