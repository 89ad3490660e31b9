// Package decomposer breaks a Problem into an ordered, acyclic set of
// SubProblems (spec §4.5), using dominikbraun/graph to build and validate
// the dependency DAG the driver later walks in topological order.
package decomposer

import (
	"context"
	"fmt"
	"sort"

	graphlib "github.com/dominikbraun/graph"

	"boardofone/internal/complexity"
	"boardofone/internal/llmbroker"
	"boardofone/internal/types"
)

// Draft is one LLM-proposed sub-problem before IDs/ordering are assigned.
type Draft struct {
	Goal             string   `json:"goal"`
	Context          string   `json:"context"`
	KeyQuestions     []string `json:"key_questions"`
	Risks            []string `json:"risks"`
	Alternatives     []string `json:"alternatives"`
	ExpertiseTags    []string `json:"expertise_tags"`
	SuccessCriteria  []string `json:"success_criteria"`
	Rationale        string   `json:"rationale"`
	DependsOnIndices []int    `json:"depends_on_indices"` // indices into the draft list, 0-based
}

// Plan is the validated output of Decompose: sub-problems plus per-draft
// expertise tags the selector consumes (kept alongside, since
// types.SubProblem has no room for them).
type Plan struct {
	SubProblems   []*types.SubProblem
	ExpertiseTags map[string][]string // keyed by SubProblem.ID
	Rationale     map[string]string   // keyed by SubProblem.ID
}

// Decomposer turns a Problem into a Plan.
type Decomposer struct {
	broker *llmbroker.Broker
}

// New returns a Decomposer that calls the broker's strong tier for
// decomposition proposals.
func New(broker *llmbroker.Broker) *Decomposer {
	return &Decomposer{broker: broker}
}

// Decompose produces a Plan respecting the complexity-band sub-problem
// count rules (spec §4.5). On malformed LLM output it retries once with a
// stricter prompt; on a second failure it falls back to a single atomic
// sub-problem covering the original statement.
func (d *Decomposer) Decompose(ctx context.Context, problem *types.Problem, assessment complexity.Assessment) (*Plan, error) {
	if assessment.Overall < 0.30 {
		return atomicPlan(problem), nil
	}

	minN, maxN := subProblemBounds(assessment.Overall)

	drafts, err := d.proposeDrafts(ctx, problem, minN, maxN, false)
	if err != nil {
		drafts, err = d.proposeDrafts(ctx, problem, minN, maxN, true)
	}
	if err != nil || len(drafts) == 0 {
		return atomicPlan(problem), nil
	}

	plan, err := buildPlan(problem, drafts, assessment)
	if err != nil {
		// Malformed dependency structure (e.g. a cycle): fall back atomic
		// rather than surface a decomposer failure to the caller.
		return atomicPlan(problem), nil
	}
	return plan, nil
}

func subProblemBounds(overall float64) (min, max int) {
	switch {
	case overall < 0.70:
		return 2, 4
	default:
		return 3, 5
	}
}

func atomicPlan(problem *types.Problem) *Plan {
	sp := &types.SubProblem{
		ID:          problem.ID + "-sp0",
		ProblemID:   problem.ID,
		Description: problem.Statement,
		Status:      types.SubProblemPending,
		Index:       0,
	}
	return &Plan{
		SubProblems:   []*types.SubProblem{sp},
		ExpertiseTags: map[string][]string{sp.ID: nil},
		Rationale:     map[string]string{sp.ID: "atomic: complexity below decomposition threshold"},
	}
}

// draftResponseSchema describes the structured decomposition output the
// broker validates before buildPlan ever sees it.
var draftResponseSchema = decomposerSchema()

func (d *Decomposer) proposeDrafts(ctx context.Context, problem *types.Problem, minN, maxN int, strict bool) ([]Draft, error) {
	prompt := fmt.Sprintf(
		"Decompose this decision problem into between %d and %d sub-problems, each with its "+
			"own goal, key questions, risks, alternatives, required expertise tags, success "+
			"criteria, a short rationale, and zero-based indices of any other draft sub-problems "+
			"it depends on. Do not split a single decision's evaluation criteria into one "+
			"sub-problem each; only split where experts would reason about genuinely separate "+
			"questions.\n\nProblem: %s\nContext: %s",
		minN, maxN, problem.Statement, problem.Context,
	)
	if strict {
		prompt += "\n\nYour previous answer could not be parsed. Respond with a single JSON " +
			"object that matches the required schema exactly, with no prose, markdown, or code fences."
	}

	resp, _, err := d.broker.Dispatch(ctx, llmbroker.TierStrong, llmbroker.Request{
		Messages: []llmbroker.Message{{Role: llmbroker.RoleUser, Content: prompt}},
		Schema:   draftResponseSchema,
	})
	if err != nil {
		return nil, err
	}
	return parseDrafts(resp.Content)
}

// buildPlan assigns stable IDs, validates the dependency DAG with
// dominikbraun/graph (rejecting cycles), and returns sub-problems in
// topological order.
func buildPlan(problem *types.Problem, drafts []Draft, assessment complexity.Assessment) (*Plan, error) {
	ids := make([]string, len(drafts))
	for i := range drafts {
		ids[i] = fmt.Sprintf("%s-sp%d", problem.ID, i)
	}

	g := graphlib.New(graphlib.StringHash, graphlib.Directed(), graphlib.PreventCycles())
	for _, id := range ids {
		if err := g.AddVertex(id); err != nil {
			return nil, fmt.Errorf("decomposer: add vertex %s: %w", id, err)
		}
	}
	for i, draft := range drafts {
		for _, depIdx := range draft.DependsOnIndices {
			if depIdx < 0 || depIdx >= len(ids) || depIdx == i {
				return nil, fmt.Errorf("decomposer: sub-problem %d has invalid dependency index %d", i, depIdx)
			}
			if err := g.AddEdge(ids[depIdx], ids[i]); err != nil {
				return nil, fmt.Errorf("decomposer: dependency %s -> %s: %w", ids[depIdx], ids[i], err)
			}
		}
	}

	order, err := graphlib.TopologicalSort(g)
	if err != nil {
		return nil, fmt.Errorf("decomposer: dependency graph is not acyclic: %w", err)
	}

	position := make(map[string]int, len(order))
	for i, id := range order {
		position[id] = i
	}

	plan := &Plan{
		ExpertiseTags: make(map[string][]string, len(drafts)),
		Rationale:     make(map[string]string, len(drafts)),
	}
	for i, draft := range drafts {
		id := ids[i]
		dependsOn := make([]string, 0, len(draft.DependsOnIndices))
		for _, depIdx := range draft.DependsOnIndices {
			dependsOn = append(dependsOn, ids[depIdx])
		}
		plan.SubProblems = append(plan.SubProblems, &types.SubProblem{
			ID:          id,
			ProblemID:   problem.ID,
			Description: draft.Goal,
			DependsOn:   dependsOn,
			Complexity:  assessment.Overall,
			Status:      types.SubProblemPending,
			Index:       position[id],
		})
		plan.ExpertiseTags[id] = draft.ExpertiseTags
		plan.Rationale[id] = draft.Rationale
	}

	sort.Slice(plan.SubProblems, func(i, j int) bool { return plan.SubProblems[i].Index < plan.SubProblems[j].Index })
	return plan, nil
}
