// Package graph threads a types.DeliberationState through the
// deliberation's named nodes — decompose, select personas, run a round,
// facilitate, vote/research/moderate, synthesize, meta-synthesize — one
// sub-problem at a time (spec §2, §5). Cooperative, single-threaded
// per session; concurrency lives inside the round node's fan-out, not
// across sub-problems.
//
// Grounded on the teacher's internal/orchestration/workflow.go
// Orchestrator.ExecuteWorkflow dispatch loop, generalized from named
// workflow steps executed against a *ReasoningContext to named
// deliberation nodes executed against a *types.DeliberationState; the
// step-progress/logging idiom follows the same file's log.Printf calls
// (the teacher carries no structured-logging library, so neither does
// this driver).
package graph

import (
	"context"
	"fmt"
	"log"
	"time"

	"boardofone/internal/complexity"
	"boardofone/internal/config"
	"boardofone/internal/decomposer"
	"boardofone/internal/events"
	"boardofone/internal/facilitator"
	"boardofone/internal/judge"
	"boardofone/internal/llmbroker"
	"boardofone/internal/moderator"
	"boardofone/internal/persona"
	"boardofone/internal/researcher"
	"boardofone/internal/round"
	"boardofone/internal/safety"
	"boardofone/internal/selector"
	"boardofone/internal/types"
	"boardofone/internal/voting"
)

// Event is emitted after every node transition, for the session layer to
// relay to subscribers (spec §6's external event-type table). SubProblemIndex
// is the sub-problem's position within state.SubProblems, always within
// [0, len(sub_problems)); session-wide events (no sub-problem in play) use 0.
type Event struct {
	SessionID       string
	SubProblemID    string
	SubProblemIndex int
	Type            events.Type
	Payload         interface{}
	At              time.Time
}

// Driver owns every node's dependencies and steps one DeliberationState
// through the graph until the session completes, pauses, or aborts.
type Driver struct {
	cfg         config.Config
	broker      *llmbroker.Broker
	catalog     *persona.Catalog
	assessor    *complexity.Assessor
	decomposer  *decomposer.Decomposer
	selector    *selector.Selector
	facilitator *facilitator.Facilitator
	judge       *judge.Judge
	votes       *voting.Collector
	round       *round.Runner
	events      func(Event)
}

// NewDriver wires a Driver from its constituent services. events may be
// nil, in which case transitions are only logged.
func NewDriver(
	cfg config.Config,
	broker *llmbroker.Broker,
	catalog *persona.Catalog,
	runner *round.Runner,
	events func(Event),
) *Driver {
	return &Driver{
		cfg:         cfg,
		broker:      broker,
		catalog:     catalog,
		assessor:    complexity.NewAssessor(),
		decomposer:  decomposer.New(broker),
		selector:    selector.New(selector.DefaultConfig()),
		facilitator: facilitator.New(broker, facilitator.Config{
			MinRounds:             cfg.Safety.MinRounds,
			MaxRounds:             cfg.Safety.MaxRounds,
			ExplorationThreshold:  cfg.Quality.ExplorationThreshold,
			ConsecutiveSpeakerMax: cfg.Quality.ConsecutiveSpeakerMax,
			DominanceShareMax:     cfg.Quality.DominanceShareMax,
		}),
		judge:      judge.New(broker),
		votes:      voting.New(broker),
		round:      runner,
		events:     events,
	}
}

// emit dispatches a typed event with its sub-problem index (0 for
// session-wide events) and logs a terse line, the same dual
// event-sink/log.Printf idiom the teacher's orchestrator uses for step
// transitions.
func (d *Driver) emit(sessionID, subProblemID string, subProblemIndex int, eventType events.Type, payload interface{}) {
	if d.events != nil {
		d.events(Event{
			SessionID:       sessionID,
			SubProblemID:    subProblemID,
			SubProblemIndex: subProblemIndex,
			Type:            eventType,
			Payload:         payload,
			At:              time.Now(),
		})
	}
	log.Printf("boardofone: session=%s subproblem=%s %s: %v", sessionID, subProblemID, eventType, payload)
}

// Start runs decomposition and persona selection for a freshly created
// problem, producing the initial DeliberationState ready for RunSubProblem.
func (d *Driver) Start(ctx context.Context, sessionID string, problem *types.Problem) (*types.DeliberationState, error) {
	assessment := d.assessor.Assess(problem.Statement, problem.Context)

	plan, err := d.decomposer.Decompose(ctx, problem, assessment)
	if err != nil {
		return nil, fmt.Errorf("graph: decompose: %w", err)
	}

	state := types.NewDeliberationState(sessionID, problem)
	state.SubProblems = plan.SubProblems
	state.Status = types.SessionStatusRunning

	summaries := make([]SubProblemSummary, len(state.SubProblems))
	for i, sp := range state.SubProblems {
		summaries[i] = SubProblemSummary{ID: sp.ID, Goal: sp.Description, Dependencies: sp.DependsOn, Complexity: sp.Complexity}
	}
	d.emit(sessionID, "", 0, events.TypeDecompositionComplete, DecompositionCompletePayload{SubProblems: summaries})

	for _, sp := range state.SubProblems {
		tags := plan.ExpertiseTags[sp.ID]
		result := d.selector.Select(d.catalog, tags, assessment.NumExperts)
		entries := result.Selected
		personas := make([]*types.Persona, len(entries))
		codes := make([]string, len(entries))
		for i, e := range entries {
			p := e.Persona
			personas[i] = &p
			codes[i] = e.Persona.ID
		}
		state.Personas[sp.ID] = personas
		d.emit(sessionID, sp.ID, sp.Index, events.TypePersonasSelected, PersonasSelectedPayload{PersonaCodes: codes, Rationale: result.Rationale})
	}

	d.emit(sessionID, "", 0, events.TypeHeartbeat, HeartbeatPayload{Stage: "decomposition_complete"})
	return state, nil
}

// RunSubProblem drives one pending, dependency-satisfied sub-problem
// through rounds until the facilitator calls VOTE (or a safety abort
// forces an early stop), then votes, calibrates, and synthesizes its
// result. It does not recurse into dependent sub-problems or
// meta-synthesis — the caller (internal/session) loops over
// PendingSubProblems and calls RunSubProblem once per ready sub-problem,
// then MetaSynthesize once all are done.
func (d *Driver) RunSubProblem(ctx context.Context, state *types.DeliberationState, sp *types.SubProblem, limits *safety.Limits) error {
	sp.Status = types.SubProblemActive
	startedAt := time.Now()
	cycles := safety.NewCycleDetector(3)
	// Moderator and researcher are scoped to this sub-problem: the
	// once-per-variant trigger and the per-sub-problem call limit (spec
	// §4.12, §4.13) must not leak across sub-problems or sessions sharing
	// this Driver.
	mod := moderator.New(d.broker, d.catalog)
	res := researcher.New(d.broker, 0)

	maxRounds := boundRounds(d.cfg, sp)
	roundNum := 1

	for {
		limits.RecordStep()
		if abort := limits.CheckSubProblem(sp.ID, startedAt, roundNum); abort != nil {
			d.emit(state.SessionID, sp.ID, sp.Index, events.TypeError, ErrorPayload{ErrorKind: string(abort.Kind), Message: abort.Error()})
			return d.forceVoteOnAbort(ctx, state, sp, roundNum-1)
		}

		speakers := d.speakersFor(state, sp)
		priorEmb, priorContribs := d.priorEmbeddings(state, sp.ID)

		phase := round.PhaseForRound(roundNum, maxRounds)
		speakerCodes := make([]string, len(speakers))
		for i, s := range speakers {
			speakerCodes[i] = s.Persona.ID
		}
		d.emit(state.SessionID, sp.ID, sp.Index, events.TypeRoundStarted, RoundStartedPayload{RoundNumber: roundNum, Phase: string(phase), SelectedPersonas: speakerCodes})
		d.emit(state.SessionID, sp.ID, sp.Index, events.TypeHeartbeat, HeartbeatPayload{Stage: fmt.Sprintf("round_%d_%s", roundNum, phase)})

		out, err := d.round.Run(ctx, round.Input{
			SubProblem:      sp,
			Round:           roundNum,
			MaxRounds:       maxRounds,
			Speakers:        speakers,
			HierarchicalCtx: hierarchicalContext(state, sp),
			ExpertMemory:    state.PersonaMemory,
		}, state.SessionID, priorEmb, priorContribs)
		if err != nil {
			d.emit(state.SessionID, sp.ID, sp.Index, events.TypeError, ErrorPayload{ErrorKind: "round_failed", Message: err.Error()})
			roundNum++
			if roundNum > maxRounds {
				break
			}
			continue
		}

		for _, c := range out.Retained {
			d.emit(state.SessionID, sp.ID, sp.Index, events.TypeContribution, ContributionPayload{RoundNumber: c.Round, PersonaCode: c.PersonaID, Content: c.Content})
		}
		for _, c := range out.Filtered {
			d.emit(state.SessionID, sp.ID, sp.Index, events.TypeContributionFiltered, ContributionFilteredPayload{
				RoundNumber:         c.Round,
				PersonaCode:         c.PersonaID,
				MaxSimilarity:       1 - c.NoveltyScore,
				MostSimilarPersona: c.FilteredAgainst,
			})
		}

		state.Contributions[sp.ID] = append(state.Contributions[sp.ID], out.Retained...)
		state.RoundSummaries[sp.ID] = append(state.RoundSummaries[sp.ID], out.Summary)
		state.PersonaMemory = out.ExpertMemory
		updateRotationState(state, sp.ID, out.Retained)

		d.emit(state.SessionID, sp.ID, sp.Index, events.TypeRoundSummary, RoundSummaryPayload{
			RoundNumber:     out.Summary.Round,
			SummaryText:     out.Summary.Summary,
			PerExpertMemory: out.ExpertMemory,
		})

		sig := safety.Signature(out.Summary.KeyThemes, out.Summary.ConvergenceScore, out.Summary.NoveltyScore, out.Summary.FocusScore)
		stalled := cycles.Observe(sig)

		jr, _ := d.judge.Score(ctx, sp.Description, transcriptFor(state, sp.ID))

		var missingAspects []string
		for _, a := range jr.MissingCriticalAspects {
			missingAspects = append(missingAspects, string(a))
		}
		d.emit(state.SessionID, sp.ID, sp.Index, events.TypeQualityMetrics, QualityMetricsPayload{
			Convergence:    out.Summary.ConvergenceScore,
			Novelty:        out.Summary.NoveltyScore,
			Focus:          out.Summary.FocusScore,
			Exploration:    jr.Exploration,
			MissingAspects: missingAspects,
		})

		decision, err := d.facilitator.Decide(ctx, d.routingContext(state, sp, roundNum, maxRounds, jr))
		if err != nil {
			d.emit(state.SessionID, sp.ID, sp.Index, events.TypeError, ErrorPayload{ErrorKind: "facilitator_error", Message: err.Error()})
		}
		if stalled && decision.Action == facilitator.ActionContinue {
			decision.Action = facilitator.ActionModerator
			decision.ModeratorVariant = "contrarian"
		}

		var nextSpeaker string
		if len(decision.NextSpeakers) > 0 {
			nextSpeaker = decision.NextSpeakers[0]
		}
		d.emit(state.SessionID, sp.ID, sp.Index, events.TypeFacilitatorDecision, FacilitatorDecisionPayload{
			Action:        string(decision.Action),
			NextSpeaker:   nextSpeaker,
			ModeratorType: decision.ModeratorVariant,
			ResearchQuery: decision.ResearchQuery,
			Reasoning:     decision.Reasoning,
		})

		switch decision.Action {
		case facilitator.ActionVote:
			return d.voteAndSynthesize(ctx, state, sp, roundNum, speakers)
		case facilitator.ActionResearch:
			if findings, err := res.Research(ctx, decision.ResearchQuery); err == nil {
				state.Contributions[sp.ID] = append(state.Contributions[sp.ID], researchContribution(sp.ID, roundNum, findings))
				d.emit(state.SessionID, sp.ID, sp.Index, events.TypeResearchComplete, ResearchCompletePayload{Query: decision.ResearchQuery, KeyFindings: findings.KeyFindings})
			}
		case facilitator.ActionModerator:
			variant := moderator.Variant(decision.ModeratorVariant)
			if variant == "" {
				variant = moderator.VariantContrarian
			}
			if !mod.Used(variant) {
				if content, err := mod.Generate(ctx, variant, transcriptFor(state, sp.ID)); err == nil {
					state.Contributions[sp.ID] = append(state.Contributions[sp.ID], moderatorContribution(sp.ID, roundNum, variant, content))
					d.emit(state.SessionID, sp.ID, sp.Index, events.TypeModeratorIntervention, ModeratorInterventionPayload{ModeratorType: string(variant), Content: content})
				}
			}
		}

		roundNum++
		if roundNum > maxRounds {
			return d.voteAndSynthesize(ctx, state, sp, roundNum-1, speakers)
		}
	}

	return d.voteAndSynthesize(ctx, state, sp, roundNum-1, d.speakersFor(state, sp))
}

func (d *Driver) voteAndSynthesize(ctx context.Context, state *types.DeliberationState, sp *types.SubProblem, roundsUsed int, speakers []persona.Entry) error {
	voterCodes := make([]string, len(speakers))
	for i, s := range speakers {
		voterCodes[i] = s.Persona.ID
	}
	d.emit(state.SessionID, sp.ID, sp.Index, events.TypeVotingStarted, VotingStartedPayload{VotingPersonas: voterCodes})

	votes := d.votes.CollectVotes(ctx, sp.ID, transcriptFor(state, sp.ID), speakers)
	votes = voting.Calibrate(votes)

	for _, v := range votes {
		d.emit(state.SessionID, sp.ID, sp.Index, events.TypePersonaVote, PersonaVotePayload{
			PersonaCode:    v.PersonaID,
			Recommendation: v.Recommendation,
			Confidence:     v.Confidence,
		})
	}

	distribution := map[string]int{}
	dissenting := 0
	for _, v := range votes {
		distribution[v.Recommendation]++
		if v.Dissent {
			dissenting++
		}
	}
	consensus := 1.0
	if len(votes) > 0 {
		consensus = float64(len(votes)-dissenting) / float64(len(votes))
	}
	d.emit(state.SessionID, sp.ID, sp.Index, events.TypeVotingComplete, VotingCompletePayload{VoteDistribution: distribution, ConsensusLevel: consensus})

	result, err := d.votes.Synthesize(ctx, sp.ID, roundsUsed, votes, hierarchicalContext(state, sp))
	if err != nil {
		d.emit(state.SessionID, sp.ID, sp.Index, events.TypeError, ErrorPayload{ErrorKind: "synthesis_failed", Message: err.Error()})
		return fmt.Errorf("graph: synthesize %s: %w", sp.ID, err)
	}
	result.CompletedAt = time.Now()
	state.Results[sp.ID] = result
	sp.Status = types.SubProblemComplete

	d.emit(state.SessionID, sp.ID, sp.Index, events.TypeSynthesisComplete, SynthesisCompletePayload{SynthesisText: result.Summary, QualityScore: result.Confidence})
	d.emit(state.SessionID, sp.ID, sp.Index, events.TypeSubProblemComplete, SubProblemCompletePayload{ResultSummary: result.Recommendation})
	return nil
}

func (d *Driver) forceVoteOnAbort(ctx context.Context, state *types.DeliberationState, sp *types.SubProblem, roundsUsed int) error {
	return d.voteAndSynthesize(ctx, state, sp, roundsUsed, d.speakersFor(state, sp))
}

// MetaSynthesize produces the top-level recommendation once every
// sub-problem is complete or skipped and at least two sub-problems
// produced a result (spec §4.14). For a single-sub-problem session it
// simply copies that sub-problem's recommendation.
func (d *Driver) MetaSynthesize(ctx context.Context, state *types.DeliberationState) error {
	if !state.AllSubProblemsComplete() {
		return fmt.Errorf("graph: meta-synthesis requires all sub-problems complete")
	}
	var results []*types.SubProblemResult
	for _, sp := range state.SubProblems {
		if r, ok := state.Results[sp.ID]; ok {
			results = append(results, r)
		}
	}
	if len(results) == 0 {
		return fmt.Errorf("graph: no completed sub-problem results to synthesize")
	}
	if len(results) == 1 {
		state.MetaSynthesis = results[0].Recommendation
		state.Status = types.SessionStatusComplete
		d.emit(state.SessionID, "", 0, events.TypeMetaSynthesisComplete, MetaSynthesisCompletePayload{UnifiedRecommendation: state.MetaSynthesis})
		d.emit(state.SessionID, "", 0, events.TypeTerminal, TerminalPayload{Reason: "complete"})
		return nil
	}

	synthesis, err := d.votes.MetaSynthesize(ctx, state.Problem.Statement, results)
	if err != nil {
		d.emit(state.SessionID, "", 0, events.TypeError, ErrorPayload{ErrorKind: "meta_synthesis_failed", Message: err.Error()})
		return fmt.Errorf("graph: meta-synthesize: %w", err)
	}
	state.MetaSynthesis = synthesis
	state.Status = types.SessionStatusComplete
	d.emit(state.SessionID, "", 0, events.TypeMetaSynthesisComplete, MetaSynthesisCompletePayload{UnifiedRecommendation: synthesis})
	d.emit(state.SessionID, "", 0, events.TypeTerminal, TerminalPayload{Reason: "complete"})
	return nil
}

func boundRounds(cfg config.Config, sp *types.SubProblem) int {
	max := cfg.Safety.MaxRounds
	if sp.Complexity > 0 {
		estimated := 3 + int(sp.Complexity*4)
		if estimated < max {
			max = estimated
		}
	}
	if max < cfg.Safety.MinRounds {
		max = cfg.Safety.MinRounds
	}
	return max
}

func (d *Driver) speakersFor(state *types.DeliberationState, sp *types.SubProblem) []persona.Entry {
	personas := state.Personas[sp.ID]
	entries := make([]persona.Entry, 0, len(personas))
	for _, p := range personas {
		if e, ok := d.catalog.Lookup(p.ID); ok {
			entries = append(entries, e)
		}
	}
	return entries
}

func (d *Driver) priorEmbeddings(state *types.DeliberationState, subProblemID string) ([][]float32, []*types.Contribution) {
	var embs [][]float32
	var withEmb []*types.Contribution
	for _, c := range state.Contributions[subProblemID] {
		if c.Embedding != nil {
			embs = append(embs, c.Embedding)
			withEmb = append(withEmb, c)
		}
	}
	return embs, withEmb
}

func (d *Driver) routingContext(state *types.DeliberationState, sp *types.SubProblem, roundNum, maxRounds int, jr judge.Result) facilitator.RoundContext {
	contribs := state.Contributions[sp.ID]

	counts := map[string]int{}
	noveltySum := map[string]float64{}
	noveltyN := map[string]int{}
	for _, c := range contribs {
		if c.IsSystem {
			continue
		}
		counts[c.PersonaID]++
		noveltySum[c.PersonaID] += c.NoveltyScore
		noveltyN[c.PersonaID]++
	}
	perExpertNovelty := make(map[string]float64, len(noveltySum))
	for code, sum := range noveltySum {
		perExpertNovelty[code] = sum / float64(noveltyN[code])
	}

	var lastSpeakers []string
	for i := len(contribs) - 1; i >= 0 && len(lastSpeakers) < 3; i-- {
		if !contribs[i].IsSystem {
			lastSpeakers = append([]string{contribs[i].PersonaID}, lastSpeakers...)
		}
	}

	participationLast4 := participationByRoundWindow(contribs, roundNum, 4)

	var missing []string
	for _, a := range jr.MissingCriticalAspects {
		missing = append(missing, string(a))
	}

	summaries := state.RoundSummaries[sp.ID]
	var focus float64 = 1
	if len(summaries) > 0 {
		focus = summaries[len(summaries)-1].FocusScore
	}

	return facilitator.RoundContext{
		Round:                  roundNum,
		ContributionCounts:     counts,
		PerExpertNovelty:       perExpertNovelty,
		LastSpeakers:           lastSpeakers,
		ParticipationLast4:     participationLast4,
		ExplorationScore:       jr.Exploration,
		FocusScore:             focus,
		MissingCriticalAspects: missing,
		Roster:                 d.speakersFor(state, sp),
	}
}

// participationByRoundWindow counts, per persona, how many of the last
// windowSize completed rounds (ending at the round just finished, roundNum)
// included at least one non-system contribution from them (spec §4.9/§4.10
// participation-window exclusion rule — distinct from LastSpeakers, which
// tracks individual speaking turns rather than round-level presence).
func participationByRoundWindow(contribs []*types.Contribution, roundNum, windowSize int) map[string]int {
	lastCompletedRound := roundNum - 1
	if lastCompletedRound < 1 {
		return map[string]int{}
	}
	floor := lastCompletedRound - windowSize + 1
	if floor < 1 {
		floor = 1
	}

	spokeInRound := map[int]map[string]bool{}
	for _, c := range contribs {
		if c.IsSystem || c.Round < floor || c.Round > lastCompletedRound {
			continue
		}
		speakers, ok := spokeInRound[c.Round]
		if !ok {
			speakers = map[string]bool{}
			spokeInRound[c.Round] = speakers
		}
		speakers[c.PersonaID] = true
	}

	counts := map[string]int{}
	for _, speakers := range spokeInRound {
		for code := range speakers {
			counts[code]++
		}
	}
	return counts
}

func updateRotationState(state *types.DeliberationState, subProblemID string, retained []*types.Contribution) {
	if len(retained) == 0 {
		return
	}
	last := retained[len(retained)-1].PersonaID
	if state.LastSpeaker[subProblemID] == last {
		state.ConsecutiveSpeaker[subProblemID]++
	} else {
		state.ConsecutiveSpeaker[subProblemID] = 1
	}
	state.LastSpeaker[subProblemID] = last
}

func hierarchicalContext(state *types.DeliberationState, sp *types.SubProblem) string {
	var ctx string
	for _, depID := range sp.DependsOn {
		if r, ok := state.Results[depID]; ok {
			ctx += fmt.Sprintf("Prior sub-problem %s concluded: %s\n", depID, r.Recommendation)
		}
	}
	summaries := state.RoundSummaries[sp.ID]
	for i, s := range summaries {
		if i == len(summaries)-1 {
			ctx += fmt.Sprintf("Round %d (latest): %s\n", s.Round, s.Summary)
		} else {
			ctx += fmt.Sprintf("Round %d: %s\n", s.Round, joinThemes(s.KeyThemes))
		}
	}
	return ctx
}

func joinThemes(themes []string) string {
	out := ""
	for i, t := range themes {
		if i > 0 {
			out += "; "
		}
		out += t
	}
	return out
}

func transcriptFor(state *types.DeliberationState, subProblemID string) string {
	var out string
	for _, c := range state.Contributions[subProblemID] {
		out += fmt.Sprintf("[round %d] %s: %s\n", c.Round, c.PersonaID, c.Content)
	}
	return out
}

func researchContribution(subProblemID string, round int, findings *researcher.Findings) *types.Contribution {
	return &types.Contribution{
		ID:           fmt.Sprintf("%s-r%d-research", subProblemID, round),
		SubProblemID: subProblemID,
		Round:        round,
		PersonaID:    "researcher",
		Phase:        types.PhaseChallenge,
		Content:      joinThemes(findings.KeyFindings),
		IsSystem:     true,
		Timestamp:    time.Now(),
	}
}

func moderatorContribution(subProblemID string, round int, variant moderator.Variant, content string) *types.Contribution {
	return &types.Contribution{
		ID:           fmt.Sprintf("%s-r%d-mod-%s", subProblemID, round, variant),
		SubProblemID: subProblemID,
		Round:        round,
		PersonaID:    "moderator_" + string(variant),
		Phase:        types.PhaseChallenge,
		Content:      content,
		IsSystem:     true,
		Timestamp:    time.Now(),
	}
}
