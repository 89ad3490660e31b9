// Package judge scores a round's exploration coverage (spec §4.11): for
// each of a fixed set of critical decision aspects, classify how deeply
// the round's contributions covered it, then average. Grounded on the
// teacher's validation.CalibrationTracker bucket/score idiom, generalized
// from confidence calibration to per-round coverage scoring.
package judge

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"

	"boardofone/internal/llmbroker"
)

// Aspect is one of the critical decision dimensions the judge checks
// coverage for (spec §4.8 step 5).
type Aspect string

const (
	AspectProblemClarity  Aspect = "problem_clarity"
	AspectObjectives      Aspect = "objectives"
	AspectOptions         Aspect = "options_alternatives"
	AspectRisks           Aspect = "risks_failure_modes"
	AspectConstraints     Aspect = "constraints"
	AspectStakeholders    Aspect = "stakeholders"
	AspectDependencies    Aspect = "dependencies_unknowns"
)

// Aspects lists every aspect the judge evaluates, in the 7-8 count the
// spec requires (§4.11).
var Aspects = []Aspect{
	AspectProblemClarity,
	AspectObjectives,
	AspectOptions,
	AspectRisks,
	AspectConstraints,
	AspectStakeholders,
	AspectDependencies,
}

// Coverage is how deeply one aspect was addressed.
type Coverage string

const (
	CoverageNone    Coverage = "none"
	CoverageShallow Coverage = "shallow"
	CoverageDeep    Coverage = "deep"
)

func (c Coverage) score() float64 {
	switch c {
	case CoverageShallow:
		return 0.5
	case CoverageDeep:
		return 1.0
	default:
		return 0.0
	}
}

// Result is the judge's output for one round.
type Result struct {
	Exploration            float64
	CoverageByAspect        map[Aspect]Coverage
	MissingCriticalAspects  []Aspect
	Malformed               bool // true if the LLM output could not be parsed; Exploration defaults to 0.5
}

// Judge scores round transcripts using the broker's fast tier.
type Judge struct {
	broker *llmbroker.Broker
}

// New returns a Judge backed by broker.
func New(broker *llmbroker.Broker) *Judge {
	return &Judge{broker: broker}
}

// Score classifies coverage of each aspect across the round's
// contributions. On malformed output, exploration defaults to 0.5 and
// Malformed is set (spec §4.11: "If output is malformed, default
// exploration to 0.5 and log").
func (j *Judge) Score(ctx context.Context, subProblemGoal string, transcript string) (Result, error) {
	prompt := fmt.Sprintf(
		"Problem: %s\n\nTranscript of this round's contributions:\n%s\n\n"+
			"For each of these aspects, classify coverage as none, shallow, or deep: %v",
		subProblemGoal, transcript, Aspects,
	)

	resp, _, err := j.broker.Dispatch(ctx, llmbroker.TierFast, llmbroker.Request{
		Messages: []llmbroker.Message{{Role: llmbroker.RoleUser, Content: prompt}},
		Schema:   judgeSchema,
	})
	if err != nil {
		return Result{Exploration: 0.5, Malformed: true}, nil
	}

	var parsed struct {
		Coverage map[string]string `json:"coverage"`
	}
	if err := json.Unmarshal([]byte(resp.Content), &parsed); err != nil {
		return Result{Exploration: 0.5, Malformed: true}, nil
	}

	coverageByAspect := make(map[Aspect]Coverage, len(Aspects))
	var sum float64
	var missing []Aspect
	for _, aspect := range Aspects {
		cov := Coverage(parsed.Coverage[string(aspect)])
		switch cov {
		case CoverageNone, CoverageShallow, CoverageDeep:
		default:
			cov = CoverageNone
		}
		coverageByAspect[aspect] = cov
		sum += cov.score()
		if cov == CoverageNone {
			missing = append(missing, aspect)
		}
	}

	return Result{
		Exploration:            sum / float64(len(Aspects)),
		CoverageByAspect:       coverageByAspect,
		MissingCriticalAspects: missing,
	}, nil
}

var judgeSchema = mustJudgeSchema()

func mustJudgeSchema() *llmbroker.Schema {
	props := make(map[string]*jsonschema.Schema, len(Aspects))
	required := make([]string, 0, len(Aspects))
	for _, a := range Aspects {
		props[string(a)] = &jsonschema.Schema{Type: "string", Enum: []any{"none", "shallow", "deep"}}
		required = append(required, string(a))
	}
	raw := &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"coverage": {
				Type:       "object",
				Properties: props,
				Required:   required,
			},
		},
		Required: []string{"coverage"},
	}
	s, err := llmbroker.NewSchema(raw)
	if err != nil {
		panic(fmt.Sprintf("judge: invalid built-in schema: %v", err))
	}
	return s
}
