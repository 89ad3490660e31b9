package types

import (
	"fmt"
	"time"
)

// ContributionBuilder provides a fluent API for contribution construction,
// mirroring the teacher's thought-builder idiom.
type ContributionBuilder struct {
	contribution *Contribution
}

// NewContribution creates a new ContributionBuilder with sensible defaults.
func NewContribution() *ContributionBuilder {
	return &ContributionBuilder{
		contribution: &Contribution{
			Phase:      PhaseExploration,
			Confidence: 0.7,
			Timestamp:  time.Now(),
			Metadata:   map[string]interface{}{},
		},
	}
}

func (b *ContributionBuilder) Content(content string) *ContributionBuilder {
	b.contribution.Content = content
	return b
}

func (b *ContributionBuilder) ForSubProblem(subProblemID string) *ContributionBuilder {
	b.contribution.SubProblemID = subProblemID
	return b
}

func (b *ContributionBuilder) InRound(round int) *ContributionBuilder {
	b.contribution.Round = round
	return b
}

func (b *ContributionBuilder) FromPersona(personaID string) *ContributionBuilder {
	b.contribution.PersonaID = personaID
	return b
}

func (b *ContributionBuilder) InPhase(phase Phase) *ContributionBuilder {
	b.contribution.Phase = phase
	return b
}

func (b *ContributionBuilder) Confidence(confidence float64) *ContributionBuilder {
	if confidence > 0 {
		b.contribution.Confidence = confidence
	}
	return b
}

func (b *ContributionBuilder) KeyPoints(points []string) *ContributionBuilder {
	b.contribution.KeyPoints = points
	return b
}

func (b *ContributionBuilder) AsSystem() *ContributionBuilder {
	b.contribution.IsSystem = true
	return b
}

func (b *ContributionBuilder) WithMetadata(key string, value interface{}) *ContributionBuilder {
	if b.contribution.Metadata == nil {
		b.contribution.Metadata = make(map[string]interface{})
	}
	b.contribution.Metadata[key] = value
	return b
}

// Build returns the constructed contribution.
func (b *ContributionBuilder) Build() *Contribution {
	return b.contribution
}

// Validate ensures the contribution meets minimum requirements before it
// enters a round's contribution set.
func (b *ContributionBuilder) Validate() error {
	if b.contribution.Content == "" {
		return fmt.Errorf("contribution content cannot be empty")
	}
	if b.contribution.PersonaID == "" {
		return fmt.Errorf("contribution must have a persona id")
	}
	if b.contribution.Confidence < 0 || b.contribution.Confidence > 1 {
		return fmt.Errorf("confidence must be between 0 and 1")
	}
	return nil
}

// SubProblemBuilder provides a fluent API for sub-problem construction.
type SubProblemBuilder struct {
	subProblem *SubProblem
}

// NewSubProblem creates a new SubProblemBuilder with sensible defaults.
func NewSubProblem() *SubProblemBuilder {
	return &SubProblemBuilder{
		subProblem: &SubProblem{
			Status:     SubProblemPending,
			Complexity: 0.5,
		},
	}
}

func (b *SubProblemBuilder) Description(description string) *SubProblemBuilder {
	b.subProblem.Description = description
	return b
}

func (b *SubProblemBuilder) OfProblem(problemID string) *SubProblemBuilder {
	b.subProblem.ProblemID = problemID
	return b
}

func (b *SubProblemBuilder) DependsOn(ids ...string) *SubProblemBuilder {
	b.subProblem.DependsOn = append(b.subProblem.DependsOn, ids...)
	return b
}

func (b *SubProblemBuilder) Complexity(score float64) *SubProblemBuilder {
	if score > 0 {
		b.subProblem.Complexity = score
	}
	return b
}

func (b *SubProblemBuilder) AtIndex(index int) *SubProblemBuilder {
	b.subProblem.Index = index
	return b
}

// Build returns the constructed sub-problem.
func (b *SubProblemBuilder) Build() *SubProblem {
	return b.subProblem
}

// VoteBuilder provides a fluent API for vote construction.
type VoteBuilder struct {
	vote *Vote
}

// NewVote creates a new VoteBuilder.
func NewVote() *VoteBuilder {
	return &VoteBuilder{vote: &Vote{Confidence: 0.7}}
}

func (b *VoteBuilder) FromPersona(personaID string) *VoteBuilder {
	b.vote.PersonaID = personaID
	return b
}

func (b *VoteBuilder) ForSubProblem(subProblemID string) *VoteBuilder {
	b.vote.SubProblemID = subProblemID
	return b
}

func (b *VoteBuilder) Recommends(recommendation string) *VoteBuilder {
	b.vote.Recommendation = recommendation
	return b
}

func (b *VoteBuilder) Confidence(confidence float64) *VoteBuilder {
	if confidence > 0 {
		b.vote.Confidence = confidence
	}
	return b
}

func (b *VoteBuilder) Rationale(rationale string) *VoteBuilder {
	b.vote.Rationale = rationale
	return b
}

// Build returns the constructed vote.
func (b *VoteBuilder) Build() *Vote {
	return b.vote
}
