package graph

// Payload types for each events.Type the driver emits (spec §6's event-type
// table). Kept as concrete structs, not map[string]interface{}, so the
// compiler catches a field renamed on one side of the emit call but not the
// other.

type SubProblemSummary struct {
	ID           string   `json:"id"`
	Goal         string   `json:"goal"`
	Dependencies []string `json:"dependencies"`
	Complexity   float64  `json:"complexity"`
}

type DecompositionCompletePayload struct {
	SubProblems []SubProblemSummary `json:"sub_problems"`
}

type PersonasSelectedPayload struct {
	PersonaCodes []string `json:"persona_codes"`
	Rationale    []string `json:"rationale"`
}

type RoundStartedPayload struct {
	RoundNumber      int      `json:"round_number"`
	Phase            string   `json:"phase"`
	SelectedPersonas []string `json:"selected_personas"`
}

type ContributionPayload struct {
	RoundNumber    int      `json:"round_number"`
	PersonaCode    string   `json:"persona_code"`
	Content        string   `json:"content"`
	Recommendation string   `json:"recommendation,omitempty"`
	References     []string `json:"references,omitempty"`
}

type ContributionFilteredPayload struct {
	RoundNumber        int     `json:"round_number"`
	PersonaCode        string  `json:"persona_code"`
	MaxSimilarity       float64 `json:"max_similarity"`
	MostSimilarPersona string  `json:"most_similar_persona"`
}

type RoundSummaryPayload struct {
	RoundNumber     int               `json:"round_number"`
	SummaryText     string            `json:"summary_text"`
	PerExpertMemory map[string]string `json:"per_expert_memory"`
}

type QualityMetricsPayload struct {
	Convergence    float64  `json:"convergence"`
	Novelty        float64  `json:"novelty"`
	Focus          float64  `json:"focus"`
	Exploration    float64  `json:"exploration"`
	MissingAspects []string `json:"missing_aspects,omitempty"`
}

type FacilitatorDecisionPayload struct {
	Action        string `json:"action"`
	NextSpeaker   string `json:"next_speaker,omitempty"`
	ModeratorType string `json:"moderator_type,omitempty"`
	ResearchQuery string `json:"research_query,omitempty"`
	Reasoning     string `json:"reasoning"`
}

type ModeratorInterventionPayload struct {
	ModeratorType string `json:"moderator_type"`
	Content       string `json:"content"`
}

type ResearchCompletePayload struct {
	Query        string   `json:"query"`
	KeyFindings []string `json:"key_findings"`
}

type VotingStartedPayload struct {
	VotingPersonas []string `json:"voting_personas"`
}

type PersonaVotePayload struct {
	PersonaCode    string   `json:"persona_code"`
	Recommendation string   `json:"recommendation"`
	Confidence     float64  `json:"confidence"`
	Conditions     []string `json:"conditions,omitempty"`
}

type VotingCompletePayload struct {
	VoteDistribution map[string]int `json:"vote_distribution"`
	ConsensusLevel   float64        `json:"consensus_level"`
}

type SynthesisCompletePayload struct {
	SynthesisText string  `json:"synthesis_text"`
	QualityScore  float64 `json:"quality_score"`
}

type SubProblemCompletePayload struct {
	ResultSummary string `json:"result_summary"`
}

type MetaSynthesisCompletePayload struct {
	UnifiedRecommendation string   `json:"unified_recommendation"`
	ActionPlan            []string `json:"action_plan,omitempty"`
}

type ErrorPayload struct {
	ErrorKind       string `json:"error_kind"`
	Message         string `json:"message"`
}

type TerminalPayload struct {
	Reason        string      `json:"reason"` // complete|killed|budget|timeout|error
	PartialResult interface{} `json:"partial_result,omitempty"`
}

type HeartbeatPayload struct {
	Stage string `json:"stage"`
}
