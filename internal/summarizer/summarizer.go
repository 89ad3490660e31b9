// Package summarizer compresses a round's retained contributions into a
// short round summary and folds each persona's latest contribution into its
// running per-expert memory (spec §3 "Round summary" step, §4.8 step 4):
// a 100-150 token round summary preserving decisions, numeric anchors,
// tensions, and open questions, plus 50-100 token per-persona memory
// updates that feed the next sub-problem's prompts.
//
// Grounded on the teacher's internal/modes/llm_anthropic.go Aggregate (round
// summary: synthesize many contributions into one) and ExtractKeyPoints
// (key-themes extraction) methods, generalized from Graph-of-Thoughts
// synthesis to deliberation round compression. Falls back to a cheap
// heuristic (truncate-and-join) on any broker failure, the same degrade-
// gracefully policy the round node already applies to embedding and vector
// store failures.
package summarizer

import (
	"context"
	"fmt"
	"strings"

	"boardofone/internal/llmbroker"
	"boardofone/internal/types"
)

const (
	roundSummaryMaxTokens   = 220
	personaMemoryMaxTokens  = 140
	heuristicThemeTruncate  = 60
)

// Summarizer produces round summaries and per-persona memory updates.
type Summarizer struct {
	broker *llmbroker.Broker
}

// New returns a Summarizer dispatching calls through broker.
func New(broker *llmbroker.Broker) *Summarizer {
	return &Summarizer{broker: broker}
}

// Round compresses the round's retained contributions into a 100-150 token
// summary plus a handful of key themes. On broker failure it falls back to
// joining truncated contribution snippets rather than failing the round.
func (s *Summarizer) Round(ctx context.Context, retained []*types.Contribution) (summary string, keyThemes []string) {
	if len(retained) == 0 {
		return "", nil
	}

	var sb strings.Builder
	sb.WriteString("Compress the following expert contributions into a single round summary of 100-150 words. ")
	sb.WriteString("Preserve concrete decisions, numeric anchors, points of tension, and open questions. ")
	sb.WriteString("Respond with <summary>...</summary> followed by <themes>theme one; theme two; theme three</themes>.\n\n")
	for _, c := range retained {
		fmt.Fprintf(&sb, "- %s: %s\n", c.PersonaID, c.Content)
	}

	resp, _, err := s.broker.Dispatch(ctx, llmbroker.TierFast, llmbroker.Request{
		Messages:  []llmbroker.Message{{Role: llmbroker.RoleUser, Content: sb.String()}},
		MaxTokens: roundSummaryMaxTokens,
	})
	if err != nil || strings.TrimSpace(resp.Content) == "" {
		return heuristicRoundSummary(retained)
	}

	summary = extractTag(resp.Content, "summary")
	themesBlock := extractTag(resp.Content, "themes")
	if summary == "" || themesBlock == "" {
		return heuristicRoundSummary(retained)
	}
	for _, t := range strings.Split(themesBlock, ";") {
		if t = strings.TrimSpace(t); t != "" {
			keyThemes = append(keyThemes, t)
		}
	}
	return summary, keyThemes
}

func heuristicRoundSummary(retained []*types.Contribution) (string, []string) {
	var themes []string
	for _, c := range retained {
		themes = append(themes, truncate(c.Content, heuristicThemeTruncate))
	}
	return strings.Join(themes, "; "), themes
}

// Persona folds a persona's new contribution into its running memory,
// producing a fresh 50-100 token summary that carries forward across
// sub-problems. A failed broker call keeps the prior memory unchanged
// rather than discarding accumulated context.
func (s *Summarizer) Persona(ctx context.Context, personaID, priorMemory, newContribution string) string {
	if strings.TrimSpace(newContribution) == "" {
		return priorMemory
	}

	var sb strings.Builder
	sb.WriteString("Update this expert's working memory in 50-100 words, folding in the new point while dropping anything superseded.\n\n")
	if priorMemory != "" {
		sb.WriteString("Prior memory: ")
		sb.WriteString(priorMemory)
		sb.WriteString("\n\n")
	}
	sb.WriteString("New contribution: ")
	sb.WriteString(newContribution)

	resp, _, err := s.broker.Dispatch(ctx, llmbroker.TierFast, llmbroker.Request{
		Messages:  []llmbroker.Message{{Role: llmbroker.RoleUser, Content: sb.String()}},
		MaxTokens: personaMemoryMaxTokens,
	})
	if err != nil || strings.TrimSpace(resp.Content) == "" {
		if priorMemory == "" {
			return truncate(newContribution, 200)
		}
		return priorMemory
	}
	_ = personaID
	return strings.TrimSpace(resp.Content)
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func extractTag(content, tag string) string {
	open := "<" + tag + ">"
	close := "</" + tag + ">"
	start := strings.Index(content, open)
	if start < 0 {
		return ""
	}
	start += len(open)
	end := strings.Index(content[start:], close)
	if end < 0 {
		return ""
	}
	return strings.TrimSpace(content[start : start+end])
}
