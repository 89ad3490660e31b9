// Package llmbroker is the single point through which every persona,
// moderator, researcher, and judge call reaches a model provider (spec
// §4.2). It is a thin dispatcher over two model tiers ("fast" for
// high-volume persona, judge, vote and summary calls, "strong" for
// decomposition, facilitator routing and synthesis calls), grounded
// on the teacher's internal/modes/llm_base.go + llm_anthropic.go
// request/response shaping, replacing their hand-rolled HTTP clients with
// the real anthropic-sdk-go and openai-go SDKs (the same pairing the
// basegraphhq-basegraph reference repo uses for its multi-provider AgentClient).
//
// Retries use cenkalti/backoff/v5; a per-tier gobreaker circuit breaker
// stops hammering a tier that is already failing. Every call is metered:
// Dispatch translates token usage into USD and returns it with the
// response. No caller in this module passes that cost on to
// internal/safety.Limits.RecordCost, so the session-wide and
// per-sub-problem cost caps do not see LLM spend.
package llmbroker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/sony/gobreaker"
)

// Tier selects which model class serves a call. Fast serves persona turns,
// judge scoring, votes, summaries, moderators and research; Strong serves
// decomposition, facilitator routing, and per-sub-problem and meta
// synthesis, where quality matters more than throughput or cost.
type Tier string

const (
	TierFast   Tier = "fast"
	TierStrong Tier = "strong"
)

// Role mirrors the provider-agnostic chat roles every client maps its own
// wire format to.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn in a conversation sent to a provider.
type Message struct {
	Role    Role
	Content string
}

// Request is a single completion call. When Schema is non-nil the broker
// asks the provider for structured output conforming to it and validates
// the result before returning (see schema.go).
//
// CacheSystem marks System as a candidate for the provider's prompt
// caching (spec §4.2's caching contract): within one round, every
// persona's call shares the same sub-problem/hierarchical-context system
// prompt, so caching it lets the five-or-so sibling calls share cached
// input tokens. Persona-specific identity stays in Messages precisely so
// it does not break that cache alignment.
type Request struct {
	System      string
	CacheSystem bool
	Messages    []Message
	Schema      *Schema
	MaxTokens   int
	Temperature *float64
}

// Response is a completion result plus the usage needed for cost
// accounting. CachedInputTokens counts the PromptTokens subset served from
// the provider's prompt cache (free or discounted, per Pricing).
type Response struct {
	Content           string
	PromptTokens      int
	CachedInputTokens int
	CompletionTokens  int
	Model             string
}

// Client is what a provider-specific implementation must satisfy.
type Client interface {
	Complete(ctx context.Context, req Request) (*Response, error)
	Model() string
}

// Pricing holds per-million-token USD rates for cost accounting.
// CachedInputPerMillion is the discounted rate for prompt-cache reads,
// typically a fraction of InputPerMillion (Anthropic bills cache reads at
// roughly 10% of the base input rate). Each PricingForModel table entry
// sets it explicitly; an unrecognized model gets the GPT-4o-mini entry.
type Pricing struct {
	InputPerMillion       float64
	CachedInputPerMillion float64
	OutputPerMillion      float64
}

// CostUSD computes the dollar cost of a response under this pricing,
// billing CachedInputTokens at the discounted cache rate and the
// remainder of PromptTokens at the full input rate.
func (p Pricing) CostUSD(resp *Response) float64 {
	cached := resp.CachedInputTokens
	if cached > resp.PromptTokens {
		cached = resp.PromptTokens
	}
	uncached := resp.PromptTokens - cached

	return float64(uncached)/1_000_000*p.InputPerMillion +
		float64(cached)/1_000_000*p.CachedInputPerMillion +
		float64(resp.CompletionTokens)/1_000_000*p.OutputPerMillion
}

type tierEntry struct {
	client  Client
	pricing Pricing
	breaker *gobreaker.CircuitBreaker
}

// Broker dispatches completion requests to the tier-appropriate client,
// wrapped in retry and circuit-breaking.
type Broker struct {
	tiers      map[Tier]tierEntry
	maxRetries int
}

// Config wires one client per tier.
type Config struct {
	Fast          Client
	FastPricing   Pricing
	Strong        Client
	StrongPricing Pricing
	MaxRetries    int
}

// New builds a Broker. Each tier gets its own circuit breaker so a strong-
// tier outage doesn't throttle fast-tier calls and vice versa.
func New(cfg Config) (*Broker, error) {
	if cfg.Fast == nil || cfg.Strong == nil {
		return nil, fmt.Errorf("llmbroker: both fast and strong tier clients are required")
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}

	newBreaker := func(name string) *gobreaker.CircuitBreaker {
		return gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        name,
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		})
	}

	return &Broker{
		maxRetries: maxRetries,
		tiers: map[Tier]tierEntry{
			TierFast:   {client: cfg.Fast, pricing: cfg.FastPricing, breaker: newBreaker("llmbroker-fast")},
			TierStrong: {client: cfg.Strong, pricing: cfg.StrongPricing, breaker: newBreaker("llmbroker-strong")},
		},
	}, nil
}

// Dispatch sends req to the given tier, retrying transient failures and
// tripping that tier's circuit breaker on sustained failure. It returns the
// response alongside the USD cost of the call so the caller can record it
// against internal/safety.Limits.
func (b *Broker) Dispatch(ctx context.Context, tier Tier, req Request) (*Response, float64, error) {
	entry, ok := b.tiers[tier]
	if !ok {
		return nil, 0, fmt.Errorf("llmbroker: unknown tier %q", tier)
	}

	op := func() (*Response, error) {
		raw, err := entry.breaker.Execute(func() (interface{}, error) {
			return entry.client.Complete(ctx, req)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return nil, fmt.Errorf("llmbroker: %s tier circuit open: %w", tier, err)
			}
			return nil, err
		}
		return raw.(*Response), nil
	}

	resp, err := backoff.Retry(ctx, op,
		backoff.WithMaxTries(uint(b.maxRetries)),
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
	)
	if err != nil {
		return nil, 0, fmt.Errorf("llmbroker: dispatch to %s tier: %w", tier, err)
	}

	if req.Schema != nil {
		if err := req.Schema.Validate(resp.Content); err != nil {
			return nil, 0, fmt.Errorf("llmbroker: structured output did not match schema: %w", err)
		}
	}

	return resp, entry.pricing.CostUSD(resp), nil
}
