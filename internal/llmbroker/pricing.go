package llmbroker

// Default per-million-token USD pricing for the models named in
// internal/config's defaults. Sub-problem and session cost caps (spec
// §4.12) are only as accurate as this table; update it alongside a model
// change in config.
var (
	PricingClaudeSonnet = Pricing{InputPerMillion: 3.00, CachedInputPerMillion: 0.30, OutputPerMillion: 15.00}
	PricingClaudeHaiku  = Pricing{InputPerMillion: 0.80, CachedInputPerMillion: 0.08, OutputPerMillion: 4.00}
	PricingGPT4oMini    = Pricing{InputPerMillion: 0.15, CachedInputPerMillion: 0.075, OutputPerMillion: 0.60}
	PricingGPT4o        = Pricing{InputPerMillion: 2.50, CachedInputPerMillion: 1.25, OutputPerMillion: 10.00}
)

// PricingForModel returns the known pricing for a model identifier, or a
// conservative fallback (GPT-4o-mini rates) if the model isn't recognized.
func PricingForModel(model string) Pricing {
	switch model {
	case "claude-sonnet-4-5-20250929", "claude-sonnet-4-5-20250514":
		return PricingClaudeSonnet
	case "claude-haiku-4-5":
		return PricingClaudeHaiku
	case "gpt-4o-mini":
		return PricingGPT4oMini
	case "gpt-4o":
		return PricingGPT4o
	default:
		return PricingGPT4oMini
	}
}
