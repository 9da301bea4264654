package generation

// modelPricing holds per-model USD prices per million tokens. Cached prompt
// tokens bill at the cache rate, the rest of the prompt at the input rate.
type modelPricing struct {
	Input  float64
	Cached float64
	Output float64
}

var pricingTable = map[string]modelPricing{
	"gpt-5-nano-2025-08-07": {Input: 0.10, Cached: 0.05, Output: 0.40},
	"gpt-5-mini-2025-08-07": {Input: 0.40, Cached: 0.20, Output: 1.60},
	"gpt-5-2025-08-07":      {Input: 1.00, Cached: 0.50, Output: 4.00},
	"gpt-4o-mini":           {Input: 0.15, Cached: 0.075, Output: 0.60},
	"gpt-4o":                {Input: 2.50, Cached: 1.25, Output: 10.00},
}

// estimateCost returns the estimated USD cost of one completion. Unknown
// models estimate at conservative fallback rates so spend tracking never
// reads zero for a real call.
func estimateCost(model string, promptTokens, cachedTokens, completionTokens int) float64 {
	pricing, ok := pricingTable[model]
	if !ok {
		return (float64(promptTokens)*1.0 + float64(completionTokens)*4.0) / 1e6
	}
	if cachedTokens > promptTokens {
		cachedTokens = promptTokens
	}
	input := float64(promptTokens-cachedTokens) / 1e6 * pricing.Input
	cached := float64(cachedTokens) / 1e6 * pricing.Cached
	output := float64(completionTokens) / 1e6 * pricing.Output
	return input + cached + output
}
