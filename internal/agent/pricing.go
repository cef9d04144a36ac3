package agent

import "github.com/kc-vaultik/shapex-studio/internal/model"

type modelPricing struct {
	inputPerMillion  float64
	outputPerMillion float64
}

var pricingByModel = map[string]modelPricing{
	"claude-sonnet-4-5-20250929": {inputPerMillion: 3.00, outputPerMillion: 15.00},
	"claude-opus-4-6":            {inputPerMillion: 15.00, outputPerMillion: 75.00},
	"claude-haiku-4-5-20251001":  {inputPerMillion: 0.80, outputPerMillion: 4.00},
}

// costUSD prices a completion. Unknown models fall back to the default
// model's rates rather than reporting zero cost.
func costUSD(modelName string, usage model.Usage) float64 {
	pricing, ok := pricingByModel[modelName]
	if !ok {
		pricing = pricingByModel[defaultModelName]
	}
	inputCost := float64(usage.InputTokens) / 1_000_000 * pricing.inputPerMillion
	outputCost := float64(usage.OutputTokens) / 1_000_000 * pricing.outputPerMillion
	return inputCost + outputCost
}
