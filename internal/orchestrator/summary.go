package orchestrator

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/kc-vaultik/shapex-studio/internal/blueprint"
)

// executiveSummary condenses the three sections into a one-line digest for
// list views. Sections are model output, so every lookup is best effort;
// a blueprint with unreadable sections still gets a generic summary.
func executiveSummary(bp blueprint.Record) string {
	var parts []string

	var research struct {
		Insights struct {
			MarketReadiness string   `json:"market_readiness"`
			RedFlags        []string `json:"red_flags"`
		} `json:"insights"`
	}
	if err := json.Unmarshal(bp.MarketResearch, &research); err == nil {
		if readiness := strings.TrimSpace(research.Insights.MarketReadiness); readiness != "" {
			parts = append(parts, fmt.Sprintf("Market readiness: %s.", readiness))
		}
	}

	var validation struct {
		Recommendation struct {
			Decision string `json:"decision"`
		} `json:"recommendation"`
	}
	if err := json.Unmarshal(bp.ValidationAnalysis, &validation); err == nil {
		if decision := strings.TrimSpace(validation.Recommendation.Decision); decision != "" {
			parts = append(parts, fmt.Sprintf("Recommendation: %s.", strings.ToUpper(decision)))
		}
	}

	if flags := research.Insights.RedFlags; len(flags) > 0 {
		if len(flags) > 2 {
			flags = flags[:2]
		}
		parts = append(parts, fmt.Sprintf("Key concerns: %s.", strings.Join(flags, ", ")))
	}

	if len(parts) == 0 {
		return "Blueprint generated successfully."
	}
	return strings.Join(parts, " ")
}

// successProbability is a weighted blend of the three stage scores,
// rounded to two decimals. Missing or unreadable scores fall back to
// their midpoints so an incomplete section yields 50 rather than 0.
func successProbability(bp blueprint.Record) float64 {
	opportunity, feasibility, probability := 5.0, 5.0, 50.0

	var research struct {
		Insights struct {
			OpportunityScore *float64 `json:"opportunity_score"`
		} `json:"insights"`
	}
	if err := json.Unmarshal(bp.MarketResearch, &research); err == nil && research.Insights.OpportunityScore != nil {
		opportunity = *research.Insights.OpportunityScore
	}

	var validation struct {
		Metrics struct {
			FeasibilityScore   *float64 `json:"feasibility_score"`
			SuccessProbability *float64 `json:"success_probability"`
		} `json:"validation_metrics"`
	}
	if err := json.Unmarshal(bp.ValidationAnalysis, &validation); err == nil {
		if validation.Metrics.FeasibilityScore != nil {
			feasibility = *validation.Metrics.FeasibilityScore
		}
		if validation.Metrics.SuccessProbability != nil {
			probability = *validation.Metrics.SuccessProbability
		}
	}

	weighted := (opportunity/10*0.3 + feasibility/10*0.3 + probability/100*0.4) * 100
	return math.Round(weighted*100) / 100
}

// keyInsights pulls the headline figure from each section into one small
// document for list and detail views. Unreadable sections are skipped; a
// blueprint with no extractable figures carries no insights at all.
func keyInsights(bp blueprint.Record) json.RawMessage {
	doc := map[string]map[string]any{}

	var research struct {
		Insights struct {
			OpportunityScore *float64 `json:"opportunity_score"`
			MarketReadiness  string   `json:"market_readiness"`
		} `json:"insights"`
	}
	if err := json.Unmarshal(bp.MarketResearch, &research); err == nil {
		market := map[string]any{}
		if research.Insights.OpportunityScore != nil {
			market["opportunity_score"] = *research.Insights.OpportunityScore
		}
		if readiness := strings.TrimSpace(research.Insights.MarketReadiness); readiness != "" {
			market["market_readiness"] = readiness
		}
		if len(market) > 0 {
			doc["market"] = market
		}
	}

	var validation struct {
		Metrics struct {
			FeasibilityScore *float64 `json:"feasibility_score"`
		} `json:"validation_metrics"`
		Recommendation struct {
			Decision string `json:"decision"`
		} `json:"recommendation"`
	}
	if err := json.Unmarshal(bp.ValidationAnalysis, &validation); err == nil {
		section := map[string]any{}
		if validation.Metrics.FeasibilityScore != nil {
			section["feasibility_score"] = *validation.Metrics.FeasibilityScore
		}
		if decision := strings.TrimSpace(validation.Recommendation.Decision); decision != "" {
			section["recommendation"] = decision
		}
		if len(section) > 0 {
			doc["validation"] = section
		}
	}

	var strategy struct {
		BusinessModel struct {
			PricingStrategy json.RawMessage `json:"pricing_strategy"`
		} `json:"business_model"`
		GTMStrategy struct {
			SalesStrategy string `json:"sales_strategy"`
		} `json:"gtm_strategy"`
	}
	if err := json.Unmarshal(bp.StrategicPlan, &strategy); err == nil {
		section := map[string]any{}
		if model := pricingModel(strategy.BusinessModel.PricingStrategy); model != "" {
			section["pricing_model"] = model
		}
		if sales := strings.TrimSpace(strategy.GTMStrategy.SalesStrategy); sales != "" {
			section["sales_strategy"] = sales
		}
		if len(section) > 0 {
			doc["strategy"] = section
		}
	}

	if len(doc) == 0 {
		return nil
	}
	out, err := json.Marshal(doc)
	if err != nil {
		return nil
	}
	return out
}

// pricingModel accepts both shapes models produce for pricing_strategy:
// an object carrying a model field, or a bare string.
func pricingModel(raw json.RawMessage) string {
	var obj struct {
		Model string `json:"model"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		if model := strings.TrimSpace(obj.Model); model != "" {
			return model
		}
	}
	var plain string
	if err := json.Unmarshal(raw, &plain); err == nil {
		return strings.TrimSpace(plain)
	}
	return ""
}
