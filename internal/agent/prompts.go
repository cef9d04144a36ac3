package agent

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kc-vaultik/shapex-studio/internal/idea"
)

const defaultModelName = "claude-sonnet-4-5-20250929"

// Config is the per-role model tuning. Values mirror the production
// defaults: the validator runs cooler and shorter than the two
// generative stages.
type Config struct {
	Model        string
	Temperature  float64
	MaxTokens    int
	SystemPrompt string
}

func DefaultConfigs() map[Role]Config {
	return map[Role]Config{
		RoleResearcher: {
			Model:       defaultModelName,
			Temperature: 0.7,
			MaxTokens:   8000,
			SystemPrompt: "You are a startup market researcher. Analyze the idea's market: size, " +
				"competitors, trends, demand signals, and readiness. Respond with a single JSON " +
				"object containing market_overview, competitors, trends, and insights " +
				"(opportunity_score 1-10, market_readiness, red_flags).",
		},
		RoleValidator: {
			Model:       defaultModelName,
			Temperature: 0.6,
			MaxTokens:   6000,
			SystemPrompt: "You are a startup idea validator. Using the market research provided, " +
				"assess feasibility, risks, and viability. Respond with a single JSON object " +
				"containing validation_metrics (feasibility_score 1-10, success_probability " +
				"0-100), risks, and recommendation (decision: go/no-go/pivot, reasoning).",
		},
		RoleStrategist: {
			Model:       defaultModelName,
			Temperature: 0.7,
			MaxTokens:   8000,
			SystemPrompt: "You are a startup strategist. Using the research and validation provided, " +
				"produce an actionable plan. Respond with a single JSON object containing " +
				"business_model (pricing_strategy), gtm_strategy (sales_strategy, channels), " +
				"roadmap, and key_metrics.",
		},
	}
}

// buildUserPrompt renders the idea plus every prior stage's structured
// output, in stage order, so each agent sees the accumulated context.
func buildUserPrompt(rec idea.Record, prior map[Role]Output) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Analyze this startup idea:\n\n")
	fmt.Fprintf(&b, "**Title**: %s\n", rec.Title)
	fmt.Fprintf(&b, "**Description**: %s\n", rec.Description)
	fmt.Fprintf(&b, "**Category**: %s\n", orUnspecified(rec.Category))
	fmt.Fprintf(&b, "**Target Market**: %s\n", orUnspecified(rec.TargetMarket))
	fmt.Fprintf(&b, "**Revenue Model**: %s\n", orUnspecified(rec.RevenueModel))

	if len(prior) > 0 {
		b.WriteString("\n**Context from previous analysis:**\n")
		for _, role := range Roles() {
			out, ok := prior[role]
			if !ok {
				continue
			}
			fmt.Fprintf(&b, "\n%s OUTPUT:\n%s\n", strings.ToUpper(string(role)), indentJSON(out.Structured))
		}
	}

	return b.String()
}

func orUnspecified(v string) string {
	if strings.TrimSpace(v) == "" {
		return "Not specified"
	}
	return v
}

func indentJSON(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}
