package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kc-vaultik/shapex-studio/internal/idea"
)

// Role identifies one of the three fixed pipeline stages. The closed set is
// deliberate: the workflow is a sequential loop over Roles(), not a plugin
// graph.
type Role string

const (
	RoleResearcher Role = "researcher"
	RoleValidator  Role = "validator"
	RoleStrategist Role = "strategist"
)

// Roles returns the stages in execution order.
func Roles() []Role {
	return []Role{RoleResearcher, RoleValidator, RoleStrategist}
}

func ValidRole(r Role) bool {
	switch r {
	case RoleResearcher, RoleValidator, RoleStrategist:
		return true
	default:
		return false
	}
}

// Context carries the shared idea plus the structured outputs of every
// stage that has already completed. The validator sees research output;
// the strategist sees both.
type Context struct {
	Idea  idea.Record
	Prior map[Role]Output
}

// Output is one stage's result with its usage metrics.
type Output struct {
	Role       Role
	RawOutput  string
	Structured json.RawMessage
	TokensUsed int64
	CostUSD    float64
	Model      string
}

// Worker performs one unit of analysis work. Implementations may emit
// intermediate text through onChunk before returning; chunks must be
// delivered in production order. A failed worker must not leave partial
// state behind; retry is always a whole new session.
type Worker interface {
	Role() Role
	Run(ctx context.Context, wc Context, onChunk func(text string)) (Output, error)
}

func validateOutput(out Output) error {
	if !ValidRole(out.Role) {
		return fmt.Errorf("unsupported role %q", out.Role)
	}
	if len(out.Structured) == 0 {
		return fmt.Errorf("%s produced no structured output", out.Role)
	}
	if !json.Valid(out.Structured) {
		return fmt.Errorf("%s produced malformed structured output", out.Role)
	}
	return nil
}
