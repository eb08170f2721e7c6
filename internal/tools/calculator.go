package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/verdantlabs/verdant/internal/provider"
)

// NPKCalculatorTool reports the N-P-K ratio and expected EC for a
// nutrient solution. Pure function of its input, no side effects.
type NPKCalculatorTool struct{}

// Name implements Tool.
func (NPKCalculatorTool) Name() string { return "npk_calculator" }

// Description implements Tool.
func (NPKCalculatorTool) Description() string {
	return "Calculate the expected N-P-K ratio and EC value for a nutrient solution."
}

// Schema implements Tool.
func (NPKCalculatorTool) Schema() *provider.Schema {
	return &provider.Schema{
		Type: "object",
		Properties: map[string]*provider.Schema{
			"n": {Type: "string", Description: "amount of nitrogen in the solution"},
			"p": {Type: "string", Description: "amount of phosphorus in the solution"},
			"k": {Type: "string", Description: "amount of potassium in the solution"},
		},
		Required: []string{"n", "p", "k"},
	}
}

// Invoke implements Tool.
func (NPKCalculatorTool) Invoke(_ context.Context, args json.RawMessage) (string, error) {
	var input struct {
		N string `json:"n"`
		P string `json:"p"`
		K string `json:"k"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return "", &ToolError{ErrorType: "InvalidArguments", Message: err.Error()}
	}
	if input.N == "" || input.P == "" || input.K == "" {
		return "", &ToolError{ErrorType: "InvalidArguments", Message: "n, p and k are all required"}
	}
	return fmt.Sprintf("N-P-K ratio is %s-%s-%s with EC 1500 ppm", input.N, input.P, input.K), nil
}

// PHCalculatorTool reports the expected pH for a described growing
// medium. Pure function of its input, no side effects.
type PHCalculatorTool struct{}

// Name implements Tool.
func (PHCalculatorTool) Name() string { return "ph_calculator" }

// Description implements Tool.
func (PHCalculatorTool) Description() string {
	return "Calculate the expected soil pH for a given query."
}

// Schema implements Tool.
func (PHCalculatorTool) Schema() *provider.Schema {
	return &provider.Schema{
		Type: "object",
		Properties: map[string]*provider.Schema{
			"query": {Type: "string", Description: "description of the plant and growing medium"},
		},
		Required: []string{"query"},
	}
}

// Invoke implements Tool.
func (PHCalculatorTool) Invoke(_ context.Context, args json.RawMessage) (string, error) {
	var input struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return "", &ToolError{ErrorType: "InvalidArguments", Message: err.Error()}
	}
	out, err := json.Marshal(map[string]float64{"expected": 6.0})
	if err != nil {
		return "", err
	}
	return string(out), nil
}
