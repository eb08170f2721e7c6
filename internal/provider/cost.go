package provider

import "strings"

// pricing maps a model-name fragment to USD cost per 1K tokens. Matched by
// substring so versioned names ("gpt-4.1-2025-04-14") hit the right row.
//
// TODO: load from config once upstream pricing stabilizes.
var pricing = map[string]struct{ input, output float64 }{
	"gemini-2.5-flash": {0.00015, 0.00060},
	"gemini-2.5-pro":   {0.00125, 0.01500},
	"gpt-4o-mini":      {0.00015, 0.00060},
	"gpt-4o":           {0.00250, 0.01000},
	"gpt-4.1":          {0.00200, 0.00800},
	"gpt-4.5":          {0.07500, 0.15000},
	"gpt-o3":           {0.00110, 0.00440},
}

// EstimateCost returns the USD cost of a call, or 0 for unknown models.
// Unknown models are not an error: cost tracking is advisory telemetry.
func EstimateCost(model string, inputTokens, outputTokens int) float64 {
	lower := strings.ToLower(model)

	// Longest fragment wins so "gpt-4o-mini" is not shadowed by "gpt-4o".
	var best string
	for fragment := range pricing {
		if strings.Contains(lower, fragment) && len(fragment) > len(best) {
			best = fragment
		}
	}
	if best == "" {
		return 0
	}

	p := pricing[best]
	return float64(inputTokens)/1000*p.input + float64(outputTokens)/1000*p.output
}
