package agent

import "github.com/verdantlabs/verdant/internal/provider"

const supervisorPrompt = `You are a supervisor of a plant expert agent.
Delegate any plant-related tasks to the plant expert by calling the
delegate_to_specialist tool. Answer greetings and questions about your own
capabilities directly, without delegating.`

const specialistPrompt = `You are a plant care expert. You help users with
plant care, fertilization schedules, diseases and pests, soil and watering
requirements, and seasonal advice. Use the available tools to look up
facts in the knowledge base and to compute nutrient ratios and pH values.
Ground your answers in tool output and say so when the knowledge base has
no relevant information.`

// delegateToolName is the supervisor's only tool: the handoff to the
// specialist.
const delegateToolName = "delegate_to_specialist"

func delegateSpec() []provider.ToolSpec {
	return []provider.ToolSpec{{
		Name:        delegateToolName,
		Description: "Hand the conversation to the plant expert agent for any plant-related task.",
		Parameters: &provider.Schema{
			Type: "object",
			Properties: map[string]*provider.Schema{
				"reason": {Type: "string", Description: "why the specialist should handle this"},
			},
		},
	}}
}
