package models

const (
	ContextSeparator = "\n---\n"
)

// Prompt templates use Go template syntax and are rendered through langchaingo prompts.
var (
	QAPromptTemplate = `Use the following pieces of context to answer the question at the end. If you don't know the answer, just say that you don't know, don't try to make up an answer.

{{.context}}

Question: {{.question}}
Helpful Answer:`

	QAPromptVariables = []string{"context", "question"}

	RecommendationSystemPrompt = `You are an AI sustainability advisor for urban transport.
Your role is to help users make informed, eco-friendly commute decisions.
Be friendly, concise, and focus on environmental impact.
Always mention the carbon footprint and provide actionable insights.`

	RecommendationPromptTemplate = `{{.system}}

Journey Details:
- Origin: {{.origin}}
- Destination: {{.destination}}
- Distance: {{.distance}} km
- User Priority: {{.priority}}

Top 3 Transport Options:
{{.routes}}

Provide a personalized recommendation in 3-4 sentences that:
1. Suggests the best option based on their priority
2. Highlights the environmental benefit
3. Mentions a practical tip or insight
`

	RecommendationPromptVariables = []string{"system", "origin", "destination", "distance", "priority", "routes"}
)
