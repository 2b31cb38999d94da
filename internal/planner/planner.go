package planner

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/prompts"

	"ecoroute/internal/emission"
	"ecoroute/internal/llmservice"
	"ecoroute/internal/models"
)

var ErrMissingEndpoints = errors.New("origin and destination are required")

// FallbackRecommendation is shown when the model could not be reached.
const FallbackRecommendation = "Unable to generate a recommendation. Check that the language model service is running."

// topRoutes is how many options the model is asked to weigh.
const topRoutes = 3

type Journey struct {
	Origin      string            `json:"origin"`
	Destination string            `json:"destination"`
	DistanceKm  float64           `json:"distance_km"`
	Priority    emission.Priority `json:"priority"`
}

// Plan is the outcome of a journey comparison. RecommendationErr is set when
// the model failed; Recommendation then holds the fallback text.
type Plan struct {
	Journey           Journey                 `json:"journey"`
	Routes            []emission.RouteMetrics `json:"routes"`
	Savings           emission.Savings        `json:"savings"`
	Recommendation    string                  `json:"recommendation"`
	RecommendationErr error                   `json:"-"`
}

type Planner struct {
	table *emission.Table
	llm   llmservice.Client
}

func New(table *emission.Table, llm llmservice.Client) *Planner {
	return &Planner{table: table, llm: llm}
}

// Recommend compares every mode for the journey and asks the model to pick one.
// A model failure still yields the comparison.
func (p *Planner) Recommend(ctx context.Context, j Journey) (*Plan, error) {
	j.Origin = strings.TrimSpace(j.Origin)
	j.Destination = strings.TrimSpace(j.Destination)
	if j.Origin == "" || j.Destination == "" {
		return nil, ErrMissingEndpoints
	}
	if j.Priority == "" {
		j.Priority = emission.PriorityEco
	}

	routes, err := p.table.Compare(j.DistanceKm, j.Priority)
	if err != nil {
		return nil, err
	}
	plan := &Plan{Journey: j, Routes: routes}
	if len(routes) > 0 {
		plan.Savings = emission.Impact(routes[0], routes[len(routes)-1])
	}

	prompt, err := BuildPrompt(j, routes)
	if err != nil {
		return nil, fmt.Errorf("build recommendation prompt: %w", err)
	}
	text, err := p.llm.Answer(ctx, prompt)
	if err != nil {
		log.Warn().Err(err).Str("origin", j.Origin).Str("destination", j.Destination).Msg("Recommendation unavailable")
		plan.Recommendation = FallbackRecommendation
		plan.RecommendationErr = err
		return plan, nil
	}
	plan.Recommendation = strings.TrimSpace(text)
	return plan, nil
}

// BuildPrompt renders the recommendation prompt for the best routes.
func BuildPrompt(j Journey, routes []emission.RouteMetrics) (string, error) {
	if len(routes) > topRoutes {
		routes = routes[:topRoutes]
	}
	lines := make([]string, len(routes))
	for i, r := range routes {
		lines[i] = SummarizeRoute(r)
	}

	tmpl := prompts.NewPromptTemplate(models.RecommendationPromptTemplate, models.RecommendationPromptVariables)
	return tmpl.Format(map[string]any{
		"system":      models.RecommendationSystemPrompt,
		"origin":      j.Origin,
		"destination": j.Destination,
		"distance":    strconv.FormatFloat(j.DistanceKm, 'f', -1, 64),
		"priority":    PriorityLabel(j.Priority),
		"routes":      strings.Join(lines, "\n"),
	})
}

// SummarizeRoute formats a route as "Metro/Train: 0.36kg CO2, ₹16, 12 mins",
// leaving out cost and time when unknown.
func SummarizeRoute(r emission.RouteMetrics) string {
	parts := []string{fmt.Sprintf("%s: %skg CO2", r.Mode, formatNum(r.EmissionsKg))}
	if r.Cost != nil {
		parts = append(parts, "₹"+formatNum(*r.Cost))
	}
	if r.Minutes != nil {
		parts = append(parts, formatNum(*r.Minutes)+" mins")
	}
	return strings.Join(parts, ", ")
}

// PriorityLabel is the human readable name of a priority.
func PriorityLabel(p emission.Priority) string {
	switch p {
	case emission.PriorityCost:
		return "Low Cost"
	case emission.PriorityFast:
		return "Fast"
	default:
		return "Eco-Friendly"
	}
}

func formatNum(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
