package emission

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

type Priority string

const (
	PriorityEco  Priority = "eco"
	PriorityCost Priority = "cost"
	PriorityFast Priority = "fast"
)

// treeKgPerYear is the CO2 a single tree is credited with absorbing.
const treeKgPerYear = 0.02

// ParsePriority accepts the short names and the labels shown on the planner page.
func ParsePriority(s string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "eco", "eco-friendly":
		return PriorityEco, nil
	case "cost", "low cost":
		return PriorityCost, nil
	case "fast", "time":
		return PriorityFast, nil
	default:
		return "", fmt.Errorf("unknown priority %q", s)
	}
}

// RouteMetrics describes one transport option for a trip. Cost and Minutes
// are nil when the table carries no cost or speed for the mode.
type RouteMetrics struct {
	Mode                string   `json:"mode"`
	DistanceKm          float64  `json:"distance_km"`
	EmissionsKg         float64  `json:"emissions_kg"`
	Cost                *float64 `json:"cost,omitempty"`
	Minutes             *float64 `json:"minutes,omitempty"`
	SustainabilityScore float64  `json:"sustainability_score"`
}

// Savings compares the best and worst option of a comparison.
type Savings struct {
	CO2SavedKg       float64  `json:"co2_saved_kg"`
	YearlyCO2SavedKg float64  `json:"yearly_co2_saved_kg"`
	TreesEquivalent  int      `json:"trees_equivalent"`
	CostSaved        *float64 `json:"cost_saved,omitempty"`
}

// Metrics computes the route metrics of one mode.
func (t *Table) Metrics(mode string, distanceKm float64) (RouteMetrics, error) {
	kg, err := t.Lookup(mode, distanceKm)
	if err != nil {
		return RouteMetrics{}, err
	}
	f, _ := t.Factor(mode)
	m := RouteMetrics{
		Mode:                f.Mode,
		DistanceKm:          distanceKm,
		EmissionsKg:         round(kg, 3),
		SustainabilityScore: round(math.Max(0, 100-f.KgPerKm*100), 1),
	}
	if f.CostPerKm != nil {
		c := round(distanceKm*(*f.CostPerKm), 2)
		m.Cost = &c
	}
	if f.SpeedKmh != nil && *f.SpeedKmh > 0 {
		minutes := round(distanceKm/(*f.SpeedKmh)*60, 1)
		m.Minutes = &minutes
	}
	return m, nil
}

// Compare returns the metrics of every mode, ordered by priority. Modes
// without the data a priority needs sort last; ties keep table order.
func (t *Table) Compare(distanceKm float64, priority Priority) ([]RouteMetrics, error) {
	routes := make([]RouteMetrics, 0, len(t.order))
	for _, key := range t.order {
		m, err := t.Metrics(key, distanceKm)
		if err != nil {
			return nil, err
		}
		routes = append(routes, m)
	}
	var key func(RouteMetrics) float64
	switch priority {
	case PriorityCost:
		key = func(r RouteMetrics) float64 { return orInf(r.Cost) }
	case PriorityFast:
		key = func(r RouteMetrics) float64 { return orInf(r.Minutes) }
	default:
		key = func(r RouteMetrics) float64 { return r.EmissionsKg }
	}
	sort.SliceStable(routes, func(i, j int) bool { return key(routes[i]) < key(routes[j]) })
	return routes, nil
}

// Impact reports what choosing best over worst saves.
func Impact(best, worst RouteMetrics) Savings {
	saved := worst.EmissionsKg - best.EmissionsKg
	s := Savings{
		CO2SavedKg:       round(saved, 3),
		YearlyCO2SavedKg: round(saved*365, 2),
		TreesEquivalent:  int(saved / treeKgPerYear),
	}
	if best.Cost != nil && worst.Cost != nil {
		c := round(*worst.Cost-*best.Cost, 2)
		s.CostSaved = &c
	}
	return s
}

func orInf(v *float64) float64 {
	if v == nil {
		return math.Inf(1)
	}
	return *v
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
