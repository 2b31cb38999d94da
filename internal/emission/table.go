package emission

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

var (
	ErrUnknownMode     = errors.New("unknown transport mode")
	ErrInvalidDistance = errors.New("distance must be a non-negative number")
	ErrUnknownTable    = errors.New("unknown emission table")
)

// Factor is the emission factor of one transport mode, in kg CO2 per km
// (or per passenger-km for shared modes). Cost and speed are optional.
type Factor struct {
	Mode      string   `yaml:"mode" json:"mode"`
	KgPerKm   float64  `yaml:"kg_per_km" json:"kg_per_km"`
	CostPerKm *float64 `yaml:"cost_per_km,omitempty" json:"cost_per_km,omitempty"`
	SpeedKmh  *float64 `yaml:"speed_kmh,omitempty" json:"speed_kmh,omitempty"`
}

// Table maps case-insensitive mode names to emission factors. It is
// read-only once built.
type Table struct {
	name    string
	order   []string
	factors map[string]Factor
}

// Result is the outcome of a single lookup.
type Result struct {
	Mode          string  `json:"mode"`
	DistanceKm    float64 `json:"distance_km"`
	EmissionsKg   float64 `json:"emissions_kg"`
	ZeroEmissions bool    `json:"zero_emissions"`
}

// NewTable builds a table from factors, keeping their order for display.
func NewTable(name string, factors []Factor) (*Table, error) {
	t := &Table{name: name, factors: make(map[string]Factor, len(factors))}
	for _, f := range factors {
		key := normalize(f.Mode)
		if key == "" {
			return nil, errors.New("emission factor with empty mode name")
		}
		if !nonNegative(f.KgPerKm) {
			return nil, fmt.Errorf("mode %q: emission factor must be a non-negative number", f.Mode)
		}
		if f.CostPerKm != nil && !nonNegative(*f.CostPerKm) {
			return nil, fmt.Errorf("mode %q: cost per km must be a non-negative number", f.Mode)
		}
		if f.SpeedKmh != nil && (!nonNegative(*f.SpeedKmh) || *f.SpeedKmh == 0) {
			return nil, fmt.Errorf("mode %q: speed must be a positive number", f.Mode)
		}
		if _, dup := t.factors[key]; dup {
			return nil, fmt.Errorf("mode %q listed twice", f.Mode)
		}
		t.factors[key] = f
		t.order = append(t.order, key)
	}
	if len(t.order) == 0 {
		return nil, errors.New("emission table has no modes")
	}
	return t, nil
}

func nonNegative(v float64) bool {
	return v >= 0 && !math.IsInf(v, 0)
}

func (t *Table) Name() string { return t.name }

// Modes returns the display names in table order.
func (t *Table) Modes() []string {
	out := make([]string, 0, len(t.order))
	for _, key := range t.order {
		out = append(out, t.factors[key].Mode)
	}
	return out
}

// Factor returns the factor for mode, ignoring case and surrounding space.
func (t *Table) Factor(mode string) (Factor, error) {
	f, ok := t.factors[normalize(mode)]
	if !ok {
		return Factor{}, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
	return f, nil
}

// Lookup returns factor(mode) * distanceKm.
func (t *Table) Lookup(mode string, distanceKm float64) (float64, error) {
	if distanceKm < 0 || math.IsNaN(distanceKm) || math.IsInf(distanceKm, 0) {
		return 0, fmt.Errorf("%w: %v", ErrInvalidDistance, distanceKm)
	}
	f, err := t.Factor(mode)
	if err != nil {
		return 0, err
	}
	return f.KgPerKm * distanceKm, nil
}

// Calculate is Lookup with the zero-emission flag set for display.
func (t *Table) Calculate(mode string, distanceKm float64) (Result, error) {
	kg, err := t.Lookup(mode, distanceKm)
	if err != nil {
		return Result{}, err
	}
	f, _ := t.Factor(mode)
	return Result{
		Mode:          f.Mode,
		DistanceKm:    distanceKm,
		EmissionsKg:   kg,
		ZeroEmissions: kg == 0,
	}, nil
}

func normalize(mode string) string {
	return strings.ToLower(strings.TrimSpace(mode))
}

// ZeroEmissionsMessage accompanies a lookup that emits nothing.
const ZeroEmissionsMessage = "Excellent choice! Zero emissions."

// Summary formats the result for display, two decimals.
func (r Result) Summary() string {
	s := fmt.Sprintf("Estimated CO2 emission: %.2f kg", r.EmissionsKg)
	if r.ZeroEmissions {
		s += "\n" + ZeroEmissionsMessage
	}
	return s
}
