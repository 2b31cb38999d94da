package emission

import "fmt"

const (
	TableIndia = "india"
	TableUrban = "urban"
)

// Indian transport emission factors, 2024-2025.
var indiaFactors = []Factor{
	{Mode: "SUV", KgPerKm: 0.213},
	{Mode: "Hatchback", KgPerKm: 0.111},
	{Mode: "Motorcycle", KgPerKm: 0.032},
	{Mode: "Electric Bus", KgPerKm: 0.012},
	{Mode: "CNG Bus", KgPerKm: 0.053},
	{Mode: "Metro", KgPerKm: 0.011},
	{Mode: "Walking", KgPerKm: 0.0},
	{Mode: "Cycling", KgPerKm: 0.0},
}

// Urban commute table with cost (INR/km) and average speed (km/h).
var urbanFactors = []Factor{
	{Mode: "Private Car", KgPerKm: 0.192, CostPerKm: num(8), SpeedKmh: num(30)},
	{Mode: "Auto-Rickshaw", KgPerKm: 0.085, CostPerKm: num(12), SpeedKmh: num(25)},
	{Mode: "Bus", KgPerKm: 0.089, CostPerKm: num(2), SpeedKmh: num(20)},
	{Mode: "Metro/Train", KgPerKm: 0.045, CostPerKm: num(2.5), SpeedKmh: num(40)},
	{Mode: "Bicycle", KgPerKm: 0.0, CostPerKm: num(0.5), SpeedKmh: num(15)},
	{Mode: "Electric Scooter", KgPerKm: 0.02, CostPerKm: num(3), SpeedKmh: num(25)},
	{Mode: "Walking", KgPerKm: 0.0, CostPerKm: num(0), SpeedKmh: num(5)},
}

// Builtin returns one of the bundled tables by name.
func Builtin(name string) (*Table, error) {
	switch name {
	case TableIndia, "":
		return NewTable(TableIndia, indiaFactors)
	case TableUrban:
		return NewTable(TableUrban, urbanFactors)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownTable, name)
	}
}

func num(v float64) *float64 { return &v }
