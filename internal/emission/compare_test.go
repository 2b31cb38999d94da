package emission

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompare(t *testing.T) {
	urban, err := Builtin(TableUrban)
	require.NoError(t, err)

	t.Run("ShouldPutZeroEmissionModesFirstForEco", func(t *testing.T) {
		routes, err := urban.Compare(8, PriorityEco)
		require.NoError(t, err)
		require.Len(t, routes, 7)
		assert.Equal(t, "Bicycle", routes[0].Mode)
		assert.Equal(t, "Walking", routes[1].Mode)
		assert.Equal(t, "Private Car", routes[len(routes)-1].Mode)
	})
	t.Run("ShouldSortByCost", func(t *testing.T) {
		routes, err := urban.Compare(8, PriorityCost)
		require.NoError(t, err)
		assert.Equal(t, "Walking", routes[0].Mode)
		assert.Equal(t, "Auto-Rickshaw", routes[len(routes)-1].Mode)
	})
	t.Run("ShouldSortByTravelTime", func(t *testing.T) {
		routes, err := urban.Compare(8, PriorityFast)
		require.NoError(t, err)
		assert.Equal(t, "Metro/Train", routes[0].Mode)
		require.NotNil(t, routes[0].Minutes)
		assert.Equal(t, 12.0, *routes[0].Minutes)
	})
	t.Run("ShouldRoundMetrics", func(t *testing.T) {
		m, err := urban.Metrics("private car", 8)
		require.NoError(t, err)
		assert.Equal(t, 1.536, m.EmissionsKg)
		require.NotNil(t, m.Cost)
		assert.Equal(t, 64.0, *m.Cost)
		assert.Equal(t, 80.8, m.SustainabilityScore)
	})
	t.Run("ShouldLeaveCostEmptyWhenTableHasNone", func(t *testing.T) {
		routes, err := india(t).Compare(10, PriorityCost)
		require.NoError(t, err)
		for _, r := range routes {
			assert.Nil(t, r.Cost)
			assert.Nil(t, r.Minutes)
		}
		// without cost data the table order is kept
		assert.Equal(t, "SUV", routes[0].Mode)
	})
}

func TestImpact(t *testing.T) {
	urban, err := Builtin(TableUrban)
	require.NoError(t, err)
	routes, err := urban.Compare(8, PriorityEco)
	require.NoError(t, err)

	s := Impact(routes[0], routes[len(routes)-1])
	assert.Equal(t, 1.536, s.CO2SavedKg)
	assert.Equal(t, 76, s.TreesEquivalent)
	assert.InDelta(t, 560.64, s.YearlyCO2SavedKg, 1e-9)
	require.NotNil(t, s.CostSaved)
	assert.Equal(t, 60.0, *s.CostSaved)
}

func TestParsePriority(t *testing.T) {
	for in, want := range map[string]Priority{
		"Eco-Friendly": PriorityEco,
		"":             PriorityEco,
		"Low Cost":     PriorityCost,
		"FAST":         PriorityFast,
	} {
		got, err := ParsePriority(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParsePriority("scenic")
	assert.Error(t, err)
}

func TestLoadTableYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "city.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: city
factors:
  - mode: E-Rickshaw
    kg_per_km: 0.015
    cost_per_km: 6
  - mode: Walking
    kg_per_km: 0
`), 0o644))

	table, err := LoadTable(path)
	require.NoError(t, err)
	assert.Equal(t, "city", table.Name())
	res, err := table.Calculate("walking", 3)
	require.NoError(t, err)
	assert.True(t, res.ZeroEmissions)
}
