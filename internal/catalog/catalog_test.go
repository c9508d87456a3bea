package catalog

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func testCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := LoadCSV("../../testdata/combatants.csv", "../../testdata/moves.csv")
	require.NoError(t, err)
	return c
}

func TestLoadCSVResolvesCombatant(t *testing.T) {
	c := testCatalog(t)

	pikachu, err := c.Get("Pikachu")
	require.NoError(t, err)
	require.Equal(t, Electric, pikachu.Primary)
	require.Equal(t, Element(""), pikachu.Secondary)
	require.Equal(t, 50, pikachu.Stats.SpAttack)
	require.Contains(t, pikachu.MoveNames, "Thunderbolt")
}

func TestLoadCSVResolvesDualType(t *testing.T) {
	c := testCatalog(t)

	bulbasaur, err := c.Get("Bulbasaur")
	require.NoError(t, err)
	require.Equal(t, Grass, bulbasaur.Primary)
	require.Equal(t, Poison, bulbasaur.Secondary)
}

func TestGetMissReturnsSample(t *testing.T) {
	c := testCatalog(t)

	_, err := c.Get("Pikablu")
	require.Error(t, err)

	var notFound *NotFoundError
	require.True(t, errors.As(err, &notFound))
	require.NotEmpty(t, notFound.Sample)
	require.Contains(t, notFound.Error(), "Pikablu")
}

func TestLookupIsCaseSensitive(t *testing.T) {
	c := testCatalog(t)

	_, err := c.Get("pikachu")
	require.Error(t, err)
}

func TestMoveTableFixed(t *testing.T) {
	c := testCatalog(t)

	m, err := c.Move("Thunderbolt")
	require.NoError(t, err)
	require.Equal(t, Electric, m.Type)
	require.Equal(t, 90, m.Power)
	require.Equal(t, Special, m.Category)

	_, err = c.Move("Hyper Beam")
	require.Error(t, err)
}

func TestTypeChartDualTypeMultipliesBothLookups(t *testing.T) {
	// Electric vs Water/Ground dual type: 2.0 * 0.0 = 0.0
	require.Equal(t, 0.0, Multiplier(Electric, Water, Ground))
	// Fire vs Grass/Poison: 2.0 * 1.0 = 2.0
	require.Equal(t, 2.0, Multiplier(Fire, Grass, Poison))
	// Electric vs Electric/Flying: 0.5 * 2.0 = 1.0
	require.Equal(t, 1.0, Multiplier(Electric, Electric, Flying))
}

func TestTypeChartUnlistedPairIsNeutral(t *testing.T) {
	require.Equal(t, 1.0, Multiplier(Normal, Normal, ""))
}
