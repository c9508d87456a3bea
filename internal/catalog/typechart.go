package catalog

// typeChart holds attacker-type -> defender-type multiplier overrides.
// Any pair absent from the inner map is neutral (1.0). Values are the
// ones a reader familiar with the mainline games will recognize, except
// that Electric is super-effective (2.0) against Fire here; the core
// only needs {0, 0.5, 1.0, 2.0} per spec.md §4.1.
var typeChart = map[Element]map[Element]float64{
	Normal: {Rock: 0.5, Ghost: 0, Steel: 0.5},
	Fire: {
		Fire: 0.5, Water: 0.5, Grass: 2, Ice: 2, Bug: 2, Rock: 0.5,
		Dragon: 0.5, Steel: 2,
	},
	Water: {
		Fire: 2, Water: 0.5, Grass: 0.5, Ground: 2, Rock: 2, Dragon: 0.5,
	},
	Electric: {
		Fire: 2, Water: 2, Electric: 0.5, Grass: 0.5, Ground: 0, Flying: 2,
		Dragon: 0.5,
	},
	Grass: {
		Fire: 0.5, Water: 2, Grass: 0.5, Poison: 0.5, Ground: 2,
		Flying: 0.5, Bug: 0.5, Rock: 2, Dragon: 0.5, Steel: 0.5,
	},
	Ice: {
		Fire: 0.5, Water: 0.5, Grass: 2, Ice: 0.5, Ground: 2, Flying: 2,
		Dragon: 2, Steel: 0.5,
	},
	Fighting: {
		Normal: 2, Ice: 2, Poison: 0.5, Flying: 0.5, Psychic: 0.5,
		Bug: 0.5, Rock: 2, Ghost: 0, Dark: 2, Steel: 2, Fairy: 0.5,
	},
	Poison: {
		Grass: 2, Poison: 0.5, Ground: 0.5, Rock: 0.5, Ghost: 0.5,
		Steel: 0, Fairy: 2,
	},
	Ground: {
		Fire: 2, Electric: 2, Grass: 0.5, Poison: 2, Flying: 0, Bug: 0.5,
		Rock: 2, Steel: 2,
	},
	Flying: {
		Electric: 0.5, Grass: 2, Fighting: 2, Bug: 2, Rock: 0.5, Steel: 0.5,
	},
	Psychic: {
		Fighting: 2, Poison: 2, Psychic: 0.5, Dark: 0, Steel: 0.5,
	},
	Bug: {
		Fire: 0.5, Grass: 2, Fighting: 0.5, Poison: 0.5, Flying: 0.5,
		Psychic: 2, Ghost: 0.5, Dark: 2, Steel: 0.5, Fairy: 0.5,
	},
	Rock: {
		Fire: 2, Ice: 2, Fighting: 0.5, Ground: 0.5, Flying: 2, Bug: 2,
		Steel: 0.5,
	},
	Ghost: {
		Normal: 0, Psychic: 2, Ghost: 2, Dark: 0.5,
	},
	Dragon: {
		Dragon: 2, Steel: 0.5, Fairy: 0,
	},
	Dark: {
		Fighting: 0.5, Psychic: 2, Ghost: 2, Dark: 0.5, Fairy: 0.5,
	},
	Steel: {
		Fire: 0.5, Water: 0.5, Electric: 0.5, Ice: 2, Rock: 2, Steel: 0.5,
		Fairy: 2,
	},
	Fairy: {
		Fire: 0.5, Fighting: 2, Poison: 0.5, Dragon: 2, Dark: 2, Steel: 0.5,
	},
}

// Multiplier returns the combined type effectiveness of an attack of type
// attack against a defender with the given primary/secondary types. For a
// dual-typed defender the two per-type multipliers are multiplied
// together, per spec.md §4.1.
func Multiplier(attack, defPrimary, defSecondary Element) float64 {
	m := singleMultiplier(attack, defPrimary)
	if defSecondary != "" {
		m *= singleMultiplier(attack, defSecondary)
	}
	return m
}

func singleMultiplier(attack, defender Element) float64 {
	row, ok := typeChart[attack]
	if !ok {
		return 1.0
	}
	if mult, ok := row[defender]; ok {
		return mult
	}
	return 1.0
}
