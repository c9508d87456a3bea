package damage

import (
	"math"

	"pokeprotocol/internal/catalog"
)

// BoostState is the small piece of mutable combatant state the damage
// engine reads and updates: remaining special-attack/special-defense
// boost uses. The battle state machine owns the actual counters; this
// struct is how it hands them to Apply and gets the post-turn values
// back, the same in/out-parameter shape the teacher's physics helpers in
// core/systems use rather than a package-level global.
type BoostState struct {
	SpAtkUsesLeft int
	SpDefUsesLeft int
}

// Result is everything one damage computation produces: the damage
// dealt, the roll consumed (for logging/diagnostics only — never
// re-derivable by a peer, since the PRNG stream is consumed, not
// replayed), and whether each side's boost was actually honored.
type Result struct {
	Damage          int
	Roll            float64
	AttackerBoosted bool
	DefenderBoosted bool
}

// Apply computes spec.md §4.4's damage formula for one attack, mutating
// boosts in place to reflect any boost uses consumed. The caller (the
// battle state machine) is responsible for calling this exactly once per
// computed attack per peer, and for doing so in the same logical turn
// order as its counterpart, so both sides draw the same PRNG value.
func Apply(
	move catalog.Move,
	attacker, defender *catalog.Combatant,
	boosts *BoostState,
	useSpAtkBoost, useSpDefBoost bool,
	rng *PRNG,
) Result {
	atkStat, defStat := baseStats(move, attacker, defender)

	attackerBoosted := useSpAtkBoost && boosts.SpAtkUsesLeft > 0
	if attackerBoosted {
		atkStat = atkStat * 3 / 2
		boosts.SpAtkUsesLeft--
	}

	defenderBoosted := useSpDefBoost && boosts.SpDefUsesLeft > 0
	if defenderBoosted {
		defStat = defStat * 3 / 2
		boosts.SpDefUsesLeft--
	}

	base := ((2*50.0/5+2)*float64(move.Power)*float64(atkStat)/float64(defStat))/50 + 2

	stab := 1.0
	if attacker.HasType(move.Type) {
		stab = 1.5
	}

	typeMult := catalog.Multiplier(move.Type, defender.Primary, defender.Secondary)

	roll := rng.NextRoll()

	dmg := int(math.Floor(base * stab * typeMult * roll))
	if typeMult == 0 {
		dmg = 0
	} else if dmg < 1 {
		dmg = 1
	}

	return Result{
		Damage:          dmg,
		Roll:            roll,
		AttackerBoosted: attackerBoosted,
		DefenderBoosted: defenderBoosted,
	}
}

// baseStats selects attack/defense (physical) or sp. attack/sp. defense
// (special) per the move's category, before any boost is applied.
func baseStats(move catalog.Move, attacker, defender *catalog.Combatant) (atk, def int) {
	if move.Category == catalog.Special {
		return attacker.Stats.SpAttack, defender.Stats.SpDefense
	}
	return attacker.Stats.Attack, defender.Stats.Defense
}
