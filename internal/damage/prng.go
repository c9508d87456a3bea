// Package damage implements spec.md §4.4's deterministic damage formula
// and the shared-seed PRNG it draws rolls from. Grounded on the
// teacher's RakNet GUID/session-ID generator (source/protocol/raknet.go),
// which also needs a small seeded generator with fully-specified
// constants rather than package math/rand's unspecified algorithm —
// the same cross-implementation determinism concern spec.md §4.4 raises.
package damage

// PRNG is a SplitMix64-style generator: a 64-bit state advanced by a
// fixed additive constant each step, then run through a bit-mixing
// finalizer. The algorithm and constants below are the ones published
// with SplitMix64 and are fully specified, so two independent
// implementations seeded identically produce an identical stream —
// spec.md §4.4's determinism requirement.
type PRNG struct {
	state uint64
}

// goldenGamma is SplitMix64's fixed increment, the odd constant derived
// from the golden ratio that keeps the state's low bits well-mixed
// across every step.
const goldenGamma = 0x9E3779B97F4A7C15

// NewPRNG seeds the generator from the 32-bit shared seed negotiated in
// HANDSHAKE_RESPONSE (spec.md §3). The seed is widened to 64 bits; both
// peers do this identically since the widening is just zero-extension.
func NewPRNG(seed uint32) *PRNG {
	return &PRNG{state: uint64(seed)}
}

// nextUint64 advances the state and returns the next 64-bit output.
func (p *PRNG) nextUint64() uint64 {
	p.state += goldenGamma
	z := p.state
	z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
	z = (z ^ (z >> 27)) * 0x94D049BB133111EB
	z = z ^ (z >> 31)
	return z
}

// NextRoll draws the next value in [0.85, 1.0), the damage roll spec.md
// §4.4 calls `next_double_in_[0.85, 1.0]`. Advances the stream exactly
// once, matching the "advanced exactly once per computed attack"
// requirement.
func (p *PRNG) NextRoll() float64 {
	// Top 53 bits give a uniform double in [0, 1) with full mantissa
	// precision, the standard SplitMix64-to-float64 technique.
	frac := float64(p.nextUint64()>>11) / (1 << 53)
	return 0.85 + frac*0.15
}
