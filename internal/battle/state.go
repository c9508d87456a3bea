// Package battle implements spec.md §4.5's turn state machine: the
// four-step synchronized exchange (announce, acknowledge, independently
// compute, confirm), tie-breaks around simultaneous setup, and the
// attacker-authoritative discrepancy resolution policy. Grounded on the
// teacher's server.Player connection state machine (source/server/player.go),
// generalized from RakNet's connect/disconnect phases to this protocol's
// seven battle phases, with the same "ignore messages outside the
// expected state" discipline.
package battle

import (
	"sync"

	"pokeprotocol/internal/catalog"
	"pokeprotocol/internal/damage"
	"pokeprotocol/internal/metrics"
	"pokeprotocol/internal/wire"

	"github.com/sirupsen/logrus"
)

// Phase is one of the seven battle-lifecycle states spec.md §3 names.
type Phase string

const (
	PhaseSetup            Phase = "SETUP"
	PhaseAwaitAttack       Phase = "AWAIT_ATTACK"
	PhaseAwaitDefenseAck   Phase = "AWAIT_DEFENSE_ACK"
	PhaseAwaitCalcReports  Phase = "AWAIT_CALC_REPORTS"
	PhaseAwaitConfirm      Phase = "AWAIT_CONFIRM"
	PhaseResolving         Phase = "RESOLVING"
	PhaseGameOver          Phase = "GAME_OVER"
)

// Turn names whose move is expected next.
type Turn string

const (
	TurnMe  Turn = "ME"
	TurnOpp Turn = "OPP"
)

// SendFunc transmits a wire message to the battle peer through the
// reliability layer and returns the assigned sequence number. The state
// machine never touches a socket directly — it only knows how to ask
// for a message to be sent, matching spec.md §5's "must not hold its
// mutex while blocking on I/O" (Send itself never blocks on more than a
// UDP sendto).
type SendFunc func(wire.Message) (uint32, error)

// GameOverFunc is invoked once, when the battle concludes, with the
// winner and loser combatant names.
type GameOverFunc func(winner, loser string)

// TurnResolvedFunc is invoked once per completed turn, after damage has
// been applied and before the next attacker's turn begins.
type TurnResolvedFunc func(attacker, move string, damage, myHP, oppHP int)

// pendingAttack is the turn-scoped record both attacker and defender
// keep between ATTACK_ANNOUNCE and the turn's resolution.
type pendingAttack struct {
	move              catalog.Move
	attackerIsSelf    bool
	attackerUseBoost  bool
	defenderUseBoost  bool
	defenderAnnounced bool
	reportedDamage    int
	reportedHPAfter   int
	reportSent        bool
}

// Machine is one battle's full mutable state: HP, boost counters (own
// and mirrored opponent), phase, turn, and the in-flight pending attack.
// One Machine exists per active battle; spectators do not get one.
type Machine struct {
	mu sync.Mutex

	self, opp         *catalog.Combatant
	selfName, oppName string
	isHost            bool

	myHP, oppHP int

	// myBoosts tracks this peer's own remaining boost uses; oppBoosts
	// mirrors the opponent's, updated identically on both sides so a
	// boost decision can be independently but identically honored
	// (spec.md §4.5's boost-use tie-break).
	myBoosts, oppBoosts damage.BoostState

	phase Phase
	turn  Turn

	localSetupSent, peerSetupReceived bool

	pending *pendingAttack

	// autoDefendBoost is this peer's standing policy for whether to use
	// its special-defense boost when it is attacked — the protocol's
	// four-step exchange gives no round trip for a fresh prompt between
	// ATTACK_ANNOUNCE and DEFENSE_ANNOUNCE, so the decision is made in
	// advance rather than solicited synchronously.
	autoDefendBoost bool

	rng     *damage.PRNG
	cat     *catalog.Catalog
	send    SendFunc
	onOver  GameOverFunc
	onTurn  TurnResolvedFunc
	metrics *metrics.Metrics
	log     *logrus.Entry
}

// Config bundles Machine's construction-time dependencies.
type Config struct {
	Catalog  *catalog.Catalog
	Self     *catalog.Combatant
	SelfName string
	OppName  string
	IsHost   bool
	Seed     uint32
	HP       int
	SpAtkUses, SpDefUses int
	Send     SendFunc
	OnGameOver GameOverFunc
	OnTurnResolved TurnResolvedFunc
	Metrics  *metrics.Metrics
	Log      *logrus.Entry
}

// New constructs a Machine in PhaseSetup, ready to send and receive
// BATTLE_SETUP.
func New(cfg Config) *Machine {
	log := cfg.Log
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Machine{
		self:     cfg.Self,
		selfName: cfg.SelfName,
		oppName:  cfg.OppName,
		isHost:   cfg.IsHost,
		myHP:     cfg.HP,
		myBoosts: damage.BoostState{SpAtkUsesLeft: cfg.SpAtkUses, SpDefUsesLeft: cfg.SpDefUses},
		phase:    PhaseSetup,
		rng:      damage.NewPRNG(cfg.Seed),
		cat:      cfg.Catalog,
		send:     cfg.Send,
		onOver:   cfg.OnGameOver,
		onTurn:   cfg.OnTurnResolved,
		metrics:  cfg.Metrics,
		log:      log,
	}
}

// SetDefenseBoostPolicy sets whether this peer uses its special-defense
// boost whenever it still has uses left, for every incoming attack. The
// CLI front end may expose this as a toggle; spec.md leaves the decision
// mechanism to the implementation (§9 Open Question resolved this way —
// see the grounding ledger).
func (m *Machine) SetDefenseBoostPolicy(useBoost bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.autoDefendBoost = useBoost
}

// Phase reports the current battle phase.
func (m *Machine) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

// HP reports (my HP, opponent HP).
func (m *Machine) HP() (my, opp int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.myHP, m.oppHP
}

// SendLocalSetup announces this peer's combatant and marks local setup
// as sent, advancing to AWAIT_ATTACK once the peer's BATTLE_SETUP has
// also been seen (spec.md §4.5's simultaneous-setup tie-break).
func (m *Machine) SendLocalSetup() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	msg := wire.NewBattleSetup(0, m.self.Name, m.myHP, m.myBoosts.SpAtkUsesLeft, m.myBoosts.SpDefUsesLeft)
	if _, err := m.send(msg); err != nil {
		return err
	}
	m.localSetupSent = true
	m.tryLeaveSetup()
	return nil
}

// tryLeaveSetup must be called with mu held.
func (m *Machine) tryLeaveSetup() {
	if m.phase != PhaseSetup {
		return
	}
	if !m.localSetupSent || !m.peerSetupReceived {
		return
	}
	m.phase = PhaseAwaitAttack
	if m.isHost {
		m.turn = TurnMe
	} else {
		m.turn = TurnOpp
	}
	m.log.WithFields(logrus.Fields{"turn": m.turn}).Info("battle setup complete")
}

// Attack is the user action "attack(m, boost?)" from spec.md §4.5,
// valid only in AWAIT_ATTACK with turn == ME.
func (m *Machine) Attack(moveName string, useBoost bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase != PhaseAwaitAttack || m.turn != TurnMe {
		return &InvalidUserCommandError{Reason: "not your turn to attack"}
	}
	movePtr, err := m.cat.Move(moveName)
	if err != nil {
		return &InvalidUserCommandError{Reason: err.Error()}
	}
	move := *movePtr

	m.pending = &pendingAttack{move: move, attackerIsSelf: true, attackerUseBoost: useBoost}

	msg := wire.NewAttackAnnounce(0, move.Name, useBoost)
	if _, err := m.send(msg); err != nil {
		return err
	}
	m.phase = PhaseAwaitDefenseAck
	return nil
}

// HandleMessage dispatches a decoded, already-deduplicated battle
// message. Messages that don't match the expected phase are logged and
// dropped, never returned as a fatal error — spec.md §4.5: "messages
// arriving outside of their expected phase are still ACKed... but
// ignored by the state machine."
func (m *Machine) HandleMessage(msg wire.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch msg.Type {
	case wire.TypeBattleSetup:
		return m.handleBattleSetup(msg)
	case wire.TypeAttackAnnounce:
		return m.handleAttackAnnounce(msg)
	case wire.TypeDefenseAnnounce:
		return m.handleDefenseAnnounce(msg)
	case wire.TypeCalculationReport:
		return m.handleCalculationReport(msg)
	case wire.TypeCalculationConfirm:
		return m.handleCalculationConfirm(msg)
	case wire.TypeResolutionRequest:
		return m.handleResolutionRequest(msg)
	case wire.TypeGameOver:
		return m.handleGameOver(msg)
	default:
		return nil
	}
}

func (m *Machine) handleBattleSetup(msg wire.Message) error {
	if m.phase != PhaseSetup {
		return m.unexpected(msg)
	}
	pokemon, _ := msg.Get("pokemon")
	opp, err := m.cat.Get(pokemon)
	if err != nil {
		return err
	}
	hp, err := msg.Int("hp")
	if err != nil {
		return &wire.DecodeError{Reason: "BATTLE_SETUP bad hp"}
	}
	spAtk, _ := msg.Int("sp_atk_uses")
	spDef, _ := msg.Int("sp_def_uses")

	m.opp = opp
	m.oppHP = hp
	m.oppBoosts = damage.BoostState{SpAtkUsesLeft: spAtk, SpDefUsesLeft: spDef}
	m.peerSetupReceived = true
	m.tryLeaveSetup()
	return nil
}

func (m *Machine) handleAttackAnnounce(msg wire.Message) error {
	if m.phase != PhaseAwaitAttack || m.turn != TurnOpp {
		return m.unexpected(msg)
	}
	moveName, _ := msg.Get("move")
	movePtr, err := m.cat.Move(moveName)
	if err != nil {
		return err
	}
	move := *movePtr
	useBoost := msg.GetBool("use_sp_atk_boost")

	m.pending = &pendingAttack{move: move, attackerIsSelf: false, attackerUseBoost: useBoost}

	reply := wire.NewDefenseAnnounce(0, m.autoDefendBoost)
	if _, err := m.send(reply); err != nil {
		return err
	}
	m.pending.defenderUseBoost = m.autoDefendBoost
	m.pending.defenderAnnounced = true
	m.phase = PhaseAwaitCalcReports
	return nil
}

func (m *Machine) handleDefenseAnnounce(msg wire.Message) error {
	if m.phase != PhaseAwaitDefenseAck || m.pending == nil {
		return m.unexpected(msg)
	}
	defBoost := msg.GetBool("use_sp_def_boost")

	result := m.computeDamage(true, m.pending.move, m.pending.attackerUseBoost, defBoost)
	hpAfter := clampHP(m.oppHP - result.Damage)

	m.pending.reportedDamage = result.Damage
	m.pending.reportedHPAfter = hpAfter
	m.pending.reportSent = true

	if _, err := m.send(wire.NewCalculationReport(0, result.Damage, hpAfter)); err != nil {
		return err
	}
	m.phase = PhaseAwaitConfirm
	return nil
}

func (m *Machine) handleCalculationReport(msg wire.Message) error {
	damageVal, err1 := msg.Int("damage")
	hpAfter, err2 := msg.Int("defender_hp_after")
	if err1 != nil || err2 != nil {
		return &wire.DecodeError{Reason: "CALCULATION_REPORT bad fields"}
	}

	switch m.phase {
	case PhaseAwaitCalcReports:
		// Defender side: first report seen, compute locally and compare.
		if m.pending == nil {
			return m.unexpected(msg)
		}
		result := m.computeDamage(false, m.pending.move, m.pending.attackerUseBoost, m.pending.defenderUseBoost)
		myHPAfter := clampHP(m.myHP - result.Damage)

		m.pending.reportedDamage = result.Damage
		m.pending.reportedHPAfter = myHPAfter

		if result.Damage == damageVal && myHPAfter == hpAfter {
			if _, err := m.send(wire.NewCalculationReport(0, result.Damage, myHPAfter)); err != nil {
				return err
			}
			m.pending.reportSent = true
			m.phase = PhaseAwaitConfirm
			return nil
		}

		m.log.WithFields(logrus.Fields{
			"attacker_damage": damageVal, "local_damage": result.Damage,
		}).Warn("damage discrepancy, requesting resolution")
		if _, err := m.send(wire.NewResolutionRequest(0, result.Damage, myHPAfter)); err != nil {
			return err
		}
		m.phase = PhaseResolving
		return nil

	case PhaseAwaitConfirm:
		// Attacker side: defender's matching (or resolved) report arrived.
		if m.pending == nil || !m.pending.attackerIsSelf {
			return m.unexpected(msg)
		}
		if _, err := m.send(wire.NewCalculationConfirm(0)); err != nil {
			return err
		}
		return m.applyPendingDamage()

	case PhaseResolving:
		// Defender side: the attacker's re-sent report after a
		// RESOLUTION_REQUEST, accepted unconditionally per the
		// attacker-authoritative policy (spec.md §4.5/§9).
		if m.pending == nil || m.pending.attackerIsSelf {
			return m.unexpected(msg)
		}
		m.pending.reportedDamage = damageVal
		m.pending.reportedHPAfter = hpAfter
		if _, err := m.send(wire.NewCalculationConfirm(0)); err != nil {
			return err
		}
		return m.applyPendingDamage()

	default:
		return m.unexpected(msg)
	}
}

func (m *Machine) handleCalculationConfirm(msg wire.Message) error {
	if m.phase != PhaseAwaitConfirm || m.pending == nil {
		return m.unexpected(msg)
	}
	return m.applyPendingDamage()
}

// handleResolutionRequest implements the attacker-authoritative policy:
// the attacker, on receiving a RESOLUTION_REQUEST, re-sends its own
// CALCULATION_REPORT unchanged and both sides converge on it.
func (m *Machine) handleResolutionRequest(msg wire.Message) error {
	if m.pending == nil || !m.pending.attackerIsSelf {
		return m.unexpected(msg)
	}
	if _, err := m.send(wire.NewCalculationReport(0, m.pending.reportedDamage, m.pending.reportedHPAfter)); err != nil {
		return err
	}
	m.phase = PhaseAwaitConfirm
	return nil
}

func (m *Machine) handleGameOver(msg wire.Message) error {
	winner, _ := msg.Get("winner")
	loser, _ := msg.Get("loser")
	m.phase = PhaseGameOver
	if m.onOver != nil {
		m.onOver(winner, loser)
	}
	return nil
}

// applyPendingDamage is AWAIT_CONFIRM's "apply damage; swap turn; check
// win" step, run by each side once its turn's report is final: the
// attacker on the defender's CALCULATION_REPORT, or on its
// CALCULATION_CONFIRM after a resolution; the defender on
// CALCULATION_CONFIRM, or in RESOLVING on the attacker's re-sent
// CALCULATION_REPORT.
func (m *Machine) applyPendingDamage() error {
	p := m.pending
	if p == nil {
		return nil
	}

	if p.attackerIsSelf {
		m.oppHP = clampHP(p.reportedHPAfter)
	} else {
		m.myHP = clampHP(p.reportedHPAfter)
	}

	defenderHP := m.oppHP
	if !p.attackerIsSelf {
		defenderHP = m.myHP
	}

	if m.onTurn != nil {
		attacker := m.oppName
		if p.attackerIsSelf {
			attacker = m.selfName
		}
		m.onTurn(attacker, p.move.Name, p.reportedDamage, m.myHP, m.oppHP)
	}

	if defenderHP <= 0 {
		m.phase = PhaseGameOver
		if p.attackerIsSelf {
			if _, err := m.send(wire.NewGameOver(0, m.self.Name, m.opp.Name)); err != nil {
				return err
			}
			if m.onOver != nil {
				m.onOver(m.self.Name, m.opp.Name)
			}
		}
		m.pending = nil
		return nil
	}

	if p.attackerIsSelf {
		m.turn = TurnOpp
	} else {
		m.turn = TurnMe
	}
	m.phase = PhaseAwaitAttack
	m.pending = nil
	return nil
}

// computeDamage runs the shared damage formula for one turn, reading
// and writing the correct owner's boost counters regardless of which
// side is attacking this turn — see Machine.myBoosts/oppBoosts.
func (m *Machine) computeDamage(attackerIsSelf bool, move catalog.Move, useAtkBoost, useDefBoost bool) damage.Result {
	var atkCombatant, defCombatant *catalog.Combatant
	var atkUsesLeft, defUsesLeft *int

	if attackerIsSelf {
		atkCombatant, defCombatant = m.self, m.opp
		atkUsesLeft, defUsesLeft = &m.myBoosts.SpAtkUsesLeft, &m.oppBoosts.SpDefUsesLeft
	} else {
		atkCombatant, defCombatant = m.opp, m.self
		atkUsesLeft, defUsesLeft = &m.oppBoosts.SpAtkUsesLeft, &m.myBoosts.SpDefUsesLeft
	}

	combined := damage.BoostState{SpAtkUsesLeft: *atkUsesLeft, SpDefUsesLeft: *defUsesLeft}
	result := damage.Apply(move, atkCombatant, defCombatant, &combined, useAtkBoost, useDefBoost, m.rng)
	*atkUsesLeft = combined.SpAtkUsesLeft
	*defUsesLeft = combined.SpDefUsesLeft
	return result
}

func (m *Machine) unexpected(msg wire.Message) error {
	err := &UnexpectedPhaseMessage{Phase: m.phase, Got: string(msg.Type)}
	m.log.WithFields(logrus.Fields{"phase": m.phase, "type": msg.Type}).Debug("ignoring message outside expected phase")
	return err
}

func clampHP(hp int) int {
	if hp < 0 {
		return 0
	}
	return hp
}
