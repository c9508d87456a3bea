// Package peer is the top-level orchestrator binding the socket, the
// reliability layer, the battle state machine, the chat sink, and the
// spectator registry into one running process. Grounded on the
// teacher's server.Server: a struct owning the UDP conn plus one
// goroutine for the packet reader and one for the retransmit ticker,
// started from Run and stopped when Run's context is canceled — the same three-activity
// shape spec.md §5 calls for (network reader, user input reader,
// retransmit ticker), generalized from RakNet's many-player session
// table to this protocol's single opposing combatant plus a spectator
// registry.
package peer

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"net"
	"sync"

	"pokeprotocol/internal/battle"
	"pokeprotocol/internal/catalog"
	"pokeprotocol/internal/chat"
	"pokeprotocol/internal/config"
	"pokeprotocol/internal/events"
	"pokeprotocol/internal/metrics"
	"pokeprotocol/internal/reliability"
	"pokeprotocol/internal/spectator"
	"pokeprotocol/internal/wire"

	"github.com/sirupsen/logrus"
)

// Role is the local process's part in the battle, per spec.md §6's CLI
// surface (--host / --connect / --spectator).
type Role string

const (
	RoleHost      Role = "host"
	RoleJoiner    Role = "joiner"
	RoleSpectator Role = "spectator"
)

// ConnectionFailedError wraps the reliability layer's fatal
// ConnectionFailed(seq, kind) — spec.md §7: "the state machine treats
// this as fatal to the session."
type ConnectionFailedError struct {
	Seq  uint32
	Kind wire.Type
}

func (e *ConnectionFailedError) Error() string {
	return fmt.Sprintf("peer: connection failed, %s (seq %d) exhausted retries", e.Kind, e.Seq)
}

// Options configures a new Peer. ConnectAddr is required for RoleJoiner
// and RoleSpectator; PokemonName is required for RoleHost/RoleJoiner.
type Options struct {
	Name        string
	Role        Role
	ConnectAddr string
	PokemonName string
	Config      config.Config
	Catalog     *catalog.Catalog
	Metrics     *metrics.Metrics
	Log         *logrus.Entry
}

// Peer is one running PokeProtocol endpoint.
type Peer struct {
	opts Options
	log  *logrus.Entry

	conn        net.PacketConn
	reliability *reliability.Layer
	machine     *battle.Machine
	chatSink    *chat.Sink
	spectators  *spectator.Registry
	bus         *events.Bus

	mu            sync.Mutex
	role          Role
	peerAddr      net.Addr
	peerName      string
	selfCombatant *catalog.Combatant
	handshakeDone bool
	failed        error

	done     chan struct{}
	doneOnce sync.Once
}

// New constructs a Peer bound to a local UDP socket on addr (host:port,
// port 0 for an ephemeral port). The socket is opened but no traffic is
// sent or read until Run.
func New(addr string, opts Options) (*Peer, error) {
	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("peer: binding %s: %w", addr, err)
	}

	log := opts.Log
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	p := &Peer{
		opts:       opts,
		log:        log,
		conn:       conn,
		role:       opts.Role,
		bus:        events.NewBus(),
		spectators: spectator.New(log),
		done:       make(chan struct{}),
	}
	p.chatSink = chat.New(opts.Config.StickerDir, func(from, text string) {
		p.bus.Emit(events.Event{Type: events.TypeChatText, Data: events.DataChatText{From: from, Text: text}})
	}, log)
	p.reliability = reliability.New(conn, p.deliver, p.connectionFailed, opts.Metrics, log)
	return p, nil
}

// Bus exposes the event stream for the CLI front end to subscribe to.
func (p *Peer) Bus() *events.Bus { return p.bus }

// LocalAddr returns the bound socket's address.
func (p *Peer) LocalAddr() net.Addr { return p.conn.LocalAddr() }

// Run starts the network reader and retransmit ticker, and — for a
// joiner or spectator — sends the opening handshake/spectator request.
// It blocks until ctx is canceled, the battle reaches GAME_OVER, or the
// session fails fatally.
func (p *Peer) Run(ctx context.Context) error {
	go p.readLoop(ctx)
	go p.reliability.RetransmitLoop(ctx)

	switch p.role {
	case RoleJoiner:
		if err := p.sendHandshakeRequest(); err != nil {
			return err
		}
	case RoleSpectator:
		if err := p.sendSpectatorRequest(); err != nil {
			return err
		}
	case RoleHost:
		p.log.Info("waiting for a handshake request")
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-p.done:
		p.mu.Lock()
		err := p.failed
		p.mu.Unlock()
		return err
	}
}

// Close releases the socket. Safe to call after Run returns.
func (p *Peer) Close() error {
	return p.conn.Close()
}

func (p *Peer) readLoop(ctx context.Context) {
	buf := make([]byte, 2048)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		n, addr, err := p.conn.ReadFrom(buf)
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
				p.log.WithError(err).Warn("socket read error")
				return
			}
		}
		data := make([]byte, n)
		copy(data, buf[:n])
		p.reliability.HandleInbound(data, addr)
	}
}

func (p *Peer) resolveConnectAddr() (net.Addr, error) {
	addr, err := net.ResolveUDPAddr("udp", p.opts.ConnectAddr)
	if err != nil {
		return nil, fmt.Errorf("peer: resolving --connect %s: %w", p.opts.ConnectAddr, err)
	}
	return addr, nil
}

func (p *Peer) sendHandshakeRequest() error {
	addr, err := p.resolveConnectAddr()
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.peerAddr = addr
	p.mu.Unlock()

	_, err = p.reliability.Send(addr, wire.NewHandshakeRequest(0, p.opts.Name))
	return err
}

func (p *Peer) sendSpectatorRequest() error {
	addr, err := p.resolveConnectAddr()
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.peerAddr = addr
	p.mu.Unlock()

	_, err = p.reliability.Send(addr, wire.NewSpectatorRequest(0, p.opts.Name))
	return err
}

// deliver is the reliability layer's DeliverFunc: dispatch by message
// type, routing chat to the sink and everything else to the battle
// machine (or the handshake bootstrap, before one exists).
func (p *Peer) deliver(sender net.Addr, msg wire.Message) {
	if msg.Type == wire.TypeChatMessage {
		if err := p.chatSink.Handle(msg); err != nil {
			p.log.WithError(err).Warn("chat sink failed to process message")
		}
		return
	}

	p.mu.Lock()
	machine := p.machine
	handshakeDone := p.handshakeDone
	p.mu.Unlock()

	if !handshakeDone && p.role != RoleSpectator {
		p.handleBootstrap(sender, msg)
		return
	}

	if machine == nil {
		// Spectators get no Machine; they only observe, so simply fan
		// the traffic out to any of their own sub-spectators (none in
		// this protocol) and log it for display.
		p.log.WithField("type", msg.Type).Debug("spectator observed battle message")
		return
	}

	if err := machine.HandleMessage(msg); err != nil {
		p.log.WithField("type", msg.Type).Debug(err.Error())
	}

	p.fanOutToSpectators(msg)
}

func (p *Peer) fanOutToSpectators(msg wire.Message) {
	if p.spectators.Count() == 0 {
		return
	}
	payload := wire.Encode(msg)
	p.spectators.Each(func(o spectator.Observer) {
		p.conn.WriteTo(payload, o.Addr)
	})
}

// handleBootstrap processes the pre-battle messages: HANDSHAKE_REQUEST
// (host side), HANDSHAKE_RESPONSE (joiner side), and SPECTATOR_REQUEST
// (host/joiner side, at any time before or after battle start).
func (p *Peer) handleBootstrap(sender net.Addr, msg wire.Message) {
	switch msg.Type {
	case wire.TypeHandshakeRequest:
		if p.role != RoleHost {
			return
		}
		name, _ := msg.Get("name")
		seed := randomSeed()

		p.mu.Lock()
		p.peerAddr = sender
		p.peerName = name
		p.mu.Unlock()

		if _, err := p.reliability.Send(sender, wire.NewHandshakeResponse(0, p.opts.Name, seed)); err != nil {
			p.log.WithError(err).Warn("failed to send handshake response")
			return
		}
		p.startBattle(seed)

	case wire.TypeHandshakeResponse:
		if p.role != RoleJoiner {
			return
		}
		name, _ := msg.Get("name")
		seed, err := msg.Int("seed")
		if err != nil {
			p.log.WithError(err).Warn("handshake response had a bad seed")
			return
		}
		p.mu.Lock()
		p.peerName = name
		p.mu.Unlock()
		p.startBattle(uint32(seed))

	case wire.TypeSpectatorRequest:
		name, _ := msg.Get("name")
		p.spectators.Add(name, sender)
		p.bus.Emit(events.Event{Type: events.TypeSpectatorJoined, Data: name})
	}
}

// startBattle constructs the Machine once both sides of the handshake
// are known, and announces the local combatant's setup.
func (p *Peer) startBattle(seed uint32) {
	self, err := p.opts.Catalog.Get(p.opts.PokemonName)
	if err != nil {
		p.fail(fmt.Errorf("peer: resolving combatant %q: %w", p.opts.PokemonName, err))
		return
	}

	p.mu.Lock()
	p.selfCombatant = self
	peerAddr := p.peerAddr
	p.handshakeDone = true
	p.mu.Unlock()

	cfg := p.opts.Config
	hp := cfg.DefaultHP
	if hp <= 0 {
		hp = self.Stats.HP
	}

	machine := battle.New(battle.Config{
		Catalog:    p.opts.Catalog,
		Self:       self,
		SelfName:   p.opts.Name,
		OppName:    p.peerName,
		IsHost:     p.role == RoleHost,
		Seed:       seed,
		HP:         hp,
		SpAtkUses:  cfg.DefaultSpAtkUses,
		SpDefUses:  cfg.DefaultSpDefUses,
		Send: func(msg wire.Message) (uint32, error) {
			return p.reliability.Send(peerAddr, msg)
		},
		OnGameOver: func(winner, loser string) {
			p.bus.Emit(events.Event{Type: events.TypeGameOver, Data: events.DataGameOver{Winner: winner, Loser: loser}})
			p.doneOnce.Do(func() { close(p.done) })
		},
		OnTurnResolved: func(attacker, move string, dmg, myHP, oppHP int) {
			p.bus.Emit(events.Event{Type: events.TypeTurnResolved, Data: events.DataTurnResolved{
				Attacker: attacker, Move: move, Damage: dmg, MyHP: myHP, OppHP: oppHP,
			}})
		},
		Metrics: p.opts.Metrics,
		Log:     p.log,
	})
	machine.SetDefenseBoostPolicy(cfg.AutoDefendBoost)

	p.mu.Lock()
	p.machine = machine
	p.mu.Unlock()

	if err := machine.SendLocalSetup(); err != nil {
		p.fail(fmt.Errorf("peer: sending battle setup: %w", err))
		return
	}
	p.bus.Emit(events.Event{Type: events.TypeHandshakeComplete, Data: p.peerName})
}

// Attack submits the user's move choice to the battle machine.
func (p *Peer) Attack(move string, useBoost bool) error {
	p.mu.Lock()
	machine := p.machine
	p.mu.Unlock()
	if machine == nil {
		return fmt.Errorf("peer: battle has not started yet")
	}
	if err := machine.Attack(move, useBoost); err != nil {
		return err
	}
	p.bus.Emit(events.Event{Type: events.TypeAttackAnnounced, Data: move})
	return nil
}

// SendChatText submits a plain-text chat message to the battle peer.
func (p *Peer) SendChatText(text string) error {
	p.mu.Lock()
	peerAddr := p.peerAddr
	p.mu.Unlock()
	if peerAddr == nil {
		return fmt.Errorf("peer: no connected peer to chat with")
	}
	msg, err := wire.NewChatText(0, p.opts.Name, text)
	if err != nil {
		return err
	}
	_, err = p.reliability.Send(peerAddr, msg)
	return err
}

func (p *Peer) connectionFailed(seq uint32, kind wire.Type, dest net.Addr) {
	p.fail(&ConnectionFailedError{Seq: seq, Kind: kind})
}

func (p *Peer) fail(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failed != nil {
		return
	}
	p.failed = err
	p.bus.Emit(events.Event{Type: events.TypeConnectionFailed, Data: events.DataConnectionFailed{Reason: err.Error()}})
	p.doneOnce.Do(func() { close(p.done) })
}

// randomSeed draws a fresh 32-bit seed for a new battle's shared PRNG
// stream. This is session-setup randomness (which seed the host picks),
// not the deterministic in-battle damage stream itself (internal/damage
// derives that stream deterministically from whatever seed is chosen
// here) — crypto/rand is used because no library in the dependency set
// provides randomness and an unpredictable session seed is exactly what
// math/rand's documented, seedable-by-default determinism would
// undermine.
func randomSeed() uint32 {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		// crypto/rand failing is a deployment-level problem (no entropy
		// source); the seed only needs to be unpredictable, not secret,
		// so falling back to a fixed value keeps the host functional
		// instead of refusing to start a battle.
		return 0x5eed5eed
	}
	return binary.BigEndian.Uint32(b[:])
}
