// Command pokepeer is the PokeProtocol command-line front end: it wires
// together the on-disk catalog, the optional TOML config file, the
// logger, the optional Prometheus listener, and one internal/peer.Peer,
// then reads battle commands from stdin until the session ends.
// Grounded on the teacher's core/main.go (Banner/Section startup
// logging, sigChan/errChan graceful shutdown), rebuilt on cobra the way
// moby-moby's cmd/docker builds its CLI surface on a root *cobra.Command.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"pokeprotocol/internal/catalog"
	"pokeprotocol/internal/config"
	"pokeprotocol/internal/events"
	"pokeprotocol/internal/metrics"
	"pokeprotocol/internal/peer"
	"pokeprotocol/pkg/logger"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const version = "1.0.0"

// flags mirrors spec.md §6's CLI surface.
type flags struct {
	name       string
	host       string
	port       int
	connect    string
	pokemon    string
	spectator  bool
	verbose    bool
	configPath string
}

func main() {
	f := &flags{}

	root := &cobra.Command{
		Use:   "pokepeer",
		Short: "A peer-to-peer PokeProtocol battle client",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(f)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&f.name, "name", "", "your display name (required)")
	pf.StringVar(&f.host, "host", "0.0.0.0", "local address to bind")
	pf.IntVar(&f.port, "port", 0, "local port to bind (0 for an ephemeral port)")
	pf.StringVar(&f.connect, "connect", "", "address of the peer to join or spectate (host:port)")
	pf.StringVar(&f.pokemon, "pokemon", "", "catalog name of the combatant to bring into battle")
	pf.BoolVar(&f.spectator, "spectator", false, "join as a read-only spectator instead of a combatant")
	pf.BoolVar(&f.verbose, "verbose", false, "enable debug-level logging")
	pf.StringVar(&f.configPath, "config", "", "path to a TOML config file")

	if err := root.Execute(); err != nil {
		logger.Fatal("%v", err)
	}
}

func run(f *flags) error {
	logger.Banner("PokeProtocol Peer", version)
	logger.SetVerbose(f.verbose)

	if f.name == "" {
		return fmt.Errorf("pokepeer: --name is required")
	}
	if !f.spectator && f.pokemon == "" {
		return fmt.Errorf("pokepeer: --pokemon is required unless --spectator is set")
	}

	cfg, err := config.Load(f.configPath)
	if err != nil {
		return err
	}
	logger.Success("Configuration loaded (combatants=%s moves=%s)", cfg.CombatantsPath, cfg.MovesPath)

	cat, err := catalog.LoadCSV(cfg.CombatantsPath, cfg.MovesPath)
	if err != nil {
		return fmt.Errorf("pokepeer: loading catalog: %w", err)
	}
	logger.Info("Catalog loaded: %d combatants", len(cat.Names()))

	var m *metrics.Metrics
	if cfg.MetricsEnabled {
		m = metrics.New()
	}

	role := peer.RoleHost
	switch {
	case f.spectator:
		role = peer.RoleSpectator
	case f.connect != "":
		role = peer.RoleJoiner
	}
	if (role == peer.RoleJoiner || role == peer.RoleSpectator) && f.connect == "" {
		return fmt.Errorf("pokepeer: --connect is required for --spectator or joining a host")
	}

	bindAddr := fmt.Sprintf("%s:%d", f.host, f.port)
	p, err := peer.New(bindAddr, peer.Options{
		Name:        f.name,
		Role:        role,
		ConnectAddr: f.connect,
		PokemonName: f.pokemon,
		Config:      cfg,
		Catalog:     cat,
		Metrics:     m,
		Log:         logger.Default().WithFields(logrus.Fields{"peer": f.name}),
	})
	if err != nil {
		return err
	}
	defer p.Close()

	logger.Info("Bound to %s as %s (role=%s)", p.LocalAddr(), f.name, role)
	subscribeToBus(p)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() { errChan <- p.Run(ctx) }()

	if m != nil {
		go func() {
			if err := m.Serve(ctx, cfg.MetricsAddr); err != nil {
				logger.Warn("metrics server stopped: %v", err)
			}
		}()
		logger.Info("Metrics exposed on %s/metrics", cfg.MetricsAddr)
	}

	if role != peer.RoleSpectator {
		go readCommands(ctx, cancel, p)
	}

	logger.Section("Battle")

	select {
	case err := <-errChan:
		if err != nil && err != context.Canceled {
			logger.Error("Session ended with error: %v", err)
			return err
		}
		logger.Success("Session ended")
		return nil
	case sig := <-sigChan:
		logger.Warn("Received signal: %v", sig)
		logger.Info("Shutting down gracefully...")
		cancel()
		<-errChan
		logger.Success("Shut down cleanly")
		return nil
	}
}

func subscribeToBus(p *peer.Peer) {
	bus := p.Bus()
	bus.On(events.TypeHandshakeComplete, func(ev events.Event) {
		logger.Success("Battle started against %v", ev.Data)
	})
	bus.On(events.TypeSpectatorJoined, func(ev events.Event) {
		logger.Info("Spectator joined: %v", ev.Data)
	})
	bus.On(events.TypeAttackAnnounced, func(ev events.Event) {
		logger.Info("You used %v", ev.Data)
	})
	bus.On(events.TypeTurnResolved, func(ev events.Event) {
		d := ev.Data.(events.DataTurnResolved)
		logger.Info("%s's %s hit for %d damage (you: %d hp, opponent: %d hp)", d.Attacker, d.Move, d.Damage, d.MyHP, d.OppHP)
	})
	bus.On(events.TypeChatText, func(ev events.Event) {
		d := ev.Data.(events.DataChatText)
		fmt.Printf("[%s] %s\n", d.From, d.Text)
	})
	bus.On(events.TypeGameOver, func(ev events.Event) {
		d := ev.Data.(events.DataGameOver)
		logger.Success("Game over: %s beat %s", d.Winner, d.Loser)
	})
	bus.On(events.TypeConnectionFailed, func(ev events.Event) {
		d := ev.Data.(events.DataConnectionFailed)
		logger.Error("Connection failed: %s", d.Reason)
	})
}

// readCommands parses lines of stdin into battle/chat actions:
//
//	attack <move> [boost]
//	say <text>
//	quit
func readCommands(ctx context.Context, cancel context.CancelFunc, p *peer.Peer) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return
		default:
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		switch strings.ToLower(fields[0]) {
		case "attack":
			if len(fields) < 2 {
				logger.Warn("usage: attack <move> [boost]")
				continue
			}
			moveFields := fields[1:]
			useBoost := false
			if last := moveFields[len(moveFields)-1]; strings.EqualFold(last, "boost") {
				useBoost = true
				moveFields = moveFields[:len(moveFields)-1]
			}
			move := strings.Join(moveFields, " ")
			if err := p.Attack(move, useBoost); err != nil {
				logger.Warn("attack failed: %v", err)
			}
		case "say":
			text := strings.TrimSpace(strings.TrimPrefix(line, fields[0]))
			if err := p.SendChatText(text); err != nil {
				logger.Warn("chat failed: %v", err)
			}
		case "quit", "exit":
			cancel()
			return
		default:
			logger.Warn("unrecognized command %q", line)
		}
	}
}
