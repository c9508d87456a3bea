package peer

import (
	"context"
	"testing"
	"time"

	"pokeprotocol/internal/catalog"
	"pokeprotocol/internal/config"

	"github.com/stretchr/testify/require"
)

func testCatalog() *catalog.Catalog {
	c := catalog.New()
	c.AddCombatant(&catalog.Combatant{
		Name: "Pikachu", Primary: catalog.Electric,
		Stats:     catalog.Stats{HP: 35, Attack: 55, Defense: 40, SpAttack: 50, SpDefense: 50, Speed: 90},
		MoveNames: []string{"Thunderbolt"},
	})
	c.AddCombatant(&catalog.Combatant{
		Name: "Charmander", Primary: catalog.Fire,
		Stats:     catalog.Stats{HP: 39, Attack: 52, Defense: 43, SpAttack: 60, SpDefense: 50, Speed: 65},
		MoveNames: []string{"Ember"},
	})
	c.AddMove(&catalog.Move{Name: "Thunderbolt", Type: catalog.Electric, Power: 90, Category: catalog.Special})
	c.AddMove(&catalog.Move{Name: "Ember", Type: catalog.Fire, Power: 40, Category: catalog.Special})
	return c
}

// TestHostAndJoinerReachBattleReady exercises the full bootstrap: two
// real UDP sockets, handshake, and both machines reaching AWAIT_ATTACK.
func TestHostAndJoinerReachBattleReady(t *testing.T) {
	cat := testCatalog()
	cfg := config.Default()
	cfg.StickerDir = t.TempDir()

	host, err := New("127.0.0.1:0", Options{
		Name: "Alice", Role: RoleHost, PokemonName: "Pikachu", Config: cfg, Catalog: cat,
	})
	require.NoError(t, err)
	t.Cleanup(func() { host.Close() })

	joiner, err := New("127.0.0.1:0", Options{
		Name: "Bob", Role: RoleJoiner, PokemonName: "Charmander", Config: cfg, Catalog: cat,
		ConnectAddr: host.LocalAddr().String(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { joiner.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	go host.Run(ctx)
	go joiner.Run(ctx)

	require.Eventually(t, func() bool {
		host.mu.Lock()
		defer host.mu.Unlock()
		return host.machine != nil
	}, 2*time.Second, 10*time.Millisecond, "host never started a battle")

	require.Eventually(t, func() bool {
		joiner.mu.Lock()
		defer joiner.mu.Unlock()
		return joiner.machine != nil
	}, 2*time.Second, 10*time.Millisecond, "joiner never started a battle")

	require.Eventually(t, func() bool {
		return host.machine.Phase() == "AWAIT_ATTACK"
	}, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		return joiner.machine.Phase() == "AWAIT_ATTACK"
	}, 2*time.Second, 10*time.Millisecond)
}

// TestSpectatorIsRegistered checks that a SPECTATOR_REQUEST registers the
// observer in the host's spectator registry, without the spectator ever
// getting a Machine of its own.
func TestSpectatorIsRegistered(t *testing.T) {
	cat := testCatalog()
	cfg := config.Default()
	cfg.StickerDir = t.TempDir()

	host, err := New("127.0.0.1:0", Options{
		Name: "Alice", Role: RoleHost, PokemonName: "Pikachu", Config: cfg, Catalog: cat,
	})
	require.NoError(t, err)
	t.Cleanup(func() { host.Close() })

	joiner, err := New("127.0.0.1:0", Options{
		Name: "Bob", Role: RoleJoiner, PokemonName: "Charmander", Config: cfg, Catalog: cat,
		ConnectAddr: host.LocalAddr().String(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { joiner.Close() })

	watcher, err := New("127.0.0.1:0", Options{
		Name: "Eve", Role: RoleSpectator, Config: cfg, Catalog: cat,
		ConnectAddr: host.LocalAddr().String(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { watcher.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	go host.Run(ctx)
	go joiner.Run(ctx)
	go watcher.Run(ctx)

	require.Eventually(t, func() bool {
		return host.spectators.Count() == 1
	}, 2*time.Second, 10*time.Millisecond, "spectator never registered")

	watcher.mu.Lock()
	defer watcher.mu.Unlock()
	require.Nil(t, watcher.machine, "spectator must not get a battle Machine")
}
