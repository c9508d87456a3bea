// Package config loads the peer's on-disk settings file with
// github.com/BurntSushi/toml, the configuration library xendarboh-
// katzenpost's go.mod carries for exactly this purpose. CLI flags set
// via cobra/pflag in cmd/pokepeer take precedence over a loaded file,
// which takes precedence over the defaults below.
package config

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is every tunable a peer process needs beyond the handshake-time
// values (name, role, pokemon) that only make sense as CLI flags.
type Config struct {
	CombatantsPath string `toml:"combatants_path"`
	MovesPath      string `toml:"moves_path"`

	DefaultSpAtkUses int `toml:"default_sp_atk_uses"`
	DefaultSpDefUses int `toml:"default_sp_def_uses"`
	DefaultHP        int `toml:"default_hp"`

	RetransmitIntervalMS int `toml:"retransmit_interval_ms"`
	RetransmitMaxRetries int `toml:"retransmit_max_retries"`

	StickerDir string `toml:"sticker_dir"`

	MetricsEnabled bool   `toml:"metrics_enabled"`
	MetricsAddr    string `toml:"metrics_addr"`

	AutoDefendBoost bool `toml:"auto_defend_boost"`
}

// Default returns the built-in configuration spec.md §4's defaults
// (HP, boost uses) plus the ambient values a running process needs
// (retransmit timing matching spec.md §4.3's 500ms/3-retry numbers).
func Default() Config {
	return Config{
		CombatantsPath:       "testdata/combatants.csv",
		MovesPath:            "testdata/moves.csv",
		DefaultSpAtkUses:     5,
		DefaultSpDefUses:     5,
		DefaultHP:            0, // 0 means "use the catalog's base HP stat"
		RetransmitIntervalMS: 500,
		RetransmitMaxRetries: 3,
		StickerDir:           "stickers",
		MetricsEnabled:       false,
		MetricsAddr:          "127.0.0.1:9090",
		AutoDefendBoost:      false,
	}
}

// Load reads and decodes a TOML file over the defaults, so a config file
// that only sets a few fields still gets sane values for the rest.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: decoding %s: %w", path, err)
	}
	return cfg, nil
}

// RetransmitInterval converts the millisecond field to a time.Duration.
// The reliability layer does not read it; its timing comes from its own
// package constants.
func (c Config) RetransmitInterval() time.Duration {
	return time.Duration(c.RetransmitIntervalMS) * time.Millisecond
}
