// Package spectator tracks read-only observers of a battle and fans out
// the battle traffic they're entitled to see. Adapted from the
// teacher's systems.VehicleSystem: the same "numbered registry of
// entities with a spawn/destroy/lookup surface" shape, retargeted from
// vehicle IDs to spectator network addresses, since spec.md §4.5 has no
// equivalent of vehicle destruction — a spectator only ever leaves by
// its session ending, handled by the peer orchestrator, not this
// registry.
package spectator

import (
	"net"
	"sync"

	"github.com/sirupsen/logrus"
)

// Observer is one connected spectator.
type Observer struct {
	Name string
	Addr net.Addr
}

// Registry is the set of spectators currently watching a battle.
type Registry struct {
	mu        sync.RWMutex
	observers map[string]Observer // keyed by Addr.String()
	log       *logrus.Entry
}

// New constructs an empty Registry.
func New(log *logrus.Entry) *Registry {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Registry{observers: make(map[string]Observer), log: log}
}

// Add registers a spectator (spec.md §4.5: "spectators never send
// ATTACK_ANNOUNCE... they receive and display them").
func (r *Registry) Add(name string, addr net.Addr) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observers[addr.String()] = Observer{Name: name, Addr: addr}
	r.log.WithFields(logrus.Fields{"name": name, "addr": addr}).Info("spectator joined")
}

// Remove drops a spectator, e.g. once its session is declared failed.
func (r *Registry) Remove(addr net.Addr) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.observers, addr.String())
}

// Count reports how many spectators are currently registered.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.observers)
}

// Each calls fn once per currently-registered spectator. fn must not
// call back into the Registry — Each holds a read lock for its
// duration.
func (r *Registry) Each(fn func(Observer)) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, o := range r.observers {
		fn(o)
	}
}
