package program

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"wargame/game"
)

const builtinPrefix = "builtin:"

// Registry binds each side to the routine it plays with. Sides differ only in the bound
// routine; the runner treats them identically.
type Registry struct {
	mu       sync.RWMutex
	programs map[game.PlayerIdentity]Program
}

func NewRegistry() *Registry {
	return &Registry{programs: make(map[game.PlayerIdentity]Program)}
}

func (r *Registry) Bind(side game.PlayerIdentity, p Program) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.programs[side] = p
}

func (r *Registry) Lookup(side game.PlayerIdentity) (Program, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.programs[side]
	if !ok {
		return nil, fmt.Errorf("no program bound for %s", side)
	}
	return p, nil
}

// Load resolves a program reference: "builtin:idle", "builtin:aggressor",
// "builtin:random[:seed]" or the path of an expr script.
func Load(ref string) (Program, error) {
	if !strings.HasPrefix(ref, builtinPrefix) {
		return LoadScript(ref)
	}
	name, arg, _ := strings.Cut(strings.TrimPrefix(ref, builtinPrefix), ":")
	switch name {
	case "idle":
		return Idle, nil
	case "aggressor":
		return Aggressor, nil
	case "random":
		seed := uint64(1)
		if arg != "" {
			n, err := strconv.ParseUint(arg, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("random seed %q: %w", arg, err)
			}
			seed = n
		}
		return NewRandom(seed), nil
	}
	return nil, fmt.Errorf("unknown builtin program %q", name)
}

// LoadRegistry builds a registry from side -> reference pairs.
func LoadRegistry(refs map[game.PlayerIdentity]string) (*Registry, error) {
	r := NewRegistry()
	for side, ref := range refs {
		p, err := Load(ref)
		if err != nil {
			return nil, fmt.Errorf("%s program: %w", side, err)
		}
		r.Bind(side, p)
	}
	return r, nil
}
