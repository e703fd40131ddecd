package sim

import (
	"hash/fnv"
	"math/rand"
)

// RunKey uniquely identifies a reproducible run. Two runs with the same
// RunKey and identical scenario configuration must produce bit-for-bit
// identical results.
type RunKey int64

const (
	// SubsystemInit seeds initial-condition perturbations (interface
	// noise on the thread radius).
	SubsystemInit = "init"
	// SubsystemForcing seeds stochastic body-force phases.
	SubsystemForcing = "forcing"
)

// PartitionedRNG provides deterministic, isolated RNG instances per
// subsystem: master seed XOR fnv1a64(subsystem name). Not safe for
// concurrent use; each worker takes its own subsystem stream.
type PartitionedRNG struct {
	key        RunKey
	subsystems map[string]*rand.Rand
}

// NewPartitionedRNG creates a PartitionedRNG from a master seed.
func NewPartitionedRNG(key RunKey) *PartitionedRNG {
	return &PartitionedRNG{
		key:        key,
		subsystems: make(map[string]*rand.Rand),
	}
}

// ForSubsystem returns a deterministically-seeded RNG for the named
// subsystem. The same name always returns the same *rand.Rand instance.
func (p *PartitionedRNG) ForSubsystem(name string) *rand.Rand {
	if rng, ok := p.subsystems[name]; ok {
		return rng
	}
	rng := rand.New(rand.NewSource(int64(p.key) ^ fnv1a64(name)))
	p.subsystems[name] = rng
	return rng
}

// Key returns the master seed this PartitionedRNG was built from.
func (p *PartitionedRNG) Key() RunKey { return p.key }

func fnv1a64(s string) int64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return int64(h.Sum64())
}
