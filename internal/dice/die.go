package dice

import (
	"math/rand/v2"
	"sync"
)

// Faces of a standard die. Rolls fall in [MinFace, MaxFace].
const (
	MinFace = 1
	MaxFace = 6
)

// Roller produces one die value per call.
type Roller interface {
	Roll() int
}

// RollerFunc adapts a function to Roller.
type RollerFunc func() int

// Roll calls f.
func (f RollerFunc) Roll() int { return f() }

// Die is a uniform pseudo-random die. Safe for concurrent use.
type Die struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewDie returns a die seeded with seed, or with a random seed when seed is 0.
func NewDie(seed uint64) *Die {
	if seed == 0 {
		seed = rand.Uint64()
	}
	return &Die{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Range returns a uniform integer in [lo, hi). It panics if hi <= lo.
func (d *Die) Range(lo, hi int) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return lo + d.rng.IntN(hi-lo)
}

// Roll returns a value in [MinFace, MaxFace].
func (d *Die) Roll() int {
	return d.Range(MinFace, MaxFace+1)
}
