package dice

import (
	"sync"

	"golang.org/x/exp/rand"
)

// Rand is the randomness the engine consumes.
type Rand interface {
	Intn(n int) int
	Float64() float64
}

// LockedRand is a seedable Rand safe for concurrent use.
type LockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

// NewRand returns a LockedRand seeded with seed.
func NewRand(seed uint64) *LockedRand {
	return &LockedRand{r: rand.New(rand.NewSource(seed))}
}

func (l *LockedRand) Intn(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Intn(n)
}

func (l *LockedRand) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Float64()
}

// between returns a uniform int in [lo, hi].
func between(r Rand, lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + r.Intn(hi-lo+1)
}
