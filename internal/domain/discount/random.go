package discount

import (
	"math/rand/v2"
	"sync"
)

// RandomSource yields uniform draws in [0,1).
type RandomSource interface {
	Float64() float64
}

// SourceFunc adapts a function to RandomSource.
type SourceFunc func() float64

// Float64 implements RandomSource.
func (f SourceFunc) Float64() float64 { return f() }

// GlobalSource draws from the process-wide generator.
var GlobalSource RandomSource = SourceFunc(rand.Float64)

// lockedSource serializes access to a *rand.Rand, which is not safe for
// concurrent use.
type lockedSource struct {
	mu sync.Mutex
	r  *rand.Rand
}

func (s *lockedSource) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.Float64()
}

// NewSeededSource returns a deterministic, goroutine-safe source.
func NewSeededSource(seed uint64) RandomSource {
	return &lockedSource{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}
