package generator

import "math/rand/v2"

// Bernoulli is a seeded biased coin used to pick which operations get
// their latency recorded.
type Bernoulli struct {
	p   float64
	rng *rand.Rand
}

func NewBernoulli(p float64, seed uint64) *Bernoulli {
	return &Bernoulli{p: p, rng: rand.New(rand.NewPCG(seed, seed>>1|1))}
}

// Sample returns true with probability p. p <= 0 never fires and p >= 1
// always fires, without consuming randomness.
func (b *Bernoulli) Sample() bool {
	switch {
	case b.p <= 0:
		return false
	case b.p >= 1:
		return true
	}
	return b.rng.Float64() < b.p
}

func (b *Bernoulli) Probability() float64 { return b.p }
