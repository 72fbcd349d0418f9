package generator

import "math/rand/v2"

// MaxValueSize bounds the value width accepted by the harness.
const MaxValueSize = 4096

// ValueGenerator produces fixed-size payloads. Like KeyGenerator it is owned
// by a single worker.
type ValueGenerator struct {
	size int
	rng  *rand.Rand
	buf  []byte
}

func NewValueGenerator(size int) *ValueGenerator {
	v := &ValueGenerator{size: size, buf: make([]byte, size)}
	v.SetSeed(0)
	return v
}

func (v *ValueGenerator) SetSeed(seed uint64) {
	v.rng = rand.New(rand.NewPCG(seed, ^seed))
}

// Next fills the scratch buffer with random bytes and returns it.
func (v *ValueGenerator) Next() []byte {
	for i := 0; i < v.size; i += 8 {
		w := v.rng.Uint64()
		for j := 0; j < 8 && i+j < v.size; j++ {
			v.buf[i+j] = byte(w >> (8 * j))
		}
	}
	return v.buf
}

// ForID returns a payload that depends only on id, so a reader can check
// what a writer stored without sharing state with it.
func (v *ValueGenerator) ForID(id uint64) []byte {
	w := MultiplicativeHash(id + 1)
	for i := 0; i < v.size; i++ {
		if i%8 == 0 && i > 0 {
			w = MultiplicativeHash(w)
		}
		v.buf[i] = byte(w >> (8 * (i % 8)))
	}
	return v.buf
}

func (v *ValueGenerator) Size() int { return v.size }
