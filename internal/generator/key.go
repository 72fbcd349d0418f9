package generator

import (
	"encoding/binary"
	"math/rand/v2"
)

// MaxKeySize bounds the total key width, prefix included.
const MaxKeySize = 128

// KeyGenerator turns identifiers into fixed-width keys. Each worker owns its
// own generator: the random engine, the sequential cursor and the scratch
// buffer are not safe for concurrent use.
//
// A key is the prefix followed by size bytes holding the big-endian image of
// the (optionally scrambled) identifier. Widths below 8 keep the low-order
// bytes; widths above 8 are left-padded with zeros.
type KeyGenerator struct {
	dist      Distribution
	rng       *rand.Rand
	seed      uint64
	currentID uint64
	n         uint64
	size      int
	applyHash bool
	prefix    []byte
	buf       []byte
}

// NewKeyGenerator creates a generator over the keyspace [0, n). The random
// engine is seeded with 0 until SetSeed is called. The sequential cursor
// starts at 1.
func NewKeyGenerator(n uint64, size int, applyHash bool, prefix []byte, dist Distribution) *KeyGenerator {
	if dist == nil {
		dist = NewUniform(n)
	}
	p := append([]byte(nil), prefix...)
	buf := make([]byte, len(p)+size)
	copy(buf, p)
	g := &KeyGenerator{
		dist:      dist,
		n:         n,
		size:      size,
		applyHash: applyHash,
		prefix:    p,
		buf:       buf,
		currentID: 1,
	}
	g.SetSeed(0)
	return g
}

// Next returns the next key. In sequence mode it consumes the cursor,
// otherwise it draws an identifier from the distribution. The returned
// slice is reused by the following call.
func (g *KeyGenerator) Next(inSequence bool) []byte {
	var id uint64
	if inSequence {
		id = g.currentID
		g.currentID++
	} else {
		id = g.NextID()
	}
	return g.HashID(id)
}

// NextID draws an identifier in [0, Keyspace()) without building a key.
func (g *KeyGenerator) NextID() uint64 {
	return g.dist.Next(g.rng)
}

// HashID encodes id into the generator's key buffer.
func (g *KeyGenerator) HashID(id uint64) []byte {
	if g.applyHash {
		id = MultiplicativeHash(id)
	}
	var word [8]byte
	binary.BigEndian.PutUint64(word[:], id)

	key := g.buf[len(g.prefix):]
	if g.size <= 8 {
		copy(key, word[8-g.size:])
	} else {
		pad := g.size - 8
		clear(key[:pad])
		copy(key[pad:], word[:])
	}
	return g.buf
}

// SetSeed reseeds the random engine. Two generators with the same seed and
// parameters produce the same sequence of random keys.
func (g *KeyGenerator) SetSeed(seed uint64) {
	g.seed = seed
	g.rng = rand.New(rand.NewPCG(seed, seed^hashMultiplier))
}

func (g *KeyGenerator) Seed() uint64 { return g.seed }

// SetCurrentID moves the sequential cursor.
func (g *KeyGenerator) SetCurrentID(id uint64) { g.currentID = id }

func (g *KeyGenerator) CurrentID() uint64 { return g.currentID }

// Size is the total key width in bytes, prefix included.
func (g *KeyGenerator) Size() int { return len(g.prefix) + g.size }

// Keyspace is the number of identifiers the distribution draws from.
func (g *KeyGenerator) Keyspace() uint64 { return g.n }

// Distribution returns the sampling strategy in use.
func (g *KeyGenerator) Distribution() Distribution { return g.dist }
