package generator

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func bigEndian(id uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], id)
	return b[:]
}

func TestKeyGenerator_SequentialIDs(t *testing.T) {
	const n = 1000
	g := NewKeyGenerator(n, 8, false, nil, NewUniform(n))

	for i := uint64(1); i <= n; i++ {
		key := g.Next(true)
		if !bytes.Equal(key, bigEndian(i)) {
			t.Fatalf("Next(true) #%d = %x, want %x", i, key, bigEndian(i))
		}
	}
	if g.CurrentID() != n+1 {
		t.Errorf("CurrentID() = %d, want %d", g.CurrentID(), n+1)
	}
}

func TestKeyGenerator_Width(t *testing.T) {
	tests := []struct {
		name string
		size int
		id   uint64
		want []byte
	}{
		{"truncate to one byte", 1, 300, []byte{44}},
		{"truncate to two bytes", 2, 300, []byte{0x01, 0x2c}},
		{"exact width", 8, 300, bigEndian(300)},
		{"zero padded", 10, 300, append([]byte{0, 0}, bigEndian(300)...)},
		{"wide key", 16, 1, append(make([]byte, 8), bigEndian(1)...)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewKeyGenerator(1000, tt.size, false, nil, nil)
			got := g.HashID(tt.id)
			if !bytes.Equal(got, tt.want) {
				t.Errorf("HashID(%d) = %x, want %x", tt.id, got, tt.want)
			}
			if g.Size() != tt.size {
				t.Errorf("Size() = %d, want %d", g.Size(), tt.size)
			}
		})
	}
}

func TestKeyGenerator_Prefix(t *testing.T) {
	prefix := []byte("user")
	g := NewKeyGenerator(100, 8, false, prefix, nil)

	key := g.Next(true)
	if len(key) != 12 || g.Size() != 12 {
		t.Fatalf("key length = %d, Size() = %d, want 12", len(key), g.Size())
	}
	if !bytes.HasPrefix(key, prefix) {
		t.Errorf("key %q does not start with %q", key, prefix)
	}
	if !bytes.Equal(key[4:], bigEndian(1)) {
		t.Errorf("key suffix = %x, want %x", key[4:], bigEndian(1))
	}

	// caller mutations of the prefix must not leak into the generator
	prefix[0] = 'X'
	if key := g.HashID(2); key[0] != 'u' {
		t.Errorf("prefix changed after caller mutation: %q", key)
	}
}

func TestKeyGenerator_Hash(t *testing.T) {
	g := NewKeyGenerator(100, 8, true, nil, nil)

	if got := g.HashID(1); !bytes.Equal(got, bigEndian(11400714819323198393)) {
		t.Errorf("HashID(1) = %x, want %x", got, bigEndian(11400714819323198393))
	}
	if got := g.HashID(0); !bytes.Equal(got, make([]byte, 8)) {
		t.Errorf("HashID(0) = %x, want zeros", got)
	}

	narrow := NewKeyGenerator(100, 4, true, nil, nil)
	want := bigEndian(MultiplicativeHash(7))[4:]
	if got := narrow.HashID(7); !bytes.Equal(got, want) {
		t.Errorf("HashID(7) at width 4 = %x, want low-order bytes %x", got, want)
	}
}

func TestKeyGenerator_Determinism(t *testing.T) {
	const n = 1 << 20
	for _, kind := range []DistributionKind{Uniform, SelfSimilar, Zipfian} {
		t.Run(kind.String(), func(t *testing.T) {
			dist, err := NewDistribution(kind, n, 0.2)
			if err != nil {
				t.Fatalf("NewDistribution() error = %v", err)
			}
			a := NewKeyGenerator(n, 8, true, []byte("k"), dist)
			b := NewKeyGenerator(n, 8, true, []byte("k"), dist)
			a.SetSeed(1729)
			b.SetSeed(1729)

			first := make([][]byte, 0, 1000)
			for i := 0; i < 1000; i++ {
				ka := a.Next(false)
				kb := b.Next(false)
				if !bytes.Equal(ka, kb) {
					t.Fatalf("draw %d differs: %x vs %x", i, ka, kb)
				}
				first = append(first, append([]byte(nil), ka...))
			}

			// reseeding replays the same sequence
			a.SetSeed(1729)
			for i := 0; i < 1000; i++ {
				if got := a.Next(false); !bytes.Equal(got, first[i]) {
					t.Fatalf("after SetSeed draw %d = %x, want %x", i, got, first[i])
				}
			}
			if a.Seed() != 1729 {
				t.Errorf("Seed() = %d, want 1729", a.Seed())
			}
		})
	}
}

func TestKeyGenerator_DifferentSeeds(t *testing.T) {
	a := NewKeyGenerator(1<<30, 8, false, nil, nil)
	b := NewKeyGenerator(1<<30, 8, false, nil, nil)
	a.SetSeed(1)
	b.SetSeed(2)

	same := 0
	for i := 0; i < 100; i++ {
		if a.NextID() == b.NextID() {
			same++
		}
	}
	if same > 5 {
		t.Errorf("%d of 100 draws equal across different seeds", same)
	}
}

func TestKeyGenerator_Keyspace(t *testing.T) {
	g := NewKeyGenerator(500, 8, false, nil, NewUniform(500))
	g.SetSeed(3)
	if g.Keyspace() != 500 {
		t.Errorf("Keyspace() = %d, want 500", g.Keyspace())
	}
	for i := 0; i < 10000; i++ {
		if id := g.NextID(); id >= 500 {
			t.Fatalf("NextID() = %d outside keyspace", id)
		}
	}
}
