package generator

// hashMultiplier is 2^64 divided by the golden ratio, rounded to odd.
const hashMultiplier uint64 = 11400714819323198393

// MultiplicativeHash scrambles an identifier with Knuth's multiplicative
// method. The multiply wraps modulo 2^64 and is a bijection on uint64.
func MultiplicativeHash(id uint64) uint64 {
	return id * hashMultiplier
}
