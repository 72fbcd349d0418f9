package generator

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
)

// DistributionKind names a key popularity distribution.
type DistributionKind int

const (
	Uniform DistributionKind = iota
	SelfSimilar
	Zipfian
)

func (k DistributionKind) String() string {
	switch k {
	case Uniform:
		return "uniform"
	case SelfSimilar:
		return "selfsimilar"
	case Zipfian:
		return "zipfian"
	default:
		return fmt.Sprintf("distribution(%d)", int(k))
	}
}

// ParseDistribution maps a distribution name to its kind.
func ParseDistribution(name string) (DistributionKind, error) {
	switch strings.ToLower(name) {
	case "uniform", "":
		return Uniform, nil
	case "selfsimilar", "self-similar":
		return SelfSimilar, nil
	case "zipfian", "zipf":
		return Zipfian, nil
	default:
		return Uniform, fmt.Errorf("unknown key distribution: %s", name)
	}
}

// MarshalText lets the kind appear by name in YAML and JSON.
func (k DistributionKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *DistributionKind) UnmarshalText(text []byte) error {
	parsed, err := ParseDistribution(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Distribution draws identifiers in [0, n) from the random engine it is
// given. Implementations hold only immutable parameters, so one value may be
// shared between generators that own separate engines.
type Distribution interface {
	Next(r *rand.Rand) uint64
	Name() string
}

// NewDistribution builds the distribution of the given kind over [0, n).
func NewDistribution(kind DistributionKind, n uint64, skew float64) (Distribution, error) {
	switch kind {
	case Uniform:
		return NewUniform(n), nil
	case SelfSimilar:
		if skew < 0 || skew > 0.5 {
			return nil, fmt.Errorf("selfsimilar skew must be in [0, 0.5], got %v", skew)
		}
		return NewSelfSimilar(n, skew), nil
	case Zipfian:
		if skew < 0 || skew >= 1 {
			return nil, fmt.Errorf("zipfian skew must be in [0, 1), got %v", skew)
		}
		return NewZipfian(n, skew), nil
	default:
		return nil, fmt.Errorf("unsupported distribution: %v", kind)
	}
}

type uniformDistribution struct {
	n uint64
}

// NewUniform returns a distribution that picks every identifier in [0, n)
// with equal probability.
func NewUniform(n uint64) Distribution {
	return &uniformDistribution{n: n}
}

func (d *uniformDistribution) Next(r *rand.Rand) uint64 {
	if d.n == 0 {
		return 0
	}
	return r.Uint64N(d.n)
}

func (d *uniformDistribution) Name() string { return "uniform" }

// selfSimilarDistribution is the self-similar distribution of Gray et al.:
// a fraction 1-h of the accesses go to the first h of the identifiers,
// recursively. h = 0.2 gives the 80-20 rule and h = 0.5 is uniform.
type selfSimilarDistribution struct {
	n        uint64
	skew     float64
	exponent float64
}

func NewSelfSimilar(n uint64, skew float64) Distribution {
	d := &selfSimilarDistribution{n: n, skew: skew}
	if skew > 0 && skew < 1 {
		d.exponent = math.Log(skew) / math.Log(1-skew)
	}
	return d
}

func (d *selfSimilarDistribution) Next(r *rand.Rand) uint64 {
	if d.n == 0 || d.skew <= 0 {
		// every access goes to the hottest identifier
		return 0
	}
	id := uint64(float64(d.n) * math.Pow(r.Float64(), d.exponent))
	if id >= d.n {
		id = d.n - 1
	}
	return id
}

func (d *selfSimilarDistribution) Name() string { return "selfsimilar" }

// zipfianDistribution is the YCSB Zipfian generator (Gray et al., "Quickly
// generating billion-record synthetic databases"). Construction computes
// zeta(n, theta) and is linear in n.
type zipfianDistribution struct {
	n            uint64
	theta        float64
	zetaN        float64
	alpha        float64
	eta          float64
	halfPowTheta float64
}

func NewZipfian(n uint64, theta float64) Distribution {
	d := &zipfianDistribution{n: n, theta: theta}
	if n == 0 {
		return d
	}
	zeta2 := computeZeta(2, theta)
	d.zetaN = computeZeta(n, theta)
	d.alpha = 1.0 / (1.0 - theta)
	d.eta = (1 - math.Pow(2.0/float64(n), 1.0-theta)) / (1.0 - zeta2/d.zetaN)
	d.halfPowTheta = 1.0 + math.Pow(0.5, theta)
	return d
}

func (d *zipfianDistribution) Next(r *rand.Rand) uint64 {
	if d.n == 0 {
		return 0
	}
	u := r.Float64()
	uz := u * d.zetaN
	switch {
	case uz < 1.0:
		return 0
	case uz < d.halfPowTheta:
		if d.n < 2 {
			return 0
		}
		return 1
	}
	id := uint64(float64(d.n) * math.Pow(d.eta*u-d.eta+1.0, d.alpha))
	if id >= d.n {
		id = d.n - 1
	}
	return id
}

func (d *zipfianDistribution) Name() string { return "zipfian" }

// computeZeta calculates zeta(n, theta) = sum(1/i^theta) for i=1 to n
func computeZeta(n uint64, theta float64) float64 {
	sum := 0.0
	for i := uint64(1); i <= n; i++ {
		sum += 1.0 / math.Pow(float64(i), theta)
	}
	return sum
}
