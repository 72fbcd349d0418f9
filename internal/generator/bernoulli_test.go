package generator

import (
	"math"
	"testing"
)

func TestBernoulli(t *testing.T) {
	tests := []struct {
		name string
		p    float64
		want float64
		tol  float64
	}{
		{"never", 0, 0, 0},
		{"always", 1, 1, 0},
		{"thirty percent", 0.3, 0.3, 0.01},
		{"one percent", 0.01, 0.01, 0.003},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBernoulli(tt.p, 1729)
			if b.Probability() != tt.p {
				t.Fatalf("Probability() = %v, want %v", b.Probability(), tt.p)
			}
			const draws = 100000
			hits := 0
			for i := 0; i < draws; i++ {
				if b.Sample() {
					hits++
				}
			}
			frac := float64(hits) / draws
			if math.Abs(frac-tt.want) > tt.tol {
				t.Errorf("Sample() rate = %.4f, want %.4f +- %.4f", frac, tt.want, tt.tol)
			}
		})
	}
}

func TestBernoulli_Deterministic(t *testing.T) {
	a := NewBernoulli(0.5, 42)
	b := NewBernoulli(0.5, 42)
	for i := 0; i < 1000; i++ {
		if a.Sample() != b.Sample() {
			t.Fatalf("coins diverged at flip %d", i)
		}
	}
}
