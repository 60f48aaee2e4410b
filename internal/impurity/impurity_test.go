package impurity

import (
	"math"
	"testing"
)

func TestGini(t *testing.T) {
	if got := (Gini{}).Evaluate([]float64{4, 0}, 4); got != 0 {
		t.Errorf("pure Gini = %v, want 0", got)
	}
	if got := (Gini{}).Evaluate([]float64{2, 2}, 4); math.Abs(got-0.5) > 1e-12 {
		t.Errorf("50/50 Gini = %v, want 0.5", got)
	}
	if got := (Gini{}).Evaluate([]float64{0, 0}, 0); got != 0 {
		t.Errorf("zero-weight Gini = %v, want 0 by definition", got)
	}
}

func TestShannon(t *testing.T) {
	if got := (Shannon{}).Evaluate([]float64{2, 2}, 4); math.Abs(got-1.0) > 1e-12 {
		t.Errorf("50/50 entropy = %v, want 1 bit", got)
	}
	if got := (Shannon{}).Evaluate([]float64{4, 0}, 4); got != 0 {
		t.Errorf("pure entropy = %v, want 0", got)
	}
}

func TestClassificationError(t *testing.T) {
	if got := (ClassificationError{}).Evaluate([]float64{3, 1}, 4); math.Abs(got-0.25) > 1e-12 {
		t.Errorf("error impurity = %v, want 0.25", got)
	}
}

func TestInducedP2MatchesGini(t *testing.T) {
	hist := []float64{3, 2, 5}
	g := (Gini{}).Evaluate(hist, 10)
	i := (Induced{P: 2}).Evaluate(hist, 10)
	if math.Abs(g-i) > 1e-12 {
		t.Errorf("Induced(2) = %v, Gini = %v, want equal", i, g)
	}
}

func TestTsallisQ2MatchesGini(t *testing.T) {
	hist := []float64{1, 4, 5}
	g := (Gini{}).Evaluate(hist, 10)
	ts := (Tsallis{Q: 2}).Evaluate(hist, 10)
	if math.Abs(g-ts) > 1e-12 {
		t.Errorf("Tsallis(2) = %v, Gini = %v, want equal", ts, g)
	}
}

func TestRenyiAlpha1IsNaturalLogShannon(t *testing.T) {
	hist := []float64{2, 2}
	want := (Shannon{}).Evaluate(hist, 4) * math.Ln2
	got := (Renyi{Alpha: 1}).Evaluate(hist, 4)
	if math.Abs(got-want) > 1e-12 {
		t.Errorf("Renyi(1) = %v, want %v", got, want)
	}
}

func TestIpowIntegerPathMatchesPow(t *testing.T) {
	for _, exp := range []float64{0, 1, 2, 3, 7, 13} {
		got := ipow(0.3, exp)
		want := math.Pow(0.3, exp)
		if math.Abs(got-want) > 1e-12 {
			t.Errorf("ipow(0.3, %v) = %v, want %v", exp, got, want)
		}
	}
	// non-integral exponent takes the Pow path
	if got, want := ipow(0.3, 2.5), math.Pow(0.3, 2.5); got != want {
		t.Errorf("ipow(0.3, 2.5) = %v, want %v", got, want)
	}
}

func TestVarianceProxy(t *testing.T) {
	// values {1, 3}: mean 2, variance 1
	sumY := []float64{4}
	sumYY := []float64{10}
	if got := VarianceProxy(sumY, sumYY, 2); math.Abs(got-1.0) > 1e-12 {
		t.Errorf("variance proxy = %v, want 1", got)
	}
	if got := VarianceProxy([]float64{0}, []float64{0}, 0); got != 0 {
		t.Errorf("zero-weight proxy = %v, want 0", got)
	}
}

func TestDifferentialNormal(t *testing.T) {
	// unit-variance 1-d normal: h = 1/2 log2(2 pi e)
	want := 0.5 * math.Log2(2*math.Pi*math.E)
	got := (Shannon{}).DifferentialNormal(0, 1)
	if math.Abs(got-want) > 1e-12 {
		t.Errorf("differential entropy = %v, want %v", got, want)
	}
}
