package leaf

import (
	"errors"
	"math"
	"testing"

	"github.com/classner/forpy-go/internal/errs"
	"github.com/classner/forpy-go/internal/provider"
)

func classificationProvider(t *testing.T) *provider.Provider {
	t.Helper()
	X := [][]float64{{0, 1, 2, 3}}
	codes := []int{0, 0, 1, 1}
	p, err := provider.NewClassification(X, codes, 2, nil)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestBuildClassificationNormalizesAndFreezes(t *testing.T) {
	p := classificationProvider(t)
	res, err := BuildClassification(p, []int{0, 1, 2, 3}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Frozen {
		t.Error("classification leaf should be frozen")
	}
	sum := 0.0
	for _, v := range res.Hist {
		sum += v
	}
	if math.Abs(sum-1.0) > 1e-9 {
		t.Errorf("histogram should sum to 1, got %v", sum)
	}
	if res.Hist[0] != 0.5 || res.Hist[1] != 0.5 {
		t.Errorf("unexpected histogram %v", res.Hist)
	}
}

func TestBuildClassificationEmpty(t *testing.T) {
	p := classificationProvider(t)
	if _, err := BuildClassification(p, nil, 2); !errors.Is(err, errs.ErrEmpty) {
		t.Errorf("expected errs.Empty, got %v", err)
	}
}

func regressionProvider(t *testing.T) *provider.Provider {
	t.Helper()
	X := [][]float64{{0, 1, 2, 3, 4}}
	Y := [][]float64{{1}, {2}, {3}, {4}, {5}}
	p, err := provider.NewRegression(X, Y, nil)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestBuildRegressionWelfordMeanVariance(t *testing.T) {
	p := regressionProvider(t)
	res, err := BuildRegression(p, []int{0, 1, 2, 3, 4}, 1, true)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Frozen {
		t.Error("regression leaf should be frozen")
	}
	if math.Abs(res.Mean[0]-3.0) > 1e-9 {
		t.Errorf("mean = %v, want 3", res.Mean[0])
	}
	// population variance of {1,2,3,4,5} is 2.
	if math.Abs(res.Variance[0]-2.0) > 1e-9 {
		t.Errorf("variance = %v, want 2", res.Variance[0])
	}
}

func TestBuildRegressionNoVariance(t *testing.T) {
	p := regressionProvider(t)
	res, err := BuildRegression(p, []int{0, 1, 2, 3, 4}, 1, false)
	if err != nil {
		t.Fatal(err)
	}
	if res.Variance != nil {
		t.Error("expected nil Variance when withVariance is false")
	}
}

func TestBuildLinearExactFit(t *testing.T) {
	// y = 2x + 1, noiseless -> coefficients should recover exactly.
	X := [][]float64{{0, 1, 2, 3, 4}}
	Y := [][]float64{{1}, {3}, {5}, {7}, {9}}
	p, err := provider.NewRegression(X, Y, nil)
	if err != nil {
		t.Fatal(err)
	}
	res, err := BuildLinear(p, []int{0, 1, 2, 3, 4}, 1, 1, LinearConfig{})
	if err != nil {
		t.Fatal(err)
	}
	if !res.Frozen {
		t.Error("linear leaf should be frozen")
	}
	intercept := res.Coef[0]
	slope := res.Coef[1]
	if math.Abs(intercept-1.0) > 1e-6 {
		t.Errorf("intercept = %v, want 1", intercept)
	}
	if math.Abs(slope-2.0) > 1e-6 {
		t.Errorf("slope = %v, want 2", slope)
	}
	if res.ResidualVar[0] > 1e-6 {
		t.Errorf("residual variance = %v, want ~0", res.ResidualVar[0])
	}
}

func TestBuildLinearRankDeficientFallsBackToMean(t *testing.T) {
	// A single sample gives a rank-deficient design matrix (2 columns, 1 row).
	X := [][]float64{{5}}
	Y := [][]float64{{7}}
	p, err := provider.NewRegression(X, Y, nil)
	if err != nil {
		t.Fatal(err)
	}
	res, err := BuildLinear(p, []int{0}, 1, 1, LinearConfig{FallbackToMean: true})
	if err != nil {
		t.Fatal(err)
	}
	if res.Kind != Regression {
		t.Errorf("expected fallback to Regression kind, got %v", res.Kind)
	}
	if res.Mean[0] != 7 {
		t.Errorf("mean = %v, want 7", res.Mean[0])
	}
}

func TestBuildLinearRankDeficientNoFallback(t *testing.T) {
	X := [][]float64{{5}}
	Y := [][]float64{{7}}
	p, err := provider.NewRegression(X, Y, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := BuildLinear(p, []int{0}, 1, 1, LinearConfig{FallbackToMean: false}); !errors.Is(err, errs.ErrNoSolution) {
		t.Errorf("expected errs.NoSolution, got %v", err)
	}
}

func TestAggregateClassification(t *testing.T) {
	results := []Result{
		{Kind: Classification, Hist: []float64{1, 0}},
		{Kind: Classification, Hist: []float64{0, 1}},
	}
	hist, argmax, _, _ := Aggregate(results, []float64{1, 1}, true)
	if math.Abs(hist[0]-0.5) > 1e-9 || math.Abs(hist[1]-0.5) > 1e-9 {
		t.Errorf("unexpected aggregated histogram %v", hist)
	}
	if argmax != 0 && argmax != 1 {
		t.Errorf("argmax out of range: %d", argmax)
	}
}

func TestAggregateRegressionCombinesVariance(t *testing.T) {
	results := []Result{
		{Kind: Regression, Mean: []float64{0}, Variance: []float64{1}},
		{Kind: Regression, Mean: []float64{2}, Variance: []float64{1}},
	}
	_, _, mean, variance := Aggregate(results, []float64{1, 1}, false)
	if math.Abs(mean[0]-1.0) > 1e-9 {
		t.Errorf("mean = %v, want 1", mean[0])
	}
	// E[mean^2+var] - E[mean]^2 = (0+1+4+1)/2 - 1 = 2.
	if math.Abs(variance[0]-2.0) > 1e-9 {
		t.Errorf("combined variance = %v, want 2", variance[0])
	}
}
