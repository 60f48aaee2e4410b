package split

import (
	"testing"

	"github.com/classner/forpy-go/internal/impurity"
)

func TestSortByFeature(t *testing.T) {
	vals := []float64{3, 1, 4, 1, 5, 9, 2, 6}
	ids := []int{0, 1, 2, 3, 4, 5, 6, 7}
	SortByFeature(vals, ids)
	for i := 1; i < len(vals); i++ {
		if vals[i] < vals[i-1] {
			t.Errorf("vals not sorted at %d: %v", i, vals)
		}
	}
	want := map[int]float64{0: 3, 1: 1, 2: 4, 3: 1, 4: 5, 5: 9, 6: 2, 7: 6}
	for i, id := range ids {
		if vals[i] != want[id] {
			t.Errorf("id %d carried value %v, want %v", id, vals[i], want[id])
		}
	}
}

func TestClassificationSeparable(t *testing.T) {
	// Two classes perfectly separated at x=2.5.
	x := []float64{0, 1, 2, 3, 4, 5}
	y := []int{0, 0, 0, 1, 1, 1}
	ids := []int{0, 1, 2, 3, 4, 5}

	res := Classification(append([]float64(nil), x...), append([]int(nil), ids...), false,
		func(id int) int { return y[id] },
		func(id int) float64 { return 1.0 },
		2, impurity.Gini{}, Exact(), 1, impurity.EpsGain,
		make([]float64, 2), make([]float64, 2), nil)

	if !res.Valid {
		t.Fatal("expected a valid split")
	}
	if res.Threshold <= 2 || res.Threshold >= 3 {
		t.Errorf("threshold = %v, want in (2,3)", res.Threshold)
	}
	if res.SplitIndex != 3 {
		t.Errorf("split index = %d, want 3", res.SplitIndex)
	}
}

func TestClassificationConstantFeature(t *testing.T) {
	x := []float64{1, 1, 1, 1}
	y := []int{0, 1, 0, 1}
	ids := []int{0, 1, 2, 3}

	res := Classification(append([]float64(nil), x...), append([]int(nil), ids...), false,
		func(id int) int { return y[id] },
		func(id int) float64 { return 1.0 },
		2, impurity.Gini{}, Exact(), 1, impurity.EpsGain,
		make([]float64, 2), make([]float64, 2), nil)

	if res.Valid {
		t.Error("expected constant feature to be invalid")
	}
	if !res.Constant {
		t.Error("expected the result to be flagged constant")
	}
}

func TestRegressionSeparable(t *testing.T) {
	x := []float64{0, 1, 2, 3, 4, 5}
	y := [][]float64{{0}, {0}, {0}, {10}, {10}, {10}}
	ids := []int{0, 1, 2, 3, 4, 5}

	res := Regression(append([]float64(nil), x...), append([]int(nil), ids...), false,
		func(id int) []float64 { return y[id] },
		func(id int) float64 { return 1.0 },
		1, Exact(), 1, impurity.EpsGain, nil)

	if !res.Valid {
		t.Fatal("expected a valid split")
	}
	if res.SplitIndex != 3 {
		t.Errorf("split index = %d, want 3", res.SplitIndex)
	}
}

func TestClassificationRespectsMinSamplesLeaf(t *testing.T) {
	x := []float64{0, 1, 2, 3}
	y := []int{0, 0, 1, 1}
	ids := []int{0, 1, 2, 3}

	res := Classification(append([]float64(nil), x...), append([]int(nil), ids...), false,
		func(id int) int { return y[id] },
		func(id int) float64 { return 1.0 },
		2, impurity.Gini{}, Exact(), 2, impurity.EpsGain,
		make([]float64, 2), make([]float64, 2), nil)

	if !res.Valid || res.SplitIndex != 2 {
		t.Errorf("got %+v, want the only msal=2-admissible split at index 2", res)
	}
}

func TestClassificationRandomPolicy(t *testing.T) {
	x := []float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
	y := []int{0, 0, 0, 0, 0, 1, 1, 1, 1, 1}
	ids := make([]int, len(x))
	for i := range ids {
		ids[i] = i
	}
	calls := 0
	draws := []float64{0.5} // single draw landing mid-range
	rng := func() float64 {
		v := draws[calls%len(draws)]
		calls++
		return v
	}

	res := Classification(append([]float64(nil), x...), append([]int(nil), ids...), false,
		func(id int) int { return y[id] },
		func(id int) float64 { return 1.0 },
		2, impurity.Gini{}, Random(1), 1, impurity.EpsGain,
		make([]float64, 2), make([]float64, 2), rng)

	if !res.Valid {
		t.Fatal("expected a valid split from a single random draw")
	}
}
