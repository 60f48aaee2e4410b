package forest

import (
	"testing"
)

// A small, perfectly separable two-feature, two-class dataset; feature 0
// alone separates the classes, feature 1 is noise. Feature-major (column)
// layout, matching the package's documented convention.
var testX = [][]float64{
	{0, 1, 2, 3, 8, 9, 10, 11},
	{5, 2, 9, 1, 4, 7, 3, 6},
}
var testY = []string{"a", "a", "a", "a", "b", "b", "b", "b"}

func TestClassificationFitPredict(t *testing.T) {
	f, err := NewClassificationForest(NTrees(15), RandomSeed(7))
	if err != nil {
		t.Fatal(err)
	}
	if err := f.Fit(testX, testY, true, nil); err != nil {
		t.Fatal(err)
	}

	preds, err := f.Predict(testX)
	if err != nil {
		t.Fatal(err)
	}
	for i, want := range testY {
		if preds[i] != want {
			t.Errorf("sample %d predicted %q, want %q", i, preds[i], want)
		}
	}
}

func TestClassificationRejectsTooFewTrees(t *testing.T) {
	if _, err := NewClassificationForest(NTrees(1)); err == nil {
		t.Error("expected n_trees=1 to be rejected")
	}
}

func TestClassificationComputeOOB(t *testing.T) {
	f, err := NewClassificationForest(NTrees(25), RandomSeed(3), ComputeOOB())
	if err != nil {
		t.Fatal(err)
	}
	if err := f.Fit(testX, testY, true, nil); err != nil {
		t.Fatal(err)
	}
	if f.ConfusionMatrix == nil {
		t.Error("expected a confusion matrix when ComputeOOB is set")
	}
}

func TestClassificationRowMajorTranspose(t *testing.T) {
	// Same data, but row-major (samples x features): len(X) == n_samples.
	rowMajor := [][]float64{
		{0, 5}, {1, 2}, {2, 9}, {3, 1}, {8, 4}, {9, 7}, {10, 3}, {11, 6},
	}
	f, err := NewClassificationForest(NTrees(15), RandomSeed(7))
	if err != nil {
		t.Fatal(err)
	}
	if err := f.Fit(rowMajor, testY, true, nil); err != nil {
		t.Fatal(err)
	}
	preds, err := f.Predict(testX)
	if err != nil {
		t.Fatal(err)
	}
	for i, want := range testY {
		if preds[i] != want {
			t.Errorf("sample %d predicted %q, want %q", i, preds[i], want)
		}
	}
}

var regX = [][]float64{
	{0, 1, 2, 3, 4, 5, 6, 7},
}
var regY = [][]float64{{0}, {1}, {2}, {3}, {4}, {5}, {6}, {7}}

func TestRegressionFitPredict(t *testing.T) {
	f, err := NewRegressionForest(NTrees(20), RandomSeed(11), MinSamplesLeaf(1))
	if err != nil {
		t.Fatal(err)
	}
	if err := f.Fit(regX, regY, true, nil); err != nil {
		t.Fatal(err)
	}

	mean, _, err := f.Predict(regX)
	if err != nil {
		t.Fatal(err)
	}
	for i, row := range regY {
		d := mean[i][0] - row[0]
		if d < -1.5 || d > 1.5 {
			t.Errorf("sample %d predicted %v, want near %v", i, mean[i][0], row[0])
		}
	}
}

func TestPredictBeforeFit(t *testing.T) {
	f, err := NewClassificationForest()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.Predict(testX); err == nil {
		t.Error("expected predicting before fit to fail")
	}
}

func TestFitIsDeterministicForFixedSeed(t *testing.T) {
	fit := func() []string {
		f, err := NewClassificationForest(NTrees(10), RandomSeed(99), NumWorkers(4))
		if err != nil {
			t.Fatal(err)
		}
		if err := f.Fit(testX, testY, true, nil); err != nil {
			t.Fatal(err)
		}
		preds, err := f.Predict(testX)
		if err != nil {
			t.Fatal(err)
		}
		return preds
	}
	a, b := fit(), fit()
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("same seed produced different predictions at %d: %q vs %q", i, a[i], b[i])
		}
	}
}

func TestPredictProbaSumsToOne(t *testing.T) {
	f, err := NewClassificationForest(NTrees(10), RandomSeed(4))
	if err != nil {
		t.Fatal(err)
	}
	if err := f.Fit(testX, testY, true, nil); err != nil {
		t.Fatal(err)
	}
	probs, err := f.PredictProba(testX)
	if err != nil {
		t.Fatal(err)
	}
	for i, p := range probs {
		sum := 0.0
		for _, v := range p {
			sum += v
		}
		if sum < 1-1e-6 || sum > 1+1e-6 {
			t.Errorf("row %d probabilities sum to %v", i, sum)
		}
	}
}

func TestRejectsAutoscaleWithExplicitFeatures(t *testing.T) {
	if _, err := NewClassificationForest(Autoscale(), NValidFeatures(3)); err == nil {
		t.Error("expected autoscale with an explicit feature count to be rejected")
	}
}

func TestRegressionStoreVariancePureLeaves(t *testing.T) {
	// Perfectly separable two-level target: leaf variance should be 0.
	x := [][]float64{{0, 1, 2, 3}}
	y := [][]float64{{10}, {10}, {20}, {20}}
	f, err := NewRegressionForest(NTrees(2), MaxDepth(2), RandomSeed(1), StoreVariance())
	if err != nil {
		t.Fatal(err)
	}
	if err := f.Fit(x, y, false, nil); err != nil {
		t.Fatal(err)
	}
	mean, variance, err := f.Predict(x)
	if err != nil {
		t.Fatal(err)
	}
	for i, row := range y {
		if mean[i][0] != row[0] {
			t.Errorf("sample %d mean = %v, want %v", i, mean[i][0], row[0])
		}
		if variance[i][0] > 1e-9 {
			t.Errorf("sample %d variance = %v, want 0", i, variance[i][0])
		}
	}
}

func TestRegressionComputeOOB(t *testing.T) {
	f, err := NewRegressionForest(NTrees(25), RandomSeed(5), ComputeOOB())
	if err != nil {
		t.Fatal(err)
	}
	if err := f.Fit(regX, regY, true, nil); err != nil {
		t.Fatal(err)
	}
	if f.MSE < 0 {
		t.Errorf("MSE should be non-negative, got %v", f.MSE)
	}
}
