// Package leaf implements the leaf builders: turning a node's sample-ID
// interval into a classification histogram, a regression mean/variance, or
// (optionally) a linear regressor, plus the forest-level aggregation of
// per-tree leaf results.
package leaf

import (
	"gonum.org/v1/gonum/mat"

	"github.com/classner/forpy-go/internal/errs"
	"github.com/classner/forpy-go/internal/provider"
)

// Kind identifies which predictor a Result carries.
type Kind int

const (
	Classification Kind = iota
	Regression
	Linear
)

// Result is a single leaf's frozen predictor, in the forest's interchange
// format.
type Result struct {
	Kind Kind

	// Classification: Hist is the length-C normalized class-weight
	// distribution.
	Hist []float64

	// Regression / Linear: Mean is the length-k weighted mean; Variance,
	// when non-nil, is the length-k per-output variance.
	Mean     []float64
	Variance []float64

	// Linear: Coef is the (d+1) x k coefficient matrix, row-major, row 0
	// the intercept row. ResidualVar is length k.
	Coef        []float64
	ResidualVar []float64
	FeatDim     int

	Weight float64 // total weight backing this leaf, used at aggregation time

	// Frozen marks a Linear leaf whose support interval has been released:
	// only Coef/ResidualVar
	// remain, no reference to the design matrix survives. BuildLinear
	// never retains the design matrix past its own stack frame, so every
	// Result it returns is frozen by construction; the field exists so
	// the serializer can still enforce the invariant explicitly rather
	// than assuming it. Non-linear leaves are trivially frozen.
	Frozen bool
}

// BuildClassification aggregates weighted class counts over ids into a
// normalized length-nClasses distribution. Returns errs.Empty if the total
// weight is zero.
func BuildClassification(p *provider.Provider, ids []int, nClasses int) (Result, error) {
	hist := make([]float64, nClasses)
	total := 0.0
	for _, id := range ids {
		w := p.WeightAt(id)
		hist[p.ClassAt(id)] += w
		total += w
	}
	if total <= 0 {
		return Result{}, errs.New(errs.Empty, "classification leaf: zero total weight over %d samples", len(ids))
	}
	for c := range hist {
		hist[c] /= total
	}
	return Result{Kind: Classification, Hist: hist, Weight: total, Frozen: true}, nil
}

// BuildRegression computes the weighted per-output mean via Welford's
// update, optionally also per-output variance. Returns errs.Empty if the
// total weight is zero.
func BuildRegression(p *provider.Provider, ids []int, k int, withVariance bool) (Result, error) {
	mean := make([]float64, k)
	var m2 []float64
	if withVariance {
		m2 = make([]float64, k)
	}
	total := 0.0
	for _, id := range ids {
		w := p.WeightAt(id)
		if w <= 0 {
			continue
		}
		y := p.RegressionAt(id)
		total += w
		for o := 0; o < k; o++ {
			delta := y[o] - mean[o]
			mean[o] += (w / total) * delta
			if withVariance {
				m2[o] += w * delta * (y[o] - mean[o])
			}
		}
	}
	if total <= 0 {
		return Result{}, errs.New(errs.Empty, "regression leaf: zero total weight over %d samples", len(ids))
	}
	res := Result{Kind: Regression, Mean: mean, Weight: total, Frozen: true}
	if withVariance {
		for o := range m2 {
			m2[o] /= total
		}
		res.Variance = m2
	}
	return res, nil
}

// LinearConfig controls what happens when the design matrix for a linear
// leaf is rank-deficient: FallbackToMean degrades to a mean-only predictor,
// false returns errs.NoSolution, which tree.Fit passes on as a failed fit.
type LinearConfig struct {
	FallbackToMean bool
}

// BuildLinear assembles the homogeneous design matrix [1, x] for ids and
// solves for per-output coefficients via QR. gonum/mat's QR does not expose
// column pivoting, so rank deficiency is detected from R's diagonal
// magnitude instead of a pivot sequence; a rank-deficient design degrades
// through LinearConfig.FallbackToMean rather than column subset selection.
// d is the feature dimension; the design matrix has d+1 columns.
func BuildLinear(p *provider.Provider, ids []int, d, k int, cfg LinearConfig) (Result, error) {
	n := len(ids)
	if n == 0 {
		return Result{}, errs.New(errs.Empty, "linear leaf: empty interval")
	}

	a := mat.NewDense(n, d+1, nil)
	b := mat.NewDense(n, k, nil)
	for r, id := range ids {
		a.Set(r, 0, 1.0)
		row := p.Row(id)
		for c := 0; c < d; c++ {
			a.Set(r, c+1, row[c])
		}
		y := p.RegressionAt(id)
		for o := 0; o < k; o++ {
			b.Set(r, o, y[o])
		}
	}

	if n < d+1 {
		// fewer samples than coefficients: the design cannot have full
		// column rank, and QR needs at least as many rows as columns
		if cfg.FallbackToMean {
			return BuildRegression(p, ids, k, true)
		}
		return Result{}, errs.New(errs.NoSolution, "linear leaf: %d samples for %d coefficients", n, d+1)
	}

	var qr mat.QR
	qr.Factorize(a)
	rank := effectiveRank(&qr, d+1)

	if rank < d+1 {
		if cfg.FallbackToMean {
			return BuildRegression(p, ids, k, true)
		}
		return Result{}, errs.New(errs.NoSolution, "linear leaf: design matrix rank %d < %d", rank, d+1)
	}

	var x mat.Dense
	if err := qr.SolveTo(&x, false, b); err != nil {
		if cfg.FallbackToMean {
			return BuildRegression(p, ids, k, true)
		}
		return Result{}, errs.New(errs.NoSolution, "linear leaf: QR solve failed: %v", err)
	}

	coef := make([]float64, (d+1)*k)
	for r := 0; r <= d; r++ {
		for c := 0; c < k; c++ {
			coef[r*k+c] = x.At(r, c)
		}
	}

	resid := make([]float64, k)
	for r, id := range ids {
		y := p.RegressionAt(id)
		for o := 0; o < k; o++ {
			pred := 0.0
			for c := 0; c <= d; c++ {
				var feat float64
				if c == 0 {
					feat = 1.0
				} else {
					feat = a.At(r, c)
				}
				pred += coef[c*k+o] * feat
			}
			e := y[o] - pred
			resid[o] += e * e
		}
	}
	for o := range resid {
		resid[o] /= float64(n)
	}

	return Result{Kind: Linear, Coef: coef, ResidualVar: resid, FeatDim: d, Weight: float64(n), Frozen: true}, nil
}

// effectiveRank counts the diagonal entries of R whose magnitude clears a
// fixed numerical tolerance.
func effectiveRank(qr *mat.QR, cols int) int {
	var r mat.Dense
	qr.RTo(&r)
	const tol = 1e-10
	rank := 0
	for i := 0; i < cols && i < r.RawMatrix().Rows; i++ {
		if abs(r.At(i, i)) > tol {
			rank++
		}
	}
	return rank
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// Eval materializes the prediction a leaf makes for input x. Histogram and
// mean leaves predict the same value for every x, so they return themselves;
// a Linear leaf evaluates coef^T [1; x] into a Regression-shaped Result
// (mean = fitted value, variance = residual variance), which is the forest
// interchange format Aggregate expects.
func (r Result) Eval(x []float64) Result {
	if r.Kind != Linear {
		return r
	}
	k := len(r.ResidualVar)
	mean := make([]float64, k)
	for o := 0; o < k; o++ {
		v := r.Coef[o] // intercept row
		for c := 0; c < r.FeatDim; c++ {
			v += r.Coef[(c+1)*k+o] * x[c]
		}
		mean[o] = v
	}
	variance := append([]float64(nil), r.ResidualVar...)
	return Result{Kind: Regression, Mean: mean, Variance: variance, Weight: r.Weight, Frozen: true}
}

// Aggregate combines per-tree Results with per-tree weights into the
// forest's final prediction: weighted-sum-then-normalize for distributions
// and means; for variance summaries, E[m^2 + v] - E[m]^2 recovers the
// combined variance. For classification, classArgmax is always set and
// classHist holds the full normalized distribution only when predictProba
// is true (nil otherwise).
func Aggregate(results []Result, weights []float64, predictProba bool) (classHist []float64, classArgmax int, mean []float64, variance []float64) {
	if len(results) == 0 {
		return nil, -1, nil, nil
	}
	switch results[0].Kind {
	case Classification:
		nClasses := len(results[0].Hist)
		sum := make([]float64, nClasses)
		wTotal := 0.0
		for i, r := range results {
			w := weights[i]
			wTotal += w
			for c, p := range r.Hist {
				sum[c] += w * p
			}
		}
		if wTotal > 0 {
			for c := range sum {
				sum[c] /= wTotal
			}
		}
		best := 0
		for c := 1; c < nClasses; c++ {
			if sum[c] > sum[best] {
				best = c
			}
		}
		if !predictProba {
			return nil, best, nil, nil
		}
		return sum, best, nil, nil
	default:
		k := len(results[0].Mean)
		sumMean := make([]float64, k)
		sumSq := make([]float64, k)
		hasVar := results[0].Variance != nil
		wTotal := 0.0
		for i, r := range results {
			w := weights[i]
			wTotal += w
			for o := 0; o < k; o++ {
				sumMean[o] += w * r.Mean[o]
				if hasVar {
					sumSq[o] += w * (r.Mean[o]*r.Mean[o] + r.Variance[o])
				}
			}
		}
		if wTotal > 0 {
			for o := 0; o < k; o++ {
				sumMean[o] /= wTotal
				if hasVar {
					sumSq[o] /= wTotal
				}
			}
		}
		var combinedVar []float64
		if hasVar {
			combinedVar = make([]float64, k)
			for o := 0; o < k; o++ {
				combinedVar[o] = sumSq[o] - sumMean[o]*sumMean[o]
			}
		}
		return nil, -1, sumMean, combinedVar
	}
}
