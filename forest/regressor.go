package forest

import (
	"math/rand"

	"github.com/sirupsen/logrus"

	"github.com/classner/forpy-go/internal/desk"
	"github.com/classner/forpy-go/internal/errs"
	"github.com/classner/forpy-go/internal/impurity"
	"github.com/classner/forpy-go/internal/leaf"
	"github.com/classner/forpy-go/internal/pool"
	"github.com/classner/forpy-go/internal/provider"
	"github.com/classner/forpy-go/internal/split"
	"github.com/classner/forpy-go/tree"
)

// RegressionForest is an ensemble of trees each predicting a length-k real
// vector, combined by weighted mean (and, if StoreVariance is set, a
// combined variance summary).
type RegressionForest struct {
	NTrees        int
	MaxDepth      int
	Msal          int
	Msan          int
	FTry          int
	Autoscale     bool
	GainThreshold float64
	Policy        split.Policy
	Seed          int64
	NWorkers      int
	ComputeOOB    bool

	StoreVariance bool
	UseLinear     bool
	LinearConfig  leaf.LinearConfig

	AnnotDim int
	Trees    []*tree.Tree

	MSE      float64
	RSquared float64
	VarImp   []float64
}

func (f *RegressionForest) setNTrees(n int)            { f.NTrees = n }
func (f *RegressionForest) setMaxDepth(n int)          { f.MaxDepth = n }
func (f *RegressionForest) setMsal(n int)              { f.Msal = n }
func (f *RegressionForest) setMsan(n int)              { f.Msan = n }
func (f *RegressionForest) setFTry(n int)              { f.FTry = n }
func (f *RegressionForest) setAutoscale(b bool)        { f.Autoscale = b }
func (f *RegressionForest) setGainThreshold(g float64) { f.GainThreshold = g }
func (f *RegressionForest) setPolicy(p split.Policy)   { f.Policy = p }
func (f *RegressionForest) setSeed(s int64)            { f.Seed = s }
func (f *RegressionForest) setNWorkers(n int)          { f.NWorkers = n }
func (f *RegressionForest) setComputeOOB()             { f.ComputeOOB = true }

// setMeasure is a no-op: regression forests always use the variance-proxy
// criterion.
func (f *RegressionForest) setMeasure(impurity.Measure) {}

// StoreVariance requests that regression leaves also track per-output
// variance, enabling the forest-level combined-variance summary.
func StoreVariance() func(Configer) {
	return func(c Configer) {
		if r, ok := c.(*RegressionForest); ok {
			r.StoreVariance = true
		}
	}
}

// LinearLeaf requests linear-regression leaves instead of mean leaves.
// fallbackToMean controls what a rank-deficient leaf does: degrade to a
// mean-only predictor when true, fail the fit otherwise.
func LinearLeaf(fallbackToMean bool) func(Configer) {
	return func(c Configer) {
		if r, ok := c.(*RegressionForest); ok {
			r.UseLinear = true
			r.LinearConfig = leaf.LinearConfig{FallbackToMean: fallbackToMean}
		}
	}
}

// NewRegressionForest builds a forest with sensible defaults (NTrees=10,
// Msal=1, Msan=2, all features considered per split, EXACT search),
// overridden by options.
func NewRegressionForest(options ...func(Configer)) (*RegressionForest, error) {
	f := &RegressionForest{
		NTrees:        10,
		Msal:          1,
		Msan:          2,
		GainThreshold: impurity.EpsGain,
		Policy:        split.Exact(),
		Seed:          1,
		NWorkers:      1,
	}
	for _, opt := range options {
		opt(f)
	}
	if err := f.validate(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *RegressionForest) validate() error {
	if f.NTrees < 2 {
		return errs.New(errs.InvalidParam, "n_trees = %d, want >= 2", f.NTrees)
	}
	if f.Msal == 0 {
		return errs.New(errs.InvalidParam, "msal must be > 0")
	}
	if f.Msan < 2*f.Msal {
		return errs.New(errs.InvalidParam, "msan = %d, want >= 2*msal = %d", f.Msan, 2*f.Msal)
	}
	if f.GainThreshold < impurity.EpsGain {
		return errs.New(errs.InvalidParam, "gain_threshold = %v, want >= %v", f.GainThreshold, impurity.EpsGain)
	}
	if f.Autoscale && f.FTry != 0 {
		return errs.New(errs.InvalidParam, "autoscale and an explicit f_try are mutually exclusive")
	}
	if f.NWorkers == 0 {
		return errs.New(errs.Unsupported, "n_threads == 0")
	}
	return nil
}

// Fit grows f.NTrees trees from X (feature-major columns) and Y (row-major,
// shape n x k).
func (f *RegressionForest) Fit(X [][]float64, Y [][]float64, bootstrap bool, weights []float64) error {
	if len(X) == 0 || len(Y) == 0 {
		return errs.New(errs.Empty, "fit requires non-empty X and Y")
	}
	n := len(Y)
	X = f.fixShape(X, n)
	f.AnnotDim = len(Y[0])

	root, err := provider.NewRegression(X, Y, weights)
	if err != nil {
		return err
	}

	rng := rand.New(rand.NewSource(f.Seed))
	usage := make([]provider.UsageMap, f.NTrees)
	for t := 0; t < f.NTrees; t++ {
		if bootstrap {
			usage[t] = provider.Bootstrap(n, rng)
		} else {
			usage[t] = provider.Identity(n)
		}
	}
	treeProviders := root.SpawnTreeProviders(usage)

	featDim := root.FeatDim()
	trees := make([]*tree.Tree, f.NTrees)
	tasks := make([]pool.Task, f.NTrees)
	desks := make([]*desk.Desk, f.NTrees)

	for t := 0; t < f.NTrees; t++ {
		tr := tree.New(featDim, f.Msal, f.Msan, f.MaxDepth)
		tr.IsRegression = true
		tr.UseLinear = f.UseLinear
		tr.LinearCfg = f.LinearConfig
		tr.WithVarLeaf = f.StoreVariance
		tr.Decider = defaultDeciderConfig(f.FTry, f.Autoscale, f.Msal, f.GainThreshold, f.Policy, nil)
		trees[t] = tr
		desks[t] = desk.New(f.Seed^int64(t), n, featDim, 0)

		tIdx := t
		tp := treeProviders[t]
		tasks[tIdx] = func(d *desk.Desk) error { return trees[tIdx].Fit(tp, d) }
	}

	if err := pool.Run(tasks, desks, f.effectiveWorkers()); err != nil {
		logrus.WithError(err).Error("forest: one or more trees failed to grow")
		return err
	}

	f.Trees = trees

	f.computeVarImp(featDim)
	if f.ComputeOOB {
		f.computeOOB(X, Y, usage)
	}

	return nil
}

func (f *RegressionForest) fixShape(X [][]float64, n int) [][]float64 {
	if len(X) != n || len(X) == 0 || len(X[0]) == n {
		return X
	}
	nFeat := len(X[0])
	logrus.Warn("forest: X appears to be row-major (samples x features); transposing a copy")
	out := make([][]float64, nFeat)
	for j := 0; j < nFeat; j++ {
		out[j] = make([]float64, n)
		for i := 0; i < n; i++ {
			out[j][i] = X[i][j]
		}
	}
	return out
}

func (f *RegressionForest) effectiveWorkers() int {
	if f.NWorkers < 1 {
		return 1
	}
	return f.NWorkers
}

func (f *RegressionForest) computeVarImp(featDim int) {
	imp := make([]float64, featDim)
	for _, t := range f.Trees {
		for j, v := range t.FeatureImportance {
			imp[j] += v
		}
	}
	total := 0.0
	for _, v := range imp {
		total += v
	}
	if total > 0 {
		for j := range imp {
			imp[j] /= total
		}
	}
	f.VarImp = imp
}

// computeOOB averages the out-of-bag prediction per sample, then reports
// MSE and R^2 against the true single-output target (multi-output Y
// reports against output 0).
func (f *RegressionForest) computeOOB(X, Y [][]float64, usage []provider.UsageMap) {
	n := len(Y)
	sum := make([]float64, n)
	ct := make([]int, n)

	for t, tr := range f.Trees {
		u := usage[t]
		for i := 0; i < n; i++ {
			if u.Counts[i] != 0 {
				continue
			}
			res := tr.Predict(rowAt(X, i))
			sum[i] += res.Mean[0]
			ct[i]++
		}
	}

	rss, tss, mean := 0.0, 0.0, 0.0
	scored := 0
	for i := range Y {
		if ct[i] < 1 {
			continue
		}
		predVal := sum[i] / float64(ct[i])
		d := Y[i][0] - predVal
		rss += d * d

		scored++
		d = Y[i][0] - mean
		mean += d / float64(scored)
		tss += d * (Y[i][0] - mean)
	}

	if scored < 1 {
		return
	}
	f.MSE = rss / float64(scored)
	if tss > 0 {
		f.RSquared = 1.0 - rss/tss
	}
}

// Predict returns the forest-averaged mean per row, and per-output
// variance when StoreVariance was set (nil otherwise). Rows are scored
// concurrently up to f.NWorkers.
func (f *RegressionForest) Predict(X [][]float64) (mean [][]float64, variance [][]float64, err error) {
	if len(f.Trees) == 0 {
		return nil, nil, errs.New(errs.NotInitialized, "predict called before fit")
	}
	n := rowCount(X)
	mean = make([][]float64, n)
	if f.StoreVariance {
		variance = make([][]float64, n)
	}
	weights := make([]float64, len(f.Trees))
	for t := range weights {
		weights[t] = 1.0
	}

	forEachRow(n, f.effectiveWorkers(), func(i int) {
		row := rowAt(X, i)
		results := make([]leaf.Result, len(f.Trees))
		for t, tr := range f.Trees {
			results[t] = tr.Predict(row)
		}
		_, _, m, v := leaf.Aggregate(results, weights, false)
		mean[i] = m
		if f.StoreVariance {
			variance[i] = v
		}
	})
	return mean, variance, nil
}
