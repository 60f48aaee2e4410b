package forest

import (
	"math/rand"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/classner/forpy-go/internal/desk"
	"github.com/classner/forpy-go/internal/errs"
	"github.com/classner/forpy-go/internal/impurity"
	"github.com/classner/forpy-go/internal/leaf"
	"github.com/classner/forpy-go/internal/pool"
	"github.com/classner/forpy-go/internal/provider"
	"github.com/classner/forpy-go/internal/split"
	"github.com/classner/forpy-go/tree"
)

// ClassificationForest is an ensemble of trees each voting a class
// distribution.
type ClassificationForest struct {
	NTrees        int
	MaxDepth      int
	Msal          int
	Msan          int
	FTry          int
	Autoscale     bool
	GainThreshold float64
	Policy        split.Policy
	// Measure is fit-time state only: the textual wire format cannot
	// restore an interface value, so it is omitted there and left nil
	// after a JSON load (prediction never consults it).
	Measure    impurity.Measure `json:"-"`
	Seed       int64
	NWorkers   int
	ComputeOOB bool

	Classes  []string
	NClasses int
	Trees    []*tree.Tree

	ConfusionMatrix [][]int
	Accuracy        float64
	VarImp          []float64
}

func (f *ClassificationForest) setNTrees(n int)                   { f.NTrees = n }
func (f *ClassificationForest) setMaxDepth(n int)                 { f.MaxDepth = n }
func (f *ClassificationForest) setMsal(n int)                     { f.Msal = n }
func (f *ClassificationForest) setMsan(n int)                     { f.Msan = n }
func (f *ClassificationForest) setFTry(n int)                     { f.FTry = n }
func (f *ClassificationForest) setAutoscale(b bool)               { f.Autoscale = b }
func (f *ClassificationForest) setGainThreshold(g float64)        { f.GainThreshold = g }
func (f *ClassificationForest) setPolicy(p split.Policy)          { f.Policy = p }
func (f *ClassificationForest) setSeed(s int64)                   { f.Seed = s }
func (f *ClassificationForest) setNWorkers(n int)                 { f.NWorkers = n }
func (f *ClassificationForest) setComputeOOB()                    { f.ComputeOOB = true }
func (f *ClassificationForest) setMeasure(m impurity.Measure)     { f.Measure = m }

// NewClassificationForest builds a forest with sensible defaults
// (NTrees=10, Msal=1, Msan=2, Autoscale features, Gini impurity, EXACT
// split search), overridden by options.
func NewClassificationForest(options ...func(Configer)) (*ClassificationForest, error) {
	f := &ClassificationForest{
		NTrees:        10,
		Msal:          1,
		Msan:          2,
		Autoscale:     true,
		GainThreshold: impurity.EpsGain,
		Policy:        split.Exact(),
		Measure:       impurity.Gini{},
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

func (f *ClassificationForest) validate() error {
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

// Fit grows f.NTrees trees from X (feature-major columns, length n each)
// and Y (original class labels, one per sample). Observed labels are
// compacted to dense codes before training; Predict maps them back.
func (f *ClassificationForest) Fit(X [][]float64, Y []string, bootstrap bool, weights []float64) error {
	if len(X) == 0 || len(Y) == 0 {
		return errs.New(errs.Empty, "fit requires non-empty X and Y")
	}
	n := len(Y)
	X = f.fixShape(X, n)

	classes := make([]string, 0)
	seen := make(map[string]int)
	codes := make([]int, n)
	for i, label := range Y {
		code, ok := seen[label]
		if !ok {
			code = len(classes)
			seen[label] = code
			classes = append(classes, label)
		}
		codes[i] = code
	}
	f.Classes = classes
	f.NClasses = len(classes)

	root, err := provider.NewClassification(X, codes, f.NClasses, weights)
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
		tr.Decider = defaultDeciderConfig(f.FTry, f.Autoscale, f.Msal, f.GainThreshold, f.Policy, f.Measure)
		trees[t] = tr
		desks[t] = desk.New(f.Seed^int64(t), n, featDim, f.NClasses)

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
		f.computeOOB(X, codes, usage)
	}

	return nil
}

func (f *ClassificationForest) fixShape(X [][]float64, n int) [][]float64 {
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

func (f *ClassificationForest) effectiveWorkers() int {
	if f.NWorkers < 1 {
		return 1
	}
	return f.NWorkers
}

func (f *ClassificationForest) computeVarImp(featDim int) {
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

// computeOOB accumulates, for every sample, class votes from only the
// trees that did not draw it (usage.Counts[i] == 0), then reports the
// confusion matrix and accuracy of the out-of-bag vote.
func (f *ClassificationForest) computeOOB(X [][]float64, codes []int, usage []provider.UsageMap) {
	n := len(codes)
	votes := make([][]int, n)
	for i := range votes {
		votes[i] = make([]int, f.NClasses)
	}

	for t, tr := range f.Trees {
		u := usage[t]
		for i := 0; i < n; i++ {
			if u.Counts[i] != 0 {
				continue
			}
			res := tr.Predict(rowAt(X, i))
			best := 0
			for c := 1; c < len(res.Hist); c++ {
				if res.Hist[c] > res.Hist[best] {
					best = c
				}
			}
			votes[i][best]++
		}
	}

	confMat := make([][]int, f.NClasses)
	for i := range confMat {
		confMat[i] = make([]int, f.NClasses)
	}
	correct := 0
	scored := 0
	for i, actual := range codes {
		maxVotes, maxClass := 0, -1
		for c, v := range votes[i] {
			if v > maxVotes {
				maxVotes = v
				maxClass = c
			}
		}
		if maxClass == -1 {
			continue // never out-of-bag (unlikely with a reasonable n_trees)
		}
		confMat[actual][maxClass]++
		scored++
		if maxClass == actual {
			correct++
		}
	}

	f.ConfusionMatrix = confMat
	if scored > 0 {
		f.Accuracy = float64(correct) / float64(scored)
	}
}

// PredictProba returns, for each row of X, the forest-averaged class
// distribution over f.Classes. Rows are scored concurrently up to
// f.NWorkers, traversal being read-only.
func (f *ClassificationForest) PredictProba(X [][]float64) ([][]float64, error) {
	if len(f.Trees) == 0 {
		return nil, errs.New(errs.NotInitialized, "predict called before fit")
	}
	n := rowCount(X)
	out := make([][]float64, n)
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
		hist, _, _, _ := leaf.Aggregate(results, weights, true)
		out[i] = hist
	})
	return out, nil
}

// forEachRow runs fn(i) for i in [0, n), fanning rows out over up to
// workers goroutines when workers > 1.
func forEachRow(n, workers int, fn func(i int)) {
	if workers <= 1 || n < 2 {
		for i := 0; i < n; i++ {
			fn(i)
		}
		return
	}
	g := new(errgroup.Group)
	g.SetLimit(workers)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			fn(i)
			return nil
		})
	}
	g.Wait() // fn never errors
}

// Predict returns the argmax class label per row.
func (f *ClassificationForest) Predict(X [][]float64) ([]string, error) {
	probs, err := f.PredictProba(X)
	if err != nil {
		return nil, err
	}
	labels := make([]string, len(probs))
	for i, hist := range probs {
		best := 0
		for c := 1; c < len(hist); c++ {
			if hist[c] > hist[best] {
				best = c
			}
		}
		labels[i] = f.Classes[best]
	}
	return labels, nil
}

func rowCount(X [][]float64) int {
	if len(X) == 0 {
		return 0
	}
	return len(X[0])
}

func rowAt(X [][]float64, i int) []float64 {
	row := make([]float64, len(X))
	for j, col := range X {
		row[j] = col[i]
	}
	return row
}
