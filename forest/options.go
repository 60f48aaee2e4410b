// Package forest implements the forest-level API: construction, parallel
// per-tree fitting over the worker pool, prediction aggregation, OOB
// scoring, and variable importance.
package forest

import (
	"github.com/classner/forpy-go/internal/decider"
	"github.com/classner/forpy-go/internal/impurity"
	"github.com/classner/forpy-go/internal/split"
)

// Configer is implemented by both ClassificationForest and
// RegressionForest so the option funcs below apply to either.
type Configer interface {
	setNTrees(int)
	setMaxDepth(int)
	setMsal(int)
	setMsan(int)
	setFTry(int)
	setAutoscale(bool)
	setGainThreshold(float64)
	setPolicy(split.Policy)
	setSeed(int64)
	setNWorkers(int)
	setComputeOOB()
	setMeasure(impurity.Measure)
}

// NTrees sets the number of trees in the forest (at least 2).
func NTrees(n int) func(Configer) { return func(c Configer) { c.setNTrees(n) } }

// MaxDepth bounds tree depth; 0 means unbounded.
func MaxDepth(n int) func(Configer) { return func(c Configer) { c.setMaxDepth(n) } }

// MinSamplesLeaf sets msal, the minimum sample count admissible at a leaf.
func MinSamplesLeaf(n int) func(Configer) { return func(c Configer) { c.setMsal(n) } }

// MinSamplesNode sets msan, the minimum sample count for a node to be
// eligible for splitting (must be >= 2*msal).
func MinSamplesNode(n int) func(Configer) { return func(c Configer) { c.setMsan(n) } }

// NValidFeatures sets f_try, the number of features drawn per node; 0
// resolves to "use all" unless Autoscale is also set.
func NValidFeatures(n int) func(Configer) { return func(c Configer) { c.setFTry(n) } }

// Autoscale requests f_try = ceil(sqrt(d)); mutually exclusive with a
// nonzero NValidFeatures.
func Autoscale() func(Configer) { return func(c Configer) { c.setAutoscale(true) } }

// GainThreshold sets the minimum useful gain for a split to be accepted.
func GainThreshold(g float64) func(Configer) { return func(c Configer) { c.setGainThreshold(g) } }

// SplitPolicy selects EXACT or RANDOM(m) threshold search.
func SplitPolicy(p split.Policy) func(Configer) { return func(c Configer) { c.setPolicy(p) } }

// RandomSeed seeds every per-tree desk RNG (XORed with the tree index).
func RandomSeed(seed int64) func(Configer) { return func(c Configer) { c.setSeed(seed) } }

// NumWorkers bounds how many trees grow concurrently.
func NumWorkers(n int) func(Configer) { return func(c Configer) { c.setNWorkers(n) } }

// ComputeOOB enables out-of-bag scoring during Fit.
func ComputeOOB() func(Configer) { return func(c Configer) { c.setComputeOOB() } }

// Impurity sets the classification impurity measure; a no-op on
// RegressionForest, which always uses the variance-proxy criterion.
func Impurity(m impurity.Measure) func(Configer) { return func(c Configer) { c.setMeasure(m) } }

func defaultDeciderConfig(ftry int, autoscale bool, msal int, gainThreshold float64, policy split.Policy, measure impurity.Measure) decider.Config {
	return decider.Config{
		FTry:          ftry,
		Autoscale:     autoscale,
		Msal:          msal,
		GainThreshold: gainThreshold,
		Policy:        policy,
		Measure:       measure,
	}
}
