// Package decider implements the per-node decision logic: draw a feature
// subset via Fisher-Yates, delegate each draw to the threshold optimizer,
// and decide whether the node becomes a leaf or a split.
//
// Features proven constant at a node are swapped into a known-invalid
// prefix of the desk's feature permutation; each work item carries the
// prefix length so descendants skip the draw entirely, while sibling
// subtrees (whose own subranges may still vary on those features) keep
// considering them.
package decider

import (
	"math"

	"github.com/classner/forpy-go/internal/desk"
	"github.com/classner/forpy-go/internal/impurity"
	"github.com/classner/forpy-go/internal/provider"
	"github.com/classner/forpy-go/internal/split"
)

// PurityEps is the full-node-impurity floor below which a node is declared
// pure and becomes a leaf without attempting any split.
const PurityEps = 1e-9

// Config holds the decider's per-forest parameters.
type Config struct {
	FTry          int // 0 resolves to d, or sqrt(d) under Autoscale
	Autoscale     bool
	Msal          int
	GainThreshold float64
	Policy        split.Policy
	// Measure is classification-only and fit-time-only; omitted from the
	// textual wire format (an interface value cannot be restored from JSON).
	Measure impurity.Measure `json:"-"`
}

// Outcome is the result of one make_node call.
type Outcome struct {
	Leaf       bool
	FeatureIdx int
	Threshold  float64
	SplitIndex int     // ids[:SplitIndex] left, ids[SplitIndex:] right, relative to the ids slice passed in
	Gain       float64 // the winning feature's impurity gain, for variable importance
	NInvalid   int     // known-invalid prefix length the node's children inherit
}

// resolveFTry turns the configured f_try into a concrete feature-subset size.
func (c Config) resolveFTry(d int) int {
	switch {
	case c.FTry > 0:
		if c.FTry > d {
			return d
		}
		return c.FTry
	case c.Autoscale:
		return int(math.Ceil(math.Sqrt(float64(d))))
	default:
		return d
	}
}

// MakeNode decides a classification node. ids is the node's sample-ID
// subrange; on a split outcome, ids is reordered in place (sorted by the
// winning feature) so that ids[:SplitIndex] is the left child's subrange
// and ids[SplitIndex:] the right child's. nInvalid is the known-invalid
// prefix length inherited from the node's parent.
func MakeNode(p *provider.Provider, ids []int, d *desk.Desk, nClasses int, cfg Config, nInvalid int) Outcome {
	leafOut := Outcome{Leaf: true, NInvalid: nInvalid}
	if len(ids) < 2*cfg.Msal {
		return leafOut
	}

	full := make([]float64, nClasses)
	total := 0.0
	for _, id := range ids {
		w := p.WeightAt(id)
		full[p.ClassAt(id)] += w
		total += w
	}
	if total <= 0 {
		return leafOut
	}
	if cfg.Measure.Evaluate(full, total) <= PurityEps {
		return leafOut
	}

	dim := p.FeatDim()
	fTry := cfg.resolveFTry(dim)

	var best split.Result
	bestFeat := -1
	remaining := dim
	validAttempts := 0
	var constants []int

	rngFn := func() float64 { return d.RNG.Float64() }

	for remaining > nInvalid && validAttempts < fTry {
		j := nInvalid + d.RNG.Intn(remaining-nInvalid)
		featIdx := d.Perm[j]
		d.Perm[j], d.Perm[remaining-1] = d.Perm[remaining-1], d.Perm[j]
		remaining--

		vals, idsCopy := materialize(p, ids, d, featIdx)

		res := split.Classification(vals, idsCopy, false,
			p.ClassAt, p.WeightAt, nClasses, cfg.Measure, cfg.Policy,
			cfg.Msal, cfg.GainThreshold, d.ClassCtL, d.ClassCtR, rngFn)

		if res.Constant {
			constants = append(constants, featIdx)
			continue
		}
		if !res.Valid {
			continue
		}
		validAttempts++
		if bestFeat == -1 || res.Gain > best.Gain {
			best = res
			bestFeat = featIdx
		}
	}

	nInvalid = markInvalid(d, constants, nInvalid, dim)

	if bestFeat == -1 {
		return Outcome{Leaf: true, NInvalid: nInvalid}
	}

	commitSplit(p, ids, d, bestFeat)

	return Outcome{FeatureIdx: bestFeat, Threshold: best.Threshold, SplitIndex: best.SplitIndex, Gain: best.Gain, NInvalid: nInvalid}
}

// MakeRegressionNode is MakeNode's regression counterpart.
func MakeRegressionNode(p *provider.Provider, ids []int, d *desk.Desk, k int, cfg Config, nInvalid int) Outcome {
	leafOut := Outcome{Leaf: true, NInvalid: nInvalid}
	if len(ids) < 2*cfg.Msal {
		return leafOut
	}

	sumY := make([]float64, k)
	sumYY := make([]float64, k)
	total := 0.0
	for _, id := range ids {
		w := p.WeightAt(id)
		y := p.RegressionAt(id)
		total += w
		for o := 0; o < k; o++ {
			sumY[o] += w * y[o]
			sumYY[o] += w * y[o] * y[o]
		}
	}
	if total <= 0 {
		return leafOut
	}
	if impurity.VarianceProxy(sumY, sumYY, total) <= PurityEps {
		return leafOut
	}

	dim := p.FeatDim()
	fTry := cfg.resolveFTry(dim)

	var best split.Result
	bestFeat := -1
	remaining := dim
	validAttempts := 0
	var constants []int

	rngFn := func() float64 { return d.RNG.Float64() }

	for remaining > nInvalid && validAttempts < fTry {
		j := nInvalid + d.RNG.Intn(remaining-nInvalid)
		featIdx := d.Perm[j]
		d.Perm[j], d.Perm[remaining-1] = d.Perm[remaining-1], d.Perm[j]
		remaining--

		vals, idsCopy := materialize(p, ids, d, featIdx)

		res := split.Regression(vals, idsCopy, false,
			p.RegressionAt, p.WeightAt, k, cfg.Policy, cfg.Msal, cfg.GainThreshold, rngFn)

		if res.Constant {
			constants = append(constants, featIdx)
			continue
		}
		if !res.Valid {
			continue
		}
		validAttempts++
		if bestFeat == -1 || res.Gain > best.Gain {
			best = res
			bestFeat = featIdx
		}
	}

	nInvalid = markInvalid(d, constants, nInvalid, dim)

	if bestFeat == -1 {
		return Outcome{Leaf: true, NInvalid: nInvalid}
	}

	commitSplit(p, ids, d, bestFeat)

	return Outcome{FeatureIdx: bestFeat, Threshold: best.Threshold, SplitIndex: best.SplitIndex, Gain: best.Gain, NInvalid: nInvalid}
}

// materialize copies the node's ids and their feature-j values into the
// desk's scratch buffers so the optimizer can sort them without disturbing
// the node's real subrange.
func materialize(p *provider.Provider, ids []int, d *desk.Desk, featIdx int) ([]float64, []int) {
	col := p.FeatureColumn(featIdx)
	vals := d.EnsureFeatBuf(len(ids))
	idsCopy := d.EnsureIDBuf(len(ids))
	for i, id := range ids {
		vals[i] = col[id]
		idsCopy[i] = id
	}
	return vals, idsCopy
}

// markInvalid swaps each feature proved constant into the permutation's
// known-invalid prefix and returns the grown prefix length.
func markInvalid(d *desk.Desk, constants []int, nInvalid, dim int) int {
	for _, feat := range constants {
		for j := nInvalid; j < dim; j++ {
			if d.Perm[j] == feat {
				d.Perm[j], d.Perm[nInvalid] = d.Perm[nInvalid], d.Perm[j]
				nInvalid++
				break
			}
		}
	}
	return nInvalid
}

// commitSplit re-sorts the node's real ids slice (not the scratch copy) by
// the winning feature, so the caller's own slice is left partitioned in
// place: ids[:SplitIndex] left, ids[SplitIndex:] right. Sorting is not
// stable, but left/right membership only depends on the value ordering, so
// the partition matches the optimizer's SplitIndex.
func commitSplit(p *provider.Provider, ids []int, d *desk.Desk, featIdx int) {
	col := p.FeatureColumn(featIdx)
	vals := d.EnsureFeatBuf(len(ids))
	for i, id := range ids {
		vals[i] = col[id]
	}
	split.SortByFeature(vals, ids)
}

// Decide reports which branch x takes given the feature index and threshold
// recorded at a split node.
func Decide(x []float64, featureIdx int, threshold float64) (goLeft bool) {
	return x[featureIdx] <= threshold
}
