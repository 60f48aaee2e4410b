// Package split implements the threshold optimizer: for a fixed feature
// column and a node's sample-ID subrange, find the best axis-aligned split
// under a configurable impurity criterion.
//
// The optimizer materializes the feature values for the subrange, sorts ids
// and values in lockstep, and sweeps candidate split positions left to
// right, maintaining running left/right class histograms (classification)
// or per-output weighted sums (regression) so each candidate is scored in
// O(1) incremental work.
package split

import (
	"math"
	"sort"

	"github.com/classner/forpy-go/internal/impurity"
)

// EpsFeat is the feature-value tie tolerance: two values closer than this
// are treated as equal and cannot be separated by a threshold.
const EpsFeat = impurity.EpsFeat

// EpsGain is the minimum useful gain.
const EpsGain = impurity.EpsGain

// gainRecomputeInterval bounds how many incremental updates the fast Gini
// path accumulates before a full recomputation, guarding against
// accumulated rounding error on large nodes.
const gainRecomputeInterval = 5000

// Policy selects how candidate thresholds are chosen for a feature.
type Policy struct {
	Random bool
	M      int // number of thresholds to draw when Random is true
}

// Exact sweeps every admissible split position.
func Exact() Policy { return Policy{} }

// Random draws at most m thresholds uniformly over the feature's range.
func Random(m int) Policy { return Policy{Random: true, M: m} }

// Result is the outcome of optimizing one feature at one node.
type Result struct {
	Valid      bool
	Constant   bool // feature range <= EpsFeat over the node: useless here and in every descendant
	SplitIndex int  // ids[:SplitIndex] left, ids[SplitIndex:] right
	Threshold  float64
	Gain       float64
}

// invalid is the zero-gain, not-found result.
var invalid = Result{}

// constant marks a feature whose values are indistinguishable at this node.
var constant = Result{Constant: true}

// SortByFeature sorts ids (and, in lockstep, vals) ascending by vals,
// mutating both slices in place. vals must already hold the materialized
// feature values for ids, same length and order.
func SortByFeature(vals []float64, ids []int) {
	n := len(ids)
	maxDepth := 0
	for i := n; i > 0; i >>= 1 {
		maxDepth++
	}
	maxDepth *= 2
	quickSort(vals, ids, 0, n, maxDepth)
}

// Classification finds the best split of ids on a single feature column for
// a classification node.
//
// vals must be the materialized, NOT YET sorted feature values for ids
// (same order); if alreadySorted is true, both vals and ids are assumed
// pre-sorted ascending by feature value (the one-feature case descending
// from a parent sorted on the same feature) and are used as-is.
//
// classOf(i) returns the dense class code of sample id i; weightOf(i)
// returns its weight. classCtL/classCtR are scratch buffers of length
// nClasses, reused across calls by the caller.
func Classification(vals []float64, ids []int, alreadySorted bool,
	classOf func(id int) int, weightOf func(id int) float64, nClasses int,
	measure impurity.Measure, policy Policy, msal int, gainThreshold float64,
	classCtL, classCtR []float64, rng func() float64) Result {

	n := len(ids)
	if n < 2*msal {
		return invalid
	}

	if !alreadySorted {
		SortByFeature(vals, ids)
	}

	if vals[n-1]-vals[0] <= EpsFeat {
		return constant
	}

	for i := range classCtL {
		classCtL[i] = 0
	}
	for i := range classCtR {
		classCtR[i] = 0
	}
	total := 0.0
	for _, id := range ids {
		w := weightOf(id)
		classCtR[classOf(id)] += w
		total += w
	}
	if total <= 0 {
		return invalid
	}
	fullImpurity := measure.Evaluate(classCtR, total)

	_, isGini := measure.(impurity.Gini)

	positions := candidatePositions(vals, n, msal, policy, rng)

	var (
		best      = invalid
		lastMoved int
		sumSqL    float64
		sumSqR    = sumSquares(classCtR)
		sinceFull int
		nLeft     float64
		nRightTot = total
	)

	for _, i := range positions {
		if i <= lastMoved {
			continue
		}
		for j := lastMoved; j < i; j++ {
			id := ids[j]
			w := weightOf(id)
			c := classOf(id)

			if isGini {
				sumSqL += 2*w*classCtL[c] + w*w
				sumSqR += -2*w*classCtR[c] + w*w
			}
			classCtL[c] += w
			classCtR[c] -= w
			nLeft += w
			nRightTot -= w
		}
		lastMoved = i
		sinceFull++

		if nLeft < float64(msal) || nRightTot < float64(msal) {
			continue
		}
		if vals[i]-vals[i-1] <= EpsFeat {
			continue
		}

		var iL, iR float64
		if isGini && sinceFull < gainRecomputeInterval {
			iL = 1.0 - sumSqL/(nLeft*nLeft)
			iR = 1.0 - sumSqR/(nRightTot*nRightTot)
		} else {
			iL = measure.Evaluate(classCtL, nLeft)
			iR = measure.Evaluate(classCtR, nRightTot)
			if isGini {
				sumSqL = sumSquares(classCtL)
				sumSqR = sumSquares(classCtR)
				sinceFull = 0
			}
		}

		gain := fullImpurity - (nLeft/total)*iL - (nRightTot/total)*iR

		if gain > best.Gain || !best.Valid {
			thresh := midpoint(vals[i-1], vals[i])
			best = Result{Valid: true, SplitIndex: i, Threshold: thresh, Gain: gain}
		}
	}

	if !best.Valid || best.Gain < gainThreshold {
		return invalid
	}
	return best
}

// Regression finds the best split of ids on a single feature column for a
// regression node. The per-position score is the variance-proxy gain
// H - (w_L/w)H_L - (w_R/w)H_R, which equals
// (||S_L||^2/w_L + ||S_R||^2/w_R - ||S||^2/w) / w and is monotone-equivalent
// to MSE reduction, computed from running weighted sums.
func Regression(vals []float64, ids []int, alreadySorted bool,
	annotOf func(id int) []float64, weightOf func(id int) float64, k int,
	policy Policy, msal int, gainThreshold float64, rng func() float64) Result {

	n := len(ids)
	if n < 2*msal {
		return invalid
	}

	if !alreadySorted {
		SortByFeature(vals, ids)
	}

	if vals[n-1]-vals[0] <= EpsFeat {
		return constant
	}

	sumY := make([]float64, k)
	sumYY := make([]float64, k)
	total := 0.0
	for _, id := range ids {
		w := weightOf(id)
		y := annotOf(id)
		total += w
		for o := 0; o < k; o++ {
			sumY[o] += w * y[o]
			sumYY[o] += w * y[o] * y[o]
		}
	}
	if total <= 0 {
		return invalid
	}
	fullImpurity := impurity.VarianceProxy(sumY, sumYY, total)

	sL := make([]float64, k)
	ssL := make([]float64, k)
	sR := append([]float64(nil), sumY...)
	ssR := append([]float64(nil), sumYY...)

	positions := candidatePositions(vals, n, msal, policy, rng)

	var (
		best      = invalid
		lastMoved int
		nLeft     float64
		nRight    = total
	)

	for _, i := range positions {
		if i <= lastMoved {
			continue
		}
		for j := lastMoved; j < i; j++ {
			id := ids[j]
			w := weightOf(id)
			y := annotOf(id)
			for o := 0; o < k; o++ {
				sL[o] += w * y[o]
				ssL[o] += w * y[o] * y[o]
				sR[o] -= w * y[o]
				ssR[o] -= w * y[o] * y[o]
			}
			nLeft += w
			nRight -= w
		}
		lastMoved = i

		if nLeft < float64(msal) || nRight < float64(msal) {
			continue
		}
		if vals[i]-vals[i-1] <= EpsFeat {
			continue
		}

		iL := impurity.VarianceProxy(sL, ssL, nLeft)
		iR := impurity.VarianceProxy(sR, ssR, nRight)

		gain := fullImpurity - (nLeft/total)*iL - (nRight/total)*iR

		if gain > best.Gain || !best.Valid {
			thresh := midpoint(vals[i-1], vals[i])
			best = Result{Valid: true, SplitIndex: i, Threshold: thresh, Gain: gain}
		}
	}

	if !best.Valid || best.Gain < gainThreshold {
		return invalid
	}
	return best
}

func sumSquares(hist []float64) float64 {
	s := 0.0
	for _, c := range hist {
		s += c * c
	}
	return s
}

// midpoint is the candidate threshold between two consecutive sorted
// feature values, falling back to the smaller value if floating-point
// rounding makes the midpoint equal the larger one, so that `<= threshold`
// still separates the pair.
func midpoint(lo, hi float64) float64 {
	m := (lo + hi) / 2.0
	if m >= hi {
		return lo
	}
	return m
}

// candidatePositions returns the sorted-subrange indices (within [1, n-1])
// to evaluate as split points, honoring the exact-vs-random policy. Under
// Random, the draw count is capped by the subrange size and by the number
// of EpsFeat-distinguishable values in the feature's range.
func candidatePositions(vals []float64, n, msal int, policy Policy, rng func() float64) []int {
	lo, hi := msal, n-msal
	if lo < 1 {
		lo = 1
	}
	if hi > n-1 {
		hi = n - 1
	}
	if hi < lo {
		return nil
	}

	if !policy.Random {
		positions := make([]int, 0, hi-lo+1)
		for i := lo; i <= hi; i++ {
			positions = append(positions, i)
		}
		return positions
	}

	minV, maxV := vals[0], vals[n-1]
	span := maxV - minV
	maxDistinct := int(math.Ceil(span / EpsFeat))
	m := policy.M
	if m > n {
		m = n
	}
	if m > maxDistinct {
		m = maxDistinct
	}
	if m < 1 {
		m = 1
	}

	thresholds := make([]float64, m)
	for i := range thresholds {
		thresholds[i] = minV + rng()*span
	}
	sort.Float64s(thresholds)

	positions := make([]int, 0, m)
	idx := 1
	for _, t := range thresholds {
		for idx < n && vals[idx] <= t {
			idx++
		}
		if idx < lo {
			continue
		}
		if idx > hi {
			break
		}
		positions = append(positions, idx)
	}
	return positions
}
