// Package provider implements the data-provider and bootstrap sampling
// layer: ownership of the sample/annotation matrices, per-feature column
// access, and per-tree sub-provider spawning.
package provider

import (
	"math/rand"

	"github.com/classner/forpy-go/internal/errs"
)

// Provider owns (or borrows) the sample matrix X and annotation matrix Y and
// exposes per-feature columns, per-sample weights, and the mutable
// sample-ID buffer a single tree grows against. The zero value is not
// usable; construct with NewClassification or NewRegression.
type Provider struct {
	x          [][]float64 // feature-major: x[j] is a contiguous column of length n
	n          int
	annotClass []int       // dense class codes, length n; nil for regression
	annotReg   [][]float64 // length n, each row length k; nil for classification
	nClasses   int
	k          int // annotation dim (1 for single-output regression)
	weights    []float64
	ids        []int
}

// NewClassification builds the root provider for a classification forest.
// x must be feature-major (len(x) == number of features, each column length
// n); classCodes must already be dense-coded 0..C-1 (as
// forest.ClassificationForest.Fit compacts them).
func NewClassification(x [][]float64, classCodes []int, nClasses int, weights []float64) (*Provider, error) {
	if len(x) == 0 || len(classCodes) == 0 {
		return nil, errs.New(errs.Empty, "classification provider requires non-empty X and Y")
	}
	n := len(classCodes)
	for j, col := range x {
		if len(col) != n {
			return nil, errs.New(errs.Shape, "feature column %d has length %d, want %d", j, len(col), n)
		}
	}
	if weights != nil && len(weights) != n {
		return nil, errs.New(errs.Shape, "weights length %d, want %d", len(weights), n)
	}
	ids := make([]int, n)
	for i := range ids {
		ids[i] = i
	}
	return &Provider{x: x, n: n, annotClass: classCodes, nClasses: nClasses, k: 1, weights: weights, ids: ids}, nil
}

// NewRegression builds the root provider for a regression forest. y is
// row-major, shape n x k.
func NewRegression(x [][]float64, y [][]float64, weights []float64) (*Provider, error) {
	if len(x) == 0 || len(y) == 0 {
		return nil, errs.New(errs.Empty, "regression provider requires non-empty X and Y")
	}
	n := len(y)
	k := len(y[0])
	if k == 0 {
		return nil, errs.New(errs.Shape, "annotation dimension is 0")
	}
	for j, col := range x {
		if len(col) != n {
			return nil, errs.New(errs.Shape, "feature column %d has length %d, want %d", j, len(col), n)
		}
	}
	for i, row := range y {
		if len(row) != k {
			return nil, errs.New(errs.Shape, "annotation row %d has length %d, want %d", i, len(row), k)
		}
	}
	if weights != nil && len(weights) != n {
		return nil, errs.New(errs.Shape, "weights length %d, want %d", len(weights), n)
	}
	ids := make([]int, n)
	for i := range ids {
		ids[i] = i
	}
	return &Provider{x: x, n: n, annotReg: y, k: k, weights: weights, ids: ids}, nil
}

func (p *Provider) NSamples() int  { return p.n }
func (p *Provider) FeatDim() int   { return len(p.x) }
func (p *Provider) AnnotDim() int  { return p.k }
func (p *Provider) NClasses() int  { return p.nClasses }
func (p *Provider) IsRegression() bool { return p.annotReg != nil }

// FeatureColumn returns the stride-1 slice of length n for feature j.
func (p *Provider) FeatureColumn(j int) []float64 { return p.x[j] }

// ClassAt returns the dense class code for sample i (classification only).
func (p *Provider) ClassAt(i int) int { return p.annotClass[i] }

// RegressionAt returns the length-k annotation row for sample i (regression only).
func (p *Provider) RegressionAt(i int) []float64 { return p.annotReg[i] }

// WeightAt returns the weight of sample i, defaulting to 1 when this
// provider carries no explicit weight vector.
func (p *Provider) WeightAt(i int) float64 {
	if p.weights == nil {
		return 1.0
	}
	return p.weights[i]
}

// InitialSampleList returns the mutable permutation of sample IDs owned by
// the tree grown against this provider. Callers partition this slice in
// place during training.
func (p *Provider) InitialSampleList() []int { return p.ids }

// Row assembles a dense feature vector for sample i, used at prediction time.
func (p *Provider) Row(i int) []float64 {
	row := make([]float64, len(p.x))
	for j, col := range p.x {
		row[j] = col[i]
	}
	return row
}

// UsageMap is a per-tree bootstrap draw: Counts[i] is how many times sample
// i was drawn (0 excludes it), becoming that sample's weight in the tree.
type UsageMap struct {
	Counts []int
}

// Bootstrap draws n indices uniformly with replacement and tallies
// occurrences. Each count is marginally Binomial(n, 1/n); the counts are
// not independent and always sum to n.
func Bootstrap(n int, rng *rand.Rand) UsageMap {
	counts := make([]int, n)
	for i := 0; i < n; i++ {
		counts[rng.Intn(n)]++
	}
	return UsageMap{Counts: counts}
}

// Identity returns a usage map with every sample drawn exactly once, used
// when the caller disables bootstrap.
func Identity(n int) UsageMap {
	counts := make([]int, n)
	for i := range counts {
		counts[i] = 1
	}
	return UsageMap{Counts: counts}
}

// SpawnTreeProviders produces one lightweight sub-provider per usage map,
// sharing the underlying X/Y read-only. Each sub-provider's weight at sample i is
// usage.Counts[i] times the root provider's own weight at i (identity when
// the root carries no explicit weights); its sample-ID list holds only the
// indices with non-zero resulting weight.
func (p *Provider) SpawnTreeProviders(usage []UsageMap) []*Provider {
	out := make([]*Provider, len(usage))
	for t, u := range usage {
		w := make([]float64, p.n)
		var ids []int
		for i := 0; i < p.n; i++ {
			if u.Counts[i] == 0 {
				continue
			}
			w[i] = float64(u.Counts[i]) * p.WeightAt(i)
			ids = append(ids, i)
		}
		out[t] = &Provider{
			x:          p.x,
			n:          p.n,
			annotClass: p.annotClass,
			annotReg:   p.annotReg,
			nClasses:   p.nClasses,
			k:          p.k,
			weights:    w,
			ids:        ids,
		}
	}
	return out
}
