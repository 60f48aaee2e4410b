// Package tree implements a single decision tree: a node table, grown as
// ids are allocated, addressed by monotonically allocated ids instead of pointer-linked
// nodes, grown via single-threaded DFS over (lo, hi, node_id, depth) work
// items that own half-open subranges of the tree's sample-ID buffer.
package tree

import (
	"sync/atomic"

	"github.com/classner/forpy-go/internal/decider"
	"github.com/classner/forpy-go/internal/desk"
	"github.com/classner/forpy-go/internal/leaf"
	"github.com/classner/forpy-go/internal/provider"
)

// Node is one entry of the flat node table. Left == Right encodes a leaf:
// the shared value indexes Leafs. Otherwise it is a split node:
// x[FeatureIdx] <= Threshold goes to Left, else Right.
type Node struct {
	FeatureIdx int32
	Threshold  float64
	Left       int32
	Right      int32
}

// Tree owns the node table, the leaf side-table, and the hyperparameters
// that govern its own growth.
type Tree struct {
	Nodes []Node
	Leafs []leaf.Result

	MaxDepth int // 0 means unbounded
	Msal     int
	Msan     int

	IsRegression bool
	NClasses     int
	AnnotDim     int
	UseLinear    bool

	Decider     decider.Config
	LinearCfg   leaf.LinearConfig
	WithVarLeaf bool // regression only: whether leaves also store variance

	// FeatureImportance accumulates gain * sample count per feature across
	// every split this tree committed, the raw material for forest-level
	// variable importance.
	FeatureImportance []float64

	nextID int32 // atomic; root pre-allocated at id 0, next_id starts at 1
}

type workItem struct {
	lo, hi   int
	id       int32
	depth    int
	nInvalid int // known-invalid feature-permutation prefix inherited from the parent
}

// New constructs an empty tree sized for featDim features; msan is clamped
// to at least 2*msal.
func New(featDim int, msal, msan, maxDepth int) *Tree {
	if msan < 2*msal {
		msan = 2 * msal
	}
	return &Tree{
		Msal:              msal,
		Msan:              msan,
		MaxDepth:          maxDepth,
		FeatureImportance: make([]float64, featDim),
		nextID:            1,
	}
}

func (t *Tree) allocateID() int32 {
	id := atomic.AddInt32(&t.nextID, 1) - 1
	for int32(len(t.Nodes)) <= id {
		t.Nodes = append(t.Nodes, Node{})
	}
	return id
}

// Fit grows the tree against p's sample-ID subrange using d as scratch.
func (t *Tree) Fit(p *provider.Provider, d *desk.Desk) error {
	t.NClasses = p.NClasses()
	t.AnnotDim = p.AnnotDim()
	t.IsRegression = p.IsRegression()

	ids := p.InitialSampleList()
	t.Nodes = append(t.Nodes, Node{}) // id 0, the root

	stack := []workItem{{lo: 0, hi: len(ids), id: 0, depth: 0}}

	for len(stack) > 0 {
		w := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		sub := ids[w.lo:w.hi]

		if len(sub) < t.Msan || (t.MaxDepth > 0 && w.depth >= t.MaxDepth) {
			if err := t.makeLeaf(p, w.id, sub); err != nil {
				return err
			}
			continue
		}

		var outcome decider.Outcome
		if t.IsRegression {
			outcome = decider.MakeRegressionNode(p, sub, d, t.AnnotDim, t.Decider, w.nInvalid)
		} else {
			outcome = decider.MakeNode(p, sub, d, t.NClasses, t.Decider, w.nInvalid)
		}

		if outcome.Leaf {
			if err := t.makeLeaf(p, w.id, sub); err != nil {
				return err
			}
			continue
		}

		leftID := t.allocateID()
		rightID := t.allocateID()

		t.Nodes[w.id] = Node{
			FeatureIdx: int32(outcome.FeatureIdx),
			Threshold:  outcome.Threshold,
			Left:       leftID,
			Right:      rightID,
		}

		if outcome.FeatureIdx < len(t.FeatureImportance) {
			t.FeatureImportance[outcome.FeatureIdx] += outcome.Gain * float64(len(sub))
		}

		mid := w.lo + outcome.SplitIndex
		stack = append(stack, workItem{lo: mid, hi: w.hi, id: rightID, depth: w.depth + 1, nInvalid: outcome.NInvalid})
		stack = append(stack, workItem{lo: w.lo, hi: mid, id: leftID, depth: w.depth + 1, nInvalid: outcome.NInvalid})
	}

	t.Nodes = t.Nodes[:atomic.LoadInt32(&t.nextID)]
	return nil
}

func (t *Tree) makeLeaf(p *provider.Provider, id int32, sub []int) error {
	var result leaf.Result
	var err error

	switch {
	case t.IsRegression && t.UseLinear:
		result, err = leaf.BuildLinear(p, sub, p.FeatDim(), t.AnnotDim, t.LinearCfg)
	case t.IsRegression:
		result, err = leaf.BuildRegression(p, sub, t.AnnotDim, t.WithVarLeaf)
	default:
		result, err = leaf.BuildClassification(p, sub, t.NClasses)
	}
	if err != nil {
		return err
	}

	leafIdx := int32(len(t.Leafs))
	t.Leafs = append(t.Leafs, result)
	t.Nodes[id] = Node{Left: leafIdx, Right: leafIdx}
	return nil
}

// PredictLeaf descends from the root following the stored
// (feature, threshold) pairs until it reaches a leaf, returning the index
// into Leafs.
func (t *Tree) PredictLeaf(x []float64) int {
	id := int32(0)
	for {
		n := t.Nodes[id]
		if n.Left == n.Right {
			return int(n.Left)
		}
		if x[n.FeatureIdx] <= n.Threshold {
			id = n.Left
		} else {
			id = n.Right
		}
	}
}

// Predict returns the leaf Result reached by x, materialized for x (a
// linear leaf evaluates its regressor at x; histogram and mean leaves are
// constant).
func (t *Tree) Predict(x []float64) leaf.Result {
	return t.Leafs[t.PredictLeaf(x)].Eval(x)
}

// NNodes reports the size of the node table.
func (t *Tree) NNodes() int { return len(t.Nodes) }

// Depth reports the maximum root-to-leaf depth; a lone root leaf has depth 0.
func (t *Tree) Depth() int {
	if len(t.Nodes) == 0 {
		return 0
	}
	type frame struct {
		id    int32
		depth int
	}
	max := 0
	stack := []frame{{0, 0}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := t.Nodes[f.id]
		if n.Left == n.Right {
			if f.depth > max {
				max = f.depth
			}
			continue
		}
		stack = append(stack, frame{n.Left, f.depth + 1}, frame{n.Right, f.depth + 1})
	}
	return max
}
