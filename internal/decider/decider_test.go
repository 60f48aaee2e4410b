package decider

import (
	"testing"

	"github.com/classner/forpy-go/internal/desk"
	"github.com/classner/forpy-go/internal/impurity"
	"github.com/classner/forpy-go/internal/provider"
	"github.com/classner/forpy-go/internal/split"
)

func TestMakeNodeSeparable(t *testing.T) {
	x := [][]float64{{0, 1, 2, 3, 4, 5}}
	y := []int{0, 0, 0, 1, 1, 1}
	p, err := provider.NewClassification(x, y, 2, nil)
	if err != nil {
		t.Fatal(err)
	}
	ids := p.InitialSampleList()
	dsk := desk.New(1, 6, 1, 2)

	cfg := Config{FTry: 1, Msal: 1, GainThreshold: impurity.EpsGain, Policy: split.Exact(), Measure: impurity.Gini{}}
	out := MakeNode(p, ids, dsk, 2, cfg, 0)

	if out.Leaf {
		t.Fatal("expected a split, got a leaf")
	}
	if out.Threshold <= 2 || out.Threshold >= 3 {
		t.Errorf("threshold = %v, want in (2,3)", out.Threshold)
	}
	left, right := ids[:out.SplitIndex], ids[out.SplitIndex:]
	for _, id := range left {
		if p.ClassAt(id) != 0 {
			t.Errorf("left id %d has class %d, want 0", id, p.ClassAt(id))
		}
	}
	for _, id := range right {
		if p.ClassAt(id) != 1 {
			t.Errorf("right id %d has class %d, want 1", id, p.ClassAt(id))
		}
	}
}

func TestMakeNodePureIsLeaf(t *testing.T) {
	x := [][]float64{{0, 1, 2, 3}}
	y := []int{1, 1, 1, 1}
	p, err := provider.NewClassification(x, y, 2, nil)
	if err != nil {
		t.Fatal(err)
	}
	ids := p.InitialSampleList()
	dsk := desk.New(1, 4, 1, 2)

	cfg := Config{FTry: 1, Msal: 1, GainThreshold: impurity.EpsGain, Policy: split.Exact(), Measure: impurity.Gini{}}
	out := MakeNode(p, ids, dsk, 2, cfg, 0)

	if !out.Leaf {
		t.Error("expected a pure node to become a leaf")
	}
}

func TestMakeNodeMarksConstantFeatureInvalid(t *testing.T) {
	// Feature 0 is constant, feature 1 separates the classes. The constant
	// feature must land in the known-invalid prefix reported to children.
	x := [][]float64{
		{7, 7, 7, 7, 7, 7},
		{0, 1, 2, 3, 4, 5},
	}
	y := []int{0, 0, 0, 1, 1, 1}
	p, err := provider.NewClassification(x, y, 2, nil)
	if err != nil {
		t.Fatal(err)
	}
	ids := p.InitialSampleList()
	dsk := desk.New(1, 6, 2, 2)

	cfg := Config{FTry: 2, Msal: 1, GainThreshold: impurity.EpsGain, Policy: split.Exact(), Measure: impurity.Gini{}}
	out := MakeNode(p, ids, dsk, 2, cfg, 0)

	if out.Leaf {
		t.Fatal("expected a split on the varying feature")
	}
	if out.FeatureIdx != 1 {
		t.Errorf("split feature = %d, want 1", out.FeatureIdx)
	}
	if out.NInvalid != 1 {
		t.Errorf("invalid prefix = %d, want 1", out.NInvalid)
	}
	if dsk.Perm[0] != 0 {
		t.Errorf("perm prefix holds feature %d, want the constant feature 0", dsk.Perm[0])
	}
}

func TestDecide(t *testing.T) {
	x := []float64{1, 5, 9}
	if !Decide(x, 1, 5) {
		t.Error("5 <= 5 should go left")
	}
	if Decide(x, 1, 4) {
		t.Error("5 <= 4 is false, should go right")
	}
}
