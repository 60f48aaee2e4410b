package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/classner/forpy-go/serialize"
	"github.com/classner/forpy-go/tree"
)

var reportModelFile string

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Summarize a saved model",
	Long: `Report prints the structure of a saved model: forest kind, tree
count, per-tree size statistics, out-of-bag scores recorded at fit time,
and the top variable importances.`,
	RunE: runReport,
}

func init() {
	reportCmd.Flags().StringVarP(&reportModelFile, "model", "m", "forest.fpf", "model file written by fit")
}

func runReport(_ *cobra.Command, _ []string) error {
	kind, err := serialize.KindOf(reportModelFile)
	if err != nil {
		return err
	}

	switch kind {
	case serialize.KindClassification:
		clf, err := serialize.LoadClassification(reportModelFile)
		if err != nil {
			return err
		}
		fmt.Printf("Classification forest: %d trees, %d classes\n", len(clf.Trees), clf.NClasses)
		reportTrees(clf.Trees)
		if clf.ConfusionMatrix != nil {
			fmt.Printf("Out-of-bag accuracy: %.2f%%\n", 100.0*clf.Accuracy)
		}
		reportVarImp(os.Stdout, clf.VarImp, nil)

	case serialize.KindRegression:
		reg, err := serialize.LoadRegression(reportModelFile)
		if err != nil {
			return err
		}
		fmt.Printf("Regression forest: %d trees, %d outputs\n", len(reg.Trees), reg.AnnotDim)
		reportTrees(reg.Trees)
		if reg.MSE > 0 || reg.RSquared > 0 {
			fmt.Printf("Out-of-bag MSE: %.3f, R-Squared: %.3f%%\n", reg.MSE, 100*reg.RSquared)
		}
		reportVarImp(os.Stdout, reg.VarImp, nil)
	}
	return nil
}

func reportTrees(trees []*tree.Tree) {
	if len(trees) == 0 {
		return
	}
	totalNodes, maxDepth := 0, 0
	for _, t := range trees {
		totalNodes += t.NNodes()
		if d := t.Depth(); d > maxDepth {
			maxDepth = d
		}
	}
	fmt.Printf("Nodes: %d total, %.1f per tree; deepest tree: %d\n",
		totalNodes, float64(totalNodes)/float64(len(trees)), maxDepth)
}
