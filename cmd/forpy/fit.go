package main

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/classner/forpy-go/forest"
	"github.com/classner/forpy-go/serialize"
)

var (
	fitDataFile   string
	fitModelFile  string
	fitConfigFile string
	fitCfg        = defaultTrainConfig()
)

var fitCmd = &cobra.Command{
	Use:   "fit",
	Short: "Train a forest on a CSV dataset and save the model",
	Long: `Fit reads a CSV dataset whose first column is the target, trains a
classification or regression forest (detected from the target values), and
writes the model to --model (.fpf for binary, .json for textual).`,
	RunE: runFit,
}

func init() {
	f := fitCmd.Flags()
	f.StringVarP(&fitDataFile, "data", "d", "", "csv file with training data (required)")
	f.StringVarP(&fitModelFile, "model", "m", "forest.fpf", "output file for the fitted model")
	f.StringVarP(&fitConfigFile, "config", "c", "", "yaml file with training hyperparameters")

	f.IntVar(&fitCfg.NTrees, "trees", fitCfg.NTrees, "number of trees")
	f.IntVar(&fitCfg.MaxDepth, "max-depth", fitCfg.MaxDepth, "max tree depth, 0 for unbounded")
	f.IntVar(&fitCfg.MinLeaf, "min-leaf", fitCfg.MinLeaf, "min samples at a leaf")
	f.IntVar(&fitCfg.MinNode, "min-node", fitCfg.MinNode, "min samples for a node to be split")
	f.IntVar(&fitCfg.MaxFeatures, "max-features", fitCfg.MaxFeatures, "features tried per split, 0 for all (ignored under --autoscale)")
	f.BoolVar(&fitCfg.Autoscale, "autoscale", fitCfg.Autoscale, "try sqrt(#features) per split")
	f.StringVar(&fitCfg.Impurity, "impurity", fitCfg.Impurity, "impurity measure: gini, entropy, error, induced, tsallis, renyi")
	f.Float64Var(&fitCfg.ImpurityParam, "impurity-param", fitCfg.ImpurityParam, "parameter for induced/tsallis/renyi")
	f.IntVar(&fitCfg.NThresholds, "thresholds", fitCfg.NThresholds, "random thresholds per feature, 0 for an exact sweep")
	f.Float64Var(&fitCfg.GainThreshold, "gain-threshold", fitCfg.GainThreshold, "minimum gain for a split to be kept")
	f.Int64Var(&fitCfg.Seed, "seed", fitCfg.Seed, "random seed")
	f.IntVar(&fitCfg.Workers, "workers", fitCfg.Workers, "number of workers for fitting trees")
	f.BoolVar(&fitCfg.Bootstrap, "bootstrap", fitCfg.Bootstrap, "bootstrap-sample each tree")
	f.BoolVar(&fitCfg.OOB, "oob", fitCfg.OOB, "compute out-of-bag scores")
	f.BoolVar(&fitCfg.StoreVariance, "store-variance", fitCfg.StoreVariance, "regression leaves also track variance")
	f.BoolVar(&fitCfg.LinearLeaves, "linear-leaves", fitCfg.LinearLeaves, "fit a linear regressor per regression leaf")

	fitCmd.MarkFlagRequired("data")
}

func runFit(cmd *cobra.Command, _ []string) error {
	if fitConfigFile != "" {
		// file values override flag defaults; explicitly-set flags win
		fromFile := defaultTrainConfig()
		if err := loadTrainConfig(fitConfigFile, &fromFile); err != nil {
			return err
		}
		merged := fromFile
		if cmd.Flags().Changed("trees") {
			merged.NTrees = fitCfg.NTrees
		}
		if cmd.Flags().Changed("max-depth") {
			merged.MaxDepth = fitCfg.MaxDepth
		}
		if cmd.Flags().Changed("min-leaf") {
			merged.MinLeaf = fitCfg.MinLeaf
		}
		if cmd.Flags().Changed("min-node") {
			merged.MinNode = fitCfg.MinNode
		}
		if cmd.Flags().Changed("max-features") {
			merged.MaxFeatures = fitCfg.MaxFeatures
		}
		if cmd.Flags().Changed("autoscale") {
			merged.Autoscale = fitCfg.Autoscale
		}
		if cmd.Flags().Changed("impurity") {
			merged.Impurity = fitCfg.Impurity
		}
		if cmd.Flags().Changed("impurity-param") {
			merged.ImpurityParam = fitCfg.ImpurityParam
		}
		if cmd.Flags().Changed("thresholds") {
			merged.NThresholds = fitCfg.NThresholds
		}
		if cmd.Flags().Changed("gain-threshold") {
			merged.GainThreshold = fitCfg.GainThreshold
		}
		if cmd.Flags().Changed("seed") {
			merged.Seed = fitCfg.Seed
		}
		if cmd.Flags().Changed("workers") {
			merged.Workers = fitCfg.Workers
		}
		if cmd.Flags().Changed("bootstrap") {
			merged.Bootstrap = fitCfg.Bootstrap
		}
		if cmd.Flags().Changed("oob") {
			merged.OOB = fitCfg.OOB
		}
		if cmd.Flags().Changed("store-variance") {
			merged.StoreVariance = fitCfg.StoreVariance
		}
		if cmd.Flags().Changed("linear-leaves") {
			merged.LinearLeaves = fitCfg.LinearLeaves
		}
		fitCfg = merged
	}

	f, err := os.Open(fitDataFile)
	if err != nil {
		return fmt.Errorf("opening %s: %w", fitDataFile, err)
	}
	defer f.Close()

	data, err := parseCSV(f)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", fitDataFile, err)
	}

	X := featureMajor(data.X)
	logrus.WithFields(logrus.Fields{
		"samples":    len(data.X),
		"features":   len(X),
		"regression": data.isRegression,
	}).Debug("dataset loaded")

	start := time.Now()
	if data.isRegression {
		err = fitRegression(data, X)
	} else {
		err = fitClassification(data, X)
	}
	if err != nil {
		return err
	}
	fmt.Printf("fitting took %.2fs\n", time.Since(start).Seconds())
	return nil
}

func fitClassification(data *parsedInput, X [][]float64) error {
	m, err := fitCfg.measure()
	if err != nil {
		return err
	}
	clf, err := forest.NewClassificationForest(fitCfg.options(m)...)
	if err != nil {
		return err
	}
	if err := clf.Fit(X, data.YClf, fitCfg.Bootstrap, nil); err != nil {
		return err
	}

	reportVarImp(os.Stdout, clf.VarImp, data.VarNames)
	if fitCfg.OOB {
		reportConfusion(os.Stdout, clf)
	}

	return serialize.SaveClassification(clf, fitModelFile)
}

func fitRegression(data *parsedInput, X [][]float64) error {
	opts := fitCfg.options(nil)
	if fitCfg.StoreVariance {
		opts = append(opts, forest.StoreVariance())
	}
	if fitCfg.LinearLeaves {
		opts = append(opts, forest.LinearLeaf(true))
	}
	reg, err := forest.NewRegressionForest(opts...)
	if err != nil {
		return err
	}
	Y := make([][]float64, len(data.YReg))
	for i, y := range data.YReg {
		Y[i] = []float64{y}
	}
	if err := reg.Fit(X, Y, fitCfg.Bootstrap, nil); err != nil {
		return err
	}

	reportVarImp(os.Stdout, reg.VarImp, data.VarNames)
	if fitCfg.OOB {
		fmt.Printf("Mean Squared Error: %.3f\n", reg.MSE)
		fmt.Printf("R-Squared: %.3f%%\n", 100*reg.RSquared)
	}

	return serialize.SaveRegression(reg, fitModelFile)
}

func reportVarImp(w *os.File, imp []float64, names []string) {
	fmt.Fprintln(w, "Variable Importance")
	fmt.Fprintln(w, "-------------------")

	type pair struct {
		name string
		imp  float64
	}
	pairs := make([]pair, len(imp))
	for i, v := range imp {
		name := fmt.Sprintf("X%d", i+1)
		if i < len(names) {
			name = names[i]
		}
		pairs[i] = pair{name, v}
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].imp > pairs[j].imp })

	show := len(pairs)
	if show > 20 {
		show = 20
	}
	for _, p := range pairs[:show] {
		fmt.Fprintf(w, "%-15s: %-10.2f\n", p.name, p.imp)
	}
	fmt.Fprintln(w)
}

func reportConfusion(w *os.File, clf *forest.ClassificationForest) {
	fmt.Fprintln(w, "Confusion Matrix")
	fmt.Fprintln(w, "----------------")
	fmt.Fprintf(w, "%-14s ", "")
	for _, class := range clf.Classes {
		fmt.Fprintf(w, "%-14s ", class)
	}
	fmt.Fprintln(w)

	for predictedID, class := range clf.Classes {
		fmt.Fprintf(w, "%-14s ", class)
		for actualID := range clf.Classes {
			fmt.Fprintf(w, "%-14d ", clf.ConfusionMatrix[actualID][predictedID])
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Overall Accuracy: %.2f%%\n", 100.0*clf.Accuracy)
}
