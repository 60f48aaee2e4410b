package main

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/classner/forpy-go/serialize"
)

var (
	predictDataFile  string
	predictModelFile string
	predictOutFile   string
	predictProba     bool
)

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Score a CSV dataset with a saved model",
	Long: `Predict loads a model saved by fit, scores every row of --data, and
writes one prediction per line to --output (stdout when omitted). The data
file must have the same layout as the training file, leading target column
included; the target values are ignored and may be arbitrary.`,
	RunE: runPredict,
}

func init() {
	f := predictCmd.Flags()
	f.StringVarP(&predictDataFile, "data", "d", "", "csv file with rows to score (required)")
	f.StringVarP(&predictModelFile, "model", "m", "forest.fpf", "model file written by fit")
	f.StringVarP(&predictOutFile, "output", "o", "", "output file, stdout when omitted")
	f.BoolVar(&predictProba, "proba", false, "classification: write per-class probabilities instead of labels")

	predictCmd.MarkFlagRequired("data")
}

func runPredict(_ *cobra.Command, _ []string) error {
	kind, err := serialize.KindOf(predictModelFile)
	if err != nil {
		return err
	}

	f, err := os.Open(predictDataFile)
	if err != nil {
		return fmt.Errorf("opening %s: %w", predictDataFile, err)
	}
	defer f.Close()

	data, err := parseCSV(f)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", predictDataFile, err)
	}
	X := featureMajor(data.X)

	out := os.Stdout
	if predictOutFile != "" {
		out, err = os.Create(predictOutFile)
		if err != nil {
			return fmt.Errorf("creating %s: %w", predictOutFile, err)
		}
		defer out.Close()
	}

	switch kind {
	case serialize.KindClassification:
		clf, err := serialize.LoadClassification(predictModelFile)
		if err != nil {
			return err
		}
		if predictProba {
			probs, err := clf.PredictProba(X)
			if err != nil {
				return err
			}
			return writeProba(out, clf.Classes, probs)
		}
		labels, err := clf.Predict(X)
		if err != nil {
			return err
		}
		return writeLines(out, labels)

	case serialize.KindRegression:
		reg, err := serialize.LoadRegression(predictModelFile)
		if err != nil {
			return err
		}
		mean, _, err := reg.Predict(X)
		if err != nil {
			return err
		}
		lines := make([]string, len(mean))
		for i, m := range mean {
			lines[i] = strconv.FormatFloat(m[0], 'f', -1, 64)
		}
		return writeLines(out, lines)
	}
	return nil
}

func writeLines(w io.Writer, lines []string) error {
	wtr := bufio.NewWriter(w)
	for _, line := range lines {
		if _, err := wtr.WriteString(line); err != nil {
			return err
		}
		if err := wtr.WriteByte('\n'); err != nil {
			return err
		}
	}
	return wtr.Flush()
}

func writeProba(w io.Writer, classes []string, probs [][]float64) error {
	wtr := csv.NewWriter(w)
	if err := wtr.Write(classes); err != nil {
		return err
	}
	row := make([]string, len(classes))
	for _, p := range probs {
		for c := range row {
			row[c] = strconv.FormatFloat(p[c], 'f', -1, 64)
		}
		if err := wtr.Write(row); err != nil {
			return err
		}
	}
	wtr.Flush()
	return wtr.Error()
}
