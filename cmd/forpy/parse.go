package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
)

// parsedInput is a CSV dataset with the first column as the target.
// Whether it trains a classifier or a regressor is detected from the
// target values: all-numeric targets mean regression.
type parsedInput struct {
	isRegression bool
	X            [][]float64 // row-major, one row per sample
	YClf         []string    // nil when isRegression
	YReg         []float64   // nil when !isRegression
	VarNames     []string
}

// parseCSV reads a whole dataset, detecting an optional header row (a
// first row none of whose feature cells parses as a number is a header)
// and the classification-vs-regression split from the target column.
func parseCSV(r io.Reader) (*parsedInput, error) {
	reader := csv.NewReader(r)

	// assume regression until a target fails to parse as a float
	p := &parsedInput{isRegression: true}

	row, err := reader.Read()
	if err != nil {
		return p, err
	}

	varNames, err := parseHeader(row)
	if err == nil {
		p.VarNames = varNames
	} else {
		for i := range row[1:] {
			p.VarNames = append(p.VarNames, fmt.Sprintf("X%d", i+1))
		}
		if err := p.parseRow(row); err != nil {
			return p, err
		}
	}

	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return p, err
		}
		if err := p.parseRow(row); err != nil {
			return p, err
		}
	}

	// drop the target representation we aren't using
	if p.isRegression {
		p.YClf = nil
	} else {
		p.YReg = nil
	}

	return p, nil
}

func (p *parsedInput) parseRow(row []string) error {
	xi, err := parseFeatureVals(row)
	if err != nil {
		return err
	}
	p.X = append(p.X, xi)

	if p.isRegression {
		yi, err := strconv.ParseFloat(row[0], 64)
		if err != nil {
			p.isRegression = false
		}
		p.YReg = append(p.YReg, yi)
	}
	p.YClf = append(p.YClf, row[0])

	return nil
}

func parseFeatureVals(row []string) ([]float64, error) {
	if len(row) < 2 {
		return nil, errors.New("row needs a target column and at least one feature column")
	}
	xi := make([]float64, 0, len(row)-1)
	for _, val := range row[1:] {
		fv, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return nil, err
		}
		xi = append(xi, fv)
	}
	return xi, nil
}

// parseHeader accepts the row as a header only if no feature cell parses
// as a number; feature values are always numeric, so a numeric cell means
// data.
func parseHeader(row []string) ([]string, error) {
	colNames := []string{}

	if len(row) > 1 {
		for _, val := range row[1:] {
			if _, err := strconv.ParseFloat(val, 64); err == nil {
				return nil, errors.New("not a header row")
			}
			colNames = append(colNames, val)
		}
	}

	return colNames, nil
}

// featureMajor transposes row-major samples into the feature-major column
// layout the forest API consumes.
func featureMajor(rows [][]float64) [][]float64 {
	if len(rows) == 0 {
		return nil
	}
	nFeat := len(rows[0])
	cols := make([][]float64, nFeat)
	for j := 0; j < nFeat; j++ {
		cols[j] = make([]float64, len(rows))
		for i, row := range rows {
			cols[j][i] = row[j]
		}
	}
	return cols
}
