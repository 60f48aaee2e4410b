package serialize

import (
	"github.com/classner/forpy-go/forest"
)

// SaveClassification writes f to path, format chosen by extension
// (.fpf gob, .json textual). Fails if any tree carries an unfrozen
// Linear leaf (classification forests never do, but the check is
// shared with SaveRegression for a single enforcement point).
func SaveClassification(f *forest.ClassificationForest, path string) error {
	if err := checkFrozen(f.Trees); err != nil {
		return err
	}
	h := header{Version: LibraryVersion, Kind: KindClassification}
	return writeHeaderAndPayload(path, h, f)
}

// LoadClassification reads a forest previously written by
// SaveClassification.
func LoadClassification(path string) (*forest.ClassificationForest, error) {
	f := &forest.ClassificationForest{}
	if err := readHeaderAndPayload(path, KindClassification, f); err != nil {
		return nil, err
	}
	return f, nil
}

// SaveRegression writes f to path. If UseLinear is set, every leaf must
// be frozen before the forest can be persisted.
func SaveRegression(f *forest.RegressionForest, path string) error {
	if err := checkFrozen(f.Trees); err != nil {
		return err
	}
	h := header{Version: LibraryVersion, Kind: KindRegression}
	return writeHeaderAndPayload(path, h, f)
}

// LoadRegression reads a forest previously written by SaveRegression.
func LoadRegression(path string) (*forest.RegressionForest, error) {
	f := &forest.RegressionForest{}
	if err := readHeaderAndPayload(path, KindRegression, f); err != nil {
		return nil, err
	}
	return f, nil
}
