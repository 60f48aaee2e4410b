// Package serialize implements the persisted-forest wire format: a forest
// is written as a small header (library version, kind) followed by the
// forest struct itself, in either a compact binary encoding (encoding/gob,
// extension ".fpf") or a textual encoding (encoding/json, extension
// ".json"), selected by the destination file's extension.
//
// A forest carrying any unfrozen linear-regression leaf fails to
// serialize: only coefficients and variances may reach the wire, never a
// live reference to training data.
package serialize

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/classner/forpy-go/internal/errs"
	"github.com/classner/forpy-go/internal/impurity"
	"github.com/classner/forpy-go/internal/leaf"
	"github.com/classner/forpy-go/tree"
)

// LibraryVersion is bumped whenever the wire format changes shape in a
// way that breaks forwards compatibility. Load rejects a header whose
// version is newer than this, since it cannot know what changed.
const LibraryVersion = 1

func init() {
	gob.Register(impurity.Gini{})
	gob.Register(impurity.Shannon{})
	gob.Register(impurity.ClassificationError{})
	gob.Register(impurity.Induced{})
	gob.Register(impurity.Tsallis{})
	gob.Register(impurity.Renyi{})
}

// header precedes the forest payload in both encodings; Kind disambiguates
// a classification forest from a regression forest at Load time so the
// caller doesn't have to know in advance which one a file holds.
type header struct {
	Version int
	Kind    string
}

// Forest kinds as they appear in the file header.
const (
	KindClassification = "classification"
	KindRegression     = "regression"
)

// format is the codec implied by a file's extension: ".fpf" is gob,
// ".json" is textual JSON. Any other extension is rejected with
// errs.Unsupported; no other formats exist.
type format int

const (
	formatGob format = iota
	formatJSON
)

func formatFor(path string) (format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".fpf":
		return formatGob, nil
	case ".json":
		return formatJSON, nil
	default:
		return 0, errs.New(errs.Unsupported, "unrecognized forest file extension %q (want .fpf or .json)", filepath.Ext(path))
	}
}

// checkFrozen enforces the linear-regressor freeze rule: every Linear
// leaf across every tree must have Frozen set before the forest may be
// written out.
func checkFrozen(trees []*tree.Tree) error {
	for ti, t := range trees {
		for li, lf := range t.Leafs {
			if lf.Kind == leaf.Linear && !lf.Frozen {
				return errs.New(errs.InvalidParam, "tree %d leaf %d: linear leaf is not frozen, refusing to serialize", ti, li)
			}
		}
	}
	return nil
}

func writeHeaderAndPayload(path string, h header, payload interface{}) error {
	fm, err := formatFor(path)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	switch fm {
	case formatGob:
		enc := gob.NewEncoder(&buf)
		if err := enc.Encode(h); err != nil {
			return errs.New(errs.Internal, "encoding forest header: %v", err)
		}
		if err := enc.Encode(payload); err != nil {
			return errs.New(errs.Internal, "encoding forest: %v", err)
		}
	case formatJSON:
		wrapper := struct {
			Header  header      `json:"header"`
			Payload interface{} `json:"forest"`
		}{h, payload}
		b, err := json.MarshalIndent(wrapper, "", "  ")
		if err != nil {
			return errs.New(errs.Internal, "encoding forest: %v", err)
		}
		buf.Write(b)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return errs.New(errs.Internal, "writing %s: %v", path, err)
	}
	return nil
}

func readHeaderAndPayload(path string, wantKind string, payload interface{}) error {
	fm, err := formatFor(path)
	if err != nil {
		return err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return errs.New(errs.Corruption, "reading %s: %v", path, err)
	}

	var h header
	switch fm {
	case formatGob:
		dec := gob.NewDecoder(bytes.NewReader(b))
		if err := dec.Decode(&h); err != nil {
			return errs.New(errs.Corruption, "decoding forest header from %s: %v", path, err)
		}
		if err := dec.Decode(payload); err != nil {
			return errs.New(errs.Corruption, "decoding forest from %s: %v", path, err)
		}
	case formatJSON:
		wrapper := struct {
			Header  header          `json:"header"`
			Payload json.RawMessage `json:"forest"`
		}{}
		if err := json.Unmarshal(b, &wrapper); err != nil {
			return errs.New(errs.Corruption, "decoding forest from %s: %v", path, err)
		}
		h = wrapper.Header
		if err := json.Unmarshal(wrapper.Payload, payload); err != nil {
			return errs.New(errs.Corruption, "decoding forest payload from %s: %v", path, err)
		}
	}

	if h.Version > LibraryVersion {
		return errs.New(errs.Corruption, "%s was written by a newer library (version %d > %d)", path, h.Version, LibraryVersion)
	}
	if h.Kind != wantKind {
		return errs.New(errs.Corruption, "%s holds a %s forest, want %s", path, h.Kind, wantKind)
	}
	return nil
}

// KindOf decodes only the header of a forest file and reports which kind
// it holds, so callers can load a model without knowing in advance whether
// it is a classifier or a regressor.
func KindOf(path string) (string, error) {
	fm, err := formatFor(path)
	if err != nil {
		return "", err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", errs.New(errs.Corruption, "reading %s: %v", path, err)
	}

	var h header
	switch fm {
	case formatGob:
		if err := gob.NewDecoder(bytes.NewReader(b)).Decode(&h); err != nil {
			return "", errs.New(errs.Corruption, "decoding forest header from %s: %v", path, err)
		}
	case formatJSON:
		wrapper := struct {
			Header header `json:"header"`
		}{}
		if err := json.Unmarshal(b, &wrapper); err != nil {
			return "", errs.New(errs.Corruption, "decoding forest from %s: %v", path, err)
		}
		h = wrapper.Header
	}

	switch h.Kind {
	case KindClassification, KindRegression:
		return h.Kind, nil
	default:
		return "", errs.New(errs.Corruption, "%s holds unknown forest kind %q", path, h.Kind)
	}
}
