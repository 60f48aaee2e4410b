package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/classner/forpy-go/forest"
	"github.com/classner/forpy-go/internal/impurity"
	"github.com/classner/forpy-go/internal/split"
)

// trainConfig collects every fit hyperparameter. Flags fill it with
// defaults; a --config YAML file, when given, is applied on top before
// explicitly-set flags win again.
type trainConfig struct {
	NTrees        int     `yaml:"trees"`
	MaxDepth      int     `yaml:"max_depth"`
	MinLeaf       int     `yaml:"min_leaf"`
	MinNode       int     `yaml:"min_node"`
	MaxFeatures   int     `yaml:"max_features"`
	Autoscale     bool    `yaml:"autoscale"`
	Impurity      string  `yaml:"impurity"`
	ImpurityParam float64 `yaml:"impurity_param"`
	NThresholds   int     `yaml:"thresholds"`
	GainThreshold float64 `yaml:"gain_threshold"`
	Seed          int64   `yaml:"seed"`
	Workers       int     `yaml:"workers"`
	Bootstrap     bool    `yaml:"bootstrap"`
	OOB           bool    `yaml:"oob"`
	StoreVariance bool    `yaml:"store_variance"`
	LinearLeaves  bool    `yaml:"linear_leaves"`
}

func defaultTrainConfig() trainConfig {
	return trainConfig{
		NTrees:        10,
		MinLeaf:       1,
		MinNode:       2,
		Autoscale:     true,
		Impurity:      "gini",
		ImpurityParam: 2,
		GainThreshold: impurity.EpsGain,
		Seed:          1,
		Workers:       1,
		Bootstrap:     true,
		OOB:           true,
	}
}

func loadTrainConfig(path string, into *trainConfig) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, into); err != nil {
		return fmt.Errorf("parsing config %s: %w", path, err)
	}
	return nil
}

func (c trainConfig) measure() (impurity.Measure, error) {
	switch c.Impurity {
	case "gini":
		return impurity.Gini{}, nil
	case "entropy":
		return impurity.Shannon{}, nil
	case "error":
		return impurity.ClassificationError{}, nil
	case "induced":
		return impurity.Induced{P: c.ImpurityParam}, nil
	case "tsallis":
		return impurity.Tsallis{Q: c.ImpurityParam}, nil
	case "renyi":
		return impurity.Renyi{Alpha: c.ImpurityParam}, nil
	default:
		return nil, fmt.Errorf("unknown impurity measure %q", c.Impurity)
	}
}

func (c trainConfig) policy() split.Policy {
	if c.NThresholds > 0 {
		return split.Random(c.NThresholds)
	}
	return split.Exact()
}

// options assembles the forest option funcs shared by both forest kinds.
func (c trainConfig) options(m impurity.Measure) []func(forest.Configer) {
	opts := []func(forest.Configer){
		forest.NTrees(c.NTrees),
		forest.MaxDepth(c.MaxDepth),
		forest.MinSamplesLeaf(c.MinLeaf),
		forest.MinSamplesNode(c.MinNode),
		forest.GainThreshold(c.GainThreshold),
		forest.SplitPolicy(c.policy()),
		forest.RandomSeed(c.Seed),
		forest.NumWorkers(c.Workers),
	}
	if c.Autoscale {
		opts = append(opts, forest.Autoscale())
	} else {
		opts = append(opts, forest.NValidFeatures(c.MaxFeatures))
	}
	if c.OOB {
		opts = append(opts, forest.ComputeOOB())
	}
	if m != nil {
		opts = append(opts, forest.Impurity(m))
	}
	return opts
}
