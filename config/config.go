// Package config implements the hyperparameter document of spec.md §6:
// a plain struct loadable from a YAML file (via gopkg.in/yaml.v2) or
// from a generic map (via github.com/spf13/cast, the coercion idiom the
// teacher's go.mod carries), validated against spec.md §7's
// InvalidArgument cases.
package config

import (
	"io/ioutil"
	"math"

	"github.com/spf13/cast"
	"gopkg.in/yaml.v2"

	"github.com/relforge/relforge/fastprop"
	"github.com/relforge/relforge/loss"
	"github.com/relforge/relforge/relerrors"
)

// LossFunctionName names one of the two supported loss functions
// (spec.md §6 "loss_function").
type LossFunctionName string

const (
	SquareLoss       LossFunctionName = "SquareLoss"
	CrossEntropyLoss LossFunctionName = "CrossEntropyLoss"
)

// Resolve returns the loss.Function value this name selects (spec.md §6
// "loss_function: one of {SquareLoss, CrossEntropyLoss}").
func (n LossFunctionName) Resolve() (loss.Function, error) {
	switch n {
	case SquareLoss, "":
		return loss.SquareLoss{}, nil
	case CrossEntropyLoss:
		return loss.CrossEntropyLoss{}, nil
	default:
		return nil, relerrors.ErrInvalidArgument.New("config: unknown loss_function " + string(n))
	}
}

// Config is the full hyperparameter document (spec.md §6's enumerated
// option table), yaml-tagged for file loading and the field set
// config.Validate enforces spec.md §7's InvalidArgument cases over.
type Config struct {
	NumFeatures     int              `yaml:"num_features"`
	NumTrees        int              `yaml:"num_trees"`
	MaxDepth        int              `yaml:"max_depth"`
	MinNumSamples   int              `yaml:"min_num_samples"`
	Gamma           float64          `yaml:"gamma"`
	Shrinkage       float64          `yaml:"shrinkage"`
	DeltaT          float64          `yaml:"delta_t"`
	SamplingFactor  float64          `yaml:"sampling_factor"`
	Seed            int64            `yaml:"seed"`
	MinFreq         int              `yaml:"min_freq"`
	MinDF           int              `yaml:"min_df"`
	VocabSize       int              `yaml:"vocab_size"`
	SplitTextFields bool             `yaml:"split_text_fields"`
	NMostFrequent   int              `yaml:"n_most_frequent"`
	NumThreads      int              `yaml:"num_threads"`
	Aggregations    []string         `yaml:"aggregations"`
	LossFunction    LossFunctionName `yaml:"loss_function"`

	// AllowLaggedTargets is a required, explicit tri-state (resolved
	// Open Question, see DESIGN.md): nil means "never set", which
	// Validate rejects, distinguishing it from an explicit false.
	AllowLaggedTargets *bool `yaml:"allow_lagged_targets"`
}

// Load reads a YAML config document from path (spec.md §6), grounded on
// the teacher's direct gopkg.in/yaml.v2 dependency.
func Load(path string) (*Config, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, relerrors.ErrSerializationError.New(err.Error())
	}
	return &cfg, nil
}

// FromMap builds a Config from a generic map (e.g. parsed JSON, or a
// scripting embedder's native dict) using github.com/spf13/cast's
// permissive coercions — grounded on the teacher's direct go.mod
// dependency on spf13/cast.
func FromMap(m map[string]interface{}) (*Config, error) {
	cfg := &Config{}
	cfg.NumFeatures = cast.ToInt(m["num_features"])
	cfg.NumTrees = cast.ToInt(m["num_trees"])
	cfg.MaxDepth = cast.ToInt(m["max_depth"])
	cfg.MinNumSamples = cast.ToInt(m["min_num_samples"])
	cfg.Gamma = cast.ToFloat64(m["gamma"])
	cfg.Shrinkage = cast.ToFloat64(m["shrinkage"])
	cfg.DeltaT = cast.ToFloat64(m["delta_t"])
	cfg.SamplingFactor = cast.ToFloat64(m["sampling_factor"])
	cfg.Seed = cast.ToInt64(m["seed"])
	cfg.MinFreq = cast.ToInt(m["min_freq"])
	cfg.MinDF = cast.ToInt(m["min_df"])
	cfg.VocabSize = cast.ToInt(m["vocab_size"])
	cfg.SplitTextFields = cast.ToBool(m["split_text_fields"])
	cfg.NMostFrequent = cast.ToInt(m["n_most_frequent"])
	cfg.NumThreads = cast.ToInt(m["num_threads"])
	cfg.LossFunction = LossFunctionName(cast.ToString(m["loss_function"]))
	if raw, ok := m["aggregations"]; ok {
		cfg.Aggregations = cast.ToStringSlice(raw)
	}
	if raw, ok := m["allow_lagged_targets"]; ok {
		b := cast.ToBool(raw)
		cfg.AllowLaggedTargets = &b
	}
	return cfg, nil
}

// Validate enforces spec.md §7's InvalidArgument cases.
func (c *Config) Validate() error {
	if c.MinNumSamples < 1 {
		return relerrors.ErrInvalidArgument.New("min_num_samples must be >= 1")
	}
	if math.IsNaN(c.Shrinkage) || math.IsInf(c.Shrinkage, 0) {
		return relerrors.ErrInvalidArgument.New("shrinkage must be finite")
	}
	if c.SamplingFactor < 0 || c.SamplingFactor > 1 {
		return relerrors.ErrInvalidArgument.New("sampling_factor must be in [0,1]")
	}
	if c.Seed < 0 {
		return relerrors.ErrInvalidArgument.New("seed must be >= 0")
	}
	if c.AllowLaggedTargets == nil {
		return relerrors.ErrInvalidArgument.New("allow_lagged_targets must be set explicitly")
	}
	if _, err := c.LossFunction.Resolve(); err != nil {
		return err
	}
	return nil
}

// FastPropAggregations resolves the string whitelist in Aggregations
// into fastprop.Aggregation values, skipping unrecognized names (a
// config loaded from an older document may reference an aggregation
// this build doesn't know; skipping rather than failing keeps loading
// forward-compatible, matching spec.md's "unknown... produce a 0
// contribution" tolerance elsewhere in this system).
func (c *Config) FastPropAggregations() []fastprop.Aggregation {
	if len(c.Aggregations) == 0 {
		return nil // nil => fastprop.Config.aggregations() defaults to AllAggregations
	}
	var out []fastprop.Aggregation
	for _, name := range c.Aggregations {
		for _, agg := range fastprop.AllAggregations {
			if agg.String() == name {
				out = append(out, agg)
				break
			}
		}
	}
	return out
}
