// Package artifact implements the persisted model document of spec.md
// §6: a directory holding a small human-readable manifest (YAML, via
// gopkg.in/yaml.v2) plus binary sub-artifacts for each fitted
// propositional/ensemble component (msgpack, via
// gopkg.in/vmihailenco/msgpack.v2), matching the teacher's own
// component-tagged persisted-document idiom. Floats round-trip exactly
// (spec.md §8 property 7): msgpack's binary float encoding (no textual
// rounding) for the bulk model document, and an explicit 17-digit
// round-trip format for the handful of floats that do appear in the
// human-readable manifest. The manifest's run_id is a fresh UUID on
// every Save, so saving the same model twice does not give
// byte-identical manifests.
package artifact

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"strconv"

	"github.com/mitchellh/hashstructure"
	uuid "github.com/gofrs/uuid"
	msgpack "gopkg.in/vmihailenco/msgpack.v2"
	"gopkg.in/yaml.v2"

	"github.com/relforge/relforge/config"
	"github.com/relforge/relforge/ensemble"
	"github.com/relforge/relforge/fastprop"
	"github.com/relforge/relforge/relerrors"
	"github.com/relforge/relforge/schema"
)

const (
	manifestFile = "manifest.yaml"
	modelFile    = "model.msgpack"
)

// RoundTripFloat formats f with the 17-significant-digit round-trip
// format spec.md §6 requires for any float that lands in the
// human-readable manifest.
func RoundTripFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', 17, 64)
}

// Manifest is the small, human-readable half of the persisted artifact
// (spec.md §6): identity, provenance, and summary scores. The bulk
// fitted state (features, trees, mappings) lives in the msgpack sub-
// artifact Document, addressed by Fingerprint.
type Manifest struct {
	RunID       string            `yaml:"run_id"`
	Fingerprint uint64            `yaml:"fingerprint"`
	NumTargets  int               `yaml:"num_targets"`
	Scores      map[string]string `yaml:"scores"` // RoundTripFloat-formatted, keyed by metric name
}

// PredictorSnapshot is the persisted form of one target's optional
// feature-selected external predictor (spec.md §4.6 step 3: "feed the
// feature matrix ... to the configured predictor's own fit", and the
// feature-selection variant that "retain[s] top-k with positive
// importance"). Present is false when no predictor survived feature
// selection for that target — relmodel.Model.Predict then falls back to
// the additive ensemble.Predict path for it.
type PredictorSnapshot struct {
	Present   bool
	Weights   []float64
	Intercept float64
}

// Document is the msgpack-encoded sub-artifact: one fitted feature set
// shared across targets, plus one ensemble (and optional predictor) per
// target (spec.md §6 "(a) the model document ... (b) per-predictor
// sub-artifacts").
type Document struct {
	Config     config.Config
	TargetCols []int
	PopSchema  schema.Schema
	PerSchema  schema.Schema
	FastProp   fastprop.Snapshot
	Members    []ensemble.Model    // one per target column, in target order
	Predictors []PredictorSnapshot // one per target column, in target order
}

// Save writes manifest.yaml and model.msgpack under dir, creating dir if
// needed. A fresh run ID is generated on every call.
func Save(dir string, cfg config.Config, targetCols []int, popSchema, perSchema schema.Schema, fp *fastprop.FastProp, models []ensemble.Model, predictors []PredictorSnapshot, scores map[string]float64) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	doc := Document{Config: cfg, TargetCols: targetCols, PopSchema: popSchema, PerSchema: perSchema, Members: models, Predictors: predictors}
	if fp != nil {
		doc.FastProp = fp.Snapshot()
	}

	modelBytes, err := msgpack.Marshal(doc)
	if err != nil {
		return relerrors.ErrSerializationError.New(err.Error())
	}
	if err := ioutil.WriteFile(filepath.Join(dir, modelFile), modelBytes, 0o644); err != nil {
		return err
	}

	fingerprint, err := hashstructure.Hash(doc, nil)
	if err != nil {
		return relerrors.ErrSerializationError.New(err.Error())
	}

	formattedScores := make(map[string]string, len(scores))
	for name, v := range scores {
		formattedScores[name] = RoundTripFloat(v)
	}

	runID, err := uuid.NewV4()
	if err != nil {
		return relerrors.ErrSerializationError.New(err.Error())
	}
	m := Manifest{
		RunID:       runID.String(),
		Fingerprint: fingerprint,
		NumTargets:  len(models),
		Scores:      formattedScores,
	}
	manifestBytes, err := yaml.Marshal(m)
	if err != nil {
		return relerrors.ErrSerializationError.New(err.Error())
	}
	return ioutil.WriteFile(filepath.Join(dir, manifestFile), manifestBytes, 0o644)
}

// Load reads the manifest and model document previously written by
// Save, verifying the manifest's Fingerprint against the loaded
// Document (spec.md §7 SerializationError: "malformed persisted
// document").
func Load(dir string) (Manifest, Document, error) {
	var m Manifest
	var doc Document

	manifestBytes, err := ioutil.ReadFile(filepath.Join(dir, manifestFile))
	if err != nil {
		return m, doc, err
	}
	if err := yaml.Unmarshal(manifestBytes, &m); err != nil {
		return m, doc, relerrors.ErrSerializationError.New(err.Error())
	}

	modelBytes, err := ioutil.ReadFile(filepath.Join(dir, modelFile))
	if err != nil {
		return m, doc, err
	}
	if err := msgpack.Unmarshal(modelBytes, &doc); err != nil {
		return m, doc, relerrors.ErrSerializationError.New(err.Error())
	}

	fingerprint, err := hashstructure.Hash(doc, nil)
	if err != nil {
		return m, doc, relerrors.ErrSerializationError.New(err.Error())
	}
	if fingerprint != m.Fingerprint {
		return m, doc, relerrors.ErrSerializationError.New("manifest fingerprint does not match model document")
	}
	if len(doc.Members) != m.NumTargets {
		return m, doc, relerrors.ErrSerializationError.New("num_targets does not match member count")
	}
	return m, doc, nil
}
