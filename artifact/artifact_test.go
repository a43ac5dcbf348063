package artifact_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relforge/relforge/artifact"
	"github.com/relforge/relforge/config"
	"github.com/relforge/relforge/ensemble"
	"github.com/relforge/relforge/fastprop"
	"github.com/relforge/relforge/schema"
)

func sampleConfig() config.Config {
	allow := true
	return config.Config{MinNumSamples: 1, AllowLaggedTargets: &allow, LossFunction: config.SquareLoss}
}

// TestSaveLoadRoundTrip exercises property 7: a model saved then loaded
// reproduces the same manifest scores and member count.
func TestSaveLoadRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "artifact")
	cfg := sampleConfig()
	popSchema := schema.Schema{Targets: []schema.Column{{Name: "y", Role: schema.Target}}}
	perSchema := schema.Schema{Numericals: []schema.Column{{Name: "amount", Role: schema.Numerical}}}
	models := []ensemble.Model{{}, {}}
	scores := map[string]float64{"target_0_r2": 0.875}

	err := artifact.Save(dir, cfg, []int{0, 1}, popSchema, perSchema, nil, models, nil, scores)
	require.NoError(t, err)

	manifest, doc, err := artifact.Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 2, manifest.NumTargets)
	assert.Equal(t, artifact.RoundTripFloat(0.875), manifest.Scores["target_0_r2"])
	assert.Equal(t, []int{0, 1}, doc.TargetCols)
	assert.Equal(t, popSchema, doc.PopSchema)
	assert.Equal(t, perSchema, doc.PerSchema)
	assert.Len(t, doc.Members, 2)
}

// TestSaveLoadRoundTripsPredictorSnapshot exercises property 7 for the
// optional per-target predictor sub-artifact (spec.md §4.6 step 3): a
// present predictor's weights/intercept survive the round trip, and an
// absent one stays absent.
func TestSaveLoadRoundTripsPredictorSnapshot(t *testing.T) {
	dir := t.TempDir()
	cfg := sampleConfig()
	predictors := []artifact.PredictorSnapshot{
		{Present: true, Weights: []float64{0.5, -1.25}, Intercept: 0.1},
		{Present: false},
	}

	err := artifact.Save(dir, cfg, []int{0, 1}, schema.Schema{}, schema.Schema{}, nil, []ensemble.Model{{}, {}}, predictors, nil)
	require.NoError(t, err)

	_, doc, err := artifact.Load(dir)
	require.NoError(t, err)
	require.Len(t, doc.Predictors, 2)
	assert.Equal(t, predictors[0], doc.Predictors[0])
	assert.False(t, doc.Predictors[1].Present)
}

func TestLoadDetectsTamperedManifestFingerprint(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "artifact")
	cfg := sampleConfig()
	err := artifact.Save(dir, cfg, []int{0}, schema.Schema{}, schema.Schema{}, nil, []ensemble.Model{{}}, nil, nil)
	require.NoError(t, err)

	manifestPath := filepath.Join(dir, "manifest.yaml")
	data, err := os.ReadFile(manifestPath)
	require.NoError(t, err)
	tampered := append([]byte{}, data...)
	tampered = append(tampered, []byte("\nfingerprint: 1\n")...)
	require.NoError(t, os.WriteFile(manifestPath, tampered, 0o644))

	_, _, err = artifact.Load(dir)
	assert.Error(t, err)
}

func TestRoundTripFloatPreservesValue(t *testing.T) {
	a, b := 0.1, 0.2
	s := artifact.RoundTripFloat(a + b)
	assert.Equal(t, "0.30000000000000004", s)
}

func TestSaveWithFastPropSnapshot(t *testing.T) {
	dir := t.TempDir()
	cfg := sampleConfig()
	fp, err := fastprop.Fit(fastprop.Config{}, stubPop{3}, nil, []int{0}, nil, nil, nil)
	require.NoError(t, err)

	err = artifact.Save(dir, cfg, []int{0}, schema.Schema{}, schema.Schema{}, fp, []ensemble.Model{{}}, nil, nil)
	require.NoError(t, err)

	_, doc, err := artifact.Load(dir)
	require.NoError(t, err)
	assert.Equal(t, fp.Snapshot(), doc.FastProp)
}

// stubPop is a minimal schema.View exposing only NRows/ToSchema, enough
// to drive fastprop.Fit's empty-peripheral path.
type stubPop struct{ n int }

func (s stubPop) NRows() int                 { return s.n }
func (s stubPop) Categorical(int, int) int   { return 0 }
func (s stubPop) Discrete(int, int) float64  { return 0 }
func (s stubPop) Numerical(int, int) float64 { return 0 }
func (s stubPop) TimeStamp(int) float64      { return 0 }
func (s stubPop) Target(int, int) float64    { return 0 }
func (s stubPop) JoinKey(int, int) int       { return 0 }
func (s stubPop) Text(int, int) int          { return -1 }
func (s stubPop) ToSchema() schema.Schema    { return schema.Schema{} }
func (s stubPop) CategoricalUnit(int) string { return "" }
func (s stubPop) NumericalUnit(int) string   { return "" }
func (s stubPop) DiscreteUnit(int) string    { return "" }
func (s stubPop) CategoricalName(int) string { return "" }
func (s stubPop) NumericalName(int) string   { return "" }
func (s stubPop) DiscreteName(int) string    { return "" }

var _ schema.View = stubPop{}
