// Package relmodel wires the core match/partition/tree engine, the
// FastProp propositionalization engine, and the gradient-boosted
// ensemble into one fit/transform/save/load composition root — the
// analogue of the teacher's root sqle.Engine owning an Analyzer and a
// ProcessList and exposing Query/Close.
package relmodel

import (
	"math"
	"math/rand"
	"strconv"

	"github.com/relforge/relforge/artifact"
	"github.com/relforge/relforge/config"
	"github.com/relforge/relforge/containers"
	"github.com/relforge/relforge/ensemble"
	"github.com/relforge/relforge/fastprop"
	"github.com/relforge/relforge/loss"
	"github.com/relforge/relforge/matching"
	"github.com/relforge/relforge/partition"
	"github.com/relforge/relforge/relerrors"
	"github.com/relforge/relforge/rflog"
	"github.com/relforge/relforge/schema"
	"github.com/relforge/relforge/tree"
)

// Model is a fitted relational-feature-engineering pipeline: a
// propositionalization pass (spec.md §4.7) feeding a per-target,
// gradient-boosted relational-tree ensemble (spec.md §4.5, §4.6). The
// match-and-target-mapping preprocessor (spec.md §4.8) is fitted inside
// FastProp's own fit (fastprop.Fit step 3) and persisted with FastProp's
// snapshot. Its per-key vectors are not appended as columns to any view:
// neither the trees nor FastProp's features read them.
type Model struct {
	cfg        config.Config
	targetCols []int
	popSchema  schema.Schema
	perSchema  schema.Schema
	fastProp   *fastprop.FastProp
	ensembles  []*ensemble.Model // one per target column, same order as targetCols
	predictors []Predictor       // one per target column, nil entry when feature selection kept no trees
	Scores     map[string]float64
}

// Snapshot is Model's persisted form, the counterpart artifact.Document
// encodes (spec.md §6).
type Snapshot struct {
	Config     config.Config
	TargetCols []int
	PopSchema  schema.Schema
	PerSchema  schema.Schema
	FastProp   fastprop.Snapshot
	Ensembles  []ensemble.Model
	Predictors []*LinearPredictorSnapshot // nil entry when that target has no predictor
	Scores     map[string]float64
}

func (m *Model) Snapshot() Snapshot {
	s := Snapshot{
		Config:     m.cfg,
		TargetCols: m.targetCols,
		PopSchema:  m.popSchema,
		PerSchema:  m.perSchema,
		Scores:     m.Scores,
	}
	if m.fastProp != nil {
		s.FastProp = m.fastProp.Snapshot()
	}
	for _, e := range m.ensembles {
		s.Ensembles = append(s.Ensembles, *e)
	}
	for _, p := range m.predictors {
		s.Predictors = append(s.Predictors, linearPredictorSnapshotOf(p))
	}
	return s
}

func FromSnapshot(s Snapshot) *Model {
	m := &Model{
		cfg:        s.Config,
		targetCols: s.TargetCols,
		popSchema:  s.PopSchema,
		perSchema:  s.PerSchema,
		Scores:     s.Scores,
	}
	m.fastProp = fastprop.FromSnapshot(s.FastProp)
	for i := range s.Ensembles {
		e := s.Ensembles[i]
		m.ensembles = append(m.ensembles, &e)
	}
	for _, ps := range s.Predictors {
		if ps == nil {
			m.predictors = append(m.predictors, nil)
			continue
		}
		m.predictors = append(m.predictors, LinearPredictorFromSnapshot(*ps))
	}
	return m
}

// linearPredictorSnapshotOf returns p's snapshot, or nil when p is the nil
// interface value (the feature-selection variant kept no trees for that
// target).
func linearPredictorSnapshotOf(p Predictor) *LinearPredictorSnapshot {
	lp, ok := p.(*LinearPredictor)
	if !ok || lp == nil {
		return nil
	}
	s := lp.Snapshot()
	return &s
}

// Fit trains a Model over one population view, its peripherals (spec.md
// §2's data flow: "the table provider delivers an immutable view of
// population + peripherals to the match-making layer"), and the
// population's target columns. peripherals[0] is treated as the
// relational ensemble's primary join target; every peripheral
// contributes to FastProp's propositionalization pass (spec.md §4.7
// iterates "for each peripheral"). This single-primary-peripheral
// simplification for the tree ensemble is recorded in DESIGN.md — the
// underlying tree.FitContext operates over one (population, peripheral)
// view pair per spec.md §4.5, and chaining several peripherals into one
// ensemble fit is left to a future multi-peripheral FitContext.
func Fit(cfg config.Config, pop schema.View, peripherals []schema.View, targetCols []int, logger *rflog.Logger) (*Model, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(peripherals) == 0 {
		return nil, relerrors.ErrInvalidArgument.New("relmodel: at least one peripheral table required")
	}
	if len(targetCols) == 0 {
		return nil, relerrors.ErrInvalidArgument.New("relmodel: at least one target column required")
	}
	if pop.NRows() == 0 {
		return nil, relerrors.ErrInvalidArgument.New("relmodel: population must have at least one row")
	}
	fn, err := cfg.LossFunction.Resolve()
	if err != nil {
		return nil, err
	}

	popSchema := pop.ToSchema()
	primary := peripherals[0]
	perSchema := primary.ToSchema()

	hasTS := popSchema.NumTimeStamps() > 0 && perSchema.NumTimeStamps() > 0
	matcher, err := matching.New(primary, 1, hasTS)
	if err != nil {
		return nil, err
	}
	primaryMatches := matcher.BuildFullMatchArray(pop, cfg.DeltaT)

	fpPeripherals := make([]fastprop.Peripheral, len(peripherals))
	for i, per := range peripherals {
		perHasTS := popSchema.NumTimeStamps() > 0 && per.ToSchema().NumTimeStamps() > 0
		pm, err := matching.New(per, 1, perHasTS)
		if err != nil {
			return nil, err
		}
		fpPeripherals[i] = fastprop.Peripheral{View: per, Matches: pm.BuildFullMatchArray(pop, cfg.DeltaT)}
	}

	fpCfg := fastprop.Config{
		NMostFrequent:   cfg.NMostFrequent,
		NumFeatures:     cfg.NumFeatures,
		SamplingFactor:  cfg.SamplingFactor,
		SplitTextFields: cfg.SplitTextFields,
		MinDF:           cfg.MinDF,
		VocabSize:       cfg.VocabSize,
		MappingMinFreq:  cfg.MinFreq,
		Aggregations:    cfg.FastPropAggregations(),
	}
	rnd := rand.New(rand.NewSource(cfg.Seed))
	fp, err := fastprop.Fit(fpCfg, pop, fpPeripherals, targetCols, nil, logger, rnd.Float64)
	if err != nil {
		return nil, err
	}

	families := admissibleFamilies(popSchema, perSchema, cfg.DeltaT)
	views := partition.Views{Pop: pop, Per: primary}

	treeCfg := tree.Config{
		MaxDepth:      cfg.MaxDepth,
		MinNumSamples: cfg.MinNumSamples,
		Gamma:         cfg.Gamma,
		NMostFrequent: cfg.NMostFrequent,
		DeltaT:        cfg.DeltaT,
	}
	ensembleCfg := ensemble.Config{
		NumIterations:  cfg.NumTrees,
		Shrinkage:      cfg.Shrinkage,
		SamplingFactor: cfg.SamplingFactor,
		RootPoolSize:   1,
		Tree:           treeCfg,
	}

	m := &Model{
		cfg:        cfg,
		targetCols: targetCols,
		popSchema:  popSchema,
		perSchema:  perSchema,
		fastProp:   fp,
		Scores:     map[string]float64{},
	}

	for _, col := range targetCols {
		targets := make([]float64, pop.NRows())
		for row := range targets {
			targets[row] = pop.Target(row, col)
		}
		ectx := &ensemble.Context{
			Views:    views,
			Families: families,
			Fn:       fn,
			Reducer:  nil,
			Logger:   logger,
			Rand:     rnd,
		}
		em, err := ensemble.Fit(ectx, ensembleCfg, primaryMatches, targets, nil)
		if err != nil {
			return nil, err
		}
		reprs := ensemble.RepresentativeMatches(primaryMatches, pop.NRows())
		em, predictor := fitPredictorAndPrune(em, views, reprs, targets)
		m.ensembles = append(m.ensembles, em)
		m.predictors = append(m.predictors, predictor)
		m.Scores[scoreName(col)] = trainingRSquared(m, len(m.ensembles)-1, views, reprs, targets)
	}

	return m, nil
}

// fitPredictorAndPrune implements spec.md §4.6 step 3 and its
// feature-selection variant: after boosting settles on em's trees, fit a
// LinearPredictor over the per-tree raw-output feature matrix, rank trees
// by the predictor's own importance vector, and retain only those with
// positive importance. The predictor is refit on the pruned matrix so its
// weight vector lines up with the pruned ensemble's member order. If no
// tree survives pruning (a fully collinear or label-independent feature
// matrix), em is returned unpruned with a nil predictor — Predict then
// falls back to the additive ensemble.Predict path for that target.
func fitPredictorAndPrune(em *ensemble.Model, v partition.Views, reprs []containers.Match, targets []float64) (*ensemble.Model, Predictor) {
	if len(em.Members) == 0 {
		return em, nil
	}

	features := ensemble.FeatureMatrix(em, v, reprs)
	full := &LinearPredictor{}
	if err := full.Fit(features, targets); err != nil {
		return em, nil
	}

	var keep []int
	for i, imp := range full.Importance() {
		if imp > 0 {
			keep = append(keep, i)
		}
	}
	if len(keep) == 0 {
		return em, nil
	}

	prunedMembers := make([]ensemble.Member, len(keep))
	prunedFeatures := make([][]float64, len(features))
	for i, row := range features {
		prow := make([]float64, len(keep))
		for j, idx := range keep {
			prow[j] = row[idx]
		}
		prunedFeatures[i] = prow
	}
	for j, idx := range keep {
		prunedMembers[j] = em.Members[idx]
	}

	pruned := &ensemble.Model{Members: prunedMembers}
	final := &LinearPredictor{}
	if err := final.Fit(prunedFeatures, targets); err != nil {
		return em, nil
	}
	return pruned, final
}

// Predict applies the target-th ensemble's fitted trees to one
// population row, using the population row's representative match
// against the primary peripheral (IxPer is irrelevant for families
// keyed purely on the population side, and populated matches carry the
// true IxPer for families that do read the peripheral).
func (m *Model) Predict(targetIdx int, v partition.Views, match containers.Match) float64 {
	predictor := m.predictors[targetIdx]
	if predictor == nil {
		return ensemble.Predict(m.ensembles[targetIdx], v, match)
	}
	raw := ensemble.RawOutputs(m.ensembles[targetIdx], v, match)
	out := predictor.Predict(raw)
	if math.IsNaN(out) {
		return 0
	}
	return out
}

// Transform runs the fitted FastProp feature set over pop/peripherals
// (spec.md §4.7 "transform"), independent of the ensemble.
func (m *Model) Transform(pop schema.View, peripherals []fastprop.Peripheral, logger *rflog.Logger) ([][]float64, error) {
	if m.fastProp == nil {
		return nil, relerrors.ErrNotFitted.New("relmodel.Model.Transform")
	}
	return m.fastProp.Transform(pop, peripherals, logger)
}

func scoreName(targetCol int) string {
	return "target_" + strconv.Itoa(targetCol) + "_r2"
}

// trainingRSquared reports the targetIdx-th fitted target's in-sample R²
// against targets (spec.md §6's Manifest "R² scores"), computed once per
// population row through m.Predict so the reported score reflects
// whichever prediction path (a configured Predictor, or the additive
// ensemble.Predict fallback) Predict actually uses at inference time.
func trainingRSquared(m *Model, targetIdx int, v partition.Views, reprs []containers.Match, targets []float64) float64 {
	preds := make([]float64, len(targets))
	for row := range targets {
		preds[row] = m.Predict(targetIdx, v, reprs[row])
	}

	var sumY loss.KahanSum
	n := float64(len(targets))
	for _, y := range targets {
		sumY.Add(y)
	}
	meanY := sumY.Value() / n
	var ssTot, ssRes loss.KahanSum
	for i, y := range targets {
		ssTot.Add((y - meanY) * (y - meanY))
		d := y - preds[i]
		ssRes.Add(d * d)
	}
	if ssTot.Value() == 0 {
		return 0
	}
	return 1 - ssRes.Value()/ssTot.Value()
}

// Save persists m under dir via the artifact package (spec.md §6).
func (m *Model) Save(dir string) error {
	models := make([]ensemble.Model, len(m.ensembles))
	for i, e := range m.ensembles {
		models[i] = *e
	}
	predictors := make([]artifact.PredictorSnapshot, len(m.predictors))
	for i, p := range m.predictors {
		if s := linearPredictorSnapshotOf(p); s != nil {
			predictors[i] = artifact.PredictorSnapshot{Present: true, Weights: s.Weights, Intercept: s.Intercept}
		}
	}
	return artifact.Save(dir, m.cfg, m.targetCols, m.popSchema, m.perSchema, m.fastProp, models, predictors, m.Scores)
}

// Load reconstructs a Model previously written by Save (spec.md §8
// property 7: round trip predicts bit-identically to the original).
func Load(dir string) (*Model, error) {
	manifest, doc, err := artifact.Load(dir)
	if err != nil {
		return nil, err
	}
	m := &Model{
		cfg:        doc.Config,
		targetCols: doc.TargetCols,
		popSchema:  doc.PopSchema,
		perSchema:  doc.PerSchema,
		fastProp:   fastprop.FromSnapshot(doc.FastProp),
		Scores:     map[string]float64{},
	}
	for name, s := range manifest.Scores {
		if v, err := strconv.ParseFloat(s, 64); err == nil {
			m.Scores[name] = v
		}
	}
	for i := range doc.Members {
		e := doc.Members[i]
		m.ensembles = append(m.ensembles, &e)
	}
	for i := range doc.Members {
		if i < len(doc.Predictors) && doc.Predictors[i].Present {
			ps := doc.Predictors[i]
			m.predictors = append(m.predictors, LinearPredictorFromSnapshot(LinearPredictorSnapshot{Weights: ps.Weights, Intercept: ps.Intercept}))
			continue
		}
		m.predictors = append(m.predictors, nil)
	}
	return m, nil
}
