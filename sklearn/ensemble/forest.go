// Package ensemble provides bagged tree ensembles.
package ensemble

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/YuminosukeSato/modelbench/core/model"
	"github.com/YuminosukeSato/modelbench/core/parallel"
	"github.com/YuminosukeSato/modelbench/pkg/errors"
	"github.com/YuminosukeSato/modelbench/sklearn/tree"
	"gonum.org/v1/gonum/mat"
)

// RandomForestClassifier averages the class probabilities of decision trees
// fitted on bootstrap samples with a random feature subset at each split.
type RandomForestClassifier struct {
	state *model.StateManager

	nEstimators     int
	criterion       string
	maxDepth        int
	minSamplesSplit int
	minSamplesLeaf  int
	maxFeatures     string // "sqrt", "log2", "all"
	bootstrap       bool
	randomState     int64

	estimators_ []*tree.DecisionTreeClassifier
	classes_    []int
	nFeatures_  int
}

// Option configures a RandomForestClassifier.
type Option func(*RandomForestClassifier)

// WithNEstimators sets the number of trees.
func WithNEstimators(n int) Option {
	return func(rf *RandomForestClassifier) { rf.nEstimators = n }
}

// WithCriterion sets the split criterion of every tree.
func WithCriterion(c string) Option {
	return func(rf *RandomForestClassifier) { rf.criterion = c }
}

// WithMaxDepth limits tree depth. 0 means unlimited.
func WithMaxDepth(d int) Option {
	return func(rf *RandomForestClassifier) { rf.maxDepth = d }
}

// WithMinSamplesLeaf sets the minimum leaf size of every tree.
func WithMinSamplesLeaf(n int) Option {
	return func(rf *RandomForestClassifier) { rf.minSamplesLeaf = n }
}

// WithMaxFeatures sets the per-split feature budget: "sqrt", "log2" or "all".
func WithMaxFeatures(m string) Option {
	return func(rf *RandomForestClassifier) { rf.maxFeatures = m }
}

// WithBootstrap toggles bootstrap sampling.
func WithBootstrap(b bool) Option {
	return func(rf *RandomForestClassifier) { rf.bootstrap = b }
}

// WithRandomState seeds the bootstrap draws and the tree seeds.
func WithRandomState(seed int64) Option {
	return func(rf *RandomForestClassifier) { rf.randomState = seed }
}

// NewRandomForestClassifier creates a forest of 100 gini trees with sqrt
// features and bootstrap sampling.
func NewRandomForestClassifier(opts ...Option) *RandomForestClassifier {
	rf := &RandomForestClassifier{
		state:           model.NewStateManager(),
		nEstimators:     100,
		criterion:       "gini",
		minSamplesSplit: 2,
		minSamplesLeaf:  1,
		maxFeatures:     "sqrt",
		bootstrap:       true,
	}
	for _, opt := range opts {
		opt(rf)
	}
	return rf
}

func (rf *RandomForestClassifier) featureBudget(nFeatures int) (int, error) {
	var k int
	switch rf.maxFeatures {
	case "sqrt":
		k = int(math.Sqrt(float64(nFeatures)))
	case "log2":
		k = int(math.Log2(float64(nFeatures)))
	case "all", "":
		k = nFeatures
	default:
		return 0, errors.NewValidationError("max_features", "must be sqrt, log2 or all", rf.maxFeatures)
	}
	if k < 1 {
		k = 1
	}
	return k, nil
}

// Fit grows every tree. Trees are independent and fitted in parallel; the
// per-tree seeds are drawn up front so the result does not depend on
// scheduling.
func (rf *RandomForestClassifier) Fit(X, y mat.Matrix) error {
	nSamples, nFeatures := X.Dims()
	if nSamples == 0 || nFeatures == 0 {
		return errors.NewModelError("RandomForestClassifier.Fit", "empty data", errors.ErrEmptyData)
	}
	if rf.nEstimators < 1 {
		return errors.NewValidationError("n_estimators", "must be at least 1", rf.nEstimators)
	}
	budget, err := rf.featureBudget(nFeatures)
	if err != nil {
		return err
	}

	rng := rand.New(rand.NewSource(rf.randomState))
	seeds := make([]int64, rf.nEstimators)
	weights := make([][]float64, rf.nEstimators)
	for t := range seeds {
		seeds[t] = rng.Int63()
		w := make([]float64, nSamples)
		if rf.bootstrap {
			for i := 0; i < nSamples; i++ {
				w[rng.Intn(nSamples)]++
			}
		} else {
			for i := range w {
				w[i] = 1
			}
		}
		weights[t] = w
	}

	Xd := mat.DenseCopyOf(X)
	estimators := make([]*tree.DecisionTreeClassifier, rf.nEstimators)
	errs := make([]error, rf.nEstimators)
	parallel.ForEach(rf.nEstimators, 1, func(t int) {
		est := tree.NewDecisionTreeClassifier(
			tree.WithCriterion(rf.criterion),
			tree.WithMaxDepth(rf.maxDepth),
			tree.WithMinSamplesSplit(rf.minSamplesSplit),
			tree.WithMinSamplesLeaf(rf.minSamplesLeaf),
			tree.WithMaxFeatures(budget),
			tree.WithRandomState(seeds[t]),
		)
		errs[t] = errors.SafeExecute("RandomForestClassifier.Fit", func() error {
			return est.FitWeighted(Xd, y, weights[t])
		})
		estimators[t] = est
	})
	for t, err := range errs {
		if err != nil {
			return errors.Wrapf(err, "tree %d", t)
		}
	}

	rf.estimators_ = estimators
	rf.classes_ = estimators[0].Classes()
	rf.nFeatures_ = nFeatures
	rf.state.SetDimensions(nFeatures, nSamples)
	rf.state.SetFitted()
	return nil
}

// PredictProba averages the tree probabilities.
func (rf *RandomForestClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	nSamples, nFeatures := X.Dims()
	if err := rf.state.CheckFeatures("RandomForestClassifier", "PredictProba", nFeatures); err != nil {
		return nil, err
	}

	sum := mat.NewDense(nSamples, len(rf.classes_), nil)
	for _, est := range rf.estimators_ {
		p, err := est.PredictProba(X)
		if err != nil {
			return nil, err
		}
		sum.Add(sum, p)
	}
	sum.Scale(1/float64(len(rf.estimators_)), sum)
	return sum, nil
}

// Predict returns the class with the highest averaged probability; ties go
// to the smaller class.
func (rf *RandomForestClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := rf.PredictProba(X)
	if err != nil {
		return nil, err
	}
	nSamples, nClasses := proba.Dims()
	out := mat.NewDense(nSamples, 1, nil)
	for i := 0; i < nSamples; i++ {
		best := 0
		for k := 1; k < nClasses; k++ {
			if proba.At(i, k) > proba.At(i, best) {
				best = k
			}
		}
		out.Set(i, 0, float64(rf.classes_[best]))
	}
	return out, nil
}

// IsFitted reports whether Fit has completed.
func (rf *RandomForestClassifier) IsFitted() bool { return rf.state.IsFitted() }

// Classes returns the sorted class labels.
func (rf *RandomForestClassifier) Classes() []int { return append([]int(nil), rf.classes_...) }

// Estimators returns the fitted trees in fitting order.
func (rf *RandomForestClassifier) Estimators() []*tree.DecisionTreeClassifier {
	return append([]*tree.DecisionTreeClassifier(nil), rf.estimators_...)
}

// FeatureImportances returns the mean of the tree importances.
func (rf *RandomForestClassifier) FeatureImportances() []float64 {
	out := make([]float64, rf.nFeatures_)
	for _, est := range rf.estimators_ {
		for j, v := range est.GetFeatureImportances() {
			out[j] += v
		}
	}
	for j := range out {
		out[j] /= float64(len(rf.estimators_))
	}
	return out
}

// GetParams returns the hyperparameters.
func (rf *RandomForestClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_estimators":      rf.nEstimators,
		"criterion":         rf.criterion,
		"max_depth":         rf.maxDepth,
		"min_samples_split": rf.minSamplesSplit,
		"min_samples_leaf":  rf.minSamplesLeaf,
		"max_features":      rf.maxFeatures,
		"bootstrap":         rf.bootstrap,
		"random_state":      rf.randomState,
	}
}

// String returns a short description.
func (rf *RandomForestClassifier) String() string {
	return fmt.Sprintf("RandomForestClassifier(n_estimators=%d, max_features=%s)", rf.nEstimators, rf.maxFeatures)
}
