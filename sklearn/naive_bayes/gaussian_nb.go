// Package naive_bayes provides Gaussian naive Bayes classification.
package naive_bayes

import (
	"fmt"
	"math"
	"sort"

	"github.com/YuminosukeSato/modelbench/core/model"
	"github.com/YuminosukeSato/modelbench/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// GaussianNB models each feature as an independent normal distribution per
// class. Variances are inflated by var_smoothing times the largest feature
// variance so constant features do not produce zero variances.
type GaussianNB struct {
	state *model.StateManager

	varSmoothing float64
	priors       []float64 // nil: empirical class frequencies

	classes_    []int
	classPrior_ []float64
	theta_      [][]float64 // class means
	var_        [][]float64 // class variances (smoothed)
	epsilon_    float64
}

// Option configures a GaussianNB.
type Option func(*GaussianNB)

// WithVarSmoothing sets the variance smoothing factor.
func WithVarSmoothing(v float64) Option {
	return func(nb *GaussianNB) { nb.varSmoothing = v }
}

// WithPriors fixes the class priors instead of using class frequencies.
func WithPriors(p []float64) Option {
	return func(nb *GaussianNB) { nb.priors = append([]float64(nil), p...) }
}

// NewGaussianNB creates a GaussianNB with var_smoothing=1e-9.
func NewGaussianNB(opts ...Option) *GaussianNB {
	nb := &GaussianNB{
		state:        model.NewStateManager(),
		varSmoothing: 1e-9,
	}
	for _, opt := range opts {
		opt(nb)
	}
	return nb
}

// Fit estimates per-class means, variances and priors.
func (nb *GaussianNB) Fit(X, y mat.Matrix) error {
	nSamples, nFeatures := X.Dims()
	yRows, yCols := y.Dims()
	if nSamples == 0 || nFeatures == 0 {
		return errors.NewModelError("GaussianNB.Fit", "empty data", errors.ErrEmptyData)
	}
	if yRows != nSamples {
		return errors.NewDimensionError("GaussianNB.Fit", nSamples, yRows, 0)
	}
	if yCols != 1 {
		return errors.NewValueError("GaussianNB.Fit", "y must be a column vector")
	}
	if nb.varSmoothing < 0 {
		return errors.NewValidationError("var_smoothing", "must be non-negative", nb.varSmoothing)
	}

	byClass := make(map[int][]int)
	for i := 0; i < nSamples; i++ {
		c := int(y.At(i, 0))
		byClass[c] = append(byClass[c], i)
	}
	classes := make([]int, 0, len(byClass))
	for c := range byClass {
		classes = append(classes, c)
	}
	sort.Ints(classes)

	if nb.priors != nil {
		if len(nb.priors) != len(classes) {
			return errors.NewDimensionError("GaussianNB.Fit", len(classes), len(nb.priors), 0)
		}
		if math.Abs(floats.Sum(nb.priors)-1) > 1e-8 {
			return errors.NewValidationError("priors", "must sum to 1", nb.priors)
		}
	}

	col := make([]float64, nSamples)
	var maxVar float64
	for j := 0; j < nFeatures; j++ {
		mat.Col(col, j, X)
		_, v := stat.PopMeanVariance(col, nil)
		maxVar = math.Max(maxVar, v)
	}
	nb.epsilon_ = nb.varSmoothing * maxVar

	nb.classes_ = classes
	nb.classPrior_ = make([]float64, len(classes))
	nb.theta_ = make([][]float64, len(classes))
	nb.var_ = make([][]float64, len(classes))
	for k, c := range classes {
		idx := byClass[c]
		nb.theta_[k] = make([]float64, nFeatures)
		nb.var_[k] = make([]float64, nFeatures)
		vals := make([]float64, len(idx))
		for j := 0; j < nFeatures; j++ {
			for q, i := range idx {
				vals[q] = X.At(i, j)
			}
			mean, variance := stat.PopMeanVariance(vals, nil)
			nb.theta_[k][j] = mean
			nb.var_[k][j] = variance + nb.epsilon_
		}
		if nb.priors != nil {
			nb.classPrior_[k] = nb.priors[k]
		} else {
			nb.classPrior_[k] = float64(len(idx)) / float64(nSamples)
		}
	}

	nb.state.SetDimensions(nFeatures, nSamples)
	nb.state.SetFitted()
	return nil
}

// jointLogLikelihood returns log P(c) + log P(x|c) for every row and class.
func (nb *GaussianNB) jointLogLikelihood(X mat.Matrix, method string) (*mat.Dense, error) {
	nSamples, nFeatures := X.Dims()
	if err := nb.state.CheckFeatures("GaussianNB", method, nFeatures); err != nil {
		return nil, err
	}

	jll := mat.NewDense(nSamples, len(nb.classes_), nil)
	for k := range nb.classes_ {
		var norm float64
		for j := 0; j < nFeatures; j++ {
			norm += math.Log(2 * math.Pi * nb.var_[k][j])
		}
		base := math.Log(nb.classPrior_[k]) - 0.5*norm
		for i := 0; i < nSamples; i++ {
			var sq float64
			for j := 0; j < nFeatures; j++ {
				d := X.At(i, j) - nb.theta_[k][j]
				sq += d * d / nb.var_[k][j]
			}
			jll.Set(i, k, base-0.5*sq)
		}
	}
	return jll, nil
}

// Predict returns the class with the highest posterior.
func (nb *GaussianNB) Predict(X mat.Matrix) (mat.Matrix, error) {
	jll, err := nb.jointLogLikelihood(X, "Predict")
	if err != nil {
		return nil, err
	}
	nSamples, _ := jll.Dims()
	out := mat.NewDense(nSamples, 1, nil)
	for i := 0; i < nSamples; i++ {
		out.Set(i, 0, float64(nb.classes_[floats.MaxIdx(jll.RawRowView(i))]))
	}
	return out, nil
}

// PredictProba returns normalized posteriors.
func (nb *GaussianNB) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	jll, err := nb.jointLogLikelihood(X, "PredictProba")
	if err != nil {
		return nil, err
	}
	nSamples, nClasses := jll.Dims()
	for i := 0; i < nSamples; i++ {
		row := jll.RawRowView(i)
		lse := errors.LogSumExp(row)
		for k := 0; k < nClasses; k++ {
			row[k] = math.Exp(row[k] - lse)
		}
	}
	return jll, nil
}

// Score returns the mean accuracy on X and y.
func (nb *GaussianNB) Score(X, y mat.Matrix) (float64, error) {
	pred, err := nb.Predict(X)
	if err != nil {
		return 0, err
	}
	n, _ := X.Dims()
	correct := 0
	for i := 0; i < n; i++ {
		if pred.At(i, 0) == y.At(i, 0) {
			correct++
		}
	}
	return float64(correct) / float64(n), nil
}

// IsFitted reports whether Fit has completed.
func (nb *GaussianNB) IsFitted() bool { return nb.state.IsFitted() }

// Classes returns the sorted class labels.
func (nb *GaussianNB) Classes() []int { return append([]int(nil), nb.classes_...) }

// ClassPrior returns the fitted class priors.
func (nb *GaussianNB) ClassPrior() []float64 { return append([]float64(nil), nb.classPrior_...) }

// Theta returns the per-class feature means.
func (nb *GaussianNB) Theta() [][]float64 { return nb.theta_ }

// Var returns the smoothed per-class feature variances.
func (nb *GaussianNB) Var() [][]float64 { return nb.var_ }

// GetParams returns the hyperparameters.
func (nb *GaussianNB) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"var_smoothing": nb.varSmoothing,
		"priors":        nb.priors,
	}
}

// String returns a short description.
func (nb *GaussianNB) String() string {
	return fmt.Sprintf("GaussianNB(var_smoothing=%g)", nb.varSmoothing)
}
