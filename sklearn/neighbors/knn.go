// Package neighbors provides k-nearest-neighbour classification.
package neighbors

import (
	"fmt"
	"math"
	"sort"

	"github.com/YuminosukeSato/modelbench/core/model"
	"github.com/YuminosukeSato/modelbench/core/parallel"
	"github.com/YuminosukeSato/modelbench/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// KNeighborsClassifier votes among the k nearest training rows under the
// Euclidean distance with uniform weights.
//
// Neighbours at equal distance are ordered by training row index, and a tied
// vote goes to the smallest class, so predictions are reproducible.
type KNeighborsClassifier struct {
	state *model.StateManager

	nNeighbors int

	fitX     *mat.Dense
	fitY     []int // index into classes_
	classes_ []int
}

// Option configures a KNeighborsClassifier.
type Option func(*KNeighborsClassifier)

// WithNNeighbors sets k.
func WithNNeighbors(k int) Option {
	return func(kn *KNeighborsClassifier) { kn.nNeighbors = k }
}

// NewKNeighborsClassifier creates a classifier with k=5.
func NewKNeighborsClassifier(opts ...Option) *KNeighborsClassifier {
	kn := &KNeighborsClassifier{
		state:      model.NewStateManager(),
		nNeighbors: 5,
	}
	for _, opt := range opts {
		opt(kn)
	}
	return kn
}

// Fit stores the training data.
func (kn *KNeighborsClassifier) Fit(X, y mat.Matrix) error {
	nSamples, nFeatures := X.Dims()
	yRows, yCols := y.Dims()
	if nSamples == 0 || nFeatures == 0 {
		return errors.NewModelError("KNeighborsClassifier.Fit", "empty data", errors.ErrEmptyData)
	}
	if yRows != nSamples {
		return errors.NewDimensionError("KNeighborsClassifier.Fit", nSamples, yRows, 0)
	}
	if yCols != 1 {
		return errors.NewValueError("KNeighborsClassifier.Fit", "y must be a column vector")
	}
	if kn.nNeighbors < 1 {
		return errors.NewValidationError("n_neighbors", "must be at least 1", kn.nNeighbors)
	}
	if kn.nNeighbors > nSamples {
		return errors.NewValueError("KNeighborsClassifier.Fit",
			fmt.Sprintf("n_neighbors=%d exceeds n_samples=%d", kn.nNeighbors, nSamples))
	}

	set := make(map[int]struct{})
	for i := 0; i < nSamples; i++ {
		set[int(y.At(i, 0))] = struct{}{}
	}
	kn.classes_ = make([]int, 0, len(set))
	for c := range set {
		kn.classes_ = append(kn.classes_, c)
	}
	sort.Ints(kn.classes_)

	kn.fitY = make([]int, nSamples)
	for i := range kn.fitY {
		kn.fitY[i] = sort.SearchInts(kn.classes_, int(y.At(i, 0)))
	}
	kn.fitX = mat.DenseCopyOf(X)

	kn.state.SetDimensions(nFeatures, nSamples)
	kn.state.SetFitted()
	return nil
}

type neighbor struct {
	dist  float64
	index int
}

func (kn *KNeighborsClassifier) nearest(x []float64) []neighbor {
	nTrain, _ := kn.fitX.Dims()
	all := make([]neighbor, nTrain)
	for j := 0; j < nTrain; j++ {
		row := kn.fitX.RawRowView(j)
		var d float64
		for f := range row {
			diff := row[f] - x[f]
			d += diff * diff
		}
		all[j] = neighbor{dist: d, index: j}
	}
	sort.SliceStable(all, func(a, b int) bool { return all[a].dist < all[b].dist })
	return all[:kn.nNeighbors]
}

// KNeighbors returns the distances and training indices of the k nearest
// rows for each row of X, nearest first.
func (kn *KNeighborsClassifier) KNeighbors(X mat.Matrix) (*mat.Dense, [][]int, error) {
	nSamples, nFeatures := X.Dims()
	if err := kn.state.CheckFeatures("KNeighborsClassifier", "KNeighbors", nFeatures); err != nil {
		return nil, nil, err
	}
	dist := mat.NewDense(nSamples, kn.nNeighbors, nil)
	idx := make([][]int, nSamples)
	parallel.ForEach(nSamples, 64, func(i int) {
		x := mat.Row(nil, i, X)
		nb := kn.nearest(x)
		idx[i] = make([]int, len(nb))
		for q, n := range nb {
			dist.Set(i, q, math.Sqrt(n.dist))
			idx[i][q] = n.index
		}
	})
	return dist, idx, nil
}

// PredictProba returns the share of neighbours in each class.
func (kn *KNeighborsClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	nSamples, nFeatures := X.Dims()
	if err := kn.state.CheckFeatures("KNeighborsClassifier", "PredictProba", nFeatures); err != nil {
		return nil, err
	}
	out := mat.NewDense(nSamples, len(kn.classes_), nil)
	parallel.ForEach(nSamples, 64, func(i int) {
		x := mat.Row(nil, i, X)
		row := out.RawRowView(i)
		for _, n := range kn.nearest(x) {
			row[kn.fitY[n.index]]++
		}
		for k := range row {
			row[k] /= float64(kn.nNeighbors)
		}
	})
	return out, nil
}

// Predict returns the majority class among the neighbours.
func (kn *KNeighborsClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := kn.PredictProba(X)
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
		out.Set(i, 0, float64(kn.classes_[best]))
	}
	return out, nil
}

// Score returns the mean accuracy on X and y.
func (kn *KNeighborsClassifier) Score(X, y mat.Matrix) (float64, error) {
	pred, err := kn.Predict(X)
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
func (kn *KNeighborsClassifier) IsFitted() bool { return kn.state.IsFitted() }

// Classes returns the sorted class labels.
func (kn *KNeighborsClassifier) Classes() []int { return append([]int(nil), kn.classes_...) }

// GetParams returns the hyperparameters.
func (kn *KNeighborsClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{"n_neighbors": kn.nNeighbors, "weights": "uniform", "metric": "euclidean"}
}

// String returns a short description.
func (kn *KNeighborsClassifier) String() string {
	return fmt.Sprintf("KNeighborsClassifier(n_neighbors=%d)", kn.nNeighbors)
}
