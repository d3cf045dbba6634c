// Package registry enumerates the model variants compared by a run.
//
// Each Variant carries its hyperparameters, the feature subset it trains on
// and its diagnostic capabilities. Diagnostics are chosen from the
// capabilities only; nothing downstream inspects variant names.
package registry

import (
	"fmt"
	"strings"

	"github.com/YuminosukeSato/modelbench/core/model"
	"github.com/YuminosukeSato/modelbench/linear"
	"github.com/YuminosukeSato/modelbench/pkg/errors"
	"github.com/YuminosukeSato/modelbench/preprocessing"
	"github.com/YuminosukeSato/modelbench/sklearn/ensemble"
	"github.com/YuminosukeSato/modelbench/sklearn/linear_model"
	"github.com/YuminosukeSato/modelbench/sklearn/naive_bayes"
	"github.com/YuminosukeSato/modelbench/sklearn/neighbors"
	"github.com/YuminosukeSato/modelbench/sklearn/svm"
	"github.com/YuminosukeSato/modelbench/sklearn/tree"
)

// DefaultSeed seeds the randomized estimators.
const DefaultSeed int64 = 42

// Kind identifies the algorithm behind a Variant.
type Kind int

const (
	LinearRegression Kind = iota
	LogisticRegression
	SVM
	DecisionTree
	RandomForest
	NaiveBayes
	KNN
)

var kindNames = map[Kind]string{
	LinearRegression:   "linear_regression",
	LogisticRegression: "logistic_regression",
	SVM:                "svm",
	DecisionTree:       "decision_tree",
	RandomForest:       "random_forest",
	NaiveBayes:         "naive_bayes",
	KNN:                "knn",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Capability is a set of diagnostics a variant supports beyond the
// confusion matrix.
type Capability uint8

const (
	// SupportsTreePlot: the model is a tree, or an ensemble whose first
	// estimator is one.
	SupportsTreePlot Capability = 1 << iota
	// SupportsRegressionLine: the model produces continuous predictions.
	SupportsRegressionLine
	// SupportsSigmoidCurve: the model exposes Coef() [][]float64 and
	// Intercept() []float64 of a logistic link.
	SupportsSigmoidCurve
	// SupportsDecisionBoundary2D: the model is trained on the visualizable
	// subspace and can be evaluated over a 2-D grid.
	SupportsDecisionBoundary2D
)

var capabilityNames = []struct {
	c    Capability
	name string
}{
	{SupportsTreePlot, "tree_plot"},
	{SupportsRegressionLine, "regression_line"},
	{SupportsSigmoidCurve, "sigmoid_curve"},
	{SupportsDecisionBoundary2D, "decision_boundary_2d"},
}

// Has reports whether every capability in other is present.
func (c Capability) Has(other Capability) bool { return c&other == other }

// Names lists the capabilities in declaration order.
func (c Capability) Names() []string {
	var out []string
	for _, cn := range capabilityNames {
		if c.Has(cn.c) {
			out = append(out, cn.name)
		}
	}
	return out
}

func (c Capability) String() string {
	if c == 0 {
		return "none"
	}
	return strings.Join(c.Names(), ",")
}

// Params are the fixed hyperparameters of a variant.
type Params struct {
	// RoundPredictions marks a regressor used as a classifier: its continuous
	// predictions are rounded half to even, without clipping to the class
	// range, before scoring.
	RoundPredictions bool
	// Seed feeds estimators with a random_state.
	Seed int64
	// Values are the algorithm hyperparameters, for display and logging.
	Values map[string]interface{}
}

// Variant describes one model configuration.
type Variant struct {
	Kind     Kind
	Name     string
	Params   Params
	Features preprocessing.FeatureSet
	Caps     Capability
}

// Default returns the seven variants in comparison order, seeded with
// DefaultSeed.
func Default() []Variant { return Seeded(DefaultSeed) }

// Seeded returns the default variants with the given random seed.
func Seeded(seed int64) []Variant {
	return []Variant{
		{
			Kind: LinearRegression, Name: "Linear Regression",
			Params:   Params{RoundPredictions: true, Seed: seed, Values: map[string]interface{}{"fit_intercept": true}},
			Features: preprocessing.FullFeatures,
			Caps:     SupportsRegressionLine,
		},
		{
			Kind: LogisticRegression, Name: "Logistic Regression",
			Params: Params{Seed: seed, Values: map[string]interface{}{
				"C": 1.0, "penalty": "l2", "solver": "lbfgs", "max_iter": 100,
			}},
			Features: preprocessing.FullFeatures,
			Caps:     SupportsSigmoidCurve,
		},
		{
			Kind: SVM, Name: "Support Vector Machine",
			Params: Params{Seed: seed, Values: map[string]interface{}{
				"kernel": "rbf", "C": 1.0, "gamma": "scale",
			}},
			Features: preprocessing.VisualizableSubspace,
			Caps:     SupportsDecisionBoundary2D,
		},
		{
			Kind: DecisionTree, Name: "Decision Tree",
			Params: Params{Seed: seed, Values: map[string]interface{}{
				"criterion": "gini", "max_depth": nil, "min_samples_split": 2,
			}},
			Features: preprocessing.FullFeatures,
			Caps:     SupportsTreePlot,
		},
		{
			Kind: RandomForest, Name: "Random Forest",
			Params: Params{Seed: seed, Values: map[string]interface{}{
				"n_estimators": 100, "max_features": "sqrt", "bootstrap": true,
			}},
			Features: preprocessing.FullFeatures,
			Caps:     SupportsTreePlot,
		},
		{
			Kind: NaiveBayes, Name: "Naive Bayes",
			Params:   Params{Seed: seed, Values: map[string]interface{}{"var_smoothing": 1e-9}},
			Features: preprocessing.FullFeatures,
		},
		{
			Kind: KNN, Name: "K-Nearest Neighbors",
			Params:   Params{Seed: seed, Values: map[string]interface{}{"n_neighbors": 5}},
			Features: preprocessing.FullFeatures,
		},
	}
}

// New builds a fresh, unfitted estimator for the variant.
func (v Variant) New() (model.Estimator, error) {
	switch v.Kind {
	case LinearRegression:
		return linear.NewLinearRegression(), nil
	case LogisticRegression:
		return linear_model.NewLogisticRegression(linear_model.WithLRRandomState(v.Params.Seed)), nil
	case SVM:
		return svm.NewSVC(), nil
	case DecisionTree:
		return tree.NewDecisionTreeClassifier(tree.WithRandomState(v.Params.Seed)), nil
	case RandomForest:
		return ensemble.NewRandomForestClassifier(ensemble.WithRandomState(v.Params.Seed)), nil
	case NaiveBayes:
		return naive_bayes.NewGaussianNB(), nil
	case KNN:
		return neighbors.NewKNeighborsClassifier(), nil
	default:
		return nil, errors.NewValueError("registry.New", fmt.Sprintf("unknown variant kind %v", v.Kind))
	}
}
