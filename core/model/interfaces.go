package model

import (
	"gonum.org/v1/gonum/mat"
)

// Regressor is an estimator with continuous output.
type Regressor interface {
	Estimator

	// Score returns the coefficient of determination R^2 of the prediction.
	Score(X, y mat.Matrix) (float64, error)
}

// Classifier is an estimator over integer class labels.
type Classifier interface {
	Estimator

	// Classes returns the sorted unique classes seen during fitting.
	Classes() []int
}

// ProbabilisticClassifier also exposes class membership probabilities.
// Columns follow the order of Classes().
type ProbabilisticClassifier interface {
	Classifier

	PredictProba(X mat.Matrix) (mat.Matrix, error)
}

// ParameterGetter is the interface for models that expose their parameters.
type ParameterGetter interface {
	// GetParams returns the model's hyperparameters.
	GetParams() map[string]interface{}
}

// ParameterSetter is the interface for models that allow parameter modification.
type ParameterSetter interface {
	SetParams(params map[string]interface{}) error
}
