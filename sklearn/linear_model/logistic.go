// Package linear_model provides regularized logistic regression.
package linear_model

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/YuminosukeSato/modelbench/core/model"
	"github.com/YuminosukeSato/modelbench/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
)

// LogisticRegression implements L2-regularized logistic regression for
// classification, following scikit-learn's defaults (C=1, lbfgs,
// max_iter=100, multi_class="auto").
//
// With the lbfgs solver two classes are fitted as one binary model and more
// classes as a multinomial (softmax) model. multi_class="ovr" or
// solver="gd" fall back to one-vs-rest gradient descent.
type LogisticRegression struct {
	state *model.StateManager // State management (composition)

	// Hyperparameters
	penalty      string  // Regularization: "l2", "none"
	C            float64 // Inverse regularization strength (1/alpha)
	fitIntercept bool    // Whether to fit intercept
	randomState  int64   // Random seed (gd initialization)
	solver       string  // Solver: "lbfgs", "gd"
	maxIter      int     // Maximum iterations
	multiClass   string  // Multi-class: "auto", "ovr", "multinomial"
	tol          float64 // Tolerance for stopping

	// Model parameters
	coef_      [][]float64 // Coefficients (n_classes x n_features or 1 x n_features for binary)
	intercept_ []float64   // Intercept terms
	classes_   []int       // Unique class labels
	nClasses_  int         // Number of classes
	nFeatures_ int         // Number of features
	nIter_     []int       // Actual iterations per fitted model

	rand *rand.Rand
}

// LogisticRegressionOption is a functional option for LogisticRegression
type LogisticRegressionOption func(*LogisticRegression)

// NewLogisticRegression creates a new LogisticRegression classifier
func NewLogisticRegression(opts ...LogisticRegressionOption) *LogisticRegression {
	lr := &LogisticRegression{
		state:        model.NewStateManager(),
		penalty:      "l2",
		C:            1.0,
		fitIntercept: true,
		randomState:  0,
		solver:       "lbfgs",
		maxIter:      100,
		multiClass:   "auto",
		tol:          1e-4,
	}
	for _, opt := range opts {
		opt(lr)
	}
	lr.rand = rand.New(rand.NewSource(lr.randomState))
	return lr
}

// WithLRPenalty sets the regularization type
func WithLRPenalty(penalty string) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.penalty = penalty
	}
}

// WithLRC sets the inverse regularization strength
func WithLRC(c float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.C = c
	}
}

// WithLogisticFitIntercept sets whether to fit intercept
func WithLogisticFitIntercept(fit bool) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.fitIntercept = fit
	}
}

// WithLRSolver sets the optimization solver
func WithLRSolver(solver string) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.solver = solver
	}
}

// WithLRMultiClass sets the multi-class strategy
func WithLRMultiClass(strategy string) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.multiClass = strategy
	}
}

// WithLRMaxIter sets the maximum number of iterations
func WithLRMaxIter(maxIter int) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.maxIter = maxIter
	}
}

// WithLRTol sets the tolerance for stopping criteria
func WithLRTol(tol float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.tol = tol
	}
}

// WithLRRandomState sets the random seed
func WithLRRandomState(seed int64) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.randomState = seed
	}
}

// Fit trains the logistic regression model
func (lr *LogisticRegression) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "LogisticRegression.Fit")

	nSamples, nFeatures := X.Dims()
	yRows, yCols := y.Dims()
	if nSamples == 0 || nFeatures == 0 {
		return errors.NewModelError("LogisticRegression.Fit", "empty data", errors.ErrEmptyData)
	}
	if nSamples != yRows {
		return errors.NewDimensionError("LogisticRegression.Fit", nSamples, yRows, 0)
	}
	if yCols != 1 {
		return errors.NewValueError("LogisticRegression.Fit", "y must be a column vector")
	}
	if lr.C <= 0 {
		return errors.NewValidationError("C", "must be positive", lr.C)
	}

	lr.extractClasses(y)
	if lr.nClasses_ < 2 {
		return errors.NewValueError("LogisticRegression.Fit",
			fmt.Sprintf("needs samples of at least 2 classes, got %d", lr.nClasses_))
	}
	lr.nFeatures_ = nFeatures
	lr.state.Reset()

	switch {
	case lr.solver == "lbfgs" && lr.nClasses_ == 2 && lr.multiClass != "multinomial":
		err = lr.fitBinaryLBFGS(X, y)
	case lr.solver == "lbfgs" && lr.multiClass != "ovr":
		err = lr.fitMultinomial(X, y)
	case lr.nClasses_ == 2:
		lr.initializeWeights(nFeatures, 1)
		err = lr.fitBinary(X, y)
	default:
		lr.initializeWeights(nFeatures, lr.nClasses_)
		err = lr.fitOVR(X, y)
	}
	if err != nil {
		return err
	}

	// multinomial は全クラスを1回の最適化で解くので nIter_ は1要素
	for k := range lr.coef_ {
		iter := lr.nIter_[0]
		if k < len(lr.nIter_) {
			iter = lr.nIter_[k]
		}
		if err := errors.CheckNumericalStability("LogisticRegression.Fit", lr.coef_[k], iter); err != nil {
			return err
		}
	}
	if err := errors.CheckNumericalStability("LogisticRegression.Fit", lr.intercept_, 0); err != nil {
		return err
	}

	lr.state.SetDimensions(nFeatures, nSamples)
	lr.state.SetFitted()
	return nil
}

// extractClasses identifies unique class labels
func (lr *LogisticRegression) extractClasses(y mat.Matrix) {
	rows, _ := y.Dims()
	classMap := make(map[int]bool)
	for i := 0; i < rows; i++ {
		classMap[int(y.At(i, 0))] = true
	}

	lr.classes_ = make([]int, 0, len(classMap))
	for class := range classMap {
		lr.classes_ = append(lr.classes_, class)
	}
	sort.Ints(lr.classes_)
	lr.nClasses_ = len(lr.classes_)
}

func (lr *LogisticRegression) classIndex(label int) int {
	return sort.SearchInts(lr.classes_, label)
}

// initializeWeights allocates nModels weight rows with small random values
func (lr *LogisticRegression) initializeWeights(nFeatures, nModels int) {
	lr.coef_ = make([][]float64, nModels)
	for i := range lr.coef_ {
		lr.coef_[i] = make([]float64, nFeatures)
		for j := range lr.coef_[i] {
			lr.coef_[i][j] = lr.rand.NormFloat64() * 0.01
		}
	}
	lr.intercept_ = make([]float64, nModels)
	lr.nIter_ = make([]int, nModels)
}

// l2Scale returns the coefficient of 0.5*||w||^2 in the per-sample objective.
func (lr *LogisticRegression) l2Scale(nSamples int) float64 {
	if lr.penalty == "none" {
		return 0
	}
	return 1.0 / (lr.C * float64(nSamples))
}

// runLBFGS minimizes the problem from zeros and reports iteration-limit
// exhaustion as a ConvergenceWarning.
func (lr *LogisticRegression) runLBFGS(problem optimize.Problem, dim int) ([]float64, int, error) {
	settings := &optimize.Settings{
		MajorIterations:   lr.maxIter,
		GradientThreshold: lr.tol,
	}
	result, err := optimize.Minimize(problem, make([]float64, dim), settings, &optimize.LBFGS{})
	if result == nil {
		return nil, 0, errors.NewModelError("LogisticRegression.Fit", "lbfgs failed", err)
	}
	if stabErr := errors.CheckNumericalStability("LogisticRegression.Fit", result.X, result.MajorIterations); stabErr != nil {
		return nil, result.MajorIterations, stabErr
	}
	if err != nil || result.Status == optimize.IterationLimit {
		msg := "lbfgs failed to converge; increase max_iter or scale the data"
		if err != nil {
			msg = "lbfgs stopped early: " + err.Error()
		}
		errors.Warn(errors.NewConvergenceWarning("LogisticRegression", result.MajorIterations, msg))
	}
	return result.X, result.MajorIterations, nil
}

// fitBinaryLBFGS fits a single sigmoid model on the classes_[1] indicator.
func (lr *LogisticRegression) fitBinaryLBFGS(X, y mat.Matrix) error {
	nSamples, nFeatures := X.Dims()
	target := make([]float64, nSamples)
	for i := range target {
		if int(y.At(i, 0)) == lr.classes_[1] {
			target[i] = 1
		}
	}
	alpha := lr.l2Scale(nSamples)
	inv := 1.0 / float64(nSamples)
	dim := nFeatures + 1

	lossGrad := func(grad, w []float64) float64 {
		if grad != nil {
			for j := range grad {
				grad[j] = 0
			}
		}
		var loss float64
		for i := 0; i < nSamples; i++ {
			z := w[nFeatures]
			for j := 0; j < nFeatures; j++ {
				z += X.At(i, j) * w[j]
			}
			// log(1+exp(z)) - y*z
			loss += log1pExp(z) - target[i]*z
			if grad != nil {
				d := sigmoid(z) - target[i]
				for j := 0; j < nFeatures; j++ {
					grad[j] += d * X.At(i, j) * inv
				}
				if lr.fitIntercept {
					grad[nFeatures] += d * inv
				}
			}
		}
		loss *= inv
		for j := 0; j < nFeatures; j++ {
			loss += 0.5 * alpha * w[j] * w[j]
			if grad != nil {
				grad[j] += alpha * w[j]
			}
		}
		return loss
	}

	problem := optimize.Problem{
		Func: func(w []float64) float64 { return lossGrad(nil, w) },
		Grad: func(grad, w []float64) { lossGrad(grad, w) },
	}
	w, iters, err := lr.runLBFGS(problem, dim)
	if err != nil {
		return err
	}

	lr.coef_ = [][]float64{append([]float64(nil), w[:nFeatures]...)}
	lr.intercept_ = []float64{0}
	if lr.fitIntercept {
		lr.intercept_[0] = w[nFeatures]
	}
	lr.nIter_ = []int{iters}
	return nil
}

// fitMultinomial fits a softmax model with one weight row per class.
// Parameters are laid out class by class as [w_k..., b_k].
func (lr *LogisticRegression) fitMultinomial(X, y mat.Matrix) error {
	nSamples, nFeatures := X.Dims()
	K := lr.nClasses_
	stride := nFeatures + 1
	labels := make([]int, nSamples)
	for i := range labels {
		labels[i] = lr.classIndex(int(y.At(i, 0)))
	}
	alpha := lr.l2Scale(nSamples)
	inv := 1.0 / float64(nSamples)

	lossGrad := func(grad, w []float64) float64 {
		if grad != nil {
			for j := range grad {
				grad[j] = 0
			}
		}
		scores := make([]float64, K)
		var loss float64
		for i := 0; i < nSamples; i++ {
			for k := 0; k < K; k++ {
				off := k * stride
				s := w[off+nFeatures]
				for j := 0; j < nFeatures; j++ {
					s += X.At(i, j) * w[off+j]
				}
				scores[k] = s
			}
			lse := errors.LogSumExp(scores)
			loss += lse - scores[labels[i]]
			if grad == nil {
				continue
			}
			for k := 0; k < K; k++ {
				d := math.Exp(scores[k] - lse)
				if k == labels[i] {
					d--
				}
				off := k * stride
				for j := 0; j < nFeatures; j++ {
					grad[off+j] += d * X.At(i, j) * inv
				}
				if lr.fitIntercept {
					grad[off+nFeatures] += d * inv
				}
			}
		}
		loss *= inv
		for k := 0; k < K; k++ {
			off := k * stride
			for j := 0; j < nFeatures; j++ {
				loss += 0.5 * alpha * w[off+j] * w[off+j]
				if grad != nil {
					grad[off+j] += alpha * w[off+j]
				}
			}
		}
		return loss
	}

	problem := optimize.Problem{
		Func: func(w []float64) float64 { return lossGrad(nil, w) },
		Grad: func(grad, w []float64) { lossGrad(grad, w) },
	}
	w, iters, err := lr.runLBFGS(problem, K*stride)
	if err != nil {
		return err
	}

	lr.coef_ = make([][]float64, K)
	lr.intercept_ = make([]float64, K)
	lr.nIter_ = []int{iters}
	for k := 0; k < K; k++ {
		off := k * stride
		lr.coef_[k] = append([]float64(nil), w[off:off+nFeatures]...)
		if lr.fitIntercept {
			lr.intercept_[k] = w[off+nFeatures]
		}
	}
	return nil
}

// fitBinary fits binary logistic regression using gradient descent
func (lr *LogisticRegression) fitBinary(X, y mat.Matrix) error {
	nSamples, _ := X.Dims()
	yBinary := make([]float64, nSamples)
	for i := range yBinary {
		if int(y.At(i, 0)) == lr.classes_[1] {
			yBinary[i] = 1
		}
	}
	lr.gradientDescent(X, yBinary, 0)
	return nil
}

// fitOVR fits one-vs-rest multiclass classification
func (lr *LogisticRegression) fitOVR(X, y mat.Matrix) error {
	nSamples, _ := X.Dims()
	for classIdx, class := range lr.classes_ {
		yBinary := make([]float64, nSamples)
		for i := range yBinary {
			if int(y.At(i, 0)) == class {
				yBinary[i] = 1
			}
		}
		lr.gradientDescent(X, yBinary, classIdx)
	}
	return nil
}

// gradientDescent fits row idx of coef_ against the 0/1 targets yBinary.
func (lr *LogisticRegression) gradientDescent(X mat.Matrix, yBinary []float64, idx int) {
	nSamples, nFeatures := X.Dims()
	weights := lr.coef_[idx]
	intercept := &lr.intercept_[idx]
	alpha := lr.l2Scale(nSamples)

	baseLearningRate := 1.0
	converged := false
	for iter := 0; iter < lr.maxIter; iter++ {
		gradWeights := make([]float64, nFeatures)
		gradIntercept := 0.0
		for i := 0; i < nSamples; i++ {
			z := *intercept
			for j := 0; j < nFeatures; j++ {
				z += X.At(i, j) * weights[j]
			}
			e := sigmoid(z) - yBinary[i]
			gradIntercept += e
			for j := 0; j < nFeatures; j++ {
				gradWeights[j] += e * X.At(i, j)
			}
		}
		for j := range gradWeights {
			gradWeights[j] = gradWeights[j]/float64(nSamples) + alpha*weights[j]
		}
		gradIntercept /= float64(nSamples)

		learningRate := baseLearningRate / (1.0 + 0.1*float64(iter))
		for j := range weights {
			weights[j] -= learningRate * gradWeights[j]
		}
		if lr.fitIntercept {
			*intercept -= learningRate * gradIntercept
		}
		lr.nIter_[idx] = iter + 1

		maxGrad := math.Abs(gradIntercept)
		for _, g := range gradWeights {
			maxGrad = math.Max(maxGrad, math.Abs(g))
		}
		if maxGrad < lr.tol {
			converged = true
			break
		}
	}
	if !converged {
		errors.Warn(errors.NewConvergenceWarning("LogisticRegression", lr.maxIter,
			"gradient descent did not reach tol"))
	}
}

// decision returns the linear score of every fitted row for sample i.
func (lr *LogisticRegression) decision(X mat.Matrix, i int, scores []float64) {
	for k := range lr.coef_ {
		s := lr.intercept_[k]
		for j := 0; j < lr.nFeatures_; j++ {
			s += X.At(i, j) * lr.coef_[k][j]
		}
		scores[k] = s
	}
}

// Predict makes predictions for input data
func (lr *LogisticRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := lr.PredictProba(X)
	if err != nil {
		return nil, err
	}
	nSamples, _ := X.Dims()
	predictions := mat.NewDense(nSamples, 1, nil)
	for i := 0; i < nSamples; i++ {
		best := 0
		for k := 1; k < lr.nClasses_; k++ {
			if proba.At(i, k) > proba.At(i, best) {
				best = k
			}
		}
		predictions.Set(i, 0, float64(lr.classes_[best]))
	}
	return predictions, nil
}

// PredictProba returns probability estimates for each class, columns in
// Classes() order.
func (lr *LogisticRegression) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	nSamples, nFeatures := X.Dims()
	if err := lr.state.CheckFeatures("LogisticRegression", "PredictProba", nFeatures); err != nil {
		return nil, err
	}

	probas := mat.NewDense(nSamples, lr.nClasses_, nil)
	scores := make([]float64, len(lr.coef_))
	for i := 0; i < nSamples; i++ {
		lr.decision(X, i, scores)
		switch {
		case len(lr.coef_) == 1:
			p1 := sigmoid(scores[0])
			probas.Set(i, 0, 1.0-p1)
			probas.Set(i, 1, p1)
		case lr.solver == "lbfgs" && lr.multiClass != "ovr":
			lse := errors.LogSumExp(scores)
			for k, s := range scores {
				probas.Set(i, k, math.Exp(s-lse))
			}
		default:
			// OvR: 各クラスのシグモイドを正規化
			sum := 0.0
			for k, s := range scores {
				scores[k] = sigmoid(s)
				sum += scores[k]
			}
			for k := range scores {
				probas.Set(i, k, errors.SafeDivide(scores[k], sum))
			}
		}
	}
	return probas, nil
}

// Score returns the mean accuracy on the given test data and labels
func (lr *LogisticRegression) Score(X, y mat.Matrix) (float64, error) {
	predictions, err := lr.Predict(X)
	if err != nil {
		return 0, err
	}
	nSamples, _ := X.Dims()
	correct := 0
	for i := 0; i < nSamples; i++ {
		if predictions.At(i, 0) == y.At(i, 0) {
			correct++
		}
	}
	return float64(correct) / float64(nSamples), nil
}

// IsFitted reports whether Fit has completed.
func (lr *LogisticRegression) IsFitted() bool { return lr.state.IsFitted() }

// Classes returns the sorted class labels.
func (lr *LogisticRegression) Classes() []int { return append([]int(nil), lr.classes_...) }

// Coef returns a copy of the coefficients: one row for a binary model, one
// row per class otherwise.
func (lr *LogisticRegression) Coef() [][]float64 {
	out := make([][]float64, len(lr.coef_))
	for k, row := range lr.coef_ {
		out[k] = append([]float64(nil), row...)
	}
	return out
}

// Intercept returns a copy of the intercepts, aligned with Coef rows.
func (lr *LogisticRegression) Intercept() []float64 {
	return append([]float64(nil), lr.intercept_...)
}

// NIter returns the iteration count of each fitted optimization.
func (lr *LogisticRegression) NIter() []int { return append([]int(nil), lr.nIter_...) }

// GetParams returns the model hyperparameters
func (lr *LogisticRegression) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"penalty":       lr.penalty,
		"C":             lr.C,
		"fit_intercept": lr.fitIntercept,
		"random_state":  lr.randomState,
		"solver":        lr.solver,
		"max_iter":      lr.maxIter,
		"multi_class":   lr.multiClass,
		"tol":           lr.tol,
	}
}

// SetParams sets the model hyperparameters
func (lr *LogisticRegression) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		var ok bool
		switch key {
		case "penalty":
			lr.penalty, ok = value.(string)
		case "C":
			lr.C, ok = value.(float64)
		case "fit_intercept":
			lr.fitIntercept, ok = value.(bool)
		case "random_state":
			lr.randomState, ok = value.(int64)
			if ok {
				lr.rand = rand.New(rand.NewSource(lr.randomState))
			}
		case "solver":
			lr.solver, ok = value.(string)
		case "max_iter":
			lr.maxIter, ok = value.(int)
		case "multi_class":
			lr.multiClass, ok = value.(string)
		case "tol":
			lr.tol, ok = value.(float64)
		default:
			return errors.NewValidationError(key, "unknown parameter", value)
		}
		if !ok {
			return errors.NewValidationError(key, fmt.Sprintf("unexpected type %T", value), value)
		}
	}
	return nil
}

// sigmoid computes the sigmoid function
func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1.0 / (1.0 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1.0 + e)
}

// log1pExp computes log(1+exp(z)) without overflow.
func log1pExp(z float64) float64 {
	if z > 0 {
		return z + math.Log1p(math.Exp(-z))
	}
	return math.Log1p(math.Exp(z))
}
