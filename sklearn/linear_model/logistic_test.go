package linear_model

import (
	"math"
	"testing"

	"github.com/YuminosukeSato/modelbench/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// captureWarnings routes errors.Warn into a slice for the duration of a test.
func captureWarnings(t *testing.T) *[]error {
	t.Helper()
	var got []error
	errors.SetZerologWarnFunc(nil)
	errors.SetWarningHandler(func(w error) { got = append(got, w) })
	t.Cleanup(func() { errors.SetWarningHandler(func(error) {}) })
	return &got
}

func TestLogisticRegression_FitPredict_Binary(t *testing.T) {
	// Class 0: points around (1, 1), Class 1: points around (3, 3)
	X := mat.NewDense(6, 2, []float64{
		0.5, 0.5,
		1.0, 1.5,
		1.5, 1.0,
		3.0, 2.5,
		2.5, 3.0,
		3.5, 3.5,
	})
	y := mat.NewDense(6, 1, []float64{0, 0, 0, 1, 1, 1})

	lr := NewLogisticRegression(WithLRMaxIter(1000))
	require.NoError(t, lr.Fit(X, y))

	predictions, err := lr.Predict(X)
	require.NoError(t, err)
	for i := 0; i < 6; i++ {
		assert.Equal(t, y.At(i, 0), predictions.At(i, 0), "sample %d", i)
	}

	testPreds, err := lr.Predict(mat.NewDense(2, 2, []float64{1, 1, 3, 3}))
	require.NoError(t, err)
	assert.Equal(t, 0.0, testPreds.At(0, 0))
	assert.Equal(t, 1.0, testPreds.At(1, 0))

	// 二値分類では係数は1行
	assert.Len(t, lr.Coef(), 1)
	assert.Len(t, lr.Intercept(), 1)
	assert.Greater(t, lr.Coef()[0][0], 0.0)
}

func TestLogisticRegression_PredictProba(t *testing.T) {
	X := mat.NewDense(4, 2, []float64{
		0, 0,
		0, 1,
		1, 0,
		1, 1,
	})
	y := mat.NewDense(4, 1, []float64{0, 0, 0, 1})

	lr := NewLogisticRegression(WithLRC(100))
	require.NoError(t, lr.Fit(X, y))

	proba, err := lr.PredictProba(X)
	require.NoError(t, err)
	rows, cols := proba.Dims()
	require.Equal(t, 2, cols)

	pred, err := lr.Predict(X)
	require.NoError(t, err)
	for i := 0; i < rows; i++ {
		assert.InDelta(t, 1.0, proba.At(i, 0)+proba.At(i, 1), 1e-12)
		if pred.At(i, 0) == 1 {
			assert.Greater(t, proba.At(i, 1), proba.At(i, 0))
		} else {
			assert.GreaterOrEqual(t, proba.At(i, 0), proba.At(i, 1))
		}
	}

	// 確率はシグモイドと一致する
	coef, intercept := lr.Coef(), lr.Intercept()
	z := coef[0][0]*1 + coef[0][1]*1 + intercept[0]
	assert.InDelta(t, 1/(1+math.Exp(-z)), proba.At(3, 1), 1e-12)
}

func TestLogisticRegression_Score(t *testing.T) {
	X := mat.NewDense(6, 2, []float64{
		0, 0,
		0, 1,
		1, 0,
		3, 3,
		3, 4,
		4, 3,
	})
	y := mat.NewDense(6, 1, []float64{0, 0, 0, 1, 1, 1})

	lr := NewLogisticRegression(WithLRMaxIter(1000), WithLRC(10))
	require.NoError(t, lr.Fit(X, y))
	score, err := lr.Score(X, y)
	require.NoError(t, err)
	assert.Equal(t, 1.0, score)
}

func TestLogisticRegression_Regularization(t *testing.T) {
	X := mat.NewDense(10, 5, []float64{
		1, 0, 0, 0, 0,
		0, 1, 0, 0, 0,
		0, 0, 1, 0, 0,
		0, 0, 0, 1, 0,
		0, 0, 0, 0, 1,
		1, 1, 0, 0, 0,
		0, 1, 1, 0, 0,
		0, 0, 1, 1, 0,
		0, 0, 0, 1, 1,
		1, 0, 0, 0, 1,
	})
	y := mat.NewDense(10, 1, []float64{0, 0, 0, 1, 1, 0, 0, 1, 1, 1})

	norm := func(lr *LogisticRegression) float64 {
		var s float64
		for _, w := range lr.Coef()[0] {
			s += w * w
		}
		return math.Sqrt(s)
	}

	strong := NewLogisticRegression(WithLRC(0.01), WithLRMaxIter(1000))
	require.NoError(t, strong.Fit(X, y))
	weak := NewLogisticRegression(WithLRC(100), WithLRMaxIter(1000))
	require.NoError(t, weak.Fit(X, y))

	assert.Less(t, norm(strong), norm(weak))
}

func TestLogisticRegression_Multiclass(t *testing.T) {
	X := mat.NewDense(9, 2, []float64{
		0, 0,
		0, 1,
		1, 0,
		2, 2,
		2, 3,
		3, 2,
		4, 4,
		4, 5,
		5, 4,
	})
	y := mat.NewDense(9, 1, []float64{0, 0, 0, 1, 1, 1, 2, 2, 2})

	tests := []struct {
		name   string
		opts   []LogisticRegressionOption
		nIters int
	}{
		// multinomial は1回の最適化で全クラスの係数を得る
		{"multinomial lbfgs", []LogisticRegressionOption{WithLRMaxIter(1000), WithLRC(10)}, 1},
		{"ovr gradient descent", []LogisticRegressionOption{WithLRSolver("gd"), WithLRMaxIter(2000), WithLRC(10)}, 3},
	}

	captureWarnings(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lr := NewLogisticRegression(tt.opts...)
			require.NoError(t, lr.Fit(X, y))
			assert.Equal(t, []int{0, 1, 2}, lr.Classes())
			assert.Len(t, lr.Coef(), 3)
			assert.Len(t, lr.NIter(), tt.nIters)

			score, err := lr.Score(X, y)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, score, 8.0/9.0)

			probas, err := lr.PredictProba(X)
			require.NoError(t, err)
			rows, cols := probas.Dims()
			require.Equal(t, 3, cols)
			for i := 0; i < rows; i++ {
				sum := 0.0
				for j := 0; j < cols; j++ {
					p := probas.At(i, j)
					assert.True(t, p >= 0 && p <= 1)
					sum += p
				}
				assert.InDelta(t, 1.0, sum, 1e-9)
			}
		})
	}
}

func TestLogisticRegression_ConvergenceWarning(t *testing.T) {
	warnings := captureWarnings(t)

	X := mat.NewDense(6, 1, []float64{-3, -2, -1, 1, 2, 3})
	y := mat.NewDense(6, 1, []float64{0, 0, 1, 0, 1, 1})
	lr := NewLogisticRegression(WithLRMaxIter(1), WithLRTol(1e-12))
	require.NoError(t, lr.Fit(X, y), "exhausting the iteration budget is not an error")

	require.NotEmpty(t, *warnings)
	var cw *errors.ConvergenceWarning
	assert.True(t, errors.As((*warnings)[0], &cw))
}

func TestLogisticRegression_SingleClass(t *testing.T) {
	lr := NewLogisticRegression()
	err := lr.Fit(mat.NewDense(3, 1, []float64{1, 2, 3}), mat.NewDense(3, 1, []float64{1, 1, 1}))
	var ve *errors.ValueError
	assert.True(t, errors.As(err, &ve))
	assert.False(t, lr.IsFitted())
}

func TestLogisticRegression_GetSetParams(t *testing.T) {
	lr := NewLogisticRegression()

	params := lr.GetParams()
	assert.Equal(t, 1.0, params["C"])
	assert.Equal(t, 100, params["max_iter"])
	assert.Equal(t, "lbfgs", params["solver"])

	require.NoError(t, lr.SetParams(map[string]interface{}{
		"C":        2.0,
		"max_iter": 200,
		"penalty":  "none",
		"tol":      1e-5,
	}))
	assert.Equal(t, 2.0, lr.C)
	assert.Equal(t, 200, lr.maxIter)
	assert.Equal(t, "none", lr.penalty)
	assert.Equal(t, 1e-5, lr.tol)

	assert.Error(t, lr.SetParams(map[string]interface{}{"max_iter": "many"}))
	assert.Error(t, lr.SetParams(map[string]interface{}{"dual": true}))
}

func TestLogisticRegression_NotFitted(t *testing.T) {
	lr := NewLogisticRegression()
	X := mat.NewDense(2, 2, []float64{1, 2, 3, 4})

	_, err := lr.Predict(X)
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))

	_, err = lr.PredictProba(X)
	assert.True(t, errors.As(err, &nf))
}
