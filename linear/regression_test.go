package linear

import (
	"testing"

	"github.com/YuminosukeSato/modelbench/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestLinearRegression_Basic(t *testing.T) {
	// y = 2x + 1
	X := mat.NewDense(4, 1, []float64{1, 2, 3, 4})
	y := mat.NewDense(4, 1, []float64{3, 5, 7, 9})

	lr := NewLinearRegression()
	require.NoError(t, lr.Fit(X, y))

	assert.InDelta(t, 2.0, lr.Coef()[0], 1e-9)
	assert.InDelta(t, 1.0, lr.Intercept(), 1e-9)

	pred, err := lr.Predict(mat.NewDense(2, 1, []float64{5, 6}))
	require.NoError(t, err)
	assert.InDelta(t, 11.0, pred.At(0, 0), 1e-9)
	assert.InDelta(t, 13.0, pred.At(1, 0), 1e-9)

	score, err := lr.Score(X, y)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, score, 1e-12)
}

func TestLinearRegression_MultipleFeatures(t *testing.T) {
	// y = 2*x1 + 3*x2 + 1
	X := mat.NewDense(5, 2, []float64{
		1, 1,
		2, 1,
		3, 2,
		4, 2,
		5, 3,
	})
	y := mat.NewDense(5, 1, []float64{6, 8, 13, 15, 20})

	lr := NewLinearRegression()
	require.NoError(t, lr.Fit(X, y))
	assert.InDeltaSlice(t, []float64{2, 3}, lr.Coef(), 1e-9)
	assert.InDelta(t, 1.0, lr.Intercept(), 1e-9)
	assert.Equal(t, 2, lr.Rank())
}

func TestLinearRegression_NoIntercept(t *testing.T) {
	X := mat.NewDense(4, 1, []float64{1, 2, 3, 4})
	y := mat.NewDense(4, 1, []float64{2, 4, 6, 8})

	lr := NewLinearRegression(WithFitIntercept(false))
	require.NoError(t, lr.Fit(X, y))
	assert.InDelta(t, 2.0, lr.Coef()[0], 1e-9)
	assert.Equal(t, 0.0, lr.Intercept())
}

func TestLinearRegression_RankDeficient(t *testing.T) {
	// 2列目は1列目の2倍、3列目は定数
	X := mat.NewDense(5, 3, []float64{
		1, 2, 7,
		2, 4, 7,
		3, 6, 7,
		4, 8, 7,
		5, 10, 7,
	})
	y := mat.NewDense(5, 1, []float64{5, 10, 15, 20, 25})

	lr := NewLinearRegression()
	require.NoError(t, lr.Fit(X, y))
	assert.Equal(t, 1, lr.Rank())

	// 最小ノルム解: 5 = w1 + 2*w2 で |w| 最小 -> w1 = 1, w2 = 2
	coef := lr.Coef()
	assert.InDelta(t, 1.0, coef[0], 1e-9)
	assert.InDelta(t, 2.0, coef[1], 1e-9)
	assert.InDelta(t, 0.0, coef[2], 1e-9)

	pred, err := lr.Predict(X)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		assert.InDelta(t, y.At(i, 0), pred.At(i, 0), 1e-9)
	}
}

func TestLinearRegression_Errors(t *testing.T) {
	lr := NewLinearRegression()

	_, err := lr.Predict(mat.NewDense(1, 1, []float64{1}))
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))

	err = lr.Fit(mat.NewDense(3, 1, []float64{1, 2, 3}), mat.NewDense(2, 1, []float64{1, 2}))
	var dim *errors.DimensionError
	assert.True(t, errors.As(err, &dim))

	require.NoError(t, lr.Fit(mat.NewDense(3, 1, []float64{1, 2, 3}), mat.NewDense(3, 1, []float64{1, 2, 3})))
	_, err = lr.Predict(mat.NewDense(1, 2, []float64{1, 2}))
	assert.True(t, errors.As(err, &dim))
}
