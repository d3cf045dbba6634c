package neighbors

import (
	"testing"

	"github.com/YuminosukeSato/modelbench/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestKNeighborsClassifier_Predict(t *testing.T) {
	X := mat.NewDense(8, 2, []float64{
		0, 0,
		0, 1,
		1, 0,
		1, 1,
		5, 5,
		5, 6,
		6, 5,
		6, 6,
	})
	y := mat.NewDense(8, 1, []float64{0, 0, 0, 0, 1, 1, 1, 1})

	kn := NewKNeighborsClassifier(WithNNeighbors(3))
	require.NoError(t, kn.Fit(X, y))

	pred, err := kn.Predict(mat.NewDense(2, 2, []float64{0.2, 0.2, 5.5, 5.5}))
	require.NoError(t, err)
	assert.Equal(t, 0.0, pred.At(0, 0))
	assert.Equal(t, 1.0, pred.At(1, 0))

	score, err := kn.Score(X, y)
	require.NoError(t, err)
	assert.Equal(t, 1.0, score)
}

func TestKNeighborsClassifier_KNeighborsStableOrder(t *testing.T) {
	// 4点とも原点から等距離
	X := mat.NewDense(4, 2, []float64{
		1, 0,
		0, 1,
		-1, 0,
		0, -1,
	})
	y := mat.NewDense(4, 1, []float64{2, 1, 0, 1})

	kn := NewKNeighborsClassifier(WithNNeighbors(2))
	require.NoError(t, kn.Fit(X, y))

	dist, idx, err := kn.KNeighbors(mat.NewDense(1, 2, []float64{0, 0}))
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, idx[0])
	assert.InDelta(t, 1.0, dist.At(0, 0), 1e-12)
	assert.InDelta(t, 1.0, dist.At(0, 1), 1e-12)

	// 隣接はクラス2とクラス1で同票、小さいクラスが勝つ
	pred, err := kn.Predict(mat.NewDense(1, 2, []float64{0, 0}))
	require.NoError(t, err)
	assert.Equal(t, 1.0, pred.At(0, 0))
}

func TestKNeighborsClassifier_PredictProba(t *testing.T) {
	X := mat.NewDense(5, 1, []float64{0, 1, 2, 10, 11})
	y := mat.NewDense(5, 1, []float64{0, 0, 1, 1, 1})

	kn := NewKNeighborsClassifier()
	require.NoError(t, kn.Fit(X, y))
	proba, err := kn.PredictProba(mat.NewDense(1, 1, []float64{0}))
	require.NoError(t, err)
	assert.InDelta(t, 0.4, proba.At(0, 0), 1e-12)
	assert.InDelta(t, 0.6, proba.At(0, 1), 1e-12)
}

func TestKNeighborsClassifier_Errors(t *testing.T) {
	kn := NewKNeighborsClassifier()
	_, err := kn.Predict(mat.NewDense(1, 1, []float64{0}))
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))

	err = kn.Fit(mat.NewDense(3, 1, []float64{0, 1, 2}), mat.NewDense(3, 1, []float64{0, 1, 1}))
	var ve *errors.ValueError
	assert.True(t, errors.As(err, &ve), "k=5 with 3 samples")
}
