package metrics

import (
	"testing"

	"github.com/YuminosukeSato/modelbench/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// 線形回帰をクラスコード 0..2 に当てた時の丸め前の出力
var (
	codes = mat.NewVecDense(6, []float64{0, 1, 2, 0, 1, 2})
	raw   = mat.NewVecDense(6, []float64{0.2, 0.9, 2.4, -0.3, 1.1, 1.7})
)

func TestContinuousFitMetrics(t *testing.T) {
	mse, err := MSE(codes, raw)
	require.NoError(t, err)
	// (0.04 + 0.01 + 0.16 + 0.09 + 0.01 + 0.09) / 6
	assert.InDelta(t, 0.4/6, mse, 1e-12)

	r2, err := R2Score(codes, raw)
	require.NoError(t, err)
	// TSS = 4
	assert.InDelta(t, 1-0.4/4, r2, 1e-12)

	ev, err := ExplainedVarianceScore(codes, raw)
	require.NoError(t, err)
	// 残差の平均は 0 なので R² と一致する
	assert.InDelta(t, r2, ev, 1e-12)
}

func TestExplainedVarianceScore_IgnoresBias(t *testing.T) {
	shifted := mat.NewVecDense(6, nil)
	shifted.AddScaledVec(codes, 1, mat.NewVecDense(6, []float64{0.5, 0.5, 0.5, 0.5, 0.5, 0.5}))

	ev, err := ExplainedVarianceScore(codes, shifted)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, ev, 1e-12)

	r2, err := R2Score(codes, shifted)
	require.NoError(t, err)
	assert.Less(t, r2, ev)
}

func TestRegressionMetrics_Errors(t *testing.T) {
	constant := mat.NewVecDense(3, []float64{1, 1, 1})
	short := mat.NewVecDense(2, []float64{1, 2})

	tests := []struct {
		name string
		fn   func(yTrue, yPred *mat.VecDense) (float64, error)
	}{
		{"MSE", MSE},
		{"R2Score", R2Score},
		{"ExplainedVarianceScore", ExplainedVarianceScore},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.fn(codes, short)
			var de *errors.DimensionError
			assert.True(t, errors.As(err, &de))

			_, err = tt.fn(nil, nil)
			var ve *errors.ValueError
			assert.True(t, errors.As(err, &ve))
		})
	}

	// 目的変数が定数だと決定係数は定義できない
	_, err := R2Score(constant, constant)
	assert.Error(t, err)
	_, err = ExplainedVarianceScore(constant, constant)
	assert.Error(t, err)
	mse, err := MSE(constant, constant)
	require.NoError(t, err)
	assert.Zero(t, mse)
}
