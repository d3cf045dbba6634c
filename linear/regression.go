// Package linear provides ordinary least squares regression.
package linear

import (
	"fmt"

	"github.com/YuminosukeSato/modelbench/core/model"
	"github.com/YuminosukeSato/modelbench/core/parallel"
	"github.com/YuminosukeSato/modelbench/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// 並列処理の閾値（この値以下の行数では逐次処理を使用）
const parallelThreshold = 1000

// LinearRegression は線形回帰モデル
//
// 中心化したデータに対して特異値分解で最小ノルム最小二乗解を求めるため、
// ランク落ちした計画行列（例えば定数列を含む場合）でも学習できる。
type LinearRegression struct {
	state *model.StateManager

	fitIntercept bool
	rcond        float64

	coef      []float64 // 重み（係数）
	intercept float64   // 切片
	rank      int
}

// NewLinearRegression は新しい線形回帰モデルを作成する
func NewLinearRegression(opts ...Option) *LinearRegression {
	lr := &LinearRegression{
		state:        model.NewStateManager(),
		fitIntercept: true,
		rcond:        1e-12,
	}
	for _, opt := range opts {
		opt(lr)
	}
	return lr
}

// Fit はモデルを訓練データで学習させる
func (lr *LinearRegression) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "LinearRegression.Fit")

	r, c := X.Dims()
	ry, cy := y.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError("LinearRegression.Fit", "empty data", errors.ErrEmptyData)
	}
	if ry != r {
		return errors.NewDimensionError("LinearRegression.Fit", r, ry, 0)
	}
	if cy != 1 {
		return errors.NewValueError("LinearRegression.Fit", "y must be a column vector")
	}

	var (
		Xc    *mat.Dense
		xMean []float64
	)
	yc := mat.NewDense(r, 1, nil)
	var yMean float64
	if lr.fitIntercept {
		Xc, xMean = centerColumns(X)
		for i := 0; i < r; i++ {
			yMean += y.At(i, 0)
		}
		yMean /= float64(r)
	} else {
		Xc = mat.DenseCopyOf(X)
		xMean = make([]float64, c)
	}
	for i := 0; i < r; i++ {
		yc.Set(i, 0, y.At(i, 0)-yMean)
	}

	var svd mat.SVD
	if ok := svd.Factorize(Xc, mat.SVDThin); !ok {
		return errors.NewModelError("LinearRegression.Fit", "SVD did not converge", errors.ErrSingularMatrix)
	}
	rank := svd.Rank(lr.rcond)
	if rank == 0 {
		// 全ての列が定数: 係数は0、切片は平均
		lr.coef = make([]float64, c)
	} else {
		var w mat.Dense
		svd.SolveTo(&w, yc, rank)
		lr.coef = mat.Col(nil, 0, &w)
	}
	if err := errors.CheckNumericalStability("LinearRegression.Fit", lr.coef, 0); err != nil {
		return err
	}

	lr.intercept = 0
	if lr.fitIntercept {
		lr.intercept = yMean
		for j, m := range xMean {
			lr.intercept -= m * lr.coef[j]
		}
	}
	lr.rank = rank

	lr.state.SetDimensions(c, r)
	lr.state.SetFitted()
	return nil
}

// centerColumns returns X minus its column means, and the means.
func centerColumns(X mat.Matrix) (*mat.Dense, []float64) {
	r, c := X.Dims()
	means := make([]float64, c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			means[j] += X.At(i, j)
		}
	}
	for j := range means {
		means[j] /= float64(r)
	}

	out := mat.NewDense(r, c, nil)
	parallel.ParallelizeWithThreshold(r, parallelThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			for j := 0; j < c; j++ {
				out.Set(i, j, X.At(i, j)-means[j])
			}
		}
	})
	return out, means
}

// Predict は入力データに対する予測を行う
func (lr *LinearRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	r, c := X.Dims()
	if err := lr.state.CheckFeatures("LinearRegression", "Predict", c); err != nil {
		return nil, err
	}

	// 予測: y = X * coef + intercept
	predictions := mat.NewDense(r, 1, nil)
	parallel.ParallelizeWithThreshold(r, parallelThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			pred := lr.intercept
			for j := 0; j < c; j++ {
				pred += X.At(i, j) * lr.coef[j]
			}
			predictions.Set(i, 0, pred)
		}
	})
	return predictions, nil
}

// IsFitted はモデルが学習済みかどうかを返す
func (lr *LinearRegression) IsFitted() bool { return lr.state.IsFitted() }

// Coef は学習された重み（係数）のコピーを返す
func (lr *LinearRegression) Coef() []float64 {
	return append([]float64(nil), lr.coef...)
}

// Intercept は学習された切片を返す
func (lr *LinearRegression) Intercept() float64 { return lr.intercept }

// Rank は計画行列の実効ランクを返す
func (lr *LinearRegression) Rank() int { return lr.rank }

// Score はモデルの決定係数（R²）を計算する
func (lr *LinearRegression) Score(X, y mat.Matrix) (float64, error) {
	yPred, err := lr.Predict(X)
	if err != nil {
		return 0, err
	}

	r, _ := y.Dims()
	var yMean float64
	for i := 0; i < r; i++ {
		yMean += y.At(i, 0)
	}
	yMean /= float64(r)

	// 全変動 (TSS) と残差変動 (RSS) を計算
	var tss, rss float64
	for i := 0; i < r; i++ {
		yTrue := y.At(i, 0)
		d := yTrue - yPred.At(i, 0)
		tss += (yTrue - yMean) * (yTrue - yMean)
		rss += d * d
	}
	if tss == 0 {
		return 0, errors.NewValueError("LinearRegression.Score", "total sum of squares is zero")
	}
	return 1 - rss/tss, nil
}

// GetParams returns the hyperparameters.
func (lr *LinearRegression) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"fit_intercept": lr.fitIntercept,
		"rcond":         lr.rcond,
	}
}

// String returns a short description.
func (lr *LinearRegression) String() string {
	return fmt.Sprintf("LinearRegression(fit_intercept=%t)", lr.fitIntercept)
}
