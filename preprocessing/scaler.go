package preprocessing

import (
	"fmt"
	"math"

	"github.com/YuminosukeSato/modelbench/core/model"
	"github.com/YuminosukeSato/modelbench/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// StandardScaler はscikit-learn互換の標準化スケーラー
// データを平均0、標準偏差1に変換する（母分散を使用）
type StandardScaler struct {
	state *model.StateManager

	// Mean は各特徴量の平均値
	Mean []float64

	// Scale は各特徴量の標準偏差。定数列では1
	Scale []float64

	// WithMean は平均を引くかどうか (デフォルト: true)
	WithMean bool

	// WithStd は標準偏差で割るかどうか (デフォルト: true)
	WithStd bool
}

// NewStandardScaler は新しいStandardScalerを作成する
//
// 使用例:
//
//	scaler := preprocessing.NewStandardScaler(true, true)
//	err := scaler.Fit(XTrain)
//	XScaled, err := scaler.Transform(XTest)
func NewStandardScaler(withMean, withStd bool) *StandardScaler {
	return &StandardScaler{
		state:    model.NewStateManager(),
		WithMean: withMean,
		WithStd:  withStd,
	}
}

// NewStandardScalerDefault はデフォルト設定でStandardScalerを作成する
func NewStandardScalerDefault() *StandardScaler {
	return NewStandardScaler(true, true)
}

// Fit は訓練データから統計情報（平均、標準偏差）を計算する
func (s *StandardScaler) Fit(X mat.Matrix) error {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError("StandardScaler.Fit", "empty data", errors.ErrEmptyData)
	}

	s.Mean = make([]float64, c)
	s.Scale = make([]float64, c)
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, X)
		mean, std := stat.PopMeanStdDev(col, nil)
		if s.WithMean {
			s.Mean[j] = mean
		}
		s.Scale[j] = 1.0
		// 標準偏差が0に近い場合は1のまま（ゼロ除算を避ける）
		if s.WithStd && std >= 1e-8 {
			s.Scale[j] = std
		}
	}
	if err := errors.CheckNumericalStability("StandardScaler.Fit", s.Mean, 0); err != nil {
		return err
	}

	s.state.SetDimensions(c, r)
	s.state.SetFitted()
	return nil
}

// IsFitted reports whether Fit has completed.
func (s *StandardScaler) IsFitted() bool { return s.state.IsFitted() }

// Transform は学習済みの統計情報を使ってデータを標準化する
func (s *StandardScaler) Transform(X mat.Matrix) (mat.Matrix, error) {
	r, c := X.Dims()
	if err := s.state.CheckFeatures("StandardScaler", "Transform", c); err != nil {
		return nil, err
	}

	result := mat.NewDense(r, c, nil)
	result.Apply(func(i, j int, v float64) float64 {
		return (v - s.Mean[j]) / s.Scale[j]
	}, X)
	return result, nil
}

// FitTransform は訓練データで学習し、同じデータを変換する
func (s *StandardScaler) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := s.Fit(X); err != nil {
		return nil, err
	}
	return s.Transform(X)
}

// InverseTransform は標準化されたデータを元のスケールに戻す
func (s *StandardScaler) InverseTransform(X mat.Matrix) (mat.Matrix, error) {
	r, c := X.Dims()
	if err := s.state.CheckFeatures("StandardScaler", "InverseTransform", c); err != nil {
		return nil, err
	}

	result := mat.NewDense(r, c, nil)
	result.Apply(func(i, j int, v float64) float64 {
		return v*s.Scale[j] + s.Mean[j]
	}, X)
	return result, nil
}

// GetParams はスケーラーのパラメータを取得する
func (s *StandardScaler) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"with_mean": s.WithMean,
		"with_std":  s.WithStd,
	}
}

// String はスケーラーの文字列表現を返す
func (s *StandardScaler) String() string {
	if !s.IsFitted() {
		return fmt.Sprintf("StandardScaler(with_mean=%t, with_std=%t)", s.WithMean, s.WithStd)
	}
	nFeatures, _ := s.state.GetDimensions()
	return fmt.Sprintf("StandardScaler(with_mean=%t, with_std=%t, n_features=%d)",
		s.WithMean, s.WithStd, nFeatures)
}

// columnMoments returns per-column population mean and standard deviation,
// used by tests and diagnostics to check standardization.
func columnMoments(X mat.Matrix) (means, stds []float64) {
	r, c := X.Dims()
	means = make([]float64, c)
	stds = make([]float64, c)
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, X)
		means[j], stds[j] = stat.PopMeanStdDev(col, nil)
		if math.IsNaN(stds[j]) {
			stds[j] = 0
		}
	}
	return means, stds
}
