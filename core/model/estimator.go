package model

import "gonum.org/v1/gonum/mat"

// Fitter は学習可能なモデルのインターフェース
type Fitter interface {
	// Fit はモデルを訓練データで学習させる。y は (n, 1) の列ベクトル
	Fit(X, y mat.Matrix) error
}

// Predictor は予測可能なモデルのインターフェース
type Predictor interface {
	// Predict は入力データに対する予測を (n, 1) の列ベクトルで返す
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// Estimator は学習と予測の両方を備えたモデル
type Estimator interface {
	Fitter
	Predictor
	// IsFitted はモデルが学習済みかどうかを返す
	IsFitted() bool
}
