package linear

import (
	"fmt"
	"math"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/mat"
)

// surveyLike は標準化済みの特徴量とクラスコード 0..nClasses-1 の目的変数を作る
func surveyLike(rows, cols, nClasses int) (*mat.Dense, *mat.Dense) {
	rng := rand.New(rand.NewSource(42))
	X := mat.NewDense(rows, cols, nil)
	y := mat.NewDense(rows, 1, nil)
	for i := 0; i < rows; i++ {
		c := i % nClasses
		y.Set(i, 0, float64(c))
		for j := 0; j < cols; j++ {
			// 先頭の列だけクラスに相関させる
			v := rng.NormFloat64()
			if j == 0 {
				v += float64(c)
			}
			X.Set(i, j, v)
		}
	}
	return X, y
}

// BenchmarkLinearRegressionFit は前処理後の行数・列数に近いサイズで学習する
func BenchmarkLinearRegressionFit(b *testing.B) {
	for _, size := range []struct{ rows, cols int }{
		{80, 9},
		{800, 9},
		{8000, 9},
		{8000, 40},
	} {
		b.Run(fmt.Sprintf("%dx%d", size.rows, size.cols), func(b *testing.B) {
			X, y := surveyLike(size.rows, size.cols, 3)
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if err := NewLinearRegression().Fit(X, y); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkLinearRegressionPredictRounded は予測とクラスコードへの丸めまでを測る
func BenchmarkLinearRegressionPredictRounded(b *testing.B) {
	X, y := surveyLike(2000, 9, 3)
	lr := NewLinearRegression()
	if err := lr.Fit(X, y); err != nil {
		b.Fatal(err)
	}
	codes := make([]int, 2000)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		pred, err := lr.Predict(X)
		if err != nil {
			b.Fatal(err)
		}
		for r := range codes {
			codes[r] = int(math.RoundToEven(pred.At(r, 0)))
		}
	}
}

func BenchmarkCenterColumns(b *testing.B) {
	X, _ := surveyLike(8000, 9, 3)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		centerColumns(X)
	}
}
