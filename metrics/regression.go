package metrics

import (
	"github.com/YuminosukeSato/modelbench/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// checkPair は長さの一致と非空を確認し、要素数を返す
func checkPair(op string, yTrue, yPred *mat.VecDense) (int, error) {
	if yTrue == nil || yPred == nil || yTrue.Len() == 0 {
		return 0, errors.NewValueError(op, "empty vector")
	}
	n := yTrue.Len()
	if yPred.Len() != n {
		return 0, errors.NewDimensionError(op, n, yPred.Len(), 0)
	}
	return n, nil
}

// MSE は平均二乗誤差（Mean Squared Error）を計算する
//
// 線形回帰を分類器として使う場合、丸める前の連続値の当てはまりを見るために使う
func MSE(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("MSE", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	var sum float64
	for i := 0; i < n; i++ {
		diff := yTrue.AtVec(i) - yPred.AtVec(i)
		sum += diff * diff
	}
	return sum / float64(n), nil
}

// R2Score は決定係数（R²）を計算する
func R2Score(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("R2Score", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	yMean := mat.Sum(yTrue) / float64(n)
	var tss, rss float64
	for i := 0; i < n; i++ {
		t, p := yTrue.AtVec(i), yPred.AtVec(i)
		tss += (t - yMean) * (t - yMean)
		rss += (t - p) * (t - p)
	}
	if tss == 0 {
		return 0, errors.Newf("R2Score: total sum of squares is zero (no variance in yTrue)")
	}

	// R² = 1 - RSS/TSS
	return 1 - rss/tss, nil
}

// ExplainedVarianceScore は説明分散スコア 1 - Var(yTrue - yPred) / Var(yTrue) を計算する
func ExplainedVarianceScore(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("ExplainedVarianceScore", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	truth := make([]float64, n)
	diff := make([]float64, n)
	for i := 0; i < n; i++ {
		truth[i] = yTrue.AtVec(i)
		diff[i] = truth[i] - yPred.AtVec(i)
	}
	_, varTrue := stat.PopMeanVariance(truth, nil)
	_, varDiff := stat.PopMeanVariance(diff, nil)
	if varTrue == 0 {
		return 0, errors.Newf("ExplainedVarianceScore: no variance in yTrue")
	}
	return 1 - varDiff/varTrue, nil
}
