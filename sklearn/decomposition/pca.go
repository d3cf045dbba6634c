// Package decomposition provides principal component analysis.
package decomposition

import (
	"fmt"
	"math"

	"github.com/YuminosukeSato/modelbench/core/model"
	"github.com/YuminosukeSato/modelbench/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// PCA は特異値分解による主成分分析
// 主成分の符号は、絶対値最大の負荷量が正になるように固定する
type PCA struct {
	state *model.StateManager

	// NComponents は保持する主成分の数
	NComponents int

	mean_                   []float64
	components_             *mat.Dense // NComponents x n_features
	explainedVariance_      []float64
	explainedVarianceRatio_ []float64
}

// NewPCA は nComponents 個の主成分を持つPCAを作成する
func NewPCA(nComponents int) *PCA {
	return &PCA{
		state:       model.NewStateManager(),
		NComponents: nComponents,
	}
}

// Fit は主成分を計算する
func (p *PCA) Fit(X mat.Matrix) (err error) {
	defer errors.Recover(&err, "PCA.Fit")

	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError("PCA.Fit", "empty data", errors.ErrEmptyData)
	}
	maxComponents := min(r, c)
	if p.NComponents < 1 || p.NComponents > maxComponents {
		return errors.NewValidationError("n_components",
			fmt.Sprintf("must be between 1 and min(n_samples, n_features)=%d", maxComponents), p.NComponents)
	}

	var pc stat.PC
	if ok := pc.PrincipalComponents(X, nil); !ok {
		return errors.NewModelError("PCA.Fit", "svd", errors.New("principal component analysis did not converge"))
	}
	var vecs mat.Dense
	pc.VectorsTo(&vecs)
	vars := pc.VarsTo(nil)

	p.mean_ = make([]float64, c)
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, X)
		p.mean_[j] = stat.Mean(col, nil)
	}

	total := floats.Sum(vars)
	p.components_ = mat.NewDense(p.NComponents, c, nil)
	p.explainedVariance_ = make([]float64, p.NComponents)
	p.explainedVarianceRatio_ = make([]float64, p.NComponents)
	v := make([]float64, c)
	for k := 0; k < p.NComponents; k++ {
		mat.Col(v, k, &vecs)
		// 符号の固定
		maxAbs := 0
		for j := range v {
			if math.Abs(v[j]) > math.Abs(v[maxAbs]) {
				maxAbs = j
			}
		}
		if v[maxAbs] < 0 {
			floats.Scale(-1, v)
		}
		p.components_.SetRow(k, v)
		p.explainedVariance_[k] = vars[k]
		p.explainedVarianceRatio_[k] = errors.SafeDivide(vars[k], total)
	}

	p.state.SetDimensions(c, r)
	p.state.SetFitted()
	return nil
}

// Transform はデータを主成分空間へ射影する
func (p *PCA) Transform(X mat.Matrix) (mat.Matrix, error) {
	r, c := X.Dims()
	if err := p.state.CheckFeatures("PCA", "Transform", c); err != nil {
		return nil, err
	}

	centered := mat.DenseCopyOf(X)
	for i := 0; i < r; i++ {
		row := centered.RawRowView(i)
		floats.Sub(row, p.mean_)
	}
	var out mat.Dense
	out.Mul(centered, p.components_.T())
	return &out, nil
}

// FitTransform はFitとTransformを続けて実行する
func (p *PCA) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := p.Fit(X); err != nil {
		return nil, err
	}
	return p.Transform(X)
}

// IsFitted はFit済みかどうかを返す
func (p *PCA) IsFitted() bool { return p.state.IsFitted() }

// Components は主成分ベクトル (NComponents x n_features) を返す
func (p *PCA) Components() mat.Matrix { return mat.DenseCopyOf(p.components_) }

// ExplainedVariance は各主成分の分散
func (p *PCA) ExplainedVariance() []float64 {
	return append([]float64(nil), p.explainedVariance_...)
}

// ExplainedVarianceRatio は各主成分が説明する分散の割合
func (p *PCA) ExplainedVarianceRatio() []float64 {
	return append([]float64(nil), p.explainedVarianceRatio_...)
}

// Mean は学習データの列平均
func (p *PCA) Mean() []float64 { return append([]float64(nil), p.mean_...) }

var _ model.Transformer = (*PCA)(nil)
