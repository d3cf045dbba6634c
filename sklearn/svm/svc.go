// Package svm provides a kernel support vector classifier trained with SMO.
package svm

import (
	"fmt"
	"math"
	"sort"

	"github.com/YuminosukeSato/modelbench/core/model"
	"github.com/YuminosukeSato/modelbench/core/parallel"
	"github.com/YuminosukeSato/modelbench/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

const tau = 1e-12

// SVC is a C-support vector classifier with an RBF or linear kernel.
//
// Multi-class problems are decomposed one-vs-one: one binary machine per
// class pair, prediction by majority vote with ties resolved to the smaller
// class, matching libsvm.
type SVC struct {
	state *model.StateManager

	C       float64
	kernel  string // "rbf", "linear"
	gamma   string // "scale", "auto"
	tol     float64
	maxIter int

	gamma_   float64
	classes_ []int
	support_ *mat.Dense // training rows referenced by any machine
	pairs_   []binaryMachine
}

// binaryMachine separates classes_[pos] (+1) from classes_[neg] (-1).
type binaryMachine struct {
	pos, neg int
	sv       []int     // rows of support_
	dualCoef []float64 // alpha_i * y_i
	rho      float64
}

// Option configures an SVC.
type Option func(*SVC)

// WithC sets the penalty parameter.
func WithC(c float64) Option { return func(s *SVC) { s.C = c } }

// WithKernel selects "rbf" or "linear".
func WithKernel(k string) Option { return func(s *SVC) { s.kernel = k } }

// WithGamma selects "scale" (1/(n_features*Var(X))) or "auto" (1/n_features).
func WithGamma(g string) Option { return func(s *SVC) { s.gamma = g } }

// WithTol sets the KKT violation tolerance.
func WithTol(tol float64) Option { return func(s *SVC) { s.tol = tol } }

// WithMaxIter bounds the SMO iterations per binary machine.
func WithMaxIter(n int) Option { return func(s *SVC) { s.maxIter = n } }

// NewSVC creates an RBF SVC with C=1, gamma="scale", tol=1e-3.
func NewSVC(opts ...Option) *SVC {
	s := &SVC{
		state:   model.NewStateManager(),
		C:       1.0,
		kernel:  "rbf",
		gamma:   "scale",
		tol:     1e-3,
		maxIter: 100000,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *SVC) kernelFunc(a, b []float64) float64 {
	switch s.kernel {
	case "linear":
		return dot(a, b)
	default:
		var d float64
		for k := range a {
			diff := a[k] - b[k]
			d += diff * diff
		}
		return math.Exp(-s.gamma_ * d)
	}
}

func dot(a, b []float64) float64 {
	var sum float64
	for k := range a {
		sum += a[k] * b[k]
	}
	return sum
}

// Fit trains one machine per class pair.
func (s *SVC) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "SVC.Fit")

	nSamples, nFeatures := X.Dims()
	yRows, yCols := y.Dims()
	if nSamples == 0 || nFeatures == 0 {
		return errors.NewModelError("SVC.Fit", "empty data", errors.ErrEmptyData)
	}
	if yRows != nSamples {
		return errors.NewDimensionError("SVC.Fit", nSamples, yRows, 0)
	}
	if yCols != 1 {
		return errors.NewValueError("SVC.Fit", "y must be a column vector")
	}
	if s.C <= 0 {
		return errors.NewValidationError("C", "must be positive", s.C)
	}
	if s.kernel != "rbf" && s.kernel != "linear" {
		return errors.NewValidationError("kernel", "must be rbf or linear", s.kernel)
	}

	rows := make([][]float64, nSamples)
	all := make([]float64, 0, nSamples*nFeatures)
	for i := range rows {
		rows[i] = make([]float64, nFeatures)
		for j := 0; j < nFeatures; j++ {
			rows[i][j] = X.At(i, j)
		}
		all = append(all, rows[i]...)
	}
	if err := errors.CheckNumericalStability("SVC.Fit", all, 0); err != nil {
		return err
	}

	switch s.gamma {
	case "scale":
		_, variance := stat.PopMeanVariance(all, nil)
		s.gamma_ = 1.0
		if variance > 0 {
			s.gamma_ = 1 / (float64(nFeatures) * variance)
		}
	case "auto":
		s.gamma_ = 1 / float64(nFeatures)
	default:
		return errors.NewValidationError("gamma", "must be scale or auto", s.gamma)
	}

	byClass := make(map[int][]int)
	for i := 0; i < nSamples; i++ {
		c := int(y.At(i, 0))
		byClass[c] = append(byClass[c], i)
	}
	s.classes_ = s.classes_[:0]
	for c := range byClass {
		s.classes_ = append(s.classes_, c)
	}
	sort.Ints(s.classes_)
	if len(s.classes_) < 2 {
		return errors.NewValueError("SVC.Fit", fmt.Sprintf("needs at least 2 classes, got %d", len(s.classes_)))
	}

	// 各ペアのサポートベクトルを共有行として集める
	supportRow := make(map[int]int)
	var supportIdx []int
	s.pairs_ = s.pairs_[:0]
	for a := 0; a < len(s.classes_); a++ {
		for b := a + 1; b < len(s.classes_); b++ {
			idx := append(append([]int(nil), byClass[s.classes_[a]]...), byClass[s.classes_[b]]...)
			sort.Ints(idx)
			labels := make([]float64, len(idx))
			for k, i := range idx {
				if int(y.At(i, 0)) == s.classes_[a] {
					labels[k] = 1
				} else {
					labels[k] = -1
				}
			}
			alpha, rho := s.solve(rows, idx, labels)

			m := binaryMachine{pos: a, neg: b, rho: rho}
			for k, i := range idx {
				if alpha[k] == 0 {
					continue
				}
				r, ok := supportRow[i]
				if !ok {
					r = len(supportIdx)
					supportRow[i] = r
					supportIdx = append(supportIdx, i)
				}
				m.sv = append(m.sv, r)
				m.dualCoef = append(m.dualCoef, alpha[k]*labels[k])
			}
			s.pairs_ = append(s.pairs_, m)
		}
	}

	s.support_ = mat.NewDense(max(len(supportIdx), 1), nFeatures, nil)
	for r, i := range supportIdx {
		s.support_.SetRow(r, rows[i])
	}

	s.state.SetDimensions(nFeatures, nSamples)
	s.state.SetFitted()
	return nil
}

// solve runs SMO with maximal violating pair selection on the dual problem
// of one binary machine and returns alpha and the offset rho.
func (s *SVC) solve(rows [][]float64, idx []int, y []float64) ([]float64, float64) {
	n := len(idx)
	K := make([][]float64, n)
	for a := range K {
		K[a] = make([]float64, n)
	}
	parallel.ForEach(n, 64, func(a int) {
		for b := 0; b < n; b++ {
			K[a][b] = s.kernelFunc(rows[idx[a]], rows[idx[b]])
		}
	})

	alpha := make([]float64, n)
	grad := make([]float64, n)
	for t := range grad {
		grad[t] = -1
	}
	C := s.C

	iter := 0
	for ; iter < s.maxIter; iter++ {
		i, j := -1, -1
		gmax, gmin := math.Inf(-1), math.Inf(1)
		for t := 0; t < n; t++ {
			v := -y[t] * grad[t]
			if (y[t] > 0 && alpha[t] < C) || (y[t] < 0 && alpha[t] > 0) {
				if v > gmax {
					gmax, i = v, t
				}
			}
			if (y[t] > 0 && alpha[t] > 0) || (y[t] < 0 && alpha[t] < C) {
				if v < gmin {
					gmin, j = v, t
				}
			}
		}
		if i < 0 || j < 0 || gmax-gmin < s.tol {
			break
		}

		oldI, oldJ := alpha[i], alpha[j]
		if y[i] != y[j] {
			quad := K[i][i] + K[j][j] - 2*K[i][j]
			if quad <= 0 {
				quad = tau
			}
			delta := (-grad[i] - grad[j]) / quad
			diff := alpha[i] - alpha[j]
			alpha[i] += delta
			alpha[j] += delta
			if diff > 0 {
				if alpha[j] < 0 {
					alpha[j], alpha[i] = 0, diff
				}
			} else if alpha[i] < 0 {
				alpha[i], alpha[j] = 0, -diff
			}
			if diff > 0 {
				if alpha[i] > C {
					alpha[i], alpha[j] = C, C-diff
				}
			} else if alpha[j] > C {
				alpha[j], alpha[i] = C, C+diff
			}
		} else {
			quad := K[i][i] + K[j][j] - 2*K[i][j]
			if quad <= 0 {
				quad = tau
			}
			delta := (grad[i] - grad[j]) / quad
			sum := alpha[i] + alpha[j]
			alpha[i] -= delta
			alpha[j] += delta
			if sum > C {
				if alpha[i] > C {
					alpha[i], alpha[j] = C, sum-C
				}
			} else if alpha[j] < 0 {
				alpha[j], alpha[i] = 0, sum
			}
			if sum > C {
				if alpha[j] > C {
					alpha[j], alpha[i] = C, sum-C
				}
			} else if alpha[i] < 0 {
				alpha[i], alpha[j] = 0, sum
			}
		}

		dI, dJ := alpha[i]-oldI, alpha[j]-oldJ
		for t := 0; t < n; t++ {
			grad[t] += y[t]*y[i]*K[t][i]*dI + y[t]*y[j]*K[t][j]*dJ
		}
	}
	if iter == s.maxIter {
		errors.Warn(errors.NewConvergenceWarning("SVC", iter, "SMO did not reach the tolerance"))
	}

	// rho: 自由なαの平均、なければ境界の中点
	ub, lb := math.Inf(1), math.Inf(-1)
	var sum float64
	nFree := 0
	for t := 0; t < n; t++ {
		yg := y[t] * grad[t]
		switch {
		case alpha[t] >= C:
			if y[t] < 0 {
				ub = math.Min(ub, yg)
			} else {
				lb = math.Max(lb, yg)
			}
		case alpha[t] <= 0:
			if y[t] > 0 {
				ub = math.Min(ub, yg)
			} else {
				lb = math.Max(lb, yg)
			}
		default:
			nFree++
			sum += yg
		}
	}
	if nFree > 0 {
		return alpha, sum / float64(nFree)
	}
	return alpha, (ub + lb) / 2
}

// DecisionFunction returns one column per class pair (in (0,1), (0,2), ...,
// (1,2), ... order); positive values favour the first class of the pair.
func (s *SVC) DecisionFunction(X mat.Matrix) (mat.Matrix, error) {
	nSamples, nFeatures := X.Dims()
	if err := s.state.CheckFeatures("SVC", "DecisionFunction", nFeatures); err != nil {
		return nil, err
	}

	out := mat.NewDense(nSamples, len(s.pairs_), nil)
	nSupport, _ := s.support_.Dims()
	parallel.ForEach(nSamples, 256, func(i int) {
		x := make([]float64, nFeatures)
		mat.Row(x, i, X)
		k := make([]float64, nSupport)
		for r := range k {
			k[r] = s.kernelFunc(s.support_.RawRowView(r), x)
		}
		for p, m := range s.pairs_ {
			v := -m.rho
			for q, r := range m.sv {
				v += m.dualCoef[q] * k[r]
			}
			out.Set(i, p, v)
		}
	})
	return out, nil
}

// Predict returns the one-vs-one vote winner; ties go to the smaller class.
func (s *SVC) Predict(X mat.Matrix) (mat.Matrix, error) {
	dec, err := s.DecisionFunction(X)
	if err != nil {
		return nil, err
	}
	nSamples, _ := dec.Dims()
	out := mat.NewDense(nSamples, 1, nil)
	votes := make([]int, len(s.classes_))
	for i := 0; i < nSamples; i++ {
		for k := range votes {
			votes[k] = 0
		}
		for p, m := range s.pairs_ {
			if dec.At(i, p) > 0 {
				votes[m.pos]++
			} else {
				votes[m.neg]++
			}
		}
		best := 0
		for k := 1; k < len(votes); k++ {
			if votes[k] > votes[best] {
				best = k
			}
		}
		out.Set(i, 0, float64(s.classes_[best]))
	}
	return out, nil
}

// Score returns the mean accuracy on X and y.
func (s *SVC) Score(X, y mat.Matrix) (float64, error) {
	pred, err := s.Predict(X)
	if err != nil {
		return 0, err
	}
	n, _ := X.Dims()
	correct := 0
	for i := 0; i < n; i++ {
		if pred.At(i, 0) == y.At(i, 0) {
			correct++
		}
	}
	return float64(correct) / float64(n), nil
}

// IsFitted reports whether Fit has completed.
func (s *SVC) IsFitted() bool { return s.state.IsFitted() }

// Classes returns the sorted class labels.
func (s *SVC) Classes() []int { return append([]int(nil), s.classes_...) }

// Gamma returns the kernel coefficient resolved during Fit.
func (s *SVC) Gamma() float64 { return s.gamma_ }

// NSupport returns the number of distinct support vectors.
func (s *SVC) NSupport() int {
	if !s.IsFitted() {
		return 0
	}
	seen := make(map[int]struct{})
	for _, m := range s.pairs_ {
		for _, r := range m.sv {
			seen[r] = struct{}{}
		}
	}
	return len(seen)
}

// GetParams returns the hyperparameters.
func (s *SVC) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"C":        s.C,
		"kernel":   s.kernel,
		"gamma":    s.gamma,
		"tol":      s.tol,
		"max_iter": s.maxIter,
	}
}

// String returns a short description.
func (s *SVC) String() string {
	return fmt.Sprintf("SVC(kernel=%s, C=%g, gamma=%s)", s.kernel, s.C, s.gamma)
}
