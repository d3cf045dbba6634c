// Package tree implements CART decision tree classification.
package tree

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/YuminosukeSato/modelbench/core/model"
	"github.com/YuminosukeSato/modelbench/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Node is one node of a fitted tree. Leaves have Left == Right == nil.
type Node struct {
	// Feature and Threshold define the split: x[Feature] <= Threshold goes left.
	Feature   int
	Threshold float64

	Left, Right *Node

	Impurity float64
	// NSamples is the number of training samples that reached the node.
	NSamples int
	// Value holds the weighted class counts, aligned with Classes().
	Value []float64
	Depth int
}

// IsLeaf reports whether the node has no children.
func (n *Node) IsLeaf() bool { return n.Left == nil && n.Right == nil }

// Majority returns the index of the largest class count; ties go to the
// smaller index.
func (n *Node) Majority() int {
	best := 0
	for k, v := range n.Value {
		if v > n.Value[best] {
			best = k
		}
	}
	return best
}

// DecisionTreeClassifier is a CART classifier with the same defaults as
// scikit-learn: gini impurity, unlimited depth, min_samples_split=2,
// min_samples_leaf=1, all features considered at each split.
type DecisionTreeClassifier struct {
	state *model.StateManager

	criterion       string
	maxDepth        int // 0 => unlimited
	minSamplesSplit int
	minSamplesLeaf  int
	maxFeatures     int // 0 => all
	randomState     int64

	root                *Node
	classes_            []int
	nClasses_           int
	nFeatures_          int
	featureImportances_ []float64
	depth_, nLeaves_    int
	impurity            func(counts []float64, total float64) float64
}

// Option configures a DecisionTreeClassifier.
type Option func(*DecisionTreeClassifier)

// WithCriterion sets the impurity criterion, "gini" or "entropy".
func WithCriterion(c string) Option {
	return func(t *DecisionTreeClassifier) { t.criterion = c }
}

// WithMaxDepth limits the depth of the tree. 0 means unlimited.
func WithMaxDepth(d int) Option {
	return func(t *DecisionTreeClassifier) { t.maxDepth = d }
}

// WithMinSamplesSplit sets the minimum number of samples to split a node.
func WithMinSamplesSplit(n int) Option {
	return func(t *DecisionTreeClassifier) { t.minSamplesSplit = n }
}

// WithMinSamplesLeaf sets the minimum number of samples in each leaf.
func WithMinSamplesLeaf(n int) Option {
	return func(t *DecisionTreeClassifier) { t.minSamplesLeaf = n }
}

// WithMaxFeatures sets how many features are drawn per split. 0 means all.
func WithMaxFeatures(n int) Option {
	return func(t *DecisionTreeClassifier) { t.maxFeatures = n }
}

// WithRandomState seeds the feature permutation drawn at each node.
func WithRandomState(seed int64) Option {
	return func(t *DecisionTreeClassifier) { t.randomState = seed }
}

// NewDecisionTreeClassifier creates a classifier.
func NewDecisionTreeClassifier(opts ...Option) *DecisionTreeClassifier {
	t := &DecisionTreeClassifier{
		state:           model.NewStateManager(),
		criterion:       "gini",
		minSamplesSplit: 2,
		minSamplesLeaf:  1,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Fit builds the tree from X and the column vector y.
func (t *DecisionTreeClassifier) Fit(X, y mat.Matrix) error {
	return t.FitWeighted(X, y, nil)
}

// FitWeighted builds the tree with per-sample weights. Samples with zero
// weight do not reach any node, but their labels still count as classes, so
// a bootstrap sample keeps the full class set.
func (t *DecisionTreeClassifier) FitWeighted(X, y mat.Matrix, sampleWeight []float64) error {
	nSamples, nFeatures := X.Dims()
	yRows, yCols := y.Dims()
	if nSamples == 0 || nFeatures == 0 {
		return errors.NewModelError("DecisionTreeClassifier.Fit", "empty data", errors.ErrEmptyData)
	}
	if yRows != nSamples {
		return errors.NewDimensionError("DecisionTreeClassifier.Fit", nSamples, yRows, 0)
	}
	if yCols != 1 {
		return errors.NewValueError("DecisionTreeClassifier.Fit", "y must be a column vector")
	}
	if sampleWeight != nil && len(sampleWeight) != nSamples {
		return errors.NewDimensionError("DecisionTreeClassifier.Fit", nSamples, len(sampleWeight), 0)
	}
	switch t.criterion {
	case "gini":
		t.impurity = gini
	case "entropy":
		t.impurity = entropy
	default:
		return errors.NewValidationError("criterion", "must be gini or entropy", t.criterion)
	}
	if t.minSamplesSplit < 2 {
		return errors.NewValidationError("min_samples_split", "must be at least 2", t.minSamplesSplit)
	}
	if t.minSamplesLeaf < 1 {
		return errors.NewValidationError("min_samples_leaf", "must be at least 1", t.minSamplesLeaf)
	}

	// クラスは昇順に並べる
	classSet := make(map[int]struct{})
	for i := 0; i < nSamples; i++ {
		classSet[int(y.At(i, 0))] = struct{}{}
	}
	t.classes_ = make([]int, 0, len(classSet))
	for c := range classSet {
		t.classes_ = append(t.classes_, c)
	}
	sort.Ints(t.classes_)
	t.nClasses_ = len(t.classes_)
	t.nFeatures_ = nFeatures

	labels := make([]int, nSamples)
	for i := range labels {
		labels[i] = sort.SearchInts(t.classes_, int(y.At(i, 0)))
	}
	weights := make([]float64, nSamples)
	var idx []int
	for i := range weights {
		w := 1.0
		if sampleWeight != nil {
			w = sampleWeight[i]
		}
		weights[i] = w
		if w > 0 {
			idx = append(idx, i)
		}
	}
	if len(idx) == 0 {
		return errors.NewValueError("DecisionTreeClassifier.Fit", "all sample weights are zero")
	}

	b := &builder{
		tree:        t,
		X:           mat.DenseCopyOf(X),
		labels:      labels,
		weights:     weights,
		rng:         rand.New(rand.NewSource(t.randomState)),
		importances: make([]float64, nFeatures),
	}
	t.depth_, t.nLeaves_ = 0, 0
	t.root = b.build(idx, 0)

	// 重要度を正規化
	var total float64
	for _, v := range b.importances {
		total += v
	}
	t.featureImportances_ = b.importances
	if total > 0 {
		for j := range t.featureImportances_ {
			t.featureImportances_[j] /= total
		}
	}

	t.state.SetDimensions(nFeatures, nSamples)
	t.state.SetFitted()
	return nil
}

type builder struct {
	tree        *DecisionTreeClassifier
	X           *mat.Dense
	labels      []int
	weights     []float64
	rng         *rand.Rand
	importances []float64
	totalWeight float64
}

type split struct {
	feature   int
	threshold float64
	pos       int // left = sorted[:pos]
	sorted    []int
	gain      float64
}

func (b *builder) counts(idx []int) ([]float64, float64) {
	counts := make([]float64, b.tree.nClasses_)
	var total float64
	for _, i := range idx {
		counts[b.labels[i]] += b.weights[i]
		total += b.weights[i]
	}
	return counts, total
}

func (b *builder) build(idx []int, depth int) *Node {
	t := b.tree
	counts, total := b.counts(idx)
	if depth == 0 {
		b.totalWeight = total
	}
	node := &Node{
		Feature:  -1,
		Impurity: t.impurity(counts, total),
		NSamples: len(idx),
		Value:    counts,
		Depth:    depth,
	}
	if depth > t.depth_ {
		t.depth_ = depth
	}

	isLeaf := len(idx) < t.minSamplesSplit ||
		len(idx) < 2*t.minSamplesLeaf ||
		(t.maxDepth > 0 && depth >= t.maxDepth) ||
		node.Impurity <= 1e-12
	if !isLeaf {
		if s, ok := b.bestSplit(idx, counts, total, node.Impurity); ok {
			node.Feature = s.feature
			node.Threshold = s.threshold
			left := append([]int(nil), s.sorted[:s.pos]...)
			right := append([]int(nil), s.sorted[s.pos:]...)
			b.importances[s.feature] += s.gain * total / b.totalWeight
			node.Left = b.build(left, depth+1)
			node.Right = b.build(right, depth+1)
			return node
		}
	}
	t.nLeaves_++
	return node
}

// bestSplit scans features in a random order and returns the split with the
// largest impurity decrease. A split with zero decrease is still accepted,
// which lets the tree separate XOR-like data.
func (b *builder) bestSplit(idx []int, parentCounts []float64, parentTotal, parentImpurity float64) (split, bool) {
	t := b.tree
	nFeatures := t.nFeatures_
	maxFeatures := nFeatures
	if t.maxFeatures > 0 && t.maxFeatures < nFeatures {
		maxFeatures = t.maxFeatures
	}

	var best split
	found := false
	visited := 0
	sorted := make([]int, len(idx))
	leftCounts := make([]float64, t.nClasses_)
	rightCounts := make([]float64, t.nClasses_)

	for _, f := range b.rng.Perm(nFeatures) {
		// 有効な分割が見つかるまでは max_features を超えて探索を続ける
		if visited >= maxFeatures && found {
			break
		}
		copy(sorted, idx)
		sort.SliceStable(sorted, func(a, c int) bool {
			return b.X.At(sorted[a], f) < b.X.At(sorted[c], f)
		})
		if b.X.At(sorted[0], f) == b.X.At(sorted[len(sorted)-1], f) {
			continue // 定数特徴量
		}
		visited++

		for k := range leftCounts {
			leftCounts[k] = 0
		}
		copy(rightCounts, parentCounts)
		var leftTotal float64
		for pos := 1; pos < len(sorted); pos++ {
			i := sorted[pos-1]
			w := b.weights[i]
			leftCounts[b.labels[i]] += w
			rightCounts[b.labels[i]] -= w
			leftTotal += w

			lo := b.X.At(i, f)
			hi := b.X.At(sorted[pos], f)
			if lo == hi {
				continue
			}
			if pos < t.minSamplesLeaf || len(sorted)-pos < t.minSamplesLeaf {
				continue
			}
			rightTotal := parentTotal - leftTotal
			child := (leftTotal*t.impurity(leftCounts, leftTotal) + rightTotal*t.impurity(rightCounts, rightTotal)) / parentTotal
			gain := parentImpurity - child
			if !found || gain > best.gain+1e-12 {
				threshold := lo + (hi-lo)/2
				if threshold == hi {
					threshold = lo
				}
				best = split{feature: f, threshold: threshold, pos: pos, gain: gain}
				best.sorted = append(best.sorted[:0], sorted...)
				found = true
			}
		}
	}
	if found && best.gain < 0 {
		found = false
	}
	return best, found
}

func gini(counts []float64, total float64) float64 {
	if total <= 0 {
		return 0
	}
	g := 1.0
	for _, c := range counts {
		p := c / total
		g -= p * p
	}
	return g
}

func entropy(counts []float64, total float64) float64 {
	if total <= 0 {
		return 0
	}
	var h float64
	for _, c := range counts {
		if c > 0 {
			p := c / total
			h -= p * math.Log2(p)
		}
	}
	return h
}

func (t *DecisionTreeClassifier) leaf(X mat.Matrix, i int) *Node {
	n := t.root
	for !n.IsLeaf() {
		if X.At(i, n.Feature) <= n.Threshold {
			n = n.Left
		} else {
			n = n.Right
		}
	}
	return n
}

// Predict returns the majority class of the leaf each row falls into.
func (t *DecisionTreeClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	nSamples, nFeatures := X.Dims()
	if err := t.state.CheckFeatures("DecisionTreeClassifier", "Predict", nFeatures); err != nil {
		return nil, err
	}
	out := mat.NewDense(nSamples, 1, nil)
	for i := 0; i < nSamples; i++ {
		out.Set(i, 0, float64(t.classes_[t.leaf(X, i).Majority()]))
	}
	return out, nil
}

// PredictProba returns the class distribution of the leaf each row falls
// into, columns in Classes() order.
func (t *DecisionTreeClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	nSamples, nFeatures := X.Dims()
	if err := t.state.CheckFeatures("DecisionTreeClassifier", "PredictProba", nFeatures); err != nil {
		return nil, err
	}
	out := mat.NewDense(nSamples, t.nClasses_, nil)
	for i := 0; i < nSamples; i++ {
		leaf := t.leaf(X, i)
		var total float64
		for _, v := range leaf.Value {
			total += v
		}
		for k, v := range leaf.Value {
			out.Set(i, k, v/total)
		}
	}
	return out, nil
}

// Score returns the mean accuracy on X and y.
func (t *DecisionTreeClassifier) Score(X, y mat.Matrix) (float64, error) {
	pred, err := t.Predict(X)
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
func (t *DecisionTreeClassifier) IsFitted() bool { return t.state.IsFitted() }

// Classes returns the sorted class labels.
func (t *DecisionTreeClassifier) Classes() []int { return append([]int(nil), t.classes_...) }

// Root returns the root node of the fitted tree, or nil before Fit.
func (t *DecisionTreeClassifier) Root() *Node { return t.root }

// NFeatures returns the number of features seen during Fit.
func (t *DecisionTreeClassifier) NFeatures() int { return t.nFeatures_ }

// GetFeatureImportances returns the normalized total impurity decrease per
// feature.
func (t *DecisionTreeClassifier) GetFeatureImportances() []float64 {
	return append([]float64(nil), t.featureImportances_...)
}

// GetDepth returns the depth of the tree, the root being depth 0.
func (t *DecisionTreeClassifier) GetDepth() int { return t.depth_ }

// GetNLeaves returns the number of leaves.
func (t *DecisionTreeClassifier) GetNLeaves() int { return t.nLeaves_ }

// GetParams returns the hyperparameters.
func (t *DecisionTreeClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"criterion":         t.criterion,
		"max_depth":         t.maxDepth,
		"min_samples_split": t.minSamplesSplit,
		"min_samples_leaf":  t.minSamplesLeaf,
		"max_features":      t.maxFeatures,
		"random_state":      t.randomState,
	}
}

// SetParams updates hyperparameters by name.
func (t *DecisionTreeClassifier) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		var ok bool
		switch key {
		case "criterion":
			t.criterion, ok = value.(string)
		case "max_depth":
			t.maxDepth, ok = value.(int)
		case "min_samples_split":
			t.minSamplesSplit, ok = value.(int)
		case "min_samples_leaf":
			t.minSamplesLeaf, ok = value.(int)
		case "max_features":
			t.maxFeatures, ok = value.(int)
		case "random_state":
			t.randomState, ok = value.(int64)
		default:
			return errors.NewValidationError(key, "unknown parameter", value)
		}
		if !ok {
			return errors.NewValidationError(key, fmt.Sprintf("unexpected type %T", value), value)
		}
	}
	return nil
}
