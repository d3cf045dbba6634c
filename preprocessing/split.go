package preprocessing

import (
	"math"
	"math/rand"

	"github.com/YuminosukeSato/modelbench/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// FeatureSet selects which columns of the feature matrix a model consumes.
type FeatureSet int

const (
	// FullFeatures uses every feature column.
	FullFeatures FeatureSet = iota
	// VisualizableSubspace uses the first two feature columns only.
	VisualizableSubspace
)

// String returns the set name.
func (f FeatureSet) String() string {
	switch f {
	case FullFeatures:
		return "full"
	case VisualizableSubspace:
		return "subspace2d"
	default:
		return "unknown"
	}
}

// TrainTestSplitIndices partitions 0..n-1 into test and train row indices.
// nTest = ceil(n*testSize); a permutation seeded with seed is drawn and its
// first nTest entries form the test partition. Equal (n, testSize, seed)
// always give the same partition.
func TrainTestSplitIndices(n int, testSize float64, seed int64) (train, test []int, err error) {
	if testSize <= 0 || testSize >= 1 {
		return nil, nil, errors.NewValidationError("test_size", "must be in (0, 1)", testSize)
	}
	nTest := int(math.Ceil(float64(n) * testSize))
	nTrain := n - nTest
	if nTest < 1 || nTrain < 1 {
		return nil, nil, errors.NewPreprocessingError("split", "",
			"test_size leaves an empty partition")
	}

	perm := rand.New(rand.NewSource(seed)).Perm(n)
	test = append([]int(nil), perm[:nTest]...)
	train = append([]int(nil), perm[nTest:]...)
	return train, test, nil
}

// Split is the train/test partition of one prepared dataset. It is never
// modified after construction; every accessor returns a copy so that a model
// cannot alter what the next model sees.
type Split struct {
	xTrain, xTest *mat.Dense
	yTrain, yTest []int

	trainIdx, testIdx []int
	featureNames      []string
}

// NewSplit gathers the rows of X and y into a Split. X rows and y entries
// must be aligned.
func NewSplit(X mat.Matrix, y []int, featureNames []string, train, test []int) (*Split, error) {
	r, c := X.Dims()
	if r != len(y) {
		return nil, errors.NewDimensionError("NewSplit", r, len(y), 0)
	}
	if len(featureNames) != c {
		return nil, errors.NewDimensionError("NewSplit", c, len(featureNames), 1)
	}
	return &Split{
		xTrain:       gatherRows(X, train),
		xTest:        gatherRows(X, test),
		yTrain:       gatherLabels(y, train),
		yTest:        gatherLabels(y, test),
		trainIdx:     append([]int(nil), train...),
		testIdx:      append([]int(nil), test...),
		featureNames: append([]string(nil), featureNames...),
	}, nil
}

func gatherRows(X mat.Matrix, rows []int) *mat.Dense {
	_, c := X.Dims()
	out := mat.NewDense(len(rows), c, nil)
	for i, r := range rows {
		for j := 0; j < c; j++ {
			out.Set(i, j, X.At(r, j))
		}
	}
	return out
}

func gatherLabels(y []int, rows []int) []int {
	out := make([]int, len(rows))
	for i, r := range rows {
		out[i] = y[r]
	}
	return out
}

// XTrain returns a copy of the training features.
func (s *Split) XTrain() *mat.Dense { return mat.DenseCopyOf(s.xTrain) }

// XTest returns a copy of the test features.
func (s *Split) XTest() *mat.Dense { return mat.DenseCopyOf(s.xTest) }

// YTrain returns a copy of the training labels.
func (s *Split) YTrain() []int { return append([]int(nil), s.yTrain...) }

// YTest returns a copy of the test labels.
func (s *Split) YTest() []int { return append([]int(nil), s.yTest...) }

// YTrainVec returns the training labels as a column vector.
func (s *Split) YTrainVec() *mat.VecDense { return labelVec(s.yTrain) }

// YTestVec returns the test labels as a column vector.
func (s *Split) YTestVec() *mat.VecDense { return labelVec(s.yTest) }

func labelVec(y []int) *mat.VecDense {
	data := make([]float64, len(y))
	for i, v := range y {
		data[i] = float64(v)
	}
	return mat.NewVecDense(len(data), data)
}

// TrainIndices returns the source row index of each training row.
func (s *Split) TrainIndices() []int { return append([]int(nil), s.trainIdx...) }

// TestIndices returns the source row index of each test row.
func (s *Split) TestIndices() []int { return append([]int(nil), s.testIdx...) }

// NumFeatures returns the number of feature columns.
func (s *Split) NumFeatures() int {
	_, c := s.xTrain.Dims()
	return c
}

// FeatureNames returns the feature column names in matrix order.
func (s *Split) FeatureNames() []string { return append([]string(nil), s.featureNames...) }

// Select returns copies of the train and test features for set.
func (s *Split) Select(set FeatureSet) (xTrain, xTest *mat.Dense, err error) {
	switch set {
	case FullFeatures:
		return s.XTrain(), s.XTest(), nil
	case VisualizableSubspace:
		return s.Subspace()
	default:
		return nil, nil, errors.NewValueError("Split.Select", "unknown feature set "+set.String())
	}
}

// Subspace returns the first two feature columns of the train and test
// partitions. A matrix with fewer than two columns has no subspace.
func (s *Split) Subspace() (xTrain, xTest *mat.Dense, err error) {
	if s.NumFeatures() < 2 {
		return nil, nil, errors.NewDimensionError("Split.Subspace", 2, s.NumFeatures(), 1)
	}
	rTrain, _ := s.xTrain.Dims()
	rTest, _ := s.xTest.Dims()
	xTrain = mat.DenseCopyOf(s.xTrain.Slice(0, rTrain, 0, 2))
	xTest = mat.DenseCopyOf(s.xTest.Slice(0, rTest, 0, 2))
	return xTrain, xTest, nil
}

// SubspaceNames returns the names of the two subspace columns.
func (s *Split) SubspaceNames() []string {
	if len(s.featureNames) < 2 {
		return s.FeatureNames()
	}
	return append([]string(nil), s.featureNames[:2]...)
}
