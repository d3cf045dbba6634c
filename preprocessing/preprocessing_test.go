package preprocessing

import (
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/YuminosukeSato/modelbench/dataset"
	"github.com/YuminosukeSato/modelbench/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// syntheticFrame builds n rows with an ID column, two categorical columns,
// two numeric columns and a three-class target. Every tenth Category cell is
// missing, and targetMissing rows have no target.
func syntheticFrame(t *testing.T, n, targetMissing int) *dataset.Frame {
	t.Helper()
	rng := rand.New(rand.NewSource(7))
	abundance := []string{"Common", "Rare", "Uncommon"}
	category := []string{"Bird", "Fish", "Mammal"}

	var b strings.Builder
	b.WriteString("Species ID,Category,Nativeness,Length,Weight,Abundance\n")
	for i := 0; i < n; i++ {
		cat := category[rng.Intn(3)]
		if i%10 == 3 {
			cat = ""
		}
		target := abundance[i%3]
		if i < targetMissing {
			target = ""
		}
		fmt.Fprintf(&b, "ID%d,%s,%s,%.3f,%d,%s\n", i, cat, []string{"Native", "Not Native"}[i%2],
			rng.NormFloat64()*3+float64(i%3), rng.Intn(50), target)
	}
	frame, err := dataset.ReadCSV(strings.NewReader(b.String()), "synthetic.csv")
	require.NoError(t, err)
	return frame
}

func TestMode_TieBreaking(t *testing.T) {
	col := &dataset.Column{
		Name:    "c",
		Values:  []string{"b", "a", "b", "a", ""},
		Missing: []bool{false, false, false, false, true},
	}
	mode, ok := columnMode(col, false)
	require.True(t, ok)
	assert.Equal(t, "a", mode)

	num := &dataset.Column{
		Name:    "n",
		Values:  []string{"10", "9", "10", "9"},
		Missing: []bool{false, false, false, false},
	}
	mode, ok = columnMode(num, true)
	require.True(t, ok)
	assert.Equal(t, "9", mode, "numeric ties resolve in numeric order, not lexical")

	empty := &dataset.Column{Name: "e", Values: []string{"", ""}, Missing: []bool{true, true}}
	_, ok = columnMode(empty, false)
	assert.False(t, ok)
}

func TestModeImputer(t *testing.T) {
	cols := []*dataset.Column{{
		Name:    "c",
		Values:  []string{"x", "", "x", "y"},
		Missing: []bool{false, true, false, false},
	}}
	imp := NewModeImputer()
	require.NoError(t, imp.Fit(cols, map[string]bool{}))
	out, err := imp.Transform(cols)
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "x", "x", "y"}, out[0].Values)
	assert.Equal(t, 0, out[0].MissingCount())
	assert.True(t, cols[0].Missing[1], "input is not modified")
}

func TestLabelEncoder_RoundTrip(t *testing.T) {
	enc := NewLabelEncoder()
	values := []string{"Rare", "Common", "Uncommon", "Common"}
	codes, err := enc.FitTransform(values)
	require.NoError(t, err)
	assert.Equal(t, []string{"Common", "Rare", "Uncommon"}, enc.Classes)
	assert.Equal(t, []int{1, 0, 2, 0}, codes)

	back, err := enc.InverseTransform(codes)
	require.NoError(t, err)
	assert.Equal(t, values, back)

	_, err = enc.Transform([]string{"Abundant"})
	var valErr *errors.ValueError
	assert.True(t, errors.As(err, &valErr))

	_, err = enc.InverseTransform([]int{5})
	assert.Error(t, err)
}

func TestLabelEncoder_NumericOrder(t *testing.T) {
	enc := NewLabelEncoder()
	require.NoError(t, enc.Fit([]string{"10", "9", "100"}))
	assert.Equal(t, []string{"9", "10", "100"}, enc.Classes)
}

func TestLabelEncoder_NotFitted(t *testing.T) {
	_, err := NewLabelEncoder().Transform([]string{"a"})
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))
}

func TestTrainTestSplitIndices(t *testing.T) {
	train, test, err := TrainTestSplitIndices(101, 0.2, 42)
	require.NoError(t, err)
	assert.Len(t, test, 21, "ceil(101*0.2)")
	assert.Len(t, train, 80)

	seen := make(map[int]bool)
	for _, i := range append(append([]int(nil), train...), test...) {
		assert.False(t, seen[i], "index %d appears twice", i)
		seen[i] = true
	}
	assert.Len(t, seen, 101)

	train2, test2, err := TrainTestSplitIndices(101, 0.2, 42)
	require.NoError(t, err)
	assert.Equal(t, train, train2)
	assert.Equal(t, test, test2)

	_, _, err = TrainTestSplitIndices(1, 0.2, 42)
	var pe *errors.PreprocessingError
	assert.True(t, errors.As(err, &pe))

	_, _, err = TrainTestSplitIndices(10, 1.5, 42)
	assert.Error(t, err)
}

func TestSplit_AccessorsReturnCopies(t *testing.T) {
	X := mat.NewDense(4, 3, []float64{
		0, 1, 2,
		3, 4, 5,
		6, 7, 8,
		9, 10, 11,
	})
	split, err := NewSplit(X, []int{0, 1, 0, 1}, []string{"a", "b", "c"}, []int{0, 2, 3}, []int{1})
	require.NoError(t, err)

	xTrain := split.XTrain()
	xTrain.Set(0, 0, 99)
	assert.Equal(t, 0.0, split.XTrain().At(0, 0))

	y := split.YTrain()
	y[0] = 7
	assert.Equal(t, []int{0, 0, 1}, split.YTrain())

	subTrain, subTest, err := split.Subspace()
	require.NoError(t, err)
	_, c := subTrain.Dims()
	assert.Equal(t, 2, c)
	assert.Equal(t, 4.0, subTest.At(0, 1))
	assert.Equal(t, []string{"a", "b"}, split.SubspaceNames())

	narrow, err := NewSplit(mat.NewDense(2, 1, []float64{1, 2}), []int{0, 1}, []string{"a"}, []int{0}, []int{1})
	require.NoError(t, err)
	_, _, err = narrow.Select(VisualizableSubspace)
	assert.Error(t, err)
}

func TestPrepare_AlignmentAndEncoding(t *testing.T) {
	frame := syntheticFrame(t, 100, 5)
	prep, err := NewPreprocessor().Prepare(frame)
	require.NoError(t, err)

	assert.Equal(t, 95, prep.Rows)
	assert.Equal(t, []string{"Category", "Nativeness", "Length", "Weight"}, prep.FeatureNames)

	split := prep.Split
	rTrain, _ := split.XTrain().Dims()
	rTest, _ := split.XTest().Dims()
	assert.Equal(t, len(split.YTrain()), rTrain)
	assert.Equal(t, len(split.YTest()), rTest)
	assert.Equal(t, 19, rTest)
	assert.Equal(t, 95, rTrain+rTest)

	// ラベルは元の行の目的変数と一致する
	target, _ := frame.Column("Abundance")
	var kept []string
	for i, v := range target.Values {
		if !target.Missing[i] {
			kept = append(kept, v)
		}
	}
	for k, row := range split.TestIndices() {
		name, err := prep.Encodings.Decode("Abundance", split.YTest()[k])
		require.NoError(t, err)
		assert.Equal(t, kept[row], name)
	}

	assert.Equal(t, []string{"Common", "Rare", "Uncommon"}, prep.Encodings.ClassNames())
	assert.True(t, prep.Encodings.Has("Category"))
	assert.False(t, prep.Encodings.Has("Length"))
	assert.False(t, prep.Encodings.Has("Species ID"))
}

func TestPrepare_Determinism(t *testing.T) {
	a, err := NewPreprocessor().Prepare(syntheticFrame(t, 100, 0))
	require.NoError(t, err)
	b, err := NewPreprocessor().Prepare(syntheticFrame(t, 100, 0))
	require.NoError(t, err)

	assert.Equal(t, a.Split.TestIndices(), b.Split.TestIndices())
	assert.True(t, mat.Equal(a.Split.XTrain(), b.Split.XTrain()))
	assert.Equal(t, a.Split.YTest(), b.Split.YTest())
}

func TestPrepare_Standardization(t *testing.T) {
	prep, err := NewPreprocessor().Prepare(syntheticFrame(t, 100, 0))
	require.NoError(t, err)

	means, stds := columnMoments(prep.Split.XTrain())
	for j := range means {
		assert.InDelta(t, 0, means[j], 1e-9, "column %d mean", j)
		assert.InDelta(t, 1, stds[j], 1e-9, "column %d std", j)
	}
	assert.False(t, prep.ScaledBeforeSplit)

	before, err := NewPreprocessor(WithScaleBeforeSplit(true)).Prepare(syntheticFrame(t, 100, 0))
	require.NoError(t, err)
	assert.True(t, before.ScaledBeforeSplit)
	all := mat.NewDense(100, 4, nil)
	all.Stack(before.Split.XTrain(), before.Split.XTest())
	means, stds = columnMoments(all)
	for j := range means {
		assert.InDelta(t, 0, means[j], 1e-9)
		assert.InDelta(t, 1, stds[j], 1e-9)
	}
}

func TestPrepare_Errors(t *testing.T) {
	t.Run("missing target column", func(t *testing.T) {
		frame, err := dataset.NewFrame("mem", []string{"a", "b"}, [][]string{{"1", "2"}}, nil)
		require.NoError(t, err)
		_, err = NewPreprocessor().Prepare(frame)
		var le *errors.DataLoadError
		assert.True(t, errors.As(err, &le))
	})

	t.Run("single class target", func(t *testing.T) {
		records := make([][]string, 20)
		for i := range records {
			records[i] = []string{fmt.Sprint(i), "Common"}
		}
		frame, err := dataset.NewFrame("mem", []string{"x", "Abundance"}, records, dataset.DefaultNAValues)
		require.NoError(t, err)
		_, err = NewPreprocessor().Prepare(frame)
		var pe *errors.PreprocessingError
		require.True(t, errors.As(err, &pe), "got %v", err)
		assert.Equal(t, "encode", pe.Step)
	})

	t.Run("all targets missing", func(t *testing.T) {
		frame := syntheticFrame(t, 10, 10)
		_, err := NewPreprocessor().Prepare(frame)
		var pe *errors.PreprocessingError
		require.True(t, errors.As(err, &pe))
		assert.Equal(t, "filter", pe.Step)
	})

	t.Run("all-missing feature column", func(t *testing.T) {
		records := [][]string{{"", "a"}, {"", "b"}, {"", "a"}, {"", "b"}}
		frame, err := dataset.NewFrame("mem", []string{"x", "Abundance"}, records, dataset.DefaultNAValues)
		require.NoError(t, err)
		_, err = NewPreprocessor().Prepare(frame)
		var pe *errors.PreprocessingError
		require.True(t, errors.As(err, &pe))
		assert.Equal(t, "impute", pe.Step)
		assert.Equal(t, "x", pe.Column)
	})
}
