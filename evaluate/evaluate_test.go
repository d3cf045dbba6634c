package evaluate

import (
	"context"
	"math/rand"
	"testing"

	"github.com/YuminosukeSato/modelbench/pkg/errors"
	"github.com/YuminosukeSato/modelbench/pkg/log"
	"github.com/YuminosukeSato/modelbench/preprocessing"
	"github.com/YuminosukeSato/modelbench/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// clusteredSplit builds 3 classes around separated centers in 4 dimensions
// and splits them 80/20.
func clusteredSplit(t *testing.T) *preprocessing.Split {
	t.Helper()
	rng := rand.New(rand.NewSource(11))
	n := 60
	X := mat.NewDense(n, 4, nil)
	y := make([]int, n)
	for i := 0; i < n; i++ {
		c := i % 3
		for j := 0; j < 4; j++ {
			X.Set(i, j, float64(c)*3+rng.NormFloat64()*0.4)
		}
		y[i] = c
	}
	train, test, err := preprocessing.TrainTestSplitIndices(n, 0.2, 42)
	require.NoError(t, err)
	split, err := preprocessing.NewSplit(X, y, []string{"a", "b", "c", "d"}, train, test)
	require.NoError(t, err)
	return split
}

func TestRun_AllVariants(t *testing.T) {
	split := clusteredSplit(t)
	before := split.XTrain()

	for _, v := range registry.Default() {
		t.Run(v.Name, func(t *testing.T) {
			trained, result, err := Run(context.Background(), v, split)
			require.NoError(t, err)

			assert.Equal(t, v.Name, result.Model)
			assert.GreaterOrEqual(t, result.Accuracy, 0.0)
			assert.LessOrEqual(t, result.Accuracy, 1.0)
			assert.Len(t, trained.Predictions, len(split.YTest()))
			assert.Equal(t, len(split.YTest()), result.Confusion.Total())
			assert.True(t, trained.Estimator.IsFitted())

			_, cols := trained.XTest.Dims()
			if v.Features == preprocessing.VisualizableSubspace {
				assert.Equal(t, 2, cols)
				assert.Equal(t, []string{"a", "b"}, trained.FeatureNames)
			} else {
				assert.Equal(t, 4, cols)
			}
			assert.Equal(t, v.Params.RoundPredictions, trained.Raw != nil)
		})
	}

	assert.True(t, mat.Equal(before, split.XTrain()), "the split is read-only")
}

func TestRun_RoundedRegressionIsNotClipped(t *testing.T) {
	// y = x on the training rows; test rows lie outside the class range
	X := mat.NewDense(10, 1, []float64{0, 0, 1, 1, 2, 2, 5, -3, 2.4, 1.9})
	y := []int{0, 0, 1, 1, 2, 2, 2, 0, 1, 2}
	split, err := preprocessing.NewSplit(X, y, []string{"x"}, []int{0, 1, 2, 3, 4, 5}, []int{6, 7, 8, 9})
	require.NoError(t, err)

	linear := registry.Default()[0]
	require.True(t, linear.Params.RoundPredictions)

	trained, result, err := Run(context.Background(), linear, split)
	require.NoError(t, err)

	assert.Equal(t, []int{5, -3, 2, 2}, trained.Predictions)
	assert.InDelta(t, 5.0, trained.Raw.AtVec(0), 1e-9)
	assert.InDelta(t, 0.25, result.Accuracy, 1e-12)
	assert.Equal(t, []int{-3, 0, 1, 2, 5}, result.Confusion.Labels)
}

func TestRun_ClassChecks(t *testing.T) {
	variant := registry.Default()[3]

	t.Run("single training class", func(t *testing.T) {
		X := mat.NewDense(4, 2, []float64{0, 0, 1, 1, 2, 2, 3, 3})
		split, err := preprocessing.NewSplit(X, []int{1, 1, 1, 1}, []string{"a", "b"}, []int{0, 1, 2}, []int{3})
		require.NoError(t, err)
		_, _, err = Run(context.Background(), variant, split)
		var te *errors.TrainingError
		require.True(t, errors.As(err, &te))
		assert.Equal(t, variant.Name, te.Model)
	})

	t.Run("test class unseen in training", func(t *testing.T) {
		X := mat.NewDense(5, 2, []float64{0, 0, 1, 1, 2, 2, 3, 3, 4, 4})
		split, err := preprocessing.NewSplit(X, []int{0, 1, 0, 1, 2}, []string{"a", "b"}, []int{0, 1, 2, 3}, []int{4})
		require.NoError(t, err)
		_, _, err = Run(context.Background(), variant, split)
		var te *errors.TrainingError
		require.True(t, errors.As(err, &te))
		assert.Contains(t, te.Reason, "[2]")
	})
}

func TestRun_SubspaceNeedsTwoColumns(t *testing.T) {
	X := mat.NewDense(6, 1, []float64{0, 1, 2, 3, 4, 5})
	split, err := preprocessing.NewSplit(X, []int{0, 1, 0, 1, 0, 1}, []string{"x"}, []int{0, 1, 2, 3}, []int{4, 5})
	require.NoError(t, err)

	svm := registry.Default()[2]
	require.Equal(t, preprocessing.VisualizableSubspace, svm.Features)
	_, _, err = Run(context.Background(), svm, split)
	var te *errors.TrainingError
	require.True(t, errors.As(err, &te))
	var de *errors.DimensionError
	assert.True(t, errors.As(err, &de))
}

func TestRun_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := Run(ctx, registry.Default()[0], clusteredSplit(t))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun_LogsContinuousFit(t *testing.T) {
	provider, _ := log.NewTestLoggerProvider(log.LevelDebug)
	log.SetProvider(provider)
	defer log.Setup(log.Config{Level: "info"})

	_, _, err := Run(context.Background(), registry.Default()[0], clusteredSplit(t))
	require.NoError(t, err)

	logger := provider.Logger()
	assert.True(t, logger.ContainsMessage("Continuous predictions"))
	assert.True(t, logger.ContainsMessage("Model evaluated"))
	assert.True(t, logger.ContainsField(log.ModelNameKey, "Linear Regression"))

	entries, err := logger.GetLogEntries()
	require.NoError(t, err)
	var fit map[string]interface{}
	for _, e := range entries {
		if e["message"] == "Continuous predictions" {
			fit = e
		}
	}
	require.NotNil(t, fit)
	mse, ok := fit[log.MSEKey].(float64)
	require.True(t, ok)
	assert.GreaterOrEqual(t, mse, 0.0)
	r2, ok := fit[log.R2ScoreKey].(float64)
	require.True(t, ok)
	ev, ok := fit[log.ExplainedVarianceScoreKey].(float64)
	require.True(t, ok)
	// 説明分散は平均の偏りを無視するので R² 以上になる
	assert.GreaterOrEqual(t, ev, r2-1e-12)
}
