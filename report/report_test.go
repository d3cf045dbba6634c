package report

import (
	"bytes"
	"context"
	"math/rand"
	"strings"
	"testing"

	"github.com/YuminosukeSato/modelbench/evaluate"
	"github.com/YuminosukeSato/modelbench/metrics"
	"github.com/YuminosukeSato/modelbench/pkg/errors"
	"github.com/YuminosukeSato/modelbench/pkg/log"
	"github.com/YuminosukeSato/modelbench/registry"
	"github.com/YuminosukeSato/modelbench/viz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func result(t *testing.T, model string, kind registry.Kind, yTrue, yPred []float64) *evaluate.Result {
	t.Helper()
	yt := mat.NewVecDense(len(yTrue), yTrue)
	yp := mat.NewVecDense(len(yPred), yPred)
	acc, err := metrics.Accuracy(yt, yp)
	require.NoError(t, err)
	cm, err := metrics.NewConfusionMatrix(yt, yp)
	require.NoError(t, err)
	rep, err := metrics.NewClassificationReport(cm)
	require.NoError(t, err)
	return &evaluate.Result{Model: model, Kind: kind, Accuracy: acc, Confusion: cm, Report: rep}
}

func TestComparisonTable(t *testing.T) {
	table := NewComparisonTable()
	table.Add(result(t, "Decision Tree", registry.DecisionTree, []float64{0, 1, 1, 2}, []float64{0, 1, 1, 2}))
	table.Add(result(t, "Naive Bayes", registry.NaiveBayes, []float64{0, 1, 1, 2}, []float64{0, 0, 1, 2}))
	table.Add(result(t, "K-Nearest Neighbors", registry.KNN, []float64{0, 1, 1, 2}, []float64{0, 1, 1, 2}))

	assert.Equal(t, 3, table.Len())
	assert.Equal(t, []string{"Decision Tree", "Naive Bayes", "K-Nearest Neighbors"}, table.Names())
	assert.InDeltaSlice(t, []float64{1, 0.75, 1}, table.Accuracies(), 1e-12)

	best, ok := table.Best()
	require.True(t, ok)
	assert.Equal(t, "Decision Tree", best.Model)

	// 同じモデルは上書き
	table.Add(result(t, "Naive Bayes", registry.NaiveBayes, []float64{0, 1}, []float64{0, 1}))
	assert.Equal(t, 3, table.Len())
	acc, ok := table.Accuracy("Naive Bayes")
	require.True(t, ok)
	assert.Equal(t, 1.0, acc)

	s := table.String()
	assert.True(t, strings.HasPrefix(s, "Model"))
	assert.Contains(t, s, "K-Nearest Neighbors  1.0000")

	_, ok = NewComparisonTable().Best()
	assert.False(t, ok)
}

func TestReporter_ModelReport(t *testing.T) {
	var buf bytes.Buffer
	r := NewReporter(&buf, nil, WithColor(false))

	res := result(t, "Decision Tree", registry.DecisionTree, []float64{0, 0, 1, 1, 2}, []float64{0, 1, 1, 1, 2})
	require.NoError(t, r.ModelReport(res))

	out := buf.String()
	assert.Contains(t, out, "\nDecision Tree\n")
	assert.Contains(t, out, "Accuracy: 0.8\n")
	assert.Contains(t, out, "Confusion Matrix:\n[[1 1 0]\n [0 2 0]\n [0 0 1]]\n")
	assert.Contains(t, out, "Classification Report:\n")
	assert.Contains(t, out, "weighted avg")
	assert.NotContains(t, out, "\x1b[", "colors are disabled")

	assert.Error(t, r.ModelReport(&evaluate.Result{Model: "x"}))
}

func TestReporter_ColoredHeader(t *testing.T) {
	var buf bytes.Buffer
	r := NewReporter(&buf, nil, WithColor(true))
	require.NoError(t, r.RunHeader("run-1", nil))
	assert.Contains(t, buf.String(), "\x1b[")
	assert.Contains(t, buf.String(), "modelbench run run-1")
}

func TestReporter_Summarize(t *testing.T) {
	provider, _ := log.NewTestLoggerProvider(log.LevelInfo)
	log.SetProvider(provider)
	defer log.Setup(log.Config{Level: "info"})

	rng := rand.New(rand.NewSource(1))
	n := 30
	X := mat.NewDense(n, 4, nil)
	y := make([]int, n)
	for i := 0; i < n; i++ {
		y[i] = i % 3
		for j := 0; j < 4; j++ {
			X.Set(i, j, float64(y[i])+rng.NormFloat64())
		}
	}

	table := NewComparisonTable()
	for _, v := range registry.Default() {
		table.Add(result(t, v.Name, v.Kind, []float64{0, 1, 2}, []float64{0, 1, float64(v.Kind % 3)}))
	}

	sink := &viz.RecordingSink{Draw: true}
	var buf bytes.Buffer
	r := NewReporter(&buf, viz.NewDispatcher(sink), WithColor(false))
	require.NoError(t, r.Summarize(context.Background(), table, X, y, nil))

	assert.Equal(t, []string{DiagModelComparison, DiagPCA}, sink.Names())
	bar, ok := sink.Find("", DiagModelComparison)
	require.True(t, ok)
	assert.Equal(t, "Model Comparison", bar.Title)
	assert.Equal(t, "Models", bar.Plot.X.Label.Text)
	assert.Equal(t, "Accuracy", bar.Plot.Y.Label.Text)

	pca, ok := sink.Find("", DiagPCA)
	require.True(t, ok)
	assert.Equal(t, "PCA of Dataset", pca.Title)
	assert.Equal(t, "Principal Component 1 - Explains most variance", pca.Plot.X.Label.Text)

	assert.Contains(t, buf.String(), "Model Comparison")
	assert.Contains(t, buf.String(), "Best: ")
	assert.True(t, provider.Logger().ContainsMessage("PCA projection"))
}

func TestReporter_SummarizeErrors(t *testing.T) {
	r := NewReporter(&bytes.Buffer{}, viz.NewDispatcher(viz.NewRecordingSink()), WithColor(false))
	assert.Error(t, r.Summarize(context.Background(), NewComparisonTable(), nil, nil, nil))

	table := NewComparisonTable()
	table.Add(result(t, "Naive Bayes", registry.NaiveBayes, []float64{0, 1}, []float64{0, 1}))
	err := r.Summarize(context.Background(), table, mat.NewDense(3, 1, []float64{1, 2, 3}), []int{0, 1, 0}, nil)
	var re *errors.RenderError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, DiagPCA, re.Diagnostic)
}

func TestProjectPCA(t *testing.T) {
	X := mat.NewDense(5, 3, []float64{
		1, 2, 0,
		2, 4, 1,
		3, 6, 0,
		4, 8, 1,
		5, 10, 0,
	})
	projected, ratios, err := ProjectPCA(X)
	require.NoError(t, err)
	r, c := projected.Dims()
	assert.Equal(t, 5, r)
	assert.Equal(t, 2, c)
	require.Len(t, ratios, 2)
	assert.Greater(t, ratios[0], ratios[1])
}
