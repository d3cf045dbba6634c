// Package evaluate trains one model variant on a Split and scores it.
package evaluate

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/YuminosukeSato/modelbench/core/model"
	"github.com/YuminosukeSato/modelbench/metrics"
	"github.com/YuminosukeSato/modelbench/pkg/errors"
	"github.com/YuminosukeSato/modelbench/pkg/log"
	"github.com/YuminosukeSato/modelbench/preprocessing"
	"github.com/YuminosukeSato/modelbench/registry"
	"gonum.org/v1/gonum/mat"
)

// TrainedModel is the fitted state of one variant together with the data it
// was fitted and scored on. It lives until the variant's diagnostics are
// rendered.
type TrainedModel struct {
	Variant   registry.Variant
	Estimator model.Estimator

	// XTrain and XTest hold the feature subset the variant selected.
	XTrain, XTest *mat.Dense
	YTrain, YTest []int
	FeatureNames  []string

	// Raw holds the continuous predictions of a rounded regressor, nil
	// otherwise.
	Raw *mat.VecDense
	// Predictions are the class codes that were scored.
	Predictions []int
}

// Result is the evaluation of one variant.
type Result struct {
	Model     string
	Kind      registry.Kind
	Accuracy  float64
	Confusion *metrics.ConfusionMatrix
	Report    *metrics.ClassificationReport
	Duration  time.Duration
}

// Run fits the variant on the training partition, predicts the test
// partition and scores the predictions. The split is not modified.
func Run(ctx context.Context, v registry.Variant, split *preprocessing.Split) (*TrainedModel, *Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	logger := log.GetLoggerWithName("evaluate").With(log.ModelNameKey, v.Name, log.ModelKindKey, v.Kind.String())
	start := time.Now()

	xTrain, xTest, err := split.Select(v.Features)
	if err != nil {
		return nil, nil, errors.NewTrainingError(v.Name, "select "+v.Features.String(), err)
	}
	names := split.FeatureNames()
	if v.Features == preprocessing.VisualizableSubspace {
		names = split.SubspaceNames()
	}
	yTrain, yTest := split.YTrain(), split.YTest()

	if err := checkClasses(v.Name, yTrain, yTest); err != nil {
		return nil, nil, err
	}

	est, err := v.New()
	if err != nil {
		return nil, nil, errors.NewTrainingError(v.Name, "build estimator", err)
	}
	yTrainCol := mat.NewDense(len(yTrain), 1, nil)
	for i, c := range yTrain {
		yTrainCol.Set(i, 0, float64(c))
	}
	nTrain, nFeatures := xTrain.Dims()
	logger.Debug("Fitting model",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, nTrain,
		log.FeaturesKey, nFeatures,
		log.HyperParamsKey, v.Params.Values,
	)
	if err := errors.SafeExecute(v.Name+".Fit", func() error { return est.Fit(xTrain, yTrainCol) }); err != nil {
		return nil, nil, errors.NewTrainingError(v.Name, "fit", err)
	}

	out, err := est.Predict(xTest)
	if err != nil {
		return nil, nil, errors.NewEvaluationError(v.Name, "predict", err)
	}
	rows, cols := out.Dims()
	if rows != len(yTest) || cols != 1 {
		return nil, nil, errors.NewEvaluationError(v.Name,
			fmt.Sprintf("prediction length %d does not match test labels %d", rows, len(yTest)), nil)
	}

	trained := &TrainedModel{
		Variant:      v,
		Estimator:    est,
		XTrain:       xTrain,
		XTest:        xTest,
		YTrain:       yTrain,
		YTest:        yTest,
		FeatureNames: names,
		Predictions:  make([]int, rows),
	}
	yTestVec := split.YTestVec()
	if v.Params.RoundPredictions {
		trained.Raw = mat.NewVecDense(rows, nil)
		for i := 0; i < rows; i++ {
			trained.Raw.SetVec(i, out.At(i, 0))
		}
		if err := errors.CheckNumericalStability(v.Name+".Predict", trained.Raw.RawVector().Data, 0); err != nil {
			return nil, nil, errors.NewTrainingError(v.Name, "diverged", err)
		}
		logContinuousFit(logger, yTestVec, trained.Raw)
	}
	for i := 0; i < rows; i++ {
		p := out.At(i, 0)
		if v.Params.RoundPredictions {
			// 範囲外の値もそのまま採点に回す
			p = math.RoundToEven(p)
		}
		trained.Predictions[i] = int(p)
	}

	predVec := mat.NewVecDense(rows, nil)
	for i, p := range trained.Predictions {
		predVec.SetVec(i, float64(p))
	}
	result, err := score(v, yTestVec, predVec)
	if err != nil {
		return nil, nil, err
	}
	result.Duration = time.Since(start)

	logger.Info("Model evaluated",
		log.OperationKey, log.OperationScore,
		log.AccuracyKey, result.Accuracy,
		log.TestSamplesKey, rows,
		log.DurationMsKey, result.Duration.Milliseconds(),
	)
	return trained, result, nil
}

// checkClasses rejects a training partition that cannot produce a
// classifier for the test partition.
func checkClasses(name string, yTrain, yTest []int) error {
	seen := make(map[int]struct{})
	for _, c := range yTrain {
		seen[c] = struct{}{}
	}
	if len(seen) < 2 {
		return errors.NewTrainingError(name,
			fmt.Sprintf("training partition has %d distinct class(es), need at least 2", len(seen)), nil)
	}
	var missing []int
	for _, c := range yTest {
		if _, ok := seen[c]; !ok {
			seen[c] = struct{}{}
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		sort.Ints(missing)
		return errors.NewTrainingError(name,
			fmt.Sprintf("test classes %v are absent from the training partition", missing), nil)
	}
	return nil
}

func score(v registry.Variant, yTrue, yPred *mat.VecDense) (*Result, error) {
	acc, err := metrics.Accuracy(yTrue, yPred)
	if err != nil {
		return nil, errors.NewEvaluationError(v.Name, "accuracy", err)
	}
	cm, err := metrics.NewConfusionMatrix(yTrue, yPred)
	if err != nil {
		return nil, errors.NewEvaluationError(v.Name, "confusion matrix", err)
	}
	report, err := metrics.NewClassificationReport(cm)
	if err != nil {
		return nil, errors.NewEvaluationError(v.Name, "classification report", err)
	}
	return &Result{
		Model:     v.Name,
		Kind:      v.Kind,
		Accuracy:  acc,
		Confusion: cm,
		Report:    report,
	}, nil
}

func logContinuousFit(logger log.Logger, yTrue, raw *mat.VecDense) {
	if !logger.Enabled(context.Background(), log.LevelDebug) {
		return
	}
	mse, err := metrics.MSE(yTrue, raw)
	if err != nil {
		return
	}
	fields := []any{log.MSEKey, mse}
	if r2, err := metrics.R2Score(yTrue, raw); err == nil {
		fields = append(fields, log.R2ScoreKey, r2)
	}
	if ev, err := metrics.ExplainedVarianceScore(yTrue, raw); err == nil {
		fields = append(fields, log.ExplainedVarianceScoreKey, ev)
	}
	logger.Debug("Continuous predictions", fields...)
}
