// Package modelbench compares a fixed set of classifiers on a species survey
// table and predicts the categorical "Abundance" column.
//
// A run loads the CSV, prepares it once, then trains, scores and plots each
// model in turn before printing a comparison table. Any failure aborts the
// whole run.
//
// # Quick Start
//
//	modelbench run --data Abundance.csv --out plots
//	modelbench models
//
// The same run from Go:
//
//	cfg := pipeline.DefaultConfig()
//	cfg.Data.Path = "Abundance.csv"
//
//	runner, err := pipeline.NewRunner(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	summary, err := runner.Run(context.Background())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(summary.Table)
//
// # Packages
//
//   - dataset: CSV loading into string columns
//   - preprocessing: imputation, label encoding, scaling and the train/test split
//   - registry: the compared models and their diagnostic capabilities
//   - linear, sklearn/...: the estimators
//   - evaluate: fit, predict and score one model
//   - metrics: accuracy, confusion matrix and classification report
//   - viz: figures and the capability dispatcher
//   - report: text report, comparison table, bar chart and PCA plot
//   - pipeline: configuration and the run loop
//   - core/model, core/parallel: estimator contracts and parallel helpers
//   - pkg/errors, pkg/log: error taxonomy and structured logging
//
// # Errors
//
// Failures are reported as *errors.DataLoadError, *errors.PreprocessingError,
// *errors.TrainingError, *errors.EvaluationError or *errors.RenderError and can
// be matched with errors.As.
package modelbench
