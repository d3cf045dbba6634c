// Standard attribute keys for comparison-run logging.
//
// The keys follow a hierarchical naming convention ("model.name",
// "data.samples") so runs can be filtered and aggregated by field.

package log

// Model and Operation Context
const (
	// ModelNameKey identifies the model variant by display name.
	// Examples: "Linear Regression", "Random Forest"
	ModelNameKey = "model.name"

	// ModelKindKey identifies the registry kind of a variant.
	ModelKindKey = "model.kind"

	// CapabilitiesKey lists the diagnostic capabilities of a variant.
	CapabilitiesKey = "model.capabilities"

	// OperationKey specifies the operation being performed.
	// Standard values: "fit", "predict", "transform", "score", "render"
	OperationKey = "ml.operation"

	// ComponentKey identifies which component is performing the operation.
	// Examples: "preprocessing", "evaluate", "viz", "report"
	ComponentKey = "ml.component"

	// PhaseKey indicates the phase of the run.
	PhaseKey = "ml.phase"

	// RunIDKey identifies one comparison run.
	RunIDKey = "run.id"

	// ModelsKey is the number of variants a run compared.
	ModelsKey = "run.models"
)

// Data Shape and Characteristics
const (
	// SamplesKey indicates the number of samples (rows).
	SamplesKey = "data.samples"

	// FeaturesKey indicates the number of features (columns).
	FeaturesKey = "data.features"

	// ClassesKey indicates the number of distinct target classes.
	ClassesKey = "data.classes"

	// ColumnKey names the column an event refers to.
	ColumnKey = "data.column"

	// PathKey is the input or output file path.
	PathKey = "data.path"

	// TrainSamplesKey and TestSamplesKey describe the split sizes.
	TrainSamplesKey = "split.train_samples"
	TestSamplesKey  = "split.test_samples"
)

// Performance Metrics
const (
	// DurationMsKey records the execution time of an operation in milliseconds.
	DurationMsKey = "perf.duration_ms"

	// AccuracyKey records model accuracy for evaluation operations.
	AccuracyKey = "metrics.accuracy"

	// MSEKey records the mean squared error of continuous predictions.
	MSEKey = "metrics.mse"

	// R2ScoreKey records R² coefficient of determination for regression.
	R2ScoreKey = "metrics.r2_score"

	// ExplainedVarianceKey records PCA explained variance ratios.
	ExplainedVarianceKey = "metrics.explained_variance_ratio"

	// ExplainedVarianceScoreKey records the explained variance score of
	// continuous predictions.
	ExplainedVarianceScoreKey = "metrics.explained_variance_score"

	// IterationKey records the iteration count of iterative solvers.
	IterationKey = "training.iteration"
)

// Rendering
const (
	// DiagnosticKey names the rendered diagnostic ("confusion_matrix", ...).
	DiagnosticKey = "render.diagnostic"

	// ArtifactKey is the artifact name or file written by a sink.
	ArtifactKey = "render.artifact"

	// GridPointsKey is the number of points evaluated for a boundary plot.
	GridPointsKey = "render.grid_points"

	// GridStepKey is the spacing of a boundary grid.
	GridStepKey = "render.grid_step"
)

// Error and Warning Context
const (
	// ErrorTypeKey categorizes the type of error encountered.
	ErrorTypeKey = "error.type"

	// StacktraceKey contains stack trace information for debugging.
	// Populated automatically when an error is logged.
	StacktraceKey = "error.stacktrace"
)

// Configuration
const (
	// HyperParamsKey contains model hyperparameters as a structured object.
	HyperParamsKey = "model.hyperparams"

	// RandomSeedKey records the random seed for reproducibility.
	RandomSeedKey = "config.random_seed"

	// ConfigPathKey records which configuration file was loaded.
	ConfigPathKey = "config.path"
)

// Standard attribute values.
const (
	OperationFit       = "fit"
	OperationPredict   = "predict"
	OperationTransform = "transform"
	OperationScore     = "score"
	OperationRender    = "render"

	PhasePreprocessing = "preprocessing"
	PhaseTraining      = "training"
	PhaseEvaluation    = "evaluation"
	PhaseReporting     = "reporting"
)
