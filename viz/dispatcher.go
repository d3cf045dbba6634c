// Package viz renders per-model diagnostic figures with gonum/plot and hands
// them to a Sink.
//
// Which figures a model gets is decided by its registry capabilities only:
// every model gets a confusion-matrix heatmap, and each declared capability
// adds one figure.
package viz

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/YuminosukeSato/modelbench/core/model"
	"github.com/YuminosukeSato/modelbench/core/parallel"
	"github.com/YuminosukeSato/modelbench/evaluate"
	"github.com/YuminosukeSato/modelbench/pkg/errors"
	"github.com/YuminosukeSato/modelbench/pkg/log"
	"github.com/YuminosukeSato/modelbench/preprocessing"
	"github.com/YuminosukeSato/modelbench/registry"
	"github.com/YuminosukeSato/modelbench/sklearn/tree"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
)

// Diagnostic names.
const (
	DiagConfusionMatrix  = "confusion_matrix"
	DiagTreePlot         = "tree_plot"
	DiagRegressionLine   = "regression_line"
	DiagSigmoidCurve     = "sigmoid_curve"
	DiagDecisionBoundary = "decision_boundary"
)

const (
	// DefaultGridStep is the spacing of the decision-boundary grid.
	DefaultGridStep = 0.01
	// DefaultMaxGridPoints caps the decision-boundary grid size; larger grids
	// are coarsened.
	DefaultMaxGridPoints = 4_000_000
	// gridPadding extends the grid beyond the test points on every side.
	gridPadding = 1.0
)

// treeModel is satisfied by a fitted decision tree.
type treeModel interface {
	Root() *tree.Node
	Classes() []int
	GetParams() map[string]interface{}
}

// ensembleModel is satisfied by a forest of decision trees.
type ensembleModel interface {
	Estimators() []*tree.DecisionTreeClassifier
}

// logisticModel exposes the coefficients of a logistic link.
type logisticModel interface {
	Coef() [][]float64
	Intercept() []float64
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithGridStep sets the decision-boundary grid spacing.
func WithGridStep(step float64) Option {
	return func(d *Dispatcher) { d.gridStep = step }
}

// WithMaxGridPoints caps the number of decision-boundary grid points.
func WithMaxGridPoints(n int) Option {
	return func(d *Dispatcher) { d.maxGridPoints = n }
}

// WithMaxTreeDepth truncates tree plots below depth n; 0 draws everything.
func WithMaxTreeDepth(n int) Option {
	return func(d *Dispatcher) { d.maxTreeDepth = n }
}

// Dispatcher selects and renders the diagnostics of one model.
type Dispatcher struct {
	sink          Sink
	gridStep      float64
	maxGridPoints int
	maxTreeDepth  int
	logger        log.Logger
}

// NewDispatcher returns a Dispatcher writing to sink.
func NewDispatcher(sink Sink, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		sink:          sink,
		gridStep:      DefaultGridStep,
		maxGridPoints: DefaultMaxGridPoints,
		logger:        log.GetLoggerWithName("viz"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Sink returns the sink the dispatcher writes to.
func (d *Dispatcher) Sink() Sink { return d.sink }

type diagnostic struct {
	name  string
	title string
	cap   registry.Capability
	build func(d *Dispatcher, t *evaluate.TrainedModel, enc *preprocessing.EncodingMap) (*plot.Plot, error)
}

var capabilityDiagnostics = []diagnostic{
	{DiagTreePlot, "Tree Plot", registry.SupportsTreePlot, (*Dispatcher).treePlot},
	{DiagRegressionLine, "Regression Line", registry.SupportsRegressionLine, (*Dispatcher).regressionLine},
	{DiagSigmoidCurve, "Sigmoid Curve", registry.SupportsSigmoidCurve, (*Dispatcher).sigmoidCurve},
	{DiagDecisionBoundary, "Decision Boundary", registry.SupportsDecisionBoundary2D, (*Dispatcher).decisionBoundary},
}

// Render draws the confusion heatmap of result and one figure per
// capability of v. The first failure is returned as a RenderError.
func (d *Dispatcher) Render(ctx context.Context, v registry.Variant, result *evaluate.Result, trained *evaluate.TrainedModel, enc *preprocessing.EncodingMap) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if result == nil || trained == nil {
		return errors.NewRenderError(DiagConfusionMatrix, v.Name, "missing evaluation result", nil)
	}
	logger := d.logger.With(log.ModelNameKey, v.Name, log.CapabilitiesKey, v.Caps.String())

	heatmap := func() (*plot.Plot, error) {
		return ConfusionHeatmap(result.Confusion, classNamer(enc))
	}
	if err := d.emit(ctx, logger, v.Name, DiagConfusionMatrix, "Confusion Matrix", heatmap); err != nil {
		return err
	}

	for _, diag := range capabilityDiagnostics {
		if !v.Caps.Has(diag.cap) {
			continue
		}
		build := func() (*plot.Plot, error) { return diag.build(d, trained, enc) }
		if err := d.emit(ctx, logger, v.Name, diag.name, diag.title, build); err != nil {
			return err
		}
	}
	return nil
}

// Emit renders a run-level figure (no model) under the given diagnostic
// name and title.
func (d *Dispatcher) Emit(ctx context.Context, diagnostic, title string, build func() (*plot.Plot, error)) error {
	return d.emit(ctx, d.logger, "", diagnostic, title, build)
}

func (d *Dispatcher) emit(ctx context.Context, logger log.Logger, modelName, diagnostic, title string, build func() (*plot.Plot, error)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var p *plot.Plot
	err := errors.SafeExecute("viz."+diagnostic, func() error {
		var err error
		p, err = build()
		return err
	})
	if err != nil {
		return errors.NewRenderError(diagnostic, modelName, "build figure", err)
	}

	fullTitle := title
	if modelName != "" {
		fullTitle = modelName + " - " + title
	}
	p.Title.Text = fullTitle
	a := Artifact{
		Name:       ArtifactName(modelName, diagnostic),
		Title:      fullTitle,
		Diagnostic: diagnostic,
		Model:      modelName,
		Plot:       p,
	}
	err = errors.SafeExecute("viz.sink", func() error { return d.sink.Render(ctx, a) })
	if err != nil {
		return errors.NewRenderError(diagnostic, modelName, "write artifact "+a.Name, err)
	}
	logger.Debug("Diagnostic rendered",
		log.OperationKey, log.OperationRender,
		log.DiagnosticKey, diagnostic,
		log.ArtifactKey, a.Name,
	)
	return nil
}

func classNamer(enc *preprocessing.EncodingMap) func(int) string {
	if enc == nil {
		return nil
	}
	return enc.ClassLabel
}

func (d *Dispatcher) treePlot(t *evaluate.TrainedModel, enc *preprocessing.EncodingMap) (*plot.Plot, error) {
	var tm treeModel
	switch est := t.Estimator.(type) {
	case ensembleModel:
		trees := est.Estimators()
		if len(trees) == 0 {
			return nil, errors.NewValueError("treePlot", "ensemble has no fitted estimators")
		}
		tm = trees[0]
	case treeModel:
		tm = est
	default:
		return nil, errors.NewValueError("treePlot", "model does not expose a tree structure")
	}
	criterion, _ := tm.GetParams()["criterion"].(string)
	return TreePlot(tm.Root(), tm.Classes(), TreeOptions{
		FeatureNames: t.FeatureNames,
		ClassName:    classNamer(enc),
		Criterion:    criterion,
		MaxDepth:     d.maxTreeDepth,
	})
}

func (d *Dispatcher) regressionLine(t *evaluate.TrainedModel, _ *preprocessing.EncodingMap) (*plot.Plot, error) {
	x, err := firstColumn(t.XTest)
	if err != nil {
		return nil, err
	}
	return RegressionScatter(x, intsToFloats(t.YTest), intsToFloats(t.Predictions))
}

func (d *Dispatcher) sigmoidCurve(t *evaluate.TrainedModel, _ *preprocessing.EncodingMap) (*plot.Plot, error) {
	lm, ok := t.Estimator.(logisticModel)
	if !ok {
		return nil, errors.NewValueError("sigmoidCurve", "model does not expose Coef and Intercept")
	}
	coef, intercept := lm.Coef(), lm.Intercept()
	if len(coef) == 0 || len(coef[0]) == 0 || len(intercept) == 0 {
		return nil, errors.NewValueError("sigmoidCurve", "model has no coefficients")
	}
	x, err := firstColumn(t.XTest)
	if err != nil {
		return nil, err
	}
	return SigmoidCurve(x, intsToFloats(t.YTest), coef[0][0], intercept[0])
}

func (d *Dispatcher) decisionBoundary(t *evaluate.TrainedModel, enc *preprocessing.EncodingMap) (*plot.Plot, error) {
	n, cols := t.XTest.Dims()
	if cols < 2 {
		return nil, errors.NewDimensionError("decisionBoundary", 2, cols, 1)
	}
	if n == 0 {
		return nil, errors.NewValueError("decisionBoundary", "no test points")
	}
	if cols > 2 {
		return nil, errors.NewValueError("decisionBoundary", "model was trained on more than two features")
	}

	x0 := mat.Col(nil, 0, t.XTest)
	x1 := mat.Col(nil, 1, t.XTest)
	step := d.gridStep
	xs := Arange(floats.Min(x0)-gridPadding, floats.Max(x0)+gridPadding, step)
	ys := Arange(floats.Min(x1)-gridPadding, floats.Max(x1)+gridPadding, step)
	if d.maxGridPoints > 0 && len(xs)*len(ys) > d.maxGridPoints {
		scale := math.Sqrt(float64(len(xs)*len(ys)) / float64(d.maxGridPoints))
		step *= math.Ceil(scale)
		d.logger.Warn("Decision boundary grid coarsened",
			log.ModelNameKey, t.Variant.Name,
			log.GridPointsKey, len(xs)*len(ys),
			log.GridStepKey, step,
		)
		xs = Arange(floats.Min(x0)-gridPadding, floats.Max(x0)+gridPadding, step)
		ys = Arange(floats.Min(x1)-gridPadding, floats.Max(x1)+gridPadding, step)
	}

	classes := trainingClasses(t)
	grid, err := predictGrid(t.Estimator, xs, ys, classes)
	if err != nil {
		return nil, err
	}
	d.logger.Debug("Decision boundary evaluated",
		log.ModelNameKey, t.Variant.Name,
		log.GridPointsKey, len(grid.Cells),
	)
	return DecisionBoundary(grid, t.XTest, t.YTest, classes, classNamer(enc))
}

// predictGrid evaluates est on every grid point, one grid row per task.
func predictGrid(est model.Estimator, xs, ys []float64, classes []int) (*ClassGrid, error) {
	rank := make(map[int]int, len(classes))
	for i, c := range classes {
		rank[c] = i
	}
	grid := &ClassGrid{Xs: xs, Ys: ys, Cells: make([]float64, len(xs)*len(ys))}

	var (
		mu       sync.Mutex
		firstErr error
	)
	parallel.ForEach(len(ys), 8, func(r int) {
		err := errors.SafeExecute("predictGrid", func() error {
			row := mat.NewDense(len(xs), 2, nil)
			for c, x := range xs {
				row.Set(c, 0, x)
				row.Set(c, 1, ys[r])
			}
			out, err := est.Predict(row)
			if err != nil {
				return err
			}
			for c := range xs {
				idx, ok := rank[int(out.At(c, 0))]
				if !ok {
					grid.Cells[r*len(xs)+c] = math.NaN()
					continue
				}
				grid.Cells[r*len(xs)+c] = float64(idx)
			}
			return nil
		})
		if err != nil {
			mu.Lock()
			if firstErr == nil {
				firstErr = err
			}
			mu.Unlock()
		}
	})
	if firstErr != nil {
		return nil, firstErr
	}
	return grid, nil
}

func trainingClasses(t *evaluate.TrainedModel) []int {
	if c, ok := t.Estimator.(model.Classifier); ok {
		return c.Classes()
	}
	seen := make(map[int]struct{})
	var out []int
	for _, c := range t.YTrain {
		if _, ok := seen[c]; !ok {
			seen[c] = struct{}{}
			out = append(out, c)
		}
	}
	sort.Ints(out)
	return out
}

func firstColumn(X *mat.Dense) ([]float64, error) {
	if X == nil {
		return nil, errors.NewValueError("firstColumn", "no test matrix")
	}
	_, cols := X.Dims()
	if cols < 1 {
		return nil, errors.NewDimensionError("firstColumn", 1, cols, 1)
	}
	return mat.Col(nil, 0, X), nil
}

func intsToFloats(v []int) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}
