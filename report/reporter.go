package report

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/YuminosukeSato/modelbench/evaluate"
	"github.com/YuminosukeSato/modelbench/pkg/errors"
	"github.com/YuminosukeSato/modelbench/pkg/log"
	"github.com/YuminosukeSato/modelbench/preprocessing"
	"github.com/YuminosukeSato/modelbench/sklearn/decomposition"
	"github.com/YuminosukeSato/modelbench/viz"
	"github.com/fatih/color"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
)

// Run-level diagnostic names.
const (
	DiagModelComparison = "model_comparison"
	DiagPCA             = "pca"
)

// Option configures a Reporter.
type Option func(*Reporter)

// WithColor enables or disables ANSI colors. By default colors follow
// color.NoColor, which is set when stdout is not a terminal.
func WithColor(enabled bool) Option {
	return func(r *Reporter) { r.colored = enabled }
}

// WithDigits sets the precision of the classification report.
func WithDigits(n int) Option {
	return func(r *Reporter) { r.digits = n }
}

// Reporter writes the text report and renders the run-level figures.
type Reporter struct {
	out        io.Writer
	dispatcher *viz.Dispatcher
	colored    bool
	digits     int

	header func(a ...any) string
	good   func(a ...any) string
	faint  func(a ...any) string

	logger log.Logger
}

// NewReporter returns a Reporter printing to out and rendering figures
// through d. d may be nil when no figures are wanted.
func NewReporter(out io.Writer, d *viz.Dispatcher, opts ...Option) *Reporter {
	r := &Reporter{
		out:        out,
		dispatcher: d,
		colored:    !color.NoColor,
		digits:     2,
		logger:     log.GetLoggerWithName("report"),
	}
	for _, opt := range opts {
		opt(r)
	}
	header := color.New(color.FgCyan, color.Bold)
	good := color.New(color.FgGreen)
	faint := color.New(color.Faint)
	for _, c := range []*color.Color{header, good, faint} {
		if r.colored {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	r.header = header.SprintFunc()
	r.good = good.SprintFunc()
	r.faint = faint.SprintFunc()
	return r
}

// RunHeader prints the run identity and the class legend.
func (r *Reporter) RunHeader(runID string, prepared *preprocessing.Prepared) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", r.header("modelbench run "+runID))
	if prepared != nil {
		split := prepared.Split
		fmt.Fprintf(&b, "%s\n", r.faint(fmt.Sprintf("rows=%d features=%d train=%d test=%d",
			prepared.Rows, split.NumFeatures(), len(split.YTrain()), len(split.YTest()))))
		if enc := prepared.Encodings; enc != nil {
			names := enc.ClassNames()
			parts := make([]string, len(names))
			for code, name := range names {
				parts[code] = fmt.Sprintf("%d=%s", code, name)
			}
			fmt.Fprintf(&b, "%s\n", r.faint(enc.Target()+": "+strings.Join(parts, ", ")))
		}
	}
	_, err := io.WriteString(r.out, b.String())
	return err
}

// ModelReport prints one model's accuracy, confusion matrix and
// classification report. Labels are printed as class codes.
func (r *Reporter) ModelReport(res *evaluate.Result) error {
	if res == nil || res.Confusion == nil || res.Report == nil {
		return errors.NewValueError("ModelReport", "incomplete result")
	}
	var b strings.Builder
	fmt.Fprintf(&b, "\n%s\n", r.header(res.Model))
	fmt.Fprintf(&b, "Accuracy: %s\n", r.good(fmt.Sprint(res.Accuracy)))
	fmt.Fprintf(&b, "Confusion Matrix:\n%s\n", res.Confusion.String())
	fmt.Fprintf(&b, "Classification Report:\n%s\n", res.Report.Format(nil, r.digits))
	_, err := io.WriteString(r.out, b.String())
	return err
}

// Summarize prints the comparison table and renders the accuracy bar chart
// and the PCA scatter of xTest colored by yTest.
func (r *Reporter) Summarize(ctx context.Context, table *ComparisonTable, xTest *mat.Dense, yTest []int, enc *preprocessing.EncodingMap) error {
	if table.Len() == 0 {
		return errors.NewValueError("Summarize", "comparison table is empty")
	}
	var b strings.Builder
	fmt.Fprintf(&b, "\n%s\n%s", r.header("Model Comparison"), table.String())
	if best, ok := table.Best(); ok {
		fmt.Fprintf(&b, "Best: %s (%s)\n", best.Model, r.good(fmt.Sprintf("%.4f", best.Accuracy)))
	}
	if _, err := io.WriteString(r.out, b.String()); err != nil {
		return err
	}
	if r.dispatcher == nil {
		return nil
	}

	if err := r.dispatcher.Emit(ctx, DiagModelComparison, "Model Comparison", func() (*plot.Plot, error) {
		return viz.AccuracyBarChart(table.Names(), table.Accuracies())
	}); err != nil {
		return err
	}

	var namer func(int) string
	if enc != nil {
		namer = enc.ClassLabel
	}
	return r.dispatcher.Emit(ctx, DiagPCA, "PCA of Dataset", func() (*plot.Plot, error) {
		projected, ratios, err := ProjectPCA(xTest)
		if err != nil {
			return nil, err
		}
		r.logger.Info("PCA projection",
			log.OperationKey, log.OperationTransform,
			log.SamplesKey, len(yTest),
			log.ExplainedVarianceKey, ratios,
		)
		p, err := viz.ProjectionScatter(projected, yTest, namer)
		if err != nil {
			return nil, err
		}
		p.X.Label.Text = "Principal Component 1 - Explains most variance"
		p.Y.Label.Text = "Principal Component 2 - Explains second most variance"
		return p, nil
	})
}

// ProjectPCA projects X onto its first two principal components and
// returns the explained variance ratios.
func ProjectPCA(X *mat.Dense) (mat.Matrix, []float64, error) {
	if X == nil {
		return nil, nil, errors.NewValueError("ProjectPCA", "no feature matrix")
	}
	n, d := X.Dims()
	if d < 2 || n < 2 {
		return nil, nil, errors.NewDimensionError("ProjectPCA", 2, min(n, d), 1)
	}
	pca := decomposition.NewPCA(2)
	projected, err := pca.FitTransform(X)
	if err != nil {
		return nil, nil, err
	}
	return projected, pca.ExplainedVarianceRatio(), nil
}
