package pipeline

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/YuminosukeSato/modelbench/dataset"
	"github.com/YuminosukeSato/modelbench/evaluate"
	"github.com/YuminosukeSato/modelbench/pkg/errors"
	"github.com/YuminosukeSato/modelbench/pkg/log"
	"github.com/YuminosukeSato/modelbench/preprocessing"
	"github.com/YuminosukeSato/modelbench/registry"
	"github.com/YuminosukeSato/modelbench/report"
	"github.com/YuminosukeSato/modelbench/viz"
	"github.com/google/uuid"
	"gonum.org/v1/plot/vg"
)

// Summary is the outcome of a completed run.
type Summary struct {
	RunID    string
	Prepared *preprocessing.Prepared
	Results  []*evaluate.Result
	Table    *report.ComparisonTable
	Duration time.Duration
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithOutput sets where the text report goes (default os.Stdout).
func WithOutput(w io.Writer) RunnerOption {
	return func(r *Runner) { r.out = w }
}

// WithSink overrides the sink selected by render.sink.
func WithSink(s viz.Sink) RunnerOption {
	return func(r *Runner) { r.sink = s }
}

// WithVariants replaces the registry variants.
func WithVariants(vs []registry.Variant) RunnerOption {
	return func(r *Runner) { r.variants = vs }
}

// WithRunID fixes the run identifier instead of generating one.
func WithRunID(id string) RunnerOption {
	return func(r *Runner) { r.runID = id }
}

// WithReportOptions passes options to the Reporter.
func WithReportOptions(opts ...report.Option) RunnerOption {
	return func(r *Runner) { r.reportOpts = append(r.reportOpts, opts...) }
}

// Runner executes one comparison run. Variants are evaluated one after
// another in registry order; the first error aborts the run.
type Runner struct {
	cfg        Config
	variants   []registry.Variant
	out        io.Writer
	sink       viz.Sink
	runID      string
	reportOpts []report.Option

	dispatcher *viz.Dispatcher
	reporter   *report.Reporter
	logger     log.Logger
}

// NewRunner validates cfg and builds the sink, dispatcher and reporter.
func NewRunner(cfg Config, opts ...RunnerOption) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	r := &Runner{cfg: cfg, out: os.Stdout}
	for _, opt := range opts {
		opt(r)
	}
	if r.variants == nil {
		r.variants = registry.Seeded(cfg.Models.Seed)
	}
	if r.runID == "" {
		r.runID = uuid.NewString()
	}
	if r.sink == nil {
		sink, err := newSink(cfg.Render)
		if err != nil {
			return nil, err
		}
		r.sink = sink
	}
	r.dispatcher = viz.NewDispatcher(r.sink,
		viz.WithGridStep(cfg.Render.GridStep),
		viz.WithMaxTreeDepth(cfg.Render.MaxTreeDepth),
	)
	r.reporter = report.NewReporter(r.out, r.dispatcher, r.reportOpts...)
	r.logger = log.GetLoggerWithName("pipeline").With(log.RunIDKey, r.runID)
	return r, nil
}

func newSink(cfg RenderConfig) (viz.Sink, error) {
	switch cfg.Sink {
	case SinkRecord:
		return viz.NewRecordingSink(), nil
	case SinkNone:
		return viz.DiscardSink{}, nil
	default:
		sink, err := viz.NewFileSink(cfg.OutputDir)
		if err != nil {
			return nil, errors.NewRenderError("", "", "open output directory", err)
		}
		sink.Width = vg.Length(cfg.WidthIn) * vg.Inch
		sink.Height = vg.Length(cfg.HeightIn) * vg.Inch
		return sink, nil
	}
}

// RunID returns the identifier of this run.
func (r *Runner) RunID() string { return r.runID }

// Sink returns the sink figures are written to.
func (r *Runner) Sink() viz.Sink { return r.sink }

// Run loads data.path and runs the comparison on it.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	var opts []dataset.Option
	if r.cfg.Data.NAValues != nil {
		opts = append(opts, dataset.WithNAValues(r.cfg.Data.NAValues))
	}
	r.logger.Info("Loading data", log.PathKey, r.cfg.Data.Path)
	frame, err := dataset.ReadCSVFile(r.cfg.Data.Path, opts...)
	if err != nil {
		r.logger.Error("Run aborted", err, log.PhaseKey, log.PhasePreprocessing)
		return nil, err
	}
	return r.RunFrame(ctx, frame)
}

// RunFrame runs the comparison on an already loaded frame. On error no
// Summary is returned.
func (r *Runner) RunFrame(ctx context.Context, frame *dataset.Frame) (*Summary, error) {
	start := time.Now()
	summary, phase, err := r.run(ctx, frame)
	if err != nil {
		r.logger.Error("Run aborted", err, log.PhaseKey, phase)
		return nil, err
	}
	summary.Duration = time.Since(start)
	r.logger.Info("Run completed",
		log.DurationMsKey, summary.Duration.Milliseconds(),
		log.ModelsKey, summary.Table.Len(),
	)
	return summary, nil
}

func (r *Runner) run(ctx context.Context, frame *dataset.Frame) (*Summary, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, log.PhasePreprocessing, err
	}
	pre := preprocessing.NewPreprocessor(
		preprocessing.WithTarget(r.cfg.Data.Target),
		preprocessing.WithDropColumns(r.cfg.Data.DropColumns...),
		preprocessing.WithTestSize(r.cfg.Split.TestSize),
		preprocessing.WithSeed(r.cfg.Split.Seed),
		preprocessing.WithScaleBeforeSplit(r.cfg.Split.ScaleBeforeSplit),
	)
	prepared, err := pre.Prepare(frame)
	if err != nil {
		return nil, log.PhasePreprocessing, err
	}
	split := prepared.Split
	r.logger.Info("Data prepared",
		log.PhaseKey, log.PhasePreprocessing,
		log.SamplesKey, prepared.Rows,
		log.FeaturesKey, split.NumFeatures(),
		log.ClassesKey, len(prepared.Encodings.ClassNames()),
		log.TrainSamplesKey, len(split.YTrain()),
		log.TestSamplesKey, len(split.YTest()),
		log.RandomSeedKey, r.cfg.Split.Seed,
	)
	if err := r.reporter.RunHeader(r.runID, prepared); err != nil {
		return nil, log.PhaseReporting, err
	}

	results := make([]*evaluate.Result, 0, len(r.variants))
	for _, v := range r.variants {
		if err := ctx.Err(); err != nil {
			return nil, log.PhaseTraining, err
		}
		trained, res, err := evaluate.Run(ctx, v, split)
		if err != nil {
			return nil, modelPhase(err), err
		}
		// テキストを先に出してから図を描く
		if err := r.reporter.ModelReport(res); err != nil {
			return nil, log.PhaseReporting, err
		}
		if err := r.dispatcher.Render(ctx, v, res, trained, prepared.Encodings); err != nil {
			return nil, log.PhaseReporting, err
		}
		results = append(results, res)
	}

	// 全モデルが成功したときだけ比較表を作る
	table := report.NewComparisonTable()
	for _, res := range results {
		table.Add(res)
	}
	if err := r.reporter.Summarize(ctx, table, split.XTest(), split.YTest(), prepared.Encodings); err != nil {
		return nil, log.PhaseReporting, err
	}
	return &Summary{RunID: r.runID, Prepared: prepared, Results: results, Table: table}, "", nil
}

// modelPhase maps an evaluate.Run failure to the phase that produced it.
func modelPhase(err error) string {
	var ee *errors.EvaluationError
	if errors.As(err, &ee) {
		return log.PhaseEvaluation
	}
	return log.PhaseTraining
}
