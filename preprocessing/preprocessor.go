package preprocessing

import (
	"context"
	"strconv"

	"github.com/YuminosukeSato/modelbench/dataset"
	"github.com/YuminosukeSato/modelbench/pkg/errors"
	"github.com/YuminosukeSato/modelbench/pkg/log"
	"gonum.org/v1/gonum/mat"
)

// DefaultDropColumns are the identifier and free-text columns removed before
// modelling.
var DefaultDropColumns = []string{"Species ID", "Scientific Name", "Common Names", "Unnamed: 13"}

const (
	// DefaultTarget is the categorical column to predict.
	DefaultTarget = "Abundance"
	// DefaultTestSize is the fraction of rows held out for testing.
	DefaultTestSize = 0.2
	// DefaultSeed seeds the train/test permutation.
	DefaultSeed int64 = 42
)

// Option configures a Preprocessor.
type Option func(*Preprocessor)

// WithTarget sets the target column.
func WithTarget(name string) Option {
	return func(p *Preprocessor) { p.target = name }
}

// WithDropColumns replaces the columns removed in the first step.
func WithDropColumns(names ...string) Option {
	return func(p *Preprocessor) { p.dropColumns = append([]string(nil), names...) }
}

// WithTestSize sets the held-out fraction.
func WithTestSize(size float64) Option {
	return func(p *Preprocessor) { p.testSize = size }
}

// WithSeed sets the split seed.
func WithSeed(seed int64) Option {
	return func(p *Preprocessor) { p.seed = seed }
}

// WithScaleBeforeSplit fits the scaler on all rows before splitting instead
// of on the training partition only.
func WithScaleBeforeSplit(before bool) Option {
	return func(p *Preprocessor) { p.scaleBeforeSplit = before }
}

// Preprocessor turns a raw frame into a standardized, encoded Split.
type Preprocessor struct {
	target           string
	dropColumns      []string
	testSize         float64
	seed             int64
	scaleBeforeSplit bool

	logger log.Logger
}

// NewPreprocessor creates a Preprocessor with the default target, drop
// columns, 0.2 test size and seed 42.
func NewPreprocessor(opts ...Option) *Preprocessor {
	p := &Preprocessor{
		target:      DefaultTarget,
		dropColumns: append([]string(nil), DefaultDropColumns...),
		testSize:    DefaultTestSize,
		seed:        DefaultSeed,
		logger:      log.GetLoggerWithName("preprocessing"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Prepared is the output of Prepare.
type Prepared struct {
	Split        *Split
	Encodings    *EncodingMap
	FeatureNames []string
	// Rows is the number of rows left after dropping rows without a target.
	Rows   int
	Scaler *StandardScaler
	// ScaledBeforeSplit records which scaling order produced Split.
	ScaledBeforeSplit bool
}

// Prepare runs drop, filter, impute, encode, split and standardize.
func (p *Preprocessor) Prepare(frame *dataset.Frame) (*Prepared, error) {
	if _, ok := frame.Column(p.target); !ok {
		return nil, errors.NewDataLoadError(frame.Source, "target column "+strconv.Quote(p.target)+" not found", nil)
	}

	// 1. 識別子・自由記述列の削除
	dropped, present := frame.Drop(p.dropColumns...)
	if len(present) < len(p.dropColumns) {
		seen := make(map[string]bool, len(present))
		for _, n := range present {
			seen[n] = true
		}
		for _, n := range p.dropColumns {
			if !seen[n] && n != p.target {
				p.logger.Warn("Drop column not present, skipping", log.ColumnKey, n)
			}
		}
	}
	if _, ok := dropped.Column(p.target); !ok {
		return nil, errors.NewPreprocessingError("drop", p.target, "target column is listed in drop columns")
	}

	// 2. 目的変数が欠損した行の削除
	target, _ := dropped.Column(p.target)
	cleaned := dropped.Filter(func(i int) bool { return !target.Missing[i] })
	n := cleaned.NumRows()
	if n == 0 {
		return nil, errors.NewPreprocessingError("filter", p.target, "no rows left after dropping missing targets")
	}

	// 3. 最頻値補完
	numeric := make(map[string]bool)
	for _, c := range cleaned.Columns() {
		if c.Name == p.target {
			continue
		}
		numeric[c.Name] = c.IsNumeric()
		if !numeric[c.Name] && c.HasNumericCells() {
			errors.Warn(errors.NewDataConversionWarning(c.Name, "mixed", "category",
				"column mixes numeric and text cells"))
		}
	}
	imputer := NewModeImputer()
	if err := imputer.Fit(cleaned.Columns(), numeric); err != nil {
		return nil, err
	}
	filled, err := imputer.Transform(cleaned.Columns())
	if err != nil {
		return nil, errors.NewPreprocessingError("impute", "", err.Error())
	}

	// 4-5. エンコードと X / y の分離
	encodings := newEncodingMap(p.target)
	var featureNames []string
	var featureCols [][]float64
	var labels []int
	for _, c := range filled {
		if c.Name == p.target {
			enc := NewLabelEncoder()
			codes, err := enc.FitTransform(c.Values)
			if err != nil {
				return nil, errors.NewPreprocessingError("encode", c.Name, err.Error())
			}
			encodings.add(c.Name, enc)
			labels = codes
			continue
		}

		values := make([]float64, n)
		if numeric[c.Name] {
			for i, v := range c.Values {
				f, err := strconv.ParseFloat(v, 64)
				if err != nil {
					return nil, errors.NewPreprocessingError("encode", c.Name, "cannot parse "+strconv.Quote(v))
				}
				values[i] = f
			}
		} else {
			enc := NewLabelEncoder()
			codes, err := enc.FitTransform(c.Values)
			if err != nil {
				return nil, errors.NewPreprocessingError("encode", c.Name, err.Error())
			}
			encodings.add(c.Name, enc)
			for i, code := range codes {
				values[i] = float64(code)
			}
		}
		featureNames = append(featureNames, c.Name)
		featureCols = append(featureCols, values)
	}

	if classes := len(encodings.ClassNames()); classes < 2 {
		return nil, errors.NewPreprocessingError("encode", p.target,
			"target has "+strconv.Itoa(classes)+" distinct class, at least 2 are required")
	}
	if len(featureNames) == 0 {
		return nil, errors.NewPreprocessingError("encode", "", "no feature columns left")
	}

	X := mat.NewDense(n, len(featureNames), nil)
	for j, col := range featureCols {
		X.SetCol(j, col)
	}

	// 6-7. 分割と標準化
	trainIdx, testIdx, err := TrainTestSplitIndices(n, p.testSize, p.seed)
	if err != nil {
		return nil, err
	}

	scaler := NewStandardScalerDefault()
	var split *Split
	if p.scaleBeforeSplit {
		scaled, err := scaler.FitTransform(X)
		if err != nil {
			return nil, errors.NewPreprocessingError("standardize", "", err.Error())
		}
		split, err = NewSplit(scaled, labels, featureNames, trainIdx, testIdx)
		if err != nil {
			return nil, errors.NewPreprocessingError("split", "", err.Error())
		}
	} else {
		raw, err := NewSplit(X, labels, featureNames, trainIdx, testIdx)
		if err != nil {
			return nil, errors.NewPreprocessingError("split", "", err.Error())
		}
		xTrain, err := scaler.FitTransform(raw.xTrain)
		if err != nil {
			return nil, errors.NewPreprocessingError("standardize", "", err.Error())
		}
		xTest, err := scaler.Transform(raw.xTest)
		if err != nil {
			return nil, errors.NewPreprocessingError("standardize", "", err.Error())
		}
		raw.xTrain = mat.DenseCopyOf(xTrain)
		raw.xTest = mat.DenseCopyOf(xTest)
		split = raw
	}

	if p.logger.Enabled(context.Background(), log.LevelDebug) {
		means, stds := columnMoments(split.xTrain)
		p.logger.Debug("Training partition moments", "means", means, "stds", stds)
	}
	p.logger.Info("Dataset prepared",
		log.SamplesKey, n,
		log.FeaturesKey, len(featureNames),
		log.ClassesKey, len(encodings.ClassNames()),
		log.TrainSamplesKey, len(trainIdx),
		log.TestSamplesKey, len(testIdx),
		log.RandomSeedKey, p.seed,
	)

	return &Prepared{
		Split:             split,
		Encodings:         encodings,
		FeatureNames:      featureNames,
		Rows:              n,
		Scaler:            scaler,
		ScaledBeforeSplit: p.scaleBeforeSplit,
	}, nil
}
