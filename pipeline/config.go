// Package pipeline wires loading, preprocessing, evaluation, rendering and
// reporting into one comparison run.
package pipeline

import (
	"bytes"
	"io"
	"os"

	"github.com/YuminosukeSato/modelbench/pkg/errors"
	"github.com/YuminosukeSato/modelbench/pkg/log"
	"github.com/YuminosukeSato/modelbench/preprocessing"
	"github.com/YuminosukeSato/modelbench/registry"
	"github.com/YuminosukeSato/modelbench/viz"
	"gopkg.in/yaml.v3"
)

// Sink kinds accepted in render.sink.
const (
	SinkFile   = "file"
	SinkRecord = "record"
	SinkNone   = "none"
)

// Config is the YAML run configuration.
type Config struct {
	Data   DataConfig   `yaml:"data"`
	Split  SplitConfig  `yaml:"split"`
	Models ModelsConfig `yaml:"models"`
	Render RenderConfig `yaml:"render"`
	Log    LogConfig    `yaml:"log"`
}

type DataConfig struct {
	Path        string   `yaml:"path"`
	Target      string   `yaml:"target"`
	DropColumns []string `yaml:"drop_columns"`
	// NAValues replaces the default missing-value markers when set.
	NAValues []string `yaml:"na_values"`
}

type SplitConfig struct {
	TestSize float64 `yaml:"test_size"`
	Seed     int64   `yaml:"seed"`
	// ScaleBeforeSplit fits the scaler on every row before splitting
	// instead of on the training partition only.
	ScaleBeforeSplit bool `yaml:"scale_before_split"`
}

type ModelsConfig struct {
	Seed int64 `yaml:"seed"`
}

type RenderConfig struct {
	OutputDir string  `yaml:"output_dir"`
	Sink      string  `yaml:"sink"`
	WidthIn   float64 `yaml:"width_in"`
	HeightIn  float64 `yaml:"height_in"`
	GridStep  float64 `yaml:"grid_step"`
	// MaxTreeDepth truncates tree plots; 0 draws the whole tree.
	MaxTreeDepth int `yaml:"max_tree_depth"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig returns the stock configuration.
func DefaultConfig() Config {
	return Config{
		Data: DataConfig{
			Path:        "Abundance.csv",
			Target:      preprocessing.DefaultTarget,
			DropColumns: append([]string(nil), preprocessing.DefaultDropColumns...),
		},
		Split: SplitConfig{
			TestSize: preprocessing.DefaultTestSize,
			Seed:     preprocessing.DefaultSeed,
		},
		Models: ModelsConfig{Seed: registry.DefaultSeed},
		Render: RenderConfig{
			OutputDir: "plots",
			Sink:      SinkFile,
			WidthIn:   10,
			HeightIn:  7,
			GridStep:  viz.DefaultGridStep,
		},
		Log: LogConfig{Level: "info", Format: "console"},
	}
}

// LoadConfig reads path over DefaultConfig. Keys missing from the file keep
// their defaults; unknown keys are rejected.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.NewDataLoadError(path, "cannot read config", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && err != io.EOF {
		return cfg, errors.NewDataLoadError(path, "invalid config", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c Config) Validate() error {
	switch {
	case c.Data.Path == "":
		return errors.NewValidationError("data.path", "must not be empty", c.Data.Path)
	case c.Data.Target == "":
		return errors.NewValidationError("data.target", "must not be empty", c.Data.Target)
	case c.Split.TestSize <= 0 || c.Split.TestSize >= 1:
		return errors.NewValidationError("split.test_size", "must be in (0, 1)", c.Split.TestSize)
	case c.Render.GridStep <= 0:
		return errors.NewValidationError("render.grid_step", "must be positive", c.Render.GridStep)
	case c.Render.WidthIn <= 0 || c.Render.HeightIn <= 0:
		return errors.NewValidationError("render.width_in/height_in", "must be positive", [2]float64{c.Render.WidthIn, c.Render.HeightIn})
	case c.Render.MaxTreeDepth < 0:
		return errors.NewValidationError("render.max_tree_depth", "must not be negative", c.Render.MaxTreeDepth)
	}
	for _, d := range c.Data.DropColumns {
		if d == c.Data.Target {
			return errors.NewValidationError("data.drop_columns", "must not contain the target", d)
		}
	}
	switch c.Render.Sink {
	case SinkFile:
		if c.Render.OutputDir == "" {
			return errors.NewValidationError("render.output_dir", "required for the file sink", c.Render.OutputDir)
		}
	case SinkRecord, SinkNone:
	default:
		return errors.NewValidationError("render.sink", "must be file, record or none", c.Render.Sink)
	}
	if _, err := log.ToLogLevel(c.Log.Level); err != nil {
		return err
	}
	if c.Log.Format != "console" && c.Log.Format != "json" {
		return errors.NewValidationError("log.format", "must be console or json", c.Log.Format)
	}
	return nil
}
