package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/YuminosukeSato/modelbench/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "modelbench.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "Abundance", cfg.Data.Target)
	assert.Equal(t, 0.2, cfg.Split.TestSize)
	assert.Equal(t, int64(42), cfg.Split.Seed)
	assert.Contains(t, cfg.Data.DropColumns, "Unnamed: 13")
}

func TestLoadConfig_OverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
data:
  path: survey.csv
  drop_columns: [Species ID]
split:
  scale_before_split: true
render:
  sink: record
  grid_step: 0.05
log:
  format: json
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "survey.csv", cfg.Data.Path)
	assert.Equal(t, []string{"Species ID"}, cfg.Data.DropColumns)
	assert.True(t, cfg.Split.ScaleBeforeSplit)
	assert.Equal(t, SinkRecord, cfg.Render.Sink)
	assert.Equal(t, 0.05, cfg.Render.GridStep)
	assert.Equal(t, "json", cfg.Log.Format)
	// untouched keys keep their defaults
	assert.Equal(t, "Abundance", cfg.Data.Target)
	assert.Equal(t, 0.2, cfg.Split.TestSize)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadConfig_EmptyFile(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, ""))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfig_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "absent.yaml")
		_, err := LoadConfig(path)
		var de *errors.DataLoadError
		require.True(t, errors.As(err, &de))
		assert.Equal(t, path, de.Path)
	})
	t.Run("unknown key", func(t *testing.T) {
		_, err := LoadConfig(writeConfig(t, "render:\n  colour: blue\n"))
		var de *errors.DataLoadError
		assert.True(t, errors.As(err, &de))
	})
	t.Run("invalid value", func(t *testing.T) {
		_, err := LoadConfig(writeConfig(t, "split:\n  test_size: 1.5\n"))
		var ve *errors.ValidationError
		require.True(t, errors.As(err, &ve))
		assert.Equal(t, "split.test_size", ve.ParamName)
	})
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		param  string
	}{
		{"empty path", func(c *Config) { c.Data.Path = "" }, "data.path"},
		{"empty target", func(c *Config) { c.Data.Target = "" }, "data.target"},
		{"zero test size", func(c *Config) { c.Split.TestSize = 0 }, "split.test_size"},
		{"negative grid step", func(c *Config) { c.Render.GridStep = -0.1 }, "render.grid_step"},
		{"zero width", func(c *Config) { c.Render.WidthIn = 0 }, "render.width_in/height_in"},
		{"negative depth", func(c *Config) { c.Render.MaxTreeDepth = -1 }, "render.max_tree_depth"},
		{"target dropped", func(c *Config) { c.Data.DropColumns = append(c.Data.DropColumns, "Abundance") }, "data.drop_columns"},
		{"unknown sink", func(c *Config) { c.Render.Sink = "s3" }, "render.sink"},
		{"file sink without dir", func(c *Config) { c.Render.OutputDir = "" }, "render.output_dir"},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			var ve *errors.ValidationError
			require.True(t, errors.As(cfg.Validate(), &ve))
			assert.Equal(t, tt.param, ve.ParamName)
		})
	}

	cfg := DefaultConfig()
	cfg.Render.Sink = SinkNone
	cfg.Render.OutputDir = ""
	assert.NoError(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Log.Level = "verbose"
	assert.Error(t, cfg.Validate())
}
