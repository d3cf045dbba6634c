package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/YuminosukeSato/modelbench/pkg/errors"
	"github.com/YuminosukeSato/modelbench/pkg/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestModelsCommand(t *testing.T) {
	out, err := execute(t, "models")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 8)
	assert.Contains(t, lines[0], "MODEL")
	assert.Contains(t, lines[1], "Linear Regression")
	assert.Contains(t, lines[1], "confusion_matrix,regression_line")
	assert.Contains(t, lines[3], "Support Vector Machine")
	assert.Contains(t, lines[3], "subspace2d")
	assert.Contains(t, lines[7], "K-Nearest Neighbors")
}

func TestRunCommand_ConfigAndOverrides(t *testing.T) {
	defer log.Setup(log.Config{Level: "info"})

	dir := t.TempDir()
	config := filepath.Join(dir, "modelbench.yaml")
	require.NoError(t, os.WriteFile(config, []byte("data:\n  path: nowhere.csv\nrender:\n  sink: none\n"), 0o644))

	_, err := execute(t, "run", "--config", config, "--data", filepath.Join(dir, "missing.csv"), "--log-level", "error")
	var de *errors.DataLoadError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, filepath.Join(dir, "missing.csv"), de.Path)
}

func TestRunCommand_InvalidOverride(t *testing.T) {
	_, err := execute(t, "run", "--sink", "printer")
	var ve *errors.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "render.sink", ve.ParamName)
}
