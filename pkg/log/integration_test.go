package log

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"

	mberrors "github.com/YuminosukeSato/modelbench/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTestLogger_Levels(t *testing.T) {
	logger, buffer := NewTestLogger(LevelInfo)

	logger.Debug("hidden")
	logger.Info("info message", OperationKey, OperationFit, SamplesKey, 80)
	logger.Warn("warning message")
	logger.Error("error message", fmt.Errorf("boom"), ModelNameKey, "KNN")

	assert.NotContains(t, buffer.String(), "hidden")
	assert.True(t, logger.ContainsMessage("info message"))
	assert.True(t, logger.ContainsField(OperationKey, OperationFit))
	assert.True(t, logger.ContainsField(SamplesKey, 80.0))
	assert.True(t, logger.ContainsField(ErrAttrKey, "boom"))

	assert.True(t, logger.Enabled(context.Background(), LevelWarn))
	assert.False(t, logger.Enabled(context.Background(), LevelDebug))
}

func TestTestLogger_With(t *testing.T) {
	logger, _ := NewTestLogger(LevelDebug)

	scoped := logger.With(ModelNameKey, "Decision Tree", RunIDKey, "run-1")
	scoped.Info("trained", AccuracyKey, 0.75)

	entries, err := logger.GetLogEntries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Decision Tree", entries[0][ModelNameKey])
	assert.Equal(t, "run-1", entries[0][RunIDKey])
	assert.Equal(t, 0.75, entries[0][AccuracyKey])
}

func TestTestLogger_Concurrent(t *testing.T) {
	logger, _ := NewTestLogger(LevelDebug)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				logger.Info("tick", "worker", id)
			}
		}(i)
	}
	wg.Wait()

	entries, err := logger.GetLogEntries()
	require.NoError(t, err)
	assert.Len(t, entries, 80)
}

func TestSetup_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Setup(Config{Level: "debug", Format: "json", Output: &buf}))
	defer SetProvider(newDefaultProvider())

	logger := GetLoggerWithName("preprocessing").With(RunIDKey, "abc")
	logger.Debug("imputed", ColumnKey, "Nativeness", SamplesKey, 12)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "imputed", entry["message"])
	assert.Equal(t, "debug", entry["level"])
	assert.Equal(t, "preprocessing", entry[ComponentKey])
	assert.Equal(t, "abc", entry[RunIDKey])
	assert.Equal(t, "Nativeness", entry[ColumnKey])
}

func TestSetup_ErrorCarriesStructureAndStack(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Setup(Config{Level: "info", Format: "json", Output: &buf}))
	defer SetProvider(newDefaultProvider())

	err := mberrors.NewTrainingError("Random Forest", "only one class in training partition", nil)
	GetLogger().Error("run aborted", err)

	out := buf.String()
	assert.Contains(t, out, `"error":"modelbench: train Random Forest: only one class in training partition"`)
	assert.Contains(t, out, `"type":"TrainingError"`)
}

func TestSetup_RoutesWarnings(t *testing.T) {
	provider, buffer := NewTestLoggerProvider(LevelDebug)
	SetProvider(provider)
	defer SetProvider(newDefaultProvider())

	mberrors.Warn(mberrors.NewConvergenceWarning("lbfgs", 100, ""))

	assert.Contains(t, buffer.String(), "lbfgs failed to converge after 100 iterations")
	assert.True(t, provider.Logger().ContainsField(ComponentKey, "warnings"))
}

func TestSetup_RejectsUnknownValues(t *testing.T) {
	assert.Error(t, Setup(Config{Level: "verbose"}))
	assert.Error(t, Setup(Config{Level: "info", Format: "xml"}))
}

func TestToLogLevel(t *testing.T) {
	for name, want := range map[string]Level{
		"debug": LevelDebug, "INFO": LevelInfo, "": LevelInfo, "warning": LevelWarn, "error": LevelError,
	} {
		got, err := ToLogLevel(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}
	assert.True(t, strings.HasPrefix(LevelWarn.String(), "WARN"))
}
