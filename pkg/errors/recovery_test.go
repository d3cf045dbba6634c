package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecover_WithPanic(t *testing.T) {
	draw := func() (err error) {
		defer Recover(&err, "heatmap")
		panic("zero width canvas")
	}

	err := draw()
	require.Error(t, err)

	var panicErr *PanicError
	require.True(t, stderrors.As(err, &panicErr))
	assert.Equal(t, "heatmap", panicErr.Operation)
	assert.Equal(t, "zero width canvas", panicErr.PanicValue)
	assert.NotEmpty(t, panicErr.StackTrace)
	assert.Equal(t, "panic in heatmap: zero width canvas", panicErr.Error())
	assert.Contains(t, panicErr.String(), "Stack trace:")
}

func TestRecover_WithoutPanic(t *testing.T) {
	draw := func() (err error) {
		defer Recover(&err, "heatmap")
		return nil
	}
	assert.NoError(t, draw())
}

func TestRecover_WithExistingError(t *testing.T) {
	original := fmt.Errorf("original error")

	draw := func() (err error) {
		defer Recover(&err, "tree")
		err = original
		panic("after error")
	}

	err := draw()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic in tree")
	assert.Contains(t, err.Error(), "original error")
	assert.True(t, stderrors.Is(err, original))
}

func TestSafeExecute(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		assert.NoError(t, SafeExecute("op", func() error { return nil }))
	})

	t.Run("function error passes through", func(t *testing.T) {
		want := fmt.Errorf("function error")
		got := SafeExecute("op", func() error { return want })
		assert.Same(t, want, got)
	})

	t.Run("panic", func(t *testing.T) {
		err := SafeExecute("op", func() error { panic(42) })
		var panicErr *PanicError
		require.True(t, stderrors.As(err, &panicErr))
		assert.Equal(t, 42, panicErr.PanicValue)
	})
}

func BenchmarkSafeExecute_NoPanic(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_ = SafeExecute("BenchmarkOp", func() error { return nil })
	}
}
