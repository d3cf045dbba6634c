package parallel

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParallelize_CoversEveryIndexOnce(t *testing.T) {
	for _, n := range []int{0, 1, 7, 1000} {
		hits := make([]int32, n)
		Parallelize(n, func(start, end int) {
			for i := start; i < end; i++ {
				atomic.AddInt32(&hits[i], 1)
			}
		})
		for i, h := range hits {
			assert.Equal(t, int32(1), h, "n=%d index=%d", n, i)
		}
	}
}

func TestParallelizeWithThreshold_SequentialBelowThreshold(t *testing.T) {
	calls := 0
	ParallelizeWithThreshold(10, 100, func(start, end int) {
		calls++
		assert.Equal(t, 0, start)
		assert.Equal(t, 10, end)
	})
	assert.Equal(t, 1, calls)

	ParallelizeWithThreshold(0, 100, func(start, end int) {
		t.Fatal("fn must not run for zero items")
	})
}

func TestForEach(t *testing.T) {
	out := make([]int, 500)
	ForEach(len(out), 10, func(i int) { out[i] = i * i })
	for i, v := range out {
		assert.Equal(t, i*i, v)
	}
}
