package query

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect[T any](ch <-chan T) []T {
	var out []T
	for v := range ch {
		out = append(out, v)
	}
	return out
}

func TestDebounce(t *testing.T) {
	t.Run("burst emits only the last value", func(t *testing.T) {
		in := make(chan string)
		out := Debounce(context.Background(), in, 50*time.Millisecond)

		go func() {
			for _, v := range []string{"н", "на", "нат", "натр"} {
				in <- v
				time.Sleep(5 * time.Millisecond)
			}
			time.Sleep(150 * time.Millisecond)
			in <- "калий"
			close(in)
		}()

		assert.Equal(t, []string{"натр", "калий"}, collect(out))
	})

	t.Run("close flushes the pending value", func(t *testing.T) {
		in := make(chan int, 3)
		in <- 1
		in <- 2
		in <- 3
		close(in)

		out := Debounce(context.Background(), in, time.Hour)
		assert.Equal(t, []int{3}, collect(out))
	})

	t.Run("cancel closes the output", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		in := make(chan int)
		out := Debounce(ctx, in, time.Hour)

		in <- 1
		cancel()

		select {
		case _, ok := <-out:
			assert.False(t, ok)
		case <-time.After(time.Second):
			t.Fatal("output not closed after cancel")
		}
	})

	t.Run("non-positive delay uses the default", func(t *testing.T) {
		in := make(chan int, 1)
		in <- 7
		close(in)
		assert.Equal(t, []int{7}, collect(Debounce(context.Background(), in, 0)))
	})
}

func TestFilters_Apply(t *testing.T) {
	f := Filters{}

	f, err := f.Apply("status=closed")
	require.NoError(t, err)
	f, err = f.Apply(" bush_number = 14 ")
	require.NoError(t, err)
	assert.Equal(t, "bush_number=14 status=closed", f.String())
	assert.Equal(t, "14", f.Values().Get("bush_number"))

	cleared, err := f.Apply("status=")
	require.NoError(t, err)
	assert.Equal(t, "bush_number=14", cleared.String())
	assert.Equal(t, "closed", f["status"], "apply does not mutate the receiver")

	_, err = f.Apply("garbage")
	assert.Error(t, err)
	_, err = f.Apply("=x")
	assert.Error(t, err)

	reset, err := f.Apply("reset")
	require.NoError(t, err)
	assert.Empty(t, reset)
}
