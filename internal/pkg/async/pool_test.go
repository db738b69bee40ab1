package async

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolExecute(t *testing.T) {
	pool := NewPool[int](3)

	tasks := make([]Task[int], 10)
	for i := range tasks {
		n := i
		tasks[i] = Task[int]{
			Name:    fmt.Sprintf("task-%d", n),
			Execute: func(ctx context.Context) (int, error) { return n * n, nil },
		}
	}

	results := pool.Execute(context.Background(), tasks)
	require.Len(t, results, 10)
	for i := range tasks {
		r := results[fmt.Sprintf("task-%d", i)]
		assert.NoError(t, r.Err)
		assert.Equal(t, i*i, r.Data)
	}
}

func TestPoolBoundsConcurrency(t *testing.T) {
	pool := NewPool[struct{}](2)

	var running, peak atomic.Int32
	tasks := make([]Task[struct{}], 8)
	for i := range tasks {
		tasks[i] = Task[struct{}]{
			Name: fmt.Sprintf("t%d", i),
			Execute: func(ctx context.Context) (struct{}, error) {
				now := running.Add(1)
				for {
					old := peak.Load()
					if now <= old || peak.CompareAndSwap(old, now) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				running.Add(-1)
				return struct{}{}, nil
			},
		}
	}

	_, err := pool.Run(context.Background(), tasks)
	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestPoolRunFailsFast(t *testing.T) {
	pool := NewPool[string](1)
	boom := errors.New("boom")

	var ran atomic.Int32
	tasks := []Task[string]{
		{Name: "first", Execute: func(ctx context.Context) (string, error) {
			ran.Add(1)
			return "", boom
		}},
		{Name: "second", Execute: func(ctx context.Context) (string, error) {
			ran.Add(1)
			return "ok", ctx.Err()
		}},
	}

	data, err := pool.Run(context.Background(), tasks)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "first")
	assert.Nil(t, data)
}

func TestPoolRunEmpty(t *testing.T) {
	data, err := NewPool[int](4).Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestPoolRunCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tasks := []Task[int]{
		{Name: "a", Execute: func(ctx context.Context) (int, error) { return 1, ctx.Err() }},
	}

	_, err := NewPool[int](1).Run(ctx, tasks)
	assert.ErrorIs(t, err, context.Canceled)
}
