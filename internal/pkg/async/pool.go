// Package async runs named tasks on a bounded set of workers.
package async

import (
	"context"
	"fmt"
	"sync"
)

type Task[T any] struct {
	Name    string
	Execute func(ctx context.Context) (T, error)
}

type Result[T any] struct {
	Name string
	Data T
	Err  error
}

type Pool[T any] struct {
	workerCount int
}

func NewPool[T any](workerCount int) *Pool[T] {
	if workerCount < 1 {
		workerCount = 1
	}
	return &Pool[T]{workerCount: workerCount}
}

// Execute runs every task and returns each result keyed by task name. Tasks
// not started before ctx is done are missing from the map.
func (p *Pool[T]) Execute(ctx context.Context, tasks []Task[T]) map[string]Result[T] {
	results := make(map[string]Result[T], len(tasks))
	for result := range p.start(ctx, tasks) {
		results[result.Name] = result
	}
	return results
}

// Run is Execute with fail-fast semantics: the first task error cancels the
// context handed to the remaining tasks and is returned wrapped with the task
// name.
func (p *Pool[T]) Run(ctx context.Context, tasks []Task[T]) (map[string]T, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	data := make(map[string]T, len(tasks))
	var firstErr error
	for result := range p.start(runCtx, tasks) {
		if result.Err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("%s: %w", result.Name, result.Err)
				cancel()
			}
			continue
		}
		data[result.Name] = result.Data
	}

	if firstErr != nil {
		return nil, firstErr
	}
	if len(data) < len(tasks) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
	return data, nil
}

// start feeds tasks to the workers and returns a channel that is closed once
// every started task has reported.
func (p *Pool[T]) start(ctx context.Context, tasks []Task[T]) <-chan Result[T] {
	queue := make(chan Task[T])
	results := make(chan Result[T], len(tasks))

	workers := min(p.workerCount, len(tasks))
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range queue {
				data, err := task.Execute(ctx)
				results <- Result[T]{Name: task.Name, Data: data, Err: err}
			}
		}()
	}

	go func() {
		defer close(queue)
		for _, task := range tasks {
			select {
			case queue <- task:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	return results
}
