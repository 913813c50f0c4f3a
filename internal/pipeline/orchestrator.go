package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/ecosystem-analysis-service/internal/domain"
)

// Task is one independent variable pipeline.
type Task struct {
	Name string
	Run  func(ctx context.Context) (VariableOutput, error)
}

// TaskResult is the outcome of a task. Status is only meaningful when Err
// is set: it is StatusFailed or StatusTimeout.
type TaskResult struct {
	Name   string
	Output VariableOutput
	Err    error
	Status domain.Status
}

// Orchestrator runs tasks concurrently under one deadline. A task that
// errors, panics or outlives the deadline yields a failed result; it never
// cancels its siblings.
type Orchestrator struct {
	timeout time.Duration
	limit   int
	logger  *slog.Logger
}

// NewOrchestrator creates an Orchestrator. limit <= 0 runs every task at
// once; timeout <= 0 disables the deadline.
func NewOrchestrator(timeout time.Duration, limit int, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{timeout: timeout, limit: limit, logger: logger}
}

// Run blocks until every task has returned or the deadline has passed.
// results[i] always belongs to tasks[i].
func (o *Orchestrator) Run(ctx context.Context, tasks []Task) []TaskResult {
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	results := make([]TaskResult, len(tasks))
	var g errgroup.Group
	limit := o.limit
	if limit <= 0 {
		limit = len(tasks)
	}
	g.SetLimit(max(limit, 1))

	for i, task := range tasks {
		g.Go(func() error {
			results[i] = o.runTask(ctx, task)
			return nil
		})
	}
	_ = g.Wait() // tasks report through results
	return results
}

// runTask runs one task in its own goroutine so the deadline can be
// honoured even when the task ignores its context. The result channel is
// buffered so an abandoned task can still finish and exit.
func (o *Orchestrator) runTask(ctx context.Context, task Task) TaskResult {
	done := make(chan TaskResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- TaskResult{Name: task.Name, Err: fmt.Errorf("variable %s panicked: %v", task.Name, r), Status: domain.StatusFailed}
			}
		}()
		out, err := task.Run(ctx)
		done <- TaskResult{Name: task.Name, Output: out, Err: err, Status: domain.StatusFailed}
	}()

	var res TaskResult
	select {
	case res = <-done:
	case <-ctx.Done():
		res = TaskResult{Name: task.Name, Err: ctx.Err(), Status: domain.StatusFailed}
	}

	if res.Err == nil {
		res.Status = ""
		return res
	}
	if errors.Is(res.Err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		res.Status = domain.StatusTimeout
		res.Err = fmt.Errorf("variable %s: %w", task.Name, domain.ErrTimeout)
		o.logger.Warn("variable pipeline timed out", "variable", task.Name)
		return res
	}
	o.logger.Error("variable pipeline failed", "variable", task.Name, "error", res.Err)
	return res
}
