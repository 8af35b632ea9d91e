package awsmeta

import (
	"context"
	"sync"
	"time"

	"github.com/fivetwenty-io/awsmeta/internal/constants"
)

// BatchOperation is one command to run as part of a batch.
type BatchOperation struct {
	ID        string
	Operation string
	Params    map[string]interface{}
	Callback  func(result *BatchResult)
}

// BatchResult represents the outcome of one batch operation.
type BatchResult struct {
	ID       string
	Success  bool
	Result   *Result
	Error    error
	Duration time.Duration
}

// BatchExecutor fans a set of independent commands out over a bounded number
// of concurrent executions. Results come back in input order.
type BatchExecutor struct {
	exec        Executor
	model       *ServiceModel
	concurrency int
	timeout     time.Duration
}

// NewBatchExecutor creates a new batch executor.
func NewBatchExecutor(exec Executor, model *ServiceModel, concurrency int) *BatchExecutor {
	if concurrency <= 0 {
		concurrency = constants.DefaultBatchConcurrency
	}

	return &BatchExecutor{
		exec:        exec,
		model:       model,
		concurrency: concurrency,
		timeout:     constants.DefaultHTTPTimeout,
	}
}

// SetTimeout sets the per-operation timeout.
func (b *BatchExecutor) SetTimeout(timeout time.Duration) {
	b.timeout = timeout
}

// ExecuteBatch runs all operations, at most concurrency at a time. A failed
// operation records its error in its slot; it does not stop the others.
func (b *BatchExecutor) ExecuteBatch(ctx context.Context, operations []BatchOperation) []BatchResult {
	results := make([]BatchResult, len(operations))

	var waitGroup sync.WaitGroup

	semaphore := make(chan struct{}, b.concurrency)

	for index, operation := range operations {
		waitGroup.Add(1)

		go func(index int, operation BatchOperation) {
			defer waitGroup.Done()

			// Acquire semaphore
			semaphore <- struct{}{}

			defer func() { <-semaphore }()

			opCtx, cancel := context.WithTimeout(ctx, b.timeout)
			defer cancel()

			start := time.Now()
			result := b.executeOperation(opCtx, operation)
			result.Duration = time.Since(start)
			results[index] = *result

			if operation.Callback != nil {
				operation.Callback(result)
			}
		}(index, operation)
	}

	waitGroup.Wait()

	return results
}

func (b *BatchExecutor) executeOperation(ctx context.Context, operation BatchOperation) *BatchResult {
	result := &BatchResult{ID: operation.ID}

	cmd, err := NewCommand(b.model, operation.Operation, operation.Params)
	if err != nil {
		result.Error = err

		return result
	}

	output, err := b.exec.Execute(ctx, cmd)
	result.Success = err == nil
	result.Result = output
	result.Error = err

	return result
}
