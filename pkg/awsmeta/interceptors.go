package awsmeta

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fivetwenty-io/awsmeta/internal/constants"
)

// Static errors for err113 compliance.
var (
	ErrCircuitBreakerOpen = errors.New("circuit breaker is open")
)

// CommandInterceptor is called before a command is executed. Returning an
// error aborts the execution.
type CommandInterceptor func(ctx context.Context, cmd *Command) error

// ResultInterceptor is called after a command completes, successfully or
// not. The execErr argument is the normalized execution error, nil on
// success.
type ResultInterceptor func(ctx context.Context, cmd *Command, result *Result, execErr error) error

// InterceptorChain manages a chain of interceptors.
type InterceptorChain struct {
	mu                  sync.RWMutex
	commandInterceptors []CommandInterceptor
	resultInterceptors  []ResultInterceptor
}

// NewInterceptorChain creates a new interceptor chain.
func NewInterceptorChain() *InterceptorChain {
	return &InterceptorChain{
		commandInterceptors: make([]CommandInterceptor, 0),
		resultInterceptors:  make([]ResultInterceptor, 0),
	}
}

// AddCommandInterceptor adds a pre-execution interceptor to the chain.
func (c *InterceptorChain) AddCommandInterceptor(interceptor CommandInterceptor) {
	c.mu.Lock()
	c.commandInterceptors = append(c.commandInterceptors, interceptor)
	c.mu.Unlock()
}

// AddResultInterceptor adds a post-execution interceptor to the chain.
func (c *InterceptorChain) AddResultInterceptor(interceptor ResultInterceptor) {
	c.mu.Lock()
	c.resultInterceptors = append(c.resultInterceptors, interceptor)
	c.mu.Unlock()
}

// ExecuteCommandInterceptors runs all pre-execution interceptors.
func (c *InterceptorChain) ExecuteCommandInterceptors(ctx context.Context, cmd *Command) error {
	c.mu.RLock()
	interceptors := c.commandInterceptors
	c.mu.RUnlock()

	for _, interceptor := range interceptors {
		err := interceptor(ctx, cmd)
		if err != nil {
			return fmt.Errorf("command interceptor failed: %w", err)
		}
	}

	return nil
}

// ExecuteResultInterceptors runs all post-execution interceptors.
func (c *InterceptorChain) ExecuteResultInterceptors(ctx context.Context, cmd *Command, result *Result, execErr error) error {
	c.mu.RLock()
	interceptors := c.resultInterceptors
	c.mu.RUnlock()

	for _, interceptor := range interceptors {
		err := interceptor(ctx, cmd, result, execErr)
		if err != nil {
			return fmt.Errorf("result interceptor failed: %w", err)
		}
	}

	return nil
}

// Common Interceptors

// LoggingInterceptor logs command dispatches.
func LoggingInterceptor(logger Logger) CommandInterceptor {
	return func(ctx context.Context, cmd *Command) error {
		logger.Debug("executing operation", map[string]interface{}{
			"operation": cmd.OperationName,
			"async":     cmd.Async,
		})

		return nil
	}
}

// LoggingResultInterceptor logs command outcomes.
func LoggingResultInterceptor(logger Logger) ResultInterceptor {
	return func(ctx context.Context, cmd *Command, result *Result, execErr error) error {
		fields := map[string]interface{}{
			"operation": cmd.OperationName,
		}

		if result != nil {
			fields["status_code"] = result.Metadata.StatusCode
			fields["request_id"] = result.Metadata.RequestID
		}

		if execErr != nil {
			fields["error"] = execErr.Error()
			logger.Error("operation failed", fields)
		} else {
			logger.Debug("operation completed", fields)
		}

		return nil
	}
}

// RateLimitInterceptor implements client-side rate limiting.
func RateLimitInterceptor(requestsPerSecond int) CommandInterceptor {
	// Simple token bucket implementation
	bucket := make(chan struct{}, requestsPerSecond)

	// Fill the bucket initially
	for i := 0; i < requestsPerSecond; i++ {
		bucket <- struct{}{}
	}

	// Refill the bucket periodically
	go func() {
		ticker := time.NewTicker(time.Second / time.Duration(requestsPerSecond))
		defer ticker.Stop()

		for range ticker.C {
			select {
			case bucket <- struct{}{}:
			default:
				// Bucket is full
			}
		}
	}()

	return func(ctx context.Context, cmd *Command) error {
		select {
		case <-bucket:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Metrics aggregates call statistics for one operation.
type Metrics struct {
	TotalRequests   int64
	TotalErrors     int64
	TotalThrottles  int64
	TotalLatency    time.Duration
	AverageLatency  time.Duration
	LastRequestTime time.Time
}

// MetricsCollector collects per-operation metrics.
type MetricsCollector struct {
	mu       sync.Mutex
	metrics  map[string]*Metrics
	onChange func(operation string, metrics *Metrics)
}

// NewMetricsCollector creates a new metrics collector.
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		metrics: make(map[string]*Metrics),
	}
}

// SetOnChange sets a callback for when metrics change.
func (m *MetricsCollector) SetOnChange(fn func(operation string, metrics *Metrics)) {
	m.mu.Lock()
	m.onChange = fn
	m.mu.Unlock()
}

// GetMetrics returns a snapshot of the metrics for an operation.
func (m *MetricsCollector) GetMetrics(operation string) *Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	if metrics, ok := m.metrics[operation]; ok {
		snapshot := *metrics

		return &snapshot
	}

	return nil
}

// MetricsCommandInterceptor records the dispatch time of each command.
func MetricsCommandInterceptor(collector *MetricsCollector) CommandInterceptor {
	return func(ctx context.Context, cmd *Command) error {
		cmd.startTime = time.Now()

		return nil
	}
}

// MetricsResultInterceptor records outcome metrics.
func MetricsResultInterceptor(collector *MetricsCollector) ResultInterceptor {
	return func(ctx context.Context, cmd *Command, result *Result, execErr error) error {
		collector.mu.Lock()
		defer collector.mu.Unlock()

		metrics, ok := collector.metrics[cmd.OperationName]
		if !ok {
			metrics = &Metrics{}
			collector.metrics[cmd.OperationName] = metrics
		}

		metrics.TotalRequests++
		metrics.LastRequestTime = time.Now()

		if !cmd.startTime.IsZero() {
			latency := time.Since(cmd.startTime)
			metrics.TotalLatency += latency
			metrics.AverageLatency = metrics.TotalLatency / time.Duration(metrics.TotalRequests)
		}

		if execErr != nil {
			metrics.TotalErrors++

			if IsThrottling(execErr) {
				metrics.TotalThrottles++
			}
		}

		if collector.onChange != nil {
			collector.onChange(cmd.OperationName, metrics)
		}

		return nil
	}
}

// CircuitBreakerConfig tunes the circuit breaker interceptor pair.
type CircuitBreakerConfig struct {
	Threshold        int           // Number of failures before opening
	Timeout          time.Duration // Time before trying again
	SuccessThreshold int           // Number of successes to close
}

// CircuitBreaker tracks circuit state.
type CircuitBreaker struct {
	mu          sync.Mutex
	config      *CircuitBreakerConfig
	failures    int
	successes   int
	state       string // "closed", constants.StatusOpen, constants.StatusHalfOpen
	lastFailure time.Time
}

// NewCircuitBreaker creates a new circuit breaker.
func NewCircuitBreaker(config *CircuitBreakerConfig) *CircuitBreaker {
	if config == nil {
		config = &CircuitBreakerConfig{
			Threshold:        constants.CircuitBreakerThreshold,
			Timeout:          constants.CircuitBreakerTimeout,
			SuccessThreshold: constants.CircuitBreakerSuccessThreshold,
		}
	}

	return &CircuitBreaker{
		config: config,
		state:  "closed",
	}
}

// State returns the current circuit state.
func (b *CircuitBreaker) State() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.state
}

// CircuitBreakerCommandInterceptor checks circuit state before execution.
func CircuitBreakerCommandInterceptor(breaker *CircuitBreaker) CommandInterceptor {
	return func(ctx context.Context, cmd *Command) error {
		breaker.mu.Lock()
		defer breaker.mu.Unlock()

		if breaker.state == constants.StatusOpen {
			// Check if timeout has passed
			if time.Since(breaker.lastFailure) > breaker.config.Timeout {
				breaker.state = constants.StatusHalfOpen
				breaker.successes = 0
			} else {
				return ErrCircuitBreakerOpen
			}
		}

		return nil
	}
}

// CircuitBreakerResultInterceptor updates circuit state based on outcomes.
// Validation errors do not trip the breaker; the remote service never saw
// those commands.
func CircuitBreakerResultInterceptor(breaker *CircuitBreaker) ResultInterceptor {
	return func(ctx context.Context, cmd *Command, result *Result, execErr error) error {
		breaker.mu.Lock()
		defer breaker.mu.Unlock()

		failed := execErr != nil && !IsValidation(execErr)

		if failed {
			breaker.failures++
			breaker.lastFailure = time.Now()

			if breaker.failures >= breaker.config.Threshold {
				breaker.state = constants.StatusOpen
			}

			if breaker.state == constants.StatusHalfOpen {
				breaker.state = constants.StatusOpen
			}
		} else {
			switch breaker.state {
			case constants.StatusHalfOpen:
				breaker.successes++
				if breaker.successes >= breaker.config.SuccessThreshold {
					breaker.state = "closed"
					breaker.failures = 0
				}
			case "closed":
				breaker.failures = 0
			}
		}

		return nil
	}
}
