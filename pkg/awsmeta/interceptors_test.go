package awsmeta_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fivetwenty-io/awsmeta/pkg/awsmeta"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInterceptorChain_CommandOrder(t *testing.T) {
	t.Parallel()

	chain := awsmeta.NewInterceptorChain()

	var order []string

	chain.AddCommandInterceptor(func(ctx context.Context, cmd *awsmeta.Command) error {
		order = append(order, "first")

		return nil
	})
	chain.AddCommandInterceptor(func(ctx context.Context, cmd *awsmeta.Command) error {
		order = append(order, "second")

		return nil
	})

	cmd, err := awsmeta.NewCommand(testModel(), "DescribeTable", nil)
	require.NoError(t, err)

	err = chain.ExecuteCommandInterceptors(context.Background(), cmd)
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestInterceptorChain_CommandFailureAborts(t *testing.T) {
	t.Parallel()

	chain := awsmeta.NewInterceptorChain()
	boom := errors.New("rejected")

	chain.AddCommandInterceptor(func(ctx context.Context, cmd *awsmeta.Command) error {
		return boom
	})

	reached := false

	chain.AddCommandInterceptor(func(ctx context.Context, cmd *awsmeta.Command) error {
		reached = true

		return nil
	})

	cmd, err := awsmeta.NewCommand(testModel(), "DescribeTable", nil)
	require.NoError(t, err)

	err = chain.ExecuteCommandInterceptors(context.Background(), cmd)
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "command interceptor failed")
	assert.False(t, reached)
}

func TestInterceptorChain_ResultSeesOutcome(t *testing.T) {
	t.Parallel()

	chain := awsmeta.NewInterceptorChain()

	var (
		seenResult *awsmeta.Result
		seenErr    error
	)

	chain.AddResultInterceptor(func(ctx context.Context, cmd *awsmeta.Command, result *awsmeta.Result, execErr error) error {
		seenResult = result
		seenErr = execErr

		return nil
	})

	cmd, err := awsmeta.NewCommand(testModel(), "DescribeTable", nil)
	require.NoError(t, err)

	execErr := &awsmeta.Error{Kind: awsmeta.ErrorKindService, ServiceCode: "InternalError"}

	err = chain.ExecuteResultInterceptors(context.Background(), cmd, nil, execErr)
	require.NoError(t, err)
	assert.Nil(t, seenResult)
	assert.Equal(t, execErr, seenErr)
}

func TestMetricsInterceptors(t *testing.T) {
	t.Parallel()

	collector := awsmeta.NewMetricsCollector()
	before := awsmeta.MetricsCommandInterceptor(collector)
	after := awsmeta.MetricsResultInterceptor(collector)

	ctx := context.Background()

	cmd, err := awsmeta.NewCommand(testModel(), "DescribeTable", nil)
	require.NoError(t, err)

	require.NoError(t, before(ctx, cmd))
	require.NoError(t, after(ctx, cmd, &awsmeta.Result{}, nil))

	throttled := &awsmeta.Error{Kind: awsmeta.ErrorKindService, ServiceCode: "ThrottlingException", StatusCode: 429}
	require.NoError(t, before(ctx, cmd))
	require.NoError(t, after(ctx, cmd, nil, throttled))

	metrics := collector.GetMetrics("DescribeTable")
	require.NotNil(t, metrics)
	assert.Equal(t, int64(2), metrics.TotalRequests)
	assert.Equal(t, int64(1), metrics.TotalErrors)
	assert.Equal(t, int64(1), metrics.TotalThrottles)
	assert.False(t, metrics.LastRequestTime.IsZero())

	assert.Nil(t, collector.GetMetrics("ListTables"))
}

func TestMetricsCollector_OnChange(t *testing.T) {
	t.Parallel()

	collector := awsmeta.NewMetricsCollector()
	after := awsmeta.MetricsResultInterceptor(collector)

	var notified string

	collector.SetOnChange(func(operation string, metrics *awsmeta.Metrics) {
		notified = operation
	})

	cmd, err := awsmeta.NewCommand(testModel(), "ListTables", nil)
	require.NoError(t, err)

	require.NoError(t, after(context.Background(), cmd, &awsmeta.Result{}, nil))
	assert.Equal(t, "ListTables", notified)
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	t.Parallel()

	breaker := awsmeta.NewCircuitBreaker(&awsmeta.CircuitBreakerConfig{
		Threshold:        2,
		Timeout:          time.Hour,
		SuccessThreshold: 1,
	})
	before := awsmeta.CircuitBreakerCommandInterceptor(breaker)
	after := awsmeta.CircuitBreakerResultInterceptor(breaker)

	ctx := context.Background()

	cmd, err := awsmeta.NewCommand(testModel(), "DescribeTable", nil)
	require.NoError(t, err)

	failure := &awsmeta.Error{Kind: awsmeta.ErrorKindTransport, Message: "connection refused"}

	require.NoError(t, before(ctx, cmd))
	require.NoError(t, after(ctx, cmd, nil, failure))
	assert.Equal(t, "closed", breaker.State())

	require.NoError(t, before(ctx, cmd))
	require.NoError(t, after(ctx, cmd, nil, failure))
	assert.Equal(t, "open", breaker.State())

	err = before(ctx, cmd)
	require.ErrorIs(t, err, awsmeta.ErrCircuitBreakerOpen)
}

func TestCircuitBreaker_RecoversThroughHalfOpen(t *testing.T) {
	t.Parallel()

	breaker := awsmeta.NewCircuitBreaker(&awsmeta.CircuitBreakerConfig{
		Threshold:        1,
		Timeout:          time.Millisecond,
		SuccessThreshold: 1,
	})
	before := awsmeta.CircuitBreakerCommandInterceptor(breaker)
	after := awsmeta.CircuitBreakerResultInterceptor(breaker)

	ctx := context.Background()

	cmd, err := awsmeta.NewCommand(testModel(), "DescribeTable", nil)
	require.NoError(t, err)

	failure := &awsmeta.Error{Kind: awsmeta.ErrorKindTransport}

	require.NoError(t, before(ctx, cmd))
	require.NoError(t, after(ctx, cmd, nil, failure))
	assert.Equal(t, "open", breaker.State())

	time.Sleep(5 * time.Millisecond)

	// The timeout has elapsed, so the next command probes half-open.
	require.NoError(t, before(ctx, cmd))
	assert.Equal(t, "half-open", breaker.State())

	require.NoError(t, after(ctx, cmd, &awsmeta.Result{}, nil))
	assert.Equal(t, "closed", breaker.State())
}

func TestCircuitBreaker_ValidationErrorsIgnored(t *testing.T) {
	t.Parallel()

	breaker := awsmeta.NewCircuitBreaker(&awsmeta.CircuitBreakerConfig{
		Threshold:        1,
		Timeout:          time.Hour,
		SuccessThreshold: 1,
	})
	after := awsmeta.CircuitBreakerResultInterceptor(breaker)

	cmd, err := awsmeta.NewCommand(testModel(), "DescribeTable", nil)
	require.NoError(t, err)

	validationErr := &awsmeta.Error{Kind: awsmeta.ErrorKindValidation}

	require.NoError(t, after(context.Background(), cmd, nil, validationErr))
	assert.Equal(t, "closed", breaker.State())
}

func TestRateLimitInterceptor(t *testing.T) {
	t.Parallel()

	limiter := awsmeta.RateLimitInterceptor(2)

	cmd, err := awsmeta.NewCommand(testModel(), "DescribeTable", nil)
	require.NoError(t, err)

	ctx := context.Background()

	// The bucket starts full; the first two pass immediately.
	require.NoError(t, limiter(ctx, cmd))
	require.NoError(t, limiter(ctx, cmd))

	// With the bucket drained, a cancelled context is surfaced.
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	err = limiter(cancelled, cmd)
	require.ErrorIs(t, err, context.Canceled)
}
