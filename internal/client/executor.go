package client

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fivetwenty-io/awsmeta/internal/auth"
	"github.com/fivetwenty-io/awsmeta/internal/constants"
	"github.com/fivetwenty-io/awsmeta/internal/transport"
	"github.com/fivetwenty-io/awsmeta/pkg/awsmeta"
)

// Executor runs Commands through the four pipeline phases: serialize, sign,
// send, interpret. Every error leaving it is a normalized *awsmeta.Error;
// this is the single normalization boundary for the whole client.
type Executor struct {
	transport    *transport.Client
	signer       auth.Signer
	serializer   *Serializer
	parseError   awsmeta.ErrorParser
	interceptors *awsmeta.InterceptorChain
	cache        *awsmeta.CacheManager
	serviceName  string
	logger       awsmeta.Logger
}

// NewExecutor wires the pipeline phases together. The cache manager may be
// nil to disable response caching; the parser falls back to the default.
func NewExecutor(tp *transport.Client, signer auth.Signer, serializer *Serializer, opts ...ExecutorOption) *Executor {
	executor := &Executor{
		transport:    tp,
		signer:       signer,
		serializer:   serializer,
		parseError:   awsmeta.ParseErrorBody,
		interceptors: awsmeta.NewInterceptorChain(),
	}

	for _, opt := range opts {
		opt(executor)
	}

	return executor
}

// ExecutorOption customizes an Executor.
type ExecutorOption func(*Executor)

// WithErrorParser overrides the structured failure body parser.
func WithErrorParser(parser awsmeta.ErrorParser) ExecutorOption {
	return func(e *Executor) {
		if parser != nil {
			e.parseError = parser
		}
	}
}

// WithInterceptors attaches a shared interceptor chain.
func WithInterceptors(chain *awsmeta.InterceptorChain) ExecutorOption {
	return func(e *Executor) {
		if chain != nil {
			e.interceptors = chain
		}
	}
}

// WithCache enables read-only response caching.
func WithCache(manager *awsmeta.CacheManager, serviceName string) ExecutorOption {
	return func(e *Executor) {
		e.cache = manager
		e.serviceName = serviceName
	}
}

// WithExecutorLogger sets the pipeline logger.
func WithExecutorLogger(logger awsmeta.Logger) ExecutorOption {
	return func(e *Executor) {
		e.logger = logger
	}
}

// Interceptors exposes the chain so callers can register hooks.
func (e *Executor) Interceptors() *awsmeta.InterceptorChain {
	return e.interceptors
}

// Execute runs the command synchronously and returns exactly one of a
// Result or an error.
func (e *Executor) Execute(ctx context.Context, cmd *awsmeta.Command) (*awsmeta.Result, error) {
	req, cached, err := e.prepare(ctx, cmd)
	if err != nil {
		return nil, e.finish(ctx, cmd, nil, err)
	}

	if cached != nil {
		return cached, e.finish(ctx, cmd, cached, nil)
	}

	resp, sendErr := e.transport.Do(ctx, req)
	result, err := e.interpret(cmd, resp, sendErr)

	return result, e.finish(ctx, cmd, result, err)
}

// ExecuteAsync runs the command's send on its own goroutine and returns a
// future settling exactly once. Serialization and signing errors surface
// here, before the future exists; nothing was sent in that case.
func (e *Executor) ExecuteAsync(ctx context.Context, cmd *awsmeta.Command) (awsmeta.ResultFuture, error) {
	req, cached, err := e.prepare(ctx, cmd)
	if err != nil {
		return nil, e.finish(ctx, cmd, nil, err)
	}

	if cached != nil {
		_ = e.finish(ctx, cmd, cached, nil)

		return resolvedFuture{result: cached}, nil
	}

	deferred := e.transport.DoAsync(ctx, req)

	return newFuture(deferred, func(resp *transport.Response, sendErr error) (*awsmeta.Result, error) {
		result, err := e.interpret(cmd, resp, sendErr)

		return result, e.finish(ctx, cmd, result, err)
	}), nil
}

// prepare runs the pre-send phases: interceptors, serialization, cache
// consultation, signing.
func (e *Executor) prepare(ctx context.Context, cmd *awsmeta.Command) (*transport.Request, *awsmeta.Result, error) {
	if cmd == nil || cmd.Model == nil {
		return nil, nil, &awsmeta.Error{Kind: awsmeta.ErrorKindValidation, Message: "no command", Cause: awsmeta.ErrCommandRequired}
	}

	if err := e.interceptors.ExecuteCommandInterceptors(ctx, cmd); err != nil {
		return nil, nil, awsmeta.NormalizeError(cmd.OperationName, awsmeta.ErrorKindTransport, err)
	}

	req, err := e.serializer.Serialize(cmd)
	if err != nil {
		return nil, nil, awsmeta.NormalizeError(cmd.OperationName, awsmeta.ErrorKindValidation, err)
	}

	if result := e.cachedResult(ctx, cmd); result != nil {
		return nil, result, nil
	}

	if e.signer != nil {
		if err := e.signer.Sign(ctx, req); err != nil {
			return nil, nil, awsmeta.NormalizeError(cmd.OperationName, awsmeta.ErrorKindSigning, err)
		}
	}

	return req, nil, nil
}

// interpret maps the raw transport outcome onto exactly one of a Result or a
// normalized error.
func (e *Executor) interpret(cmd *awsmeta.Command, resp *transport.Response, sendErr error) (*awsmeta.Result, error) {
	if sendErr != nil {
		return nil, awsmeta.NormalizeError(cmd.OperationName, awsmeta.ErrorKindTransport, sendErr)
	}

	if resp.StatusCode >= 300 {
		return nil, e.serviceError(cmd, resp)
	}

	output := make(map[string]interface{})
	if len(resp.Body) > 0 {
		if err := json.Unmarshal(resp.Body, &output); err != nil {
			return nil, &awsmeta.Error{
				Kind:       awsmeta.ErrorKindTransport,
				Operation:  cmd.OperationName,
				Message:    "response body is not valid JSON",
				StatusCode: resp.StatusCode,
				RequestID:  resp.RequestID,
				Cause:      err,
				Command:    cmd,
			}
		}
	}

	result := &awsmeta.Result{
		Output: output,
		Metadata: awsmeta.ResultMetadata{
			StatusCode: resp.StatusCode,
			RequestID:  resp.RequestID,
		},
	}

	e.storeResult(cmd, resp, result)

	return result, nil
}

// serviceError builds the normalized error for a non-2xx response.
func (e *Executor) serviceError(cmd *awsmeta.Command, resp *transport.Response) *awsmeta.Error {
	serviceErr := &awsmeta.Error{
		Kind:       awsmeta.ErrorKindService,
		Operation:  cmd.OperationName,
		StatusCode: resp.StatusCode,
		RequestID:  resp.RequestID,
		Message:    fmt.Sprintf("HTTP %d", resp.StatusCode),
		Command:    cmd,
	}

	if details, ok := e.parseError(resp.Body); ok {
		serviceErr.ServiceCode = details.Code
		serviceErr.ServiceType = details.Type

		if details.Message != "" {
			serviceErr.Message = details.Message
		}
	}

	return serviceErr
}

// finish runs the result interceptors and hands the outcome through
// unchanged. Interceptor failures are logged, not surfaced; observers do not
// get to veto a settled outcome.
func (e *Executor) finish(ctx context.Context, cmd *awsmeta.Command, result *awsmeta.Result, execErr error) error {
	if cmd == nil {
		return execErr
	}

	if err := e.interceptors.ExecuteResultInterceptors(ctx, cmd, result, execErr); err != nil && e.logger != nil {
		e.logger.Warn("result interceptor failed", map[string]interface{}{
			"operation": cmd.OperationName,
			"error":     err.Error(),
		})
	}

	return execErr
}

// cachedResult consults the response cache for read-only operations.
func (e *Executor) cachedResult(ctx context.Context, cmd *awsmeta.Command) *awsmeta.Result {
	if e.cache == nil || !e.cache.Policy().ShouldCache(cmd.Model, 200) {
		return nil
	}

	key := e.cache.GetCacheKey(e.serviceName, cmd.OperationName, cmd.Params)

	data, err := e.cache.Get(ctx, key)
	if err != nil {
		return nil
	}

	result := &awsmeta.Result{}
	if err := json.Unmarshal(data, result); err != nil {
		_ = e.cache.Invalidate(ctx, key)

		return nil
	}

	return result
}

// storeResult writes a successful response into the cache when the policy
// allows it.
func (e *Executor) storeResult(cmd *awsmeta.Command, resp *transport.Response, result *awsmeta.Result) {
	if e.cache == nil || !e.cache.Policy().ShouldCache(cmd.Model, resp.StatusCode) {
		return
	}

	data, err := json.Marshal(result)
	if err != nil {
		return
	}

	key := e.cache.GetCacheKey(e.serviceName, cmd.OperationName, cmd.Params)

	// Storage happens off the caller's deadline.
	ctx, cancel := context.WithTimeout(context.Background(), constants.ShortHTTPTimeout)
	defer cancel()

	etag := resp.Headers.Get("ETag")
	// Zero TTL defers to the manager's configured default.
	_ = e.cache.SetWithETag(ctx, key, data, etag, 0)
}

// resolvedFuture is a future already settled at creation, used when a cache
// hit short-circuits the send.
type resolvedFuture struct {
	result *awsmeta.Result
}

func (f resolvedFuture) Await(ctx context.Context) (*awsmeta.Result, error) {
	return f.result, nil
}

func (f resolvedFuture) Cancel() bool {
	return false
}
