package awsmeta

import (
	"context"
	"time"
)

// Executor runs a single Command through the execution pipeline. The concrete
// implementation lives in internal/client; the engines in this package (Pager,
// Waiter, BatchExecutor) depend only on this interface so they can be driven
// by mocks in tests.
type Executor interface {
	Execute(ctx context.Context, cmd *Command) (*Result, error)
}

// ResultFuture is a deferred operation result. Await blocks only the calling
// context until the underlying send resolves, then returns the decoded
// output; once resolved, further Await calls return the cached output without
// touching the transport. Cancel proxies to the transport-level cancel and
// reports whether cancellation landed before natural completion.
type ResultFuture interface {
	Await(ctx context.Context) (*Result, error)
	Cancel() bool
}

// AsyncExecutor extends Executor with deferred execution.
type AsyncExecutor interface {
	Executor
	ExecuteAsync(ctx context.Context, cmd *Command) (ResultFuture, error)
}

// Client is the full surface exposed to callers: single-call execution plus
// the derived access patterns built on top of it.
type Client interface {
	AsyncExecutor

	// BuildCommand binds an operation name to parameters and call options.
	BuildCommand(operation string, params map[string]interface{}, opts ...CommandOption) (*Command, error)

	// Paginate returns a lazy page sequence for a list-type operation.
	Paginate(operation string, params map[string]interface{}) (*Pager, error)

	// Items returns a lazy flattened element sequence for a list-type
	// operation. The context governs the page fetches the iterator issues.
	Items(ctx context.Context, operation string, params map[string]interface{}) (*ItemIterator, error)

	// Wait polls the waiter's operation until its acceptance condition is
	// met, a failure condition is met, or attempts are exhausted.
	Wait(ctx context.Context, waiterName string, params map[string]interface{}) error

	// Model returns the service model the client was built with.
	Model() *ServiceModel
}

// Logger interface for logging.
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

// Config represents client configuration for building a Client.
//
// # Credentials
//
// Provide AccessKeyID/SecretAccessKey (and optionally SessionToken) for
// signed requests. When no credentials are configured, requests are sent
// unsigned; services that require signing will reject them.
//
// # Timeouts, retries, and caching
//
// Per-request timeouts should be controlled via the context passed to client
// methods. Transient transport failures (5xx, 429, connection errors) can be
// retried by the transport layer via RetryMax/RetryWaitMin/RetryWaitMax. The
// pipeline itself never retries; only the waiter's polling loop repeats
// calls, as that loop is intrinsic to its contract. Read-only operation
// outputs can be cached by configuring Cache.
type Config struct {
	// Endpoint: base URL of the service (e.g. "https://dynamodb.us-east-1.amazonaws.com").
	Endpoint string

	// Region used for signing scope. Optional for unsigned clients.
	Region string

	// AccessKeyID and SecretAccessKey sign outgoing requests. Leave both
	// empty for an unsigned client.
	AccessKeyID     string
	SecretAccessKey string
	// SessionToken: optional temporary-credentials token.
	SessionToken string

	// RetryMax: maximum number of transport retries for transient failures.
	// If 0, a sensible default is used.
	RetryMax int
	// RetryWaitMin: minimum backoff between retries. Applied when RetryMax > 0.
	RetryWaitMin time.Duration
	// RetryWaitMax: maximum backoff between retries. Applied when RetryMax > 0.
	RetryWaitMax time.Duration

	// Debug enables verbose request/response logging when a Logger is set.
	Debug bool
	// Logger: optional structured logger used by the transport and engines.
	Logger Logger
	// UserAgent overrides the default User-Agent header.
	UserAgent string

	// Cache: optional response-cache configuration for read-only operations.
	Cache *CacheConfig
}
