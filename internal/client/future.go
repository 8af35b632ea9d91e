package client

import (
	"context"
	"sync"

	"github.com/fivetwenty-io/awsmeta/internal/transport"
	"github.com/fivetwenty-io/awsmeta/pkg/awsmeta"
)

// future is the concrete awsmeta.ResultFuture. The underlying exchange runs
// on the transport's goroutine; the future only coordinates observation of
// its single settlement.
type future struct {
	deferred  *transport.Deferred
	interpret func(resp *transport.Response, sendErr error) (*awsmeta.Result, error)

	mu        sync.Mutex
	resolved  bool
	cancelled bool
	result    *awsmeta.Result
	err       error
}

func newFuture(deferred *transport.Deferred, interpret func(*transport.Response, error) (*awsmeta.Result, error)) *future {
	return &future{
		deferred:  deferred,
		interpret: interpret,
	}
}

// Await blocks until the exchange settles or ctx is done. The first
// successful Await interprets the response; later calls return the cached
// outcome without touching the transport. A ctx expiry abandons this wait
// only, not the exchange.
func (f *future) Await(ctx context.Context) (*awsmeta.Result, error) {
	f.mu.Lock()
	if f.resolved {
		result, err := f.result, f.err
		f.mu.Unlock()

		return result, err
	}

	if f.cancelled {
		f.mu.Unlock()

		return nil, awsmeta.ErrFutureCancelled
	}
	f.mu.Unlock()

	select {
	case <-f.deferred.Done():
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	// Another Await may have resolved while this one waited on the lock, and
	// a cancel that landed before settlement wins over a late settlement.
	if f.resolved {
		return f.result, f.err
	}

	if f.cancelled {
		return nil, awsmeta.ErrFutureCancelled
	}

	resp, sendErr := f.deferred.Result()
	f.result, f.err = f.interpret(resp, sendErr)
	f.resolved = true

	return f.result, f.err
}

// Cancel abandons the in-flight exchange. It reports true when the cancel
// landed before the transport settled; once the exchange has completed the
// cancel is a lost race, the future stays resolvable, and Await returns the
// completed output.
func (f *future) Cancel() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.resolved {
		return false
	}

	if f.cancelled {
		return true
	}

	select {
	case <-f.deferred.Done():
		return false
	default:
	}

	f.cancelled = true
	f.deferred.Cancel()

	return true
}
