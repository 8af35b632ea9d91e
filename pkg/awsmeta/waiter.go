package awsmeta

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fivetwenty-io/awsmeta/internal/constants"
)

// waiterState is the engine's position in its small state machine.
// succeeded and failed are terminal.
type waiterState int

const (
	waiterWaiting waiterState = iota
	waiterSucceeded
	waiterFailed
)

// Waiter polls an operation until a model-declared acceptance condition is
// met, a failure condition is met, or attempts are exhausted. Attempts are
// strictly sequential; the inter-attempt delay suspends only the wait that
// owns it.
type Waiter struct {
	exec   Executor
	model  *ServiceModel
	name   string
	config WaiterConfig
	logger Logger

	// Delay and MaxAttempts override the model's values when set.
	Delay       time.Duration
	MaxAttempts int

	acceptors []compiledAcceptor
}

type compiledAcceptor struct {
	Acceptor

	path *PathExpr
}

// NewWaiter resolves a named waiter from the service model. Acceptor path
// expressions are compiled here so a malformed model fails before the first
// attempt.
func NewWaiter(exec Executor, model *ServiceModel, name string) (*Waiter, error) {
	if model == nil {
		return nil, &Error{Kind: ErrorKindValidation, Message: "no service model", Cause: ErrModelRequired}
	}

	config, err := model.Waiter(name)
	if err != nil {
		return nil, err
	}

	waiter := &Waiter{
		exec:   exec,
		model:  model,
		name:   name,
		config: *config,
	}

	for _, acceptor := range config.Acceptors {
		compiled := compiledAcceptor{Acceptor: acceptor}

		switch acceptor.Matcher {
		case MatcherPath, MatcherPathAny, MatcherPathAll:
			compiled.path, err = CompilePath(acceptor.Argument)
			if err != nil {
				return nil, &Error{
					Kind:    ErrorKindValidation,
					Message: fmt.Sprintf("waiter %q: %s", name, err),
					Cause:   err,
				}
			}
		case MatcherStatus, MatcherError:
			// no argument to compile
		default:
			return nil, &Error{
				Kind:    ErrorKindValidation,
				Message: fmt.Sprintf("waiter %q: unknown matcher %q", name, acceptor.Matcher),
			}
		}

		waiter.acceptors = append(waiter.acceptors, compiled)
	}

	return waiter, nil
}

// SetLogger attaches a logger for per-attempt debug output.
func (w *Waiter) SetLogger(logger Logger) {
	w.logger = logger
}

// Name returns the waiter's model name.
func (w *Waiter) Name() string {
	return w.name
}

func (w *Waiter) delay() time.Duration {
	if w.Delay > 0 {
		return w.Delay
	}

	if w.config.Delay > 0 {
		return time.Duration(w.config.Delay) * time.Second
	}

	return constants.DefaultWaiterDelay
}

func (w *Waiter) maxAttempts() int {
	if w.MaxAttempts > 0 {
		return w.MaxAttempts
	}

	if w.config.MaxAttempts > 0 {
		return w.config.MaxAttempts
	}

	return constants.DefaultWaiterMaxAttempts
}

// Wait runs the polling loop. It returns nil once a success acceptor
// matches, and a wait-kind error when a failure acceptor matches, attempts
// are exhausted, or the context is cancelled. Transport and service errors
// from individual attempts are observable outcomes fed to the acceptors, not
// reasons to abort.
func (w *Waiter) Wait(ctx context.Context, params map[string]interface{}) error {
	maxAttempts := w.maxAttempts()
	state := waiterWaiting

	for attempt := 1; state == waiterWaiting; attempt++ {
		cmd, err := NewCommand(w.model, w.config.Operation, params)
		if err != nil {
			return err
		}

		result, execErr := w.exec.Execute(ctx, cmd)

		verdict, matched := w.evaluate(result, execErr)

		if w.logger != nil {
			w.logger.Debug("waiter attempt", map[string]interface{}{
				"waiter":    w.name,
				"operation": w.config.Operation,
				"attempt":   attempt,
				"verdict":   string(verdict),
				"matched":   matched,
			})
		}

		switch verdict {
		case AcceptorSuccess:
			state = waiterSucceeded

			return nil

		case AcceptorFailure:
			state = waiterFailed

			return &Error{
				Kind:      ErrorKindWait,
				Operation: w.config.Operation,
				Message:   fmt.Sprintf("waiter %q reached a failure state", w.name),
				Cause:     execErr,
				Command:   cmd,
			}

		case AcceptorRetry:
			// A context cancelled mid-attempt should not burn the remaining
			// attempts retrying a dead transport.
			if ctx.Err() != nil {
				return &Error{
					Kind:      ErrorKindWait,
					Operation: w.config.Operation,
					Message:   fmt.Sprintf("waiter %q cancelled", w.name),
					Cause:     ctx.Err(),
					Command:   cmd,
				}
			}

			if attempt >= maxAttempts {
				return &Error{
					Kind:      ErrorKindWait,
					Operation: w.config.Operation,
					Message:   fmt.Sprintf("waiter %q: %s after %d attempts", w.name, ErrWaitAttemptsExceeded, attempt),
					Cause:     ErrWaitAttemptsExceeded,
					Command:   cmd,
				}
			}

			if err := sleepContext(ctx, w.delay()); err != nil {
				return &Error{
					Kind:      ErrorKindWait,
					Operation: w.config.Operation,
					Message:   fmt.Sprintf("waiter %q cancelled during delay", w.name),
					Cause:     err,
					Command:   cmd,
				}
			}
		}
	}

	return nil
}

// evaluate applies the ordered acceptor list to one attempt's outcome.
// The first acceptor whose matcher holds decides the verdict; when none
// matches the default verdict is retry.
func (w *Waiter) evaluate(result *Result, execErr error) (AcceptorState, bool) {
	for _, acceptor := range w.acceptors {
		if w.matches(acceptor, result, execErr) {
			return acceptor.State, true
		}
	}

	return AcceptorRetry, false
}

func (w *Waiter) matches(acceptor compiledAcceptor, result *Result, execErr error) bool {
	switch acceptor.Matcher {
	case MatcherPath:
		if result == nil {
			return false
		}

		return pathValueEqual(acceptor.path.Search(result.Output), acceptor.Expected)

	case MatcherPathAny:
		return matchCollection(acceptor, result, false)

	case MatcherPathAll:
		return matchCollection(acceptor, result, true)

	case MatcherStatus:
		expected, ok := toFloat(acceptor.Expected)
		if !ok {
			return false
		}

		return float64(statusOf(result, execErr)) == expected

	case MatcherError:
		return matchError(acceptor.Expected, execErr)
	}

	return false
}

func matchCollection(acceptor compiledAcceptor, result *Result, requireAll bool) bool {
	if result == nil {
		return false
	}

	values, ok := acceptor.path.Search(result.Output).([]interface{})
	if !ok || len(values) == 0 {
		return false
	}

	for _, value := range values {
		equal := pathValueEqual(value, acceptor.Expected)

		if requireAll && !equal {
			return false
		}

		if !requireAll && equal {
			return true
		}
	}

	return requireAll
}

// matchError compares the attempt's normalized error against the acceptor's
// expectation: a string matches the service code, boolean true matches any
// error, boolean false matches a clean outcome.
func matchError(expected interface{}, execErr error) bool {
	switch want := expected.(type) {
	case bool:
		return want == (execErr != nil)
	case string:
		if execErr == nil {
			return false
		}

		return ServiceCode(execErr) == want
	default:
		return false
	}
}

// statusOf extracts the HTTP-style status of an attempt, from the result on
// success or the normalized error on failure.
func statusOf(result *Result, execErr error) int {
	if result != nil {
		return result.Metadata.StatusCode
	}

	clientErr := &Error{}
	if errors.As(execErr, &clientErr) {
		return clientErr.StatusCode
	}

	return 0
}

// sleepContext suspends the calling goroutine only, honoring cancellation.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
