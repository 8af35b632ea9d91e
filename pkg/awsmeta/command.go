package awsmeta

import "time"

// Command binds an operation name to a concrete parameter set and call
// options. Commands are immutable once built and are the unit of execution:
// build one per call, execute it, discard it.
type Command struct {
	OperationName string
	Params        map[string]interface{}
	Async         bool

	// Model is a shared read-only reference to the resolved operation; the
	// command does not own it.
	Model *OperationModel

	// startTime is stamped by the metrics interceptor at dispatch.
	startTime time.Time
}

// CommandOption customizes a Command at build time.
type CommandOption func(*Command)

// WithAsync requests asynchronous execution; the pipeline then returns a
// deferred result handle instead of blocking.
func WithAsync() CommandOption {
	return func(c *Command) {
		c.Async = true
	}
}

// NewCommand builds a Command against the given service model. The operation
// name is resolved eagerly so an unknown name fails here, before any request
// can be issued. Parameters are copied; the caller's map is not retained.
func NewCommand(model *ServiceModel, operation string, params map[string]interface{}, opts ...CommandOption) (*Command, error) {
	if model == nil {
		return nil, &Error{Kind: ErrorKindValidation, Operation: operation, Message: "no service model", Cause: ErrModelRequired}
	}

	opModel, err := model.Operation(operation)
	if err != nil {
		return nil, err
	}

	copied := make(map[string]interface{}, len(params))
	for key, value := range params {
		copied[key] = value
	}

	cmd := &Command{
		OperationName: operation,
		Params:        copied,
		Model:         opModel,
	}

	for _, opt := range opts {
		opt(cmd)
	}

	return cmd, nil
}

// Param returns a single bound parameter.
func (c *Command) Param(name string) (interface{}, bool) {
	value, ok := c.Params[name]

	return value, ok
}

// withParams returns a copy of the command with extra parameters merged in.
// The pagination engine uses this to write the cursor into the next request
// without mutating the caller's command.
func (c *Command) withParams(extra map[string]interface{}) *Command {
	merged := make(map[string]interface{}, len(c.Params)+len(extra))
	for key, value := range c.Params {
		merged[key] = value
	}

	for key, value := range extra {
		if value == nil {
			delete(merged, key)

			continue
		}

		merged[key] = value
	}

	return &Command{
		OperationName: c.OperationName,
		Params:        merged,
		Async:         c.Async,
		Model:         c.Model,
	}
}
