package awsmeta_test

import (
	"context"
	"sync"

	"github.com/fivetwenty-io/awsmeta/pkg/awsmeta"
)

// testModel builds a small service model used across the package tests.
func testModel() *awsmeta.ServiceModel {
	return &awsmeta.ServiceModel{
		Metadata: awsmeta.ServiceMetadata{
			Name:       "tables",
			APIVersion: "2026-01-01",
		},
		Operations: map[string]awsmeta.OperationModel{
			"DescribeTable": {
				HTTP:  awsmeta.HTTPSpec{Method: "POST", Path: "/"},
				Input: awsmeta.InputShape{Required: []string{"TableName"}},
			},
			"ListTables": {
				ReadOnly: true,
				HTTP:     awsmeta.HTTPSpec{Method: "POST", Path: "/"},
				Pagination: &awsmeta.PaginationConfig{
					InputToken:  awsmeta.StringList{"ExclusiveStartTableName"},
					OutputToken: awsmeta.StringList{"LastEvaluatedTableName"},
					ResultKey:   awsmeta.StringList{"TableNames"},
					LimitKey:    "Limit",
				},
			},
			"DeleteTable": {
				HTTP:  awsmeta.HTTPSpec{Method: "POST", Path: "/"},
				Input: awsmeta.InputShape{Required: []string{"TableName"}},
			},
		},
		Waiters: map[string]awsmeta.WaiterConfig{
			"TableExists": {
				Operation:   "DescribeTable",
				Delay:       1,
				MaxAttempts: 3,
				Acceptors: []awsmeta.Acceptor{
					{State: awsmeta.AcceptorSuccess, Matcher: awsmeta.MatcherPath, Argument: "Table.TableStatus", Expected: "ACTIVE"},
					{State: awsmeta.AcceptorRetry, Matcher: awsmeta.MatcherError, Expected: "ResourceNotFoundException"},
				},
			},
			"TableNotExists": {
				Operation:   "DescribeTable",
				Delay:       1,
				MaxAttempts: 3,
				Acceptors: []awsmeta.Acceptor{
					{State: awsmeta.AcceptorSuccess, Matcher: awsmeta.MatcherError, Expected: "ResourceNotFoundException"},
				},
			},
		},
	}
}

// scriptedExecutor replays a fixed sequence of outcomes and records the
// commands it saw.
type scriptedExecutor struct {
	mu       sync.Mutex
	outcomes []scriptedOutcome
	calls    []*awsmeta.Command
}

type scriptedOutcome struct {
	result *awsmeta.Result
	err    error
}

func (e *scriptedExecutor) Execute(_ context.Context, cmd *awsmeta.Command) (*awsmeta.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.calls = append(e.calls, cmd)

	if len(e.outcomes) == 0 {
		return &awsmeta.Result{Output: map[string]interface{}{}, Metadata: awsmeta.ResultMetadata{StatusCode: 200}}, nil
	}

	next := e.outcomes[0]
	e.outcomes = e.outcomes[1:]

	return next.result, next.err
}

func (e *scriptedExecutor) callCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	return len(e.calls)
}

func (e *scriptedExecutor) call(i int) *awsmeta.Command {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.calls[i]
}

func pageResult(output map[string]interface{}) scriptedOutcome {
	return scriptedOutcome{
		result: &awsmeta.Result{Output: output, Metadata: awsmeta.ResultMetadata{StatusCode: 200}},
	}
}
