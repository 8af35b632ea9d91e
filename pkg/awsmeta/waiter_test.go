package awsmeta_test

import (
	"context"
	"testing"
	"time"

	"github.com/fivetwenty-io/awsmeta/pkg/awsmeta"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func notFoundErr() error {
	return &awsmeta.Error{
		Kind:        awsmeta.ErrorKindService,
		Operation:   "DescribeTable",
		ServiceCode: "ResourceNotFoundException",
		StatusCode:  404,
	}
}

func activeTable() scriptedOutcome {
	return pageResult(map[string]interface{}{
		"Table": map[string]interface{}{"TableStatus": "ACTIVE"},
	})
}

func creatingTable() scriptedOutcome {
	return pageResult(map[string]interface{}{
		"Table": map[string]interface{}{"TableStatus": "CREATING"},
	})
}

func TestWaiter_SucceedsAfterRetries(t *testing.T) {
	t.Parallel()

	exec := &scriptedExecutor{
		outcomes: []scriptedOutcome{
			{err: notFoundErr()},
			creatingTable(),
			activeTable(),
		},
	}

	waiter, err := awsmeta.NewWaiter(exec, testModel(), "TableExists")
	require.NoError(t, err)

	waiter.Delay = time.Millisecond
	waiter.MaxAttempts = 5

	err = waiter.Wait(context.Background(), map[string]interface{}{"TableName": "users"})
	require.NoError(t, err)
	assert.Equal(t, 3, exec.callCount())

	name, _ := exec.call(0).Param("TableName")
	assert.Equal(t, "users", name)
}

func TestWaiter_ErrorMatcherSuccess(t *testing.T) {
	t.Parallel()

	exec := &scriptedExecutor{outcomes: []scriptedOutcome{{err: notFoundErr()}}}

	waiter, err := awsmeta.NewWaiter(exec, testModel(), "TableNotExists")
	require.NoError(t, err)

	waiter.Delay = time.Millisecond

	err = waiter.Wait(context.Background(), map[string]interface{}{"TableName": "users"})
	require.NoError(t, err)
	assert.Equal(t, 1, exec.callCount())
}

func TestWaiter_ExhaustsAttempts(t *testing.T) {
	t.Parallel()

	exec := &scriptedExecutor{
		outcomes: []scriptedOutcome{creatingTable(), creatingTable(), creatingTable()},
	}

	waiter, err := awsmeta.NewWaiter(exec, testModel(), "TableExists")
	require.NoError(t, err)

	waiter.Delay = time.Millisecond
	waiter.MaxAttempts = 3

	err = waiter.Wait(context.Background(), map[string]interface{}{"TableName": "users"})
	require.Error(t, err)
	assert.True(t, awsmeta.IsWaitFailure(err))
	require.ErrorIs(t, err, awsmeta.ErrWaitAttemptsExceeded)
	assert.Equal(t, 3, exec.callCount())
}

func TestWaiter_FailureAcceptor(t *testing.T) {
	t.Parallel()

	model := testModel()
	model.Waiters["TableExists"] = awsmeta.WaiterConfig{
		Operation: "DescribeTable",
		Acceptors: []awsmeta.Acceptor{
			{State: awsmeta.AcceptorSuccess, Matcher: awsmeta.MatcherPath, Argument: "Table.TableStatus", Expected: "ACTIVE"},
			{State: awsmeta.AcceptorFailure, Matcher: awsmeta.MatcherPath, Argument: "Table.TableStatus", Expected: "DELETING"},
		},
	}

	exec := &scriptedExecutor{
		outcomes: []scriptedOutcome{
			pageResult(map[string]interface{}{
				"Table": map[string]interface{}{"TableStatus": "DELETING"},
			}),
		},
	}

	waiter, err := awsmeta.NewWaiter(exec, model, "TableExists")
	require.NoError(t, err)

	err = waiter.Wait(context.Background(), map[string]interface{}{"TableName": "users"})
	require.Error(t, err)
	assert.True(t, awsmeta.IsWaitFailure(err))
	assert.Contains(t, err.Error(), "failure state")
	assert.Equal(t, 1, exec.callCount())
}

func TestWaiter_StatusMatcher(t *testing.T) {
	t.Parallel()

	model := testModel()
	model.Waiters["Gone"] = awsmeta.WaiterConfig{
		Operation: "DescribeTable",
		Acceptors: []awsmeta.Acceptor{
			{State: awsmeta.AcceptorSuccess, Matcher: awsmeta.MatcherStatus, Expected: float64(404)},
		},
	}

	exec := &scriptedExecutor{outcomes: []scriptedOutcome{{err: notFoundErr()}}}

	waiter, err := awsmeta.NewWaiter(exec, model, "Gone")
	require.NoError(t, err)

	err = waiter.Wait(context.Background(), map[string]interface{}{"TableName": "users"})
	require.NoError(t, err)
}

func TestWaiter_PathAnyAndPathAll(t *testing.T) {
	t.Parallel()

	model := testModel()
	model.Waiters["AllRunning"] = awsmeta.WaiterConfig{
		Operation: "DescribeTable",
		Acceptors: []awsmeta.Acceptor{
			{State: awsmeta.AcceptorSuccess, Matcher: awsmeta.MatcherPathAll, Argument: "map(Instances, .State)", Expected: "running"},
			{State: awsmeta.AcceptorFailure, Matcher: awsmeta.MatcherPathAny, Argument: "map(Instances, .State)", Expected: "terminated"},
		},
		MaxAttempts: 2,
	}

	mixed := pageResult(map[string]interface{}{
		"Instances": []interface{}{
			map[string]interface{}{"State": "running"},
			map[string]interface{}{"State": "pending"},
		},
	})
	allRunning := pageResult(map[string]interface{}{
		"Instances": []interface{}{
			map[string]interface{}{"State": "running"},
			map[string]interface{}{"State": "running"},
		},
	})

	exec := &scriptedExecutor{outcomes: []scriptedOutcome{mixed, allRunning}}

	waiter, err := awsmeta.NewWaiter(exec, model, "AllRunning")
	require.NoError(t, err)

	waiter.Delay = time.Millisecond

	err = waiter.Wait(context.Background(), map[string]interface{}{"TableName": "users"})
	require.NoError(t, err)
	assert.Equal(t, 2, exec.callCount())

	// A single terminated instance trips the pathAny failure acceptor.
	terminated := pageResult(map[string]interface{}{
		"Instances": []interface{}{
			map[string]interface{}{"State": "running"},
			map[string]interface{}{"State": "terminated"},
		},
	})

	exec = &scriptedExecutor{outcomes: []scriptedOutcome{terminated}}

	waiter, err = awsmeta.NewWaiter(exec, model, "AllRunning")
	require.NoError(t, err)

	err = waiter.Wait(context.Background(), map[string]interface{}{"TableName": "users"})
	require.Error(t, err)
	assert.True(t, awsmeta.IsWaitFailure(err))
}

func TestWaiter_ContextCancelledDuringDelay(t *testing.T) {
	t.Parallel()

	exec := &scriptedExecutor{outcomes: []scriptedOutcome{creatingTable()}}

	waiter, err := awsmeta.NewWaiter(exec, testModel(), "TableExists")
	require.NoError(t, err)

	waiter.Delay = time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err = waiter.Wait(ctx, map[string]interface{}{"TableName": "users"})
	require.Error(t, err)
	assert.True(t, awsmeta.IsWaitFailure(err))
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, exec.callCount())
}

func TestNewWaiter_UnknownName(t *testing.T) {
	t.Parallel()

	_, err := awsmeta.NewWaiter(&scriptedExecutor{}, testModel(), "NoSuchWaiter")
	require.Error(t, err)
	assert.True(t, awsmeta.IsValidation(err))
}

func TestNewWaiter_BadAcceptorPath(t *testing.T) {
	t.Parallel()

	model := testModel()
	model.Waiters["Broken"] = awsmeta.WaiterConfig{
		Operation: "DescribeTable",
		Acceptors: []awsmeta.Acceptor{
			{State: awsmeta.AcceptorSuccess, Matcher: awsmeta.MatcherPath, Argument: "Table.[", Expected: "ACTIVE"},
		},
	}

	_, err := awsmeta.NewWaiter(&scriptedExecutor{}, model, "Broken")
	require.Error(t, err)
	assert.True(t, awsmeta.IsValidation(err))
}

func TestNewWaiter_UnknownMatcher(t *testing.T) {
	t.Parallel()

	model := testModel()
	model.Waiters["Broken"] = awsmeta.WaiterConfig{
		Operation: "DescribeTable",
		Acceptors: []awsmeta.Acceptor{
			{State: awsmeta.AcceptorSuccess, Matcher: "regex", Expected: "ACTIVE"},
		},
	}

	_, err := awsmeta.NewWaiter(&scriptedExecutor{}, model, "Broken")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown matcher")
}
