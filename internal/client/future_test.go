package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fivetwenty-io/awsmeta/internal/transport"
	"github.com/fivetwenty-io/awsmeta/pkg/awsmeta"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFuture_CancelAfterTransportSettled(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"TableName": "users"}`))
	}))
	defer server.Close()

	tp := transport.NewClient(server.URL)

	deferred := tp.DoAsync(context.Background(), &transport.Request{Method: "GET", Path: "/"})
	<-deferred.Done()

	interpreted := 0
	f := newFuture(deferred, func(resp *transport.Response, sendErr error) (*awsmeta.Result, error) {
		require.NoError(t, sendErr)
		interpreted++

		return &awsmeta.Result{Output: map[string]interface{}{"TableName": "users"}}, nil
	})

	// The exchange completed before the cancel landed, so the cancel is a
	// lost race and the settled output stays observable.
	assert.False(t, f.Cancel())

	result, err := f.Await(context.Background())
	require.NoError(t, err)

	value, ok := result.Get("TableName")
	require.True(t, ok)
	assert.Equal(t, "users", value)
	assert.Equal(t, 1, interpreted)

	// Cancelling a resolved future stays a no-op.
	assert.False(t, f.Cancel())
}
