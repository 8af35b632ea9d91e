package transport_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fivetwenty-io/awsmeta/internal/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Do(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/tables", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.NotEmpty(t, r.Header.Get("X-Invocation-Id"))

		w.Header().Set("X-Amzn-Requestid", "req-123")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}))
	defer server.Close()

	client := transport.NewClient(server.URL)

	resp, err := client.Do(context.Background(), &transport.Request{
		Method: "GET",
		Path:   "/v1/tables",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "req-123", resp.RequestID)
	assert.Contains(t, string(resp.Body), "ok")
}

func TestClient_DoWithQueryAndBody(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "10", r.URL.Query().Get("Limit"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.JSONEq(t, `{"TableName":"users"}`, string(body))

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := transport.NewClient(server.URL)

	query := url.Values{}
	query.Set("Limit", "10")

	resp, err := client.Do(context.Background(), &transport.Request{
		Method: "POST",
		Path:   "/",
		Query:  query,
		Body:   []byte(`{"TableName":"users"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestClient_DoCustomHeadersWin(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/x-amz-json-1.0", r.Header.Get("Content-Type"))
		assert.Equal(t, "Tables_20260101.DescribeTable", r.Header.Get("X-Target"))

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := transport.NewClient(server.URL)

	req := &transport.Request{Method: "POST", Path: "/", Body: []byte(`{}`)}
	req.Header("Content-Type", "application/x-amz-json-1.0")
	req.Header("X-Target", "Tables_20260101.DescribeTable")

	_, err := client.Do(context.Background(), req)
	require.NoError(t, err)
}

func TestClient_DoNilRequest(t *testing.T) {
	t.Parallel()

	client := transport.NewClient("http://localhost:1")

	_, err := client.Do(context.Background(), nil)
	require.ErrorIs(t, err, transport.ErrRequestRequired)
}

func TestClient_NonSuccessStatusIsNotAnError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"code":"ResourceNotFoundException"}`))
	}))
	defer server.Close()

	client := transport.NewClient(server.URL)

	resp, err := client.Do(context.Background(), &transport.Request{Method: "POST", Path: "/"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, string(resp.Body), "ResourceNotFoundException")
}

func TestClient_RetriesServerErrors(t *testing.T) {
	t.Parallel()

	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)

			return
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := transport.NewClient(server.URL,
		transport.WithRetryConfig(5, time.Millisecond, 5*time.Millisecond))

	resp, err := client.Do(context.Background(), &transport.Request{Method: "GET", Path: "/"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(3), attempts.Load())
}

func TestClient_DoesNotRetryClientErrors(t *testing.T) {
	t.Parallel()

	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":"ValidationException"}`))
	}))
	defer server.Close()

	client := transport.NewClient(server.URL,
		transport.WithRetryConfig(3, time.Millisecond, 5*time.Millisecond))

	resp, err := client.Do(context.Background(), &transport.Request{Method: "GET", Path: "/"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, int32(1), attempts.Load())
}

func TestClient_UserAgent(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "awsmeta-test/1.0", r.Header.Get("User-Agent"))

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := transport.NewClient(server.URL, transport.WithUserAgent("awsmeta-test/1.0"))

	_, err := client.Do(context.Background(), &transport.Request{Method: "GET", Path: "/"})
	require.NoError(t, err)
}

func TestClient_DoAsync(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	client := transport.NewClient(server.URL)

	deferred := client.DoAsync(context.Background(), &transport.Request{Method: "GET", Path: "/"})

	// Still in flight.
	_, err := deferred.Result()
	require.ErrorIs(t, err, transport.ErrNotResolved)

	close(release)
	<-deferred.Done()

	resp, err := deferred.Result()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestClient_DoAsyncCancel(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	block := make(chan struct{})

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-block
	}))
	defer server.Close()
	// Release the handler before the deferred server.Close, which waits for
	// in-flight requests.
	defer close(block)

	// Retries would mask the cancellation.
	client := transport.NewClient(server.URL, transport.WithRetryConfig(0, time.Millisecond, time.Millisecond))

	deferred := client.DoAsync(context.Background(), &transport.Request{Method: "GET", Path: "/"})

	<-started
	deferred.Cancel()
	<-deferred.Done()

	_, err := deferred.Result()
	require.Error(t, err)
}
