package auth

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/fivetwenty-io/awsmeta/internal/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock() time.Time {
	return time.Date(2026, 1, 15, 12, 30, 45, 0, time.UTC)
}

func TestHMACSigner_Sign(t *testing.T) {
	t.Parallel()

	signer := NewHMACSigner(NewStaticProvider("AKID", "secret", ""), "us-test-1", "tables")
	signer.now = fixedClock

	query := url.Values{}
	query.Set("Limit", "10")

	req := &transport.Request{
		Method: "POST",
		Path:   "/",
		Query:  query,
		Body:   []byte(`{"TableName":"users"}`),
	}

	err := signer.Sign(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, "20260115T123045Z", req.Headers["X-Amz-Date"])
	assert.NotContains(t, req.Headers, "X-Amz-Security-Token")

	authz := req.Headers["Authorization"]
	assert.Contains(t, authz, "AWSMETA-HMAC-SHA256 ")
	assert.Contains(t, authz, "Credential=AKID/20260115/us-test-1/tables")
	assert.Contains(t, authz, "SignedHeaders=x-amz-date")
	assert.Contains(t, authz, "Signature=")
}

func TestHMACSigner_Deterministic(t *testing.T) {
	t.Parallel()

	sign := func() string {
		signer := NewHMACSigner(NewStaticProvider("AKID", "secret", ""), "us-test-1", "tables")
		signer.now = fixedClock

		req := &transport.Request{Method: "POST", Path: "/", Body: []byte(`{}`)}
		require.NoError(t, signer.Sign(context.Background(), req))

		return req.Headers["Authorization"]
	}

	assert.Equal(t, sign(), sign())
}

func TestHMACSigner_SignatureCoversBody(t *testing.T) {
	t.Parallel()

	sign := func(body string) string {
		signer := NewHMACSigner(NewStaticProvider("AKID", "secret", ""), "us-test-1", "tables")
		signer.now = fixedClock

		req := &transport.Request{Method: "POST", Path: "/", Body: []byte(body)}
		require.NoError(t, signer.Sign(context.Background(), req))

		return req.Headers["Authorization"]
	}

	assert.NotEqual(t, sign(`{"TableName":"a"}`), sign(`{"TableName":"b"}`))
}

func TestHMACSigner_SessionToken(t *testing.T) {
	t.Parallel()

	signer := NewHMACSigner(NewStaticProvider("AKID", "secret", "token"), "us-test-1", "tables")
	signer.now = fixedClock

	req := &transport.Request{Method: "GET", Path: "/"}
	require.NoError(t, signer.Sign(context.Background(), req))

	assert.Equal(t, "token", req.Headers["X-Amz-Security-Token"])
	assert.Contains(t, req.Headers["Authorization"], "x-amz-date;x-amz-security-token")
}

func TestHMACSigner_AnonymousLeavesUnsigned(t *testing.T) {
	t.Parallel()

	signer := NewHMACSigner(NewAnonymousProvider(), "us-test-1", "tables")

	req := &transport.Request{Method: "GET", Path: "/"}
	require.NoError(t, signer.Sign(context.Background(), req))
	assert.Empty(t, req.Headers["Authorization"])
}

func TestHMACSigner_ProviderErrorSurfaces(t *testing.T) {
	t.Parallel()

	signer := NewHMACSigner(NewStaticProvider("AKID", "", ""), "us-test-1", "tables")

	req := &transport.Request{Method: "GET", Path: "/"}
	err := signer.Sign(context.Background(), req)
	require.ErrorIs(t, err, ErrIncompleteCredential)
}

func TestHMACSigner_NilRequest(t *testing.T) {
	t.Parallel()

	signer := NewHMACSigner(NewStaticProvider("AKID", "secret", ""), "us-test-1", "tables")

	err := signer.Sign(context.Background(), nil)
	require.ErrorIs(t, err, ErrNothingToSign)
}

func TestNoOpSigner(t *testing.T) {
	t.Parallel()

	req := &transport.Request{Method: "GET", Path: "/"}
	require.NoError(t, NoOpSigner{}.Sign(context.Background(), req))
	assert.Nil(t, req.Headers)
}
