// Package auth provides credential resolution and request signing for the
// execution pipeline.
package auth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
)

// Static errors for err113 compliance.
var (
	ErrNoCredentials        = errors.New("no credentials available")
	ErrIncompleteCredential = errors.New("credentials missing access key or secret key")
)

// Credentials are one set of signing credentials.
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
}

// Valid reports whether the credentials can sign a request.
func (c Credentials) Valid() bool {
	return c.AccessKeyID != "" && c.SecretAccessKey != ""
}

// CredentialsProvider resolves signing credentials. Implementations may
// fetch lazily; Retrieve is called on the request path.
type CredentialsProvider interface {
	Retrieve(ctx context.Context) (Credentials, error)
}

// StaticProvider returns a fixed credential set.
type StaticProvider struct {
	creds Credentials
}

// NewStaticProvider wraps explicit credentials.
func NewStaticProvider(accessKeyID, secretAccessKey, sessionToken string) *StaticProvider {
	return &StaticProvider{
		creds: Credentials{
			AccessKeyID:     accessKeyID,
			SecretAccessKey: secretAccessKey,
			SessionToken:    sessionToken,
		},
	}
}

// Retrieve returns the fixed credentials.
func (p *StaticProvider) Retrieve(ctx context.Context) (Credentials, error) {
	if !p.creds.Valid() {
		return Credentials{}, ErrIncompleteCredential
	}

	return p.creds, nil
}

// EnvProvider reads credentials from the conventional environment variables.
type EnvProvider struct{}

// NewEnvProvider creates an environment-backed provider.
func NewEnvProvider() *EnvProvider {
	return &EnvProvider{}
}

// Retrieve reads AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY, and
// AWS_SESSION_TOKEN.
func (p *EnvProvider) Retrieve(ctx context.Context) (Credentials, error) {
	creds := Credentials{
		AccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
		SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
		SessionToken:    os.Getenv("AWS_SESSION_TOKEN"),
	}

	if !creds.Valid() {
		return Credentials{}, fmt.Errorf("%w: environment", ErrIncompleteCredential)
	}

	return creds, nil
}

// ChainProvider tries a sequence of providers, caching the first success.
type ChainProvider struct {
	providers []CredentialsProvider

	mu     sync.Mutex
	cached *Credentials
}

// NewChainProvider builds a provider chain tried in order.
func NewChainProvider(providers ...CredentialsProvider) *ChainProvider {
	return &ChainProvider{providers: providers}
}

// Retrieve returns the first credentials any provider yields.
func (p *ChainProvider) Retrieve(ctx context.Context) (Credentials, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cached != nil {
		return *p.cached, nil
	}

	var errs []error

	for _, provider := range p.providers {
		creds, err := provider.Retrieve(ctx)
		if err == nil {
			p.cached = &creds

			return creds, nil
		}

		errs = append(errs, err)
	}

	return Credentials{}, fmt.Errorf("%w: %w", ErrNoCredentials, errors.Join(errs...))
}

// Invalidate drops the cached credentials so the next Retrieve re-resolves.
func (p *ChainProvider) Invalidate() {
	p.mu.Lock()
	p.cached = nil
	p.mu.Unlock()
}

// DefaultChain resolves static config credentials first, then the
// environment.
func DefaultChain(accessKeyID, secretAccessKey, sessionToken string) *ChainProvider {
	providers := []CredentialsProvider{}

	if accessKeyID != "" {
		providers = append(providers, NewStaticProvider(accessKeyID, secretAccessKey, sessionToken))
	}

	providers = append(providers, NewEnvProvider())

	return NewChainProvider(providers...)
}

// AnonymousProvider yields empty credentials, for unsigned endpoints.
type AnonymousProvider struct{}

// NewAnonymousProvider creates a provider for unsigned requests.
func NewAnonymousProvider() *AnonymousProvider {
	return &AnonymousProvider{}
}

// Retrieve returns empty credentials.
func (p *AnonymousProvider) Retrieve(ctx context.Context) (Credentials, error) {
	return Credentials{}, nil
}
