// Package client implements the execution pipeline behind the awsmeta.Client
// interface: serialization, signing, transport, interpretation, and the
// pagination and waiter engines wired on top.
package client

import (
	"context"
	"errors"
	"fmt"

	"github.com/fivetwenty-io/awsmeta/internal/auth"
	"github.com/fivetwenty-io/awsmeta/internal/constants"
	"github.com/fivetwenty-io/awsmeta/internal/transport"
	"github.com/fivetwenty-io/awsmeta/pkg/awsmeta"
)

// Client implements the awsmeta.Client interface.
type Client struct {
	executor *Executor
	model    *awsmeta.ServiceModel
	logger   awsmeta.Logger
}

// createTransportOptions builds transport options from config.
func createTransportOptions(config *awsmeta.Config) []transport.Option {
	var opts []transport.Option

	if config.Logger != nil {
		opts = append(opts, transport.WithLogger(config.Logger))
	}

	if config.Debug {
		opts = append(opts, transport.WithDebug(true))
	}

	if config.UserAgent != "" {
		opts = append(opts, transport.WithUserAgent(config.UserAgent))
	}

	if config.RetryMax > 0 {
		retryWaitMin := constants.DefaultRetryWaitMin
		retryWaitMax := constants.ExtendedRetryWaitMax

		if config.RetryWaitMin > 0 {
			retryWaitMin = config.RetryWaitMin
		}

		if config.RetryWaitMax > 0 {
			retryWaitMax = config.RetryWaitMax
		}

		opts = append(opts, transport.WithRetryConfig(config.RetryMax, retryWaitMin, retryWaitMax))
	}

	return opts
}

// createSigner picks the signer for the configured credentials. No
// credentials anywhere means unsigned requests.
func createSigner(config *awsmeta.Config, model *awsmeta.ServiceModel) auth.Signer {
	provider := auth.DefaultChain(config.AccessKeyID, config.SecretAccessKey, config.SessionToken)

	signingName := model.Metadata.SigningName
	if signingName == "" {
		signingName = model.Metadata.Name
	}

	region := config.Region
	if region == "" {
		region = "default"
	}

	signer := auth.NewHMACSigner(provider, region, signingName)

	return &tolerantSigner{signer: signer}
}

// tolerantSigner treats missing credentials as "send unsigned" while still
// surfacing real signing failures.
type tolerantSigner struct {
	signer auth.Signer
}

func (s *tolerantSigner) Sign(ctx context.Context, req *transport.Request) error {
	err := s.signer.Sign(ctx, req)
	if err == nil {
		return nil
	}

	if errors.Is(err, auth.ErrNoCredentials) || errors.Is(err, auth.ErrIncompleteCredential) {
		return nil
	}

	return err
}

// New creates a client for one service model.
func New(config *awsmeta.Config, model *awsmeta.ServiceModel) (*Client, error) {
	if config == nil {
		return nil, awsmeta.ErrConfigRequired
	}

	if config.Endpoint == "" {
		return nil, awsmeta.ErrEndpointRequired
	}

	if model == nil {
		return nil, awsmeta.ErrModelRequired
	}

	if err := model.Validate(); err != nil {
		return nil, fmt.Errorf("validating service model: %w", err)
	}

	tp := transport.NewClient(config.Endpoint, createTransportOptions(config)...)

	serializer := NewSerializer(model.Metadata)
	signer := createSigner(config, model)

	execOpts := []ExecutorOption{}
	if config.Logger != nil {
		execOpts = append(execOpts, WithExecutorLogger(config.Logger))
	}

	if config.Cache != nil {
		manager, err := awsmeta.NewCacheManagerForModel(model, config.Cache)
		if err != nil {
			return nil, fmt.Errorf("building cache: %w", err)
		}

		execOpts = append(execOpts, WithCache(manager, model.Metadata.Name))
	}

	client := &Client{
		executor: NewExecutor(tp, signer, serializer, execOpts...),
		model:    model,
		logger:   config.Logger,
	}

	return client, nil
}

// NewWithExecutor builds a client around an existing executor. Tests and
// advanced callers use this to substitute pipeline internals.
func NewWithExecutor(executor *Executor, model *awsmeta.ServiceModel) (*Client, error) {
	if model == nil {
		return nil, awsmeta.ErrModelRequired
	}

	return &Client{executor: executor, model: model}, nil
}

// Model implements awsmeta.Client.Model.
func (c *Client) Model() *awsmeta.ServiceModel {
	return c.model
}

// Interceptors exposes the executor's interceptor chain.
func (c *Client) Interceptors() *awsmeta.InterceptorChain {
	return c.executor.Interceptors()
}

// BuildCommand implements awsmeta.Client.BuildCommand.
func (c *Client) BuildCommand(operation string, params map[string]interface{}, opts ...awsmeta.CommandOption) (*awsmeta.Command, error) {
	return awsmeta.NewCommand(c.model, operation, params, opts...)
}

// Execute implements awsmeta.Client.Execute.
func (c *Client) Execute(ctx context.Context, cmd *awsmeta.Command) (*awsmeta.Result, error) {
	return c.executor.Execute(ctx, cmd)
}

// ExecuteAsync implements awsmeta.Client.ExecuteAsync.
func (c *Client) ExecuteAsync(ctx context.Context, cmd *awsmeta.Command) (awsmeta.ResultFuture, error) {
	return c.executor.ExecuteAsync(ctx, cmd)
}

// Paginate implements awsmeta.Client.Paginate.
func (c *Client) Paginate(operation string, params map[string]interface{}) (*awsmeta.Pager, error) {
	return awsmeta.NewPager(c.executor, c.model, operation, params)
}

// Items implements awsmeta.Client.Items.
func (c *Client) Items(ctx context.Context, operation string, params map[string]interface{}) (*awsmeta.ItemIterator, error) {
	return awsmeta.NewItemIterator(ctx, c.executor, c.model, operation, params)
}

// Wait implements awsmeta.Client.Wait.
func (c *Client) Wait(ctx context.Context, waiterName string, params map[string]interface{}) error {
	waiter, err := awsmeta.NewWaiter(c.executor, c.model, waiterName)
	if err != nil {
		return err
	}

	if c.logger != nil {
		waiter.SetLogger(c.logger)
	}

	return waiter.Wait(ctx, params)
}
