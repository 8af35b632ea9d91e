// Package awsclient provides the main entry point for creating metadata-driven
// service clients.
package awsclient

import (
	"fmt"
	"strings"

	"github.com/fivetwenty-io/awsmeta/internal/client"
	"github.com/fivetwenty-io/awsmeta/pkg/awsmeta"
)

// New creates a client for the given service model.
func New(config *awsmeta.Config, model *awsmeta.ServiceModel) (awsmeta.Client, error) {
	if config == nil {
		return nil, awsmeta.ErrConfigRequired
	}

	if config.Endpoint == "" {
		return nil, awsmeta.ErrEndpointRequired
	}

	// Normalize the endpoint
	endpoint := strings.TrimSuffix(config.Endpoint, "/")
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		endpoint = "https://" + endpoint
	}

	config.Endpoint = endpoint

	cli, err := client.New(config, model)
	if err != nil {
		return nil, fmt.Errorf("failed to create new client: %w", err)
	}

	return cli, nil
}

// NewFromModelFile loads a service model document from disk and builds a
// client for it.
func NewFromModelFile(config *awsmeta.Config, modelPath string) (awsmeta.Client, error) {
	model, err := awsmeta.LoadServiceModel(modelPath)
	if err != nil {
		return nil, err
	}

	return New(config, model)
}

// NewWithEndpoint creates an unsigned client for quick API exploration.
func NewWithEndpoint(endpoint string, model *awsmeta.ServiceModel) (awsmeta.Client, error) {
	return New(&awsmeta.Config{Endpoint: endpoint}, model)
}

// NewWithCredentials creates a signed client from explicit credentials.
func NewWithCredentials(endpoint, region, accessKeyID, secretAccessKey string, model *awsmeta.ServiceModel) (awsmeta.Client, error) {
	return New(&awsmeta.Config{
		Endpoint:        endpoint,
		Region:          region,
		AccessKeyID:     accessKeyID,
		SecretAccessKey: secretAccessKey,
	}, model)
}
