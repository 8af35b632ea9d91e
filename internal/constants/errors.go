package constants

import "errors"

// Configuration errors.
var (
	ErrNoEndpointConfigured = errors.New("no endpoint configured, use 'awsmeta configure' or --endpoint")
	ErrNoModelConfigured    = errors.New("no service model configured, use 'awsmeta configure' or --model")
)

// CLI validation errors.
var (
	ErrInvalidParamFormat = errors.New("parameters must be key=value pairs")
	ErrInvalidOutput      = errors.New("invalid output format, expected table, json, or yaml")
)
