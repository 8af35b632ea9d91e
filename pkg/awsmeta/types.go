package awsmeta

import (
	"encoding/json"
	"fmt"
)

// StringList is a model field that may be declared either as a single string
// or as a list of strings. Pagination token fields use this shape.
type StringList []string

// UnmarshalJSON accepts both "Token" and ["TokenA", "TokenB"].
func (s *StringList) UnmarshalJSON(data []byte) error {
	return s.decode(func(v interface{}) error {
		return json.Unmarshal(data, v)
	})
}

// UnmarshalYAML accepts both scalar and sequence forms.
func (s *StringList) UnmarshalYAML(unmarshal func(interface{}) error) error {
	return s.decode(unmarshal)
}

func (s *StringList) decode(unmarshal func(interface{}) error) error {
	var single string
	if err := unmarshal(&single); err == nil {
		*s = StringList{single}

		return nil
	}

	var many []string
	if err := unmarshal(&many); err != nil {
		return fmt.Errorf("decoding string list: %w", err)
	}

	*s = StringList(many)

	return nil
}

// HTTPSpec describes how an operation maps onto the wire.
type HTTPSpec struct {
	Method string `json:"method" yaml:"method"`
	Path   string `json:"path"   yaml:"path"`
}

// InputShape describes the parameters an operation accepts.
type InputShape struct {
	Required []string `json:"required,omitempty" yaml:"required,omitempty"`
	Members  []string `json:"members,omitempty"  yaml:"members,omitempty"`
}

// PaginationConfig describes how an operation's list results are chained
// across calls via continuation tokens.
type PaginationConfig struct {
	// InputToken names the request parameter(s) that carry the cursor on the
	// next call.
	InputToken StringList `json:"input_token" yaml:"input_token"`

	// OutputToken names the response field(s) that hold the next cursor. An
	// operation without an OutputToken is not paginable.
	OutputToken StringList `json:"output_token" yaml:"output_token"`

	// ResultKey names the response field(s) holding the list of interest.
	ResultKey StringList `json:"result_key" yaml:"result_key"`

	// LimitKey optionally names the request parameter that caps page size.
	LimitKey string `json:"limit_key,omitempty" yaml:"limit_key,omitempty"`

	// MoreResults optionally names a boolean response field indicating
	// truncation. When configured, a false value ends the page sequence even
	// if a token is present.
	MoreResults string `json:"more_results,omitempty" yaml:"more_results,omitempty"`
}

// AcceptorState is the verdict an acceptor produces when it matches.
type AcceptorState string

// Acceptor verdicts.
const (
	AcceptorSuccess AcceptorState = "success"
	AcceptorFailure AcceptorState = "failure"
	AcceptorRetry   AcceptorState = "retry"
)

// AcceptorMatcher selects how an acceptor inspects an attempt's outcome.
type AcceptorMatcher string

// Acceptor matchers.
const (
	MatcherPath    AcceptorMatcher = "path"
	MatcherPathAny AcceptorMatcher = "pathAny"
	MatcherPathAll AcceptorMatcher = "pathAll"
	MatcherStatus  AcceptorMatcher = "status"
	MatcherError   AcceptorMatcher = "error"
)

// Acceptor is one rule in a waiter's ordered condition list. Acceptors are
// evaluated in declared order; the first one that matches decides the attempt.
type Acceptor struct {
	State    AcceptorState   `json:"state"              yaml:"state"`
	Matcher  AcceptorMatcher `json:"matcher"            yaml:"matcher"`
	Argument string          `json:"argument,omitempty" yaml:"argument,omitempty"`
	Expected interface{}     `json:"expected"           yaml:"expected"`
}

// WaiterConfig describes a named completion-wait condition for an operation.
type WaiterConfig struct {
	Operation   string     `json:"operation"    yaml:"operation"`
	Delay       int        `json:"delay"        yaml:"delay"` // seconds between attempts
	MaxAttempts int        `json:"max_attempts" yaml:"max_attempts"`
	Acceptors   []Acceptor `json:"acceptors"    yaml:"acceptors"`
}

// OperationModel is the immutable description of one callable operation.
// Models are loaded once per service and shared read-only across all Commands
// that reference them.
type OperationModel struct {
	Name          string            `json:"-"                       yaml:"-"`
	Documentation string            `json:"documentation,omitempty" yaml:"documentation,omitempty"`
	HTTP          HTTPSpec          `json:"http,omitempty"          yaml:"http,omitempty"`
	Input         InputShape        `json:"input,omitempty"         yaml:"input,omitempty"`
	ReadOnly      bool              `json:"read_only,omitempty"     yaml:"read_only,omitempty"`
	Pagination    *PaginationConfig `json:"pagination,omitempty"    yaml:"pagination,omitempty"`
}

// Paginable reports whether the operation carries usable pagination metadata.
func (m *OperationModel) Paginable() bool {
	return m.Pagination != nil && len(m.Pagination.OutputToken) > 0
}

// ServiceMetadata identifies the service a model describes.
type ServiceMetadata struct {
	Name            string `json:"name"                       yaml:"name"`
	APIVersion      string `json:"api_version"                yaml:"api_version"`
	EndpointPrefix  string `json:"endpoint_prefix,omitempty"  yaml:"endpoint_prefix,omitempty"`
	TargetPrefix    string `json:"target_prefix,omitempty"    yaml:"target_prefix,omitempty"`
	SigningName     string `json:"signing_name,omitempty"     yaml:"signing_name,omitempty"`
	Protocol        string `json:"protocol,omitempty"         yaml:"protocol,omitempty"`
	ServiceFullName string `json:"service_full_name,omitempty" yaml:"service_full_name,omitempty"`
}

// ServiceModel is the static registry of operations and waiters for one
// service: the declarative API description every Command resolves against.
// It is constructed at client initialization and never mutated afterwards.
type ServiceModel struct {
	Metadata   ServiceMetadata           `json:"metadata"          yaml:"metadata"`
	Operations map[string]OperationModel `json:"operations"        yaml:"operations"`
	Waiters    map[string]WaiterConfig   `json:"waiters,omitempty" yaml:"waiters,omitempty"`
}

// Operation resolves an operation by name.
func (m *ServiceModel) Operation(name string) (*OperationModel, error) {
	op, ok := m.Operations[name]
	if !ok {
		return nil, &Error{
			Kind:      ErrorKindValidation,
			Operation: name,
			Message:   fmt.Sprintf("unknown operation %q for service %s", name, m.Metadata.Name),
		}
	}

	if op.Name == "" {
		op.Name = name
	}

	return &op, nil
}

// Waiter resolves a waiter configuration by name.
func (m *ServiceModel) Waiter(name string) (*WaiterConfig, error) {
	config, ok := m.Waiters[name]
	if !ok {
		return nil, &Error{
			Kind:    ErrorKindValidation,
			Message: fmt.Sprintf("unknown waiter %q for service %s", name, m.Metadata.Name),
		}
	}

	return &config, nil
}

// ResultMetadata carries transport-level facts about a completed call.
type ResultMetadata struct {
	StatusCode int
	RequestID  string
}

// Result is a realized operation output: the decoded response body plus
// response metadata. A Result is owned exclusively by its caller.
type Result struct {
	Output   map[string]interface{}
	Metadata ResultMetadata
}

// Get returns a top-level output field.
func (r *Result) Get(key string) (interface{}, bool) {
	if r == nil || r.Output == nil {
		return nil, false
	}

	value, ok := r.Output[key]

	return value, ok
}

// Search evaluates a path expression against the output document, using the
// same expression syntax as waiter acceptors. A path that does not resolve
// yields nil.
func (r *Result) Search(source string) (interface{}, error) {
	if r == nil {
		return nil, nil
	}

	return searchPath(source, r.Output)
}
