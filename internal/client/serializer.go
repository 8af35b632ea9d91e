package client

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/fivetwenty-io/awsmeta/internal/transport"
	"github.com/fivetwenty-io/awsmeta/pkg/awsmeta"
)

// Serializer turns Commands into wire requests according to the operation's
// model. It implements a JSON dialect: parameters travel as a JSON body,
// except for GET and DELETE where they become query parameters.
type Serializer struct {
	metadata awsmeta.ServiceMetadata
}

// NewSerializer creates a serializer for one service.
func NewSerializer(metadata awsmeta.ServiceMetadata) *Serializer {
	return &Serializer{metadata: metadata}
}

// Serialize validates the command's parameters against the input shape and
// renders the wire request. Validation failures name every missing
// parameter at once.
func (s *Serializer) Serialize(cmd *awsmeta.Command) (*transport.Request, error) {
	if cmd == nil || cmd.Model == nil {
		return nil, awsmeta.ErrCommandRequired
	}

	if missing := missingRequired(cmd); len(missing) > 0 {
		return nil, &awsmeta.Error{
			Kind:      awsmeta.ErrorKindValidation,
			Operation: cmd.OperationName,
			Message:   "missing required parameters: " + strings.Join(missing, ", "),
			Command:   cmd,
		}
	}

	method := cmd.Model.HTTP.Method
	if method == "" {
		method = "POST"
	}

	path := cmd.Model.HTTP.Path
	if path == "" {
		path = "/"
	}

	path, consumed, err := expandPath(path, cmd)
	if err != nil {
		return nil, err
	}

	req := &transport.Request{
		Method: method,
		Path:   path,
	}

	if s.metadata.TargetPrefix != "" {
		req.Header("X-Target", s.metadata.TargetPrefix+"."+cmd.OperationName)
	}

	remaining := make(map[string]interface{}, len(cmd.Params))

	for key, value := range cmd.Params {
		if _, used := consumed[key]; !used {
			remaining[key] = value
		}
	}

	if method == "GET" || method == "DELETE" {
		req.Query = queryParams(remaining)

		return req, nil
	}

	body, err := json.Marshal(remaining)
	if err != nil {
		return nil, &awsmeta.Error{
			Kind:      awsmeta.ErrorKindValidation,
			Operation: cmd.OperationName,
			Message:   "parameters are not serializable",
			Cause:     err,
			Command:   cmd,
		}
	}

	req.Body = body
	req.Header("Content-Type", "application/json")

	return req, nil
}

// missingRequired returns the names of required parameters absent from the
// command, in model order.
func missingRequired(cmd *awsmeta.Command) []string {
	var missing []string

	for _, name := range cmd.Model.Input.Required {
		if _, ok := cmd.Params[name]; !ok {
			missing = append(missing, name)
		}
	}

	return missing
}

// expandPath substitutes {Param} placeholders in the path template from the
// command's parameters and reports which parameters it consumed.
func expandPath(path string, cmd *awsmeta.Command) (string, map[string]struct{}, error) {
	consumed := make(map[string]struct{})

	for {
		open := strings.Index(path, "{")
		if open < 0 {
			return path, consumed, nil
		}

		closing := strings.Index(path[open:], "}")
		if closing < 0 {
			return "", nil, &awsmeta.Error{
				Kind:      awsmeta.ErrorKindValidation,
				Operation: cmd.OperationName,
				Message:   fmt.Sprintf("malformed path template %q", path),
				Command:   cmd,
			}
		}

		name := path[open+1 : open+closing]

		value, ok := cmd.Params[name]
		if !ok {
			return "", nil, &awsmeta.Error{
				Kind:      awsmeta.ErrorKindValidation,
				Operation: cmd.OperationName,
				Message:   fmt.Sprintf("path parameter %q not bound", name),
				Command:   cmd,
			}
		}

		consumed[name] = struct{}{}
		path = path[:open] + url.PathEscape(fmt.Sprintf("%v", value)) + path[open+closing+1:]
	}
}

// queryParams flattens parameters into URL query values. List values repeat
// the key; everything else is rendered with fmt.
func queryParams(params map[string]interface{}) url.Values {
	if len(params) == 0 {
		return nil
	}

	keys := make([]string, 0, len(params))
	for key := range params {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	values := url.Values{}

	for _, key := range keys {
		switch typed := params[key].(type) {
		case []interface{}:
			for _, item := range typed {
				values.Add(key, fmt.Sprintf("%v", item))
			}
		case []string:
			for _, item := range typed {
				values.Add(key, item)
			}
		default:
			values.Add(key, fmt.Sprintf("%v", typed))
		}
	}

	return values
}
