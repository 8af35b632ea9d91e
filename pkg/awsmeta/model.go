package awsmeta

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

// modelSchema constrains the shape of a service model document before any
// operation is executed against it. Validation failures here surface as
// validation errors with the schema's pointer into the offending field.
const modelSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["metadata", "operations"],
  "properties": {
    "metadata": {
      "type": "object",
      "required": ["name"],
      "properties": {
        "name": {"type": "string", "minLength": 1},
        "api_version": {"type": "string"},
        "protocol": {"type": "string"},
        "endpoint_prefix": {"type": "string"},
        "target_prefix": {"type": "string"},
        "signing_name": {"type": "string"},
        "service_full_name": {"type": "string"}
      }
    },
    "operations": {
      "type": "object",
      "minProperties": 1,
      "additionalProperties": {
        "type": "object",
        "properties": {
          "documentation": {"type": "string"},
          "read_only": {"type": "boolean"},
          "http": {
            "type": "object",
            "properties": {
              "method": {"type": "string"},
              "path": {"type": "string"}
            }
          },
          "input": {
            "type": "object",
            "properties": {
              "required": {"type": "array", "items": {"type": "string"}},
              "members": {"type": "array", "items": {"type": "string"}}
            }
          },
          "pagination": {
            "type": "object",
            "properties": {
              "input_token": {"type": ["string", "array"]},
              "output_token": {"type": ["string", "array"]},
              "result_key": {"type": ["string", "array"]},
              "limit_key": {"type": "string"},
              "more_results": {"type": "string"}
            }
          }
        }
      }
    },
    "waiters": {
      "type": "object",
      "additionalProperties": {
        "type": "object",
        "required": ["operation", "acceptors"],
        "properties": {
          "operation": {"type": "string", "minLength": 1},
          "delay": {"type": "integer", "minimum": 0},
          "max_attempts": {"type": "integer", "minimum": 1},
          "acceptors": {
            "type": "array",
            "minItems": 1,
            "items": {
              "type": "object",
              "required": ["state", "matcher"],
              "properties": {
                "state": {"enum": ["success", "failure", "retry"]},
                "matcher": {"enum": ["path", "pathAny", "pathAll", "status", "error"]},
                "argument": {"type": "string"},
                "expected": {}
              }
            }
          }
        }
      }
    }
  }
}`

var compiledModelSchema = jsonschema.MustCompileString("model.json", modelSchema)

// LoadServiceModel reads a model document from disk, dispatching on the
// file extension. YAML documents are accepted alongside JSON.
func LoadServiceModel(path string) (*ServiceModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading service model %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParseServiceModelYAML(data)
	default:
		return ParseServiceModel(data)
	}
}

// ParseServiceModel decodes and validates a JSON model document.
func ParseServiceModel(data []byte) (*ServiceModel, error) {
	var doc interface{}

	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()

	if err := decoder.Decode(&doc); err != nil {
		return nil, &Error{Kind: ErrorKindValidation, Message: "service model is not valid JSON", Cause: err}
	}

	if err := validateModelDocument(doc); err != nil {
		return nil, err
	}

	model := &ServiceModel{}
	if err := json.Unmarshal(data, model); err != nil {
		return nil, &Error{Kind: ErrorKindValidation, Message: "decoding service model", Cause: err}
	}

	return model, model.Validate()
}

// ParseServiceModelYAML decodes and validates a YAML model document.
func ParseServiceModelYAML(data []byte) (*ServiceModel, error) {
	var doc interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &Error{Kind: ErrorKindValidation, Message: "service model is not valid YAML", Cause: err}
	}

	if err := validateModelDocument(normalizeYAML(doc)); err != nil {
		return nil, err
	}

	model := &ServiceModel{}
	if err := yaml.Unmarshal(data, model); err != nil {
		return nil, &Error{Kind: ErrorKindValidation, Message: "decoding service model", Cause: err}
	}

	return model, model.Validate()
}

func validateModelDocument(doc interface{}) error {
	if err := compiledModelSchema.Validate(doc); err != nil {
		validationErr := &jsonschema.ValidationError{}
		if ok := asValidationError(err, &validationErr); ok {
			return &Error{
				Kind:    ErrorKindValidation,
				Message: fmt.Sprintf("service model schema: %s at %s", validationErr.Message, validationErr.InstanceLocation),
				Cause:   err,
			}
		}

		return &Error{Kind: ErrorKindValidation, Message: "service model failed schema validation", Cause: err}
	}

	return nil
}

func asValidationError(err error, target **jsonschema.ValidationError) bool {
	validationErr, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return false
	}

	// The leaf cause carries the most specific pointer.
	for len(validationErr.Causes) > 0 {
		validationErr = validationErr.Causes[0]
	}

	*target = validationErr

	return true
}

// normalizeYAML rewrites YAML decode output into the map[string]interface{}
// form the schema validator expects.
func normalizeYAML(value interface{}) interface{} {
	switch typed := value.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(typed))
		for key, item := range typed {
			out[key] = normalizeYAML(item)
		}

		return out
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(typed))
		for key, item := range typed {
			out[fmt.Sprintf("%v", key)] = normalizeYAML(item)
		}

		return out
	case []interface{}:
		out := make([]interface{}, len(typed))
		for i, item := range typed {
			out[i] = normalizeYAML(item)
		}

		return out
	default:
		return value
	}
}

// Validate applies the structural rules the schema cannot express: every
// waiter must target a known operation, and a pagination block must carry an
// output token to be usable.
func (m *ServiceModel) Validate() error {
	if m.Metadata.Name == "" {
		return &Error{Kind: ErrorKindValidation, Message: "service model has no name"}
	}

	if len(m.Operations) == 0 {
		return &Error{Kind: ErrorKindValidation, Message: "service model declares no operations"}
	}

	for name, op := range m.Operations {
		if op.Pagination == nil {
			continue
		}

		if len(op.Pagination.InputToken) != len(op.Pagination.OutputToken) &&
			len(op.Pagination.OutputToken) > 0 {
			return &Error{
				Kind:    ErrorKindValidation,
				Message: fmt.Sprintf("operation %q: pagination input and output token counts differ", name),
			}
		}
	}

	for name, waiter := range m.Waiters {
		if _, ok := m.Operations[waiter.Operation]; !ok {
			return &Error{
				Kind:    ErrorKindValidation,
				Message: fmt.Sprintf("waiter %q targets unknown operation %q", name, waiter.Operation),
			}
		}

		if len(waiter.Acceptors) == 0 {
			return &Error{
				Kind:    ErrorKindValidation,
				Message: fmt.Sprintf("waiter %q has no acceptors", name),
			}
		}
	}

	return nil
}
