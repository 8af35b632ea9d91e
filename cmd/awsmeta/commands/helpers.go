// Package commands implements the awsmeta CLI subcommands.
package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/fivetwenty-io/awsmeta/internal/constants"
	"github.com/fivetwenty-io/awsmeta/pkg/awsclient"
	"github.com/fivetwenty-io/awsmeta/pkg/awsmeta"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// loadModel reads the configured service model file.
func loadModel() (*awsmeta.ServiceModel, error) {
	modelPath := viper.GetString("model")
	if modelPath == "" {
		return nil, constants.ErrNoModelConfigured
	}

	return awsmeta.LoadServiceModel(modelPath)
}

// createClient builds a client from the effective configuration.
func createClient() (awsmeta.Client, *awsmeta.ServiceModel, error) {
	endpoint := viper.GetString("endpoint")
	if endpoint == "" {
		return nil, nil, constants.ErrNoEndpointConfigured
	}

	model, err := loadModel()
	if err != nil {
		return nil, nil, err
	}

	config := &awsmeta.Config{
		Endpoint:        endpoint,
		Region:          viper.GetString("region"),
		AccessKeyID:     viper.GetString("access_key_id"),
		SecretAccessKey: viper.GetString("secret_access_key"),
		SessionToken:    viper.GetString("session_token"),
		Debug:           viper.GetBool("debug"),
	}

	if config.Debug {
		config.Logger = &stderrLogger{}
	}

	client, err := awsclient.New(config, model)
	if err != nil {
		return nil, nil, err
	}

	return client, model, nil
}

// parseParams parses key=value arguments into operation parameters. Values
// that parse as JSON are passed through structured; everything else stays a
// string.
func parseParams(args []string) (map[string]interface{}, error) {
	params := make(map[string]interface{}, len(args))

	for _, arg := range args {
		parts := strings.SplitN(arg, "=", constants.KeyValueSplitParts)
		if len(parts) != constants.KeyValueSplitParts || parts[0] == "" {
			return nil, fmt.Errorf("%w: %q", constants.ErrInvalidParamFormat, arg)
		}

		var value interface{}
		if err := json.Unmarshal([]byte(parts[1]), &value); err != nil {
			value = parts[1]
		}

		params[parts[0]] = value
	}

	return params, nil
}

// renderOutput writes data in the configured output format. The table form
// expects a flat map and renders key/value rows in sorted order.
func renderOutput(data interface{}) error {
	switch format := viper.GetString("output"); format {
	case constants.FormatJSON:
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", strings.Repeat(" ", constants.JSONIndentSize))

		if err := encoder.Encode(data); err != nil {
			return fmt.Errorf("encoding JSON output: %w", err)
		}

		return nil
	case constants.FormatYAML:
		encoder := yaml.NewEncoder(os.Stdout)

		if err := encoder.Encode(data); err != nil {
			return fmt.Errorf("encoding YAML output: %w", err)
		}

		return nil
	case constants.FormatTable, "":
		return renderTable(data)
	default:
		return fmt.Errorf("%w: %q", constants.ErrInvalidOutput, format)
	}
}

func renderTable(data interface{}) error {
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Field", "Value")

	switch typed := data.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(typed))
		for key := range typed {
			keys = append(keys, key)
		}

		sort.Strings(keys)

		for _, key := range keys {
			_ = table.Append(key, renderValue(typed[key]))
		}
	default:
		_ = table.Append("result", renderValue(data))
	}

	if err := table.Render(); err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}

	return nil
}

// renderValue flattens nested structures into compact JSON for table cells.
func renderValue(value interface{}) string {
	switch value.(type) {
	case nil:
		return constants.NotAvailable
	case string, bool, int, int64, float64:
		return fmt.Sprintf("%v", value)
	default:
		data, err := json.Marshal(value)
		if err != nil {
			return fmt.Sprintf("%v", value)
		}

		return string(data)
	}
}

// truncate shortens a string for display.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}

	return s[:limit-3] + "..."
}

// stderrLogger writes debug logging to stderr for --debug runs.
type stderrLogger struct{}

func (l *stderrLogger) log(level, msg string, fields map[string]interface{}) {
	fmt.Fprintf(os.Stderr, "[%s] %s", level, msg)

	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	for _, key := range keys {
		fmt.Fprintf(os.Stderr, " %s=%v", key, fields[key])
	}

	fmt.Fprintln(os.Stderr)
}

func (l *stderrLogger) Debug(msg string, fields map[string]interface{}) { l.log("DEBUG", msg, fields) }
func (l *stderrLogger) Info(msg string, fields map[string]interface{})  { l.log("INFO", msg, fields) }
func (l *stderrLogger) Warn(msg string, fields map[string]interface{})  { l.log("WARN", msg, fields) }
func (l *stderrLogger) Error(msg string, fields map[string]interface{}) { l.log("ERROR", msg, fields) }
