package commands

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fivetwenty-io/awsmeta/internal/constants"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

// configFile is the persisted CLI configuration.
type configFile struct {
	Endpoint        string `yaml:"endpoint,omitempty"`
	Model           string `yaml:"model,omitempty"`
	Region          string `yaml:"region,omitempty"`
	AccessKeyID     string `yaml:"access_key_id,omitempty"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty"`
	SessionToken    string `yaml:"session_token,omitempty"`
	Output          string `yaml:"output,omitempty"`
}

// NewConfigureCommand creates the configure command.
func NewConfigureCommand() *cobra.Command {
	var (
		endpoint  string
		modelPath string
		region    string
		accessKey string
	)

	cmd := &cobra.Command{
		Use:   "configure",
		Short: "Configure endpoint, model, and credentials",
		Long: `Interactively configure the service endpoint, model file, region, and
signing credentials, and persist them to ~/.awsmeta/config.yml. Values
already supplied via flags are not prompted for.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			reader := bufio.NewReader(os.Stdin)

			endpoint = promptDefault(reader, "Service endpoint", endpoint, viper.GetString("endpoint"))
			modelPath = promptDefault(reader, "Model file", modelPath, viper.GetString("model"))
			region = promptDefault(reader, "Region", region, viper.GetString("region"))
			accessKey = promptDefault(reader, "Access key ID", accessKey, viper.GetString("access_key_id"))

			secretKey := viper.GetString("secret_access_key")
			if accessKey != "" {
				fmt.Printf("Secret access key [%s]: ", maskSecret(secretKey))

				secretBytes, err := term.ReadPassword(int(syscall.Stdin))
				if err != nil {
					return fmt.Errorf("failed to read secret key: %w", err)
				}

				fmt.Println()

				if entered := strings.TrimSpace(string(secretBytes)); entered != "" {
					secretKey = entered
				}
			}

			config := configFile{
				Endpoint:        endpoint,
				Model:           modelPath,
				Region:          region,
				AccessKeyID:     accessKey,
				SecretAccessKey: secretKey,
				SessionToken:    viper.GetString("session_token"),
				Output:          viper.GetString("output"),
			}

			path, err := writeConfig(&config)
			if err != nil {
				return err
			}

			fmt.Println("Configuration saved to", path)

			return nil
		},
	}

	cmd.Flags().StringVar(&endpoint, "endpoint", "", "service endpoint URL")
	cmd.Flags().StringVar(&modelPath, "model", "", "service model file")
	cmd.Flags().StringVar(&region, "region", "", "signing region")
	cmd.Flags().StringVar(&accessKey, "access-key-id", "", "access key ID")

	return cmd
}

// promptDefault asks for a value unless the flag already supplied one,
// keeping the current setting on empty input.
func promptDefault(reader *bufio.Reader, label, flagValue, current string) string {
	if flagValue != "" {
		return flagValue
	}

	if current != "" {
		fmt.Printf("%s [%s]: ", label, current)
	} else {
		fmt.Printf("%s: ", label)
	}

	line, _ := reader.ReadString('\n')

	line = strings.TrimSpace(line)
	if line == "" {
		return current
	}

	return line
}

func maskSecret(secret string) string {
	if secret == "" {
		return "none"
	}

	return constants.MaskedSecret
}

func writeConfig(config *configFile) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("finding home directory: %w", err)
	}

	configDir := filepath.Join(home, ".awsmeta")
	if err := os.MkdirAll(configDir, constants.ConfigDirPerm); err != nil {
		return "", fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return "", fmt.Errorf("encoding config: %w", err)
	}

	path := filepath.Join(configDir, "config.yml")
	if err := os.WriteFile(path, data, constants.ConfigFilePerm); err != nil {
		return "", fmt.Errorf("writing config: %w", err)
	}

	return path, nil
}
