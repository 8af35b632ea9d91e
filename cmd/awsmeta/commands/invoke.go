package commands

import (
	"fmt"

	"github.com/fivetwenty-io/awsmeta/pkg/awsmeta"
	"github.com/spf13/cobra"
)

// NewInvokeCommand creates the invoke command.
func NewInvokeCommand() *cobra.Command {
	var async bool

	cmd := &cobra.Command{
		Use:   "invoke OPERATION [PARAM=VALUE...]",
		Short: "Invoke a service operation",
		Long: `Invoke a named operation from the service model with the given
parameters. Parameter values are parsed as JSON when possible, so
count=3 produces a number and tags='["a","b"]' produces a list.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := createClient()
			if err != nil {
				return err
			}

			params, err := parseParams(args[1:])
			if err != nil {
				return err
			}

			operation := args[0]

			var result *awsmeta.Result

			if async {
				command, err := client.BuildCommand(operation, params, awsmeta.WithAsync())
				if err != nil {
					return err
				}

				future, err := client.ExecuteAsync(cmd.Context(), command)
				if err != nil {
					return err
				}

				result, err = future.Await(cmd.Context())
				if err != nil {
					return err
				}
			} else {
				command, err := client.BuildCommand(operation, params)
				if err != nil {
					return err
				}

				result, err = client.Execute(cmd.Context(), command)
				if err != nil {
					return err
				}
			}

			if len(result.Output) == 0 {
				fmt.Printf("%s succeeded (HTTP %d)\n", operation, result.Metadata.StatusCode)

				return nil
			}

			return renderOutput(result.Output)
		},
	}

	cmd.Flags().BoolVar(&async, "async", false, "dispatch asynchronously and await the result")

	return cmd
}
