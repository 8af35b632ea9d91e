package commands

import (
	"fmt"
	"time"

	"github.com/fivetwenty-io/awsmeta/pkg/awsmeta"
	"github.com/spf13/cobra"
)

// NewWaitCommand creates the wait command.
func NewWaitCommand() *cobra.Command {
	var (
		delay       int
		maxAttempts int
	)

	cmd := &cobra.Command{
		Use:   "wait WAITER [PARAM=VALUE...]",
		Short: "Poll until a waiter reaches its terminal state",
		Long: `Run a named waiter from the service model, polling its operation
until an acceptor reports success or failure. The model's delay and
attempt limits apply unless overridden.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, model, err := createClient()
			if err != nil {
				return err
			}

			params, err := parseParams(args[1:])
			if err != nil {
				return err
			}

			waiterName := args[0]

			if delay > 0 || maxAttempts > 0 {
				waiter, err := awsmeta.NewWaiter(client, model, waiterName)
				if err != nil {
					return err
				}

				if delay > 0 {
					waiter.Delay = time.Duration(delay) * time.Second
				}

				if maxAttempts > 0 {
					waiter.MaxAttempts = maxAttempts
				}

				if err := waiter.Wait(cmd.Context(), params); err != nil {
					return err
				}
			} else if err := client.Wait(cmd.Context(), waiterName, params); err != nil {
				return err
			}

			fmt.Printf("%s: condition met\n", waiterName)

			return nil
		},
	}

	cmd.Flags().IntVar(&delay, "delay", 0, "seconds between attempts (overrides the model)")
	cmd.Flags().IntVar(&maxAttempts, "max-attempts", 0, "maximum poll attempts (overrides the model)")

	return cmd
}
