package commands

import (
	"fmt"
	"os"
	"sort"

	"github.com/fivetwenty-io/awsmeta/internal/constants"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// NewWaitersCommand creates the waiters command.
func NewWaitersCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "waiters",
		Short: "List waiters defined by the service model",
		RunE: func(cmd *cobra.Command, args []string) error {
			model, err := loadModel()
			if err != nil {
				return err
			}

			names := make([]string, 0, len(model.Waiters))
			for name := range model.Waiters {
				names = append(names, name)
			}

			sort.Strings(names)

			type waiterRow struct {
				Name        string `json:"name"         yaml:"name"`
				Operation   string `json:"operation"    yaml:"operation"`
				Delay       int    `json:"delay"        yaml:"delay"`
				MaxAttempts int    `json:"max_attempts" yaml:"max_attempts"`
				Acceptors   int    `json:"acceptors"    yaml:"acceptors"`
			}

			rows := make([]waiterRow, 0, len(names))
			for _, name := range names {
				waiter := model.Waiters[name]
				rows = append(rows, waiterRow{
					Name:        name,
					Operation:   waiter.Operation,
					Delay:       waiter.Delay,
					MaxAttempts: waiter.MaxAttempts,
					Acceptors:   len(waiter.Acceptors),
				})
			}

			output := viper.GetString("output")
			if output == constants.FormatJSON || output == constants.FormatYAML {
				return renderOutput(rows)
			}

			table := tablewriter.NewWriter(os.Stdout)
			table.Header("Name", "Operation", "Delay", "Max Attempts", "Acceptors")

			for _, row := range rows {
				err := table.Append(row.Name, row.Operation,
					fmt.Sprintf("%d", row.Delay), fmt.Sprintf("%d", row.MaxAttempts), fmt.Sprintf("%d", row.Acceptors))
				if err != nil {
					return fmt.Errorf("building table: %w", err)
				}
			}

			if err := table.Render(); err != nil {
				return fmt.Errorf("rendering table: %w", err)
			}

			return nil
		},
	}
}
