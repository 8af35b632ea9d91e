package commands

import (
	"fmt"
	"os"
	"sort"

	"github.com/fivetwenty-io/awsmeta/internal/constants"
	"github.com/fivetwenty-io/awsmeta/pkg/awsmeta"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// NewOperationsCommand creates the operations command.
func NewOperationsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "operations",
		Short: "List operations defined by the service model",
		RunE: func(cmd *cobra.Command, args []string) error {
			model, err := loadModel()
			if err != nil {
				return err
			}

			names := make([]string, 0, len(model.Operations))
			for name := range model.Operations {
				names = append(names, name)
			}

			sort.Strings(names)

			type operationRow struct {
				Name          string `json:"name"           yaml:"name"`
				Method        string `json:"method"         yaml:"method"`
				Path          string `json:"path"           yaml:"path"`
				ReadOnly      bool   `json:"read_only"      yaml:"read_only"`
				Paginable     bool   `json:"paginable"      yaml:"paginable"`
				Documentation string `json:"documentation"  yaml:"documentation"`
			}

			rows := make([]operationRow, 0, len(names))
			for _, name := range names {
				op := model.Operations[name]
				rows = append(rows, operationRow{
					Name:          name,
					Method:        operationMethod(&op),
					Path:          operationPath(&op),
					ReadOnly:      op.ReadOnly,
					Paginable:     op.Paginable(),
					Documentation: truncate(op.Documentation, constants.DocumentationDisplayLength),
				})
			}

			output := viper.GetString("output")
			if output == constants.FormatJSON || output == constants.FormatYAML {
				return renderOutput(rows)
			}

			table := tablewriter.NewWriter(os.Stdout)
			table.Header("Name", "Method", "Path", "Read-Only", "Paginable", "Documentation")

			for _, row := range rows {
				err := table.Append(row.Name, row.Method, row.Path,
					fmt.Sprintf("%t", row.ReadOnly), fmt.Sprintf("%t", row.Paginable), row.Documentation)
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

func operationMethod(op *awsmeta.OperationModel) string {
	if op.HTTP.Method == "" {
		return "POST"
	}

	return op.HTTP.Method
}

func operationPath(op *awsmeta.OperationModel) string {
	if op.HTTP.Path == "" {
		return "/"
	}

	return op.HTTP.Path
}
