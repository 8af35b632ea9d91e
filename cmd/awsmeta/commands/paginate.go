package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewPaginateCommand creates the paginate command.
func NewPaginateCommand() *cobra.Command {
	var (
		items    bool
		maxPages int
	)

	cmd := &cobra.Command{
		Use:   "paginate OPERATION [PARAM=VALUE...]",
		Short: "Fetch all pages of a list operation",
		Long: `Walk a paginated operation, chaining continuation tokens until the
service stops returning one. By default each page's raw output is
printed; with --items the configured result keys are flattened into a
single list.`,
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

			if items {
				iterator, err := client.Items(cmd.Context(), operation, params)
				if err != nil {
					return err
				}

				all, err := iterator.All()
				if err != nil {
					return err
				}

				return renderOutput(map[string]interface{}{
					"count": len(all),
					"items": all,
				})
			}

			pager, err := client.Paginate(operation, params)
			if err != nil {
				return err
			}

			pageNum := 0

			for pager.HasNext() {
				if maxPages > 0 && pageNum >= maxPages {
					break
				}

				page, err := pager.NextPage(cmd.Context())
				if err != nil {
					return err
				}

				pageNum++
				fmt.Printf("--- page %d ---\n", pageNum)

				if err := renderOutput(page.Result.Output); err != nil {
					return err
				}
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&items, "items", false, "flatten pages into a single item list")
	cmd.Flags().IntVar(&maxPages, "max-pages", 0, "stop printing after this many pages (0 prints all)")

	return cmd
}
