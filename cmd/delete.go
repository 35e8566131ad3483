package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewDeleteCommand creates the 'delete' command. Deleting an unknown id is
// not an error.
func NewDeleteCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a file and its index record",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := a.bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			deleted, err := rt.service.Delete(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if deleted {
				fmt.Fprintf(a.out, "deleted %s\n", args[0])
			} else {
				fmt.Fprintf(a.out, "%s not found, nothing to delete\n", args[0])
			}
			return nil
		},
	}
}
