package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"medical-files-server/internal/index"
	"medical-files-server/internal/models"
	"medical-files-server/internal/query"
)

// NewListCommand creates the 'list' command.
func NewListCommand(a *app) *cobra.Command {
	var (
		patientID string
		category  string
		opts      query.Options
		sortBy    string
		order     string
	)

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List indexed files",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := index.Filter{PatientID: patientID}
			if category != "" {
				c, err := models.ParseCategory(category)
				if err != nil {
					return err
				}
				filter.Category = c
			}

			switch query.SortField(sortBy) {
			case query.SortByDate, query.SortByName, query.SortByCategory:
			default:
				return fmt.Errorf("invalid --sort %q: want date, name or category", sortBy)
			}
			switch query.Order(order) {
			case query.Asc, query.Desc:
			default:
				return fmt.Errorf("invalid --order %q: want asc or desc", order)
			}
			opts.SortBy = query.SortField(sortBy)
			opts.Order = query.Order(order)

			rt, err := a.bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			files, err := rt.service.List(cmd.Context(), filter, opts)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tPATIENT\tFILE\tCATEGORY\tSIZE\tUPLOADED")
			for _, f := range files {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", f.ID, f.PatientName, f.FileName, f.Category,
					humanize.IBytes(uint64(f.FileSizeBytes)), f.UploadedAt.Local().Format(time.DateTime))
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&patientID, "patient-id", "", "only files of this patient")
	cmd.Flags().StringVar(&category, "category", "", "only files in this category")
	cmd.Flags().StringVar(&opts.Search, "search", "", "case-insensitive match on file or patient name")
	cmd.Flags().StringVar(&opts.PatientName, "patient-name", "", "only files whose patient name contains this text")
	cmd.Flags().StringVar(&sortBy, "sort", string(query.SortByDate), "sort field: date, name or category")
	cmd.Flags().StringVar(&order, "order", string(query.Desc), "sort order: asc or desc")

	return cmd
}
