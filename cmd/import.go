package cmd

import (
	"fmt"
	"path/filepath"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"medical-files-server/internal/medfiles"
	"medical-files-server/internal/models"
)

// NewImportCommand creates the 'import' command, which uploads local files
// for one patient through the same pipeline as the HTTP API.
func NewImportCommand(a *app) *cobra.Command {
	var patientID, patientName, category string

	cmd := &cobra.Command{
		Use:   "import [flags] <path>...",
		Short: "Upload local files for a patient",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if category != "" {
				if _, err := models.ParseCategory(category); err != nil {
					return err
				}
			}

			blobs := make([]medfiles.FileBlob, 0, len(args))
			for _, p := range args {
				data, err := afero.ReadFile(a.fs, p)
				if err != nil {
					return fmt.Errorf("reading %s: %w", p, err)
				}
				blobs = append(blobs, medfiles.FileBlob{
					Name:         filepath.Base(p),
					ContentType:  mimetype.Detect(data).String(),
					Data:         data,
					CategoryHint: category,
				})
			}

			rt, err := a.bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			outcomes := rt.service.UploadBatch(cmd.Context(), patientID, patientName, blobs)

			w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "FILE\tSTATUS\tCATEGORY\tSIZE\tID / REASON")
			failed := 0
			for _, out := range outcomes {
				if out.Succeeded() {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", out.FileName, out.State.Status, out.Record.Category,
						humanize.IBytes(uint64(out.Record.FileSizeBytes)), out.Record.ID)
					continue
				}
				failed++
				reason := out.State.Reason
				if out.Err != nil && out.Err.Detail != "" {
					reason += ": " + out.Err.Detail
				}
				fmt.Fprintf(w, "%s\t%s\t-\t-\t%s\n", out.FileName, out.State.Status, reason)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			if failed > 0 {
				return fmt.Errorf("%d of %d files failed", failed, len(outcomes))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&patientID, "patient-id", "", "patient identifier (required)")
	cmd.Flags().StringVar(&patientName, "patient-name", "", "patient display name (required)")
	cmd.Flags().StringVar(&category, "category", "", "category for every file, overriding name-based categorization")
	_ = cmd.MarkFlagRequired("patient-id")
	_ = cmd.MarkFlagRequired("patient-name")

	return cmd
}
